package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/lulicookies/storefront-api/internal/domain"
	"github.com/lulicookies/storefront-api/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Fidelity (implements port.FidelityStore)
// ============================================================

type fidelityRow struct {
	ID               string `json:"id"`
	UserID           string `json:"user_id"`
	Points           int    `json:"points"`
	FreeCookieEarned bool   `json:"free_cookie_earned"`
	UpdatedAt        string `json:"updated_at"`
}

func (r *fidelityRow) toDomain() domain.FidelityRecord {
	return domain.FidelityRecord{
		ID:               r.ID,
		UserID:           r.UserID,
		Points:           r.Points,
		FreeCookieEarned: r.FreeCookieEarned,
		UpdatedAt:        parseTimestamp(r.UpdatedAt),
	}
}

// GetFidelity fetches a customer's fidelity record.
func (c *Client) GetFidelity(ctx context.Context, userID string) (*domain.FidelityRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetFidelity")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var record *domain.FidelityRecord

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("fidelity?user_id=eq.%s&limit=1", url.QueryEscape(userID))
			body, err := c.doGet(ctx, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				record = nil
				return nil
			}

			var rows []fidelityRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode fidelity: %w", err)
			}
			if len(rows) == 0 {
				record = nil
				return nil
			}

			r := rows[0].toDomain()
			record = &r
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/fidelity", Err: err}
	}
	if record == nil {
		return nil, &domain.ErrNotFound{Resource: "fidelity", ID: userID}
	}
	return record, nil
}

// InsertFidelity creates the first record for a customer, merging on
// user_id so two concurrent first purchases cannot create duplicates.
func (c *Client) InsertFidelity(ctx context.Context, record *domain.FidelityRecord) error {
	ctx, span := tracer.Start(ctx, "Supabase.InsertFidelity")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", record.UserID))

	_, err := c.cb.Execute(func() (any, error) {
		return c.doPost(ctx, "fidelity?on_conflict=user_id", map[string]any{
			"id":                 record.ID,
			"user_id":            record.UserID,
			"points":             record.Points,
			"free_cookie_earned": record.FreeCookieEarned,
			"updated_at":         time.Now().UTC().Format(time.RFC3339),
		}, "resolution=merge-duplicates,return=minimal")
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/fidelity", Err: err}
	}
	return nil
}

// CompareAndSwap updates the record only if it still holds the expected
// points/flag pair. PostgREST applies the PATCH to rows matching all
// filters and returns the updated representation: an empty array means
// a concurrent writer changed the row first, and the caller must
// re-read and retry.
func (c *Client) CompareAndSwap(ctx context.Context, userID string, expectPoints int, expectFlag bool, newPoints int, newFlag bool) (bool, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FidelityCompareAndSwap")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.Int("points.expected", expectPoints),
		attribute.Int("points.new", newPoints),
	)

	var swapped bool

	_, err := c.cb.Execute(func() (any, error) {
		path := fmt.Sprintf("fidelity?user_id=eq.%s&points=eq.%d&free_cookie_earned=is.%t",
			url.QueryEscape(userID), expectPoints, expectFlag)
		body, err := c.doPatch(ctx, path, map[string]any{
			"points":             newPoints,
			"free_cookie_earned": newFlag,
			"updated_at":         time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return nil, err
		}
		swapped = len(body) > 0 && string(body) != "[]"
		return nil, nil
	})

	if err != nil {
		return false, &domain.ErrExternalService{Service: "supabase/fidelity", Err: err}
	}
	return swapped, nil
}

package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lulicookies/storefront-api/internal/domain"
	"github.com/lulicookies/storefront-api/internal/infra/resilience"
)

// ============================================================
// Store settings (implements port.SettingsStore)
// ============================================================

type settingsRow struct {
	ID        int64  `json:"id"`
	IsOpen    bool   `json:"is_open"`
	UpdatedAt string `json:"updated_at"`
}

func (r *settingsRow) toDomain() domain.StoreSettings {
	return domain.StoreSettings{
		ID:        r.ID,
		IsOpen:    r.IsOpen,
		UpdatedAt: parseTimestamp(r.UpdatedAt),
	}
}

// GetSettings fetches the single settings row.
func (c *Client) GetSettings(ctx context.Context) (*domain.StoreSettings, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetSettings")
	defer span.End()

	var settings *domain.StoreSettings

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doGet(ctx, "store_settings?select=*&limit=1")
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				settings = nil
				return nil
			}

			var rows []settingsRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode store settings: %w", err)
			}
			if len(rows) == 0 {
				settings = nil
				return nil
			}

			s := rows[0].toDomain()
			settings = &s
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/settings", Err: err}
	}
	if settings == nil {
		return nil, &domain.ErrNotFound{Resource: "store_settings", ID: "singleton"}
	}
	return settings, nil
}

// InsertSettings creates the default row when none exists yet.
func (c *Client) InsertSettings(ctx context.Context, isOpen bool) (*domain.StoreSettings, error) {
	ctx, span := tracer.Start(ctx, "Supabase.InsertSettings")
	defer span.End()

	var settings *domain.StoreSettings

	_, err := c.cb.Execute(func() (any, error) {
		body, err := c.doPost(ctx, "store_settings", map[string]any{
			"is_open":    isOpen,
			"updated_at": time.Now().UTC().Format(time.RFC3339),
		}, "return=representation")
		if err != nil {
			return nil, err
		}

		var rows []settingsRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode store settings: %w", err)
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("insert returned no settings row")
		}

		s := rows[0].toDomain()
		settings = &s
		return nil, nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/settings", Err: err}
	}
	return settings, nil
}

// SetOpen flips the open/closed flag.
func (c *Client) SetOpen(ctx context.Context, id int64, isOpen bool) error {
	ctx, span := tracer.Start(ctx, "Supabase.SetOpen")
	defer span.End()

	_, err := c.cb.Execute(func() (any, error) {
		path := fmt.Sprintf("store_settings?id=eq.%d", id)
		return c.doPatch(ctx, path, map[string]any{
			"is_open":    isOpen,
			"updated_at": time.Now().UTC().Format(time.RFC3339),
		})
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/settings", Err: err}
	}
	return nil
}

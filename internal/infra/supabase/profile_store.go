package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/lulicookies/storefront-api/internal/domain"
	"github.com/lulicookies/storefront-api/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Customer profiles (implements port.ProfileStore)
// ============================================================

type profileRow struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	Name      string          `json:"name"`
	Address   json.RawMessage `json:"address"`
	CreatedAt string          `json:"created_at"`
}

func (r *profileRow) toDomain() domain.Profile {
	p := domain.Profile{
		ID:        r.ID,
		Email:     r.Email,
		Name:      r.Name,
		CreatedAt: parseTimestamp(r.CreatedAt),
	}
	// Address is JSONB; older rows may carry it double-encoded as a string.
	if len(r.Address) > 0 && string(r.Address) != "null" {
		var addr domain.Address
		if err := json.Unmarshal(r.Address, &addr); err == nil {
			p.Address = &addr
		} else {
			var s string
			if err := json.Unmarshal(r.Address, &s); err == nil {
				if err := json.Unmarshal([]byte(s), &addr); err == nil {
					p.Address = &addr
				}
			}
		}
	}
	return p
}

// GetProfile fetches a customer profile by the identity provider's id.
func (c *Client) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var profile *domain.Profile

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf("customer_users?id=eq.%s&limit=1", url.QueryEscape(userID))
			body, err := c.doGet(ctx, path)
			if err != nil {
				return err
			}
			if body == nil || string(body) == "[]" {
				profile = nil
				return nil
			}

			var rows []profileRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode profile: %w", err)
			}
			if len(rows) == 0 {
				profile = nil
				return nil
			}

			p := rows[0].toDomain()
			profile = &p
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/profile", Err: err}
	}
	if profile == nil {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: userID}
	}
	return profile, nil
}

// InsertProfile creates the profile row an authenticated order's foreign
// key needs. It is not retried: a duplicate insert would surface as a
// conflict rather than succeed.
func (c *Client) InsertProfile(ctx context.Context, userID, email, name string) error {
	ctx, span := tracer.Start(ctx, "Supabase.InsertProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	_, err := c.cb.Execute(func() (any, error) {
		return c.doPost(ctx, "customer_users", map[string]any{
			"id":    userID,
			"email": email,
			"name":  name,
		}, "return=minimal")
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/profile", Err: err}
	}
	return nil
}

// UpsertProfile writes the profile row, merging on id. Used for the
// default-address save and for name changes.
func (c *Client) UpsertProfile(ctx context.Context, profile *domain.Profile) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", profile.ID))

	data := map[string]any{
		"id":    profile.ID,
		"email": profile.Email,
		"name":  profile.Name,
	}
	if profile.Address != nil {
		data["address"] = profile.Address
	}

	_, err := c.cb.Execute(func() (any, error) {
		return c.doPost(ctx, "customer_users", data, "resolution=merge-duplicates,return=minimal")
	})
	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/profile", Err: err}
	}
	return nil
}

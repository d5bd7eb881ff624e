package service

import (
	"context"
	"errors"

	"github.com/lulicookies/storefront-api/internal/config"
	"github.com/lulicookies/storefront-api/internal/domain"
	"github.com/lulicookies/storefront-api/internal/port"

	"go.opentelemetry.io/otel/attribute"
)

// FidelityService is the read side of the loyalty program.
type FidelityService struct {
	store port.FidelityStore
	cfg   *config.Config
}

// NewFidelityService creates a new FidelityService.
func NewFidelityService(store port.FidelityStore, cfg *config.Config) *FidelityService {
	return &FidelityService{store: store, cfg: cfg}
}

// Progress returns the customer's current loyalty status for display.
// A customer with no record yet is simply at zero points.
func (s *FidelityService) Progress(ctx context.Context, userID string) (*domain.FidelityProgress, error) {
	ctx, span := tracer.Start(ctx, "FidelityService.Progress")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	record, err := s.store.GetFidelity(ctx, userID)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			record = nil
		} else {
			return nil, err
		}
	}
	if record == nil {
		return &domain.FidelityProgress{Points: 0, Remaining: s.cfg.RewardTarget}, nil
	}

	remaining := s.cfg.RewardTarget - record.Points
	if remaining < 0 {
		remaining = 0
	}

	// The points >= target check is redundant with the flag on a
	// healthy ledger, but a row that slipped through with a full
	// counter and the flag down still owes the customer a cookie.
	free := record.FreeCookieEarned || record.Points >= s.cfg.RewardTarget

	return &domain.FidelityProgress{
		Points:     record.Points,
		Remaining:  remaining,
		FreeCookie: free,
	}, nil
}

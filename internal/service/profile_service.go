package service

import (
	"context"
	"errors"
	"strings"

	"github.com/lulicookies/storefront-api/internal/domain"
	"github.com/lulicookies/storefront-api/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ProfileService manages customer profile rows.
type ProfileService struct {
	store  port.ProfileStore
	logger *zap.Logger
}

// NewProfileService creates a new ProfileService.
func NewProfileService(store port.ProfileStore, logger *zap.Logger) *ProfileService {
	return &ProfileService{store: store, logger: logger}
}

// Get returns the customer's profile.
func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "ProfileService.Get")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	return s.store.GetProfile(ctx, userID)
}

// Ensure makes sure a profile row exists for the principal, creating
// one from the session data when absent.
func (s *ProfileService) Ensure(ctx context.Context, user *domain.User, name string) error {
	ctx, span := tracer.Start(ctx, "ProfileService.Ensure")
	defer span.End()

	_, err := s.store.GetProfile(ctx, user.ID)
	if err == nil {
		return nil
	}
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		return err
	}
	if name == "" {
		name = user.Email
	}
	return s.store.InsertProfile(ctx, user.ID, user.Email, name)
}

// UpdateName changes the customer's display name.
func (s *ProfileService) UpdateName(ctx context.Context, user *domain.User, name string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "ProfileService.UpdateName")
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "obrigatório"}
	}

	profile, err := s.currentOrNew(ctx, user)
	if err != nil {
		return nil, err
	}
	profile.Name = name
	if err := s.store.UpsertProfile(ctx, profile); err != nil {
		s.logger.Error("profile name update failed", zap.String("user_id", user.ID), zap.Error(err))
		return nil, err
	}
	return profile, nil
}

// UpdateAddress replaces the profile's default delivery address.
func (s *ProfileService) UpdateAddress(ctx context.Context, user *domain.User, addr *domain.Address) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "ProfileService.UpdateAddress")
	defer span.End()

	if err := addr.Validate(); err != nil {
		return nil, err
	}

	profile, err := s.currentOrNew(ctx, user)
	if err != nil {
		return nil, err
	}
	profile.Address = addr
	if err := s.store.UpsertProfile(ctx, profile); err != nil {
		s.logger.Error("profile address update failed", zap.String("user_id", user.ID), zap.Error(err))
		return nil, err
	}
	return profile, nil
}

func (s *ProfileService) currentOrNew(ctx context.Context, user *domain.User) (*domain.Profile, error) {
	profile, err := s.store.GetProfile(ctx, user.ID)
	if err != nil {
		var notFound *domain.ErrNotFound
		if !errors.As(err, &notFound) {
			return nil, err
		}
		profile = &domain.Profile{ID: user.ID, Email: user.Email, Name: user.Email}
	}
	return profile, nil
}

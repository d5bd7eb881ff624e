package service

import (
	"context"
	"strings"

	"github.com/lulicookies/storefront-api/internal/domain"
	"github.com/lulicookies/storefront-api/internal/port"

	"go.uber.org/zap"
)

// AuthService fronts the identity provider for account management.
// Password storage and session issuance live entirely in the provider;
// this layer validates input and keeps the profile table in step.
type AuthService struct {
	identity port.Identity
	profiles port.ProfileStore
	logger   *zap.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(identity port.Identity, profiles port.ProfileStore, logger *zap.Logger) *AuthService {
	return &AuthService{identity: identity, profiles: profiles, logger: logger}
}

// SignUp registers a new account and seeds its profile row. A profile
// failure does not fail the sign-up: checkout recreates the row when
// missing.
func (s *AuthService) SignUp(ctx context.Context, email, password, name string) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "AuthService.SignUp")
	defer span.End()

	email = strings.TrimSpace(strings.ToLower(email))
	name = strings.TrimSpace(name)
	if email == "" || !strings.Contains(email, "@") {
		return nil, &domain.ErrValidation{Field: "email", Message: "inválido"}
	}
	if len(password) < 6 {
		return nil, &domain.ErrValidation{Field: "password", Message: "mínimo de 6 caracteres"}
	}
	if name == "" {
		return nil, &domain.ErrValidation{Field: "name", Message: "obrigatório"}
	}

	session, err := s.identity.SignUp(ctx, email, password, name)
	if err != nil {
		return nil, err
	}

	if session.User.ID != "" {
		if err := s.profiles.InsertProfile(ctx, session.User.ID, email, name); err != nil {
			s.logger.Warn("profile seed on sign-up failed",
				zap.String("user_id", session.User.ID), zap.Error(err))
		}
	}
	return session, nil
}

// SignIn exchanges credentials for a session.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "AuthService.SignIn")
	defer span.End()

	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, &domain.ErrValidation{Field: "email", Message: "e-mail e senha são obrigatórios"}
	}
	return s.identity.SignIn(ctx, email, password)
}

// SignOut revokes the session behind the token.
func (s *AuthService) SignOut(ctx context.Context, accessToken string) error {
	ctx, span := tracer.Start(ctx, "AuthService.SignOut")
	defer span.End()

	return s.identity.SignOut(ctx, accessToken)
}

// CurrentUser resolves the principal behind an access token.
func (s *AuthService) CurrentUser(ctx context.Context, accessToken string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "AuthService.CurrentUser")
	defer span.End()

	return s.identity.CurrentUser(ctx, accessToken)
}

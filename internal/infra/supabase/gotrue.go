package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/lulicookies/storefront-api/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// GoTrue / Supabase Auth (implements port.Identity)
// ============================================================

type gotrueSession struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int        `json:"expires_in"`
	User         gotrueUser `json:"user"`
}

type gotrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (s *gotrueSession) toDomain() *domain.Session {
	return &domain.Session{
		User:         domain.User{ID: s.User.ID, Email: s.User.Email},
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresIn:    s.ExpiresIn,
	}
}

func (c *Client) doAuth(ctx context.Context, method, path, bearer string, payload any) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	url := fmt.Sprintf("%s/auth/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", bearer))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("gotrue: request failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// SignUp registers a new credential with the identity provider.
func (c *Client) SignUp(ctx context.Context, email, password, name string) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "GoTrue.SignUp")
	defer span.End()

	body, status, err := c.doAuth(ctx, http.MethodPost, "signup", c.apiKey, map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]any{"name": name},
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "gotrue", Err: err}
	}
	if status == http.StatusUnprocessableEntity || status == http.StatusConflict {
		return nil, &domain.ErrConflict{Message: "E-mail já cadastrado"}
	}
	if status < 200 || status >= 300 {
		return nil, &domain.ErrExternalService{Service: "gotrue",
			Err: fmt.Errorf("signup returned %d: %s", status, string(body))}
	}

	var s gotrueSession
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, &domain.ErrExternalService{Service: "gotrue", Err: err}
	}
	return s.toDomain(), nil
}

// SignIn exchanges email/password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "GoTrue.SignIn")
	defer span.End()

	body, status, err := c.doAuth(ctx, http.MethodPost, "token?grant_type=password", c.apiKey, map[string]any{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "gotrue", Err: err}
	}
	if status == http.StatusBadRequest || status == http.StatusUnauthorized {
		return nil, &domain.ErrUnauthorized{Message: "E-mail ou senha inválidos"}
	}
	if status < 200 || status >= 300 {
		return nil, &domain.ErrExternalService{Service: "gotrue",
			Err: fmt.Errorf("token returned %d: %s", status, string(body))}
	}

	var s gotrueSession
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, &domain.ErrExternalService{Service: "gotrue", Err: err}
	}
	return s.toDomain(), nil
}

// SignOut revokes the session's refresh token.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	ctx, span := tracer.Start(ctx, "GoTrue.SignOut")
	defer span.End()

	_, status, err := c.doAuth(ctx, http.MethodPost, "logout", accessToken, nil)
	if err != nil {
		return &domain.ErrExternalService{Service: "gotrue", Err: err}
	}
	if status < 200 || status >= 300 {
		return &domain.ErrExternalService{Service: "gotrue",
			Err: fmt.Errorf("logout returned %d", status)}
	}
	return nil
}

// CurrentUser resolves the session's principal.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "GoTrue.CurrentUser")
	defer span.End()

	body, status, err := c.doAuth(ctx, http.MethodGet, "user", accessToken, nil)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "gotrue", Err: err}
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, &domain.ErrUnauthorized{Message: "Sessão inválida ou expirada"}
	}
	if status < 200 || status >= 300 {
		return nil, &domain.ErrExternalService{Service: "gotrue",
			Err: fmt.Errorf("user returned %d: %s", status, string(body))}
	}

	var u gotrueUser
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, &domain.ErrExternalService{Service: "gotrue", Err: err}
	}
	return &domain.User{ID: u.ID, Email: u.Email}, nil
}

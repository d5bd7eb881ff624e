package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/lulicookies/storefront-api/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const userKey contextKey = "user"

// serviceRole is the role claim Supabase stamps on service keys.
const serviceRole = "service_role"

// supabaseClaims is the subset of the identity provider's JWT payload
// the API cares about.
type supabaseClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

func parseClaims(tokenString, secret string) (*supabaseClaims, error) {
	claims := &supabaseClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, &domain.ErrUnauthorized{Message: "Sessão inválida ou expirada"}
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "Sessão inválida ou expirada"}
	}
	return claims, nil
}

func parseToken(tokenString, secret string) (*domain.User, error) {
	claims, err := parseClaims(tokenString, secret)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, &domain.ErrUnauthorized{Message: "Sessão inválida ou expirada"}
	}
	return &domain.User{ID: claims.Subject, Email: claims.Email}, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// AuthMiddleware validates Bearer tokens signed by the identity
// provider and injects the principal into context. Requests without a
// valid token are rejected.
func AuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "Token de autenticação não fornecido")
				return
			}

			user, err := parseToken(token, jwtSecret)
			if err != nil {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ServiceRoleMiddleware admits only tokens carrying the service_role
// claim. A customer session is authenticated but not an operator, so
// it gets 403, not 401.
func ServiceRoleMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "Token de autenticação não fornecido")
				return
			}

			claims, err := parseClaims(token, jwtSecret)
			if err != nil {
				logger.Warn("auth: invalid token on operator route",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			if claims.Role != serviceRole {
				logger.Warn("auth: non-operator token on operator route",
					zap.String("path", r.URL.Path),
					zap.String("subject", claims.Subject),
				)
				writeError(w, http.StatusForbidden, "Acesso restrito ao operador da loja")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// OptionalAuthMiddleware injects the principal when a valid token is
// present and lets the request through anonymously otherwise. Checkout
// uses it: guests order without an account.
func OptionalAuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			user, err := parseToken(token, jwtSecret)
			if err != nil {
				// A presented token must be valid; silently downgrading
				// to guest would misplace the order.
				logger.Warn("auth: invalid token on optional route",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext extracts the authenticated principal, nil for guests.
func UserFromContext(ctx context.Context) *domain.User {
	u, _ := ctx.Value(userKey).(*domain.User)
	return u
}

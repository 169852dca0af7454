package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/travelsidecar/service/internal/response"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

// principalKey is the context key for the authenticated Principal.
const principalKey contextKey = "principal"

// Principal is the authenticated caller of a request.
type Principal struct {
	ID    string
	Admin bool
}

// CanAccess reports whether p may act on a resource owned by ownerID.
func (p Principal) CanAccess(ownerID string) bool {
	return p.Admin || (p.ID != "" && p.ID == ownerID)
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the principal stored in ctx, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok && p.ID != ""
}

// RequireAuth returns middleware that validates a Bearer JWT and injects
// the principal into the request context.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := principalFromRequest(r, jwtSecret)
			if !ok {
				response.Unauthorized(w, "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// OptionalAuth injects the principal when a valid token is present and lets
// anonymous requests through, so public files stay servable without a login.
func OptionalAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p, ok := principalFromRequest(r, jwtSecret); ok {
				r = r.WithContext(WithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func principalFromRequest(r *http.Request, jwtSecret string) (Principal, bool) {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return Principal{}, false
	}

	token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return Principal{}, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, false
	}

	userID, _ := claims["sub"].(string)
	if userID == "" {
		return Principal{}, false
	}
	role, _ := claims["role"].(string)
	return Principal{ID: userID, Admin: role == "admin"}, true
}

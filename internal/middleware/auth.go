package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/odinbook/backend/internal/auth"
	"github.com/odinbook/backend/internal/logging"
	"github.com/odinbook/backend/internal/models"
)

type callerKey struct{}

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (models.UserProjection, error)
}

// Authenticate requires a valid bearer token and stores the caller's
// projection on the request context.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token, err := auth.BearerToken(r.Header.Get("Authorization"))
			if err == nil {
				var caller models.UserProjection
				caller, err = verifier.Verify(token)
				if err == nil {
					ctx = context.WithValue(ctx, callerKey{}, caller)
					ctx = logging.WithActor(ctx, caller.Username)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			logging.FromContext(ctx).Warn("request rejected by token check", "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer realm="odinbook"`)
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": tokenMessage(err)})
		})
	}
}

func tokenMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, auth.ErrTokenMissing):
		return "token missing"
	default:
		return "token invalid"
	}
}

// Caller returns the authenticated caller stored by Authenticate.
func Caller(ctx context.Context) (models.UserProjection, bool) {
	caller, ok := ctx.Value(callerKey{}).(models.UserProjection)
	return caller, ok
}

// WithCaller stores caller on ctx. Tests use it to bypass token checks.
func WithCaller(ctx context.Context, caller models.UserProjection) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

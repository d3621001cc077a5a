package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"ffinder-server/models"
)

type contextKey int

const userKey contextKey = iota

// Authorizer resolves an Authorization header to a user.
type Authorizer interface {
	CheckAuthorization(ctx context.Context, header string) (*models.User, error)
}

// AuthMiddleware rejects requests without a valid "FFINDER <token>"
// header and stores the resolved user in the request context.
func AuthMiddleware(auth Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := auth.CheckAuthorization(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				WriteError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), userKey, user)
			l := zerolog.Ctx(ctx).With().Str("user_id", user.ID).Logger()
			next.ServeHTTP(w, r.WithContext(l.WithContext(ctx)))
		})
	}
}

// UserFromContext returns the user set by AuthMiddleware.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok && user != nil
}

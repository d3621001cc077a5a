package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"ffinder-server/utils/errors"
)

// errorResponse is the envelope of every failed request.
type errorResponse struct {
	Error      *errors.APIError `json:"error"`
	StatusCode int              `json:"status_code"`
}

// RecoverMiddleware turns a panicking handler into an InternalServerError
// response.
func RecoverMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					zerolog.Ctx(r.Context()).Error().
						Interface("panic", rec).
						Str("path", r.URL.Path).
						Msg("Panic recovered")
					WriteError(w, r, errors.ErrInternal)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// WriteError writes err as a JSON error envelope. Errors that are not
// APIErrors are reported as InternalServerError.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := errors.Wrap(err, errors.ErrInternal.Name, errors.ErrInternal.Message, errors.ErrInternal.Status)
	if apiErr.Status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().
			Str("error", apiErr.Name).
			Str("details", apiErr.Details).
			Str("path", r.URL.Path).
			Msg(apiErr.Message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: apiErr, StatusCode: apiErr.Status})
}

// NotFoundHandler and MethodNotAllowedHandler answer unmatched requests
// with the error envelope.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, errors.ErrNotFound)
	})
}

func MethodNotAllowedHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, errors.ErrMethodNotAllowed)
	})
}

// TooManyRequests is the rate limiter's response.
func TooManyRequests(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, errors.ErrTooManyRequests)
}

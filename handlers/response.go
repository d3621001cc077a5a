package handlers

import (
	"encoding/json"
	"net/http"

	"ffinder-server/middleware"
	"ffinder-server/models"
	"ffinder-server/utils/errors"
	"ffinder-server/utils/validation"
)

// dataResponse is the envelope of every successful request.
type dataResponse struct {
	Data       any `json:"data"`
	StatusCode int `json:"status_code"`
}

type messageData struct {
	Message string `json:"message"`
}

// WriteData writes data wrapped in the success envelope.
func WriteData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dataResponse{Data: data, StatusCode: status})
}

// decodeJSON reads the request body into v and validates it.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.ErrBadRequest.WithMessage("Request body must be valid JSON")
	}
	return validation.Struct(v)
}

// currentUser returns the user resolved by the auth middleware, writing a
// Forbidden response when there is none.
func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, r, errors.ErrForbidden)
	}
	return user, ok
}

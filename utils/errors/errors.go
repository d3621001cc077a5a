package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// APIError represents a custom error type for API responses
type APIError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Details string `json:"-"`
}

// Error returns the error message
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

func NewAPIError(name, message string, status int, details ...string) *APIError {
	err := &APIError{
		Name:    name,
		Message: message,
		Status:  status,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

// WithMessage returns a copy of e carrying a more specific message.
func (e *APIError) WithMessage(message string) *APIError {
	return &APIError{Name: e.Name, Message: message, Status: e.Status, Details: e.Details}
}

// Is reports whether target is an APIError with the same name, so that
// errors.Is matches copies made by WithMessage.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	return ok && t.Name == e.Name
}

var (
	ErrBadRequest       = NewAPIError("BadRequest", "Invalid request data", http.StatusBadRequest)
	ErrForbidden        = NewAPIError("Forbidden", "Not authorized to access this resource", http.StatusForbidden)
	ErrNotFound         = NewAPIError("PageNotFound", "Resource not found", http.StatusNotFound)
	ErrMethodNotAllowed = NewAPIError("MethodNotAllowed", "Method not allowed for this resource", http.StatusMethodNotAllowed)
	ErrTooManyRequests  = NewAPIError("TooManyRequests", "Too many requests, slow down", http.StatusTooManyRequests)
	ErrInternal         = NewAPIError("InternalServerError", "Internal server error", http.StatusInternalServerError)

	ErrInvalidEmail             = NewAPIError("InvalidEmail", "The email address is not valid", http.StatusBadRequest)
	ErrInvalidPassword          = NewAPIError("InvalidPassword", "The password must be at least 6 characters", http.StatusBadRequest)
	ErrUsedEmail                = NewAPIError("UsedEmail", "The email address is already in use", http.StatusConflict)
	ErrIncorrectEmailOrPassword = NewAPIError("IncorrectEmailOrPassword", "Incorrect email or password", http.StatusUnauthorized)
	ErrUserNotExists            = NewAPIError("UserNotExists", "The user does not exist", http.StatusNotFound)
	ErrInviteAlreadyUsed        = NewAPIError("InviteAlreadyUsed", "The invitation has already been used", http.StatusConflict)
)

func Wrap(err error, name, message string, status int) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	return NewAPIError(name, message, status, err.Error())
}

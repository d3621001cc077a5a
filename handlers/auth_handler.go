package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"ffinder-server/middleware"
	"ffinder-server/services"
)

type AuthHandler struct {
	userService *services.UserService
}

func NewAuthHandler(userService *services.UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

type credentialsInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var input credentialsInput
	if err := decodeJSON(r, &input); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	user, err := h.userService.Register(r.Context(), input.Email, input.Password)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, user.Session())
}

func (h *AuthHandler) LoginUser(w http.ResponseWriter, r *http.Request) {
	var input credentialsInput
	if err := decodeJSON(r, &input); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	user, err := h.userService.Login(r.Context(), input.Email, input.Password)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, user.Session())
}

// LoginProvider handles POST /login/{provider} for social accounts.
func (h *AuthHandler) LoginProvider(w http.ResponseWriter, r *http.Request) {
	var input struct {
		UserID       string `json:"user_id"`
		Username     string `json:"username"`
		Name         string `json:"name"`
		Email        string `json:"email"`
		AccessToken  string `json:"access_token" validate:"required"`
		AccessSecret string `json:"access_secret"`
	}
	if err := decodeJSON(r, &input); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	username := input.Username
	if username == "" {
		username = input.Name
	}

	user, err := h.userService.LoginWithProvider(r.Context(), services.SocialLogin{
		Provider:     mux.Vars(r)["provider"],
		UserID:       input.UserID,
		Username:     username,
		Email:        input.Email,
		AccessToken:  input.AccessToken,
		AccessSecret: input.AccessSecret,
	})
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, user.Session())
}

package handlers

import (
	"net/http"

	"ffinder-server/middleware"
	"ffinder-server/services"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (h *UserHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var input struct {
		Lat *float64 `json:"lat" validate:"required,min=-90,max=90"`
		Lon *float64 `json:"lon" validate:"required,min=-180,max=180"`
	}
	if err := decodeJSON(r, &input); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	if err := h.userService.UpdateLocation(r.Context(), user, *input.Lat, *input.Lon); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, messageData{Message: "Location updated"})
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	WriteData(w, http.StatusOK, user.Session())
}

func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.userService.RemoveUser(r.Context(), user); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, messageData{Message: "Account removed"})
}

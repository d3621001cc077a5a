package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"ffinder-server/middleware"
	"ffinder-server/models"
	"ffinder-server/services"
	"ffinder-server/utils/errors"
)

type GroupHandler struct {
	groupService *services.GroupService
}

func NewGroupHandler(groupService *services.GroupService) *GroupHandler {
	return &GroupHandler{groupService: groupService}
}

type friendsResponse struct {
	Friends []models.PublicProfile `json:"friends"`
}

type nearbyResponse struct {
	Friends []services.NearbyMember `json:"friends"`
	Radius  float64                 `json:"radius"`
}

func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var input struct {
		GroupID string `json:"group_id" validate:"required"`
		Name    string `json:"name" validate:"required"`
	}
	if err := decodeJSON(r, &input); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	group, err := h.groupService.CreateGroup(r.Context(), user, input.GroupID, input.Name)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, group)
}

func (h *GroupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	group, err := h.groupService.GetGroup(r.Context(), user, mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, group)
}

func (h *GroupHandler) Locations(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	friends, err := h.groupService.Locations(r.Context(), user, mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, friendsResponse{Friends: friends})
}

func (h *GroupHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	radius := services.DefaultNearbyRadius
	if v := r.URL.Query().Get("radius"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			middleware.WriteError(w, r, errors.ErrBadRequest.WithMessage("radius must be a positive number of kilometres"))
			return
		}
		radius = parsed
	}
	friends, err := h.groupService.Nearby(r.Context(), user, mux.Vars(r)["id"], radius)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, nearbyResponse{Friends: friends, Radius: radius})
}

func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var input struct {
		UserID string `json:"user_id" validate:"required_without=Email"`
		Email  string `json:"email"`
	}
	if err := decodeJSON(r, &input); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	group, err := h.groupService.AddMember(r.Context(), user, mux.Vars(r)["id"], input.UserID, input.Email)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, group)
}

func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var input struct {
		UserID string `json:"user_id" validate:"required"`
	}
	if err := decodeJSON(r, &input); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	group, err := h.groupService.RemoveMember(r.Context(), user, mux.Vars(r)["id"], input.UserID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, group)
}

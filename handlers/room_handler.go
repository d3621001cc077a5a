package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"ffinder-server/middleware"
	"ffinder-server/models"
	"ffinder-server/services"
)

type RoomHandler struct {
	roomService *services.RoomService
}

func NewRoomHandler(roomService *services.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

// CreateRoom accepts the floor plan image base64 encoded in "image".
func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ID    string          `json:"id" validate:"required"`
		Name  string          `json:"name" validate:"required"`
		Size  models.RoomSize `json:"size"`
		Image []byte          `json:"image"`
	}
	if err := decodeJSON(r, &input); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	room, err := h.roomService.CreateRoom(r.Context(), &models.Room{
		ID:    input.ID,
		Name:  input.Name,
		Size:  input.Size,
		Image: input.Image,
	})
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, room)
}

func (h *RoomHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.roomService.GetRoom(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, room)
}

func (h *RoomHandler) AddBeacon(w http.ResponseWriter, r *http.Request) {
	var input struct {
		ID       string        `json:"id" validate:"required"`
		RoomID   string        `json:"room_id" validate:"required"`
		Name     string        `json:"name" validate:"required"`
		Location *models.Point `json:"location" validate:"required"`
	}
	if err := decodeJSON(r, &input); err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	beacon, err := h.roomService.AddBeacon(r.Context(), &models.Beacon{
		ID:       input.ID,
		RoomID:   input.RoomID,
		Name:     input.Name,
		Location: *input.Location,
	})
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, beacon)
}

func (h *RoomHandler) ListBeacons(w http.ResponseWriter, r *http.Request) {
	beacons, err := h.roomService.ListBeacons(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, beacons)
}

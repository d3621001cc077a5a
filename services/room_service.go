package services

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/rs/zerolog"

	"ffinder-server/models"
	"ffinder-server/store"
	"ffinder-server/utils/errors"
)

type RoomService struct {
	store   store.Store
	timeout time.Duration
}

func NewRoomService(st store.Store, timeout time.Duration) *RoomService {
	return &RoomService{store: st, timeout: timeout}
}

// CreateRoom stores room, replacing any room with the same id.
func (s *RoomService) CreateRoom(ctx context.Context, room *models.Room) (*models.Room, error) {
	if room.ID == "" || room.Name == "" {
		return nil, errors.ErrBadRequest.WithMessage("id and name are required")
	}
	ctx, cancel := store.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.Upsert(ctx, store.Rooms, store.Query{"id": room.ID}, room); err != nil {
		return nil, dbError(err)
	}
	zerolog.Ctx(ctx).Info().Str("room_id", room.ID).Msg("Saved room")
	return room, nil
}

func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	ctx, cancel := store.WithTimeout(ctx, s.timeout)
	defer cancel()
	raw, err := s.store.FindOne(ctx, store.Rooms, store.Query{"id": roomID})
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.ErrNotFound.WithMessage("room not found")
	}
	if err != nil {
		return nil, dbError(err)
	}
	room, err := models.RoomFromDocument(raw)
	if err != nil {
		return nil, dbError(err)
	}
	return room, nil
}

// AddBeacon places a beacon in an existing room.
func (s *RoomService) AddBeacon(ctx context.Context, beacon *models.Beacon) (*models.Beacon, error) {
	if beacon.ID == "" || beacon.RoomID == "" || beacon.Name == "" {
		return nil, errors.ErrBadRequest.WithMessage("id, room_id and name are required")
	}
	if _, err := s.GetRoom(ctx, beacon.RoomID); err != nil {
		return nil, err
	}
	ctx, cancel := store.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.Upsert(ctx, store.Beacons, store.Query{"id": beacon.ID}, beacon); err != nil {
		return nil, dbError(err)
	}
	return beacon, nil
}

// ListBeacons returns the beacons of roomID in insertion order.
func (s *RoomService) ListBeacons(ctx context.Context, roomID string) ([]*models.Beacon, error) {
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	ctx, cancel := store.WithTimeout(ctx, s.timeout)
	defer cancel()
	docs, err := s.store.Find(ctx, store.Beacons, store.Query{"room_id": roomID})
	if err != nil {
		return nil, dbError(err)
	}
	beacons := make([]*models.Beacon, 0, len(docs))
	for _, raw := range docs {
		b, err := models.BeaconFromDocument(raw)
		if err != nil {
			return nil, dbError(err)
		}
		beacons = append(beacons, b)
	}
	return beacons, nil
}

package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"

	"ffinder-server/models"
	"ffinder-server/store"
	"ffinder-server/utils/errors"
)

const profileTTL = 24 * time.Hour

type UserService struct {
	store       store.Store
	redisClient *redis.Client
	tokenSecret []byte
	tokenTTL    time.Duration
	timeout     time.Duration
}

type UserServiceConfig struct {
	TokenSecret string
	TokenTTL    time.Duration
	// Timeout bounds each store round trip.
	Timeout time.Duration
}

// NewUserService builds the user service. redisClient may be nil.
func NewUserService(st store.Store, redisClient *redis.Client, cfg UserServiceConfig) *UserService {
	return &UserService{
		store:       st,
		redisClient: redisClient,
		tokenSecret: []byte(cfg.TokenSecret),
		tokenTTL:    cfg.TokenTTL,
		timeout:     cfg.Timeout,
	}
}

func dbError(err error) *errors.APIError {
	return errors.Wrap(err, errors.ErrInternal.Name, "database error", http.StatusInternalServerError)
}

func (s *UserService) findUser(ctx context.Context, q store.Query) (*models.User, error) {
	ctx, cancel := store.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.store.FindOne(ctx, store.Users, q)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.ErrUserNotExists
	}
	if err != nil {
		return nil, dbError(err)
	}
	user, err := models.UserFromDocument(raw)
	if err != nil {
		return nil, dbError(err)
	}
	return user, nil
}

// GetUser returns the stored user or ErrUserNotExists.
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.findUser(ctx, store.Query{"id": userID})
}

func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, store.Query{"email": models.NormalizeEmail(email)})
}

// Profile returns the public profile of userID, from Redis when cached.
func (s *UserService) Profile(ctx context.Context, userID string) (models.PublicProfile, error) {
	if s.redisClient != nil {
		cached, err := s.redisClient.Get(ctx, profileKey(userID)).Result()
		if err == nil {
			var p models.PublicProfile
			if err := json.Unmarshal([]byte(cached), &p); err == nil {
				return p, nil
			}
			zerolog.Ctx(ctx).Warn().Str("user_id", userID).Msg("Discarding unreadable cached profile")
		} else if !stderrors.Is(err, redis.Nil) {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("Redis profile lookup failed")
		}
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return models.PublicProfile{}, err
	}
	s.cacheProfile(ctx, user)
	return user.Public(), nil
}

func (s *UserService) cacheProfile(ctx context.Context, user *models.User) {
	if s.redisClient == nil {
		return
	}
	data, err := json.Marshal(user.Public())
	if err != nil {
		return
	}
	if err := s.redisClient.Set(ctx, profileKey(user.ID), data, profileTTL).Err(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", user.ID).Msg("Failed to cache profile")
	}
}

func (s *UserService) forgetProfile(ctx context.Context, userID string) {
	if s.redisClient == nil {
		return
	}
	if err := s.redisClient.Del(ctx, profileKey(userID)).Err(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("Failed to drop cached profile")
	}
}

// UpdateLocation records the user's latest position.
func (s *UserService) UpdateLocation(ctx context.Context, user *models.User, lat, lon float64) error {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return errors.ErrBadRequest.WithMessage("lat must be within [-90, 90] and lon within [-180, 180]")
	}
	now := time.Now().UTC()
	loc := models.Location{lat, lon}

	ctx, cancel := store.WithTimeout(ctx, s.timeout)
	defer cancel()
	matched, err := s.store.Update(ctx, store.Users, store.Query{"id": user.ID}, store.Update{
		Set: bson.M{"location": loc, "last_request": now},
	})
	if err != nil {
		return dbError(err)
	}
	if matched == 0 {
		return errors.ErrUserNotExists
	}
	user.Location = loc
	user.LastRequest = &now

	s.cacheProfile(ctx, user)
	if s.redisClient != nil {
		err := s.redisClient.GeoAdd(ctx, geoKey, &redis.GeoLocation{
			Name:      user.ID,
			Longitude: lon,
			Latitude:  lat,
		}).Err()
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to update geospatial index")
		}
	}

	zerolog.Ctx(ctx).Debug().Str("user_id", user.ID).Float64("lat", lat).Float64("lon", lon).Msg("Updated location")
	return nil
}

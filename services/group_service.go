package services

import (
	"context"
	stderrors "errors"
	"math"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"

	"ffinder-server/models"
	"ffinder-server/store"
	"ffinder-server/utils/errors"
)

// DefaultNearbyRadius is used when a nearby query gives no radius, in km.
const DefaultNearbyRadius = 3.0

type GroupService struct {
	store   store.Store
	users   *UserService
	invites *InviteService
	timeout time.Duration
}

func NewGroupService(st store.Store, users *UserService, invites *InviteService, timeout time.Duration) *GroupService {
	return &GroupService{store: st, users: users, invites: invites, timeout: timeout}
}

// NearbyMember is a group member's profile with their distance from the caller in km.
type NearbyMember struct {
	models.PublicProfile
	Distance float64 `json:"distance"`
}

func (s *GroupService) load(ctx context.Context, groupID string) (*models.Group, error) {
	ctx, cancel := store.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.store.FindOne(ctx, store.Groups, store.Query{"id": groupID})
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.ErrNotFound.WithMessage("group not found")
	}
	if err != nil {
		return nil, dbError(err)
	}
	group, err := models.GroupFromDocument(raw)
	if err != nil {
		return nil, dbError(err)
	}
	return group, nil
}

// addToGroup adds userID to the group's member list, once.
func addToGroup(ctx context.Context, st store.Store, groupID, userID string) (bool, error) {
	matched, err := st.Update(ctx, store.Groups, store.Query{"id": groupID}, store.Update{
		AddToSet: bson.M{"users": userID},
	})
	if err != nil {
		return false, dbError(err)
	}
	return matched > 0, nil
}

// CreateGroup stores a new group with the creator as its only member. An
// existing group with the same id is replaced.
func (s *GroupService) CreateGroup(ctx context.Context, creator *models.User, groupID, name string) (*models.Group, error) {
	if groupID == "" || name == "" {
		return nil, errors.ErrBadRequest.WithMessage("group_id and name are required")
	}
	group := models.NewGroup(groupID, name, creator.ID)

	ctx, cancel := store.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.Upsert(ctx, store.Groups, store.Query{"id": groupID}, group); err != nil {
		return nil, dbError(err)
	}
	zerolog.Ctx(ctx).Info().Str("group_id", groupID).Str("user_id", creator.ID).Msg("Created group")
	return group, nil
}

// GetGroup returns the group if caller belongs to it.
func (s *GroupService) GetGroup(ctx context.Context, caller *models.User, groupID string) (*models.Group, error) {
	group, err := s.load(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(caller.ID) {
		return nil, errors.ErrForbidden.WithMessage("not a member of this group")
	}
	return group, nil
}

// AddMember adds a user by id, or by email. An email without an account
// produces a pending invitation and leaves the member list untouched.
func (s *GroupService) AddMember(ctx context.Context, caller *models.User, groupID, userID, email string) (*models.Group, error) {
	group, err := s.GetGroup(ctx, caller, groupID)
	if err != nil {
		return nil, err
	}

	var target *models.User
	switch {
	case userID != "":
		target, err = s.users.GetUser(ctx, userID)
		if err != nil {
			return nil, err
		}
	case email != "":
		email = models.NormalizeEmail(email)
		if !models.EmailIsValid(email) {
			return nil, errors.ErrInvalidEmail
		}
		target, err = s.users.GetUserByEmail(ctx, email)
		if stderrors.Is(err, errors.ErrUserNotExists) {
			if _, err := s.invites.Issue(ctx, caller, group, email); err != nil {
				return nil, err
			}
			return group, nil
		}
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.ErrBadRequest.WithMessage("user_id or email is required")
	}

	ctx, cancel := store.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := addToGroup(ctx, s.store, group.ID, target.ID); err != nil {
		return nil, err
	}
	group.AddMember(target.ID)
	return group, nil
}

// RemoveMember drops userID from the group. Members may remove themselves.
func (s *GroupService) RemoveMember(ctx context.Context, caller *models.User, groupID, userID string) (*models.Group, error) {
	if userID == "" {
		return nil, errors.ErrBadRequest.WithMessage("user_id is required")
	}
	group, err := s.GetGroup(ctx, caller, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(userID) {
		return nil, errors.ErrUserNotExists.WithMessage("the user is not a member of this group")
	}

	ctx, cancel := store.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err = s.store.Update(ctx, store.Groups, store.Query{"id": group.ID}, store.Update{
		Pull: bson.M{"users": userID},
	})
	if err != nil {
		return nil, dbError(err)
	}
	group.RemoveMember(userID)
	return group, nil
}

// Locations returns the public profile, including location, of every
// member. Members whose account no longer exists are skipped.
func (s *GroupService) Locations(ctx context.Context, caller *models.User, groupID string) ([]models.PublicProfile, error) {
	group, err := s.GetGroup(ctx, caller, groupID)
	if err != nil {
		return nil, err
	}
	profiles := make([]models.PublicProfile, 0, len(group.Users))
	for _, id := range group.Users {
		p, err := s.users.Profile(ctx, id)
		if stderrors.Is(err, errors.ErrUserNotExists) {
			zerolog.Ctx(ctx).Warn().Str("group_id", group.ID).Str("user_id", id).Msg("Skipping missing group member")
			continue
		}
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// Nearby returns the other members within radiusKm of the caller's last
// location, closest first. Members that never reported a location are
// left out.
func (s *GroupService) Nearby(ctx context.Context, caller *models.User, groupID string, radiusKm float64) ([]NearbyMember, error) {
	if radiusKm <= 0 {
		radiusKm = DefaultNearbyRadius
	}
	group, err := s.GetGroup(ctx, caller, groupID)
	if err != nil {
		return nil, err
	}
	if s.users.redisClient != nil {
		return s.nearbyFromIndex(ctx, caller, group, radiusKm)
	}

	nearby := []NearbyMember{}
	for _, id := range group.Users {
		if id == caller.ID {
			continue
		}
		p, err := s.users.Profile(ctx, id)
		if stderrors.Is(err, errors.ErrUserNotExists) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if p.Location == (models.Location{}) {
			continue
		}
		if d := haversine(caller.Location, p.Location); d <= radiusKm {
			nearby = append(nearby, NearbyMember{PublicProfile: p, Distance: d})
		}
	}
	sort.Slice(nearby, func(i, j int) bool { return nearby[i].Distance < nearby[j].Distance })
	return nearby, nil
}

func (s *GroupService) nearbyFromIndex(ctx context.Context, caller *models.User, group *models.Group, radiusKm float64) ([]NearbyMember, error) {
	results, err := s.users.redisClient.GeoRadius(ctx, geoKey, caller.Location.Lon(), caller.Location.Lat(), &redis.GeoRadiusQuery{
		Radius:   radiusKm,
		Unit:     "km",
		WithDist: true,
		Sort:     "ASC",
	}).Result()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal.Name, "failed to query nearby members", errors.ErrInternal.Status)
	}

	nearby := []NearbyMember{}
	for _, r := range results {
		if r.Name == caller.ID || !group.HasMember(r.Name) {
			continue
		}
		p, err := s.users.Profile(ctx, r.Name)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", r.Name).Msg("Failed to get nearby member")
			continue
		}
		nearby = append(nearby, NearbyMember{PublicProfile: p, Distance: r.Dist})
	}
	return nearby, nil
}

const earthRadiusKm = 6371.0

func haversine(a, b models.Location) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(b.Lat() - a.Lat())
	dLon := toRad(b.Lon() - a.Lon())
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat()))*math.Cos(toRad(b.Lat()))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

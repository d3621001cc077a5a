package services

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"

	"ffinder-server/models"
	"ffinder-server/store"
	"ffinder-server/utils/errors"
	"ffinder-server/utils/password"
)

// AuthScheme is the only scheme accepted in the Authorization header.
const AuthScheme = "FFINDER"

// ParseAuthorization splits "FFINDER <token>" and returns the token.
func ParseAuthorization(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || parts[0] != AuthScheme {
		return "", false
	}
	return parts[1], true
}

// CheckAuthorization resolves an Authorization header to its user. Every
// failure is reported as Forbidden.
func (s *UserService) CheckAuthorization(ctx context.Context, header string) (*models.User, error) {
	if header == "" {
		return nil, errors.ErrForbidden.WithMessage("Authorization header required")
	}
	token, ok := ParseAuthorization(header)
	if !ok {
		return nil, errors.ErrForbidden.WithMessage("Authorization header format must be " + AuthScheme + " <token>")
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.tokenSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, errors.ErrForbidden.WithMessage("Invalid access token")
	}

	user, err := s.findUser(ctx, store.Query{"access_token": token})
	if stderrors.Is(err, errors.ErrUserNotExists) || (err == nil && user.ID != claims.Subject) {
		return nil, errors.ErrForbidden.WithMessage("Invalid access token")
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) issueToken(userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  userID,
		ID:       uuid.NewString(),
		IssuedAt: jwt.NewNumericDate(now),
	}
	if s.tokenTTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.tokenTTL))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.tokenSecret)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrInternal.Name, "failed to generate token", http.StatusInternalServerError)
	}
	return signed, nil
}

// Register creates an email/password account.
func (s *UserService) Register(ctx context.Context, email, pw string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	if !models.EmailIsValid(email) {
		return nil, errors.ErrInvalidEmail
	}
	if len(pw) < password.MinLength {
		return nil, errors.ErrInvalidPassword
	}

	_, err := s.GetUserByEmail(ctx, email)
	if err == nil {
		return nil, errors.ErrUsedEmail
	}
	if !stderrors.Is(err, errors.ErrUserNotExists) {
		return nil, err
	}

	hash, err := password.Hash(pw)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal.Name, "failed to hash password", http.StatusInternalServerError)
	}

	user := models.NewUser("", email, email)
	user.Password = hash
	if user.AccessToken, err = s.issueToken(user.ID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user.LastRequest = &now

	ctx, cancel := store.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.Insert(ctx, store.Users, user); err != nil {
		if stderrors.Is(err, store.ErrDuplicate) {
			return nil, errors.ErrUsedEmail
		}
		return nil, dbError(err)
	}

	zerolog.Ctx(ctx).Info().Str("user_id", user.ID).Msg("Registered user")
	return user, nil
}

// Login verifies the password and rotates the access token.
func (s *UserService) Login(ctx context.Context, email, pw string) (*models.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !password.Check(user.Password, pw) {
		return nil, errors.ErrIncorrectEmailOrPassword
	}
	if err := s.startSession(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) startSession(ctx context.Context, user *models.User) error {
	token, err := s.issueToken(user.ID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	ctx, cancel := store.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err = s.store.Update(ctx, store.Users, store.Query{"id": user.ID}, store.Update{
		Set: bson.M{"access_token": token, "last_request": now},
	})
	if err != nil {
		return dbError(err)
	}
	user.AccessToken = token
	user.LastRequest = &now
	s.cacheProfile(ctx, user)
	return nil
}

// SocialLogin carries the identity reported by an external provider.
type SocialLogin struct {
	Provider     string
	UserID       string
	Username     string
	Email        string
	AccessToken  string
	AccessSecret string
}

// LoginWithProvider signs in the account created by an earlier login with
// the same provider and provider user id, or creates it. The provider's
// user id is the account id. Accounts with a password, or not linked to
// this provider, are never reachable through this path.
func (s *UserService) LoginWithProvider(ctx context.Context, in SocialLogin) (*models.User, error) {
	if in.Provider == "" || in.UserID == "" {
		return nil, errors.ErrBadRequest.WithMessage("provider and user_id are required")
	}
	email := models.NormalizeEmail(in.Email)
	if email != "" && !models.EmailIsValid(email) {
		return nil, errors.ErrInvalidEmail
	}

	user, err := s.GetUser(ctx, in.UserID)
	switch {
	case stderrors.Is(err, errors.ErrUserNotExists):
		if email != "" {
			if _, err := s.GetUserByEmail(ctx, email); err == nil {
				return nil, errors.ErrUsedEmail
			} else if !stderrors.Is(err, errors.ErrUserNotExists) {
				return nil, err
			}
		}
		user = models.NewUser(in.UserID, in.Username, email)
	case err != nil:
		return nil, err
	default:
		if user.Password != "" || !user.HasProvider(in.Provider) {
			zerolog.Ctx(ctx).Warn().Str("user_id", user.ID).Str("provider", in.Provider).Msg("Refused provider login for unlinked account")
			return nil, errors.ErrForbidden.WithMessage("This account is not linked to " + in.Provider)
		}
		if in.Username != "" {
			user.Username = in.Username
		}
	}
	if in.Username != "" {
		user.Name = in.Username
	}
	user.SetProvider(models.NewProvider(in.Provider, in.AccessToken, in.AccessSecret))

	if user.AccessToken, err = s.issueToken(user.ID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user.LastRequest = &now

	ctx, cancel := store.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.Upsert(ctx, store.Users, store.Query{"id": user.ID}, user); err != nil {
		if stderrors.Is(err, store.ErrDuplicate) {
			return nil, errors.ErrUsedEmail
		}
		return nil, dbError(err)
	}
	s.forgetProfile(ctx, user.ID)

	zerolog.Ctx(ctx).Info().Str("user_id", user.ID).Str("provider", in.Provider).Msg("Provider login")
	return user, nil
}

// RemoveUser deletes the account. Group memberships referencing it are
// skipped when locations are resolved.
func (s *UserService) RemoveUser(ctx context.Context, user *models.User) error {
	ctx, cancel := store.WithTimeout(ctx, s.timeout)
	defer cancel()
	removed, err := s.store.Remove(ctx, store.Users, store.Query{"id": user.ID})
	if err != nil {
		return dbError(err)
	}
	if removed == 0 {
		return errors.ErrUserNotExists
	}
	s.forgetProfile(ctx, user.ID)
	if s.redisClient != nil {
		if err := s.redisClient.ZRem(ctx, geoKey, user.ID).Err(); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to drop user from geospatial index")
		}
	}
	return nil
}

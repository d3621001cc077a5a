package services

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"

	"ffinder-server/metrics"
	"ffinder-server/models"
	"ffinder-server/store"
	"ffinder-server/utils/errors"
	"ffinder-server/utils/password"
)

type InviteService struct {
	store     store.Store
	users     *UserService
	mailer    Mailer
	publicURL string
	timeout   time.Duration
}

func NewInviteService(st store.Store, users *UserService, mailer Mailer, publicURL string, timeout time.Duration) *InviteService {
	return &InviteService{
		store:     st,
		users:     users,
		mailer:    mailer,
		publicURL: strings.TrimRight(publicURL, "/"),
		timeout:   timeout,
	}
}

// ActivationLink is the page the invitee opens to choose a password.
func (s *InviteService) ActivationLink(token string) string {
	return s.publicURL + "/confirm/" + token
}

// Issue creates (or reuses) the pending invitation of email to group and
// emails the activation link. Delivery failures are logged, not returned.
func (s *InviteService) Issue(ctx context.Context, inviter *models.User, group *models.Group, email string) (*models.Invite, error) {
	invite, err := s.pending(ctx, email, group.ID)
	if err != nil {
		return nil, err
	}
	if invite == nil {
		if invite, err = models.NewInvite(email, inviter.ID, group.ID); err != nil {
			return nil, errors.Wrap(err, errors.ErrInternal.Name, "failed to create invitation", errors.ErrInternal.Status)
		}
		insertCtx, cancel := store.WithTimeout(ctx, s.timeout)
		err = s.store.Insert(insertCtx, store.Invites, invite)
		cancel()
		if err != nil {
			return nil, dbError(err)
		}
	}

	inviterName := inviter.Username
	if inviterName == "" {
		inviterName = inviter.Email
	}
	err = s.mailer.SendInvite(ctx, InviteMail{
		To:          email,
		InviterName: inviterName,
		GroupName:   group.Name,
		Link:        s.ActivationLink(invite.Token),
	})
	if err != nil {
		metrics.InvitesSent.WithLabelValues("failed").Inc()
		zerolog.Ctx(ctx).Error().Err(err).Str("email", email).Msg("Failed to send invitation")
	} else {
		metrics.InvitesSent.WithLabelValues("sent").Inc()
	}
	return invite, nil
}

func (s *InviteService) pending(ctx context.Context, email, groupID string) (*models.Invite, error) {
	ctx, cancel := store.WithTimeout(ctx, s.timeout)
	defer cancel()
	raw, err := s.store.FindOne(ctx, store.Invites, store.Query{"email": email, "group_id": groupID, "pending": true})
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dbError(err)
	}
	invite, err := models.InviteFromDocument(raw)
	if err != nil {
		return nil, dbError(err)
	}
	return invite, nil
}

// Lookup returns the invitation for token, pending or not.
func (s *InviteService) Lookup(ctx context.Context, token string) (*models.Invite, error) {
	ctx, cancel := store.WithTimeout(ctx, s.timeout)
	defer cancel()
	raw, err := s.store.FindOne(ctx, store.Invites, store.Query{"token": token})
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.ErrNotFound.WithMessage("invitation not found")
	}
	if err != nil {
		return nil, dbError(err)
	}
	invite, err := models.InviteFromDocument(raw)
	if err != nil {
		return nil, dbError(err)
	}
	return invite, nil
}

func (s *InviteService) setPending(ctx context.Context, token string, from, to bool) (int64, error) {
	ctx, cancel := store.WithTimeout(ctx, s.timeout)
	defer cancel()
	matched, err := s.store.Update(ctx, store.Invites, store.Query{"token": token, "pending": from}, store.Update{
		Set: bson.M{"pending": to},
	})
	if err != nil {
		return 0, dbError(err)
	}
	return matched, nil
}

// Activate exchanges a pending invitation for an account: the invite is
// claimed, the user registered with the invited email and added to the
// inviter's group. A used token fails with ErrInviteAlreadyUsed; a failed
// registration releases the claim.
func (s *InviteService) Activate(ctx context.Context, token, pw string) (*models.User, error) {
	invite, err := s.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	if !invite.Pending {
		return nil, errors.ErrInviteAlreadyUsed
	}
	if len(pw) < password.MinLength {
		return nil, errors.ErrInvalidPassword
	}

	claimed, err := s.setPending(ctx, token, true, false)
	if err != nil {
		return nil, err
	}
	if claimed == 0 {
		return nil, errors.ErrInviteAlreadyUsed
	}

	user, err := s.users.Register(ctx, invite.Email, pw)
	if err != nil {
		if _, rerr := s.setPending(ctx, token, false, true); rerr != nil {
			zerolog.Ctx(ctx).Error().Err(rerr).Msg("Failed to release invitation after failed registration")
		}
		return nil, err
	}

	groupCtx, cancel := store.WithTimeout(ctx, s.timeout)
	defer cancel()
	added, err := addToGroup(groupCtx, s.store, invite.GroupID, user.ID)
	if err != nil {
		return nil, err
	}
	if !added {
		zerolog.Ctx(ctx).Warn().Str("group_id", invite.GroupID).Msg("Invited group no longer exists")
	}

	s.acceptOtherInvites(ctx, user)

	zerolog.Ctx(ctx).Info().Str("user_id", user.ID).Str("group_id", invite.GroupID).Msg("Activated invitation")
	return user, nil
}

// acceptOtherInvites adds a newly activated user to the groups of the
// remaining pending invitations for the same email, and marks them used.
// Failures are logged; the account already exists at this point.
func (s *InviteService) acceptOtherInvites(ctx context.Context, user *models.User) {
	findCtx, cancel := store.WithTimeout(ctx, s.timeout)
	docs, err := s.store.Find(findCtx, store.Invites, store.Query{"email": user.Email, "pending": true})
	cancel()
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("user_id", user.ID).Msg("Failed to list pending invitations")
		return
	}

	for _, raw := range docs {
		invite, err := models.InviteFromDocument(raw)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Skipping unreadable invitation")
			continue
		}
		claimed, err := s.setPending(ctx, invite.Token, true, false)
		if err != nil || claimed == 0 {
			continue
		}
		groupCtx, cancel := store.WithTimeout(ctx, s.timeout)
		_, err = addToGroup(groupCtx, s.store, invite.GroupID, user.ID)
		cancel()
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("group_id", invite.GroupID).Msg("Failed to join invited group")
			continue
		}
		zerolog.Ctx(ctx).Info().Str("user_id", user.ID).Str("group_id", invite.GroupID).Msg("Accepted pending invitation")
	}
}

package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Invite links a not-yet-registered email to the member who invited it and
// the group it will join. Pending flips to false exactly once, on activation.
type Invite struct {
	Email       string    `json:"email" bson:"email"`
	InviterID   string    `json:"inviter_id" bson:"inviter_id"`
	GroupID     string    `json:"group_id" bson:"group_id"`
	Token       string    `json:"-" bson:"token"`
	CreatedDate time.Time `json:"created_date" bson:"created_date"`
	Pending     bool      `json:"pending" bson:"pending"`
}

// GenerateToken returns 16 random bytes, hex encoded.
func GenerateToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func NewInvite(email, inviterID, groupID string) (*Invite, error) {
	token, err := GenerateToken()
	if err != nil {
		return nil, err
	}
	return &Invite{
		Email:       email,
		InviterID:   inviterID,
		GroupID:     groupID,
		Token:       token,
		CreatedDate: time.Now().UTC(),
		Pending:     true,
	}, nil
}

func InviteFromDocument(raw bson.Raw) (*Invite, error) {
	return fromDocument(raw, &Invite{Pending: true})
}

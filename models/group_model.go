package models

import (
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

type Group struct {
	ID          string    `json:"id" bson:"id"`
	Name        string    `json:"name" bson:"name"`
	Users       []string  `json:"users" bson:"users"`
	OwnerID     string    `json:"owner_id" bson:"owner_id"`
	CreatedDate time.Time `json:"created_date" bson:"created_date"`
}

// NewGroup creates a group whose only member is its creator.
func NewGroup(id, name, creatorID string) *Group {
	return &Group{
		ID:          id,
		Name:        name,
		Users:       []string{creatorID},
		OwnerID:     creatorID,
		CreatedDate: time.Now().UTC(),
	}
}

func GroupFromDocument(raw bson.Raw) (*Group, error) {
	return fromDocument(raw, &Group{Users: []string{}})
}

func (g *Group) HasMember(userID string) bool {
	return slices.Contains(g.Users, userID)
}

// AddMember adds userID once; it reports whether the list changed.
func (g *Group) AddMember(userID string) bool {
	if g.HasMember(userID) {
		return false
	}
	g.Users = append(g.Users, userID)
	return true
}

// RemoveMember reports whether userID was a member.
func (g *Group) RemoveMember(userID string) bool {
	i := slices.Index(g.Users, userID)
	if i < 0 {
		return false
	}
	g.Users = slices.Delete(g.Users, i, i+1)
	return true
}

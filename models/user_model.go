package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

var emailPattern = regexp.MustCompile(`^[\w\d.+-]+@([\w\d.]+\.)+[\w]+$`)

// EmailIsValid reports whether email looks like user@domain.tld.
func EmailIsValid(email string) bool {
	return emailPattern.MatchString(email)
}

// NormalizeEmail trims and lower-cases an address before it is stored or queried.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Location is a [lat, lon] pair.
type Location [2]float64

func (l Location) Lat() float64 { return l[0] }
func (l Location) Lon() float64 { return l[1] }

type User struct {
	ID          string     `json:"id" bson:"id"`
	Username    string     `json:"username" bson:"username"`
	Name        string     `json:"name" bson:"name"`
	Email       string     `json:"email" bson:"email"`
	Password    string     `json:"-" bson:"password"`
	Providers   []Provider `json:"providers" bson:"providers"`
	AccessToken string     `json:"-" bson:"access_token"`
	LastRequest *time.Time `json:"last_request" bson:"last_request"`
	Location    Location   `json:"location" bson:"location"`
	JoinedDate  time.Time  `json:"joined_date" bson:"joined_date"`
}

// PublicProfile is what other group members see.
type PublicProfile struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Location    Location   `json:"location"`
	LastRequest *time.Time `json:"last_request"`
	JoinedDate  time.Time  `json:"joined_date"`
}

// SessionProfile is the owner's own view, including the access token.
type SessionProfile struct {
	PublicProfile
	Providers   []Provider `json:"providers"`
	AccessToken string     `json:"access_token"`
}

// GenerateUserID returns a random 32-character hex identifier.
func GenerateUserID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func defaultUser() *User {
	return &User{Providers: []Provider{}}
}

// NewUser builds a user with a generated id. Pass an empty id to generate one.
func NewUser(id, username, email string) *User {
	u := defaultUser()
	if id == "" {
		id = GenerateUserID()
	}
	u.ID = id
	u.Username = username
	u.Email = email
	u.JoinedDate = time.Now().UTC()
	return u
}

// UserFromDocument hydrates a User, filling defaults for missing keys.
func UserFromDocument(raw bson.Raw) (*User, error) {
	return fromDocument(raw, defaultUser())
}

// SetProvider links p, replacing any existing provider with the same name.
func (u *User) SetProvider(p Provider) {
	for i := range u.Providers {
		if u.Providers[i].Name == p.Name {
			u.Providers[i] = p
			return
		}
	}
	u.Providers = append(u.Providers, p)
}

// HasProvider reports whether a provider named name is linked.
func (u *User) HasProvider(name string) bool {
	for _, p := range u.Providers {
		if p.Name == name {
			return true
		}
	}
	return false
}

func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:          u.ID,
		Username:    u.Username,
		Name:        u.Name,
		Email:       u.Email,
		Location:    u.Location,
		LastRequest: u.LastRequest,
		JoinedDate:  u.JoinedDate,
	}
}

func (u *User) Session() SessionProfile {
	providers := u.Providers
	if providers == nil {
		providers = []Provider{}
	}
	return SessionProfile{
		PublicProfile: u.Public(),
		Providers:     providers,
		AccessToken:   u.AccessToken,
	}
}

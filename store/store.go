// Package store is the document store adapter. Every operation names the
// collection it targets; there is no "currently selected" collection.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

var (
	// ErrNoCollection is returned when an operation is invoked without a
	// collection name.
	ErrNoCollection = errors.New("store: invalid operation: no collection bound")
	// ErrNotFound is returned by FindOne when nothing matches.
	ErrNotFound = errors.New("store: document not found")
	// ErrDuplicate is returned when a write violates a unique index.
	ErrDuplicate = errors.New("store: duplicate key")
	// ErrEmptyUpdate is returned by Update when the update carries no changes.
	ErrEmptyUpdate = errors.New("store: called empty update")
)

// Collection names.
const (
	Users   = "users"
	Groups  = "groups"
	Invites = "invites"
	Rooms   = "rooms"
	Beacons = "beacons"
)

// Query is an equality match on top-level document keys. A key whose stored
// value is an array matches when the array contains the queried value.
// A nil Query matches every document.
type Query map[string]any

// Update groups the field changes applied by Store.Update.
type Update struct {
	Set      bson.M
	AddToSet bson.M
	Pull     bson.M
}

// IsEmpty reports whether u changes nothing.
func (u Update) IsEmpty() bool {
	return len(u.Set) == 0 && len(u.AddToSet) == 0 && len(u.Pull) == 0
}

// document renders u as a MongoDB update document.
func (u Update) document() bson.M {
	doc := bson.M{}
	if len(u.Set) > 0 {
		doc["$set"] = u.Set
	}
	if len(u.AddToSet) > 0 {
		doc["$addToSet"] = u.AddToSet
	}
	if len(u.Pull) > 0 {
		doc["$pull"] = u.Pull
	}
	return doc
}

// Store is implemented by every document store backend. Implementations
// must be safe for concurrent use.
type Store interface {
	Insert(ctx context.Context, collection string, doc any) error
	// Remove deletes every matching document and returns how many were removed.
	Remove(ctx context.Context, collection string, q Query) (int64, error)
	// Update applies u to the first matching document and returns the
	// number of documents matched (0 or 1).
	Update(ctx context.Context, collection string, q Query, u Update) (int64, error)
	// Upsert replaces the first matching document with doc, inserting doc
	// when nothing matches.
	Upsert(ctx context.Context, collection string, q Query, doc any) error
	Find(ctx context.Context, collection string, q Query) ([]bson.Raw, error)
	FindOne(ctx context.Context, collection string, q Query) (bson.Raw, error)
	Close(ctx context.Context) error
}

// Config selects and configures a backend.
type Config struct {
	Driver    string // "mongo" or "badger"
	MongoURI  string
	Database  string
	BadgerDir string
	InMemory  bool
}

// Open connects to the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "mongo":
		return NewMongoStore(ctx, cfg.MongoURI, cfg.Database)
	case "badger":
		return NewBadgerStore(cfg.BadgerDir, cfg.InMemory)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// Ping is satisfied by backends that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WithTimeout derives the per-call context used by services.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

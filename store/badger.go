package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
)

// BadgerStore keeps documents in an embedded Badger database, one key per
// document: "<collection>/<uuid v7>". Keys sort by insertion time, so Find
// returns documents in insertion order. Unique indexes are not enforced.
type BadgerStore struct {
	InMemory bool
	DB       *badger.DB
}

// NewBadgerStore opens a Badger database in dir. Pass inMemory to keep
// everything in memory (useful in tests, for example).
func NewBadgerStore(dir string, inMemory bool) (*BadgerStore, error) {
	if inMemory {
		dir = ""
	}
	opts := badger.DefaultOptions(dir).
		WithInMemory(inMemory).
		WithLogger(badgerLogger{log.Logger.With().Str("component", "badger").Logger()})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger open: %w", err)
	}
	return &BadgerStore{DB: db, InMemory: inMemory}, nil
}

// maxTxnRetries bounds how often a write transaction is rerun after losing
// a conflict to a concurrent writer.
const maxTxnRetries = 100

// update runs fn in a read-write transaction, rerunning it while Badger
// reports a conflict.
func (s *BadgerStore) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		err = s.DB.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("badger: giving up after %d conflicts: %w", maxTxnRetries, err)
}

func prefixFor(collection string) []byte {
	return []byte(collection + "/")
}

func makeDocKey(collection string) []byte {
	return append(prefixFor(collection), uuid.Must(uuid.NewV7()).String()...)
}

// scan calls fn for every document in collection matching q, stopping when
// fn returns false.
func scan(txn *badger.Txn, collection string, q Query, fn func(key []byte, doc bson.Raw) bool) error {
	prefix := prefixFor(collection)
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		doc := bson.Raw(value)
		ok, err := matches(doc, q)
		if err != nil {
			return err
		}
		if ok && !fn(item.KeyCopy(nil), doc) {
			return nil
		}
	}
	return nil
}

func (s *BadgerStore) Insert(_ context.Context, collection string, doc any) error {
	if collection == "" {
		return ErrNoCollection
	}
	data, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	return s.update(func(txn *badger.Txn) error {
		return txn.Set(makeDocKey(collection), data)
	})
}

func (s *BadgerStore) Remove(_ context.Context, collection string, q Query) (int64, error) {
	if collection == "" {
		return 0, ErrNoCollection
	}
	var removed int64
	err := s.update(func(txn *badger.Txn) error {
		var keys [][]byte
		err := scan(txn, collection, q, func(key []byte, _ bson.Raw) bool {
			keys = append(keys, key)
			return true
		})
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		removed = int64(len(keys))
		return nil
	})
	return removed, err
}

func (s *BadgerStore) Update(_ context.Context, collection string, q Query, u Update) (int64, error) {
	if collection == "" {
		return 0, ErrNoCollection
	}
	if u.IsEmpty() {
		return 0, ErrEmptyUpdate
	}
	var matched int64
	err := s.update(func(txn *badger.Txn) error {
		matched = 0
		var (
			key []byte
			doc bson.Raw
		)
		err := scan(txn, collection, q, func(k []byte, d bson.Raw) bool {
			key, doc = k, d
			return false
		})
		if err != nil || key == nil {
			return err
		}
		updated, err := applyUpdate(doc, u)
		if err != nil {
			return err
		}
		matched = 1
		return txn.Set(key, updated)
	})
	return matched, err
}

func (s *BadgerStore) Upsert(_ context.Context, collection string, q Query, doc any) error {
	if collection == "" {
		return ErrNoCollection
	}
	data, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	return s.update(func(txn *badger.Txn) error {
		var key []byte
		err := scan(txn, collection, q, func(k []byte, _ bson.Raw) bool {
			key = k
			return false
		})
		if err != nil {
			return err
		}
		if key == nil {
			key = makeDocKey(collection)
		}
		return txn.Set(key, data)
	})
}

func (s *BadgerStore) Find(_ context.Context, collection string, q Query) ([]bson.Raw, error) {
	if collection == "" {
		return nil, ErrNoCollection
	}
	var docs []bson.Raw
	err := s.DB.View(func(txn *badger.Txn) error {
		return scan(txn, collection, q, func(_ []byte, doc bson.Raw) bool {
			docs = append(docs, doc)
			return true
		})
	})
	return docs, err
}

func (s *BadgerStore) FindOne(_ context.Context, collection string, q Query) (bson.Raw, error) {
	if collection == "" {
		return nil, ErrNoCollection
	}
	var found bson.Raw
	err := s.DB.View(func(txn *badger.Txn) error {
		return scan(txn, collection, q, func(_ []byte, doc bson.Raw) bool {
			found = doc
			return false
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

func (s *BadgerStore) Ping(context.Context) error {
	if s.DB.IsClosed() {
		return fmt.Errorf("badger: database closed")
	}
	return nil
}

func (s *BadgerStore) Close(context.Context) error {
	return s.DB.Close()
}

// matches reports whether doc satisfies every key of q.
func matches(doc bson.Raw, q Query) (bool, error) {
	for key, want := range q {
		got, err := doc.LookupErr(key)
		if err != nil {
			return false, nil
		}
		wantValue, err := rawValueOf(want)
		if err != nil {
			return false, err
		}
		if got.Type == bson.TypeArray && wantValue.Type != bson.TypeArray {
			values, err := got.Array().Values()
			if err != nil {
				return false, err
			}
			if !containsRaw(values, wantValue) {
				return false, nil
			}
			continue
		}
		if !rawEqual(got, wantValue) {
			return false, nil
		}
	}
	return true, nil
}

// applyUpdate executes the $set, $addToSet and $pull groups of u against doc.
func applyUpdate(doc bson.Raw, u Update) ([]byte, error) {
	var m bson.M
	if err := bson.Unmarshal(doc, &m); err != nil {
		return nil, err
	}
	for k, v := range u.Set {
		m[k] = v
	}
	for k, v := range u.AddToSet {
		arr, _ := m[k].(bson.A)
		present, err := containsValue(arr, v)
		if err != nil {
			return nil, err
		}
		if !present {
			arr = append(arr, v)
		}
		m[k] = arr
	}
	for k, v := range u.Pull {
		arr, _ := m[k].(bson.A)
		kept := bson.A{}
		for _, elem := range arr {
			eq, err := valuesEqual(elem, v)
			if err != nil {
				return nil, err
			}
			if !eq {
				kept = append(kept, elem)
			}
		}
		m[k] = kept
	}
	return bson.Marshal(m)
}

func rawValueOf(v any) (bson.RawValue, error) {
	t, data, err := bson.MarshalValue(v)
	if err != nil {
		return bson.RawValue{}, fmt.Errorf("marshal query value: %w", err)
	}
	return bson.RawValue{Type: t, Value: data}, nil
}

func containsValue(arr bson.A, v any) (bool, error) {
	for _, elem := range arr {
		eq, err := valuesEqual(elem, v)
		if err != nil {
			return false, err
		}
		if eq {
			return true, nil
		}
	}
	return false, nil
}

func containsRaw(values []bson.RawValue, want bson.RawValue) bool {
	for _, v := range values {
		if rawEqual(v, want) {
			return true
		}
	}
	return false
}

func valuesEqual(a, b any) (bool, error) {
	ra, err := rawValueOf(a)
	if err != nil {
		return false, err
	}
	rb, err := rawValueOf(b)
	if err != nil {
		return false, err
	}
	return rawEqual(ra, rb), nil
}

// rawEqual compares encoded values; numbers compare by value across
// int32, int64 and double.
func rawEqual(a, b bson.RawValue) bool {
	if x, ok := number(a); ok {
		y, ok := number(b)
		return ok && x == y
	}
	return a.Type == b.Type && bytes.Equal(a.Value, b.Value)
}

func number(v bson.RawValue) (float64, bool) {
	switch v.Type {
	case bson.TypeDouble:
		return v.DoubleOK()
	case bson.TypeInt32:
		i, ok := v.Int32OK()
		return float64(i), ok
	case bson.TypeInt64:
		i, ok := v.Int64OK()
		return float64(i), ok
	}
	return 0, false
}

// badgerLogger routes Badger's internal logging through zerolog.
type badgerLogger struct {
	zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.Logger.Error().Msgf(format, args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Logger.Warn().Msgf(format, args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.Logger.Debug().Msgf(format, args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.Logger.Trace().Msgf(format, args...)
}

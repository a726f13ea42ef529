// Package credstore persists the client's bearer credentials. The dispatcher
// only ever reads and writes two fixed keys; everything else about the token
// lifecycle (issuance, refresh) belongs to the backend.
package credstore

import (
	"errors"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
)

const (
	KeyAuthToken    = "auth_token"
	KeyRefreshToken = "refresh_token"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("credstore: key not found")

// Store is a minimal string key/value store.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// AuthToken reads the bearer token, mapping "absent" to the empty string so
// callers can decide whether to send an Authorization header with a single
// comparison.
func AuthToken(s Store) string {
	if s == nil {
		return ""
	}
	v, err := s.Get(KeyAuthToken)
	if err != nil {
		return ""
	}
	return v
}

// DiskStore keeps credentials in an embedded leveldb database.
type DiskStore struct {
	db *leveldb.DB
}

// Open opens (creating if needed) the credential database at path.
func Open(path string) (*DiskStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &DiskStore{db: db}, nil
}

func (s *DiskStore) Get(key string) (string, error) {
	v, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (s *DiskStore) Set(key, value string) error {
	return s.db.Put([]byte(key), []byte(value), nil)
}

func (s *DiskStore) Delete(key string) error {
	return s.db.Delete([]byte(key), nil)
}

func (s *DiskStore) Close() error {
	return s.db.Close()
}

// MemStore is an in-memory Store for tests and ephemeral sessions.
type MemStore struct {
	mu sync.Mutex
	m  map[string]string
}

// Memory returns an empty in-memory store.
func Memory() *MemStore {
	return &MemStore{m: make(map[string]string)}
}

func (s *MemStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemStore) Set(key, value string) error {
	s.mu.Lock()
	s.m[key] = value
	s.mu.Unlock()
	return nil
}

func (s *MemStore) Delete(key string) error {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
	return nil
}

func (s *MemStore) Close() error { return nil }

// Package userstore implements iface.UserStore (and the auth package's
// narrower Credentials interface) in memory, identifying each user with a
// google/uuid-generated ID.
package userstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mues-io/muesd/iface"
)

type record struct {
	user iface.User
	hash []byte
}

// MemoryStore is a reference UserStore: a mutex-guarded map, with no
// persistence across process restarts. A real persistent backend is
// out of scope for the core; this exists to make the Engine runnable
// end to end.
type MemoryStore struct {
	mu     sync.RWMutex
	byName map[string]*record
	byID   map[string]*record
}

// New creates an empty MemoryStore.
func New() *MemoryStore {
	return &MemoryStore{
		byName: make(map[string]*record),
		byID:   make(map[string]*record),
	}
}

// FetchUser implements iface.UserStore.
func (s *MemoryStore) FetchUser(_ context.Context, name string) (iface.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byName[name]
	if !ok {
		return iface.User{}, iface.ErrNoSuchUser
	}
	return r.user, nil
}

// StoreUser implements iface.UserStore: it updates an existing record's
// identity fields in place. It does not touch the password hash.
func (s *MemoryStore) StoreUser(_ context.Context, u iface.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[u.ID]
	if !ok {
		return iface.ErrNoSuchUser
	}
	if r.user.Name != u.Name {
		delete(s.byName, r.user.Name)
		s.byName[u.Name] = r
	}
	r.user = u
	return nil
}

// CreateUser implements iface.UserStore, assigning a new UUID and a random
// initial password (the caller is expected to reset it through a separate
// credential-management path; this core never exposes a plaintext password
// setter on the hot path).
func (s *MemoryStore) CreateUser(_ context.Context, name string) (iface.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byName[name]; exists {
		return iface.User{}, iface.ErrConflict
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return iface.User{}, err
	}
	u := iface.User{ID: uuid.NewString(), Name: name}
	r := &record{user: u, hash: hash}
	s.byName[name] = r
	s.byID[u.ID] = r
	return u, nil
}

// DeleteUser implements iface.UserStore.
func (s *MemoryStore) DeleteUser(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byName[name]
	if !ok {
		return iface.ErrNoSuchUser
	}
	delete(s.byName, name)
	delete(s.byID, r.user.ID)
	return nil
}

// ListUsernames implements iface.UserStore.
func (s *MemoryStore) ListUsernames(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.byName))
	for name := range s.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// SetPassword replaces name's credential hash, bcrypt-hashing password at
// the default cost.
func (s *MemoryStore) SetPassword(name, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byName[name]
	if !ok {
		return iface.ErrNoSuchUser
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	r.hash = hash
	return nil
}

// PasswordHash implements the auth package's Credentials interface.
func (s *MemoryStore) PasswordHash(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byName[name]
	if !ok {
		return nil, iface.ErrNoSuchUser
	}
	return r.hash, nil
}

var _ iface.UserStore = (*MemoryStore)(nil)

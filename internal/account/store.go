package account

import (
	"context"
	"sync"

	"prato/pkg/platform/sentinel"
)

// Store persists users and organizations. Implementations wrap failures in
// pkg/platform/sentinel errors.
type Store interface {
	SaveUser(ctx context.Context, user *User) error
	FindUserByUsername(ctx context.Context, username string) (*User, error)
	SaveOrganization(ctx context.Context, org *Organization) error
	CountUsers(ctx context.Context) (int, error)
	CountOrganizations(ctx context.Context) (int, error)
}

// InMemoryStore backs development and tests.
type InMemoryStore struct {
	mu    sync.RWMutex
	users map[string]User // keyed by username
	orgs  map[string]Organization
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users: make(map[string]User),
		orgs:  make(map[string]Organization),
	}
}

func (s *InMemoryStore) SaveUser(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.Username] = *user
	return nil
}

func (s *InMemoryStore) FindUserByUsername(_ context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[username]; ok {
		out := user
		return &out, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) SaveOrganization(_ context.Context, org *Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs[org.ID] = *org
	return nil
}

func (s *InMemoryStore) CountUsers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

func (s *InMemoryStore) CountOrganizations(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orgs), nil
}

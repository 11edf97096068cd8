package store

import (
	"context"
	"sync"

	"prato/internal/registration/models"
	"prato/pkg/platform/sentinel"
)

// In-memory stores keep development and tests lightweight. They intentionally
// favor clarity over performance.

// InMemorySessionStore holds sessions in a map. It never expires entries;
// dev deployments are short-lived and the Redis store owns TTL in production.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string]models.Session)}
}

func (s *InMemorySessionStore) Save(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = *cloneSession(session)
	return nil
}

func (s *InMemorySessionStore) FindByID(_ context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if session, ok := s.sessions[id]; ok {
		out := cloneSession(&session)
		return out, nil
	}
	return nil, sentinel.ErrNotFound
}

// cloneSession guards callers against aliasing the stored Step1 pointer.
func cloneSession(in *models.Session) *models.Session {
	out := *in
	if in.Step1 != nil {
		step1 := *in.Step1
		out.Step1 = &step1
	}
	return &out
}

// InMemoryRecordStore indexes completed registrations by type and normalized
// document digits.
type InMemoryRecordStore struct {
	mu      sync.RWMutex
	records map[models.RegistrationType]map[string]models.Record
}

func NewInMemoryRecordStore() *InMemoryRecordStore {
	return &InMemoryRecordStore{
		records: map[models.RegistrationType]map[string]models.Record{
			models.TypeCNPJ: {},
			models.TypeCPF:  {},
		},
	}
}

func (s *InMemoryRecordStore) FindCompletedByDocument(_ context.Context, document string, t models.RegistrationType) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.records[t][document]; ok {
		out := record
		return &out, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryRecordStore) Create(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDoc, ok := s.records[record.Type]
	if !ok {
		byDoc = make(map[string]models.Record)
		s.records[record.Type] = byDoc
	}
	if _, exists := byDoc[record.Document]; exists {
		return sentinel.ErrConflict
	}
	byDoc[record.Document] = *record
	return nil
}

func (s *InMemoryRecordStore) CountByType(_ context.Context, t models.RegistrationType) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[t]), nil
}

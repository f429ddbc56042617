package registry

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/yesahmedyes/lecture-assistant/pkg/pipeline"
)

// MemoryStore keeps session and trace records in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]SessionRecord
	records  map[uuid.UUID][]pipeline.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[uuid.UUID]SessionRecord),
		records:  make(map[uuid.UUID][]pipeline.Record),
	}
}

func (s *MemoryStore) SaveSession(_ context.Context, rec SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[rec.ID] = rec
	return nil
}

func (s *MemoryStore) SaveRecord(_ context.Context, sessionID uuid.UUID, rec pipeline.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[sessionID] = append(s.records[sessionID], rec)
	return nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	delete(s.records, id)
	return nil
}

// Session returns the stored lifecycle record, for tests.
func (s *MemoryStore) Session(id uuid.UUID) (SessionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	return rec, ok
}

// Records returns the stored records for a session, for tests.
func (s *MemoryStore) Records(sessionID uuid.UUID) []pipeline.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pipeline.Record(nil), s.records[sessionID]...)
}

// Package pipeline wires extraction, chunking, retrieval, and answer
// generation into the document and query operations callers use.
package pipeline

import (
	"sync"

	"docquery/internal/models"
	"docquery/internal/util"
)

// DocStore tracks processed documents for the life of the process. Updates
// are atomic per document id; a later Put for the same id overwrites.
type DocStore struct {
	mu      sync.RWMutex
	records map[string]models.DocumentRecord
}

func NewDocStore() *DocStore {
	return &DocStore{records: make(map[string]models.DocumentRecord)}
}

func (s *DocStore) Put(rec models.DocumentRecord) {
	s.mu.Lock()
	s.records[rec.DocumentID] = rec
	s.mu.Unlock()
}

func (s *DocStore) Get(documentID string) (models.DocumentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[documentID]
	if !ok {
		return models.DocumentRecord{}, util.ErrNotFound
	}
	return rec, nil
}

// All returns a copy of every record keyed by document id.
func (s *DocStore) All() map[string]models.DocumentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.DocumentRecord, len(s.records))
	for id, rec := range s.records {
		out[id] = rec
	}
	return out
}

func (s *DocStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

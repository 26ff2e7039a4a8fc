package record

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for tests and for running without AWS
// credentials. Writes never fail unless FailWrites is set.
type MemoryStore struct {
	mu              sync.Mutex
	classifications []*Classification
	analyses        []*Analysis

	// FailWrites makes every write report failure, for testing the
	// best-effort paths.
	FailWrites bool
}

// NewMemoryStore creates an empty in-memory sink.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// PutClassification implements Store.
func (m *MemoryStore) PutClassification(_ context.Context, rec *Classification) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return false
	}
	m.classifications = append(m.classifications, rec)
	return true
}

// PutAnalysis implements Store.
func (m *MemoryStore) PutAnalysis(_ context.Context, rec *Analysis) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return false
	}
	m.analyses = append(m.analyses, rec)
	return true
}

// Classifications returns a snapshot of stored classification records.
func (m *MemoryStore) Classifications() []*Classification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Classification, len(m.classifications))
	copy(out, m.classifications)
	return out
}

// Analyses returns a snapshot of stored analysis records.
func (m *MemoryStore) Analyses() []*Analysis {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Analysis, len(m.analyses))
	copy(out, m.analyses)
	return out
}

package pipeline

import (
	"context"
	"sync"
	"time"
)

// OutcomeStore persists exactly one record per message ID.
type OutcomeStore interface {
	// Get returns the record for messageID, if one exists.
	Get(ctx context.Context, messageID string) (Record, bool, error)

	// Put stores the first record for a message. A second Put for the
	// same message ID fails with ErrAlreadyDecided.
	Put(ctx context.Context, rec Record) error

	// Resolve applies a review decision to a quarantined record and
	// returns the resolved record. Resolving a non-quarantined record
	// fails with ErrNotQuarantined; an unknown message with ErrNotFound.
	Resolve(ctx context.Context, messageID string, final Outcome, reviewer string) (Record, error)

	// Quarantined lists records awaiting review.
	Quarantined(ctx context.Context) ([]Record, error)

	// Close releases the store's resources.
	Close() error
}

// MemoryStore is the in-memory OutcomeStore. Used when no outcome database
// is configured, and by tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Get implements OutcomeStore.
func (m *MemoryStore) Get(ctx context.Context, messageID string) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[messageID]
	return rec, ok, nil
}

// Put implements OutcomeStore.
func (m *MemoryStore) Put(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.MessageID]; ok {
		return ErrAlreadyDecided
	}
	m.records[rec.MessageID] = rec
	return nil
}

// Resolve implements OutcomeStore.
func (m *MemoryStore) Resolve(ctx context.Context, messageID string, final Outcome, reviewer string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[messageID]
	if !ok {
		return Record{}, ErrNotFound
	}
	if err := rec.resolve(final, reviewer, time.Now().UTC()); err != nil {
		return Record{}, err
	}
	m.records[messageID] = rec
	return rec, nil
}

// Quarantined implements OutcomeStore.
func (m *MemoryStore) Quarantined(ctx context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []Record
	for _, rec := range m.records {
		if rec.Outcome == OutcomeQuarantined {
			pending = append(pending, rec)
		}
	}
	return pending, nil
}

// Close implements OutcomeStore.
func (m *MemoryStore) Close() error { return nil }

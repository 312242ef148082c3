package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oralab/exo/pkg/core"
	"github.com/oralab/exo/pkg/core/types"
)

// Memory is the in-process store used when no database is configured.
type Memory struct {
	mu      sync.Mutex
	records []types.SessionRecord
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory { return &Memory{} }

// Save appends the record, assigning an id when missing.
func (m *Memory) Save(ctx context.Context, record types.SessionRecord) (string, error) {
	if record.SessionID == "" {
		record.SessionID = uuid.NewString()
	}
	if record.CreatedAt == "" {
		record.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	m.mu.Lock()
	m.records = append(m.records, record)
	m.mu.Unlock()
	return record.SessionID, nil
}

// Get returns one record by id.
func (m *Memory) Get(ctx context.Context, id string) (*types.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].SessionID == id {
			r := m.records[i]
			return &r, nil
		}
	}
	return nil, core.NewNotFoundError("session " + id + " not found")
}

// History returns the most recent records, newest first.
func (m *Memory) History(ctx context.Context, limit int) ([]types.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.records)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]types.SessionRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

// Close is a no-op.
func (m *Memory) Close() {}

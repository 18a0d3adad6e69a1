package memory

import (
	"fmt"
	"sync"

	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-msgsign-go/pkg/types"
)

// MemoryPersistence is an in-memory implementation of ISubmissionLedger.
//
// All data is stored in memory and will be lost when the process exits.
// Thread-safe using sync.RWMutex for concurrent access.
// Deep copies records to prevent external mutation.
type MemoryPersistence struct {
	mu sync.RWMutex

	records []*types.SubmissionRecord

	closed bool
}

var _ persistence.ISubmissionLedger = (*MemoryPersistence)(nil)

// NewMemoryPersistence creates a new in-memory ledger.
func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{
		records: make([]*types.SubmissionRecord, 0),
	}
}

// Append stores a copy of record at the end of the ledger.
func (m *MemoryPersistence) Append(record *types.SubmissionRecord) (int, error) {
	if record == nil || record.Submission == nil {
		return 0, fmt.Errorf("cannot append nil SubmissionRecord")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, fmt.Errorf("persistence layer is closed")
	}

	m.records = append(m.records, persistence.CopySubmissionRecord(record))
	return len(m.records) - 1, nil
}

// List returns copies of every record in append order.
func (m *MemoryPersistence) List() ([]*types.SubmissionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("persistence layer is closed")
	}

	out := make([]*types.SubmissionRecord, len(m.records))
	for i, r := range m.records {
		out[i] = persistence.CopySubmissionRecord(r)
	}
	return out, nil
}

// ListBySigner returns copies of the records submitted by address.
func (m *MemoryPersistence) ListBySigner(address string) ([]*types.SubmissionRecord, error) {
	records, err := m.List()
	if err != nil {
		return nil, err
	}
	return persistence.FilterBySigner(records, address), nil
}

func (m *MemoryPersistence) Len() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, fmt.Errorf("persistence layer is closed")
	}
	return len(m.records), nil
}

func (m *MemoryPersistence) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}
	m.records = make([]*types.SubmissionRecord, 0)
	return nil
}

// Close marks the persistence layer as closed.
// Idempotent - safe to call multiple times.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.records = nil
	return nil
}

func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("persistence layer is closed")
	}
	return nil
}

// Package history keeps a durable trail of generation attempts and of
// compensations that could not be delivered to the ledger. The latter is
// the reconciliation queue: every entry represents real financial drift
// someone has to settle out of band.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/ahmed-jemaa-2000/photo-studio-bot/internal/domain"
)

// Attempt is one debit-bearing generation attempt with its terminal outcome.
type Attempt struct {
	ID        string
	UserID    string
	Kind      domain.JobKind
	JobID     string
	Cost      int
	Outcome   domain.JobStatus
	Refunded  bool
	CreatedAt time.Time
}

// ReconciliationItem records a compensation that failed. Amount and the
// original failure are kept so the drift can be settled manually.
type ReconciliationItem struct {
	ID            string
	UserID        string
	Amount        int
	OpRef         string
	OriginalError string
	CreatedAt     time.Time
}

// Store is the persistence contract the orchestrator writes through.
// Attempt writes are best-effort; reconciliation writes are not.
type Store interface {
	RecordAttempt(ctx context.Context, a Attempt) error
	RecordReconciliation(ctx context.Context, item ReconciliationItem) error
}

// Memory is the in-process store used in tests and when no database is
// configured.
type Memory struct {
	mu              sync.Mutex
	attempts        []Attempt
	reconciliations []ReconciliationItem
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) RecordAttempt(_ context.Context, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, a)
	return nil
}

func (m *Memory) RecordReconciliation(_ context.Context, item ReconciliationItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconciliations = append(m.reconciliations, item)
	return nil
}

// Attempts returns a snapshot of recorded attempts.
func (m *Memory) Attempts() []Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Attempt(nil), m.attempts...)
}

// Reconciliations returns a snapshot of recorded reconciliation items.
func (m *Memory) Reconciliations() []ReconciliationItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ReconciliationItem(nil), m.reconciliations...)
}

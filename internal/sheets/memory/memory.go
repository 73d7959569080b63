// Package memory is the in-process ledger mirror used by tests and local
// runs without Google credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	"bilancio/internal/core"
)

type row struct {
	UID         string
	Transaction core.Transaction
}

type Store struct {
	mu   sync.Mutex
	rows []row
}

func New() *Store {
	return &Store{}
}

// Append stores the transaction row, overwriting an existing row with the
// same id, and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, uid string, txn core.Transaction) (string, error) {
	if err := txn.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rows {
		if r.Transaction.ID == txn.ID {
			s.rows[i] = row{UID: uid, Transaction: txn}
			return fmt.Sprintf("mem:%d", i+1), nil
		}
	}
	s.rows = append(s.rows, row{UID: uid, Transaction: txn})
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Delete removes the row with the given id. A missing row is a no-op.
func (s *Store) Delete(_ context.Context, uid string, txID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rows {
		if r.Transaction.ID == txID {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

// Transactions returns the mirrored transactions in insertion order.
func (s *Store) Transactions() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r.Transaction)
	}
	return out
}

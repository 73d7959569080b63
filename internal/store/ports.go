// Package store defines the document-store port the engine talks to: a
// per-user document (balance plus transaction list) with atomic
// read-modify-write updates and live subscriptions, and a budgets
// subcollection that lives outside the user-document atomic unit.
package store

import (
	"context"
	"errors"

	"bilancio/internal/core"
)

// ErrNotFound is returned when a keyed lookup, replace or remove misses.
// Misses are surfaced rather than silently ignored.
var ErrNotFound = errors.New("not found")

// CancelFunc tears down a subscription. It is safe to call more than once.
type CancelFunc func()

// Store is the document store contract. Implementations serialize
// conflicting UpdateUser calls; the update body always observes the latest
// committed state through its handle.
type Store interface {
	// GetUser is a one-shot read. exists is false when the document has
	// never been written.
	GetUser(ctx context.Context, uid string) (doc core.UserDocument, exists bool, err error)

	// UpdateUser runs fn inside an atomic read-modify-write against the
	// user document, creating it (zero balance, no transactions) when
	// absent. If fn returns an error nothing is written. fn may be invoked
	// more than once on contention and must be side-effect-free outside the
	// handle.
	UpdateUser(ctx context.Context, uid string, fn func(*Tx) error) error

	// Subscribe registers a live listener on the user document. The current
	// snapshot is delivered before Subscribe returns; every committed
	// mutation delivers a fresh one. Callbacks must not call back into the
	// store.
	Subscribe(uid string, onData func(core.UserDocument), onError func(error)) CancelFunc

	// Budgets subcollection. Creating or deleting a budget never touches
	// the user balance; budgets reserve balance only in derived views.
	ListBudgets(ctx context.Context, uid string) ([]core.Budget, error)
	// AddBudget assigns the id and the server creation timestamp.
	AddBudget(ctx context.Context, uid string, b core.Budget) (core.Budget, error)
	// UpdateBudget replaces the full record and rewrites the server
	// timestamp, which also resets the spent-since baseline.
	UpdateBudget(ctx context.Context, uid string, b core.Budget) (core.Budget, error)
	DeleteBudget(ctx context.Context, uid string, id string) error
	SubscribeBudgets(uid string, onData func([]core.Budget), onError func(error)) CancelFunc

	// Export bookkeeping for the sheet sync worker.
	ListUnsynced(ctx context.Context, limit int) ([]Pending, error)
	MarkSynced(ctx context.Context, uid string, txID string) error

	Close() error
}

// Pending is a transaction not yet mirrored to the external ledger.
type Pending struct {
	UID         string
	Transaction core.Transaction
}

package services

import (
	"context"
	"log/slog"
	"sync"

	"bilancio/internal/core"
	"bilancio/internal/store"
)

// Summary is the cached, derived view of one user's ledger.
type Summary struct {
	Name      string
	Balance   core.Money
	Available core.Money
	Totals    core.Totals
	Recent    []core.Transaction
	Budgets   []core.Budget
}

// SnapshotService holds one live store subscription per user and serves
// derived views from the cached snapshot, so every reader observes the same
// state and nobody re-reads the store per request.
type SnapshotService struct {
	store store.Store

	mu      sync.Mutex
	watches map[string]*watch
	closed  bool
}

type watch struct {
	doc     core.UserDocument
	budgets []core.Budget
	cancels []store.CancelFunc
}

func NewSnapshotService(st store.Store) *SnapshotService {
	return &SnapshotService{store: st, watches: make(map[string]*watch)}
}

// ensureWatch registers the subscriptions for uid on first use. The store
// delivers the current snapshot before Subscribe returns, so the cache is
// primed when this comes back.
func (s *SnapshotService) ensureWatch(uid string) *watch {
	s.mu.Lock()
	if w, ok := s.watches[uid]; ok {
		s.mu.Unlock()
		return w
	}
	w := &watch{}
	s.watches[uid] = w
	s.mu.Unlock()

	onError := func(err error) {
		slog.Error("Snapshot subscription error", "uid", uid, "error", err)
	}
	cancelDoc := s.store.Subscribe(uid, func(doc core.UserDocument) {
		s.mu.Lock()
		w.doc = doc
		s.mu.Unlock()
	}, onError)
	cancelBudgets := s.store.SubscribeBudgets(uid, func(budgets []core.Budget) {
		s.mu.Lock()
		w.budgets = budgets
		s.mu.Unlock()
	}, onError)

	s.mu.Lock()
	w.cancels = append(w.cancels, cancelDoc, cancelBudgets)
	if s.closed {
		cancels := w.cancels
		s.mu.Unlock()
		for _, cancel := range cancels {
			cancel()
		}
		return w
	}
	s.mu.Unlock()
	return w
}

// Summary returns the derived view from the cached snapshot.
func (s *SnapshotService) Summary(ctx context.Context, sess core.Session) (Summary, error) {
	if err := sess.Validate(); err != nil {
		return Summary{}, err
	}
	w := s.ensureWatch(sess.UID)

	s.mu.Lock()
	doc := w.doc
	budgets := w.budgets
	s.mu.Unlock()

	return Summary{
		Name:      doc.Name,
		Balance:   doc.Balance,
		Available: core.AvailableBalance(doc.Balance, budgets),
		Totals:    core.SumTotals(doc.Transactions),
		Recent:    core.RecentN(doc.Transactions, core.RecentLimit),
		Budgets:   budgets,
	}, nil
}

// Transactions returns the cached transactions filtered by category and
// sorted newest-first. The All sentinel (or an empty string) disables the
// filter.
func (s *SnapshotService) Transactions(ctx context.Context, sess core.Session, category string) ([]core.Transaction, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	w := s.ensureWatch(sess.UID)

	s.mu.Lock()
	txs := w.doc.Transactions
	s.mu.Unlock()

	return core.SortedByRecency(core.FilterByCategory(txs, category)), nil
}

// Breakdown groups the cached transactions of the given type by category.
func (s *SnapshotService) Breakdown(ctx context.Context, sess core.Session, typ core.TransactionType) ([]core.CategoryAmount, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	if err := typ.Validate(); err != nil {
		return nil, err
	}
	w := s.ensureWatch(sess.UID)

	s.mu.Lock()
	txs := w.doc.Transactions
	s.mu.Unlock()

	return core.ByCategory(txs, typ), nil
}

// Close cancels every live subscription.
func (s *SnapshotService) Close() error {
	s.mu.Lock()
	s.closed = true
	var cancels []store.CancelFunc
	for _, w := range s.watches {
		cancels = append(cancels, w.cancels...)
		w.cancels = nil
	}
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return nil
}

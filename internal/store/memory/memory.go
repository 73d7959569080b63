// Package memory is the in-process store backend: mutex-serialized, used as
// the default backend and by tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/core"
	"bilancio/internal/store"
)

type Store struct {
	mu    sync.Mutex
	now   func() time.Time
	users map[string]*userState
	subID int
}

type userState struct {
	doc        core.UserDocument
	budgets    []core.Budget
	unsynced   map[string]bool
	docSubs    map[int]docSubscriber
	budgetSubs map[int]budgetSubscriber
}

type docSubscriber struct {
	onData func(core.UserDocument)
}

type budgetSubscriber struct {
	onData func([]core.Budget)
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock lets tests pin the server timestamp source.
func NewWithClock(now func() time.Time) *Store {
	return &Store{now: now, users: make(map[string]*userState)}
}

func (s *Store) state(uid string) *userState {
	st, ok := s.users[uid]
	if !ok {
		st = &userState{
			unsynced:   make(map[string]bool),
			docSubs:    make(map[int]docSubscriber),
			budgetSubs: make(map[int]budgetSubscriber),
		}
		s.users[uid] = st
	}
	return st
}

func (s *Store) GetUser(ctx context.Context, uid string) (core.UserDocument, bool, error) {
	if err := ctx.Err(); err != nil {
		return core.UserDocument{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[uid]
	if !ok {
		return core.UserDocument{}, false, nil
	}
	return cloneDoc(st.doc), true, nil
}

func (s *Store) UpdateUser(ctx context.Context, uid string, fn func(*store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	st := s.state(uid)
	tx := store.NewTx(cloneDoc(st.doc))
	if err := fn(tx); err != nil {
		s.mu.Unlock()
		return err
	}
	st.doc = cloneDoc(tx.User())
	for _, op := range tx.Ops() {
		switch op.Kind {
		case store.OpAppend, store.OpReplace:
			st.unsynced[op.ID] = true
		case store.OpRemove:
			delete(st.unsynced, op.ID)
		}
	}
	notify := s.collectDocSubscribers(st)
	s.mu.Unlock()
	for _, deliver := range notify {
		deliver()
	}
	return nil
}

func (s *Store) Subscribe(uid string, onData func(core.UserDocument), onError func(error)) store.CancelFunc {
	s.mu.Lock()
	st := s.state(uid)
	s.subID++
	id := s.subID
	st.docSubs[id] = docSubscriber{onData: onData}
	snapshot := cloneDoc(st.doc)
	s.mu.Unlock()

	onData(snapshot)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(st.docSubs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) ListBudgets(ctx context.Context, uid string) ([]core.Budget, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[uid]
	if !ok {
		return nil, nil
	}
	return slices.Clone(st.budgets), nil
}

func (s *Store) AddBudget(ctx context.Context, uid string, b core.Budget) (core.Budget, error) {
	if err := ctx.Err(); err != nil {
		return core.Budget{}, err
	}
	s.mu.Lock()
	st := s.state(uid)
	b.ID = uuid.New().String()
	b.Timestamp = s.now().UTC()
	st.budgets = append(st.budgets, b)
	notify := s.collectBudgetSubscribers(st)
	s.mu.Unlock()
	for _, deliver := range notify {
		deliver()
	}
	return b, nil
}

func (s *Store) UpdateBudget(ctx context.Context, uid string, b core.Budget) (core.Budget, error) {
	if err := ctx.Err(); err != nil {
		return core.Budget{}, err
	}
	s.mu.Lock()
	st, ok := s.users[uid]
	idx := -1
	if ok {
		idx = slices.IndexFunc(st.budgets, func(e core.Budget) bool { return e.ID == b.ID })
	}
	if idx < 0 {
		s.mu.Unlock()
		return core.Budget{}, store.ErrNotFound
	}
	// Full-record replace with a fresh server timestamp.
	b.Timestamp = s.now().UTC()
	st.budgets[idx] = b
	notify := s.collectBudgetSubscribers(st)
	s.mu.Unlock()
	for _, deliver := range notify {
		deliver()
	}
	return b, nil
}

func (s *Store) DeleteBudget(ctx context.Context, uid string, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	st, ok := s.users[uid]
	idx := -1
	if ok {
		idx = slices.IndexFunc(st.budgets, func(e core.Budget) bool { return e.ID == id })
	}
	if idx < 0 {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	st.budgets = append(st.budgets[:idx], st.budgets[idx+1:]...)
	notify := s.collectBudgetSubscribers(st)
	s.mu.Unlock()
	for _, deliver := range notify {
		deliver()
	}
	return nil
}

func (s *Store) SubscribeBudgets(uid string, onData func([]core.Budget), onError func(error)) store.CancelFunc {
	s.mu.Lock()
	st := s.state(uid)
	s.subID++
	id := s.subID
	st.budgetSubs[id] = budgetSubscriber{onData: onData}
	snapshot := slices.Clone(st.budgets)
	s.mu.Unlock()

	onData(snapshot)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(st.budgetSubs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) ListUnsynced(ctx context.Context, limit int) ([]store.Pending, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Pending
	for uid, st := range s.users {
		for _, txn := range st.doc.Transactions {
			if st.unsynced[txn.ID] {
				out = append(out, store.Pending{UID: uid, Transaction: txn})
			}
		}
	}
	slices.SortFunc(out, func(a, b store.Pending) int {
		return a.Transaction.Timestamp.Compare(b.Transaction.Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkSynced(ctx context.Context, uid string, txID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.users[uid]; ok {
		delete(st.unsynced, txID)
	}
	return nil
}

func (s *Store) Close() error { return nil }

// collectDocSubscribers snapshots the document and the listener set so the
// callbacks can run with the lock released.
func (s *Store) collectDocSubscribers(st *userState) []func() {
	snapshot := cloneDoc(st.doc)
	out := make([]func(), 0, len(st.docSubs))
	for _, sub := range st.docSubs {
		deliver := sub.onData
		out = append(out, func() { deliver(snapshot) })
	}
	return out
}

func (s *Store) collectBudgetSubscribers(st *userState) []func() {
	snapshot := slices.Clone(st.budgets)
	out := make([]func(), 0, len(st.budgetSubs))
	for _, sub := range st.budgetSubs {
		deliver := sub.onData
		out = append(out, func() { deliver(snapshot) })
	}
	return out
}

func cloneDoc(doc core.UserDocument) core.UserDocument {
	doc.Transactions = slices.Clone(doc.Transactions)
	return doc
}

// Package sqlite is the durable store backend. The user document is split
// across users/transactions tables; atomicity of balance and list writes
// comes from a single SQL transaction per update.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"bilancio/internal/core"
	"bilancio/internal/store"
)

type Store struct {
	db  *sql.DB
	now func() time.Time

	// mu serializes writes and guards the subscriber registry. SQLite
	// serializes writers anyway; doing it here avoids busy errors.
	mu         sync.Mutex
	subID      int
	docSubs    map[string]map[int]func(core.UserDocument)
	budgetSubs map[string]map[int]func([]core.Budget)
}

var _ store.Store = (*Store)(nil)

func New(dbPath string) (*Store, error) {
	return NewWithClock(dbPath, time.Now)
}

// NewWithClock lets tests pin the server timestamp source.
func NewWithClock(dbPath string, now func() time.Time) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{
		db:         db,
		now:        now,
		docSubs:    make(map[string]map[int]func(core.UserDocument)),
		budgetSubs: make(map[string]map[int]func([]core.Budget)),
	}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, uid string) (core.UserDocument, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadUser(ctx, s.db, uid)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) loadUser(ctx context.Context, q querier, uid string) (core.UserDocument, bool, error) {
	var doc core.UserDocument
	err := q.QueryRowContext(ctx,
		`SELECT name, email, balance_cents FROM users WHERE uid = ?`, uid).
		Scan(&doc.Name, &doc.Email, &doc.Balance.Cents)
	if err == sql.ErrNoRows {
		return core.UserDocument{}, false, nil
	}
	if err != nil {
		return core.UserDocument{}, false, fmt.Errorf("read user %s: %w", uid, err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, amount_cents, type, purpose, category, timestamp
		 FROM transactions WHERE uid = ? ORDER BY rowid`, uid)
	if err != nil {
		return core.UserDocument{}, false, fmt.Errorf("read transactions for %s: %w", uid, err)
	}
	defer rows.Close()

	for rows.Next() {
		var txn core.Transaction
		var raw string
		if err := rows.Scan(&txn.ID, &txn.Amount.Cents, &txn.Type, &txn.Purpose, &txn.Category, &raw); err != nil {
			return core.UserDocument{}, false, fmt.Errorf("scan transaction: %w", err)
		}
		ts, err := core.ParseTimestamp(raw)
		if err != nil {
			return core.UserDocument{}, false, fmt.Errorf("transaction %s: %w", txn.ID, err)
		}
		txn.Timestamp = ts
		doc.Transactions = append(doc.Transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return core.UserDocument{}, false, fmt.Errorf("iterate transactions: %w", err)
	}
	return doc, true, nil
}

func (s *Store) UpdateUser(ctx context.Context, uid string, fn func(*store.Tx) error) error {
	s.mu.Lock()

	err := s.updateUserLocked(ctx, uid, fn)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	doc, _, err := s.loadUser(ctx, s.db, uid)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	notify := make([]func(), 0, len(s.docSubs[uid]))
	for _, deliver := range s.docSubs[uid] {
		deliver := deliver
		notify = append(notify, func() { deliver(doc) })
	}
	s.mu.Unlock()

	for _, deliver := range notify {
		deliver()
	}
	return nil
}

func (s *Store) updateUserLocked(ctx context.Context, uid string, fn func(*store.Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	// The document is created as part of the same atomic step when absent.
	if _, err := dbTx.ExecContext(ctx,
		`INSERT INTO users (uid) VALUES (?) ON CONFLICT (uid) DO NOTHING`, uid); err != nil {
		return fmt.Errorf("ensure user %s: %w", uid, err)
	}

	doc, _, err := s.loadUser(ctx, dbTx, uid)
	if err != nil {
		return err
	}

	handle := store.NewTx(doc)
	if err := fn(handle); err != nil {
		return err
	}

	for _, op := range handle.Ops() {
		switch op.Kind {
		case store.OpAppend:
			txn := op.Transaction
			if _, err := dbTx.ExecContext(ctx,
				`INSERT INTO transactions (id, uid, amount_cents, type, purpose, category, timestamp)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				txn.ID, uid, txn.Amount.Cents, string(txn.Type), txn.Purpose, txn.Category,
				txn.Timestamp.UTC().Format(time.RFC3339Nano)); err != nil {
				return fmt.Errorf("insert transaction %s: %w", txn.ID, err)
			}
		case store.OpReplace:
			txn := op.Transaction
			if _, err := dbTx.ExecContext(ctx,
				`UPDATE transactions
				 SET amount_cents = ?, type = ?, purpose = ?, category = ?, timestamp = ?, synced_at = NULL
				 WHERE id = ? AND uid = ?`,
				txn.Amount.Cents, string(txn.Type), txn.Purpose, txn.Category,
				txn.Timestamp.UTC().Format(time.RFC3339Nano), op.ID, uid); err != nil {
				return fmt.Errorf("update transaction %s: %w", op.ID, err)
			}
		case store.OpRemove:
			if _, err := dbTx.ExecContext(ctx,
				`DELETE FROM transactions WHERE id = ? AND uid = ?`, op.ID, uid); err != nil {
				return fmt.Errorf("delete transaction %s: %w", op.ID, err)
			}
		}
	}

	if handle.BalanceChanged() {
		if _, err := dbTx.ExecContext(ctx,
			`UPDATE users SET balance_cents = ? WHERE uid = ?`,
			handle.Balance().Cents, uid); err != nil {
			return fmt.Errorf("update balance for %s: %w", uid, err)
		}
	}
	if handle.NameChanged() {
		if _, err := dbTx.ExecContext(ctx,
			`UPDATE users SET name = ? WHERE uid = ?`, handle.User().Name, uid); err != nil {
			return fmt.Errorf("update name for %s: %w", uid, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Subscribe(uid string, onData func(core.UserDocument), onError func(error)) store.CancelFunc {
	s.mu.Lock()
	s.subID++
	id := s.subID
	if s.docSubs[uid] == nil {
		s.docSubs[uid] = make(map[int]func(core.UserDocument))
	}
	s.docSubs[uid][id] = onData
	doc, _, err := s.loadUser(context.Background(), s.db, uid)
	s.mu.Unlock()

	if err != nil {
		onError(err)
	} else {
		onData(doc)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.docSubs[uid], id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) ListBudgets(ctx context.Context, uid string) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadBudgets(ctx, uid)
}

func (s *Store) loadBudgets(ctx context.Context, uid string) ([]core.Budget, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, category, amount_cents, purpose, timestamp
		 FROM budgets WHERE uid = ? ORDER BY rowid`, uid)
	if err != nil {
		return nil, fmt.Errorf("read budgets for %s: %w", uid, err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		var b core.Budget
		var raw string
		if err := rows.Scan(&b.ID, &b.Category, &b.Amount.Cents, &b.Purpose, &raw); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		ts, err := core.ParseTimestamp(raw)
		if err != nil {
			return nil, fmt.Errorf("budget %s: %w", b.ID, err)
		}
		b.Timestamp = ts
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budgets: %w", err)
	}
	return out, nil
}

func (s *Store) AddBudget(ctx context.Context, uid string, b core.Budget) (core.Budget, error) {
	s.mu.Lock()
	b.ID = uuid.New().String()
	b.Timestamp = s.now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (uid) VALUES (?) ON CONFLICT (uid) DO NOTHING`, uid)
	if err == nil {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO budgets (id, uid, category, amount_cents, purpose, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			b.ID, uid, b.Category, b.Amount.Cents, b.Purpose,
			b.Timestamp.Format(time.RFC3339Nano))
	}
	if err != nil {
		s.mu.Unlock()
		return core.Budget{}, fmt.Errorf("insert budget: %w", err)
	}
	notify := s.budgetNotifyLocked(ctx, uid)
	s.mu.Unlock()
	for _, deliver := range notify {
		deliver()
	}
	return b, nil
}

func (s *Store) UpdateBudget(ctx context.Context, uid string, b core.Budget) (core.Budget, error) {
	s.mu.Lock()
	b.Timestamp = s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE budgets SET category = ?, amount_cents = ?, purpose = ?, timestamp = ?
		 WHERE id = ? AND uid = ?`,
		b.Category, b.Amount.Cents, b.Purpose, b.Timestamp.Format(time.RFC3339Nano),
		b.ID, uid)
	if err != nil {
		s.mu.Unlock()
		return core.Budget{}, fmt.Errorf("update budget %s: %w", b.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.mu.Unlock()
		return core.Budget{}, store.ErrNotFound
	}
	notify := s.budgetNotifyLocked(ctx, uid)
	s.mu.Unlock()
	for _, deliver := range notify {
		deliver()
	}
	return b, nil
}

func (s *Store) DeleteBudget(ctx context.Context, uid string, id string) error {
	s.mu.Lock()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM budgets WHERE id = ? AND uid = ?`, id, uid)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("delete budget %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	notify := s.budgetNotifyLocked(ctx, uid)
	s.mu.Unlock()
	for _, deliver := range notify {
		deliver()
	}
	return nil
}

func (s *Store) SubscribeBudgets(uid string, onData func([]core.Budget), onError func(error)) store.CancelFunc {
	s.mu.Lock()
	s.subID++
	id := s.subID
	if s.budgetSubs[uid] == nil {
		s.budgetSubs[uid] = make(map[int]func([]core.Budget))
	}
	s.budgetSubs[uid][id] = onData
	budgets, err := s.loadBudgets(context.Background(), uid)
	s.mu.Unlock()

	if err != nil {
		onError(err)
	} else {
		onData(budgets)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.budgetSubs[uid], id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) budgetNotifyLocked(ctx context.Context, uid string) []func() {
	if len(s.budgetSubs[uid]) == 0 {
		return nil
	}
	budgets, err := s.loadBudgets(ctx, uid)
	if err != nil {
		slog.ErrorContext(ctx, "Budget snapshot for subscribers failed", "uid", uid, "error", err)
		return nil
	}
	out := make([]func(), 0, len(s.budgetSubs[uid]))
	for _, deliver := range s.budgetSubs[uid] {
		deliver := deliver
		out = append(out, func() { deliver(slices.Clone(budgets)) })
	}
	return out
}

func (s *Store) ListUnsynced(ctx context.Context, limit int) ([]store.Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT uid, id, amount_cents, type, purpose, category, timestamp
		 FROM transactions WHERE synced_at IS NULL ORDER BY timestamp LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("read unsynced transactions: %w", err)
	}
	defer rows.Close()

	var out []store.Pending
	for rows.Next() {
		var p store.Pending
		var raw string
		if err := rows.Scan(&p.UID, &p.Transaction.ID, &p.Transaction.Amount.Cents,
			&p.Transaction.Type, &p.Transaction.Purpose, &p.Transaction.Category, &raw); err != nil {
			return nil, fmt.Errorf("scan unsynced transaction: %w", err)
		}
		ts, err := core.ParseTimestamp(raw)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", p.Transaction.ID, err)
		}
		p.Transaction.Timestamp = ts
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unsynced transactions: %w", err)
	}
	return out, nil
}

func (s *Store) MarkSynced(ctx context.Context, uid string, txID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET synced_at = ? WHERE id = ? AND uid = ?`,
		s.now().UTC().Format(time.RFC3339Nano), txID, uid)
	if err != nil {
		return fmt.Errorf("mark transaction %s synced: %w", txID, err)
	}
	return nil
}

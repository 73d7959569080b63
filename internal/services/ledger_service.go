// Package services orchestrates the store, the message broker and the
// derived views behind the HTTP API.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/core"
	"bilancio/internal/store"
)

// SyncPublisher emits ledger sync events for the sheet worker. The AMQP
// client satisfies it; tests plug in a recorder.
type SyncPublisher interface {
	PublishLedgerSync(ctx context.Context, uid, txID string) error
	PublishLedgerDelete(ctx context.Context, uid, txID string) error
}

// TransactionInput carries the caller-supplied fields of a new or edited
// transaction. A zero Timestamp means "now".
type TransactionInput struct {
	Amount    core.Money
	Type      core.TransactionType
	Purpose   string
	Category  string
	Timestamp time.Time
}

// LedgerService owns every mutation of the user document. The cached balance
// is only ever written together with the transaction list, inside a single
// store update.
type LedgerService struct {
	store     store.Store
	publisher SyncPublisher
	now       func() time.Time
}

func NewLedgerService(st store.Store, publisher SyncPublisher) *LedgerService {
	return &LedgerService{store: st, publisher: publisher, now: time.Now}
}

// NewLedgerServiceWithClock lets tests pin transaction timestamps.
func NewLedgerServiceWithClock(st store.Store, publisher SyncPublisher, now func() time.Time) *LedgerService {
	return &LedgerService{store: st, publisher: publisher, now: now}
}

// Document is the one-shot read of the full user document. A user that has
// never written anything gets the zero document.
func (s *LedgerService) Document(ctx context.Context, sess core.Session) (core.UserDocument, error) {
	if err := sess.Validate(); err != nil {
		return core.UserDocument{}, err
	}
	doc, _, err := s.store.GetUser(ctx, sess.UID)
	if err != nil {
		return core.UserDocument{}, fmt.Errorf("read user document: %w", err)
	}
	return doc, nil
}

// AddTransaction appends a new transaction and moves the balance by its
// signed amount in one atomic step.
func (s *LedgerService) AddTransaction(ctx context.Context, sess core.Session, in TransactionInput) (core.Transaction, error) {
	if err := sess.Validate(); err != nil {
		return core.Transaction{}, err
	}

	txn := core.Transaction{
		ID:        uuid.New().String(),
		Amount:    in.Amount,
		Type:      in.Type,
		Purpose:   in.Purpose,
		Category:  in.Category,
		Timestamp: in.Timestamp,
	}
	if txn.Timestamp.IsZero() {
		txn.Timestamp = s.now().UTC()
	}
	if err := txn.Validate(); err != nil {
		return core.Transaction{}, err
	}

	err := s.store.UpdateUser(ctx, sess.UID, func(tx *store.Tx) error {
		tx.Append(txn)
		tx.SetBalance(tx.Balance().Cents + txn.Effect())
		return nil
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("add transaction: %w", err)
	}

	s.publishSync(ctx, sess.UID, txn.ID)
	return txn, nil
}

// EditTransaction replaces the transaction with the given id and applies the
// delta between the new and old signed amounts to the balance. The original
// timestamp is preserved so the entry keeps its place in history.
func (s *LedgerService) EditTransaction(ctx context.Context, sess core.Session, id string, in TransactionInput) (core.Transaction, error) {
	if err := sess.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var updated core.Transaction
	err := s.store.UpdateUser(ctx, sess.UID, func(tx *store.Tx) error {
		existing, ok := tx.Find(id)
		if !ok {
			return store.ErrNotFound
		}

		updated = core.Transaction{
			ID:        id,
			Amount:    in.Amount,
			Type:      in.Type,
			Purpose:   in.Purpose,
			Category:  in.Category,
			Timestamp: existing.Timestamp,
		}
		if err := updated.Validate(); err != nil {
			return err
		}

		if err := tx.Replace(id, updated); err != nil {
			return err
		}
		tx.SetBalance(tx.Balance().Cents - existing.Effect() + updated.Effect())
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}

	s.publishSync(ctx, sess.UID, id)
	return updated, nil
}

// DeleteTransaction removes the transaction with the given id and reverses
// its effect on the balance.
func (s *LedgerService) DeleteTransaction(ctx context.Context, sess core.Session, id string) error {
	if err := sess.Validate(); err != nil {
		return err
	}

	err := s.store.UpdateUser(ctx, sess.UID, func(tx *store.Tx) error {
		removed, err := tx.Remove(id)
		if err != nil {
			return err
		}
		tx.SetBalance(tx.Balance().Cents - removed.Effect())
		return nil
	})
	if err != nil {
		return err
	}

	s.publishDelete(ctx, sess.UID, id)
	return nil
}

// SetBalance overrides the balance to target by synthesizing an adjustment
// transaction for the difference, so the ledger always explains the cached
// value. Setting the balance to itself writes nothing.
func (s *LedgerService) SetBalance(ctx context.Context, sess core.Session, target int64) (core.Transaction, error) {
	if err := sess.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var adjustment core.Transaction
	err := s.store.UpdateUser(ctx, sess.UID, func(tx *store.Tx) error {
		adjustment = core.Transaction{}
		diff := target - tx.Balance().Cents
		if diff == 0 {
			return nil
		}

		typ := core.Income
		if diff < 0 {
			typ = core.Expense
			diff = -diff
		}
		adjustment = core.Transaction{
			ID:        uuid.New().String(),
			Amount:    core.Money{Cents: diff},
			Type:      typ,
			Purpose:   core.AdjustmentPurpose,
			Category:  core.AdjustmentCategory,
			Timestamp: s.now().UTC(),
		}
		tx.Append(adjustment)
		tx.SetBalance(target)
		return nil
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("set balance: %w", err)
	}

	if adjustment.ID != "" {
		s.publishSync(ctx, sess.UID, adjustment.ID)
	}
	return adjustment, nil
}

// SetName updates the display name on the user document.
func (s *LedgerService) SetName(ctx context.Context, sess core.Session, name string) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	return s.store.UpdateUser(ctx, sess.UID, func(tx *store.Tx) error {
		tx.SetName(name)
		return nil
	})
}

func (s *LedgerService) publishSync(ctx context.Context, uid, txID string) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Sync publisher not available, skipping sync message", "tx_id", txID)
		return
	}
	if err := s.publisher.PublishLedgerSync(ctx, uid, txID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"uid", uid, "tx_id", txID, "error", err)
		// Don't fail the request - the transaction is committed locally
	}
}

func (s *LedgerService) publishDelete(ctx context.Context, uid, txID string) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Sync publisher not available, skipping delete message", "tx_id", txID)
		return
	}
	if err := s.publisher.PublishLedgerDelete(ctx, uid, txID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish delete message",
			"uid", uid, "tx_id", txID, "error", err)
	}
}

// Close releases the store.
func (s *LedgerService) Close() error {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			return fmt.Errorf("close store: %w", err)
		}
	}
	return nil
}

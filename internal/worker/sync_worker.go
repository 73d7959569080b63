// Package worker mirrors committed transactions to the external ledger.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/amqp"
	"bilancio/internal/sheets"
	"bilancio/internal/store"
)

// SyncWorker consumes ledger sync messages and mirrors transactions from the
// store to the external ledger sheet.
type SyncWorker struct {
	store     store.Store
	writer    sheets.LedgerWriter
	deleter   sheets.LedgerDeleter
	batchSize int
}

func NewSyncWorker(st store.Store, writer sheets.LedgerWriter, deleter sheets.LedgerDeleter, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &SyncWorker{
		store:     st,
		writer:    writer,
		deleter:   deleter,
		batchSize: batchSize,
	}
}

// HandleMessage processes one ledger sync message from AMQP.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.LedgerSyncMessage) error {
	switch msg.Action {
	case amqp.ActionSync:
		return w.handleSync(ctx, msg.UID, msg.TxID)
	case amqp.ActionDelete:
		return w.handleDelete(ctx, msg.UID, msg.TxID)
	default:
		return fmt.Errorf("unknown action: %s", msg.Action)
	}
}

func (w *SyncWorker) handleSync(ctx context.Context, uid, txID string) error {
	doc, exists, err := w.store.GetUser(ctx, uid)
	if err != nil {
		return fmt.Errorf("get user document: %w", err)
	}
	if !exists {
		slog.WarnContext(ctx, "User document missing for sync message, skipping",
			"uid", uid, "tx_id", txID)
		return nil
	}

	for _, txn := range doc.Transactions {
		if txn.ID != txID {
			continue
		}
		ref, err := w.writer.Append(ctx, uid, txn)
		if err != nil {
			return fmt.Errorf("append to ledger: %w", err)
		}
		if err := w.store.MarkSynced(ctx, uid, txID); err != nil {
			slog.ErrorContext(ctx, "Failed to mark transaction synced",
				"uid", uid, "tx_id", txID, "error", err)
			// The sheet write succeeded; the pending scan will retry the mark
		}
		slog.InfoContext(ctx, "Mirrored transaction to ledger",
			"uid", uid, "tx_id", txID, "ref", ref)
		return nil
	}

	// The transaction was removed between publish and consume. Nothing to
	// mirror; clear any pending mark.
	slog.WarnContext(ctx, "Transaction gone before mirroring, skipping",
		"uid", uid, "tx_id", txID)
	return w.store.MarkSynced(ctx, uid, txID)
}

func (w *SyncWorker) handleDelete(ctx context.Context, uid, txID string) error {
	if w.deleter == nil {
		slog.WarnContext(ctx, "No ledger deleter configured, skipping delete",
			"uid", uid, "tx_id", txID)
		return nil
	}
	if err := w.deleter.Delete(ctx, uid, txID); err != nil {
		return fmt.Errorf("delete from ledger: %w", err)
	}
	slog.InfoContext(ctx, "Removed transaction from ledger", "uid", uid, "tx_id", txID)
	return nil
}

// ProcessPending mirrors transactions that never got a message through, as a
// backup for lost AMQP deliveries.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.store.ListUnsynced(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list unsynced transactions: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending transactions", "count", len(pending))

	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		ref, err := w.writer.Append(ctx, p.UID, p.Transaction)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to mirror pending transaction",
				"uid", p.UID, "tx_id", p.Transaction.ID, "error", err)
			continue
		}
		if err := w.store.MarkSynced(ctx, p.UID, p.Transaction.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mark transaction synced",
				"uid", p.UID, "tx_id", p.Transaction.ID, "error", err)
			continue
		}
		slog.InfoContext(ctx, "Mirrored pending transaction",
			"uid", p.UID, "tx_id", p.Transaction.ID, "ref", ref)
	}
	return nil
}

// StartupSyncCheck drains the pending backlog once at worker startup, with a
// larger batch, to recover from downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.store.ListUnsynced(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list unsynced transactions for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending transactions found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending transactions on startup, processing...",
		"count", len(pending))

	successCount := 0
	errorCount := 0
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := w.writer.Append(ctx, p.UID, p.Transaction); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror transaction during startup",
				"uid", p.UID, "tx_id", p.Transaction.ID, "error", err)
			errorCount++
			continue
		}
		if err := w.store.MarkSynced(ctx, p.UID, p.Transaction.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mark transaction synced",
				"uid", p.UID, "tx_id", p.Transaction.ID, "error", err)
		}
		successCount++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", successCount,
		"errors", errorCount)
	return nil
}

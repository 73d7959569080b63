package sheets

import (
	"context"

	"bilancio/internal/core"
)

// Ports for the external ledger mirror.
type (
	// LedgerWriter appends one transaction row. Appending the same
	// transaction id again overwrites the existing row, so retries are
	// safe.
	LedgerWriter interface {
		Append(ctx context.Context, uid string, txn core.Transaction) (rowRef string, err error)
	}

	// LedgerDeleter removes the row for a transaction id. Deleting an id
	// that was never mirrored is not an error.
	LedgerDeleter interface {
		Delete(ctx context.Context, uid string, txID string) error
	}
)

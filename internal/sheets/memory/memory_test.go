package memory

import (
	"context"
	"testing"
	"time"

	"bilancio/internal/core"
)

func sampleTransaction(id string, cents int64) core.Transaction {
	return core.Transaction{
		ID:        id,
		Amount:    core.Money{Cents: cents},
		Type:      core.Expense,
		Purpose:   "p",
		Category:  "Rent",
		Timestamp: time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestAppendOverwritesById(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.Append(ctx, "u1", sampleTransaction("a", 100))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if ref == "" {
		t.Error("empty row reference")
	}

	// Re-appending the same id replaces the row instead of duplicating it
	if _, err := s.Append(ctx, "u1", sampleTransaction("a", 250)); err != nil {
		t.Fatalf("re-append: %v", err)
	}
	rows := s.Transactions()
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	if rows[0].Amount.Cents != 250 {
		t.Errorf("amount = %d, want the overwritten value 250", rows[0].Amount.Cents)
	}
}

func TestAppendRejectsInvalidTransaction(t *testing.T) {
	s := New()
	bad := sampleTransaction("a", 100)
	bad.Category = ""
	if _, err := s.Append(context.Background(), "u1", bad); err == nil {
		t.Error("invalid transaction must be rejected")
	}
	if len(s.Transactions()) != 0 {
		t.Error("rejected append must not store a row")
	}
}

func TestDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.Append(ctx, "u1", sampleTransaction("a", 100)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Delete(ctx, "u1", "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(s.Transactions()) != 0 {
		t.Error("row not removed")
	}

	// Deleting a missing row is not an error
	if err := s.Delete(ctx, "u1", "ghost"); err != nil {
		t.Errorf("delete missing = %v, want nil", err)
	}
}

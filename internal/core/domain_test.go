package core

import (
	"errors"
	"testing"
	"time"
)

func validTransaction() Transaction {
	return Transaction{
		ID:        "tx-1",
		Amount:    Money{Cents: 2500},
		Type:      Expense,
		Purpose:   "Groceries",
		Category:  "Food & Drinks",
		Timestamp: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestTransactionEffect(t *testing.T) {
	income := validTransaction()
	income.Type = Income
	income.Category = "Salary"
	if got := income.Effect(); got != 2500 {
		t.Errorf("income effect = %d, want 2500", got)
	}

	expense := validTransaction()
	if got := expense.Effect(); got != -2500 {
		t.Errorf("expense effect = %d, want -2500", got)
	}
}

func TestTransactionValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		if err := validTransaction().Validate(); err != nil {
			t.Fatalf("valid transaction rejected: %v", err)
		}
	})

	tests := []struct {
		name    string
		mutate  func(*Transaction)
		wantErr error
	}{
		{"zero amount", func(tx *Transaction) { tx.Amount.Cents = 0 }, ErrInvalidAmount},
		{"bad type", func(tx *Transaction) { tx.Type = "transfer" }, ErrInvalidType},
		{"empty purpose", func(tx *Transaction) { tx.Purpose = "  " }, ErrEmptyPurpose},
		{"empty category", func(tx *Transaction) { tx.Category = "" }, ErrEmptyCategory},
		{"unknown category", func(tx *Transaction) { tx.Category = "Yachts" }, ErrInvalidCategory},
		{"income-only category on expense", func(tx *Transaction) { tx.Category = "Salary" }, ErrInvalidCategory},
		{"zero timestamp", func(tx *Transaction) { tx.Timestamp = time.Time{} }, ErrInvalidTimestamp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validTransaction()
			tt.mutate(&tx)
			if err := tx.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBudgetValidate(t *testing.T) {
	b := Budget{Category: "Travel", Amount: Money{Cents: 10000}, Purpose: "Summer trip"}
	if err := b.Validate(); err != nil {
		t.Fatalf("valid budget rejected: %v", err)
	}

	b2 := b
	b2.Category = "Salary" // income-only, not budgetable
	if err := b2.Validate(); !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("non-budget category should be rejected, got %v", err)
	}

	b3 := b
	b3.Amount.Cents = 0
	if err := b3.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero-amount budget should be rejected, got %v", err)
	}
}

func TestAdjustmentCategoryValidBothWays(t *testing.T) {
	for _, typ := range []TransactionType{Income, Expense} {
		tx := validTransaction()
		tx.Type = typ
		tx.Category = AdjustmentCategory
		tx.Purpose = AdjustmentPurpose
		if err := tx.Validate(); err != nil {
			t.Errorf("adjustment should validate as %s: %v", typ, err)
		}
	}
}

func TestAdjustmentNeverOffered(t *testing.T) {
	for _, list := range [][]string{IncomeCategories(), ExpenseCategories(), BudgetCategories()} {
		for _, name := range list {
			if name == AdjustmentCategory {
				t.Fatalf("adjustment category must not appear in offered lists")
			}
		}
	}
}

func TestSessionValidate(t *testing.T) {
	if err := (Session{UID: "u1"}).Validate(); err != nil {
		t.Errorf("valid session rejected: %v", err)
	}
	if err := (Session{}).Validate(); !errors.Is(err, ErrEmptySession) {
		t.Errorf("empty session should be rejected, got %v", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Run("rfc3339", func(t *testing.T) {
		ts, err := ParseTimestamp("2026-03-10T12:30:00Z")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC)
		if !ts.Equal(want) {
			t.Errorf("got %v, want %v", ts, want)
		}
	})

	t.Run("unix millis", func(t *testing.T) {
		ts, err := ParseTimestamp("1700000000000")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ts.UnixMilli() != 1700000000000 {
			t.Errorf("got %d, want 1700000000000", ts.UnixMilli())
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if _, err := ParseTimestamp("not a time"); !errors.Is(err, ErrInvalidTimestamp) {
			t.Errorf("got %v, want ErrInvalidTimestamp", err)
		}
		if _, err := ParseTimestamp(""); !errors.Is(err, ErrInvalidTimestamp) {
			t.Errorf("got %v, want ErrInvalidTimestamp", err)
		}
	})
}

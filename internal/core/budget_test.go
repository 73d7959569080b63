package core

import (
	"testing"
	"time"
)

func TestSpentSince(t *testing.T) {
	cutoff := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	txs := []Transaction{
		txAt("before", Expense, 9999, "Travel", cutoff.Add(-time.Hour)),
		txAt("at", Expense, 100, "Travel", cutoff),
		txAt("after", Expense, 250, "Travel", cutoff.Add(time.Hour)),
		txAt("other-cat", Expense, 5000, "Rent", cutoff.Add(time.Hour)),
		txAt("income", Income, 7777, "Salary", cutoff.Add(time.Hour)),
	}

	got := SpentSince(txs, "Travel", cutoff)
	// The cutoff itself counts; earlier spending does not.
	if got.Cents != 350 {
		t.Errorf("spent = %d, want 350", got.Cents)
	}
}

func TestRemainingNeverClamped(t *testing.T) {
	b := Budget{Amount: Money{Cents: 1000}}
	if got := Remaining(b, Money{Cents: 1500}); got.Cents != -500 {
		t.Errorf("remaining = %d, want -500", got.Cents)
	}
	if got := Remaining(b, Money{Cents: 400}); got.Cents != 600 {
		t.Errorf("remaining = %d, want 600", got.Cents)
	}
}

func TestPercentUsed(t *testing.T) {
	b := Budget{Amount: Money{Cents: 20000}}
	if got := PercentUsed(b, Money{Cents: 15000}); got != 75.0 {
		t.Errorf("percent = %v, want 75", got)
	}
	if got := PercentUsed(Budget{}, Money{Cents: 500}); got != 0 {
		t.Errorf("zero-amount budget must report 0, got %v", got)
	}
}

func TestStatusOf(t *testing.T) {
	b := Budget{Amount: Money{Cents: 10000}}
	tests := []struct {
		spent int64
		want  BudgetStatus
	}{
		{0, BudgetOK},
		{7499, BudgetOK},
		{7500, BudgetWarning},
		{10000, BudgetWarning},
		{10001, BudgetOver},
	}
	for _, tt := range tests {
		if got := StatusOf(b, Money{Cents: tt.spent}); got != tt.want {
			t.Errorf("StatusOf(spent=%d) = %s, want %s", tt.spent, got, tt.want)
		}
	}
}

func TestConsumption(t *testing.T) {
	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	b := Budget{ID: "b1", Category: "Entertainment", Amount: Money{Cents: 10000}, Timestamp: created}
	txs := []Transaction{
		txAt("old", Expense, 4000, "Entertainment", created.Add(-time.Hour)),
		txAt("new", Expense, 8000, "Entertainment", created.Add(time.Hour)),
	}

	rep := Consumption(b, txs)
	if rep.Spent.Cents != 8000 {
		t.Errorf("spent = %d, want 8000", rep.Spent.Cents)
	}
	if rep.Remaining.Cents != 2000 {
		t.Errorf("remaining = %d, want 2000", rep.Remaining.Cents)
	}
	if rep.PercentUsed != 80.0 {
		t.Errorf("percent = %v, want 80", rep.PercentUsed)
	}
	if rep.Status != BudgetWarning {
		t.Errorf("status = %s, want warning", rep.Status)
	}
}

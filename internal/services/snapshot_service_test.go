package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/store"
	"bilancio/internal/store/memory"
)

func TestSummaryTracksCommits(t *testing.T) {
	st := memory.New()
	snapshots := NewSnapshotService(st)
	defer snapshots.Close()
	ledger := NewLedgerServiceWithClock(st, nil, testClock)

	ctx := context.Background()
	sess := core.Session{UID: "u1"}

	summary, err := snapshots.Summary(ctx, sess)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Balance.Cents != 0 || len(summary.Recent) != 0 {
		t.Errorf("fresh user summary not empty: %+v", summary)
	}

	if _, err := ledger.AddTransaction(ctx, sess, income(300000)); err != nil {
		t.Fatalf("add: %v", err)
	}

	// The cached snapshot follows the commit without a re-read
	summary, err = snapshots.Summary(ctx, sess)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Balance.Cents != 300000 {
		t.Errorf("balance = %d, want 300000", summary.Balance.Cents)
	}
	if summary.Totals.Income.Cents != 300000 {
		t.Errorf("totals = %+v", summary.Totals)
	}
	if len(summary.Recent) != 1 {
		t.Errorf("recent = %d, want 1", len(summary.Recent))
	}
}

func TestSummaryRecentWindow(t *testing.T) {
	st := memory.New()
	snapshots := NewSnapshotService(st)
	defer snapshots.Close()

	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	err := st.UpdateUser(ctx, "u1", func(tx *store.Tx) error {
		for i := 0; i < 12; i++ {
			tx.Append(core.Transaction{
				ID:        fmt.Sprintf("tx-%d", i),
				Amount:    core.Money{Cents: 100},
				Type:      core.Expense,
				Purpose:   "p",
				Category:  "Rent",
				Timestamp: base.Add(time.Duration(i) * time.Hour),
			})
		}
		tx.SetBalance(-1200)
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	summary, err := snapshots.Summary(ctx, core.Session{UID: "u1"})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(summary.Recent) != core.RecentLimit {
		t.Fatalf("recent = %d, want %d", len(summary.Recent), core.RecentLimit)
	}
	if summary.Recent[0].ID != "tx-11" {
		t.Errorf("newest first, got %s", summary.Recent[0].ID)
	}
}

func TestSummaryIncludesBudgets(t *testing.T) {
	st := memory.New()
	snapshots := NewSnapshotService(st)
	defer snapshots.Close()
	ctx := context.Background()

	err := st.UpdateUser(ctx, "u1", func(tx *store.Tx) error {
		tx.SetBalance(50000)
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Prime the watch, then add a budget; the budget subscription updates
	// the cached view
	if _, err := snapshots.Summary(ctx, core.Session{UID: "u1"}); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if _, err := st.AddBudget(ctx, "u1", core.Budget{Category: "Travel", Amount: core.Money{Cents: 20000}, Purpose: "p"}); err != nil {
		t.Fatalf("add budget: %v", err)
	}

	summary, err := snapshots.Summary(ctx, core.Session{UID: "u1"})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(summary.Budgets) != 1 {
		t.Fatalf("budgets = %d, want 1", len(summary.Budgets))
	}
	if summary.Available.Cents != 30000 {
		t.Errorf("available = %d, want 30000", summary.Available.Cents)
	}
}

func TestTransactionsFilter(t *testing.T) {
	st := memory.New()
	snapshots := NewSnapshotService(st)
	defer snapshots.Close()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	err := st.UpdateUser(ctx, "u1", func(tx *store.Tx) error {
		tx.Append(core.Transaction{ID: "a", Amount: core.Money{Cents: 100}, Type: core.Expense, Purpose: "p", Category: "Rent", Timestamp: base})
		tx.Append(core.Transaction{ID: "b", Amount: core.Money{Cents: 200}, Type: core.Expense, Purpose: "p", Category: "Travel", Timestamp: base.Add(time.Hour)})
		tx.SetBalance(-300)
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	sess := core.Session{UID: "u1"}
	all, err := snapshots.Transactions(ctx, sess, core.AllCategories)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(all) != 2 || all[0].ID != "b" {
		t.Errorf("all = %+v, want newest first", all)
	}

	rent, err := snapshots.Transactions(ctx, sess, "Rent")
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(rent) != 1 || rent[0].ID != "a" {
		t.Errorf("rent = %+v", rent)
	}
}

func TestBreakdown(t *testing.T) {
	st := memory.New()
	snapshots := NewSnapshotService(st)
	defer snapshots.Close()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	err := st.UpdateUser(ctx, "u1", func(tx *store.Tx) error {
		tx.Append(core.Transaction{ID: "a", Amount: core.Money{Cents: 100}, Type: core.Expense, Purpose: "p", Category: "Rent", Timestamp: base})
		tx.Append(core.Transaction{ID: "b", Amount: core.Money{Cents: 50}, Type: core.Expense, Purpose: "p", Category: "Rent", Timestamp: base})
		tx.SetBalance(-150)
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	breakdown, err := snapshots.Breakdown(ctx, core.Session{UID: "u1"}, core.Expense)
	if err != nil {
		t.Fatalf("breakdown: %v", err)
	}
	if len(breakdown) != 1 || breakdown[0].Amount.Cents != 150 {
		t.Errorf("breakdown = %+v", breakdown)
	}

	if _, err := snapshots.Breakdown(ctx, core.Session{UID: "u1"}, "transfer"); err == nil {
		t.Error("invalid type should be rejected")
	}
}

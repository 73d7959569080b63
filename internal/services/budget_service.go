package services

import (
	"context"
	"fmt"

	"bilancio/internal/core"
	"bilancio/internal/store"
)

// BudgetInput carries the caller-supplied fields of a budget. The id and the
// timestamp are always server-assigned.
type BudgetInput struct {
	Category string
	Amount   core.Money
	Purpose  string
}

// BudgetService manages the budgets subcollection and its derived
// consumption view. Budgets never touch the cached balance; they reserve
// part of it only in the available-balance view.
type BudgetService struct {
	store store.Store
}

func NewBudgetService(st store.Store) *BudgetService {
	return &BudgetService{store: st}
}

func (s *BudgetService) List(ctx context.Context, sess core.Session) ([]core.Budget, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}
	budgets, err := s.store.ListBudgets(ctx, sess.UID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return budgets, nil
}

// Create validates the budget and rejects allocations larger than the
// current balance. The stored record gets a fresh id and server timestamp,
// which is also the spent-since baseline.
func (s *BudgetService) Create(ctx context.Context, sess core.Session, in BudgetInput) (core.Budget, error) {
	if err := sess.Validate(); err != nil {
		return core.Budget{}, err
	}

	b := core.Budget{
		Category: in.Category,
		Amount:   in.Amount,
		Purpose:  in.Purpose,
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	doc, _, err := s.store.GetUser(ctx, sess.UID)
	if err != nil {
		return core.Budget{}, fmt.Errorf("read user document: %w", err)
	}
	if b.Amount.Cents > doc.Balance.Cents {
		return core.Budget{}, core.ErrBudgetExceedsBalance
	}

	created, err := s.store.AddBudget(ctx, sess.UID, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	return created, nil
}

// Update replaces the full record. The server timestamp is rewritten, which
// resets the spent-since baseline to the moment of the update.
func (s *BudgetService) Update(ctx context.Context, sess core.Session, id string, in BudgetInput) (core.Budget, error) {
	if err := sess.Validate(); err != nil {
		return core.Budget{}, err
	}

	b := core.Budget{
		ID:       id,
		Category: in.Category,
		Amount:   in.Amount,
		Purpose:  in.Purpose,
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	updated, err := s.store.UpdateBudget(ctx, sess.UID, b)
	if err != nil {
		return core.Budget{}, err
	}
	return updated, nil
}

func (s *BudgetService) Delete(ctx context.Context, sess core.Session, id string) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	return s.store.DeleteBudget(ctx, sess.UID, id)
}

// Consumption derives the spent/remaining/status report for every budget
// against the current transaction set.
func (s *BudgetService) Consumption(ctx context.Context, sess core.Session) ([]core.BudgetReport, error) {
	if err := sess.Validate(); err != nil {
		return nil, err
	}

	budgets, err := s.store.ListBudgets(ctx, sess.UID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	doc, _, err := s.store.GetUser(ctx, sess.UID)
	if err != nil {
		return nil, fmt.Errorf("read user document: %w", err)
	}

	out := make([]core.BudgetReport, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, core.Consumption(b, doc.Transactions))
	}
	return out, nil
}

// AvailableBalance is the balance minus all budget allocations.
func (s *BudgetService) AvailableBalance(ctx context.Context, sess core.Session) (core.Money, error) {
	if err := sess.Validate(); err != nil {
		return core.Money{}, err
	}

	doc, _, err := s.store.GetUser(ctx, sess.UID)
	if err != nil {
		return core.Money{}, fmt.Errorf("read user document: %w", err)
	}
	budgets, err := s.store.ListBudgets(ctx, sess.UID)
	if err != nil {
		return core.Money{}, fmt.Errorf("list budgets: %w", err)
	}
	return core.AvailableBalance(doc.Balance, budgets), nil
}

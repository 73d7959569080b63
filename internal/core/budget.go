package core

import "time"

const (
	BudgetOK      BudgetStatus = "ok"
	BudgetWarning BudgetStatus = "warning"
	BudgetOver    BudgetStatus = "over"
)

// Budgets enter the warning state at 75% consumption.
const budgetWarnPercent = 75.0

type BudgetStatus string

// BudgetReport is the derived consumption view of a single budget.
type BudgetReport struct {
	Budget      Budget
	Spent       Money
	Remaining   Money
	PercentUsed float64
	Status      BudgetStatus
}

// SpentSince sums expense transactions in the category with a timestamp at
// or after since.
func SpentSince(txs []Transaction, category string, since time.Time) Money {
	var cents int64
	for _, tx := range txs {
		if tx.Type != Expense || tx.Category != category {
			continue
		}
		if tx.Timestamp.Before(since) {
			continue
		}
		cents += tx.Amount.Cents
	}
	return Money{Cents: cents}
}

// Remaining may go negative; over-budget is a signaled state, not an error,
// so the value is never clamped.
func Remaining(b Budget, spent Money) Money {
	return Money{Cents: b.Amount.Cents - spent.Cents}
}

// PercentUsed returns spent as a percentage of the budget amount. A
// zero-amount budget (rejected at creation, but possible in legacy data)
// reports 0 rather than dividing by zero.
func PercentUsed(b Budget, spent Money) float64 {
	if b.Amount.Cents == 0 {
		return 0
	}
	return float64(spent.Cents) / float64(b.Amount.Cents) * 100.0
}

// StatusOf applies the presentation thresholds: negative remaining is over
// budget; 75% or more consumed is a warning.
func StatusOf(b Budget, spent Money) BudgetStatus {
	remaining := Remaining(b, spent)
	if remaining.Cents < 0 {
		return BudgetOver
	}
	if PercentUsed(b, spent) >= budgetWarnPercent {
		return BudgetWarning
	}
	return BudgetOK
}

// Consumption derives the full report for one budget against the current
// transaction set.
func Consumption(b Budget, txs []Transaction) BudgetReport {
	spent := SpentSince(txs, b.Category, b.Timestamp)
	return BudgetReport{
		Budget:      b,
		Spent:       spent,
		Remaining:   Remaining(b, spent),
		PercentUsed: PercentUsed(b, spent),
		Status:      StatusOf(b, spent),
	}
}

package core

import "slices"

// RecentLimit is the default size of the recent-transactions view.
const RecentLimit = 8

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// Totals is the result of a single pass over the transaction set.
type Totals struct {
	Income   Money
	Expenses Money
}

// Net returns income minus expenses in cents.
func (t Totals) Net() int64 {
	return t.Income.Cents - t.Expenses.Cents
}

// SumTotals accumulates income and expense totals in one pass. The input is
// not modified.
func SumTotals(txs []Transaction) Totals {
	var t Totals
	for _, tx := range txs {
		if tx.Type == Income {
			t.Income.Cents += tx.Amount.Cents
		} else {
			t.Expenses.Cents += tx.Amount.Cents
		}
	}
	return t
}

// SortedByRecency returns a copy sorted newest-first. The sort is stable:
// entries with equal timestamps keep their original relative order.
func SortedByRecency(txs []Transaction) []Transaction {
	out := slices.Clone(txs)
	slices.SortStableFunc(out, func(a, b Transaction) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	return out
}

// RecentN returns the n most recent transactions. n <= 0 falls back to
// RecentLimit.
func RecentN(txs []Transaction, n int) []Transaction {
	if n <= 0 {
		n = RecentLimit
	}
	sorted := SortedByRecency(txs)
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// ByCategory groups transactions of the given type by category, summing
// amounts. Categories missing from the table fold into the Others bucket.
// Output preserves first-seen order.
func ByCategory(txs []Transaction, typ TransactionType) []CategoryAmount {
	sums := map[string]int64{}
	order := make([]string, 0)
	for _, tx := range txs {
		if tx.Type != typ {
			continue
		}
		name := tx.Category
		if !KnownCategory(name) {
			name = OthersCategory
		}
		if _, seen := sums[name]; !seen {
			order = append(order, name)
		}
		sums[name] += tx.Amount.Cents
	}
	out := make([]CategoryAmount, 0, len(order))
	for _, name := range order {
		out = append(out, CategoryAmount{Name: name, Amount: Money{Cents: sums[name]}})
	}
	return out
}

// FilterByCategory returns the transactions in the given category. The All
// sentinel returns the input unfiltered.
func FilterByCategory(txs []Transaction, category string) []Transaction {
	if category == AllCategories || category == "" {
		return txs
	}
	out := make([]Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Category == category {
			out = append(out, tx)
		}
	}
	return out
}

// AvailableBalance is the user balance minus all budget allocations. It is
// derived on demand and never persisted.
func AvailableBalance(balance Money, budgets []Budget) Money {
	out := balance.Cents
	for _, b := range budgets {
		out -= b.Amount.Cents
	}
	return Money{Cents: out}
}

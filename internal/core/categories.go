package core

// Category handling is a closed enumeration: one table states which
// transaction types and which budgets a category is valid for, instead of
// per-screen string lists.

const (
	// AllCategories is the filter sentinel that disables category filtering.
	AllCategories = "All"
	// OthersCategory is the fallback bucket for unrecognized categories in
	// aggregated views.
	OthersCategory = "Others"
)

type CategoryRule struct {
	Income  bool
	Expense bool
	Budget  bool
}

// categoryTable is ordered; the order drives the lists offered to callers.
var categoryTable = []struct {
	Name string
	Rule CategoryRule
}{
	{"Salary", CategoryRule{Income: true}},
	{"Gift", CategoryRule{Income: true}},
	{"Other", CategoryRule{Income: true, Budget: true}},
	{"Shopping", CategoryRule{Expense: true, Budget: true}},
	{"Food & Drinks", CategoryRule{Expense: true, Budget: true}},
	{"Rent", CategoryRule{Expense: true, Budget: true}},
	{"Bills & Utilities", CategoryRule{Expense: true}},
	{"Bills", CategoryRule{Budget: true}},
	{"Entertainment", CategoryRule{Expense: true, Budget: true}},
	{"Transportation", CategoryRule{Expense: true, Budget: true}},
	{"Travel", CategoryRule{Expense: true, Budget: true}},
	{"Savings", CategoryRule{Expense: true, Budget: true}},
	{"Investments", CategoryRule{Expense: true, Budget: true}},
	{OthersCategory, CategoryRule{Expense: true}},
	// Adjustment entries are synthesized by manual balance overrides and are
	// valid for both directions.
	{AdjustmentCategory, CategoryRule{Income: true, Expense: true}},
}

var categoryRules = func() map[string]CategoryRule {
	m := make(map[string]CategoryRule, len(categoryTable))
	for _, e := range categoryTable {
		m[e.Name] = e.Rule
	}
	return m
}()

// ValidCategory reports whether name may be used for transactions of the
// given type.
func ValidCategory(name string, typ TransactionType) bool {
	rule, ok := categoryRules[name]
	if !ok {
		return false
	}
	if typ == Income {
		return rule.Income
	}
	return rule.Expense
}

// ValidBudgetCategory reports whether name may be used for a budget.
func ValidBudgetCategory(name string) bool {
	return categoryRules[name].Budget
}

// KnownCategory reports whether name appears in the table at all.
func KnownCategory(name string) bool {
	_, ok := categoryRules[name]
	return ok
}

// IncomeCategories returns the categories offered for income entries, in
// table order.
func IncomeCategories() []string {
	return categoriesWhere(func(r CategoryRule) bool { return r.Income })
}

// ExpenseCategories returns the categories offered for expense entries, in
// table order.
func ExpenseCategories() []string {
	return categoriesWhere(func(r CategoryRule) bool { return r.Expense })
}

// BudgetCategories returns the categories a budget may be created for, in
// table order.
func BudgetCategories() []string {
	return categoriesWhere(func(r CategoryRule) bool { return r.Budget })
}

func categoriesWhere(keep func(CategoryRule) bool) []string {
	out := make([]string, 0, len(categoryTable))
	for _, e := range categoryTable {
		if e.Name == AdjustmentCategory {
			continue // never offered for manual entry
		}
		if keep(e.Rule) {
			out = append(out, e.Name)
		}
	}
	return out
}

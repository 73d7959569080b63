package http

import (
	"net/http"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/services"
)

type transactionJSON struct {
	ID        string  `json:"id"`
	Amount    string  `json:"amount"`
	Cents     int64   `json:"amount_cents"`
	Type      string  `json:"type"`
	Purpose   string  `json:"purpose"`
	Category  string  `json:"category"`
	Timestamp string  `json:"timestamp"`
	Effect    float64 `json:"effect"`
}

func toTransactionJSON(t core.Transaction) transactionJSON {
	return transactionJSON{
		ID:        t.ID,
		Amount:    t.Amount.Format(),
		Cents:     t.Amount.Cents,
		Type:      string(t.Type),
		Purpose:   t.Purpose,
		Category:  t.Category,
		Timestamp: t.Timestamp.UTC().Format(time.RFC3339Nano),
		Effect:    float64(t.Effect()) / 100.0,
	}
}

func toTransactionListJSON(txs []core.Transaction) []transactionJSON {
	out := make([]transactionJSON, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionJSON(t))
	}
	return out
}

type budgetJSON struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Amount    string `json:"amount"`
	Cents     int64  `json:"amount_cents"`
	Purpose   string `json:"purpose"`
	Timestamp string `json:"timestamp"`
}

func toBudgetJSON(b core.Budget) budgetJSON {
	return budgetJSON{
		ID:        b.ID,
		Category:  b.Category,
		Amount:    b.Amount.Format(),
		Cents:     b.Amount.Cents,
		Purpose:   b.Purpose,
		Timestamp: b.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

type transactionRequest struct {
	Amount    string `json:"amount"`
	Type      string `json:"type"`
	Purpose   string `json:"purpose"`
	Category  string `json:"category"`
	Timestamp string `json:"timestamp,omitempty"`
}

func (req transactionRequest) toInput() (services.TransactionInput, error) {
	cents, err := core.ParseAmountToCents(req.Amount)
	if err != nil {
		return services.TransactionInput{}, err
	}
	in := services.TransactionInput{
		Amount:   core.Money{Cents: cents},
		Type:     core.TransactionType(req.Type),
		Purpose:  sanitizeInput(req.Purpose),
		Category: sanitizeInput(req.Category),
	}
	if req.Timestamp != "" {
		ts, err := core.ParseTimestamp(req.Timestamp)
		if err != nil {
			return services.TransactionInput{}, err
		}
		in.Timestamp = ts
	}
	return in, nil
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.snapshots.Summary(r.Context(), session(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"name":              summary.Name,
		"balance":           summary.Balance.Format(),
		"balance_cents":     summary.Balance.Cents,
		"available":         summary.Available.Format(),
		"available_cents":   summary.Available.Cents,
		"income_cents":      summary.Totals.Income.Cents,
		"expense_cents":     summary.Totals.Expenses.Cents,
		"recent":            toTransactionListJSON(summary.Recent),
		"budgets":           toBudgetList(summary.Budgets),
	})
}

func toBudgetList(budgets []core.Budget) []budgetJSON {
	out := make([]budgetJSON, 0, len(budgets))
	for _, b := range budgets {
		out = append(out, toBudgetJSON(b))
	}
	return out
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	category := sanitizeInput(r.URL.Query().Get("category"))
	txs, err := s.snapshots.Transactions(r.Context(), session(r), category)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"transactions": toTransactionListJSON(txs),
	})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	sess := session(r)
	txn, err := s.ledger.AddTransaction(r.Context(), sess, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.invalidateBreakdown(sess.UID)
	respondJSON(w, http.StatusCreated, toTransactionJSON(txn))
}

func (s *Server) handleEditTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	sess := session(r)
	txn, err := s.ledger.EditTransaction(r.Context(), sess, r.PathValue("id"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.invalidateBreakdown(sess.UID)
	respondJSON(w, http.StatusOK, toTransactionJSON(txn))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	if err := s.ledger.DeleteTransaction(r.Context(), sess, r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.invalidateBreakdown(sess.UID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetBalance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Balance string `json:"balance"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// The new balance may legitimately be zero; only the format is checked
	// here, the signed delta is computed inside the service.
	target, err := core.ParseSignedCents(req.Balance)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	sess := session(r)
	adjustment, err := s.ledger.SetBalance(r.Context(), sess, target)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	s.invalidateBreakdown(sess.UID)
	resp := map[string]any{"balance_cents": target}
	if adjustment.ID != "" {
		resp["adjustment"] = toTransactionJSON(adjustment)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	typ := core.TransactionType(r.URL.Query().Get("type"))
	if typ == "" {
		typ = core.Expense
	}

	sess := session(r)
	key := sess.UID + ":" + string(typ)
	if data, found := s.breakdownCache.Get(key); found {
		respondJSON(w, http.StatusOK, map[string]any{"breakdown": toCategoryList(data)})
		return
	}

	breakdown, err := s.snapshots.Breakdown(r.Context(), sess, typ)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.breakdownCache.Set(key, breakdown)
	respondJSON(w, http.StatusOK, map[string]any{"breakdown": toCategoryList(breakdown)})
}

func toCategoryList(in []core.CategoryAmount) []map[string]any {
	out := make([]map[string]any, 0, len(in))
	for _, c := range in {
		out = append(out, map[string]any{
			"name":         c.Name,
			"amount":       c.Amount.Format(),
			"amount_cents": c.Amount.Cents,
		})
	}
	return out
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"income":  core.IncomeCategories(),
		"expense": core.ExpenseCategories(),
		"budget":  core.BudgetCategories(),
	})
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	budgets, err := s.budgets.List(r.Context(), session(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"budgets": toBudgetList(budgets)})
}

type budgetRequest struct {
	Category string `json:"category"`
	Amount   string `json:"amount"`
	Purpose  string `json:"purpose"`
}

func (req budgetRequest) toInput() (services.BudgetInput, error) {
	cents, err := core.ParseAmountToCents(req.Amount)
	if err != nil {
		return services.BudgetInput{}, err
	}
	return services.BudgetInput{
		Category: sanitizeInput(req.Category),
		Amount:   core.Money{Cents: cents},
		Purpose:  sanitizeInput(req.Purpose),
	}, nil
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	budget, err := s.budgets.Create(r.Context(), session(r), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, toBudgetJSON(budget))
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	budget, err := s.budgets.Update(r.Context(), session(r), r.PathValue("id"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toBudgetJSON(budget))
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.budgets.Delete(r.Context(), session(r), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBudgetConsumption(w http.ResponseWriter, r *http.Request) {
	reports, err := s.budgets.Consumption(r.Context(), session(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]map[string]any, 0, len(reports))
	for _, rep := range reports {
		out = append(out, map[string]any{
			"budget":          toBudgetJSON(rep.Budget),
			"spent_cents":     rep.Spent.Cents,
			"remaining_cents": rep.Remaining.Cents,
			"percent_used":    rep.PercentUsed,
			"status":          string(rep.Status),
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"consumption": out})
}

func (s *Server) invalidateBreakdown(uid string) {
	s.breakdownCache.Delete(uid + ":" + string(core.Income))
	s.breakdownCache.Delete(uid + ":" + string(core.Expense))
}

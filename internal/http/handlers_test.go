package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bilancio/internal/services"
	"bilancio/internal/store/memory"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st := memory.New()
	ledger := services.NewLedgerService(st, nil)
	budgets := services.NewBudgetService(st)
	snapshots := services.NewSnapshotService(st)
	srv := NewServer(":0", ledger, budgets, snapshots)
	t.Cleanup(func() {
		snapshots.Close()
		srv.rateLimiter.stop()
		close(srv.stopCacheCleanup)
	})
	return srv
}

func doRequest(t *testing.T, srv *Server, method, path, uid, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if uid != "" {
		req.Header.Set("X-User-ID", uid)
	}
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)
	if rec := doRequest(t, srv, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}
	if rec := doRequest(t, srv, http.MethodGet, "/readyz", "", ""); rec.Code != http.StatusOK {
		t.Errorf("readyz = %d", rec.Code)
	}
}

func TestCreateTransactionAndSummary(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/transactions", "u1",
		`{"amount":"3000.00","type":"income","purpose":"Paycheck","category":"Salary"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d, body %s", rec.Code, rec.Body.String())
	}

	var created struct {
		ID    string `json:"id"`
		Cents int64  `json:"amount_cents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.Cents != 300000 {
		t.Errorf("created = %+v", created)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/summary", "u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("summary = %d", rec.Code)
	}
	var summary struct {
		BalanceCents int64 `json:"balance_cents"`
		Recent       []any `json:"recent"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.BalanceCents != 300000 {
		t.Errorf("balance = %d, want 300000", summary.BalanceCents)
	}
	if len(summary.Recent) != 1 {
		t.Errorf("recent = %d, want 1", len(summary.Recent))
	}
}

func TestMissingSessionIsUnauthorized(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/summary", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestCreateTransactionValidation(t *testing.T) {
	srv := newTestServer(t)

	t.Run("bad amount", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/transactions", "u1",
			`{"amount":"-5","type":"expense","purpose":"p","category":"Rent"}`)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422", rec.Code)
		}
	})

	t.Run("bad category", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/transactions", "u1",
			`{"amount":"5","type":"expense","purpose":"p","category":"Yachts"}`)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422", rec.Code)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := doRequest(t, srv, http.MethodPost, "/api/transactions", "u1", `{not json`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestEditAndDeleteNotFound(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPut, "/api/transactions/ghost", "u1",
		`{"amount":"5","type":"expense","purpose":"p","category":"Rent"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("edit status = %d, want 404", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodDelete, "/api/transactions/ghost", "u1", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("delete status = %d, want 404", rec.Code)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/transactions", "u1",
		`{"amount":"45.00","type":"expense","purpose":"Groceries","category":"Food & Drinks"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d", rec.Code)
	}
	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &created)

	rec = doRequest(t, srv, http.MethodPut, "/api/transactions/"+created.ID, "u1",
		`{"amount":"30.00","type":"expense","purpose":"Groceries","category":"Food & Drinks"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("edit = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/summary", "u1", "")
	var summary struct {
		BalanceCents int64 `json:"balance_cents"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &summary)
	if summary.BalanceCents != -3000 {
		t.Errorf("balance after edit = %d, want -3000", summary.BalanceCents)
	}

	rec = doRequest(t, srv, http.MethodDelete, "/api/transactions/"+created.ID, "u1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/summary", "u1", "")
	_ = json.Unmarshal(rec.Body.Bytes(), &summary)
	if summary.BalanceCents != 0 {
		t.Errorf("balance after delete = %d, want 0", summary.BalanceCents)
	}
}

func TestSetBalance(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPut, "/api/balance", "u1", `{"balance":"500.00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("set balance = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		BalanceCents int64 `json:"balance_cents"`
		Adjustment   *struct {
			Category string `json:"category"`
			Purpose  string `json:"purpose"`
		} `json:"adjustment"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.BalanceCents != 50000 {
		t.Errorf("balance = %d, want 50000", resp.BalanceCents)
	}
	if resp.Adjustment == nil || resp.Adjustment.Category != "Adjustment" || resp.Adjustment.Purpose != "Balance Adjustment" {
		t.Errorf("adjustment = %+v", resp.Adjustment)
	}
}

func TestBudgetEndpoints(t *testing.T) {
	srv := newTestServer(t)

	// Fund the account so the budget passes the balance check
	rec := doRequest(t, srv, http.MethodPut, "/api/balance", "u1", `{"balance":"1000.00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("seed balance = %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/budgets", "u1",
		`{"category":"Travel","amount":"200.00","purpose":"Holiday"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create budget = %d, body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &created)

	rec = doRequest(t, srv, http.MethodPost, "/api/budgets", "u1",
		`{"category":"Travel","amount":"99999.00","purpose":"Too big"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("over-allocation = %d, want 422", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/budgets/consumption", "u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("consumption = %d", rec.Code)
	}
	var cons struct {
		Consumption []struct {
			Status string `json:"status"`
		} `json:"consumption"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &cons)
	if len(cons.Consumption) != 1 || cons.Consumption[0].Status != "ok" {
		t.Errorf("consumption = %+v", cons)
	}

	rec = doRequest(t, srv, http.MethodDelete, "/api/budgets/"+created.ID, "u1", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete budget = %d", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodDelete, "/api/budgets/"+created.ID, "u1", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", rec.Code)
	}
}

func TestBreakdownEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/transactions", "u1",
		`{"amount":"10.00","type":"expense","purpose":"p","category":"Rent"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/breakdown?type=expense", "u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("breakdown = %d", rec.Code)
	}
	var resp struct {
		Breakdown []struct {
			Name  string `json:"name"`
			Cents int64  `json:"amount_cents"`
		} `json:"breakdown"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Breakdown) != 1 || resp.Breakdown[0].Name != "Rent" || resp.Breakdown[0].Cents != 1000 {
		t.Errorf("breakdown = %+v", resp.Breakdown)
	}

	// The cache is invalidated by the next mutation
	rec = doRequest(t, srv, http.MethodPost, "/api/transactions", "u1",
		`{"amount":"5.00","type":"expense","purpose":"p","category":"Rent"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("second create = %d", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodGet, "/api/breakdown?type=expense", "u1", "")
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp.Breakdown) != 1 || resp.Breakdown[0].Cents != 1500 {
		t.Errorf("breakdown after mutation = %+v", resp.Breakdown)
	}
}

func TestCategoriesEndpoint(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/categories", "u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("categories = %d", rec.Code)
	}
	var resp struct {
		Income  []string `json:"income"`
		Expense []string `json:"expense"`
		Budget  []string `json:"budget"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Income) == 0 || len(resp.Expense) == 0 || len(resp.Budget) == 0 {
		t.Errorf("empty category lists: %+v", resp)
	}
	for _, name := range resp.Expense {
		if name == "Adjustment" {
			t.Error("adjustment category must not be offered")
		}
	}
}

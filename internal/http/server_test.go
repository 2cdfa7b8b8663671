package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"finance/internal/core"
	"finance/internal/log"
	"finance/internal/services"
	"finance/internal/table/memory"
)

func seededTable() *memory.Store {
	old := core.SessionAt(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	return memory.New(
		core.Record{Date: core.NewDate(2024, 1, 5), Category: "food", Title: "lunch", Amount: decimal.RequireFromString("12.50"), Session: old},
		core.Record{Date: core.NewDate(2024, 1, 6), Category: "food", Title: "dinner", Amount: decimal.RequireFromString("20.00"), Session: old},
		core.Record{Date: core.NewDate(2024, 2, 1), Category: "rent", Title: "rent", Amount: decimal.RequireFromString("1000.00"), Session: old},
	)
}

func newTestServer(t *testing.T, tbl *memory.Store, opts Options) (*Server, *services.FinanceService) {
	t.Helper()
	svc := services.NewFinanceService("kai", tbl, services.WithLogger(log.Discard()))
	if err := svc.Init(context.Background(), false); err != nil {
		t.Fatalf("init: %v", err)
	}
	opts.Logger = log.Discard()
	srv, err := NewServer(opts, svc)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, svc
}

func do(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, seededTable(), Options{})
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := do(srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	failing, _ := newTestServer(t, seededTable(), Options{Ready: func(context.Context) error { return errors.New("db down") }})
	rr := do(failing, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestReadEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, seededTable(), Options{})

	if got := decode[string](t, do(srv, http.MethodGet, "/api/user_name", "")); got != "kai" {
		t.Fatalf("user_name = %q", got)
	}

	all := decode[map[string]recordJSON](t, do(srv, http.MethodGet, "/api/get_all_expenses", ""))
	if len(all) != 3 || all["0"].Title != "rent" || all["2"].Date != "2024-01-05" {
		t.Fatalf("get_all_expenses = %+v", all)
	}

	food := decode[map[string]recordJSON](t, do(srv, http.MethodGet, "/api/expenses_by_category?category=food", ""))
	if len(food) != 2 {
		t.Fatalf("expenses_by_category = %+v", food)
	}
	if rr := do(srv, http.MethodGet, "/api/expenses_by_category", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing category status=%d", rr.Code)
	}

	totals := decode[[]map[string]any](t, do(srv, http.MethodGet, "/api/get_monthly_totals?month=2024-01", ""))
	if len(totals) != 1 || totals[0]["category"] != "food" || totals[0]["amount"] != 32.5 {
		t.Fatalf("get_monthly_totals = %+v", totals)
	}

	heights := decode[[]categoryHeightJSON](t, do(srv, http.MethodGet, "/api/get_monthly_heights?month=ALL", ""))
	if len(heights) != 2 || heights[0].Amount != 0.0325 || heights[1].Amount != 1 {
		t.Fatalf("get_monthly_heights = %+v", heights)
	}

	sum := decode[map[string]string](t, do(srv, http.MethodGet, "/api/get_monthly_sum", ""))
	if sum["sum"] != "1,032.50" {
		t.Fatalf("get_monthly_sum = %+v", sum)
	}

	months := decode[[]string](t, do(srv, http.MethodGet, "/api/months_list", ""))
	if strings.Join(months, ",") != "ALL,2024-02,2024-01" {
		t.Fatalf("months_list = %v", months)
	}
}

func TestInvalidMonth(t *testing.T) {
	srv, _ := newTestServer(t, seededTable(), Options{})
	for _, path := range []string{"/api/get_monthly_totals", "/api/get_monthly_heights", "/api/get_monthly_sum"} {
		rr := do(srv, http.MethodGet, path+"?month=2030-01", "")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if body := decode[map[string]string](t, rr); body["error"] != "Invalid Month: 2030-01" {
			t.Fatalf("%s error = %q", path, body["error"])
		}
	}
}

func TestAddExpense(t *testing.T) {
	tbl := seededTable()
	srv, svc := newTestServer(t, tbl, Options{})

	rr := do(srv, http.MethodPost, "/api/add_expense", `{"date":"2024-02-03","category":"food","title":"snack","amount":2.499}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add status=%d body=%s", rr.Code, rr.Body.String())
	}
	if body := decode[map[string]string](t, rr); body["message"] != "expense add success" {
		t.Fatalf("add body = %+v", body)
	}
	if tbl.Writes() != 1 || len(svc.AllRecords()) != 4 {
		t.Fatalf("add did not persist")
	}

	// Same session cannot write twice.
	rr = do(srv, http.MethodPost, "/api/add_expense", `{"date":"2024-02-03","category":"food","title":"snack","amount":"1"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}

	rr = do(srv, http.MethodPost, "/api/establish_session", "")
	if body := decode[map[string]string](t, rr); !strings.HasPrefix(body["success"], "new session established: ") {
		t.Fatalf("establish_session = %+v", body)
	}
	rr = do(srv, http.MethodPost, "/api/add_expense", `{"date":"2024-02-04","category":"fun","title":"film","amount":"9"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add after new session status=%d", rr.Code)
	}
}

func TestAddExpenseValidation(t *testing.T) {
	srv, _ := newTestServer(t, seededTable(), Options{})
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing title", `{"date":"2024-02-03","category":"food","amount":1}`, "missing required information"},
		{"zero amount", `{"date":"2024-02-03","category":"food","title":"x","amount":0}`, "missing required information"},
		{"bad date", `{"date":"03/02/2024","category":"food","title":"x","amount":1}`, "invalid date"},
		{"malformed json", `{"date":`, "malformed JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(srv, http.MethodPost, "/api/add_expense", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status=%d", rr.Code)
			}
			if body := decode[map[string]string](t, rr); !strings.Contains(body["error"], tt.want) {
				t.Fatalf("error = %q, want %q", body["error"], tt.want)
			}
		})
	}
}

func TestDeleteExpense(t *testing.T) {
	srv, svc := newTestServer(t, seededTable(), Options{})

	if rr := do(srv, http.MethodPost, "/api/delete_expense?index=7", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad index status=%d", rr.Code)
	}
	if rr := do(srv, http.MethodPost, "/api/delete_expense?index=abc", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric index status=%d", rr.Code)
	}
	if rr := do(srv, http.MethodPost, "/api/delete_expense", ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing index status=%d", rr.Code)
	}

	rr := do(srv, http.MethodPost, "/api/delete_expense?index=0", "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("delete status=%d body=%s", rr.Code, rr.Body.String())
	}
	if body := decode[map[string]string](t, rr); body["message"] != "expense delete success" {
		t.Fatalf("delete body = %+v", body)
	}

	do(srv, http.MethodPost, "/api/establish_session", "")
	id := svc.AllRecords()[1].ID
	if rr := do(srv, http.MethodPost, "/api/delete_expense?id="+id.String(), ""); rr.Code != http.StatusCreated {
		t.Fatalf("delete by id status=%d", rr.Code)
	}
	if len(svc.AllRecords()) != 1 {
		t.Fatalf("expected one record left, have %d", len(svc.AllRecords()))
	}
}

func TestCategoryKeysAreDeleteIndexes(t *testing.T) {
	srv, svc := newTestServer(t, seededTable(), Options{})

	food := decode[map[string]recordJSON](t, do(srv, http.MethodGet, "/api/expenses_by_category?category=food", ""))
	if len(food) != 2 || food["1"].Title != "dinner" || food["2"].Title != "lunch" {
		t.Fatalf("expenses_by_category = %+v", food)
	}

	if rr := do(srv, http.MethodPost, "/api/delete_expense?index=1", ""); rr.Code != http.StatusCreated {
		t.Fatalf("delete status=%d body=%s", rr.Code, rr.Body.String())
	}
	left := svc.AllRecords()
	if len(left) != 2 || left[0].Title != "rent" || left[1].Title != "lunch" {
		t.Fatalf("wrong record deleted, left %+v", left)
	}
}

func TestRefreshData(t *testing.T) {
	tbl := seededTable()
	srv, _ := newTestServer(t, tbl, Options{})

	later := core.SessionAt(time.Now().Add(time.Hour))
	rows, _ := tbl.ReadAll(context.Background())
	rows = append(rows, core.Record{Date: core.NewDate(2024, 3, 1), Category: "fun", Title: "film", Amount: decimal.RequireFromString("9"), Session: later})
	if err := tbl.ReplaceAll(context.Background(), rows); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rr := do(srv, http.MethodPost, "/api/refresh_data", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh status=%d", rr.Code)
	}
	records := decode[[]recordJSON](t, rr)
	if len(records) != 4 || records[0].Title != "film" {
		t.Fatalf("refresh_data = %+v", records)
	}
}

func TestMethodAndRoutes(t *testing.T) {
	srv, _ := newTestServer(t, seededTable(), Options{})
	if rr := do(srv, http.MethodGet, "/api/add_expense", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
	if rr := do(srv, http.MethodGet, "/api/unknown", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestCORSAndSecurityHeaders(t *testing.T) {
	srv, _ := newTestServer(t, seededTable(), Options{CORSAllowOrigin: "*"})
	rr := do(srv, http.MethodOptions, "/api/add_expense", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("preflight status=%d", rr.Code)
	}
	rr = do(srv, http.MethodGet, "/api/months_list", "")
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" || rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing headers: %v", rr.Header())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing request id header")
	}
}

func TestPostRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, seededTable(), Options{RateLimitPerMinute: 1})
	if rr := do(srv, http.MethodPost, "/api/establish_session", ""); rr.Code != http.StatusOK {
		t.Fatalf("first POST status=%d", rr.Code)
	}
	rr := do(srv, http.MethodPost, "/api/establish_session", "")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr := do(srv, http.MethodGet, "/api/months_list", ""); rr.Code != http.StatusOK {
		t.Fatalf("GET should not be limited, got %d", rr.Code)
	}
}

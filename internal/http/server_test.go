package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loans/internal/core"
	"loans/internal/log"
	"loans/internal/services"
	"loans/internal/storage/memory"
)

func newTestServer(t *testing.T, opts Options) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New(memory.DefaultLoans(), memory.DefaultPayments())
	svc := services.NewLoanService(store, services.WithClock(func() time.Time {
		return time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	}))
	if opts.Logger == nil {
		opts.Logger = log.New(log.Config{Level: slog.LevelError, Output: io.Discard})
	}
	srv := NewServer(":0", svc, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, store
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestWelcomeHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, welcomeMessage, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestReadyReportsFailingDependency(t *testing.T) {
	srv, _ := newTestServer(t, Options{Readiness: map[string]ReadinessCheck{
		"sqlite": func(context.Context) error { return nil },
		"redis":  func(context.Context) error { return errors.New("connection refused") },
	}})

	rr := do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	body := decode[map[string]any](t, rr)
	failures := body["failures"].(map[string]any)
	assert.Equal(t, "connection refused", failures["redis"])
	assert.NotContains(t, failures, "sqlite")
}

func TestAddPaymentEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"success", `{"loan_id": 4, "payment_date": "2025-03-05"}`, http.StatusCreated, ""},
		{"missing date defaults to today", `{"loan_id": 4}`, http.StatusCreated, ""},
		{"missing loan id", `{"payment_date": "2025-03-05"}`, http.StatusBadRequest, "loan_id is required"},
		{"loan id wrong type", `{"loan_id": "four"}`, http.StatusBadRequest, "wrong type"},
		{"malformed json", `{"loan_id": 4`, http.StatusBadRequest, ""},
		{"empty body", ``, http.StatusBadRequest, "JSON object"},
		{"unknown loan", `{"loan_id": 9999, "payment_date": "2025-03-05"}`, http.StatusNotFound, "not found"},
		{"zero loan id", `{"loan_id": 0, "payment_date": "2025-03-05"}`, http.StatusNotFound, "loan with id 0 not found"},
		{"negative loan id", `{"loan_id": -2}`, http.StatusNotFound, "loan with id -2 not found"},
		{"bad date", `{"loan_id": 1, "payment_date": "03/05/2025"}`, http.StatusBadRequest, "invalid date format"},
		{"blank date", `{"loan_id": 1, "payment_date": ""}`, http.StatusBadRequest, "invalid date format"},
		{"padded date", `{"loan_id": 1, "payment_date": " 2025-03-04 "}`, http.StatusBadRequest, "invalid date format"},
		{"null date defaults to today", `{"loan_id": 4, "payment_date": null}`, http.StatusCreated, ""},
		{"future date", `{"loan_id": 1, "payment_date": "2099-01-01"}`, http.StatusBadRequest, "future"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, store := newTestServer(t, Options{})
			rr := do(t, srv, http.MethodPost, "/api/payments", tt.body)
			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())

			payments, _ := store.ListPayments(context.Background())
			if tt.wantStatus != http.StatusCreated {
				body := decode[map[string]string](t, rr)
				assert.Contains(t, body["error"], tt.wantError)
				assert.Len(t, payments, 3)
				return
			}

			body := decode[addPaymentResponse](t, rr)
			assert.Equal(t, "Payment added successfully", body.Message)
			assert.Equal(t, int64(4), body.Payment.ID)
			assert.Equal(t, int64(4), body.Payment.LoanID)
			assert.Len(t, payments, 4)
		})
	}
}

func TestAddPaymentDefaultDateIsToday(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodPost, "/api/payments", `{"loan_id": 2}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "2025-05-01", decode[addPaymentResponse](t, rr).Payment.PaymentDate)
}

func TestListLoansEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	rr := do(t, srv, http.MethodGet, "/api/loans", "")
	require.Equal(t, http.StatusOK, rr.Code)

	loans := decode[[]loanResponse](t, rr)
	require.Len(t, loans, 4)
	assert.Equal(t, "Tom's Loan", loans[0].Name)
	assert.Equal(t, 5.0, loans[0].InterestRate)
	assert.Equal(t, "On Time", loans[0].Status)
	assert.Equal(t, "green", loans[0].Color)
	assert.Equal(t, "Late", loans[1].Status)
	assert.Equal(t, "Defaulted", loans[2].Status)
	assert.Equal(t, "Unpaid", loans[3].Status)
	assert.Nil(t, loans[3].PaymentDate)
	assert.Contains(t, rr.Body.String(), `"payment_date":null`)
}

func TestGetLoanEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/api/loans/2", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Chris Wailaka", decode[loanResponse](t, rr).Name)

	rr = do(t, srv, http.MethodGet, "/api/loans/42", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/loans/0", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/loans/abc", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAddLoanEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/api/loans",
		`{"name": "New Test Loan", "interest_rate": 4.0, "principal": 20000, "due_date": "2025-03-01", "payment_date": "2025-03-20"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	loan := decode[loanResponse](t, rr)
	assert.Equal(t, int64(5), loan.ID)
	assert.Equal(t, "Late", loan.Status)
	assert.Equal(t, "/api/loans/5", rr.Header().Get("Location"))

	rr = do(t, srv, http.MethodGet, "/api/loans", "")
	assert.Len(t, decode[[]loanResponse](t, rr), 5)

	bad := []string{
		`{"interest_rate": 4.0, "principal": 1, "due_date": "2025-03-01"}`,
		`{"name": "x", "principal": 1, "due_date": "2025-03-01"}`,
		`{"name": "x", "interest_rate": 1, "due_date": "2025-03-01"}`,
		`{"name": "x", "interest_rate": 1, "principal": 1, "due_date": "tomorrow"}`,
	}
	for _, body := range bad {
		rr := do(t, srv, http.MethodPost, "/api/loans", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
}

func TestListPaymentsAndSummary(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodGet, "/api/payments", "")
	require.Equal(t, http.StatusOK, rr.Code)
	payments := decode[[]paymentResponse](t, rr)
	require.Len(t, payments, 3)
	assert.Equal(t, "2025-04-05", payments[2].PaymentDate)

	rr = do(t, srv, http.MethodGet, "/api/loans/summary", "")
	require.Equal(t, http.StatusOK, rr.Code)
	summary := decode[summaryResponse](t, rr)
	assert.Equal(t, 4, summary.TotalLoans)
	assert.Equal(t, 1, summary.ByStatus["Defaulted"])
	assert.Equal(t, int64(30000), summary.PrincipalByStatus["Defaulted"])
}

func TestRoutingErrors(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	for _, tc := range []struct{ method, target string }{
		{http.MethodDelete, "/api/payments"},
		{http.MethodPut, "/api/loans"},
		{http.MethodPatch, "/api/loans/1"},
		{http.MethodPost, "/"},
	} {
		rr := do(t, srv, tc.method, tc.target, "")
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code, "%s %s", tc.method, tc.target)
		assert.Equal(t, "method not allowed", decode[map[string]string](t, rr)["error"], "%s %s", tc.method, tc.target)
	}

	rr := do(t, srv, http.MethodGet, "/api/nothing", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "resource not found", decode[map[string]string](t, rr)["error"])
}

func TestGraphQLIsMounted(t *testing.T) {
	srv, _ := newTestServer(t, Options{GraphQL: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	})})

	rr := do(t, srv, http.MethodPost, "/graphql", `{"query":"{ loans { id } }"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":{}}`, rr.Body.String())
}

func TestWriteRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, Options{RateLimitPerMinute: 2})

	codes := []int{}
	for i := 0; i < 3; i++ {
		rr := do(t, srv, http.MethodPost, "/api/payments", `{"loan_id": 1, "payment_date": "2025-03-02"}`)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{201, 201, 429}, codes)

	// reads are not limited
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/api/loans", "").Code)
}

func TestRequestLogging(t *testing.T) {
	var buf bytes.Buffer
	srv, _ := newTestServer(t, Options{Logger: log.New(log.Config{Level: slog.LevelInfo, Output: &buf})})

	do(t, srv, http.MethodPost, "/api/payments", `{"loan_id": 1, "payment_date": "2025-03-02"}`)

	out := buf.String()
	assert.Contains(t, out, "HTTP request completed")
	assert.Contains(t, out, "Payment recorded via API")
	assert.Contains(t, out, "request_id=")
	assert.Equal(t, int64(1), srv.Metrics().TotalRequests)
}

type failingService struct {
	LoanService
	err error
}

func (f failingService) ListLoansWithStatus(context.Context) ([]core.LoanView, error) {
	return nil, f.err
}

func TestUnexpectedErrorsReturn500(t *testing.T) {
	srv := NewServer(":0", failingService{err: core.Unexpected("load loans", errors.New("disk on fire"))}, Options{
		Logger: log.New(log.Config{Level: slog.LevelError, Output: io.Discard}),
	})
	defer srv.Shutdown(context.Background())

	rr := do(t, srv, http.MethodGet, "/api/loans", "")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decode[map[string]string](t, rr)
	assert.Equal(t, "An unexpected error occurred", body["error"])
	assert.Contains(t, body["details"], "disk on fire")
}

func TestStatusForKind(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusForKind(core.KindInvalidInput))
	assert.Equal(t, http.StatusBadRequest, StatusForKind(core.KindInvalidDateFormat))
	assert.Equal(t, http.StatusBadRequest, StatusForKind(core.KindFutureDate))
	assert.Equal(t, http.StatusNotFound, StatusForKind(core.KindLoanNotFound))
	assert.Equal(t, http.StatusInternalServerError, StatusForKind(core.KindUnexpected))
}

func TestSecurityMetrics(t *testing.T) {
	srv, _ := newTestServer(t, Options{RateLimitPerMinute: 1})

	do(t, srv, http.MethodPost, "/api/payments", `{"loan_id": 1}`)
	rr := do(t, srv, http.MethodPost, "/api/payments", `{"loan_id": 1}`)
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	assert.Equal(t, int64(1), srv.RateLimitMetrics().TotalHits)

	do(t, srv, http.MethodGet, "/api/loans?file=../../etc/passwd", "")
	assert.Equal(t, int64(1), srv.DetectionMetrics().SuspiciousRequests)
}

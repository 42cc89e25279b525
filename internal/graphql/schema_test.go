package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loans/internal/log"
	"loans/internal/services"
	"loans/internal/storage/memory"
)

type gqlResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type loanWithPayment struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	InterestRate float64 `json:"interestRate"`
	Principal    int64   `json:"principal"`
	DueDate      string  `json:"dueDate"`
	PaymentID    *int64  `json:"paymentId"`
	PaymentDate  *string `json:"paymentDate"`
	Status       string  `json:"status"`
	Color        string  `json:"color"`
}

type loanPayment struct {
	ID          int64  `json:"id"`
	LoanID      int64  `json:"loanId"`
	PaymentDate string `json:"paymentDate"`
}

func newHandler(t *testing.T) *Handler {
	t.Helper()
	store := memory.New(memory.DefaultLoans(), memory.DefaultPayments())
	svc := services.NewLoanService(store, services.WithClock(func() time.Time {
		return time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	}))
	h, err := NewHandler(svc, log.New(log.Config{Level: slog.LevelError, Output: io.Discard}))
	require.NoError(t, err)
	return h
}

func post(t *testing.T, h http.Handler, query string, variables map[string]interface{}) gqlResponse {
	t.Helper()
	body, err := json.Marshal(Request{Query: query, Variables: variables})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp gqlResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func field[T any](t *testing.T, resp gqlResponse, name string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(resp.Data[name], &v))
	return v
}

func TestLoansWithPayments(t *testing.T) {
	h := newHandler(t)
	resp := post(t, h, `{ loansWithPayments { id name interestRate principal dueDate paymentId paymentDate status color } }`, nil)
	require.Empty(t, resp.Errors)

	loans := field[[]loanWithPayment](t, resp, "loansWithPayments")
	require.Len(t, loans, 4)

	want := []struct {
		status, color string
	}{
		{"On Time", "green"},
		{"Late", "orange"},
		{"Defaulted", "red"},
		{"Unpaid", "grey"},
	}
	for i, w := range want {
		assert.Equal(t, w.status, loans[i].Status, loans[i].Name)
		assert.Equal(t, w.color, loans[i].Color, loans[i].Name)
	}
	assert.Equal(t, 3.5, loans[1].InterestRate)
	assert.Equal(t, "2025-03-15", *loans[1].PaymentDate)
	assert.Nil(t, loans[3].PaymentID)
	assert.Nil(t, loans[3].PaymentDate)
}

func TestRawQueries(t *testing.T) {
	h := newHandler(t)
	resp := post(t, h, `{ loans { id name dueDate } loanPayments { id loanId paymentDate } }`, nil)
	require.Empty(t, resp.Errors)

	loans := field[[]loanWithPayment](t, resp, "loans")
	assert.Len(t, loans, 4)
	assert.Equal(t, "2025-03-01", loans[0].DueDate)

	payments := field[[]loanPayment](t, resp, "loanPayments")
	require.Len(t, payments, 3)
	assert.Equal(t, loanPayment{ID: 3, LoanID: 3, PaymentDate: "2025-04-05"}, payments[2])
}

func TestLoanByID(t *testing.T) {
	h := newHandler(t)

	resp := post(t, h, `query($id: Int!) { loan(id: $id) { name status } }`, map[string]interface{}{"id": 3})
	require.Empty(t, resp.Errors)
	loan := field[loanWithPayment](t, resp, "loan")
	assert.Equal(t, "NP Mobile Money", loan.Name)
	assert.Equal(t, "Defaulted", loan.Status)

	resp = post(t, h, `{ loan(id: 99) { name } }`, nil)
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0].Message, "loan with id 99 not found")
	assert.Equal(t, "null", string(resp.Data["loan"]))
}

func TestAddLoanMutation(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus string
		wantError  string
	}{
		{
			name:       "camel case arguments",
			query:      `mutation { addLoan(name: "A", interestRate: 4.0, principal: 20000, dueDate: "2025-03-01", paymentDate: "2025-03-20") { id status } }`,
			wantStatus: "Late",
		},
		{
			name:       "snake case arguments",
			query:      `mutation { addLoan(name: "B", interest_rate: 2.5, principal: 1000, due_date: "2025-03-01") { id status } }`,
			wantStatus: "Unpaid",
		},
		{
			name:      "missing interest rate",
			query:     `mutation { addLoan(name: "C", principal: 1000, dueDate: "2025-03-01") { id } }`,
			wantError: "interestRate is required",
		},
		{
			name:      "missing due date",
			query:     `mutation { addLoan(name: "C", interestRate: 1, principal: 1000) { id } }`,
			wantError: "dueDate is required",
		},
		{
			name:      "blank name",
			query:     `mutation { addLoan(name: " ", interestRate: 1, principal: 1000, dueDate: "2025-03-01") { id } }`,
			wantError: "name is required",
		},
		{
			name:      "future payment",
			query:     `mutation { addLoan(name: "D", interestRate: 1, principal: 1000, dueDate: "2025-03-01", paymentDate: "2030-01-01") { id } }`,
			wantError: "cannot be in the future",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(t)
			resp := post(t, h, tt.query, nil)

			if tt.wantError != "" {
				require.Len(t, resp.Errors, 1)
				assert.Contains(t, resp.Errors[0].Message, tt.wantError)
				return
			}
			require.Empty(t, resp.Errors)
			loan := field[loanWithPayment](t, resp, "addLoan")
			assert.Equal(t, int64(5), loan.ID)
			assert.Equal(t, tt.wantStatus, loan.Status)
		})
	}
}

func TestAddPaymentMutation(t *testing.T) {
	h := newHandler(t)
	const mutation = `mutation AddPayment($loanId: Int!, $paymentDate: String) {
		addPayment(loanId: $loanId, paymentDate: $paymentDate) { id loanId paymentDate }
	}`

	resp := post(t, h, mutation, map[string]interface{}{"loanId": 4, "paymentDate": "2025-03-05"})
	require.Empty(t, resp.Errors)
	assert.Equal(t, loanPayment{ID: 4, LoanID: 4, PaymentDate: "2025-03-05"}, field[loanPayment](t, resp, "addPayment"))

	resp = post(t, h, mutation, map[string]interface{}{"loanId": 1})
	require.Empty(t, resp.Errors)
	assert.Equal(t, "2025-05-01", field[loanPayment](t, resp, "addPayment").PaymentDate)

	resp = post(t, h, mutation, map[string]interface{}{"loanId": 1, "paymentDate": "05/03/2025"})
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0].Message, "invalid date format")

	resp = post(t, h, mutation, map[string]interface{}{"loanId": 77, "paymentDate": "2025-03-05"})
	require.Len(t, resp.Errors, 1)
	assert.Contains(t, resp.Errors[0].Message, "not found")

	resp = post(t, h, `{ loansWithPayments { id status } }`, nil)
	loans := field[[]loanWithPayment](t, resp, "loansWithPayments")
	assert.Equal(t, "Defaulted", loans[0].Status, "last payment wins")
	assert.Equal(t, "On Time", loans[3].Status)
}

func TestHandlerGetAndBadRequests(t *testing.T) {
	h := newHandler(t)

	q := url.Values{}
	q.Set("query", `query($id: Int!) { loan(id: $id) { name } }`)
	q.Set("variables", `{"id": 1}`)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/graphql?"+q.Encode(), nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Tom's Loan")
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewBufferString(`{"query": `)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "decode request body")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewBufferString(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "query is required")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/graphql?query=x&variables=nope", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMutationsOverGetAreRejected(t *testing.T) {
	store := memory.New(memory.DefaultLoans(), memory.DefaultPayments())
	svc := services.NewLoanService(store, services.WithClock(func() time.Time {
		return time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	}))
	h, err := NewHandler(svc, log.New(log.Config{Level: slog.LevelError, Output: io.Discard}))
	require.NoError(t, err)

	tests := []struct {
		name          string
		query         string
		operationName string
	}{
		{"anonymous", `mutation { addPayment(loanId: 4, paymentDate: "2025-03-05") { id } }`, ""},
		{"named", `mutation Pay { addPayment(loanId: 4) { id } }`, "Pay"},
		{"mixed document", `query Loans { loans { id } } mutation Pay { addPayment(loanId: 4) { id } }`, "Pay"},
		{"add loan", `mutation { addLoan(name: "G", interestRate: 1, principal: 10, dueDate: "2025-03-01") { id } }`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := url.Values{}
			q.Set("query", tt.query)
			if tt.operationName != "" {
				q.Set("operationName", tt.operationName)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/graphql?"+q.Encode(), nil))
			assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
			assert.Equal(t, http.MethodPost, rr.Header().Get("Allow"))
			assert.Contains(t, rr.Body.String(), "mutations must be sent with POST")
		})
	}

	loans, _ := store.ListLoans(context.Background())
	assert.Len(t, loans, 4)
	payments, _ := store.ListPayments(context.Background())
	assert.Len(t, payments, 3)

	// A query selected out of a document that also holds a mutation still runs.
	q := url.Values{}
	q.Set("query", `query Loans { loans { id } } mutation Pay { addPayment(loanId: 4) { id } }`)
	q.Set("operationName", "Loans")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/graphql?"+q.Encode(), nil))
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	payments, _ = store.ListPayments(context.Background())
	assert.Len(t, payments, 3)
}

func TestSyntaxErrorsAreReported(t *testing.T) {
	resp := post(t, newHandler(t), `{ loans { id `, nil)
	require.NotEmpty(t, resp.Errors)
	assert.Nil(t, resp.Data)
}

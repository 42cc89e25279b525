package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"loans/internal/core"
	"loans/internal/log"
	"loans/internal/services"
)

// LoanService is the application surface the REST handlers need.
type LoanService interface {
	AddPayment(ctx context.Context, req services.PaymentRequest) (core.Payment, error)
	AddLoan(ctx context.Context, req services.LoanRequest) (core.LoanView, error)
	ListLoansWithStatus(ctx context.Context) ([]core.LoanView, error)
	GetLoan(ctx context.Context, id int64) (core.LoanView, error)
	ListPayments(ctx context.Context) ([]core.Payment, error)
	Summary(ctx context.Context) (core.PortfolioSummary, error)
}

// requestLogger carries the request id set by the logging middleware.
func requestLogger(r *http.Request) *log.StructuredLogger {
	return log.NewStructuredLogger(log.FromContext(r.Context()))
}

const welcomeMessage = "Welcome to the Loan Application API"

func handleWelcome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(welcomeMessage))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady runs every readiness check and reports the failing ones.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failures := map[string]string{}
	for name, check := range s.readiness {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		NewJSONResponse().
			Status(http.StatusServiceUnavailable).
			Body(map[string]any{"status": "not ready", "failures": failures}).
			Write(w)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleAddPayment(w http.ResponseWriter, r *http.Request) {
	var req addPaymentRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	payment, err := s.loans.AddPayment(r.Context(), services.PaymentRequest{
		LoanID:      req.LoanID,
		PaymentDate: req.PaymentDate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	requestLogger(r).LogPaymentRecorded(r.Context(), payment.ID, payment.LoanID, payment.PaymentDate.String())
	NewJSONResponse().
		Status(http.StatusCreated).
		Body(addPaymentResponse{
			Message: "Payment added successfully",
			Payment: newPaymentResponse(payment),
		}).
		Write(w)
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := s.loans.ListPayments(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, newPaymentResponse(p))
	}
	NewJSONResponse().Body(resp).Write(w)
}

func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
	views, err := s.loans.ListLoansWithStatus(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]loanResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, newLoanResponse(v))
	}
	NewJSONResponse().Body(resp).Write(w)
}

func (s *Server) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	id, err := PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	view, err := s.loans.GetLoan(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newLoanResponse(view)).Write(w)
}

func (s *Server) handleAddLoan(w http.ResponseWriter, r *http.Request) {
	var req addLoanRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := requireField(req.InterestRate != nil, "interest_rate"); err != nil {
		writeError(w, r, err)
		return
	}
	if err := requireField(req.Principal != nil, "principal"); err != nil {
		writeError(w, r, err)
		return
	}

	view, err := s.loans.AddLoan(r.Context(), services.LoanRequest{
		Name:         req.Name,
		InterestRate: *req.InterestRate,
		Principal:    *req.Principal,
		DueDate:      req.DueDate,
		PaymentDate:  req.PaymentDate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	requestLogger(r).LogLoanAdded(r.Context(), view.ID, view.Name, view.Principal, view.DueDate.String(), string(view.Status))
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/loans/"+strconv.FormatInt(view.ID, 10)).
		Body(newLoanResponse(view)).
		Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.loans.Summary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(newSummaryResponse(summary)).Write(w)
}

package http

import (
	"github.com/shopspring/decimal"

	"loans/internal/core"
)

type addPaymentRequest struct {
	LoanID      *int64  `json:"loan_id"`
	PaymentDate *string `json:"payment_date"`
}

type addLoanRequest struct {
	Name         string           `json:"name"`
	InterestRate *decimal.Decimal `json:"interest_rate"`
	Principal    *int64           `json:"principal"`
	DueDate      string           `json:"due_date"`
	PaymentDate  *string          `json:"payment_date"`
}

type paymentResponse struct {
	ID          int64  `json:"id"`
	LoanID      int64  `json:"loan_id"`
	PaymentDate string `json:"payment_date"`
}

type addPaymentResponse struct {
	Message string          `json:"message"`
	Payment paymentResponse `json:"payment"`
}

type loanResponse struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	InterestRate float64 `json:"interest_rate"`
	Principal    int64   `json:"principal"`
	DueDate      string  `json:"due_date"`
	PaymentID    *int64  `json:"payment_id"`
	PaymentDate  *string `json:"payment_date"`
	Status       string  `json:"status"`
	Color        string  `json:"color"`
}

type summaryResponse struct {
	TotalLoans        int              `json:"total_loans"`
	TotalPrincipal    int64            `json:"total_principal"`
	ByStatus          map[string]int   `json:"by_status"`
	PrincipalByStatus map[string]int64 `json:"principal_by_status"`
}

func newPaymentResponse(p core.Payment) paymentResponse {
	return paymentResponse{ID: p.ID, LoanID: p.LoanID, PaymentDate: p.PaymentDate.String()}
}

func newLoanResponse(v core.LoanView) loanResponse {
	resp := loanResponse{
		ID:           v.ID,
		Name:         v.Name,
		InterestRate: v.InterestRate.InexactFloat64(),
		Principal:    v.Principal,
		DueDate:      v.DueDate.String(),
		PaymentID:    v.PaymentID,
		Status:       string(v.Status),
		Color:        string(v.Color),
	}
	if v.PaymentDate != nil {
		s := v.PaymentDate.String()
		resp.PaymentDate = &s
	}
	return resp
}

func newSummaryResponse(s core.PortfolioSummary) summaryResponse {
	resp := summaryResponse{
		TotalLoans:        s.TotalLoans,
		TotalPrincipal:    s.TotalPrincipal,
		ByStatus:          make(map[string]int, len(s.ByStatus)),
		PrincipalByStatus: make(map[string]int64, len(s.PrincipalByStatus)),
	}
	for st, n := range s.ByStatus {
		resp.ByStatus[string(st)] = n
	}
	for st, p := range s.PrincipalByStatus {
		resp.PrincipalByStatus[string(st)] = p
	}
	return resp
}

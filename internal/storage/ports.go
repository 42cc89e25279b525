package storage

import (
	"context"
	"errors"

	"loans/internal/core"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Ports implemented by every storage backend.
type (
	// LoanRepository stores loans in insertion order.
	LoanRepository interface {
		ListLoans(ctx context.Context) ([]core.Loan, error)
		// GetLoan returns ErrNotFound when no loan has the given id.
		GetLoan(ctx context.Context, id int64) (core.Loan, error)
		AppendLoan(ctx context.Context, l core.Loan) error
		// NextLoanID returns max(id)+1, or 1 for an empty store.
		NextLoanID(ctx context.Context) (int64, error)
	}

	// PaymentRepository stores payments in insertion order.
	PaymentRepository interface {
		ListPayments(ctx context.Context) ([]core.Payment, error)
		AppendPayment(ctx context.Context, p core.Payment) error
		// NextPaymentID returns max(id)+1, or 1 for an empty store.
		NextPaymentID(ctx context.Context) (int64, error)
	}

	// Repository is the full record store used by the loan service.
	Repository interface {
		LoanRepository
		PaymentRepository
		// AppendLoanWithPayment stores a new loan together with its first
		// payment. Either both records are stored or neither is.
		AppendLoanWithPayment(ctx context.Context, l core.Loan, p core.Payment) error
	}
)

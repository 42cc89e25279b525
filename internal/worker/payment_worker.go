package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"loans/internal/amqp"
	"loans/internal/core"
	"loans/internal/log"
)

// LoanReader is the read side of the loan service the worker needs.
type LoanReader interface {
	GetLoan(ctx context.Context, id int64) (core.LoanView, error)
	ListLoansWithStatus(ctx context.Context) ([]core.LoanView, error)
}

// PaymentWorker reacts to payment events published by the API.
type PaymentWorker struct {
	loans LoanReader
}

func NewPaymentWorker(loans LoanReader) *PaymentWorker {
	return &PaymentWorker{loans: loans}
}

// HandlePaymentRecorded processes a single payment event from AMQP. Late and
// defaulted repayments are logged as warnings.
func (w *PaymentWorker) HandlePaymentRecorded(ctx context.Context, msg *amqp.PaymentRecordedMessage) error {
	slog.InfoContext(ctx, "Processing payment event",
		"payment_id", msg.PaymentID,
		"loan_id", msg.LoanID,
		"payment_date", msg.PaymentDate)

	view, err := w.loans.GetLoan(ctx, msg.LoanID)
	if errors.Is(err, core.ErrLoanNotFound) {
		// publisher and worker may be pointed at different stores
		slog.WarnContext(ctx, "Payment event for unknown loan, skipping", "loan_id", msg.LoanID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get loan %d: %w", msg.LoanID, err)
	}

	if view.Status != msg.Status {
		slog.InfoContext(ctx, "Loan status changed since event was published",
			"loan_id", view.ID,
			"event_status", msg.Status,
			"current_status", view.Status)
	}

	switch msg.Status {
	case core.StatusLate, core.StatusDefaulted:
		slog.WarnContext(ctx, "Repayment outside grace period",
			"loan_id", view.ID,
			"name", view.Name,
			"principal", view.Principal,
			"due_date", view.DueDate.String(),
			"payment_date", msg.PaymentDate,
			"status", msg.Status)
	default:
		slog.InfoContext(ctx, "Repayment within grace period",
			"loan_id", view.ID,
			"status", msg.Status)
	}
	return nil
}

// StartupCheck logs every loan that is currently unpaid or defaulted so that
// problems missed while the worker was down are still surfaced.
func (w *PaymentWorker) StartupCheck(ctx context.Context) (int, error) {
	views, err := w.loans.ListLoansWithStatus(ctx)
	if err != nil {
		return 0, fmt.Errorf("list loans for startup check: %w", err)
	}

	flagged := 0
	for _, v := range views {
		if v.Status != core.StatusUnpaid && v.Status != core.StatusDefaulted {
			continue
		}
		flagged++
		slog.WarnContext(ctx, "Loan needs attention",
			"loan_id", v.ID,
			"name", v.Name,
			"due_date", v.DueDate.String(),
			"status", v.Status)
	}

	slog.InfoContext(ctx, "Startup check completed",
		log.FieldComponent, log.ComponentWorker,
		log.FieldOperation, log.OpStartup,
		"total", len(views),
		"flagged", flagged)
	return flagged, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"loans/internal/amqp"
	"loans/internal/cache"
	"loans/internal/core"
	"loans/internal/log"
	"loans/internal/storage"
)

const viewsCacheKey = "loans:with-status"

// PaymentPublisher announces recorded payments. *amqp.Client satisfies it.
type PaymentPublisher interface {
	PublishPaymentRecorded(ctx context.Context, msg *amqp.PaymentRecordedMessage) error
}

// PaymentRequest is the caller input for AddPayment. LoanID is a pointer so a
// missing field can be told apart from zero.
type PaymentRequest struct {
	LoanID      *int64
	PaymentDate *string
}

// LoanRequest is the caller input for AddLoan.
type LoanRequest struct {
	Name         string
	InterestRate decimal.Decimal
	Principal    int64
	DueDate      string
	PaymentDate  *string
}

// LoanService records payments and loans and serves loans decorated with
// their repayment status. All repository access is serialized by mu.
type LoanService struct {
	mu         sync.Mutex
	repo       storage.Repository
	classifier core.Classifier
	now        func() time.Time
	views      cache.Cache[[]core.LoanView]
	publisher  PaymentPublisher
}

// Option configures a LoanService.
type Option func(*LoanService)

// WithClassifier overrides the default 7/30 day windows.
func WithClassifier(c core.Classifier) Option {
	return func(s *LoanService) { s.classifier = c }
}

// WithClock replaces the time source used to decide "today".
func WithClock(now func() time.Time) Option {
	return func(s *LoanService) { s.now = now }
}

// WithViewCache enables caching of the decorated loan list.
func WithViewCache(c cache.Cache[[]core.LoanView]) Option {
	return func(s *LoanService) { s.views = c }
}

// WithPublisher enables payment events.
func WithPublisher(p PaymentPublisher) Option {
	return func(s *LoanService) { s.publisher = p }
}

func NewLoanService(repo storage.Repository, opts ...Option) *LoanService {
	s := &LoanService{
		repo:       repo,
		classifier: core.DefaultClassifier,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Classifier returns the status rules in use.
func (s *LoanService) Classifier() core.Classifier {
	return s.classifier
}

func (s *LoanService) today() core.Date {
	return core.DateOf(s.now().UTC())
}

// AddPayment validates req and appends exactly one payment record on success.
// Checks run in order: loan id, loan existence, date format, future date.
func (s *LoanService) AddPayment(ctx context.Context, req PaymentRequest) (core.Payment, error) {
	if req.LoanID == nil {
		return core.Payment{}, core.NewError(core.KindInvalidInput, "loan_id is required and must be an integer")
	}
	loanID := *req.LoanID

	s.mu.Lock()
	defer s.mu.Unlock()

	loan, err := s.repo.GetLoan(ctx, loanID)
	if errors.Is(err, storage.ErrNotFound) {
		return core.Payment{}, core.NewError(core.KindLoanNotFound, "loan with id %d not found", loanID)
	}
	if err != nil {
		return core.Payment{}, core.Unexpected("get loan", err)
	}

	date, err := s.paymentDate(req.PaymentDate)
	if err != nil {
		return core.Payment{}, err
	}

	id, err := s.repo.NextPaymentID(ctx)
	if err != nil {
		return core.Payment{}, core.Unexpected("next payment id", err)
	}
	payment := core.Payment{ID: id, LoanID: loanID, PaymentDate: date}
	if err := s.repo.AppendPayment(ctx, payment); err != nil {
		return core.Payment{}, core.Unexpected("append payment", err)
	}
	s.invalidate()

	status, _ := s.classifier.Classify(loan.DueDate, &date)
	slog.InfoContext(ctx, "Payment recorded",
		"payment_id", payment.ID,
		"loan_id", payment.LoanID,
		"payment_date", payment.PaymentDate.String(),
		"status", status)
	s.publish(ctx, payment, status)

	return payment, nil
}

// paymentDate parses an optional payment date. Only an absent date means
// today; a present one must be exactly YYYY-MM-DD.
func (s *LoanService) paymentDate(raw *string) (core.Date, error) {
	today := s.today()
	if raw == nil {
		return today, nil
	}
	date, err := core.ParseDate(*raw)
	if err != nil {
		return core.Date{}, core.NewError(core.KindInvalidDateFormat, "invalid date format %q, expected YYYY-MM-DD", *raw)
	}
	if date.After(today) {
		return core.Date{}, core.NewError(core.KindFutureDate, "payment date %s cannot be in the future", date)
	}
	return date, nil
}

// ListLoansWithStatus returns one decorated view per loan, in loan insertion
// order. When a loan has several payments the last recorded one wins.
func (s *LoanService) ListLoansWithStatus(ctx context.Context) ([]core.LoanView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listViews(ctx)
}

func (s *LoanService) listViews(ctx context.Context) ([]core.LoanView, error) {
	if s.views != nil {
		if cached, ok := s.views.Get(viewsCacheKey); ok {
			return append([]core.LoanView(nil), cached...), nil
		}
	}

	loans, err := s.repo.ListLoans(ctx)
	if err != nil {
		return nil, core.Unexpected("list loans", err)
	}
	payments, err := s.repo.ListPayments(ctx)
	if err != nil {
		return nil, core.Unexpected("list payments", err)
	}

	latest := make(map[int64]core.Payment, len(payments))
	for _, p := range payments {
		latest[p.LoanID] = p
	}

	views := make([]core.LoanView, 0, len(loans))
	for _, l := range loans {
		var paid *core.Payment
		if p, ok := latest[l.ID]; ok {
			paid = &p
		}
		views = append(views, s.classifier.Decorate(l, paid))
	}

	if s.views != nil {
		s.views.Set(viewsCacheKey, views)
	}
	return append([]core.LoanView(nil), views...), nil
}

// GetLoan returns a single decorated loan.
func (s *LoanService) GetLoan(ctx context.Context, id int64) (core.LoanView, error) {
	if id <= 0 {
		return core.LoanView{}, core.NewError(core.KindInvalidInput, "loan id must be a positive integer")
	}
	views, err := s.ListLoansWithStatus(ctx)
	if err != nil {
		return core.LoanView{}, err
	}
	for _, v := range views {
		if v.ID == id {
			return v, nil
		}
	}
	return core.LoanView{}, core.NewError(core.KindLoanNotFound, "loan with id %d not found", id)
}

// AddLoan validates req, appends the loan and, when a payment date is given,
// a payment for it. It returns the decorated loan.
func (s *LoanService) AddLoan(ctx context.Context, req LoanRequest) (core.LoanView, error) {
	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		return core.LoanView{}, core.NewError(core.KindInvalidInput, "name is required")
	case req.InterestRate.IsNegative():
		return core.LoanView{}, core.NewError(core.KindInvalidInput, "interest rate cannot be negative")
	case req.Principal <= 0:
		return core.LoanView{}, core.NewError(core.KindInvalidInput, "principal must be a positive integer")
	}

	due, err := core.ParseDate(req.DueDate)
	if err != nil {
		return core.LoanView{}, core.NewError(core.KindInvalidDateFormat, "invalid due date %q, expected YYYY-MM-DD", req.DueDate)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var paidOn *core.Date
	if req.PaymentDate != nil {
		date, err := s.paymentDate(req.PaymentDate)
		if err != nil {
			return core.LoanView{}, err
		}
		paidOn = &date
	}

	id, err := s.repo.NextLoanID(ctx)
	if err != nil {
		return core.LoanView{}, core.Unexpected("next loan id", err)
	}
	loan := core.Loan{
		ID:           id,
		Name:         name,
		InterestRate: req.InterestRate,
		Principal:    req.Principal,
		DueDate:      due,
	}

	if paidOn == nil {
		if err := s.repo.AppendLoan(ctx, loan); err != nil {
			return core.LoanView{}, core.Unexpected("append loan", err)
		}
		s.invalidate()
		slog.InfoContext(ctx, "Loan added", "loan_id", loan.ID, "name", loan.Name, "principal", loan.Principal)
		return s.classifier.Decorate(loan, nil), nil
	}

	paymentID, err := s.repo.NextPaymentID(ctx)
	if err != nil {
		return core.LoanView{}, core.Unexpected("next payment id", err)
	}
	payment := core.Payment{ID: paymentID, LoanID: loan.ID, PaymentDate: *paidOn}
	if err := s.repo.AppendLoanWithPayment(ctx, loan, payment); err != nil {
		return core.LoanView{}, core.Unexpected("append loan with payment", err)
	}
	s.invalidate()
	slog.InfoContext(ctx, "Loan added", "loan_id", loan.ID, "name", loan.Name, "principal", loan.Principal,
		"payment_id", payment.ID, "payment_date", payment.PaymentDate.String())

	view := s.classifier.Decorate(loan, &payment)
	s.publish(ctx, payment, view.Status)
	return view, nil
}

// ListLoans returns the raw loans in insertion order.
func (s *LoanService) ListLoans(ctx context.Context) ([]core.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loans, err := s.repo.ListLoans(ctx)
	if err != nil {
		return nil, core.Unexpected("list loans", err)
	}
	return loans, nil
}

// ListPayments returns the raw payments in insertion order.
func (s *LoanService) ListPayments(ctx context.Context) ([]core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payments, err := s.repo.ListPayments(ctx)
	if err != nil {
		return nil, core.Unexpected("list payments", err)
	}
	return payments, nil
}

// Summary counts decorated loans per status.
func (s *LoanService) Summary(ctx context.Context) (core.PortfolioSummary, error) {
	views, err := s.ListLoansWithStatus(ctx)
	if err != nil {
		return core.PortfolioSummary{}, err
	}
	return core.Summarize(views), nil
}

func (s *LoanService) invalidate() {
	if s.views != nil {
		s.views.Delete(viewsCacheKey)
	}
}

func (s *LoanService) publish(ctx context.Context, p core.Payment, status core.Status) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishPaymentRecorded(ctx, amqp.NewPaymentRecordedMessage(p, status)); err != nil {
		// the payment is stored; the event is best effort
		slog.ErrorContext(ctx, "Failed to publish payment event",
			log.FieldComponent, log.ComponentLoan,
			log.FieldPaymentID, p.ID,
			log.FieldLoanID, p.LoanID,
			log.FieldError, fmt.Errorf("publish payment recorded: %w", err))
	}
}

package memory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"loans/internal/core"
	"loans/internal/storage"
)

// Store keeps loans and payments in memory, in insertion order.
type Store struct {
	mu       sync.Mutex
	loans    []core.Loan
	payments []core.Payment
}

func New(loans []core.Loan, payments []core.Payment) *Store {
	return &Store{
		loans:    append([]core.Loan(nil), loans...),
		payments: append([]core.Payment(nil), payments...),
	}
}

// NewFromFile seeds the store from a YAML file. A missing file yields the
// built-in default portfolio.
func NewFromFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(DefaultLoans(), DefaultPayments()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	loans, payments, err := ParseSeed(data)
	if err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return New(loans, payments), nil
}

func (s *Store) ListLoans(_ context.Context) ([]core.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Loan(nil), s.loans...), nil
}

func (s *Store) GetLoan(_ context.Context, id int64) (core.Loan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.loans {
		if l.ID == id {
			return l, nil
		}
	}
	return core.Loan{}, storage.ErrNotFound
}

func (s *Store) AppendLoan(_ context.Context, l core.Loan) error {
	if err := l.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loans = append(s.loans, l)
	return nil
}

// AppendLoanWithPayment stores both records under one lock, or neither when
// validation fails.
func (s *Store) AppendLoanWithPayment(_ context.Context, l core.Loan, p core.Payment) error {
	if err := l.Validate(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if p.LoanID != l.ID {
		return fmt.Errorf("payment %d references loan %d, not %d", p.ID, p.LoanID, l.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loans = append(s.loans, l)
	s.payments = append(s.payments, p)
	return nil
}

func (s *Store) NextLoanID(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var max int64
	for _, l := range s.loans {
		if l.ID > max {
			max = l.ID
		}
	}
	return max + 1, nil
}

func (s *Store) ListPayments(_ context.Context) ([]core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Payment(nil), s.payments...), nil
}

func (s *Store) AppendPayment(_ context.Context, p core.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = append(s.payments, p)
	return nil
}

func (s *Store) NextPaymentID(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var max int64
	for _, p := range s.payments {
		if p.ID > max {
			max = p.ID
		}
	}
	return max + 1, nil
}

type seedFile struct {
	Loans []struct {
		ID           int64  `yaml:"id"`
		Name         string `yaml:"name"`
		InterestRate string `yaml:"interest_rate"`
		Principal    int64  `yaml:"principal"`
		DueDate      string `yaml:"due_date"`
	} `yaml:"loans"`
	Payments []struct {
		ID          int64  `yaml:"id"`
		LoanID      int64  `yaml:"loan_id"`
		PaymentDate string `yaml:"payment_date"`
	} `yaml:"payments"`
}

// ParseSeed decodes a YAML seed document. Every payment must reference a
// loan declared in the same document.
func ParseSeed(data []byte) ([]core.Loan, []core.Payment, error) {
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, nil, err
	}

	loans := make([]core.Loan, 0, len(seed.Loans))
	known := make(map[int64]bool, len(seed.Loans))
	for i, l := range seed.Loans {
		rate, err := decimal.NewFromString(l.InterestRate)
		if err != nil {
			return nil, nil, fmt.Errorf("loan %d: interest rate %q: %w", i, l.InterestRate, err)
		}
		due, err := core.ParseDate(l.DueDate)
		if err != nil {
			return nil, nil, fmt.Errorf("loan %d: due date %q: %w", i, l.DueDate, err)
		}
		loan := core.Loan{ID: l.ID, Name: l.Name, InterestRate: rate, Principal: l.Principal, DueDate: due}
		if loan.ID <= 0 || known[loan.ID] {
			return nil, nil, fmt.Errorf("loan %d: id %d is not a unique positive integer", i, loan.ID)
		}
		if err := loan.Validate(); err != nil {
			return nil, nil, fmt.Errorf("loan %d: %w", i, err)
		}
		known[loan.ID] = true
		loans = append(loans, loan)
	}

	payments := make([]core.Payment, 0, len(seed.Payments))
	seen := make(map[int64]bool, len(seed.Payments))
	for i, p := range seed.Payments {
		date, err := core.ParseDate(p.PaymentDate)
		if err != nil {
			return nil, nil, fmt.Errorf("payment %d: payment date %q: %w", i, p.PaymentDate, err)
		}
		if p.ID <= 0 || seen[p.ID] {
			return nil, nil, fmt.Errorf("payment %d: id %d is not a unique positive integer", i, p.ID)
		}
		if !known[p.LoanID] {
			return nil, nil, fmt.Errorf("payment %d: unknown loan %d", i, p.LoanID)
		}
		seen[p.ID] = true
		payments = append(payments, core.Payment{ID: p.ID, LoanID: p.LoanID, PaymentDate: date})
	}
	return loans, payments, nil
}

// DefaultLoans is the portfolio loaded when no seed file is present.
func DefaultLoans() []core.Loan {
	due := core.NewDate(2025, 3, 1)
	return []core.Loan{
		{ID: 1, Name: "Tom's Loan", InterestRate: decimal.RequireFromString("5.0"), Principal: 10000, DueDate: due},
		{ID: 2, Name: "Chris Wailaka", InterestRate: decimal.RequireFromString("3.5"), Principal: 500000, DueDate: due},
		{ID: 3, Name: "NP Mobile Money", InterestRate: decimal.RequireFromString("4.5"), Principal: 30000, DueDate: due},
		{ID: 4, Name: "Esther's Autoparts", InterestRate: decimal.RequireFromString("1.5"), Principal: 40000, DueDate: due},
	}
}

// DefaultPayments pairs with DefaultLoans; loan 4 is unpaid.
func DefaultPayments() []core.Payment {
	return []core.Payment{
		{ID: 1, LoanID: 1, PaymentDate: core.NewDate(2025, 3, 4)},
		{ID: 2, LoanID: 2, PaymentDate: core.NewDate(2025, 3, 15)},
		{ID: 3, LoanID: 3, PaymentDate: core.NewDate(2025, 4, 5)},
	}
}

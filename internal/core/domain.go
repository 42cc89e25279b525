package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the only accepted wire format for calendar dates.
const DateLayout = "2006-01-02"

type (
	// Date is a calendar date without a time component, stored as UTC midnight.
	Date struct {
		time.Time
	}

	Loan struct {
		ID           int64
		Name         string
		InterestRate decimal.Decimal
		Principal    int64
		DueDate      Date
	}

	Payment struct {
		ID          int64
		LoanID      int64
		PaymentDate Date
	}

	// LoanView is a loan decorated with its derived repayment status.
	// Status and Color are recomputed on every read and never stored.
	LoanView struct {
		Loan
		PaymentID   *int64
		PaymentDate *Date
		Status      Status
		Color       Color
	}
)

var (
	ErrEmptyName         = errors.New("name cannot be empty")
	ErrNegativeRate      = errors.New("interest rate cannot be negative")
	ErrInvalidPrincipal  = errors.New("principal must be positive")
	ErrInvalidIdentifier = errors.New("identifier must be positive")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string. Surrounding whitespace is rejected.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// DaysSince returns the number of whole calendar days from other to d.
// The result is negative when d is before other.
func (d Date) DaysSince(other Date) int {
	return int(d.Sub(other.Time).Hours() / 24)
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (l Loan) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return ErrEmptyName
	}
	if l.InterestRate.IsNegative() {
		return ErrNegativeRate
	}
	if l.Principal <= 0 {
		return ErrInvalidPrincipal
	}
	if err := l.DueDate.Validate(); err != nil {
		return errors.New("invalid due date: " + err.Error())
	}
	return nil
}

func (p Payment) Validate() error {
	if p.LoanID <= 0 {
		return ErrInvalidIdentifier
	}
	if err := p.PaymentDate.Validate(); err != nil {
		return errors.New("invalid payment date: " + err.Error())
	}
	return nil
}

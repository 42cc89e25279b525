// Package core provides the loan domain model and the repayment status rules.
//
// This file implements the status classifier: a pure mapping from a due date
// and an optional payment date to a Status and its display Color.
package core

// Status is the derived repayment classification of a loan.
type Status string

// Color is the display colour bound to a Status.
type Color string

const (
	StatusOnTime    Status = "On Time"
	StatusLate      Status = "Late"
	StatusDefaulted Status = "Defaulted"
	StatusUnpaid    Status = "Unpaid"
)

const (
	ColorGreen  Color = "green"
	ColorOrange Color = "orange"
	ColorRed    Color = "red"
	ColorGrey   Color = "grey"
)

const (
	// DefaultGraceDays is the largest delay still classified On Time.
	DefaultGraceDays = 7
	// DefaultThresholdDays is the largest delay still classified Late.
	DefaultThresholdDays = 30
)

var statusColors = map[Status]Color{
	StatusOnTime:    ColorGreen,
	StatusLate:      ColorOrange,
	StatusDefaulted: ColorRed,
	StatusUnpaid:    ColorGrey,
}

// Statuses lists every status in reporting order.
var Statuses = []Status{StatusOnTime, StatusLate, StatusDefaulted, StatusUnpaid}

// Color returns the display colour for s. Unknown statuses are grey.
func (s Status) Color() Color {
	if c, ok := statusColors[s]; ok {
		return c
	}
	return ColorGrey
}

// Classifier turns (due date, payment date) pairs into a Status.
// The zero value is not useful; use DefaultClassifier or NewClassifier.
type Classifier struct {
	GraceDays            int
	DefaultThresholdDays int
}

// DefaultClassifier uses a 7 day grace window and a 30 day default threshold.
var DefaultClassifier = Classifier{
	GraceDays:            DefaultGraceDays,
	DefaultThresholdDays: DefaultThresholdDays,
}

// NewClassifier returns a classifier with the given windows.
func NewClassifier(graceDays, defaultThresholdDays int) Classifier {
	return Classifier{GraceDays: graceDays, DefaultThresholdDays: defaultThresholdDays}
}

// Classify returns the status and colour of a loan due on due and paid on
// payment. A nil payment means the loan has not been paid.
func (c Classifier) Classify(due Date, payment *Date) (Status, Color) {
	status := c.status(due, payment)
	return status, status.Color()
}

func (c Classifier) status(due Date, payment *Date) Status {
	if payment == nil {
		return StatusUnpaid
	}
	delay := payment.DaysSince(due)
	switch {
	case delay <= c.GraceDays:
		return StatusOnTime
	case delay <= c.DefaultThresholdDays:
		return StatusLate
	default:
		return StatusDefaulted
	}
}

// Decorate builds the read-side view of loan with its optional payment.
func (c Classifier) Decorate(loan Loan, payment *Payment) LoanView {
	view := LoanView{Loan: loan}
	var paid *Date
	if payment != nil {
		id := payment.ID
		date := payment.PaymentDate
		view.PaymentID = &id
		view.PaymentDate = &date
		paid = &date
	}
	view.Status, view.Color = c.Classify(loan.DueDate, paid)
	return view
}

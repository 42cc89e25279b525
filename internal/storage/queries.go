package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

type loanRow struct {
	ID           int64
	Name         string
	InterestRate string
	Principal    int64
	DueDate      string
}

type paymentRow struct {
	ID          int64
	LoanID      int64
	PaymentDate string
}

const listLoans = `SELECT id, name, interest_rate, principal, due_date FROM loans ORDER BY id`

func (q *Queries) ListLoans(ctx context.Context) ([]loanRow, error) {
	rows, err := q.db.QueryContext(ctx, listLoans)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []loanRow
	for rows.Next() {
		var i loanRow
		if err := rows.Scan(&i.ID, &i.Name, &i.InterestRate, &i.Principal, &i.DueDate); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getLoan = `SELECT id, name, interest_rate, principal, due_date FROM loans WHERE id = ?`

func (q *Queries) GetLoan(ctx context.Context, id int64) (loanRow, error) {
	var i loanRow
	err := q.db.QueryRowContext(ctx, getLoan, id).Scan(&i.ID, &i.Name, &i.InterestRate, &i.Principal, &i.DueDate)
	return i, err
}

const createLoan = `INSERT INTO loans (id, name, interest_rate, principal, due_date) VALUES (?, ?, ?, ?, ?)`

func (q *Queries) CreateLoan(ctx context.Context, arg loanRow) error {
	_, err := q.db.ExecContext(ctx, createLoan, arg.ID, arg.Name, arg.InterestRate, arg.Principal, arg.DueDate)
	return err
}

const maxLoanID = `SELECT COALESCE(MAX(id), 0) FROM loans`

func (q *Queries) MaxLoanID(ctx context.Context) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, maxLoanID).Scan(&id)
	return id, err
}

const listPayments = `SELECT id, loan_id, payment_date FROM payments ORDER BY id`

func (q *Queries) ListPayments(ctx context.Context) ([]paymentRow, error) {
	rows, err := q.db.QueryContext(ctx, listPayments)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []paymentRow
	for rows.Next() {
		var i paymentRow
		if err := rows.Scan(&i.ID, &i.LoanID, &i.PaymentDate); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const createPayment = `INSERT INTO payments (id, loan_id, payment_date) VALUES (?, ?, ?)`

func (q *Queries) CreatePayment(ctx context.Context, arg paymentRow) error {
	_, err := q.db.ExecContext(ctx, createPayment, arg.ID, arg.LoanID, arg.PaymentDate)
	return err
}

const maxPaymentID = `SELECT COALESCE(MAX(id), 0) FROM payments`

func (q *Queries) MaxPaymentID(ctx context.Context) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, maxPaymentID).Scan(&id)
	return id, err
}

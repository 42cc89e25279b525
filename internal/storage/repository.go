package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"loans/internal/core"
	"loans/internal/log"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Identifier assignment is max+1; one connection keeps writers serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ListLoans implements LoanRepository
func (r *SQLiteRepository) ListLoans(ctx context.Context) ([]core.Loan, error) {
	rows, err := r.queries.ListLoans(ctx)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}

	loans := make([]core.Loan, 0, len(rows))
	for _, row := range rows {
		loan, err := row.toLoan()
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, nil
}

// GetLoan implements LoanRepository
func (r *SQLiteRepository) GetLoan(ctx context.Context, id int64) (core.Loan, error) {
	row, err := r.queries.GetLoan(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Loan{}, ErrNotFound
	}
	if err != nil {
		return core.Loan{}, fmt.Errorf("get loan by id: %w", err)
	}
	return row.toLoan()
}

// AppendLoan implements LoanRepository
func (r *SQLiteRepository) AppendLoan(ctx context.Context, l core.Loan) error {
	if err := l.Validate(); err != nil {
		return err
	}
	err := r.queries.CreateLoan(ctx, loanRow{
		ID:           l.ID,
		Name:         l.Name,
		InterestRate: l.InterestRate.String(),
		Principal:    l.Principal,
		DueDate:      l.DueDate.String(),
	})
	if err != nil {
		return fmt.Errorf("create loan: %w", err)
	}

	slog.InfoContext(ctx, "Loan saved to SQLite",
		log.FieldComponent, log.ComponentStorage,
		"id", l.ID,
		"name", l.Name,
		"principal", l.Principal,
		"due_date", l.DueDate.String())
	return nil
}

// AppendLoanWithPayment implements Repository. Both rows are written in one
// transaction.
func (r *SQLiteRepository) AppendLoanWithPayment(ctx context.Context, l core.Loan, p core.Payment) error {
	if err := l.Validate(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if p.LoanID != l.ID {
		return fmt.Errorf("payment %d references loan %d, not %d", p.ID, p.LoanID, l.ID)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := New(tx)
	if err := q.CreateLoan(ctx, loanRow{
		ID:           l.ID,
		Name:         l.Name,
		InterestRate: l.InterestRate.String(),
		Principal:    l.Principal,
		DueDate:      l.DueDate.String(),
	}); err != nil {
		return fmt.Errorf("create loan: %w", err)
	}
	if err := q.CreatePayment(ctx, paymentRow{
		ID:          p.ID,
		LoanID:      p.LoanID,
		PaymentDate: p.PaymentDate.String(),
	}); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	slog.InfoContext(ctx, "Loan and payment saved to SQLite",
		log.FieldComponent, log.ComponentStorage,
		"id", l.ID,
		"payment_id", p.ID,
		"payment_date", p.PaymentDate.String())
	return nil
}

// NextLoanID implements LoanRepository
func (r *SQLiteRepository) NextLoanID(ctx context.Context) (int64, error) {
	max, err := r.queries.MaxLoanID(ctx)
	if err != nil {
		return 0, fmt.Errorf("max loan id: %w", err)
	}
	return max + 1, nil
}

// ListPayments implements PaymentRepository
func (r *SQLiteRepository) ListPayments(ctx context.Context) ([]core.Payment, error) {
	rows, err := r.queries.ListPayments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	payments := make([]core.Payment, 0, len(rows))
	for _, row := range rows {
		date, err := core.ParseDate(row.PaymentDate)
		if err != nil {
			return nil, fmt.Errorf("payment %d has corrupt date %q: %w", row.ID, row.PaymentDate, err)
		}
		payments = append(payments, core.Payment{ID: row.ID, LoanID: row.LoanID, PaymentDate: date})
	}
	return payments, nil
}

// AppendPayment implements PaymentRepository
func (r *SQLiteRepository) AppendPayment(ctx context.Context, p core.Payment) error {
	if err := p.Validate(); err != nil {
		return err
	}
	err := r.queries.CreatePayment(ctx, paymentRow{
		ID:          p.ID,
		LoanID:      p.LoanID,
		PaymentDate: p.PaymentDate.String(),
	})
	if err != nil {
		return fmt.Errorf("create payment: %w", err)
	}

	slog.InfoContext(ctx, "Payment saved to SQLite",
		log.FieldComponent, log.ComponentStorage,
		"id", p.ID,
		"loan_id", p.LoanID,
		"payment_date", p.PaymentDate.String())
	return nil
}

// NextPaymentID implements PaymentRepository
func (r *SQLiteRepository) NextPaymentID(ctx context.Context) (int64, error) {
	max, err := r.queries.MaxPaymentID(ctx)
	if err != nil {
		return 0, fmt.Errorf("max payment id: %w", err)
	}
	return max + 1, nil
}

func (row loanRow) toLoan() (core.Loan, error) {
	rate, err := decimal.NewFromString(row.InterestRate)
	if err != nil {
		return core.Loan{}, fmt.Errorf("loan %d has corrupt interest rate %q: %w", row.ID, row.InterestRate, err)
	}
	due, err := core.ParseDate(row.DueDate)
	if err != nil {
		return core.Loan{}, fmt.Errorf("loan %d has corrupt due date %q: %w", row.ID, row.DueDate, err)
	}
	return core.Loan{
		ID:           row.ID,
		Name:         row.Name,
		InterestRate: rate,
		Principal:    row.Principal,
		DueDate:      due,
	}, nil
}

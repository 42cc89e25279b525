// Package graphql exposes the loan operations as a GraphQL schema.
package graphql

import (
	"context"

	"github.com/graphql-go/graphql"
	"github.com/shopspring/decimal"

	"loans/internal/core"
	"loans/internal/services"
)

// LoanService is the application surface the resolvers need.
type LoanService interface {
	ListLoans(ctx context.Context) ([]core.Loan, error)
	ListPayments(ctx context.Context) ([]core.Payment, error)
	ListLoansWithStatus(ctx context.Context) ([]core.LoanView, error)
	GetLoan(ctx context.Context, id int64) (core.LoanView, error)
	AddLoan(ctx context.Context, req services.LoanRequest) (core.LoanView, error)
	AddPayment(ctx context.Context, req services.PaymentRequest) (core.Payment, error)
}

func loanFields() graphql.Fields {
	return graphql.Fields{
		"id":           &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"name":         &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"interestRate": &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
		"principal":    &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"dueDate":      &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
	}
}

var loanType = graphql.NewObject(graphql.ObjectConfig{
	Name:   "Loan",
	Fields: loanFields(),
})

var paymentType = graphql.NewObject(graphql.ObjectConfig{
	Name: "LoanPayment",
	Fields: graphql.Fields{
		"id":          &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"loanId":      &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"paymentDate": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
	},
})

// loanWithPaymentType is a loan decorated with its last payment and status.
var loanWithPaymentType = graphql.NewObject(graphql.ObjectConfig{
	Name: "LoanWithPayment",
	Fields: func() graphql.Fields {
		fields := loanFields()
		fields["paymentId"] = &graphql.Field{Type: graphql.Int}
		fields["paymentDate"] = &graphql.Field{Type: graphql.String}
		fields["status"] = &graphql.Field{Type: graphql.NewNonNull(graphql.String)}
		fields["color"] = &graphql.Field{Type: graphql.NewNonNull(graphql.String)}
		return fields
	}(),
})

// NewSchema builds the query and mutation schema bound to loans.
func NewSchema(loans LoanService) (graphql.Schema, error) {
	r := &resolver{loans: loans}

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"loans": &graphql.Field{
				Type:    graphql.NewList(loanType),
				Resolve: r.listLoans,
			},
			"loanPayments": &graphql.Field{
				Type:    graphql.NewList(paymentType),
				Resolve: r.listPayments,
			},
			"loansWithPayments": &graphql.Field{
				Type:    graphql.NewList(loanWithPaymentType),
				Resolve: r.loansWithPayments,
			},
			"loan": &graphql.Field{
				Type: loanWithPaymentType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: r.loan,
			},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			// Both camelCase and snake_case spellings are accepted for the
			// loan attributes; older clients send the latter.
			"addLoan": &graphql.Field{
				Type: loanWithPaymentType,
				Args: graphql.FieldConfigArgument{
					"name":          &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"principal":     &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"interestRate":  &graphql.ArgumentConfig{Type: graphql.Float},
					"interest_rate": &graphql.ArgumentConfig{Type: graphql.Float},
					"dueDate":       &graphql.ArgumentConfig{Type: graphql.String},
					"due_date":      &graphql.ArgumentConfig{Type: graphql.String},
					"paymentDate":   &graphql.ArgumentConfig{Type: graphql.String},
					"payment_date":  &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: r.addLoan,
			},
			"addPayment": &graphql.Field{
				Type: paymentType,
				Args: graphql.FieldConfigArgument{
					"loanId":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"paymentDate": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: r.addPayment,
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    query,
		Mutation: mutation,
	})
}

type resolver struct {
	loans LoanService
}

func (r *resolver) listLoans(p graphql.ResolveParams) (interface{}, error) {
	loans, err := r.loans.ListLoans(p.Context)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(loans))
	for _, l := range loans {
		out = append(out, loanToMap(l))
	}
	return out, nil
}

func (r *resolver) listPayments(p graphql.ResolveParams) (interface{}, error) {
	payments, err := r.loans.ListPayments(p.Context)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(payments))
	for _, pay := range payments {
		out = append(out, paymentToMap(pay))
	}
	return out, nil
}

func (r *resolver) loansWithPayments(p graphql.ResolveParams) (interface{}, error) {
	views, err := r.loans.ListLoansWithStatus(p.Context)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(views))
	for _, v := range views {
		out = append(out, viewToMap(v))
	}
	return out, nil
}

func (r *resolver) loan(p graphql.ResolveParams) (interface{}, error) {
	id, _ := p.Args["id"].(int)
	view, err := r.loans.GetLoan(p.Context, int64(id))
	if err != nil {
		return nil, err
	}
	return viewToMap(view), nil
}

func (r *resolver) addLoan(p graphql.ResolveParams) (interface{}, error) {
	name, _ := p.Args["name"].(string)
	principal, _ := p.Args["principal"].(int)

	rate, ok := firstArg[float64](p.Args, "interestRate", "interest_rate")
	if !ok {
		return nil, core.NewError(core.KindInvalidInput, "interestRate is required")
	}
	due, ok := firstArg[string](p.Args, "dueDate", "due_date")
	if !ok {
		return nil, core.NewError(core.KindInvalidInput, "dueDate is required")
	}

	req := services.LoanRequest{
		Name:         name,
		InterestRate: decimal.NewFromFloat(rate),
		Principal:    int64(principal),
		DueDate:      due,
	}
	if paid, ok := firstArg[string](p.Args, "paymentDate", "payment_date"); ok {
		req.PaymentDate = &paid
	}

	view, err := r.loans.AddLoan(p.Context, req)
	if err != nil {
		return nil, err
	}
	return viewToMap(view), nil
}

func (r *resolver) addPayment(p graphql.ResolveParams) (interface{}, error) {
	id, _ := p.Args["loanId"].(int)
	loanID := int64(id)
	req := services.PaymentRequest{LoanID: &loanID}
	if date, ok := p.Args["paymentDate"].(string); ok {
		req.PaymentDate = &date
	}

	payment, err := r.loans.AddPayment(p.Context, req)
	if err != nil {
		return nil, err
	}
	return paymentToMap(payment), nil
}

// firstArg returns the first of names present in args with type T.
func firstArg[T any](args map[string]interface{}, names ...string) (T, bool) {
	for _, name := range names {
		if v, ok := args[name].(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func loanToMap(l core.Loan) map[string]interface{} {
	return map[string]interface{}{
		"id":           l.ID,
		"name":         l.Name,
		"interestRate": l.InterestRate.InexactFloat64(),
		"principal":    l.Principal,
		"dueDate":      l.DueDate.String(),
	}
}

func paymentToMap(p core.Payment) map[string]interface{} {
	return map[string]interface{}{
		"id":          p.ID,
		"loanId":      p.LoanID,
		"paymentDate": p.PaymentDate.String(),
	}
}

func viewToMap(v core.LoanView) map[string]interface{} {
	m := loanToMap(v.Loan)
	m["status"] = string(v.Status)
	m["color"] = string(v.Color)
	m["paymentId"] = nil
	m["paymentDate"] = nil
	if v.PaymentID != nil {
		m["paymentId"] = *v.PaymentID
	}
	if v.PaymentDate != nil {
		m["paymentDate"] = v.PaymentDate.String()
	}
	return m
}

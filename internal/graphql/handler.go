package graphql

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/parser"

	"loans/internal/log"
)

const maxQueryBytes = 1 << 20

// Request is a GraphQL operation as sent by clients.
type Request struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
	OperationName string                 `json:"operationName"`
}

// Handler executes GraphQL operations over HTTP.
type Handler struct {
	schema graphql.Schema
	logger *log.Logger
}

// NewHandler builds the schema for loans and returns an HTTP handler serving it.
func NewHandler(loans LoanService, logger *log.Logger) (*Handler, error) {
	schema, err := NewSchema(loans)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Handler{schema: schema, logger: logger.WithComponent(log.ComponentGraphQL)}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := parseRequest(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"errors": []map[string]string{{"message": err.Error()}},
		})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"errors": []map[string]string{{"message": "query is required"}},
		})
		return
	}
	if r.Method == http.MethodGet && isMutation(req) {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{
			"errors": []map[string]string{{"message": "mutations must be sent with POST"}},
		})
		return
	}

	result := h.Execute(r, req)
	writeJSON(w, http.StatusOK, result)
}

// Execute runs req against the schema. Resolver failures are reported in
// the result's errors list.
func (h *Handler) Execute(r *http.Request, req Request) *graphql.Result {
	result := graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        r.Context(),
	})
	if result.HasErrors() {
		messages := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			messages = append(messages, e.Message)
		}
		h.logger.WarnContext(r.Context(), "GraphQL operation returned errors",
			"operation_name", req.OperationName,
			"errors", messages)
	}
	return result
}

// isMutation reports whether req selects a mutation. Without an operation
// name any mutation in the document counts. Unparsable documents are left
// to Execute to report.
func isMutation(req Request) bool {
	doc, err := parser.Parse(parser.ParseParams{Source: req.Query})
	if err != nil {
		return false
	}
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok || op.Operation != ast.OperationTypeMutation {
			continue
		}
		if req.OperationName == "" || (op.Name != nil && op.Name.Value == req.OperationName) {
			return true
		}
	}
	return false
}

func parseRequest(w http.ResponseWriter, r *http.Request) (Request, error) {
	var req Request
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req.Query = q.Get("query")
		req.OperationName = q.Get("operationName")
		if vars := q.Get("variables"); vars != "" {
			if err := json.Unmarshal([]byte(vars), &req.Variables); err != nil {
				return req, fmt.Errorf("decode variables: %w", err)
			}
		}
		return req, nil
	}

	body := http.MaxBytesReader(w, r.Body, maxQueryBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return req, fmt.Errorf("decode request body: %w", err)
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"loans/internal/core"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// DecodeJSON decodes the request body into dst. Malformed bodies, wrong
// field types and oversized payloads are reported as invalid input.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(body).Decode(dst)
	if err == nil {
		return nil
	}

	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		return core.NewError(core.KindInvalidInput, "request body must be a JSON object")
	case errors.As(err, &typeErr):
		return core.NewError(core.KindInvalidInput, "field %q has the wrong type, expected %s", typeErr.Field, typeErr.Type)
	case errors.As(err, &syntaxErr):
		return core.NewError(core.KindInvalidInput, "malformed JSON at offset %d", syntaxErr.Offset)
	case errors.As(err, &maxErr):
		return core.NewError(core.KindInvalidInput, "request body exceeds %d bytes", maxErr.Limit)
	default:
		return core.NewError(core.KindInvalidInput, "invalid request body: %s", err.Error())
	}
}

// PathID extracts a positive integer route variable.
func PathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NewError(core.KindInvalidInput, "%s must be a positive integer, got %q", name, raw)
	}
	return id, nil
}

func requireField(present bool, name string) error {
	if !present {
		return core.NewError(core.KindInvalidInput, "%s is required", name)
	}
	return nil
}

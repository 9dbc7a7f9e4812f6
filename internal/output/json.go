package output

import (
	"encoding/json"
	"errors"
	"io"
	"sort"

	"github.com/ALT-F4-LLC/rewind/internal/db"
	"github.com/ALT-F4-LLC/rewind/internal/history"
)

// ErrorCode classifies a failed command for scripts.
type ErrorCode string

const (
	ErrGeneral    ErrorCode = "GENERAL_ERROR"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	ErrStructural ErrorCode = "STRUCTURAL_ERROR"
	ErrBackend    ErrorCode = "BACKEND_ERROR"
)

const (
	ExitSuccess    = 0
	ExitGeneral    = 1
	ExitNotFound   = 2
	ExitValidation = 3
	ExitStructural = 4
	ExitBackend    = 5
)

var exitCodes = map[ErrorCode]int{
	ErrGeneral:    ExitGeneral,
	ErrNotFound:   ExitNotFound,
	ErrValidation: ExitValidation,
	ErrStructural: ExitStructural,
	ErrBackend:    ExitBackend,
}

// ExitCodeForError maps code to a process exit code. Unknown codes exit 1.
func ExitCodeForError(code ErrorCode) int {
	if n, ok := exitCodes[code]; ok {
		return n
	}
	return ExitGeneral
}

// Classify picks the error code for an error returned by a rebuild or a
// query. Backend failures win over structural ones when both are joined.
func Classify(err error) ErrorCode {
	var lookupErr *history.LookupError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &lookupErr):
		return ErrBackend
	case history.IsStructural(err):
		return ErrStructural
	case errors.Is(err, db.ErrNotFound):
		return ErrNotFound
	default:
		return ErrGeneral
	}
}

// FailedEntities lists the ids of every entity that failed structurally
// somewhere in err, sorted and without duplicates.
func FailedEntities(err error) []string {
	seen := make(map[string]bool)
	var walk func(error)
	walk = func(err error) {
		switch e := err.(type) {
		case nil:
		case *history.StructuralError:
			seen[e.Kind.FormatID(e.ID)] = true
		case interface{ Unwrap() []error }:
			for _, inner := range e.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(e.Unwrap())
		}
	}
	walk(err)

	if len(seen) == 0 {
		return nil
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type successEnvelope struct {
	OK      bool   `json:"ok"`
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

type errorEnvelope struct {
	OK     bool      `json:"ok"`
	Error  string    `json:"error"`
	Code   ErrorCode `json:"code"`
	Failed []string  `json:"failed,omitempty"`
}

func encode(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v) //nolint:errcheck
}

func writeJSONSuccess(w io.Writer, data any, message string) {
	encode(w, successEnvelope{OK: true, Data: data, Message: message})
}

func writeJSONError(w io.Writer, err error, code ErrorCode) {
	encode(w, errorEnvelope{
		Error:  err.Error(),
		Code:   code,
		Failed: FailedEntities(err),
	})
}

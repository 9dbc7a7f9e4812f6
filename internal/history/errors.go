package history

import (
	"errors"
	"fmt"

	"github.com/ALT-F4-LLC/rewind/internal/model"
)

var (
	// ErrTooManySimultaneous is returned when more activities share a timestamp
	// than the configured bound allows.
	ErrTooManySimultaneous = errors.New("too many simultaneous activities")

	// ErrMissingID is returned for rows without an entity id.
	ErrMissingID = errors.New("missing entity id")

	// ErrMissingCreator is returned for entities without a reporter.
	ErrMissingCreator = errors.New("missing creator")

	// ErrUnmappedStatus is returned when a status has neither a major status
	// nor an entry in the exception table.
	ErrUnmappedStatus = errors.New("status has no major status")

	// ErrUnorderedActivities is returned when activity rows are not sorted
	// most recent first.
	ErrUnorderedActivities = errors.New("activities not ordered most recent first")

	// ErrMismatchedEntity is returned when rebasing onto another entity's history.
	ErrMismatchedEntity = errors.New("entity mismatch")
)

// StructuralError reports input that makes an entity impossible to rebuild.
// It is never recovered from locally.
type StructuralError struct {
	Kind model.Kind
	ID   int64
	Err  error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("rebuilding %s: %v", e.Kind.FormatID(e.ID), e.Err)
}

func (e *StructuralError) Unwrap() error { return e.Err }

// LookupError reports a failure of the persistence lookup. A failed lookup is
// never treated as "nothing persisted".
type LookupError struct {
	Kind model.Kind
	ID   int64
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("looking up %s: %v", e.Kind.FormatID(e.ID), e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// IsStructural reports whether err is, or wraps, a StructuralError.
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}

package network

import "fmt"

// ValidationError reports a malformed or inconsistent input graph. It is
// raised at construction time, never during solving.
type ValidationError struct {
	Record string // the offending record, e.g. `bank "A"` or `exposure "A"->"B"`
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Record, e.Reason)
}

func validationErrorf(record, format string, args ...any) *ValidationError {
	return &ValidationError{Record: record, Reason: fmt.Sprintf(format, args...)}
}

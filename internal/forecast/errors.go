package forecast

import (
	"fmt"
)

// FetchError wraps a failed Source call. It is fatal for the run.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch from %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// CorruptStateError reports a persisted row whose slot cannot be parsed.
type CorruptStateError struct {
	Source string // file path or table name
	Line   int    // 1-based row number, 0 if unknown
	Value  string
	Err    error
}

func (e *CorruptStateError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("corrupt state in %s line %d (%q): %v", e.Source, e.Line, e.Value, e.Err)
	}
	return fmt.Sprintf("corrupt state in %s (%q): %v", e.Source, e.Value, e.Err)
}

func (e *CorruptStateError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a failed append. Callers must assume an
// indeterminate subset of the batch reached storage.
type PersistenceError struct {
	Target string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist to %s: %v", e.Target, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

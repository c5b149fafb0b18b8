package luahook

import (
	"errors"
	"fmt"
)

// Errors for script operations.
var (
	// ErrStateClosed is returned when using a closed script.
	ErrStateClosed = errors.New("luahook: script is closed")

	// ErrNoFunction is returned when the entry global is missing or not a function.
	ErrNoFunction = errors.New("luahook: entry is not a function")
)

// ScriptError reports a failure while running a script hook.
// Hooks raise it as a panic value since interceptors have no error return.
type ScriptError struct {
	Script string
	Entry  string
	Err    error
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("luahook: %s: %v", e.Script, e.Err)
	}
	return fmt.Sprintf("luahook: %s:%s: %v", e.Script, e.Entry, e.Err)
}

// Unwrap returns the underlying error.
func (e *ScriptError) Unwrap() error {
	return e.Err
}

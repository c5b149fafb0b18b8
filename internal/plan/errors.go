package plan

import (
	"errors"
	"fmt"
)

// ErrUnknownHook indicates an attachment names a hook kind nobody provides.
var ErrUnknownHook = errors.New("plan: unknown hook kind")

// AttachError describes one attachment that could not be applied.
type AttachError struct {
	Index    int
	Function string
	Hook     string
	Err      error
}

// Error implements the error interface.
func (e *AttachError) Error() string {
	return fmt.Sprintf("attach[%d] %s -> %s: %v", e.Index, e.Hook, e.Function, e.Err)
}

// Unwrap returns the underlying error.
func (e *AttachError) Unwrap() error {
	return e.Err
}

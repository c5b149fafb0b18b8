package hook

import (
	"errors"
	"fmt"
)

// Hook errors.
var (
	// ErrSignatureMismatch indicates a hook's signature differs from its target's.
	ErrSignatureMismatch = errors.New("hook: signature mismatch")

	// ErrNotFound indicates no hookable function is registered under a name.
	ErrNotFound = errors.New("hook: hookable function not found")

	// ErrNilCapability indicates a nil capability was passed to AddHook.
	ErrNilCapability = errors.New("hook: nil capability")
)

// MismatchError reports a rejected AddHook call.
type MismatchError struct {
	Function string
	Want     Signature
	Got      Signature
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("hook: signature mismatch for %q: expected %s, got %s", e.Function, e.Want, e.Got)
}

// Is reports whether target is ErrSignatureMismatch.
func (e *MismatchError) Is(target error) bool {
	return target == ErrSignatureMismatch
}

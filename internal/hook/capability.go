package hook

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

// Hook intercepts calls to a hookable function of type func(A) R.
//
// Call receives the arguments and next, which runs the rest of the chain
// (and finally the original function). A hook may call next zero, one or
// many times; each call starts at the hook immediately after this one.
type Hook[A, R any] interface {
	Call(args A, next func(A) R) R
}

// Func adapts an ordinary function to the Hook interface.
type Func[A, R any] func(args A, next func(A) R) R

// Call implements Hook.
func (f Func[A, R]) Call(args A, next func(A) R) R {
	return f(args, next)
}

// DynamicFunc is a hook over type-erased values.
//
// args holds the target's argument value and next expects a value of the
// same type. The returned value must have the target's result type.
// Use Record.Adapt to bind a DynamicFunc to a specific record.
type DynamicFunc func(args any, next func(any) any) any

// Capability is a type-erased hook ready to be attached to a Record.
// Capabilities are compared by identity: keep the pointer to remove it later.
type Capability struct {
	id    uuid.UUID
	label string
	sig   Signature

	// entry is a func(A, func(A) R) R matching sig.
	entry any
}

// CapabilityOption configures a Capability.
type CapabilityOption func(*Capability)

// WithLabel sets a human-readable label used in logs and introspection.
func WithLabel(label string) CapabilityOption {
	return func(c *Capability) {
		if label != "" {
			c.label = label
		}
	}
}

// Wrap erases the static type of h.
func Wrap[A, R any](h Hook[A, R], opts ...CapabilityOption) *Capability {
	c := &Capability{
		id:    uuid.New(),
		label: fmt.Sprintf("%T", h),
		sig:   SignatureOf[A, R](),
		entry: h.Call,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WrapFunc is shorthand for Wrap(Func[A, R](fn), opts...).
func WrapFunc[A, R any](fn func(args A, next func(A) R) R, opts ...CapabilityOption) *Capability {
	return Wrap[A, R](Func[A, R](fn), opts...)
}

// ID returns the capability's unique identifier.
func (c *Capability) ID() uuid.UUID { return c.id }

// Label returns the capability's label.
func (c *Capability) Label() string { return c.label }

// Signature returns the signature the capability was built for.
func (c *Capability) Signature() Signature { return c.sig }

// String implements fmt.Stringer.
func (c *Capability) String() string {
	return fmt.Sprintf("%s(%s)", c.label, c.id)
}

// adaptDynamic binds fn to func(A) R. Values crossing the boundary are
// asserted back to A and R; a wrong type is a fault in fn and panics.
func adaptDynamic[A, R any](function string, fn DynamicFunc) func(A, func(A) R) R {
	return func(args A, next func(A) R) R {
		out := fn(args, func(in any) any {
			return next(assertAs[A](function, "argument", in))
		})
		return assertAs[R](function, "result", out)
	}
}

func assertAs[T any](function, what string, v any) T {
	if t, ok := v.(T); ok {
		return t
	}
	var zero T
	if v == nil && nilable(typeOf[T]()) {
		return zero
	}
	panic(fmt.Sprintf("hook: %s: dynamic hook produced %s of type %T, want %s", function, what, v, typeOf[T]()))
}

func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

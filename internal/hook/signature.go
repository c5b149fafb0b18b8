package hook

import (
	"fmt"
	"reflect"
)

// Signature identifies the argument and result types of a hookable function.
// Two signatures are equal only if both types are identical at runtime.
type Signature struct {
	Args   reflect.Type
	Result reflect.Type
}

// SignatureOf returns the signature of func(A) R.
func SignatureOf[A, R any]() Signature {
	return Signature{
		Args:   typeOf[A](),
		Result: typeOf[R](),
	}
}

// typeOf returns the reflect.Type for T, including interface types.
func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// String renders the signature as a function type.
func (s Signature) String() string {
	return fmt.Sprintf("func(%s) %s", typeName(s.Args), typeName(s.Result))
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

package hook

// Hookable is the call-site wrapper of a hookable function.
//
// Declare it as a package-level variable so it is registered before main
// runs:
//
//	type addArgs struct{ Left, Right int64 }
//
//	var add = hook.Define("add", func(a addArgs) int64 {
//		return a.Left + a.Right
//	})
//
//	func Add(left, right int64) int64 {
//		return add.Call(addArgs{left, right})
//	}
type Hookable[A, R any] struct {
	name   string
	fn     func(A) R
	record func() *Record
}

// Define registers fn under name in the default directory.
func Define[A, R any](name string, fn func(A) R) *Hookable[A, R] {
	return DefineIn(defaultDirectory, name, fn)
}

// DefineIn registers fn under name in d. The record is built on the first
// call or the first lookup, whichever comes first.
func DefineIn[A, R any](d *Directory, name string, fn func(A) R) *Hookable[A, R] {
	h := &Hookable[A, R]{
		name: name,
		fn:   fn,
	}
	h.record = d.register(name, func() *Record {
		return newRecord(d, name, fn)
	})
	return h
}

// Call invokes the function, running attached hooks if there are any.
func (h *Hookable[A, R]) Call(args A) R {
	rec := h.record()
	if !rec.FastPath() {
		return h.fn(args)
	}
	return Dispatch(rec, h.fn, args)
}

// Name returns the registered name.
func (h *Hookable[A, R]) Name() string { return h.name }

// Record returns the function's record.
func (h *Hookable[A, R]) Record() *Record { return h.record() }

// Original returns the function without hook dispatch.
func (h *Hookable[A, R]) Original() func(A) R { return h.fn }

// Attach wraps hk and adds it with the given priority.
// The returned capability removes it again via Detach.
func (h *Hookable[A, R]) Attach(hk Hook[A, R], priority int, opts ...CapabilityOption) *Capability {
	c := Wrap(hk, opts...)
	// Signatures match by construction.
	_ = h.record().AddHookWithPriority(c, priority)
	return c
}

// Detach removes a capability returned by Attach.
func (h *Hookable[A, R]) Detach(c *Capability) bool {
	return h.record().RemoveHook(c)
}

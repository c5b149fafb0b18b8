package hook

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Default hook priorities. Higher priorities run first.
const (
	PriorityObserve = 1000 // Observers that must see every call
	PriorityGuard   = 500  // Retry, recovery and other flow control
	PriorityDefault = 0
)

// entry is one attached capability.
type entry struct {
	capability *Capability
	priority   int
}

// HookInfo describes an attached hook.
type HookInfo struct {
	ID         uuid.UUID
	Label      string
	Priority   int
	Capability *Capability
}

// Record holds the hook chain of a single hookable function.
//
// The chain is copy-on-write: writers serialize on mu and publish a new
// slice, while dispatch reads the current slice without locking. This makes
// it safe for a hook to call back into the same function.
type Record struct {
	name  string
	entry uintptr
	sig   Signature
	dir   *Directory

	// adapt produces a func(A, func(A) R) R from a DynamicFunc.
	adapt func(DynamicFunc) any

	fast  atomic.Bool
	mu    sync.Mutex
	hooks atomic.Pointer[[]entry]
}

// newRecord creates the record for fn. dir may be nil.
func newRecord[A, R any](dir *Directory, name string, fn func(A) R) *Record {
	r := &Record{
		name: name,
		sig:  SignatureOf[A, R](),
		dir:  dir,
		adapt: func(d DynamicFunc) any {
			return adaptDynamic[A, R](name, d)
		},
	}
	if fn != nil {
		r.entry = reflect.ValueOf(fn).Pointer()
	}
	r.hooks.Store(&[]entry{})
	return r
}

// NewRecord creates a standalone record that is not listed in any Directory.
func NewRecord[A, R any](name string, fn func(A) R) *Record {
	return newRecord(nil, name, fn)
}

// Name returns the hookable function's name.
func (r *Record) Name() string { return r.name }

// OriginalEntry returns the code address of the original function.
func (r *Record) OriginalEntry() uintptr { return r.entry }

// Signature returns the hookable function's signature.
func (r *Record) Signature() Signature { return r.sig }

// FastPath reports whether any hook may be attached.
// When it returns false callers should invoke the original function directly.
func (r *Record) FastPath() bool { return r.fast.Load() }

// Len returns the number of attached hooks.
func (r *Record) Len() int { return len(r.snapshot()) }

// AddHook attaches c with PriorityDefault.
func (r *Record) AddHook(c *Capability) error {
	return r.AddHookWithPriority(c, PriorityDefault)
}

// AddHookWithPriority attaches c. Higher priorities run first; among equal
// priorities the most recently added hook runs first.
// It returns a *MismatchError if c was built for a different signature.
func (r *Record) AddHookWithPriority(c *Capability, priority int) error {
	if c == nil {
		return ErrNilCapability
	}
	if c.sig != r.sig {
		err := &MismatchError{Function: r.name, Want: r.sig, Got: c.sig}
		r.log().Warn().
			Str("function", r.name).
			Str("hook", c.label).
			Stringer("want", r.sig).
			Stringer("got", c.sig).
			Msg("hook rejected")
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.snapshot()
	pos := len(old)
	for i, e := range old {
		if e.priority <= priority {
			pos = i
			break
		}
	}

	hooks := make([]entry, 0, len(old)+1)
	hooks = append(hooks, old[:pos]...)
	hooks = append(hooks, entry{capability: c, priority: priority})
	hooks = append(hooks, old[pos:]...)
	r.hooks.Store(&hooks)
	r.fast.Store(true)

	r.log().Debug().
		Str("function", r.name).
		Str("hook", c.label).
		Stringer("id", c.id).
		Int("priority", priority).
		Int("position", pos).
		Int("chain", len(hooks)).
		Msg("hook added")
	return nil
}

// RemoveHook detaches the first entry that is c itself.
// It reports whether anything was removed.
func (r *Record) RemoveHook(c *Capability) bool {
	if c == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.snapshot()
	for i, e := range old {
		if e.capability != c {
			continue
		}
		hooks := make([]entry, 0, len(old)-1)
		hooks = append(hooks, old[:i]...)
		hooks = append(hooks, old[i+1:]...)
		r.hooks.Store(&hooks)
		if len(hooks) == 0 {
			r.fast.Store(false)
		}
		r.log().Debug().
			Str("function", r.name).
			Str("hook", c.label).
			Stringer("id", c.id).
			Int("chain", len(hooks)).
			Msg("hook removed")
		return true
	}
	return false
}

// ClearHooks detaches every hook.
func (r *Record) ClearHooks() {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.snapshot())
	r.hooks.Store(&[]entry{})
	r.fast.Store(false)

	r.log().Debug().Str("function", r.name).Int("removed", n).Msg("hooks cleared")
}

// Hooks returns the attached hooks in execution order.
func (r *Record) Hooks() []HookInfo {
	hooks := r.snapshot()
	infos := make([]HookInfo, len(hooks))
	for i, e := range hooks {
		infos[i] = HookInfo{
			ID:         e.capability.id,
			Label:      e.capability.label,
			Priority:   e.priority,
			Capability: e.capability,
		}
	}
	return infos
}

// Adapt binds a dynamic hook to this record's signature.
func (r *Record) Adapt(fn DynamicFunc, opts ...CapabilityOption) *Capability {
	c := &Capability{
		id:    uuid.New(),
		label: "dynamic",
		sig:   r.sig,
		entry: r.adapt(fn),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// snapshot returns the current chain. The slice must not be modified.
func (r *Record) snapshot() []entry {
	return *r.hooks.Load()
}

func (r *Record) log() *zerolog.Logger {
	if r.dir == nil {
		return &nopLogger
	}
	return r.dir.log()
}

var nopLogger = zerolog.Nop()

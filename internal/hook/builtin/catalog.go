package builtin

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dshills/safehook/internal/hook"
	"github.com/dshills/safehook/internal/metrics"
)

// ErrUnknownKind indicates no constructor is registered for a hook kind.
var ErrUnknownKind = errors.New("builtin: unknown hook kind")

// Options carries free-form settings for a hook kind, as decoded from a plan file.
type Options map[string]any

// Int returns the integer option key, or def if unset.
func (o Options) Int(key string, def int) (int, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("option %q: %v is not an integer", key, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("option %q: expected integer, got %T", key, v)
	}
}

// String returns the string option key, or def if unset.
func (o Options) String(key, def string) (string, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("option %q: expected string, got %T", key, v)
	}
	return s, nil
}

// Constructor builds a factory from options.
type Constructor func(opts Options) (Factory, error)

// kind is a registered constructor and the priority it attaches at by default.
type kind struct {
	ctor     Constructor
	priority int
}

// Catalog maps hook kind names to constructors.
type Catalog struct {
	mu    sync.RWMutex
	kinds map[string]kind
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{kinds: make(map[string]kind)}
}

// Env holds the shared sinks used by the stock kinds.
type Env struct {
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	Counter *Counter
}

// NewStandardCatalog returns a catalog with the stock kinds:
// log, timing, count, retry (option "attempts") and recover (option "value").
// Observers default to hook.PriorityObserve so they see retried calls;
// retry and recover default to hook.PriorityGuard.
func NewStandardCatalog(env Env) *Catalog {
	if env.Metrics == nil {
		env.Metrics = metrics.New()
	}
	if env.Counter == nil {
		env.Counter = NewCounter()
	}

	c := NewCatalog()
	c.RegisterWithPriority("log", hook.PriorityObserve, func(Options) (Factory, error) {
		return Log(env.Logger), nil
	})
	c.RegisterWithPriority("timing", hook.PriorityObserve, func(Options) (Factory, error) {
		return Timing(env.Metrics), nil
	})
	c.RegisterWithPriority("count", hook.PriorityObserve, func(Options) (Factory, error) {
		return Count(env.Counter), nil
	})
	c.RegisterWithPriority("retry", hook.PriorityGuard, func(opts Options) (Factory, error) {
		n, err := opts.Int("attempts", 3)
		if err != nil {
			return nil, err
		}
		if n < 1 {
			return nil, fmt.Errorf("option %q must be at least 1", "attempts")
		}
		return Retry(n), nil
	})
	c.RegisterWithPriority("recover", hook.PriorityGuard, func(opts Options) (Factory, error) {
		v, ok := opts["value"]
		if !ok {
			return Recover(nil), nil
		}
		return recoverWith(v)
	})
	return c
}

// recoverWith is Recover with a constant fallback converted to each record's
// result type. Conversions that would lose information are rejected.
func recoverWith(v any) (Factory, error) {
	val := reflect.ValueOf(v)
	if !val.IsValid() {
		return Recover(nil), nil
	}
	switch val.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
	default:
		return nil, fmt.Errorf("option %q: unsupported type %T", "value", v)
	}

	return func(rec *hook.Record, opts ...hook.CapabilityOption) (*hook.Capability, error) {
		fallback, err := exactConvert(val, rec.Signature().Result)
		if err != nil {
			return nil, fmt.Errorf("option %q: %w", "value", err)
		}
		return Recover(func(string, any) any { return fallback })(rec, opts...)
	}, nil
}

// exactConvert converts val to t only if the value survives unchanged.
func exactConvert(val reflect.Value, t reflect.Type) (any, error) {
	out := reflect.New(t).Elem()
	ok := false

	switch t.Kind() {
	case reflect.Bool:
		if ok = val.Kind() == reflect.Bool; ok {
			out.SetBool(val.Bool())
		}
	case reflect.String:
		if ok = val.Kind() == reflect.String; ok {
			out.SetString(val.String())
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		if n, ok = exactInt(val); ok && !out.OverflowInt(n) {
			out.SetInt(n)
		} else {
			ok = false
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		var n uint64
		if n, ok = exactUint(val); ok && !out.OverflowUint(n) {
			out.SetUint(n)
		} else {
			ok = false
		}
	case reflect.Float32, reflect.Float64:
		var f float64
		if f, ok = toFloat(val); ok && !out.OverflowFloat(f) {
			out.SetFloat(f)
		} else {
			ok = false
		}
	case reflect.Interface:
		if ok = val.Type().AssignableTo(t); ok {
			out.Set(val)
		}
	}

	if !ok {
		return nil, fmt.Errorf("cannot use %v (%s) as %s", val, val.Type(), t)
	}
	return out.Interface(), nil
}

func exactInt(val reflect.Value) (int64, bool) {
	switch val.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return val.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := val.Uint()
		return int64(u), u <= math.MaxInt64
	case reflect.Float32, reflect.Float64:
		f := val.Float()
		if f != math.Trunc(f) || f < -(1<<63) || f >= 1<<63 {
			return 0, false
		}
		return int64(f), true
	}
	return 0, false
}

func exactUint(val reflect.Value) (uint64, bool) {
	switch val.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := val.Int()
		return uint64(n), n >= 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return val.Uint(), true
	case reflect.Float32, reflect.Float64:
		f := val.Float()
		if f != math.Trunc(f) || f < 0 || f >= 1<<64 {
			return 0, false
		}
		return uint64(f), true
	}
	return 0, false
}

func toFloat(val reflect.Value) (float64, bool) {
	switch val.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(val.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(val.Uint()), true
	case reflect.Float32, reflect.Float64:
		return val.Float(), true
	}
	return 0, false
}

// Register adds or replaces a kind attached at hook.PriorityDefault.
func (c *Catalog) Register(name string, ctor Constructor) {
	c.RegisterWithPriority(name, hook.PriorityDefault, ctor)
}

// RegisterWithPriority adds or replaces a kind with a default priority.
func (c *Catalog) RegisterWithPriority(name string, priority int, ctor Constructor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds[name] = kind{ctor: ctor, priority: priority}
}

// Build returns a factory for name configured with opts.
func (c *Catalog) Build(name string, opts Options) (Factory, error) {
	c.mu.RLock()
	k, ok := c.kinds[name]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
	f, err := k.ctor(opts)
	if err != nil {
		return nil, fmt.Errorf("hook kind %q: %w", name, err)
	}
	return f, nil
}

// Has reports whether name is registered.
func (c *Catalog) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.kinds[name]
	return ok
}

// Priority returns the default priority of name, or hook.PriorityDefault
// for an unknown kind.
func (c *Catalog) Priority(name string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if k, ok := c.kinds[name]; ok {
		return k.priority
	}
	return hook.PriorityDefault
}

// Kinds returns the registered kinds, sorted.
func (c *Catalog) Kinds() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	kinds := make([]string, 0, len(c.kinds))
	for k := range c.kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Package builtin provides stock interceptors that work on any hookable
// function, regardless of its argument and result types.
package builtin

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/safehook/internal/hook"
	"github.com/dshills/safehook/internal/metrics"
)

// Factory builds a capability bound to a record's signature. opts are
// applied after the factory's own, so a label given here wins. It fails
// when its settings don't fit the record.
type Factory func(rec *hook.Record, opts ...hook.CapabilityOption) (*hook.Capability, error)

func labeled(label string, opts []hook.CapabilityOption) []hook.CapabilityOption {
	return append([]hook.CapabilityOption{hook.WithLabel(label)}, opts...)
}

// Log logs every call at debug level and panics at error level.
func Log(logger zerolog.Logger) Factory {
	return func(rec *hook.Record, opts ...hook.CapabilityOption) (*hook.Capability, error) {
		name := rec.Name()
		return rec.Adapt(func(args any, next func(any) any) any {
			start := time.Now()
			defer func() {
				if r := recover(); r != nil {
					logger.Error().
						Str("function", name).
						Interface("args", args).
						Interface("panic", r).
						Dur("duration", time.Since(start)).
						Msg("call panicked")
					panic(r)
				}
			}()

			out := next(args)
			logger.Debug().
				Str("function", name).
				Interface("args", args).
				Interface("result", out).
				Dur("duration", time.Since(start)).
				Msg("call")
			return out
		}, labeled("log", opts)...), nil
	}
}

// Timing records call durations in m.
func Timing(m *metrics.Metrics) Factory {
	return func(rec *hook.Record, opts ...hook.CapabilityOption) (*hook.Capability, error) {
		name := rec.Name()
		return rec.Adapt(func(args any, next func(any) any) any {
			start := time.Now()
			panicked := true
			defer func() {
				m.RecordCall(name, time.Since(start), panicked)
			}()

			out := next(args)
			panicked = false
			return out
		}, labeled("timing", opts)...), nil
	}
}

// Counter counts calls per function.
type Counter struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewCounter creates an empty counter.
func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int64)}
}

// Count returns the number of calls seen for function.
func (c *Counter) Count(function string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[function]
}

// Names returns the counted function names, sorted.
func (c *Counter) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.counts))
	for name := range c.counts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Counter) inc(function string) {
	c.mu.Lock()
	c.counts[function]++
	c.mu.Unlock()
}

// Count increments c once per call.
func Count(c *Counter) Factory {
	return func(rec *hook.Record, opts ...hook.CapabilityOption) (*hook.Capability, error) {
		name := rec.Name()
		return rec.Adapt(func(args any, next func(any) any) any {
			c.inc(name)
			return next(args)
		}, labeled("count", opts)...), nil
	}
}

// Retry runs the rest of the chain up to attempts times while it panics.
// The last panic is re-raised.
func Retry(attempts int) Factory {
	if attempts < 1 {
		attempts = 1
	}
	return func(rec *hook.Record, opts ...hook.CapabilityOption) (*hook.Capability, error) {
		return rec.Adapt(func(args any, next func(any) any) any {
			var last any
			for i := 0; i < attempts; i++ {
				out, p, ok := try(next, args)
				if ok {
					return out
				}
				last = p
			}
			panic(last)
		}, labeled(fmt.Sprintf("retry(%d)", attempts), opts)...), nil
	}
}

// Recover turns a downstream panic into a result. fallback receives the
// function name and the panic value; a nil fallback yields the zero result.
func Recover(fallback func(function string, p any) any) Factory {
	return func(rec *hook.Record, opts ...hook.CapabilityOption) (*hook.Capability, error) {
		name := rec.Name()
		zero := reflect.Zero(rec.Signature().Result).Interface()
		return rec.Adapt(func(args any, next func(any) any) any {
			out, p, ok := try(next, args)
			if ok {
				return out
			}
			if fallback == nil {
				return zero
			}
			return fallback(name, p)
		}, labeled("recover", opts)...), nil
	}
}

// Tap calls fn with the arguments and result of every call.
func Tap(fn func(function string, args, result any)) Factory {
	return func(rec *hook.Record, opts ...hook.CapabilityOption) (*hook.Capability, error) {
		name := rec.Name()
		return rec.Adapt(func(args any, next func(any) any) any {
			out := next(args)
			fn(name, args, out)
			return out
		}, labeled("tap", opts)...), nil
	}
}

// try calls next and reports a panic instead of propagating it.
func try(next func(any) any, args any) (out any, p any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p = r
			ok = false
		}
	}()
	return next(args), nil, true
}

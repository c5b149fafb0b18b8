package luahook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/dshills/safehook/internal/hook"
)

// Script is a compiled Lua chunk whose global functions can serve as
// interceptors. It is safe for concurrent use.
type Script struct {
	name string
	pool *pool
}

// Compile parses and compiles source. The chunk is run once to surface
// load-time errors.
func Compile(name, source string, opts ...StateOption) (*Script, error) {
	chunk, err := parse.Parse(strings.NewReader(source), name)
	if err != nil {
		return nil, &ScriptError{Script: name, Err: err}
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, &ScriptError{Script: name, Err: err}
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Script{
		name: name,
		pool: &pool{name: name, proto: proto, cfg: cfg},
	}

	L, err := s.pool.get()
	if err != nil {
		return nil, &ScriptError{Script: name, Err: err}
	}
	s.pool.put(L)
	return s, nil
}

// CompileFile compiles the script at path.
func CompileFile(path string, opts ...StateOption) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script %s: %w", path, err)
	}
	return Compile(path, string(data), opts...)
}

// Name returns the script's chunk name.
func (s *Script) Name() string { return s.name }

// Close releases idle states. Hooks built from a closed script panic
// with ErrStateClosed.
func (s *Script) Close() error {
	s.pool.close()
	return nil
}

// Release frees the script's idle states. The script stays usable, but
// every later call builds and closes its own state. Use it for a script
// that is being replaced while calls may still be running it.
func (s *Script) Release() {
	s.pool.retire()
}

// HasFunction reports whether entry is a global function of the script.
func (s *Script) HasFunction(entry string) bool {
	return s.check(entry) == nil
}

// Hook returns a dynamic interceptor that calls the global function entry
// as entry(args, next, function). args is converted to Lua; next converts
// its argument back to sig.Args (keeping unset struct fields, or the
// original args when called with none) and returns the downstream result.
// The Lua return value is converted to sig.Result.
func (s *Script) Hook(entry string, sig hook.Signature) (hook.DynamicFunc, error) {
	return s.dynamic(entry, "", sig)
}

// Bind returns a capability for rec that runs entry.
func (s *Script) Bind(rec *hook.Record, entry string, opts ...hook.CapabilityOption) (*hook.Capability, error) {
	fn, err := s.dynamic(entry, rec.Name(), rec.Signature())
	if err != nil {
		return nil, err
	}
	opts = append([]hook.CapabilityOption{hook.WithLabel("lua:" + s.name + ":" + entry)}, opts...)
	return rec.Adapt(fn, opts...), nil
}

func (s *Script) dynamic(entry, function string, sig hook.Signature) (hook.DynamicFunc, error) {
	if err := s.check(entry); err != nil {
		return nil, err
	}
	return func(args any, next func(any) any) any {
		return s.call(entry, function, sig, args, next)
	}, nil
}

func (s *Script) check(entry string) error {
	L, err := s.pool.get()
	if err != nil {
		return &ScriptError{Script: s.name, Entry: entry, Err: err}
	}
	defer s.pool.put(L)

	if _, ok := L.GetGlobal(entry).(*lua.LFunction); !ok {
		return &ScriptError{Script: s.name, Entry: entry, Err: ErrNoFunction}
	}
	return nil
}

// downstream holds a Go panic raised below the script while Lua code was
// on the stack. It travels through the VM as the error object, so a script
// that catches it with pcall and fails later reports its own error.
type downstream struct {
	value any
}

func raiseDownstream(L *lua.LState, p *downstream) {
	ud := L.NewUserData()
	ud.Value = p
	mt := L.NewTable()
	L.SetField(mt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString(fmt.Sprintf("downstream panic: %v", p.value)))
		return 1
	}))
	L.SetMetatable(ud, mt)
	L.Error(ud, 1)
}

// downstreamOf returns the Go panic carried by a Lua error, if any.
func downstreamOf(err error) (*downstream, bool) {
	var apiErr *lua.ApiError
	if !errors.As(err, &apiErr) {
		return nil, false
	}
	ud, ok := apiErr.Object.(*lua.LUserData)
	if !ok {
		return nil, false
	}
	p, ok := ud.Value.(*downstream)
	return p, ok
}

func (s *Script) call(entry, function string, sig hook.Signature, args any, next func(any) any) any {
	fail := func(err error) {
		panic(&ScriptError{Script: s.name, Entry: entry, Err: err})
	}

	L, err := s.pool.get()
	if err != nil {
		fail(err)
	}
	clean := false
	defer func() {
		if clean {
			s.pool.put(L)
		} else {
			s.pool.discard(L)
		}
	}()

	if timeout := s.pool.cfg.timeout; timeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		L.SetContext(ctx)
		defer L.RemoveContext()
	}

	fn, ok := L.GetGlobal(entry).(*lua.LFunction)
	if !ok {
		clean = true
		fail(ErrNoFunction)
	}

	base := reflect.ValueOf(args)
	nextFn := L.NewFunction(func(L *lua.LState) int {
		in := args
		if L.GetTop() >= 1 && L.Get(1) != lua.LNil {
			v, err := fromLua(L.Get(1), sig.Args, base)
			if err != nil {
				L.ArgError(1, err.Error())
				return 0
			}
			in = v.Interface()
		}

		out, p := callNext(next, in)
		if p != nil {
			raiseDownstream(L, p)
			return 0
		}
		L.Push(toLua(L, out))
		return 1
	})

	L.Push(fn)
	L.Push(toLua(L, args))
	L.Push(nextFn)
	L.Push(lua.LString(function))
	err = L.PCall(3, 1, nil)
	clean = true

	if err != nil {
		if p, ok := downstreamOf(err); ok {
			panic(p.value)
		}
		fail(err)
	}

	ret := L.Get(-1)
	L.Pop(1)
	out, err := fromLua(ret, sig.Result, reflect.Value{})
	if err != nil {
		fail(fmt.Errorf("result: %w", err))
	}
	return out.Interface()
}

// callNext runs next and captures a panic instead of letting it unwind
// through the Lua VM.
func callNext(next func(any) any, args any) (out any, p *downstream) {
	defer func() {
		if r := recover(); r != nil {
			p = &downstream{value: r}
		}
	}()
	return next(args), nil
}

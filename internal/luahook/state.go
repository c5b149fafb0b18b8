package luahook

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"
)

// Defaults for script states.
const (
	DefaultMaxIdle = 4
	DefaultTimeout = 0 // no limit
)

// config holds state settings shared by a script's pool.
type config struct {
	maxIdle int
	timeout time.Duration
	logger  zerolog.Logger
}

func defaultConfig() config {
	return config{
		maxIdle: DefaultMaxIdle,
		timeout: DefaultTimeout,
		logger:  zerolog.Nop(),
	}
}

// StateOption configures the Lua states a script runs in.
type StateOption func(*config)

// WithMaxIdle sets how many idle states a script keeps for reuse.
func WithMaxIdle(n int) StateOption {
	return func(c *config) {
		if n >= 0 {
			c.maxIdle = n
		}
	}
}

// WithTimeout bounds each hook call, including time spent downstream.
// Zero disables the limit.
func WithTimeout(d time.Duration) StateOption {
	return func(c *config) { c.timeout = d }
}

// WithLogger routes the script's print calls to logger at info level.
func WithLogger(logger zerolog.Logger) StateOption {
	return func(c *config) { c.logger = logger }
}

// newState creates a sandboxed Lua state and runs the compiled chunk in it.
func newState(name string, proto *lua.FunctionProto, cfg config) (*lua.LState, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)
	installPrint(L, name, cfg.logger)

	L.Push(L.NewFunctionFromProto(proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		L.Close()
		return nil, err
	}
	L.SetTop(0)
	return L, nil
}

// openSafeLibraries opens only safe Lua standard libraries.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// io, os, debug and package stay closed.
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// installPrint replaces print with one that writes to logger.
func installPrint(L *lua.LState, script string, logger zerolog.Logger) {
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, 0, L.GetTop())
		for i := 1; i <= L.GetTop(); i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		logger.Info().Str("script", script).Msg(strings.Join(parts, "\t"))
		return 0
	}))
}

// pool hands out states that have already run the script's chunk.
type pool struct {
	mu      sync.Mutex
	idle    []*lua.LState
	closed  bool
	retired bool

	name  string
	proto *lua.FunctionProto
	cfg   config
}

func (p *pool) get() (*lua.LState, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrStateClosed
	}
	if n := len(p.idle); n > 0 {
		L := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return L, nil
	}
	p.mu.Unlock()

	return newState(p.name, p.proto, p.cfg)
}

func (p *pool) put(L *lua.LState) {
	L.SetTop(0)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.retired || len(p.idle) >= p.cfg.maxIdle {
		L.Close()
		return
	}
	p.idle = append(p.idle, L)
}

// discard closes a state that may be left inconsistent.
func (p *pool) discard(L *lua.LState) {
	L.Close()
}

func (p *pool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// retire closes idle states and stops pooling. get keeps working.
func (p *pool) retire() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retired = true
	for _, L := range p.idle {
		L.Close()
	}
	p.idle = nil
}

func (p *pool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, L := range p.idle {
		L.Close()
	}
	p.idle = nil
}

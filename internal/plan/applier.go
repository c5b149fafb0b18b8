// Package plan applies hook plans to a directory of hookable functions.
//
// An Applier owns the capabilities it attached. Applying a new plan first
// removes everything the previous plan attached, then attaches the new set,
// so reloading a plan never stacks duplicate interceptors.
package plan

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dshills/safehook/internal/config"
	"github.com/dshills/safehook/internal/hook"
	"github.com/dshills/safehook/internal/hook/builtin"
	"github.com/dshills/safehook/internal/luahook"
)

// Attached describes one capability the applier attached.
type Attached struct {
	ID       uuid.UUID
	Function string
	Hook     string
	Label    string
	Priority int
}

// Report summarizes an Apply.
type Report struct {
	Attached []Attached
	Failed   []*AttachError
	Detached int
}

// Err joins the failures, or returns nil.
func (r *Report) Err() error {
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// active is an attached capability and the record it lives on.
type active struct {
	record     *hook.Record
	capability *hook.Capability
	info       Attached
}

// Applier attaches plans to a directory.
type Applier struct {
	dir        *hook.Directory
	catalog    *builtin.Catalog
	logger     zerolog.Logger
	scriptOpts []luahook.StateOption

	mu      sync.Mutex
	active  []active
	scripts []*luahook.Script
}

// Option configures an Applier.
type Option func(*Applier)

// WithDirectory sets the directory function names resolve against.
func WithDirectory(d *hook.Directory) Option {
	return func(a *Applier) { a.dir = d }
}

// WithCatalog sets the stock hook kinds.
func WithCatalog(c *builtin.Catalog) Option {
	return func(a *Applier) { a.catalog = c }
}

// WithLogger sets the applier's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Applier) { a.logger = logger }
}

// WithScriptOptions sets the options Lua scripts are compiled with.
func WithScriptOptions(opts ...luahook.StateOption) Option {
	return func(a *Applier) { a.scriptOpts = opts }
}

// New creates an Applier. By default it targets the process-wide
// directory with the standard catalog.
func New(opts ...Option) *Applier {
	a := &Applier{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	if a.dir == nil {
		a.dir = hook.Default()
	}
	if a.catalog == nil {
		a.catalog = builtin.NewStandardCatalog(builtin.Env{Logger: a.logger})
	}
	return a
}

// pending is a capability built but not yet attached.
type pending struct {
	index      int
	record     *hook.Record
	capability *hook.Capability
	info       Attached
}

// Apply replaces everything attached by the previous Apply with p.
// Attachments that fail are reported and skipped; the rest are applied.
func (a *Applier) Apply(p *config.Plan) (*Report, error) {
	report := &Report{}
	cache := make(map[string]*luahook.Script)

	var ready []pending
	for i, att := range p.Attach {
		pend, err := a.build(p, i, att, cache)
		if err != nil {
			report.Failed = append(report.Failed, &AttachError{
				Index:    i,
				Function: att.Function,
				Hook:     att.Hook,
				Err:      err,
			})
			a.logger.Warn().Err(err).Int("index", i).Str("function", att.Function).Str("hook", att.Hook).Msg("attachment skipped")
			continue
		}
		ready = append(ready, pend)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	report.Detached = a.detachLocked()

	for _, pend := range ready {
		if err := pend.record.AddHookWithPriority(pend.capability, pend.info.Priority); err != nil {
			report.Failed = append(report.Failed, &AttachError{
				Index:    pend.index,
				Function: pend.info.Function,
				Hook:     pend.info.Hook,
				Err:      err,
			})
			continue
		}
		a.active = append(a.active, active{
			record:     pend.record,
			capability: pend.capability,
			info:       pend.info,
		})
		report.Attached = append(report.Attached, pend.info)
	}

	// Retired scripts are released, not closed: dispatches already in
	// flight may still hold capabilities that call them.
	for _, s := range a.scripts {
		s.Release()
	}
	a.scripts = a.scripts[:0]
	for _, s := range cache {
		a.scripts = append(a.scripts, s)
	}

	a.logger.Info().
		Int("attached", len(report.Attached)).
		Int("failed", len(report.Failed)).
		Int("detached", report.Detached).
		Msg("plan applied")

	return report, report.Err()
}

func (a *Applier) build(p *config.Plan, i int, att config.Attachment, cache map[string]*luahook.Script) (pending, error) {
	if err := att.Check(i); err != nil {
		return pending{}, err
	}

	rec, ok := a.dir.Lookup(att.Function)
	if !ok {
		return pending{}, fmt.Errorf("%w: %s", hook.ErrNotFound, att.Function)
	}

	var (
		c        *hook.Capability
		priority = att.PriorityOr(hook.PriorityDefault)
		err      error
	)
	if att.IsLua() {
		c, err = a.buildLua(p, i, att, rec, cache)
	} else {
		priority = att.PriorityOr(a.catalog.Priority(att.Hook))
		c, err = a.buildStock(att, rec)
	}
	if err != nil {
		return pending{}, err
	}

	return pending{
		index:      i,
		record:     rec,
		capability: c,
		info: Attached{
			ID:       c.ID(),
			Function: att.Function,
			Hook:     att.Hook,
			Label:    c.Label(),
			Priority: priority,
		},
	}, nil
}

func (a *Applier) buildStock(att config.Attachment, rec *hook.Record) (*hook.Capability, error) {
	if !a.catalog.Has(att.Hook) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHook, att.Hook)
	}
	factory, err := a.catalog.Build(att.Hook, builtin.Options(att.Options))
	if err != nil {
		return nil, err
	}
	return factory(rec, hook.WithLabel(att.Label))
}

func (a *Applier) buildLua(p *config.Plan, i int, att config.Attachment, rec *hook.Record, cache map[string]*luahook.Script) (*hook.Capability, error) {
	key := att.ScriptPath(p.Dir)
	if key == "" {
		key = fmt.Sprintf("inline#%d", i)
	}

	script, ok := cache[key]
	if !ok {
		opts := append([]luahook.StateOption{luahook.WithLogger(a.logger)}, a.scriptOpts...)
		var err error
		if att.Script != "" {
			script, err = luahook.CompileFile(key, opts...)
		} else {
			script, err = luahook.Compile(key, att.Source, opts...)
		}
		if err != nil {
			return nil, err
		}
		cache[key] = script
	}
	return script.Bind(rec, att.EntryName(), hook.WithLabel(att.Label))
}

// Detach removes every capability the applier attached and returns how many.
func (a *Applier) Detach() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.detachLocked()
}

func (a *Applier) detachLocked() int {
	n := 0
	for _, act := range a.active {
		if act.record.RemoveHook(act.capability) {
			n++
		}
	}
	a.active = a.active[:0]
	return n
}

// Active returns what is currently attached, in attachment order.
func (a *Applier) Active() []Attached {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Attached, len(a.active))
	for i, act := range a.active {
		out[i] = act.info
	}
	return out
}

// Close detaches everything and closes the applier's scripts. Callers must
// make sure no dispatch is still running a script hook.
func (a *Applier) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.detachLocked()
	var errs []error
	for _, s := range a.scripts {
		errs = append(errs, s.Close())
	}
	a.scripts = nil
	return errors.Join(errs...)
}

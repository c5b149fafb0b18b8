package hook

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// registration is one entry in a Directory.
type registration struct {
	name   string
	record func() *Record
}

// Directory maps names to hookable function records.
//
// Records are registered during package initialization and looked up at
// run time. Names should be unique; when a name is registered twice the
// first registration wins and the second is unreachable by name.
type Directory struct {
	mu      sync.RWMutex
	entries []*registration
	index   map[string]*registration

	logger atomic.Pointer[zerolog.Logger]
}

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithLogger sets the logger used for hook mutations.
func WithLogger(logger zerolog.Logger) DirectoryOption {
	return func(d *Directory) {
		d.logger.Store(&logger)
	}
}

// NewDirectory creates an empty directory.
func NewDirectory(opts ...DirectoryOption) *Directory {
	d := &Directory{
		index: make(map[string]*registration),
	}
	d.logger.Store(&nopLogger)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// register adds a lazily built record and returns its accessor.
// build runs at most once, on first call or first lookup.
func (d *Directory) register(name string, build func() *Record) func() *Record {
	reg := &registration{
		name:   name,
		record: sync.OnceValue(build),
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.entries = append(d.entries, reg)
	if _, exists := d.index[name]; !exists {
		d.index[name] = reg
	} else {
		d.log().Warn().Str("function", name).Msg("duplicate hookable name; later registration is unreachable by name")
	}
	return reg.record
}

// Register eagerly creates and registers the record for fn.
func Register[A, R any](d *Directory, name string, fn func(A) R) *Record {
	rec := newRecord(d, name, fn)
	d.register(name, func() *Record { return rec })
	return rec
}

// Lookup returns the first record registered under name.
func (d *Directory) Lookup(name string) (*Record, bool) {
	d.mu.RLock()
	reg, ok := d.index[name]
	d.mu.RUnlock()

	if !ok {
		return nil, false
	}
	return reg.record(), true
}

// Must is like Lookup but panics if name is not registered.
func (d *Directory) Must(name string) *Record {
	rec, ok := d.Lookup(name)
	if !ok {
		panic(ErrNotFound.Error() + ": " + name)
	}
	return rec
}

// Names returns every registered name in registration order.
func (d *Directory) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, len(d.entries))
	for i, reg := range d.entries {
		names[i] = reg.name
	}
	return names
}

// Records returns the records reachable by name, in registration order.
func (d *Directory) Records() []*Record {
	d.mu.RLock()
	regs := make([]*registration, 0, len(d.index))
	for _, reg := range d.entries {
		if d.index[reg.name] == reg {
			regs = append(regs, reg)
		}
	}
	d.mu.RUnlock()

	records := make([]*Record, len(regs))
	for i, reg := range regs {
		records[i] = reg.record()
	}
	return records
}

// Len returns the number of registrations, including unreachable duplicates.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

// SetLogger replaces the logger used for hook mutations.
func (d *Directory) SetLogger(logger zerolog.Logger) {
	d.logger.Store(&logger)
}

func (d *Directory) log() *zerolog.Logger {
	return d.logger.Load()
}

var defaultDirectory = NewDirectory()

// Default returns the process-wide directory used by Define.
func Default() *Directory { return defaultDirectory }

// Lookup finds a hookable function in the default directory.
func Lookup(name string) (*Record, bool) {
	return defaultDirectory.Lookup(name)
}

// Names lists the default directory.
func Names() []string {
	return defaultDirectory.Names()
}

// SetLogger sets the default directory's logger.
func SetLogger(logger zerolog.Logger) {
	defaultDirectory.SetLogger(logger)
}

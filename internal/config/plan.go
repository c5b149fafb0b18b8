package config

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/dshills/safehook/internal/logging"
)

// HookLua is the hook kind for Lua script interceptors.
const HookLua = "lua"

// DefaultEntry is the Lua function called when an attachment names none.
const DefaultEntry = "intercept"

// Plan describes the interceptors to attach at startup.
type Plan struct {
	Logging logging.Config `toml:"logging" yaml:"logging"`
	Attach  []Attachment   `toml:"attach" yaml:"attach"`

	// Dir is the directory of the file the plan was loaded from.
	Dir string `toml:"-" yaml:"-"`
}

// Attachment binds one interceptor to one hookable function.
type Attachment struct {
	Function string         `toml:"function" yaml:"function"`
	Hook     string         `toml:"hook" yaml:"hook"`
	Priority *int           `toml:"priority" yaml:"priority"`
	Label    string         `toml:"label" yaml:"label"`
	Script   string         `toml:"script" yaml:"script"`
	Source   string         `toml:"source" yaml:"source"`
	Entry    string         `toml:"entry" yaml:"entry"`
	Options  map[string]any `toml:"options" yaml:"options"`
}

// Validate checks every attachment and the logging table.
// All problems are returned joined.
func (p *Plan) Validate() error {
	var errs []error
	if err := p.Logging.Validate(); err != nil {
		errs = append(errs, err)
	}
	for i, a := range p.Attach {
		errs = append(errs, a.Check(i))
	}
	return errors.Join(errs...)
}

// Functions returns the distinct function names the plan targets, in order.
func (p *Plan) Functions() []string {
	seen := make(map[string]bool)
	var names []string
	for _, a := range p.Attach {
		if !seen[a.Function] {
			seen[a.Function] = true
			names = append(names, a.Function)
		}
	}
	return names
}

// Empty reports whether the plan attaches nothing.
func (p *Plan) Empty() bool {
	return len(p.Attach) == 0
}

// Check validates the attachment at position i of its plan.
func (a Attachment) Check(i int) error {
	var errs []error
	bad := func(field, msg string) {
		errs = append(errs, &ValidationError{Index: i, Field: field, Message: msg})
	}

	if strings.TrimSpace(a.Function) == "" {
		bad("function", "required")
	}
	if strings.TrimSpace(a.Hook) == "" {
		bad("hook", "required")
	}

	if a.IsLua() {
		switch {
		case a.Script == "" && a.Source == "":
			bad("script", "lua hooks need script or source")
		case a.Script != "" && a.Source != "":
			bad("script", "script and source are mutually exclusive")
		}
	} else {
		if a.Script != "" || a.Source != "" {
			bad("script", "only lua hooks take a script")
		}
		if a.Entry != "" {
			bad("entry", "only lua hooks take an entry")
		}
	}
	return errors.Join(errs...)
}

// IsLua reports whether the attachment is a Lua script.
func (a Attachment) IsLua() bool {
	return a.Hook == HookLua
}

// PriorityOr returns the attachment's priority, or def when the plan
// leaves it unset.
func (a Attachment) PriorityOr(def int) int {
	if a.Priority == nil {
		return def
	}
	return *a.Priority
}

// EntryName returns the Lua entry function, defaulting to DefaultEntry.
func (a Attachment) EntryName() string {
	if a.Entry == "" {
		return DefaultEntry
	}
	return a.Entry
}

// ScriptPath resolves Script against dir.
func (a Attachment) ScriptPath(dir string) string {
	if a.Script == "" || filepath.IsAbs(a.Script) || dir == "" {
		return a.Script
	}
	return filepath.Join(dir, a.Script)
}

// DisplayLabel returns the label, falling back to the hook kind.
func (a Attachment) DisplayLabel() string {
	if a.Label != "" {
		return a.Label
	}
	if a.IsLua() && a.Script != "" {
		return a.Hook + ":" + filepath.Base(a.Script)
	}
	return a.Hook
}

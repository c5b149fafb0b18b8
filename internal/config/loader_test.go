package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memFS is an in-memory FileSystem for tests.
type memFS map[string]string

func (m memFS) ReadFile(path string) ([]byte, error) {
	data, ok := m[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return []byte(data), nil
}

func (m memFS) Stat(path string) (fs.FileInfo, error) {
	data, ok := m[path]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
	}
	return memInfo{name: filepath.Base(path), size: int64(len(data))}, nil
}

type memInfo struct {
	name string
	size int64
}

func (i memInfo) Name() string       { return i.name }
func (i memInfo) Size() int64        { return i.size }
func (i memInfo) Mode() fs.FileMode  { return 0o644 }
func (i memInfo) ModTime() time.Time { return time.Time{} }
func (i memInfo) IsDir() bool        { return false }
func (i memInfo) Sys() any           { return nil }

func noEnv(string) (string, bool) { return "", false }

const tomlPlan = `
[logging]
level = "debug"
format = "json"

[[attach]]
function = "demo.add"
hook = "timing"
priority = 1000

[[attach]]
function = "demo.add"
hook = "retry"
priority = 500
options = { attempts = 4 }

[[attach]]
function = "demo.greet"
hook = "lua"
script = "scripts/greet.lua"
`

const yamlPlan = `
logging:
  level: warn
attach:
  - function: demo.concat
    hook: lua
    source: |
      function shout(args, next)
        return string.upper(next(args))
      end
    entry: shout
  - function: demo.concat
    hook: count
    label: counter
`

func TestLoadTOML(t *testing.T) {
	l := NewLoader(WithFS(memFS{"/etc/hooks/plan.toml": tomlPlan}), WithEnv(noEnv))

	p, err := l.Load("/etc/hooks/plan.toml")
	require.NoError(t, err)
	require.NoError(t, p.Validate())

	assert.Equal(t, "debug", p.Logging.Level)
	assert.Equal(t, "json", p.Logging.Format)
	require.Len(t, p.Attach, 3)

	assert.Equal(t, "demo.add", p.Attach[0].Function)
	assert.Equal(t, 1000, p.Attach[0].PriorityOr(0))
	assert.Nil(t, p.Attach[2].Priority)
	assert.Equal(t, -3, p.Attach[2].PriorityOr(-3))
	assert.EqualValues(t, 4, p.Attach[1].Options["attempts"])

	greet := p.Attach[2]
	assert.True(t, greet.IsLua())
	assert.Equal(t, DefaultEntry, greet.EntryName())
	assert.Equal(t, filepath.Join("/etc/hooks", "scripts/greet.lua"), greet.ScriptPath(p.Dir))
	assert.Equal(t, "lua:greet.lua", greet.DisplayLabel())

	assert.Equal(t, []string{"demo.add", "demo.greet"}, p.Functions())
}

func TestLoadYAML(t *testing.T) {
	l := NewLoader(WithFS(memFS{"plan.yml": yamlPlan}), WithEnv(noEnv))

	p, err := l.Load("plan.yml")
	require.NoError(t, err)
	require.NoError(t, p.Validate())

	assert.Equal(t, "warn", p.Logging.Level)
	require.Len(t, p.Attach, 2)
	assert.Equal(t, "shout", p.Attach[0].EntryName())
	assert.Contains(t, p.Attach[0].Source, "string.upper")
	assert.Equal(t, "counter", p.Attach[1].DisplayLabel())
}

func TestLoadMissingFile(t *testing.T) {
	l := NewLoader(WithFS(memFS{}), WithEnv(noEnv))

	p, err := l.Load("/nowhere/plan.toml")
	require.NoError(t, err)
	assert.True(t, p.Empty())
	assert.Equal(t, "/nowhere", p.Dir)

	_, err = l.LoadRequired("/nowhere/plan.toml")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestLoadUnknownFormat(t *testing.T) {
	l := NewLoader(WithFS(memFS{"plan.json": "{}"}), WithEnv(noEnv))

	_, err := l.Load("plan.json")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = l.LoadFromReader(strings.NewReader(""), "ini")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		data     string
		wantLine bool
	}{
		{"toml syntax", "bad.toml", "[[attach]\nfunction = 1", true},
		{"toml unknown field", "bad.toml", "[[attach]]\nfunction = \"a\"\nhook = \"log\"\nwhen = \"always\"\n", true},
		{"yaml syntax", "bad.yaml", "attach: [", false},
		{"yaml unknown field", "bad.yaml", "attach:\n  - function: a\n    bogus: 1\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLoader(WithFS(memFS{tt.path: tt.data}), WithEnv(noEnv))
			_, err := l.Load(tt.path)
			require.Error(t, err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr), "want *ParseError, got %T", err)
			assert.Equal(t, tt.path, perr.Path)
			if tt.wantLine {
				assert.Positive(t, perr.Line)
			}
			assert.Contains(t, err.Error(), tt.path)
		})
	}
}

func TestLoadFromReader(t *testing.T) {
	p, err := NewLoader(WithEnv(noEnv)).LoadFromReader(strings.NewReader(yamlPlan), "YAML")
	require.NoError(t, err)
	assert.Len(t, p.Attach, 2)

	p, err = NewLoader(WithEnv(noEnv)).LoadFromReader(strings.NewReader(""), FormatYAML)
	require.NoError(t, err)
	assert.True(t, p.Empty())
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		"SAFEHOOK_LOG_LEVEL":  "ERROR",
		"SAFEHOOK_LOG_OUTPUT": "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	l := NewLoader(WithFS(memFS{"plan.toml": tomlPlan}), WithEnv(lookup))

	p, err := l.Load("plan.toml")
	require.NoError(t, err)
	assert.Equal(t, "error", p.Logging.Level)
	assert.Equal(t, "json", p.Logging.Format)
	assert.Empty(t, p.Logging.Output)

	p, err = l.Load("missing.toml")
	require.NoError(t, err)
	assert.Equal(t, "error", p.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		attach Attachment
		fields []string
	}{
		{"ok", Attachment{Function: "f", Hook: "log"}, nil},
		{"ok lua", Attachment{Function: "f", Hook: "lua", Source: "x"}, nil},
		{"missing function", Attachment{Hook: "log"}, []string{"function"}},
		{"missing both", Attachment{}, []string{"function", "hook"}},
		{"lua without script", Attachment{Function: "f", Hook: "lua"}, []string{"script"}},
		{"lua with both", Attachment{Function: "f", Hook: "lua", Script: "a.lua", Source: "x"}, []string{"script"}},
		{"script on stock", Attachment{Function: "f", Hook: "log", Script: "a.lua", Entry: "e"}, []string{"script", "entry"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Plan{Attach: []Attachment{{Function: "ok", Hook: "log"}, tt.attach}}
			err := p.Validate()
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, field := range tt.fields {
				assert.Contains(t, err.Error(), "attach[1]."+field)
			}
			var verr *ValidationError
			assert.True(t, errors.As(err, &verr))
		})
	}

	p := &Plan{}
	p.Logging.Format = "xml"
	assert.Error(t, p.Validate())
}

func TestScriptPath(t *testing.T) {
	a := Attachment{Script: "/abs/x.lua"}
	assert.Equal(t, "/abs/x.lua", a.ScriptPath("/etc"))

	a = Attachment{Script: "x.lua"}
	assert.Equal(t, "x.lua", a.ScriptPath(""))
	assert.Equal(t, filepath.Join("/etc", "x.lua"), a.ScriptPath("/etc"))
}

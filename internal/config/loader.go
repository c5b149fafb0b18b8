package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Formats.
const (
	FormatTOML = "toml"
	FormatYAML = "yaml"
)

// FileSystem is an abstraction for file system operations.
// This allows for easy testing with in-memory file systems.
type FileSystem interface {
	// ReadFile reads the entire file at path.
	ReadFile(path string) ([]byte, error)
	// Stat returns file info for path.
	Stat(path string) (fs.FileInfo, error)
}

// OSFS implements FileSystem using the real OS file system.
type OSFS struct{}

// ReadFile reads the entire file at path.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Stat returns file info for path.
func (OSFS) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Loader reads plans from a file system.
type Loader struct {
	fs     FileSystem
	lookup func(string) (string, bool)
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFS sets the file system plans are read from.
func WithFS(fsys FileSystem) LoaderOption {
	return func(l *Loader) { l.fs = fsys }
}

// WithEnv sets the environment lookup used for overrides.
// Pass nil to disable overrides.
func WithEnv(lookup func(string) (string, bool)) LoaderOption {
	return func(l *Loader) { l.lookup = lookup }
}

// NewLoader creates a loader over the OS file system and environment.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		fs:     OSFS{},
		lookup: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the plan at path. A missing file yields an empty plan.
func (l *Loader) Load(path string) (*Plan, error) {
	p, err := l.LoadRequired(path)
	if errors.Is(err, ErrFileNotFound) {
		p = &Plan{Dir: filepath.Dir(path)}
		l.applyEnv(p)
		return p, nil
	}
	return p, err
}

// LoadRequired reads the plan at path and fails if it doesn't exist.
func (l *Loader) LoadRequired(path string) (*Plan, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	data, err := l.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("reading plan file %s: %w", path, err)
	}

	p, err := parse(path, format, data)
	if err != nil {
		return nil, err
	}
	p.Dir = filepath.Dir(path)
	l.applyEnv(p)
	return p, nil
}

// LoadFromReader reads a plan in the given format from r.
// Relative script paths resolve against the working directory.
func (l *Loader) LoadFromReader(r io.Reader, format string) (*Plan, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}
	p, err := parse("<reader>", strings.ToLower(format), data)
	if err != nil {
		return nil, err
	}
	l.applyEnv(p)
	return p, nil
}

// Load reads the plan at path with the default loader.
func Load(path string) (*Plan, error) {
	return NewLoader().Load(path)
}

// LoadFromReader reads a plan from r with the default loader.
func LoadFromReader(r io.Reader, format string) (*Plan, error) {
	return NewLoader().LoadFromReader(r, format)
}

// FormatOf returns the plan format implied by path's extension.
func FormatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

func parse(source, format string, data []byte) (*Plan, error) {
	switch format {
	case FormatTOML:
		return parseTOML(source, data)
	case FormatYAML:
		return parseYAML(source, data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func parseTOML(source string, data []byte) (*Plan, error) {
	var p Plan
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		perr := &ParseError{Path: source, Message: err.Error(), Err: err}

		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		var serr *toml.StrictMissingError
		if errors.As(err, &serr) && len(serr.Errors) > 0 {
			perr.Line, perr.Column = serr.Errors[0].Position()
			perr.Message = "unknown field " + strings.Join(serr.Errors[0].Key(), ".")
		}
		return nil, perr
	}
	return &p, nil
}

func parseYAML(source string, data []byte) (*Plan, error) {
	var p Plan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return &p, nil
		}
		return nil, &ParseError{Path: source, Message: err.Error(), Err: err}
	}
	return &p, nil
}

package config

import (
	"errors"
	"fmt"
)

// Errors returned by plan loading and validation.
var (
	// ErrFileNotFound indicates a required plan file doesn't exist.
	ErrFileNotFound = errors.New("plan file not found")

	// ErrUnknownFormat indicates the plan format can't be determined from the path.
	ErrUnknownFormat = errors.New("unknown plan format")
)

// ParseError represents an error while parsing a plan file.
type ParseError struct {
	// Path is the file path that failed to parse.
	Path string
	// Line is the line number where the error occurred (if available).
	Line int
	// Column is the column number where the error occurred (if available).
	Column int
	// Message describes the parse error.
	Message string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError describes an invalid attachment.
type ValidationError struct {
	// Index is the position of the attachment in the plan.
	Index int
	// Field is the offending field name.
	Field string
	// Message describes the problem.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("attach[%d].%s: %s", e.Index, e.Field, e.Message)
}

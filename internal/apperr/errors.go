// Package apperr defines the error types surfaced by manifest loading.
package apperr

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ErrNotFound is returned by lookups for pipelines and entries that do not exist.
var ErrNotFound = errors.New("not found")

// maxValueRunes bounds how much of an offending value is echoed back.
const maxValueRunes = 50

// Detail is the structured context attached to every manifest error.
type Detail struct {
	Message  string
	FilePath string
	Field    string
	Value    string
	Hint     string
}

// Format renders the detail as a multi-line, human-readable message.
// Empty parts are omitted.
func (d Detail) Format() string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(d.Message)
	if d.FilePath != "" {
		b.WriteString("\n  File: ")
		b.WriteString(d.FilePath)
	}
	if d.Field != "" {
		b.WriteString("\n  Field: ")
		b.WriteString(d.Field)
	}
	if d.Value != "" {
		b.WriteString("\n  Value: ")
		b.WriteString(Truncate(d.Value))
	}
	if d.Hint != "" {
		b.WriteString("\n  Hint: ")
		b.WriteString(d.Hint)
	}
	return b.String()
}

// Truncate shortens s to 50 runes followed by "..." when it is longer.
func Truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxValueRunes {
		return s
	}
	r := []rune(s)
	return string(r[:maxValueRunes]) + "..."
}

// ConfigError reports a structural problem: a missing file or section, an
// unknown config type, an unsupported format version, a dangling reference,
// or a path with no entry for the current platform.
type ConfigError struct {
	Detail
	Err error
}

// NewConfigError returns a ConfigError carrying only a message.
func NewConfigError(msg string) *ConfigError {
	return &ConfigError{Detail: Detail{Message: msg}}
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ValidationError reports a free-text field that failed the content policy.
// Callers decide whether to abort or collect several of them.
type ValidationError struct {
	Detail
}

// NewValidationError returns a ValidationError for field.
func NewValidationError(msg, field, value, hint string) *ValidationError {
	return &ValidationError{Detail: Detail{
		Message: msg,
		Field:   field,
		Value:   value,
		Hint:    hint,
	}}
}

func (e *ValidationError) Error() string { return e.Message }

// WithFile returns a copy of e that names the manifest file it came from.
func (e *ValidationError) WithFile(path string) *ValidationError {
	cp := *e
	cp.FilePath = path
	return &cp
}

// Format renders err for display to a user. ConfigError and ValidationError
// anywhere in the chain are rendered with their full detail.
func Format(err error) string {
	if err == nil {
		return ""
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Format()
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		d := ce.Detail
		if ce.Err != nil {
			d.Message = ce.Error()
		}
		return d.Format()
	}
	return "Error: " + err.Error()
}

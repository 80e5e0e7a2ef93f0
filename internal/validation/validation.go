// Package validation checks free-text manifest fields before they are
// interpolated into generated site configuration.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/chartbook/internal/apperr"
)

// DefaultMaxLength bounds free-text fields when no explicit limit is given.
const DefaultMaxLength = 200

// Supported site themes.
const (
	ThemeCatalog  = "pydata_sphinx_theme"
	ThemePipeline = "sphinx_book_theme"
)

// Manifest roles a theme can be chosen for.
const (
	RoleCatalog  = "catalog"
	RolePipeline = "pipeline"
)

// ThemeField is reported for theme and role failures.
const ThemeField = "config.type"

// allowedText accepts Latin letters (accented included), digits, Unicode spaces
// and - , . ! & : ' ’. Quotes, semicolons, brackets, braces and backslashes
// are what could escape a string literal or open template syntax downstream.
var allowedText = regexp.MustCompile(`^[\p{Latin}0-9\s\p{Z}\-,.!&:'’]+$`)

var supportedThemes = []interface{}{ThemeCatalog, ThemePipeline}

// ValidateText checks value against the free-text policy and returns it
// unchanged on success. maxLength <= 0 selects DefaultMaxLength. A value that
// is blank after trimming fails only when required is set.
func ValidateText(value, field string, maxLength int, required bool) (string, error) {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		if !required {
			return value, nil
		}
		err := validation.Validate(trimmed, validation.Required.Error("cannot be empty"))
		return "", fieldError(field, value, err, "Provide a non-empty value.")
	}

	err := validation.Validate(value,
		validation.RuneLength(0, maxLength).Error(fmt.Sprintf("exceeds maximum length of %d characters", maxLength)),
	)
	if err != nil {
		return "", fieldError(field, value, err, fmt.Sprintf("Shorten the value to at most %d characters.", maxLength))
	}

	err = validation.Validate(value, validation.Match(allowedText).Error("contains invalid characters"))
	if err != nil {
		return "", fieldError(field, value, err,
			`Use letters, digits, spaces and - , . ! & : ' only. Quotes, semicolons, brackets, braces and backslashes are not allowed.`)
	}
	return value, nil
}

// ValidateTheme checks name against the closed list of supported themes.
func ValidateTheme(name string) (string, error) {
	err := validation.Validate(name, validation.Required, validation.In(supportedThemes...))
	if err != nil {
		return "", apperr.NewValidationError(
			fmt.Sprintf("Invalid site theme %q", name),
			ThemeField, name,
			fmt.Sprintf("Supported themes: %s, %s.", ThemeCatalog, ThemePipeline),
		)
	}
	return name, nil
}

// ThemeForRole returns the theme used for a catalog or pipeline site.
func ThemeForRole(role string) (string, error) {
	switch role {
	case RoleCatalog:
		return ThemeCatalog, nil
	case RolePipeline:
		return ThemePipeline, nil
	}
	return "", apperr.NewValidationError(
		fmt.Sprintf("Invalid pipeline theme role %q", role),
		ThemeField, role,
		`config.type must be "pipeline" or "catalog".`,
	)
}

func fieldError(field, value string, err error, hint string) *apperr.ValidationError {
	msg := err.Error()
	var ve validation.Error
	if errors.As(err, &ve) {
		msg = ve.Message()
	}
	return apperr.NewValidationError(field+" "+msg, field, value, hint)
}

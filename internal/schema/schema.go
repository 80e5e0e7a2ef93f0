// Package schema checks a chartbook.toml for a supported config type and
// format version before the manifest is resolved.
package schema

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-version"

	"github.com/starford/chartbook/internal/apperr"
)

// FileName is the manifest file expected at a project root.
const FileName = "chartbook.toml"

// Format versions. Manifests older than MinimumFormatVersion are rejected
// rather than interpreted under a newer schema.
const (
	FormatVersion        = "0.1.0"
	MinimumFormatVersion = "0.1.0"
)

// Config types.
const (
	TypePipeline = "pipeline"
	TypeCatalog  = "catalog"
)

var minimumVersion = version.Must(version.NewVersion(MinimumFormatVersion))

// requiredSections lists the top-level tables each type must declare.
var requiredSections = map[string][]string{
	TypePipeline: {"pipeline", "dataframes", "charts"},
	TypeCatalog:  {"pipelines"},
}

// Header is the [config] table of a manifest.
type Header struct {
	Type          string `toml:"type"`
	FormatVersion string `toml:"chartbook_format_version"`
}

type headerDoc struct {
	Config Header `toml:"config"`
}

// Validate checks the manifest at path and returns its config type.
func Validate(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &apperr.ConfigError{Detail: apperr.Detail{
				Message:  fmt.Sprintf("No %s found at %s", FileName, path),
				FilePath: path,
				Hint:     "Run the command from a pipeline or catalog directory.",
			}}
		}
		return "", &apperr.ConfigError{Detail: apperr.Detail{Message: "cannot read manifest", FilePath: path}, Err: err}
	}

	var doc headerDoc
	md, err := toml.Decode(string(data), &doc)
	if err != nil {
		return "", &apperr.ConfigError{Detail: apperr.Detail{Message: "invalid TOML", FilePath: path}, Err: err}
	}

	if err := CheckType(doc.Config.Type); err != nil {
		return "", withFile(err, path)
	}
	if err := CheckVersion(doc.Config.FormatVersion); err != nil {
		return "", withFile(err, path)
	}
	if err := CheckSections(md, doc.Config.Type); err != nil {
		return "", withFile(err, path)
	}
	return doc.Config.Type, nil
}

// CheckType accepts only "pipeline" and "catalog".
func CheckType(t string) error {
	switch t {
	case TypePipeline, TypeCatalog:
		return nil
	case "":
		return &apperr.ConfigError{Detail: apperr.Detail{
			Message: "config.type is required",
			Field:   "config.type",
			Hint:    `Set config.type to "pipeline" or "catalog".`,
		}}
	}
	return &apperr.ConfigError{Detail: apperr.Detail{
		Message: fmt.Sprintf("Invalid config type %q", t),
		Field:   "config.type",
		Value:   t,
		Hint:    `Set config.type to "pipeline" or "catalog".`,
	}}
}

// CheckVersion parses raw and rejects versions below MinimumFormatVersion.
func CheckVersion(raw string) error {
	if raw == "" {
		return &apperr.ConfigError{Detail: apperr.Detail{
			Message: "config.chartbook_format_version is required",
			Field:   "config.chartbook_format_version",
			Hint:    fmt.Sprintf("Set it to %q.", FormatVersion),
		}}
	}
	v, err := version.NewVersion(raw)
	if err != nil {
		return &apperr.ConfigError{
			Detail: apperr.Detail{
				Message: "Invalid version format",
				Field:   "config.chartbook_format_version",
				Value:   raw,
				Hint:    "Use numeric dot-separated components, e.g. " + FormatVersion + ".",
			},
			Err: err,
		}
	}
	if v.LessThan(minimumVersion) {
		return &apperr.ConfigError{Detail: apperr.Detail{
			Message: fmt.Sprintf("chartbook_format_version %s is older than the minimum supported version %s", raw, MinimumFormatVersion),
			Field:   "config.chartbook_format_version",
			Value:   raw,
			Hint:    "Update the manifest to the current format.",
		}}
	}
	return nil
}

// CheckSections verifies the top-level tables required by the config type.
func CheckSections(md toml.MetaData, configType string) error {
	for _, section := range requiredSections[configType] {
		if !md.IsDefined(section) {
			return &apperr.ConfigError{Detail: apperr.Detail{
				Message: fmt.Sprintf("missing required section [%s] for a %s manifest", section, configType),
				Field:   section,
			}}
		}
	}
	return nil
}

func withFile(err error, path string) error {
	var ce *apperr.ConfigError
	if errors.As(err, &ce) {
		ce.FilePath = path
	}
	return err
}

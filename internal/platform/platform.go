// Package platform resolves manifest path values, which are either a plain
// string or a table of per-platform alternatives, to a single filesystem path.
package platform

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/starford/chartbook/internal/apperr"
)

// Platform is the key used to select an entry of a platform-keyed path.
type Platform string

// Recognized platform keys. Linux and macOS share the Unix key.
const (
	Windows Platform = "Windows"
	Unix    Platform = "Unix"
)

// Current returns the key for the running operating system.
func Current() Platform {
	return FromGOOS(runtime.GOOS)
}

// FromGOOS maps a runtime.GOOS value to a platform key.
func FromGOOS(goos string) Platform {
	if goos == "windows" {
		return Windows
	}
	return Unix
}

// Parse maps a user-supplied system name (as reported by uname or
// platform.system style APIs) to a platform key.
func Parse(name string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "windows":
		return Windows, nil
	case "unix", "linux", "darwin", "macos":
		return Unix, nil
	}
	return "", &apperr.ConfigError{Detail: apperr.Detail{
		Message: fmt.Sprintf("unknown platform %q", name),
		Value:   name,
		Hint:    "Use Windows or Unix.",
	}}
}

// PathValue is a manifest path: a plain string or a platform-keyed table.
type PathValue struct {
	plain      string
	byPlatform map[string]string
}

// Plain returns a PathValue holding a single path for every platform.
func Plain(p string) PathValue {
	return PathValue{plain: p}
}

// Keyed returns a PathValue with per-platform alternatives.
func Keyed(m map[string]string) PathValue {
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return PathValue{byPlatform: cp}
}

// IsKeyed reports whether the value is a platform-keyed table.
func (v PathValue) IsKeyed() bool { return v.byPlatform != nil }

// IsZero reports whether nothing was declared.
func (v PathValue) IsZero() bool { return v.plain == "" && v.byPlatform == nil }

// String implements fmt.Stringer for diagnostics.
func (v PathValue) String() string {
	if !v.IsKeyed() {
		return v.plain
	}
	keys := make([]string, 0, len(v.byPlatform))
	for k := range v.byPlatform {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + v.byPlatform[k]
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// UnmarshalTOML implements toml.Unmarshaler.
func (v *PathValue) UnmarshalTOML(data interface{}) error {
	switch d := data.(type) {
	case string:
		*v = PathValue{plain: d}
		return nil
	case map[string]interface{}:
		m := make(map[string]string, len(d))
		for k, raw := range d {
			s, ok := raw.(string)
			if !ok {
				return fmt.Errorf("platform path entry %q must be a string, got %T", k, raw)
			}
			m[k] = s
		}
		*v = PathValue{byPlatform: m}
		return nil
	default:
		return fmt.Errorf("path must be a string or a table keyed by platform, got %T", data)
	}
}

// Resolve selects the path for p. Plain values are returned verbatim and no
// existence check is made.
func Resolve(v PathValue, p Platform) (string, error) {
	if !v.IsKeyed() {
		return v.plain, nil
	}
	if s, ok := v.byPlatform[string(p)]; ok {
		return s, nil
	}
	return "", &apperr.ConfigError{Detail: apperr.Detail{
		Message: "No valid path found for current platform",
		Value:   v.String(),
		Hint:    fmt.Sprintf("Add a %q entry to the path table.", string(p)),
	}}
}

// Anchor makes path absolute relative to root. An empty path means the value
// was not provided and stays empty.
func Anchor(root, path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("platform: resolve %s: %w", path, err)
	}
	return abs, nil
}

// ResolveAnchored resolves v for p and anchors the result to root. field names
// the manifest key for error reporting.
func ResolveAnchored(root, field string, v PathValue, p Platform) (string, error) {
	raw, err := Resolve(v, p)
	if err != nil {
		if ce, ok := err.(*apperr.ConfigError); ok {
			ce.Field = field
		}
		return "", err
	}
	return Anchor(root, filepath.FromSlash(raw))
}

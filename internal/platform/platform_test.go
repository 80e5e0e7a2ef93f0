package platform

import (
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/chartbook/internal/apperr"
)

func TestResolve_PlainStringVerbatim(t *testing.T) {
	for _, p := range []string{"/path/to/dir", "relative/path", ""} {
		got, err := Resolve(Plain(p), Unix)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestResolve_KeyedSelectsPlatform(t *testing.T) {
	v := Keyed(map[string]string{"Windows": "C:/data", "Unix": "/home/data"})

	got, err := Resolve(v, Unix)
	require.NoError(t, err)
	assert.Equal(t, "/home/data", got)

	got, err = Resolve(v, Windows)
	require.NoError(t, err)
	assert.Equal(t, "C:/data", got)
}

func TestResolve_IgnoresOtherKeys(t *testing.T) {
	v := Keyed(map[string]string{"Unix": "/srv/x", "Plan9": "/n/x", "Windows": "D:/x"})
	got, err := Resolve(v, Unix)
	require.NoError(t, err)
	assert.Equal(t, "/srv/x", got)
}

func TestResolve_MissingKey(t *testing.T) {
	tests := map[string]struct {
		value PathValue
		p     Platform
	}{
		"unix missing":    {value: Keyed(map[string]string{"Windows": "C:/data"}), p: Unix},
		"windows missing": {value: Keyed(map[string]string{"Unix": "/home/data"}), p: Windows},
		"empty table":     {value: Keyed(map[string]string{}), p: Unix},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Resolve(tc.value, tc.p)
			require.Error(t, err)
			var ce *apperr.ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Contains(t, ce.Error(), "No valid path found for current platform")
		})
	}
}

func TestFromGOOS(t *testing.T) {
	assert.Equal(t, Windows, FromGOOS("windows"))
	assert.Equal(t, Unix, FromGOOS("linux"))
	assert.Equal(t, Unix, FromGOOS("darwin"))
	assert.Equal(t, Unix, FromGOOS("freebsd"))
}

func TestParse(t *testing.T) {
	for in, want := range map[string]Platform{
		"Windows": Windows,
		"windows": Windows,
		"Linux":   Unix,
		"Darwin":  Unix,
		"Unix":    Unix,
	} {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := Parse("BeOS")
	require.Error(t, err)
}

func TestUnmarshalTOML(t *testing.T) {
	var doc struct {
		A PathValue `toml:"a"`
		B PathValue `toml:"b"`
	}
	_, err := toml.Decode(`
a = "data/file.parquet"
b = { Unix = "/u/data", Windows = 'C:\data' }
`, &doc)
	require.NoError(t, err)

	assert.False(t, doc.A.IsKeyed())
	assert.Equal(t, "data/file.parquet", doc.A.String())
	assert.True(t, doc.B.IsKeyed())

	got, err := Resolve(doc.B, Windows)
	require.NoError(t, err)
	assert.Equal(t, `C:\data`, got)
}

func TestUnmarshalTOML_RejectsNonString(t *testing.T) {
	var doc struct {
		A PathValue `toml:"a"`
	}
	_, err := toml.Decode(`a = { Unix = 3 }`, &doc)
	require.Error(t, err)

	_, err = toml.Decode(`a = 7`, &doc)
	require.Error(t, err)
}

func TestAnchor(t *testing.T) {
	root := t.TempDir()

	got, err := Anchor(root, "data/x.parquet")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "data", "x.parquet"), got)

	abs := filepath.Join(root, "elsewhere")
	got, err = Anchor(root, abs)
	require.NoError(t, err)
	assert.Equal(t, abs, got)

	got, err = Anchor(root, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResolveAnchored_SetsField(t *testing.T) {
	_, err := ResolveAnchored("/tmp", "dataframes.df.path_to_parquet_data",
		Keyed(map[string]string{"Windows": "C:/x"}), Unix)
	var ce *apperr.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "dataframes.df.path_to_parquet_data", ce.Field)
}

package schema_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/chartbook/internal/apperr"
	"github.com/starford/chartbook/internal/schema"
	"github.com/starford/chartbook/internal/testutil"
)

func writeRaw(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, schema.FileName)
	testutil.WriteFile(t, path, content)
	return path
}

func requireConfigError(t *testing.T, err error) *apperr.ConfigError {
	t.Helper()
	require.Error(t, err)
	var ce *apperr.ConfigError
	require.ErrorAs(t, err, &ce)
	return ce
}

func TestValidate_PipelineProject(t *testing.T) {
	dir := testutil.PipelineProject(t, t.TempDir(), testutil.PipelineOptions{Dataframes: 1, ChartsPerDataframe: 1})
	typ, err := schema.Validate(filepath.Join(dir, schema.FileName))
	require.NoError(t, err)
	assert.Equal(t, schema.TypePipeline, typ)
}

func TestValidate_CatalogProject(t *testing.T) {
	dir := testutil.CatalogProject(t, t.TempDir(), []string{"pipeline_a"}, false)
	typ, err := schema.Validate(filepath.Join(dir, schema.FileName))
	require.NoError(t, err)
	assert.Equal(t, schema.TypeCatalog, typ)
}

func TestValidate_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), schema.FileName)
	_, err := schema.Validate(path)
	ce := requireConfigError(t, err)
	assert.Contains(t, ce.Error(), "No chartbook.toml found at "+path)
}

func TestValidate_InvalidTOML(t *testing.T) {
	_, err := schema.Validate(writeRaw(t, "this is not valid toml {{{\n"))
	ce := requireConfigError(t, err)
	assert.Contains(t, ce.Error(), "invalid TOML")
	assert.NotNil(t, ce.Unwrap())
}

func TestValidate_InvalidType(t *testing.T) {
	path := writeRaw(t, `
[config]
type = "invalid_type"
chartbook_format_version = "0.1.0"
`)
	_, err := schema.Validate(path)
	ce := requireConfigError(t, err)
	assert.Equal(t, "config.type", ce.Field)
	assert.Equal(t, "invalid_type", ce.Value)
	assert.Equal(t, path, ce.FilePath)
}

func TestValidate_MissingType(t *testing.T) {
	_, err := schema.Validate(writeRaw(t, "[config]\nchartbook_format_version = \"0.1.0\"\n"))
	ce := requireConfigError(t, err)
	assert.Contains(t, ce.Error(), "config.type is required")
}

func TestValidate_InvalidVersionFormat(t *testing.T) {
	_, err := schema.Validate(writeRaw(t, `
[config]
type = "pipeline"
chartbook_format_version = "not-a-version"
`))
	ce := requireConfigError(t, err)
	assert.Contains(t, ce.Error(), "Invalid version format")
}

func TestValidate_OldVersion(t *testing.T) {
	_, err := schema.Validate(writeRaw(t, `
[config]
type = "pipeline"
chartbook_format_version = "0.0.2"
`))
	ce := requireConfigError(t, err)
	assert.Contains(t, ce.Error(), "older than the minimum supported version")
	assert.Equal(t, "0.0.2", ce.Value)
}

func TestValidate_MissingVersion(t *testing.T) {
	_, err := schema.Validate(writeRaw(t, "[config]\ntype = \"catalog\"\n"))
	ce := requireConfigError(t, err)
	assert.Equal(t, "config.chartbook_format_version", ce.Field)
}

func TestValidate_MissingSections(t *testing.T) {
	tests := map[string]struct {
		content string
		section string
	}{
		"pipeline without charts": {
			content: `
[config]
type = "pipeline"
chartbook_format_version = "0.1.0"
[pipeline]
id = "p"
[dataframes.df]
dataframe_name = "x"
`,
			section: "charts",
		},
		"catalog without pipelines": {
			content: `
[config]
type = "catalog"
chartbook_format_version = "0.1.0"
[site]
title = "Catalog"
`,
			section: "pipelines",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := schema.Validate(writeRaw(t, tc.content))
			ce := requireConfigError(t, err)
			assert.Equal(t, tc.section, ce.Field)
		})
	}
}

func TestCheckVersion(t *testing.T) {
	for _, ok := range []string{"0.1.0", "0.1", "1.0.0", "0.10.3"} {
		assert.NoError(t, schema.CheckVersion(ok), ok)
	}
	for _, bad := range []string{"0.0.9", "0.0.2", "abc", "1..2"} {
		assert.Error(t, schema.CheckVersion(bad), bad)
	}
}

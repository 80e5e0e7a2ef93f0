package manifest_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/chartbook/internal/apperr"
	"github.com/starford/chartbook/internal/manifest"
	"github.com/starford/chartbook/internal/platform"
	"github.com/starford/chartbook/internal/schema"
	"github.com/starford/chartbook/internal/testutil"
	"github.com/starford/chartbook/internal/validation"
)

const header = `
[config]
type = "pipeline"
chartbook_format_version = "0.1.0"

[pipeline]
id = "rates"
pipeline_name = "Rates"
`

func rawPipeline(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, schema.FileName), header+body)
	return dir
}

func loadPipeline(t *testing.T, dir string, opts ...manifest.Option) error {
	t.Helper()
	_, err := manifest.NewLoader(opts...).LoadPipeline(context.Background(), dir)
	return err
}

func TestLoadPipeline(t *testing.T) {
	dir := testutil.PipelineProject(t, t.TempDir(), testutil.PipelineOptions{Dataframes: 1, ChartsPerDataframe: 1})

	m, err := manifest.NewLoader().LoadPipeline(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, schema.TypePipeline, m.Config.Type)
	assert.False(t, m.IsCatalog())
	assert.Equal(t, dir, m.ProjectDir)
	assert.Equal(t, filepath.Join(dir, schema.FileName), m.ManifestPath)
	assert.Equal(t, "test_pipeline", m.Pipeline.ID)
	assert.Equal(t, filepath.Join(dir, "README.md"), m.Pipeline.ReadmeFullPath)

	df := m.Dataframes["dataframe_0"]
	require.NotNil(t, df)
	assert.Equal(t, "dataframe_0", df.ID)
	assert.Equal(t, "test_pipeline", df.PipelineID)
	assert.Equal(t, []string{"chart_0_0"}, df.LinkedCharts)
	assert.Equal(t, []string{"Test Tag", "Uppercase Tag"}, df.TopicTags)
	assert.Equal(t, filepath.Join(dir, "_data", "test_pipeline", "dataframe_0.parquet"), df.DataframePath)
	assert.Equal(t, filepath.Join(dir, "docs_src", "dataframes", "dataframe_0.md"), df.DocsFullPath)
	assert.Empty(t, df.ExcelFullPath)

	chart := m.Charts["chart_0_0"]
	require.NotNil(t, chart)
	assert.Equal(t, "dataframe_0", chart.DataframeID)
	assert.Equal(t, filepath.Join(dir, "_output", "charts", "chart_0_0.html"), chart.HTMLFullPath)
	assert.Equal(t, []string{"chart tag"}, chart.TopicTags)

	assert.True(t, strings.HasPrefix(m.WebpageURL, "file://"))
	assert.True(t, strings.HasSuffix(m.WebpageURL, "/docs/index.html"))
	assert.True(t, m.HasSourceModified())

	require.NotNil(t, m.SiteConfig)
	assert.Equal(t, "Test Pipeline", m.SiteConfig.Title())
	assert.Equal(t, validation.ThemePipeline, m.SiteConfig.Theme())
}

func TestLoadPipeline_Idempotent(t *testing.T) {
	dir := testutil.PipelineProject(t, t.TempDir(), testutil.PipelineOptions{Dataframes: 3, ChartsPerDataframe: 2, Notes: true})
	loader := manifest.NewLoader()

	first, err := loader.LoadPipeline(context.Background(), dir)
	require.NoError(t, err)
	second, err := loader.LoadPipeline(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadPipeline_DottedKeysKeepDeclarationOrder(t *testing.T) {
	dir := rawPipeline(t, `
[dataframes]
volumes.dataframe_name = "Volumes"
prices.dataframe_name = "Prices"

[charts]
zeta.chart_name = "Zeta"
zeta.dataframe_id = "prices"
alpha.dataframe_id = "prices"
mid = { chart_name = "Mid", dataframe_id = "volumes" }
beta.dataframe_id = "prices"
`)
	m, err := manifest.NewLoader().LoadPipeline(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"volumes", "prices"}, m.DataframeIDs)
	assert.Equal(t, []string{"zeta", "alpha", "mid", "beta"}, m.ChartIDs)
	assert.Equal(t, []string{"zeta", "alpha", "beta"}, m.Dataframes["prices"].LinkedCharts)
	assert.Equal(t, []string{"mid"}, m.Dataframes["volumes"].LinkedCharts)
	assert.Equal(t, "Zeta", m.Charts["zeta"].Name)
}

func TestLoadPipeline_LinkedChartsKeepDeclarationOrder(t *testing.T) {
	dir := rawPipeline(t, `
[dataframes.prices]
dataframe_name = "Prices"

[dataframes.volumes]
dataframe_name = "Volumes"

[charts.zeta]
chart_name = "Zeta"
dataframe_id = "prices"

[charts.alpha]
chart_name = "Alpha"
dataframe_id = "volumes"

[charts.mid]
chart_name = "Mid"
dataframe_id = "prices"
`)
	m, err := manifest.NewLoader().LoadPipeline(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"prices", "volumes"}, m.DataframeIDs)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, m.ChartIDs)
	assert.Equal(t, []string{"zeta", "mid"}, m.Dataframes["prices"].LinkedCharts)
	assert.Equal(t, []string{"alpha"}, m.Dataframes["volumes"].LinkedCharts)
}

func TestLoadPipeline_DanglingDataframeReference(t *testing.T) {
	dir := rawPipeline(t, `
[dataframes.dataframe_0]
dataframe_name = "Dataframe 0"

[charts.chart_0_0]
chart_name = "Chart"
dataframe_id = "missing_df"
`)
	m, err := manifest.NewLoader().LoadPipeline(context.Background(), dir)
	require.Error(t, err)
	assert.Nil(t, m)

	var ce *apperr.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Error(), "missing_df")
	assert.Equal(t, filepath.Join(dir, schema.FileName), ce.FilePath)
}

func TestLoadPipeline_Notes(t *testing.T) {
	dir := testutil.PipelineProject(t, t.TempDir(), testutil.PipelineOptions{Dataframes: 1, ChartsPerDataframe: 1, Notes: true})
	m, err := manifest.NewLoader().LoadPipeline(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, []string{"note1"}, m.NoteIDs)
	assert.Equal(t, filepath.Join(dir, "docs_src", "note1.md"), m.Notes["note1"].FullPath)
}

func TestLoadPipeline_SourceFreshness(t *testing.T) {
	dir := testutil.PipelineProject(t, t.TempDir(), testutil.PipelineOptions{Dataframes: 1, ChartsPerDataframe: 1})
	stamp := time.Date(2024, 3, 15, 9, 30, 0, 0, time.Local)
	testutil.WriteFile(t, filepath.Join(dir, "src", "nested", "model.py"), "x = 1\n")
	require.NoError(t, os.Chtimes(filepath.Join(dir, "src", "dummy.py"), stamp.Add(-time.Hour), stamp.Add(-time.Hour)))
	require.NoError(t, os.Chtimes(filepath.Join(dir, "src", "nested", "model.py"), stamp, stamp))

	m, err := manifest.NewLoader().LoadPipeline(context.Background(), dir)
	require.NoError(t, err)
	assert.True(t, m.SourceLastModified.Equal(stamp))
	assert.Equal(t, "2024-03-15 09:30:00", m.SourceLastModifiedString())
}

func TestLoadPipeline_NoSourceDir(t *testing.T) {
	dir := testutil.PipelineProject(t, t.TempDir(), testutil.PipelineOptions{Dataframes: 1, ChartsPerDataframe: 1})
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "src")))

	m, err := manifest.NewLoader().LoadPipeline(context.Background(), dir)
	require.NoError(t, err)
	assert.False(t, m.HasSourceModified())
	assert.Empty(t, m.SourceLastModifiedString())
}

func TestLoadPipeline_PlatformKeyedPaths(t *testing.T) {
	dir := rawPipeline(t, `
[dataframes.df]
dataframe_name = "Df"
path_to_parquet_data = { Windows = 'data\df.parquet', Unix = "data/df.parquet" }

[charts]
`)
	tests := map[string]struct {
		platform platform.Platform
		want     string
	}{
		"unix":    {platform: platform.Unix, want: filepath.Join(dir, "data", "df.parquet")},
		"windows": {platform: platform.Windows, want: filepath.Join(dir, filepath.FromSlash(`data\df.parquet`))},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			m, err := manifest.NewLoader(manifest.WithPlatform(tc.platform)).LoadPipeline(context.Background(), dir)
			require.NoError(t, err)
			assert.Equal(t, tc.want, m.Dataframes["df"].DataframePath)
		})
	}
}

func TestLoadPipeline_PlatformKeyMissing(t *testing.T) {
	dir := rawPipeline(t, `
[dataframes.df]
dataframe_name = "Df"
path_to_parquet_data = { Windows = 'data\df.parquet' }

[charts]
`)
	err := loadPipeline(t, dir, manifest.WithPlatform(platform.Unix))
	var ce *apperr.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Error(), "No valid path found for current platform")
	assert.Equal(t, "dataframes.df.path_to_parquet_data", ce.Field)
}

func TestLoadPipeline_TitleInjection(t *testing.T) {
	dir := rawPipeline(t, `
[site]
title = 'Test"; import os'

[dataframes]
[charts]
`)
	err := loadPipeline(t, dir)
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "site.title", ve.Field)
	assert.Contains(t, ve.Error(), "invalid characters")
	assert.Equal(t, filepath.Join(dir, schema.FileName), ve.FilePath)
}

func TestLoadPipeline_DefaultTitle(t *testing.T) {
	dir := rawPipeline(t, "\n[dataframes]\n[charts]\n")
	m, err := manifest.NewLoader().LoadPipeline(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, validation.DefaultSiteTitle, m.SiteConfig.Title())
	assert.Empty(t, m.DataframeIDs)
	assert.Equal(t, []string{}, m.Pipeline.Contributors)
}

func TestLoadPipeline_OldFormatVersion(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, schema.FileName), `
[config]
type = "pipeline"
chartbook_format_version = "0.0.2"

[pipeline]
id = "p"
[dataframes]
[charts]
`)
	err := loadPipeline(t, dir)
	var ce *apperr.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "config.chartbook_format_version", ce.Field)
}

func TestLoadPipeline_MissingManifest(t *testing.T) {
	err := loadPipeline(t, t.TempDir())
	var ce *apperr.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Error(), "No chartbook.toml found")
}

func TestLoadPipeline_RejectsCatalog(t *testing.T) {
	dir := testutil.CatalogProject(t, t.TempDir(), []string{"pipeline_a"}, false)
	err := loadPipeline(t, dir)
	var ce *apperr.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "config.type", ce.Field)
}

func TestLoadPipeline_CanceledContext(t *testing.T) {
	dir := testutil.PipelineProject(t, t.TempDir(), testutil.PipelineOptions{Dataframes: 1, ChartsPerDataframe: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := manifest.NewLoader().LoadPipeline(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad_DispatchesOnType(t *testing.T) {
	root := t.TempDir()
	pipelineDir := testutil.PipelineProject(t, filepath.Join(root, "p"), testutil.PipelineOptions{Dataframes: 1, ChartsPerDataframe: 1})
	catalogDir := testutil.CatalogProject(t, filepath.Join(root, "c"), []string{"pipeline_a"}, false)
	loader := manifest.NewLoader()

	m, err := loader.Load(context.Background(), pipelineDir)
	require.NoError(t, err)
	assert.False(t, m.IsCatalog())

	m, err = loader.Load(context.Background(), catalogDir)
	require.NoError(t, err)
	assert.True(t, m.IsCatalog())
}

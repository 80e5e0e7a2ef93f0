// Package models defines the resolved manifest types produced by the loader.
package models

import (
	"time"

	"github.com/starford/chartbook/internal/platform"
	"github.com/starford/chartbook/internal/schema"
	"github.com/starford/chartbook/internal/validation"
)

// Manifest is a fully parsed, validated and path-resolved chartbook.toml.
// Pipeline manifests fill Pipeline, Dataframes, Charts and Notes; catalog
// manifests fill Pipelines.
type Manifest struct {
	Config     ConfigSection              `toml:"config" json:"config"`
	Site       SiteSection                `toml:"site" json:"site"`
	Pipeline   *PipelineInfo              `toml:"pipeline" json:"pipeline,omitempty"`
	Dataframes map[string]*DataframeEntry `toml:"dataframes" json:"dataframes,omitempty"`
	Charts     map[string]*ChartEntry     `toml:"charts" json:"charts,omitempty"`
	Notes      map[string]*NoteEntry      `toml:"notes" json:"notes,omitempty"`
	Pipelines  map[string]*PipelineRef    `toml:"pipelines" json:"pipelines,omitempty"`

	// Declaration order of the keyed tables above.
	DataframeIDs []string `toml:"-" json:"dataframe_ids,omitempty"`
	ChartIDs     []string `toml:"-" json:"chart_ids,omitempty"`
	NoteIDs      []string `toml:"-" json:"note_ids,omitempty"`
	PipelineIDs  []string `toml:"-" json:"pipeline_ids,omitempty"`

	ProjectDir   string                 `toml:"-" json:"project_dir"`
	ManifestPath string                 `toml:"-" json:"manifest_path"`
	SiteConfig   *validation.SiteConfig `toml:"-" json:"site_config"`
	WebpageURL   string                 `toml:"-" json:"webpage_URL"`

	// SourceLastModified is the newest modification time under the
	// pipeline's src directory; zero when the directory does not exist.
	SourceLastModified time.Time `toml:"-" json:"source_last_modified_date,omitempty"`
}

// IsCatalog reports whether the manifest aggregates other pipelines.
func (m *Manifest) IsCatalog() bool { return m.Config.Type == schema.TypeCatalog }

// HasSourceModified reports whether freshness information was found.
func (m *Manifest) HasSourceModified() bool { return !m.SourceLastModified.IsZero() }

// SourceLastModifiedString renders the freshness timestamp for display, or
// an empty string when none is known.
func (m *Manifest) SourceLastModifiedString() string {
	if !m.HasSourceModified() {
		return ""
	}
	return m.SourceLastModified.Format("2006-01-02 15:04:05")
}

// ConfigSection is the [config] table.
type ConfigSection struct {
	Type          string `toml:"type" json:"type"`
	FormatVersion string `toml:"chartbook_format_version" json:"chartbook_format_version"`
}

// SiteSection is the raw [site] table. Text fields are untrusted until
// projected into Manifest.SiteConfig.
type SiteSection struct {
	Title       string             `toml:"title" json:"title"`
	Author      string             `toml:"author" json:"author"`
	Copyright   string             `toml:"copyright" json:"copyright"`
	LogoPath    platform.PathValue `toml:"logo_path" json:"-"`
	FaviconPath platform.PathValue `toml:"favicon_path" json:"-"`

	LogoFullPath    string `toml:"-" json:"logo_path,omitempty"`
	FaviconFullPath string `toml:"-" json:"favicon_path,omitempty"`
}

// PipelineInfo is the [pipeline] table.
type PipelineInfo struct {
	ID                     string             `toml:"id" json:"id"`
	Name                   string             `toml:"pipeline_name" json:"pipeline_name"`
	Description            string             `toml:"pipeline_description" json:"pipeline_description"`
	LeadDeveloper          string             `toml:"lead_pipeline_developer" json:"lead_pipeline_developer"`
	Contributors           []string           `toml:"contributors" json:"contributors"`
	SoftwareModulesCommand string             `toml:"software_modules_command" json:"software_modules_command"`
	RunsOn                 string             `toml:"runs_on_grid_or_windows_or_other" json:"runs_on_grid_or_windows_or_other"`
	GitRepoURL             string             `toml:"git_repo_URL" json:"git_repo_URL"`
	ReadmePath             platform.PathValue `toml:"README_file_path" json:"-"`

	ReadmeFullPath string `toml:"-" json:"README_file_path,omitempty"`
}

// DataframeEntry is one entry of [dataframes].
type DataframeEntry struct {
	Name          string             `toml:"dataframe_name" json:"dataframe_name"`
	Description   string             `toml:"short_description_df" json:"short_description_df"`
	ParquetPath   platform.PathValue `toml:"path_to_parquet_data" json:"-"`
	ExcelPath     platform.PathValue `toml:"path_to_excel_data" json:"-"`
	DocsPath      platform.PathValue `toml:"dataframe_docs_path" json:"-"`
	DateColumn    string             `toml:"date_col" json:"date_col"`
	TopicTags     []string           `toml:"topic_tags" json:"topic_tags"`
	DataSources   []string           `toml:"data_sources" json:"data_sources"`
	DataProviders []string           `toml:"data_providers" json:"data_providers"`

	ID            string   `toml:"-" json:"id"`
	PipelineID    string   `toml:"-" json:"pipeline_id"`
	DataframePath string   `toml:"-" json:"dataframe_path"`
	ExcelFullPath string   `toml:"-" json:"path_to_excel_data,omitempty"`
	DocsFullPath  string   `toml:"-" json:"dataframe_docs_path,omitempty"`
	LinkedCharts  []string `toml:"-" json:"linked_charts"`
}

// ChartEntry is one entry of [charts].
type ChartEntry struct {
	Name        string             `toml:"chart_name" json:"chart_name"`
	Description string             `toml:"short_description_chart" json:"short_description_chart"`
	DataframeID string             `toml:"dataframe_id" json:"dataframe_id"`
	HTMLPath    platform.PathValue `toml:"path_to_html_chart" json:"-"`
	ExcelPath   platform.PathValue `toml:"path_to_excel_chart" json:"-"`
	DocsPath    platform.PathValue `toml:"chart_docs_path" json:"-"`
	TopicTags   []string           `toml:"topic_tags" json:"topic_tags"`

	ID            string `toml:"-" json:"id"`
	PipelineID    string `toml:"-" json:"pipeline_id"`
	HTMLFullPath  string `toml:"-" json:"path_to_html_chart"`
	ExcelFullPath string `toml:"-" json:"path_to_excel_chart,omitempty"`
	DocsFullPath  string `toml:"-" json:"chart_docs_path,omitempty"`
}

// NoteEntry is one entry of [notes].
type NoteEntry struct {
	MarkdownPath platform.PathValue `toml:"path_to_markdown_file" json:"-"`

	ID       string `toml:"-" json:"id"`
	FullPath string `toml:"-" json:"full_path"`
}

// PipelineRef is one entry of a catalog's [pipelines] table. Manifest holds
// the child pipeline once the catalog is composed; children never point back
// at their catalog.
type PipelineRef struct {
	Path platform.PathValue `toml:"-" json:"-"`

	Dir      string    `toml:"-" json:"path_to_pipeline"`
	Manifest *Manifest `toml:"-" json:"manifest,omitempty"`
}

// UnmarshalTOML accepts either a bare path value or a table with a
// path_to_pipeline key.
func (r *PipelineRef) UnmarshalTOML(data interface{}) error {
	if m, ok := data.(map[string]interface{}); ok {
		if loc, ok := m["path_to_pipeline"]; ok {
			return r.Path.UnmarshalTOML(loc)
		}
	}
	return r.Path.UnmarshalTOML(data)
}

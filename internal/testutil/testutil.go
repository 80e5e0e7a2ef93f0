// Package testutil builds pipeline and catalog project trees for tests.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"

	"github.com/starford/chartbook/internal/schema"
)

// PipelineOptions controls the generated pipeline project.
type PipelineOptions struct {
	ID                 string
	Name               string
	Dataframes         int
	ChartsPerDataframe int
	Notes              bool
}

func (o *PipelineOptions) defaults() {
	if o.ID == "" {
		o.ID = "test_pipeline"
	}
	if o.Name == "" {
		o.Name = "Test Pipeline"
	}
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// WriteManifest encodes doc as TOML into dir/chartbook.toml.
func WriteManifest(t *testing.T, dir string, doc map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		t.Fatalf("encode manifest: %v", err)
	}
	WriteFile(t, filepath.Join(dir, schema.FileName), buf.String())
}

// Site returns a valid [site] table.
func Site(title string) map[string]any {
	return map[string]any{
		"title":        title,
		"author":       "Test Author",
		"copyright":    "2024",
		"logo_path":    "",
		"favicon_path": "",
	}
}

// PipelineProject creates a complete pipeline project under dir:
//
//	dir/chartbook.toml
//	dir/src/dummy.py
//	dir/docs_src/{index.md, dataframes/*.md, charts/*.md, note1.md}
//	dir/_data/<id>/*.parquet
//	dir/_output/charts/*.html
func PipelineProject(t *testing.T, dir string, opts PipelineOptions) string {
	t.Helper()
	opts.defaults()

	WriteFile(t, filepath.Join(dir, "src", "dummy.py"), "# Dummy source file\n")
	WriteFile(t, filepath.Join(dir, "docs_src", "index.md"), "# Documentation\n")
	WriteFile(t, filepath.Join(dir, "README.md"), fmt.Sprintf("# %s\n\nThis is a test pipeline.\n", opts.Name))

	dataframes := map[string]any{}
	charts := map[string]any{}
	for i := 0; i < opts.Dataframes; i++ {
		dfID := fmt.Sprintf("dataframe_%d", i)
		parquet := fmt.Sprintf("_data/%s/%s.parquet", opts.ID, dfID)
		docs := fmt.Sprintf("docs_src/dataframes/%s.md", dfID)
		WriteFile(t, filepath.Join(dir, parquet), "PAR1")
		WriteFile(t, filepath.Join(dir, docs), fmt.Sprintf("# Dataframe %d\n\nDocumentation for dataframe %d.\n", i, i))

		dataframes[dfID] = map[string]any{
			"dataframe_name":       fmt.Sprintf("Dataframe %d", i),
			"short_description_df": fmt.Sprintf("Description for dataframe %d", i),
			"path_to_parquet_data": parquet,
			"path_to_excel_data":   "",
			"dataframe_docs_path":  docs,
			"date_col":             "date",
			"topic_tags":           []string{"test tag", "UPPERCASE TAG"},
			"data_sources":         []string{"Test Source"},
			"data_providers":       []string{"Test Provider"},
		}

		for j := 0; j < opts.ChartsPerDataframe; j++ {
			chartID := fmt.Sprintf("chart_%d_%d", i, j)
			html := fmt.Sprintf("_output/charts/%s.html", chartID)
			chartDocs := fmt.Sprintf("docs_src/charts/%s.md", chartID)
			WriteFile(t, filepath.Join(dir, html), fmt.Sprintf("<html><body>%s</body></html>\n", chartID))
			WriteFile(t, filepath.Join(dir, chartDocs), fmt.Sprintf("# Chart %d-%d\n\nDocumentation for chart %d-%d.\n", i, j, i, j))

			charts[chartID] = map[string]any{
				"chart_name":              fmt.Sprintf("Chart %d-%d", i, j),
				"short_description_chart": fmt.Sprintf("Description for chart %d-%d", i, j),
				"dataframe_id":            dfID,
				"path_to_html_chart":      html,
				"path_to_excel_chart":     "",
				"chart_docs_path":         chartDocs,
				"topic_tags":              []string{"chart tag"},
			}
		}
	}

	doc := map[string]any{
		"config": map[string]any{
			"type":                     schema.TypePipeline,
			"chartbook_format_version": schema.FormatVersion,
		},
		"site": Site(opts.Name),
		"pipeline": map[string]any{
			"id":                               opts.ID,
			"pipeline_name":                    opts.Name,
			"pipeline_description":             "Description for " + opts.Name,
			"lead_pipeline_developer":          "Test Developer",
			"contributors":                     []string{},
			"software_modules_command":         "",
			"runs_on_grid_or_windows_or_other": "",
			"git_repo_URL":                     "",
			"README_file_path":                 "README.md",
		},
		"dataframes": dataframes,
		"charts":     charts,
	}

	if opts.Notes {
		WriteFile(t, filepath.Join(dir, "docs_src", "note1.md"), "# Note 1\nSome content.\n")
		doc["notes"] = map[string]any{
			"note1": map[string]any{"path_to_markdown_file": "docs_src/note1.md"},
		}
	}

	WriteManifest(t, dir, doc)
	return dir
}

// CatalogProject creates a catalog under dir with one pipeline project per id
// in dir/pipelines/<id>. With platformPaths set, pipeline locations are
// written as Windows/Unix tables.
func CatalogProject(t *testing.T, dir string, ids []string, platformPaths bool) string {
	t.Helper()
	pipelines := map[string]any{}
	for _, id := range ids {
		PipelineProject(t, filepath.Join(dir, "pipelines", id), PipelineOptions{
			ID:                 id,
			Name:               "Pipeline " + strings.ToUpper(strings.ReplaceAll(id, "_", " ")),
			Dataframes:         1,
			ChartsPerDataframe: 1,
		})
		var loc any = "pipelines/" + id
		if platformPaths {
			loc = map[string]any{
				"Unix":    "pipelines/" + id,
				"Windows": `pipelines\` + id,
			}
		}
		pipelines[id] = map[string]any{"path_to_pipeline": loc}
	}

	WriteManifest(t, dir, map[string]any{
		"config": map[string]any{
			"type":                     schema.TypeCatalog,
			"chartbook_format_version": schema.FormatVersion,
		},
		"site":      Site("Test Catalog"),
		"pipelines": pipelines,
	})
	return dir
}

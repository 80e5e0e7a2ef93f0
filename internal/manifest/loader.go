// Package manifest loads chartbook.toml files into resolved Manifest values.
// A pipeline manifest is parsed, its paths anchored to the project directory,
// its charts linked to dataframes and its site section validated. A catalog
// manifest additionally loads every pipeline it references.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/starford/chartbook/internal/apperr"
	"github.com/starford/chartbook/internal/linker"
	"github.com/starford/chartbook/internal/models"
	"github.com/starford/chartbook/internal/platform"
	"github.com/starford/chartbook/internal/schema"
	"github.com/starford/chartbook/internal/storage"
	"github.com/starford/chartbook/internal/validation"
)

// SourceDir is the pipeline directory scanned for the freshness timestamp.
const SourceDir = "src"

// Loader reads manifests. A Loader holds no state between calls and is safe
// for concurrent use.
type Loader struct {
	platform    platform.Platform
	logger      *slog.Logger
	concurrency int
}

// Option configures a Loader.
type Option func(*Loader)

// WithPlatform selects the key used for platform-keyed paths. The default is
// the running operating system.
func WithPlatform(p platform.Platform) Option {
	return func(l *Loader) {
		l.platform = p
	}
}

// WithLogger sets the logger for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithConcurrency bounds how many child pipelines a catalog load reads at
// once. Values below 1 mean sequential.
func WithConcurrency(n int) Option {
	return func(l *Loader) {
		l.concurrency = max(n, 1)
	}
}

// NewLoader returns a Loader for the current platform that loads catalog
// children one at a time.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		platform:    platform.Current(),
		logger:      slog.New(slog.DiscardHandler),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Platform returns the key used for platform-keyed paths.
func (l *Loader) Platform() platform.Platform { return l.platform }

// Load reads the manifest in dir and dispatches on its config type.
func (l *Loader) Load(ctx context.Context, dir string) (*models.Manifest, error) {
	root, path, typ, err := l.validate(dir)
	if err != nil {
		return nil, err
	}
	if typ == schema.TypeCatalog {
		return l.catalog(ctx, root, path)
	}
	return l.pipeline(ctx, root, path)
}

// LoadPipeline reads the pipeline manifest in dir. A catalog manifest is a
// ConfigError.
func (l *Loader) LoadPipeline(ctx context.Context, dir string) (*models.Manifest, error) {
	root, path, typ, err := l.validate(dir)
	if err != nil {
		return nil, err
	}
	if typ != schema.TypePipeline {
		return nil, &apperr.ConfigError{Detail: apperr.Detail{
			Message:  "expected a pipeline manifest",
			FilePath: path,
			Field:    "config.type",
			Value:    typ,
			Hint:     "Catalogs may only reference pipeline projects.",
		}}
	}
	return l.pipeline(ctx, root, path)
}

func (l *Loader) validate(dir string) (root, path, typ string, err error) {
	root, err = filepath.Abs(dir)
	if err != nil {
		return "", "", "", fmt.Errorf("manifest: resolve %s: %w", dir, err)
	}
	path = filepath.Join(root, schema.FileName)
	typ, err = schema.Validate(path)
	if err != nil {
		return "", "", "", err
	}
	return root, path, typ, nil
}

// decode reads the manifest file and decodes it into a Manifest with
// ProjectDir, ManifestPath and the declaration order of keyed tables set.
func (l *Loader) decode(store storage.Provider, path string) (*models.Manifest, toml.MetaData, error) {
	data, err := store.Read(schema.FileName)
	if err != nil {
		return nil, toml.MetaData{}, &apperr.ConfigError{
			Detail: apperr.Detail{Message: "cannot read manifest", FilePath: path},
			Err:    err,
		}
	}

	m := &models.Manifest{}
	md, err := toml.Decode(string(data), m)
	if err != nil {
		return nil, md, &apperr.ConfigError{
			Detail: apperr.Detail{Message: "cannot decode manifest", FilePath: path},
			Err:    err,
		}
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		l.logger.Debug("Manifest has undecoded keys",
			slog.String("path", path),
			slog.String("keys", strings.Join(keys, ", ")))
	}

	m.ProjectDir = store.Root()
	m.ManifestPath = path
	m.DataframeIDs = declared(md, "dataframes", m.Dataframes)
	m.ChartIDs = declared(md, "charts", m.Charts)
	m.NoteIDs = declared(md, "notes", m.Notes)
	m.PipelineIDs = declared(md, "pipelines", m.Pipelines)
	return m, md, nil
}

func (l *Loader) pipeline(ctx context.Context, root, path string) (*models.Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.logger.Debug("Loading pipeline manifest", slog.String("path", path))

	store, err := storage.NewFS(root)
	if err != nil {
		return nil, err
	}
	m, md, err := l.decode(store, path)
	if err != nil {
		return nil, err
	}
	if m.Pipeline == nil {
		m.Pipeline = &models.PipelineInfo{}
	}
	if m.Pipeline.Contributors == nil {
		m.Pipeline.Contributors = []string{}
	}

	if err := l.resolvePipelinePaths(m); err != nil {
		return nil, withFile(err, path)
	}
	if err := link(m); err != nil {
		return nil, withFile(err, path)
	}

	latest, ok, err := store.LatestModTime(SourceDir)
	switch {
	case err != nil:
		l.logger.Debug("Source freshness unavailable",
			slog.String("dir", filepath.Join(root, SourceDir)),
			slog.String("error", err.Error()))
	case ok:
		m.SourceLastModified = latest
	}
	m.WebpageURL = webpageURL(root)

	if err := l.siteConfig(m, md, validation.RolePipeline); err != nil {
		return nil, withFile(err, path)
	}

	l.logger.Debug("Loaded pipeline manifest",
		slog.String("pipeline_id", m.Pipeline.ID),
		slog.Int("dataframes", len(m.DataframeIDs)),
		slog.Int("charts", len(m.ChartIDs)))
	return m, nil
}

// resolvePipelinePaths resolves every path-valued field for the loader's
// platform and anchors it to the project directory.
func (l *Loader) resolvePipelinePaths(m *models.Manifest) error {
	r := &resolver{root: m.ProjectDir, platform: l.platform}
	r.site(&m.Site)

	pid := m.Pipeline.ID
	m.Pipeline.ReadmeFullPath = r.path("pipeline.README_file_path", m.Pipeline.ReadmePath)

	for _, id := range m.DataframeIDs {
		df := m.Dataframes[id]
		field := "dataframes." + id + "."
		df.ID = id
		df.PipelineID = pid
		df.DataframePath = r.path(field+"path_to_parquet_data", df.ParquetPath)
		df.ExcelFullPath = r.path(field+"path_to_excel_data", df.ExcelPath)
		df.DocsFullPath = r.path(field+"dataframe_docs_path", df.DocsPath)
	}
	for _, id := range m.ChartIDs {
		c := m.Charts[id]
		field := "charts." + id + "."
		c.ID = id
		c.PipelineID = pid
		c.HTMLFullPath = r.path(field+"path_to_html_chart", c.HTMLPath)
		c.ExcelFullPath = r.path(field+"path_to_excel_chart", c.ExcelPath)
		c.DocsFullPath = r.path(field+"chart_docs_path", c.DocsPath)
		if c.TopicTags == nil {
			c.TopicTags = []string{}
		}
	}
	for _, id := range m.NoteIDs {
		n := m.Notes[id]
		n.ID = id
		n.FullPath = r.path("notes."+id+".path_to_markdown_file", n.MarkdownPath)
	}
	return r.err
}

// link fills LinkedCharts and normalizes dataframe tags.
func link(m *models.Manifest) error {
	refs := make([]linker.ChartRef, len(m.ChartIDs))
	for i, id := range m.ChartIDs {
		refs[i] = linker.ChartRef{ID: id, DataframeID: m.Charts[id].DataframeID}
	}
	linked, err := linker.Link(m.DataframeIDs, refs)
	if err != nil {
		return err
	}
	for _, id := range m.DataframeIDs {
		df := m.Dataframes[id]
		df.LinkedCharts = linked[id]
		df.TopicTags = linker.NormalizeTags(df.TopicTags)
	}
	return nil
}

func (l *Loader) siteConfig(m *models.Manifest, md toml.MetaData, role string) error {
	sc, err := validation.SiteConfigFor(validation.SiteInput{
		Title:     m.Site.Title,
		TitleSet:  md.IsDefined("site", "title"),
		Author:    m.Site.Author,
		Copyright: m.Site.Copyright,
	}, role)
	if err != nil {
		return err
	}
	m.SiteConfig = sc
	return nil
}

// webpageURL is the file URL of the generated documentation entry point.
func webpageURL(root string) string {
	p := filepath.ToSlash(filepath.Join(root, "docs", "index.html"))
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}

// declared returns the keys of the table named section in the order they
// first appear in the file, whether declared as sub-tables, inline tables or
// dotted keys. Keys the metadata does not report are appended sorted.
func declared[V any](md toml.MetaData, section string, table map[string]V) []string {
	ids := make([]string, 0, len(table))
	seen := make(map[string]struct{}, len(table))
	for _, key := range md.Keys() {
		if len(key) < 2 || key[0] != section {
			continue
		}
		id := key[1]
		if _, ok := table[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == len(table) {
		return ids
	}
	var rest []string
	for id := range table {
		if _, ok := seen[id]; !ok {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(ids, rest...)
}

// resolver resolves paths against root and keeps the first error.
type resolver struct {
	root     string
	platform platform.Platform
	err      error
}

func (r *resolver) path(field string, v platform.PathValue) string {
	if r.err != nil {
		return ""
	}
	p, err := platform.ResolveAnchored(r.root, field, v, r.platform)
	if err != nil {
		r.err = err
		return ""
	}
	return p
}

func (r *resolver) site(s *models.SiteSection) {
	s.LogoFullPath = r.path("site.logo_path", s.LogoPath)
	s.FaviconFullPath = r.path("site.favicon_path", s.FaviconPath)
}

// withFile attaches the manifest path to structured errors that lack one.
func withFile(err error, path string) error {
	var ve *apperr.ValidationError
	if errors.As(err, &ve) && ve.FilePath == "" {
		return ve.WithFile(path)
	}
	var ce *apperr.ConfigError
	if errors.As(err, &ce) && ce.FilePath == "" {
		ce.FilePath = path
	}
	return err
}

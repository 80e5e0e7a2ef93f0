// Package catalogservice holds the currently loaded manifest and answers
// lookups against it and the search index.
package catalogservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/starford/chartbook/internal/apperr"
	"github.com/starford/chartbook/internal/index"
	"github.com/starford/chartbook/internal/manifest"
	"github.com/starford/chartbook/internal/models"
	"github.com/starford/chartbook/internal/storage"
)

// ErrNotLoaded is returned by lookups before the first successful load.
var ErrNotLoaded = errors.New("manifest not loaded")

// PipelineSummary is a lightweight item in a pipeline list.
type PipelineSummary struct {
	ID                 string    `json:"id"`
	Name               string    `json:"pipeline_name"`
	Description        string    `json:"pipeline_description"`
	LeadDeveloper      string    `json:"lead_pipeline_developer"`
	Dataframes         int       `json:"dataframes"`
	Charts             int       `json:"charts"`
	WebpageURL         string    `json:"webpage_URL"`
	SourceLastModified time.Time `json:"source_last_modified_date,omitempty"`
}

// DataframeDetail is a dataframe with its documentation and linked charts.
type DataframeDetail struct {
	*models.DataframeEntry
	Docs   string               `json:"docs,omitempty"`
	Charts []*models.ChartEntry `json:"charts"`
}

// ChartDetail is a chart with its documentation and source dataframe.
type ChartDetail struct {
	*models.ChartEntry
	Docs      string                 `json:"docs,omitempty"`
	Dataframe *models.DataframeEntry `json:"dataframe"`
}

// Service coordinates manifest loading and index operations.
type Service struct {
	loader *manifest.Loader
	dir    string
	db     *index.DB
	logger *slog.Logger

	mu      sync.RWMutex
	current *models.Manifest
}

// NewService creates a service for the project in dir. db may be nil, in
// which case search lookups fail.
func NewService(loader *manifest.Loader, dir string, db *index.DB, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{loader: loader, dir: dir, db: db, logger: logger}
}

// Dir returns the project directory the service loads from.
func (s *Service) Dir() string { return s.dir }

// Reload loads the manifest again and re-syncs the index. When loading
// fails the previous manifest stays current and the error is returned.
func (s *Service) Reload(ctx context.Context) (*models.Manifest, error) {
	m, err := s.loader.Load(ctx, s.dir)
	if err != nil {
		s.logger.Warn("Manifest reload failed",
			slog.String("dir", s.dir),
			slog.String("error", err.Error()))
		return nil, err
	}
	if s.db != nil {
		if err := index.Sync(s.db, m, s.logger); err != nil {
			s.logger.Warn("Index sync failed", slog.String("error", err.Error()))
		}
	}

	s.mu.Lock()
	s.current = m
	s.mu.Unlock()

	s.logger.Info("Manifest loaded",
		slog.String("type", m.Config.Type),
		slog.Int("pipelines", len(manifest.ListPipelineIDs(m))))
	return m, nil
}

// Manifest returns the current manifest.
func (s *Service) Manifest(_ context.Context) (*models.Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, ErrNotLoaded
	}
	return s.current, nil
}

// PipelineIDs returns the ids of all loaded pipelines.
func (s *Service) PipelineIDs(ctx context.Context) ([]string, error) {
	m, err := s.Manifest(ctx)
	if err != nil {
		return nil, err
	}
	return manifest.ListPipelineIDs(m), nil
}

// Pipelines returns a summary of every pipeline in declaration order.
func (s *Service) Pipelines(ctx context.Context) ([]PipelineSummary, error) {
	m, err := s.Manifest(ctx)
	if err != nil {
		return nil, err
	}
	ids := manifest.ListPipelineIDs(m)
	out := make([]PipelineSummary, 0, len(ids))
	for _, id := range ids {
		p, err := manifest.ExtractPipeline(m, id)
		if err != nil {
			return nil, err
		}
		out = append(out, summarize(p))
	}
	return out, nil
}

// Pipeline returns the manifest of one pipeline.
func (s *Service) Pipeline(ctx context.Context, id string) (*models.Manifest, error) {
	m, err := s.Manifest(ctx)
	if err != nil {
		return nil, err
	}
	return manifest.ExtractPipeline(m, id)
}

// Dataframe returns a dataframe of a pipeline with its docs and charts.
func (s *Service) Dataframe(ctx context.Context, pipelineID, dataframeID string) (*DataframeDetail, error) {
	p, err := s.Pipeline(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	df, ok := p.Dataframes[dataframeID]
	if !ok {
		return nil, fmt.Errorf("dataframe %q: %w", dataframeID, apperr.ErrNotFound)
	}
	charts := make([]*models.ChartEntry, 0, len(df.LinkedCharts))
	for _, id := range df.LinkedCharts {
		charts = append(charts, p.Charts[id])
	}
	return &DataframeDetail{
		DataframeEntry: df,
		Docs:           s.readDocs(df.DocsFullPath),
		Charts:         charts,
	}, nil
}

// Chart returns a chart of a pipeline with its docs and dataframe.
func (s *Service) Chart(ctx context.Context, pipelineID, chartID string) (*ChartDetail, error) {
	p, err := s.Pipeline(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	c, ok := p.Charts[chartID]
	if !ok {
		return nil, fmt.Errorf("chart %q: %w", chartID, apperr.ErrNotFound)
	}
	return &ChartDetail{
		ChartEntry: c,
		Docs:       s.readDocs(c.DocsFullPath),
		Dataframe:  p.Dataframes[c.DataframeID],
	}, nil
}

// Sources lists the files of a pipeline's source directory, the same files
// that determine its freshness timestamp.
func (s *Service) Sources(ctx context.Context, pipelineID string) ([]storage.FileInfo, error) {
	p, err := s.Pipeline(ctx, pipelineID)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewFS(p.ProjectDir)
	if err != nil {
		return nil, err
	}
	files, err := store.List(manifest.SourceDir)
	if errors.Is(err, fs.ErrNotExist) {
		return []storage.FileInfo{}, nil
	}
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []storage.FileInfo{}
	}
	return files, nil
}

// Entry returns one indexed entry.
func (s *Service) Entry(_ context.Context, pipelineID string, kind index.Kind, id string) (*index.EntryRow, error) {
	if s.db == nil {
		return nil, errors.New("search index not configured")
	}
	e, err := s.db.GetEntry(index.Key(pipelineID, kind, id))
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", kind, id, err)
	}
	return e, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if s.db == nil {
		return nil, errors.New("search index not configured")
	}
	return s.db.Search(query, limit)
}

// EntriesByTag returns indexed entries carrying tag.
func (s *Service) EntriesByTag(_ context.Context, tag string) ([]index.EntryRow, error) {
	if s.db == nil {
		return nil, errors.New("search index not configured")
	}
	return s.db.EntriesByTag(tag)
}

func (s *Service) readDocs(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Debug("Docs unreadable", slog.String("path", path), slog.String("error", err.Error()))
		return ""
	}
	return string(data)
}

func summarize(p *models.Manifest) PipelineSummary {
	return PipelineSummary{
		ID:                 p.Pipeline.ID,
		Name:               p.Pipeline.Name,
		Description:        p.Pipeline.Description,
		LeadDeveloper:      p.Pipeline.LeadDeveloper,
		Dataframes:         len(p.DataframeIDs),
		Charts:             len(p.ChartIDs),
		WebpageURL:         p.WebpageURL,
		SourceLastModified: p.SourceLastModified,
	}
}

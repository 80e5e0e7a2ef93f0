package manifest

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/starford/chartbook/internal/apperr"
	"github.com/starford/chartbook/internal/models"
	"github.com/starford/chartbook/internal/schema"
	"github.com/starford/chartbook/internal/storage"
	"github.com/starford/chartbook/internal/validation"
)

// LoadCatalog reads the catalog manifest in dir and every pipeline it
// references. A failure in any child fails the whole catalog.
func (l *Loader) LoadCatalog(ctx context.Context, dir string) (*models.Manifest, error) {
	root, path, typ, err := l.validate(dir)
	if err != nil {
		return nil, err
	}
	if typ != schema.TypeCatalog {
		return nil, &apperr.ConfigError{Detail: apperr.Detail{
			Message:  "expected a catalog manifest",
			FilePath: path,
			Field:    "config.type",
			Value:    typ,
		}}
	}
	return l.catalog(ctx, root, path)
}

func (l *Loader) catalog(ctx context.Context, root, path string) (*models.Manifest, error) {
	l.logger.Debug("Loading catalog manifest", slog.String("path", path))

	store, err := storage.NewFS(root)
	if err != nil {
		return nil, err
	}
	m, md, err := l.decode(store, path)
	if err != nil {
		return nil, err
	}

	r := &resolver{root: root, platform: l.platform}
	r.site(&m.Site)
	for _, id := range m.PipelineIDs {
		ref := m.Pipelines[id]
		ref.Dir = r.path("pipelines."+id+".path_to_pipeline", ref.Path)
	}
	if r.err != nil {
		return nil, withFile(r.err, path)
	}
	if err := l.siteConfig(m, md, validation.RoleCatalog); err != nil {
		return nil, withFile(err, path)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for _, id := range m.PipelineIDs {
		ref := m.Pipelines[id]
		g.Go(func() error {
			child, err := l.child(gCtx, ref.Dir)
			if err != nil {
				return fmt.Errorf("pipeline %q: %w", id, err)
			}
			ref.Manifest = child
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	l.logger.Debug("Loaded catalog manifest", slog.Int("pipelines", len(m.PipelineIDs)))
	return m, nil
}

func (l *Loader) child(ctx context.Context, dir string) (*models.Manifest, error) {
	if dir == "" {
		return nil, apperr.NewConfigError("path_to_pipeline is required")
	}
	root, path, typ, err := l.validate(dir)
	if err != nil {
		return nil, err
	}
	if typ == schema.TypeCatalog {
		return nil, &apperr.ConfigError{Detail: apperr.Detail{
			Message:  "a catalog cannot reference another catalog",
			FilePath: path,
			Field:    "config.type",
			Value:    typ,
			Hint:     "List the nested catalog's pipelines directly.",
		}}
	}
	return l.pipeline(ctx, root, path)
}

// ListPipelineIDs returns the single pipeline id of a pipeline manifest, or
// the ids of a catalog's pipelines in declaration order.
func ListPipelineIDs(m *models.Manifest) []string {
	if m.IsCatalog() {
		return append([]string(nil), m.PipelineIDs...)
	}
	if m.Pipeline == nil {
		return []string{}
	}
	return []string{m.Pipeline.ID}
}

// ExtractPipeline returns the pipeline manifest with the given id. For a
// pipeline manifest it returns m itself when the id matches.
func ExtractPipeline(m *models.Manifest, id string) (*models.Manifest, error) {
	if m.IsCatalog() {
		ref, ok := m.Pipelines[id]
		if !ok || ref.Manifest == nil {
			return nil, fmt.Errorf("pipeline %q: %w", id, apperr.ErrNotFound)
		}
		return ref.Manifest, nil
	}
	if m.Pipeline != nil && m.Pipeline.ID == id {
		return m, nil
	}
	return nil, fmt.Errorf("pipeline %q: %w", id, apperr.ErrNotFound)
}

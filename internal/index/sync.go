package index

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/chartbook/internal/checksum"
	"github.com/starford/chartbook/internal/manifest"
	"github.com/starford/chartbook/internal/models"
	"github.com/starford/chartbook/internal/parser"
	"github.com/starford/chartbook/internal/storage"
)

// Sync brings the index up to date with a loaded manifest:
//   - new or changed entries are upserted (unchanged checksums are skipped)
//   - entries no longer declared are deleted
//
// Missing documentation files are logged and indexed without a body.
func Sync(db *DB, m *models.Manifest, logger *slog.Logger) error {
	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	current := make(map[string]struct{})
	for _, id := range manifest.ListPipelineIDs(m) {
		p, err := manifest.ExtractPipeline(m, id)
		if err != nil {
			return err
		}
		for _, doc := range pipelineDocs(p, logger) {
			current[doc.row.Key] = struct{}{}
			if checksums[doc.row.Key] == doc.row.Checksum {
				continue
			}
			if err := db.UpsertEntry(doc.row, doc.body, doc.link); err != nil {
				return fmt.Errorf("index: sync %s: %w", doc.row.Key, err)
			}
			logger.Debug("sync: indexed", slog.String("key", doc.row.Key))
		}
	}

	for key := range checksums {
		if _, ok := current[key]; ok {
			continue
		}
		if err := db.DeleteEntry(key); err != nil {
			logger.Warn("sync: delete failed", slog.String("key", key), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: removed stale", slog.String("key", key))
		}
	}
	return nil
}

type entryDoc struct {
	row  EntryRow
	body string
	link *Link
}

// pipelineDocs builds the index rows for one pipeline manifest in
// declaration order.
func pipelineDocs(p *models.Manifest, logger *slog.Logger) []entryDoc {
	store, err := storage.NewFS(p.ProjectDir)
	if err != nil {
		logger.Warn("sync: project unreadable", slog.String("dir", p.ProjectDir), slog.String("error", err.Error()))
	}
	pid := p.Pipeline.ID
	now := time.Now()
	var out []entryDoc

	for _, id := range p.DataframeIDs {
		df := p.Dataframes[id]
		doc := readDoc(store, df.DocsFullPath, logger)
		out = append(out, newEntryDoc(EntryRow{
			Key:         Key(pid, KindDataframe, id),
			Kind:        KindDataframe,
			PipelineID:  pid,
			EntryID:     id,
			Name:        df.Name,
			Description: df.Description,
			Tags:        mergeTags(df.TopicTags, doc.Tags),
			UpdatedAt:   now,
		}, doc, nil))
	}
	for i, id := range p.ChartIDs {
		c := p.Charts[id]
		doc := readDoc(store, c.DocsFullPath, logger)
		out = append(out, newEntryDoc(EntryRow{
			Key:         Key(pid, KindChart, id),
			Kind:        KindChart,
			PipelineID:  pid,
			EntryID:     id,
			Name:        c.Name,
			Description: c.Description,
			Tags:        mergeTags(c.TopicTags, doc.Tags),
			UpdatedAt:   now,
		}, doc, &Link{DataframeKey: Key(pid, KindDataframe, c.DataframeID), Position: i}))
	}
	for _, id := range p.NoteIDs {
		n := p.Notes[id]
		doc := readDoc(store, n.FullPath, logger)
		name := doc.Title
		if name == "" {
			name = id
		}
		out = append(out, newEntryDoc(EntryRow{
			Key:         Key(pid, KindNote, id),
			Kind:        KindNote,
			PipelineID:  pid,
			EntryID:     id,
			Name:        name,
			Description: doc.Summary,
			Tags:        mergeTags(nil, doc.Tags),
			UpdatedAt:   now,
		}, doc, nil))
	}
	return out
}

func newEntryDoc(row EntryRow, doc *parser.Doc, link *Link) entryDoc {
	if row.Description == "" {
		row.Description = doc.Summary
	}
	linkKey := ""
	if link != nil {
		linkKey = fmt.Sprintf("%s@%d", link.DataframeKey, link.Position)
	}
	row.Checksum = checksum.Fields(string(row.Kind), row.PipelineID, row.EntryID,
		row.Name, row.Description, strings.Join(row.Tags, "\x1f"), doc.Body, linkKey)
	return entryDoc{row: row, body: doc.Body, link: link}
}

// readDoc parses the documentation file at abs. An empty path, a file
// outside the project or a read failure yields an empty Doc.
func readDoc(store *storage.FS, abs string, logger *slog.Logger) *parser.Doc {
	empty := &parser.Doc{}
	if abs == "" || store == nil {
		return empty
	}
	rel, err := filepath.Rel(store.Root(), abs)
	if err != nil {
		return empty
	}
	data, err := store.Read(rel)
	if err != nil {
		logger.Warn("sync: docs unreadable", slog.String("path", abs), slog.String("error", err.Error()))
		return empty
	}
	doc, err := parser.Parse(data)
	if err != nil {
		logger.Warn("sync: docs parse failed", slog.String("path", abs), slog.String("error", err.Error()))
		return empty
	}
	return doc
}

// mergeTags appends doc tags not already declared, ignoring case.
func mergeTags(declared, fromDoc []string) []string {
	out := make([]string, 0, len(declared)+len(fromDoc))
	seen := make(map[string]struct{}, cap(out))
	for _, list := range [][]string{declared, fromDoc} {
		for _, t := range list {
			k := strings.ToLower(t)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

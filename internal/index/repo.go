package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/chartbook/internal/apperr"
)

// Kind is the type of an indexed entry.
type Kind string

const (
	KindDataframe Kind = "dataframe"
	KindChart     Kind = "chart"
	KindNote      Kind = "note"
)

// Key returns the primary key for an entry: "<pipeline>/<kind>/<id>".
func Key(pipelineID string, kind Kind, entryID string) string {
	return pipelineID + "/" + string(kind) + "/" + entryID
}

// EntryRow represents a row in the entries table.
type EntryRow struct {
	Key         string    `json:"key"`
	Kind        Kind      `json:"kind"`
	PipelineID  string    `json:"pipeline_id"`
	EntryID     string    `json:"entry_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	Checksum    string    `json:"checksum"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Link ties a chart entry to the dataframe it visualizes. Position is the
// chart's declaration order within its pipeline.
type Link struct {
	DataframeKey string
	Position     int
}

// SearchResult represents one search hit.
type SearchResult struct {
	Key        string `json:"key"`
	Kind       Kind   `json:"kind"`
	PipelineID string `json:"pipeline_id"`
	EntryID    string `json:"entry_id"`
	Name       string `json:"name"`
	Snippet    string `json:"snippet"`
}

// UpsertEntry inserts or replaces an entry, its FTS row and, for charts, its
// dataframe link within a transaction.
func (db *DB) UpsertEntry(e EntryRow, body string, link *Link) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if e.Tags == nil {
		e.Tags = []string{}
	}
	tagsJSON, _ := json.Marshal(e.Tags)

	_, err = tx.Exec(`
		INSERT INTO entries (key, kind, pipeline_id, entry_id, name, description, tags, body, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			kind        = excluded.kind,
			pipeline_id = excluded.pipeline_id,
			entry_id    = excluded.entry_id,
			name        = excluded.name,
			description = excluded.description,
			tags        = excluded.tags,
			body        = excluded.body,
			checksum    = excluded.checksum,
			updated_at  = excluded.updated_at
	`, e.Key, string(e.Kind), e.PipelineID, e.EntryID, e.Name, e.Description, string(tagsJSON), body, e.Checksum, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert entry: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, e.Key, e.Name, e.Description+"\n"+body, e.Tags); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM links WHERE chart_key = ?`, e.Key); err != nil {
		return fmt.Errorf("index: clear link: %w", err)
	}
	if link != nil {
		if _, err := tx.Exec(`INSERT INTO links (chart_key, dataframe_key, position) VALUES (?, ?, ?)`,
			e.Key, link.DataframeKey, link.Position); err != nil {
			return fmt.Errorf("index: insert link: %w", err)
		}
	}

	return tx.Commit()
}

// DeleteEntry removes an entry, its FTS row and its link.
func (db *DB) DeleteEntry(key string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, key)
	_, _ = tx.Exec(`DELETE FROM links WHERE chart_key = ?`, key)
	_, _ = tx.Exec(`DELETE FROM entries WHERE key = ?`, key)

	return tx.Commit()
}

// GetEntry returns one entry or apperr.ErrNotFound.
func (db *DB) GetEntry(key string) (*EntryRow, error) {
	row := db.conn.QueryRow(`
		SELECT key, kind, pipeline_id, entry_id, name, description, tags, checksum, updated_at
		FROM entries WHERE key = ?`, key)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get entry: %w", err)
	}
	return e, nil
}

// AllChecksums returns key → checksum for every indexed entry.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT key, checksum FROM entries`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var k, cs string
		if err := rows.Scan(&k, &cs); err != nil {
			return nil, err
		}
		out[k] = cs
	}
	return out, rows.Err()
}

// EntriesByTag returns entries carrying tag, compared case-insensitively,
// ordered by pipeline, kind and entry id.
func (db *DB) EntriesByTag(tag string) ([]EntryRow, error) {
	rows, err := db.conn.Query(`
		SELECT key, kind, pipeline_id, entry_id, name, description, tags, checksum, updated_at
		FROM entries e
		WHERE EXISTS (SELECT 1 FROM json_each(e.tags) t WHERE t.value = ? COLLATE NOCASE)
		ORDER BY pipeline_id, kind, entry_id`, strings.TrimSpace(tag))
	if err != nil {
		return nil, fmt.Errorf("index: entries by tag: %w", err)
	}
	defer rows.Close()

	out := []EntryRow{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// LinkedCharts returns the ids of charts linked to a dataframe in
// declaration order.
func (db *DB) LinkedCharts(pipelineID, dataframeID string) ([]string, error) {
	rows, err := db.conn.Query(`
		SELECT e.entry_id
		FROM links l JOIN entries e ON e.key = l.chart_key
		WHERE l.dataframe_key = ?
		ORDER BY l.position`, Key(pipelineID, KindDataframe, dataframeID))
	if err != nil {
		return nil, fmt.Errorf("index: linked charts: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*EntryRow, error) {
	var (
		e    EntryRow
		kind string
		tags string
	)
	if err := s.Scan(&e.Key, &kind, &e.PipelineID, &e.EntryID, &e.Name, &e.Description, &tags, &e.Checksum, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Kind = Kind(kind)
	if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil || e.Tags == nil {
		e.Tags = []string{}
	}
	return &e, nil
}

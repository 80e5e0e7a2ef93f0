// Package storage provides read-only access to a project directory.
package storage

import "time"

// FileInfo describes one regular file under the project root.
type FileInfo struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for project file reads.
type Provider interface {
	// Root returns the absolute project directory.
	Root() string
	// List returns every regular file under dir (relative to the root).
	List(dir string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path (relative to the root).
	Read(path string) ([]byte, error)
	// LatestModTime returns the newest modification time under dir. ok is
	// false when dir does not exist or holds no files.
	LatestModTime(dir string) (latest time.Time, ok bool, err error)
}

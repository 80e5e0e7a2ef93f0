package index

// CatalogIndex is the read/write surface of the index used by services.
type CatalogIndex interface {
	UpsertEntry(e EntryRow, body string, link *Link) error
	DeleteEntry(key string) error
	GetEntry(key string) (*EntryRow, error)
	AllChecksums() (map[string]string, error)
	Search(query string, limit int) ([]SearchResult, error)
	EntriesByTag(tag string) ([]EntryRow, error)
	LinkedCharts(pipelineID, dataframeID string) ([]string, error)
	Close() error
}

var _ CatalogIndex = (*DB)(nil)

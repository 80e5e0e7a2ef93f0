package index

import "database/sql"

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	out := []SearchResult{}
	for rows.Next() {
		var (
			r    SearchResult
			kind string
		)
		if err := rows.Scan(&r.Key, &kind, &r.PipelineID, &r.EntryID, &r.Name, &r.Snippet); err != nil {
			return nil, err
		}
		r.Kind = Kind(kind)
		out = append(out, r)
	}
	return out, rows.Err()
}

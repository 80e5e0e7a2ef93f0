// Package linker cross-references charts with the dataframes they visualize
// and normalizes topic tags.
package linker

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/starford/chartbook/internal/apperr"
)

// ChartRef is the part of a chart the linker needs.
type ChartRef struct {
	ID          string
	DataframeID string
}

// Link returns, for every dataframe id, the ids of charts that reference it
// in the order charts were declared. Every dataframe gets a non-nil slice.
// A chart referencing an unknown dataframe is a ConfigError.
func Link(dataframeIDs []string, charts []ChartRef) (map[string][]string, error) {
	linked := make(map[string][]string, len(dataframeIDs))
	for _, id := range dataframeIDs {
		linked[id] = []string{}
	}
	for _, c := range charts {
		ids, ok := linked[c.DataframeID]
		if !ok {
			return nil, &apperr.ConfigError{Detail: apperr.Detail{
				Message: fmt.Sprintf("chart %q references unknown dataframe %q", c.ID, c.DataframeID),
				Field:   "charts." + c.ID + ".dataframe_id",
				Value:   c.DataframeID,
				Hint:    "dataframe_id must name an entry of [dataframes] in the same manifest.",
			}}
		}
		linked[c.DataframeID] = append(ids, c.ID)
	}
	return linked, nil
}

// NormalizeTags trims and Title-Cases each tag, dropping blanks and
// duplicates while keeping first-seen order. The input is not modified.
func NormalizeTags(tags []string) []string {
	caser := cases.Title(language.Und)
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		tag = caser.String(tag)
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

package api

import (
	"github.com/starford/chartbook/internal/catalogservice"
	"github.com/starford/chartbook/internal/index"
	"github.com/starford/chartbook/internal/storage"
)

// PipelineSummary is a pipeline list item (aliased from the domain layer).
type PipelineSummary = catalogservice.PipelineSummary

// PipelineListResponse wraps pipeline listings.
type PipelineListResponse struct {
	Pipelines []PipelineSummary `json:"pipelines" validate:"required"`
	Total     int               `json:"total" example:"2" validate:"required"`
}

// DataframeDetail is the dataframe response type.
type DataframeDetail = catalogservice.DataframeDetail

// ChartDetail is the chart response type.
type ChartDetail = catalogservice.ChartDetail

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// TagResponse lists entries carrying a tag.
type TagResponse struct {
	Tag     string           `json:"tag" example:"Interest Rates" validate:"required"`
	Entries []index.EntryRow `json:"entries" validate:"required"`
}

// ReloadResponse is returned after a manual reload.
type ReloadResponse struct {
	Type      string   `json:"type" example:"catalog" validate:"required"`
	Pipelines []string `json:"pipelines" validate:"required"`
}

// SourcesResponse lists the files of a pipeline's source directory.
type SourcesResponse struct {
	Files []storage.FileInfo `json:"files" validate:"required"`
}

package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/chartbook/internal/apperr"
	"github.com/starford/chartbook/internal/catalogservice"
	"github.com/starford/chartbook/internal/index"
	"github.com/starford/chartbook/internal/manifest"
	"github.com/starford/chartbook/internal/sse"
)

// Handler holds API route handlers.
type Handler struct {
	svc    *catalogservice.Service
	broker *sse.Broker
}

// NewHandler creates a new Handler. broker may be nil.
func NewHandler(svc *catalogservice.Service, broker *sse.Broker) *Handler {
	return &Handler{svc: svc, broker: broker}
}

// GetManifest handles GET /api/manifest.
//
//	@Summary		Get the resolved manifest
//	@Tags			manifest
//	@Produce		json
//	@Success		200	{object}	models.Manifest
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/manifest [get]
func (h *Handler) GetManifest(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Manifest(r.Context())
	if err != nil {
		writeError(w, "get manifest", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Reload handles POST /api/reload.
//
//	@Summary		Reload the manifest from disk
//	@Tags			manifest
//	@Produce		json
//	@Success		200	{object}	ReloadResponse
//	@Failure		422	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reload [post]
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Reload(r.Context())
	if err != nil {
		if h.broker != nil {
			h.broker.PublishReload(nil, err)
		}
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(apperr.Format(err)))
		return
	}
	ids := manifest.ListPipelineIDs(m)
	if h.broker != nil {
		h.broker.PublishReload(ids, nil)
	}
	writeJSON(w, http.StatusOK, ReloadResponse{Type: m.Config.Type, Pipelines: ids})
}

// ListPipelines handles GET /api/pipelines.
//
//	@Summary		List pipelines in declaration order
//	@Tags			pipelines
//	@Produce		json
//	@Success		200	{object}	PipelineListResponse
//	@Security		BearerAuth
//	@Router			/pipelines [get]
func (h *Handler) ListPipelines(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Pipelines(r.Context())
	if err != nil {
		writeError(w, "list pipelines", err)
		return
	}
	writeJSON(w, http.StatusOK, PipelineListResponse{Pipelines: items, Total: len(items)})
}

// GetPipeline handles GET /api/pipelines/{id}.
//
//	@Summary		Get one pipeline manifest
//	@Tags			pipelines
//	@Produce		json
//	@Param			id	path		string	true	"Pipeline id"
//	@Success		200	{object}	models.Manifest
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pipelines/{id} [get]
func (h *Handler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Pipeline(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get pipeline", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetDataframe handles GET /api/pipelines/{id}/dataframes/{dataframeID}.
//
//	@Summary		Get a dataframe with its docs and linked charts
//	@Tags			pipelines
//	@Produce		json
//	@Param			id			path		string	true	"Pipeline id"
//	@Param			dataframeID	path		string	true	"Dataframe id"
//	@Success		200			{object}	DataframeDetail
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pipelines/{id}/dataframes/{dataframeID} [get]
func (h *Handler) GetDataframe(w http.ResponseWriter, r *http.Request) {
	df, err := h.svc.Dataframe(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "dataframeID"))
	if err != nil {
		writeError(w, "get dataframe", err)
		return
	}
	writeJSON(w, http.StatusOK, df)
}

// GetChart handles GET /api/pipelines/{id}/charts/{chartID}.
//
//	@Summary		Get a chart with its docs and dataframe
//	@Tags			pipelines
//	@Produce		json
//	@Param			id		path		string	true	"Pipeline id"
//	@Param			chartID	path		string	true	"Chart id"
//	@Success		200		{object}	ChartDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pipelines/{id}/charts/{chartID} [get]
func (h *Handler) GetChart(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Chart(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "chartID"))
	if err != nil {
		writeError(w, "get chart", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across dataframes, charts and notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// EntriesByTag handles GET /api/tags/{tag}.
//
//	@Summary		List entries carrying a topic tag
//	@Tags			search
//	@Produce		json
//	@Param			tag	path		string	true	"Topic tag (case-insensitive)"
//	@Success		200	{object}	TagResponse
//	@Security		BearerAuth
//	@Router			/tags/{tag} [get]
func (h *Handler) EntriesByTag(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	entries, err := h.svc.EntriesByTag(r.Context(), tag)
	if err != nil {
		writeError(w, "entries by tag", err)
		return
	}
	writeJSON(w, http.StatusOK, TagResponse{Tag: tag, Entries: entries})
}

// ListSources handles GET /api/pipelines/{id}/sources.
//
//	@Summary		List the source files behind a pipeline's freshness date
//	@Tags			pipelines
//	@Produce		json
//	@Param			id	path		string	true	"Pipeline id"
//	@Success		200	{object}	SourcesResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/pipelines/{id}/sources [get]
func (h *Handler) ListSources(w http.ResponseWriter, r *http.Request) {
	files, err := h.svc.Sources(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "list sources", err)
		return
	}
	writeJSON(w, http.StatusOK, SourcesResponse{Files: files})
}

// GetEntry handles GET /api/entries/{id}/{kind}/{entryID}.
//
//	@Summary		Get an indexed entry
//	@Tags			search
//	@Produce		json
//	@Param			id		path		string	true	"Pipeline id"
//	@Param			kind	path		string	true	"dataframe, chart or note"
//	@Param			entryID	path		string	true	"Entry id"
//	@Success		200		{object}	index.EntryRow
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{id}/{kind}/{entryID} [get]
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	kind := index.Kind(chi.URLParam(r, "kind"))
	switch kind {
	case index.KindDataframe, index.KindChart, index.KindNote:
	default:
		writeJSON(w, http.StatusBadRequest, errorBody("kind must be dataframe, chart or note"))
		return
	}
	e, err := h.svc.Entry(r.Context(), chi.URLParam(r, "id"), kind, chi.URLParam(r, "entryID"))
	if err != nil {
		writeError(w, "get entry", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

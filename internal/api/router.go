package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/chartbook/internal/catalogservice"
	"github.com/starford/chartbook/internal/sse"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// broker, if non-nil, is mounted at GET /events inside the auth group and
// notified after POST /reload.
func NewRouter(svc *catalogservice.Service, authEnabled bool, token string, broker *sse.Broker) chi.Router {
	h := NewHandler(svc, broker)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/manifest", h.GetManifest)
	r.Post("/reload", h.Reload)

	r.Route("/pipelines", func(r chi.Router) {
		r.Get("/", h.ListPipelines)
		r.Get("/{id}", h.GetPipeline)
		r.Get("/{id}/dataframes/{dataframeID}", h.GetDataframe)
		r.Get("/{id}/charts/{chartID}", h.GetChart)
		r.Get("/{id}/sources", h.ListSources)
	})

	r.Get("/search", h.Search)
	r.Get("/tags/{tag}", h.EntriesByTag)
	r.Get("/entries/{id}/{kind}/{entryID}", h.GetEntry)

	if broker != nil {
		r.Get("/events", broker.ServeHTTP)
	}

	return r
}

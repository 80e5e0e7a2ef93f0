package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/chartbook/internal/catalogservice"
	"github.com/starford/chartbook/internal/index"
	"github.com/starford/chartbook/internal/manifest"
	"github.com/starford/chartbook/internal/schema"
	"github.com/starford/chartbook/internal/sse"
	"github.com/starford/chartbook/internal/testutil"
)

// testEnv builds a two-pipeline catalog, loads it and returns a router.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*catalogservice.Service, http.Handler) {
	t.Helper()
	svc, router, _ := testEnvFull(t, authToken != "", authToken, true)
	return svc, router
}

func testEnvFull(t *testing.T, authEnabled bool, authToken string, load bool) (*catalogservice.Service, http.Handler, string) {
	t.Helper()

	dir := testutil.CatalogProject(t, t.TempDir(), []string{"pipeline_a", "pipeline_b"}, false)

	dbFile, err := os.CreateTemp("", "chartbook-api-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc := catalogservice.NewService(manifest.NewLoader(), dir, db, nil)
	if load {
		if _, err := svc.Reload(context.Background()); err != nil {
			t.Fatalf("Reload: %v", err)
		}
	}

	broker := sse.NewBroker(100 * time.Millisecond)
	t.Cleanup(broker.Close)

	return svc, NewRouter(svc, authEnabled, authToken, broker), dir
}

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetManifest(t *testing.T) {
	_, router := testEnv(t, "")

	w := get(t, router, "/manifest")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body struct {
		Config struct {
			Type string `json:"type"`
		} `json:"config"`
		SiteConfig struct {
			Theme string `json:"theme"`
		} `json:"site_config"`
		PipelineIDs []string `json:"pipeline_ids"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Config.Type != "catalog" {
		t.Errorf("type = %q", body.Config.Type)
	}
	if body.SiteConfig.Theme != "pydata_sphinx_theme" {
		t.Errorf("theme = %q", body.SiteConfig.Theme)
	}
	if len(body.PipelineIDs) != 2 {
		t.Errorf("pipeline_ids = %v", body.PipelineIDs)
	}
}

func TestGetManifest_NotLoaded(t *testing.T) {
	_, router, _ := testEnvFull(t, false, "", false)
	if w := get(t, router, "/manifest"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestListPipelines(t *testing.T) {
	_, router := testEnv(t, "")

	w := get(t, router, "/pipelines")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp PipelineListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Total != 2 || len(resp.Pipelines) != 2 {
		t.Fatalf("resp = %+v", resp)
	}
	for _, p := range resp.Pipelines {
		if p.Dataframes != 1 || p.Charts != 1 {
			t.Errorf("summary = %+v", p)
		}
		if !strings.HasPrefix(p.WebpageURL, "file://") {
			t.Errorf("webpage_URL = %q", p.WebpageURL)
		}
	}
}

func TestGetPipeline(t *testing.T) {
	_, router := testEnv(t, "")

	w := get(t, router, "/pipelines/pipeline_a")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Pipeline struct {
			ID string `json:"id"`
		} `json:"pipeline"`
		Dataframes map[string]struct {
			LinkedCharts []string `json:"linked_charts"`
		} `json:"dataframes"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Pipeline.ID != "pipeline_a" {
		t.Errorf("id = %q", body.Pipeline.ID)
	}
	if lc := body.Dataframes["dataframe_0"].LinkedCharts; len(lc) != 1 || lc[0] != "chart_0_0" {
		t.Errorf("linked_charts = %v", lc)
	}
}

func TestGetPipeline_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	if w := get(t, router, "/pipelines/nope"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGetDataframe(t *testing.T) {
	_, router := testEnv(t, "")

	w := get(t, router, "/pipelines/pipeline_b/dataframes/dataframe_0")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var df struct {
		ID        string   `json:"id"`
		TopicTags []string `json:"topic_tags"`
		Docs      string   `json:"docs"`
		Charts    []struct {
			ID string `json:"id"`
		} `json:"charts"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &df)
	if df.ID != "dataframe_0" {
		t.Errorf("id = %q", df.ID)
	}
	if len(df.TopicTags) != 2 || df.TopicTags[0] != "Test Tag" {
		t.Errorf("topic_tags = %v", df.TopicTags)
	}
	if !strings.Contains(df.Docs, "Documentation for dataframe 0") {
		t.Errorf("docs = %q", df.Docs)
	}
	if len(df.Charts) != 1 || df.Charts[0].ID != "chart_0_0" {
		t.Errorf("charts = %+v", df.Charts)
	}

	if w := get(t, router, "/pipelines/pipeline_b/dataframes/missing"); w.Code != http.StatusNotFound {
		t.Errorf("missing dataframe = %d, want 404", w.Code)
	}
}

func TestGetChart(t *testing.T) {
	_, router := testEnv(t, "")

	w := get(t, router, "/pipelines/pipeline_a/charts/chart_0_0")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var c struct {
		DataframeID string `json:"dataframe_id"`
		HTML        string `json:"path_to_html_chart"`
		Dataframe   struct {
			ID string `json:"id"`
		} `json:"dataframe"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &c)
	if c.DataframeID != "dataframe_0" || c.Dataframe.ID != "dataframe_0" {
		t.Errorf("chart = %+v", c)
	}
	if !filepath.IsAbs(c.HTML) {
		t.Errorf("html path not absolute: %q", c.HTML)
	}
}

func TestListSources(t *testing.T) {
	_, router := testEnv(t, "")

	w := get(t, router, "/pipelines/pipeline_a/sources")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp SourcesResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Files) != 1 || resp.Files[0].Path != "src/dummy.py" {
		t.Errorf("files = %+v", resp.Files)
	}
}

func TestGetEntry(t *testing.T) {
	_, router := testEnv(t, "")

	w := get(t, router, "/entries/pipeline_b/chart/chart_0_0")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var e index.EntryRow
	_ = json.Unmarshal(w.Body.Bytes(), &e)
	if e.Key != "pipeline_b/chart/chart_0_0" || e.Name != "Chart 0-0" {
		t.Errorf("entry = %+v", e)
	}

	if w := get(t, router, "/entries/pipeline_b/widget/x"); w.Code != http.StatusBadRequest {
		t.Errorf("bad kind = %d, want 400", w.Code)
	}
	if w := get(t, router, "/entries/pipeline_b/chart/missing"); w.Code != http.StatusNotFound {
		t.Errorf("missing entry = %d, want 404", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := get(t, router, "/search?q=Chart&limit=10")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) == 0 {
		t.Error("expected search results")
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")
	if w := get(t, router, "/search"); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestEntriesByTagEndpoint(t *testing.T) {
	_, router := testEnv(t, "")

	w := get(t, router, "/tags/uppercase%20tag")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp TagResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Tag != "uppercase tag" {
		t.Errorf("tag = %q", resp.Tag)
	}
	if len(resp.Entries) != 2 {
		t.Errorf("entries = %d, want 2", len(resp.Entries))
	}
}

func TestReload(t *testing.T) {
	_, router, dir := testEnvFull(t, false, "", false)

	req := httptest.NewRequest(http.MethodPost, "/reload", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("reload = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ReloadResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Type != "catalog" || len(resp.Pipelines) != 2 {
		t.Errorf("resp = %+v", resp)
	}

	testutil.WriteFile(t, filepath.Join(dir, schema.FileName), "[config]\ntype = \"bogus\"\n")
	req = httptest.NewRequest(http.MethodPost, "/reload", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("broken reload = %d, want 422", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Field: config.type") {
		t.Errorf("expected formatted error, got %s", w.Body.String())
	}

	// The previous manifest is still served.
	if w := get(t, router, "/pipelines"); w.Code != http.StatusOK {
		t.Errorf("pipelines after failed reload = %d", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/pipelines", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	if w := get(t, router, "/pipelines"); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/pipelines", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")
	if w := get(t, router, "/pipelines"); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnv(t, "secret")
	if w := get(t, router, "/events"); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnv(t, "tok")

	// The SSE handler writes 200 and blocks until the context is done.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolkhin/linkcut/config"
	"github.com/avolkhin/linkcut/internal/auth"
	"github.com/avolkhin/linkcut/internal/db/memorystorage"
	"github.com/avolkhin/linkcut/internal/middleware"
	"github.com/avolkhin/linkcut/internal/types"
	"github.com/avolkhin/linkcut/internal/urlshort"
	"github.com/avolkhin/linkcut/logging"
)

func newTestRouter(t *testing.T) (*chi.Mux, *urlshort.Service) {
	t.Helper()

	cfg := &config.Config{
		ServerAddress: "localhost:8080",
		BaseURL:       "http://localhost:8080",
		StorageType:   "memory",
		SecretKey:     "test-secret",
		TrustedSubnet: "10.0.0.0/8",
	}
	storage, err := memorystorage.NewManager(cfg)
	require.NoError(t, err)

	logger := logging.GetSugaredLogger()
	service := urlshort.NewService(storage, cfg, logger)
	am := auth.NewManager(cfg.SecretKey)
	h := &Handler{Config: cfg, Service: service, AuthManager: am, Logger: logger}

	r := chi.NewRouter()
	session := middleware.WithSession(am)
	r.Post(`/links`, func(w http.ResponseWriter, r *http.Request) {
		middleware.Conveyor(http.HandlerFunc(h.CreateLink), logger, session).ServeHTTP(w, r)
	})
	r.Get(`/links`, func(w http.ResponseWriter, r *http.Request) {
		middleware.Conveyor(http.HandlerFunc(h.Links), logger, session).ServeHTTP(w, r)
	})
	r.Get(`/r/{slug}`, h.Redirect)
	r.Post(`/api/shorten`, func(w http.ResponseWriter, r *http.Request) {
		middleware.Conveyor(http.HandlerFunc(h.Shorten), logger, session).ServeHTTP(w, r)
	})
	r.Get(`/api/internal/stats`, h.InternalStats)

	return r, service
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateLink(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/links", types.CreateLinkRequest{URL: "https://example.com"})
	require.Equal(t, http.StatusCreated, w.Code)

	var link types.ShortLink
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &link))
	assert.NotEmpty(t, link.ID)
	assert.Len(t, link.Slug, 6)
	assert.Equal(t, "https://example.com", link.DestinationURL)
	assert.Equal(t, int64(0), link.ClickCount)
	assert.False(t, link.CreatedAt.IsZero())
}

func TestCreateLinkValidationErrors(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name string
		body types.CreateLinkRequest
	}{
		{name: "relative url", body: types.CreateLinkRequest{URL: "not-a-url"}},
		{name: "slug too short", body: types.CreateLinkRequest{URL: "https://example.com", Slug: "ab"}},
		{name: "slug with space", body: types.CreateLinkRequest{URL: "https://example.com", Slug: "has space"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, router, http.MethodPost, "/links", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp types.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestCreateLinkSlugConflict(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/links", types.CreateLinkRequest{URL: "https://example.com", Slug: "chosen"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, "/links", types.CreateLinkRequest{URL: "https://other.example.com", Slug: "chosen"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp types.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "slug already taken", resp.Error)
}

func TestRedirect(t *testing.T) {
	router, service := newTestRouter(t)

	link, err := service.CreateLink(context.Background(), "https://example.com/target", "gotome", "", nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/r/gotome", nil)
	req.Header.Set("User-Agent", "test-agent")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://example.com/target", w.Header().Get("Location"))

	// The click side effect must be visible on the next listing.
	links, err := service.Links(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, link.ID, links[0].ID)
	assert.Equal(t, int64(1), links[0].ClickCount)
}

func TestRedirectNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/r/doesnotexist", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp types.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "link not found", resp.Error)
}

func TestRedirectExpiredLink(t *testing.T) {
	router, service := newTestRouter(t)

	past := time.Now().Add(-time.Minute)
	_, err := service.CreateLink(context.Background(), "https://example.com", "bygone", "", &past)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/r/bygone", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code, "expired must look exactly like missing")
}

func TestShortenRoundTrip(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/shorten", types.ShortenRequest{OriginalURL: "https://example.com"})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp types.ShortenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, strings.HasPrefix(resp.ShortURL, "http://localhost:8080/r/"), "got %q", resp.ShortURL)

	// Follow the short URL path straight back through the router.
	path := strings.TrimPrefix(resp.ShortURL, "http://localhost:8080")
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://example.com", rec.Header().Get("Location"))
}

func TestLinksListing(t *testing.T) {
	router, service := newTestRouter(t)

	_, err := service.CreateLink(context.Background(), "https://example.com/1", "lnk001", "", nil)
	require.NoError(t, err)
	_, err = service.CreateLink(context.Background(), "https://example.com/2", "lnk002", "", nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/links", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var links []types.ShortLink
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &links))
	require.Len(t, links, 2)
	assert.Equal(t, "lnk002", links[0].Slug, "newest first")
	assert.Equal(t, "lnk001", links[1].Slug)
}

func TestLinksListingByOwner(t *testing.T) {
	router, _ := newTestRouter(t)

	// Creating without a session mints an identity cookie.
	w := doJSON(t, router, http.MethodPost, "/links", types.CreateLinkRequest{URL: "https://example.com/mine"})
	require.Equal(t, http.StatusCreated, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	// A second, unrelated link.
	w = doJSON(t, router, http.MethodPost, "/links", types.CreateLinkRequest{URL: "https://example.com/other"})
	require.Equal(t, http.StatusCreated, w.Code)

	// With the first creator's cookie only their link comes back.
	req := httptest.NewRequest(http.MethodGet, "/links", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var links []types.ShortLink
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &links))
	require.Len(t, links, 1)
	assert.Equal(t, "https://example.com/mine", links[0].DestinationURL)
}

func TestInternalStats(t *testing.T) {
	router, service := newTestRouter(t)

	_, err := service.CreateLink(context.Background(), "https://example.com", "", "alice", nil)
	require.NoError(t, err)

	// Outside the trusted subnet.
	req := httptest.NewRequest(http.MethodGet, "/api/internal/stats", nil)
	req.Header.Set("X-Real-IP", "192.168.1.1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Inside.
	req = httptest.NewRequest(http.MethodGet, "/api/internal/stats", nil)
	req.Header.Set("X-Real-IP", "10.1.2.3")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var stats types.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, types.Stats{Links: 1, Owners: 1}, stats)
}

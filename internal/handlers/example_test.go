package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi/v5"

	"github.com/avolkhin/linkcut/config"
	"github.com/avolkhin/linkcut/internal/auth"
	"github.com/avolkhin/linkcut/internal/db/memorystorage"
	"github.com/avolkhin/linkcut/internal/types"
	"github.com/avolkhin/linkcut/internal/urlshort"
	"github.com/avolkhin/linkcut/logging"
)

func exampleHandler() (*Handler, *urlshort.Service) {
	cfg := &config.Config{
		ServerAddress: "localhost:8080",
		BaseURL:       "http://localhost:8080",
		StorageType:   "memory",
		SecretKey:     "example-secret",
	}
	storage, _ := memorystorage.NewManager(cfg)
	logger := logging.GetSugaredLogger()
	service := urlshort.NewService(storage, cfg, logger)

	return &Handler{
		Config:      cfg,
		Service:     service,
		AuthManager: auth.NewManager(cfg.SecretKey),
		Logger:      logger,
	}, service
}

// ExampleHandler_Shorten demonstrates the /api/shorten creation entry point.
func ExampleHandler_Shorten() {
	h, _ := exampleHandler()

	body, _ := json.Marshal(types.ShortenRequest{OriginalURL: "https://example.com", Slug: "demo01"})
	req := httptest.NewRequest(http.MethodPost, "/api/shorten", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	h.Shorten(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	var out types.ShortenResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)

	fmt.Println(resp.StatusCode)
	fmt.Println(out.ShortURL)

	// Output:
	// 201
	// http://localhost:8080/r/demo01
}

// ExampleHandler_Redirect demonstrates slug resolution on /r/{slug}.
func ExampleHandler_Redirect() {
	h, service := exampleHandler()

	_, _ = service.CreateLink(context.Background(), "https://example.com", "demo02", "", nil)

	router := chi.NewRouter()
	router.Get(`/r/{slug}`, h.Redirect)

	req := httptest.NewRequest(http.MethodGet, "/r/demo02", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	defer resp.Body.Close()

	fmt.Println(resp.StatusCode)
	fmt.Println(resp.Header.Get("Location"))

	// Output:
	// 302
	// https://example.com
}

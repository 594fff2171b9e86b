package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/acme/autocert"

	"github.com/avolkhin/linkcut/config"
	"github.com/avolkhin/linkcut/internal/auth"
	"github.com/avolkhin/linkcut/internal/db"
	"github.com/avolkhin/linkcut/internal/handlers"
	"github.com/avolkhin/linkcut/internal/middleware"
	"github.com/avolkhin/linkcut/internal/urlshort"
	"github.com/avolkhin/linkcut/logging"
)

func main() {
	logger := logging.GetSugaredLogger()
	defer logger.Sync()

	cfg := config.GetConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := db.GetStorage(cfg, logger)
	defer s.Close(context.Background())

	authManager := auth.NewManager(cfg.SecretKey)
	service := urlshort.NewService(s, cfg, logger)

	h := &handlers.Handler{
		Config:      cfg,
		Service:     service,
		AuthManager: authManager,
		Logger:      logger,
	}

	session := middleware.WithSession(authManager)

	r := chi.NewRouter()
	r.Post(`/links`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.CreateLink),
				logger,
				middleware.WithLogging,
				middleware.WriteWithCompression,
				middleware.ReadWithCompression,
				session,
			).ServeHTTP(w, r)
		},
	)
	r.Get(`/links`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.Links),
				logger,
				middleware.WithLogging,
				middleware.WriteWithCompression,
				session,
			).ServeHTTP(w, r)
		},
	)
	r.Post(`/api/shorten`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.Shorten),
				logger,
				middleware.WithLogging,
				middleware.WriteWithCompression,
				middleware.ReadWithCompression,
				session,
			).ServeHTTP(w, r)
		},
	)
	r.Get(`/r/{slug}`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.Redirect),
				logger,
				middleware.WithLogging,
			).ServeHTTP(w, r)
		},
	)
	r.Get(`/ping`, h.Ping)
	r.Get(`/api/internal/stats`,
		func(w http.ResponseWriter, r *http.Request) {
			middleware.Conveyor(
				http.HandlerFunc(h.InternalStats),
				logger,
				middleware.WithLogging,
			).ServeHTTP(w, r)
		},
	)

	server := &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: r,
	}

	go func() {
		var err error
		if cfg.EnableHTTPS {
			manager := &autocert.Manager{
				Prompt: autocert.AcceptTOS,
				Cache:  autocert.DirCache("certs"),
			}
			server.TLSConfig = manager.TLSConfig()
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("failed to start server", "error", err)
		}
	}()

	logger.Infow("server started", "address", cfg.ServerAddress, "storage", cfg.StorageType)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("server shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}

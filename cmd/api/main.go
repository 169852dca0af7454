//	@title			Travel Media API
//	@version		1.0
//	@description	File storage for trips: documents, photos, covers, avatars and wish-list images.
//
//	@host		localhost:8080
//	@BasePath	/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: **Bearer {token}**

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/travelsidecar/service/internal/config"
	"github.com/travelsidecar/service/internal/db"
	"github.com/travelsidecar/service/internal/filecrypto"
	"github.com/travelsidecar/service/internal/imaging"
	"github.com/travelsidecar/service/internal/media"
	appMiddleware "github.com/travelsidecar/service/internal/middleware"
	"github.com/travelsidecar/service/internal/storage"

	_ "github.com/travelsidecar/service/docs/swagger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := config.SetupLogger(cfg)

	if err := run(cfg, logger); err != nil {
		logger.Error("service stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL, logger); err != nil {
		return err
	}

	backend, err := storage.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if c, ok := backend.(io.Closer); ok {
		defer c.Close()
	}

	cipher, err := filecrypto.NewCipher(cfg.EncryptionSecret)
	if err != nil {
		return err
	}

	// Wire dependencies: repository → service → delivery → handler
	repo := media.NewCachedRepository(media.NewPostgresRepository(pool), cfg.CacheSize, cfg.CacheTTL)
	svc := media.NewService(repo, backend, cipher, imaging.NewDerivator(logger), logger)
	delivery := media.NewDelivery(svc, logger)
	fileHandler := media.NewHandler(svc, delivery, cfg.MaxUploadBytes, logger)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(logger))
	r.Use(appMiddleware.Metrics)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "If-None-Match", "Range", "X-Request-ID"},
		ExposedHeaders: []string{"ETag", "Last-Modified", "Accept-Ranges", "Content-Range", "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","storage":"` + backend.Name() + `"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Swagger UI at http://localhost:8080/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/files", fileHandler.Routes(cfg.JWTSecret))
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			slog.String("addr", srv.Addr),
			slog.String("storage", backend.Name()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// Package app contains the application setup for the catalog service.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopfox/catalog/internal/config"
	"github.com/shopfox/catalog/internal/imagestore"
	"github.com/shopfox/catalog/internal/service"
	"github.com/shopfox/catalog/internal/store"
	"github.com/shopfox/catalog/internal/transport/rest"
	"github.com/shopfox/catalog/pkg/server"
	"github.com/shopfox/catalog/pkg/web"
)

type Dependencies struct {
	CatalogService service.CatalogService
	DBPool         *pgxpool.Pool
	Logger         *slog.Logger

	// staticDir and staticPrefix are set when the disk media driver is
	// active and its files must be served by this process.
	staticDir    string
	staticPrefix string
}

// SetupDependencies builds the image store selected by configuration and the
// catalog service on top of it.
func SetupDependencies(ctx context.Context, dbPool *pgxpool.Pool, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		DBPool: dbPool,
		Logger: logger,
	}

	var images imagestore.Store
	switch cfg.Media.Driver {
	case "s3":
		s3, err := imagestore.NewMinioStore(ctx, imagestore.MinioOptions{
			Endpoint:  cfg.Media.S3.Endpoint,
			AccessKey: cfg.Media.S3.AccessKey,
			SecretKey: cfg.Media.S3.SecretKey,
			Bucket:    cfg.Media.S3.Bucket,
			UseSSL:    cfg.Media.S3.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to set up s3 image store: %w", err)
		}
		images = s3
	default:
		disk, err := imagestore.NewDiskStore(cfg.Media.Disk.Dir, cfg.Media.Disk.PublicPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to set up disk image store: %w", err)
		}
		images = disk
		deps.staticDir = disk.Dir()
		deps.staticPrefix = cfg.Media.Disk.PublicPrefix
	}

	deps.CatalogService = service.NewService(store.NewPgStore(dbPool), images, logger)
	return deps, nil
}

// SetupHttpHandler initializes the HTTP routes for the catalog service.
// Also used by handler-level tests to get the full routing table.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps)
	return mux
}

// wireRoutes sets up the HTTP routes for the catalog service.
func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	productHandler := rest.NewHandler(deps.CatalogService, deps.Logger)
	productHandler.RegisterRoutes(mux)

	if deps.staticDir != "" {
		prefix := strings.TrimSuffix(deps.staticPrefix, "/")
		fileServer := http.StripPrefix(prefix, http.FileServer(http.Dir(deps.staticDir)))
		mux.Get(prefix+"/*", fileServer.ServeHTTP)
	}

	mux.Method(http.MethodGet, "/healthz", rest.NewHealthHandler(deps.DBPool, deps.Logger))
	mux.Handle("/metrics", web.MetricsHandler())
}

// SetupHttpServer creates and configures an HTTP server for the catalog service.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	mux := SetupHttpHandler(deps)

	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}

	return server.NewHTTPServer(httpCfg, mux)
}

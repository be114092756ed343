// Package server exposes a firmware catalog over HTTP: the raw catalog, the
// indexed files, a JSON query API, zip archive downloads and prometheus
// metrics.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jamesainslie/fwindex/pkg/fwindex/archive"
	"github.com/jamesainslie/fwindex/pkg/fwindex/catalog"
	"github.com/jamesainslie/fwindex/pkg/fwindex/fetch"
	"github.com/jamesainslie/fwindex/pkg/fwindex/logging"
	"github.com/jamesainslie/fwindex/pkg/fwindex/query"
	"github.com/jamesainslie/fwindex/pkg/fwindex/types"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// shutdownTimeout bounds graceful shutdown once the serve context ends.
const shutdownTimeout = 10 * time.Second

// Options configures a Server.
type Options struct {
	// Catalog is the catalog file path or URL loaded by Reload.
	Catalog string

	// Fetcher retrieves file bytes for /files and archives.
	Fetcher archive.Fetcher

	// Source labels fetch metrics, e.g. "local", "http" or "s3".
	Source string

	// Search bounds the search endpoint.
	Search query.SearchOptions

	// Archive configures archive assembly.
	Archive archive.Options

	// Metrics enables the /metrics endpoint.
	Metrics bool
}

// snapshot is one loaded catalog together with its query engine and the
// encoded bytes served at /catalog.json.
type snapshot struct {
	engine   *query.Engine
	raw      []byte
	loadedAt time.Time
}

// Server serves one catalog at a time. A snapshot is swapped atomically, so
// requests always see a complete catalog or none.
type Server struct {
	opts    Options
	echo    *echo.Echo
	fetcher archive.Fetcher
	metrics *metrics
	log     *logging.Logger

	current atomic.Pointer[snapshot]
}

// New builds a server. No catalog is loaded until Reload or SetCatalog is
// called; until then the API answers 503.
func New(opts Options) *Server {
	if opts.Search.Limit <= 0 {
		opts.Search = query.DefaultSearchOptions()
	}
	if opts.Archive.BatchSize <= 0 {
		opts.Archive = archive.DefaultOptions()
	}
	if opts.Source == "" {
		opts.Source = "local"
	}

	s := &Server{
		opts:    opts,
		metrics: newMetrics(),
		log:     logging.Get("server"),
	}
	if opts.Fetcher != nil {
		s.fetcher = fetch.Instrument(opts.Fetcher, opts.Source, s.metrics.observeFetch)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(s.middleware)
	s.routes(e)
	s.echo = e

	return s
}

func (s *Server) routes(e *echo.Echo) {
	e.GET("/health", s.health)
	e.GET("/catalog.json", s.catalogJSON)
	e.GET("/files/*", s.file)

	api := e.Group("/api")
	api.GET("/facets", s.facets)
	api.GET("/list", s.list)
	api.GET("/stats", s.stats)
	api.GET("/search", s.search)
	api.GET("/archive", s.directoryArchive)
	api.POST("/archive", s.selectionArchive)

	if s.opts.Metrics {
		e.GET("/metrics", echo.WrapHandler(s.metrics.handler()))
	}
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Reload loads the configured catalog and swaps it in. On failure the
// previously loaded catalog, if any, stays in service.
func (s *Server) Reload(ctx context.Context) error {
	c, err := catalog.Load(ctx, s.opts.Catalog)
	if err != nil {
		s.metrics.observeLoad(0, 0, err)
		s.log.Error("catalog load failed", "catalog", s.opts.Catalog, "error", err)
		return err
	}
	return s.SetCatalog(c)
}

// SetCatalog swaps in an already loaded catalog.
func (s *Server) SetCatalog(c *types.Catalog) error {
	var buf bytes.Buffer
	if err := catalog.Encode(&buf, c); err != nil {
		s.metrics.observeLoad(0, 0, err)
		return fmt.Errorf("encoding catalog: %w", err)
	}

	s.current.Store(&snapshot{
		engine:   query.NewEngine(c),
		raw:      buf.Bytes(),
		loadedAt: time.Now(),
	})
	s.metrics.observeLoad(c.TotalFiles, c.TotalSize, nil)
	s.log.Info("catalog loaded",
		"files", c.TotalFiles,
		"size", types.FormatSize(c.TotalSize),
		"run_id", c.RunID)
	return nil
}

// Engine returns the query engine for the current catalog, or nil.
func (s *Server) Engine() *query.Engine {
	snap := s.current.Load()
	if snap == nil {
		return nil
	}
	return snap.engine
}

func (s *Server) snapshot() (*snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, errCatalogUnavailable
	}
	return snap, nil
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 3 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jamesainslie/fwindex/pkg/fwindex/catalog"
	"github.com/jamesainslie/fwindex/pkg/fwindex/config"
	"github.com/jamesainslie/fwindex/pkg/fwindex/fetch"
	"github.com/jamesainslie/fwindex/pkg/fwindex/indexer"
	"github.com/jamesainslie/fwindex/pkg/fwindex/logging"
	"github.com/jamesainslie/fwindex/pkg/fwindex/server"
	"github.com/jamesainslie/fwindex/pkg/fwindex/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve [root]",
	Short: "Serve the catalog, files and query API over HTTP",
	Long: `Serve a firmware tree over HTTP:

  GET  /catalog.json        the catalog
  GET  /files/<path>        a catalog file
  GET  /api/facets          filter values, aliases, totals
  GET  /api/list            one directory level (path, filters, sort)
  GET  /api/stats           recursive count and size under a path
  GET  /api/search          fuzzy + exact search (q, filters, limit)
  GET  /api/archive         zip of a directory (path, filters)
  POST /api/archive         zip of selected paths ({"paths": [...]})
  GET  /metrics             prometheus metrics
  GET  /health              liveness

With --index the tree is indexed before serving; with --watch it is
re-indexed after changes and the new catalog is swapped in.

Examples:
  fwindex serve /srv/firmware
  fwindex serve . --index --watch --addr :9000
  fwindex serve --catalog https://mirror.example.com/catalog.json --origin https://mirror.example.com`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", config.DefaultServeAddr, "listen address")
	serveCmd.Flags().String("origin", "", "fetch origin: local dir, http(s) URL or s3://bucket/prefix")
	serveCmd.Flags().Bool("index", false, "index the tree before serving")
	serveCmd.Flags().Bool("watch", false, "re-index the tree on changes")
	serveCmd.Flags().Bool("metrics", true, "expose /metrics")
	bindKey(serveCmd, "addr", "serve.addr")
	bindKey(serveCmd, "origin", "origin")
	bindKey(serveCmd, "index", "serve.index")
	bindKey(serveCmd, "watch", "serve.watch")
	bindKey(serveCmd, "metrics", "serve.metrics")
	rootCmd.AddCommand(serveCmd)
}

// originSource labels an origin for fetch metrics.
func originSource(origin string) string {
	switch {
	case strings.HasPrefix(origin, "s3://"):
		return "s3"
	case strings.HasPrefix(origin, "http://"), strings.HasPrefix(origin, "https://"):
		return "http"
	default:
		return "local"
	}
}

func runServe(_ *cobra.Command, args []string) error {
	if len(args) > 0 {
		cfg.Root = args[0]
	}
	log := logging.Get("server")

	ctx, cancel := signalContext()
	defer cancel()

	fetcher, err := fetch.Open(ctx, cfg.Origin, cfg.Root, s3Options(cfg.S3))
	if err != nil {
		return fmt.Errorf("opening origin: %w", err)
	}

	srv := server.New(server.Options{
		Catalog: cfg.CatalogPath(),
		Fetcher: fetcher,
		Source:  originSource(cfg.Origin),
		Search:  buildSearchOptions(),
		Archive: archiveOptions(),
		Metrics: cfg.Serve.Metrics,
	})

	watch := viper.GetBool("serve.watch")
	var opts indexer.Options
	if watch || viper.GetBool("serve.index") {
		if catalog.IsURL(cfg.CatalogPath()) {
			return errors.New("--index and --watch need a local catalog")
		}
		opts, err = buildIndexOptions(cfg, cfg.Root)
		if err != nil {
			return err
		}
	}

	if viper.GetBool("serve.index") {
		printInfo("Indexing %s...", opts.Root)
		c, res, err := indexer.New(opts).Run(ctx)
		if err != nil {
			return fmt.Errorf("index failed: %w", err)
		}
		if err := catalog.Write(opts.Output, c); err != nil {
			return err
		}
		printIndexSummary(opts.Output, c, res)
	}

	swap := func(c *types.Catalog) {
		c, err := overlayAliases(c)
		if err == nil {
			err = srv.SetCatalog(c)
		}
		if err != nil {
			log.Error("catalog swap failed", "error", err)
		}
	}

	switch c, loc, err := loadCatalog(ctx); {
	case err == nil:
		swap(c)
	case errors.Is(err, os.ErrNotExist):
		printInfo("No catalog at %s yet; serving 503 until one is built", loc)
	default:
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		printInfo("Serving %s on %s", cfg.Root, cfg.Serve.Addr)
		return srv.Start(gctx, cfg.Serve.Addr)
	})
	if watch {
		g.Go(func() error {
			return watchAndRebuild(gctx, opts, swap)
		})
	}
	return g.Wait()
}

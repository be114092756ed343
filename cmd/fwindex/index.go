package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jamesainslie/fwindex/pkg/fwindex/cache"
	"github.com/jamesainslie/fwindex/pkg/fwindex/catalog"
	"github.com/jamesainslie/fwindex/pkg/fwindex/config"
	"github.com/jamesainslie/fwindex/pkg/fwindex/indexer"
	"github.com/jamesainslie/fwindex/pkg/fwindex/types"
	"github.com/jamesainslie/fwindex/pkg/fwindex/watcher"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var indexCmd = &cobra.Command{
	Use:   "index [root]",
	Short: "Walk a firmware tree and write its catalog",
	Long: `Walk the firmware tree and write one catalog describing every regular
file: path, size, modification time, device/isp/category facets, extension,
type label and content hash.

The catalog is written atomically to <root>/catalog.json unless --output or
the catalog setting says otherwise. Root-level directories matching
exclude_dirs and root-level files named in exclude_files are skipped.

Examples:
  fwindex index /srv/firmware
  fwindex index . --hash blake2b --workers 4
  fwindex index . --hash-cache --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().String("output", "", "catalog destination (default: <root>/catalog.json)")
	indexCmd.Flags().String("hash", config.DefaultHash, "content digest: sha256 or blake2b")
	indexCmd.Flags().Bool("hash-cache", false, "reuse digests of unchanged files from the cache")
	indexCmd.Flags().Bool("watch", false, "keep running and re-index on changes")
	indexCmd.Flags().IntP("workers", "w", config.DefaultIndexWorkers, "walk workers")
	bindKey(indexCmd, "output", "index.output")
	bindKey(indexCmd, "hash-cache", "index.hash_cache")
	bindKey(indexCmd, "workers", "index.workers")
	bindKey(indexCmd, "watch", "index.watch")
	rootCmd.AddCommand(indexCmd)
}

// indexOutput picks the catalog destination for root.
func indexOutput(c *config.Config, root, flag string) string {
	switch {
	case flag != "":
		return flag
	case c.Catalog != "" && !catalog.IsURL(c.Catalog):
		return c.Catalog
	default:
		return filepath.Join(root, config.DefaultCatalogName)
	}
}

// buildIndexOptions assembles indexer options from the configuration.
func buildIndexOptions(c *config.Config, root string) (indexer.Options, error) {
	aliases, err := resolveAliases(c)
	if err != nil {
		return indexer.Options{}, err
	}
	opts := indexer.Options{
		Root:         root,
		Output:       indexOutput(c, root, viper.GetString("index.output")),
		ExcludeDirs:  c.ExcludeDirs,
		ExcludeFiles: c.ExcludeFiles,
		Hash:         c.Hash,
		Workers:      c.Index.Workers,
		Aliases:      aliases,
	}
	return opts, opts.Validate()
}

func runIndex(_ *cobra.Command, args []string) error {
	root := cfg.Root
	if len(args) > 0 {
		root = args[0]
	}

	opts, err := buildIndexOptions(cfg, root)
	if err != nil {
		return err
	}

	if cfg.Index.HashCache {
		store, err := cache.OpenStore(cfg.Index.HashCachePath)
		if err != nil {
			return fmt.Errorf("opening hash cache: %w", err)
		}
		defer store.Close()
		opts.Cache = store
	}

	ctx, cancel := signalContext()
	defer cancel()

	progress := newProgressLine()
	opts.OnProgress = progress.update

	printInfo("Indexing %s (%s)...", opts.Root, opts.Hash)
	c, res, err := indexer.New(opts).Run(ctx)
	progress.clear()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			printInfo("Index cancelled")
			return nil
		}
		return fmt.Errorf("index failed: %w", err)
	}
	if err := catalog.Write(opts.Output, c); err != nil {
		return err
	}
	printIndexSummary(opts.Output, c, res)

	if !viper.GetBool("index.watch") {
		return nil
	}
	return watchAndRebuild(ctx, opts, nil)
}

// watchAndRebuild re-indexes opts.Root after every debounced burst of
// changes until ctx is cancelled. onCatalog receives each new catalog.
func watchAndRebuild(ctx context.Context, opts indexer.Options, onCatalog func(*types.Catalog)) error {
	w, err := watcher.New(cfg.Index.WatchDebounce)
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer w.Close()

	w.Ignore(opts.Output)
	if err := w.Watch(opts.Root); err != nil {
		return fmt.Errorf("watching %s: %w", opts.Root, err)
	}
	printInfo("Watching %d directories under %s (Ctrl+C to stop)", w.Watched(), opts.Root)

	opts.OnProgress = nil
	rebuild := watcher.Rebuild(opts, func(c *types.Catalog) {
		printInfo("Catalog updated: %d files, %s", c.TotalFiles, types.FormatSize(c.TotalSize))
		if onCatalog != nil {
			onCatalog(c)
		}
	})
	if err := w.Run(ctx, rebuild); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printIndexSummary(output string, c *types.Catalog, res *indexer.Result) {
	printInfo("Wrote %s: %d files, %s in %d directories (%s)",
		output, c.TotalFiles, types.FormatSize(c.TotalSize), res.DirsWalked, res.Elapsed.Round(time.Millisecond))
	if res.CacheHits+res.CacheMisses > 0 {
		printInfo("Hash cache: %d hits, %d misses", res.CacheHits, res.CacheMisses)
	}
	if len(res.Warnings) > 0 {
		printInfo("Skipped %d files:", len(res.Warnings))
		for _, w := range res.Warnings {
			printInfo("  %s: %s", w.Path, w.Error)
		}
	}
}

package watcher

import (
	"context"
	"fmt"

	"github.com/jamesainslie/fwindex/pkg/fwindex/catalog"
	"github.com/jamesainslie/fwindex/pkg/fwindex/indexer"
	"github.com/jamesainslie/fwindex/pkg/fwindex/logging"
	"github.com/jamesainslie/fwindex/pkg/fwindex/types"
)

// Rebuild returns a Run callback that re-indexes with opts and atomically
// replaces the catalog at opts.Output. onCatalog, when set, receives every
// catalog written.
func Rebuild(opts indexer.Options, onCatalog func(*types.Catalog)) func(context.Context, int) error {
	log := logging.Get("watcher")
	return func(ctx context.Context, events int) error {
		c, res, err := indexer.New(opts).Run(ctx)
		if err != nil {
			return fmt.Errorf("reindex: %w", err)
		}
		if err := catalog.Write(opts.Output, c); err != nil {
			return err
		}

		log.Info("catalog rebuilt",
			"events", events,
			"files", c.TotalFiles,
			"size", types.FormatSize(c.TotalSize),
			"warnings", len(res.Warnings),
			"elapsed", res.Elapsed)
		if onCatalog != nil {
			onCatalog(c)
		}
		return nil
	}
}

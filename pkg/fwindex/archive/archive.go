// Package archive assembles zip downloads from catalog records. Files are
// fetched in fixed-size concurrent batches, a failed fetch omits that file,
// and compression runs as a separate phase once every fetch has finished.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jamesainslie/fwindex/pkg/fwindex/config"
	"github.com/jamesainslie/fwindex/pkg/fwindex/logging"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/errgroup"
)

// ErrNoItems is returned when there is nothing to archive.
var ErrNoItems = errors.New("no files to archive")

// Fetcher retrieves a file's bytes by its catalog path.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (io.ReadCloser, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, path string) (io.ReadCloser, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, path string) (io.ReadCloser, error) {
	return f(ctx, path)
}

// FetchProgress reports the fetch phase.
type FetchProgress struct {
	Done   int
	Total  int
	Failed int
	Bytes  int64
	Path   string
}

// CompressProgress reports the compression phase.
type CompressProgress struct {
	Done  int
	Total int
	Name  string
}

// Omission is a file left out because its fetch failed.
type Omission struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Result summarizes an assembled archive.
type Result struct {
	Entries   int           `json:"entries"`
	Bytes     int64         `json:"bytes"`
	Omissions []Omission    `json:"omissions,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Options configures Build.
type Options struct {
	// BatchSize bounds in-flight fetches. Zero uses the default of 5.
	BatchSize int

	// Level is the deflate level. Zero uses flate.DefaultCompression.
	Level int

	// OnFetch is called after each fetch completes. Calls are serialized.
	OnFetch func(FetchProgress)

	// OnCompress is called after each entry is written.
	OnCompress func(CompressProgress)
}

// DefaultOptions returns the default batch size and compression level.
func DefaultOptions() Options {
	return Options{
		BatchSize: config.DefaultArchiveBatchSize,
		Level:     flate.DefaultCompression,
	}
}

type fetched struct {
	item Item
	data []byte
	err  error
}

// Build fetches every item and writes a zip archive to w. A failed fetch is
// logged and reported in Result.Omissions; it does not fail the build.
// Cancelling ctx stops after the current batch and returns ctx.Err().
func Build(ctx context.Context, w io.Writer, items []Item, fetcher Fetcher, opts Options) (*Result, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = config.DefaultArchiveBatchSize
	}
	if opts.Level == 0 {
		opts.Level = flate.DefaultCompression
	}

	log := logging.Get("archive")
	start := time.Now()

	results, err := fetchAll(ctx, items, fetcher, opts)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	var ok []fetched
	for _, f := range results {
		if f.err != nil {
			log.Warn("omitting file from archive", "path", f.item.Path, "error", f.err)
			res.Omissions = append(res.Omissions, Omission{Path: f.item.Path, Error: f.err.Error()})
			continue
		}
		ok = append(ok, f)
	}

	if err := compress(ctx, w, ok, opts); err != nil {
		return nil, err
	}

	for _, f := range ok {
		res.Bytes += int64(len(f.data))
	}
	res.Entries = len(ok)
	res.Elapsed = time.Since(start)
	log.Info("archive built",
		"entries", res.Entries,
		"omitted", len(res.Omissions),
		"bytes", res.Bytes,
		"elapsed", res.Elapsed)
	return res, nil
}

// fetchAll fetches items in consecutive batches of opts.BatchSize. Results
// keep the order of items.
func fetchAll(ctx context.Context, items []Item, fetcher Fetcher, opts Options) ([]fetched, error) {
	results := make([]fetched, len(items))
	var (
		mu       sync.Mutex
		progress = FetchProgress{Total: len(items)}
	)

	for start := 0; start < len(items); start += opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+opts.BatchSize, len(items))

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				item := items[i]
				data, err := fetchOne(ctx, fetcher, item.Path)
				results[i] = fetched{item: item, data: data, err: err}

				mu.Lock()
				defer mu.Unlock()
				progress.Done++
				progress.Path = item.Path
				if err != nil {
					progress.Failed++
				} else {
					progress.Bytes += int64(len(data))
				}
				if opts.OnFetch != nil {
					opts.OnFetch(progress)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func fetchOne(ctx context.Context, fetcher Fetcher, path string) ([]byte, error) {
	rc, err := fetcher.Fetch(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return buf.Bytes(), nil
}

func compress(ctx context.Context, w io.Writer, files []fetched, opts Options) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, opts.Level)
	})

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			_ = zw.Close()
			return err
		}

		hdr := &zip.FileHeader{
			Name:     f.item.Name,
			Method:   zip.Deflate,
			Modified: f.item.ModifiedAt,
		}
		hdr.SetMode(0o644)
		entry, err := zw.CreateHeader(hdr)
		if err != nil {
			_ = zw.Close()
			return fmt.Errorf("creating entry %s: %w", f.item.Name, err)
		}
		if _, err := entry.Write(f.data); err != nil {
			_ = zw.Close()
			return fmt.Errorf("writing entry %s: %w", f.item.Name, err)
		}

		if opts.OnCompress != nil {
			opts.OnCompress(CompressProgress{Done: i + 1, Total: len(files), Name: f.item.Name})
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing archive: %w", err)
	}
	return nil
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jamesainslie/fwindex/pkg/fwindex/archive"
	"github.com/jamesainslie/fwindex/pkg/fwindex/config"
	"github.com/jamesainslie/fwindex/pkg/fwindex/fetch"
	"github.com/jamesainslie/fwindex/pkg/fwindex/query"
	"github.com/jamesainslie/fwindex/pkg/fwindex/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var archiveCmd = &cobra.Command{
	Use:   "archive [path]",
	Short: "Download a directory or a selection of files as a zip",
	Long: `Assemble a zip archive from catalog files.

With a path, every file under that directory (filters applied) is archived
with the directory prefix stripped, as <dirname>.zip. With --select, the
listed paths are archived with their full catalog paths, as
firmware-selection-<timestamp>.zip.

Files are fetched from --origin: the local tree when empty, an http(s) mirror
URL, or s3://bucket/prefix. A file that cannot be fetched is left out and
reported; the rest of the archive is still written.

Examples:
  fwindex archive A/ISP1
  fwindex archive TG789vac --type Configuration --out /tmp
  fwindex archive --select "A/ISP1/f1.xml,A/ISP 2/f2.bin"
  fwindex archive A --origin https://mirror.example.com/firmware`,
	Args: cobra.MaximumNArgs(1),
	RunE: runArchive,
}

func init() {
	addFilterFlags(archiveCmd)
	archiveCmd.Flags().String("select", "", "comma-separated catalog paths to archive")
	archiveCmd.Flags().String("origin", "", "fetch origin: local dir, http(s) URL or s3://bucket/prefix")
	archiveCmd.Flags().String("out", "", "output directory or .zip file (default: archive.output_dir)")
	archiveCmd.Flags().Int("batch-size", config.DefaultArchiveBatchSize, "concurrent fetches")
	bindKey(archiveCmd, "origin", "origin")
	bindKey(archiveCmd, "out", "archive.output_dir")
	bindKey(archiveCmd, "batch-size", "archive.batch_size")
	rootCmd.AddCommand(archiveCmd)
}

// archivePlan is what to fetch and what to call the result.
type archivePlan struct {
	Name    string
	Items   []archive.Item
	Missing []string
}

// planArchive resolves the command arguments against the catalog.
func planArchive(engine *query.Engine, args []string, selection []string, f query.Filters, now time.Time) (*archivePlan, error) {
	if len(selection) > 0 {
		if len(args) > 0 {
			return nil, errors.New("give a path or --select, not both")
		}
		records, missing := archive.ResolveSelection(engine.Catalog(), selection)
		if len(records) == 0 {
			return nil, fmt.Errorf("none of the %d selected paths are in the catalog", len(selection))
		}
		return &archivePlan{
			Name:    archive.SelectionArchiveName(now),
			Items:   archive.SelectionItems(records),
			Missing: missing,
		}, nil
	}

	prefix := pathArg(args)
	items := archive.DirectoryItems(engine.Records(f), prefix)
	if len(items) == 0 {
		return nil, fmt.Errorf("no files under %q match", displayDir(prefix))
	}
	return &archivePlan{Name: archive.DirectoryArchiveName(prefix), Items: items}, nil
}

// archiveDestination joins the archive name onto out unless out already
// names a zip file.
func archiveDestination(out, name string) string {
	if out == "" {
		out = "."
	}
	if filepath.Ext(out) == ".zip" {
		return out
	}
	return filepath.Join(out, name)
}

func displayDir(prefix string) string {
	if prefix == "" {
		return "/"
	}
	return prefix
}

// archiveOptions applies the configured batch size to the defaults.
func archiveOptions() archive.Options {
	opts := archive.DefaultOptions()
	if cfg.Archive.BatchSize > 0 {
		opts.BatchSize = cfg.Archive.BatchSize
	}
	return opts
}

func s3Options(c config.S3Config) fetch.S3Options {
	return fetch.S3Options{
		Region:    c.Region,
		Endpoint:  c.Endpoint,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
	}
}

func runArchive(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	engine, _, err := openEngine(ctx)
	if err != nil {
		return err
	}

	selection := parseCommaSeparated(viper.GetString("select"))
	plan, err := planArchive(engine, args, selection, buildFilters(), time.Now())
	if err != nil {
		return err
	}
	for _, p := range plan.Missing {
		printInfo("Skipping %s: not in catalog", p)
	}

	fetcher, err := fetch.Open(ctx, cfg.Origin, cfg.Root, s3Options(cfg.S3))
	if err != nil {
		return fmt.Errorf("opening origin: %w", err)
	}

	opts := archiveOptions()
	progress := newProgressLine()
	opts.OnFetch = func(p archive.FetchProgress) {
		progress.printf("Fetching %d/%d (%s)", p.Done, p.Total, types.FormatSize(p.Bytes))
	}
	opts.OnCompress = func(p archive.CompressProgress) {
		progress.printf("Compressing %d/%d", p.Done, p.Total)
	}

	dest := archiveDestination(cfg.Archive.OutputDir, plan.Name)
	res, err := writeArchiveFile(ctx, dest, plan.Items, fetcher, opts)
	progress.clear()
	if err != nil {
		return err
	}

	printInfo("Wrote %s: %d files, %s in %s", dest, res.Entries, types.FormatSize(res.Bytes), res.Elapsed.Round(time.Millisecond))
	if len(res.Omissions) > 0 {
		printInfo("Omitted %d files that could not be fetched:", len(res.Omissions))
		for _, o := range res.Omissions {
			printInfo("  %s: %s", o.Path, o.Error)
		}
	}
	return nil
}

// writeArchiveFile builds the archive into a temp file next to dest and
// renames it into place once complete.
func writeArchiveFile(ctx context.Context, dest string, items []archive.Item, fetcher archive.Fetcher, opts archive.Options) (*archive.Result, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	res, err := archive.Build(ctx, bw, items, fetcher, opts)
	if err == nil {
		err = bw.Flush()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("building archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return nil, fmt.Errorf("saving archive: %w", err)
	}
	return res, nil
}

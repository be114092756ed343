package main

import (
	"context"
	"fmt"

	"github.com/jamesainslie/fwindex/cmd/fwindex/tui"
	"github.com/jamesainslie/fwindex/pkg/fwindex/archive"
	"github.com/jamesainslie/fwindex/pkg/fwindex/fetch"
	"github.com/jamesainslie/fwindex/pkg/fwindex/query"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var browseCmd = &cobra.Command{
	Use:   "browse [path]",
	Short: "Browse the catalog interactively",
	Long: `Open the interactive catalog browser.

Navigate directories, narrow the listing with facet filters, search the whole
catalog as you type, select files and download them as a zip. The "y" key
shows a link that --link accepts to reopen the same view.

Examples:
  fwindex browse
  fwindex browse A/ISP1 --ext xml
  fwindex browse --link 'path=TG789vac&device=TG-789'`,
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{annotationTUI: "true"},
	RunE:        runBrowse,
}

func init() {
	addFilterFlags(browseCmd)
	addSortFlags(browseCmd)
	browseCmd.Flags().String("query", "", "start with this search")
	browseCmd.Flags().String("link", "", "start from an encoded browse link")
	browseCmd.Flags().String("origin", "", "fetch origin for downloads: local dir, http(s) URL or s3://bucket/prefix")
	browseCmd.Flags().String("out", "", "download directory (default: archive.output_dir)")
	bindKey(browseCmd, "query", "browse.query")
	bindKey(browseCmd, "link", "browse.link")
	bindKey(browseCmd, "origin", "origin")
	bindKey(browseCmd, "out", "archive.output_dir")
	rootCmd.AddCommand(browseCmd)
}

// browseSession builds the starting session. A link replaces the flags.
func browseSession(args []string) (*query.Session, error) {
	if link := viper.GetString("browse.link"); link != "" {
		s, err := query.DecodeSession(link)
		if err != nil {
			return nil, fmt.Errorf("invalid --link: %w", err)
		}
		return s, nil
	}

	sort, err := buildSort()
	if err != nil {
		return nil, err
	}
	s := query.NewSession()
	s.Navigate(pathArg(args))
	s.Filters = buildFilters()
	s.Sort = sort
	s.Query = viper.GetString("browse.query")
	return s, nil
}

func runBrowse(cmd *cobra.Command, args []string) error {
	session, err := browseSession(args)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	engine, _, err := openEngine(ctx)
	if err != nil {
		return err
	}

	fetcher, err := fetch.Open(ctx, cfg.Origin, cfg.Root, s3Options(cfg.S3))
	if err != nil {
		return fmt.Errorf("opening origin: %w", err)
	}
	download := func(ctx context.Context, name string, items []archive.Item, opts archive.Options) (string, *archive.Result, error) {
		opts.BatchSize = archiveOptions().BatchSize
		dest := archiveDestination(cfg.Archive.OutputDir, name)
		res, err := writeArchiveFile(ctx, dest, items, fetcher, opts)
		return dest, res, err
	}

	return tui.Run(tui.Options{
		Engine:   engine,
		Session:  session,
		Search:   buildSearchOptions(),
		Debounce: cfg.Search.Debounce,
		Download: download,
	})
}

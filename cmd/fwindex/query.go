package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/jamesainslie/fwindex/pkg/fwindex/config"
	"github.com/jamesainslie/fwindex/pkg/fwindex/output"
	"github.com/jamesainslie/fwindex/pkg/fwindex/query"
	"github.com/jamesainslie/fwindex/pkg/fwindex/types"
	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List one directory level of the catalog",
	Long: `List the immediate children of a catalog directory. Directories show the
number of files beneath them; a ".." entry leads back up unless the path is
the root. Filters apply at every depth, so a directory is listed only if it
still holds a matching file.

Examples:
  fwindex ls
  fwindex ls A/ISP1 --ext xml
  fwindex ls TG-789 --sort size -r -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLs,
}

var statsCmd = &cobra.Command{
	Use:   "stats [path]",
	Short: "Show recursive file count and size under a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStats,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the whole catalog by path, name and facets",
	Long: `Search every catalog record. A fuzzy pass ranks matches by name, path,
device and ISP; an exact token pass then adds records whose path tokens all
start with the query tokens. Filters narrow the merged result.

Examples:
  fwindex search f1
  fwindex search "tg789 telia" --type Configuration
  fwindex search busybox --limit 10 -o csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var facetsCmd = &cobra.Command{
	Use:   "facets",
	Short: "Show the filter values present in the catalog",
	Args:  cobra.NoArgs,
	RunE:  runFacets,
}

func init() {
	for _, cmd := range []*cobra.Command{lsCmd, statsCmd, searchCmd} {
		addFilterFlags(cmd)
		addOutputFlag(cmd)
	}
	addSortFlags(lsCmd)

	searchCmd.Flags().IntP("limit", "n", config.DefaultSearchLimit, "maximum results")
	searchCmd.Flags().Float64("threshold", config.DefaultSearchThreshold, "minimum fuzzy score between 0 and 1")
	bindKey(searchCmd, "limit", "search.limit")
	bindKey(searchCmd, "threshold", "search.threshold")

	rootCmd.AddCommand(lsCmd, statsCmd, searchCmd, facetsCmd)
}

func pathArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return query.CleanPrefix(args[0])
}

func runLs(cmd *cobra.Command, args []string) error {
	s, err := buildSort()
	if err != nil {
		return err
	}
	engine, loc, err := openEngine(commandContext(cmd))
	if err != nil {
		return err
	}

	prefix := pathArg(args)
	entries := engine.List(prefix, buildFilters(), s)
	result := &output.Result{
		Source:      loc,
		GeneratedAt: engine.Catalog().GeneratedAt,
		Path:        prefix,
		Rows:        output.EntryRows(entries),
	}
	if prefix != "" && len(entries) == 1 && entries[0].Kind == query.KindParent {
		result.Warnings = append(result.Warnings, fmt.Sprintf("nothing under %s matches", prefix))
	}
	return render(result)
}

func runStats(cmd *cobra.Command, args []string) error {
	engine, loc, err := openEngine(commandContext(cmd))
	if err != nil {
		return err
	}
	prefix := pathArg(args)
	return render(&output.Result{
		Source:      loc,
		GeneratedAt: engine.Catalog().GeneratedAt,
		Path:        prefix,
		Stats:       output.StatsSummary(engine.Stats(prefix, buildFilters())),
	})
}

func runSearch(cmd *cobra.Command, args []string) error {
	q := strings.TrimSpace(strings.Join(args, " "))
	if q == "" {
		return fmt.Errorf("search query is empty")
	}
	opts := buildSearchOptions()
	if opts.Threshold < 0 || opts.Threshold > 1 {
		return fmt.Errorf("invalid --threshold %g: must be between 0 and 1", opts.Threshold)
	}

	engine, loc, err := openEngine(commandContext(cmd))
	if err != nil {
		return err
	}
	hits := engine.Search(q, buildFilters(), opts)
	return render(&output.Result{
		Source:      loc,
		GeneratedAt: engine.Catalog().GeneratedAt,
		Query:       q,
		Rows:        output.HitRows(hits),
	})
}

func runFacets(cmd *cobra.Command, _ []string) error {
	engine, _, err := openEngine(commandContext(cmd))
	if err != nil {
		return err
	}
	choices := engine.Choices()
	c := engine.Catalog()

	fmt.Printf("Catalog:    %d files, %s, %s\n", c.TotalFiles, types.FormatSize(c.TotalSize), c.HashAlgorithm)
	printFacet("Devices", choices.Devices)
	printFacet("ISPs", choices.ISPs)
	printFacet("Types", choices.Types)
	printFacet("Extensions", choices.Extensions)
	if len(c.Aliases) > 0 {
		fmt.Println("Aliases:")
		for _, alias := range slices.Sorted(maps.Keys(c.Aliases)) {
			fmt.Printf("  %s -> %s\n", alias, c.Aliases[alias])
		}
	}
	return nil
}

func printFacet(label string, values []string) {
	if len(values) == 0 {
		fmt.Printf("%-11s (none)\n", label+":")
		return
	}
	fmt.Printf("%-11s %s\n", label+":", strings.Join(values, ", "))
}

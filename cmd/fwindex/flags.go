package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jamesainslie/fwindex/pkg/fwindex/output"
	"github.com/jamesainslie/fwindex/pkg/fwindex/query"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// defaultOutputFormat is used when -o is not given.
const defaultOutputFormat = "pretty"

// addFilterFlags registers the facet filter flags.
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("type", "", "only files with this type label (e.g. Configuration)")
	cmd.Flags().String("device", "", "only files of this device or device alias")
	cmd.Flags().String("isp", "", "only files of this ISP")
	cmd.Flags().String("ext", "", "only files with this extension (xml or .xml)")
	bindKey(cmd, "type", "filter.type")
	bindKey(cmd, "device", "filter.device")
	bindKey(cmd, "isp", "filter.isp")
	bindKey(cmd, "ext", "filter.extension")
}

// addSortFlags registers --sort and --reverse.
func addSortFlags(cmd *cobra.Command) {
	keys := make([]string, 0, len(query.SortKeys()))
	for _, k := range query.SortKeys() {
		keys = append(keys, string(k))
	}
	cmd.Flags().String("sort", string(query.SortByName), "sort by: "+strings.Join(keys, ", "))
	cmd.Flags().BoolP("reverse", "r", false, "reverse sort order")
}

// addOutputFlag registers -o/--output-format.
func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output-format", "o", defaultOutputFormat, "output format: "+strings.Join(output.Available(), ", "))
}

// buildFilters reads the filter flags.
func buildFilters() query.Filters {
	return query.Filters{
		Type:      strings.TrimSpace(viper.GetString("filter.type")),
		Device:    strings.TrimSpace(viper.GetString("filter.device")),
		ISP:       strings.TrimSpace(viper.GetString("filter.isp")),
		Extension: query.NormalizeExtension(viper.GetString("filter.extension")),
	}
}

// buildSort reads --sort and --reverse.
func buildSort() (query.Sort, error) {
	key, err := query.ParseSortKey(viper.GetString("sort"))
	if err != nil {
		return query.Sort{}, fmt.Errorf("invalid --sort: %w", err)
	}
	return query.Sort{Key: key, Desc: viper.GetBool("reverse")}, nil
}

// buildSearchOptions reads the search limit and threshold.
func buildSearchOptions() query.SearchOptions {
	opts := query.DefaultSearchOptions()
	if n := viper.GetInt("search.limit"); n > 0 {
		opts.Limit = n
	}
	if viper.IsSet("search.threshold") {
		opts.Threshold = viper.GetFloat64("search.threshold")
	}
	return opts
}

// getFormatter returns the formatter selected with -o.
func getFormatter() (output.Formatter, error) {
	name := viper.GetString("output_format")
	if name == "" {
		name = defaultOutputFormat
	}
	f, err := output.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown output format %q: available formats are %v", name, output.Available())
	}
	return f, nil
}

// render formats r with the selected formatter and prints it.
func render(r *output.Result) error {
	formatter, err := getFormatter()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, r); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	fmt.Print(buf.String())
	return nil
}

// parseCommaSeparated splits a comma-separated list, dropping empty items.
func parseCommaSeparated(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

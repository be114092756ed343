package tui

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/fwindex/pkg/fwindex/types"
)

// renderAppHeader renders the title line with catalog totals and the
// current selection.
func renderAppHeader(c *types.Catalog, selected int, selectedSize int64) string {
	appName := titleStyle.Render("FWINDEX")
	stats := mutedTextStyle.Render(fmt.Sprintf("  %s files  •  %s  •  built %s",
		humanize.Comma(int64(c.TotalFiles)),
		types.FormatSize(c.TotalSize),
		humanize.Time(c.GeneratedAt)))

	header := " " + appName + stats
	if selected > 0 {
		header += successTextStyle.Bold(true).Render(
			fmt.Sprintf("  ✓ %d selected (%s)", selected, types.FormatSize(selectedSize)))
	}
	return header
}

// renderLocation renders the current directory or search line.
func renderLocation(path, search string, rows int, filters string) string {
	var line string
	if search != "" {
		line = titleStyle.Render("  Search: ") + search + mutedTextStyle.Render(fmt.Sprintf("  (%d hits)", rows))
	} else {
		line = titleStyle.Render("  Path: ") + "/" + path
	}
	if filters != "" {
		line += warningTextStyle.Render("  [" + filters + "]")
	}
	return line
}

// renderArchiveMetrics renders the archive summary line.
func renderArchiveMetrics(entries int, bytes int64, elapsed time.Duration) string {
	return mutedTextStyle.Render(fmt.Sprintf("  %s files  |  %s  |  %v",
		humanize.Comma(int64(entries)), types.FormatSize(bytes), elapsed.Round(time.Millisecond)))
}

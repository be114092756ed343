package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// PrettyFormatter formats output with colors and boxes using lipgloss.
// It is the default for interactive terminals.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")

	if r.Stats != nil {
		w.WriteString(f.formatStats(r.Stats))
	} else {
		w.WriteString(f.formatTable(r))
		w.WriteString(f.formatFooter(r))
	}
	w.WriteString("\n")

	if len(r.Warnings) > 0 {
		w.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
		w.WriteString("\n")
		for _, warning := range r.Warnings {
			w.WriteString(WarningStyle.Render("  " + warning))
			w.WriteString("\n")
		}
	}
	return nil
}

func (f *PrettyFormatter) formatHeader(r *Result) string {
	parts := []string{LabelStyle.Render("Catalog:") + " " + ValueStyle.Render(r.Source)}
	if !r.GeneratedAt.IsZero() {
		parts = append(parts, LabelStyle.Render("Built:")+" "+MutedStyle.Render(humanize.Time(r.GeneratedAt)))
	}
	if r.Query != "" {
		parts = append(parts, LabelStyle.Render("Search:")+" "+ValueStyle.Render(fmt.Sprintf("%q", r.Query)))
	} else {
		parts = append(parts, LabelStyle.Render("Path:")+" "+ValueStyle.Render(displayPath(r.Path)))
	}
	return HeaderBox.Render(strings.Join(parts, "  "))
}

func (f *PrettyFormatter) formatStats(s *Summary) string {
	lines := []string{
		LabelStyle.Render("Path: ") + ValueStyle.Render(displayPath(s.Path)),
		LabelStyle.Render("Files:") + " " + ValueStyle.Render(humanize.Comma(int64(s.Count))),
		LabelStyle.Render("Size: ") + SizeStyle.Render(s.SizeHuman),
	}
	return FooterBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) formatTable(r *Result) string {
	if len(r.Rows) == 0 {
		return MutedStyle.Render("  No files found matching criteria") + "\n"
	}

	sizeWidth := 8
	for i := range r.Rows {
		if n := len(r.Rows[i].SizeHuman); n > sizeWidth {
			sizeWidth = n
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "  %s  %s\n",
		TableHeaderStyle.Render(padLeft("SIZE", sizeWidth)),
		TableHeaderStyle.Render("PATH"))

	for i := range r.Rows {
		row := &r.Rows[i]
		switch row.Kind {
		case "parent":
			fmt.Fprintf(&sb, "  %s  %s\n", strings.Repeat(" ", sizeWidth), MutedStyle.Render(row.Name))
		case "dir":
			fmt.Fprintf(&sb, "  %s  %s %s\n",
				SizeStyle.Render(padLeft(row.SizeHuman, sizeWidth)),
				DirStyle.Render(row.Name+"/"),
				MutedStyle.Render(fmt.Sprintf("(%d files)", row.Count)))
		default:
			name := row.Path
			if row.Kind == "file" {
				name = row.Name
			}
			fmt.Fprintf(&sb, "  %s  %s %s\n",
				SizeStyle.Render(padLeft(row.SizeHuman, sizeWidth)),
				ValueStyle.Render(name),
				MutedStyle.Render(row.Type))
		}
	}
	return sb.String()
}

func (f *PrettyFormatter) formatFooter(r *Result) string {
	var n int
	for i := range r.Rows {
		if r.Rows[i].Kind != "parent" {
			n++
		}
	}
	parts := []string{
		LabelStyle.Render("Entries:") + " " + ValueStyle.Render(humanize.Comma(int64(n))),
		LabelStyle.Render("Total:") + " " + SizeStyle.Render(humanize.IBytes(uint64(r.TotalSize()))),
		MutedStyle.Render("Use -o plain for unformatted output"),
	}
	return FooterBox.Render(strings.Join(parts, "  "))
}

// padLeft pads s with spaces on the left to the given width.
func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)

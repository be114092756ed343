package output

import (
	"bytes"
	"fmt"
	"strconv"
	"text/tabwriter"
)

// PlainFormatter formats output as an aligned table without styling.
// It is suitable for scripting and piping.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if r.Stats != nil {
		fmt.Fprintf(tw, "PATH\t%s\n", displayPath(r.Stats.Path))
		fmt.Fprintf(tw, "FILES\t%d\n", r.Stats.Count)
		fmt.Fprintf(tw, "SIZE\t%s\n", r.Stats.SizeHuman)
		return tw.Flush()
	}

	if _, err := tw.Write([]byte("KIND\tSIZE\tTYPE\tPATH\n")); err != nil {
		return err
	}
	for i := range r.Rows {
		row := &r.Rows[i]
		size := row.SizeHuman
		label := row.Type
		switch row.Kind {
		case "parent":
			size, label = "", ""
		case "dir":
			label = strconv.Itoa(row.Count) + " files"
		}
		path := row.Path
		if row.Kind == "parent" {
			path = row.Name
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row.Kind, size, label, path); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

// Ensure PlainFormatter implements Formatter.
var _ Formatter = (*PlainFormatter)(nil)

package output

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"
)

// CSVFormatter formats output as RFC 4180 comma-separated values.
type CSVFormatter struct{}

var csvHeader = []string{"kind", "path", "name", "size", "modified_at", "type", "device", "isp", "extension", "count", "score", "hash"}

// Format writes the formatted output to the buffer.
func (f *CSVFormatter) Format(w *bytes.Buffer, r *Result) error {
	writer := csv.NewWriter(w)

	if r.Stats != nil {
		if err := writer.Write([]string{"path", "count", "size"}); err != nil {
			return err
		}
		if err := writer.Write([]string{
			r.Stats.Path,
			strconv.Itoa(r.Stats.Count),
			strconv.FormatInt(r.Stats.Size, 10),
		}); err != nil {
			return err
		}
		writer.Flush()
		return writer.Error()
	}

	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for i := range r.Rows {
		row := &r.Rows[i]
		if row.Kind == "parent" {
			continue
		}
		var modified, score string
		if !row.ModifiedAt.IsZero() {
			modified = row.ModifiedAt.UTC().Format(time.RFC3339)
		}
		if row.Kind == "hit" {
			score = strconv.FormatFloat(row.Score, 'f', 4, 64)
		}
		if err := writer.Write([]string{
			row.Kind,
			row.Path,
			row.Name,
			strconv.FormatInt(row.Size, 10),
			modified,
			row.Type,
			row.Device,
			row.ISP,
			row.Extension,
			strconv.Itoa(row.Count),
			score,
			row.Hash,
		}); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func init() {
	Register("csv", func() Formatter {
		return &CSVFormatter{}
	})
}

// Ensure CSVFormatter implements Formatter.
var _ Formatter = (*CSVFormatter)(nil)

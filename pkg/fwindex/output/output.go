// Package output provides formatters for displaying fwindex query results
// (directory listings, search hits, statistics) in various formats.
//
// The package uses a registry pattern so the CLI can select a formatter by
// name at runtime:
//
//	formatter, err := output.Get("plain")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, result); err != nil {
//	    return err
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/fwindex/pkg/fwindex/logging"
	"github.com/jamesainslie/fwindex/pkg/fwindex/query"
	"github.com/jamesainslie/fwindex/pkg/fwindex/types"
)

// logger is the package-level logger for output operations.
var logger = logging.Get("output")

// Row is one line of a listing or search result.
type Row struct {
	// Kind is "parent", "dir", "file" or "hit".
	Kind string `json:"kind" yaml:"kind"`

	Name      string `json:"name" yaml:"name"`
	Path      string `json:"path" yaml:"path"`
	Type      string `json:"type,omitempty" yaml:"type,omitempty"`
	Device    string `json:"device,omitempty" yaml:"device,omitempty"`
	ISP       string `json:"isp,omitempty" yaml:"isp,omitempty"`
	Extension string `json:"extension,omitempty" yaml:"extension,omitempty"`

	Size      int64  `json:"size" yaml:"size"`
	SizeHuman string `json:"size_human" yaml:"size_human"`

	ModifiedAt time.Time `json:"modified_at" yaml:"modified_at"`

	// Count is the number of files below a directory row.
	Count int `json:"count,omitempty" yaml:"count,omitempty"`

	// Score and Pass are set for search hits.
	Score float64 `json:"score,omitempty" yaml:"score,omitempty"`
	Pass  string  `json:"pass,omitempty" yaml:"pass,omitempty"`

	Hash string `json:"hash,omitempty" yaml:"hash,omitempty"`
}

// Summary holds recursive totals for a directory.
type Summary struct {
	Path      string `json:"path" yaml:"path"`
	Count     int    `json:"count" yaml:"count"`
	Size      int64  `json:"size" yaml:"size"`
	SizeHuman string `json:"size_human" yaml:"size_human"`
}

// Result contains the complete output data for formatting.
type Result struct {
	// Source is the catalog location the result was computed from.
	Source string `json:"source" yaml:"source"`

	// GeneratedAt is when the catalog was built.
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`

	// Path is the directory that was listed, if any.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Query is the search text, if any.
	Query string `json:"query,omitempty" yaml:"query,omitempty"`

	// Rows are the listing entries or hits in display order.
	Rows []Row `json:"rows" yaml:"rows"`

	// Stats is set for statistics results.
	Stats *Summary `json:"stats,omitempty" yaml:"stats,omitempty"`

	// Warnings contains messages worth showing alongside the result.
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// TotalSize returns the sum of all row sizes, parent rows excluded.
func (r *Result) TotalSize() int64 {
	var total int64
	for i := range r.Rows {
		if r.Rows[i].Kind != string(query.KindParent) {
			total += r.Rows[i].Size
		}
	}
	return total
}

func recordRow(kind string, rec *types.FileRecord) Row {
	return Row{
		Kind:       kind,
		Name:       rec.Name,
		Path:       rec.Path,
		Type:       rec.Type,
		Device:     rec.Device,
		ISP:        rec.ISP,
		Extension:  rec.Extension,
		Size:       rec.Size,
		SizeHuman:  types.FormatSize(rec.Size),
		ModifiedAt: rec.ModifiedAt,
		Hash:       rec.Hash,
	}
}

// EntryRows converts listing entries to rows.
func EntryRows(entries []query.Entry) []Row {
	rows := make([]Row, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		if e.Kind == query.KindFile && e.Record != nil {
			rows = append(rows, recordRow(string(e.Kind), e.Record))
			continue
		}
		rows = append(rows, Row{
			Kind:       string(e.Kind),
			Name:       e.Name,
			Path:       e.Path,
			Size:       e.Size,
			SizeHuman:  types.FormatSize(e.Size),
			ModifiedAt: e.ModifiedAt,
			Count:      e.Count,
		})
	}
	return rows
}

// HitRows converts search hits to rows.
func HitRows(hits []query.Hit) []Row {
	rows := make([]Row, len(hits))
	for i := range hits {
		rows[i] = recordRow("hit", &hits[i].Record)
		rows[i].Score = hits[i].Score
		rows[i].Pass = string(hits[i].Pass)
	}
	return rows
}

// StatsSummary converts directory statistics to a summary.
func StatsSummary(s query.Stats) *Summary {
	return &Summary{
		Path:      s.Path,
		Count:     s.Count,
		Size:      s.Size,
		SizeHuman: types.FormatSize(s.Size),
	}
}

// displayPath renders the root directory as "/".
func displayPath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry, replacing any existing
// formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		logger.Debug("unknown formatter requested", "name", name)
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}

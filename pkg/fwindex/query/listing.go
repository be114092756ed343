package query

import (
	"strings"
	"time"

	"github.com/jamesainslie/fwindex/pkg/fwindex/types"
)

// EntryKind distinguishes listing entries.
type EntryKind string

// Entry kinds.
const (
	KindParent EntryKind = "parent"
	KindDir    EntryKind = "dir"
	KindFile   EntryKind = "file"
)

// ParentName is the display name of the parent sentinel.
const ParentName = ".."

// Entry is one row of a directory listing.
type Entry struct {
	Kind EntryKind `json:"kind"`
	Name string    `json:"name"`

	// Path is the entry's full slash-separated path. For the parent sentinel
	// it is the parent directory ("" for the root).
	Path string `json:"path"`

	// Count is the number of records under a directory.
	Count int `json:"count,omitempty"`

	// Size is the file size, or the aggregate size under a directory.
	Size int64 `json:"size"`

	// ModifiedAt is the file mtime, or the newest mtime under a directory.
	ModifiedAt time.Time `json:"modifiedAt"`

	// Record is set for file entries.
	Record *types.FileRecord `json:"record,omitempty"`
}

func (e *Entry) typeLabel() string {
	if e.Record != nil {
		return e.Record.Type
	}
	return ""
}

func (e *Entry) device() string {
	if e.Record != nil {
		return e.Record.Device
	}
	return ""
}

// CleanPrefix trims surrounding slashes and whitespace from a directory path.
func CleanPrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

// ParentOf returns the parent directory of a slash-separated path.
func ParentOf(p string) string {
	p = CleanPrefix(p)
	idx := strings.LastIndexByte(p, '/')
	if idx < 0 {
		return ""
	}
	return p[:idx]
}

// underPrefix returns the remainder of p below prefix, or false when p is not
// a descendant. An empty prefix is the root.
func underPrefix(p, prefix string) (string, bool) {
	if prefix == "" {
		return p, true
	}
	if len(p) <= len(prefix)+1 || !strings.HasPrefix(p, prefix) || p[len(prefix)] != '/' {
		return "", false
	}
	return p[len(prefix)+1:], true
}

// Partition splits the records under prefix into immediate subdirectories,
// with aggregates, and direct child files. Entries are returned unsorted.
func Partition(records []types.FileRecord, prefix string) []Entry {
	prefix = CleanPrefix(prefix)

	var entries []Entry
	dirIndex := make(map[string]int)

	for i := range records {
		r := &records[i]
		rest, ok := underPrefix(r.Path, prefix)
		if !ok {
			continue
		}

		slash := strings.IndexByte(rest, '/')
		if slash < 0 {
			entries = append(entries, Entry{
				Kind:       KindFile,
				Name:       r.Name,
				Path:       r.Path,
				Size:       r.Size,
				ModifiedAt: r.ModifiedAt,
				Record:     r,
			})
			continue
		}

		name := rest[:slash]
		idx, ok := dirIndex[name]
		if !ok {
			full := name
			if prefix != "" {
				full = prefix + "/" + name
			}
			idx = len(entries)
			dirIndex[name] = idx
			entries = append(entries, Entry{Kind: KindDir, Name: name, Path: full})
		}
		d := &entries[idx]
		d.Count++
		d.Size += r.Size
		if r.ModifiedAt.After(d.ModifiedAt) {
			d.ModifiedAt = r.ModifiedAt
		}
	}
	return entries
}

// List returns the sorted listing of prefix: the parent sentinel when prefix
// is not the root, then directories, then files.
func List(records []types.FileRecord, prefix string, s Sort) []Entry {
	prefix = CleanPrefix(prefix)
	entries := Partition(records, prefix)
	if prefix != "" {
		entries = append(entries, Entry{Kind: KindParent, Name: ParentName, Path: ParentOf(prefix)})
	}
	SortEntries(entries, s)
	return entries
}

// Stats is the recursive record count and size under a directory.
type Stats struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
	Size  int64  `json:"size"`
}

// ComputeStats scans every record under prefix, at any depth.
func ComputeStats(records []types.FileRecord, prefix string) Stats {
	prefix = CleanPrefix(prefix)
	st := Stats{Path: prefix}
	for i := range records {
		if _, ok := underPrefix(records[i].Path, prefix); ok {
			st.Count++
			st.Size += records[i].Size
		}
	}
	return st
}

// Under returns the records at any depth below prefix, in input order.
func Under(records []types.FileRecord, prefix string) []types.FileRecord {
	prefix = CleanPrefix(prefix)
	if prefix == "" {
		return records
	}
	var out []types.FileRecord
	for i := range records {
		if _, ok := underPrefix(records[i].Path, prefix); ok {
			out = append(out, records[i])
		}
	}
	return out
}

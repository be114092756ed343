package archive

import (
	"path"
	"strings"
	"time"

	"github.com/jamesainslie/fwindex/pkg/fwindex/types"
)

// Item is one file to place in an archive.
type Item struct {
	// Name is the path inside the archive.
	Name string

	// Path is the catalog path used to fetch the bytes.
	Path string

	Size       int64
	ModifiedAt time.Time
}

// DirectoryItems returns every record under prefix, at any depth, named
// relative to prefix.
func DirectoryItems(records []types.FileRecord, prefix string) []Item {
	prefix = strings.Trim(prefix, "/")
	var items []Item
	for i := range records {
		r := &records[i]
		name := r.Path
		if prefix != "" {
			if !strings.HasPrefix(r.Path, prefix+"/") {
				continue
			}
			name = strings.TrimPrefix(r.Path, prefix+"/")
		}
		items = append(items, Item{Name: name, Path: r.Path, Size: r.Size, ModifiedAt: r.ModifiedAt})
	}
	return items
}

// SelectionItems keeps each record's full relative path as its archive name.
func SelectionItems(records []types.FileRecord) []Item {
	items := make([]Item, 0, len(records))
	for i := range records {
		r := &records[i]
		items = append(items, Item{Name: r.Path, Path: r.Path, Size: r.Size, ModifiedAt: r.ModifiedAt})
	}
	return items
}

// ResolveSelection looks up selected paths in c. Paths not in the catalog
// are returned separately.
func ResolveSelection(c *types.Catalog, paths []string) (records []types.FileRecord, missing []string) {
	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		p = strings.Trim(p, "/")
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		if r, ok := c.Record(p); ok {
			records = append(records, r)
		} else {
			missing = append(missing, p)
		}
	}
	return records, missing
}

// DefaultArchiveName is used for the root directory and as the stem of
// selection archives.
const DefaultArchiveName = "firmware"

// DirectoryArchiveName names a directory download after its final segment.
func DirectoryArchiveName(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return DefaultArchiveName + ".zip"
	}
	return path.Base(prefix) + ".zip"
}

// SelectionArchiveName names a selection download with a timestamp.
func SelectionArchiveName(t time.Time) string {
	return DefaultArchiveName + "-selection-" + t.Format("20060102-150405") + ".zip"
}

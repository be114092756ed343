package query

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jamesainslie/fwindex/pkg/fwindex/types"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortKey selects the field entries are ordered by.
type SortKey string

// Sort keys.
const (
	SortByName     SortKey = "name"
	SortBySize     SortKey = "size"
	SortByType     SortKey = "type"
	SortByDevice   SortKey = "device"
	SortByModified SortKey = "modified"
)

// ErrInvalidSortKey is returned for an unknown sort key.
var ErrInvalidSortKey = errors.New("invalid sort key")

// SortKeys lists every accepted key.
func SortKeys() []SortKey {
	return []SortKey{SortByName, SortBySize, SortByType, SortByDevice, SortByModified}
}

// ParseSortKey parses s, accepting "" as name and "mtime" as modified.
func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "name":
		return SortByName, nil
	case "size":
		return SortBySize, nil
	case "type":
		return SortByType, nil
	case "device":
		return SortByDevice, nil
	case "modified", "mtime":
		return SortByModified, nil
	default:
		return SortByName, fmt.Errorf("%w: %s", ErrInvalidSortKey, s)
	}
}

// Sort is a sort key and direction.
type Sort struct {
	Key  SortKey `json:"key"`
	Desc bool    `json:"desc,omitempty"`
}

// DefaultSort orders by name ascending.
var DefaultSort = Sort{Key: SortByName}

// newCollator returns a numeric-aware, case-insensitive collator. Collators
// are not safe for concurrent use, so each sort call makes its own.
func newCollator() *collate.Collator {
	return collate.New(language.Und, collate.Numeric, collate.IgnoreCase)
}

// entryRank orders the parent sentinel before directories before files.
func entryRank(k EntryKind) int {
	switch k {
	case KindParent:
		return 0
	case KindDir:
		return 1
	default:
		return 2
	}
}

// SortEntries orders entries in place. The parent sentinel is always first
// and directories always precede files; s only orders within each group.
func SortEntries(entries []Entry, s Sort) {
	col := newCollator()
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := &entries[i], &entries[j]
		if ra, rb := entryRank(a.Kind), entryRank(b.Kind); ra != rb {
			return ra < rb
		}
		c := compareEntries(col, a, b, s.Key)
		if c == 0 {
			return a.Path < b.Path
		}
		if s.Desc {
			return c > 0
		}
		return c < 0
	})
}

func compareEntries(col *collate.Collator, a, b *Entry, key SortKey) int {
	switch key {
	case SortBySize:
		if c := compareInt(a.Size, b.Size); c != 0 {
			return c
		}
	case SortByModified:
		if c := a.ModifiedAt.Compare(b.ModifiedAt); c != 0 {
			return c
		}
	case SortByType:
		if c := col.CompareString(a.typeLabel(), b.typeLabel()); c != 0 {
			return c
		}
	case SortByDevice:
		if c := col.CompareString(a.device(), b.device()); c != 0 {
			return c
		}
	}
	return col.CompareString(a.Name, b.Name)
}

// SortRecords orders a flat record list in place with the same comparator
// used for directory listings.
func SortRecords(records []types.FileRecord, s Sort) {
	col := newCollator()
	sort.SliceStable(records, func(i, j int) bool {
		a, b := &records[i], &records[j]
		c := compareRecords(col, a, b, s.Key)
		if c == 0 {
			return a.Path < b.Path
		}
		if s.Desc {
			return c > 0
		}
		return c < 0
	})
}

func compareRecords(col *collate.Collator, a, b *types.FileRecord, key SortKey) int {
	switch key {
	case SortBySize:
		if c := compareInt(a.Size, b.Size); c != 0 {
			return c
		}
	case SortByModified:
		if c := a.ModifiedAt.Compare(b.ModifiedAt); c != 0 {
			return c
		}
	case SortByType:
		if c := col.CompareString(a.Type, b.Type); c != 0 {
			return c
		}
	case SortByDevice:
		if c := col.CompareString(a.Device, b.Device); c != 0 {
			return c
		}
	}
	return col.CompareString(a.Name, b.Name)
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

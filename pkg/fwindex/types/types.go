// Package types provides the core data types shared by the fwindex indexer,
// query layer, and archive assembler, along with size parsing and formatting
// helpers.
package types

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

// CatalogVersion is incremented when the catalog wire format changes.
const CatalogVersion = 1

// FileRecord describes one regular file discovered under the indexed root.
// Extension and Type are pure functions of Name.
type FileRecord struct {
	// Path is the slash-separated path relative to the root. Unique per catalog.
	Path string `json:"path" yaml:"path"`

	// Name is the final path segment.
	Name string `json:"name" yaml:"name"`

	// Size is the file size in bytes.
	Size int64 `json:"size" yaml:"size"`

	// ModifiedAt is the last modification time of the file.
	ModifiedAt time.Time `json:"modifiedAt" yaml:"modified_at"`

	// Device is path segment 0, empty for files directly under the root.
	Device string `json:"device" yaml:"device"`

	// ISP is path segment 1, empty when the path has fewer than 3 segments.
	ISP string `json:"isp" yaml:"isp"`

	// Category is path segment 2, empty when the path has fewer than 4 segments.
	Category string `json:"category" yaml:"category"`

	// Extension is the lowercase suffix after the last dot, without the dot.
	Extension string `json:"extension" yaml:"extension"`

	// Type is the human label derived from Extension or Name.
	Type string `json:"type" yaml:"type"`

	// Hash is the lowercase hex digest of the file content.
	Hash string `json:"hash" yaml:"hash"`
}

// HumanSize returns the file size formatted as a human-readable string.
func (r *FileRecord) HumanSize() string {
	return FormatSize(r.Size)
}

// Dir returns the slash-separated parent directory of the record, or "" for
// files directly under the root.
func (r *FileRecord) Dir() string {
	idx := strings.LastIndexByte(r.Path, '/')
	if idx < 0 {
		return ""
	}
	return r.Path[:idx]
}

// Catalog is the serialized snapshot of every indexed file plus the
// aggregated facet indexes. A loaded Catalog is treated as immutable.
type Catalog struct {
	// Version is the catalog wire format version.
	Version int `json:"version"`

	// RunID identifies the indexer run that produced the catalog.
	RunID string `json:"runId"`

	// GeneratedAt is when the indexer finished building the catalog.
	GeneratedAt time.Time `json:"generatedAt"`

	// HashAlgorithm names the digest used for FileRecord.Hash.
	HashAlgorithm string `json:"hashAlgorithm"`

	// TotalFiles is len(Files).
	TotalFiles int `json:"totalFiles"`

	// TotalSize is the sum of Files[i].Size.
	TotalSize int64 `json:"totalSize"`

	// Facet indexes: sorted, deduplicated, non-empty values.
	Devices    []string `json:"devices"`
	ISPs       []string `json:"isps"`
	Categories []string `json:"categories"`
	Types      []string `json:"types"`
	Extensions []string `json:"extensions"`

	// Aliases maps alternate device spellings to canonical device names.
	Aliases map[string]string `json:"aliases,omitempty"`

	// Files is sorted by Path.
	Files []FileRecord `json:"files"`
}

// Record returns the record with the given path using binary search over
// the sorted Files slice.
func (c *Catalog) Record(path string) (FileRecord, bool) {
	lo, hi := 0, len(c.Files)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if c.Files[mid].Path < path {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(c.Files) && c.Files[lo].Path == path {
		return c.Files[lo], true
	}
	return FileRecord{}, false
}

// IndexWarning is a non-fatal problem encountered while indexing.
type IndexWarning struct {
	// Path is the file or directory where the problem occurred.
	Path string `json:"path"`

	// Error is the message describing what went wrong.
	Error string `json:"error"`
}

// IndexProgress reports indexer progress.
type IndexProgress struct {
	// DirsWalked is the number of directories visited so far.
	DirsWalked int64 `json:"dirs_walked"`

	// FilesIndexed is the number of records built so far.
	FilesIndexed int64 `json:"files_indexed"`

	// BytesHashed is the number of content bytes digested so far.
	BytesHashed int64 `json:"bytes_hashed"`

	// CurrentPath is the path currently being processed.
	CurrentPath string `json:"current_path"`

	// Skipped is the number of files skipped with a warning.
	Skipped int64 `json:"skipped"`
}

// sizePattern matches size strings like "100M", "2G", "500K", "1.5GB", etc.
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?(?:i?B)?)\s*$`)

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeSize indicates that a negative size value was provided.
var ErrNegativeSize = errors.New("size cannot be negative")

// ParseSize parses a human-readable size string such as "512", "10MB",
// "1.5GiB" or "2g" and returns the size in bytes. Units are binary.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}
	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeSize
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	suffix := strings.ToUpper(matches[2])
	suffix = strings.TrimSuffix(suffix, "IB")
	suffix = strings.TrimSuffix(suffix, "B")

	var multiplier int64
	switch suffix {
	case "":
		multiplier = 1
	case "K":
		multiplier = KiB
	case "M":
		multiplier = MiB
	case "G":
		multiplier = GiB
	case "T":
		multiplier = TiB
	default:
		return 0, fmt.Errorf("%w: unknown suffix %q", ErrInvalidSize, suffix)
	}

	return int64(value * float64(multiplier)), nil
}

// FormatSize converts a size in bytes to a human-readable IEC string,
// e.g. FormatSize(1536*1024) returns "1.5 MiB".
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

// Package catalog reads and writes the serialized Catalog document.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jamesainslie/fwindex/pkg/fwindex/types"
	"github.com/segmentio/encoding/json"
)

var (
	// ErrInvalidCatalog is returned when a catalog document fails to parse
	// or violates an ordering or uniqueness rule.
	ErrInvalidCatalog = errors.New("invalid catalog")

	// ErrOutputUnwritable is returned when the catalog cannot be written.
	ErrOutputUnwritable = errors.New("catalog output unwritable")
)

// Encode writes c as indented JSON.
func Encode(w io.Writer, c *types.Catalog) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

// Decode parses and validates a catalog document. A document that fails
// validation is rejected whole.
func Decode(r io.Reader) (*types.Catalog, error) {
	var c types.Catalog
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if err := Validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that file paths are sorted and unique and that the header
// totals agree with the records.
func Validate(c *types.Catalog) error {
	if c.Version > types.CatalogVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidCatalog, c.Version)
	}
	var total int64
	for i := range c.Files {
		f := &c.Files[i]
		if f.Path == "" {
			return fmt.Errorf("%w: record %d has an empty path", ErrInvalidCatalog, i)
		}
		if f.Size < 0 {
			return fmt.Errorf("%w: %s has a negative size", ErrInvalidCatalog, f.Path)
		}
		if i > 0 && c.Files[i-1].Path >= f.Path {
			return fmt.Errorf("%w: paths not sorted and unique at %s", ErrInvalidCatalog, f.Path)
		}
		total += f.Size
	}
	if c.TotalFiles != len(c.Files) {
		return fmt.Errorf("%w: totalFiles %d does not match %d records", ErrInvalidCatalog, c.TotalFiles, len(c.Files))
	}
	if c.TotalSize != total {
		return fmt.Errorf("%w: totalSize %d does not match sum %d", ErrInvalidCatalog, c.TotalSize, total)
	}
	return nil
}

// Write serializes c to path by writing a temp file in the same directory
// and renaming it over any previous catalog.
func Write(path string, c *types.Catalog) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputUnwritable, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOutputUnwritable, err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	if err := Encode(tmp, c); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", ErrOutputUnwritable, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: %v", ErrOutputUnwritable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputUnwritable, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputUnwritable, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputUnwritable, err)
	}
	tmpName = ""
	return nil
}

// LoadFile reads a catalog from the local filesystem.
func LoadFile(path string) (*types.Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// DefaultHTTPTimeout bounds a remote catalog fetch.
const DefaultHTTPTimeout = 30 * time.Second

// Load reads a catalog from a local path or an http(s) URL.
func Load(ctx context.Context, location string) (*types.Catalog, error) {
	if !IsURL(location) {
		return LoadFile(location)
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultHTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("building catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching catalog: unexpected status %s", resp.Status)
	}

	// Read fully so a truncated body fails as a whole.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return Decode(bytes.NewReader(body))
}

// IsURL reports whether location is an http or https URL.
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

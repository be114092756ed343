package fetch

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

// Local reads files from a directory on disk.
type Local struct {
	root string
}

// NewLocal returns a Fetcher rooted at dir.
func NewLocal(dir string) *Local {
	return &Local{root: dir}
}

// Root returns the directory files are read from.
func (l *Local) Root() string { return l.root }

// Fetch opens the file at the catalog path p.
func (l *Local) Fetch(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	clean, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(l.root, filepath.FromSlash(clean)))
}

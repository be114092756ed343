// Package indexer walks a firmware tree and builds a Catalog with one
// FileRecord per regular file.
package indexer

import (
	"fmt"

	"github.com/gobwas/glob"
	"github.com/jamesainslie/fwindex/pkg/fwindex/cache"
	"github.com/jamesainslie/fwindex/pkg/fwindex/config"
	"github.com/jamesainslie/fwindex/pkg/fwindex/types"
)

// Options configures the indexer behavior.
type Options struct {
	// Root is the directory to index.
	Root string

	// Output is the catalog destination. When it sits directly under Root it
	// is excluded from the walk.
	Output string

	// ExcludeDirs are glob patterns matched against directory names at the
	// root level only.
	ExcludeDirs []string

	// ExcludeFiles are exact file names skipped at the root level only.
	ExcludeFiles []string

	// Hash names the content digest algorithm.
	Hash string

	// Workers is the number of fastwalk workers. One keeps the walk
	// sequential.
	Workers int

	// Aliases is copied into the catalog header.
	Aliases map[string]string

	// OnProgress is called periodically with progress updates.
	// It must be safe to call from multiple goroutines.
	OnProgress func(types.IndexProgress)

	// Cache is an optional digest cache. If nil, every file is hashed.
	Cache *cache.Store
}

// DefaultOptions returns options matching the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Root:         config.DefaultRoot,
		ExcludeDirs:  config.DefaultExcludeDirs,
		ExcludeFiles: config.DefaultExcludeFiles,
		Hash:         config.DefaultHash,
		Workers:      config.DefaultIndexWorkers,
	}
}

// Validate applies defaults and checks patterns and the hash algorithm.
func (o *Options) Validate() error {
	if o.Root == "" {
		o.Root = config.DefaultRoot
	}
	if o.Hash == "" {
		o.Hash = config.DefaultHash
	}
	if o.Workers < 1 {
		o.Workers = config.DefaultIndexWorkers
	}
	if _, err := newHasher(o.Hash); err != nil {
		return err
	}
	if _, err := compileExcludes(o.ExcludeDirs); err != nil {
		return err
	}
	return nil
}

func compileExcludes(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

package indexer

import (
	"context"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/gobwas/glob"
	"github.com/google/uuid"
	"github.com/jamesainslie/fwindex/pkg/fwindex/cache"
	"github.com/jamesainslie/fwindex/pkg/fwindex/classify"
	"github.com/jamesainslie/fwindex/pkg/fwindex/logging"
	"github.com/jamesainslie/fwindex/pkg/fwindex/types"
)

// ErrRootUnreadable is returned when the root cannot be opened or is not a
// directory.
var ErrRootUnreadable = errors.New("root directory unreadable")

// Result summarizes an index run.
type Result struct {
	RunID       string
	DirsWalked  int64
	Skipped     int64
	CacheHits   int64
	CacheMisses int64
	Elapsed     time.Duration
	Warnings    []types.IndexWarning
}

// Indexer builds a Catalog from a directory tree.
type Indexer struct {
	opts Options
	log  *logging.Logger

	root       string
	outputRel  string
	newHash    func() hash.Hash
	excludes   []glob.Glob
	excludeSet map[string]struct{}

	dirsWalked   atomic.Int64
	filesIndexed atomic.Int64
	bytesHashed  atomic.Int64
	skipped      atomic.Int64
	cacheHits    atomic.Int64
	cacheMisses  atomic.Int64
	currentPath  atomic.Value
	lastProgress atomic.Int64

	mu       sync.Mutex
	records  []types.FileRecord
	warnings []types.IndexWarning
	fresh    map[string]*cache.HashEntry
}

// New creates an Indexer. Options are validated when Run is called.
func New(opts Options) *Indexer {
	ix := &Indexer{
		opts: opts,
		log:  logging.Get("indexer"),
	}
	ix.currentPath.Store("")
	return ix
}

// Run walks the tree and returns the catalog. Per-file problems are recorded
// as warnings; only an unreadable root or cancellation returns an error.
func (ix *Indexer) Run(ctx context.Context) (*types.Catalog, *Result, error) {
	start := time.Now()

	if err := ix.opts.Validate(); err != nil {
		return nil, nil, err
	}
	if err := ix.prepare(); err != nil {
		return nil, nil, err
	}

	runID := uuid.NewString()
	ix.log.Info("index started", "root", ix.root, "run_id", runID, "hash", ix.opts.Hash)
	ix.currentPath.Store(ix.root)
	ix.reportProgressForce()

	if err := ix.walk(ctx); err != nil {
		return nil, nil, err
	}
	ix.flushCache()

	catalog := BuildCatalog(ix.records, ix.opts.Hash, ix.opts.Aliases)
	catalog.RunID = runID

	result := &Result{
		RunID:       runID,
		DirsWalked:  ix.dirsWalked.Load(),
		Skipped:     ix.skipped.Load(),
		CacheHits:   ix.cacheHits.Load(),
		CacheMisses: ix.cacheMisses.Load(),
		Elapsed:     time.Since(start),
		Warnings:    ix.warnings,
	}
	sort.Slice(result.Warnings, func(i, j int) bool { return result.Warnings[i].Path < result.Warnings[j].Path })

	ix.currentPath.Store("")
	ix.reportProgressForce()
	ix.log.Info("index finished",
		"run_id", runID,
		"files", catalog.TotalFiles,
		"bytes", catalog.TotalSize,
		"skipped", result.Skipped,
		"elapsed", result.Elapsed)
	return catalog, result, nil
}

// prepare resolves the root, the hasher and the exclusions.
func (ix *Indexer) prepare() error {
	root, err := filepath.Abs(ix.opts.Root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRootUnreadable, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRootUnreadable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrRootUnreadable, root)
	}
	dir, err := os.Open(root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRootUnreadable, err)
	}
	_, err = dir.ReadDir(1)
	_ = dir.Close()
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrRootUnreadable, err)
	}
	ix.root = root

	if ix.opts.Output != "" {
		if out, err := filepath.Abs(ix.opts.Output); err == nil && filepath.Dir(out) == root {
			ix.outputRel = filepath.Base(out)
		}
	}

	if ix.newHash, err = newHasher(ix.opts.Hash); err != nil {
		return err
	}
	if ix.excludes, err = compileExcludes(ix.opts.ExcludeDirs); err != nil {
		return err
	}
	ix.excludeSet = make(map[string]struct{}, len(ix.opts.ExcludeFiles))
	for _, name := range ix.opts.ExcludeFiles {
		ix.excludeSet[name] = struct{}{}
	}
	if ix.opts.Cache != nil {
		ix.fresh = make(map[string]*cache.HashEntry)
	}
	return nil
}

func (ix *Indexer) walk(ctx context.Context) error {
	conf := fastwalk.Config{
		Follow:     false,
		NumWorkers: ix.opts.Workers,
	}

	err := fastwalk.Walk(&conf, ix.root, func(p string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel := ix.relPath(p)
		if err != nil {
			if rel == "" {
				return fmt.Errorf("%w: %v", ErrRootUnreadable, err)
			}
			ix.warn(rel, err)
			return nil
		}
		if rel == "" {
			ix.dirsWalked.Add(1)
			return nil
		}

		if d.IsDir() {
			if ix.excludedDir(rel, d.Name()) {
				ix.log.Debug("skipping excluded directory", "path", rel)
				return fastwalk.SkipDir
			}
			ix.dirsWalked.Add(1)
			ix.currentPath.Store(rel)
			ix.reportProgress()
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if ix.excludedFile(rel, d.Name()) {
			ix.log.Debug("skipping excluded file", "path", rel)
			return nil
		}
		ix.processFile(p, rel, d.Name())
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return ctx.Err()
}

// relPath converts a walked path to a slash-separated path relative to root.
func (ix *Indexer) relPath(p string) string {
	if p == ix.root {
		return ""
	}
	rel := strings.TrimPrefix(p, ix.root+string(filepath.Separator))
	return filepath.ToSlash(rel)
}

func isRootLevel(rel string) bool {
	return !strings.Contains(rel, "/")
}

func (ix *Indexer) excludedDir(rel, name string) bool {
	if !isRootLevel(rel) {
		return false
	}
	for _, g := range ix.excludes {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func (ix *Indexer) excludedFile(rel, name string) bool {
	if !isRootLevel(rel) {
		return false
	}
	if name == ix.outputRel {
		return true
	}
	_, ok := ix.excludeSet[name]
	return ok
}

func (ix *Indexer) processFile(fullPath, rel, name string) {
	ix.currentPath.Store(rel)

	f, err := os.Open(fullPath)
	if err != nil {
		ix.warn(rel, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		ix.warn(rel, err)
		return
	}
	if !info.Mode().IsRegular() {
		return
	}

	size := info.Size()
	mtime := info.ModTime()

	sum, ok := ix.cachedDigest(rel, size, mtime.UnixNano())
	if ok {
		ix.cacheHits.Add(1)
	} else {
		var n int64
		sum, n, err = digest(ix.newHash, f)
		if err != nil {
			ix.warn(rel, err)
			return
		}
		size = n
		ix.bytesHashed.Add(n)
		if ix.opts.Cache != nil {
			ix.cacheMisses.Add(1)
		}
	}

	facets := classify.PathFacets(rel)
	record := types.FileRecord{
		Path:       rel,
		Name:       name,
		Size:       size,
		ModifiedAt: mtime.UTC(),
		Device:     facets.Device,
		ISP:        facets.ISP,
		Category:   facets.Category,
		Extension:  classify.Extension(name),
		Type:       classify.TypeLabel(name),
		Hash:       sum,
	}

	ix.mu.Lock()
	ix.records = append(ix.records, record)
	if ix.fresh != nil {
		ix.fresh[rel] = &cache.HashEntry{
			Size:      size,
			Mtime:     mtime.UnixNano(),
			Algorithm: ix.opts.Hash,
			Digest:    sum,
		}
	}
	ix.mu.Unlock()

	ix.filesIndexed.Add(1)
	ix.reportProgress()
}

func (ix *Indexer) cachedDigest(rel string, size, mtime int64) (string, bool) {
	if ix.opts.Cache == nil {
		return "", false
	}
	return ix.opts.Cache.Lookup(ix.root, rel, size, mtime, ix.opts.Hash)
}

// flushCache stores fresh digests and drops entries for files that are gone.
func (ix *Indexer) flushCache() {
	if ix.opts.Cache == nil {
		return
	}
	if len(ix.fresh) > 0 {
		if err := ix.opts.Cache.PutBatch(ix.root, ix.fresh); err != nil {
			ix.log.Warn("hash cache update failed", "error", err)
			return
		}
	}
	keep := make(map[string]struct{}, len(ix.records))
	for i := range ix.records {
		keep[ix.records[i].Path] = struct{}{}
	}
	if removed, err := ix.opts.Cache.Retain(ix.root, keep); err != nil {
		ix.log.Warn("hash cache prune failed", "error", err)
	} else if removed > 0 {
		ix.log.Debug("pruned hash cache", "removed", removed)
	}
}

func (ix *Indexer) warn(rel string, err error) {
	ix.skipped.Add(1)
	ix.log.Warn("skipping file", "path", rel, "error", err)

	ix.mu.Lock()
	ix.warnings = append(ix.warnings, types.IndexWarning{Path: rel, Error: err.Error()})
	ix.mu.Unlock()
}

// reportProgress calls the progress callback, throttled to one call per 10ms.
func (ix *Indexer) reportProgress() {
	if ix.opts.OnProgress == nil {
		return
	}
	now := time.Now().UnixMilli()
	last := ix.lastProgress.Load()
	if now-last < 10 {
		return
	}
	if !ix.lastProgress.CompareAndSwap(last, now) {
		return
	}
	ix.sendProgress()
}

func (ix *Indexer) reportProgressForce() {
	if ix.opts.OnProgress == nil {
		return
	}
	ix.lastProgress.Store(time.Now().UnixMilli())
	ix.sendProgress()
}

func (ix *Indexer) sendProgress() {
	current, _ := ix.currentPath.Load().(string)
	ix.opts.OnProgress(types.IndexProgress{
		DirsWalked:   ix.dirsWalked.Load(),
		FilesIndexed: ix.filesIndexed.Load(),
		BytesHashed:  ix.bytesHashed.Load(),
		CurrentPath:  current,
		Skipped:      ix.skipped.Load(),
	})
}

// BuildCatalog sorts records by path and aggregates the facet indexes.
// The input slice is sorted in place.
func BuildCatalog(records []types.FileRecord, algorithm string, aliases map[string]string) *types.Catalog {
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })

	devices := newFacetSet()
	isps := newFacetSet()
	categories := newFacetSet()
	labels := newFacetSet()
	extensions := newFacetSet()

	var total int64
	for i := range records {
		r := &records[i]
		total += r.Size
		devices.add(r.Device)
		isps.add(r.ISP)
		categories.add(r.Category)
		labels.add(r.Type)
		extensions.add(r.Extension)
	}

	var aliasCopy map[string]string
	if len(aliases) > 0 {
		aliasCopy = make(map[string]string, len(aliases))
		for k, v := range aliases {
			aliasCopy[k] = v
		}
	}

	if records == nil {
		records = []types.FileRecord{}
	}
	return &types.Catalog{
		Version:       types.CatalogVersion,
		GeneratedAt:   time.Now().UTC(),
		HashAlgorithm: algorithm,
		TotalFiles:    len(records),
		TotalSize:     total,
		Devices:       devices.sorted(),
		ISPs:          isps.sorted(),
		Categories:    categories.sorted(),
		Types:         labels.sorted(),
		Extensions:    extensions.sorted(),
		Aliases:       aliasCopy,
		Files:         records,
	}
}

type facetSet map[string]struct{}

func newFacetSet() facetSet { return make(facetSet) }

func (s facetSet) add(v string) {
	if v != "" {
		s[v] = struct{}{}
	}
}

func (s facetSet) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

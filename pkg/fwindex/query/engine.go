package query

import (
	"github.com/jamesainslie/fwindex/pkg/fwindex/types"
)

// Engine answers queries against one immutable catalog. It is safe for
// concurrent use.
type Engine struct {
	catalog *types.Catalog
	index   *TokenIndex
}

// NewEngine indexes c for search.
func NewEngine(c *types.Catalog) *Engine {
	return &Engine{
		catalog: c,
		index:   NewTokenIndex(c.Files),
	}
}

// Catalog returns the underlying catalog.
func (e *Engine) Catalog() *types.Catalog { return e.catalog }

// Records returns the catalog records satisfying f.
func (e *Engine) Records(f Filters) []types.FileRecord {
	return Filter(e.catalog.Files, f, e.catalog.Aliases)
}

// List filters the catalog, then lists prefix.
func (e *Engine) List(prefix string, f Filters, s Sort) []Entry {
	return List(e.Records(f), prefix, s)
}

// Stats returns recursive totals under prefix for the filtered records.
func (e *Engine) Stats(prefix string, f Filters) Stats {
	return ComputeStats(e.Records(f), prefix)
}

// Choices returns the filter choice lists.
func (e *Engine) Choices() Choices {
	return FilterChoices(e.catalog)
}

// Search runs both passes over the whole catalog, merges them, and keeps the
// hits that satisfy f. The current directory plays no part.
func (e *Engine) Search(query string, f Filters, opts SearchOptions) []Hit {
	records := e.catalog.Files
	primary := FuzzySearch(records, query, opts)
	supplementary := ExactSearch(e.index, records, query, opts.Limit)
	hits := Merge(primary, supplementary, opts.Limit)
	if f.IsEmpty() {
		return hits
	}
	return FilterHits(hits, NewMatcher(f, e.catalog.Aliases))
}

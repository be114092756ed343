// Package config provides configuration management for fwindex.
package config

import "time"

// Default configuration values.
const (
	// DefaultRoot is the tree indexed and served when none is given.
	DefaultRoot = "."

	// DefaultCatalogName is the catalog file name written at the root.
	DefaultCatalogName = "catalog.json"

	// DefaultHash is the content digest algorithm.
	DefaultHash = "sha256"

	// DefaultIndexWorkers keeps the walk single-threaded.
	DefaultIndexWorkers = 1

	// DefaultWatchDebounce is the quiet period before a watch-triggered reindex.
	DefaultWatchDebounce = 2 * time.Second

	// DefaultSearchLimit caps each search pass.
	DefaultSearchLimit = 100

	// DefaultSearchThreshold is the minimum fuzzy similarity in [0,1].
	DefaultSearchThreshold = 0.3

	// DefaultSearchDebounce is the TUI input debounce window.
	DefaultSearchDebounce = 200 * time.Millisecond

	// DefaultArchiveBatchSize bounds in-flight fetches during archive assembly.
	DefaultArchiveBatchSize = 5

	// DefaultServeAddr is the listen address for the HTTP server.
	DefaultServeAddr = "127.0.0.1:8080"
)

// DefaultExcludeDirs are root-level directory patterns skipped by the indexer.
var DefaultExcludeDirs = []string{
	".*",
	"node_modules",
	"assets",
}

// DefaultExcludeFiles are root-level file names skipped by the indexer.
var DefaultExcludeFiles = []string{
	DefaultCatalogName,
	"index.html",
	"package.json",
	"package-lock.json",
	"README.md",
	"LICENSE",
}

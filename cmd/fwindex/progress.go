package main

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jamesainslie/fwindex/pkg/fwindex/types"
)

// progressInterval throttles the progress line on stderr.
const progressInterval = 250 * time.Millisecond

// progressLine renders indexer progress as a single rewritten stderr line.
type progressLine struct {
	mu      sync.Mutex
	last    time.Time
	enabled bool
	written bool
}

func newProgressLine() *progressLine {
	info, err := os.Stderr.Stat()
	tty := err == nil && info.Mode()&os.ModeCharDevice != 0
	return &progressLine{enabled: tty && !getQuiet()}
}

func (p *progressLine) update(pr types.IndexProgress) {
	p.printf("%d files, %s hashed", pr.FilesIndexed, types.FormatSize(pr.BytesHashed))
}

// printf rewrites the line, at most once per progressInterval.
func (p *progressLine) printf(format string, args ...interface{}) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if time.Since(p.last) < progressInterval {
		return
	}
	p.last = time.Now()
	p.written = true
	fmt.Fprintf(os.Stderr, "\r\033[K"+format, args...)
}

func (p *progressLine) clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.written {
		fmt.Fprint(os.Stderr, "\r\033[K")
	}
}

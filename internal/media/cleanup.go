package media

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"sync"
)

// Cleanup owns the files produced for one request and removes them once.
// It is safe to call Run from a defer on every exit path.
type Cleanup struct {
	logger   *slog.Logger
	mu       sync.Mutex
	paths    []string
	patterns []NamingPattern
	seen     map[string]bool
	done     bool
	removed  int
}

// NewCleanup creates an empty cleanup set.
func NewCleanup(logger *slog.Logger) *Cleanup {
	return &Cleanup{
		logger: logger,
		seen:   make(map[string]bool),
	}
}

// Track adds files to the set. Duplicates are ignored.
func (c *Cleanup) Track(files ...DiscoveredFile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.add(files)
}

// TrackPattern makes Run also remove whatever matches pattern at that moment,
// including files nobody resolved yet.
func (c *Cleanup) TrackPattern(pattern NamingPattern) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patterns = append(c.patterns, pattern)
}

func (c *Cleanup) add(files []DiscoveredFile) {
	for _, f := range files {
		if c.seen[f.Path] {
			continue
		}
		c.seen[f.Path] = true
		c.paths = append(c.paths, f.Path)
	}
}

// Run removes every tracked file and returns how many were removed.
// Later calls do nothing and return 0.
func (c *Cleanup) Run() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return 0
	}
	c.done = true

	for _, p := range c.patterns {
		files, err := Resolve(p)
		if err != nil {
			if !errors.Is(err, ErrNoFileFound) {
				c.logger.Warn("failed to list downloaded files", "prefix", p.Prefix, "error", err)
			}
			continue
		}
		c.add(files)
	}

	for _, path := range c.paths {
		err := os.Remove(path)
		switch {
		case err == nil:
			c.removed++
			recordCleanup("removed")
		case errors.Is(err, fs.ErrNotExist):
			recordCleanup("missing")
		default:
			recordCleanup("error")
			c.logger.Warn("failed to remove downloaded file", "path", path, "error", err)
		}
	}
	return c.removed
}

// Package corpus loads the knowledge-base documents that ground retrieval.
//
// A corpus is a flat directory of Markdown files. Each file may start with a
// YAML front-matter block delimited by "---" lines; the block is stripped
// from the body and may carry an explicit title. Documents are immutable
// once loaded and are cached for the process lifetime until a sync
// invalidates the cache.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrRead indicates an unexpected filesystem failure while reading the
// knowledge directory. An absent directory is not an error; it yields an
// empty corpus.
var ErrRead = errors.New("corpus read failed")

// Document is one knowledge-base document.
// Source is the filename and acts as the unique key.
type Document struct {
	Source string
	Title  string
	Body   string
}

// Loader reads documents from a knowledge directory and caches the result.
//
// The cache reflects exactly the files present at the time of the last
// load; it is invalidated when a sync completes. Loader is safe for
// concurrent use: the first successful load wins and later callers
// observe the same snapshot.
type Loader struct {
	dir    string
	ext    string
	logger *slog.Logger

	mu     sync.Mutex
	cached []Document
	loaded bool
}

// NewLoader creates a Loader for the given directory. ext is the
// recognized file extension including the dot (e.g. ".md").
func NewLoader(dir, ext string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{dir: dir, ext: ext, logger: logger}
}

// Load returns all documents, reading the directory on first call and
// serving the cached snapshot afterwards. Callers must not modify the
// returned slice or its elements.
func (l *Loader) Load(ctx context.Context) ([]Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded {
		return l.cached, nil
	}

	docs, err := l.read(ctx)
	if err != nil {
		return nil, err
	}

	l.cached = docs
	l.loaded = true
	return docs, nil
}

// Reload reads the directory fresh, bypassing and not touching the cache.
// Sync uses this so a run always ingests the current directory contents.
func (l *Loader) Reload(ctx context.Context) ([]Document, error) {
	return l.read(ctx)
}

// Invalidate drops the cached snapshot so the next Load re-reads the
// directory. Called when a sync completes.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cached = nil
	l.loaded = false
}

// read performs the actual directory scan. The absent-directory case is
// deliberately not an error: a fresh deployment has no knowledge yet.
func (l *Loader) read(ctx context.Context) ([]Document, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.logger.Debug("knowledge directory absent, corpus is empty", "dir", l.dir)
			return []Document{}, nil
		}
		return nil, fmt.Errorf("%w: reading directory %s: %v", ErrRead, l.dir, err)
	}

	// Deterministic corpus order regardless of readdir ordering
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	docs := make([]Document, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRead, err)
		}

		if entry.IsDir() || !strings.HasSuffix(entry.Name(), l.ext) {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(l.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrRead, entry.Name(), err)
		}

		meta, body := splitFrontMatter(string(raw), l.logger)
		docs = append(docs, Document{
			Source: entry.Name(),
			Title:  resolveTitle(meta, body, entry.Name(), l.ext),
			Body:   body,
		})
	}

	l.logger.Debug("corpus loaded", "dir", l.dir, "documents", len(docs))
	return docs, nil
}

// resolveTitle picks the document title by priority: explicit front-matter
// title, first level-1 heading in the body, filename minus extension.
func resolveTitle(meta map[string]any, body, filename, ext string) string {
	if t, ok := meta["title"].(string); ok && t != "" {
		return t
	}
	if h := firstHeading(body); h != "" {
		return h
	}
	return strings.TrimSuffix(filename, ext)
}

// firstHeading returns the text of the first "# ..." line, or "".
func firstHeading(body string) string {
	for line := range strings.Lines(body) {
		line = strings.TrimRight(line, "\n\r")
		if rest, ok := strings.CutPrefix(line, "# "); ok {
			if h := strings.TrimSpace(rest); h != "" {
				return h
			}
		}
	}
	return ""
}

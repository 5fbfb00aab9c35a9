package corpus

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/koopa0/kbase/internal/log"
)

// writeDoc writes a test document into dir.
func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func newTestLoader(t *testing.T, dir string) *Loader {
	t.Helper()
	return NewLoader(dir, ".md", log.NewNop())
}

func TestLoad_TitleFromFrontMatter(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "rules.md", "---\ntitle: \"Community Rules\"\nauthor: admin\n---\n\n# Something Else\n\nBody text.")

	docs, err := newTestLoader(t, dir).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d documents, want 1", len(docs))
	}

	doc := docs[0]
	if doc.Title != "Community Rules" {
		t.Errorf("title = %q, want %q", doc.Title, "Community Rules")
	}
	if doc.Source != "rules.md" {
		t.Errorf("source = %q, want rules.md", doc.Source)
	}
	// Front-matter must be stripped from the body
	if len(doc.Body) == 0 || doc.Body[0] == '-' {
		t.Errorf("front-matter not stripped, body = %q", doc.Body)
	}
}

func TestLoad_TitleFromHeading(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "guide.md", "Some intro line.\n\n# Getting Started\n\nMore text.")

	docs, err := newTestLoader(t, dir).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if docs[0].Title != "Getting Started" {
		t.Errorf("title = %q, want %q", docs[0].Title, "Getting Started")
	}
}

func TestLoad_TitleFromFilename(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "faq.md", "No front-matter, no heading, just text.")

	docs, err := newTestLoader(t, dir).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if docs[0].Title != "faq" {
		t.Errorf("title = %q, want %q", docs[0].Title, "faq")
	}
}

func TestLoad_AbsentDirectoryIsEmptyCorpus(t *testing.T) {
	loader := newTestLoader(t, filepath.Join(t.TempDir(), "does-not-exist"))

	docs, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("absent directory should not error, got %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("got %d documents, want 0", len(docs))
	}
}

func TestLoad_SkipsUnrecognizedExtensions(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "keep.md", "kept")
	writeDoc(t, dir, "skip.txt", "skipped")
	writeDoc(t, dir, "also-skip.json", "{}")

	docs, err := newTestLoader(t, dir).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(docs) != 1 || docs[0].Source != "keep.md" {
		t.Errorf("got %+v, want only keep.md", docs)
	}
}

func TestLoad_MalformedFrontMatterKeptAsBody(t *testing.T) {
	dir := t.TempDir()
	content := "---\ntitle: [unclosed\n---\nbody"
	writeDoc(t, dir, "bad.md", content)

	docs, err := newTestLoader(t, dir).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if docs[0].Body != content {
		t.Errorf("malformed front-matter should leave file intact, body = %q", docs[0].Body)
	}
	if docs[0].Title != "bad" {
		t.Errorf("title = %q, want filename fallback", docs[0].Title)
	}
}

func TestLoad_CachesUntilInvalidate(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "one.md", "first")

	loader := newTestLoader(t, dir)
	ctx := context.Background()

	docs, err := loader.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d documents, want 1", len(docs))
	}

	// A new file must not appear until the cache is invalidated
	writeDoc(t, dir, "two.md", "second")

	docs, err = loader.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("cached load returned %d documents, want 1", len(docs))
	}

	loader.Invalidate()

	docs, err = loader.Load(ctx)
	if err != nil {
		t.Fatalf("Load after invalidate: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("got %d documents after invalidate, want 2", len(docs))
	}
}

func TestReload_BypassesCache(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "one.md", "first")

	loader := newTestLoader(t, dir)
	ctx := context.Background()

	if _, err := loader.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	writeDoc(t, dir, "two.md", "second")

	fresh, err := loader.Reload(ctx)
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if len(fresh) != 2 {
		t.Errorf("Reload returned %d documents, want 2", len(fresh))
	}

	// Reload must not have replaced the cached snapshot
	cached, err := loader.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cached) != 1 {
		t.Errorf("cache was disturbed by Reload: %d documents, want 1", len(cached))
	}
}

func TestLoad_ConcurrentCallersSeeConsistentSnapshot(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.md", "b.md", "c.md"} {
		writeDoc(t, dir, name, "# Heading\n\ncontent")
	}

	loader := newTestLoader(t, dir)

	var wg sync.WaitGroup
	results := make([][]Document, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			docs, err := loader.Load(context.Background())
			if err != nil {
				t.Errorf("Load: %v", err)
				return
			}
			results[i] = docs
		}()
	}
	wg.Wait()

	for i, docs := range results {
		if len(docs) != 3 {
			t.Errorf("goroutine %d saw %d documents, want 3", i, len(docs))
		}
	}
}

func TestLoad_DeterministicOrder(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "zebra.md", "z")
	writeDoc(t, dir, "alpha.md", "a")
	writeDoc(t, dir, "mango.md", "m")

	docs, err := newTestLoader(t, dir).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := []string{"alpha.md", "mango.md", "zebra.md"}
	for i, w := range want {
		if docs[i].Source != w {
			t.Errorf("docs[%d].Source = %q, want %q", i, docs[i].Source, w)
		}
	}
}

func TestSplitFrontMatter_CRLF(t *testing.T) {
	meta, body := splitFrontMatter("---\r\ntitle: Windows\r\n---\r\nbody here", log.NewNop())
	if meta["title"] != "Windows" {
		t.Errorf("title = %v, want Windows", meta["title"])
	}
	if body == "" {
		t.Error("body should survive CRLF front-matter split")
	}
}

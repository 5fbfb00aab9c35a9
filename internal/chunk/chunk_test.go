package chunk

import (
	"fmt"
	"strings"
	"testing"
)

func TestSplit_ShortTextSinglePassage(t *testing.T) {
	s := New(1000, 200)

	passages := s.Split("A short document body.", "doc.md", "Doc")

	if len(passages) != 1 {
		t.Fatalf("got %d passages, want 1", len(passages))
	}
	if passages[0].Text != "A short document body." {
		t.Errorf("text = %q", passages[0].Text)
	}
	if passages[0].Source != "doc.md" || passages[0].Title != "Doc" {
		t.Errorf("metadata not propagated: %+v", passages[0])
	}
}

func TestSplit_BlankInputYieldsNothing(t *testing.T) {
	s := New(1000, 200)

	for _, input := range []string{"", "   ", "\n\n\t"} {
		if got := s.Split(input, "doc.md", "Doc"); got != nil {
			t.Errorf("Split(%q) = %d passages, want none", input, len(got))
		}
	}
}

func TestSplit_NoPassageExceedsSize(t *testing.T) {
	s := New(100, 20)

	// Sentences of varying length, plus one unbreakable run
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40) +
		strings.Repeat("x", 350)

	passages := s.Split(text, "doc.md", "Doc")

	if len(passages) < 2 {
		t.Fatalf("got %d passages, want several", len(passages))
	}
	for i, p := range passages {
		if len(p.Text) > 100 {
			t.Errorf("passage %d length %d exceeds size 100", i, len(p.Text))
		}
		if p.Text == "" {
			t.Errorf("passage %d is empty", i)
		}
	}
}

func TestSplit_PrefersParagraphBoundary(t *testing.T) {
	para1 := strings.Repeat("aaaa ", 12) // 60 bytes
	para2 := strings.Repeat("bbbb ", 12)
	text := para1 + "\n\n" + para2

	s := New(100, 10)
	passages := s.Split(text, "doc.md", "Doc")

	if len(passages) < 2 {
		t.Fatalf("got %d passages, want at least 2", len(passages))
	}
	// First cut should land on the paragraph break, not mid-word
	if strings.Contains(passages[0].Text, "bbbb") {
		t.Errorf("first passage crossed the paragraph boundary: %q", passages[0].Text)
	}
}

func TestSplit_OverlapCarriesSharedText(t *testing.T) {
	words := make([]string, 0, 300)
	for i := 0; i < 300; i++ {
		words = append(words, "word")
	}
	text := strings.Join(words, " ")

	s := New(200, 50)
	passages := s.Split(text, "doc.md", "Doc")

	if len(passages) < 2 {
		t.Fatalf("got %d passages, want several", len(passages))
	}

	// Consecutive passages must share text: the tail of one passage
	// appears at the head of the next.
	for i := 1; i < len(passages); i++ {
		head := passages[i].Text
		if len(head) > 20 {
			head = head[:20]
		}
		if !strings.Contains(passages[i-1].Text+" "+passages[i].Text, head) {
			t.Errorf("passage %d does not overlap its predecessor", i)
		}
	}
}

func TestSplit_HardCutWithoutBoundaries(t *testing.T) {
	// No spaces or newlines anywhere: only hard cuts are possible
	text := strings.Repeat("a", 2500)

	s := New(1000, 200)
	passages := s.Split(text, "doc.md", "Doc")

	if len(passages) < 3 {
		t.Fatalf("got %d passages, want at least 3", len(passages))
	}
	for i, p := range passages {
		if len(p.Text) > 1000 {
			t.Errorf("passage %d length %d exceeds hard limit", i, len(p.Text))
		}
	}
}

func TestSplit_HardCutNeverSplitsRune(t *testing.T) {
	text := strings.Repeat("語", 600) // 1800 bytes, no break boundaries

	s := New(1000, 100)
	passages := s.Split(text, "doc.md", "Doc")

	for i, p := range passages {
		for _, r := range p.Text {
			if r == '�' {
				t.Fatalf("passage %d contains a broken rune", i)
			}
		}
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("Sentence one. Sentence two! Sentence three? ", 60)

	s := New(500, 100)
	first := s.Split(text, "doc.md", "Doc")
	second := s.Split(text, "doc.md", "Doc")

	if len(first) != len(second) {
		t.Fatalf("runs disagree: %d vs %d passages", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("passage %d differs between runs", i)
		}
	}
}

func TestSplit_CoversWholeText(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 120; i++ {
		fmt.Fprintf(&b, "Sentence number %d in the corpus. ", i)
		if i%10 == 9 {
			b.WriteString("\n\n")
		}
	}
	text := b.String()

	s := New(300, 60)
	passages := s.Split(text, "doc.md", "Doc")

	// Every passage must be a contiguous substring, and the match
	// positions must advance without gaps beyond the overlap.
	prevEnd := 0
	for i, p := range passages {
		idx := strings.Index(text, p.Text)
		if idx < 0 {
			t.Fatalf("passage %d is not a substring of the input", i)
		}
		if idx > prevEnd {
			t.Errorf("gap before passage %d: starts at %d, previous ended at %d", i, idx, prevEnd)
		}
		if end := idx + len(p.Text); end > prevEnd {
			prevEnd = end
		}
	}
	// Whole input covered, modulo trailing whitespace trimmed from chunks
	if remaining := strings.TrimSpace(text[prevEnd:]); remaining != "" {
		t.Errorf("tail of input not covered: %q", remaining)
	}
}

func TestNew_NormalizesBadConfig(t *testing.T) {
	s := New(0, -5)
	if s.size != DefaultSize || s.overlap != DefaultOverlap {
		t.Errorf("got size=%d overlap=%d, want defaults", s.size, s.overlap)
	}

	s = New(50, 80)
	if s.overlap >= s.size {
		t.Errorf("overlap %d must be smaller than size %d", s.overlap, s.size)
	}
}

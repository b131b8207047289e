package chunk

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

const sampleSyllabus = `Unit 1: Arrays and Strings

Topics: Arrays, Strings, Two Pointers
Static arrays, dynamic arrays, and amortized growth. String matching
basics. Two pointer techniques for sorted input.

Unit 2: Trees and Graphs

Topics: Binary Trees, Graph Traversal
Binary trees, traversals, and balanced search trees. Breadth-first and
depth-first search over adjacency lists.
`

func TestSplitInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "overlap equals size", cfg: Config{ChunkSize: 100, Overlap: 100}},
		{name: "overlap exceeds size", cfg: Config{ChunkSize: 100, Overlap: 150}},
		{name: "zero size", cfg: Config{ChunkSize: 0, Overlap: 0}},
		{name: "negative overlap", cfg: Config{ChunkSize: 100, Overlap: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Split(sampleSyllabus, "sample.txt", tt.cfg)
			if !errors.Is(err, ErrInvalidChunking) {
				t.Errorf("Split() error = %v, want ErrInvalidChunking", err)
			}
		})
	}
}

func TestSplitRoundTrip(t *testing.T) {
	configs := []Config{
		{ChunkSize: 80, Overlap: 20},
		{ChunkSize: 120, Overlap: 0},
		{ChunkSize: 50, Overlap: 49},
		{ChunkSize: 10000, Overlap: 100},
	}

	for _, cfg := range configs {
		chunks, err := Split(sampleSyllabus, "sample.txt", cfg)
		if err != nil {
			t.Fatalf("Split(%+v) error = %v", cfg, err)
		}
		if got := Reconstruct(chunks); got != sampleSyllabus {
			t.Errorf("Reconstruct() mismatch for %+v:\ngot  %q\nwant %q", cfg, got, sampleSyllabus)
		}
	}
}

func TestSplitMultibyteRunes(t *testing.T) {
	source := strings.Repeat("数据结构第一单元：数组与链表。树与图的遍历算法。", 40)
	configs := []Config{
		{ChunkSize: 100, Overlap: 10},
		{ChunkSize: 64, Overlap: 16},
		{ChunkSize: 50, Overlap: 49},
	}

	for _, cfg := range configs {
		chunks, err := Split(source, "cjk.txt", cfg)
		if err != nil {
			t.Fatalf("Split(%+v) error = %v", cfg, err)
		}
		for i, c := range chunks {
			if !utf8.ValidString(c.Text) {
				t.Fatalf("chunk %d for %+v is not valid UTF-8: %q", i, cfg, c.Text)
			}
		}
		if got := Reconstruct(chunks); got != source {
			t.Errorf("Reconstruct() mismatch for %+v", cfg)
		}
	}
}

func TestSplitChunkBounds(t *testing.T) {
	cfg := Config{ChunkSize: 80, Overlap: 20}
	chunks, err := Split(sampleSyllabus, "sample.txt", cfg)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i, c := range chunks {
		if len(c.Text) > cfg.ChunkSize {
			t.Errorf("chunk %d length %d exceeds chunk size %d", i, len(c.Text), cfg.ChunkSize)
		}
		if c.Seq != i {
			t.Errorf("chunk %d has seq %d", i, c.Seq)
		}
		if c.ID == "" {
			t.Errorf("chunk %d has empty id", i)
		}
		if i > 0 && c.Start >= c.End {
			t.Errorf("chunk %d has invalid span [%d,%d)", i, c.Start, c.End)
		}
	}
}

func TestSplitTagging(t *testing.T) {
	chunks, err := Split(sampleSyllabus, "sample.txt", Config{ChunkSize: 200, Overlap: 20})
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	foundUnit1, foundUnit2, foundTopic := false, false, false
	for _, c := range chunks {
		switch c.Unit {
		case 1:
			foundUnit1 = true
		case 2:
			foundUnit2 = true
		}
		if c.Topic != "" {
			foundTopic = true
		}
	}
	if !foundUnit1 || !foundUnit2 {
		t.Errorf("unit tagging missed units: unit1=%v unit2=%v", foundUnit1, foundUnit2)
	}
	if !foundTopic {
		t.Error("topic tagging found no topics")
	}
}

func TestSplitTaggingFailureLeavesFieldsEmpty(t *testing.T) {
	chunks, err := Split("plain prose with no headings at all", "plain.txt", Config{ChunkSize: 500, Overlap: 0})
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	for _, c := range chunks {
		if c.Unit != 0 || c.Topic != "" {
			t.Errorf("expected untagged chunk, got unit=%d topic=%q", c.Unit, c.Topic)
		}
	}
}

func TestSplitEmptySource(t *testing.T) {
	chunks, err := Split("   \n\n  ", "empty.txt", Config{ChunkSize: 100, Overlap: 10})
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for blank source, got %d", len(chunks))
	}
}

func TestSplitPrefersSentenceBoundaries(t *testing.T) {
	source := strings.Repeat("First sentence here. Second sentence here. ", 10)
	chunks, err := Split(source, "s.txt", Config{ChunkSize: 100, Overlap: 10})
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	boundaryEndings := 0
	for _, c := range chunks[:len(chunks)-1] {
		if strings.HasSuffix(c.Text, ". ") {
			boundaryEndings++
		}
	}
	if boundaryEndings == 0 {
		t.Error("no chunk ended on a sentence boundary")
	}
}

// Package chunk splits source documents into overlapping text chunks
// with best-effort unit and topic metadata.
//
// Chunks carry their byte offsets into the source, so the original text
// can be reconstructed from a chunk sequence by dropping each chunk's
// overlap with its predecessor. Chunks are immutable once built; the
// only supported mutation is rebuilding the whole set.
package chunk

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ErrInvalidChunking indicates a bad chunk size / overlap combination.
var ErrInvalidChunking = errors.New("invalid chunking configuration")

// Chunk is a bounded span of source text plus metadata and, once
// embedded, its embedding vector.
type Chunk struct {
	// ID uniquely identifies the chunk in the index.
	ID string `json:"id"`
	// Seq is the insertion order, used for deterministic tie-breaks.
	Seq int `json:"seq"`
	// Text is the chunk content.
	Text string `json:"text"`
	// Start and End are the byte offsets of Text within the source.
	Start int `json:"start"`
	End   int `json:"end"`
	// SourceRef names the document the chunk came from.
	SourceRef string `json:"source_ref"`
	// Unit is the syllabus unit number the chunk was tagged with,
	// or 0 when tagging found nothing.
	Unit int `json:"unit,omitempty"`
	// Topic is the topic heading the chunk was tagged with, if any.
	Topic string `json:"topic,omitempty"`
	// Embedding is filled at index-build time.
	Embedding []float32 `json:"-"`
}

// Config controls chunking.
type Config struct {
	// ChunkSize is the window size in characters.
	ChunkSize int
	// Overlap is the number of characters shared between consecutive
	// chunks. Must be smaller than ChunkSize.
	Overlap int
}

var (
	unitPattern  = regexp.MustCompile(`(?i)(?:unit|chapter|module)[\s-]*(\d+)`)
	topicPattern = regexp.MustCompile(`(?im)^\s*topics?\s*[:\-]\s*(.+)$`)
)

// Split chunks source into overlapping spans, preferring paragraph and
// sentence boundaries and falling back to a fixed character window.
// Cut points never fall inside a UTF-8 rune. Each chunk is tagged with
// unit/topic metadata where a heading match succeeds; tagging failures
// leave those fields empty.
func Split(source, sourceRef string, cfg Config) ([]Chunk, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive", ErrInvalidChunking)
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, chunk size %d)",
			ErrInvalidChunking, cfg.Overlap, cfg.ChunkSize)
	}
	if strings.TrimSpace(source) == "" {
		return nil, nil
	}

	var chunks []Chunk
	start := 0
	for start < len(source) {
		end := start + cfg.ChunkSize
		if end >= len(source) {
			end = len(source)
		} else {
			end = runeStart(source, end)
			if cut := snapToBoundary(source, start, end); cut > start {
				end = cut
			}
			if end <= start {
				_, size := utf8.DecodeRuneInString(source[start:])
				end = start + size
			}
		}

		c := Chunk{
			ID:        uuid.NewString(),
			Seq:       len(chunks),
			Text:      source[start:end],
			Start:     start,
			End:       end,
			SourceRef: sourceRef,
		}
		tag(&c)
		chunks = append(chunks, c)

		if end == len(source) {
			break
		}
		next := end - cfg.Overlap
		if next > start {
			next = runeStart(source, next)
		}
		if next <= start {
			_, size := utf8.DecodeRuneInString(source[start:])
			next = start + size
		}
		start = next
	}

	return chunks, nil
}

// runeStart walks i back to the start of the rune it falls inside.
func runeStart(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// snapToBoundary moves end back to the closest paragraph or sentence
// boundary in the second half of the window. Returns start when no
// boundary is found, which makes the caller keep the hard cut.
func snapToBoundary(source string, start, end int) int {
	window := source[start:end]
	floor := len(window) / 2

	// Paragraph break wins over sentence break.
	if i := strings.LastIndex(window, "\n\n"); i >= floor {
		return start + i + 2
	}
	for _, sep := range []string{". ", ".\n", "? ", "! ", "\n"} {
		if i := strings.LastIndex(window, sep); i >= floor {
			return start + i + len(sep)
		}
	}
	return start
}

// tag applies best-effort unit and topic detection to a chunk.
func tag(c *Chunk) {
	if m := unitPattern.FindStringSubmatch(c.Text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			c.Unit = n
		}
	}
	if m := topicPattern.FindStringSubmatch(c.Text); m != nil {
		first := strings.SplitN(m[1], ",", 2)[0]
		c.Topic = strings.TrimSpace(first)
	}
}

// Reconstruct concatenates chunk texts, dropping each chunk's overlap
// with its predecessor. Given the unmodified output of Split, it
// returns the original source.
func Reconstruct(chunks []Chunk) string {
	var b strings.Builder
	prevEnd := 0
	for _, c := range chunks {
		skip := 0
		if c.Start < prevEnd {
			skip = prevEnd - c.Start
		}
		if skip < len(c.Text) {
			b.WriteString(c.Text[skip:])
		}
		if c.End > prevEnd {
			prevEnd = c.End
		}
	}
	return b.String()
}

// Package indexer provides document chunking and one-time ingestion into the vector index.
package indexer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/hyperjump/kotae/internal/models"
)

// Chunker splits page text into overlapping passages. It breaks on paragraph
// boundaries first, then sentence boundaries, then at arbitrary rune positions.
// Sizes are measured in runes.
//
// Every passage holds at most chunkSize runes. Because the rune-level split is
// the last resort, no unit is ever too large to split. Within a page,
// passage i+1 starts with exactly the last chunkOverlap runes of passage i, so
// dropping that prefix from every passage but the first and concatenating
// yields the page text unchanged. Overlap never crosses a page.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in runes).
// chunkSize must be positive and chunkOverlap must be in [0, chunkSize).
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", models.ErrInvalidInput, chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, %d), got %d", models.ErrInvalidInput, chunkSize, chunkOverlap)
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// ChunkSize returns the maximum passage length in runes.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// ChunkOverlap returns the number of runes repeated between consecutive passages.
func (c *Chunker) ChunkOverlap() int { return c.chunkOverlap }

// SplitPages chunks every page in order. Chunk numbers in metadata run across
// the whole document.
func (c *Chunker) SplitPages(pages []models.Page) []models.Passage {
	var out []models.Passage
	for _, p := range pages {
		out = append(out, c.split(p, len(out))...)
	}
	return out
}

// Split chunks a single page. Whitespace-only pages yield nil.
func (c *Chunker) Split(page models.Page) []models.Passage {
	return c.split(page, 0)
}

func (c *Chunker) split(page models.Page, firstChunk int) []models.Passage {
	if strings.TrimSpace(page.Text) == "" {
		return nil
	}
	text := []rune(page.Text)
	spans := c.pack(text)
	passages := make([]models.Passage, 0, len(spans))
	for i, s := range spans {
		passages = append(passages, models.Passage{
			Text:         string(text[s.start:s.end]),
			SourceOffset: page.Offset + s.start,
			Metadata: map[string]string{
				models.MetaID:    uuid.New().String(),
				models.MetaPage:  strconv.Itoa(page.Index),
				models.MetaChunk: strconv.Itoa(firstChunk + i),
			},
		})
	}
	return passages
}

type span struct {
	start, end int
}

func (s span) len() int { return s.end - s.start }

// pack greedily groups contiguous segments into chunks. A new chunk starts
// chunkOverlap runes before the first segment that no longer fits.
func (c *Chunker) pack(text []rune) []span {
	segs := c.segments(text)
	if len(segs) == 0 {
		return nil
	}
	var chunks []span
	cur := span{}
	fresh := 0
	for _, seg := range segs {
		if seg.end-cur.start > c.chunkSize && seg.start > fresh {
			chunks = append(chunks, span{cur.start, seg.start})
			cur.start = seg.start - c.chunkOverlap
			fresh = seg.start
		}
		cur.end = seg.end
	}
	return append(chunks, cur)
}

// segments splits text into contiguous units no longer than the room left
// after an overlap prefix, descending from paragraphs to sentences to runes.
func (c *Chunker) segments(text []rune) []span {
	budget := c.chunkSize - c.chunkOverlap
	var out []span
	for _, para := range splitAfter(text, span{0, len(text)}, paragraphBreak) {
		if para.len() <= budget {
			out = append(out, para)
			continue
		}
		for _, sent := range splitAfter(text, para, sentenceBreak) {
			if sent.len() <= budget {
				out = append(out, sent)
				continue
			}
			for s := sent.start; s < sent.end; s += budget {
				out = append(out, span{s, min(s+budget, sent.end)})
			}
		}
	}
	return out
}

// splitAfter cuts within into spans ending right after each separator that
// boundary reports. Separators stay attached to the preceding span.
func splitAfter(text []rune, within span, boundary func(text []rune, i, end int) int) []span {
	var out []span
	start := within.start
	for i := within.start; i < within.end; {
		if n := boundary(text, i, within.end); n > 0 {
			i += n
			out = append(out, span{start, i})
			start = i
			continue
		}
		i++
	}
	if start < within.end {
		out = append(out, span{start, within.end})
	}
	return out
}

// paragraphBreak matches a whitespace run at i holding at least two newlines.
func paragraphBreak(text []rune, i, end int) int {
	if text[i] != '\n' {
		return 0
	}
	j, newlines := i, 0
	for j < end && unicode.IsSpace(text[j]) {
		if text[j] == '\n' {
			newlines++
		}
		j++
	}
	if newlines < 2 {
		return 0
	}
	return j - i
}

// sentenceBreak matches terminal punctuation followed by whitespace, or a
// single line break, including the trailing whitespace run.
func sentenceBreak(text []rune, i, end int) int {
	switch text[i] {
	case '.', '!', '?':
		j := i + 1
		if j >= end || !unicode.IsSpace(text[j]) {
			return 0
		}
		for j < end && unicode.IsSpace(text[j]) {
			j++
		}
		return j - i
	case '\n':
		j := i
		for j < end && unicode.IsSpace(text[j]) {
			j++
		}
		return j - i
	}
	return 0
}

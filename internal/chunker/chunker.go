// Package chunker splits documents into overlapping chunks and numbers them per source.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/mcqgen/internal/models"
)

// Defaults used by ingestion.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// DefaultSeparators are tried in order: paragraphs, lines, words, characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Chunker is a recursive character splitter. Sizes are counted in runes.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewChunker creates a chunker with the given size and overlap.
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap > chunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be between 0 and chunk size %d", chunkOverlap, chunkSize)
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   DefaultSeparators,
	}, nil
}

// SplitDocuments chunks every document. Each chunk copies its document's metadata and
// gets a row_id counting chunks of the same source across all documents, so pages of
// one PDF share a numbering and unchanged input always yields the same fingerprints.
func (c *Chunker) SplitDocuments(docs []models.Document) []models.Chunk {
	rows := make(map[string]int)
	var out []models.Chunk
	for _, d := range docs {
		source := models.SourceOf(d.Metadata)
		for _, text := range c.SplitText(Preprocess(d.Content)) {
			meta := models.CloneMetadata(d.Metadata)
			meta[models.MetaRowID] = rows[source]
			rows[source]++
			out = append(out, models.Chunk{Content: text, Metadata: meta})
		}
	}
	return out
}

// SplitText splits text into chunks of at most chunkSize runes where the separators allow.
func (c *Chunker) SplitText(text string) []string {
	return c.split(text, c.separators)
}

func (c *Chunker) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var next []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			next = separators[i+1:]
			break
		}
	}

	var out, good []string
	for _, s := range splitKeepingSeparator(text, separator) {
		if runeLen(s) < c.chunkSize {
			good = append(good, s)
			continue
		}
		if len(good) > 0 {
			out = append(out, c.merge(good)...)
			good = nil
		}
		if len(next) == 0 {
			out = append(out, s)
		} else {
			out = append(out, c.split(s, next)...)
		}
	}
	if len(good) > 0 {
		out = append(out, c.merge(good)...)
	}
	return out
}

// splitKeepingSeparator splits text so every piece after the first starts with sep.
// An empty sep splits into runes. Empty pieces are dropped.
func splitKeepingSeparator(text, sep string) []string {
	var parts []string
	if sep == "" {
		parts = make([]string, 0, len(text))
		for _, r := range text {
			parts = append(parts, string(r))
		}
		return parts
	}
	raw := strings.Split(text, sep)
	if raw[0] != "" {
		parts = append(parts, raw[0])
	}
	for _, p := range raw[1:] {
		parts = append(parts, sep+p)
	}
	return parts
}

// merge packs splits into chunks no longer than chunkSize, carrying up to chunkOverlap
// runes of trailing splits into the next chunk.
func (c *Chunker) merge(splits []string) []string {
	var out []string
	var current []string
	total := 0
	for _, s := range splits {
		n := runeLen(s)
		if total+n > c.chunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				out = append(out, doc)
			}
			for total > c.chunkOverlap || (total+n > c.chunkSize && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, s)
		total += n
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		out = append(out, doc)
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// Package models defines core data structures for documents, chunks, retrieval and generated questions.
package models

import (
	"fmt"
	"time"
)

// Metadata keys with special meaning for ingestion.
const (
	MetaSource   = "source"
	MetaFilePath = "file_path"
	MetaRowID    = "row_id"
	MetaPage     = "page"
)

// Document is the text extracted from one input file (or one page of a PDF).
type Document struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Chunk is a piece of a document ready for embedding. Metadata carries the source
// identifier and, once chunked, a row_id. Chunks are not modified after creation.
type Chunk struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

// Source returns the chunk's source identifier ("source", else "file_path"), or "".
func (c Chunk) Source() string {
	return SourceOf(c.Metadata)
}

// SourceOf returns the non-empty "source" value of metadata, else "file_path", else "".
func SourceOf(metadata map[string]interface{}) string {
	for _, key := range []string{MetaSource, MetaFilePath} {
		v, ok := metadata[key]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			if s != "" {
				return s
			}
			continue
		}
		return fmt.Sprint(v)
	}
	return ""
}

// CloneMetadata returns a shallow copy of m.
func CloneMetadata(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// IngestReport summarizes one ingestion call.
type IngestReport struct {
	SessionID string    `json:"session_id"`
	IndexDir  string    `json:"index_dir"`
	Files     []string  `json:"files"`
	Skipped   []string  `json:"skipped,omitempty"`
	Documents int       `json:"documents"`
	Chunks    int       `json:"chunks"`
	Added     int       `json:"added"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// Package fingerprint provides the deterministic identity key used to de-duplicate chunks.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/hyperjump/mcqgen/internal/models"
)

const separator = "::"

// Of returns the fingerprint for a chunk. When metadata names a source ("source",
// else "file_path") the key is "{source}::{row_id}" with an empty row_id when absent,
// so the same row of the same source always maps to the same key even if its text
// changed. Otherwise the key is the hex SHA-256 of content.
func Of(content string, metadata map[string]interface{}) string {
	if source := models.SourceOf(metadata); source != "" {
		return source + separator + rowID(metadata)
	}
	return ContentHash(content)
}

// OfChunk is Of for a chunk.
func OfChunk(c models.Chunk) string {
	return Of(c.Content, c.Metadata)
}

// ContentHash returns the lowercase hex SHA-256 of content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func rowID(metadata map[string]interface{}) string {
	v, ok := metadata[models.MetaRowID]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

package models

import "time"

// Session is one upload context: its own upload directory and vector index.
type Session struct {
	ID        string    `json:"id"`
	IndexDir  string    `json:"index_dir"`
	DataDir   string    `json:"data_dir"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Aggregates filled in by the catalog on read.
	Ingestions  int `json:"ingestions"`
	Chunks      int `json:"chunks"`
	Generations int `json:"generations"`
}

// IngestionRecord is the catalog row for one ingestion call.
type IngestionRecord struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Files     []string  `json:"files"`
	Documents int       `json:"documents"`
	Chunks    int       `json:"chunks"`
	Added     int       `json:"added"`
	CreatedAt time.Time `json:"created_at"`
}

// GenerationRecord is the catalog row for one question generation.
type GenerationRecord struct {
	ID        int64            `json:"id"`
	SessionID string           `json:"session_id"`
	Topic     string           `json:"topic"`
	Status    GenerationStatus `json:"status"`
	Questions int              `json:"questions"`
	CreatedAt time.Time        `json:"created_at"`
}

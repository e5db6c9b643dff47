// Package storage keeps the session catalog: which sessions exist, what was ingested
// into them and which generations ran against them.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/mcqgen/internal/models"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("not found")

// Catalog defines session history persistence.
type Catalog interface {
	// Session operations
	EnsureSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListSessions(ctx context.Context, offset, limit int) ([]*models.Session, error)

	// History
	RecordIngestion(ctx context.Context, r *models.IngestionRecord) error
	ListIngestions(ctx context.Context, sessionID string) ([]*models.IngestionRecord, error)
	RecordGeneration(ctx context.Context, r *models.GenerationRecord) error

	// Stats
	CountSessions(ctx context.Context) (int64, error)

	Close() error
}

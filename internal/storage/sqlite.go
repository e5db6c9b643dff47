package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/mcqgen/internal/models"
)

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteCatalog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		index_dir TEXT NOT NULL,
		data_dir TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);

	CREATE TABLE IF NOT EXISTS ingestions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		files TEXT NOT NULL,
		documents INTEGER NOT NULL,
		chunks INTEGER NOT NULL,
		added INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_ingestions_session_id ON ingestions(session_id);

	CREATE TABLE IF NOT EXISTS generations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		topic TEXT NOT NULL,
		status TEXT NOT NULL,
		questions INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_generations_session_id ON generations(session_id);
	`
	_, err := db.Exec(schema)
	return err
}

// EnsureSession inserts the session if it is new. An existing session keeps its
// directories and creation time. CreatedAt and UpdatedAt are set on s.
func (s *SQLiteCatalog) EnsureSession(ctx context.Context, sess *models.Session) error {
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, index_dir, data_dir, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		sess.ID, sess.IndexDir, sess.DataDir, sess.CreatedAt, sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

const sessionSelect = `
	SELECT s.id, s.index_dir, s.data_dir, s.created_at, s.updated_at,
		(SELECT COUNT(*) FROM ingestions i WHERE i.session_id = s.id),
		(SELECT COALESCE(SUM(added), 0) FROM ingestions i WHERE i.session_id = s.id),
		(SELECT COUNT(*) FROM generations g WHERE g.session_id = s.id)
	FROM sessions s`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row scanner) (*models.Session, error) {
	var sess models.Session
	err := row.Scan(&sess.ID, &sess.IndexDir, &sess.DataDir, &sess.CreatedAt, &sess.UpdatedAt,
		&sess.Ingestions, &sess.Chunks, &sess.Generations)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// GetSession returns a session with its aggregates.
func (s *SQLiteCatalog) GetSession(ctx context.Context, id string) (*models.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx, sessionSelect+` WHERE s.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// ListSessions returns sessions, most recently updated first.
func (s *SQLiteCatalog) ListSessions(ctx context.Context, offset, limit int) ([]*models.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		sessionSelect+` ORDER BY s.updated_at DESC, s.id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// touch bumps the session's updated_at inside tx.
func touch(ctx context.Context, tx *sql.Tx, sessionID string, at time.Time) error {
	res, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, at, sessionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	return nil
}

// RecordIngestion stores r and bumps the session. The session must exist.
func (s *SQLiteCatalog) RecordIngestion(ctx context.Context, r *models.IngestionRecord) error {
	filesJSON, err := json.Marshal(r.Files)
	if err != nil {
		return fmt.Errorf("failed to marshal files: %w", err)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := touch(ctx, tx, r.SessionID, r.CreatedAt); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO ingestions (session_id, files, documents, chunks, added, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.SessionID, string(filesJSON), r.Documents, r.Chunks, r.Added, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert ingestion: %w", err)
	}
	if r.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	return tx.Commit()
}

// ListIngestions returns the ingestions of a session, oldest first.
func (s *SQLiteCatalog) ListIngestions(ctx context.Context, sessionID string) ([]*models.IngestionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, files, documents, chunks, added, created_at
		 FROM ingestions WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.IngestionRecord
	for rows.Next() {
		var r models.IngestionRecord
		var filesJSON string
		if err := rows.Scan(&r.ID, &r.SessionID, &filesJSON, &r.Documents, &r.Chunks, &r.Added, &r.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(filesJSON), &r.Files); err != nil {
			return nil, fmt.Errorf("failed to unmarshal files: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// RecordGeneration stores r and bumps the session. The session must exist.
func (s *SQLiteCatalog) RecordGeneration(ctx context.Context, r *models.GenerationRecord) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := touch(ctx, tx, r.SessionID, r.CreatedAt); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO generations (session_id, topic, status, questions, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		r.SessionID, r.Topic, string(r.Status), r.Questions, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert generation: %w", err)
	}
	if r.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	return tx.Commit()
}

// CountSessions returns the number of sessions.
func (s *SQLiteCatalog) CountSessions(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteCatalog) Close() error {
	return s.db.Close()
}

// Package ingest drives document ingestion into per-session vector indices: it saves
// uploads, loads and chunks them, and hands the chunks to the session's index manager.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/mcqgen/internal/chunker"
	"github.com/hyperjump/mcqgen/internal/config"
	"github.com/hyperjump/mcqgen/internal/embedding"
	"github.com/hyperjump/mcqgen/internal/extract"
	"github.com/hyperjump/mcqgen/internal/models"
	"github.com/hyperjump/mcqgen/internal/storage"
	"github.com/hyperjump/mcqgen/internal/vectorstore"
	"go.uber.org/zap"
)

var (
	// ErrSessionNotFound is returned for a session id with no directories.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidSessionID is returned for ids that are not safe directory names.
	ErrInvalidSessionID = errors.New("invalid session id")
	// ErrNoDocuments is returned when nothing extractable was given.
	ErrNoDocuments = errors.New("no documents to ingest")
	// ErrSessionBusy is returned when another process holds the session's writer lock.
	ErrSessionBusy = errors.New("session is locked by another process")
)

// DefaultSessionID names the single session used when per-session directories are off.
const DefaultSessionID = "default"

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Config holds the directories and pipeline settings of the service.
type Config struct {
	DataDir     string
	IndexDir    string
	SessionDirs bool
	// Index configures new indices; Dir is set per session.
	Index     vectorstore.Config
	Retriever vectorstore.RetrieverOptions

	ChunkSize    int
	ChunkOverlap int
	Workers      int
}

// ConfigFrom maps the application config onto the service config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		DataDir:     cfg.Storage.DataDir,
		IndexDir:    cfg.Storage.IndexDir,
		SessionDirs: cfg.Storage.SessionDirsOrDefault(),
		Index: vectorstore.Config{
			IndexType:    cfg.Index.Type,
			Metric:       cfg.Index.Metric,
			HNSWM:        cfg.Index.HNSWM,
			HNSWEfSearch: cfg.Index.HNSWEfSearch,
		},
		Retriever: vectorstore.RetrieverOptions{
			SearchType: cfg.Retriever.SearchType,
			K:          cfg.Retriever.K,
			FetchK:     cfg.Retriever.FetchK,
			LambdaMult: cfg.Retriever.LambdaMult,
		},
		ChunkSize:    cfg.Chunking.ChunkSize,
		ChunkOverlap: cfg.Chunking.ChunkOverlap,
		Workers:      cfg.Chunking.Workers,
	}
}

// SessionStatus describes a session's index.
type SessionStatus struct {
	ID        string `json:"id"`
	DataDir   string `json:"data_dir"`
	IndexDir  string `json:"index_dir"`
	State     string `json:"state"`
	IndexType string `json:"index_type,omitempty"`
	Vectors   int    `json:"vectors"`
	Ledger    int    `json:"ledger"`
	DiskBytes int64  `json:"disk_bytes"`
}

// Service ingests documents into sessions and serves their retrievers. Each session's
// index manager is opened once and kept, together with the session's writer lock,
// until Close.
type Service struct {
	cfg      Config
	embedder embedding.Embedder
	loader   *extract.Loader
	chunker  *chunker.Chunker
	catalog  storage.Catalog
	logger   *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu       sync.Mutex
	id       string
	dataDir  string
	indexDir string
	manager  *vectorstore.Manager
	lock     *writerLock
}

// Option configures a Service.
type Option func(*Service)

// WithCatalog records sessions, ingestions and generations in c.
func WithCatalog(c storage.Catalog) Option {
	return func(s *Service) { s.catalog = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService validates cfg and returns a Service.
func NewService(cfg Config, embedder embedding.Embedder, opts ...Option) (*Service, error) {
	if cfg.DataDir == "" || cfg.IndexDir == "" {
		return nil, fmt.Errorf("%w: data and index directories are required", vectorstore.ErrConfiguration)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is nil", vectorstore.ErrConfiguration)
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = chunker.DefaultChunkSize
		if cfg.ChunkOverlap == 0 {
			cfg.ChunkOverlap = chunker.DefaultChunkOverlap
		}
	}
	ch, err := chunker.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vectorstore.ErrConfiguration, err)
	}
	if cfg.Retriever == (vectorstore.RetrieverOptions{}) {
		cfg.Retriever = vectorstore.DefaultRetrieverOptions()
	}
	if err := cfg.Retriever.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		cfg:      cfg,
		embedder: embedder,
		chunker:  ch,
		logger:   zap.NewNop(),
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	loaderOpts := []extract.LoaderOption{extract.WithLoaderLogger(s.logger)}
	if cfg.Workers > 0 {
		loaderOpts = append(loaderOpts, extract.WithWorkers(cfg.Workers))
	}
	s.loader = extract.NewLoader(loaderOpts...)
	return s, nil
}

// NewSessionID returns an id of the form session_YYYYMMDD_HHMMSS_<8 hex>.
func NewSessionID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("session_%s_%s", now.Format("20060102_150405"), suffix)
}

func (s *Service) dirs(id string) (dataDir, indexDir string) {
	if !s.cfg.SessionDirs {
		return s.cfg.DataDir, s.cfg.IndexDir
	}
	return filepath.Join(s.cfg.DataDir, id), filepath.Join(s.cfg.IndexDir, id)
}

// CreateSession makes a new session and its directories. Without per-session
// directories it returns the single default session.
func (s *Service) CreateSession(ctx context.Context) (*models.Session, error) {
	id := DefaultSessionID
	if s.cfg.SessionDirs {
		id = NewSessionID(time.Now())
	}
	sess, err := s.session(id, true)
	if err != nil {
		return nil, err
	}
	rec := &models.Session{ID: sess.id, DataDir: sess.dataDir, IndexDir: sess.indexDir}
	s.ensureCatalogSession(ctx, rec)
	s.logger.Info("session created", zap.String("session", sess.id))
	return rec, nil
}

// session returns the cached session for id, creating its directories when create is
// set. An empty id means the default session when per-session directories are off.
func (s *Service) session(id string, create bool) (*session, error) {
	if id == "" && !s.cfg.SessionDirs {
		id = DefaultSessionID
	}
	if !sessionIDPattern.MatchString(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	if !s.cfg.SessionDirs && id != DefaultSessionID {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess, nil
	}

	dataDir, indexDir := s.dirs(id)
	if create || !s.cfg.SessionDirs {
		for _, d := range []string{dataDir, indexDir} {
			if err := os.MkdirAll(d, 0o755); err != nil {
				return nil, fmt.Errorf("create session directory: %w", err)
			}
		}
	} else if !dirExists(dataDir) && !dirExists(indexDir) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	sess := &session{
		id:       id,
		dataDir:  dataDir,
		indexDir: indexDir,
		lock:     newWriterLock(indexDir),
	}
	s.sessions[id] = sess
	return sess, nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Ingest saves uploads into the session's data directory and ingests them. An empty
// sessionID creates a new session.
func (s *Service) Ingest(ctx context.Context, sessionID string, uploads []models.Upload) (*models.IngestReport, error) {
	if len(uploads) == 0 {
		return nil, ErrNoDocuments
	}
	sess, err := s.resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	paths, err := saveUploads(sess.dataDir, uploads)
	if err != nil {
		return nil, err
	}
	return s.ingest(ctx, sess, paths)
}

// IngestFiles ingests files in place, without copying them into the session.
func (s *Service) IngestFiles(ctx context.Context, sessionID string, paths []string) (*models.IngestReport, error) {
	if len(paths) == 0 {
		return nil, ErrNoDocuments
	}
	sess, err := s.resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	abs := make([]string, len(paths))
	for i, p := range paths {
		a, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("absolute path: %w", err)
		}
		abs[i] = a
	}
	return s.ingest(ctx, sess, abs)
}

func (s *Service) resolve(ctx context.Context, sessionID string) (*session, error) {
	if sessionID == "" && s.cfg.SessionDirs {
		rec, err := s.CreateSession(ctx)
		if err != nil {
			return nil, err
		}
		sessionID = rec.ID
	}
	return s.session(sessionID, false)
}

func saveUploads(dir string, uploads []models.Upload) ([]string, error) {
	paths := make([]string, 0, len(uploads))
	for _, u := range uploads {
		name := filepath.Base(u.Name())
		if name == "" || name == "." || name == ".." || name == string(filepath.Separator) {
			return nil, fmt.Errorf("invalid upload name %q", u.Name())
		}
		data, err := u.Read()
		if err != nil {
			return nil, err
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("save upload %s: %w", name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (s *Service) ingest(ctx context.Context, sess *session, paths []string) (*models.IngestReport, error) {
	docs, skipped, err := s.loader.Load(ctx, paths)
	if err != nil {
		return nil, err
	}
	chunks := s.chunker.SplitDocuments(docs)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %d files, %d skipped", ErrNoDocuments, len(paths), len(skipped))
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	mgr, err := s.manager(sess)
	if err != nil {
		return nil, err
	}
	var added int
	if mgr.State().Ready() {
		added, err = mgr.Append(ctx, chunks)
	} else {
		added, err = s.openOrCreate(ctx, sess, mgr, chunks)
	}
	if err != nil {
		s.dropFailed(sess)
		return nil, err
	}

	report := &models.IngestReport{
		SessionID: sess.id,
		IndexDir:  sess.indexDir,
		Files:     loadedFiles(paths, skipped),
		Skipped:   skipped,
		Documents: len(docs),
		Chunks:    len(chunks),
		Added:     added,
		State:     mgr.State().String(),
		CreatedAt: time.Now().UTC(),
	}
	s.recordIngestion(ctx, sess, report)
	s.logger.Info("ingestion complete",
		zap.String("session", sess.id),
		zap.Int("documents", report.Documents),
		zap.Int("chunks", report.Chunks),
		zap.Int("added", report.Added),
		zap.String("state", report.State))
	return report, nil
}

// openOrCreate seeds a fresh directory or loads the existing index and appends to it.
func (s *Service) openOrCreate(ctx context.Context, sess *session, mgr *vectorstore.Manager, chunks []models.Chunk) (int, error) {
	exists, err := vectorstore.IndexExists(sess.indexDir)
	if err != nil {
		return 0, err
	}
	if !exists {
		if _, err := mgr.OpenOrCreate(ctx, chunks...); err != nil {
			return 0, err
		}
		return mgr.Size(), nil
	}
	if _, err := mgr.OpenOrCreate(ctx); err != nil {
		return 0, err
	}
	return mgr.Append(ctx, chunks)
}

// manager returns the session's manager, taking the writer lock on first use.
// sess.mu must be held.
func (s *Service) manager(sess *session) (*vectorstore.Manager, error) {
	if sess.manager != nil {
		return sess.manager, nil
	}
	if err := sess.lock.TryLock(); err != nil {
		return nil, err
	}
	cfg := s.cfg.Index
	cfg.Dir = sess.indexDir
	mgr, err := vectorstore.New(cfg, s.embedder, vectorstore.WithLogger(s.logger.With(zap.String("session", sess.id))))
	if err != nil {
		_ = sess.lock.Unlock()
		return nil, err
	}
	sess.manager = mgr
	return mgr, nil
}

// readManager returns a ready manager for read-only use. Without the writer lock,
// because another process owns the session, it opens a read-only snapshot of the
// index as persisted; the snapshot is not cached so every call sees the latest state.
// sess.mu must be held.
func (s *Service) readManager(ctx context.Context, sess *session) (*vectorstore.Manager, error) {
	mgr, err := s.manager(sess)
	if errors.Is(err, ErrSessionBusy) {
		cfg := s.cfg.Index
		cfg.Dir = sess.indexDir
		cfg.ReadOnly = true
		snap, err := vectorstore.New(cfg, s.embedder, vectorstore.WithLogger(s.logger.With(zap.String("session", sess.id))))
		if err != nil {
			return nil, err
		}
		s.logger.Debug("session locked by another process, reading snapshot", zap.String("session", sess.id))
		if _, err := snap.OpenOrCreate(ctx); err != nil {
			return nil, err
		}
		return snap, nil
	}
	if err != nil {
		return nil, err
	}
	if !mgr.State().Ready() {
		if _, err := mgr.OpenOrCreate(ctx); err != nil {
			return nil, err
		}
	}
	return mgr, nil
}

// dropFailed discards a manager that failed creation so the next call starts over.
// sess.mu must be held.
func (s *Service) dropFailed(sess *session) {
	if sess.manager == nil || sess.manager.State() != vectorstore.StateFailed {
		return
	}
	_ = sess.manager.Close()
	sess.manager = nil
	_ = sess.lock.Unlock()
}

// Retriever returns a retriever over the session's index. opts nil uses the service
// defaults. A session without an index reports ErrNotReady.
func (s *Service) Retriever(ctx context.Context, sessionID string, opts *vectorstore.RetrieverOptions) (*vectorstore.Retriever, error) {
	sess, err := s.session(sessionID, false)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	mgr, err := s.readManager(ctx, sess)
	if err != nil {
		if errors.Is(err, vectorstore.ErrNoIndexAndNoSeedData) {
			return nil, fmt.Errorf("%w: session %s has no documents", vectorstore.ErrNotReady, sess.id)
		}
		return nil, err
	}
	o := s.cfg.Retriever
	if opts != nil {
		o = *opts
	}
	return mgr.AsRetriever(o)
}

// RetrieverOptions returns the service's default retrieval options.
func (s *Service) RetrieverOptions() vectorstore.RetrieverOptions {
	return s.cfg.Retriever
}

// Status reports a session's index without creating one.
func (s *Service) Status(ctx context.Context, sessionID string) (*SessionStatus, error) {
	sess, err := s.session(sessionID, false)
	if err != nil {
		return nil, err
	}
	st := &SessionStatus{
		ID:       sess.id,
		DataDir:  sess.dataDir,
		IndexDir: sess.indexDir,
		State:    vectorstore.StateUninitialized.String(),
	}
	if st.DiskBytes, err = storage.DiskUsageBytes(sess.dataDir, sess.indexDir); err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.manager == nil {
		exists, err := vectorstore.IndexExists(sess.indexDir)
		if err != nil {
			return nil, err
		}
		if !exists {
			return st, nil
		}
	}
	mgr, err := s.readManager(ctx, sess)
	if err != nil {
		return nil, err
	}
	st.State = mgr.State().String()
	st.IndexType = mgr.IndexType()
	st.Vectors = mgr.Size()
	st.Ledger = mgr.LedgerSize()
	return st, nil
}

// Sessions lists sessions from the catalog, or from the index directory without one.
func (s *Service) Sessions(ctx context.Context, offset, limit int) ([]*models.Session, error) {
	if s.catalog != nil {
		return s.catalog.ListSessions(ctx, offset, limit)
	}
	if !s.cfg.SessionDirs {
		dataDir, indexDir := s.dirs(DefaultSessionID)
		return []*models.Session{{ID: DefaultSessionID, DataDir: dataDir, IndexDir: indexDir}}, nil
	}
	entries, err := os.ReadDir(s.cfg.IndexDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []*models.Session
	for _, e := range entries {
		if !e.IsDir() || !sessionIDPattern.MatchString(e.Name()) {
			continue
		}
		dataDir, indexDir := s.dirs(e.Name())
		rec := &models.Session{ID: e.Name(), DataDir: dataDir, IndexDir: indexDir}
		if info, err := e.Info(); err == nil {
			rec.UpdatedAt = info.ModTime().UTC()
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// RecordGeneration stores a generation outcome in the catalog, if any.
func (s *Service) RecordGeneration(ctx context.Context, sessionID, topic string, res models.GenerationResult) {
	if s.catalog == nil {
		return
	}
	err := s.catalog.RecordGeneration(ctx, &models.GenerationRecord{
		SessionID: sessionID,
		Topic:     topic,
		Status:    res.Status,
		Questions: len(res.Questions),
	})
	if err != nil {
		s.logger.Warn("failed to record generation", zap.String("session", sessionID), zap.Error(err))
	}
}

func (s *Service) ensureCatalogSession(ctx context.Context, rec *models.Session) {
	if s.catalog == nil {
		return
	}
	if err := s.catalog.EnsureSession(ctx, rec); err != nil {
		s.logger.Warn("failed to record session", zap.String("session", rec.ID), zap.Error(err))
	}
}

func (s *Service) recordIngestion(ctx context.Context, sess *session, report *models.IngestReport) {
	if s.catalog == nil {
		return
	}
	s.ensureCatalogSession(ctx, &models.Session{ID: sess.id, DataDir: sess.dataDir, IndexDir: sess.indexDir})
	err := s.catalog.RecordIngestion(ctx, &models.IngestionRecord{
		SessionID: sess.id,
		Files:     report.Files,
		Documents: report.Documents,
		Chunks:    report.Chunks,
		Added:     report.Added,
		CreatedAt: report.CreatedAt,
	})
	if err != nil {
		s.logger.Warn("failed to record ingestion", zap.String("session", sess.id), zap.Error(err))
	}
}

// Close closes every open manager and releases the writer locks.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for id, sess := range s.sessions {
		sess.mu.Lock()
		if sess.manager != nil {
			errs = append(errs, sess.manager.Close())
			sess.manager = nil
		}
		errs = append(errs, sess.lock.Unlock())
		sess.mu.Unlock()
		delete(s.sessions, id)
	}
	return errors.Join(errs...)
}

// loadedFiles returns the paths not in skipped, in input order.
func loadedFiles(paths, skipped []string) []string {
	skip := make(map[string]bool, len(skipped))
	for _, p := range skipped {
		skip[p] = true
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !skip[p] {
			out = append(out, p)
		}
	}
	return out
}

// Package vectorstore maintains a persisted vector index that can be appended to
// repeatedly without ever storing the same chunk twice.
//
// A storage location holds three files: the vector file, a docstore with the chunk
// behind every vector label, and the fingerprint ledger. The index files are always
// written before the ledger, so the ledger never names a chunk the index lacks.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/hyperjump/mcqgen/internal/embedding"
	"github.com/hyperjump/mcqgen/internal/fingerprint"
	"github.com/hyperjump/mcqgen/internal/ledger"
	"github.com/hyperjump/mcqgen/internal/models"
	"github.com/hyperjump/mcqgen/internal/vector"
	"go.uber.org/zap"
)

// File names inside a storage location.
const (
	VectorsFile  = "index.vectors"
	DocstoreFile = "index.docstore"
)

// State is the lifecycle state of a Manager.
type State int

const (
	StateUninitialized State = iota
	StateLoaded
	StateCreated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoaded:
		return "loaded"
	case StateCreated:
		return "created"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Ready reports whether append and retrieve are allowed.
func (s State) Ready() bool {
	return s == StateLoaded || s == StateCreated
}

// Config describes one storage location and the index created there.
type Config struct {
	Dir       string
	IndexType string
	Metric    string
	// HNSW only.
	HNSWM        int
	HNSWEfSearch int
	// ReadOnly opens an existing index without writing to the location, for readers
	// running beside the process that owns it.
	ReadOnly bool
}

// Manager owns the index, docstore and ledger of one storage location. It assumes a
// single writer process per location; within the process Append is exclusive with
// retrieval while concurrent retrievals share the lock.
type Manager struct {
	cfg      Config
	embedder embedding.Embedder
	logger   *zap.Logger

	mu     sync.RWMutex
	state  State
	index  vector.VectorIndex
	docs   *docstore
	ledger *ledger.Ledger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// New returns an uninitialized manager for cfg.Dir. Call OpenOrCreate before use.
func New(cfg Config, embedder embedding.Embedder, opts ...Option) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("%w: storage directory is empty", ErrConfiguration)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is nil", ErrConfiguration)
	}
	if _, err := vector.ParseMetric(cfg.Metric); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	m := &Manager{cfg: cfg, embedder: embedder, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	return m, nil
}

// Dir returns the storage location.
func (m *Manager) Dir() string {
	return m.cfg.Dir
}

func (m *Manager) vectorsPath() string  { return filepath.Join(m.cfg.Dir, VectorsFile) }
func (m *Manager) docstorePath() string { return filepath.Join(m.cfg.Dir, DocstoreFile) }
func (m *Manager) ledgerPath() string   { return filepath.Join(m.cfg.Dir, ledger.FileName) }

// IndexExists reports whether dir holds a persisted index. Exactly one of the two
// index files being present is reported as ErrStorageCorruption.
func IndexExists(dir string) (bool, error) {
	vecOK, err := fileExists(filepath.Join(dir, VectorsFile))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorageCorruption, err)
	}
	docOK, err := fileExists(filepath.Join(dir, DocstoreFile))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorageCorruption, err)
	}
	switch {
	case vecOK && docOK:
		return true, nil
	case !vecOK && !docOK:
		return false, nil
	case vecOK:
		return false, fmt.Errorf("%w: %s exists without %s in %s", ErrStorageCorruption, VectorsFile, DocstoreFile, dir)
	default:
		return false, fmt.Errorf("%w: %s exists without %s in %s", ErrStorageCorruption, DocstoreFile, VectorsFile, dir)
	}
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// OpenOrCreate loads the index persisted in the storage location, or creates it from
// seed when none exists. Seeds go through the same de-duplication and ledger recording
// as Append. Corrupt files are reported, never replaced. Calling it on a ready manager
// returns the current state.
func (m *Manager) OpenOrCreate(ctx context.Context, seed ...models.Chunk) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.state.Ready():
		return m.state, nil
	case m.state == StateFailed:
		return m.state, fmt.Errorf("%w: index manager for %s failed earlier", ErrNotReady, m.cfg.Dir)
	}

	if !m.cfg.ReadOnly {
		if err := m.recoverVectorBackup(); err != nil {
			return m.state, fmt.Errorf("%w: recover vector backup: %v", ErrStorageCorruption, err)
		}
	}
	exists, err := IndexExists(m.cfg.Dir)
	if err != nil {
		return m.state, err
	}
	if exists {
		if err := m.load(); err != nil {
			return m.state, err
		}
		m.state = StateLoaded
		m.logger.Info("vector index loaded",
			zap.String("dir", m.cfg.Dir),
			zap.String("type", m.index.Type()),
			zap.Int("vectors", m.index.Size()),
			zap.Int("ledger", m.ledger.Len()))
		return m.state, nil
	}

	if len(seed) == 0 {
		return m.state, ErrNoIndexAndNoSeedData
	}
	if m.cfg.ReadOnly {
		return m.state, ErrReadOnly
	}
	added, err := m.create(ctx, seed)
	if err != nil {
		return m.state, err
	}
	m.logger.Info("vector index created",
		zap.String("dir", m.cfg.Dir),
		zap.String("type", m.index.Type()),
		zap.Int("seed", len(seed)),
		zap.Int("added", added))
	return m.state, nil
}

// recoverVectorBackup handles a persist that stopped after moving the vector file aside.
// A backup with no vector file is put back. A backup next to a vector file that does not
// match the docstore replaces it when the backup does match.
func (m *Manager) recoverVectorBackup() error {
	bak := m.vectorsPath() + ".bak"
	hasBak, err := fileExists(bak)
	if err != nil || !hasBak {
		return err
	}
	hasVectors, err := fileExists(m.vectorsPath())
	if err != nil {
		return err
	}
	if !hasVectors {
		m.logger.Warn("restoring vector file from backup", zap.String("path", bak))
		return os.Rename(bak, m.vectorsPath())
	}
	docs, err := loadDocstore(m.docstorePath())
	if err != nil {
		return nil
	}
	if n, err := m.countVectors(docs, m.vectorsPath()); err == nil && n == len(docs.Entries) {
		return os.Remove(bak)
	}
	if n, err := m.countVectors(docs, bak); err == nil && n == len(docs.Entries) {
		m.logger.Warn("restoring vector file from backup", zap.String("path", bak))
		return os.Rename(bak, m.vectorsPath())
	}
	return nil
}

// countVectors loads the vector file at path with the docstore's settings and returns its size.
func (m *Manager) countVectors(docs *docstore, path string) (int, error) {
	idx, err := vector.NewVectorIndex(vector.Config{
		Type:       docs.IndexType,
		Dimensions: docs.Dimensions,
		Metric:     vector.Metric(docs.Metric),
		M:          m.cfg.HNSWM,
		EfSearch:   m.cfg.HNSWEfSearch,
	})
	if err != nil {
		return 0, err
	}
	defer idx.Close()
	if err := idx.Load(path); err != nil {
		return 0, err
	}
	return idx.Size(), nil
}

// load reads the docstore, then the vector file it describes, then the ledger.
func (m *Manager) load() error {
	docs, err := loadDocstore(m.docstorePath())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageCorruption, err)
	}
	if dims := m.embedder.Dimensions(); docs.Dimensions != dims {
		return fmt.Errorf("%w: index in %s has %d dimensions, embedder produces %d",
			ErrConfiguration, m.cfg.Dir, docs.Dimensions, dims)
	}
	if docs.IndexType != m.cfg.IndexType && m.cfg.IndexType != "" {
		m.logger.Warn("configured index type differs from stored index, using stored type",
			zap.String("configured", m.cfg.IndexType),
			zap.String("stored", docs.IndexType))
	}
	idx, err := vector.NewVectorIndex(vector.Config{
		Type:       docs.IndexType,
		Dimensions: docs.Dimensions,
		Metric:     vector.Metric(docs.Metric),
		M:          m.cfg.HNSWM,
		EfSearch:   m.cfg.HNSWEfSearch,
	})
	if err != nil {
		return fmt.Errorf("%w: cannot open %s index: %v", ErrConfiguration, docs.IndexType, err)
	}
	if err := idx.Load(m.vectorsPath()); err != nil {
		idx.Close()
		return fmt.Errorf("%w: %v", ErrStorageCorruption, err)
	}
	if idx.Size() != len(docs.Entries) {
		idx.Close()
		return fmt.Errorf("%w: %d vectors but %d docstore entries", ErrStorageCorruption, idx.Size(), len(docs.Entries))
	}

	led := ledger.Load(m.ledgerPath(), ledger.WithLogger(m.logger))
	if err := m.reconcile(led, docs); err != nil {
		idx.Close()
		return err
	}
	m.index, m.docs, m.ledger = idx, docs, led
	return nil
}

// reconcile records docstore fingerprints missing from the ledger, which happens when
// the ledger was lost or corrupt, or a previous process stopped between the two writes.
func (m *Manager) reconcile(led *ledger.Ledger, docs *docstore) error {
	missing := 0
	for _, e := range docs.Entries {
		if !led.Contains(e.Fingerprint) {
			led.Record(e.Fingerprint)
			missing++
		}
	}
	if missing == 0 || m.cfg.ReadOnly {
		return nil
	}
	m.logger.Warn("ledger missing indexed fingerprints, restoring",
		zap.String("path", led.Path()), zap.Int("missing", missing))
	if err := led.Save(); err != nil {
		return fmt.Errorf("save reconciled ledger: %w", err)
	}
	return nil
}

func (m *Manager) newIndex() (vector.VectorIndex, error) {
	cfg := vector.Config{
		Type:       m.cfg.IndexType,
		Dimensions: m.embedder.Dimensions(),
		Metric:     vector.Metric(m.cfg.Metric),
		M:          m.cfg.HNSWM,
		EfSearch:   m.cfg.HNSWEfSearch,
	}
	idx, err := vector.NewVectorIndex(cfg)
	if err == nil || vector.IndexType(cfg.Type) != vector.IndexTypeFAISS {
		return idx, err
	}
	m.logger.Warn("failed to create vector index, falling back to memory",
		zap.String("requested_type", cfg.Type), zap.Error(err))
	cfg.Type = string(vector.IndexTypeMemory)
	return vector.NewVectorIndex(cfg)
}

// create builds a fresh index from seed. A ledger left over without its index is
// discarded so that ledger and index describe the same chunks.
func (m *Manager) create(ctx context.Context, seed []models.Chunk) (int, error) {
	idx, err := m.newIndex()
	if err != nil {
		m.state = StateFailed
		return 0, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	metric, _ := vector.ParseMetric(m.cfg.Metric)

	stale := ledger.Load(m.ledgerPath(), ledger.WithLogger(m.logger))
	if stale.Len() > 0 {
		m.logger.Warn("discarding ledger without index", zap.String("path", stale.Path()), zap.Int("entries", stale.Len()))
	}
	if err := os.Remove(m.ledgerPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		idx.Close()
		m.state = StateFailed
		return 0, fmt.Errorf("remove stale ledger: %w", err)
	}

	m.index = idx
	m.docs = &docstore{Version: docstoreVersion, IndexType: idx.Type(), Metric: string(metric), Dimensions: idx.Dimensions()}
	m.ledger = ledger.Load(m.ledgerPath(), ledger.WithLogger(m.logger))

	added, err := m.insert(ctx, seed)
	if err != nil {
		idx.Close()
		m.index, m.docs, m.ledger = nil, nil, nil
		m.state = StateFailed
		return 0, err
	}
	m.state = StateCreated
	return added, nil
}

// Append embeds and stores the chunks not seen before, then records their
// fingerprints. It returns how many chunks were added; 0 when all were duplicates.
func (m *Manager) Append(ctx context.Context, chunks []models.Chunk) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.Ready() {
		return 0, ErrNotReady
	}
	if m.cfg.ReadOnly {
		return 0, ErrReadOnly
	}
	added, err := m.insert(ctx, chunks)
	if err != nil {
		return 0, err
	}
	m.logger.Debug("chunks appended",
		zap.String("dir", m.cfg.Dir),
		zap.Int("received", len(chunks)),
		zap.Int("added", added),
		zap.Int("vectors", m.index.Size()))
	return added, nil
}

type pending struct {
	fp    string
	chunk models.Chunk
}

// insert runs the de-duplicate, embed, add, persist, record sequence. m.mu must be held.
func (m *Manager) insert(ctx context.Context, chunks []models.Chunk) (int, error) {
	seen := make(map[string]bool, len(chunks))
	batch := make([]pending, 0, len(chunks))
	for _, c := range chunks {
		fp := fingerprint.OfChunk(c)
		if seen[fp] || m.ledger.Contains(fp) {
			continue
		}
		seen[fp] = true
		batch = append(batch, pending{fp: fp, chunk: c})
	}
	if len(batch) == 0 {
		return 0, nil
	}

	texts := make([]string, len(batch))
	for i, p := range batch {
		texts[i] = p.chunk.Content
	}
	vecs, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("%w: %w: %v", ErrBatchInsert, ErrEmbeddingProvider, err)
	}
	if len(vecs) != len(texts) {
		return 0, fmt.Errorf("%w: %w: got %d embeddings for %d texts", ErrBatchInsert, ErrEmbeddingProvider, len(vecs), len(texts))
	}

	// Add validates every vector before storing any of them.
	if err := m.index.Add(ctx, vecs); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBatchInsert, err)
	}
	before := m.docs
	m.docs = before.clone()
	for _, p := range batch {
		m.docs.Entries = append(m.docs.Entries, Entry{
			ID:          uuid.NewString(),
			Fingerprint: p.fp,
			Content:     p.chunk.Content,
			Metadata:    models.CloneMetadata(p.chunk.Metadata),
		})
	}

	if err := m.persist(); err != nil {
		m.rollback(before)
		return 0, fmt.Errorf("%w: %v", ErrBatchInsert, err)
	}

	for _, p := range batch {
		m.ledger.Record(p.fp)
	}
	if err := m.ledger.Save(); err != nil {
		// The index is durable; the next load restores the ledger from the docstore.
		return len(batch), fmt.Errorf("save ledger: %w", err)
	}
	return len(batch), nil
}

// persist writes both index files next to their targets, then renames them into place.
// The previous vector file is kept as a backup until the docstore rename succeeds, so a
// failure at any step leaves the previous pair of files on disk.
func (m *Manager) persist() error {
	vecPath, docPath := m.vectorsPath(), m.docstorePath()
	vecTmp := vecPath + ".pending"
	docTmp := docPath + ".pending"
	vecBak := vecPath + ".bak"
	if err := m.index.Save(vecTmp); err != nil {
		os.Remove(vecTmp)
		return fmt.Errorf("save vectors: %w", err)
	}
	if err := m.docs.save(docTmp); err != nil {
		os.Remove(vecTmp)
		os.Remove(docTmp)
		return fmt.Errorf("save docstore: %w", err)
	}
	hadVectors, err := fileExists(vecPath)
	if err != nil {
		os.Remove(vecTmp)
		os.Remove(docTmp)
		return fmt.Errorf("stat vectors: %w", err)
	}
	if hadVectors {
		if err := os.Rename(vecPath, vecBak); err != nil {
			os.Remove(vecTmp)
			os.Remove(docTmp)
			return fmt.Errorf("backup vectors: %w", err)
		}
	}
	if err := os.Rename(vecTmp, vecPath); err != nil {
		os.Remove(vecTmp)
		os.Remove(docTmp)
		return m.restoreVectors(hadVectors, fmt.Errorf("rename vectors: %w", err))
	}
	if err := os.Rename(docTmp, docPath); err != nil {
		os.Remove(docTmp)
		return m.restoreVectors(hadVectors, fmt.Errorf("rename docstore: %w", err))
	}
	if hadVectors {
		if err := os.Remove(vecBak); err != nil {
			m.logger.Warn("cannot remove vector backup", zap.String("path", vecBak), zap.Error(err))
		}
	}
	return nil
}

// restoreVectors puts the backed up vector file back after a failed persist, or removes
// the new one when there was no previous file. cause is returned, wrapped with any
// restore failure.
func (m *Manager) restoreVectors(hadVectors bool, cause error) error {
	vecPath := m.vectorsPath()
	var err error
	if hadVectors {
		err = os.Rename(vecPath+".bak", vecPath)
	} else if rmErr := os.Remove(vecPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		err = rmErr
	}
	if err != nil {
		m.logger.Error("cannot restore vector file after failed persist",
			zap.String("dir", m.cfg.Dir), zap.Error(err))
		return fmt.Errorf("%v; restore vectors: %w", cause, err)
	}
	return cause
}

// rollback restores the in-memory index after a failed persist. A created index that
// was never persisted is simply discarded by the caller.
func (m *Manager) rollback(before *docstore) {
	m.docs = before
	exists, err := IndexExists(m.cfg.Dir)
	if err != nil || !exists {
		return
	}
	if err := m.index.Load(m.vectorsPath()); err != nil || m.index.Size() != len(before.Entries) {
		m.logger.Error("cannot restore index after failed append",
			zap.String("dir", m.cfg.Dir), zap.Error(err))
		m.state = StateFailed
	}
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Size returns the number of indexed chunks, or 0 before the index is open.
func (m *Manager) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.index == nil {
		return 0
	}
	return m.index.Size()
}

// LedgerSize returns the number of recorded fingerprints, or 0 before the index is open.
func (m *Manager) LedgerSize() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ledger == nil {
		return 0
	}
	return m.ledger.Len()
}

// IndexType returns the backend of the open index, or "".
func (m *Manager) IndexType() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.index == nil {
		return ""
	}
	return m.index.Type()
}

// Close releases the index. The manager cannot be used afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var err error
	if m.index != nil {
		err = m.index.Close()
		m.index = nil
	}
	m.state = StateFailed
	return err
}

type hit struct {
	entry    Entry
	distance float64
	vector   []float32
}

// search embeds query and returns up to k hits. withVectors also returns stored vectors.
func (m *Manager) search(ctx context.Context, query string, k int, withVectors bool) ([]float32, []hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.state.Ready() {
		return nil, nil, ErrNotReady
	}
	q, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrEmbeddingProvider, err)
	}
	results, err := m.index.Search(ctx, q, k)
	if err != nil {
		return nil, nil, fmt.Errorf("search index: %w", err)
	}
	hits := make([]hit, 0, len(results))
	for _, r := range results {
		if r.Label < 0 || r.Label >= int64(len(m.docs.Entries)) {
			continue
		}
		h := hit{entry: m.docs.Entries[r.Label], distance: r.Distance}
		if withVectors {
			v, ok := m.index.Vector(r.Label)
			if !ok {
				continue
			}
			h.vector = v
		}
		hits = append(hits, h)
	}
	return q, hits, nil
}

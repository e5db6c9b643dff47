package vectorstore

import (
	"errors"
	"fmt"
)

// Errors returned by the manager and retriever. Match them with errors.Is.
var (
	// ErrConfiguration reports invalid parameters. Never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrNoIndexAndNoSeedData is returned when no index exists and nothing was given to create one.
	ErrNoIndexAndNoSeedData = fmt.Errorf("%w: no index on disk and no seed data to create one", ErrConfiguration)
	// ErrStorageCorruption reports index files that exist but cannot be read back.
	// The files are left untouched; deleting them is the caller's decision.
	ErrStorageCorruption = errors.New("index storage corrupt")
	// ErrEmbeddingProvider wraps failures of the embedding provider.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrBatchInsert reports an append that did not reach durable storage.
	// Nothing from the batch was persisted, so the whole call may be retried.
	ErrBatchInsert = errors.New("batch insert failed")
	// ErrReadOnly is returned by Append and seeded creation on a read-only manager.
	ErrReadOnly = fmt.Errorf("%w: index manager is read-only", ErrConfiguration)
	// ErrNotReady is returned when append or retrieve run before OpenOrCreate succeeded.
	ErrNotReady = errors.New("index manager not ready")
)

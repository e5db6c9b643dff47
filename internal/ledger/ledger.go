// Package ledger persists the set of chunk fingerprints already written to an index.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// FileName is the ledger file kept next to the index files.
const FileName = "ingested_meta.json"

type document struct {
	Rows map[string]bool `json:"rows"`
}

// Ledger is the on-disk set of ingested fingerprints. Keys are never removed.
type Ledger struct {
	path   string
	rows   map[string]bool
	logger *zap.Logger
	mu     sync.RWMutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger used to report unreadable ledger files.
func WithLogger(l *zap.Logger) Option {
	return func(lg *Ledger) {
		lg.logger = l
	}
}

// Load reads the ledger at path. A missing file yields an empty ledger. A file that
// cannot be parsed also yields an empty ledger and a warning; it is overwritten on
// the next Save.
func Load(path string, opts ...Option) *Ledger {
	l := &Ledger{path: path, rows: make(map[string]bool), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			l.logger.Warn("ledger unreadable, starting empty", zap.String("path", path), zap.Error(err))
		}
		return l
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		l.logger.Warn("ledger corrupt, starting empty", zap.String("path", path), zap.Error(err))
		return l
	}
	for fp, ok := range doc.Rows {
		if ok {
			l.rows[fp] = true
		}
	}
	return l
}

// Path returns the file the ledger is saved to.
func (l *Ledger) Path() string {
	return l.path
}

// Contains reports whether fp has been recorded.
func (l *Ledger) Contains(fp string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.rows[fp]
}

// Record adds fp. Recording an existing key is a no-op.
func (l *Ledger) Record(fp string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows[fp] = true
}

// Len returns the number of recorded fingerprints.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.rows)
}

// Keys returns the recorded fingerprints in sorted order.
func (l *Ledger) Keys() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	keys := make([]string, 0, len(l.rows))
	for k := range l.rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Save writes the ledger, replacing the previous file.
func (l *Ledger) Save() error {
	l.mu.RLock()
	data, err := json.MarshalIndent(document{Rows: l.rows}, "", "  ")
	l.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename ledger: %w", err)
	}
	return nil
}

package vectorstore

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

func init() {
	gob.Register(map[string]interface{}{})
	gob.Register([]interface{}{})
}

const docstoreVersion = 1

// Entry is the stored chunk behind one vector label.
type Entry struct {
	ID          string
	Fingerprint string
	Content     string
	Metadata    map[string]interface{}
}

// docstore is the companion structure of a vector file: entry i belongs to label i.
type docstore struct {
	Version    int
	IndexType  string
	Metric     string
	Dimensions int
	Entries    []Entry
}

func (d *docstore) clone() *docstore {
	c := *d
	c.Entries = make([]Entry, len(d.Entries))
	copy(c.Entries, d.Entries)
	return &c
}

func (d *docstore) save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create docstore dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create docstore file: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(d); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode docstore: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close docstore file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename docstore file: %w", err)
	}
	return nil
}

func loadDocstore(path string) (*docstore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open docstore file: %w", err)
	}
	defer f.Close()
	var d docstore
	if err := gob.NewDecoder(f).Decode(&d); err != nil {
		return nil, fmt.Errorf("decode docstore: %w", err)
	}
	if d.Version != docstoreVersion {
		return nil, fmt.Errorf("unsupported docstore version %d", d.Version)
	}
	if d.Dimensions <= 0 {
		return nil, fmt.Errorf("docstore has invalid dimensions %d", d.Dimensions)
	}
	return &d, nil
}

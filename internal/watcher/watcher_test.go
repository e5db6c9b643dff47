package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

// recorder collects flushed batches.
type recorder struct {
	mu      sync.Mutex
	batches [][]string
}

func (r *recorder) onFiles(paths []string) {
	r.mu.Lock()
	r.batches = append(r.batches, append([]string(nil), paths...))
	r.mu.Unlock()
}

func (r *recorder) files() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, b := range r.batches {
		out = append(out, b...)
	}
	sort.Strings(out)
	return out
}

func (r *recorder) batchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func hasSuffix(paths []string, suffix string) bool {
	for _, p := range paths {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

func TestWatcher_AddRemoveDirectories(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	if err := writeFile(filepath.Join(dir, "existing.txt"), "x"); err != nil {
		t.Fatal(err)
	}

	w := NewWatcher(nil, []string{".txt"}, true, rec.onFiles)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.AddDirectory(dir, true); err != nil {
		t.Fatal(err)
	}
	if err := w.AddDirectory(dir, true); err != nil {
		t.Fatal(err)
	}
	dirs := w.Directories()
	if len(dirs) != 1 || filepath.Clean(dirs[0]) != filepath.Clean(dir) {
		t.Errorf("Directories() = %v", dirs)
	}
	if got := rec.files(); len(got) != 1 || !strings.HasSuffix(got[0], "existing.txt") {
		t.Errorf("synced files = %v", got)
	}

	if err := w.RemoveDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if len(w.Directories()) != 0 {
		t.Errorf("after remove: %v", w.Directories())
	}
}

func TestWatcher_DebounceBatchesEvents(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher([]string{dir}, []string{".txt"}, true, rec.onFiles, WithDebounce(150*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for _, name := range []string{"a.txt", "b.txt", "skip.bin"} {
		if err := writeFile(filepath.Join(dir, name), "hello"); err != nil {
			t.Fatal(err)
		}
	}
	// A second write to the same file stays in the same batch.
	if err := writeFile(filepath.Join(dir, "a.txt"), "hello again"); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, 3*time.Second, func() bool { return len(rec.files()) >= 2 }) {
		t.Fatalf("files = %v", rec.files())
	}
	got := rec.files()
	if len(got) != 2 || !hasSuffix(got, "a.txt") || !hasSuffix(got, "b.txt") {
		t.Errorf("files = %v", got)
	}
	if n := rec.batchCount(); n != 1 {
		t.Errorf("batches = %d, want 1", n)
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.txt", []string{".txt"}, true},
		{"/a/b.TXT", []string{".txt"}, true},
		{"/a/b.pdf", []string{"pdf"}, true},
		{"/a/b.md", []string{".txt"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		got := matchExtension(tt.path, tt.extensions)
		if got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.txt", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		got := inDir(tt.dir, tt.path)
		if got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "ignore.xyz", "sub/b.txt"} {
		path := filepath.Join(dir, name)
		if err := mkdirAll(filepath.Dir(path)); err != nil {
			t.Fatal(err)
		}
		if err := writeFile(path, "hello"); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name      string
		recursive bool
		want      int
	}{
		{"recursive", true, 2},
		{"top level", false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			w := NewWatcher([]string{dir}, []string{".txt"}, tt.recursive, rec.onFiles)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if err := w.Start(ctx); err != nil {
				t.Fatal(err)
			}
			defer w.Stop()
			w.SyncExistingFiles()

			if got := rec.files(); len(got) != tt.want {
				t.Errorf("files = %v, want %d", got, tt.want)
			}
			if rec.batchCount() != 1 {
				t.Errorf("batches = %d, want 1", rec.batchCount())
			}
		})
	}
}

func TestWatcher_Start_createsMissingRootDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "watch", "me")

	w := NewWatcher([]string{root}, []string{".txt"}, true, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
}

func TestWatcher_NewDirectory(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher([]string{dir}, []string{".txt", ".md"}, true, rec.onFiles, WithDebounce(150*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	nested := filepath.Join(dir, "new-folder", "level2")
	if err := mkdirAll(nested); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{
		filepath.Join(dir, "new-folder", "doc1.txt"),
		filepath.Join(dir, "new-folder", "doc2.md"),
		filepath.Join(dir, "new-folder", "ignore.xyz"),
		filepath.Join(nested, "deep.txt"),
	} {
		if err := writeFile(p, "content"); err != nil {
			t.Fatal(err)
		}
	}

	ok := waitFor(t, 3*time.Second, func() bool {
		got := rec.files()
		return hasSuffix(got, "doc1.txt") && hasSuffix(got, "doc2.md") && hasSuffix(got, "deep.txt")
	})
	if !ok {
		t.Errorf("files = %v", rec.files())
	}
	if hasSuffix(rec.files(), "ignore.xyz") {
		t.Error("ignore.xyz should not be reported")
	}
}

func TestWatcher_StopDropsPending(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher([]string{dir}, nil, true, rec.onFiles, WithDebounce(time.Hour))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.enqueue(filepath.Join(dir, "a.txt"))
	w.Stop()
	w.Stop()

	w.enqueue(filepath.Join(dir, "b.txt"))
	if rec.batchCount() != 0 {
		t.Errorf("batches after stop = %d", rec.batchCount())
	}
}

func mkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}

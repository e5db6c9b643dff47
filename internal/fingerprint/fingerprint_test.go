package fingerprint

import (
	"testing"
)

func TestOf_sourceAndRow(t *testing.T) {
	got := Of("anything", map[string]interface{}{"source": "a.pdf", "row_id": 3})
	if got != "a.pdf::3" {
		t.Errorf("Of() = %q, want %q", got, "a.pdf::3")
	}
}

func TestOf_contentIgnoredWhenSourcePresent(t *testing.T) {
	meta := map[string]interface{}{"source": "a.pdf", "row_id": 3}
	if Of("first text", meta) != Of("edited text", meta) {
		t.Error("same source and row should give the same fingerprint")
	}
}

func TestOf_missingRowID(t *testing.T) {
	got := Of("x", map[string]interface{}{"source": "a.pdf"})
	if got != "a.pdf::" {
		t.Errorf("Of() = %q, want %q", got, "a.pdf::")
	}
}

func TestOf_filePathFallback(t *testing.T) {
	got := Of("x", map[string]interface{}{"file_path": "/tmp/b.txt", "row_id": "7"})
	if got != "/tmp/b.txt::7" {
		t.Errorf("Of() = %q", got)
	}
	got = Of("x", map[string]interface{}{"source": "", "file_path": "/tmp/b.txt"})
	if got != "/tmp/b.txt::" {
		t.Errorf("empty source should fall back to file_path, got %q", got)
	}
}

func TestOf_contentHash(t *testing.T) {
	// sha256("hello")
	const want = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got := Of("hello", nil); got != want {
		t.Errorf("Of() = %q, want %q", got, want)
	}
	if got := Of("hello", map[string]interface{}{"page": 2}); got != want {
		t.Errorf("metadata without source should hash content, got %q", got)
	}
	if Of("hello", nil) == Of("hello!", nil) {
		t.Error("different content should give different fingerprints")
	}
}

func TestOf_deterministic(t *testing.T) {
	meta := map[string]interface{}{"source": "s", "row_id": 1}
	for i := 0; i < 3; i++ {
		if Of("c", meta) != "s::1" {
			t.Fatal("fingerprint must be stable")
		}
	}
}

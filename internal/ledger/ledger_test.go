package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_missingFile(t *testing.T) {
	l := Load(filepath.Join(t.TempDir(), FileName))
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0", l.Len())
	}
	if l.Contains("x") {
		t.Error("empty ledger should not contain anything")
	}
}

func TestLoad_corruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	l := Load(path)
	if l.Len() != 0 {
		t.Errorf("corrupt ledger should load empty, got %d", l.Len())
	}
	l.Record("a::1")
	if err := l.Save(); err != nil {
		t.Fatalf("Save over corrupt file: %v", err)
	}
	if !Load(path).Contains("a::1") {
		t.Error("saved ledger should replace the corrupt file")
	}
}

func TestRecord_idempotent(t *testing.T) {
	l := Load(filepath.Join(t.TempDir(), FileName))
	l.Record("a::1")
	l.Record("a::1")
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}
}

func TestSaveLoad_roundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	l := Load(path)
	l.Record("b::2")
	l.Record("a::1")
	if err := l.Save(); err != nil {
		t.Fatal(err)
	}
	got := Load(path)
	if got.Len() != 2 || !got.Contains("a::1") || !got.Contains("b::2") {
		t.Errorf("round trip lost keys: %v", got.Keys())
	}
	keys := got.Keys()
	if keys[0] != "a::1" || keys[1] != "b::2" {
		t.Errorf("Keys() not sorted: %v", keys)
	}
}

func TestSave_fileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	l := Load(path)
	l.Record("src::0")
	if err := l.Save(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Rows map[string]bool `json:"rows"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("ledger is not valid JSON: %v", err)
	}
	if !doc.Rows["src::0"] {
		t.Errorf(`expected {"rows":{"src::0":true}}, got %s`, data)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should not remain after save")
	}
}

func TestLoad_ignoresFalseEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(`{"rows":{"a":true,"b":false}}`), 0644); err != nil {
		t.Fatal(err)
	}
	l := Load(path)
	if !l.Contains("a") || l.Contains("b") {
		t.Errorf("unexpected keys: %v", l.Keys())
	}
}

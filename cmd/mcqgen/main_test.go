package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperjump/mcqgen/internal/config"
	"go.uber.org/zap"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"light reactions", "-k", "3"},
			expected: []string{"-k", "3", "light reactions"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-k", "3", "light reactions"},
			expected: []string{"-k", "3", "light reactions"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"light reactions"},
			expected: []string{"light reactions"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple files then flags",
			args:     []string{"a.pdf", "b.docx", "-session", "s1"},
			expected: []string{"-session", "s1", "a.pdf", "b.docx"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"photosynthesis"}, "photosynthesis"},
		{"multiple words", []string{"light", "reactions"}, "light reactions"},
		{"single quoted phrase", []string{"light reactions"}, "light reactions"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestExpandInputs(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "nested")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		filepath.Join(dir, "a.txt"):    "alpha",
		filepath.Join(dir, "b.exe"):    "binary",
		filepath.Join(nested, "c.txt"): "gamma",
	}
	for p, content := range files {
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := expandInputs([]string{dir, filepath.Join(dir, "a.txt")}, []string{".txt"}, true)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{filepath.Join(dir, "a.txt"): true, filepath.Join(nested, "c.txt"): true}
	if len(got) != len(want) {
		t.Fatalf("expandInputs() = %v, want %d files", got, len(want))
	}
	for _, p := range got {
		if !want[p] {
			t.Errorf("unexpected file %s", p)
		}
	}

	flat, err := expandInputs([]string{dir}, []string{".txt"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(flat) != 1 || flat[0] != filepath.Join(dir, "a.txt") {
		t.Errorf("non-recursive expandInputs() = %v", flat)
	}

	if _, err := expandInputs([]string{filepath.Join(dir, "missing.txt")}, nil, true); err == nil {
		t.Error("expected error for missing input")
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  data_dir: "data"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolvedCanon, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_defaultsWhenNoConfigFile(t *testing.T) {
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("default config installed on this machine")
	}
	dir := t.TempDir()
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved path = %q, want empty", resolved)
	}
	if cfg.Retriever.K != 5 || cfg.Chunking.ChunkSize != 1000 {
		t.Errorf("unexpected defaults: retriever=%+v chunking=%+v", cfg.Retriever, cfg.Chunking)
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

func TestInitializeComponents_mockProviders(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Embedding.Provider = config.ProviderMock
	cfg.Embedding.Dimensions = 8
	cfg.LLM.Provider = config.ProviderMock

	c, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if c.Sessions == nil || c.Catalog == nil || c.Embedder == nil {
		t.Fatalf("components not initialized: %+v", c)
	}
	if c.Model == nil {
		t.Error("mock chat model should be configured")
	}
}

func TestNewChatModel_unknownProvider(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.LLM.Provider = "nope"
	if _, err := newChatModel(cfg); err == nil {
		t.Error("expected error for unknown provider")
	}
}

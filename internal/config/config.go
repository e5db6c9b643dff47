// Package config provides configuration loading and structs for mcqgen.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	LogDir     string           `yaml:"log_dir"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	LLM        LLMConfig        `yaml:"llm"`
	Index      IndexConfig      `yaml:"index"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Retriever  RetrieverConfig  `yaml:"retriever"`
	Generation GenerationConfig `yaml:"generation"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	MaxUploadMB    int           `yaml:"max_upload_mb"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig holds the directories for uploads, indices and the session catalog.
type StorageConfig struct {
	DataDir     string `yaml:"data_dir"`
	IndexDir    string `yaml:"index_dir"`
	CatalogPath string `yaml:"catalog_path"`
	// SessionDirs places every session in its own sub-directory; defaults to true.
	SessionDirs *bool `yaml:"session_dirs"`
}

// SessionDirsOrDefault returns whether per-session directories are used; true when unset.
func (s *StorageConfig) SessionDirsOrDefault() bool {
	if s.SessionDirs != nil {
		return *s.SessionDirs
	}
	return true
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string        `yaml:"provider"`
	Model      string        `yaml:"model"`
	BaseURL    string        `yaml:"base_url"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	Dimensions int           `yaml:"dimensions"`
	BatchSize  int           `yaml:"batch_size"`
	MaxRetries int           `yaml:"max_retries"`
	Timeout    time.Duration `yaml:"timeout"`
	CacheSize  int           `yaml:"cache_size"`

	// RequestsPerSecond throttles embedding requests; 0 disables throttling.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	// ONNX only.
	ModelPath string `yaml:"model_path"`
	MaxTokens int    `yaml:"max_tokens"`
}

// LLMConfig selects and configures the chat model used for generation.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	MaxRetries  int           `yaml:"max_retries"`
	Timeout     time.Duration `yaml:"timeout"`
}

// IndexConfig selects the vector backend for new indices. memory and faiss search
// exactly. hnsw is exact up to 4096 vectors and approximate above that.
type IndexConfig struct {
	Type         string `yaml:"type"`
	Metric       string `yaml:"metric"`
	HNSWM        int    `yaml:"hnsw_m"`
	HNSWEfSearch int    `yaml:"hnsw_ef_search"`
}

// ChunkingConfig holds splitter settings, in characters.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
	Workers      int `yaml:"workers"`
}

// RetrieverConfig holds the default retrieval options.
type RetrieverConfig struct {
	SearchType string  `yaml:"search_type"`
	K          int     `yaml:"k"`
	MaxK       int     `yaml:"max_k"`
	FetchK     int     `yaml:"fetch_k"`
	LambdaMult float64 `yaml:"lambda_mult"`
}

// GenerationConfig holds question generation settings.
type GenerationConfig struct {
	QuestionCount int    `yaml:"question_count"`
	OutputFile    string `yaml:"output_file"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string      `yaml:"directories"`
	Extensions  []string      `yaml:"extensions"`
	Recursive   *bool         `yaml:"recursive"`
	Debounce    time.Duration `yaml:"debounce"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	cfg.expandPaths(filepath.Dir(path))
	return &cfg, nil
}

// Default returns the default configuration with paths relative to dir.
func Default(dir string) *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	cfg.expandPaths(dir)
	return &cfg
}

func (c *Config) expandPaths(configDir string) {
	c.Storage.DataDir = expandPath(c.Storage.DataDir, configDir)
	c.Storage.IndexDir = expandPath(c.Storage.IndexDir, configDir)
	c.Storage.CatalogPath = expandPath(c.Storage.CatalogPath, configDir)
	if c.LogDir != "" {
		c.LogDir = expandPath(c.LogDir, configDir)
	}
	if c.Embedding.ModelPath != "" {
		c.Embedding.ModelPath = expandPath(c.Embedding.ModelPath, configDir)
	}
	if c.Generation.OutputFile != "" {
		c.Generation.OutputFile = expandPath(c.Generation.OutputFile, configDir)
	}
	for i := range c.Watch.Directories {
		c.Watch.Directories[i] = expandPath(c.Watch.Directories[i], configDir)
	}
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir,
// "~/" to the home directory; other relative paths are relative to configDir.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
		return path
	}
	if abs, err := filepath.Abs(filepath.Join(configDir, path)); err == nil {
		return abs
	}
	return filepath.Join(configDir, path)
}

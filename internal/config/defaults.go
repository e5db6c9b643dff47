package config

import "time"

// Provider names.
const (
	ProviderMistral = "mistral"
	ProviderONNX    = "onnx"
	ProviderMock    = "mock"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 50
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 5 * time.Minute
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "./data"
	}
	if cfg.Storage.IndexDir == "" {
		cfg.Storage.IndexDir = "./faiss_index"
	}
	if cfg.Storage.CatalogPath == "" {
		cfg.Storage.CatalogPath = "./data/catalog.db"
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderMistral
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "MISTRAL_API_KEY"
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Embedding.MaxRetries == 0 {
		cfg.Embedding.MaxRetries = 3
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 60 * time.Second
	}
	if cfg.Embedding.Provider == ProviderONNX && cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderMistral
	}
	if cfg.LLM.Model == "" && cfg.LLM.Provider == ProviderMistral {
		cfg.LLM.Model = "mistral-small-latest"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "MISTRAL_API_KEY"
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 3
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 2 * time.Minute
	}

	if cfg.Index.Type == "" {
		cfg.Index.Type = "memory"
	}
	if cfg.Index.Metric == "" {
		cfg.Index.Metric = "l2"
	}

	if cfg.Chunking.ChunkSize == 0 {
		cfg.Chunking.ChunkSize = 1000
	}
	if cfg.Chunking.ChunkOverlap == 0 {
		cfg.Chunking.ChunkOverlap = 200
	}

	if cfg.Retriever.SearchType == "" {
		cfg.Retriever.SearchType = "mmr"
	}
	if cfg.Retriever.K == 0 {
		cfg.Retriever.K = 5
	}
	if cfg.Retriever.MaxK == 0 {
		cfg.Retriever.MaxK = 50
	}
	if cfg.Retriever.FetchK == 0 {
		cfg.Retriever.FetchK = 20
	}
	if cfg.Retriever.LambdaMult == 0 {
		cfg.Retriever.LambdaMult = 0.5
	}

	if cfg.Generation.QuestionCount == 0 {
		cfg.Generation.QuestionCount = 3
	}
	if cfg.Generation.OutputFile == "" {
		cfg.Generation.OutputFile = "./mcqs.json"
	}

	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".pdf", ".docx", ".txt", ".md", ".xlsx", ".odt", ".rtf"}
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 400 * time.Millisecond
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}

package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppInfo holds basic application metadata.
type AppInfo struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
}

// LoggerConfig controls log output.
type LoggerConfig struct {
	Level string `yaml:"level"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Address string `yaml:"address"`
}

// MySQLConfig holds the relational database connection settings.
type MySQLConfig struct {
	Address         string `yaml:"address"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	Database        string `yaml:"database"`
	MaxOpenConns    int    `yaml:"maxOpenConns"`
	MaxIdleConns    int    `yaml:"maxIdleConns"`
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // seconds
}

// DocumentsConfig controls upload storage and input limits.
type DocumentsConfig struct {
	StoragePath   string `yaml:"storagePath"`
	MaxFileSizeMB int64  `yaml:"maxFileSizeMB"`
}

// ChunkingConfig controls how extracted text is split before embedding.
type ChunkingConfig struct {
	Size    int `yaml:"size"`    // max characters per chunk
	Overlap int `yaml:"overlap"` // characters shared between neighbours
}

// RetrievalConfig controls search behaviour.
type RetrievalConfig struct {
	SimilarityFloor float32 `yaml:"similarityFloor"`
	TopK            int     `yaml:"topK"`
}

// OCRConfig controls the optical-character-recognition fallback.
type OCRConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Model         string `yaml:"model"`   // vision model used for recognition
	BaseURL       string `yaml:"baseURL"` // ollama endpoint
	MinTextLength int    `yaml:"minTextLength"`
	DPI           int    `yaml:"dpi"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "ollama" or "openai"
	Model     string `yaml:"model"`
	APIKey    string `yaml:"apiKey"`
	BaseURL   string `yaml:"baseURL"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batchSize"`
}

// LLMConfig configures the optional generative answer path.
type LLMConfig struct {
	Provider          string `yaml:"provider"` // "ollama", "openai" or "" to disable
	Model             string `yaml:"model"`
	APIKey            string `yaml:"apiKey"`
	BaseURL           string `yaml:"baseURL"`
	TimeoutSeconds    int    `yaml:"timeoutSeconds"`
	MaxRetries        int    `yaml:"maxRetries"`
	ContextCharBudget int    `yaml:"contextCharBudget"`
	HistoryTurns      int    `yaml:"historyTurns"`
}

// MilvusConfig holds the networked vector backend connection settings.
type MilvusConfig struct {
	Address    string `yaml:"address"`
	Collection string `yaml:"collection"`
}

// LocalStoreConfig holds the embedded vector backend settings.
type LocalStoreConfig struct {
	Path string `yaml:"path"`
}

// VectorStoreConfig selects the vector backend. The backend is probed at
// startup; an unreachable milvus falls back to the local store.
type VectorStoreConfig struct {
	Backend string           `yaml:"backend"` // "milvus" or "local"
	Milvus  MilvusConfig     `yaml:"milvus"`
	Local   LocalStoreConfig `yaml:"local"`
}

// AppConfig is the root of the YAML configuration file.
type AppConfig struct {
	App         AppInfo           `yaml:"app"`
	Logger      LoggerConfig      `yaml:"logger"`
	HTTP        HTTPConfig        `yaml:"http"`
	MySQL       MySQLConfig       `yaml:"mysql"`
	Documents   DocumentsConfig   `yaml:"documents"`
	Chunking    ChunkingConfig    `yaml:"chunking"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	OCR         OCRConfig         `yaml:"ocr"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	LLM         LLMConfig         `yaml:"llm"`
	VectorStore VectorStoreConfig `yaml:"vectorStore"`
}

// MaxFileSizeBytes returns the upload limit in bytes.
func (c *DocumentsConfig) MaxFileSizeBytes() int64 {
	return c.MaxFileSizeMB * 1024 * 1024
}

// LoadConfig reads and parses the YAML configuration at path. A .env file in
// the working directory is loaded first so that ${VAR} references in the YAML
// (API keys, passwords) resolve against the environment.
func LoadConfig(path string) (*AppConfig, error) {
	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	expanded := os.ExpandEnv(string(raw))

	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.Documents.StoragePath == "" {
		c.Documents.StoragePath = "data/documents"
	}
	if c.Documents.MaxFileSizeMB <= 0 {
		c.Documents.MaxFileSizeMB = 50
	}
	if c.Chunking.Size <= 0 {
		c.Chunking.Size = 1000
	}
	if c.Chunking.Overlap < 0 {
		c.Chunking.Overlap = 0
	}
	if c.Chunking.Overlap == 0 && c.Chunking.Size > 200 {
		c.Chunking.Overlap = 200
	}
	if c.Retrieval.SimilarityFloor <= 0 {
		c.Retrieval.SimilarityFloor = 0.6
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 5
	}
	if c.OCR.MinTextLength <= 0 {
		c.OCR.MinTextLength = 50
	}
	if c.OCR.DPI <= 0 {
		c.OCR.DPI = 150
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 16
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = 60
	}
	if c.LLM.MaxRetries <= 0 {
		c.LLM.MaxRetries = 2
	}
	if c.LLM.ContextCharBudget <= 0 {
		c.LLM.ContextCharBudget = 8000
	}
	if c.LLM.HistoryTurns <= 0 {
		c.LLM.HistoryTurns = 4
	}
	if c.VectorStore.Backend == "" {
		c.VectorStore.Backend = "local"
	}
	if c.VectorStore.Milvus.Collection == "" {
		c.VectorStore.Milvus.Collection = "document_chunks"
	}
	if c.VectorStore.Local.Path == "" {
		c.VectorStore.Local.Path = "data/vectors/index.json"
	}
}

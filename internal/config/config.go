package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LogConfig controls the process logger.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// ModelConfig selects a langchaingo provider for embeddings or generation.
// Provider "none" (or a missing API key) leaves the component in degraded mode.
type ModelConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url,omitempty"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig configures the embedding provider.
type EmbedderConfig struct {
	ModelConfig `yaml:",inline"`
	Dimension   int `yaml:"dimension"`
	CacheSize   int `yaml:"cache_size"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	SQLite *SQLiteConfig `yaml:"sqlite,omitempty"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// SQLiteConfig points at a database file.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// HistoryConfig configures chat-history persistence. An empty path disables it.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// OrchestratorConfig holds the pipeline constants.
type OrchestratorConfig struct {
	TopK          int `yaml:"top_k"`
	MaxQueryChars int `yaml:"max_query_chars"`
	SummaryChars  int `yaml:"summary_chars"`
}

// IngestConfig configures knowledge-base chunking.
type IngestConfig struct {
	ChunkChars   int `yaml:"chunk_chars"`
	OverlapChars int `yaml:"overlap_chars"`
	OverviewSize int `yaml:"overview_sentences"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Log          LogConfig          `yaml:"log"`
	Embedder     EmbedderConfig     `yaml:"embedder"`
	Generator    ModelConfig        `yaml:"generator"`
	VectorStore  VectorStoreConfig  `yaml:"vector_store"`
	History      HistoryConfig      `yaml:"history"`
	Server       ServerConfig       `yaml:"server"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Ingest       IngestConfig       `yaml:"ingest"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./supportbot.yaml first, then ~/.config/supportbot/config.yaml.
// If neither exists, it writes defaults to the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "supportbot.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyEnvOverrides(cfg)
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// APIKey resolves the key named by APIKeyEnv. Empty means "not configured".
func (m ModelConfig) APIKey() string {
	if m.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(m.APIKeyEnv))
}

// Address returns host:port for the HTTP listener.
func (s ServerConfig) Address() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "supportbot", "config.yaml"), nil
}

// Default returns the built-in configuration: local SQLite storage and no
// hosted models, so every model-backed component starts degraded.
func Default() *AppConfig {
	cfg := &AppConfig{
		Log:       LogConfig{Level: "info"},
		Embedder:  EmbedderConfig{ModelConfig: ModelConfig{Provider: "none"}},
		Generator: ModelConfig{Provider: "googleai"},
		VectorStore: VectorStoreConfig{
			Type:   "sqlite",
			SQLite: &SQLiteConfig{Path: filepath.Join("data", "knowledge.db")},
		},
		History: HistoryConfig{Path: filepath.Join("data", "history.db")},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	applyModelDefaults(&cfg.Embedder.ModelConfig, true)
	applyModelDefaults(&cfg.Generator, false)
	if cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = 384
	}
	if cfg.Embedder.CacheSize == 0 {
		cfg.Embedder.CacheSize = 1024
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "sqlite"
	}
	if cfg.VectorStore.Type == "sqlite" && cfg.VectorStore.SQLite == nil {
		cfg.VectorStore.SQLite = &SQLiteConfig{}
	}
	if cfg.VectorStore.SQLite != nil && cfg.VectorStore.SQLite.Path == "" {
		cfg.VectorStore.SQLite.Path = filepath.Join("data", "knowledge.db")
	}
	if cfg.VectorStore.Type == "qdrant" && cfg.VectorStore.Qdrant == nil {
		cfg.VectorStore.Qdrant = &QdrantConfig{}
	}
	if q := cfg.VectorStore.Qdrant; q != nil {
		if q.URL == "" {
			q.URL = "http://localhost:6333"
		}
		if q.Collection == "" {
			q.Collection = "knowledge_base"
		}
		if q.TimeoutSecs == 0 {
			q.TimeoutSecs = 15
		}
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Orchestrator.TopK == 0 {
		cfg.Orchestrator.TopK = 3
	}
	if cfg.Orchestrator.MaxQueryChars == 0 {
		cfg.Orchestrator.MaxQueryChars = 1000
	}
	if cfg.Orchestrator.SummaryChars == 0 {
		cfg.Orchestrator.SummaryChars = 200
	}
	if cfg.Ingest.ChunkChars == 0 {
		cfg.Ingest.ChunkChars = 500
	}
	if cfg.Ingest.OverlapChars == 0 {
		cfg.Ingest.OverlapChars = 50
	}
	if cfg.Ingest.OverviewSize == 0 {
		cfg.Ingest.OverviewSize = 3
	}
}

func applyModelDefaults(m *ModelConfig, embedding bool) {
	if m.Provider == "" {
		m.Provider = "none"
	}
	if m.TimeoutSecs == 0 {
		m.TimeoutSecs = 30
	}
	switch m.Provider {
	case "openai":
		if m.APIKeyEnv == "" {
			m.APIKeyEnv = "OPENAI_API_KEY"
		}
		if m.Model == "" {
			m.Model = "gpt-4o-mini"
			if embedding {
				m.Model = "text-embedding-3-small"
			}
		}
	case "googleai":
		if m.APIKeyEnv == "" {
			m.APIKeyEnv = "GEMINI_API_KEY"
		}
		if m.Model == "" {
			m.Model = "gemini-2.0-flash"
			if embedding {
				m.Model = "text-embedding-004"
			}
		}
	case "ollama":
		if m.BaseURL == "" {
			m.BaseURL = "http://localhost:11434"
		}
		if m.Model == "" {
			m.Model = "llama3.2"
			if embedding {
				m.Model = "all-minilm"
			}
		}
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("SUPPORTBOT_VECTOR_STORE"); v != "" {
		cfg.VectorStore.Type = v
		applyConfigDefaults(cfg)
	}
	if v := os.Getenv("SUPPORTBOT_SQLITE_PATH"); v != "" {
		if cfg.VectorStore.SQLite == nil {
			cfg.VectorStore.SQLite = &SQLiteConfig{}
		}
		cfg.VectorStore.SQLite.Path = v
	}
	if v := os.Getenv("SUPPORTBOT_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}
	if v := os.Getenv("SUPPORTBOT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SUPPORTBOT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

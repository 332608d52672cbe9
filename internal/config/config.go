// Package config loads resumatch configuration from defaults, the user
// config file, the project config file, .env and RESUMATCH_* variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ProjectConfigName is the per-directory configuration file.
const ProjectConfigName = ".resumatch.yaml"

// Config represents the complete resumatch configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Data       DataConfig       `yaml:"data" json:"data"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Index      IndexConfig      `yaml:"index" json:"index"`
	Matching   MatchingConfig   `yaml:"matching" json:"matching"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// DataConfig locates the catalog database and the index files.
type DataConfig struct {
	// Dir holds catalog.db and the <kind>.vectors / <kind>.ids pairs.
	Dir string `yaml:"dir" json:"dir"`
	// Catalog is the SQLite file name inside Dir, or an absolute path.
	Catalog string `yaml:"catalog" json:"catalog"`
	// Driver is "sqlite" (modernc, pure Go) or "sqlite3" (mattn, cgo).
	Driver string `yaml:"driver" json:"driver"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	// Workers bounds concurrent batch requests during a rebuild.
	Workers int `yaml:"workers" json:"workers"`
	// CacheSize is the LRU entry count; 0 disables caching.
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	OllamaHost    string `yaml:"ollama_host" json:"ollama_host"`
	OpenAIBaseURL string `yaml:"openai_base_url" json:"openai_base_url"`

	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// IndexConfig configures the vector index.
type IndexConfig struct {
	// Backend is "flat" (exact) or "hnsw" (approximate).
	Backend string `yaml:"backend" json:"backend"`
	// Metric is "cosine" or "l2". Changing it requires a rebuild.
	Metric   string `yaml:"metric" json:"metric"`
	M        int    `yaml:"m" json:"m"`
	EfSearch int    `yaml:"ef_search" json:"ef_search"`
}

// MatchingConfig configures the matcher.
type MatchingConfig struct {
	TopK       int `yaml:"top_k" json:"top_k"`
	Oversample int `yaml:"oversample" json:"oversample"`
	// EmptyPolicy decides what match returns before an index exists:
	// "error" (IndexNotReady) or "empty" (no results).
	EmptyPolicy string        `yaml:"empty_policy" json:"empty_policy"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Data: DataConfig{
			Dir:     defaultDataDir(),
			Catalog: "catalog.db",
			Driver:  "sqlite",
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "static",
			Model:      "",
			Dimensions: 384,
			BatchSize:  32,
			Workers:    4,
			CacheSize:  1024,
			OllamaHost: "http://localhost:11434",
			Timeout:    60 * time.Second,
		},
		Index: IndexConfig{
			Backend:  "flat",
			Metric:   "cosine",
			M:        16,
			EfSearch: 64,
		},
		Matching: MatchingConfig{
			TopK:        5,
			Oversample:  2,
			EmptyPolicy: "error",
			Timeout:     30 * time.Second,
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".resumatch", "data")
	}
	return filepath.Join(home, ".resumatch", "data")
}

// CatalogPath returns the absolute catalog database path.
func (c *Config) CatalogPath() string {
	if filepath.IsAbs(c.Data.Catalog) {
		return c.Data.Catalog
	}
	return filepath.Join(c.Data.Dir, c.Data.Catalog)
}

// GetUserConfigPath returns $XDG_CONFIG_HOME/resumatch/config.yaml, or
// ~/.config/resumatch/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "resumatch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "resumatch", "config.yaml")
	}
	return filepath.Join(home, ".config", "resumatch", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// LoadUserConfig loads only the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}

	var parsed Config
	if err := readYAML(path, &parsed); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", path, err)
	}
	return &parsed, nil
}

// LoadProjectConfig reads only dir/.resumatch.yaml. A missing file yields
// a nil config and no error.
func LoadProjectConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, ProjectConfigName)
	if !fileExists(path) {
		return nil, nil
	}
	var parsed Config
	if err := readYAML(path, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// Load loads configuration for the working directory dir.
// Precedence, lowest to highest:
//  1. Defaults
//  2. User config (~/.config/resumatch/config.yaml)
//  3. Project config (.resumatch.yaml in dir)
//  4. .env in dir (only fills variables not already set)
//  5. RESUMATCH_* environment variables
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	userCfg, err := LoadUserConfig()
	if err != nil {
		return nil, err
	}
	if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	projectCfg, err := LoadProjectConfig(dir)
	if err != nil {
		return nil, err
	}
	if projectCfg != nil {
		cfg.mergeWith(projectCfg)
	}

	envPath := filepath.Join(dir, ".env")
	if fileExists(envPath) {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func readYAML(path string, into *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Data.Dir != "" {
		c.Data.Dir = expandHome(other.Data.Dir)
	}
	if other.Data.Catalog != "" {
		c.Data.Catalog = other.Data.Catalog
	}
	if other.Data.Driver != "" {
		c.Data.Driver = other.Data.Driver
	}

	e := other.Embeddings
	if e.Provider != "" {
		c.Embeddings.Provider = e.Provider
	}
	if e.Model != "" {
		c.Embeddings.Model = e.Model
	}
	if e.Dimensions != 0 {
		c.Embeddings.Dimensions = e.Dimensions
	}
	if e.BatchSize != 0 {
		c.Embeddings.BatchSize = e.BatchSize
	}
	if e.Workers != 0 {
		c.Embeddings.Workers = e.Workers
	}
	if e.CacheSize != 0 {
		c.Embeddings.CacheSize = e.CacheSize
	}
	if e.OllamaHost != "" {
		c.Embeddings.OllamaHost = e.OllamaHost
	}
	if e.OpenAIBaseURL != "" {
		c.Embeddings.OpenAIBaseURL = e.OpenAIBaseURL
	}
	if e.Timeout != 0 {
		c.Embeddings.Timeout = e.Timeout
	}

	if other.Index.Backend != "" {
		c.Index.Backend = other.Index.Backend
	}
	if other.Index.Metric != "" {
		c.Index.Metric = other.Index.Metric
	}
	if other.Index.M != 0 {
		c.Index.M = other.Index.M
	}
	if other.Index.EfSearch != 0 {
		c.Index.EfSearch = other.Index.EfSearch
	}

	m := other.Matching
	if m.TopK != 0 {
		c.Matching.TopK = m.TopK
	}
	if m.Oversample != 0 {
		c.Matching.Oversample = m.Oversample
	}
	if m.EmptyPolicy != "" {
		c.Matching.EmptyPolicy = m.EmptyPolicy
	}
	if m.Timeout != 0 {
		c.Matching.Timeout = m.Timeout
	}

	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies RESUMATCH_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RESUMATCH_DATA_DIR"); v != "" {
		c.Data.Dir = expandHome(v)
	}
	if v := os.Getenv("RESUMATCH_DB_DRIVER"); v != "" {
		c.Data.Driver = v
	}
	if v := os.Getenv("RESUMATCH_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("RESUMATCH_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("RESUMATCH_EMBEDDINGS_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Embeddings.Dimensions = n
		}
	}
	if v := os.Getenv("RESUMATCH_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("RESUMATCH_OPENAI_BASE_URL"); v != "" {
		c.Embeddings.OpenAIBaseURL = v
	}
	if v := os.Getenv("RESUMATCH_INDEX_BACKEND"); v != "" {
		c.Index.Backend = v
	}
	if v := os.Getenv("RESUMATCH_INDEX_METRIC"); v != "" {
		c.Index.Metric = v
	}
	if v := os.Getenv("RESUMATCH_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Matching.TopK = n
		}
	}
	if v := os.Getenv("RESUMATCH_OVERSAMPLE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Matching.Oversample = n
		}
	}
	if v := os.Getenv("RESUMATCH_EMPTY_POLICY"); v != "" {
		c.Matching.EmptyPolicy = v
	}
	if v := os.Getenv("RESUMATCH_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir must be set")
	}
	switch c.Data.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("data.driver must be 'sqlite' or 'sqlite3', got %s", c.Data.Driver)
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case "static", "ollama", "openai":
	default:
		return fmt.Errorf("embeddings.provider must be 'static', 'ollama' or 'openai', got %s", c.Embeddings.Provider)
	}
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize)
	}
	if c.Embeddings.Workers <= 0 {
		return fmt.Errorf("embeddings.workers must be positive, got %d", c.Embeddings.Workers)
	}
	if c.Embeddings.CacheSize < 0 {
		return fmt.Errorf("embeddings.cache_size must be non-negative, got %d", c.Embeddings.CacheSize)
	}

	switch c.Index.Backend {
	case "flat", "hnsw":
	default:
		return fmt.Errorf("index.backend must be 'flat' or 'hnsw', got %s", c.Index.Backend)
	}
	switch c.Index.Metric {
	case "cosine", "l2":
	default:
		return fmt.Errorf("index.metric must be 'cosine' or 'l2', got %s", c.Index.Metric)
	}

	if c.Matching.TopK <= 0 {
		return fmt.Errorf("matching.top_k must be positive, got %d", c.Matching.TopK)
	}
	if c.Matching.Oversample < 1 {
		return fmt.Errorf("matching.oversample must be at least 1, got %d", c.Matching.Oversample)
	}
	switch c.Matching.EmptyPolicy {
	case "error", "empty":
	default:
		return fmt.Errorf("matching.empty_policy must be 'error' or 'empty', got %s", c.Matching.EmptyPolicy)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// JSON returns the configuration as indented JSON.
func (c *Config) JSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

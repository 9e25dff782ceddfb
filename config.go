package agentmem

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/liliang-cn/agentmem/pkg/llmprovider"
)

// Config is the resolved, immutable configuration for one Engine (§9
// "dynamic config dataclasses... map to a validated configuration
// record"). It is loaded once by LoadConfig/DefaultConfig and never
// re-read from the environment afterward, which is what keeps
// llmprovider.AutoDetect a pure function of its input map (Testable
// Property 7).
type Config struct {
	// DataDir is the root directory under which the vector store database,
	// per-user scoped-memory JSON files, and history log all live.
	DataDir string `mapstructure:"data_dir"`

	// Collection is the vector store collection every memory is written to.
	Collection string `mapstructure:"collection"`

	// Dimension is the fixed embedding dimension for Collection.
	Dimension int `mapstructure:"dimension"`

	// Provider selects the language model backend (§6): "auto", "openai",
	// "anthropic", "google", "gemini", or "ollama".
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`

	// CacheSize bounds the C8 System Memory TTL+LRU cache (§4.8).
	CacheSize int `mapstructure:"cache_size"`

	// EmbedCacheSize bounds the C2 embedder memoization cache (distinct
	// from CacheSize — see DESIGN.md on the two caches' different
	// eviction guarantees).
	EmbedCacheSize int64 `mapstructure:"embed_cache_size"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `mapstructure:"log_level"`
}

// DefaultConfig returns a Config pointed at dataDir with the pack's usual
// defaults (§4.1 "no distributed replication... single embedded file" —
// keeps the default footprint small).
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:        dataDir,
		Collection:     "memories",
		Dimension:      1536,
		Provider:       "auto",
		CacheSize:      1000,
		EmbedCacheSize: 100_000,
		LogLevel:       "info",
	}
}

// LoadConfig reads configPath (if non-empty) via spf13/viper, falling back
// to environment variables under the AGENTMEM_ prefix and then to
// DefaultConfig(dataDir)'s values, exactly the precedence order the
// teacher's own cmd/config init.go establishes (file > env > default).
func LoadConfig(configPath, dataDir string) (Config, error) {
	v := viper.New()
	def := DefaultConfig(dataDir)

	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("collection", def.Collection)
	v.SetDefault("dimension", def.Dimension)
	v.SetDefault("provider", def.Provider)
	v.SetDefault("cache_size", def.CacheSize)
	v.SetDefault("embed_cache_size", def.EmbedCacheSize)
	v.SetDefault("log_level", def.LogLevel)

	v.SetEnvPrefix("AGENTMEM")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("agentmem: loading config %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("agentmem: parsing config: %w", err)
	}
	return cfg, nil
}

// providerConfig resolves Config's provider fields into llmprovider's
// auto-detect input, treating API keys/base URLs already present in Config
// as if they came from the environment so AutoDetect's priority walk still
// applies uniformly whether a credential arrived via file, env, or flag.
func (c Config) providerConfig() (llmprovider.ProviderConfig, error) {
	explicit := llmprovider.Kind(strings.ToLower(c.Provider))
	env := map[string]string{}
	if c.APIKey != "" {
		for _, key := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GOOGLE_API_KEY", "GEMINI_API_KEY"} {
			env[key] = c.APIKey
		}
	}
	if c.BaseURL != "" {
		env["OLLAMA_HOST"] = c.BaseURL
		for _, key := range []string{"OPENAI_BASE_URL", "ANTHROPIC_BASE_URL", "OLLAMA_BASE_URL"} {
			env[key] = c.BaseURL
		}
	}
	return llmprovider.AutoDetect(env, explicit, c.Model)
}

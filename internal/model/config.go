package model

import "time"

// Config is the complete service configuration.
// Populated from defaults, ~/.veridex/config.yaml, VERIDEX_* env vars,
// and CLI flags, in increasing priority.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Mongo      MongoConfig      `mapstructure:"mongo"`
	Vector     VectorConfig     `mapstructure:"vector"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Search     SearchConfig     `mapstructure:"search"`
	FactCheck  FactCheckConfig  `mapstructure:"factcheck"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Trust      TrustConfig      `mapstructure:"trust"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Tasks      TaskConfig       `mapstructure:"tasks"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type VectorConfig struct {
	Path      string `mapstructure:"path"`      // sqlite file, ":memory:" for tests
	Dimension int    `mapstructure:"dimension"` // advisory; rows store their own length
}

// LLMConfig configures the reasoning-model provider
type LLMConfig struct {
	Provider   string `mapstructure:"provider"` // openai, anthropic, ollama
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Timeout    int    `mapstructure:"timeout"` // seconds
	MaxTokens  int    `mapstructure:"max_tokens"`
	HTTPProxy  string `mapstructure:"http_proxy"`
	HTTPSProxy string `mapstructure:"https_proxy"`
}

type EmbeddingConfig struct {
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	CacheSize int    `mapstructure:"cache_size"`
}

type SearchConfig struct {
	Endpoint   string  `mapstructure:"endpoint"`
	APIKey     string  `mapstructure:"api_key"`
	CX         string  `mapstructure:"cx"` // Custom Search engine id
	MaxResults int     `mapstructure:"max_results"`
	Timeout    int     `mapstructure:"timeout"` // seconds
	RatePerSec float64 `mapstructure:"rate_per_sec"`
	Burst      int     `mapstructure:"burst"`
}

type FactCheckConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
	Timeout  int    `mapstructure:"timeout"` // seconds
}

type ClassifierConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Token    string `mapstructure:"token"`
	Timeout  int    `mapstructure:"timeout"` // seconds
}

type TrustConfig struct {
	Collection string        `mapstructure:"collection"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

type CacheConfig struct {
	WindowDays           int           `mapstructure:"window_days"`           // tier-2 trailing window
	DocSimThreshold      float64       `mapstructure:"doc_sim_threshold"`     // tier-2 accept
	PersonalizeThreshold float64       `mapstructure:"personalize_threshold"` // tier-2 rephrase below this
	VectorSimThreshold   float64       `mapstructure:"vector_sim_threshold"`  // tier-3 accept
	RetentionDays        int           `mapstructure:"retention_days"`        // vector-index TTL
	SweepInterval        time.Duration `mapstructure:"sweep_interval"`
}

type TaskConfig struct {
	MaxAge      time.Duration `mapstructure:"max_age"`
	KillTimeout time.Duration `mapstructure:"kill_timeout"`
	ReapEvery   time.Duration `mapstructure:"reap_every"`
}

// DefaultConfig returns sensible defaults for every component
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "veridex",
		},
		Vector: VectorConfig{Path: "veridex-vectors.db", Dimension: 1536},
		LLM: LLMConfig{
			Provider:  "openai",
			Model:     "gpt-4o-mini",
			Timeout:   15,
			MaxTokens: 1000,
		},
		Embedding: EmbeddingConfig{
			Model:     "text-embedding-3-small",
			CacheSize: 8192,
		},
		Search: SearchConfig{
			Endpoint:   "https://www.googleapis.com/customsearch/v1",
			MaxResults: 10,
			Timeout:    10,
			RatePerSec: 5,
			Burst:      5,
		},
		FactCheck: FactCheckConfig{
			Endpoint: "https://factchecktools.googleapis.com/v1alpha1/claims:search",
			Timeout:  6,
		},
		Classifier: ClassifierConfig{Timeout: 15},
		Trust: TrustConfig{
			Collection: "news_sources",
			CacheTTL:   5 * time.Minute,
		},
		Cache: CacheConfig{
			WindowDays:           30,
			DocSimThreshold:      0.90,
			PersonalizeThreshold: 0.95,
			VectorSimThreshold:   0.75,
			RetentionDays:        15,
			SweepInterval:        6 * time.Hour,
		},
		Tasks: TaskConfig{
			MaxAge:      30 * time.Minute,
			KillTimeout: 2 * time.Second,
			ReapEvery:   5 * time.Minute,
		},
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is loaded from the environment, with an optional YAML overlay from
// CONFIG_PATH on top. Keys present in the YAML file win; everything else
// keeps its env or default value.
type Config struct {
	APIPort  string `yaml:"api_port"`
	LogLevel string `yaml:"log_level"`

	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`

	OllamaURL            string `yaml:"ollama_url"`
	OllamaEmbedModel     string `yaml:"ollama_embed_model"`
	OllamaMaxBatch       int    `yaml:"ollama_max_batch"`
	OllamaTimeoutSeconds int    `yaml:"ollama_timeout_seconds"`

	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	MinSegmentLength   int     `yaml:"min_segment_length"`
	MMRLambda          float64 `yaml:"mmr_lambda"`
	ExtractionRatio    float64 `yaml:"extraction_ratio"`
	MinSegments        int     `yaml:"min_segments"`
	MaxSegments        int     `yaml:"max_segments"`
	MaxSegmentsToEmbed int     `yaml:"max_segments_to_embed"`

	HierarchicalThreshold int `yaml:"hierarchical_threshold"`
	HierarchicalBatchSize int `yaml:"hierarchical_batch_size"`

	StreamEmbedBudget      int `yaml:"stream_embed_budget"`
	StreamChunkCap         int `yaml:"stream_chunk_cap"`
	StreamDrainWaitSeconds int `yaml:"stream_drain_wait_seconds"`

	WorkerMetricsPort string `yaml:"worker_metrics_port"`
}

func Load() (Config, error) {
	cfg := fromEnv()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config overlay: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config overlay: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func fromEnv() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		NATSURL:     mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSSubject: mustEnv("NATS_SUBJECT", "documents.chunks"),

		OllamaURL:            mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaEmbedModel:     mustEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		OllamaMaxBatch:       mustEnvInt("OLLAMA_MAX_BATCH", 64),
		OllamaTimeoutSeconds: mustEnvInt("OLLAMA_TIMEOUT_SECONDS", 120),

		RateLimitRPS:   mustEnvFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: mustEnvInt("RATE_LIMIT_BURST", 20),

		MinSegmentLength:   mustEnvInt("MIN_SEGMENT_LENGTH", 15),
		MMRLambda:          mustEnvFloat("MMR_LAMBDA", 0.6),
		ExtractionRatio:    mustEnvFloat("EXTRACTION_RATIO", 0.12),
		MinSegments:        mustEnvInt("MIN_SEGMENTS", 30),
		MaxSegments:        mustEnvInt("MAX_SEGMENTS", 400),
		MaxSegmentsToEmbed: mustEnvInt("MAX_SEGMENTS_TO_EMBED", 2000),

		HierarchicalThreshold: mustEnvInt("HIERARCHICAL_THRESHOLD", 8000),
		HierarchicalBatchSize: mustEnvInt("HIERARCHICAL_BATCH_SIZE", 2000),

		StreamEmbedBudget:      mustEnvInt("STREAM_EMBED_BUDGET", 1500),
		StreamChunkCap:         mustEnvInt("STREAM_CHUNK_CAP", 40),
		StreamDrainWaitSeconds: mustEnvInt("STREAM_DRAIN_WAIT_SECONDS", 30),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}
}

// Validate fails fast at startup instead of surfacing bad settings mid-run.
func (c Config) Validate() error {
	var problems []error
	if c.APIPort == "" {
		problems = append(problems, errors.New("api port is empty"))
	}
	if c.NATSURL == "" || c.NATSSubject == "" {
		problems = append(problems, errors.New("nats url and subject are required"))
	}
	if c.OllamaURL == "" || c.OllamaEmbedModel == "" {
		problems = append(problems, errors.New("ollama url and embed model are required"))
	}
	if c.MMRLambda < 0 || c.MMRLambda > 1 {
		problems = append(problems, fmt.Errorf("mmr lambda %.3f outside [0,1]", c.MMRLambda))
	}
	if c.ExtractionRatio <= 0 || c.ExtractionRatio > 1 {
		problems = append(problems, fmt.Errorf("extraction ratio %.3f outside (0,1]", c.ExtractionRatio))
	}
	if c.MaxSegmentsToEmbed <= 0 || c.StreamEmbedBudget <= 0 {
		problems = append(problems, errors.New("embedding budgets must be positive"))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		problems = append(problems, errors.New("rate limit settings must be positive"))
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %w", errors.Join(problems...))
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// Package config loads service configuration from an optional YAML file,
// a .env file, and environment variables, in that order of precedence
// (environment wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration shared by the minesafe binaries.
type Config struct {
	Server   Server   `yaml:"server"`
	Gemini   Gemini   `yaml:"gemini"`
	Postgres Postgres `yaml:"postgres"`
	Qdrant   Qdrant   `yaml:"qdrant"`
	Neo4j    Neo4j    `yaml:"neo4j"`
	NATS     NATS     `yaml:"nats"`
	RAG      RAG      `yaml:"rag"`
	Cache    Cache    `yaml:"cache"`
}

type Server struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

type Gemini struct {
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"api_key"`
	EmbedModel    string        `yaml:"embed_model"`
	GenerateModel string        `yaml:"generate_model"`
	Temperature   float64       `yaml:"temperature"`
	MaxTokens     int           `yaml:"max_tokens"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
}

type Postgres struct {
	DSN   string `yaml:"dsn"`
	Debug bool   `yaml:"debug"`
}

type Qdrant struct {
	Addr       string `yaml:"addr"`
	Collection string `yaml:"collection"`
}

type Neo4j struct {
	URL  string `yaml:"url"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
}

type NATS struct {
	URL              string `yaml:"url"`
	BatchSubject     string `yaml:"batch_subject"`
	CompletedSubject string `yaml:"completed_subject"`
	Queue            string `yaml:"queue"`
	// Workers bounds the batches one worker process serves at once.
	Workers int `yaml:"workers"`
}

type RAG struct {
	TopK             int           `yaml:"top_k"`
	EmbedWorkers     int           `yaml:"embed_workers"`
	BatchItemTimeout time.Duration `yaml:"batch_item_timeout"`
}

type Cache struct {
	PromptTTL time.Duration `yaml:"prompt_ttl"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: Server{Port: "8080", CORSOrigin: "*"},
		Gemini: Gemini{
			BaseURL:       "https://generativelanguage.googleapis.com/v1beta",
			EmbedModel:    "text-embedding-004",
			GenerateModel: "gemini-1.5-flash",
			Temperature:   0.1,
			MaxTokens:     1024,
			Timeout:       30 * time.Second,
			RatePerSecond: 10,
			Burst:         10,
		},
		Qdrant: Qdrant{Addr: "localhost:6334", Collection: "minesafe_kb"},
		Neo4j:  Neo4j{URL: "neo4j://localhost:7687", User: "neo4j", Pass: "password"},
		NATS: NATS{
			URL:              "nats://localhost:4222",
			BatchSubject:     "hazard.batch.request",
			CompletedSubject: "hazard.batch.completed",
			Queue:            "minesafe-workers",
			Workers:          4,
		},
		RAG:   RAG{TopK: 3, EmbedWorkers: 4, BatchItemTimeout: 60 * time.Second},
		Cache: Cache{PromptTTL: 5 * time.Minute},
	}
}

// Load builds a Config from defaults, then the YAML file at path (skipped
// when path is empty or missing), then .env, then the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	_ = godotenv.Load()
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = envOr("PORT", cfg.Server.Port)
	cfg.Server.CORSOrigin = envOr("CORS_ORIGIN", cfg.Server.CORSOrigin)

	cfg.Gemini.BaseURL = envOr("GEMINI_BASE_URL", cfg.Gemini.BaseURL)
	cfg.Gemini.APIKey = envOr("GEMINI_API_KEY", cfg.Gemini.APIKey)
	cfg.Gemini.EmbedModel = envOr("GEMINI_EMBED_MODEL", cfg.Gemini.EmbedModel)
	cfg.Gemini.GenerateModel = envOr("GEMINI_MODEL", cfg.Gemini.GenerateModel)
	cfg.Gemini.Temperature = envFloat("GEMINI_TEMPERATURE", cfg.Gemini.Temperature)
	cfg.Gemini.MaxTokens = envInt("GEMINI_MAX_TOKENS", cfg.Gemini.MaxTokens)
	cfg.Gemini.Timeout = envDuration("GEMINI_TIMEOUT", cfg.Gemini.Timeout)
	cfg.Gemini.RatePerSecond = envFloat("GEMINI_RATE", cfg.Gemini.RatePerSecond)
	cfg.Gemini.Burst = envInt("GEMINI_BURST", cfg.Gemini.Burst)

	cfg.Postgres.DSN = envOr("DATABASE_URL", cfg.Postgres.DSN)
	cfg.Postgres.Debug = envBool("DATABASE_DEBUG", cfg.Postgres.Debug)

	cfg.Qdrant.Addr = envOr("QDRANT_URL", cfg.Qdrant.Addr)
	cfg.Qdrant.Collection = envOr("QDRANT_COLLECTION", cfg.Qdrant.Collection)

	cfg.Neo4j.URL = envOr("NEO4J_URL", cfg.Neo4j.URL)
	cfg.Neo4j.User = envOr("NEO4J_USER", cfg.Neo4j.User)
	cfg.Neo4j.Pass = envOr("NEO4J_PASS", cfg.Neo4j.Pass)

	cfg.NATS.URL = envOr("NATS_URL", cfg.NATS.URL)
	cfg.NATS.BatchSubject = envOr("NATS_BATCH_SUBJECT", cfg.NATS.BatchSubject)
	cfg.NATS.CompletedSubject = envOr("NATS_COMPLETED_SUBJECT", cfg.NATS.CompletedSubject)
	cfg.NATS.Queue = envOr("NATS_QUEUE", cfg.NATS.Queue)
	cfg.NATS.Workers = envInt("NATS_WORKERS", cfg.NATS.Workers)

	cfg.RAG.TopK = envInt("RAG_TOP_K", cfg.RAG.TopK)
	cfg.RAG.EmbedWorkers = envInt("RAG_EMBED_WORKERS", cfg.RAG.EmbedWorkers)
	cfg.RAG.BatchItemTimeout = envDuration("RAG_BATCH_ITEM_TIMEOUT", cfg.RAG.BatchItemTimeout)

	cfg.Cache.PromptTTL = envDuration("PROMPT_CACHE_TTL", cfg.Cache.PromptTTL)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}

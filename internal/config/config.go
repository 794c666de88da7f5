package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"flatcodec/internal/composer"
	"flatcodec/internal/event"
	"flatcodec/internal/parser"
)

type Config struct {
	LogLevel       string
	OnNoMatch      string
	OnTrailing     string
	OnOpenQuote    string
	MaxQuotedLines int
	SkipEmptyLines bool
	DatabaseURL    string
	Table          string
	WorkerCount    int
	BatchSize      int
	InputExts      []string
}

// Load reads .env if present, then the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}
	return FromEnv()
}

// FromEnv reads the environment only.
func FromEnv() *Config {
	return &Config{
		LogLevel:       getEnv("FLATCODEC_LOG_LEVEL", "info"),
		OnNoMatch:      getEnv("FLATCODEC_ON_NO_MATCH", "warn"),
		OnTrailing:     getEnv("FLATCODEC_ON_TRAILING", "warn"),
		OnOpenQuote:    getEnv("FLATCODEC_ON_OPEN_QUOTE", "warn"),
		MaxQuotedLines: getEnvInt("FLATCODEC_MAX_QUOTED_LINES", parser.DefaultMaxQuotedLines),
		SkipEmptyLines: getEnvBool("FLATCODEC_SKIP_EMPTY_LINES", true),
		DatabaseURL:    getEnv("DATABASE_URL", "postgres://localhost:5432/flatcodec?sslmode=disable"),
		Table:          getEnv("FLATCODEC_TABLE", "flat_lines"),
		WorkerCount:    getEnvInt("WORKER_COUNT", 4),
		BatchSize:      getEnvInt("BATCH_SIZE", 500),
		InputExts:      strings.Split(getEnv("FLATCODEC_INPUT_EXT", ".txt,.csv,.dat"), ","),
	}
}

// Level returns the configured zerolog level.
func (c *Config) Level() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("FLATCODEC_LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

// ParseConfig returns the parser policies for a stream named source.
func (c *Config) ParseConfig(source string) (parser.Config, error) {
	noMatch, err := event.ParsePolicy(c.OnNoMatch)
	if err != nil {
		return parser.Config{}, fmt.Errorf("FLATCODEC_ON_NO_MATCH: %w", err)
	}
	trailing, err := event.ParsePolicy(c.OnTrailing)
	if err != nil {
		return parser.Config{}, fmt.Errorf("FLATCODEC_ON_TRAILING: %w", err)
	}
	openQuote, err := event.ParsePolicy(c.OnOpenQuote)
	if err != nil {
		return parser.Config{}, fmt.Errorf("FLATCODEC_ON_OPEN_QUOTE: %w", err)
	}
	return parser.Config{
		OnNoMatch:      noMatch,
		OnTrailing:     trailing,
		OnOpenQuote:    openQuote,
		MaxQuotedLines: c.MaxQuotedLines,
		SkipEmptyLines: c.SkipEmptyLines,
		Source:         source,
	}, nil
}

// ComposeConfig returns the composer policies for a sink named source.
func (c *Config) ComposeConfig(source string) (composer.Config, error) {
	noMatch, err := event.ParsePolicy(c.OnNoMatch)
	if err != nil {
		return composer.Config{}, fmt.Errorf("FLATCODEC_ON_NO_MATCH: %w", err)
	}
	return composer.Config{OnNoMatch: noMatch, Source: source}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
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

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

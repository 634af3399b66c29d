package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
)

const (
	LauncherLocal    = "local"
	LauncherTemporal = "temporal"
	LauncherNone     = "none"
)

type Config struct {
	APIAddr           string        `env:"LEARNFLOW_API_ADDR" envDefault:":8080"`
	DataDir           string        `env:"LEARNFLOW_DATA_DIR" envDefault:"./data"`
	Launcher          string        `env:"LEARNFLOW_LAUNCHER" envDefault:"local"`
	TemporalAddress   string        `env:"LEARNFLOW_TEMPORAL_ADDRESS" envDefault:"localhost:7233"`
	TemporalTaskQueue string        `env:"LEARNFLOW_TEMPORAL_TASK_QUEUE" envDefault:"learnflow"`
	PostgresURL       string        `env:"LEARNFLOW_POSTGRES_URL"`
	LLMProviders      string        `env:"LEARNFLOW_LLM_PROVIDERS" envDefault:"mock"`
	ChunkSize         int           `env:"LEARNFLOW_CHUNK_SIZE" envDefault:"1200"`
	ChunkOverlap      int           `env:"LEARNFLOW_CHUNK_OVERLAP" envDefault:"200"`
	PollInterval      time.Duration `env:"LEARNFLOW_POLL_INTERVAL" envDefault:"1200ms"`
	APIBase           string        `env:"LEARNFLOW_API_BASE" envDefault:"http://localhost:8080"`
	AllowedOrigins    []string      `env:"LEARNFLOW_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	LogLevel          string        `env:"LEARNFLOW_LOG_LEVEL" envDefault:"info"`
	LogFormat         string        `env:"LEARNFLOW_LOG_FORMAT" envDefault:"text"`
	LogFile           string        `env:"LEARNFLOW_LOG_FILE"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env config: %w", err)
	}
	cfg.Launcher = strings.ToLower(strings.TrimSpace(cfg.Launcher))
	switch cfg.Launcher {
	case LauncherLocal, LauncherTemporal, LauncherNone:
	default:
		return Config{}, fmt.Errorf("unsupported launcher %q", cfg.Launcher)
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1200
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = 0
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 1200 * time.Millisecond
	}
	return cfg, nil
}

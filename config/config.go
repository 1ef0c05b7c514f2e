// Package config loads assistant configuration from an optional YAML file
// plus environment overrides. A missing config file yields defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig configures the websocket host surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// WorkerConfig selects the task isolation strategy.
type WorkerConfig struct {
	// Mode is "goroutine" (shared-memory worker) or "process" (subprocess
	// worker with stronger fault isolation).
	Mode string `yaml:"mode"`

	// Command is the argv for process mode. Empty means re-exec the current
	// binary with the -pipeline-worker flag.
	Command []string `yaml:"command"`
}

// EmbedderConfig configures the embedding backend chain.
type EmbedderConfig struct {
	ONNXModelPath     string `yaml:"onnx_model_path"`
	ONNXTokenizerPath string `yaml:"onnx_tokenizer_path"`
	ONNXLibraryPath   string `yaml:"onnx_library_path"`
	OllamaURL         string `yaml:"ollama_url"`
	OllamaModel       string `yaml:"ollama_model"`
	Dimensions        int    `yaml:"dimensions"`
}

// MemoryConfig configures the long-term memory store.
type MemoryConfig struct {
	// Dir is the directory holding the persisted index and document log.
	Dir string `yaml:"dir"`

	// Backend is "flat" (dual-file index + doc log) or "chromem"
	// (embedded chromem-go database).
	Backend string `yaml:"backend"`

	// RecallK is the default neighbor count for recall.
	RecallK int `yaml:"recall_k"`
}

// LogConfig configures logging output.
type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// Config is the root configuration.
type Config struct {
	Model        string        `yaml:"model"`
	MaxTurns     int           `yaml:"max_turns"`
	PollInterval time.Duration `yaml:"poll_interval"`

	Memory   MemoryConfig   `yaml:"memory"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Worker   WorkerConfig   `yaml:"worker"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Model:        "claude-sonnet-4-20250514",
		MaxTurns:     10,
		PollInterval: 100 * time.Millisecond,
		Memory: MemoryConfig{
			Dir:     "data/memory",
			Backend: "flat",
			RecallK: 2,
		},
		Worker: WorkerConfig{Mode: "goroutine"},
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{File: "ratatoskr.log", Level: "info"},
	}
}

// Load reads the YAML file at path (if it exists), applies .env and
// environment overrides, and returns the merged configuration.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("RATATOSKR_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("RATATOSKR_MEMORY_DIR"); v != "" {
		cfg.Memory.Dir = v
	}
	if v := os.Getenv("RATATOSKR_MEMORY_BACKEND"); v != "" {
		cfg.Memory.Backend = v
	}
	if v := os.Getenv("RATATOSKR_RECALL_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Memory.RecallK = n
		}
	}
	if v := os.Getenv("RATATOSKR_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("RATATOSKR_WORKER_MODE"); v != "" {
		cfg.Worker.Mode = v
	}
	if v := os.Getenv("RATATOSKR_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" && cfg.Embedder.OllamaURL == "" {
		cfg.Embedder.OllamaURL = v
	}
}

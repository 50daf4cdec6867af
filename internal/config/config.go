package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"aigc_sentinel/internal/aidetect"
	"aigc_sentinel/internal/classifier"
)

const envPrefix = "SENTINEL_"

// Config holds every setting of the scoring service and CLI.
type Config struct {
	ClassifierURL       string  `yaml:"classifier_url"`
	ModelPath           string  `yaml:"model_path"`
	Temperature         float64 `yaml:"temperature"`
	PowerFactor         float64 `yaml:"power_factor"`
	MinValidChars       int     `yaml:"min_valid_chars"`
	LengthPolicy        string  `yaml:"length_policy"`
	ClassifierTimeoutMS int     `yaml:"classifier_timeout_ms"`
	MaxLength           int     `yaml:"max_length"`
	CachePath           string  `yaml:"cache_path"`
	CacheEnabled        bool    `yaml:"cache_enabled"`
	ListenAddr          string  `yaml:"listen_addr"`
	LogLevel            string  `yaml:"log_level"`
	Workers             int     `yaml:"workers"`
}

func Defaults() Config {
	engine := aidetect.DefaultConfig()
	http := classifier.DefaultHTTPConfig()
	return Config{
		ClassifierURL:       http.Endpoint,
		Temperature:         http.Temperature,
		PowerFactor:         engine.PowerFactor,
		MinValidChars:       engine.MinValidChars,
		LengthPolicy:        engine.LengthPolicy,
		ClassifierTimeoutMS: int(http.Timeout / time.Millisecond),
		MaxLength:           http.MaxLength,
		ListenAddr:          "127.0.0.1:8080",
		LogLevel:            "info",
		Workers:             2,
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, the .env file in the working directory and SENTINEL_* variables,
// in that order. An empty path skips the YAML file.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	applyEnvironmentOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func applyEnvironmentOverrides(cfg *Config) {
	cfg.ClassifierURL = getenv(envPrefix+"CLASSIFIER_URL", cfg.ClassifierURL)
	cfg.ModelPath = getenv(envPrefix+"MODEL_PATH", cfg.ModelPath)
	cfg.Temperature = getenvFloat(envPrefix+"TEMPERATURE", cfg.Temperature)
	cfg.PowerFactor = getenvFloat(envPrefix+"POWER_FACTOR", cfg.PowerFactor)
	cfg.MinValidChars = getenvInt(envPrefix+"MIN_VALID_CHARS", cfg.MinValidChars)
	cfg.LengthPolicy = getenv(envPrefix+"LENGTH_POLICY", cfg.LengthPolicy)
	cfg.ClassifierTimeoutMS = getenvInt(envPrefix+"CLASSIFIER_TIMEOUT_MS", cfg.ClassifierTimeoutMS)
	cfg.MaxLength = getenvInt(envPrefix+"MAX_LENGTH", cfg.MaxLength)
	cfg.CachePath = getenv(envPrefix+"CACHE_PATH", cfg.CachePath)
	cfg.CacheEnabled = getenvBool(envPrefix+"CACHE_ENABLED", cfg.CacheEnabled)
	cfg.ListenAddr = getenv(envPrefix+"LISTEN_ADDR", cfg.ListenAddr)
	cfg.LogLevel = getenv(envPrefix+"LOG_LEVEL", cfg.LogLevel)
	cfg.Workers = getenvInt(envPrefix+"WORKERS", cfg.Workers)
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ClassifierURL) == "" {
		return errors.New("classifier_url is required")
	}
	if c.Temperature <= 0 {
		return fmt.Errorf("temperature must be positive, got %v", c.Temperature)
	}
	if c.PowerFactor <= 0 {
		return fmt.Errorf("power_factor must be positive, got %v", c.PowerFactor)
	}
	if c.MinValidChars < 0 {
		return fmt.Errorf("min_valid_chars must not be negative, got %d", c.MinValidChars)
	}
	if _, err := aidetect.LengthFuncFor(c.LengthPolicy); err != nil {
		return err
	}
	if c.ClassifierTimeoutMS <= 0 {
		return fmt.Errorf("classifier_timeout_ms must be positive, got %d", c.ClassifierTimeoutMS)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func (c Config) Engine() aidetect.Config {
	return aidetect.Config{
		MinValidChars: c.MinValidChars,
		PowerFactor:   c.PowerFactor,
		LengthPolicy:  c.LengthPolicy,
	}
}

func (c Config) Classifier() classifier.HTTPConfig {
	out := classifier.DefaultHTTPConfig()
	out.Endpoint = c.ClassifierURL
	out.ModelPath = c.ModelPath
	out.Temperature = c.Temperature
	out.MaxLength = c.MaxLength
	out.Timeout = time.Duration(c.ClassifierTimeoutMS) * time.Millisecond
	return out
}

func (c Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log_level %q", raw)
	}
}

func getenv(name, fallback string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func getenvFloat(name string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func getenvBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	return raw == "1" || raw == "true" || raw == "yes" || raw == "on"
}

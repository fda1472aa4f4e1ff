package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and file location configuration.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	LogDir       string `toml:"log_dir"`
	DatabasePath string `toml:"database_path"`
}

// ETL contains settings for the ingestion stage.
type ETL struct {
	MappingPath      string `toml:"mapping_path"`
	DefaultBatchSize int    `toml:"default_batch_size"`
	SampleRows       int    `toml:"sample_rows"`
	WriteRetries     int    `toml:"write_retries"`
}

// GoogleBooks contains configuration for the Google Books API provider.
type GoogleBooks struct {
	Enabled       bool    `toml:"enabled"`
	APIKey        string  `toml:"api_key"`
	BaseURL       string  `toml:"base_url"`
	RatePerSecond float64 `toml:"rate_per_second"`
}

// OpenLibrary contains configuration for the Open Library API provider.
type OpenLibrary struct {
	Enabled       bool    `toml:"enabled"`
	BaseURL       string  `toml:"base_url"`
	RatePerSecond float64 `toml:"rate_per_second"`
}

// CLIProvider configures one external command metadata provider.
type CLIProvider struct {
	Name           string   `toml:"name"`
	Command        string   `toml:"command"`
	Args           []string `toml:"args"`
	TitleFlag      string   `toml:"title_flag"`
	AuthorFlag     string   `toml:"author_flag"`
	Parser         string   `toml:"parser"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Augment contains settings for the metadata augmentation stage.
type Augment struct {
	Concurrency            int           `toml:"concurrency"`
	BookLimit              int           `toml:"book_limit"`
	ProviderOrder          []string      `toml:"provider_order"`
	ProviderTimeoutSeconds int           `toml:"provider_timeout_seconds"`
	RetryAttempts          int           `toml:"retry_attempts"`
	GoogleBooks            GoogleBooks   `toml:"googlebooks"`
	OpenLibrary            OpenLibrary   `toml:"openlibrary"`
	CLIProviders           []CLIProvider `toml:"cli_providers"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for bindery.
//
// Configuration sections by subsystem:
//   - Paths: dataset directory, log directory, document store location
//   - ETL: mapping config path, batching, sampling, write retries
//   - Augment: provider roster, ordering, concurrency, timeouts
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	ETL     ETL     `toml:"etl"`
	Augment Augment `toml:"augment"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/bindery/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized. The boolean reports whether a
// config file was actually found at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err = os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("bindery.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir, filepath.Dir(c.Paths.DatabasePath)}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	trimmed := strings.TrimSpace(pathValue)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", trimmed, err)
	}
	return abs, nil
}

// ExpandPath exposes tilde expansion for callers outside this package.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the embedded sample configuration to path.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Sample returns the embedded sample configuration text.
func Sample() string {
	return sampleConfig
}

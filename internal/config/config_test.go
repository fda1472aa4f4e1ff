package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.ETL.DefaultBatchSize != defaultBatchSize {
		t.Fatalf("unexpected batch size %d", cfg.ETL.DefaultBatchSize)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected missing config file")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Augment.Concurrency != defaultConcurrency {
		t.Fatalf("unexpected concurrency %d", cfg.Augment.Concurrency)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
data_dir = "` + dir + `/raw"
database_path = "` + dir + `/store.db"

[etl]
mapping_path = "` + dir + `/mapping.json"
default_batch_size = 0

[logging]
format = "JSON"

[augment]
provider_order = ["OpenLibrary", " googlebooks "]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("format = %q, want json", cfg.Logging.Format)
	}
	if cfg.ETL.DefaultBatchSize != defaultBatchSize {
		t.Fatalf("batch size not defaulted: %d", cfg.ETL.DefaultBatchSize)
	}
	want := []string{"openlibrary", "googlebooks"}
	if len(cfg.Augment.ProviderOrder) != len(want) {
		t.Fatalf("provider order = %v", cfg.Augment.ProviderOrder)
	}
	for i, name := range want {
		if cfg.Augment.ProviderOrder[i] != name {
			t.Fatalf("provider order[%d] = %q, want %q", i, cfg.Augment.ProviderOrder[i], name)
		}
	}
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	cfg.Augment.ProviderOrder = []string{"librarything"}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "unknown provider") {
		t.Fatalf("expected unknown provider error, got %v", err)
	}
}

func TestValidateRejectsBadCLIParser(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	cfg.Augment.CLIProviders = []CLIProvider{{Name: "scraper", Command: "scrape", Parser: "yaml"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected parser validation error")
	}
}

func TestCreateSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if err := CreateSample(path); err == nil {
		t.Fatal("expected error on existing file")
	}
}

func TestExpandPathTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	got, err := expandPath("~/books")
	if err != nil {
		t.Fatalf("expandPath: %v", err)
	}
	if got != filepath.Join(home, "books") {
		t.Fatalf("expandPath = %q", got)
	}
}

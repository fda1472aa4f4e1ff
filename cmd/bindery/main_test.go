package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q
database_path = %q

[etl]
mapping_path = %q

[logging]
format = "console"
level = "error"
`, filepath.Join(dir, "data"), filepath.Join(dir, "logs"),
		filepath.Join(dir, "bindery.db"), filepath.Join(dir, "mapping.json"))

	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStatusWithEmptyStore(t *testing.T) {
	configPath := writeTestConfig(t)
	out, err := runCommand(t, "--config", configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "No collections yet") {
		t.Fatalf("output = %q", out)
	}
}

func TestConfigShowDefaults(t *testing.T) {
	configPath := writeTestConfig(t)
	out, err := runCommand(t, "--config", configPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "[paths]") || !strings.Contains(out, "provider_order") {
		t.Fatalf("output = %q", out)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("output = %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample not written: %v", err)
	}
}

func TestRunRequiresMappingConfig(t *testing.T) {
	configPath := writeTestConfig(t)
	_, err := runCommand(t, "--config", configPath, "etl")
	if err == nil {
		t.Fatal("expected error for missing mapping file")
	}
}

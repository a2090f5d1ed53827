package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"prismatic/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Publishing.BatchSize != 10 {
		t.Fatalf("expected default batch size 10, got %d", cfg.Publishing.BatchSize)
	}
	if cfg.LinkedIn.CharacterLimit != 3000 {
		t.Fatalf("expected default character limit 3000, got %d", cfg.LinkedIn.CharacterLimit)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved != path {
		t.Fatalf("expected resolved path %q, got %q", path, resolved)
	}
	if cfg.Publishing.MaxRetries != 3 {
		t.Fatalf("expected default max retries, got %d", cfg.Publishing.MaxRetries)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[linkedin]
base_url = "https://example.test/"
character_limit = 280

[publishing]
batch_size = 25
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.LinkedIn.BaseURL != "https://example.test" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.LinkedIn.BaseURL)
	}
	if cfg.LinkedIn.CharacterLimit != 280 {
		t.Fatalf("expected character limit 280, got %d", cfg.LinkedIn.CharacterLimit)
	}
	if cfg.Publishing.BatchSize != 25 {
		t.Fatalf("expected batch size 25, got %d", cfg.Publishing.BatchSize)
	}
	// Unset sections keep defaults.
	if cfg.Insights.Model == "" {
		t.Fatal("expected default insights model")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"bad log format", "[logging]\nformat = \"xml\"\n", "logging.format"},
		{"bad base url", "[linkedin]\nbase_url = \"::::\"\n", "linkedin.base_url"},
		{"batch too large", "[publishing]\nbatch_size = 1000\n", "publishing.batch_size"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			_, _, _, err := config.Load(path)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load of sample failed: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}

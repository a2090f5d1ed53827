package testsupport

import (
	"path/filepath"
	"testing"

	"prismatic/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Insights.APIKey = "test"
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithLinkedInBaseURL points the LinkedIn client at a test server.
func WithLinkedInBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LinkedIn.BaseURL = url
	}
}

// WithInsightsBaseURL points the insights client at a test server.
func WithInsightsBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Insights.BaseURL = url
	}
}

// WithPublishing overrides the publish worker batch and retry settings.
func WithPublishing(batchSize, maxRetries int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Publishing.BatchSize = batchSize
		b.cfg.Publishing.MaxRetries = maxRetries
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

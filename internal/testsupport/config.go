package testsupport

import (
	"path/filepath"
	"testing"

	"nemfreview/internal/config"
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
	cfgVal.Paths.ImagesDir = filepath.Join(base, "images")
	cfgVal.Paths.CatalogDir = filepath.Join(base, "catalog")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.MushroomObserver.APIKey = "test"

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

// WithAPIKey sets the shared Mushroom Observer API key on the test config.
func WithAPIKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.MushroomObserver.APIKey = key
	}
}

// WithMushroomObserverURL points the external API client at a test server.
func WithMushroomObserverURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.MushroomObserver.BaseURL = url
		b.cfg.MushroomObserver.RequestsPerSecond = 0
	}
}

// WithReconcilePolicy selects the reconciliation policy.
func WithReconcilePolicy(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Reconcile.Policy = policy
	}
}

// WithProjectID enables project assignment after uploads.
func WithProjectID(id int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.MushroomObserver.ProjectID = id
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

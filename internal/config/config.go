package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"nemfreview/internal/fileutil"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	ImagesDir  string `toml:"images_dir"`
	CatalogDir string `toml:"catalog_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
	APIToken   string `toml:"api_token"`
}

// Review contains claim lease and navigation settings.
type Review struct {
	LeaseSeconds         int `toml:"lease_seconds"`
	SweepIntervalSeconds int `toml:"sweep_interval_seconds"`
	HistoryLimit         int `toml:"history_limit"`
	AdjacentWindow       int `toml:"adjacent_window"`
}

// Reconcile contains field-slip reconciliation thresholds.
type Reconcile struct {
	Policy             string  `toml:"policy"`
	MaxDateDays        int     `toml:"max_date_days"`
	MaxDistanceKM      float64 `toml:"max_distance_km"`
	LookupCacheSeconds int     `toml:"lookup_cache_seconds"`
}

// MushroomObserver contains configuration for the Mushroom Observer API.
type MushroomObserver struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	// APIKeys maps reviewer identities to personal API keys. Reviewers without
	// an entry upload with APIKey.
	APIKeys           map[string]string `toml:"api_keys"`
	ProjectID         int64             `toml:"project_id"`
	CopyrightHolder   string            `toml:"copyright_holder"`
	LicenseID         int               `toml:"license_id"`
	UserAgent         string            `toml:"user_agent"`
	TimeoutSeconds    int               `toml:"timeout_seconds"`
	RequestsPerSecond float64           `toml:"requests_per_second"`
	Burst             int               `toml:"burst"`
}

// Forays contains settings for the foray date table.
type Forays struct {
	// Year expands the "M/D" dates found in forays.csv.
	Year int `toml:"year"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the review coordinator.
//
// Configuration sections by subsystem:
//   - Paths: record database, images, catalog exports, logs, API bind address
//   - Review: claim lease length, sweep cadence, history and adjacency sizes
//   - Reconcile: field-slip reconciliation policy and thresholds
//   - MushroomObserver: external API endpoint, credentials, throttling
//   - Forays: foray date table settings
//   - Logging: log format and level
type Config struct {
	Paths            Paths            `toml:"paths"`
	Review           Review           `toml:"review"`
	Reconcile        Reconcile        `toml:"reconcile"`
	MushroomObserver MushroomObserver `toml:"mushroom_observer"`
	Forays           Forays           `toml:"forays"`
	Logging          Logging          `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigRelativeLocation)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
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
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigRelativeLocation)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// The images and catalog directories are populated upstream, so only the
// writable directories are created here.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the record database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "review.db")
}

// LockPath returns the single-instance lock file used by the daemon.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "nemf-review.lock")
}

// LeaseDuration returns the claim lease as a duration.
func (c *Config) LeaseDuration() time.Duration {
	return time.Duration(c.Review.LeaseSeconds) * time.Second
}

// SweepInterval returns the claim sweep cadence as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Review.SweepIntervalSeconds) * time.Second
}

// LookupCacheTTL returns how long external reconciliation lookups are reused.
func (c *Config) LookupCacheTTL() time.Duration {
	return time.Duration(c.Reconcile.LookupCacheSeconds) * time.Second
}

// MOTimeout returns the HTTP timeout for Mushroom Observer calls.
func (c *Config) MOTimeout() time.Duration {
	return time.Duration(c.MushroomObserver.TimeoutSeconds) * time.Second
}

// APIKeyFor returns the Mushroom Observer API key used on behalf of holder,
// preferring a per-reviewer key over the shared one.
func (c *Config) APIKeyFor(holder string) string {
	if key := strings.TrimSpace(c.MushroomObserver.APIKeys[holder]); key != "" {
		return key
	}
	return strings.TrimSpace(c.MushroomObserver.APIKey)
}

// CatalogFile returns the path of a named catalog export under catalog_dir.
func (c *Config) CatalogFile(name string) string {
	return filepath.Join(c.Paths.CatalogDir, name)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	// The sample may carry credentials once edited, so it starts owner-only.
	if err := fileutil.WriteFileAtomic(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateReview(); err != nil {
		return err
	}
	if err := c.validateReconcile(); err != nil {
		return err
	}
	if err := c.validateMushroomObserver(); err != nil {
		return err
	}
	if err := c.validateForays(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateReview() error {
	if err := ensurePositiveMap(map[string]int{
		"review.lease_seconds":          c.Review.LeaseSeconds,
		"review.sweep_interval_seconds": c.Review.SweepIntervalSeconds,
		"review.history_limit":          c.Review.HistoryLimit,
	}); err != nil {
		return err
	}
	if c.Review.AdjacentWindow < 0 {
		return errors.New("review.adjacent_window must be zero or positive")
	}
	if c.Review.SweepIntervalSeconds > c.Review.LeaseSeconds {
		return errors.New("review.sweep_interval_seconds must not exceed review.lease_seconds")
	}
	return nil
}

func (c *Config) validateReconcile() error {
	switch c.Reconcile.Policy {
	case PolicyPermissive, PolicyStrict:
	default:
		return fmt.Errorf("reconcile.policy: unsupported value %q (use %q or %q)", c.Reconcile.Policy, PolicyPermissive, PolicyStrict)
	}
	if c.Reconcile.MaxDateDays < 0 {
		return errors.New("reconcile.max_date_days must be zero or positive")
	}
	if c.Reconcile.MaxDistanceKM <= 0 {
		return errors.New("reconcile.max_distance_km must be positive")
	}
	if c.Reconcile.LookupCacheSeconds < 0 {
		return errors.New("reconcile.lookup_cache_seconds must be zero or positive")
	}
	return nil
}

func (c *Config) validateMushroomObserver() error {
	parsed, err := url.Parse(c.MushroomObserver.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("mushroom_observer.base_url must be an absolute URL, got %q", c.MushroomObserver.BaseURL)
	}
	if err := ensurePositiveMap(map[string]int{
		"mushroom_observer.timeout_seconds": c.MushroomObserver.TimeoutSeconds,
		"mushroom_observer.burst":           c.MushroomObserver.Burst,
	}); err != nil {
		return err
	}
	if c.MushroomObserver.RequestsPerSecond <= 0 {
		return errors.New("mushroom_observer.requests_per_second must be positive")
	}
	if c.MushroomObserver.ProjectID < 0 {
		return errors.New("mushroom_observer.project_id must be zero or positive")
	}
	return nil
}

func (c *Config) validateForays() error {
	if c.Forays.Year < 1900 || c.Forays.Year > 9999 {
		return fmt.Errorf("forays.year must be a four digit year, got %d", c.Forays.Year)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeReconcile()
	c.normalizeMushroomObserver()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ImagesDir) == "" {
		c.Paths.ImagesDir = defaultImagesDir
	}
	if c.Paths.ImagesDir, err = expandPath(c.Paths.ImagesDir); err != nil {
		return fmt.Errorf("paths.images_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CatalogDir) == "" {
		c.Paths.CatalogDir = defaultCatalogDir
	}
	if c.Paths.CatalogDir, err = expandPath(c.Paths.CatalogDir); err != nil {
		return fmt.Errorf("paths.catalog_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("NEMF_REVIEW_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeReconcile() {
	c.Reconcile.Policy = strings.ToLower(strings.TrimSpace(c.Reconcile.Policy))
	if c.Reconcile.Policy == "" {
		c.Reconcile.Policy = defaultReconcilePolicy
	}
}

func (c *Config) normalizeMushroomObserver() {
	mo := &c.MushroomObserver
	mo.BaseURL = strings.TrimRight(strings.TrimSpace(mo.BaseURL), "/")
	if mo.BaseURL == "" {
		mo.BaseURL = defaultMOBaseURL
	}
	mo.APIKey = strings.TrimSpace(mo.APIKey)
	if mo.APIKey == "" {
		if value, ok := os.LookupEnv("MO_API_KEY"); ok {
			mo.APIKey = strings.TrimSpace(value)
		}
	}
	mo.UserAgent = strings.TrimSpace(mo.UserAgent)
	if mo.UserAgent == "" {
		mo.UserAgent = defaultMOUserAgent
	}
	mo.CopyrightHolder = strings.TrimSpace(mo.CopyrightHolder)
	if len(mo.APIKeys) > 0 {
		cleaned := make(map[string]string, len(mo.APIKeys))
		for holder, key := range mo.APIKeys {
			holder = strings.TrimSpace(holder)
			key = strings.TrimSpace(key)
			if holder == "" || key == "" {
				continue
			}
			cleaned[holder] = key
		}
		mo.APIKeys = cleaned
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

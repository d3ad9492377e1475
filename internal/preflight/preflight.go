package preflight

import (
	"context"

	"nemfreview/internal/catalog"
	"nemfreview/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckReadableDirectory("Images directory", cfg.Paths.ImagesDir),
	}

	for _, name := range []string{catalog.LocationsFile, catalog.NamesFile, catalog.ForaysFile, catalog.LocationTiersFile} {
		results = append(results, CheckCatalogFile(name, cfg.CatalogFile(name)))
	}

	results = append(results, CheckMushroomObserver(ctx, cfg.MushroomObserver.BaseURL, cfg.MushroomObserver.APIKey))
	return results
}

// Failures returns the required checks that did not pass.
func Failures(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}

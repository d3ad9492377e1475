package catalog

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/text/cases"

	"nemfreview/internal/config"
	"nemfreview/internal/logging"
	"nemfreview/internal/records"
)

// Export file names under paths.catalog_dir.
const (
	LocationsFile     = "all_locations.json"
	NamesFile         = "all_names.json"
	ForaysFile        = "forays.csv"
	LocationTiersFile = "location_tiers.tsv"
)

// Search limits.
const (
	MinQueryLength = 2
	MaxResults     = 10
)

// Location is one entry of the location export. The bounding box is
// optional in older exports.
type Location struct {
	ID    int64    `json:"id"`
	Name  string   `json:"name"`
	North *float64 `json:"north,omitempty"`
	South *float64 `json:"south,omitempty"`
	East  *float64 `json:"east,omitempty"`
	West  *float64 `json:"west,omitempty"`
}

// Center returns the middle of the bounding box, or nil when it is absent.
func (l Location) Center() *records.Coordinates {
	if l.North == nil || l.South == nil || l.East == nil || l.West == nil {
		return nil
	}
	return &records.Coordinates{
		Latitude:  (*l.North + *l.South) / 2,
		Longitude: (*l.East + *l.West) / 2,
	}
}

// Name is one entry of the taxon name export.
type Name struct {
	ID       int64  `json:"id"`
	TextName string `json:"text_name"`
	Author   string `json:"author,omitempty"`
}

// Catalog holds the loaded exports. It is safe for concurrent reads.
type Catalog struct {
	locations      []Location
	locationFolded []string
	locationByID   map[int64]Location
	names          []Name
	nameFolded     []string
	forays         map[string]string
	foraysFolded   map[string]string
	queries        *gocache.Cache
	logger         *slog.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithQueryCache memoizes search results for ttl.
func WithQueryCache(ttl time.Duration) Option {
	return func(c *Catalog) {
		if ttl > 0 {
			c.queries = gocache.New(ttl, 2*ttl)
		}
	}
}

// New builds a catalog from already decoded entries.
func New(locations []Location, names []Name, forays map[string]string, opts ...Option) *Catalog {
	c := &Catalog{
		locationByID: make(map[int64]Location, len(locations)),
		forays:       make(map[string]string, len(forays)),
		foraysFolded: make(map[string]string, len(forays)),
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "catalog")

	caser := cases.Fold()
	for _, loc := range locations {
		if strings.TrimSpace(loc.Name) == "" {
			continue
		}
		c.locations = append(c.locations, loc)
		c.locationFolded = append(c.locationFolded, caser.String(loc.Name))
		c.locationByID[loc.ID] = loc
	}
	for _, name := range names {
		if strings.TrimSpace(name.TextName) == "" {
			continue
		}
		c.names = append(c.names, name)
		c.nameFolded = append(c.nameFolded, caser.String(name.TextName))
	}
	for location, date := range forays {
		c.forays[location] = date
		c.foraysFolded[caser.String(location)] = date
	}
	return c
}

// Load reads every export present in the configured catalog directory.
func Load(cfg *config.Config, opts ...Option) (*Catalog, error) {
	if cfg == nil {
		return nil, errors.New("catalog: config is required")
	}
	var locations []Location
	if err := readJSON(cfg.CatalogFile(LocationsFile), &locations); err != nil {
		return nil, err
	}
	var names []Name
	if err := readJSON(cfg.CatalogFile(NamesFile), &names); err != nil {
		return nil, err
	}
	forays, err := loadForays(cfg.CatalogFile(ForaysFile), cfg.Forays.Year)
	if err != nil {
		return nil, err
	}
	opts = append([]Option{WithQueryCache(cfg.LookupCacheTTL())}, opts...)
	c := New(locations, names, forays, opts...)
	c.logger.Info("catalog loaded",
		logging.Int("locations", len(c.locations)),
		logging.Int("names", len(c.names)),
		logging.Int("forays", len(c.forays)),
	)
	return c, nil
}

func readJSON(path string, target any) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	if err := json.NewDecoder(file).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func loadForays(path string, year int) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()
	return ParseForays(file, year)
}

// ParseForays reads a forays CSV with "Site Name" and "Date" columns. Dates
// written as M/D are expanded with year; rows with other date formats are
// skipped.
func ParseForays(r io.Reader, year int) (map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read foray header: %w", err)
	}
	siteCol, dateCol := -1, -1
	for i, column := range header {
		switch strings.TrimSpace(strings.TrimPrefix(column, "\ufeff")) {
		case "Site Name":
			siteCol = i
		case "Date":
			dateCol = i
		}
	}
	if siteCol < 0 || dateCol < 0 {
		return nil, errors.New("forays csv must have Site Name and Date columns")
	}

	forays := make(map[string]string)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read foray row: %w", err)
		}
		if siteCol >= len(row) || dateCol >= len(row) {
			continue
		}
		location := strings.TrimSpace(row[siteCol])
		date, ok := expandDate(row[dateCol], year)
		if location == "" || !ok {
			continue
		}
		forays[location] = date
	}
	return forays, nil
}

func expandDate(value string, year int) (string, bool) {
	monthText, dayText, found := strings.Cut(strings.TrimSpace(value), "/")
	if !found {
		return "", false
	}
	month, err := strconv.Atoi(strings.TrimSpace(monthText))
	if err != nil || month < 1 || month > 12 {
		return "", false
	}
	day, err := strconv.Atoi(strings.TrimSpace(dayText))
	if err != nil || day < 1 || day > 31 {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
}

// LocationTiers loads the optional location tier table next to the exports.
func LocationTiers(cfg *config.Config) (records.LocationTiers, error) {
	return records.LoadLocationTiers(cfg.CatalogFile(LocationTiersFile))
}

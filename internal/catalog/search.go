package catalog

import (
	"strings"

	"golang.org/x/text/cases"
)

// normalizeQuery folds q for matching. ok is false for queries too short to search.
func normalizeQuery(q string) (string, bool) {
	q = strings.TrimSpace(q)
	if len([]rune(q)) < MinQueryLength {
		return "", false
	}
	return cases.Fold().String(q), true
}

// SearchLocations returns up to MaxResults locations whose name contains q,
// ignoring case, in export order.
func (c *Catalog) SearchLocations(q string) []Location {
	folded, ok := normalizeQuery(q)
	if !ok {
		return nil
	}
	cacheKey := "loc:" + folded
	if c.queries != nil {
		if val, found := c.queries.Get(cacheKey); found {
			return val.([]Location)
		}
	}
	var results []Location
	for i, name := range c.locationFolded {
		if strings.Contains(name, folded) {
			results = append(results, c.locations[i])
			if len(results) >= MaxResults {
				break
			}
		}
	}
	if c.queries != nil {
		c.queries.SetDefault(cacheKey, results)
	}
	return results
}

// SearchNames returns up to MaxResults names whose text contains q,
// ignoring case, in export order.
func (c *Catalog) SearchNames(q string) []Name {
	folded, ok := normalizeQuery(q)
	if !ok {
		return nil
	}
	cacheKey := "name:" + folded
	if c.queries != nil {
		if val, found := c.queries.Get(cacheKey); found {
			return val.([]Name)
		}
	}
	var results []Name
	for i, name := range c.nameFolded {
		if strings.Contains(name, folded) {
			results = append(results, c.names[i])
			if len(results) >= MaxResults {
				break
			}
		}
	}
	if c.queries != nil {
		c.queries.SetDefault(cacheKey, results)
	}
	return results
}

// LocationByID returns the location with id.
func (c *Catalog) LocationByID(id int64) (Location, bool) {
	loc, ok := c.locationByID[id]
	return loc, ok
}

// ForayDate returns the foray date for location, trying an exact match
// before a case-insensitive one.
func (c *Catalog) ForayDate(location string) (string, bool) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", false
	}
	if date, ok := c.forays[location]; ok {
		return date, true
	}
	date, ok := c.foraysFolded[cases.Fold().String(location)]
	return date, ok
}

// Counts reports how many entries of each export are loaded.
func (c *Catalog) Counts() (locations, names, forays int) {
	return len(c.locations), len(c.names), len(c.forays)
}

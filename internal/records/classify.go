package records

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// Priority classes, most urgent first.
const (
	ClassNoFieldCode = iota
	ClassNoLocation
	ClassNoName
	ClassLowConfidence
	ClassComplete
)

// ClassDescription returns a short label for a priority class.
func ClassDescription(class int) string {
	switch class {
	case ClassNoFieldCode:
		return "No field code"
	case ClassNoLocation:
		return "No/unknown location"
	case ClassNoName:
		return "No/unknown name"
	case ClassLowConfidence:
		return "Low confidence data"
	case ClassComplete:
		return "Complete, high confidence"
	default:
		return "Unknown"
	}
}

// LocationTiers maps location names to review tiers (1 = most important).
type LocationTiers map[string]int

// Tier returns the tier for location, or DefaultLocationTier when unlisted.
func (t LocationTiers) Tier(location string) int {
	location = strings.TrimSpace(location)
	if location == "" {
		return DefaultLocationTier
	}
	if tier, ok := t[location]; ok {
		return tier
	}
	return DefaultLocationTier
}

var tierHeaders = []struct {
	prefix string
	tier   int
}{
	{"Top Priority", 1},
	{"Secondary Priority", 2},
	{"Third", 3},
	{"Additional", 4},
	{"Misc", 5},
}

// ParseLocationTiers reads a location priority table. Section header lines
// set the tier for the location rows that follow; the first tab-separated
// column of every other non-blank line is a location name.
func ParseLocationTiers(r io.Reader) (LocationTiers, error) {
	tiers := make(LocationTiers)
	current := DefaultLocationTier
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		header := false
		for _, h := range tierHeaders {
			if strings.HasPrefix(line, h.prefix) {
				current = h.tier
				header = true
				break
			}
		}
		if header {
			continue
		}
		name, _, _ := strings.Cut(line, "\t")
		if name = strings.TrimSpace(name); name != "" {
			tiers[name] = current
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read location tiers: %w", err)
	}
	return tiers, nil
}

// LoadLocationTiers reads the tier table at path. A missing file yields an
// empty table so every location falls back to DefaultLocationTier.
func LoadLocationTiers(path string) (LocationTiers, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return LocationTiers{}, nil
		}
		return nil, fmt.Errorf("open location tiers: %w", err)
	}
	defer file.Close()
	return ParseLocationTiers(file)
}

func matched(match string) bool {
	switch strings.ToLower(strings.TrimSpace(match)) {
	case "", "none":
		return false
	default:
		return true
	}
}

// Classify derives review priority from extracted data. Records missing a
// field code come first, then unknown locations, unknown names, low
// confidence OCR, and finally complete records.
func Classify(extracted Extracted, tiers LocationTiers) Priority {
	priority := Priority{LocationTier: tiers.Tier(extracted.Location)}

	missing := strings.TrimSpace(extracted.FieldCode) == "" ||
		strings.TrimSpace(extracted.Date) == "" ||
		strings.TrimSpace(extracted.Location) == "" ||
		strings.TrimSpace(extracted.Name) == ""
	lowConfidence := len(extracted.LowConfidence) > 0
	if missing {
		priority.Issues = append(priority.Issues, IssueMissingField)
	}
	if lowConfidence {
		priority.Issues = append(priority.Issues, IssueLowConfidenceOCR)
	}

	switch {
	case strings.TrimSpace(extracted.FieldCode) == "":
		priority.Class = ClassNoFieldCode
	case strings.TrimSpace(extracted.Location) == "" || !matched(extracted.LocationMatch):
		priority.Class = ClassNoLocation
	case strings.TrimSpace(extracted.Name) == "" || !matched(extracted.NameMatch):
		priority.Class = ClassNoName
	case lowConfidence:
		priority.Class = ClassLowConfidence
	default:
		priority.Class = ClassComplete
	}
	return priority
}

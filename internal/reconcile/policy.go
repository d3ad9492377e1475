package reconcile

import (
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"nemfreview/internal/config"
)

// Policy compares an existing linked observation with the upload candidate
// and returns the reasons the pair looks like different specimens.
type Policy interface {
	Name() string
	Compare(existing Observation, target int64, candidate Candidate) []string
}

// Permissive allows several observations to share a field slip unless they
// differ in species, date, or place beyond the thresholds.
type Permissive struct {
	MaxDateDays   int
	MaxDistanceKM float64
}

// DefaultPermissive returns the permissive policy with a 7 day and 10 km threshold.
func DefaultPermissive() Permissive {
	return Permissive{MaxDateDays: 7, MaxDistanceKM: 10}
}

// Name implements Policy.
func (Permissive) Name() string { return config.PolicyPermissive }

// Compare implements Policy.
func (p Permissive) Compare(existing Observation, _ int64, candidate Candidate) []string {
	var reasons []string
	if differentName(existing.Name, candidate.Name) {
		reasons = append(reasons, ReasonDifferentSpecies)
	}
	if days, ok := daysApart(existing.Date, candidate.Date); ok && days > p.MaxDateDays {
		reasons = append(reasons, ReasonDifferentDate)
	}
	if p.differentPlace(existing, candidate) {
		reasons = append(reasons, ReasonDifferentLocation)
	}
	return reasons
}

func (p Permissive) differentPlace(existing Observation, candidate Candidate) bool {
	if existing.Coordinates != nil && candidate.Coordinates != nil {
		return HaversineKM(
			existing.Coordinates.Latitude, existing.Coordinates.Longitude,
			candidate.Coordinates.Latitude, candidate.Coordinates.Longitude,
		) > p.MaxDistanceKM
	}
	a, b := strings.TrimSpace(existing.LocationName), strings.TrimSpace(candidate.LocationName)
	if a == "" || b == "" {
		return false
	}
	return fold(a) != fold(b)
}

// Strict treats a field slip as one-to-one: any linkage to a different
// observation needs confirmation.
type Strict struct{}

// Name implements Policy.
func (Strict) Name() string { return config.PolicyStrict }

// Compare implements Policy.
func (Strict) Compare(existing Observation, target int64, _ Candidate) []string {
	if existing.ID == target && target != CreateNew {
		return nil
	}
	return []string{fmt.Sprintf(reasonLinkedElsewhere, existing.ID)}
}

// PolicyFromConfig selects the configured policy.
func PolicyFromConfig(cfg *config.Config) Policy {
	if cfg == nil {
		return DefaultPermissive()
	}
	if cfg.Reconcile.Policy == config.PolicyStrict {
		return Strict{}
	}
	return Permissive{MaxDateDays: cfg.Reconcile.MaxDateDays, MaxDistanceKM: cfg.Reconcile.MaxDistanceKM}
}

func differentName(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	return a != b
}

func fold(value string) string {
	return cases.Fold().String(strings.Join(strings.Fields(value), " "))
}

// daysApart returns the absolute whole days between two YYYY-MM-DD dates.
func daysApart(a, b string) (int, bool) {
	ta, err := time.Parse(time.DateOnly, strings.TrimSpace(a))
	if err != nil {
		return 0, false
	}
	tb, err := time.Parse(time.DateOnly, strings.TrimSpace(b))
	if err != nil {
		return 0, false
	}
	diff := ta.Sub(tb)
	if diff < 0 {
		diff = -diff
	}
	return int(diff.Hours() / 24), true
}

const earthRadiusKM = 6371.0

// HaversineKM returns the great-circle distance between two points.
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}

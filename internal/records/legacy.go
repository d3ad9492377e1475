package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// legacyDocument mirrors review_data.json written by the earlier review tool.
type legacyDocument struct {
	Metadata      map[string]any         `json:"metadata,omitempty"`
	Images        map[string]legacyImage `json:"images"`
	ReviewSummary map[string]int         `json:"review_summary,omitempty"`
}

type legacyImage struct {
	Source   legacySource `json:"source"`
	Review   legacyReview `json:"review"`
	Priority []any        `json:"priority,omitempty"`
}

type legacySource struct {
	Filename      string            `json:"filename,omitempty"`
	FieldCode     *string           `json:"field_code"`
	Date          *string           `json:"date"`
	Location      *string           `json:"location"`
	LocationID    flexibleID        `json:"location_id,omitempty"`
	LocationMatch string            `json:"location_match,omitempty"`
	Name          *string           `json:"name"`
	NameID        flexibleID        `json:"name_id,omitempty"`
	NameMatch     string            `json:"name_match,omitempty"`
	Confidence    map[string]string `json:"confidence,omitempty"`
	Notes         *string           `json:"notes"`
}

type legacyReview struct {
	Status          *string    `json:"status"`
	FieldCode       *string    `json:"field_code"`
	Date            *string    `json:"date"`
	Location        *string    `json:"location"`
	LocationID      flexibleID `json:"location_id,omitempty"`
	Name            *string    `json:"name"`
	NameID          flexibleID `json:"name_id,omitempty"`
	Notes           *string    `json:"notes"`
	LinkedImages    []string   `json:"linked_images,omitempty"`
	ObservationID   flexibleID `json:"mo_observation_id,omitempty"`
	ImageID         flexibleID `json:"mo_image_id,omitempty"`
	ReviewedAt      *string    `json:"reviewed_at"`
	Reviewer        *string    `json:"reviewer"`
	UploadedAt      *string    `json:"uploaded_at,omitempty"`
	UploadedBy      *string    `json:"uploaded_by,omitempty"`
	PropagatedFrom  *string    `json:"propagated_from,omitempty"`
	Latitude        *float64   `json:"latitude,omitempty"`
	Longitude       *float64   `json:"longitude,omitempty"`
}

// flexibleID accepts ids written as numbers, numeric strings, or null.
type flexibleID int64

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q", s)
		}
		*f = flexibleID(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	v, err := n.Int64()
	if err != nil {
		fv, ferr := n.Float64()
		if ferr != nil {
			return fmt.Errorf("invalid id %s", data)
		}
		v = int64(fv)
	}
	*f = flexibleID(v)
	return nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

// ImportOptions controls ImportLegacy.
type ImportOptions struct {
	Tiers LocationTiers
	// Overwrite replaces records that are already stored. Without it existing
	// keys are skipped so reviewed state is never clobbered by a re-import.
	Overwrite bool
}

// ImportResult summarizes an import.
type ImportResult struct {
	Imported int
	Skipped  int
	Groups   int
}

// ImportLegacy loads a review_data.json document into the store in one
// transaction. Legacy statuses are mapped, bidirectional linked_images lists
// become link groups, and priority is taken from the stored triple when
// present or computed from the extracted data otherwise.
func (s *Store) ImportLegacy(ctx context.Context, r io.Reader, opts ImportOptions) (ImportResult, error) {
	var doc legacyDocument
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	if err := decoder.Decode(&doc); err != nil {
		return ImportResult{}, fmt.Errorf("decode review data: %w", err)
	}
	if len(doc.Images) == 0 {
		return ImportResult{}, nil
	}

	keys := make([]string, 0, len(doc.Images))
	for key := range doc.Images {
		if strings.TrimSpace(key) != "" {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)

	existing := map[string]*Record{}
	if !opts.Overwrite {
		found, err := s.GetMany(ctx, keys)
		if err != nil {
			return ImportResult{}, err
		}
		existing = found
	}

	groups := legacyGroups(doc.Images)
	var (
		result  ImportResult
		pending []*Record
	)
	for _, key := range keys {
		if _, ok := existing[key]; ok {
			result.Skipped++
			continue
		}
		record, err := fromLegacy(key, doc.Images[key], opts.Tiers)
		if err != nil {
			return ImportResult{}, err
		}
		record.LinkGroup = groups[key]
		pending = append(pending, record)
	}
	if err := s.Put(ctx, pending...); err != nil {
		return ImportResult{}, err
	}
	result.Imported = len(pending)

	seen := map[string]struct{}{}
	for _, record := range pending {
		if record.LinkGroup != "" {
			seen[record.LinkGroup] = struct{}{}
		}
	}
	result.Groups = len(seen)
	return result, nil
}

func fromLegacy(key string, image legacyImage, tiers LocationTiers) (*Record, error) {
	extracted := Extracted{
		FieldCode:     deref(image.Source.FieldCode),
		Date:          deref(image.Source.Date),
		Location:      deref(image.Source.Location),
		LocationID:    int64(image.Source.LocationID),
		LocationMatch: image.Source.LocationMatch,
		Name:          deref(image.Source.Name),
		NameID:        int64(image.Source.NameID),
		NameMatch:     image.Source.NameMatch,
		Notes:         deref(image.Source.Notes),
	}
	for field, level := range image.Source.Confidence {
		if strings.EqualFold(strings.TrimSpace(level), "low") {
			extracted.LowConfidence = append(extracted.LowConfidence, field)
		}
	}
	slices.Sort(extracted.LowConfidence)

	status, ok := ParseStatus(deref(image.Review.Status))
	if !ok {
		return nil, fmt.Errorf("record %s: unknown status %q", key, deref(image.Review.Status))
	}

	review := Review{
		FieldCode:      deref(image.Review.FieldCode),
		Date:           deref(image.Review.Date),
		Location:       CatalogRef{ID: int64(image.Review.LocationID), Name: deref(image.Review.Location)},
		Name:           CatalogRef{ID: int64(image.Review.NameID), Name: deref(image.Review.Name)},
		Notes:          deref(image.Review.Notes),
		Status:         status,
		ReviewedBy:     deref(image.Review.Reviewer),
		PropagatedFrom: deref(image.Review.PropagatedFrom),
	}
	if image.Review.Latitude != nil && image.Review.Longitude != nil {
		review.Coordinates = &Coordinates{Latitude: *image.Review.Latitude, Longitude: *image.Review.Longitude}
	}
	if at, err := parseLegacyTime(deref(image.Review.ReviewedAt)); err == nil {
		review.ReviewedAt = &at
	}
	if review.PropagatedFrom == "" {
		if _, source, found := strings.Cut(review.ReviewedBy, ":propagated_from:"); found {
			review.PropagatedFrom = source
		}
	}

	outcome := Outcome{
		ObservationID: int64(image.Review.ObservationID),
		ImageID:       int64(image.Review.ImageID),
		UploadedBy:    deref(image.Review.UploadedBy),
	}
	if at, err := parseLegacyTime(deref(image.Review.UploadedAt)); err == nil {
		outcome.UploadedAt = &at
	}

	priority := Classify(extracted, tiers)
	if class, tier, ok := legacyPriority(image.Priority); ok {
		priority.Class = class
		priority.LocationTier = tier
	}

	return &Record{
		Key:       key,
		Extracted: extracted,
		Review:    review,
		Priority:  priority,
		Outcome:   outcome,
	}, nil
}

// legacyPriority reads the [class, tier, no_issues] triple.
func legacyPriority(values []any) (int, int, bool) {
	if len(values) < 2 {
		return 0, 0, false
	}
	class, ok := toInt(values[0])
	if !ok {
		return 0, 0, false
	}
	tier, ok := toInt(values[1])
	if !ok {
		return 0, 0, false
	}
	return class, tier, true
}

func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

func parseLegacyTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", value)
}

// legacyGroups turns linked_images adjacency lists into connected components
// and assigns each component with more than one member a fresh group id.
func legacyGroups(images map[string]legacyImage) map[string]string {
	adjacency := make(map[string][]string)
	for key, image := range images {
		for _, other := range image.Review.LinkedImages {
			if other == key {
				continue
			}
			if _, ok := images[other]; !ok {
				continue
			}
			adjacency[key] = append(adjacency[key], other)
			adjacency[other] = append(adjacency[other], key)
		}
	}
	starts := make([]string, 0, len(adjacency))
	for key := range adjacency {
		starts = append(starts, key)
	}
	slices.Sort(starts)

	groups := make(map[string]string)
	for _, start := range starts {
		if _, done := groups[start]; done {
			continue
		}
		id := uuid.NewString()
		stack := []string{start}
		groups[start] = id
		for len(stack) > 0 {
			key := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, next := range adjacency[key] {
				if _, done := groups[next]; done {
					continue
				}
				groups[next] = id
				stack = append(stack, next)
			}
		}
	}
	return groups
}

// ExportLegacy writes every record as a review_data.json document that the
// earlier review tool can read, including the review_summary counts.
func (s *Store) ExportLegacy(ctx context.Context, w io.Writer) error {
	all, err := s.List(ctx, ListOptions{})
	if err != nil {
		return err
	}
	summary, err := s.Summary(ctx)
	if err != nil {
		return err
	}

	members := make(map[string][]string)
	for _, record := range all {
		if record.LinkGroup != "" {
			members[record.LinkGroup] = append(members[record.LinkGroup], record.Key)
		}
	}

	doc := legacyExport{
		Metadata: map[string]any{
			"exported":     s.now().Format(time.RFC3339),
			"total_images": len(all),
		},
		Images: make(map[string]legacyExportImage, len(all)),
		ReviewSummary: map[string]int{
			"total":         summary.Total,
			"reviewed":      summary.Reviewed,
			"approved":      summary.Approved,
			"corrected":     summary.Corrected,
			"excluded":      summary.Excluded,
			"already_on_mo": summary.AlreadyOnExternal,
			"uploaded":      summary.Uploaded,
		},
	}
	for _, record := range all {
		doc.Images[record.Key] = toLegacy(record, members[record.LinkGroup])
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode review data: %w", err)
	}
	return nil
}

type legacyExport struct {
	Metadata      map[string]any               `json:"metadata"`
	Images        map[string]legacyExportImage `json:"images"`
	ReviewSummary map[string]int               `json:"review_summary"`
}

type legacyExportImage struct {
	Source   map[string]any `json:"source"`
	Review   map[string]any `json:"review"`
	Priority []any          `json:"priority"`
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func nullableText(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func legacyStatus(status Status) any {
	switch status {
	case StatusUnreviewed, "":
		return nil
	case StatusAlreadyOnExternal:
		return "already_on_mo"
	default:
		return string(status)
	}
}

func toLegacy(record *Record, group []string) legacyExportImage {
	confidence := map[string]string{}
	for _, field := range record.Extracted.LowConfidence {
		confidence[field] = "low"
	}
	var linked []string
	for _, key := range group {
		if key != record.Key {
			linked = append(linked, key)
		}
	}
	slices.Sort(linked)

	review := map[string]any{
		"status":            legacyStatus(record.Review.Status),
		"field_code":        nullableText(record.Review.FieldCode),
		"date":              nullableText(record.Review.Date),
		"location":          nullableText(record.Review.Location.Name),
		"location_id":       nullableID(record.Review.Location.ID),
		"name":              nullableText(record.Review.Name.Name),
		"name_id":           nullableID(record.Review.Name.ID),
		"notes":             nullableText(record.Review.Notes),
		"linked_images":     linked,
		"reviewer":          nullableText(record.Review.ReviewedBy),
		"reviewed_at":       nullableTime(record.Review.ReviewedAt),
		"mo_observation_id": nullableID(record.Outcome.ObservationID),
		"mo_image_id":       nullableID(record.Outcome.ImageID),
		"uploaded_at":       nullableTime(record.Outcome.UploadedAt),
		"uploaded_by":       nullableText(record.Outcome.UploadedBy),
	}
	if record.Review.PropagatedFrom != "" {
		review["propagated_from"] = record.Review.PropagatedFrom
	}
	if c := record.Review.Coordinates; c != nil {
		review["latitude"] = c.Latitude
		review["longitude"] = c.Longitude
	}

	return legacyExportImage{
		Source: map[string]any{
			"filename":       record.Key,
			"field_code":     nullableText(record.Extracted.FieldCode),
			"date":           nullableText(record.Extracted.Date),
			"location":       nullableText(record.Extracted.Location),
			"location_id":    nullableID(record.Extracted.LocationID),
			"location_match": nullableText(record.Extracted.LocationMatch),
			"name":           nullableText(record.Extracted.Name),
			"name_id":        nullableID(record.Extracted.NameID),
			"name_match":     nullableText(record.Extracted.NameMatch),
			"confidence":     confidence,
			"notes":          nullableText(record.Extracted.Notes),
		},
		Review:   review,
		Priority: []any{record.Priority.Class, record.Priority.LocationTier, !record.Priority.HasIssues()},
	}
}

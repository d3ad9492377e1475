package records

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Status represents the review lifecycle state of a record.
type Status string

const (
	StatusUnreviewed        Status = "unreviewed"
	StatusApproved          Status = "approved"
	StatusCorrected         Status = "corrected"
	StatusAlreadyOnExternal Status = "already_on_external"
	StatusExcluded          Status = "excluded"
)

var allStatuses = []Status{
	StatusUnreviewed,
	StatusApproved,
	StatusCorrected,
	StatusAlreadyOnExternal,
	StatusExcluded,
}

var statusSet = func() map[Status]struct{} {
	m := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		m[status] = struct{}{}
	}
	return m
}()

// legacyStatuses maps status strings written by the earlier review tool.
var legacyStatuses = map[string]Status{
	"":              StatusUnreviewed,
	"already_on_mo": StatusAlreadyOnExternal,
	"discarded":     StatusExcluded,
}

// AllStatuses returns all known statuses in display order.
func AllStatuses() []Status {
	return slices.Clone(allStatuses)
}

// ParseStatus converts a string into a Status, accepting legacy spellings.
func ParseStatus(value string) (Status, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if status, ok := legacyStatuses[normalized]; ok {
		return status, true
	}
	status := Status(normalized)
	if _, ok := statusSet[status]; ok {
		return status, true
	}
	return "", false
}

// IsResolvedStatus reports whether status finalizes a record on its own.
func IsResolvedStatus(status Status) bool {
	switch status {
	case StatusApproved, StatusCorrected, StatusAlreadyOnExternal, StatusExcluded:
		return true
	default:
		return false
	}
}

// IssueFlag marks a data-quality concern found during extraction.
type IssueFlag string

const (
	IssueMissingField     IssueFlag = "missing-field"
	IssueLowConfidenceOCR IssueFlag = "low-confidence-ocr"
)

// Extracted is the read-only reference data produced upstream by OCR.
type Extracted struct {
	FieldCode     string   `json:"field_code,omitempty"`
	Date          string   `json:"date,omitempty"`
	Location      string   `json:"location,omitempty"`
	LocationID    int64    `json:"location_id,omitempty"`
	LocationMatch string   `json:"location_match,omitempty"`
	Name          string   `json:"name,omitempty"`
	NameID        int64    `json:"name_id,omitempty"`
	NameMatch     string   `json:"name_match,omitempty"`
	Notes         string   `json:"notes,omitempty"`
	LowConfidence []string `json:"low_confidence,omitempty"`
}

// CatalogRef pairs an external catalog id with its display name.
type CatalogRef struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Empty reports whether neither id nor name is set.
func (r CatalogRef) Empty() bool {
	return r.ID == 0 && strings.TrimSpace(r.Name) == ""
}

// Coordinates is a WGS84 point.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Review holds the reviewer-edited fields of a record.
type Review struct {
	FieldCode      string
	Date           string
	Location       CatalogRef
	Coordinates    *Coordinates
	Name           CatalogRef
	Notes          string
	Status         Status
	ReviewedBy     string
	ReviewedAt     *time.Time
	PropagatedFrom string
}

// Fields describes the review values written by a submission.
type Fields struct {
	FieldCode   string
	Date        string
	Location    CatalogRef
	Coordinates *Coordinates
	Name        CatalogRef
	Notes       string
}

// Priority carries the attributes used to order the review backlog.
type Priority struct {
	Class        int
	LocationTier int
	Issues       []IssueFlag
}

// HasIssues reports whether any issue flag is present.
func (p Priority) HasIssues() bool {
	return len(p.Issues) > 0
}

// DefaultLocationTier is assigned to locations missing from the tier table.
const DefaultLocationTier = 99

// Outcome captures what was created in the external system for a record.
type Outcome struct {
	ObservationID int64
	ImageID       int64
	UploadedAt    *time.Time
	UploadedBy    string
}

// Uploaded reports whether an external observation id is recorded.
func (o Outcome) Uploaded() bool {
	return o.ObservationID > 0
}

// Record is one reviewable image plus its extracted and review data.
type Record struct {
	Key       string
	Extracted Extracted
	Review    Review
	Priority  Priority
	LinkGroup string
	Outcome   Outcome
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Resolved reports whether the record needs no further review.
func (r *Record) Resolved() bool {
	if r == nil {
		return false
	}
	return IsResolvedStatus(r.Review.Status) || r.Outcome.Uploaded()
}

// String returns a concise identifier for log output.
func (r *Record) String() string {
	if r == nil {
		return "<nil record>"
	}
	return fmt.Sprintf("%s (%s)", r.Key, r.Review.Status)
}

// Summary aggregates record counts for status views and exports.
type Summary struct {
	Total             int
	Reviewed          int
	Approved          int
	Corrected         int
	Excluded          int
	AlreadyOnExternal int
	Uploaded          int
	Remaining         int
}

// DatabaseHealth reports diagnostic information about the record database.
type DatabaseHealth struct {
	DBPath         string
	DatabaseExists bool
	SchemaVersion  int
	IntegrityCheck bool
	TotalRecords   int
	Error          string
}

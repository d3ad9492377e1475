package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// CatalogRef pairs an external catalog id with its display name.
type CatalogRef struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Coordinates is a WGS84 point.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Extracted is the read-only OCR output for a record.
type Extracted struct {
	FieldCode     string   `json:"fieldCode,omitempty"`
	Date          string   `json:"date,omitempty"`
	Location      string   `json:"location,omitempty"`
	LocationID    int64    `json:"locationId,omitempty"`
	LocationMatch string   `json:"locationMatch,omitempty"`
	Name          string   `json:"name,omitempty"`
	NameID        int64    `json:"nameId,omitempty"`
	NameMatch     string   `json:"nameMatch,omitempty"`
	Notes         string   `json:"notes,omitempty"`
	LowConfidence []string `json:"lowConfidence,omitempty"`
}

// ReviewFields are the reviewer-editable values of a record.
type ReviewFields struct {
	FieldCode   string       `json:"fieldCode,omitempty"`
	Date        string       `json:"date,omitempty"`
	Location    CatalogRef   `json:"location"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Name        CatalogRef   `json:"name"`
	Notes       string       `json:"notes,omitempty"`
}

// Review is the stored review state of a record.
type Review struct {
	ReviewFields
	Status         string `json:"status"`
	ReviewedBy     string `json:"reviewedBy,omitempty"`
	ReviewedAt     string `json:"reviewedAt,omitempty"`
	PropagatedFrom string `json:"propagatedFrom,omitempty"`
}

// Priority carries the ordering attributes of a record.
type Priority struct {
	Class        int      `json:"class"`
	LocationTier int      `json:"locationTier"`
	Issues       []string `json:"issues,omitempty"`
}

// Outcome describes what the external system holds for a record.
type Outcome struct {
	ObservationID  int64  `json:"observationId,omitempty"`
	ObservationURL string `json:"observationUrl,omitempty"`
	ImageID        int64  `json:"imageId,omitempty"`
	UploadedAt     string `json:"uploadedAt,omitempty"`
	UploadedBy     string `json:"uploadedBy,omitempty"`
}

// Record is the transport form of one reviewable image. ClaimedBy and IsMine
// are only filled in listings.
type Record struct {
	Key       string    `json:"key"`
	Resolved  bool      `json:"resolved"`
	Extracted Extracted `json:"extracted"`
	Review    Review    `json:"review"`
	Priority  Priority  `json:"priority"`
	Outcome   Outcome   `json:"outcome"`
	LinkGroup []string  `json:"linkGroup,omitempty"`
	UpdatedAt string    `json:"updatedAt,omitempty"`
	ClaimedBy string    `json:"claimedBy,omitempty"`
	IsMine    bool      `json:"isMine,omitempty"`
}

// Claim describes a lease on a record.
type Claim struct {
	Held             bool   `json:"held"`
	Holder           string `json:"holder,omitempty"`
	AcquiredAt       string `json:"acquiredAt,omitempty"`
	ExpiresAt        string `json:"expiresAt,omitempty"`
	RemainingSeconds int    `json:"remainingSeconds,omitempty"`
}

// RecordResponse wraps a record with its claim state.
type RecordResponse struct {
	Record Record `json:"record"`
	Claim  Claim  `json:"claim"`
}

// NextRequest narrows GetNext.
type NextRequest struct {
	After   string   `json:"after,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

// NextResponse carries the record handed out, or none when the backlog is
// exhausted for the holder.
type NextResponse struct {
	Record *Record `json:"record,omitempty"`
	Claim  *Claim  `json:"claim,omitempty"`
	Done   bool    `json:"done"`
}

// RecordListResponse wraps a collection of records.
type RecordListResponse struct {
	Records []Record `json:"records"`
}

// ClaimResponse wraps a single claim.
type ClaimResponse struct {
	Key   string `json:"key"`
	Claim Claim  `json:"claim"`
}

// ReleaseAllResponse lists the keys released for a holder.
type ReleaseAllResponse struct {
	Released []string `json:"released"`
}

// LinkRequest names the record to join into the path record's group.
type LinkRequest struct {
	Target string `json:"target"`
}

// GroupResponse lists the members of a link group.
type GroupResponse struct {
	Key     string   `json:"key"`
	Members []string `json:"members"`
}

// SubmitRequest is the body of a submission.
type SubmitRequest struct {
	Action        string        `json:"action"`
	Fields        *ReviewFields `json:"fields,omitempty"`
	Mode          string        `json:"mode,omitempty"`
	ObservationID int64         `json:"observationId,omitempty"`
	Decision      string        `json:"decision,omitempty"`
}

// Reconciliation describes a field-slip reconciliation decision.
type Reconciliation struct {
	Decision    string               `json:"decision"`
	Code        string               `json:"code"`
	Target      int64                `json:"target,omitempty"`
	Existing    int64                `json:"existing,omitempty"`
	Reasons     []string             `json:"reasons,omitempty"`
	Observation *ExistingObservation `json:"observation,omitempty"`
}

// ExistingObservation summarizes the observation a field slip points at.
type ExistingObservation struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name,omitempty"`
	Date         string       `json:"date,omitempty"`
	LocationName string       `json:"locationName,omitempty"`
	Coordinates  *Coordinates `json:"coordinates,omitempty"`
}

// UploadedImage maps a record to the image created for it.
type UploadedImage struct {
	Key     string `json:"key"`
	ImageID int64  `json:"imageId"`
}

// SubmitResponse reports what a submission did.
type SubmitResponse struct {
	Result           string          `json:"result"`
	Key              string          `json:"key"`
	Status           string          `json:"status,omitempty"`
	Updated          []string        `json:"updated,omitempty"`
	Skipped          []string        `json:"skipped,omitempty"`
	ObservationID    int64           `json:"observationId,omitempty"`
	ObservationURL   string          `json:"observationUrl,omitempty"`
	Images           []UploadedImage `json:"images,omitempty"`
	Reconciliation   *Reconciliation `json:"reconciliation,omitempty"`
	FieldSlipCreated bool            `json:"fieldSlipCreated"`
	Warnings         []string        `json:"warnings,omitempty"`
}

// Summary reports review progress counts.
type Summary struct {
	Total             int `json:"total"`
	Reviewed          int `json:"reviewed"`
	Approved          int `json:"approved"`
	Corrected         int `json:"corrected"`
	Excluded          int `json:"excluded"`
	AlreadyOnExternal int `json:"alreadyOnExternal"`
	Uploaded          int `json:"uploaded"`
	Remaining         int `json:"remaining"`
}

// Position locates a record in priority order.
type Position struct {
	Index int    `json:"index"`
	Total int    `json:"total"`
	Prev  string `json:"prev,omitempty"`
	Next  string `json:"next,omitempty"`
}

// Navigation describes history movement for a holder.
type Navigation struct {
	Position       Position `json:"position"`
	HistoryIndex   int      `json:"historyIndex"`
	HistoryLength  int      `json:"historyLength"`
	CanGoBack      bool     `json:"canGoBack"`
	CanGoForward   bool     `json:"canGoForward"`
	BackTarget     string   `json:"backTarget,omitempty"`
	ForwardTarget  string   `json:"forwardTarget,omitempty"`
	NextUnreviewed string   `json:"nextUnreviewed,omitempty"`
	NextMode       string   `json:"nextMode"`
	AllResolved    bool     `json:"allResolved"`
}

// FieldSlipResponse lists what is known about a field code locally and
// externally.
type FieldSlipResponse struct {
	Code     string             `json:"code"`
	Local    []LocalObservation `json:"local"`
	External []int64            `json:"external,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// LocalObservation is an observation already recorded on local records.
type LocalObservation struct {
	ObservationID  int64    `json:"observationId"`
	ObservationURL string   `json:"observationUrl,omitempty"`
	Status         string   `json:"status"`
	Keys           []string `json:"keys"`
}

// VerifyResponse reports whether an external observation exists.
type VerifyResponse struct {
	ObservationID  int64  `json:"observationId"`
	Exists         bool   `json:"exists"`
	ObservationURL string `json:"observationUrl,omitempty"`
}

// LocationResult is one catalog location match.
type LocationResult struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	Center    *Coordinates `json:"center,omitempty"`
	ForayDate string       `json:"forayDate,omitempty"`
}

// NameResult is one catalog name match.
type NameResult struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Author string `json:"author,omitempty"`
}

// LookupResponse wraps catalog search results.
type LookupResponse[T any] struct {
	Query   string `json:"query"`
	Results []T    `json:"results"`
}

// ForayResponse reports the foray date for a location.
type ForayResponse struct {
	Location string `json:"location"`
	Date     string `json:"date,omitempty"`
	Found    bool   `json:"found"`
}

// ServiceStatus aggregates daemon runtime information for API consumers.
type ServiceStatus struct {
	Running      bool    `json:"running"`
	PID          int     `json:"pid"`
	DatabasePath string  `json:"databasePath"`
	LockFilePath string  `json:"lockFilePath"`
	Policy       string  `json:"policy"`
	ActiveClaims int     `json:"activeClaims"`
	Summary      Summary `json:"summary"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Step      string `json:"step,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

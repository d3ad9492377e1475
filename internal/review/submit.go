package review

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"nemfreview/internal/logging"
	"nemfreview/internal/metrics"
	"nemfreview/internal/records"
	"nemfreview/internal/reconcile"
	"nemfreview/internal/services"
)

// Action is what a submission does to a record.
type Action string

const (
	// ActionSave writes fields across the group and keeps the record open.
	ActionSave              Action = "save"
	ActionApprove           Action = "approve"
	ActionCorrect           Action = "correct"
	ActionExclude           Action = "exclude"
	ActionAlreadyOnExternal Action = "already_on_external"
	ActionUpload            Action = "upload"
)

// UploadMode selects the upload workflow.
type UploadMode string

const (
	UploadCreateNew     UploadMode = "create_new"
	UploadAddToExisting UploadMode = "add_to_existing"
)

// Confirmation answers a reconciliation flag on re-submission.
type Confirmation string

const (
	ConfirmNone    Confirmation = ""
	ConfirmProceed Confirmation = "proceed"
	ConfirmCancel  Confirmation = "cancel"
)

// ResultKind classifies a successful Submit call.
type ResultKind string

const (
	ResultOK                     ResultKind = "ok"
	ResultReconciliationRequired ResultKind = "reconciliation_required"
	ResultCancelled              ResultKind = "cancelled"
)

// SubmitRequest is one reviewer decision on a record.
type SubmitRequest struct {
	Key    string
	Holder string
	Action Action
	// Fields are the reviewed values. Leaving every field empty submits the
	// record's current review values, or the extracted ones if unreviewed.
	Fields records.Fields
	// Mode selects the upload workflow. It defaults to add_to_existing when
	// ObservationID is set and create_new otherwise.
	Mode UploadMode
	// ObservationID is the existing observation for already_on_external and
	// add_to_existing.
	ObservationID int64
	Decision      Confirmation
}

// SubmitResult reports what a submission did.
type SubmitResult struct {
	Kind             ResultKind
	Key              string
	Status           records.Status
	Updated          []string
	Skipped          []string
	ObservationID    int64
	ObservationURL   string
	Images           []records.UploadResult
	Reconciliation   *reconcile.Decision
	FieldSlipCreated bool
	Warnings         []string
}

// Submit validates req, takes the claim, and applies the decision. Upload
// submissions whose field slip needs confirmation return a result of kind
// reconciliation_required; re-submit with Decision proceed or cancel.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (result SubmitResult, err error) {
	req, err = normalizeRequest(req)
	if err != nil {
		metrics.RecordSubmission(string(req.Action), services.Kind(err))
		return SubmitResult{}, err
	}
	ctx = services.WithRecordKey(ctx, req.Key)
	ctx = services.WithHolder(ctx, req.Holder)
	ctx = services.WithAction(ctx, string(req.Action))
	logger := logging.WithContext(ctx, s.logger)
	defer func() {
		outcome := string(result.Kind)
		if err != nil {
			outcome = services.Kind(err)
			logger.Warn("submission failed", logging.Args(logging.Error(err))...)
		}
		metrics.RecordSubmission(string(req.Action), outcome)
	}()

	record, err := s.load(ctx, req.Key)
	if err != nil {
		return SubmitResult{}, err
	}
	fields := s.resolveFields(record, req.Fields)
	if err := validateFields(req.Action, fields); err != nil {
		return SubmitResult{}, err
	}
	if record.Resolved() {
		return SubmitResult{}, storeError("submit", fmt.Errorf("%w: %s", records.ErrResolved, req.Key))
	}
	if _, err := s.claims.Acquire(req.Key, req.Holder); err != nil {
		return SubmitResult{}, err
	}

	if req.Action == ActionUpload {
		result, err = s.upload(ctx, record, req, fields)
	} else {
		result, err = s.review(ctx, record, req, fields)
	}
	if err != nil {
		return SubmitResult{}, err
	}
	logger.Info("submission applied",
		logging.Args(
			logging.String("result", string(result.Kind)),
			logging.String("status", string(result.Status)),
			logging.Int("updated", len(result.Updated)),
			logging.Int64("observation_id", result.ObservationID),
		)...,
	)
	return result, nil
}

func (s *Service) review(ctx context.Context, record *records.Record, req SubmitRequest, fields records.Fields) (SubmitResult, error) {
	status := statusFor(req.Action)
	write := records.GroupWrite{
		Source: record.Key,
		Fields: fields,
		Status: status,
		Holder: req.Holder,
	}
	if req.Action == ActionAlreadyOnExternal {
		write.ObservationID = req.ObservationID
	}
	applied, err := s.links.Propagate(ctx, write)
	if err != nil {
		return SubmitResult{}, storeError("submit", err)
	}
	result := SubmitResult{
		Kind:          ResultOK,
		Key:           record.Key,
		Status:        status,
		Updated:       applied.Updated,
		Skipped:       applied.Skipped,
		ObservationID: write.ObservationID,
	}
	if status == "" {
		result.Status = record.Review.Status
		return result, nil
	}
	s.releaseGroup(req.Holder, applied.Updated)
	return result, nil
}

func statusFor(action Action) records.Status {
	switch action {
	case ActionApprove:
		return records.StatusApproved
	case ActionCorrect:
		return records.StatusCorrected
	case ActionExclude:
		return records.StatusExcluded
	case ActionAlreadyOnExternal:
		return records.StatusAlreadyOnExternal
	default:
		return ""
	}
}

// uploadStatus is approved when the reviewer kept the extracted values and
// corrected otherwise.
func uploadStatus(record *records.Record, fields records.Fields) records.Status {
	ex := record.Extracted
	same := func(a, b string) bool { return strings.TrimSpace(a) == strings.TrimSpace(b) }
	if same(fields.FieldCode, ex.FieldCode) &&
		same(fields.Date, ex.Date) &&
		same(fields.Location.Name, ex.Location) &&
		same(fields.Name.Name, ex.Name) {
		return records.StatusApproved
	}
	return records.StatusCorrected
}

func (s *Service) releaseGroup(holder string, keys []string) {
	for _, key := range keys {
		// Claims held by other reviewers are left alone.
		_ = s.claims.Release(key, holder)
	}
}

func normalizeRequest(req SubmitRequest) (SubmitRequest, error) {
	req.Key = strings.TrimSpace(req.Key)
	req.Holder = strings.TrimSpace(req.Holder)
	req.Action = Action(strings.ToLower(strings.TrimSpace(string(req.Action))))
	req.Mode = UploadMode(strings.ToLower(strings.TrimSpace(string(req.Mode))))
	req.Decision = Confirmation(strings.ToLower(strings.TrimSpace(string(req.Decision))))

	invalid := func(msg string) error {
		return services.Wrap(services.ErrValidation, "review", "submit", msg, nil)
	}
	switch {
	case req.Key == "":
		return req, invalid("record key is required")
	case req.Holder == "":
		return req, invalid("holder is required")
	}
	switch req.Action {
	case ActionSave, ActionApprove, ActionCorrect, ActionExclude:
	case ActionAlreadyOnExternal:
		if req.ObservationID <= 0 {
			return req, invalid("already_on_external requires a positive observation id")
		}
	case ActionUpload:
		if req.Mode == "" {
			req.Mode = UploadCreateNew
			if req.ObservationID > 0 {
				req.Mode = UploadAddToExisting
			}
		}
		switch req.Mode {
		case UploadCreateNew:
		case UploadAddToExisting:
			if req.ObservationID <= 0 {
				return req, invalid("add_to_existing requires a positive observation id")
			}
		default:
			return req, invalid(fmt.Sprintf("unknown upload mode %q", req.Mode))
		}
	case "":
		return req, invalid("action is required")
	default:
		return req, invalid(fmt.Sprintf("unknown action %q", req.Action))
	}
	switch req.Decision {
	case ConfirmNone, ConfirmProceed, ConfirmCancel:
	default:
		return req, invalid(fmt.Sprintf("decision must be proceed or cancel, got %q", req.Decision))
	}
	return req, nil
}

func fieldsEmpty(f records.Fields) bool {
	return strings.TrimSpace(f.FieldCode) == "" &&
		strings.TrimSpace(f.Date) == "" &&
		f.Location.Empty() &&
		f.Coordinates == nil &&
		f.Name.Empty() &&
		strings.TrimSpace(f.Notes) == ""
}

// resolveFields trims f, falls back to stored values when f is empty, and
// fills coordinates from the catalog location.
func (s *Service) resolveFields(record *records.Record, f records.Fields) records.Fields {
	if fieldsEmpty(f) {
		rv := record.Review
		f = records.Fields{
			FieldCode:   rv.FieldCode,
			Date:        rv.Date,
			Location:    rv.Location,
			Coordinates: rv.Coordinates,
			Name:        rv.Name,
			Notes:       rv.Notes,
		}
		if fieldsEmpty(f) {
			ex := record.Extracted
			f = records.Fields{
				FieldCode: ex.FieldCode,
				Date:      ex.Date,
				Location:  records.CatalogRef{ID: ex.LocationID, Name: ex.Location},
				Name:      records.CatalogRef{ID: ex.NameID, Name: ex.Name},
				Notes:     ex.Notes,
			}
		}
	}
	f.FieldCode = strings.TrimSpace(f.FieldCode)
	f.Date = strings.TrimSpace(f.Date)
	f.Location.Name = strings.TrimSpace(f.Location.Name)
	f.Name.Name = strings.TrimSpace(f.Name.Name)
	if f.Coordinates == nil && f.Location.ID > 0 && s.catalog != nil {
		if location, ok := s.catalog.LocationByID(f.Location.ID); ok {
			f.Coordinates = location.Center()
		}
	}
	return f
}

func validateFields(action Action, f records.Fields) error {
	invalid := func(msg string) error {
		return services.Wrap(services.ErrValidation, "review", "submit", msg, nil)
	}
	if f.Date != "" {
		if _, err := time.Parse(time.DateOnly, f.Date); err != nil {
			return invalid(fmt.Sprintf("date %q must be YYYY-MM-DD", f.Date))
		}
	}
	if c := f.Coordinates; c != nil {
		if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
			return invalid("latitude must be between -90 and 90")
		}
		if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
			return invalid("longitude must be between -180 and 180")
		}
	}
	if f.Location.ID < 0 || f.Name.ID < 0 {
		return invalid("catalog ids must not be negative")
	}
	if action == ActionUpload {
		if f.Date == "" {
			return invalid("date is required for upload")
		}
		if f.Location.Empty() {
			return invalid("location is required for upload")
		}
	}
	return nil
}

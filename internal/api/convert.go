package api

import (
	"slices"
	"strings"
	"time"

	"nemfreview/internal/catalog"
	"nemfreview/internal/claims"
	"nemfreview/internal/records"
	"nemfreview/internal/reconcile"
	"nemfreview/internal/review"
	"nemfreview/internal/selector"
)

// URLFunc builds the external observation URL for an id.
type URLFunc func(id int64) string

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func fromCoordinates(c *records.Coordinates) *Coordinates {
	if c == nil {
		return nil
	}
	return &Coordinates{Latitude: c.Latitude, Longitude: c.Longitude}
}

func toCoordinates(c *Coordinates) *records.Coordinates {
	if c == nil {
		return nil
	}
	return &records.Coordinates{Latitude: c.Latitude, Longitude: c.Longitude}
}

// FromRecord converts a stored record. group lists its link group members,
// itself included; urlFor may be nil.
func FromRecord(r *records.Record, group []string, urlFor URLFunc) Record {
	if r == nil {
		return Record{}
	}
	ex := r.Extracted
	rv := r.Review
	issues := make([]string, 0, len(r.Priority.Issues))
	for _, issue := range r.Priority.Issues {
		issues = append(issues, string(issue))
	}
	dto := Record{
		Key:      r.Key,
		Resolved: r.Resolved(),
		Extracted: Extracted{
			FieldCode:     ex.FieldCode,
			Date:          ex.Date,
			Location:      ex.Location,
			LocationID:    ex.LocationID,
			LocationMatch: ex.LocationMatch,
			Name:          ex.Name,
			NameID:        ex.NameID,
			NameMatch:     ex.NameMatch,
			Notes:         ex.Notes,
			LowConfidence: slices.Clone(ex.LowConfidence),
		},
		Review: Review{
			ReviewFields: ReviewFields{
				FieldCode:   rv.FieldCode,
				Date:        rv.Date,
				Location:    CatalogRef{ID: rv.Location.ID, Name: rv.Location.Name},
				Coordinates: fromCoordinates(rv.Coordinates),
				Name:        CatalogRef{ID: rv.Name.ID, Name: rv.Name.Name},
				Notes:       rv.Notes,
			},
			Status:         string(rv.Status),
			ReviewedBy:     rv.ReviewedBy,
			ReviewedAt:     formatTimePtr(rv.ReviewedAt),
			PropagatedFrom: rv.PropagatedFrom,
		},
		Priority: Priority{
			Class:        r.Priority.Class,
			LocationTier: r.Priority.LocationTier,
			Issues:       issues,
		},
		Outcome: Outcome{
			ObservationID: r.Outcome.ObservationID,
			ImageID:       r.Outcome.ImageID,
			UploadedAt:    formatTimePtr(r.Outcome.UploadedAt),
			UploadedBy:    r.Outcome.UploadedBy,
		},
		UpdatedAt: formatTime(r.UpdatedAt),
	}
	if r.Outcome.ObservationID > 0 && urlFor != nil {
		dto.Outcome.ObservationURL = urlFor(r.Outcome.ObservationID)
	}
	if len(group) > 1 {
		dto.LinkGroup = slices.Clone(group)
	}
	return dto
}

// FromClaim converts a live claim as seen at now.
func FromClaim(c claims.Claim, now time.Time) Claim {
	return Claim{
		Held:             true,
		Holder:           c.Holder,
		AcquiredAt:       formatTime(c.AcquiredAt),
		ExpiresAt:        formatTime(c.ExpiresAt),
		RemainingSeconds: int(c.Remaining(now).Seconds()),
	}
}

// MarkClaim annotates r with the live claimant, as seen by holder.
func MarkClaim(r *Record, claimant, holder string) {
	r.ClaimedBy = claimant
	r.IsMine = claimant != "" && claimant == holder
}

// FromState converts a claim snapshot as seen at now.
func FromState(s claims.State, now time.Time) Claim {
	if !s.Held {
		return Claim{}
	}
	return FromClaim(claims.Claim{Holder: s.Holder, AcquiredAt: s.AcquiredAt, ExpiresAt: s.ExpiresAt}, now)
}

// ToFields converts submitted review values. A nil payload yields empty
// fields, which the service resolves from stored values.
func ToFields(f *ReviewFields) records.Fields {
	if f == nil {
		return records.Fields{}
	}
	return records.Fields{
		FieldCode:   f.FieldCode,
		Date:        f.Date,
		Location:    records.CatalogRef{ID: f.Location.ID, Name: f.Location.Name},
		Coordinates: toCoordinates(f.Coordinates),
		Name:        records.CatalogRef{ID: f.Name.ID, Name: f.Name.Name},
		Notes:       f.Notes,
	}
}

// ToSubmitRequest builds the service request for key on behalf of holder.
func ToSubmitRequest(key, holder string, req SubmitRequest) review.SubmitRequest {
	return review.SubmitRequest{
		Key:           key,
		Holder:        holder,
		Action:        review.Action(strings.TrimSpace(req.Action)),
		Fields:        ToFields(req.Fields),
		Mode:          review.UploadMode(strings.TrimSpace(req.Mode)),
		ObservationID: req.ObservationID,
		Decision:      review.Confirmation(strings.TrimSpace(req.Decision)),
	}
}

// FromDecision converts a reconciliation decision.
func FromDecision(d *reconcile.Decision) *Reconciliation {
	if d == nil {
		return nil
	}
	dto := &Reconciliation{
		Decision: string(d.Kind),
		Code:     d.Code,
		Target:   d.Target,
		Existing: d.Existing,
		Reasons:  slices.Clone(d.Reasons),
	}
	if obs := d.Observation; obs != nil {
		dto.Observation = &ExistingObservation{
			ID:           obs.ID,
			Name:         obs.Name,
			Date:         obs.Date,
			LocationName: obs.LocationName,
			Coordinates:  fromCoordinates(obs.Coordinates),
		}
	}
	return dto
}

// FromSubmitResult converts a submission outcome.
func FromSubmitResult(result review.SubmitResult) SubmitResponse {
	images := make([]UploadedImage, 0, len(result.Images))
	for _, image := range result.Images {
		images = append(images, UploadedImage{Key: image.Key, ImageID: image.ImageID})
	}
	return SubmitResponse{
		Result:           string(result.Kind),
		Key:              result.Key,
		Status:           string(result.Status),
		Updated:          result.Updated,
		Skipped:          result.Skipped,
		ObservationID:    result.ObservationID,
		ObservationURL:   result.ObservationURL,
		Images:           images,
		Reconciliation:   FromDecision(result.Reconciliation),
		FieldSlipCreated: result.FieldSlipCreated,
		Warnings:         result.Warnings,
	}
}

// FromSummary converts store counts.
func FromSummary(s records.Summary) Summary {
	return Summary{
		Total:             s.Total,
		Reviewed:          s.Reviewed,
		Approved:          s.Approved,
		Corrected:         s.Corrected,
		Excluded:          s.Excluded,
		AlreadyOnExternal: s.AlreadyOnExternal,
		Uploaded:          s.Uploaded,
		Remaining:         s.Remaining,
	}
}

// FromPosition converts a priority-order position.
func FromPosition(p selector.Position) Position {
	return Position{Index: p.Index, Total: p.Total, Prev: p.Prev, Next: p.Next}
}

// FromNavigation combines history navigation with the priority position.
func FromNavigation(nav selector.Navigation, pos selector.Position) Navigation {
	return Navigation{
		Position:       FromPosition(pos),
		HistoryIndex:   nav.CurrentIndex,
		HistoryLength:  nav.HistoryLength,
		CanGoBack:      nav.CanGoBack,
		CanGoForward:   nav.CanGoForward,
		BackTarget:     nav.BackTarget,
		ForwardTarget:  nav.ForwardTarget,
		NextUnreviewed: nav.NextUnreviewed,
		NextMode:       nav.NextMode,
		AllResolved:    nav.AllResolved,
	}
}

// FromExistingObservations converts locally recorded observations for a code.
func FromExistingObservations(existing []review.ExistingObservation, urlFor URLFunc) []LocalObservation {
	out := make([]LocalObservation, 0, len(existing))
	for _, e := range existing {
		obs := LocalObservation{
			ObservationID: e.ObservationID,
			Status:        string(e.Status),
			Keys:          slices.Clone(e.Keys),
		}
		if urlFor != nil {
			obs.ObservationURL = urlFor(e.ObservationID)
		}
		out = append(out, obs)
	}
	return out
}

// FromLocations converts catalog location matches, attaching foray dates
// when c knows them.
func FromLocations(c *catalog.Catalog, locations []catalog.Location) []LocationResult {
	out := make([]LocationResult, 0, len(locations))
	for _, loc := range locations {
		result := LocationResult{ID: loc.ID, Name: loc.Name, Center: fromCoordinates(loc.Center())}
		if c != nil {
			if date, ok := c.ForayDate(loc.Name); ok {
				result.ForayDate = date
			}
		}
		out = append(out, result)
	}
	return out
}

// FromNames converts catalog name matches.
func FromNames(names []catalog.Name) []NameResult {
	out := make([]NameResult, 0, len(names))
	for _, name := range names {
		out = append(out, NameResult{ID: name.ID, Name: name.TextName, Author: name.Author})
	}
	return out
}

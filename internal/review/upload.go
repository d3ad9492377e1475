package review

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"nemfreview/internal/logging"
	"nemfreview/internal/records"
	"nemfreview/internal/reconcile"
	"nemfreview/internal/services"
	"nemfreview/internal/services/mushroomobserver"
)

const fieldSlipNotePrefix = "Field slip: "

// uploadOutcome is what the external mutation sequence produced.
type uploadOutcome struct {
	observationID    int64
	images           []records.UploadResult
	fieldSlipCreated bool
	warnings         []string
}

func (s *Service) upload(ctx context.Context, record *records.Record, req SubmitRequest, fields records.Fields) (SubmitResult, error) {
	client, err := s.externalFor(req.Holder)
	if err != nil {
		return SubmitResult{}, err
	}
	keys, err := s.uploadKeys(ctx, record.Key)
	if err != nil {
		return SubmitResult{}, err
	}
	if err := s.checkImages(keys); err != nil {
		return SubmitResult{}, err
	}

	// Reviewed fields land on the whole group before anything external runs.
	if _, err := s.links.Propagate(ctx, records.GroupWrite{
		Source: record.Key,
		Fields: fields,
		Holder: req.Holder,
	}); err != nil {
		return SubmitResult{}, storeError("submit", err)
	}

	var decision *reconcile.Decision
	if fields.FieldCode != "" {
		d, halt, err := s.reconcileUpload(ctx, record, req, fields)
		if err != nil {
			return SubmitResult{}, err
		}
		if halt != nil {
			return *halt, nil
		}
		decision = &d
	}

	outcome, err := s.runUpload(ctx, client, req, fields, keys, decision)
	if err != nil {
		// The slip may have been created or taken upstream mid-sequence.
		s.lookup.InvalidateFieldSlip(fields.FieldCode)
		return SubmitResult{}, err
	}

	status := uploadStatus(record, fields)
	updated, err := s.store.RecordUploads(ctx, records.UploadWrite{
		Source:        record.Key,
		Holder:        req.Holder,
		Status:        status,
		ObservationID: outcome.observationID,
		Images:        outcome.images,
	})
	if err != nil {
		return SubmitResult{}, services.Wrap(
			services.ErrTransient,
			"review",
			"record upload",
			fmt.Sprintf("observation %d was created upstream but not recorded locally", outcome.observationID),
			err,
		)
	}
	s.releaseGroup(req.Holder, append([]string{record.Key}, updated...))
	s.lookup.InvalidateFieldSlip(fields.FieldCode)
	s.lookup.InvalidateObservation(outcome.observationID)

	return SubmitResult{
		Kind:             ResultOK,
		Key:              record.Key,
		Status:           status,
		Updated:          updated,
		ObservationID:    outcome.observationID,
		ObservationURL:   client.ObservationURL(outcome.observationID),
		Images:           outcome.images,
		Reconciliation:   decision,
		FieldSlipCreated: outcome.fieldSlipCreated,
		Warnings:         outcome.warnings,
	}, nil
}

// reconcileUpload decides what to do with the field slip. A non-nil halt
// result means the upload stops here without error.
func (s *Service) reconcileUpload(ctx context.Context, record *records.Record, req SubmitRequest, fields records.Fields) (reconcile.Decision, *SubmitResult, error) {
	if s.reconciler == nil {
		return reconcile.Decision{}, nil, services.Wrap(services.ErrConfiguration, "review", "reconcile", "external lookup not configured", nil)
	}
	target := reconcile.CreateNew
	if req.Mode == UploadAddToExisting {
		target = req.ObservationID
	}
	// A decision that gates external mutations is made on a fresh linkage
	// lookup; the cache only serves advisory reads.
	s.lookup.InvalidateFieldSlip(fields.FieldCode)
	attempt := reconcile.NewAttempt()
	decision, err := s.reconciler.Run(ctx, attempt, fields.FieldCode, target, reconcile.Candidate{
		Name:         fields.Name.Name,
		Date:         fields.Date,
		Coordinates:  fields.Coordinates,
		LocationName: fields.Location.Name,
	})
	if err != nil {
		return reconcile.Decision{}, nil, err
	}

	if decision.RequiresConfirmation() {
		switch req.Decision {
		case ConfirmNone:
			return decision, &SubmitResult{
				Kind:           ResultReconciliationRequired,
				Key:            record.Key,
				Status:         record.Review.Status,
				Reconciliation: &decision,
			}, nil
		case ConfirmCancel:
			if err := attempt.Resolve(false); err != nil {
				return reconcile.Decision{}, nil, err
			}
			return decision, &SubmitResult{
				Kind:           ResultCancelled,
				Key:            record.Key,
				Status:         record.Review.Status,
				Reconciliation: &decision,
			}, nil
		}
	}
	if err := attempt.Resolve(true); err != nil {
		return reconcile.Decision{}, nil, err
	}
	return decision, nil, nil
}

// uploadKeys returns the source followed by its unresolved siblings.
func (s *Service) uploadKeys(ctx context.Context, source string) ([]string, error) {
	group := s.links.GroupOf(source)
	found, err := s.store.GetMany(ctx, group)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "review", "upload", "load group", err)
	}
	keys := []string{source}
	var siblings []string
	for _, key := range group {
		if key == source {
			continue
		}
		if record, ok := found[key]; ok && !record.Resolved() {
			siblings = append(siblings, key)
		}
	}
	slices.Sort(siblings)
	return append(keys, siblings...), nil
}

func (s *Service) imagePath(key string) string {
	return filepath.Join(s.cfg.Paths.ImagesDir, filepath.FromSlash(key))
}

func (s *Service) checkImages(keys []string) error {
	for _, key := range keys {
		info, err := os.Stat(s.imagePath(key))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return services.Wrap(services.ErrValidation, "review", "upload", fmt.Sprintf("image file for %q is missing", key), nil)
		case err != nil:
			return services.Wrap(services.ErrTransient, "review", "upload", "stat image", err)
		case info.IsDir():
			return services.Wrap(services.ErrValidation, "review", "upload", fmt.Sprintf("image path for %q is a directory", key), nil)
		}
	}
	return nil
}

func (s *Service) copyrightHolder(holder string) string {
	if configured := strings.TrimSpace(s.cfg.MushroomObserver.CopyrightHolder); configured != "" {
		return configured
	}
	return holder
}

func observationNotes(code, notes string) string {
	notes = strings.TrimSpace(notes)
	if code == "" {
		return notes
	}
	if notes == "" {
		return fieldSlipNotePrefix + code
	}
	return fieldSlipNotePrefix + code + "\n\n" + notes
}

func (s *Service) runUpload(ctx context.Context, client External, req SubmitRequest, fields records.Fields, keys []string, decision *reconcile.Decision) (uploadOutcome, error) {
	var out uploadOutcome
	imageNotes := ""
	if fields.FieldCode != "" {
		imageNotes = fieldSlipNotePrefix + fields.FieldCode
	}
	uploadOne := func(key string) (int64, error) {
		return client.UploadImage(ctx, mushroomobserver.ImageUpload{
			Path:            s.imagePath(key),
			OriginalName:    filepath.Base(key),
			CopyrightHolder: s.copyrightHolder(req.Holder),
			Notes:           imageNotes,
		})
	}

	attachRest := func(rest []string) error {
		for _, key := range rest {
			imageID, err := uploadOne(key)
			if err != nil {
				return services.ExternalStep(fmt.Sprintf("upload image %s for observation %d", key, out.observationID), err)
			}
			if err := client.AttachImage(ctx, out.observationID, imageID); err != nil {
				return services.ExternalStep(fmt.Sprintf("attach image %d to observation %d", imageID, out.observationID), err)
			}
			out.images = append(out.images, records.UploadResult{Key: key, ImageID: imageID})
		}
		return nil
	}

	switch req.Mode {
	case UploadAddToExisting:
		exists, err := client.VerifyObservation(ctx, req.ObservationID)
		if err != nil {
			return uploadOutcome{}, services.ExternalStep("verify observation", err)
		}
		if !exists {
			return uploadOutcome{}, services.Wrap(services.ErrNotFound, "review", "upload", fmt.Sprintf("observation %d", req.ObservationID), nil)
		}
		out.observationID = req.ObservationID
		if err := attachRest(keys); err != nil {
			return uploadOutcome{}, err
		}
		if fields.FieldCode != "" {
			if err := client.AppendObservationNotes(ctx, out.observationID, fieldSlipNotePrefix+fields.FieldCode); err != nil {
				return uploadOutcome{}, services.ExternalStep(fmt.Sprintf("append notes to observation %d", out.observationID), err)
			}
		}
	default:
		sourceImage, err := uploadOne(keys[0])
		if err != nil {
			return uploadOutcome{}, services.ExternalStep("upload image "+keys[0], err)
		}
		out.observationID, err = client.CreateObservation(ctx, mushroomobserver.NewObservation{
			Date:         fields.Date,
			LocationID:   fields.Location.ID,
			LocationName: fields.Location.Name,
			Coordinates:  fields.Coordinates,
			NameID:       fields.Name.ID,
			Notes:        observationNotes(fields.FieldCode, fields.Notes),
			ImageIDs:     []int64{sourceImage},
		})
		if err != nil {
			return uploadOutcome{}, services.ExternalStep(fmt.Sprintf("create observation with image %d", sourceImage), err)
		}
		out.images = append(out.images, records.UploadResult{Key: keys[0], ImageID: sourceImage})
		if err := attachRest(keys[1:]); err != nil {
			return uploadOutcome{}, err
		}
	}

	projectID := s.cfg.MushroomObserver.ProjectID
	if decision != nil && decision.CreatesFieldSlip() {
		if err := client.CreateFieldSlip(ctx, fields.FieldCode, out.observationID, projectID); err != nil {
			return uploadOutcome{}, services.ExternalStep(
				fmt.Sprintf("create field slip %s for observation %d", fields.FieldCode, out.observationID), err)
		}
		out.fieldSlipCreated = true
	}
	if projectID > 0 {
		if err := client.AddObservationToProject(ctx, out.observationID, projectID); err != nil {
			s.logger.Warn("project assignment failed",
				logging.Args(
					logging.Int64("observation_id", out.observationID),
					logging.Int64("project_id", projectID),
					logging.Error(err),
				)...,
			)
			out.warnings = append(out.warnings, fmt.Sprintf("could not add observation %d to project %d", out.observationID, projectID))
		}
	}
	return out, nil
}

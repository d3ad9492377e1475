package records

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"
)

// SiblingStatus returns the status a linked sibling receives when source
// status is propagated. Siblings were not individually corrected, so a
// corrected source lands on siblings as approved.
func SiblingStatus(status Status) Status {
	if status == StatusCorrected {
		return StatusApproved
	}
	return status
}

// PropagatedReviewer formats the reviewer recorded on a sibling.
func PropagatedReviewer(holder, source string) string {
	return holder + ":propagated_from:" + source
}

// GroupWrite describes review fields written across one link group.
type GroupWrite struct {
	Source  string
	Members []string
	Fields  Fields
	// Status is written to the source and, via SiblingStatus, to siblings.
	// An empty Status writes fields only and leaves status and reviewer untouched.
	Status Status
	Holder string
	// ObservationID records an existing external observation on every
	// written member. Zero leaves the stored value alone.
	ObservationID int64
}

// GroupResult lists the keys a group write touched.
type GroupResult struct {
	Updated []string
	Skipped []string
}

type resolution struct {
	status        Status
	observationID int64
}

func (r resolution) resolved() bool {
	return IsResolvedStatus(r.status) || r.observationID > 0
}

func loadResolutions(ctx context.Context, tx *sql.Tx, keys []string) (map[string]resolution, error) {
	args := make([]any, len(keys))
	for i, key := range keys {
		args[i] = key
	}
	rows, err := tx.QueryContext(
		ctx,
		"SELECT record_key, status, observation_id FROM records WHERE record_key IN ("+makePlaceholders(len(keys))+")",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("load statuses: %w", err)
	}
	defer rows.Close()
	result := make(map[string]resolution, len(keys))
	for rows.Next() {
		var (
			key    string
			status string
			obsID  sql.NullInt64
		)
		if err := rows.Scan(&key, &status, &obsID); err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		result[key] = resolution{status: Status(status), observationID: obsID.Int64}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate statuses: %w", err)
	}
	return result, nil
}

// groupKeys returns source followed by the other members sorted and de-duplicated.
func groupKeys(source string, members []string) []string {
	others := make([]string, 0, len(members))
	for _, member := range members {
		if member != "" && member != source {
			others = append(others, member)
		}
	}
	slices.Sort(others)
	return append([]string{source}, slices.Compact(others)...)
}

// ApplyGroupReview writes fields onto the source and every unresolved member
// in a single transaction. Resolution is checked inside the transaction:
// a resolved source fails with ErrResolved and resolved members are skipped.
func (s *Store) ApplyGroupReview(ctx context.Context, w GroupWrite) (GroupResult, error) {
	ctx = ensureContext(ctx)
	keys := groupKeys(w.Source, w.Members)
	var result GroupResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result = GroupResult{}
		states, err := loadResolutions(ctx, tx, keys)
		if err != nil {
			return err
		}
		state, ok := states[w.Source]
		if !ok {
			return fmt.Errorf("%w: %s", ErrRecordNotFound, w.Source)
		}
		if state.resolved() {
			return fmt.Errorf("%w: %s", ErrResolved, w.Source)
		}

		now := s.now()
		for _, key := range keys {
			state, ok := states[key]
			if !ok || state.resolved() {
				result.Skipped = append(result.Skipped, key)
				continue
			}
			if err := writeReview(ctx, tx, key, w, now); err != nil {
				return fmt.Errorf("write review %s: %w", key, err)
			}
			result.Updated = append(result.Updated, key)
		}
		return nil
	})
	if err != nil {
		return GroupResult{}, err
	}
	return result, nil
}

func writeReview(ctx context.Context, tx *sql.Tx, key string, w GroupWrite, now time.Time) error {
	f := w.Fields
	timestamp := now.Format(time.RFC3339Nano)
	if w.Status == "" {
		_, err := tx.ExecContext(
			ctx,
			`UPDATE records
             SET field_code = ?, review_date = ?, location_id = ?, location_name = ?,
                 latitude = ?, longitude = ?, name_id = ?, name_text = ?, notes = ?, updated_at = ?
             WHERE record_key = ?`,
			nullableString(f.FieldCode), nullableString(f.Date),
			nullableInt(f.Location.ID), nullableString(f.Location.Name),
			nullableLatitude(f.Coordinates), nullableLongitude(f.Coordinates),
			nullableInt(f.Name.ID), nullableString(f.Name.Name),
			nullableString(f.Notes), timestamp, key,
		)
		return err
	}

	status := w.Status
	reviewer := w.Holder
	var propagatedFrom string
	if key != w.Source {
		status = SiblingStatus(w.Status)
		reviewer = PropagatedReviewer(w.Holder, w.Source)
		propagatedFrom = w.Source
	}
	_, err := tx.ExecContext(
		ctx,
		`UPDATE records
         SET field_code = ?, review_date = ?, location_id = ?, location_name = ?,
             latitude = ?, longitude = ?, name_id = ?, name_text = ?, notes = ?,
             observation_id = COALESCE(?, observation_id),
             status = ?, reviewed_by = ?, reviewed_at = ?, propagated_from = ?, updated_at = ?
         WHERE record_key = ?`,
		nullableString(f.FieldCode), nullableString(f.Date),
		nullableInt(f.Location.ID), nullableString(f.Location.Name),
		nullableLatitude(f.Coordinates), nullableLongitude(f.Coordinates),
		nullableInt(f.Name.ID), nullableString(f.Name.Name),
		nullableString(f.Notes),
		nullableInt(w.ObservationID),
		status, nullableString(reviewer), timestamp, nullableString(propagatedFrom), timestamp, key,
	)
	return err
}

// UploadResult is the external outcome of one uploaded record.
type UploadResult struct {
	Key     string
	ImageID int64
}

// UploadWrite records a completed upload for a link group.
type UploadWrite struct {
	Source        string
	Holder        string
	Status        Status
	ObservationID int64
	Images        []UploadResult
}

// RecordUploads stores the observation and image ids for every uploaded
// member in one transaction. Unreviewed members also receive Status
// (siblings via SiblingStatus). Members resolved meanwhile are skipped.
func (s *Store) RecordUploads(ctx context.Context, w UploadWrite) ([]string, error) {
	ctx = ensureContext(ctx)
	if w.ObservationID <= 0 {
		return nil, fmt.Errorf("record uploads: observation id is required")
	}
	status := w.Status
	if status == "" {
		status = StatusApproved
	}
	keys := make([]string, 0, len(w.Images))
	images := make(map[string]int64, len(w.Images))
	for _, image := range w.Images {
		keys = append(keys, image.Key)
		images[image.Key] = image.ImageID
	}
	keys = groupKeys(w.Source, keys)

	var updated []string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		updated = nil
		states, err := loadResolutions(ctx, tx, keys)
		if err != nil {
			return err
		}
		now := s.now()
		uploadedAt := now.Format(time.RFC3339Nano)
		for _, key := range keys {
			state, ok := states[key]
			if !ok || state.resolved() {
				continue
			}
			imageID, uploaded := images[key]
			if !uploaded {
				continue
			}
			memberStatus := status
			reviewer := w.Holder
			var propagatedFrom string
			if key != w.Source {
				memberStatus = SiblingStatus(status)
				reviewer = PropagatedReviewer(w.Holder, w.Source)
				propagatedFrom = w.Source
			}
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE records
                 SET observation_id = ?, image_id = ?, uploaded_at = ?, uploaded_by = ?,
                     status = ?, reviewed_by = ?, reviewed_at = ?, propagated_from = ?, updated_at = ?
                 WHERE record_key = ?`,
				w.ObservationID, nullableInt(imageID), uploadedAt, nullableString(w.Holder),
				memberStatus, nullableString(reviewer), uploadedAt, nullableString(propagatedFrom), uploadedAt,
				key,
			); err != nil {
				return fmt.Errorf("record upload %s: %w", key, err)
			}
			updated = append(updated, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetLinkGroups persists link-group membership for the given keys in one
// transaction. An empty group id clears membership.
func (s *Store) SetLinkGroups(ctx context.Context, groups map[string]string) error {
	if len(groups) == 0 {
		return nil
	}
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	ctx = ensureContext(ctx)
	return s.withTx(ctx, func(tx *sql.Tx) error {
		timestamp := s.now().Format(time.RFC3339Nano)
		for _, key := range keys {
			res, err := tx.ExecContext(
				ctx,
				"UPDATE records SET link_group = ?, updated_at = ? WHERE record_key = ?",
				nullableString(groups[key]), timestamp, key,
			)
			if err != nil {
				return fmt.Errorf("set link group %s: %w", key, err)
			}
			if affected, err := res.RowsAffected(); err == nil && affected == 0 {
				return fmt.Errorf("%w: %s", ErrRecordNotFound, key)
			}
		}
		return nil
	})
}

// LinkGroups returns the persisted link-group id of every grouped record.
func (s *Store) LinkGroups(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		"SELECT record_key, link_group FROM records WHERE link_group IS NOT NULL AND link_group <> '' ORDER BY record_key",
	)
	if err != nil {
		return nil, fmt.Errorf("list link groups: %w", err)
	}
	defer rows.Close()
	groups := make(map[string]string)
	for rows.Next() {
		var key, group string
		if err := rows.Scan(&key, &group); err != nil {
			return nil, fmt.Errorf("scan link group: %w", err)
		}
		groups[key] = group
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate link groups: %w", err)
	}
	return groups, nil
}

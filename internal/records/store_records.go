package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ListOptions narrows List results. Zero values match everything.
type ListOptions struct {
	Statuses       []Status
	UnresolvedOnly bool
	FieldCode      string
	Limit          int
}

// Get returns the record stored under key, or nil when absent.
func (s *Store) Get(ctx context.Context, key string) (*Record, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+recordColumns+" FROM records WHERE record_key = ?", key)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return record, nil
}

// GetMany returns the stored records for keys, keyed by record key. Missing keys are omitted.
func (s *Store) GetMany(ctx context.Context, keys []string) (map[string]*Record, error) {
	result := make(map[string]*Record, len(keys))
	if len(keys) == 0 {
		return result, nil
	}
	args := make([]any, len(keys))
	for i, key := range keys {
		args[i] = key
	}
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		"SELECT "+recordColumns+" FROM records WHERE record_key IN ("+makePlaceholders(len(keys))+")",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("get records: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		result[record.Key] = record
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return result, nil
}

// List returns records ordered by key.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Record, error) {
	var (
		clauses []string
		args    []any
	)
	if len(opts.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(opts.Statuses))+")")
		for _, status := range opts.Statuses {
			args = append(args, status)
		}
	}
	if opts.UnresolvedOnly {
		clauses = append(clauses, "status = ? AND (observation_id IS NULL OR observation_id = 0)")
		args = append(args, StatusUnreviewed)
	}
	if code := strings.TrimSpace(opts.FieldCode); code != "" {
		clauses = append(clauses, "field_code = ?")
		args = append(args, code)
	}
	query := "SELECT " + recordColumns + " FROM records"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY record_key"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// Keys returns every stored record key in ascending order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), "SELECT record_key FROM records ORDER BY record_key")
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	return keys, nil
}

// Missing returns the subset of keys that are not stored, sorted.
func (s *Store) Missing(ctx context.Context, keys ...string) ([]string, error) {
	found, err := s.GetMany(ctx, keys)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, key := range keys {
		if _, ok := found[key]; !ok {
			missing = append(missing, key)
		}
	}
	slices.Sort(missing)
	return slices.Compact(missing), nil
}

// Put inserts or fully replaces records in one transaction. Creation
// timestamps of existing rows are preserved.
func (s *Store) Put(ctx context.Context, records ...*Record) error {
	if len(records) == 0 {
		return nil
	}
	now := s.now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, record := range records {
			if record == nil || strings.TrimSpace(record.Key) == "" {
				return errors.New("put record: key is required")
			}
			if err := putRecord(ctx, tx, record, now); err != nil {
				return fmt.Errorf("put record %s: %w", record.Key, err)
			}
		}
		return nil
	})
}

func putRecord(ctx context.Context, tx *sql.Tx, record *Record, now time.Time) error {
	extracted, err := json.Marshal(record.Extracted)
	if err != nil {
		return fmt.Errorf("marshal extracted: %w", err)
	}
	status := record.Review.Status
	if status == "" {
		status = StatusUnreviewed
	}
	tier := record.Priority.LocationTier
	if tier == 0 {
		tier = DefaultLocationTier
	}
	created := record.CreatedAt
	if created.IsZero() {
		created = now
	}
	timestamp := now.Format(time.RFC3339Nano)

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO records (`+recordColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(record_key) DO UPDATE SET
             extracted_json = excluded.extracted_json,
             field_code = excluded.field_code,
             review_date = excluded.review_date,
             location_id = excluded.location_id,
             location_name = excluded.location_name,
             latitude = excluded.latitude,
             longitude = excluded.longitude,
             name_id = excluded.name_id,
             name_text = excluded.name_text,
             notes = excluded.notes,
             status = excluded.status,
             reviewed_by = excluded.reviewed_by,
             reviewed_at = excluded.reviewed_at,
             propagated_from = excluded.propagated_from,
             priority_class = excluded.priority_class,
             location_priority = excluded.location_priority,
             issue_flags = excluded.issue_flags,
             link_group = excluded.link_group,
             observation_id = excluded.observation_id,
             image_id = excluded.image_id,
             uploaded_at = excluded.uploaded_at,
             uploaded_by = excluded.uploaded_by,
             updated_at = excluded.updated_at`,
		record.Key,
		string(extracted),
		nullableString(record.Review.FieldCode),
		nullableString(record.Review.Date),
		nullableInt(record.Review.Location.ID),
		nullableString(record.Review.Location.Name),
		nullableLatitude(record.Review.Coordinates),
		nullableLongitude(record.Review.Coordinates),
		nullableInt(record.Review.Name.ID),
		nullableString(record.Review.Name.Name),
		nullableString(record.Review.Notes),
		status,
		nullableString(record.Review.ReviewedBy),
		nullableTime(record.Review.ReviewedAt),
		nullableString(record.Review.PropagatedFrom),
		record.Priority.Class,
		tier,
		joinIssues(record.Priority.Issues),
		nullableString(record.LinkGroup),
		nullableInt(record.Outcome.ObservationID),
		nullableInt(record.Outcome.ImageID),
		nullableTime(record.Outcome.UploadedAt),
		nullableString(record.Outcome.UploadedBy),
		created.UTC().Format(time.RFC3339Nano),
		timestamp,
	)
	return err
}

// ResetReview clears the review status, reviewer and outcome of key so it
// re-enters the backlog. This is the operator override for resolved records.
func (s *Store) ResetReview(ctx context.Context, key string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE records
         SET status = ?, reviewed_by = NULL, reviewed_at = NULL, propagated_from = NULL,
             observation_id = NULL, image_id = NULL, uploaded_at = NULL, uploaded_by = NULL,
             updated_at = ?
         WHERE record_key = ?`,
		StatusUnreviewed,
		s.now().Format(time.RFC3339Nano),
		key,
	)
	if err != nil {
		return false, fmt.Errorf("reset review: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reset review rows: %w", err)
	}
	return affected > 0, nil
}

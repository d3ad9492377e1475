package records

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const recordColumns = "record_key, extracted_json, field_code, review_date, location_id, location_name, latitude, longitude, name_id, name_text, notes, status, reviewed_by, reviewed_at, propagated_from, priority_class, location_priority, issue_flags, link_group, observation_id, image_id, uploaded_at, uploaded_by, created_at, updated_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		key            string
		extractedRaw   sql.NullString
		fieldCode      sql.NullString
		reviewDate     sql.NullString
		locationID     sql.NullInt64
		locationName   sql.NullString
		latitude       sql.NullFloat64
		longitude      sql.NullFloat64
		nameID         sql.NullInt64
		nameText       sql.NullString
		notes          sql.NullString
		statusStr      string
		reviewedBy     sql.NullString
		reviewedAtRaw  sql.NullString
		propagatedFrom sql.NullString
		priorityClass  int
		locationTier   int
		issueFlags     sql.NullString
		linkGroup      sql.NullString
		observationID  sql.NullInt64
		imageID        sql.NullInt64
		uploadedAtRaw  sql.NullString
		uploadedBy     sql.NullString
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&key,
		&extractedRaw,
		&fieldCode,
		&reviewDate,
		&locationID,
		&locationName,
		&latitude,
		&longitude,
		&nameID,
		&nameText,
		&notes,
		&statusStr,
		&reviewedBy,
		&reviewedAtRaw,
		&propagatedFrom,
		&priorityClass,
		&locationTier,
		&issueFlags,
		&linkGroup,
		&observationID,
		&imageID,
		&uploadedAtRaw,
		&uploadedBy,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	record := &Record{
		Key: key,
		Review: Review{
			FieldCode:      fieldCode.String,
			Date:           reviewDate.String,
			Location:       CatalogRef{ID: locationID.Int64, Name: locationName.String},
			Name:           CatalogRef{ID: nameID.Int64, Name: nameText.String},
			Notes:          notes.String,
			Status:         Status(statusStr),
			ReviewedBy:     reviewedBy.String,
			PropagatedFrom: propagatedFrom.String,
		},
		Priority: Priority{
			Class:        priorityClass,
			LocationTier: locationTier,
			Issues:       splitIssues(issueFlags.String),
		},
		LinkGroup: linkGroup.String,
		Outcome: Outcome{
			ObservationID: observationID.Int64,
			ImageID:       imageID.Int64,
			UploadedBy:    uploadedBy.String,
		},
	}
	if extractedRaw.Valid && extractedRaw.String != "" {
		if err := json.Unmarshal([]byte(extractedRaw.String), &record.Extracted); err != nil {
			return nil, err
		}
	}
	if latitude.Valid && longitude.Valid {
		record.Review.Coordinates = &Coordinates{Latitude: latitude.Float64, Longitude: longitude.Float64}
	}
	if reviewedAtRaw.Valid {
		if reviewed, err := parseTimeString(reviewedAtRaw.String); err == nil {
			record.Review.ReviewedAt = &reviewed
		}
	}
	if uploadedAtRaw.Valid {
		if uploaded, err := parseTimeString(uploadedAtRaw.String); err == nil {
			record.Outcome.UploadedAt = &uploaded
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		record.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		record.UpdatedAt = updated
	}
	return record, nil
}

func joinIssues(issues []IssueFlag) any {
	if len(issues) == 0 {
		return nil
	}
	parts := make([]string, 0, len(issues))
	for _, issue := range issues {
		parts = append(parts, string(issue))
	}
	return strings.Join(parts, ",")
}

func splitIssues(value string) []IssueFlag {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	issues := make([]IssueFlag, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			issues = append(issues, IssueFlag(part))
		}
	}
	return issues
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func nullableLatitude(c *Coordinates) any {
	if c == nil {
		return nil
	}
	return c.Latitude
}

func nullableLongitude(c *Coordinates) any {
	if c == nil {
		return nil
	}
	return c.Longitude
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

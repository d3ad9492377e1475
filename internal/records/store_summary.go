package records

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// Summary counts records by review state.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT
             COUNT(1),
             COALESCE(SUM(CASE WHEN status <> ? OR COALESCE(observation_id, 0) > 0 THEN 1 ELSE 0 END), 0),
             COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
             COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
             COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
             COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
             COALESCE(SUM(CASE WHEN status <> ? AND COALESCE(observation_id, 0) > 0 THEN 1 ELSE 0 END), 0)
         FROM records`,
		StatusUnreviewed,
		StatusApproved,
		StatusCorrected,
		StatusExcluded,
		StatusAlreadyOnExternal,
		StatusAlreadyOnExternal,
	)
	var summary Summary
	if err := row.Scan(
		&summary.Total,
		&summary.Reviewed,
		&summary.Approved,
		&summary.Corrected,
		&summary.Excluded,
		&summary.AlreadyOnExternal,
		&summary.Uploaded,
	); err != nil {
		return Summary{}, fmt.Errorf("record summary: %w", err)
	}
	summary.Remaining = summary.Total - summary.Reviewed
	return summary, nil
}

// CheckHealth returns diagnostic information about the record database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return health, errors.New("record database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat record database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("record database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.QueryRowContext(connCtx, "SELECT version FROM schema_version LIMIT 1").Scan(&health.SchemaVersion); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("read schema version: %w", err)
	}

	var integrity string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = integrity == "ok"
	if !health.IntegrityCheck {
		health.Error = integrity
	}

	if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(1) FROM records").Scan(&health.TotalRecords); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count records: %w", err)
	}
	return health, nil
}

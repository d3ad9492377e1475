package testsupport

import (
	"context"
	"testing"

	"nemfreview/internal/config"
	"nemfreview/internal/records"
)

// MustOpenStore opens a records.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *records.Store {
	t.Helper()

	store, err := records.Open(cfg)
	if err != nil {
		t.Fatalf("records.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRecord builds an unreviewed record with a complete extraction. The
// priority is classified without a tier table.
func NewRecord(key, fieldCode, name string) *records.Record {
	extracted := records.Extracted{
		FieldCode:     fieldCode,
		Date:          "2024-09-15",
		Location:      "Bear Brook State Park",
		LocationID:    1001,
		LocationMatch: "exact",
		Name:          name,
		NameID:        2002,
		NameMatch:     "exact",
	}
	return &records.Record{
		Key:       key,
		Extracted: extracted,
		Review:    records.Review{Status: records.StatusUnreviewed},
		Priority:  records.Classify(extracted, nil),
	}
}

// SeedRecords stores the given records and fails the test on error.
func SeedRecords(t testing.TB, store *records.Store, recs ...*records.Record) {
	t.Helper()

	if err := store.Put(context.Background(), recs...); err != nil {
		t.Fatalf("store.Put: %v", err)
	}
}

// MustGet loads key and fails the test when it is missing.
func MustGet(t testing.TB, store *records.Store, key string) *records.Record {
	t.Helper()

	record, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("store.Get(%s): %v", key, err)
	}
	if record == nil {
		t.Fatalf("store.Get(%s): record missing", key)
	}
	return record
}

package records_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"nemfreview/internal/records"
	"nemfreview/internal/testsupport"
)

func TestOpenCreatesDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if got, want := store.Path(), filepath.Join(cfg.Paths.DataDir, "review.db"); got != want {
		t.Fatalf("Path = %q, want %q", got, want)
	}
	health, err := store.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.DatabaseExists || !health.IntegrityCheck {
		t.Fatalf("unexpected health: %#v", health)
	}
	if health.SchemaVersion == 0 {
		t.Fatal("expected schema version to be recorded")
	}
}

func TestPutAndGetRoundTrip(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	record := testsupport.NewRecord("IMG_0001.jpg", "NEMF-00001", "Amanita muscaria")
	record.Extracted.LowConfidence = []string{"date"}
	record.Review.Coordinates = &records.Coordinates{Latitude: 44.0, Longitude: -71.0}
	record.LinkGroup = "group-1"
	testsupport.SeedRecords(t, store, record)

	got := testsupport.MustGet(t, store, "IMG_0001.jpg")
	if got.Extracted.FieldCode != "NEMF-00001" || got.Extracted.Name != "Amanita muscaria" {
		t.Fatalf("unexpected extracted data: %#v", got.Extracted)
	}
	if len(got.Extracted.LowConfidence) != 1 || got.Extracted.LowConfidence[0] != "date" {
		t.Fatalf("low confidence fields lost: %#v", got.Extracted.LowConfidence)
	}
	if got.Review.Status != records.StatusUnreviewed {
		t.Fatalf("status = %q", got.Review.Status)
	}
	if got.Review.Coordinates == nil || got.Review.Coordinates.Longitude != -71.0 {
		t.Fatalf("coordinates lost: %#v", got.Review.Coordinates)
	}
	if got.LinkGroup != "group-1" {
		t.Fatalf("link group = %q", got.LinkGroup)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}

	missing, err := store.Get(ctx, "nope.jpg")
	if err != nil {
		t.Fatalf("Get missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing key, got %#v", missing)
	}
}

func TestListFilters(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	a := testsupport.NewRecord("a.jpg", "NEMF-1", "Amanita muscaria")
	b := testsupport.NewRecord("b.jpg", "NEMF-1", "Amanita muscaria")
	b.Review.Status = records.StatusExcluded
	c := testsupport.NewRecord("c.jpg", "NEMF-2", "Boletus edulis")
	c.Outcome.ObservationID = 42
	testsupport.SeedRecords(t, store, a, b, c)

	cases := []struct {
		name string
		opts records.ListOptions
		want []string
	}{
		{"all", records.ListOptions{}, []string{"a.jpg", "b.jpg", "c.jpg"}},
		{"unresolved", records.ListOptions{UnresolvedOnly: true}, []string{"a.jpg"}},
		{"status", records.ListOptions{Statuses: []records.Status{records.StatusExcluded}}, []string{"b.jpg"}},
		{"field code", records.ListOptions{FieldCode: "NEMF-1"}, []string{"a.jpg", "b.jpg"}},
		{"limit", records.ListOptions{Limit: 2}, []string{"a.jpg", "b.jpg"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := store.List(ctx, tc.opts)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d records, want %d", len(got), len(tc.want))
			}
			for i, record := range got {
				if record.Key != tc.want[i] {
					t.Fatalf("record %d = %s, want %s", i, record.Key, tc.want[i])
				}
			}
		})
	}
}

func TestMissingReportsUnknownKeys(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.SeedRecords(t, store, testsupport.NewRecord("a.jpg", "NEMF-1", "x"))

	missing, err := store.Missing(context.Background(), "z.jpg", "a.jpg", "b.jpg", "z.jpg")
	if err != nil {
		t.Fatalf("Missing: %v", err)
	}
	if len(missing) != 2 || missing[0] != "b.jpg" || missing[1] != "z.jpg" {
		t.Fatalf("Missing = %v", missing)
	}
}

func TestApplyGroupReviewSkipsResolvedMembers(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	source := testsupport.NewRecord("a.jpg", "NEMF-1", "Amanita muscaria")
	sibling := testsupport.NewRecord("b.jpg", "", "")
	done := testsupport.NewRecord("c.jpg", "NEMF-9", "Boletus edulis")
	done.Review.Status = records.StatusExcluded
	done.Review.Notes = "keep me"
	testsupport.SeedRecords(t, store, source, sibling, done)

	result, err := store.ApplyGroupReview(ctx, records.GroupWrite{
		Source:  "a.jpg",
		Members: []string{"c.jpg", "b.jpg", "a.jpg"},
		Fields: records.Fields{
			FieldCode: "NEMF-1",
			Date:      "2024-09-15",
			Location:  records.CatalogRef{ID: 7, Name: "Bear Brook"},
			Name:      records.CatalogRef{ID: 8, Name: "Amanita muscaria"},
			Notes:     "under birch",
		},
		Status: records.StatusCorrected,
		Holder: "alice",
	})
	if err != nil {
		t.Fatalf("ApplyGroupReview: %v", err)
	}
	if len(result.Updated) != 2 || result.Updated[0] != "a.jpg" || result.Updated[1] != "b.jpg" {
		t.Fatalf("Updated = %v", result.Updated)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != "c.jpg" {
		t.Fatalf("Skipped = %v", result.Skipped)
	}

	gotSource := testsupport.MustGet(t, store, "a.jpg")
	if gotSource.Review.Status != records.StatusCorrected || gotSource.Review.ReviewedBy != "alice" {
		t.Fatalf("source review = %#v", gotSource.Review)
	}
	gotSibling := testsupport.MustGet(t, store, "b.jpg")
	if gotSibling.Review.Status != records.StatusApproved {
		t.Fatalf("sibling status = %q, want approved", gotSibling.Review.Status)
	}
	if gotSibling.Review.ReviewedBy != "alice:propagated_from:a.jpg" || gotSibling.Review.PropagatedFrom != "a.jpg" {
		t.Fatalf("sibling attribution = %#v", gotSibling.Review)
	}
	if gotSibling.Review.Notes != "under birch" || gotSibling.Review.Location.ID != 7 {
		t.Fatalf("sibling fields = %#v", gotSibling.Review)
	}
	gotDone := testsupport.MustGet(t, store, "c.jpg")
	if gotDone.Review.Notes != "keep me" || gotDone.Review.Status != records.StatusExcluded {
		t.Fatalf("resolved member was overwritten: %#v", gotDone.Review)
	}
}

func TestApplyGroupReviewRejectsResolvedSource(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	source := testsupport.NewRecord("a.jpg", "NEMF-1", "x")
	source.Outcome.ObservationID = 99
	testsupport.SeedRecords(t, store, source)

	_, err := store.ApplyGroupReview(context.Background(), records.GroupWrite{
		Source: "a.jpg",
		Fields: records.Fields{FieldCode: "NEMF-1"},
		Status: records.StatusApproved,
		Holder: "alice",
	})
	if !errors.Is(err, records.ErrResolved) {
		t.Fatalf("expected ErrResolved, got %v", err)
	}

	_, err = store.ApplyGroupReview(context.Background(), records.GroupWrite{Source: "missing.jpg", Holder: "alice"})
	if !errors.Is(err, records.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestApplyGroupReviewFieldsOnlyKeepsStatus(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	testsupport.SeedRecords(t, store, testsupport.NewRecord("a.jpg", "NEMF-1", "x"))

	if _, err := store.ApplyGroupReview(context.Background(), records.GroupWrite{
		Source: "a.jpg",
		Fields: records.Fields{FieldCode: "NEMF-2", Notes: "draft"},
		Holder: "alice",
	}); err != nil {
		t.Fatalf("ApplyGroupReview: %v", err)
	}
	got := testsupport.MustGet(t, store, "a.jpg")
	if got.Review.Status != records.StatusUnreviewed || got.Review.ReviewedBy != "" {
		t.Fatalf("fields-only write changed status: %#v", got.Review)
	}
	if got.Review.FieldCode != "NEMF-2" || got.Review.Notes != "draft" {
		t.Fatalf("fields not written: %#v", got.Review)
	}
}

func TestRecordUploadsMarksGroup(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	store.SetClock(func() time.Time { return time.Date(2024, 9, 20, 12, 0, 0, 0, time.UTC) })
	testsupport.SeedRecords(t, store,
		testsupport.NewRecord("a.jpg", "NEMF-1", "x"),
		testsupport.NewRecord("b.jpg", "", ""),
	)

	updated, err := store.RecordUploads(context.Background(), records.UploadWrite{
		Source:        "a.jpg",
		Holder:        "alice",
		Status:        records.StatusCorrected,
		ObservationID: 555,
		Images:        []records.UploadResult{{Key: "a.jpg", ImageID: 1}, {Key: "b.jpg", ImageID: 2}},
	})
	if err != nil {
		t.Fatalf("RecordUploads: %v", err)
	}
	if len(updated) != 2 {
		t.Fatalf("updated = %v", updated)
	}
	b := testsupport.MustGet(t, store, "b.jpg")
	if b.Outcome.ObservationID != 555 || b.Outcome.ImageID != 2 || b.Outcome.UploadedBy != "alice" {
		t.Fatalf("outcome = %#v", b.Outcome)
	}
	if b.Review.Status != records.StatusApproved || !b.Resolved() {
		t.Fatalf("sibling status = %q", b.Review.Status)
	}
	if b.Outcome.UploadedAt == nil || b.Outcome.UploadedAt.Day() != 20 {
		t.Fatalf("uploaded at = %v", b.Outcome.UploadedAt)
	}

	if _, err := store.RecordUploads(context.Background(), records.UploadWrite{Source: "a.jpg"}); err == nil {
		t.Fatal("expected error without observation id")
	}
}

func TestLinkGroupsPersist(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.SeedRecords(t, store,
		testsupport.NewRecord("a.jpg", "", ""),
		testsupport.NewRecord("b.jpg", "", ""),
		testsupport.NewRecord("c.jpg", "", ""),
	)

	if err := store.SetLinkGroups(ctx, map[string]string{"a.jpg": "g1", "b.jpg": "g1"}); err != nil {
		t.Fatalf("SetLinkGroups: %v", err)
	}
	groups, err := store.LinkGroups(ctx)
	if err != nil {
		t.Fatalf("LinkGroups: %v", err)
	}
	if len(groups) != 2 || groups["a.jpg"] != "g1" || groups["b.jpg"] != "g1" {
		t.Fatalf("groups = %v", groups)
	}

	if err := store.SetLinkGroups(ctx, map[string]string{"a.jpg": ""}); err != nil {
		t.Fatalf("clear link group: %v", err)
	}
	groups, err = store.LinkGroups(ctx)
	if err != nil {
		t.Fatalf("LinkGroups: %v", err)
	}
	if _, ok := groups["a.jpg"]; ok {
		t.Fatalf("expected a.jpg cleared, got %v", groups)
	}

	err = store.SetLinkGroups(ctx, map[string]string{"missing.jpg": "g1"})
	if !errors.Is(err, records.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestResetReviewReopensRecord(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	record := testsupport.NewRecord("a.jpg", "NEMF-1", "x")
	record.Review.Status = records.StatusApproved
	record.Review.ReviewedBy = "alice"
	record.Outcome.ObservationID = 12
	testsupport.SeedRecords(t, store, record)

	ok, err := store.ResetReview(ctx, "a.jpg")
	if err != nil || !ok {
		t.Fatalf("ResetReview = %v, %v", ok, err)
	}
	got := testsupport.MustGet(t, store, "a.jpg")
	if got.Resolved() || got.Review.ReviewedBy != "" || got.Outcome.ObservationID != 0 {
		t.Fatalf("record not reset: %#v", got)
	}

	ok, err = store.ResetReview(ctx, "missing.jpg")
	if err != nil || ok {
		t.Fatalf("ResetReview missing = %v, %v", ok, err)
	}
}

func TestSummaryCounts(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	approved := testsupport.NewRecord("a.jpg", "", "")
	approved.Review.Status = records.StatusApproved
	corrected := testsupport.NewRecord("b.jpg", "", "")
	corrected.Review.Status = records.StatusCorrected
	corrected.Outcome.ObservationID = 3
	onExternal := testsupport.NewRecord("c.jpg", "", "")
	onExternal.Review.Status = records.StatusAlreadyOnExternal
	testsupport.SeedRecords(t, store, approved, corrected, onExternal, testsupport.NewRecord("d.jpg", "", ""))

	summary, err := store.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	want := records.Summary{Total: 4, Reviewed: 3, Approved: 1, Corrected: 1, AlreadyOnExternal: 1, Uploaded: 1, Remaining: 1}
	if summary != want {
		t.Fatalf("Summary = %#v, want %#v", summary, want)
	}
}

func TestParseStatusAcceptsLegacyValues(t *testing.T) {
	cases := map[string]records.Status{
		"":              records.StatusUnreviewed,
		"already_on_mo": records.StatusAlreadyOnExternal,
		"discarded":     records.StatusExcluded,
		" Approved ":    records.StatusApproved,
	}
	for input, want := range cases {
		got, ok := records.ParseStatus(input)
		if !ok || got != want {
			t.Fatalf("ParseStatus(%q) = %q, %v", input, got, ok)
		}
	}
	if _, ok := records.ParseStatus("bogus"); ok {
		t.Fatal("expected bogus status to be rejected")
	}
}

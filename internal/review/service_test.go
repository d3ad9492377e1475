package review_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"nemfreview/internal/claims"
	"nemfreview/internal/config"
	"nemfreview/internal/records"
	"nemfreview/internal/reconcile"
	"nemfreview/internal/review"
	"nemfreview/internal/selector"
	"nemfreview/internal/services"
	"nemfreview/internal/services/mushroomobserver"
	"nemfreview/internal/testsupport"
)

type fakeLookup struct {
	mu           sync.Mutex
	slips        map[string][]int64
	observations map[int64]reconcile.Observation
	slipCalls    int
}

func (f *fakeLookup) FieldSlipByCode(_ context.Context, code string) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slipCalls++
	return slices.Clone(f.slips[code]), nil
}

func (f *fakeLookup) Observation(_ context.Context, id int64) (reconcile.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obs, ok := f.observations[id]
	if !ok {
		return reconcile.Observation{}, services.ErrNotFound
	}
	return obs, nil
}

type fakeExternal struct {
	mu           sync.Mutex
	nextImage    int64
	nextObs      int64
	existing     map[int64]bool
	calls        []string
	fieldSlipErr error
	projectErr   error
}

func newFakeExternal() *fakeExternal {
	return &fakeExternal{nextImage: 500, nextObs: 900, existing: map[int64]bool{}}
}

func (f *fakeExternal) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeExternal) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func (f *fakeExternal) VerifyObservation(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("verify:%d", id))
	return f.existing[id], nil
}

func (f *fakeExternal) UploadImage(_ context.Context, upload mushroomobserver.ImageUpload) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := os.Stat(upload.Path); err != nil {
		return 0, err
	}
	f.nextImage++
	f.record("upload:" + upload.OriginalName)
	return f.nextImage, nil
}

func (f *fakeExternal) CreateObservation(_ context.Context, obs mushroomobserver.NewObservation) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextObs++
	f.existing[f.nextObs] = true
	f.record(fmt.Sprintf("create_observation:%s:%v", obs.Date, obs.ImageIDs))
	return f.nextObs, nil
}

func (f *fakeExternal) AttachImage(_ context.Context, observationID, imageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("attach:%d->%d", imageID, observationID))
	return nil
}

func (f *fakeExternal) AppendObservationNotes(_ context.Context, observationID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("notes:%d:%s", observationID, text))
	return nil
}

func (f *fakeExternal) CreateFieldSlip(_ context.Context, code string, observationID, projectID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fieldSlipErr != nil {
		return f.fieldSlipErr
	}
	f.record(fmt.Sprintf("field_slip:%s:%d:%d", code, observationID, projectID))
	return nil
}

func (f *fakeExternal) AddObservationToProject(_ context.Context, observationID, projectID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.projectErr != nil {
		return f.projectErr
	}
	f.record(fmt.Sprintf("project:%d:%d", observationID, projectID))
	return nil
}

func (f *fakeExternal) ObservationURL(id int64) string {
	return fmt.Sprintf("https://example.test/%d", id)
}

type fixture struct {
	cfg      *config.Config
	store    *records.Store
	clock    *testsupport.FakeClock
	lookup   *fakeLookup
	external *fakeExternal
	svc      *review.Service
}

func newFixture(t *testing.T, recs []*records.Record, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedRecords(t, store, recs...)
	for _, record := range recs {
		testsupport.WriteFile(t, filepath.Join(cfg.Paths.ImagesDir, record.Key), 32)
	}
	clock := testsupport.NewFakeClock(time.Date(2024, 9, 16, 9, 0, 0, 0, time.UTC))
	lookup := &fakeLookup{slips: map[string][]int64{}, observations: map[int64]reconcile.Observation{}}
	external := newFakeExternal()
	svc, err := review.New(context.Background(), cfg, store,
		review.WithClaims(claims.NewManager(claims.WithClock(clock.Now), claims.WithLease(cfg.LeaseDuration()))),
		review.WithLookup(lookup),
		review.WithExternal(func(string) (review.External, error) { return external, nil }),
	)
	if err != nil {
		t.Fatalf("review.New: %v", err)
	}
	return &fixture{cfg: cfg, store: store, clock: clock, lookup: lookup, external: external, svc: svc}
}

func extractedFields(record *records.Record) records.Fields {
	ex := record.Extracted
	return records.Fields{
		FieldCode: ex.FieldCode,
		Date:      ex.Date,
		Location:  records.CatalogRef{ID: ex.LocationID, Name: ex.Location},
		Name:      records.CatalogRef{ID: ex.NameID, Name: ex.Name},
	}
}

func TestGetNextClaimsDistinctRecords(t *testing.T) {
	f := newFixture(t, []*records.Record{
		testsupport.NewRecord("a.jpg", "NEMF-1", "Amanita muscaria"),
		testsupport.NewRecord("b.jpg", "NEMF-2", "Amanita muscaria"),
	})
	ctx := context.Background()

	first, err := f.svc.GetNext(ctx, "alice", selector.Options{})
	if err != nil || first == nil {
		t.Fatalf("GetNext(alice): %v %v", first, err)
	}
	second, err := f.svc.GetNext(ctx, "bob", selector.Options{})
	if err != nil || second == nil {
		t.Fatalf("GetNext(bob): %v %v", second, err)
	}
	if first.Record.Key == second.Record.Key {
		t.Fatalf("both reviewers got %s", first.Record.Key)
	}
	if first.Claim.Holder != "alice" || second.Claim.Holder != "bob" {
		t.Fatalf("unexpected claims %+v %+v", first.Claim, second.Claim)
	}
	none, err := f.svc.GetNext(ctx, "carol", selector.Options{})
	if err != nil || none != nil {
		t.Fatalf("expected nothing for carol, got %v %v", none, err)
	}
	if _, err := f.svc.GetNext(ctx, " ", selector.Options{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for blank holder, got %v", err)
	}
}

func TestEndToEndReviewFlow(t *testing.T) {
	f := newFixture(t, []*records.Record{
		testsupport.NewRecord("a.jpg", "NEMF-1", "Amanita muscaria"),
		testsupport.NewRecord("b.jpg", "NEMF-2", "Boletus edulis"),
	})
	ctx := context.Background()

	mine, err := f.svc.GetNext(ctx, "alice", selector.Options{})
	if err != nil || mine == nil {
		t.Fatalf("GetNext(alice): %v %v", mine, err)
	}
	theirs, err := f.svc.GetNext(ctx, "bob", selector.Options{})
	if err != nil || theirs == nil {
		t.Fatalf("GetNext(bob): %v %v", theirs, err)
	}
	key := mine.Record.Key
	if theirs.Record.Key == key {
		t.Fatalf("both reviewers got %s", key)
	}

	result, err := f.svc.Submit(ctx, review.SubmitRequest{
		Key: key, Holder: "alice", Action: review.ActionApprove, Fields: extractedFields(mine.Record),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Kind != review.ResultOK || result.Status != records.StatusApproved {
		t.Fatalf("unexpected result %+v", result)
	}
	if err := f.svc.ReleaseClaim(ctx, key, "alice"); err != nil {
		t.Fatalf("ReleaseClaim after submit: %v", err)
	}
	claim, err := f.svc.AcquireClaim(ctx, key, "bob")
	if err != nil {
		t.Fatalf("AcquireClaim(bob): %v", err)
	}
	if claim.Holder != "bob" {
		t.Fatalf("unexpected claim %+v", claim)
	}
	if record := testsupport.MustGet(t, f.store, key); record.Review.Status != records.StatusApproved {
		t.Fatalf("submitted record status %s", record.Review.Status)
	}
}

func TestPeekNeverClaims(t *testing.T) {
	f := newFixture(t, []*records.Record{testsupport.NewRecord("a.jpg", "NEMF-1", "Amanita")})
	ctx := context.Background()

	view, err := f.svc.Peek(ctx, "a.jpg")
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if view.Claim.Held {
		t.Fatal("peek must not claim")
	}
	if _, err := f.svc.AcquireClaim(ctx, "a.jpg", "alice"); err != nil {
		t.Fatalf("AcquireClaim: %v", err)
	}
	view, _ = f.svc.Peek(ctx, "a.jpg")
	if !view.Claim.Held || view.Claim.Holder != "alice" {
		t.Fatalf("expected alice's claim, got %+v", view.Claim)
	}
	if _, err := f.svc.Peek(ctx, "missing.jpg"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.svc.AcquireClaim(ctx, "missing.jpg", "alice"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown claim key, got %v", err)
	}
}

func TestClaimLifecycle(t *testing.T) {
	f := newFixture(t, []*records.Record{testsupport.NewRecord("a.jpg", "NEMF-1", "Amanita")})
	ctx := context.Background()

	if _, err := f.svc.AcquireClaim(ctx, "a.jpg", "alice"); err != nil {
		t.Fatalf("AcquireClaim: %v", err)
	}
	if _, err := f.svc.AcquireClaim(ctx, "a.jpg", "bob"); !errors.Is(err, services.ErrClaimConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	f.clock.Advance(f.cfg.LeaseDuration() - time.Second)
	if _, err := f.svc.RenewClaim(ctx, "a.jpg", "alice"); err != nil {
		t.Fatalf("RenewClaim: %v", err)
	}
	f.clock.Advance(2 * time.Second)
	if _, err := f.svc.AcquireClaim(ctx, "a.jpg", "bob"); !errors.Is(err, services.ErrClaimConflict) {
		t.Fatalf("renewed claim should still block bob, got %v", err)
	}
	if err := f.svc.ReleaseClaim(ctx, "a.jpg", "alice"); err != nil {
		t.Fatalf("ReleaseClaim: %v", err)
	}
	if err := f.svc.ReleaseClaim(ctx, "a.jpg", "alice"); err != nil {
		t.Fatalf("second ReleaseClaim: %v", err)
	}
	if _, err := f.svc.AcquireClaim(ctx, "a.jpg", "bob"); err != nil {
		t.Fatalf("bob after release: %v", err)
	}
}

func TestLinkClaimsBothRecords(t *testing.T) {
	f := newFixture(t, []*records.Record{
		testsupport.NewRecord("a.jpg", "NEMF-1", "Amanita"),
		testsupport.NewRecord("b.jpg", "NEMF-1", "Amanita"),
		testsupport.NewRecord("c.jpg", "NEMF-1", "Amanita"),
	})
	ctx := context.Background()

	group, err := f.svc.Link(ctx, "alice", "a.jpg", "b.jpg")
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if !slices.Equal(group, []string{"a.jpg", "b.jpg"}) {
		t.Fatalf("unexpected group %v", group)
	}
	for _, key := range []string{"a.jpg", "b.jpg"} {
		if view, _ := f.svc.Peek(ctx, key); view.Claim.Holder != "alice" {
			t.Fatalf("%s not claimed by alice: %+v", key, view.Claim)
		}
	}

	if _, err := f.svc.AcquireClaim(ctx, "c.jpg", "bob"); err != nil {
		t.Fatalf("bob claim: %v", err)
	}
	if _, err := f.svc.Link(ctx, "carol", "b.jpg", "c.jpg"); !errors.Is(err, services.ErrClaimConflict) {
		t.Fatalf("expected conflict linking claimed records, got %v", err)
	}
	if _, err := f.svc.Link(ctx, "alice", "a.jpg", "nope.jpg"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := f.svc.Unlink(ctx, "alice", "b.jpg"); err != nil {
		t.Fatalf("Unlink: %v", err)
	}
	if got := f.svc.Group("a.jpg"); !slices.Equal(got, []string{"a.jpg"}) {
		t.Fatalf("expected a.jpg alone after unlink, got %v", got)
	}
}

func TestLinkReleasesSourceWhenTargetBusy(t *testing.T) {
	f := newFixture(t, []*records.Record{
		testsupport.NewRecord("a.jpg", "NEMF-1", "Amanita"),
		testsupport.NewRecord("b.jpg", "NEMF-1", "Amanita"),
	})
	ctx := context.Background()
	if _, err := f.svc.AcquireClaim(ctx, "b.jpg", "bob"); err != nil {
		t.Fatalf("bob claim: %v", err)
	}
	if _, err := f.svc.Link(ctx, "alice", "a.jpg", "b.jpg"); !errors.Is(err, services.ErrClaimConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if view, _ := f.svc.Peek(ctx, "a.jpg"); view.Claim.Held {
		t.Fatalf("a.jpg should be released after a failed link, got %+v", view.Claim)
	}
}

func TestSubmitApprovePropagatesAndReleases(t *testing.T) {
	a := testsupport.NewRecord("a.jpg", "NEMF-1", "Amanita muscaria")
	f := newFixture(t, []*records.Record{a, testsupport.NewRecord("b.jpg", "", "")})
	ctx := context.Background()
	if _, err := f.svc.Link(ctx, "alice", "a.jpg", "b.jpg"); err != nil {
		t.Fatalf("Link: %v", err)
	}

	fields := extractedFields(a)
	fields.Notes = "under hemlock"
	result, err := f.svc.Submit(ctx, review.SubmitRequest{Key: "a.jpg", Holder: "alice", Action: review.ActionCorrect, Fields: fields})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Kind != review.ResultOK || result.Status != records.StatusCorrected {
		t.Fatalf("unexpected result %+v", result)
	}
	if !slices.Equal(result.Updated, []string{"a.jpg", "b.jpg"}) {
		t.Fatalf("unexpected updated %v", result.Updated)
	}

	b := testsupport.MustGet(t, f.store, "b.jpg")
	if b.Review.Status != records.StatusApproved || b.Review.FieldCode != "NEMF-1" || b.Review.PropagatedFrom != "a.jpg" {
		t.Fatalf("sibling not propagated: %+v", b.Review)
	}
	for _, key := range []string{"a.jpg", "b.jpg"} {
		if view, _ := f.svc.Peek(ctx, key); view.Claim.Held {
			t.Fatalf("%s still claimed after submit", key)
		}
	}
	if calls := f.external.Calls(); len(calls) != 0 {
		t.Fatalf("review actions must not call the external system, got %v", calls)
	}
}

func TestSubmitSaveKeepsRecordOpen(t *testing.T) {
	f := newFixture(t, []*records.Record{testsupport.NewRecord("a.jpg", "NEMF-1", "Amanita")})
	ctx := context.Background()

	result, err := f.svc.Submit(ctx, review.SubmitRequest{
		Key: "a.jpg", Holder: "alice", Action: review.ActionSave,
		Fields: records.Fields{FieldCode: "NEMF-9", Date: "2024-09-14"},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Status != records.StatusUnreviewed {
		t.Fatalf("save changed status to %s", result.Status)
	}
	record := testsupport.MustGet(t, f.store, "a.jpg")
	if record.Review.FieldCode != "NEMF-9" || record.Resolved() {
		t.Fatalf("unexpected record %+v", record.Review)
	}
	if view, _ := f.svc.Peek(ctx, "a.jpg"); view.Claim.Holder != "alice" {
		t.Fatalf("save should keep the claim, got %+v", view.Claim)
	}
}

func TestSubmitConflictsWithOtherHolder(t *testing.T) {
	f := newFixture(t, []*records.Record{testsupport.NewRecord("a.jpg", "NEMF-1", "Amanita")})
	ctx := context.Background()
	if _, err := f.svc.AcquireClaim(ctx, "a.jpg", "alice"); err != nil {
		t.Fatalf("AcquireClaim: %v", err)
	}
	_, err := f.svc.Submit(ctx, review.SubmitRequest{Key: "a.jpg", Holder: "bob", Action: review.ActionApprove})
	if !errors.Is(err, services.ErrClaimConflict) {
		t.Fatalf("expected claim conflict, got %v", err)
	}
	if record := testsupport.MustGet(t, f.store, "a.jpg"); record.Review.Status != records.StatusUnreviewed {
		t.Fatalf("record changed by rejected submit: %s", record.Review.Status)
	}
}

func TestSubmitValidationHappensBeforeClaim(t *testing.T) {
	f := newFixture(t, []*records.Record{testsupport.NewRecord("a.jpg", "NEMF-1", "Amanita")})
	ctx := context.Background()

	cases := []review.SubmitRequest{
		{Key: "a.jpg", Holder: "alice", Action: review.ActionApprove, Fields: records.Fields{Date: "09/15/2024"}},
		{Key: "a.jpg", Holder: "alice", Action: "publish"},
		{Key: "a.jpg", Holder: "alice", Action: review.ActionAlreadyOnExternal},
		{Key: "a.jpg", Holder: "alice", Action: review.ActionUpload, Mode: review.UploadAddToExisting},
		{Key: "a.jpg", Holder: "alice", Action: review.ActionUpload, Decision: "maybe"},
		{Key: "a.jpg", Holder: "", Action: review.ActionApprove},
		{Key: "a.jpg", Holder: "alice", Action: review.ActionApprove, Fields: records.Fields{
			Date: "2024-09-15", Coordinates: &records.Coordinates{Latitude: 91, Longitude: 0},
		}},
	}
	for i, req := range cases {
		if _, err := f.svc.Submit(ctx, req); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
	if view, _ := f.svc.Peek(ctx, "a.jpg"); view.Claim.Held {
		t.Fatal("rejected submissions must not take the claim")
	}
	if _, err := f.svc.Submit(ctx, review.SubmitRequest{Key: "nope.jpg", Holder: "alice", Action: review.ActionApprove}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResolvedRecordsAreImmutable(t *testing.T) {
	done := testsupport.NewRecord("a.jpg", "NEMF-1", "Amanita")
	done.Review.Status = records.StatusExcluded
	f := newFixture(t, []*records.Record{done})
	ctx := context.Background()

	for _, action := range []review.Action{review.ActionApprove, review.ActionSave, review.ActionUpload} {
		_, err := f.svc.Submit(ctx, review.SubmitRequest{Key: "a.jpg", Holder: "alice", Action: action})
		if !errors.Is(err, services.ErrValidation) || !errors.Is(err, records.ErrResolved) {
			t.Fatalf("%s: expected resolved validation error, got %v", action, err)
		}
	}
	if record := testsupport.MustGet(t, f.store, "a.jpg"); record.Review.Status != records.StatusExcluded {
		t.Fatalf("resolved record changed: %s", record.Review.Status)
	}
	if view, _ := f.svc.Peek(ctx, "a.jpg"); view.Claim.Held {
		t.Fatalf("rejected submit left a claim: %+v", view.Claim)
	}
	if calls := f.external.Calls(); len(calls) != 0 {
		t.Fatalf("unexpected external calls %v", calls)
	}
}

func TestAlreadyOnExternalRecordsObservation(t *testing.T) {
	f := newFixture(t, []*records.Record{testsupport.NewRecord("a.jpg", "NEMF-1", "Amanita")})
	ctx := context.Background()

	result, err := f.svc.Submit(ctx, review.SubmitRequest{
		Key: "a.jpg", Holder: "alice", Action: review.ActionAlreadyOnExternal, ObservationID: 4321,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Status != records.StatusAlreadyOnExternal || result.ObservationID != 4321 {
		t.Fatalf("unexpected result %+v", result)
	}
	record := testsupport.MustGet(t, f.store, "a.jpg")
	if record.Outcome.ObservationID != 4321 || record.Outcome.UploadedAt != nil {
		t.Fatalf("unexpected outcome %+v", record.Outcome)
	}
	summary, err := f.svc.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.AlreadyOnExternal != 1 || summary.Uploaded != 0 || summary.Remaining != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	existing, err := f.svc.ExistingObservations(ctx, "nemf-1")
	if err != nil {
		t.Fatalf("ExistingObservations: %v", err)
	}
	if len(existing) != 1 || existing[0].ObservationID != 4321 || !slices.Equal(existing[0].Keys, []string{"a.jpg"}) {
		t.Fatalf("unexpected existing observations %+v", existing)
	}
}

func TestVerifyObservation(t *testing.T) {
	f := newFixture(t, nil)
	f.external.existing[77] = true
	ctx := context.Background()

	if ok, err := f.svc.VerifyObservation(ctx, "alice", 77); err != nil || !ok {
		t.Fatalf("expected 77 to exist, got %v %v", ok, err)
	}
	if ok, err := f.svc.VerifyObservation(ctx, "alice", 78); err != nil || ok {
		t.Fatalf("expected 78 to be missing, got %v %v", ok, err)
	}
	if _, err := f.svc.VerifyObservation(ctx, "alice", 0); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPositionAndAdjacent(t *testing.T) {
	var recs []*records.Record
	for i := 1; i <= 9; i++ {
		recs = append(recs, testsupport.NewRecord(fmt.Sprintf("IMG_%02d.jpg", i), "NEMF-1", "Amanita"))
	}
	f := newFixture(t, recs)
	ctx := context.Background()

	pos, err := f.svc.Position(ctx, "IMG_03.jpg")
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if pos.Index != 2 || pos.Total != 9 || pos.Prev != "IMG_02.jpg" || pos.Next != "IMG_04.jpg" {
		t.Fatalf("unexpected position %+v", pos)
	}

	nearby, err := f.svc.Adjacent(ctx, "IMG_02.jpg")
	if err != nil {
		t.Fatalf("Adjacent: %v", err)
	}
	var keys []string
	for _, record := range nearby {
		keys = append(keys, record.Key)
	}
	want := []string{"IMG_01.jpg", "IMG_02.jpg", "IMG_03.jpg", "IMG_04.jpg", "IMG_05.jpg", "IMG_06.jpg", "IMG_07.jpg"}
	if !slices.Equal(keys, want) {
		t.Fatalf("Adjacent = %v, want %v", keys, want)
	}
	if _, err := f.svc.Adjacent(ctx, "IMG_99.jpg"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if view, _ := f.svc.Peek(ctx, "IMG_02.jpg"); view.Claim.Held {
		t.Fatal("adjacent lookups must not claim")
	}
}

func TestNavigationFollowsHistory(t *testing.T) {
	f := newFixture(t, []*records.Record{
		testsupport.NewRecord("a.jpg", "NEMF-1", "Amanita"),
		testsupport.NewRecord("b.jpg", "NEMF-2", "Amanita"),
		testsupport.NewRecord("c.jpg", "NEMF-3", "Amanita"),
	})
	ctx := context.Background()
	for _, key := range []string{"a.jpg", "b.jpg"} {
		if _, err := f.svc.View(ctx, "alice", key); err != nil {
			t.Fatalf("View(%s): %v", key, err)
		}
	}

	nav, err := f.svc.Navigation(ctx, "alice", "b.jpg")
	if err != nil {
		t.Fatalf("Navigation: %v", err)
	}
	if !nav.CanGoBack || nav.BackTarget != "a.jpg" || nav.CanGoForward {
		t.Fatalf("unexpected navigation %+v", nav)
	}
	if nav.NextUnreviewed != "c.jpg" || nav.NextMode != selector.NextFromPriority {
		t.Fatalf("unexpected next target %+v", nav)
	}
}

func TestSubmitNormalizesAction(t *testing.T) {
	f := newFixture(t, []*records.Record{testsupport.NewRecord("a.jpg", "NEMF-1", "Amanita")})
	_, err := f.svc.Submit(context.Background(), review.SubmitRequest{Key: "a.jpg", Holder: "alice", Action: " APPROVE "})
	if err != nil {
		t.Fatalf("Submit with padded action: %v", err)
	}
	if record := testsupport.MustGet(t, f.store, "a.jpg"); record.Review.Status != records.StatusApproved {
		t.Fatalf("expected approved, got %s", record.Review.Status)
	}
}

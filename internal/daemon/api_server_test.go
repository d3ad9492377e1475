package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"nemfreview/internal/api"
	"nemfreview/internal/catalog"
	"nemfreview/internal/config"
	"nemfreview/internal/records"
	"nemfreview/internal/review"
	"nemfreview/internal/services"
	"nemfreview/internal/services/mushroomobserver"
	"nemfreview/internal/testsupport"
)

type externalStub struct {
	existing map[int64]bool
}

func (s *externalStub) VerifyObservation(_ context.Context, id int64) (bool, error) {
	return s.existing[id], nil
}

func (s *externalStub) UploadImage(context.Context, mushroomobserver.ImageUpload) (int64, error) {
	return 0, errors.New("not used")
}

func (s *externalStub) CreateObservation(context.Context, mushroomobserver.NewObservation) (int64, error) {
	return 0, errors.New("not used")
}

func (s *externalStub) AttachImage(context.Context, int64, int64) error { return nil }

func (s *externalStub) AppendObservationNotes(context.Context, int64, string) error { return nil }

func (s *externalStub) CreateFieldSlip(context.Context, string, int64, int64) error { return nil }

func (s *externalStub) AddObservationToProject(context.Context, int64, int64) error { return nil }

func (s *externalStub) ObservationURL(id int64) string {
	return fmt.Sprintf("https://mo.test/%d", id)
}

func newTestServer(t *testing.T, opts ...testsupport.ConfigOption) (*apiServer, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedRecords(t, store,
		testsupport.NewRecord("a.jpg", "NEMF-1", "Amanita muscaria"),
		testsupport.NewRecord("b.jpg", "NEMF-2", "Amanita muscaria"),
	)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.ImagesDir, "a.jpg"), 16)

	stub := &externalStub{existing: map[int64]bool{4321: true}}
	cat := catalog.New(
		[]catalog.Location{{ID: 1001, Name: "Bear Brook State Park"}},
		[]catalog.Name{{ID: 2002, TextName: "Amanita muscaria"}},
		map[string]string{"Bear Brook State Park": "2024-09-15"},
	)
	svc, err := review.New(context.Background(), cfg, store,
		review.WithCatalog(cat),
		review.WithExternal(func(string) (review.External, error) { return stub, nil }),
	)
	if err != nil {
		t.Fatalf("review.New: %v", err)
	}
	d, err := New(cfg, store, svc, nil, WithObservationURL(stub.ObservationURL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d.api, cfg
}

func do(t *testing.T, srv *apiServer, method, path, holder string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if holder != "" {
		req.Header.Set(HolderHeader, holder)
	}
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return out
}

func TestNextClaimAndConflict(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/api/next", "alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	next := decode[api.NextResponse](t, w)
	if next.Record == nil || next.Record.Key != "a.jpg" || next.Claim.Holder != "alice" {
		t.Fatalf("unexpected next %+v", next)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected a request id header")
	}

	w = do(t, srv, http.MethodPost, "/api/records/a.jpg/claim", "bob", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	if resp := decode[api.ErrorResponse](t, w); resp.Kind != services.KindClaimConflict || resp.RequestID == "" {
		t.Fatalf("unexpected error body %+v", resp)
	}

	w = do(t, srv, http.MethodGet, "/api/records/a.jpg", "", nil)
	view := decode[api.RecordResponse](t, w)
	if !view.Claim.Held || view.Claim.Holder != "alice" || view.Record.Extracted.FieldCode != "NEMF-1" {
		t.Fatalf("unexpected view %+v", view)
	}

	w = do(t, srv, http.MethodDelete, "/api/records/a.jpg/claim", "alice", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	w = do(t, srv, http.MethodPost, "/api/records/a.jpg/claim", "bob", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected bob to claim after release, got %d", w.Code)
	}
}

func TestSubmitStatusMapping(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/api/records/a.jpg/submit", "alice", api.SubmitRequest{Action: "publish"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	w = do(t, srv, http.MethodPost, "/api/records/missing.jpg/submit", "alice", api.SubmitRequest{Action: "approve"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	w = do(t, srv, http.MethodPost, "/api/records/a.jpg/submit", "alice", api.SubmitRequest{
		Action:        "already_on_external",
		ObservationID: 4321,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	result := decode[api.SubmitResponse](t, w)
	if result.Result != "ok" || result.Status != string(records.StatusAlreadyOnExternal) {
		t.Fatalf("unexpected result %+v", result)
	}

	w = do(t, srv, http.MethodPost, "/api/records/a.jpg/submit", "alice", api.SubmitRequest{Action: "approve"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("resolved record should reject, got %d", w.Code)
	}

	w = do(t, srv, http.MethodGet, "/api/field-slips/NEMF-1", "", nil)
	slip := decode[api.FieldSlipResponse](t, w)
	if len(slip.Local) != 1 || slip.Local[0].ObservationURL != "https://mo.test/4321" || slip.Error == "" {
		t.Fatalf("unexpected field slip response %+v", slip)
	}
}

func TestUploadWithoutExternalLookupIsConfigurationError(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, http.MethodPost, "/api/records/a.jpg/submit", "alice", api.SubmitRequest{Action: "upload"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", w.Code, w.Body.String())
	}
	if resp := decode[api.ErrorResponse](t, w); resp.Kind != services.KindConfiguration {
		t.Fatalf("unexpected kind %q", resp.Kind)
	}
}

func TestLinkAndGroupEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/api/records/a.jpg/link", "alice", api.LinkRequest{Target: "b.jpg"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	group := decode[api.GroupResponse](t, w)
	if len(group.Members) != 2 {
		t.Fatalf("unexpected group %+v", group)
	}

	w = do(t, srv, http.MethodGet, "/api/records/b.jpg", "", nil)
	if view := decode[api.RecordResponse](t, w); len(view.Record.LinkGroup) != 2 {
		t.Fatalf("expected link group on record, got %+v", view.Record)
	}

	w = do(t, srv, http.MethodDelete, "/api/records/b.jpg/link", "bob", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for bob, got %d", w.Code)
	}
	w = do(t, srv, http.MethodDelete, "/api/records/b.jpg/link", "alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, srv, http.MethodDelete, "/api/claims", "alice", nil)
	if released := decode[api.ReleaseAllResponse](t, w); len(released.Released) != 2 {
		t.Fatalf("expected two released claims, got %+v", released)
	}
}

func TestVerifyAndLookups(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/api/observations/4321/verify", "alice", nil)
	if verify := decode[api.VerifyResponse](t, w); !verify.Exists || verify.ObservationURL == "" {
		t.Fatalf("unexpected verify %+v", verify)
	}
	w = do(t, srv, http.MethodGet, "/api/lookup/locations?q=bear", "", nil)
	locations := decode[api.LookupResponse[api.LocationResult]](t, w)
	if len(locations.Results) != 1 || locations.Results[0].ForayDate != "2024-09-15" {
		t.Fatalf("unexpected locations %+v", locations)
	}
	w = do(t, srv, http.MethodGet, "/api/lookup/names?q=a", "", nil)
	if names := decode[api.LookupResponse[api.NameResult]](t, w); len(names.Results) != 0 {
		t.Fatalf("single character queries should not match, got %+v", names)
	}
	w = do(t, srv, http.MethodGet, "/api/lookup/forays", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without location, got %d", w.Code)
	}
}

func TestNavigationEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, srv, http.MethodGet, "/api/records/a.jpg", "alice", nil)
	do(t, srv, http.MethodGet, "/api/records/b.jpg", "alice", nil)

	w := do(t, srv, http.MethodGet, "/api/records/b.jpg/navigation", "alice", nil)
	nav := decode[api.Navigation](t, w)
	if !nav.CanGoBack || nav.BackTarget != "a.jpg" || nav.Position.Index != 1 || nav.Position.Total != 2 {
		t.Fatalf("unexpected navigation %+v", nav)
	}

	w = do(t, srv, http.MethodGet, "/api/records/a.jpg/adjacent", "", nil)
	if adjacent := decode[api.RecordListResponse](t, w); len(adjacent.Records) != 2 {
		t.Fatalf("unexpected adjacent %+v", adjacent)
	}
}

func TestAuthMiddleware(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.router = srv.routes("secret")

	w := do(t, srv, http.MethodGet, "/api/summary", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if summary := decode[api.Summary](t, rec); summary.Total != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	w = do(t, srv, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz should not require auth, got %d", w.Code)
	}
}

func TestListRecordsReportsClaimant(t *testing.T) {
	srv, _ := newTestServer(t)
	if w := do(t, srv, http.MethodPost, "/api/records/a.jpg/claim", "alice", nil); w.Code != http.StatusOK {
		t.Fatalf("claim: %d %s", w.Code, w.Body.String())
	}

	byKey := func(holder string) map[string]api.Record {
		w := do(t, srv, http.MethodGet, "/api/records", holder, nil)
		out := map[string]api.Record{}
		for _, record := range decode[api.RecordListResponse](t, w).Records {
			out[record.Key] = record
		}
		return out
	}

	seenByBob := byKey("bob")
	if a := seenByBob["a.jpg"]; a.ClaimedBy != "alice" || a.IsMine {
		t.Fatalf("unexpected claim state for bob %+v", a)
	}
	if b := seenByBob["b.jpg"]; b.ClaimedBy != "" || b.IsMine {
		t.Fatalf("unclaimed record reports %+v", b)
	}
	if a := byKey("alice")["a.jpg"]; a.ClaimedBy != "alice" || !a.IsMine {
		t.Fatalf("unexpected claim state for alice %+v", a)
	}
}

func TestImagesRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/images/a.jpg", "", nil)
	if w.Code != http.StatusOK || w.Body.Len() != 16 {
		t.Fatalf("expected the 16 byte image, got %d (%d bytes)", w.Code, w.Body.Len())
	}
	for _, path := range []string{"/images/b.jpg", "/images/"} {
		if w := do(t, srv, http.MethodGet, path, "", nil); w.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, w.Code)
		}
	}

	srv.router = srv.routes("secret")
	if w := do(t, srv, http.MethodGet, "/images/a.jpg", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("images should require the token, got %d", w.Code)
	}
}

func TestStatusForError(t *testing.T) {
	cases := map[error]int{
		services.ErrClaimConflict: http.StatusConflict,
		services.ErrNotFound:      http.StatusNotFound,
		services.ErrValidation:    http.StatusBadRequest,
		services.ExternalStep("create field slip", errors.New("boom")): http.StatusBadGateway,
		services.ErrConfiguration: http.StatusInternalServerError,
		errors.New("unexpected"):  http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := statusForError(err); got != want {
			t.Fatalf("statusForError(%v) = %d, want %d", err, got, want)
		}
	}
}

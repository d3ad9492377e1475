package daemon

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"nemfreview/internal/api"
	"nemfreview/internal/records"
	"nemfreview/internal/selector"
	"nemfreview/internal/services"
)

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.ServiceStatus{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		Policy:       status.Policy,
		ActiveClaims: status.ActiveClaims,
		Summary:      api.FromSummary(status.Summary),
	})
}

func (s *apiServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.daemon.service.Summary(r.Context())
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrTransient, "api", "summary", "", err))
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSummary(summary))
}

func (s *apiServer) record(r *records.Record) api.Record {
	return api.FromRecord(r, s.daemon.service.Group(r.Key), s.daemon.urlFor)
}

func (s *apiServer) handleNext(w http.ResponseWriter, r *http.Request) {
	var req api.NextRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	assignment, err := s.daemon.service.GetNext(r.Context(), holderFrom(r), selector.Options{
		After:   req.After,
		Exclude: req.Exclude,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if assignment == nil {
		s.writeJSON(w, http.StatusOK, api.NextResponse{Done: true})
		return
	}
	record := s.record(assignment.Record)
	claim := api.FromClaim(assignment.Claim, time.Now())
	s.writeJSON(w, http.StatusOK, api.NextResponse{Record: &record, Claim: &claim})
}

func (s *apiServer) handleListRecords(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := records.ListOptions{FieldCode: strings.TrimSpace(query.Get("field_code"))}
	for _, value := range query["status"] {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, ok := records.ParseStatus(value)
		if !ok {
			s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "list", "unknown status "+strconv.Quote(value), nil))
			return
		}
		opts.Statuses = append(opts.Statuses, status)
	}
	if unresolved := query.Get("unresolved"); unresolved == "1" || strings.EqualFold(unresolved, "true") {
		opts.UnresolvedOnly = true
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "list", "limit must be a non-negative integer", nil))
			return
		}
		opts.Limit = limit
	}
	found, err := s.daemon.store.List(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrTransient, "api", "list", "", err))
		return
	}
	live := s.daemon.service.Claims().Snapshot()
	holder := holderFrom(r)
	out := make([]api.Record, 0, len(found))
	for _, record := range found {
		dto := s.record(record)
		if claim, ok := live[record.Key]; ok {
			api.MarkClaim(&dto, claim.Holder, holder)
		}
		out = append(out, dto)
	}
	s.writeJSON(w, http.StatusOK, api.RecordListResponse{Records: out})
}

func (s *apiServer) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	view, err := s.daemon.service.View(r.Context(), holderFrom(r), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RecordResponse{
		Record: s.record(view.Record),
		Claim:  api.FromState(view.Claim, time.Now()),
	})
}

func (s *apiServer) handleAcquire(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	claim, err := s.daemon.service.AcquireClaim(r.Context(), key, holderFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ClaimResponse{Key: key, Claim: api.FromClaim(claim, time.Now())})
}

func (s *apiServer) handleRenew(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	claim, err := s.daemon.service.RenewClaim(r.Context(), key, holderFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ClaimResponse{Key: key, Claim: api.FromClaim(claim, time.Now())})
}

func (s *apiServer) handleRelease(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if err := s.daemon.service.ReleaseClaim(r.Context(), key, holderFrom(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleReleaseAll(w http.ResponseWriter, r *http.Request) {
	holder := holderFrom(r)
	if holder == "" {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "release", HolderHeader+" header is required", nil))
		return
	}
	released := s.daemon.service.ReleaseAll(holder)
	if released == nil {
		released = []string{}
	}
	s.writeJSON(w, http.StatusOK, api.ReleaseAllResponse{Released: released})
}

func (s *apiServer) handleGroup(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if _, err := s.daemon.service.Peek(r.Context(), key); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.GroupResponse{Key: key, Members: s.daemon.service.Group(key)})
}

func (s *apiServer) handleLink(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	var req api.LinkRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	members, err := s.daemon.service.Link(r.Context(), holderFrom(r), key, req.Target)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.GroupResponse{Key: key, Members: members})
}

func (s *apiServer) handleUnlink(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if err := s.daemon.service.Unlink(r.Context(), holderFrom(r), key); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.GroupResponse{Key: key, Members: s.daemon.service.Group(key)})
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	var req api.SubmitRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.daemon.service.Submit(r.Context(), api.ToSubmitRequest(key, holderFrom(r), req))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromSubmitResult(result))
}

func (s *apiServer) handleNavigation(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if _, err := s.daemon.service.Peek(r.Context(), key); err != nil {
		s.writeError(w, r, err)
		return
	}
	nav, err := s.daemon.service.Navigation(r.Context(), holderFrom(r), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pos, err := s.daemon.service.Position(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromNavigation(nav, pos))
}

func (s *apiServer) handleAdjacent(w http.ResponseWriter, r *http.Request) {
	nearby, err := s.daemon.service.Adjacent(r.Context(), mux.Vars(r)["key"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]api.Record, 0, len(nearby))
	for _, record := range nearby {
		out = append(out, s.record(record))
	}
	s.writeJSON(w, http.StatusOK, api.RecordListResponse{Records: out})
}

func (s *apiServer) handleFieldSlip(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(mux.Vars(r)["code"])
	local, err := s.daemon.service.ExistingObservations(r.Context(), code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := api.FieldSlipResponse{
		Code:  code,
		Local: api.FromExistingObservations(local, s.daemon.urlFor),
	}
	// The external lookup is advisory here; local results are still useful
	// when it is unavailable.
	external, err := s.daemon.service.FieldSlipObservations(r.Context(), code)
	if err != nil {
		resp.Error = err.Error()
	} else {
		resp.External = external
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleVerify(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "verify", "invalid observation id", err))
		return
	}
	exists, err := s.daemon.service.VerifyObservation(r.Context(), holderFrom(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := api.VerifyResponse{ObservationID: id, Exists: exists}
	if exists && s.daemon.urlFor != nil {
		resp.ObservationURL = s.daemon.urlFor(id)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleLookupLocations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	c := s.daemon.service.Catalog()
	s.writeJSON(w, http.StatusOK, api.LookupResponse[api.LocationResult]{
		Query:   q,
		Results: api.FromLocations(c, c.SearchLocations(q)),
	})
}

func (s *apiServer) handleLookupNames(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	s.writeJSON(w, http.StatusOK, api.LookupResponse[api.NameResult]{
		Query:   q,
		Results: api.FromNames(s.daemon.service.Catalog().SearchNames(q)),
	})
}

func (s *apiServer) handleLookupForay(w http.ResponseWriter, r *http.Request) {
	location := strings.TrimSpace(r.URL.Query().Get("location"))
	if location == "" {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "foray", "location is required", nil))
		return
	}
	date, ok := s.daemon.service.Catalog().ForayDate(location)
	s.writeJSON(w, http.StatusOK, api.ForayResponse{Location: location, Date: date, Found: ok})
}

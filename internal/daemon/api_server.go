package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nemfreview/internal/api"
	"nemfreview/internal/config"
	"nemfreview/internal/logging"
	"nemfreview/internal/metrics"
	"nemfreview/internal/services"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind      string
	imagesDir string
	logger    *slog.Logger
	daemon *Daemon
	router *mux.Router

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:      cfg.Paths.APIBind,
		imagesDir: cfg.Paths.ImagesDir,
		logger:    logger,
		daemon:    d,
	}
	srv.router = srv.routes(cfg.Paths.APIToken)
	srv.server = &http.Server{
		Handler:           srv.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Uploads push several images upstream within one request.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes(token string) *mux.Router {
	r := mux.NewRouter()
	r.Use(metrics.Middleware)
	r.Use(requestIDMiddleware)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	a := r.PathPrefix("/api").Subrouter()
	a.Use(authMiddleware(token))

	a.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	a.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet)
	a.HandleFunc("/next", s.handleNext).Methods(http.MethodPost)
	a.HandleFunc("/claims", s.handleReleaseAll).Methods(http.MethodDelete)

	a.HandleFunc("/records", s.handleListRecords).Methods(http.MethodGet)
	a.HandleFunc("/records/{key}", s.handleGetRecord).Methods(http.MethodGet)
	a.HandleFunc("/records/{key}/claim", s.handleAcquire).Methods(http.MethodPost)
	a.HandleFunc("/records/{key}/claim", s.handleRenew).Methods(http.MethodPut)
	a.HandleFunc("/records/{key}/claim", s.handleRelease).Methods(http.MethodDelete)
	a.HandleFunc("/records/{key}/group", s.handleGroup).Methods(http.MethodGet)
	a.HandleFunc("/records/{key}/link", s.handleLink).Methods(http.MethodPost)
	a.HandleFunc("/records/{key}/link", s.handleUnlink).Methods(http.MethodDelete)
	a.HandleFunc("/records/{key}/submit", s.handleSubmit).Methods(http.MethodPost)
	a.HandleFunc("/records/{key}/navigation", s.handleNavigation).Methods(http.MethodGet)
	a.HandleFunc("/records/{key}/adjacent", s.handleAdjacent).Methods(http.MethodGet)

	a.HandleFunc("/field-slips/{code}", s.handleFieldSlip).Methods(http.MethodGet)
	a.HandleFunc("/observations/{id:[0-9]+}/verify", s.handleVerify).Methods(http.MethodGet)

	a.HandleFunc("/lookup/locations", s.handleLookupLocations).Methods(http.MethodGet)
	a.HandleFunc("/lookup/names", s.handleLookupNames).Methods(http.MethodGet)
	a.HandleFunc("/lookup/forays", s.handleLookupForay).Methods(http.MethodGet)

	img := r.PathPrefix("/images/").Subrouter()
	img.Use(authMiddleware(token))
	img.PathPrefix("/").Handler(s.imageHandler()).Methods(http.MethodGet, http.MethodHead)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: "route not found", Kind: services.KindNotFound})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusMethodNotAllowed, api.ErrorResponse{Error: "method not allowed", Kind: services.KindValidation})
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Args(logging.Error(err))...)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.Args(logging.String("address", listener.Addr().String()))...)
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

// imageHandler serves record photos from the images directory. Directory
// listings are not exposed.
func (s *apiServer) imageHandler() http.Handler {
	files := http.FileServer(http.Dir(s.imagesDir))
	return http.StripPrefix("/images/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.FromSlash(path.Clean("/" + r.URL.Path))
		if info, err := os.Stat(filepath.Join(s.imagesDir, name)); err != nil || info.IsDir() {
			s.writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: "image not found", Kind: services.KindNotFound})
			return
		}
		files.ServeHTTP(w, r)
	}))
}

// statusForError maps service error markers onto HTTP status codes.
func statusForError(err error) int {
	switch services.Kind(err) {
	case services.KindClaimConflict:
		return http.StatusConflict
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Args(logging.Error(err))...)
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	resp := api.ErrorResponse{Error: err.Error(), Kind: services.Kind(err)}
	if step, ok := services.FailedStep(err); ok {
		resp.Step = step
	}
	if id, ok := services.RequestIDFromContext(r.Context()); ok {
		resp.RequestID = id
	}
	logger := logging.WithContext(r.Context(), s.log())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			logging.Args(logging.String("path", r.URL.Path), logging.Int("status", status), logging.Error(err))...)
	} else {
		logger.Debug("request rejected",
			logging.Args(logging.String("path", r.URL.Path), logging.Int("status", status), logging.Error(err))...)
	}
	s.writeJSON(w, status, resp)
}

// decodeBody reads an optional JSON body into target. An empty body leaves
// target untouched.
func decodeBody(r *http.Request, target any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return services.Wrap(services.ErrValidation, "api", "decode", "invalid JSON body", err)
	}
	return nil
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}

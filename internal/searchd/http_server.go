package searchd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/paramsearch/pkg/logger"
	"github.com/GoSim-25-26J-441/paramsearch/pkg/utils"
)

const (
	// maxRequestBytes bounds POST bodies
	maxRequestBytes = 1 << 20
	maxListLimit    = 1000
)

type HTTPServer struct {
	mux      *http.ServeMux
	store    *RunStore
	Executor *RunExecutor
}

func NewHTTPServer(store *RunStore, executor *RunExecutor) *HTTPServer {
	s := &HTTPServer{
		mux:      http.NewServeMux(),
		store:    store,
		Executor: executor,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/searches", s.handleSearches)
	s.mux.HandleFunc("/v1/searches/", s.handleSearchByID)

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"active_runs": s.Executor.ActiveRuns(),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleSearches handles /v1/searches
func (s *HTTPServer) handleSearches(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateSearch(w, r)
	case http.MethodGet:
		s.handleListSearches(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleSearchByID handles /v1/searches/{id}, /v1/searches/{id}:stop and
// /v1/searches/{id}/export
func (s *HTTPServer) handleSearchByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/searches/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	if runID, ok := strings.CutSuffix(path, ":stop"); ok {
		if r.Method != http.MethodPost {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleStopSearch(w, runID)
		return
	}

	if runID, ok := strings.CutSuffix(path, "/export"); ok {
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleExportSearch(w, runID)
		return
	}

	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.handleGetSearch(w, path)
}

// handleCreateSearch handles POST /v1/searches: create and start a run
func (s *HTTPServer) handleCreateSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RunID string    `json:"run_id,omitempty"`
		Input *RunInput `json:"input"`
	}

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Input == nil {
		req.Input = &RunInput{}
	}

	rec, err := s.store.Create(req.RunID, req.Input)
	if err != nil {
		switch {
		case strings.Contains(err.Error(), "already exists"):
			s.writeError(w, http.StatusConflict, err.Error())
		case strings.Contains(err.Error(), "cannot contain"):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	started, err := s.Executor.Start(rec.Run.ID)
	if err != nil {
		if errors.Is(err, ErrInvalidConfig) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("search created (HTTP)", "run_id", started.Run.ID)
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"run": started.Run,
	})
}

// handleListSearches handles GET /v1/searches with pagination and filtering
func (s *HTTPServer) handleListSearches(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = utils.ClampInt(parsed, 1, maxListLimit)
		}
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	status := ParseRunStatus(r.URL.Query().Get("status"))
	recs := s.store.List(limit, offset, status)

	runs := make([]*Run, 0, len(recs))
	for _, rec := range recs {
		runs = append(runs, rec.Run)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"runs": runs,
		"pagination": map[string]any{
			"limit":  limit,
			"offset": offset,
			"count":  len(runs),
		},
	})
}

// handleGetSearch handles GET /v1/searches/{id}
func (s *HTTPServer) handleGetSearch(w http.ResponseWriter, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	resp := map[string]any{"run": rec.Run}
	if rec.Report != nil {
		resp["report"] = rec.Report
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleStopSearch handles POST /v1/searches/{id}:stop
func (s *HTTPServer) handleStopSearch(w http.ResponseWriter, runID string) {
	updated, err := s.Executor.Stop(runID)
	if err != nil {
		switch {
		case errors.Is(err, ErrRunNotFound):
			s.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, ErrRunIDMissing):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	logger.Info("search cancelled (HTTP)", "run_id", runID)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run": updated.Run,
	})
}

// handleExportSearch handles GET /v1/searches/{id}/export. The body is a
// google.protobuf.Struct in protojson form.
func (s *HTTPServer) handleExportSearch(w http.ResponseWriter, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if rec.Report == nil {
		s.writeError(w, http.StatusPreconditionFailed, "report not available")
		return
	}

	out, err := exportRecord(rec)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out); err != nil {
		logger.Error("failed to write export", "run_id", runID, "error", err)
	}
}

// exportRecord renders run and report as protojson
func exportRecord(rec *RunRecord) ([]byte, error) {
	st, err := toStruct(map[string]any{
		"run":    rec.Run,
		"report": rec.Report,
	})
	if err != nil {
		return nil, err
	}
	return protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(st)
}

// toStruct converts any JSON-encodable value into a google.protobuf.Struct
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode struct: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode struct: %w", err)
	}
	st, err := structpb.NewStruct(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build struct: %w", err)
	}
	return st, nil
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}

// Package server exposes the index control surface as a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vecindex/internal/index"
	"github.com/vecindex/internal/service"
	"github.com/vecindex/internal/storage"
	"github.com/vecindex/pkg/errors"
	"github.com/vecindex/pkg/model"
	"github.com/vecindex/pkg/utils"
)

// Server serves the HTTP API over a service.Manager.
type Server struct {
	manager *service.Manager
	repos   buildEnqueuer
	port    int
	logger  utils.Logger
	server  *http.Server
}

// buildEnqueuer is the slice of the repository layer the server needs.
type buildEnqueuer interface {
	Enqueue(ctx context.Context, task *model.BuildTask) error
}

// New creates a Server. enqueuer may be nil when no build queue is
// configured; POST /api/builds then responds 503.
func New(manager *service.Manager, enqueuer buildEnqueuer, port int, logger utils.Logger) *Server {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &Server{
		manager: manager,
		repos:   enqueuer,
		port:    port,
		logger:  logger,
	}
}

// Handler builds the API routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/indexes", s.handleList)
	mux.HandleFunc("POST /api/indexes", s.handleCreate)
	mux.HandleFunc("GET /api/indexes/{name}", s.handleInfo)
	mux.HandleFunc("DELETE /api/indexes/{name}", s.handleDestroy)
	mux.HandleFunc("POST /api/indexes/{name}/vectors", s.handleAdd)
	mux.HandleFunc("POST /api/indexes/{name}/search", s.handleSearch)
	mux.HandleFunc("POST /api/indexes/{name}/save", s.handleSave)
	mux.HandleFunc("POST /api/indexes/{name}/load", s.handleLoad)
	mux.HandleFunc("POST /api/builds", s.handleEnqueueBuild)
	mux.HandleFunc("GET /api/healthz", s.handleHealth)
	return mux
}

// Start begins serving; it blocks until Shutdown or failure.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("http api listening on :%d", s.port)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// statusForError maps application error codes onto HTTP statuses.
func statusForError(err error) int {
	switch errors.GetErrorCode(err) {
	case errors.CodeInvalidArgument, errors.CodeMalformedInput:
		return http.StatusBadRequest
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeAlreadyExists:
		return http.StatusConflict
	case errors.CodeReadOnly:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusForError(err), map[string]string{
		"code":  errors.GetErrorCode(err),
		"error": err.Error(),
	})
}

type createRequest struct {
	Name            string  `json:"name"`
	Dimension       int     `json:"dimension"`
	Metric          string  `json:"metric"`
	MaxDegree       int     `json:"max_degree"`
	BuildComplexity int     `json:"build_complexity"`
	Alpha           float32 `json:"alpha"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.CodeInvalidArgument, "invalid request body", err))
		return
	}
	if req.Metric == "" {
		req.Metric = "l2"
	}
	info, err := s.manager.CreateIndex(r.Context(), req.Name, req.Dimension,
		req.Metric, req.MaxDegree, req.BuildComplexity, req.Alpha)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleDestroy(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.DestroyIndex(r.Context(), r.PathValue("name")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "destroyed"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.manager.List(r.Context()))
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.manager.Info(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

type addRequest struct {
	Vector []float32 `json:"vector"`
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.CodeInvalidArgument, "invalid request body", err))
		return
	}
	label, err := s.manager.Add(r.Context(), r.PathValue("name"), req.Vector)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]uint32{"label": label})
}

type searchRequest struct {
	Query []float32 `json:"query"`
	K     int       `json:"k"`
	Beam  int       `json:"beam,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.CodeInvalidArgument, "invalid request body", err))
		return
	}
	results, err := s.manager.Search(r.Context(), r.PathValue("name"), req.Query, req.K, req.Beam)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if results == nil {
		results = []index.Neighbor{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

type pathRequest struct {
	Path string `json:"path"`
	// Beam optionally overrides the build complexity on load.
	Beam int `json:"beam,omitempty"`
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.CodeInvalidArgument, "invalid request body", err))
		return
	}
	if err := s.manager.Save(r.Context(), r.PathValue("name"), req.Path); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "saved", "path": req.Path})
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.CodeInvalidArgument, "invalid request body", err))
		return
	}
	if err := s.manager.Load(r.Context(), r.PathValue("name"), req.Path, req.Beam); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "path": req.Path})
}

type enqueueBuildRequest struct {
	UUID      string            `json:"uuid"`
	InputKey  string            `json:"input_key"`
	OutputKey string            `json:"output_key"`
	Params    model.BuildParams `json:"params"`
}

func (s *Server) handleEnqueueBuild(w http.ResponseWriter, r *http.Request) {
	if s.repos == nil {
		s.writeJSON(w, http.StatusServiceUnavailable,
			map[string]string{"error": "no build queue configured"})
		return
	}
	var req enqueueBuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.CodeInvalidArgument, "invalid request body", err))
		return
	}
	if req.UUID == "" {
		s.writeError(w, errors.New(errors.CodeInvalidArgument, "uuid is required"))
		return
	}
	// Omitted keys fall back to the canonical artifact locations.
	if req.InputKey == "" {
		req.InputKey = storage.CorpusKey(req.UUID)
	}
	if req.OutputKey == "" {
		req.OutputKey = storage.IndexKey(req.UUID)
	}
	task := &model.BuildTask{
		UUID:      req.UUID,
		InputKey:  req.InputKey,
		OutputKey: req.OutputKey,
		Params:    req.Params,
	}
	if err := s.repos.Enqueue(r.Context(), task); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, task)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

package planner

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nextbestmove/nbm/internal/engine"
	"github.com/nextbestmove/nbm/internal/models"
)

// Version is reported by the health endpoint.
var Version = "dev"

// UserHeader carries the authenticated user id, set by the fronting proxy.
const UserHeader = "X-User-ID"

// StatsProvider reports background maintenance statistics.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// Server provides the HTTP API for NextBestMove.
type Server struct {
	service *Service
	addr    string
	logger  *slog.Logger
	server  *http.Server
	sweeper StatsProvider
}

// NewServer creates a new HTTP server.
func NewServer(service *Service, addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		service: service,
		addr:    addr,
		logger:  logger,
	}
}

// SetSweeper exposes sweeper statistics on /sweeper.
func (s *Server) SetSweeper(sw StatsProvider) {
	s.sweeper = sw
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Relationship endpoints
	mux.HandleFunc("/relationships", s.withUser(s.handleRelationships))
	mux.HandleFunc("/relationships/", s.withUser(s.handleRelationshipByID))

	// Action endpoints
	mux.HandleFunc("/actions", s.withUser(s.handleActions))
	mux.HandleFunc("/actions/", s.withUser(s.handleActionByID))

	// Planning and capacity
	mux.HandleFunc("/plan", s.withUser(s.handlePlan))
	mux.HandleFunc("/capacity", s.withUser(s.handleCapacity))
	mux.HandleFunc("/capacity/default", s.withUser(s.handleDefaultCapacity))
	mux.HandleFunc("/calendar/busy", s.withUser(s.handleBusy))
	mux.HandleFunc("/decisions", s.withUser(s.handleDecisions))

	// Health check
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/sweeper", s.handleSweeper)

	return s.logRequests(mux)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info("starting nbm daemon", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

func (s *Server) withUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserHeader))
		if userID == "" {
			s.writeError(w, ErrMissingUser)
			return
		}
		next(w, r, userID)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := HealthResponse{
		OK:      true,
		DB:      "ok",
		Version: Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK
	if err := s.service.Ping(r.Context()); err != nil {
		resp.OK = false
		resp.DB = err.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// --- Relationship Handlers ---

// handleRelationships handles POST /relationships and GET /relationships
func (s *Server) handleRelationships(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodPost:
		var req RelationshipInput
		if !decodeBody(w, r, &req) {
			return
		}
		rel, err := s.service.CreateRelationship(r.Context(), userID, req)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rel)
	case http.MethodGet:
		rels, err := s.service.ListRelationships(r.Context(), userID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if rels == nil {
			rels = []models.Relationship{}
		}
		writeJSON(w, http.StatusOK, rels)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRelationshipByID handles /relationships/{id}/*
func (s *Server) handleRelationshipByID(w http.ResponseWriter, r *http.Request, userID string) {
	relID, action := splitPath(r.URL.Path, "/relationships/")
	if relID == "" {
		http.Error(w, "relationship id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	switch {
	case action == "" && r.Method == http.MethodGet:
		rel, err := s.service.GetRelationship(ctx, userID, relID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rel)
	case action == "state" && r.Method == http.MethodGet:
		view, err := s.service.RelationshipState(ctx, userID, relID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	case action == "transition" && r.Method == http.MethodPost:
		var req TransitionInput
		if !decodeBody(w, r, &req) {
			return
		}
		rel, err := s.service.TransitionRelationship(ctx, userID, relID, req)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rel)
	case action == "email-signals" && r.Method == http.MethodPut:
		var req EmailSignalsInput
		if !decodeBody(w, r, &req) {
			return
		}
		signals, err := s.service.SetEmailSignals(ctx, userID, relID, req)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, signals)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// --- Action Handlers ---

// handleActions handles POST /actions and GET /actions
func (s *Server) handleActions(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodPost:
		var req ActionInput
		if !decodeBody(w, r, &req) {
			return
		}
		action, err := s.service.CreateAction(r.Context(), userID, req)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, action)
	case http.MethodGet:
		state := models.ActionState(r.URL.Query().Get("state"))
		actions, err := s.service.ListActions(r.Context(), userID, state)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if actions == nil {
			actions = []models.Action{}
		}
		writeJSON(w, http.StatusOK, actions)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type snoozeRequest struct {
	Until time.Time `json:"until"`
}

type promiseRequest struct {
	PromisedDueAt *time.Time `json:"promised_due_at"`
}

type stateRequest struct {
	State models.ActionState `json:"state"`
}

// FitResponse wraps the fit result; Action is null when nothing fits.
type FitResponse struct {
	Minutes int                  `json:"minutes"`
	Action  *engine.ScoredAction `json:"action"`
}

// handleActionByID handles /actions/{id}/* and GET /actions/fit
func (s *Server) handleActionByID(w http.ResponseWriter, r *http.Request, userID string) {
	actionID, op := splitPath(r.URL.Path, "/actions/")
	if actionID == "" {
		http.Error(w, "action id required", http.StatusBadRequest)
		return
	}
	if actionID == "fit" && op == "" {
		s.handleFit(w, r, userID)
		return
	}

	ctx := r.Context()
	var (
		result interface{}
		err    error
	)
	switch {
	case op == "" && r.Method == http.MethodGet:
		result, err = s.service.GetAction(ctx, userID, actionID)
	case op == "complete" && r.Method == http.MethodPost:
		var events models.CompletionEvents
		if !decodeOptionalBody(w, r, &events) {
			return
		}
		result, err = s.service.CompleteAction(ctx, userID, actionID, events)
	case op == "snooze" && r.Method == http.MethodPost:
		var req snoozeRequest
		if !decodeBody(w, r, &req) {
			return
		}
		result, err = s.service.SnoozeAction(ctx, userID, actionID, req.Until)
	case op == "promise" && r.Method == http.MethodPost:
		var req promiseRequest
		if !decodeBody(w, r, &req) {
			return
		}
		result, err = s.service.PromiseAction(ctx, userID, actionID, req.PromisedDueAt)
	case op == "state" && r.Method == http.MethodPost:
		var req stateRequest
		if !decodeBody(w, r, &req) {
			return
		}
		result, err = s.service.SetActionState(ctx, userID, actionID, req.State)
	case op == "archive" && r.Method == http.MethodPost:
		result, err = s.service.ArchiveAction(ctx, userID, actionID)
	default:
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFit(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	minutes, err := strconv.Atoi(r.URL.Query().Get("minutes"))
	if err != nil {
		http.Error(w, "minutes must be an integer", http.StatusBadRequest)
		return
	}
	best, err := s.service.FitAction(r.Context(), userID, minutes)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FitResponse{Minutes: minutes, Action: best})
}

// --- Planning Handlers ---

// handlePlan handles GET /plan?date=YYYY-MM-DD
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	date, err := ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	plan, err := s.service.BuildPlan(r.Context(), userID, date)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// handleCapacity handles GET, PUT and DELETE /capacity?date=YYYY-MM-DD
func (s *Server) handleCapacity(w http.ResponseWriter, r *http.Request, userID string) {
	date, err := ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if date.IsZero() {
		date = s.service.now()
	}

	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		capacity, err := s.service.GetCapacity(ctx, userID, date)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, capacity)
	case http.MethodPut:
		var req CapacityInput
		if !decodeBody(w, r, &req) {
			return
		}
		o, err := s.service.SetCapacityOverride(ctx, userID, date, req)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, o)
	case http.MethodDelete:
		if err := s.service.ClearCapacityOverride(ctx, userID, date); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleDefaultCapacity handles PUT /capacity/default
func (s *Server) handleDefaultCapacity(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req CapacityInput
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.service.SetDefaultCapacity(r.Context(), userID, req.Level); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"level": string(req.Level)})
}

// handleBusy handles POST /calendar/busy
func (s *Server) handleBusy(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var blocks []models.BusyBlock
	if !decodeBody(w, r, &blocks) {
		return
	}
	stored, err := s.service.AddBusyBlocks(r.Context(), userID, blocks)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// handleDecisions handles GET /decisions?limit=N
func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	decisions, err := s.service.ListDecisions(r.Context(), userID, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if decisions == nil {
		decisions = []models.Decision{}
	}
	writeJSON(w, http.StatusOK, decisions)
}

// handleSweeper handles GET /sweeper
func (s *Server) handleSweeper(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.sweeper == nil {
		http.Error(w, "sweeper not running", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.sweeper.GetStats())
}

// --- Helpers ---

func splitPath(path, prefix string) (id, action string) {
	parts := strings.Split(strings.TrimPrefix(path, prefix), "/")
	if len(parts) == 0 {
		return "", ""
	}
	id = parts[0]
	if len(parts) > 1 {
		action = parts[1]
	}
	return id, action
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrMissingUser):
		status = http.StatusUnauthorized
	case errors.Is(err, ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, ErrRelationshipNotFound), errors.Is(err, ErrActionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrActionClosed), errors.Is(err, ErrTransitionNotAllowed):
		status = http.StatusConflict
	default:
		s.logger.Error("request failed", "error", err)
	}
	http.Error(w, err.Error(), status)
}

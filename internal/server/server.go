// Package server exposes the dispatch engine over HTTP. The boundary never
// surfaces provider failures as errors: anything past request validation
// comes back as a 200 with the structured dispatch result.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/lusosms/dispatch-engine/internal/dispatch"
	"github.com/lusosms/dispatch-engine/internal/models"
)

// Dispatcher is the orchestrator capability the server depends on.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID string, msg *models.OutboundMessage) (*models.DispatchResult, error)
}

// Server wires the dispatch endpoint into a chi router and bounds the
// number of dispatches in flight.
type Server struct {
	dispatcher Dispatcher
	logger     zerolog.Logger
	inFlight   *semaphore.Weighted
}

// New constructs a Server. maxInFlight caps concurrent dispatches; excess
// requests are answered with 503 instead of queueing behind slow
// providers.
func New(dispatcher Dispatcher, logger zerolog.Logger, maxInFlight int) (*Server, error) {
	if dispatcher == nil {
		return nil, errors.New("server: dispatcher dependency is required")
	}
	if maxInFlight < 1 {
		return nil, errors.New("server: max in-flight dispatches must be >= 1")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &Server{
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "http_server").Logger(),
		inFlight:   semaphore.NewWeighted(int64(maxInFlight)),
	}, nil
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Post("/v1/dispatch", s.handleDispatch)
	return r
}

type dispatchRequest struct {
	Message *models.OutboundMessage `json:"message"`
	UserID  string                  `json:"userId"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "request body is not valid JSON"})
		return
	}
	if req.Message == nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}
	if req.UserID == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "userId is required"})
		return
	}

	if !s.inFlight.TryAcquire(1) {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "dispatch capacity exhausted, retry shortly"})
		return
	}
	defer s.inFlight.Release(1)

	result, err := s.dispatcher.Dispatch(r.Context(), req.UserID, req.Message)
	if err != nil {
		var invalid *dispatch.ValidationError
		if errors.As(err, &invalid) {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: invalid.Error()})
			return
		}
		s.logger.Error().Err(err).Msg("dispatch failed unexpectedly")
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

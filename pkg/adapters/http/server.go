// Package http exposes hosted tours over a JSON API.
package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/aretw0/wizard/internal/logging"
	"github.com/aretw0/wizard/internal/runtime"
	"github.com/aretw0/wizard/pkg/domain"
	"github.com/aretw0/wizard/pkg/machine"
	"github.com/aretw0/wizard/pkg/session"
)

//go:embed openapi.yaml
var rawSpec []byte

// Spec returns the embedded OpenAPI document, loaded and validated once.
var Spec = sync.OnceValues(func() (*openapi3.T, error) {
	doc, err := openapi3.NewLoader().LoadFromData(rawSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi spec: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid openapi spec: %w", err)
	}
	return doc, nil
})

// Machines lists the tables a server can describe.
type Machines interface {
	Features() []string
	Table(key string) (*machine.Definition, bool)
}

// Server serves the session API.
type Server struct {
	sessions *session.Manager
	machines Machines
	streams  *StreamManager
	metrics    http.Handler
	version    string
	apiVersion string
	logger     *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates the API server.
func NewServer(sessions *session.Manager, machines Machines, opts ...Option) *Server {
	s := &Server{
		sessions: sessions,
		machines: machines,
		version:  "dev",
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	s.streams = NewStreamManager(s.logger)

	s.apiVersion = "unknown"
	if doc, err := Spec(); err != nil {
		s.logger.Error("openapi spec unusable", "err", err)
	} else if doc.Info != nil {
		s.apiVersion = doc.Info.Version
	}
	return s
}

// NewHandler creates the HTTP handler for a session manager.
func NewHandler(sessions *session.Manager, machines Machines, opts ...Option) http.Handler {
	return NewServer(sessions, machines, opts...).Routes()
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Get("/machines", s.ListMachines)
	r.Get("/machines/{key}", s.GetMachine)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Post("/", s.OpenSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Post("/tutorial", s.SendTutorialEvent)
			r.Post("/feature", s.SendFeatureEvent)
			r.Put("/features", s.SaveFeatures)
			r.Post("/complete", s.CompleteFeature)
			r.Post("/restart", s.RestartGuide)
			r.Get("/graph", s.GetSessionGraph)
			r.Get("/events", s.SubscribeEvents)
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "wizard-http",
		"version":     strings.TrimSpace(s.version),
		"api_version": s.apiVersion,
	})
}

type eventRequest struct {
	Type     domain.EventName `json:"type"`
	Features []string         `json:"features,omitempty"`
	Context  json.RawMessage  `json:"context,omitempty"`
}

func (e eventRequest) parse() (domain.Event, any, error) {
	if e.Type == "" {
		return domain.Event{}, nil, errors.New("event type is required")
	}
	var ext any
	if len(e.Context) > 0 && string(e.Context) != "null" {
		if err := json.Unmarshal(e.Context, &ext); err != nil {
			return domain.Event{}, nil, fmt.Errorf("invalid context: %w", err)
		}
	}
	return domain.Event{Name: e.Type, Features: e.Features}, ext, nil
}

type sessionResponse struct {
	ID       string           `json:"id"`
	Snapshot runtime.Snapshot `json:"snapshot"`
}

// OpenSession handles POST /sessions. Without an id in the body a new one is generated.
func (s *Server) OpenSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		s.badRequest(w, "OpenSession", err)
		return
	}
	if body.ID == "" {
		body.ID = uuid.NewString()
	}

	snap, err := s.sessions.Open(r.Context(), body.ID)
	if err != nil {
		s.fail(w, "OpenSession", err)
		return
	}
	s.publish(body.ID, snap)
	s.writeJSON(w, http.StatusCreated, sessionResponse{ID: body.ID, Snapshot: snap})
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.sessions.List())
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.sessions.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "GetSession", err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, "DeleteSession", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendTutorialEvent handles POST /sessions/{id}/tutorial.
func (s *Server) SendTutorialEvent(w http.ResponseWriter, r *http.Request) {
	s.sendEvent(w, r, "SendTutorialEvent", s.sessions.SendTutorial)
}

// SendFeatureEvent handles POST /sessions/{id}/feature.
func (s *Server) SendFeatureEvent(w http.ResponseWriter, r *http.Request) {
	s.sendEvent(w, r, "SendFeatureEvent", s.sessions.SendFeature)
}

type sendFunc func(ctx context.Context, id string, event domain.Event, ext any) (runtime.Snapshot, error)

func (s *Server) sendEvent(w http.ResponseWriter, r *http.Request, op string, send sendFunc) {
	var body eventRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.badRequest(w, op, err)
		return
	}
	event, ext, err := body.parse()
	if err != nil {
		s.badRequest(w, op, err)
		return
	}
	id := chi.URLParam(r, "id")
	s.respond(w, op, id)(send(r.Context(), id, event, ext))
}

// SaveFeatures handles PUT /sessions/{id}/features.
func (s *Server) SaveFeatures(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Features []string `json:"features"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.badRequest(w, "SaveFeatures", err)
		return
	}
	id := chi.URLParam(r, "id")
	s.respond(w, "SaveFeatures", id)(s.sessions.SaveFeatures(r.Context(), id, body.Features))
}

// CompleteFeature handles POST /sessions/{id}/complete.
func (s *Server) CompleteFeature(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.respond(w, "CompleteFeature", id)(s.sessions.CompleteFeature(r.Context(), id))
}

// RestartGuide handles POST /sessions/{id}/restart.
func (s *Server) RestartGuide(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.respond(w, "RestartGuide", id)(s.sessions.Restart(r.Context(), id))
}

// respond writes the snapshot of a session call and broadcasts it to subscribers.
func (s *Server) respond(w http.ResponseWriter, op, id string) func(runtime.Snapshot, error) {
	return func(snap runtime.Snapshot, err error) {
		if err != nil {
			if !errors.Is(err, domain.ErrSessionNotFound) && !errors.Is(err, session.ErrInvalidSessionID) {
				// A failed batch may still have moved the tour.
				s.publish(id, snap)
			}
			s.fail(w, op, err)
			return
		}
		s.publish(id, snap)
		s.writeJSON(w, http.StatusOK, snap)
	}
}

func (s *Server) publish(id string, snap runtime.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		s.logger.Error("snapshot encode failed", "session_id", id, "err", err)
		return
	}
	s.streams.Broadcast(id, string(data))
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnknownFeature),
		errors.Is(err, domain.ErrNoFeatures),
		errors.Is(err, session.ErrInvalidSessionID):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoFeatureMachine):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "err", err)
	} else {
		s.logger.Debug(op+" rejected", "err", err, "status", status)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) badRequest(w http.ResponseWriter, op string, err error) {
	s.logger.Warn(op+": invalid request body", "err", err)
	s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

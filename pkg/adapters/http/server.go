// Package http exposes the engine over a JSON API with a server-sent event
// stream of notifications and request diffs.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/arcflow"
	"github.com/aretw0/arcflow/internal/dto"
	"github.com/aretw0/arcflow/internal/logging"
	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/aretw0/arcflow/pkg/notify"
	"github.com/aretw0/arcflow/pkg/sanitize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/oapi-codegen/runtime"
)

// Header names carrying the caller identity. Authentication happens upstream.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// Engine is the part of arcflow.Engine the server needs.
type Engine interface {
	State(ctx context.Context) (*arcflow.State, error)
	CreateRequest(ctx context.Context, draft domain.Draft) (*domain.Request, error)
	GetRequest(ctx context.Context, id string) (*domain.Request, error)
	ListRequests(ctx context.Context) []*domain.Request
	TransitionRequest(ctx context.Context, id string, target domain.Status, notes string) (*domain.TransitionResult, error)
	GetAvailableTransitions(ctx context.Context, id string) ([]domain.Status, error)
	GetRequiredActions(ctx context.Context, id string) ([]string, error)
	GetWorkflowSteps(ctx context.Context, id string) ([]domain.WorkflowStepView, error)
	CalculateProgress(ctx context.Context, id string) (int, error)
	GetEstimatedCompletion(ctx context.Context, id string) (*time.Time, error)
	RecordSignoff(ctx context.Context, id, neighborID string, status domain.SignoffStatus, comment string) (*domain.TransitionResult, error)
	CastVote(ctx context.Context, id string, decision domain.VoteDecision, comment string) (*domain.Request, error)
	RecordInspection(ctx context.Context, id string, passed bool, notes string) (*domain.Request, error)
	AddComment(ctx context.Context, id, body string) (*domain.Request, error)
	GetUnreadNotifications(ctx context.Context, requestID string) ([]*domain.Notification, error)
	ListNotifications(ctx context.Context, requestID string) ([]*domain.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	ClearNotifications(ctx context.Context, requestID string) (int, error)
	Subscribe(requestID string) (<-chan string, func())
}

var _ Engine = (*arcflow.Engine)(nil)

// Server serves the API for one engine.
type Server struct {
	Engine   Engine
	logger   *slog.Logger
	metrics  http.Handler
	validate *validator.Validate
}

// Option configures the handler.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics mounts a metrics handler at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// NewHandler creates the HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine:   engine,
		logger:   logging.NewNop(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)
	r.Use(actorFromHeaders)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec())
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerHTML))
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Get("/state", s.GetState)
	r.Route("/requests", func(r chi.Router) {
		r.Get("/", s.ListRequests)
		r.Post("/", s.CreateRequest)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetRequest)
			r.Get("/transitions", s.GetAvailableTransitions)
			r.Post("/transitions", s.TransitionRequest)
			r.Get("/actions", s.GetRequiredActions)
			r.Get("/steps", s.GetWorkflowSteps)
			r.Get("/progress", s.GetProgress)
			r.Post("/signoffs", s.RecordSignoff)
			r.Post("/votes", s.CastVote)
			r.Post("/inspections", s.RecordInspection)
			r.Post("/comments", s.AddComment)
		})
	})
	r.Get("/notifications", s.ListNotifications)
	r.Delete("/notifications", s.ClearNotifications)
	r.Post("/notifications/{id}/read", s.MarkNotificationRead)
	r.Get("/events", s.SubscribeEvents)

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+HeaderActorID+", "+HeaderActorRole)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func actorFromHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := domain.Actor{
			ID:   strings.TrimSpace(r.Header.Get(HeaderActorID)),
			Role: strings.TrimSpace(r.Header.Get(HeaderActorRole)),
		}
		next.ServeHTTP(w, r.WithContext(arcflow.WithActor(r.Context(), actor)))
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>arcflow API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if doc, err := GetSwagger(); err == nil && doc.Info != nil {
		apiVersion = doc.Info.Version
	} else if err != nil {
		s.logger.Error("openapi spec unavailable", "err", err)
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":         "arcflow-http",
		"version":     arcflow.Version,
		"api_version": apiVersion,
	})
}

// GetState handles GET /state.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	st, err := s.Engine.State(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

// ListRequests handles GET /requests.
func (s *Server) ListRequests(w http.ResponseWriter, r *http.Request) {
	var status *string
	if err := runtime.BindQueryParameter("form", true, false, "status", r.URL.Query(), &status); err != nil {
		s.writeBadRequest(w, fmt.Errorf("invalid status parameter: %w", err))
		return
	}

	out := []dto.RequestSummary{}
	for _, req := range s.Engine.ListRequests(r.Context()) {
		if status != nil && *status != "" && string(req.Status) != *status {
			continue
		}
		out = append(out, dto.Summarize(req))
	}
	s.writeJSON(w, http.StatusOK, out)
}

// CreateRequest handles POST /requests.
func (s *Server) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var draft domain.Draft
	if !s.decode(w, r, &draft) {
		return
	}
	req, err := s.Engine.CreateRequest(r.Context(), draft)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Location", "/requests/"+req.ID)
	s.writeJSON(w, http.StatusCreated, req)
}

// GetRequest handles GET /requests/{id}.
func (s *Server) GetRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	req, err := s.Engine.GetRequest(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, req)
}

// GetAvailableTransitions handles GET /requests/{id}/transitions.
func (s *Server) GetAvailableTransitions(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	targets, err := s.Engine.GetAvailableTransitions(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, targets)
}

// TransitionRequest handles POST /requests/{id}/transitions.
func (s *Server) TransitionRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var body dto.TransitionInput
	if !s.decode(w, r, &body) {
		return
	}
	res, err := s.Engine.TransitionRequest(r.Context(), id, domain.Status(body.To), body.Notes)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// GetRequiredActions handles GET /requests/{id}/actions.
func (s *Server) GetRequiredActions(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	todo, err := s.Engine.GetRequiredActions(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, todo)
}

// GetWorkflowSteps handles GET /requests/{id}/steps.
func (s *Server) GetWorkflowSteps(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	steps, err := s.Engine.GetWorkflowSteps(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, steps)
}

// GetProgress handles GET /requests/{id}/progress.
func (s *Server) GetProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	req, err := s.Engine.GetRequest(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	pct, err := s.Engine.CalculateProgress(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	eta, err := s.Engine.GetEstimatedCompletion(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, dto.ProgressView{
		RequestID:           id,
		Status:              req.Status,
		Progress:            pct,
		EstimatedCompletion: eta,
	})
}

// RecordSignoff handles POST /requests/{id}/signoffs.
func (s *Server) RecordSignoff(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var body dto.SignoffInput
	if !s.decode(w, r, &body) {
		return
	}
	res, err := s.Engine.RecordSignoff(r.Context(), id, body.NeighborID, domain.SignoffStatus(body.Status), body.Comment)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// CastVote handles POST /requests/{id}/votes.
func (s *Server) CastVote(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var body dto.VoteInput
	if !s.decode(w, r, &body) {
		return
	}
	req, err := s.Engine.CastVote(r.Context(), id, domain.VoteDecision(body.Decision), body.Comment)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, req)
}

// RecordInspection handles POST /requests/{id}/inspections.
func (s *Server) RecordInspection(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var body dto.InspectionInput
	if !s.decode(w, r, &body) {
		return
	}
	req, err := s.Engine.RecordInspection(r.Context(), id, body.Passed, body.Notes)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, req)
}

// AddComment handles POST /requests/{id}/comments.
func (s *Server) AddComment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var body dto.CommentInput
	if !s.decode(w, r, &body) {
		return
	}
	req, err := s.Engine.AddComment(r.Context(), id, body.Body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, req)
}

// ListNotifications handles GET /notifications.
func (s *Server) ListNotifications(w http.ResponseWriter, r *http.Request) {
	var requestID *string
	var unread *bool
	if err := runtime.BindQueryParameter("form", true, false, "request_id", r.URL.Query(), &requestID); err != nil {
		s.writeBadRequest(w, fmt.Errorf("invalid request_id parameter: %w", err))
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "unread", r.URL.Query(), &unread); err != nil {
		s.writeBadRequest(w, fmt.Errorf("invalid unread parameter: %w", err))
		return
	}

	var (
		out []*domain.Notification
		err error
	)
	if unread != nil && *unread {
		out, err = s.Engine.GetUnreadNotifications(r.Context(), deref(requestID))
	} else {
		out, err = s.Engine.ListNotifications(r.Context(), deref(requestID))
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	if out == nil {
		out = []*domain.Notification{}
	}
	s.writeJSON(w, http.StatusOK, out)
}

// ClearNotifications handles DELETE /notifications.
func (s *Server) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	var requestID *string
	if err := runtime.BindQueryParameter("form", true, false, "request_id", r.URL.Query(), &requestID); err != nil {
		s.writeBadRequest(w, fmt.Errorf("invalid request_id parameter: %w", err))
		return
	}
	n, err := s.Engine.ClearNotifications(r.Context(), deref(requestID))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

// MarkNotificationRead handles POST /notifications/{id}/read.
func (s *Server) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.Engine.MarkNotificationRead(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubscribeEvents handles GET /events (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	var requestID, kinds *string
	if err := runtime.BindQueryParameter("form", true, false, "request_id", r.URL.Query(), &requestID); err != nil {
		s.writeBadRequest(w, fmt.Errorf("invalid request_id parameter: %w", err))
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "kind", r.URL.Query(), &kinds); err != nil {
		s.writeBadRequest(w, fmt.Errorf("invalid kind parameter: %w", err))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	keep := make(map[string]bool)
	if kinds != nil {
		for _, k := range strings.Split(*kinds, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keep[k] = true
			}
		}
	}

	ch, cancel := s.Engine.Subscribe(deref(requestID))
	defer cancel()
	s.logger.Info("SSE: subscribed", "request_id", deref(requestID))

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE: client disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			kind := "message"
			var ev notify.Event
			if err := json.Unmarshal([]byte(msg), &ev); err == nil && ev.Kind != "" {
				kind = ev.Kind
			}
			if len(keep) > 0 && !keep[kind] {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", kind, msg)
			flusher.Flush()
		}
	}
}

// -- Helpers --

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		s.writeBadRequest(w, fmt.Errorf("invalid id: %w", err))
		return "", false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeBadRequest(w, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	if err := sanitize.Fields(v); err != nil {
		s.writeJSON(w, http.StatusUnprocessableEntity, dto.ErrorBody{Error: "validation_failed", Message: err.Error()})
		return false
	}
	switch v.(type) {
	case *domain.Draft:
		// Drafts are validated by the request store with the owner filled in.
		return true
	}
	if err := s.validate.Struct(v); err != nil {
		s.writeJSON(w, http.StatusUnprocessableEntity, dto.ErrorBody{Error: "validation_failed", Message: err.Error()})
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

func (s *Server) writeBadRequest(w http.ResponseWriter, err error) {
	s.logger.Warn("bad request", "err", err)
	s.writeJSON(w, http.StatusBadRequest, dto.ErrorBody{Error: "bad_request", Message: err.Error()})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "err", err)
	}
	s.writeJSON(w, status, dto.ErrorBody{Error: code, Message: err.Error()})
}

// StatusFor maps an engine error to an HTTP status and error code.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrRequestNotFound), errors.Is(err, domain.ErrNotificationNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden, "permission_denied"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrConcurrentModification):
		return http.StatusConflict, "concurrent_modification"
	case errors.Is(err, domain.ErrValidationFailed):
		return http.StatusUnprocessableEntity, "validation_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/conversation"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/runner"
	"github.com/aretw0/parley/pkg/session"
	"github.com/aretw0/parley/pkg/tools"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// MessageRequest is the body of POST /conversations/{id}/messages.
type MessageRequest struct {
	Content string `json:"content"`
}

// SignalRequest is the body of POST /conversations/{id}/signals.
type SignalRequest struct {
	Type string         `json:"type"`
	Data any            `json:"data,omitempty"`
	Meta map[string]any `json:"meta,omitempty"`
}

// CreateRequest is the optional body of POST /conversations.
type CreateRequest struct {
	ID           string `json:"id,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// ErrorResponse is written for every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server exposes conversations over HTTP.
type Server struct {
	Engine       ports.Processor
	Sessions     *session.Manager
	Tools        *tools.Registry
	Streams      *StreamManager
	Metrics      http.Handler
	SystemPrompt string
	Sanitizer    runner.Sanitizer
	Logger       *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithTools lists the registry's tools on GET /tools.
func WithTools(reg *tools.Registry) Option {
	return func(s *Server) { s.Tools = reg }
}

// WithMetrics mounts h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.Metrics = h }
}

// WithSystemPrompt seeds conversations created through the API.
func WithSystemPrompt(prompt string) Option {
	return func(s *Server) { s.SystemPrompt = prompt }
}

// WithMaxInputSize sets the byte limit of message content and signal payloads.
func WithMaxInputSize(n int) Option {
	return func(s *Server) { s.Sanitizer = runner.NewSanitizer(n) }
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.Logger = logger }
}

// NewServer wires a server around engine and sessions.
func NewServer(engine ports.Processor, sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		Engine:   engine,
		Sessions: sessions,
		Streams:   NewStreamManager(),
		Sanitizer: runner.NewSanitizer(runner.DefaultMaxInputSize),
		Logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.Logger
	return s
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine ports.Processor, sessions *session.Manager, opts ...Option) http.Handler {
	return NewServer(engine, sessions, opts...).Handler()
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/tools", s.ListTools)
	r.Get("/openapi.json", s.GetOpenAPI)
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}

	r.Route("/conversations", func(r chi.Router) {
		r.Get("/", s.ListConversations)
		r.Post("/", s.CreateConversation)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetConversation)
			r.Delete("/", s.DeleteConversation)
			r.Post("/messages", s.PostMessage)
			r.Post("/signals", s.PostSignal)
			r.Get("/events", s.SubscribeEvents)
		})
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Parley API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.json',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    "parley",
		"version": parley.Version,
	})
}

// ListTools handles GET /tools.
func (s *Server) ListTools(w http.ResponseWriter, r *http.Request) {
	specs := []domain.ToolSpec{}
	if s.Tools != nil {
		specs = s.Tools.Specs()
	}
	writeJSON(w, http.StatusOK, specs)
}

// GetOpenAPI handles GET /openapi.json.
func (s *Server) GetOpenAPI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, OpenAPI())
}

// ListConversations handles GET /conversations.
func (s *Server) ListConversations(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Sessions.List(r.Context())
	if err != nil {
		s.Logger.Error("List conversations failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"conversations": ids})
}

// CreateConversation handles POST /conversations.
// An empty id gets a generated one; an existing conversation is returned as is.
func (s *Server) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var body CreateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
			return
		}
	}
	if body.ID == "" {
		body.ID = uuid.NewString()
	}
	if body.SystemPrompt == "" {
		body.SystemPrompt = s.SystemPrompt
	}
	st, err := s.Sessions.LoadOrStart(r.Context(), body.ID, body.SystemPrompt)
	if err != nil {
		s.storeError(w, body.ID, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// GetConversation handles GET /conversations/{id}.
func (s *Server) GetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := s.Sessions.Load(r.Context(), id)
	if err != nil {
		s.storeError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// DeleteConversation handles DELETE /conversations/{id}.
func (s *Server) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Sessions.Delete(r.Context(), id); err != nil {
		s.storeError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PostMessage handles POST /conversations/{id}/messages.
func (s *Server) PostMessage(w http.ResponseWriter, r *http.Request) {
	var body MessageRequest
	if !s.decodeBody(w, r, &body, "PostMessage") {
		return
	}
	text, err := s.Sanitizer.Text(body.Content)
	if err != nil {
		writeInputError(w, err)
		return
	}
	s.process(w, r, domain.NewUserMessage(text))
}

// PostSignal handles POST /conversations/{id}/signals.
// Any signal type may be injected; the engine rejects unknown ones.
// Payload and meta share the input size limit.
func (s *Server) PostSignal(w http.ResponseWriter, r *http.Request) {
	var body SignalRequest
	if !s.decodeBody(w, r, &body, "PostSignal") {
		return
	}
	clean, err := s.Sanitizer.Value(map[string]any{"data": body.Data, "meta": anyMap(body.Meta)})
	if err != nil {
		writeInputError(w, err)
		return
	}
	parts := clean.(map[string]any)
	sig := domain.Signal{Type: domain.SignalType(body.Type), Data: parts["data"]}
	if meta, ok := parts["meta"].(map[string]any); ok && len(meta) > 0 {
		sig.Meta = meta
	}
	s.process(w, r, sig)
}

// decodeBody reads a JSON body no larger than what the input limit can need.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any, op string) bool {
	limit := int64(s.Sanitizer.MaxSize)
	if limit < 1 {
		limit = runner.DefaultMaxInputSize
	}
	// Escaped characters take up to six bytes on the wire.
	r.Body = http.MaxBytesReader(w, r.Body, 6*limit+bodyOverhead)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("%w: request body over %d bytes", runner.ErrInputTooLarge, tooBig.Limit))
			return false
		}
		s.Logger.Warn(op+": Invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, errors.New("invalid request body"))
		return false
	}
	return true
}

// bodyOverhead leaves room for the JSON envelope around the limited content.
const bodyOverhead = 1024

func writeInputError(w http.ResponseWriter, err error) {
	if errors.Is(err, runner.ErrInputTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	writeError(w, http.StatusBadRequest, err)
}

func anyMap(m map[string]any) any {
	if m == nil {
		return nil
	}
	return m
}

func (s *Server) process(w http.ResponseWriter, r *http.Request, sig domain.Signal) {
	id := chi.URLParam(r, "id")

	var res *ports.Result
	_, err := s.Sessions.Update(r.Context(), id, s.SystemPrompt, func(ctx context.Context, st *conversation.State) error {
		out, err := s.Engine.Process(ctx, sig, st)
		if err != nil {
			return err
		}
		*st = *out.State
		res = out
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSignal) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		s.Logger.Error("Process failed", "conversation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	env := runner.NewEnvelope(res)
	if payload, err := json.Marshal(env); err == nil {
		s.Streams.Broadcast(id, string(payload))
	}
	writeJSON(w, http.StatusOK, env)
}

func (s *Server) storeError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, domain.ErrConversationNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	s.Logger.Error("Store operation failed", "conversation_id", id, "error", err)
	writeError(w, http.StatusInternalServerError, err)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

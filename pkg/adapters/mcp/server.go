package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/conversation"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/runner"
	"github.com/aretw0/parley/pkg/session"
	"github.com/aretw0/parley/pkg/tools"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	toolsURI        = "parley://tools"
	conversationURI = "parley://conversations/"
)

// MessageArgs are the arguments of the send_message tool.
type MessageArgs struct {
	ConversationID string `json:"conversation_id"`
	Content        string `json:"content"`
}

// SignalArgs are the arguments of the send_signal tool.
type SignalArgs struct {
	ConversationID string `json:"conversation_id"`
	Type           string `json:"type"`
	Data           string `json:"data,omitempty"`
}

// TurnResponse is the structured output of send_message and send_signal.
type TurnResponse struct {
	ConversationID string         `json:"conversation_id" jsonschema_description:"The conversation the signal was applied to"`
	Type           string         `json:"type" jsonschema_description:"Type of the final signal"`
	Content        string         `json:"content" jsonschema_description:"Final response text"`
	Meta           map[string]any `json:"meta,omitempty" jsonschema_description:"Final signal metadata"`
	Steps          int            `json:"steps" jsonschema_description:"Signals emitted during the run"`
	Interrupted    bool           `json:"interrupted" jsonschema_description:"Set when the step budget or deadline cut the run short"`
}

// Server exposes parley conversations as an MCP server.
type Server struct {
	engine       ports.Processor
	sessions     *session.Manager
	registry     *tools.Registry
	systemPrompt string
	sanitizer    runner.Sanitizer
	logger       *slog.Logger
	mcpServer    *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithTools exposes the registry through list_tools and the tools resource.
func WithTools(reg *tools.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// WithSystemPrompt seeds conversations created through MCP.
func WithSystemPrompt(prompt string) Option {
	return func(s *Server) { s.systemPrompt = prompt }
}

// WithMaxInputSize sets the byte limit of message content and signal data.
func WithMaxInputSize(n int) Option {
	return func(s *Server) { s.sanitizer = runner.NewSanitizer(n) }
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates a new MCP Server instance.
func NewServer(engine ports.Processor, sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		sessions:  sessions,
		sanitizer: runner.NewSanitizer(runner.DefaultMaxInputSize),
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("parley-mcp", strings.TrimSpace(parley.Version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("send_message",
		mcp.WithDescription("Send a user message to a conversation and return the final response."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation to append to; created on first use")),
		mcp.WithString("content", mcp.Required(), mcp.Description("User message text")),
		mcp.WithOutputSchema[TurnResponse](),
	), mcp.NewStructuredToolHandler(s.handleSendMessage))

	s.mcpServer.AddTool(mcp.NewTool("send_signal",
		mcp.WithDescription("Inject a raw signal (e.g. task_state) into a conversation."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Target conversation")),
		mcp.WithString("type", mcp.Required(), mcp.Description("Signal type")),
		mcp.WithString("data", mcp.Description("JSON payload of the signal")),
		mcp.WithOutputSchema[TurnResponse](),
	), mcp.NewStructuredToolHandler(s.handleSendSignal))

	s.mcpServer.AddTool(mcp.NewTool("get_conversation",
		mcp.WithDescription("Return the stored record of a conversation."),
		mcp.WithString("conversation_id", mcp.Required(), mcp.Description("Conversation id")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("conversation_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		st, err := s.sessions.Load(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(st)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("list_tools",
		mcp.WithDescription("List the tools available to the conversation engine."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jsonBytes, _ := json.Marshal(s.toolSpecs())
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})
}

func (s *Server) handleSendMessage(ctx context.Context, request mcp.CallToolRequest, args MessageArgs) (TurnResponse, error) {
	clean, err := s.sanitizer.Text(args.Content)
	if err != nil {
		s.logger.Warn("MCP send_message: Input rejected", "error", err, "size", len(args.Content))
		return TurnResponse{}, fmt.Errorf("input rejected: %w", err)
	}
	return s.process(ctx, args.ConversationID, domain.NewUserMessage(clean))
}

func (s *Server) handleSendSignal(ctx context.Context, request mcp.CallToolRequest, args SignalArgs) (TurnResponse, error) {
	sig := domain.Signal{Type: domain.SignalType(args.Type)}
	if args.Data != "" {
		var data any
		if err := json.Unmarshal([]byte(args.Data), &data); err != nil {
			return TurnResponse{}, fmt.Errorf("invalid data: %w", err)
		}
		clean, err := s.sanitizer.Value(data)
		if err != nil {
			s.logger.Warn("MCP send_signal: Input rejected", "error", err, "size", len(args.Data))
			return TurnResponse{}, fmt.Errorf("input rejected: %w", err)
		}
		sig.Data = clean
	}
	return s.process(ctx, args.ConversationID, sig)
}

func (s *Server) process(ctx context.Context, id string, sig domain.Signal) (TurnResponse, error) {
	if id == "" {
		return TurnResponse{}, errors.New("conversation_id is required")
	}

	var res *ports.Result
	_, err := s.sessions.Update(ctx, id, s.systemPrompt, func(ctx context.Context, st *conversation.State) error {
		out, err := s.engine.Process(ctx, sig, st)
		if err != nil {
			return err
		}
		*st = *out.State
		res = out
		return nil
	})
	if err != nil {
		s.logger.Error("MCP: Process failed", "conversation_id", id, "error", err)
		return TurnResponse{}, fmt.Errorf("process failed: %w", err)
	}

	env := runner.NewEnvelope(res)
	return TurnResponse{
		ConversationID: env.ConversationID,
		Type:           env.Type,
		Content:        env.Content,
		Meta:           env.Meta,
		Steps:          env.Steps,
		Interrupted:    env.Interrupted,
	}, nil
}

func (s *Server) toolSpecs() []domain.ToolSpec {
	if s.registry == nil {
		return []domain.ToolSpec{}
	}
	return s.registry.Specs()
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(toolsURI, "Registered Tools",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, _ := json.Marshal(s.toolSpecs())
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      toolsURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})

	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(conversationURI+"{id}", "Conversation Record",
		mcp.WithTemplateMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		id := strings.TrimPrefix(request.Params.URI, conversationURI)
		st, err := s.sessions.Load(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load conversation: %w", err)
		}
		jsonBytes, _ := json.Marshal(st)
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      request.Params.URI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

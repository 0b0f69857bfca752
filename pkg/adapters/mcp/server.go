// Package mcp exposes the engine as Model Context Protocol tools so agents
// can file, review and track ARC requests.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/arcflow"
	"github.com/aretw0/arcflow/internal/dto"
	"github.com/aretw0/arcflow/internal/logging"
	"github.com/aretw0/arcflow/pkg/domain"
	"github.com/aretw0/arcflow/pkg/sanitize"
	"github.com/go-playground/validator/v10"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"
)

// Engine is the part of arcflow.Engine the tools need.
type Engine interface {
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
}

var _ Engine = (*arcflow.Engine)(nil)

// Caller identifies who a tool call acts for. MCP carries no headers, so
// every mutating tool takes it as arguments.
type Caller struct {
	ActorID   string `mapstructure:"actor_id" validate:"required"`
	ActorRole string `mapstructure:"actor_role" validate:"required"`
}

// Target names the request a tool acts on.
type Target struct {
	Caller `mapstructure:",squash"`
	ID     string `mapstructure:"id" validate:"required"`
}

type createArgs struct {
	Caller `mapstructure:",squash"`
	// Drafts are validated by the request store once the owner is known.
	Draft domain.Draft `mapstructure:"draft" validate:"-"`
}

type transitionArgs struct {
	Target              `mapstructure:",squash"`
	dto.TransitionInput `mapstructure:",squash"`
}

type signoffArgs struct {
	Target           `mapstructure:",squash"`
	dto.SignoffInput `mapstructure:",squash"`
}

type voteArgs struct {
	Target        `mapstructure:",squash"`
	dto.VoteInput `mapstructure:",squash"`
}

type inspectionArgs struct {
	Target              `mapstructure:",squash"`
	dto.InspectionInput `mapstructure:",squash"`
}

type commentArgs struct {
	Target           `mapstructure:",squash"`
	dto.CommentInput `mapstructure:",squash"`
}

type notificationArgs struct {
	RequestID string `mapstructure:"request_id"`
	Unread    bool   `mapstructure:"unread"`
}

type markReadArgs struct {
	ID string `mapstructure:"id" validate:"required"`
}

type handlerFunc func(ctx context.Context, args map[string]any) (any, error)

// Server wraps the engine and exposes it as an MCP server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
	handlers  map[string]handlerFunc
	validate  *validator.Validate
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a new MCP server for the engine.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		mcpServer: server.NewMCPServer("arcflow-mcp", arcflow.Version),
		handlers:  make(map[string]handlerFunc),
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP SSE transport on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
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
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("actor_id", mcp.Required(), mcp.Description("ID of the person acting")),
		mcp.WithString("actor_role", mcp.Required(), mcp.Description("Role of the person acting"),
			mcp.Enum(domain.RoleHomeowner, domain.RoleNeighbor, domain.RoleReviewer, domain.RoleChair,
				domain.RoleBoardMember, domain.RoleInspector, domain.RoleAdmin)),
	}
}

func requestTool(name, description string, extra ...mcp.ToolOption) mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription(description),
		mcp.WithString("id", mcp.Required(), mcp.Description("Request ID")),
	}
	opts = append(opts, callerOptions()...)
	opts = append(opts, extra...)
	return mcp.NewTool(name, opts...)
}

func (s *Server) addTool(tool mcp.Tool, h handlerFunc) {
	s.handlers[tool.Name] = h
	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.call(ctx, tool.Name, request.GetArguments()), nil
	})
}

// call runs a registered tool. Engine errors become tool errors so the
// agent sees them instead of a protocol failure.
func (s *Server) call(ctx context.Context, name string, args map[string]any) *mcp.CallToolResult {
	h, ok := s.handlers[name]
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown tool %q", name))
	}
	out, err := h(ctx, args)
	if err != nil {
		s.logger.Warn("MCP tool failed", "tool", name, "err", err)
		return mcp.NewToolResultError(err.Error())
	}
	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

// bind decodes tool arguments into v and validates it.
func (s *Server) bind(args map[string]any, v any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           v,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidationFailed, err)
	}
	if err := sanitize.Fields(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidationFailed, err)
	}
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidationFailed, err)
	}
	return nil
}

func (c Caller) context(ctx context.Context) context.Context {
	return arcflow.WithActor(ctx, domain.Actor{ID: c.ActorID, Role: c.ActorRole})
}

func (s *Server) registerTools() {
	s.addTool(mcp.NewTool("create_request",
		append([]mcp.ToolOption{
			mcp.WithDescription("File a new architectural review request. The caller becomes the owner."),
			mcp.WithObject("draft", mcp.Required(), mcp.Description(
				"Request draft: title, description, classification, submitter{name, property_address, email, phone}, documents, neighbors[{id, name}]")),
		}, callerOptions()...)...,
	), func(ctx context.Context, raw map[string]any) (any, error) {
		var args createArgs
		if err := s.bind(raw, &args); err != nil {
			return nil, err
		}
		return s.engine.CreateRequest(args.context(ctx), args.Draft)
	})

	s.addTool(mcp.NewTool("list_requests",
		mcp.WithDescription("List requests, optionally filtered by status."),
		mcp.WithString("status", mcp.Description("Only return requests in this status")),
	), func(ctx context.Context, raw map[string]any) (any, error) {
		var args struct {
			Status string `mapstructure:"status"`
		}
		if err := s.bind(raw, &args); err != nil {
			return nil, err
		}
		out := []dto.RequestSummary{}
		for _, r := range s.engine.ListRequests(ctx) {
			if args.Status == "" || string(r.Status) == args.Status {
				out = append(out, dto.Summarize(r))
			}
		}
		return out, nil
	})

	s.addTool(requestTool("get_request", "Fetch a request with its full history."),
		func(ctx context.Context, raw map[string]any) (any, error) {
			var args Target
			if err := s.bind(raw, &args); err != nil {
				return nil, err
			}
			return s.engine.GetRequest(args.context(ctx), args.ID)
		})

	s.addTool(requestTool("available_transitions", "List the statuses the caller may move the request to."),
		func(ctx context.Context, raw map[string]any) (any, error) {
			var args Target
			if err := s.bind(raw, &args); err != nil {
				return nil, err
			}
			return s.engine.GetAvailableTransitions(args.context(ctx), args.ID)
		})

	s.addTool(requestTool("transition_request", "Move the request to another status.",
		mcp.WithString("to", mcp.Required(), mcp.Description("Target status")),
		mcp.WithString("notes", mcp.Description("Reason, required for denials and returns")),
	), func(ctx context.Context, raw map[string]any) (any, error) {
		var args transitionArgs
		if err := s.bind(raw, &args); err != nil {
			return nil, err
		}
		return s.engine.TransitionRequest(args.context(ctx), args.ID, domain.Status(args.To), args.Notes)
	})

	s.addTool(requestTool("required_actions", "Describe what the request is waiting on."),
		func(ctx context.Context, raw map[string]any) (any, error) {
			var args Target
			if err := s.bind(raw, &args); err != nil {
				return nil, err
			}
			return s.engine.GetRequiredActions(args.context(ctx), args.ID)
		})

	s.addTool(requestTool("workflow_steps", "Show the request's workflow steps and their state."),
		func(ctx context.Context, raw map[string]any) (any, error) {
			var args Target
			if err := s.bind(raw, &args); err != nil {
				return nil, err
			}
			return s.engine.GetWorkflowSteps(args.context(ctx), args.ID)
		})

	s.addTool(requestTool("get_progress", "Report progress percentage and estimated completion."),
		func(ctx context.Context, raw map[string]any) (any, error) {
			var args Target
			if err := s.bind(raw, &args); err != nil {
				return nil, err
			}
			ctx = args.context(ctx)
			req, err := s.engine.GetRequest(ctx, args.ID)
			if err != nil {
				return nil, err
			}
			pct, err := s.engine.CalculateProgress(ctx, args.ID)
			if err != nil {
				return nil, err
			}
			eta, err := s.engine.GetEstimatedCompletion(ctx, args.ID)
			if err != nil {
				return nil, err
			}
			return dto.ProgressView{RequestID: req.ID, Status: req.Status, Progress: pct, EstimatedCompletion: eta}, nil
		})

	s.addTool(requestTool("record_signoff", "Record a neighbor's sign-off or objection.",
		mcp.WithString("neighbor_id", mcp.Required(), mcp.Description("Neighbor being recorded")),
		mcp.WithString("status", mcp.Required(), mcp.Enum("signed", "objected", "pending")),
		mcp.WithString("comment", mcp.Description("Optional comment")),
	), func(ctx context.Context, raw map[string]any) (any, error) {
		var args signoffArgs
		if err := s.bind(raw, &args); err != nil {
			return nil, err
		}
		return s.engine.RecordSignoff(args.context(ctx), args.ID, args.NeighborID, domain.SignoffStatus(args.Status), args.Comment)
	})

	s.addTool(requestTool("cast_vote", "Cast the caller's board vote.",
		mcp.WithString("decision", mcp.Required(), mcp.Enum("approve", "deny", "abstain")),
		mcp.WithString("comment", mcp.Description("Optional comment")),
	), func(ctx context.Context, raw map[string]any) (any, error) {
		var args voteArgs
		if err := s.bind(raw, &args); err != nil {
			return nil, err
		}
		return s.engine.CastVote(args.context(ctx), args.ID, domain.VoteDecision(args.Decision), args.Comment)
	})

	s.addTool(requestTool("record_inspection", "Record an inspection outcome.",
		mcp.WithBoolean("passed", mcp.Required()),
		mcp.WithString("notes", mcp.Description("Inspector notes")),
	), func(ctx context.Context, raw map[string]any) (any, error) {
		var args inspectionArgs
		if err := s.bind(raw, &args); err != nil {
			return nil, err
		}
		return s.engine.RecordInspection(args.context(ctx), args.ID, args.Passed, args.Notes)
	})

	s.addTool(requestTool("add_comment", "Append a comment to the request thread.",
		mcp.WithString("body", mcp.Required()),
	), func(ctx context.Context, raw map[string]any) (any, error) {
		var args commentArgs
		if err := s.bind(raw, &args); err != nil {
			return nil, err
		}
		return s.engine.AddComment(args.context(ctx), args.ID, args.Body)
	})

	s.addTool(mcp.NewTool("list_notifications",
		mcp.WithDescription("List notifications, optionally scoped to a request or to unread ones."),
		mcp.WithString("request_id", mcp.Description("Scope to one request")),
		mcp.WithBoolean("unread", mcp.Description("Only unread notifications")),
	), func(ctx context.Context, raw map[string]any) (any, error) {
		var args notificationArgs
		if err := s.bind(raw, &args); err != nil {
			return nil, err
		}
		if args.Unread {
			return s.engine.GetUnreadNotifications(ctx, args.RequestID)
		}
		return s.engine.ListNotifications(ctx, args.RequestID)
	})

	s.addTool(mcp.NewTool("mark_notification_read",
		mcp.WithDescription("Mark a notification as read."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Notification ID")),
	), func(ctx context.Context, raw map[string]any) (any, error) {
		var args markReadArgs
		if err := s.bind(raw, &args); err != nil {
			return nil, err
		}
		if err := s.engine.MarkNotificationRead(ctx, args.ID); err != nil {
			return nil, err
		}
		return map[string]string{"status": "read"}, nil
	})

	s.addTool(mcp.NewTool("clear_notifications",
		mcp.WithDescription("Delete notifications, optionally scoped to a request."),
		mcp.WithString("request_id", mcp.Description("Scope to one request")),
	), func(ctx context.Context, raw map[string]any) (any, error) {
		var args struct {
			RequestID string `mapstructure:"request_id"`
		}
		if err := s.bind(raw, &args); err != nil {
			return nil, err
		}
		n, err := s.engine.ClearNotifications(ctx, args.RequestID)
		if err != nil {
			return nil, err
		}
		return map[string]int{"removed": n}, nil
	})
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("arcflow://requests", "ARC requests",
		mcp.WithResourceDescription("Summaries of every tracked request"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		out := []dto.RequestSummary{}
		for _, r := range s.engine.ListRequests(ctx) {
			out = append(out, dto.Summarize(r))
		}
		data, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("failed to encode requests: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "arcflow://requests",
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

// Package mcp exposes tour sessions as Model Context Protocol tools, so an assistant
// can drive a user's tour alongside them.
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

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aretw0/wizard/internal/presentation/graph"
	"github.com/aretw0/wizard/internal/runtime"
	"github.com/aretw0/wizard/pkg/domain"
	"github.com/aretw0/wizard/pkg/machine"
	"github.com/aretw0/wizard/pkg/machines"
	"github.com/aretw0/wizard/pkg/session"
)

const machinesURI = "wizard://machines"

// SessionResponse is the structured result of every session tool.
type SessionResponse struct {
	SessionID string           `json:"sessionId" jsonschema_description:"The session the call was made on"`
	Snapshot  runtime.Snapshot `json:"snapshot" jsonschema_description:"The observable state of the tour after the call"`
}

// Machines is the table source the graph tool and resources read.
type Machines interface {
	Features() []string
	Table(key string) (*machine.Definition, bool)
}

// Server wraps a session manager and exposes it as an MCP Server.
type Server struct {
	sessions  *session.Manager
	machines  Machines
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP Server instance.
func NewServer(sessions *session.Manager, tables Machines, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		sessions:  sessions,
		machines:  tables,
		mcpServer: server.NewMCPServer("wizard-mcp", version),
		logger:    logger,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops when ctx is done.
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

	// Channel to listen for errors coming from the listener.
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

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	sessionID := mcp.WithString("session_id", mcp.Required(), mcp.Description("The tour session"))

	s.mcpServer.AddTool(mcp.NewTool("open_session",
		mcp.WithDescription("Start a tour session, or resume it from storage."),
		sessionID,
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleOpen))

	s.mcpServer.AddTool(mcp.NewTool("get_snapshot",
		mcp.WithDescription("Read the current state of a tour session."),
		sessionID,
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleSnapshot))

	s.mcpServer.AddTool(mcp.NewTool("send_event",
		mcp.WithDescription("Send an event (CONTINUE, REPEAT, DONE, PAUSE, DISMISS...) to the tutorial or feature machine."),
		sessionID,
		mcp.WithString("event", mcp.Required(), mcp.Description("Event name")),
		mcp.WithString("machine", mcp.Description("tutorial (default) or feature")),
		mcp.WithString("features", mcp.Description("Comma separated feature list carried by the event")),
		mcp.WithString("context", mcp.Description("JSON value of the host's component state")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleSendEvent))

	s.mcpServer.AddTool(mcp.NewTool("save_features",
		mcp.WithDescription("Replace the feature list of a session and start its first feature."),
		sessionID,
		mcp.WithString("features", mcp.Required(), mcp.Description("Comma separated feature list")),
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleSaveFeatures))

	s.mcpServer.AddTool(mcp.NewTool("complete_feature",
		mcp.WithDescription("Finish the current feature and move to the next one."),
		sessionID,
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleComplete))

	s.mcpServer.AddTool(mcp.NewTool("restart_guide",
		mcp.WithDescription("Run the tour of a session again from the feature selection."),
		sessionID,
		mcp.WithOutputSchema[SessionResponse](),
	), mcp.NewStructuredToolHandler(s.handleRestart))

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get a machine table as a Mermaid flowchart."),
		mcp.WithString("machine", mcp.Description("Table key (default tutorial)")),
	), s.handleGraph)
}

// Handler methods for structured tools

func (s *Server) handleOpen(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	id, err := sessionArg(args)
	if err != nil {
		return SessionResponse{}, err
	}
	snap, err := s.sessions.Open(ctx, id)
	return s.respond("open_session", id, snap, err)
}

func (s *Server) handleSnapshot(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	id, err := sessionArg(args)
	if err != nil {
		return SessionResponse{}, err
	}
	snap, err := s.sessions.Snapshot(ctx, id)
	return s.respond("get_snapshot", id, snap, err)
}

func (s *Server) handleSendEvent(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	id, err := sessionArg(args)
	if err != nil {
		return SessionResponse{}, err
	}
	name, _ := args["event"].(string)
	if strings.TrimSpace(name) == "" {
		return SessionResponse{}, errors.New("event is required")
	}
	event := domain.Event{
		Name:     domain.EventName(strings.ToUpper(strings.TrimSpace(name))),
		Features: splitList(args["features"]),
	}

	var ext any
	if raw, ok := args["context"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &ext); err != nil {
			return SessionResponse{}, fmt.Errorf("invalid context: %w", err)
		}
	}

	send := s.sessions.SendTutorial
	if m, _ := args["machine"].(string); strings.EqualFold(m, string(domain.MachineFeature)) {
		send = s.sessions.SendFeature
	}
	snap, err := send(ctx, id, event, ext)
	return s.respond("send_event", id, snap, err)
}

func (s *Server) handleSaveFeatures(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	id, err := sessionArg(args)
	if err != nil {
		return SessionResponse{}, err
	}
	snap, err := s.sessions.SaveFeatures(ctx, id, splitList(args["features"]))
	return s.respond("save_features", id, snap, err)
}

func (s *Server) handleComplete(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	id, err := sessionArg(args)
	if err != nil {
		return SessionResponse{}, err
	}
	snap, err := s.sessions.CompleteFeature(ctx, id)
	return s.respond("complete_feature", id, snap, err)
}

func (s *Server) handleRestart(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (SessionResponse, error) {
	id, err := sessionArg(args)
	if err != nil {
		return SessionResponse{}, err
	}
	snap, err := s.sessions.Restart(ctx, id)
	return s.respond("restart_guide", id, snap, err)
}

func (s *Server) handleGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := request.GetString("machine", machines.TutorialKey)
	def, ok := s.machines.Table(key)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown machine %q", key)), nil
	}
	return mcp.NewToolResultText(graph.GenerateMermaid(def, nil)), nil
}

func (s *Server) respond(tool, id string, snap runtime.Snapshot, err error) (SessionResponse, error) {
	if err != nil {
		s.logger.Warn("MCP tool failed", "tool", tool, "session_id", id, "err", err)
		return SessionResponse{}, fmt.Errorf("%s failed: %w", tool, err)
	}
	return SessionResponse{SessionID: id, Snapshot: snap}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(machinesURI, "Machine Tables",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := s.machinesJSON()
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      machinesURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

type tableInfo struct {
	Key     string `json:"key"`
	Initial string `json:"initial"`
}

func (s *Server) machinesJSON() ([]byte, error) {
	keys := append([]string{machines.TutorialKey}, s.machines.Features()...)
	out := make([]tableInfo, 0, len(keys))
	for _, key := range keys {
		def, ok := s.machines.Table(key)
		if !ok {
			continue
		}
		out = append(out, tableInfo{Key: key, Initial: def.InitialState().String()})
	}
	return json.Marshal(out)
}

func sessionArg(args map[string]interface{}) (string, error) {
	id, _ := args["session_id"].(string)
	if strings.TrimSpace(id) == "" {
		return "", session.ErrInvalidSessionID
	}
	return id, nil
}

func splitList(v any) []string {
	raw, _ := v.(string)
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/arrg-project/arrg/internal/logging"
)

// sessionState tracks the handshake lifecycle of the single connection a
// Server handles.
type sessionState int

const (
	stateNotInitialized sessionState = iota
	stateInitialized                 // initialize answered
	stateReady                       // notifications/initialized received
)

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithInstructions sets the instructions string returned from initialize.
func WithInstructions(instructions string) ServerOption {
	return func(server *Server) {
		server.instructions = instructions
	}
}

// WithProtocolVersion overrides the protocol version the server advertises.
func WithProtocolVersion(version string) ServerOption {
	return func(server *Server) {
		server.protocolVersion = version
	}
}

// WithToolTimeout bounds each tool execution with a deadline. Zero (the
// default) means executions run until they return.
func WithToolTimeout(timeout time.Duration) ServerOption {
	return func(server *Server) {
		server.toolTimeout = timeout
	}
}

// WithServerLogger sets the logger used by the server.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(server *Server) {
		server.logger = logger
	}
}

// Server is a JSON-RPC endpoint that owns a Registry and exposes it to a
// remote caller over a byte stream. It handles one connection: the message
// loop is single-threaded and strictly FIFO, reading and fully answering one
// request before the next. A slow tool executor therefore stalls the loop;
// that is an accepted constraint of the stdio transport, not a bug.
//
// Handshake state is tracked but dispatch is lenient: tools/list and
// tools/call are answered even before the initialized notification arrives.
type Server struct {
	registry        *Registry
	info            Implementation
	protocolVersion string
	instructions    string
	toolTimeout     time.Duration
	logger          *slog.Logger

	state      sessionState
	clientInfo Implementation

	mu       sync.Mutex
	inflight map[string]context.CancelFunc // request id → cancel for running tool calls
}

// NewServer creates a server exposing the given registry.
func NewServer(registry *Registry, info Implementation, opts ...ServerOption) (*Server, error) {
	if registry == nil {
		return nil, fmt.Errorf("new server: registry is required")
	}
	if info.Name == "" {
		return nil, fmt.Errorf("new server: server name is required")
	}
	if info.Version == "" {
		return nil, fmt.Errorf("new server: server version is required")
	}

	server := &Server{
		registry:        registry,
		info:            info,
		protocolVersion: ProtocolVersion,
		logger:          logging.Logger(),
		inflight:        make(map[string]context.CancelFunc),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(server)
		}
	}

	if server.protocolVersion == "" {
		return nil, fmt.Errorf("new server: protocol version is required")
	}

	return server, nil
}

// Serve reads newline-delimited JSON-RPC messages from in and writes
// responses to out until the input stream closes (which returns nil) or the
// context is cancelled. Every request read produces exactly one response
// line; notifications and blank lines produce none.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	if s == nil {
		return fmt.Errorf("serve: server is nil")
	}
	if in == nil {
		return fmt.Errorf("serve: input reader is nil")
	}
	if out == nil {
		return fmt.Errorf("serve: output writer is nil")
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("serve: %w", ctx.Err())
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp := s.HandleMessage(ctx, line)
		if resp == nil {
			continue
		}
		payload, err := json.Marshal(resp)
		if err != nil {
			return fmt.Errorf("serve: encoding response: %w", err)
		}
		payload = append(payload, '\n')
		if _, err := out.Write(payload); err != nil {
			return fmt.Errorf("serve: writing response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("serve: reading input: %w", err)
	}

	s.logger.Info("server shutting down, input closed")
	return nil
}

// HandleMessage parses and dispatches a single JSON-RPC message and returns
// the response to write back, or nil for notifications. Malformed input is
// answered with a PARSE_ERROR or INVALID_REQUEST envelope; this method never
// panics on bad input and internal dispatch failures come back as
// INTERNAL_ERROR responses rather than being dropped.
func (s *Server) HandleMessage(ctx context.Context, raw []byte) *Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(json.RawMessage("null"), CodeParseError, "parse error", err.Error())
	}

	if req.JSONRPC != jsonRPCVersion || req.Method == "" {
		return errorResponse(requestID(req.ID), CodeInvalidRequest, "invalid request", nil)
	}

	if req.IsNotification() {
		s.handleNotification(req)
		return nil
	}

	resp := s.dispatchRequest(ctx, req)
	if resp == nil {
		// Every request read yields exactly one response; a handler
		// returning nothing is an internal bug surfaced to the peer.
		return errorResponse(req.ID, CodeInternalError, "internal error", "no response produced")
	}
	return resp
}

func (s *Server) dispatchRequest(ctx context.Context, req Request) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic handling request", "method", req.Method, "panic", r)
			resp = errorResponse(req.ID, CodeInternalError, "internal error", fmt.Sprintf("%v", r))
		}
	}()

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "ping":
		return resultResponse(req.ID, struct{}{})
	case "tools/list":
		return s.handleListTools(req)
	case "tools/call":
		return s.handleCallTool(ctx, req)
	default:
		return errorResponse(req.ID, CodeMethodNotFound, "method not found", req.Method)
	}
}

func (s *Server) handleNotification(req Request) {
	switch req.Method {
	case "notifications/initialized":
		s.logger.Info("client confirmed initialization", "client", s.clientInfo.Name)
		s.state = stateReady
	case "notifications/cancelled":
		var params CancelledParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			s.logger.Warn("malformed cancellation notification", "err", err)
			return
		}
		s.cancelInflight(params)
	default:
		s.logger.Debug("unhandled notification", "method", req.Method)
	}
}

// cancelInflight cancels the context of a running tool call if the request is
// still in flight. With the synchronous message loop a cancellation for the
// call currently executing cannot be read until that call finishes, so this
// only has effect in combination with a tool timeout or a caller driving
// HandleMessage from multiple goroutines; otherwise it is logged and dropped.
func (s *Server) cancelInflight(params CancelledParams) {
	key := string(params.RequestID)

	s.mu.Lock()
	cancel, ok := s.inflight[key]
	s.mu.Unlock()

	if ok {
		cancel()
		s.logger.Info("cancelled in-flight request", "requestId", key, "reason", params.Reason)
		return
	}
	s.logger.Info("cancellation for unknown or finished request", "requestId", key, "reason", params.Reason)
}

func (s *Server) handleInitialize(req Request) *Response {
	if len(req.Params) == 0 {
		return errorResponse(req.ID, CodeInvalidParams, "missing params", nil)
	}

	var params InitializeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "invalid params", err.Error())
	}
	if params.ProtocolVersion == "" || params.ClientInfo.Name == "" || params.ClientInfo.Version == "" {
		return errorResponse(req.ID, CodeInvalidParams, "invalid params", "missing required fields")
	}
	if params.ProtocolVersion != s.protocolVersion {
		// Tolerated: answer with our version and let the client decide.
		s.logger.Warn("protocol version mismatch",
			"client", params.ProtocolVersion, "server", s.protocolVersion)
	}

	s.clientInfo = params.ClientInfo
	s.state = stateInitialized
	s.logger.Info("initialize", "client", params.ClientInfo.Name, "protocol", params.ProtocolVersion)

	result := InitializeResult{
		ProtocolVersion: s.protocolVersion,
		ServerInfo:      s.info,
		Capabilities: ServerCapabilities{
			Tools: &ToolCapabilities{ListChanged: true},
		},
	}
	if s.instructions != "" {
		result.Instructions = s.instructions
	}

	return resultResponse(req.ID, result)
}

func (s *Server) handleListTools(req Request) *Response {
	if len(req.Params) > 0 {
		var params struct {
			Cursor json.RawMessage `json:"cursor"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return errorResponse(req.ID, CodeInvalidParams, "invalid params", err.Error())
		}
		// Pagination is not implemented; cursor is parsed but ignored and
		// the full catalog is returned as a single page.
	}

	result := ListToolsResult{
		Tools: s.registry.Definitions(),
	}
	return resultResponse(req.ID, result)
}

func (s *Server) handleCallTool(ctx context.Context, req Request) *Response {
	if len(req.Params) == 0 {
		return errorResponse(req.ID, CodeInvalidParams, "missing params", nil)
	}

	var params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "invalid params", err.Error())
	}
	if params.Name == "" {
		return errorResponse(req.ID, CodeInvalidParams, "invalid params", "tool name is required")
	}

	execCtx, cancel := s.execContext(ctx)
	key := string(req.ID)
	s.mu.Lock()
	s.inflight[key] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inflight, key)
		s.mu.Unlock()
		cancel()
	}()

	// Unknown tools and execution failures are data (IsError results), not
	// JSON-RPC errors; the registry guarantees Call never fails.
	result := s.registry.Call(execCtx, ToolCall{
		Name:      params.Name,
		Arguments: params.Arguments,
	})
	if result.IsError {
		s.logger.Warn("tool call failed", "tool", params.Name, "detail", result.Text())
	}

	return resultResponse(req.ID, result)
}

func (s *Server) execContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.toolTimeout > 0 {
		return context.WithTimeout(ctx, s.toolTimeout)
	}
	return context.WithCancel(ctx)
}

func resultResponse(id json.RawMessage, result any) *Response {
	return &Response{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Result:  result,
	}
}

func errorResponse(id json.RawMessage, code int, message string, data any) *Response {
	return &Response{
		JSONRPC: jsonRPCVersion,
		ID:      id,
		Error: &RPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

func requestID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

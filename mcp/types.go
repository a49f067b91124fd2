// Package mcp implements the Model Context Protocol (MCP) tool-calling layer:
// wire schema, tool registry, and the stdio server and client transports.
//
// MCP is a JSON-RPC 2.0 based protocol for exposing tools to LLM-powered
// applications. This package implements both sides: a Server that exposes a
// Registry of tools to a remote caller over a byte stream, and a Client that
// spawns a server as a child process and drives it over the child's
// stdin/stdout.
//
// # Basic Usage
//
// Create a registry, register tools, then create and run a server:
//
//	registry := mcp.NewRegistry()
//	registry.Register(def, executor)
//
//	server, err := mcp.NewServer(registry, mcp.Implementation{
//	    Name:    "my-server",
//	    Version: "1.0.0",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Serve over stdio (typical for MCP)
//	if err := server.Serve(ctx, os.Stdin, os.Stdout); err != nil {
//	    log.Fatal(err)
//	}
//
// Or connect to a server running in another process:
//
//	client := mcp.NewClient([]string{"arrg-mcp-server"})
//	if _, err := client.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//	result, err := client.CallToolSimple(ctx, "web_search", map[string]any{"query": "go"})
//
// # Protocol Details
//
// Messages are newline-delimited JSON-RPC 2.0. Supported methods:
//   - initialize: Handshake and capability exchange
//   - ping: Connection health check
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool
//   - notifications/initialized: Client ready notification (no response)
//   - notifications/cancelled: Cancellation request (no response)
//
// Tool execution failures are data, not protocol errors: a failing tool still
// produces a successful JSON-RPC response whose result carries IsError=true,
// so the calling LLM can see the failure text and react to it.
package mcp

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the MCP protocol version supported by this package.
const ProtocolVersion = "2025-11-25"

// jsonRPCVersion is the fixed JSON-RPC version tag on every message.
const jsonRPCVersion = "2.0"

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request represents a JSON-RPC 2.0 request message.
// The ID field is empty for notifications that don't expect a response.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitzero"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitzero"`
}

// IsNotification reports whether the message carries no correlation id and
// therefore must not be answered.
func (r Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response represents a JSON-RPC 2.0 response message.
// Either Result or Error will be set, but not both.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitzero"`
	Result  any             `json:"result,omitzero"`
	Error   *RPCError       `json:"error,omitzero"`
}

// RPCError represents a JSON-RPC 2.0 error object. It doubles as a Go error
// so clients can surface a server's error payload directly and callers can
// match on it with errors.As.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitzero"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Implementation identifies an MCP server or client implementation.
// Name and Version are required; Description is optional.
type Implementation struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitzero"`
}

// ClientCapabilities describes what features the client supports.
type ClientCapabilities struct {
	Roots        json.RawMessage `json:"roots,omitzero"`
	Sampling     json.RawMessage `json:"sampling,omitzero"`
	Experimental json.RawMessage `json:"experimental,omitzero"`
}

// ToolCapabilities describes the server's tool-related capabilities.
// ListChanged indicates whether the server supports dynamic tool list updates.
type ToolCapabilities struct {
	ListChanged bool `json:"listChanged,omitzero"`
}

// ServerCapabilities describes what features the server supports.
// Only tool capabilities are implemented; the remaining fields are carried
// opaquely so peers that set them still round-trip.
type ServerCapabilities struct {
	Tools        *ToolCapabilities `json:"tools,omitzero"`
	Resources    json.RawMessage   `json:"resources,omitzero"`
	Prompts      json.RawMessage   `json:"prompts,omitzero"`
	Logging      json.RawMessage   `json:"logging,omitzero"`
	Experimental json.RawMessage   `json:"experimental,omitzero"`
}

// InitializeParams is the payload of the initialize request (client → server).
type InitializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      Implementation     `json:"clientInfo"`
}

// InitializeResult is returned by the initialize method during handshake.
// It communicates the server's identity, supported protocol version, and
// capabilities.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitzero"`
}

// ToolDefinition describes a tool's interface as returned by tools/list.
// InputSchema is required and must be a valid JSON Schema object.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitzero"`
	InputSchema json.RawMessage `json:"inputSchema"`
	Annotations json.RawMessage `json:"annotations,omitzero"`
}

// ListToolsResult is returned by the tools/list method. NextCursor is part of
// the wire contract but this implementation always returns a single page and
// leaves it empty.
type ListToolsResult struct {
	Tools      []ToolDefinition `json:"tools"`
	NextCursor string           `json:"nextCursor,omitzero"`
}

// ToolCall is one tool invocation request. CallID is local bookkeeping used
// to correlate with LLM tool-call ids when bridging between MCP and provider
// APIs; it is not part of the tools/call wire params.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitzero"`
	CallID    string         `json:"-"`
}

// ToolResult is the outcome of one tool invocation. Content is never empty:
// if an executor produces nothing, a placeholder text block is substituted so
// no consumer ever observes a zero-block result. ToolName and CallID mirror
// the originating call and stay off the wire.
type ToolResult struct {
	Content  []ContentBlock `json:"content"`
	IsError  bool           `json:"isError,omitzero"`
	ToolName string         `json:"-"`
	CallID   string         `json:"-"`
}

// Text concatenates the text carried by the result's blocks: text blocks
// directly, embedded resources through their text representation if present.
// This is the flattened form fed back to LLMs.
func (r ToolResult) Text() string {
	var out []byte
	for _, block := range r.Content {
		var part string
		switch block.Type {
		case ContentTypeText:
			part = block.Text
		case ContentTypeResource:
			if block.Resource != nil {
				part = block.Resource.Text
			}
		}
		if part == "" {
			continue
		}
		if len(out) > 0 {
			out = append(out, '\n')
		}
		out = append(out, part...)
	}
	return string(out)
}

// CancelledParams is the payload of a notifications/cancelled notification.
type CancelledParams struct {
	RequestID json.RawMessage `json:"requestId"`
	Reason    string          `json:"reason,omitzero"`
}

package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/arrg-project/arrg/internal/logging"
)

// Client connection errors.
var (
	// ErrNotConnected is returned when a request is attempted before Connect.
	ErrNotConnected = errors.New("mcp client: not connected")
	// ErrClosed is returned when the server process ended the conversation:
	// its stdout closed or a response never arrived.
	ErrClosed = errors.New("mcp client: connection closed")
)

const (
	defaultRequestTimeout = 30 * time.Second
	shutdownGrace         = 5 * time.Second
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithEnv appends environment variables (KEY=VALUE form) to the spawned
// server process, on top of the parent's environment.
func WithEnv(env []string) ClientOption {
	return func(client *Client) {
		client.env = append(client.env, env...)
	}
}

// WithTimeout sets the per-request timeout. Zero disables the timeout and
// requests wait until a response arrives or the context is cancelled.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(client *Client) {
		client.timeout = timeout
	}
}

// WithClientInfo sets the identity sent during the initialize handshake.
func WithClientInfo(info Implementation) ClientOption {
	return func(client *Client) {
		client.info = info
	}
}

// WithClientLogger sets the logger used by the client.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// Client spawns an MCP server as a child process and drives it over the
// child's stdin/stdout with newline-delimited JSON-RPC. It is a synchronous,
// single-conversation client: one request in flight at a time, from a single
// goroutine.
type Client struct {
	command []string
	env     []string
	timeout time.Duration
	info    Implementation
	logger  *slog.Logger

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan readResult
	closed bool

	serverInfo InitializeResult
	connected  bool
}

type readResult struct {
	line []byte
	err  error
}

// NewClient creates a client for the given server command line (argv form,
// command[0] is the executable). The process is not started until Connect.
func NewClient(command []string, opts ...ClientOption) (*Client, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("new client: command is required")
	}

	client := &Client{
		command: command,
		timeout: defaultRequestTimeout,
		info: Implementation{
			Name:    "arrg",
			Version: "1.0.0",
		},
		logger: logging.Logger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// Connect spawns the server process and performs the initialize handshake:
// initialize request, then the notifications/initialized notification. On any
// failure the child process is torn down before the error is returned, so a
// failed Connect never leaks a process.
func (c *Client) Connect(ctx context.Context) (InitializeResult, error) {
	if c.connected {
		return c.serverInfo, nil
	}

	cmd := exec.Command(c.command[0], c.command[1:]...)
	cmd.Env = append(os.Environ(), c.env...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return InitializeResult{}, fmt.Errorf("connect: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return InitializeResult{}, fmt.Errorf("connect: stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return InitializeResult{}, fmt.Errorf("connect: starting %q: %w", c.command[0], err)
	}

	c.cmd = cmd
	c.stdin = stdin
	c.lines = make(chan readResult)
	c.closed = false
	go readLines(stdout, c.lines)

	result, err := c.initialize(ctx)
	if err != nil {
		c.teardown()
		return InitializeResult{}, fmt.Errorf("connect: %w", err)
	}

	c.serverInfo = result
	c.connected = true
	c.logger.Info("connected to mcp server",
		"server", result.ServerInfo.Name, "version", result.ServerInfo.Version)
	return result, nil
}

// readLines feeds stdout lines into the channel until the stream closes,
// then closes the channel. A closed channel is how request senders learn the
// server went away.
func readLines(r io.Reader, lines chan<- readResult) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		lines <- readResult{line: line}
	}
	if err := scanner.Err(); err != nil {
		lines <- readResult{err: err}
	}
	close(lines)
}

func (c *Client) initialize(ctx context.Context) (InitializeResult, error) {
	params := InitializeParams{
		ProtocolVersion: ProtocolVersion,
		ClientInfo:      c.info,
	}

	var result InitializeResult
	if err := c.call(ctx, "initialize", params, &result); err != nil {
		return InitializeResult{}, err
	}
	if result.ProtocolVersion == "" || result.ServerInfo.Name == "" {
		return InitializeResult{}, fmt.Errorf("initialize: malformed server response")
	}

	if err := c.notify("notifications/initialized", nil); err != nil {
		return InitializeResult{}, err
	}
	return result, nil
}

// ServerInfo returns the handshake result. Valid only after Connect.
func (c *Client) ServerInfo() InitializeResult {
	return c.serverInfo
}

// Ping checks that the server is responsive.
func (c *Client) Ping(ctx context.Context) error {
	if !c.connected {
		return ErrNotConnected
	}
	var result json.RawMessage
	return c.call(ctx, "ping", nil, &result)
}

// ListTools returns the server's tool catalog.
func (c *Client) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	if !c.connected {
		return nil, ErrNotConnected
	}
	var result ListToolsResult
	if err := c.call(ctx, "tools/list", struct{}{}, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// CallTool executes a tool on the server. The error covers transport and
// protocol failures only; a tool that ran and failed comes back as a result
// with IsError set, mirroring the server side's failures-are-data rule.
func (c *Client) CallTool(ctx context.Context, call ToolCall) (ToolResult, error) {
	if !c.connected {
		return ToolResult{}, ErrNotConnected
	}

	params := struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}{call.Name, call.Arguments}

	var result ToolResult
	if err := c.call(ctx, "tools/call", params, &result); err != nil {
		return ToolResult{}, err
	}
	result.ToolName = call.Name
	result.CallID = call.CallID
	return result, nil
}

// CallToolSimple executes a tool and flattens the outcome to a string: the
// concatenated text of the content blocks, prefixed with "Error: " when the
// result is an error. Transport failures still surface as Go errors.
func (c *Client) CallToolSimple(ctx context.Context, name string, args map[string]any) (string, error) {
	result, err := c.CallTool(ctx, ToolCall{Name: name, Arguments: args})
	if err != nil {
		return "", err
	}
	text := result.Text()
	if result.IsError {
		return "Error: " + text, nil
	}
	return text, nil
}

// Cancel sends a notifications/cancelled notification for a request id.
func (c *Client) Cancel(requestID string, reason string) error {
	if !c.connected {
		return ErrNotConnected
	}
	id, err := json.Marshal(requestID)
	if err != nil {
		return fmt.Errorf("cancel: %w", err)
	}
	return c.notify("notifications/cancelled", CancelledParams{
		RequestID: id,
		Reason:    reason,
	})
}

// Close shuts down the server process: close its stdin so a well-behaved
// server exits on EOF, then escalate to SIGTERM and finally SIGKILL if it
// does not exit within the grace period. Safe to call multiple times.
func (c *Client) Close() error {
	if c.cmd == nil || c.closed {
		return nil
	}
	c.closed = true
	c.connected = false
	err := c.teardown()
	c.logger.Info("mcp client closed", "command", c.command[0])
	return err
}

func (c *Client) teardown() error {
	if c.stdin != nil {
		_ = c.stdin.Close()
	}
	if c.cmd == nil || c.cmd.Process == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- c.cmd.Wait() }()

	select {
	case <-done:
		return nil
	case <-time.After(time.Second):
	}

	_ = c.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-done:
		return nil
	case <-time.After(shutdownGrace):
	}

	if err := c.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("close: killing server process: %w", err)
	}
	<-done
	return nil
}

// call sends one request and blocks for its response, honoring the
// per-request timeout and the context. Responses are matched by id; with one
// request in flight at a time a mismatched id means the conversation is out
// of sync, which is treated as a transport failure.
func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	id := uuid.New().String()

	if err := c.send(Request{
		JSONRPC: jsonRPCVersion,
		ID:      json.RawMessage(fmt.Sprintf("%q", id)),
		Method:  method,
		Params:  marshalParams(params),
	}); err != nil {
		return err
	}

	raw, err := c.awaitResponse(ctx, id, method)
	if err != nil {
		return err
	}

	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("%s: decoding response: %w", method, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("%s: %w", method, resp.Error)
	}
	if len(resp.Result) == 0 {
		return fmt.Errorf("%s: response has no result", method)
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("%s: decoding result: %w", method, err)
	}
	return nil
}

func (c *Client) awaitResponse(ctx context.Context, id, method string) (json.RawMessage, error) {
	var deadline <-chan time.Time
	if c.timeout > 0 {
		timer := time.NewTimer(c.timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	want := fmt.Sprintf("%q", id)
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", method, ctx.Err())
		case <-deadline:
			return nil, fmt.Errorf("%s: timed out after %s waiting for response", method, c.timeout)
		case read, ok := <-c.lines:
			if !ok {
				return nil, fmt.Errorf("%s: %w", method, ErrClosed)
			}
			if read.err != nil {
				return nil, fmt.Errorf("%s: reading response: %w", method, read.err)
			}

			var envelope struct {
				ID json.RawMessage `json:"id"`
			}
			if err := json.Unmarshal(read.line, &envelope); err != nil {
				c.logger.Warn("discarding unparseable server output", "err", err)
				continue
			}
			if string(envelope.ID) != want {
				// Server-initiated notifications are not supported; anything
				// not matching the in-flight request is dropped.
				c.logger.Debug("discarding unmatched message", "id", string(envelope.ID))
				continue
			}
			return read.line, nil
		}
	}
}

func (c *Client) notify(method string, params any) error {
	return c.send(Request{
		JSONRPC: jsonRPCVersion,
		Method:  method,
		Params:  marshalParams(params),
	})
}

func (c *Client) send(req Request) error {
	if c.stdin == nil {
		return ErrNotConnected
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%s: encoding request: %w", req.Method, err)
	}
	payload = append(payload, '\n')
	if _, err := c.stdin.Write(payload); err != nil {
		return fmt.Errorf("%s: writing request: %w", req.Method, err)
	}
	return nil
}

func marshalParams(params any) json.RawMessage {
	if params == nil {
		return nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil
	}
	return raw
}

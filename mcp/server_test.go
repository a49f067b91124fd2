package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()

	registry := NewRegistry()
	require.NoError(t, registry.Register(echoDefinition("echo"), echoExecutor()))
	require.NoError(t, registry.Register(ToolDefinition{
		Name:        "fail",
		Description: "always fails",
		InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
	}, ExecutorFunc(func(_ context.Context, _ map[string]any) ([]ContentBlock, error) {
		return []ContentBlock{TextBlock("disk on fire")}, context.DeadlineExceeded
	})))

	server, err := NewServer(registry, Implementation{Name: "test-server", Version: "0.1.0"}, opts...)
	require.NoError(t, err)
	return server
}

func handle(t *testing.T, server *Server, msg string) *Response {
	t.Helper()
	return server.HandleMessage(t.Context(), []byte(msg))
}

// resultJSON round-trips a handler's result through encoding/json so tests
// assert on the exact bytes a peer would see.
func resultJSON(t *testing.T, resp *Response) string {
	t.Helper()
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	data, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	return string(data)
}

func TestNewServerValidation(t *testing.T) {
	_, err := NewServer(nil, Implementation{Name: "x", Version: "1"})
	require.Error(t, err)

	_, err = NewServer(NewRegistry(), Implementation{Version: "1"})
	require.Error(t, err)

	_, err = NewServer(NewRegistry(), Implementation{Name: "x"})
	require.Error(t, err)
}

func TestHandleInitialize(t *testing.T) {
	server := newTestServer(t, WithInstructions("be gentle"))

	resp := handle(t, server, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-11-25","capabilities":{},"clientInfo":{"name":"test-client","version":"1.0"}}}`)
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)

	result, ok := resp.Result.(InitializeResult)
	require.True(t, ok)
	assert.Equal(t, ProtocolVersion, result.ProtocolVersion)
	assert.Equal(t, "test-server", result.ServerInfo.Name)
	assert.Equal(t, "be gentle", result.Instructions)
	require.NotNil(t, result.Capabilities.Tools)
	assert.True(t, result.Capabilities.Tools.ListChanged)
}

func TestInitializeMissingFields(t *testing.T) {
	server := newTestServer(t)

	resp := handle(t, server, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-11-25","clientInfo":{"name":"incomplete"}}}`)
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)

	resp = handle(t, server, `{"jsonrpc":"2.0","id":2,"method":"initialize"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
}

func TestInitializeVersionMismatchTolerated(t *testing.T) {
	server := newTestServer(t)

	resp := handle(t, server, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-01-01","capabilities":{},"clientInfo":{"name":"old-client","version":"0.1"}}}`)
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
	result := resp.Result.(InitializeResult)
	assert.Equal(t, ProtocolVersion, result.ProtocolVersion)
}

func TestHandlePing(t *testing.T) {
	server := newTestServer(t)

	resp := handle(t, server, `{"jsonrpc":"2.0","id":7,"method":"ping"}`)
	assert.Equal(t, "{}", resultJSON(t, resp))
	assert.Equal(t, json.RawMessage("7"), resp.ID)
}

func TestHandleListTools(t *testing.T) {
	server := newTestServer(t)

	resp := handle(t, server, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	require.Nil(t, resp.Error)
	result := resp.Result.(ListToolsResult)
	require.Len(t, result.Tools, 2)
	assert.Equal(t, "echo", result.Tools[0].Name)
	assert.Equal(t, "fail", result.Tools[1].Name)
	assert.Empty(t, result.NextCursor)
}

func TestListToolsCursorIgnored(t *testing.T) {
	server := newTestServer(t)

	resp := handle(t, server, `{"jsonrpc":"2.0","id":2,"method":"tools/list","params":{"cursor":"opaque-token"}}`)
	require.Nil(t, resp.Error)
	result := resp.Result.(ListToolsResult)
	assert.Len(t, result.Tools, 2)
	assert.Empty(t, result.NextCursor)
}

func TestCallToolSuccessWireShape(t *testing.T) {
	server := newTestServer(t)

	resp := handle(t, server, `{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"echo","arguments":{"text":"hi"}}}`)
	// isError must be absent, not false.
	assert.Equal(t, `{"content":[{"type":"text","text":"hi"}]}`, resultJSON(t, resp))
}

func TestCallToolFailureIsDataNotError(t *testing.T) {
	server := newTestServer(t)

	resp := handle(t, server, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"fail","arguments":{}}}`)
	require.NotNil(t, resp)
	require.Nil(t, resp.Error, "tool failure must be a successful response")

	result := resp.Result.(ToolResult)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text(), "execution error")
}

func TestCallToolUnknownIsDataNotError(t *testing.T) {
	server := newTestServer(t)

	resp := handle(t, server, `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"missing","arguments":{}}}`)
	require.Nil(t, resp.Error)
	result := resp.Result.(ToolResult)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text(), `tool "missing" not found`)
}

func TestCallToolMissingName(t *testing.T) {
	server := newTestServer(t)

	resp := handle(t, server, `{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"arguments":{}}}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)

	resp = handle(t, server, `{"jsonrpc":"2.0","id":7,"method":"tools/call"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
}

func TestMethodNotFound(t *testing.T) {
	server := newTestServer(t)

	resp := handle(t, server, `{"jsonrpc":"2.0","id":8,"method":"resources/list"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
	assert.Equal(t, json.RawMessage("8"), resp.ID)
}

func TestParseError(t *testing.T) {
	server := newTestServer(t)

	resp := handle(t, server, `{this is not json`)
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeParseError, resp.Error.Code)
	assert.Equal(t, json.RawMessage("null"), resp.ID)
}

func TestInvalidRequest(t *testing.T) {
	server := newTestServer(t)

	// Valid JSON, wrong shape.
	resp := handle(t, server, `{"id":1,"method":"ping"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidRequest, resp.Error.Code)

	resp = handle(t, server, `{"jsonrpc":"2.0","id":1}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidRequest, resp.Error.Code)
}

func TestNotificationsProduceNoResponse(t *testing.T) {
	server := newTestServer(t)

	assert.Nil(t, handle(t, server, `{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	assert.Equal(t, stateReady, server.state)

	assert.Nil(t, handle(t, server, `{"jsonrpc":"2.0","method":"notifications/cancelled","params":{"requestId":"42","reason":"changed my mind"}}`))
	assert.Nil(t, handle(t, server, `{"jsonrpc":"2.0","method":"notifications/unknown"}`))
}

func TestLenientDispatchBeforeHandshake(t *testing.T) {
	server := newTestServer(t)

	// tools/list before initialize still gets a real answer.
	resp := handle(t, server, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	require.NotNil(t, resp)
	assert.Nil(t, resp.Error)
}

func TestToolTimeout(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(ToolDefinition{
		Name:        "sleeper",
		InputSchema: json.RawMessage(`{"type":"object"}`),
	}, ExecutorFunc(func(ctx context.Context, _ map[string]any) ([]ContentBlock, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return []ContentBlock{TextBlock("overslept")}, nil
		}
	})))

	server, err := NewServer(registry, Implementation{Name: "s", Version: "1"},
		WithToolTimeout(20*time.Millisecond))
	require.NoError(t, err)

	resp := handle(t, server, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"sleeper","arguments":{}}}`)
	require.Nil(t, resp.Error)
	result := resp.Result.(ToolResult)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text(), "deadline exceeded")
}

func TestServeScript(t *testing.T) {
	server := newTestServer(t)

	script := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-11-25","capabilities":{},"clientInfo":{"name":"c","version":"1"}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`not even json`,
		``,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"echo","arguments":{"text":"hi"}}}`,
	}, "\n") + "\n"

	var out bytes.Buffer
	require.NoError(t, server.Serve(t.Context(), strings.NewReader(script), &out))

	var lines []string
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	// 4 requests/garbage lines produce responses; the notification and the
	// blank line produce none, and the parse error does not end the stream.
	require.Len(t, lines, 4)

	var initResp Response
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &initResp))
	assert.Equal(t, "2.0", initResp.JSONRPC)
	assert.Nil(t, initResp.Error)

	var parseResp struct {
		ID    json.RawMessage `json:"id"`
		Error *RPCError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &parseResp))
	require.NotNil(t, parseResp.Error)
	assert.Equal(t, CodeParseError, parseResp.Error.Code)
	assert.Equal(t, "null", string(parseResp.ID))

	var callResp struct {
		ID     json.RawMessage `json:"id"`
		Result json.RawMessage `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[3]), &callResp))
	assert.Equal(t, "3", string(callResp.ID))
	assert.Equal(t, `{"content":[{"type":"text","text":"hi"}]}`, string(callResp.Result))
}

func TestServeStopsOnContextCancel(t *testing.T) {
	server := newTestServer(t)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n")
	err := server.Serve(ctx, in, &bytes.Buffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

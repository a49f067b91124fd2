package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The client tests spawn a real child process. TestMain re-executes the test
// binary itself as that child when MCP_HELPER_MODE is set, so the full spawn,
// handshake, and shutdown path runs without a separately built server binary.
func TestMain(m *testing.M) {
	mode := os.Getenv("MCP_HELPER_MODE")
	if mode == "" {
		os.Exit(m.Run())
	}

	switch mode {
	case "serve":
		registry := NewRegistry()
		_ = registry.Register(ToolDefinition{
			Name:        "echo",
			Description: "echoes its input",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`),
		}, ExecutorFunc(func(_ context.Context, args map[string]any) ([]ContentBlock, error) {
			text, _ := args["text"].(string)
			return []ContentBlock{TextBlock(text)}, nil
		}))
		_ = registry.Register(ToolDefinition{
			Name:        "fail",
			InputSchema: json.RawMessage(`{"type":"object"}`),
		}, ExecutorFunc(func(_ context.Context, _ map[string]any) ([]ContentBlock, error) {
			return nil, fmt.Errorf("broken on purpose")
		}))

		server, err := NewServer(registry, Implementation{Name: "helper-server", Version: "0.0.1"},
			WithInstructions("test fixture"))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if err := server.Serve(context.Background(), os.Stdin, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "silent":
		// Swallow input, never answer.
		_, _ = io.Copy(io.Discard, os.Stdin)
	case "exit":
		// Die before saying anything.
	default:
		fmt.Fprintf(os.Stderr, "unknown helper mode %q\n", mode)
		os.Exit(1)
	}
	os.Exit(0)
}

func helperClient(t *testing.T, mode string, opts ...ClientOption) *Client {
	t.Helper()

	opts = append(opts, WithEnv([]string{"MCP_HELPER_MODE=" + mode}))
	client, err := NewClient([]string{os.Args[0]}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(nil)
	require.Error(t, err)
}

func TestRequestsBeforeConnect(t *testing.T) {
	client, err := NewClient([]string{"/does/not/matter"})
	require.NoError(t, err)

	_, err = client.ListTools(t.Context())
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = client.CallTool(t.Context(), ToolCall{Name: "echo"})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, client.Ping(t.Context()), ErrNotConnected)
}

func TestConnectAndRoundTrip(t *testing.T) {
	client := helperClient(t, "serve")

	info, err := client.Connect(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "helper-server", info.ServerInfo.Name)
	assert.Equal(t, ProtocolVersion, info.ProtocolVersion)
	assert.Equal(t, "test fixture", info.Instructions)
	assert.Equal(t, info, client.ServerInfo())

	require.NoError(t, client.Ping(t.Context()))

	tools, err := client.ListTools(t.Context())
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "echo", tools[0].Name)

	result, err := client.CallTool(t.Context(), ToolCall{
		Name:      "echo",
		Arguments: map[string]any{"text": "over the wire"},
		CallID:    "call_9",
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "over the wire", result.Text())
	assert.Equal(t, "echo", result.ToolName)
	assert.Equal(t, "call_9", result.CallID)

	require.NoError(t, client.Close())
}

func TestCallToolFailureComesBackAsData(t *testing.T) {
	client := helperClient(t, "serve")
	_, err := client.Connect(t.Context())
	require.NoError(t, err)

	result, err := client.CallTool(t.Context(), ToolCall{Name: "fail", Arguments: map[string]any{}})
	require.NoError(t, err, "a failed tool is not a transport error")
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text(), "broken on purpose")

	result, err = client.CallTool(t.Context(), ToolCall{Name: "no-such-tool", Arguments: map[string]any{}})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text(), "not found")
}

func TestCallToolSimple(t *testing.T) {
	client := helperClient(t, "serve")
	_, err := client.Connect(t.Context())
	require.NoError(t, err)

	text, err := client.CallToolSimple(t.Context(), "echo", map[string]any{"text": "plain"})
	require.NoError(t, err)
	assert.Equal(t, "plain", text)

	text, err = client.CallToolSimple(t.Context(), "fail", map[string]any{})
	require.NoError(t, err)
	assert.Contains(t, text, "Error: ")
	assert.Contains(t, text, "broken on purpose")
}

func TestConnectTimesOutOnSilentServer(t *testing.T) {
	client := helperClient(t, "silent", WithTimeout(200*time.Millisecond))

	start := time.Now()
	_, err := client.Connect(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 5*time.Second, "must not hang")
}

func TestConnectFailsWhenServerExitsImmediately(t *testing.T) {
	client := helperClient(t, "exit", WithTimeout(5*time.Second))

	_, err := client.Connect(t.Context())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestConnectFailsForMissingBinary(t *testing.T) {
	client, err := NewClient([]string{"/nonexistent/arrg-mcp-server"})
	require.NoError(t, err)

	_, err = client.Connect(t.Context())
	require.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	client := helperClient(t, "serve")
	_, err := client.Connect(t.Context())
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	_, err = client.ListTools(t.Context())
	assert.ErrorIs(t, err, ErrNotConnected)
}

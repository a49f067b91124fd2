package gemini

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/arrg-project/arrg/chat"
)

func TestMessageToGeminiRoles(t *testing.T) {
	content, err := messageToGemini(chat.UserMessage("hello"))
	require.NoError(t, err)
	assert.Equal(t, "user", content.Role)
	require.Len(t, content.Parts, 1)
	assert.Equal(t, "hello", content.Parts[0].Text)

	content, err = messageToGemini(chat.AssistantMessage("hi"))
	require.NoError(t, err)
	assert.Equal(t, "model", content.Role)
}

func TestAssistantToolCallsBecomeFunctionCalls(t *testing.T) {
	msg := chat.Message{Role: chat.AssistantRole}
	msg.AddToolCall(chat.ToolCall{ID: "c1", Name: "lookup", Arguments: json.RawMessage(`{"key":"a"}`)})

	content, err := messageToGemini(msg)
	require.NoError(t, err)
	require.Len(t, content.Parts, 1)
	fc := content.Parts[0].FunctionCall
	require.NotNil(t, fc)
	assert.Equal(t, "c1", fc.ID)
	assert.Equal(t, "lookup", fc.Name)
	assert.Equal(t, map[string]any{"key": "a"}, fc.Args)
}

func TestToolCallWithoutIDGetsOne(t *testing.T) {
	msg := chat.Message{Role: chat.AssistantRole}
	msg.AddToolCall(chat.ToolCall{Name: "lookup", Arguments: json.RawMessage(`{}`)})

	content, err := messageToGemini(msg)
	require.NoError(t, err)
	assert.NotEmpty(t, content.Parts[0].FunctionCall.ID)
}

func TestToolResultsBecomeFunctionResponses(t *testing.T) {
	msg := chat.Message{Role: chat.ToolRole}
	msg.AddToolResult(chat.ToolResult{ToolCallID: "c1", Name: "lookup", Content: "plain text"})
	msg.AddToolResult(chat.ToolResult{ToolCallID: "c2", Name: "lookup", Content: `{"structured":true}`})
	msg.AddToolResult(chat.ToolResult{ToolCallID: "c3", Name: "lookup", Error: "no backend"})
	msg.AddToolResult(chat.ToolResult{ToolCallID: "c4", Name: "lookup"})

	content, err := messageToGemini(msg)
	require.NoError(t, err)
	assert.Equal(t, "function", content.Role)
	require.Len(t, content.Parts, 4)

	assert.Equal(t, map[string]any{"result": "plain text"}, content.Parts[0].FunctionResponse.Response)
	assert.Equal(t, map[string]any{"structured": true}, content.Parts[1].FunctionResponse.Response)
	assert.Equal(t, map[string]any{"error": "no backend"}, content.Parts[2].FunctionResponse.Response)
	assert.Equal(t, map[string]any{"result": "success"}, content.Parts[3].FunctionResponse.Response)
}

func TestSpecToFunctionDeclaration(t *testing.T) {
	decl, err := specToFunctionDeclaration(chat.ToolSpec{
		Name:        "analyze_data",
		Description: "analyze text",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"data": {"type": "string", "description": "text to analyze"},
				"depth": {"type": "integer"}
			},
			"required": ["data"]
		}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "analyze_data", decl.Name)
	assert.Equal(t, "analyze text", decl.Description)
	require.NotNil(t, decl.Parameters)
	assert.Equal(t, genai.TypeObject, decl.Parameters.Type)
	require.Contains(t, decl.Parameters.Properties, "data")
	assert.Equal(t, genai.TypeString, decl.Parameters.Properties["data"].Type)
	assert.Equal(t, "text to analyze", decl.Parameters.Properties["data"].Description)
	assert.Equal(t, genai.TypeInteger, decl.Parameters.Properties["depth"].Type)
	assert.Equal(t, []string{"data"}, decl.Parameters.Required)
}

func TestResponseFromGemini(t *testing.T) {
	result := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role: "model",
				Parts: []*genai.Part{
					{Text: "let me check"},
					{FunctionCall: &genai.FunctionCall{ID: "c1", Name: "lookup", Args: map[string]any{"key": "a"}}},
				},
			},
		}},
	}

	resp, err := responseFromGemini(result)
	require.NoError(t, err)
	assert.Equal(t, "let me check", resp.Text)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "lookup", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"key":"a"}`, string(resp.ToolCalls[0].Arguments))
}

func TestResponseFromGeminiNoCandidates(t *testing.T) {
	_, err := responseFromGemini(&genai.GenerateContentResponse{})
	require.Error(t, err)
}

func TestMessageToGeminiRejectsInvalid(t *testing.T) {
	_, err := messageToGemini(chat.Message{Role: chat.UserRole})
	require.Error(t, err)

	_, err = messageToGemini(chat.Message{Role: chat.ToolRole, Contents: []chat.Content{{Text: "no results"}}})
	require.Error(t, err)
}

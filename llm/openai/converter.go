package openai

import (
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/arrg-project/arrg/chat"
)

// messageToOpenAI converts a chat.Message to OpenAI message parameters.
//
// IMPORTANT INVARIANTS for OpenAI:
//   - Tool calls must be in Assistant role messages
//   - Tool results must be in separate Tool role messages, one per result
//   - System messages are a distinct role carrying only text
func messageToOpenAI(msg chat.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	if len(msg.Contents) == 0 {
		return nil, fmt.Errorf("message has no contents")
	}

	switch msg.Role {
	case chat.UserRole:
		text := msg.GetText()
		if text == "" {
			return nil, fmt.Errorf("user message has no text content")
		}
		return []openai.ChatCompletionMessageParamUnion{openai.UserMessage(text)}, nil

	case chat.AssistantRole:
		assistant := openai.ChatCompletionAssistantMessageParam{}

		if text := msg.GetText(); text != "" {
			assistant.Content.OfString = param.NewOpt(text)
		}

		if toolCalls := msg.GetToolCalls(); len(toolCalls) > 0 {
			assistant.ToolCalls = buildToolCallParams(toolCalls)
		}

		if assistant.Content.OfString.Value == "" && len(assistant.ToolCalls) == 0 {
			return nil, fmt.Errorf("assistant message has no valid content")
		}

		return []openai.ChatCompletionMessageParamUnion{{OfAssistant: &assistant}}, nil

	case chat.ToolRole:
		toolResults := msg.GetToolResults()
		if len(toolResults) == 0 {
			return nil, fmt.Errorf("tool message has no tool results")
		}

		msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(toolResults))
		for _, tr := range toolResults {
			content := tr.Content
			if content == "" {
				content = "{}"
			}
			msgs = append(msgs, openai.ToolMessage(content, tr.ToolCallID))
		}
		return msgs, nil

	default:
		return nil, fmt.Errorf("unknown message role: %s", msg.Role)
	}
}

// buildToolCallParams converts chat tool calls to OpenAI tool call params.
func buildToolCallParams(toolCalls []chat.ToolCall) []openai.ChatCompletionMessageToolCallParam {
	params := make([]openai.ChatCompletionMessageToolCallParam, len(toolCalls))
	for i, tc := range toolCalls {
		params[i] = openai.ChatCompletionMessageToolCallParam{
			ID: tc.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Name,
				Arguments: string(tc.Arguments),
			},
		}
	}
	return params
}

// messagesToOpenAI converts the system prompt and conversation into OpenAI
// message parameters, expanding tool-result messages which may map to several
// OpenAI messages each.
func messagesToOpenAI(system string, msgs []chat.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	var result []openai.ChatCompletionMessageParamUnion
	if system != "" {
		result = append(result, openai.SystemMessage(system))
	}

	for i, msg := range msgs {
		converted, err := messageToOpenAI(msg)
		if err != nil {
			return nil, fmt.Errorf("converting message %d: %w", i, err)
		}
		result = append(result, converted...)
	}

	return result, nil
}

// toolsToOpenAI converts neutral tool specs to OpenAI function declarations.
func toolsToOpenAI(specs []chat.ToolSpec) ([]openai.ChatCompletionToolParam, error) {
	tools := make([]openai.ChatCompletionToolParam, 0, len(specs))
	for _, spec := range specs {
		var parameters shared.FunctionParameters
		if len(spec.InputSchema) > 0 {
			if err := json.Unmarshal(spec.InputSchema, &parameters); err != nil {
				return nil, fmt.Errorf("tool %q: parsing input schema: %w", spec.Name, err)
			}
		}

		fn := shared.FunctionDefinitionParam{
			Name:       spec.Name,
			Parameters: parameters,
		}
		if spec.Description != "" {
			fn.Description = param.NewOpt(spec.Description)
		}

		tools = append(tools, openai.ChatCompletionToolParam{Function: fn})
	}
	return tools, nil
}

package claude

import (
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/arrg-project/arrg/chat"
)

// messageParam converts a chat.Message to an anthropic.MessageParam.
//
// IMPORTANT INVARIANTS for Claude:
//   - Tool calls (tool_use blocks) belong in Assistant messages
//   - Tool results (tool_result blocks) belong in User messages
//   - There is no separate "tool" role; Tool role maps to User
func messageParam(msg chat.Message) (anthropic.MessageParam, error) {
	if len(msg.Contents) == 0 {
		return anthropic.MessageParam{}, fmt.Errorf("message has no contents")
	}

	var blocks []anthropic.ContentBlockParamUnion
	for _, content := range msg.Contents {
		switch {
		case content.Text != "":
			blocks = append(blocks, anthropic.NewTextBlock(content.Text))
		case content.ToolCall != nil:
			blocks = append(blocks, anthropic.NewToolUseBlock(
				content.ToolCall.ID,
				content.ToolCall.Arguments,
				content.ToolCall.Name,
			))
		case content.ToolResult != nil:
			blocks = append(blocks, toolResultBlock(*content.ToolResult))
		}
	}

	if len(blocks) == 0 {
		return anthropic.MessageParam{}, fmt.Errorf("message has no valid content blocks")
	}

	switch msg.Role {
	case chat.AssistantRole:
		return anthropic.NewAssistantMessage(blocks...), nil
	default:
		return anthropic.NewUserMessage(blocks...), nil
	}
}

func toolResultBlock(tr chat.ToolResult) anthropic.ContentBlockParamUnion {
	content := tr.Content
	isError := false
	if tr.Error != "" {
		content = tr.Error
		isError = true
	}
	return anthropic.NewToolResultBlock(tr.ToolCallID, content, isError)
}

func messagesToClaude(msgs []chat.Message) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(msgs))
	for i, msg := range msgs {
		param, err := messageParam(msg)
		if err != nil {
			return nil, fmt.Errorf("converting message %d: %w", i, err)
		}
		result = append(result, param)
	}
	return result, nil
}

// toolsToClaude converts neutral tool specs into Claude tool params.
func toolsToClaude(specs []chat.ToolSpec) ([]anthropic.ToolUnionParam, error) {
	tools := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		var inputSchema anthropic.ToolInputSchemaParam
		if len(spec.InputSchema) > 0 {
			if err := json.Unmarshal(spec.InputSchema, &inputSchema); err != nil {
				return nil, fmt.Errorf("tool %q: parsing input schema: %w", spec.Name, err)
			}
		}

		toolParam := anthropic.ToolParam{
			Name:        spec.Name,
			InputSchema: inputSchema,
			Type:        anthropic.ToolTypeCustom,
		}
		if spec.Description != "" {
			toolParam.Description = anthropic.String(spec.Description)
		}

		tools = append(tools, anthropic.ToolUnionParam{OfTool: &toolParam})
	}
	return tools, nil
}

package gemini

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/arrg-project/arrg/chat"
)

// messageToGemini converts a chat.Message to Gemini Content format.
//
// IMPORTANT INVARIANTS for Gemini:
//   - Tool calls are FunctionCall parts within a "model" Content
//   - Tool results are FunctionResponse parts with "function" role
//   - Assistant role maps to "model", User role maps to "user"
func messageToGemini(msg chat.Message) (*genai.Content, error) {
	if len(msg.Contents) == 0 {
		return nil, fmt.Errorf("message has no contents")
	}

	switch msg.Role {
	case chat.UserRole:
		text := msg.GetText()
		if text == "" {
			return nil, fmt.Errorf("user message has no text content")
		}
		return &genai.Content{
			Role:  "user",
			Parts: []*genai.Part{{Text: text}},
		}, nil

	case chat.AssistantRole:
		var parts []*genai.Part

		if text := msg.GetText(); text != "" {
			parts = append(parts, &genai.Part{Text: text})
		}

		for _, tc := range msg.GetToolCalls() {
			var args map[string]any
			if len(tc.Arguments) > 0 {
				if err := json.Unmarshal(tc.Arguments, &args); err != nil {
					// Unparseable argument JSON still has to round-trip.
					args = map[string]any{"raw": string(tc.Arguments)}
				}
			}

			id := tc.ID
			if id == "" {
				id = generateFunctionCallID()
			}

			parts = append(parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{
					ID:   id,
					Name: tc.Name,
					Args: args,
				},
			})
		}

		if len(parts) == 0 {
			return nil, fmt.Errorf("assistant message has no valid content")
		}

		return &genai.Content{
			Role:  "model",
			Parts: parts,
		}, nil

	case chat.ToolRole:
		toolResults := msg.GetToolResults()
		if len(toolResults) == 0 {
			return nil, fmt.Errorf("tool message has no tool results")
		}

		parts := make([]*genai.Part, 0, len(toolResults))
		for _, tr := range toolResults {
			response := make(map[string]any)
			switch {
			case tr.Error != "":
				response["error"] = tr.Error
			case tr.Content != "":
				// Structured output passes through; plain text gets wrapped.
				if err := json.Unmarshal([]byte(tr.Content), &response); err != nil {
					response = map[string]any{"result": tr.Content}
				}
			default:
				// Gemini rejects empty function responses.
				response["result"] = "success"
			}

			parts = append(parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       tr.ToolCallID,
					Name:     tr.Name,
					Response: response,
				},
			})
		}

		return &genai.Content{
			Role:  "function",
			Parts: parts,
		}, nil

	default:
		return nil, fmt.Errorf("unknown message role: %s", msg.Role)
	}
}

func messagesToGemini(msgs []chat.Message) ([]*genai.Content, error) {
	result := make([]*genai.Content, 0, len(msgs))
	for i, msg := range msgs {
		content, err := messageToGemini(msg)
		if err != nil {
			return nil, fmt.Errorf("converting message %d: %w", i, err)
		}
		result = append(result, content)
	}
	return result, nil
}

// specToFunctionDeclaration converts a neutral tool spec to Gemini's
// FunctionDeclaration format. Gemini has its own schema type, so the JSON
// Schema is walked and rebuilt rather than passed through.
func specToFunctionDeclaration(spec chat.ToolSpec) (*genai.FunctionDeclaration, error) {
	var parameters *genai.Schema
	if len(spec.InputSchema) > 0 {
		var schemaMap map[string]interface{}
		if err := json.Unmarshal(spec.InputSchema, &schemaMap); err != nil {
			return nil, fmt.Errorf("tool %q: parsing input schema: %w", spec.Name, err)
		}

		parameters = &genai.Schema{
			Type:       genai.TypeObject,
			Properties: make(map[string]*genai.Schema),
		}

		if props, ok := schemaMap["properties"].(map[string]interface{}); ok {
			for propName, propSchema := range props {
				propMap, ok := propSchema.(map[string]interface{})
				if !ok {
					continue
				}
				geminiProp := &genai.Schema{}

				if typeStr, ok := propMap["type"].(string); ok {
					switch typeStr {
					case "string":
						geminiProp.Type = genai.TypeString
					case "integer":
						geminiProp.Type = genai.TypeInteger
					case "number":
						geminiProp.Type = genai.TypeNumber
					case "boolean":
						geminiProp.Type = genai.TypeBoolean
					case "array":
						geminiProp.Type = genai.TypeArray
					case "object":
						geminiProp.Type = genai.TypeObject
					}
				}

				if desc, ok := propMap["description"].(string); ok {
					geminiProp.Description = desc
				}

				parameters.Properties[propName] = geminiProp
			}
		}

		if required, ok := schemaMap["required"].([]interface{}); ok {
			requiredFields := make([]string, 0, len(required))
			for _, field := range required {
				if fieldName, ok := field.(string); ok {
					requiredFields = append(requiredFields, fieldName)
				}
			}
			parameters.Required = requiredFields
		}
	}

	return &genai.FunctionDeclaration{
		Name:        spec.Name,
		Description: spec.Description,
		Parameters:  parameters,
	}, nil
}

func generateFunctionCallID() string {
	return "call_" + uuid.New().String()
}

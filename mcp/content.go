package mcp

import (
	"encoding/json"
	"fmt"
)

// Content block discriminator values as they appear on the wire.
const (
	ContentTypeText     = "text"
	ContentTypeImage    = "image"
	ContentTypeResource = "resource"
)

// ResourceContents is the body of an embedded-resource content block.
// Text carries readable content, Blob base64-encoded binary content.
type ResourceContents struct {
	URI      string `json:"uri"`
	Text     string `json:"text,omitzero"`
	Blob     string `json:"blob,omitzero"`
	MimeType string `json:"mimeType,omitzero"`
}

// ContentBlock is a tagged union over the content kinds a tool result may
// carry. Type selects which of the remaining fields are meaningful:
// Text for "text", Data+MimeType for "image", Resource for "resource".
// It serializes to exactly the per-kind wire shape.
type ContentBlock struct {
	Type     string
	Text     string
	Data     string
	MimeType string
	Resource *ResourceContents
}

// TextBlock returns a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: ContentTypeText, Text: text}
}

// ImageBlock returns an image content block; data is base64-encoded.
func ImageBlock(data, mimeType string) ContentBlock {
	return ContentBlock{Type: ContentTypeImage, Data: data, MimeType: mimeType}
}

// ResourceBlock returns an embedded-resource content block.
func ResourceBlock(resource ResourceContents) ContentBlock {
	return ContentBlock{Type: ContentTypeResource, Resource: &resource}
}

func (c ContentBlock) MarshalJSON() ([]byte, error) {
	switch c.Type {
	case ContentTypeText:
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{c.Type, c.Text})
	case ContentTypeImage:
		return json.Marshal(struct {
			Type     string `json:"type"`
			Data     string `json:"data"`
			MimeType string `json:"mimeType"`
		}{c.Type, c.Data, c.MimeType})
	case ContentTypeResource:
		if c.Resource == nil {
			return nil, fmt.Errorf("marshal content block: resource block has nil resource")
		}
		return json.Marshal(struct {
			Type     string            `json:"type"`
			Resource *ResourceContents `json:"resource"`
		}{c.Type, c.Resource})
	default:
		return nil, fmt.Errorf("marshal content block: unknown type %q", c.Type)
	}
}

func (c *ContentBlock) UnmarshalJSON(data []byte) error {
	var wire struct {
		Type     string            `json:"type"`
		Text     string            `json:"text"`
		Data     string            `json:"data"`
		MimeType string            `json:"mimeType"`
		Resource *ResourceContents `json:"resource"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("unmarshal content block: %w", err)
	}

	switch wire.Type {
	case ContentTypeText:
		*c = ContentBlock{Type: wire.Type, Text: wire.Text}
	case ContentTypeImage:
		*c = ContentBlock{Type: wire.Type, Data: wire.Data, MimeType: wire.MimeType}
	case ContentTypeResource:
		if wire.Resource == nil {
			return fmt.Errorf("unmarshal content block: resource block missing resource")
		}
		*c = ContentBlock{Type: wire.Type, Resource: wire.Resource}
	default:
		return fmt.Errorf("unmarshal content block: unknown type %q", wire.Type)
	}
	return nil
}

package api

import "encoding/json"

type ContentType string

const (
	ContentTypeText    ContentType = "text"
	ContentTypeToolUse ContentType = "tool_use"
)

// Content is a single content block. Only text blocks are produced by this
// client; other block types are decoded and ignored.
type Content struct {
	Type  ContentType     `json:"type"`
	Text  *string         `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

func NewTextContent(text string) Content {
	return Content{
		Type: ContentTypeText,
		Text: &text,
	}
}

package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/halcyon-chat/halcyon/internal/chat"
	"github.com/halcyon-chat/halcyon/internal/model"
	"github.com/halcyon-chat/halcyon/internal/stream"
	"github.com/halcyon-chat/halcyon/internal/transport"
)

// ---------------------------------------------------------------------------
// claudeVendor — the Anthropic messages protocol
// ---------------------------------------------------------------------------

type claudeVendor struct{}

func (v *claudeVendor) name() string { return "claude" }

const (
	claudeDefaultBaseURL = "https://api.anthropic.com"
	claudeAPIVersion     = "2023-06-01"
)

type claudeRequest struct {
	Model       string          `json:"model"`
	MaxTokens   int             `json:"max_tokens"`
	System      string          `json:"system,omitempty"`
	Messages    []claudeMessage `json:"messages"`
	Tools       []claudeTool    `json:"tools,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	Stream      bool            `json:"stream"`
}

type claudeMessage struct {
	Role    string         `json:"role"`
	Content []claudeBlock `json:"content"`
}

// claudeBlock is one content block of a request message.
type claudeBlock struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	Source *claudeSource `json:"source,omitempty"`

	// tool_use
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// tool_result
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   []claudeBlock `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
}

type claudeSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

type claudeTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

func (v *claudeVendor) buildRequest(o Options, msgs []chat.Message, tools []chat.ToolSpec) (transport.Request, error) {
	prepared, err := prepareMessages(o, msgs)
	if err != nil {
		return transport.Request{}, err
	}

	temp := model.ClampTemperature(o.Model, o.Temperature)
	reqBody := claudeRequest{
		Model:       o.Model,
		MaxTokens:   clampMaxTokens(o),
		System:      o.System,
		Messages:    buildClaudeMessages(prepared),
		Tools:       toClaudeTools(tools),
		Temperature: &temp,
		Stream:      true,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return transport.Request{}, fmt.Errorf("marshaling request: %w", err)
	}

	base := o.BaseURL
	if base == "" {
		base = claudeDefaultBaseURL
	}
	return transport.Request{
		URL:    strings.TrimSuffix(base, "/") + "/v1/messages",
		Method: http.MethodPost,
		Header: http.Header{
			"Content-Type":      {"application/json"},
			"X-Api-Key":         {o.APIKey},
			"Anthropic-Version": {claudeAPIVersion},
		},
		Body:      body,
		Streaming: true,
	}, nil
}

func (v *claudeVendor) hooks(http.Header) stream.Hooks { return stream.AnthropicHooks() }

func (v *claudeVendor) parseError(status int, header http.Header, body []byte) error {
	// {"type":"error","error":{"type":"...","message":"..."}}
	var envelope struct {
		Error *struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != nil {
		return transport.NewAPIError(status, envelope.Error.Type, envelope.Error.Message, header)
	}
	return parseErrorEnvelope(status, header, body)
}

func (v *claudeVendor) toolMessages(call *chat.ToolUse, parts []chat.ContentPart, isError bool) []chat.Message {
	return defaultToolMessages(call, parts, isError)
}

// buildClaudeMessages converts neutral messages into alternating user and
// assistant block-content messages. Tool results ride as user-role
// tool_result blocks correlated by tool_use_id.
func buildClaudeMessages(msgs []chat.Message) []claudeMessage {
	out := make([]claudeMessage, 0, len(msgs))

	for _, m := range msgs {
		switch m.Role {
		case chat.RoleSystem:
			// System rides as a top-level request field.
			continue

		case chat.RoleTool:
			out = append(out, claudeMessage{
				Role: chat.RoleUser,
				Content: []claudeBlock{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   claudeParts(m.Parts),
				}},
			})

		case chat.RoleAssistant:
			var blocks []claudeBlock
			if text := m.Text(); text != "" {
				blocks = append(blocks, claudeBlock{Type: "text", Text: text})
			}
			for _, tc := range m.ToolCalls {
				input := map[string]any{}
				if tc.Arguments != "" {
					// Replay failures leave an empty input object; the
					// vendor rejects a missing one.
					_ = json.Unmarshal([]byte(tc.Arguments), &input)
				}
				blocks = append(blocks, claudeBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: input,
				})
			}
			if len(blocks) == 0 {
				blocks = []claudeBlock{{Type: "text", Text: ""}}
			}
			out = append(out, claudeMessage{Role: chat.RoleAssistant, Content: blocks})

		default:
			var blocks []claudeBlock
			if m.HasParts() {
				blocks = claudeParts(m.Parts)
			} else {
				blocks = []claudeBlock{{Type: "text", Text: m.Content}}
			}
			out = append(out, claudeMessage{Role: chat.RoleUser, Content: blocks})
		}
	}
	return out
}

// claudeParts maps content parts to request blocks. Audio has no block type
// in this protocol and is dropped at the payload boundary.
func claudeParts(parts []chat.ContentPart) []claudeBlock {
	blocks := make([]claudeBlock, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case chat.BlockImage:
			src := &claudeSource{}
			if p.ImageURL != "" {
				src.Type = "url"
				src.URL = p.ImageURL
			} else {
				src.Type = "base64"
				src.MediaType = p.MimeType
				src.Data = p.ImageData
			}
			blocks = append(blocks, claudeBlock{Type: "image", Source: src})
		case chat.BlockAudio:
			continue
		default:
			blocks = append(blocks, claudeBlock{Type: "text", Text: p.Text})
		}
	}
	if len(blocks) == 0 {
		blocks = []claudeBlock{{Type: "text", Text: ""}}
	}
	return blocks
}

func toClaudeTools(specs []chat.ToolSpec) []claudeTool {
	if len(specs) == 0 {
		return nil
	}
	tools := make([]claudeTool, len(specs))
	for i, s := range specs {
		props := make(map[string]any, len(s.Properties))
		for k, v := range s.Properties {
			props[k] = convertOpenAIProp(v)
		}
		req := s.Required
		if req == nil {
			req = []string{}
		}
		tools[i] = claudeTool{
			Name:        s.Name,
			Description: s.Description,
			InputSchema: map[string]any{
				"type":       "object",
				"properties": props,
				"required":   req,
			},
		}
	}
	return tools
}

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
// openAIVendor — the chat-completions protocol
// ---------------------------------------------------------------------------

type openAIVendor struct{}

func (v *openAIVendor) name() string { return "openai" }

const openAIDefaultBaseURL = "https://api.openai.com"

func (v *openAIVendor) buildRequest(o Options, msgs []chat.Message, tools []chat.ToolSpec) (transport.Request, error) {
	prepared, err := prepareMessages(o, msgs)
	if err != nil {
		return transport.Request{}, err
	}

	caps := model.Lookup(o.Model)
	reqBody := openaiRequest{
		Model:    o.Model,
		Messages: buildOpenAIMessages(prepared, o.System, caps.Reasoning),
		Stream:   true,
		StreamOptions: &struct {
			IncludeUsage bool `json:"include_usage"`
		}{IncludeUsage: true},
	}
	if caps.Tools {
		reqBody.Tools = toOpenAITools(tools)
	}
	if len(reqBody.Tools) > 0 {
		// One tool call at a time; the accumulator assumes a single
		// active call per response.
		f := false
		reqBody.ParallelToolCalls = &f
	}

	temp := model.ClampTemperature(o.Model, o.Temperature)
	if caps.Reasoning {
		reqBody.MaxCompletionTokens = clampMaxTokens(o)
	} else {
		reqBody.Temperature = &temp
		reqBody.MaxTokens = clampMaxTokens(o)
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return transport.Request{}, fmt.Errorf("marshaling request: %w", err)
	}

	base := o.BaseURL
	if base == "" {
		base = openAIDefaultBaseURL
	}
	return transport.Request{
		URL:    strings.TrimSuffix(base, "/") + "/v1/chat/completions",
		Method: http.MethodPost,
		Header: http.Header{
			"Content-Type":  {"application/json"},
			"Authorization": {"Bearer " + o.APIKey},
		},
		Body:      body,
		Streaming: true,
	}, nil
}

// hooks falls back to raw passthrough when the endpoint answers with a
// non-SSE body (some OpenAI-compatible gateways stream plain text).
func (v *openAIVendor) hooks(header http.Header) stream.Hooks {
	ct := header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "text/event-stream") && !strings.Contains(ct, "json") {
		return stream.RawHooks()
	}
	return stream.OpenAIHooks()
}

func (v *openAIVendor) parseError(status int, header http.Header, body []byte) error {
	return parseErrorEnvelope(status, header, body)
}

func (v *openAIVendor) toolMessages(call *chat.ToolUse, parts []chat.ContentPart, isError bool) []chat.Message {
	return defaultToolMessages(call, parts, isError)
}

// defaultToolMessages builds the neutral assistant tool-call + tool-result
// pair appended to the running message list between loop iterations. Each
// vendor's buildRequest maps this shape onto its own wire format.
func defaultToolMessages(call *chat.ToolUse, parts []chat.ContentPart, isError bool) []chat.Message {
	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	argsJSON, _ := json.Marshal(args)

	result := chat.Message{
		Role:       chat.RoleTool,
		ToolCallID: call.ID,
		Name:       call.Name,
		Parts:      parts,
	}
	if isError {
		result.Parts = append([]chat.ContentPart{{
			Type: chat.BlockText,
			Text: "Tool execution failed.",
		}}, parts...)
	}

	return []chat.Message{
		{
			Role: chat.RoleAssistant,
			ToolCalls: []chat.ToolCallRef{{
				ID:        call.ID,
				Name:      call.Name,
				Arguments: string(argsJSON),
			}},
		},
		result,
	}
}

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    json.RawMessage  `json:"content,omitempty"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openaiToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openaiTool struct {
	Type     string         `json:"type"`
	Function openaiFunction `json:"function"`
}

type openaiFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type openaiRequest struct {
	Model             string          `json:"model"`
	Messages          []openaiMessage `json:"messages"`
	Stream            bool            `json:"stream"`
	Tools             []openaiTool    `json:"tools,omitempty"`
	ParallelToolCalls *bool           `json:"parallel_tool_calls,omitempty"`
	Temperature       *float64        `json:"temperature,omitempty"`
	MaxTokens         int             `json:"max_tokens,omitempty"`
	// Reasoning families reject max_tokens in favor of this field.
	MaxCompletionTokens int `json:"max_completion_tokens,omitempty"`
	StreamOptions       *struct {
		IncludeUsage bool `json:"include_usage"`
	} `json:"stream_options,omitempty"`
}

// ---------------------------------------------------------------------------
// Message conversion
// ---------------------------------------------------------------------------

// buildOpenAIMessages converts neutral messages to the chat-completions
// shape. Reasoning families reject the system role; the prompt is sent
// under the developer role instead.
func buildOpenAIMessages(msgs []chat.Message, system string, reasoning bool) []openaiMessage {
	out := make([]openaiMessage, 0, len(msgs)+1)

	if system != "" {
		role := chat.RoleSystem
		if reasoning {
			role = chat.RoleDeveloper
		}
		raw, _ := json.Marshal(system)
		out = append(out, openaiMessage{Role: role, Content: raw})
	}

	for _, m := range msgs {
		switch m.Role {
		case chat.RoleSystem:
			// Handled above; stored transcripts may still carry one.
			if system == "" {
				raw, _ := json.Marshal(m.Content)
				out = append(out, openaiMessage{Role: chat.RoleSystem, Content: raw})
			}

		case chat.RoleTool:
			raw, _ := json.Marshal(m.Text())
			out = append(out, openaiMessage{
				Role:       "tool",
				Content:    raw,
				ToolCallID: m.ToolCallID,
			})
			// Media from tool results cannot ride in a tool message;
			// deliver it as a follow-up user message.
			if media := mediaParts(m.Parts); len(media) > 0 {
				out = append(out, openaiMessage{
					Role:    chat.RoleUser,
					Content: marshalOpenAIParts(media),
				})
			}

		case chat.RoleAssistant:
			msg := openaiMessage{Role: chat.RoleAssistant}
			if text := m.Text(); text != "" {
				raw, _ := json.Marshal(text)
				msg.Content = raw
			}
			for _, tc := range m.ToolCalls {
				wire := openaiToolCall{ID: tc.ID, Type: "function"}
				wire.Function.Name = tc.Name
				wire.Function.Arguments = tc.Arguments
				msg.ToolCalls = append(msg.ToolCalls, wire)
			}
			out = append(out, msg)

		case chat.RoleUser:
			if m.HasParts() {
				out = append(out, openaiMessage{
					Role:    chat.RoleUser,
					Content: marshalOpenAIParts(m.Parts),
				})
			} else {
				raw, _ := json.Marshal(m.Content)
				out = append(out, openaiMessage{Role: chat.RoleUser, Content: raw})
			}
		}
	}
	return out
}

func mediaParts(parts []chat.ContentPart) []chat.ContentPart {
	var media []chat.ContentPart
	for _, p := range parts {
		if p.Type == chat.BlockImage || p.Type == chat.BlockAudio {
			media = append(media, p)
		}
	}
	return media
}

// marshalOpenAIParts serializes content parts to the multimodal array form.
func marshalOpenAIParts(parts []chat.ContentPart) json.RawMessage {
	wire := make([]map[string]any, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case chat.BlockImage:
			url := p.ImageURL
			if url == "" {
				url = fmt.Sprintf("data:%s;base64,%s", p.MimeType, p.ImageData)
			}
			wire = append(wire, map[string]any{
				"type":      "image_url",
				"image_url": map[string]any{"url": url},
			})
		case chat.BlockAudio:
			wire = append(wire, map[string]any{
				"type": "input_audio",
				"input_audio": map[string]any{
					"data":   p.AudioData,
					"format": audioFormat(p.MimeType),
				},
			})
		default:
			wire = append(wire, map[string]any{"type": "text", "text": p.Text})
		}
	}
	raw, _ := json.Marshal(wire)
	return raw
}

func audioFormat(mime string) string {
	if strings.Contains(mime, "wav") {
		return "wav"
	}
	return "mp3"
}

// ---------------------------------------------------------------------------
// Tool schema translation
// ---------------------------------------------------------------------------

func convertOpenAIProp(v chat.ToolProp) map[string]any {
	prop := map[string]any{"type": v.Type}
	if v.Description != "" {
		prop["description"] = v.Description
	}
	if len(v.Enum) > 0 {
		prop["enum"] = v.Enum
	}
	if v.Items != nil {
		prop["items"] = convertOpenAIProp(*v.Items)
	}
	if len(v.Properties) > 0 {
		nested := make(map[string]any, len(v.Properties))
		for k, np := range v.Properties {
			nested[k] = convertOpenAIProp(np)
		}
		prop["properties"] = nested
	}
	if len(v.Required) > 0 {
		prop["required"] = v.Required
	}
	return prop
}

func toOpenAITools(specs []chat.ToolSpec) []openaiTool {
	if len(specs) == 0 {
		return nil
	}
	tools := make([]openaiTool, len(specs))
	for i, s := range specs {
		props := make(map[string]any, len(s.Properties))
		for k, v := range s.Properties {
			props[k] = convertOpenAIProp(v)
		}
		req := s.Required
		if req == nil {
			req = []string{}
		}
		params := map[string]any{
			"type":       "object",
			"properties": props,
			"required":   req,
		}
		paramsJSON, _ := json.Marshal(params)
		tools[i] = openaiTool{
			Type: "function",
			Function: openaiFunction{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  paramsJSON,
			},
		}
	}
	return tools
}

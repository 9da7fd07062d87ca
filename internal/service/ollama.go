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
// ollamaVendor — the local Ollama chat protocol (NDJSON)
// ---------------------------------------------------------------------------

type ollamaVendor struct{}

func (v *ollamaVendor) name() string { return "ollama" }

const ollamaDefaultBaseURL = "http://localhost:11434"

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []openaiTool    `json:"tools,omitempty"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	Images    []string         `json:"images,omitempty"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

func (v *ollamaVendor) buildRequest(o Options, msgs []chat.Message, tools []chat.ToolSpec) (transport.Request, error) {
	prepared, err := prepareMessages(o, msgs)
	if err != nil {
		return transport.Request{}, err
	}

	temp := model.ClampTemperature(o.Model, o.Temperature)
	reqBody := ollamaRequest{
		Model:    o.Model,
		Messages: buildOllamaMessages(prepared, o.System),
		Stream:   true,
		Tools:    toOpenAITools(tools),
		Options: &ollamaOptions{
			Temperature: &temp,
			NumPredict:  clampMaxTokens(o),
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return transport.Request{}, fmt.Errorf("marshaling request: %w", err)
	}

	base := o.BaseURL
	if base == "" {
		base = ollamaDefaultBaseURL
	}
	return transport.Request{
		URL:       strings.TrimSuffix(base, "/") + "/api/chat",
		Method:    http.MethodPost,
		Header:    http.Header{"Content-Type": {"application/json"}},
		Body:      body,
		Streaming: true,
	}, nil
}

func (v *ollamaVendor) hooks(http.Header) stream.Hooks { return stream.OllamaHooks() }

func (v *ollamaVendor) parseError(status int, header http.Header, body []byte) error {
	var envelope struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != "" {
		return transport.NewAPIError(status, "", envelope.Error, header)
	}
	return parseErrorEnvelope(status, header, body)
}

func (v *ollamaVendor) toolMessages(call *chat.ToolUse, parts []chat.ContentPart, isError bool) []chat.Message {
	return defaultToolMessages(call, parts, isError)
}

// buildOllamaMessages flattens neutral messages: images ride in a parallel
// base64 array, tool calls carry parsed argument objects.
func buildOllamaMessages(msgs []chat.Message, system string) []ollamaMessage {
	out := make([]ollamaMessage, 0, len(msgs)+1)
	if system != "" {
		out = append(out, ollamaMessage{Role: chat.RoleSystem, Content: system})
	}

	for _, m := range msgs {
		switch m.Role {
		case chat.RoleSystem:
			if system == "" {
				out = append(out, ollamaMessage{Role: chat.RoleSystem, Content: m.Content})
			}

		case chat.RoleTool:
			out = append(out, ollamaMessage{Role: "tool", Content: m.Text()})

		case chat.RoleAssistant:
			msg := ollamaMessage{Role: chat.RoleAssistant, Content: m.Text()}
			for _, tc := range m.ToolCalls {
				args := map[string]any{}
				if tc.Arguments != "" {
					_ = json.Unmarshal([]byte(tc.Arguments), &args)
				}
				var wire ollamaToolCall
				wire.Function.Name = tc.Name
				wire.Function.Arguments = args
				msg.ToolCalls = append(msg.ToolCalls, wire)
			}
			out = append(out, msg)

		default:
			msg := ollamaMessage{Role: chat.RoleUser, Content: m.Text()}
			for _, p := range m.Parts {
				if p.Type == chat.BlockImage && p.ImageData != "" {
					msg.Images = append(msg.Images, p.ImageData)
				}
			}
			out = append(out, msg)
		}
	}
	return out
}

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
// mistralVendor — OpenAI-compatible requests against the Mistral API
// ---------------------------------------------------------------------------

type mistralVendor struct{}

func (v *mistralVendor) name() string { return "mistral" }

const mistralDefaultBaseURL = "https://api.mistral.ai"

func (v *mistralVendor) buildRequest(o Options, msgs []chat.Message, tools []chat.ToolSpec) (transport.Request, error) {
	prepared, err := prepareMessages(o, msgs)
	if err != nil {
		return transport.Request{}, err
	}

	wireMsgs := buildOpenAIMessages(prepared, o.System, false)
	wireMsgs = insertMistralBridge(wireMsgs)

	temp := model.ClampTemperature(o.Model, o.Temperature)
	reqBody := openaiRequest{
		Model:       o.Model,
		Messages:    wireMsgs,
		Stream:      true,
		Tools:       toOpenAITools(tools),
		Temperature: &temp,
		MaxTokens:   clampMaxTokens(o),
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return transport.Request{}, fmt.Errorf("marshaling request: %w", err)
	}

	base := o.BaseURL
	if base == "" {
		base = mistralDefaultBaseURL
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

func (v *mistralVendor) hooks(http.Header) stream.Hooks { return stream.OpenAIHooks() }

func (v *mistralVendor) parseError(status int, header http.Header, body []byte) error {
	return parseErrorEnvelope(status, header, body)
}

func (v *mistralVendor) toolMessages(call *chat.ToolUse, parts []chat.ContentPart, isError bool) []chat.Message {
	return defaultToolMessages(call, parts, isError)
}

// insertMistralBridge works around a protocol quirk: the API rejects a tool
// message immediately followed by a user message at the head of a short
// conversation. The exact trigger (three messages, tool then user) is kept
// as-is rather than generalized; the vendor does not document the underlying
// constraint.
func insertMistralBridge(msgs []openaiMessage) []openaiMessage {
	if len(msgs) != 3 || msgs[1].Role != "tool" || msgs[2].Role != chat.RoleUser {
		return msgs
	}
	bridge := openaiMessage{Role: chat.RoleAssistant}
	bridge.Content, _ = json.Marshal("Understood.")

	out := make([]openaiMessage, 0, 4)
	out = append(out, msgs[0], msgs[1], bridge, msgs[2])
	return out
}

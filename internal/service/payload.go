package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/halcyon-chat/halcyon/internal/chat"
	"github.com/halcyon-chat/halcyon/internal/model"
	"github.com/halcyon-chat/halcyon/internal/transport"
)

// structuredPrefix marks stored messages whose content is a serialized
// rich-content payload rather than plain text. Replayed history carries
// prior images and documents this way.
const structuredPrefix = `{"parts":`

// prepareMessages applies the vendor-independent payload steps in order:
// structured-prompt expansion, history trimming, and capability gating.
func prepareMessages(o Options, msgs []chat.Message) ([]chat.Message, error) {
	caps := model.Lookup(o.Model)

	out := make([]chat.Message, 0, len(msgs))
	for _, m := range msgs {
		expanded, err := expandStructured(m)
		if err != nil {
			return nil, err
		}
		expanded.Parts = gateParts(expanded.Parts, caps)
		out = append(out, expanded)
	}
	return trimHistory(out, o.HistoryTurns), nil
}

// expandStructured rehydrates a stored structured prompt into content parts.
// A malformed payload fails the turn; silently replaying a corrupted rich
// message would desync the transcript.
func expandStructured(m chat.Message) (chat.Message, error) {
	if len(m.Parts) > 0 || !strings.HasPrefix(strings.TrimSpace(m.Content), structuredPrefix) {
		return m, nil
	}
	var payload struct {
		Parts []chat.ContentPart `json:"parts"`
	}
	if err := json.Unmarshal([]byte(m.Content), &payload); err != nil {
		return chat.Message{}, fmt.Errorf("malformed structured prompt: %w", err)
	}
	m.Content = ""
	m.Parts = payload.Parts
	return m, nil
}

// gateParts drops media parts the active model cannot accept, so the request
// is not rejected wholesale by the API.
func gateParts(parts []chat.ContentPart, caps model.Capabilities) []chat.ContentPart {
	if len(parts) == 0 {
		return parts
	}
	// The caller's message list is re-prepared on every tool-loop pass, so
	// filtering must not write into the input's backing array.
	out := make([]chat.ContentPart, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case chat.BlockImage:
			if !caps.Vision {
				continue
			}
		case chat.BlockAudio:
			if !caps.Audio {
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// trimHistory keeps the last k user turns plus everything after them, so
// long sessions do not overflow the context window. A leading system message
// always survives.
func trimHistory(msgs []chat.Message, k int) []chat.Message {
	if k <= 0 {
		return msgs
	}
	userSeen := 0
	cut := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == chat.RoleUser {
			userSeen++
			if userSeen == k {
				cut = i
				break
			}
		}
	}
	if cut == 0 {
		return msgs
	}

	out := make([]chat.Message, 0, len(msgs)-cut+1)
	if msgs[0].Role == chat.RoleSystem {
		out = append(out, msgs[0])
	}
	return append(out, msgs[cut:]...)
}

// clampMaxTokens bounds the requested output budget to the model's ceiling.
func clampMaxTokens(o Options) int {
	caps := model.Lookup(o.Model)
	max := o.MaxTokens
	if max <= 0 || max > caps.MaxOutputTokens {
		max = caps.MaxOutputTokens
	}
	return max
}

// parseErrorEnvelope handles the OpenAI-style error body shared by several
// vendors: {"error":{"message","type"}}. Non-JSON bodies fall back to raw
// text.
func parseErrorEnvelope(status int, header http.Header, body []byte) error {
	errType := ""
	message := fmt.Sprintf("HTTP %d", status)

	if strings.Contains(header.Get("Content-Type"), "json") {
		var envelope struct {
			Error *struct {
				Message string `json:"message"`
				Type    string `json:"type"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &envelope) == nil && envelope.Error != nil {
			errType = envelope.Error.Type
			message = envelope.Error.Message
		}
	} else if len(body) > 0 {
		message = strings.TrimSpace(string(body))
	}
	return transport.NewAPIError(status, errType, message, header)
}

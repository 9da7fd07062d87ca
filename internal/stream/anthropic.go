package stream

import (
	"encoding/json"

	"github.com/halcyon-chat/halcyon/internal/chat"
	"github.com/halcyon-chat/halcyon/internal/transport"
)

// anthropicEvent is one decoded typed event from an Anthropic-style stream.
type anthropicEvent struct {
	Type         string `json:"type"`
	Index        int    `json:"index"`
	ContentBlock *struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		Thinking    string `json:"thinking"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Message *struct {
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// AnthropicHooks parses Anthropic typed SSE events (message_start,
// content_block_start, content_block_delta, message_delta, message_stop,
// ping, error) into normalized chunks. Anthropic reports output tokens as a
// running total, so the hook carries state and emits per-event deltas for
// the engine's summing accumulator.
func AnthropicHooks() Hooks {
	seenOutput := 0
	return Hooks{
		ParseReply: func(fragment string) (chat.Chunk, error) {
			c, err := parseAnthropicReply(fragment)
			if err != nil {
				return c, err
			}
			if c.OutputTokens > 0 {
				delta := c.OutputTokens - seenOutput
				seenOutput = c.OutputTokens
				if delta < 0 {
					delta = 0
				}
				c.OutputTokens = delta
			}
			return c, nil
		},
	}
}

func parseAnthropicReply(fragment string) (chat.Chunk, error) {
	var ev anthropicEvent
	if err := json.Unmarshal([]byte(fragment), &ev); err != nil {
		return chat.Chunk{}, err
	}

	var c chat.Chunk
	switch ev.Type {
	case "ping":
		// Heartbeat, nothing to do.

	case "error":
		errType := ""
		errMsg := "unknown API error"
		if ev.Error != nil {
			errType = ev.Error.Type
			errMsg = ev.Error.Message
		}
		c.Err = transport.NewStreamError(errType, errMsg)

	case "message_start":
		if ev.Message != nil {
			c.InputTokens = ev.Message.Usage.InputTokens
			c.OutputTokens = ev.Message.Usage.OutputTokens
		}

	case "content_block_start":
		if ev.ContentBlock != nil && ev.ContentBlock.Type == "tool_use" {
			c.ToolCalls = []chat.ToolCallDelta{{
				ID:    ev.ContentBlock.ID,
				Name:  ev.ContentBlock.Name,
				Index: ev.Index,
			}}
		}

	case "content_block_delta":
		switch ev.Delta.Type {
		case "text_delta":
			c.Content = ev.Delta.Text
		case "thinking_delta":
			c.Reasoning = ev.Delta.Thinking
		case "input_json_delta":
			c.ToolCalls = []chat.ToolCallDelta{{
				Index:        ev.Index,
				ArgsFragment: ev.Delta.PartialJSON,
			}}
		}

	case "message_delta":
		c.OutputTokens = ev.Usage.OutputTokens

	case "message_stop":
		c.IsEnd = true
	}
	return c, nil
}

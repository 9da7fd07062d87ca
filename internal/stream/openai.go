package stream

import (
	"encoding/json"

	"github.com/halcyon-chat/halcyon/internal/chat"
	"github.com/halcyon-chat/halcyon/internal/transport"
)

// openaiFrame is one decoded "data:" payload from an OpenAI-style
// chat-completions stream.
type openaiFrame struct {
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Role             string `json:"role"`
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
			ToolCalls        []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// OpenAIHooks parses OpenAI-style `choices[0].delta` SSE frames. Also fits
// the many OpenAI-compatible backends (Mistral, local runtimes) that reuse
// the same stream grammar.
func OpenAIHooks() Hooks {
	return Hooks{ParseReply: parseOpenAIReply}
}

func parseOpenAIReply(fragment string) (chat.Chunk, error) {
	var frame openaiFrame
	if err := json.Unmarshal([]byte(fragment), &frame); err != nil {
		return chat.Chunk{}, err
	}

	var c chat.Chunk
	if frame.Error != nil {
		c.Err = transport.NewStreamError(frame.Error.Type, frame.Error.Message)
		return c, nil
	}
	if frame.Usage != nil {
		c.InputTokens = frame.Usage.PromptTokens
		c.OutputTokens = frame.Usage.CompletionTokens
	}
	for _, choice := range frame.Choices {
		c.Content += choice.Delta.Content
		c.Reasoning += choice.Delta.ReasoningContent
		for _, tc := range choice.Delta.ToolCalls {
			c.ToolCalls = append(c.ToolCalls, chat.ToolCallDelta{
				Index:        tc.Index,
				ID:           tc.ID,
				Name:         tc.Function.Name,
				ArgsFragment: tc.Function.Arguments,
			})
		}
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			c.IsEnd = true
		}
	}
	return c, nil
}

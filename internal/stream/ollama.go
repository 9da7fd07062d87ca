package stream

import (
	"encoding/json"

	"github.com/halcyon-chat/halcyon/internal/chat"
)

// ollamaFrame is one NDJSON line from an Ollama /api/chat stream.
type ollamaFrame struct {
	Message *struct {
		Content   string `json:"content"`
		Thinking  string `json:"thinking"`
		ToolCalls []struct {
			Function struct {
				Name      string         `json:"name"`
				Arguments map[string]any `json:"arguments"`
			} `json:"function"`
		} `json:"tool_calls"`
	} `json:"message"`
	Done            bool   `json:"done"`
	Error           string `json:"error"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// OllamaHooks parses Ollama's newline-delimited JSON chat stream. Tool
// arguments arrive as complete objects, never as partial JSON text.
func OllamaHooks() Hooks {
	return Hooks{ParseReply: parseOllamaReply}
}

func parseOllamaReply(fragment string) (chat.Chunk, error) {
	var frame ollamaFrame
	if err := json.Unmarshal([]byte(fragment), &frame); err != nil {
		return chat.Chunk{}, err
	}

	c := chat.Chunk{
		InputTokens:  frame.PromptEvalCount,
		OutputTokens: frame.EvalCount,
		IsEnd:        frame.Done,
	}
	if frame.Error != "" {
		c.Err = &ollamaError{msg: frame.Error}
		return c, nil
	}
	if frame.Message != nil {
		c.Content = frame.Message.Content
		c.Reasoning = frame.Message.Thinking
		for _, tc := range frame.Message.ToolCalls {
			args := tc.Function.Arguments
			if args == nil {
				args = map[string]any{}
			}
			c.ToolCalls = append(c.ToolCalls, chat.ToolCallDelta{
				Name: tc.Function.Name,
				Args: args,
			})
		}
	}
	return c, nil
}

type ollamaError struct{ msg string }

func (e *ollamaError) Error() string { return e.msg }

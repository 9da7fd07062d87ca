package stream

import (
	"encoding/json"
	"strings"

	"github.com/halcyon-chat/halcyon/internal/chat"
	"github.com/halcyon-chat/halcyon/internal/transport"
)

// geminiFrame is one complete top-level JSON object from a Google-style
// streamGenerateContent response.
type geminiFrame struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text         string `json:"text"`
				Thought      bool   `json:"thought"`
				FunctionCall *struct {
					Name string         `json:"name"`
					Args map[string]any `json:"args"`
				} `json:"functionCall"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// GeminiHooks parses Google-style streaming: the response is one top-level
// JSON array whose elements arrive across arbitrary chunk boundaries, so
// framing tracks bracket depth instead of splitting on lines. Token counts
// are cumulative per frame and are reduced to deltas here.
func GeminiHooks() Hooks {
	seenOutput := 0
	lastInput := 0
	return Hooks{
		NewSplitter: func() Splitter { return &bracketSplitter{} },
		ParseReply: func(fragment string) (chat.Chunk, error) {
			c, err := parseGeminiReply(fragment)
			if err != nil {
				return c, err
			}
			if c.InputTokens > 0 {
				lastInput = c.InputTokens
			}
			c.InputTokens = lastInput
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

func parseGeminiReply(fragment string) (chat.Chunk, error) {
	var frame geminiFrame
	if err := json.Unmarshal([]byte(fragment), &frame); err != nil {
		return chat.Chunk{}, err
	}

	var c chat.Chunk
	if frame.Error != nil {
		c.Err = transport.NewStreamError(frame.Error.Status, frame.Error.Message)
		return c, nil
	}
	if frame.UsageMetadata != nil {
		c.InputTokens = frame.UsageMetadata.PromptTokenCount
		c.OutputTokens = frame.UsageMetadata.CandidatesTokenCount
	}
	for _, cand := range frame.Candidates {
		for _, part := range cand.Content.Parts {
			switch {
			case part.FunctionCall != nil:
				// Gemini delivers the whole arguments object in one frame
				// and assigns no call ID.
				c.ToolCalls = append(c.ToolCalls, chat.ToolCallDelta{
					Name: part.FunctionCall.Name,
					Args: part.FunctionCall.Args,
				})
			case part.Thought:
				c.Reasoning += part.Text
			default:
				c.Content += part.Text
			}
		}
		if cand.FinishReason != "" {
			c.IsEnd = true
		}
	}
	return c, nil
}

// bracketSplitter scans a stream of the form `[{...},{...},...]` and yields
// each complete top-level object. String and escape state is tracked so
// braces inside JSON strings do not confuse the depth counter.
type bracketSplitter struct {
	depth    int
	inString bool
	escaped  bool
	started  bool
	buf      strings.Builder
}

func (s *bracketSplitter) Split(text string) []string {
	var frags []string
	// Scan bytes, not runes: every state-relevant character is ASCII, and a
	// multi-byte character split across network reads must pass through
	// untouched rather than decode as replacement runes.
	for i := 0; i < len(text); i++ {
		b := text[i]
		if s.inString {
			s.buf.WriteByte(b)
			switch {
			case s.escaped:
				s.escaped = false
			case b == '\\':
				s.escaped = true
			case b == '"':
				s.inString = false
			}
			continue
		}

		switch b {
		case '{':
			s.depth++
			s.started = true
			s.buf.WriteByte(b)
		case '}':
			s.depth--
			s.buf.WriteByte(b)
			if s.started && s.depth == 0 {
				frags = append(frags, s.buf.String())
				s.buf.Reset()
				s.started = false
			}
		case '"':
			if s.started {
				s.inString = true
				s.buf.WriteByte(b)
			}
		default:
			if s.started {
				s.buf.WriteByte(b)
			}
			// Top-level '[', ']', ',' and whitespace are framing noise.
		}
	}
	return frags
}

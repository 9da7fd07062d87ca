package chat

import "strings"

// Role values accepted in a Message. Vendors differ on which subset they
// understand; each service remaps as needed ("model" is Gemini's assistant).
const (
	RoleSystem    = "system"
	RoleDeveloper = "developer"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleModel     = "model"
)

// ContentPart is one element of a multi-part message body: plain text, an
// inline or referenced image, or an inline audio clip.
type ContentPart struct {
	Type string `json:"type"` // BlockText, BlockImage, or BlockAudio

	Text string `json:"text,omitempty"`

	// Image payload: either a base64 data blob with its MIME type, or a URL.
	ImageURL  string `json:"image_url,omitempty"`
	ImageData string `json:"image_data,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`

	// Audio payload, base64-encoded.
	AudioData string `json:"audio_data,omitempty"`
}

// ToolCallRef is an assistant-issued tool call descriptor carried on a
// request message when replaying history to a vendor.
type ToolCallRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// Arguments is the serialized JSON arguments object.
	Arguments string `json:"arguments"`
}

// Message is one unit of conversation input sent to a vendor. Content and
// Parts are mutually exclusive; Parts wins when non-empty. Messages are
// never mutated once handed to a transport.
type Message struct {
	Role    string        `json:"role"`
	Content string        `json:"content,omitempty"`
	Parts   []ContentPart `json:"parts,omitempty"`

	// Assistant tool-call replay.
	ToolCalls []ToolCallRef `json:"tool_calls,omitempty"`

	// Tool-result correlation.
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

// HasParts reports whether the message carries structured content parts.
func (m Message) HasParts() bool { return len(m.Parts) > 0 }

// Text extracts the plain text of a message, joining text parts.
func (m Message) Text() string {
	if !m.HasParts() {
		return m.Content
	}
	var parts []string
	for _, p := range m.Parts {
		if p.Type == "text" && p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ToolCallDelta is a partial tool-call fragment inside one stream increment.
// Either Args (a complete value) or ArgsFragment (a partial JSON text slice
// that only parses once all fragments are concatenated) is set.
type ToolCallDelta struct {
	ID           string
	Name         string
	Args         map[string]any
	ArgsFragment string
	// Index identifies which parallel tool call a fragment belongs to.
	// Accumulation assumes 0 unless the vendor says otherwise.
	Index int
}

// Chunk is one normalized increment emitted while consuming a vendor stream.
type Chunk struct {
	Content   string
	Reasoning string
	IsEnd     bool
	ToolCalls []ToolCallDelta

	// InputTokens is a running total reported by the vendor; OutputTokens is
	// vendor-dependent (per-chunk delta or running total, see each hook set).
	InputTokens  int
	OutputTokens int

	// Err carries a vendor-reported error envelope embedded in the stream.
	Err error
}

// ToolUse is a finalized tool invocation assembled from stream fragments.
type ToolUse struct {
	ID   string
	Name string // namespaced "<serverKey>--<toolName>"
	Args map[string]any
}

// ReadResult is the terminal accumulation of one stream read: the assembled
// text, reasoning, at most one finalized tool call, and token usage.
type ReadResult struct {
	Content      string
	Reasoning    string
	Tool         *ToolUse
	InputTokens  int
	OutputTokens int
}

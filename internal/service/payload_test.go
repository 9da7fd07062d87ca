package service

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/halcyon-chat/halcyon/internal/chat"
	"github.com/halcyon-chat/halcyon/internal/model"
)

func TestTrimHistory(t *testing.T) {
	msgs := []chat.Message{
		{Role: chat.RoleSystem, Content: "sys"},
		{Role: chat.RoleUser, Content: "u1"},
		{Role: chat.RoleAssistant, Content: "a1"},
		{Role: chat.RoleUser, Content: "u2"},
		{Role: chat.RoleAssistant, Content: "a2"},
		{Role: chat.RoleUser, Content: "u3"},
	}

	out := trimHistory(msgs, 2)
	if len(out) != 4 {
		t.Fatalf("len = %d, want 4 (system + last 2 turns)", len(out))
	}
	if out[0].Content != "sys" {
		t.Fatal("system message must survive trimming")
	}
	if out[1].Content != "u2" || out[3].Content != "u3" {
		t.Fatalf("unexpected window: %+v", out)
	}

	// Window larger than history is a no-op.
	out = trimHistory(msgs, 10)
	if len(out) != len(msgs) {
		t.Fatalf("len = %d, want %d", len(out), len(msgs))
	}
}

func TestExpandStructured(t *testing.T) {
	m := chat.Message{
		Role:    chat.RoleUser,
		Content: `{"parts":[{"type":"text","text":"look at this"},{"type":"image","image_data":"QUJD","mime_type":"image/png"}]}`,
	}
	out, err := expandStructured(m)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if len(out.Parts) != 2 || out.Parts[1].Type != chat.BlockImage {
		t.Fatalf("parts = %+v", out.Parts)
	}
	if out.Content != "" {
		t.Fatal("content must be cleared after expansion")
	}
}

func TestExpandStructured_malformedIsFatal(t *testing.T) {
	m := chat.Message{Role: chat.RoleUser, Content: `{"parts":[{"type":`}
	if _, err := expandStructured(m); err == nil {
		t.Fatal("malformed structured prompt must fail the turn")
	}
}

func TestGateParts(t *testing.T) {
	parts := []chat.ContentPart{
		{Type: chat.BlockText, Text: "hi"},
		{Type: chat.BlockImage, ImageData: "QUJD", MimeType: "image/png"},
		{Type: chat.BlockAudio, AudioData: "QUJD", MimeType: "audio/mpeg"},
	}

	noMedia := gateParts(append([]chat.ContentPart(nil), parts...), model.Capabilities{})
	if len(noMedia) != 1 || noMedia[0].Type != chat.BlockText {
		t.Fatalf("gated = %+v", noMedia)
	}

	visionOnly := gateParts(append([]chat.ContentPart(nil), parts...), model.Capabilities{Vision: true})
	if len(visionOnly) != 2 {
		t.Fatalf("gated = %+v", visionOnly)
	}
}

func TestPrepareMessages_repreparesWithoutMutation(t *testing.T) {
	msgs := []chat.Message{{
		Role: chat.RoleUser,
		Parts: []chat.ContentPart{
			{Type: chat.BlockImage, ImageData: "QUJD", MimeType: "image/png"},
			{Type: chat.BlockText, Text: "describe this"},
		},
	}}
	o := Options{Model: "mistral-large"}

	first, err := prepareMessages(o, msgs)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	// The tool loop re-prepares the same message list on each pass.
	second, err := prepareMessages(o, msgs)
	if err != nil {
		t.Fatalf("re-prepare: %v", err)
	}

	for _, out := range [][]chat.Message{first, second} {
		if len(out[0].Parts) != 1 || out[0].Parts[0].Type != chat.BlockText {
			t.Fatalf("gated parts = %+v", out[0].Parts)
		}
	}
	if len(msgs[0].Parts) != 2 || msgs[0].Parts[0].Type != chat.BlockImage {
		t.Fatalf("caller's parts mutated: %+v", msgs[0].Parts)
	}
}

func TestBuildOpenAIMessages_developerRole(t *testing.T) {
	msgs := buildOpenAIMessages([]chat.Message{{Role: chat.RoleUser, Content: "hi"}}, "be brief", true)
	if msgs[0].Role != chat.RoleDeveloper {
		t.Fatalf("role = %q, want developer for reasoning families", msgs[0].Role)
	}
	msgs = buildOpenAIMessages([]chat.Message{{Role: chat.RoleUser, Content: "hi"}}, "be brief", false)
	if msgs[0].Role != chat.RoleSystem {
		t.Fatalf("role = %q, want system", msgs[0].Role)
	}
}

func TestInsertMistralBridge(t *testing.T) {
	raw := func(s string) json.RawMessage {
		b, _ := json.Marshal(s)
		return b
	}
	msgs := []openaiMessage{
		{Role: chat.RoleSystem, Content: raw("sys")},
		{Role: "tool", Content: raw("result"), ToolCallID: "c1"},
		{Role: chat.RoleUser, Content: raw("next question")},
	}
	out := insertMistralBridge(msgs)
	if len(out) != 4 {
		t.Fatalf("len = %d, want 4", len(out))
	}
	if out[2].Role != chat.RoleAssistant {
		t.Fatalf("bridge role = %q", out[2].Role)
	}

	// Any other shape passes untouched.
	same := insertMistralBridge(msgs[:2])
	if len(same) != 2 {
		t.Fatalf("len = %d, want 2", len(same))
	}
}

func TestToGeminiTools_schemaNormalization(t *testing.T) {
	specs := []chat.ToolSpec{{
		Name:        "files--search",
		Description: "searches",
		Properties: map[string]chat.ToolProp{
			"mode":  {Type: "integer", Enum: []string{"1", "2"}},
			"limit": {Type: "integer"},
		},
		Required: []string{"mode"},
	}}

	tools := toGeminiTools(specs)
	if len(tools) != 1 || len(tools[0].FunctionDeclarations) != 1 {
		t.Fatalf("tools = %+v", tools)
	}
	decl := tools[0].FunctionDeclarations[0]
	params := decl.Parameters
	props := params["properties"].(map[string]any)

	mode := props["mode"].(map[string]any)
	if enum := mode["enum"].([]string); len(enum) != 2 || enum[1] != "2" {
		t.Fatalf("enum carried wrong: %v", enum)
	}
	if mode["type"] != "STRING" {
		t.Fatalf("enum property forced to %v, want STRING", mode["type"])
	}
	if props["limit"].(map[string]any)["type"] != "INTEGER" {
		t.Fatal("integer type not uppercased")
	}

	if _, ok := params["additionalProperties"]; ok {
		t.Fatal("additionalProperties must not appear in declarations")
	}
}

func TestClampMaxTokens(t *testing.T) {
	got := clampMaxTokens(Options{Model: "claude-3-5-haiku", MaxTokens: 999999})
	if got != 8192 {
		t.Fatalf("clamp = %d, want model ceiling 8192", got)
	}
	got = clampMaxTokens(Options{Model: "claude-3-5-haiku", MaxTokens: 1024})
	if got != 1024 {
		t.Fatalf("clamp = %d, want requested 1024", got)
	}
	if got := clampMaxTokens(Options{Model: "claude-3-5-haiku"}); got != 8192 {
		t.Fatalf("default = %d, want model ceiling", got)
	}
}

func TestParseErrorEnvelope_rawBody(t *testing.T) {
	err := parseErrorEnvelope(502, map[string][]string{"Content-Type": {"text/html"}}, []byte("<h1>Bad Gateway</h1>"))
	if !strings.Contains(err.Error(), "Bad Gateway") {
		t.Fatalf("err = %v", err)
	}
}

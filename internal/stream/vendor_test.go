package stream

import (
	"context"
	"strings"
	"testing"
)

func TestAnthropicRead_toolCall(t *testing.T) {
	sse := strings.Join([]string{
		`event: message_start`,
		`data: {"type":"message_start","message":{"usage":{"input_tokens":20,"output_tokens":1}}}`,
		``,
		`event: ping`,
		`data: {"type":"ping"}`,
		``,
		`event: content_block_start`,
		`data: {"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"toolu_1","name":"kb--search"}}`,
		``,
		`event: content_block_delta`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"{\"query\":"}}`,
		``,
		`event: content_block_delta`,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"input_json_delta","partial_json":"\"cats\"}"}}`,
		``,
		`event: message_delta`,
		`data: {"type":"message_delta","usage":{"output_tokens":14}}`,
		``,
		`event: message_stop`,
		`data: {"type":"message_stop"}`,
		``,
	}, "\n")

	r, err := New(strings.NewReader(sse), AnthropicHooks())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var tools []string
	res, rerr := r.Read(context.Background(), Callbacks{
		OnToolCalls: func(name string) { tools = append(tools, name) },
	})
	if rerr != nil {
		t.Fatalf("read: %v", rerr)
	}
	if res.Tool == nil {
		t.Fatal("expected a finalized tool call")
	}
	if res.Tool.ID != "toolu_1" || res.Tool.Name != "kb--search" {
		t.Errorf("tool = %+v", res.Tool)
	}
	if res.Tool.Args["query"] != "cats" {
		t.Errorf("args = %+v", res.Tool.Args)
	}
	if len(tools) != 1 || tools[0] != "kb--search" {
		t.Errorf("tool notifications = %v", tools)
	}
	if res.InputTokens != 20 || res.OutputTokens != 14 {
		t.Errorf("usage = %d/%d", res.InputTokens, res.OutputTokens)
	}
}

func TestOllamaRead_chat(t *testing.T) {
	body := strings.Join([]string{
		`{"message":{"content":"Hi "},"done":false}`,
		`{"message":{"content":"there"},"done":false}`,
		`{"message":{"content":""},"done":true,"prompt_eval_count":5,"eval_count":2}`,
		``,
	}, "\n")
	r, _ := New(strings.NewReader(body), OllamaHooks())
	res, err := r.Read(context.Background(), Callbacks{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if res.Content != "Hi there" {
		t.Errorf("content = %q", res.Content)
	}
	if res.InputTokens != 5 || res.OutputTokens != 2 {
		t.Errorf("usage = %d/%d", res.InputTokens, res.OutputTokens)
	}
}

func TestOllamaRead_completeToolArgs(t *testing.T) {
	body := `{"message":{"content":"","tool_calls":[{"function":{"name":"sys--time","arguments":{"tz":"UTC"}}}]},"done":true}` + "\n"
	r, _ := New(strings.NewReader(body), OllamaHooks())
	res, err := r.Read(context.Background(), Callbacks{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if res.Tool == nil || res.Tool.Name != "sys--time" || res.Tool.Args["tz"] != "UTC" {
		t.Errorf("tool = %+v", res.Tool)
	}
}

func TestRawRead_passthrough(t *testing.T) {
	body := &chunkReader{chunks: []string{"plain ", "text ", "stream"}}
	r, _ := New(body, RawHooks())
	var deltas []string
	res, err := r.Read(context.Background(), Callbacks{
		OnProgress: func(text, _ string) { deltas = append(deltas, text) },
	})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if res.Content != "plain text stream" {
		t.Errorf("content = %q", res.Content)
	}
	if len(deltas) != 3 {
		t.Errorf("deltas = %v", deltas)
	}
}

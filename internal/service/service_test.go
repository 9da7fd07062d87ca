package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/halcyon-chat/halcyon/internal/chat"
	"github.com/halcyon-chat/halcyon/internal/toolhost"
	"github.com/halcyon-chat/halcyon/internal/transport"
)

// scriptedHost returns a fixed tool list and records calls.
type scriptedHost struct {
	mu        sync.Mutex
	calls     []toolhost.CallRequest
	cancelled []string
	result    toolhost.CallResult
	err       error
}

func (h *scriptedHost) ListTools(string) ([]chat.ToolSpec, map[string]error) {
	return []chat.ToolSpec{{
		Name:        "calc--add",
		Description: "adds numbers",
		Properties: map[string]chat.ToolProp{
			"a": {Type: "number"},
			"b": {Type: "number"},
		},
	}}, nil
}

func (h *scriptedHost) Call(ctx context.Context, req toolhost.CallRequest) (*toolhost.CallResult, error) {
	h.mu.Lock()
	h.calls = append(h.calls, req)
	h.mu.Unlock()
	if h.err != nil {
		return nil, h.err
	}
	res := h.result
	return &res, nil
}

func (h *scriptedHost) Cancel(requestID string) {
	h.mu.Lock()
	h.cancelled = append(h.cancelled, requestID)
	h.mu.Unlock()
}

func (h *scriptedHost) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func sseHandler(frames ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frames {
			fmt.Fprintf(w, "data: %s\n\n", f)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}
}

func TestChat_toolLoopTerminates(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			sseHandler(
				`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"calc--add","arguments":""}}]}}]}`,
				`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"a\":1,\"b\":2}"}}]}}]}`,
			)(w, r)
			return
		}
		sseHandler(`{"choices":[{"delta":{"content":"The sum is 3."}}]}`)(w, r)
	}))
	defer srv.Close()

	host := &scriptedHost{
		result: toolhost.CallResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "3"}},
		},
	}

	var completions []Result
	var toolNames []string
	svc := NewOpenAI(Options{Model: "gpt-4o", APIKey: "k", BaseURL: srv.URL},
		&transport.Direct{Client: srv.Client()}, host, nil)
	svc.OnToolCalls = func(name string) { toolNames = append(toolNames, name) }
	svc.OnComplete = func(res Result) { completions = append(completions, res) }

	svc.Chat(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "add 1 and 2"}})

	if requests != 2 {
		t.Fatalf("requests = %d, want 2", requests)
	}
	if host.callCount() != 1 {
		t.Fatalf("tool invocations = %d, want 1", host.callCount())
	}
	if len(completions) != 1 {
		t.Fatalf("completions = %d, want 1", len(completions))
	}
	if completions[0].Err != nil {
		t.Fatalf("unexpected error: %v", completions[0].Err)
	}
	if completions[0].Content != "The sum is 3." {
		t.Fatalf("content = %q", completions[0].Content)
	}
	if len(toolNames) == 0 || toolNames[0] != "calc--add" {
		t.Fatalf("tool notifications = %v", toolNames)
	}

	call := host.calls[0]
	if call.ServerKey != "calc" || call.Tool != "add" {
		t.Fatalf("call routed to %s--%s", call.ServerKey, call.Tool)
	}
	if call.RequestID == "" {
		t.Fatal("call must carry a request id")
	}
	if call.Args["a"] != float64(1) || call.Args["b"] != float64(2) {
		t.Fatalf("args = %v", call.Args)
	}
}

func TestChat_abortGuarantee(t *testing.T) {
	firstChunk := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial \"}}]}\n\n")
		w.(http.Flusher).Flush()
		close(firstChunk)
		<-r.Context().Done()
	}))
	defer srv.Close()

	var mu sync.Mutex
	var progressAfterAbort bool
	aborted := false
	var completions []Result

	svc := NewOpenAI(Options{Model: "gpt-4o", APIKey: "k", BaseURL: srv.URL},
		&transport.Direct{Client: srv.Client()}, nil, nil)
	svc.OnReading = func(text, _ string) {
		mu.Lock()
		if aborted {
			progressAfterAbort = true
		}
		mu.Unlock()
	}
	svc.OnComplete = func(res Result) { completions = append(completions, res) }

	go func() {
		<-firstChunk
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		aborted = true
		mu.Unlock()
		svc.Abort()
	}()

	svc.Chat(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "hi"}})

	if len(completions) != 1 {
		t.Fatalf("completions = %d, want exactly 1", len(completions))
	}
	res := completions[0]
	if !res.Aborted {
		t.Fatalf("expected aborted result, got err %v", res.Err)
	}
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", res.Err)
	}
	if res.Content != "partial " {
		t.Fatalf("content = %q, want streamed prefix", res.Content)
	}
	if progressAfterAbort {
		t.Fatal("OnReading fired after abort")
	}
}

func TestChat_httpErrorBeforeReader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"slow down","type":"rate_limit_error"}}`)
	}))
	defer srv.Close()

	var completions []Result
	var errs []error
	svc := NewOpenAI(Options{Model: "gpt-4o", APIKey: "k", BaseURL: srv.URL},
		&transport.Direct{Client: srv.Client()}, nil, nil)
	svc.OnError = func(err error) { errs = append(errs, err) }
	svc.OnComplete = func(res Result) { completions = append(completions, res) }

	svc.Chat(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "hi"}})

	if len(completions) != 1 {
		t.Fatalf("completions = %d, want 1", len(completions))
	}
	var apiErr *transport.APIError
	if !errors.As(completions[0].Err, &apiErr) {
		t.Fatalf("err = %v, want APIError", completions[0].Err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests || apiErr.ErrorType != "rate_limit_error" {
		t.Fatalf("apiErr = %+v", apiErr)
	}
	if apiErr.RetryAfterMs != 2000 {
		t.Fatalf("RetryAfterMs = %d", apiErr.RetryAfterMs)
	}
	if len(errs) == 0 {
		t.Fatal("OnError should fire for transport failures")
	}
}

func TestChat_toolFailureNarratedToModel(t *testing.T) {
	var requests int
	var secondBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			sseHandler(
				`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_9","function":{"name":"calc--add","arguments":"{}"}}]}}]}`,
			)(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		secondBody = string(raw)
		sseHandler(`{"choices":[{"delta":{"content":"Sorry, that failed."}}]}`)(w, r)
	}))
	defer srv.Close()

	host := &scriptedHost{err: errors.New("server exploded")}

	var completions []Result
	svc := NewOpenAI(Options{Model: "gpt-4o", APIKey: "k", BaseURL: srv.URL},
		&transport.Direct{Client: srv.Client()}, host, nil)
	svc.OnComplete = func(res Result) { completions = append(completions, res) }

	svc.Chat(context.Background(), []chat.Message{{Role: chat.RoleUser, Content: "add"}})

	if requests != 2 {
		t.Fatalf("requests = %d, want 2 (failure narrated, not fatal)", requests)
	}
	if len(completions) != 1 || completions[0].Err != nil {
		t.Fatalf("completions = %+v", completions)
	}
	if !strings.Contains(secondBody, "server exploded") {
		t.Fatalf("failure not narrated back to the model: %s", secondBody)
	}
}

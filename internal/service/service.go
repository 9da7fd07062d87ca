// Package service drives one chat turn end to end for a specific vendor:
// payload construction, the streaming request, reader accumulation, and the
// tool loop. It is the only package that knows vendor request schemas.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/halcyon-chat/halcyon/internal/chat"
	"github.com/halcyon-chat/halcyon/internal/content"
	"github.com/halcyon-chat/halcyon/internal/stream"
	"github.com/halcyon-chat/halcyon/internal/toolhost"
	"github.com/halcyon-chat/halcyon/internal/transport"
)

// loopLimit bounds tool-loop recursion within one Chat call.
const loopLimit = 16

// ToolHost is the bridge to external tool servers. Implemented by
// toolhost.Host; narrowed here so tests can script it.
type ToolHost interface {
	ListTools(serverKey string) ([]chat.ToolSpec, map[string]error)
	Call(ctx context.Context, req toolhost.CallRequest) (*toolhost.CallResult, error)
	Cancel(requestID string)
}

// Options configures one Service instance.
type Options struct {
	Model       string
	APIKey      string
	BaseURL     string
	System      string
	Temperature float64
	MaxTokens   int

	// HistoryTurns caps how many prior user turns are replayed per request.
	HistoryTurns int
}

// Result is the terminal outcome of one Chat call. Err is set when the turn
// failed or was aborted; Content and Reasoning always carry whatever had
// streamed in before the failure.
type Result struct {
	Content      string
	Reasoning    string
	InputTokens  int
	OutputTokens int
	Aborted      bool
	Err          error
}

// vendor is the closed per-provider surface: request shape, stream hooks,
// error body parsing, and tool-turn message construction.
type vendor interface {
	name() string
	buildRequest(o Options, msgs []chat.Message, tools []chat.ToolSpec) (transport.Request, error)
	hooks(header http.Header) stream.Hooks
	parseError(status int, header http.Header, body []byte) error
	toolMessages(call *chat.ToolUse, parts []chat.ContentPart, isError bool) []chat.Message
}

// Service runs chat turns against a single vendor endpoint. Callback fields
// are registered before the first Chat call and not changed afterwards.
type Service struct {
	opts   Options
	vendor vendor
	tr     transport.Transport
	host   ToolHost
	loader content.Loader

	OnReading   func(content, reasoning string)
	OnToolCalls func(name string)
	OnError     func(err error)
	OnComplete  func(res Result)

	mu     sync.Mutex
	cancel context.CancelFunc
}

func newService(v vendor, opts Options, tr transport.Transport, host ToolHost, loader content.Loader) *Service {
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = 20
	}
	if tr == nil {
		tr = &transport.Direct{}
	}
	return &Service{opts: opts, vendor: v, tr: tr, host: host, loader: loader}
}

// NewOpenAI returns a Service speaking the OpenAI chat-completions protocol.
func NewOpenAI(opts Options, tr transport.Transport, host ToolHost, loader content.Loader) *Service {
	return newService(&openAIVendor{}, opts, tr, host, loader)
}

// NewClaude returns a Service speaking the Anthropic messages protocol.
func NewClaude(opts Options, tr transport.Transport, host ToolHost, loader content.Loader) *Service {
	return newService(&claudeVendor{}, opts, tr, host, loader)
}

// NewGemini returns a Service speaking the Google generateContent protocol.
func NewGemini(opts Options, tr transport.Transport, host ToolHost, loader content.Loader) *Service {
	return newService(&geminiVendor{}, opts, tr, host, loader)
}

// NewMistral returns a Service speaking Mistral's OpenAI-compatible protocol.
func NewMistral(opts Options, tr transport.Transport, host ToolHost, loader content.Loader) *Service {
	return newService(&mistralVendor{}, opts, tr, host, loader)
}

// NewOllama returns a Service speaking the Ollama chat protocol.
func NewOllama(opts Options, tr transport.Transport, host ToolHost, loader content.Loader) *Service {
	return newService(&ollamaVendor{}, opts, tr, host, loader)
}

// turnState accumulates the user-visible outcome across tool-loop
// iterations of one Chat call.
type turnState struct {
	content      []byte
	reasoning    []byte
	inputTokens  int
	outputTokens int
}

// Chat runs one full turn: request, stream, tool loop, completion. It blocks
// until the turn finishes or is aborted; callers run it in a goroutine.
// OnComplete fires exactly once per call, with partial state on failure.
func (s *Service) Chat(ctx context.Context, messages []chat.Message) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		err := fmt.Errorf("%s: chat already in flight", s.vendor.name())
		s.emitError(err)
		s.complete(Result{Err: err})
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
	}()

	turn := &turnState{}
	err := s.run(ctx, messages, turn, 0)

	res := Result{
		Content:      string(turn.content),
		Reasoning:    string(turn.reasoning),
		InputTokens:  turn.inputTokens,
		OutputTokens: turn.outputTokens,
	}
	if err != nil {
		res.Err = err
		res.Aborted = errors.Is(err, context.Canceled)
		if !res.Aborted {
			s.emitError(err)
		}
	}
	s.complete(res)
}

// Abort cancels the in-flight request and, transitively, any in-flight tool
// call. The completion callback still fires with partial state.
func (s *Service) Abort() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// run performs one request/stream cycle and recurses while the model keeps
// issuing tool calls.
func (s *Service) run(ctx context.Context, msgs []chat.Message, turn *turnState, depth int) error {
	if depth > loopLimit {
		return fmt.Errorf("%s: tool loop limit exceeded (%d iterations)", s.vendor.name(), loopLimit)
	}

	tools := s.collectTools()

	req, err := s.vendor.buildRequest(s.opts, msgs, tools)
	if err != nil {
		return err
	}

	resp, err := s.tr.Send(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: sending request: %w", s.vendor.name(), err)
	}
	defer resp.Body.Close()

	if resp.Status < 200 || resp.Status >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return s.vendor.parseError(resp.Status, resp.Header, raw)
	}

	reader, err := stream.New(resp.Body, s.vendor.hooks(resp.Header))
	if err != nil {
		return fmt.Errorf("%s: %w", s.vendor.name(), err)
	}

	res, readErr := reader.Read(ctx, stream.Callbacks{
		OnProgress: func(text, reasoning string) {
			if s.OnReading != nil {
				s.OnReading(text, reasoning)
			}
		},
		OnToolCalls: func(name string) {
			if s.OnToolCalls != nil {
				s.OnToolCalls(name)
			}
		},
		OnError: s.emitError,
	})

	// Partial accumulation survives failures and aborts.
	turn.content = append(turn.content, res.Content...)
	turn.reasoning = append(turn.reasoning, res.Reasoning...)
	if res.InputTokens > 0 {
		turn.inputTokens = res.InputTokens
	}
	turn.outputTokens += res.OutputTokens
	if readErr != nil {
		return readErr
	}

	if res.Tool == nil {
		return nil
	}

	toolMsgs, err := s.invokeTool(ctx, res.Tool)
	if err != nil {
		return err
	}
	return s.run(ctx, append(msgs, toolMsgs...), turn, depth+1)
}

// collectTools gathers the namespaced tool specs offered to the model.
// Per-server listing failures are reported but do not hide healthy servers.
func (s *Service) collectTools() []chat.ToolSpec {
	if s.host == nil {
		return nil
	}
	specs, failures := s.host.ListTools("")
	for key, err := range failures {
		fmt.Fprintf(os.Stderr, "service: list tools for %s: %v\n", key, err)
	}
	return specs
}

// invokeTool runs one tool call and shapes its result into vendor messages.
// Invocation failures are narrated back to the model as error results; only
// cancellation propagates as an error.
func (s *Service) invokeTool(ctx context.Context, call *chat.ToolUse) ([]chat.Message, error) {
	serverKey, toolName, ok := toolhost.ParseNamespacedName(call.Name)
	if !ok {
		return s.vendor.toolMessages(call, textParts(fmt.Sprintf("unknown tool %q", call.Name)), true), nil
	}

	requestID := uuid.NewString()
	result, err := s.host.Call(ctx, toolhost.CallRequest{
		ServerKey: serverKey,
		Tool:      toolName,
		Args:      call.Args,
		RequestID: requestID,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.host.Cancel(requestID)
			return nil, err
		}
		return s.vendor.toolMessages(call, textParts(fmt.Sprintf("tool call failed: %v", err)), true), nil
	}

	blocks, convErr := content.FromToolResult(ctx, result.Content, s.loader)
	if convErr != nil {
		return s.vendor.toolMessages(call, textParts(fmt.Sprintf("tool result could not be converted: %v", convErr)), true), nil
	}
	return s.vendor.toolMessages(call, content.ToContentParts(blocks), result.IsError), nil
}

func (s *Service) emitError(err error) {
	if s.OnError != nil && err != nil {
		s.OnError(err)
	}
}

func (s *Service) complete(res Result) {
	if s.OnComplete != nil {
		s.OnComplete(res)
	}
}

func textParts(text string) []chat.ContentPart {
	return []chat.ContentPart{{Type: chat.BlockText, Text: text}}
}

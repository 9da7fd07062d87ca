package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/halcyon-chat/halcyon/internal/chat"
)

// doneSentinel is the literal end-of-stream marker used by SSE vendors.
const doneSentinel = "[DONE]"

// retryBufferCap bounds the number of unparsable fragments kept for
// cross-chunk JSON reassembly. Oldest fragments are evicted first.
const retryBufferCap = 5

// readBufSize is the per-iteration read size when draining a stream body.
const readBufSize = 32 * 1024

// Callbacks receive incremental events while a stream is consumed.
// All callbacks are optional.
type Callbacks struct {
	// OnProgress fires for every content-bearing increment, in wire order.
	OnProgress func(textDelta, reasoningDelta string)
	// OnToolCalls fires exactly once per read: with the tool name when a tool
	// call is first detected, or with "" at stream end when none occurred.
	OnToolCalls func(name string)
	// OnError fires on vendor or stream failures. Accumulation continues and
	// Read still returns whatever was gathered.
	OnError func(err error)
}

// ToolStart is returned by a ParseTools hook when an increment opens a tool
// call. Args is non-nil for vendors that deliver the complete arguments
// object up front.
type ToolStart struct {
	ID   string
	Name string
	Args map[string]any
}

// ArgsDelta is returned by a ParseToolArgs hook for an increment carrying a
// tool-argument fragment. Exactly one of Fragment or Value is set.
type ArgsDelta struct {
	Index    int
	Fragment string
	Value    map[string]any
}

// Splitter turns decoded chunk text into candidate payload fragments.
// Implementations may carry state across calls; a fresh Splitter is built
// for every Read.
type Splitter interface {
	Split(text string) []string
}

// Hooks is the whole vendor-specific surface of a reader: how to parse one
// payload fragment, how to spot a tool call, how to extract argument
// fragments, and (optionally) how to frame the byte stream.
type Hooks struct {
	ParseReply    func(fragment string) (chat.Chunk, error)
	ParseTools    func(c chat.Chunk) *ToolStart
	ParseToolArgs func(c chat.Chunk) *ArgsDelta
	// NewSplitter overrides line/"data:" framing. nil selects the default.
	NewSplitter func() Splitter
}

// Reader folds a vendor byte stream into a single ReadResult while emitting
// incremental callbacks.
type Reader struct {
	body  io.Reader
	hooks Hooks
}

// ErrNoBody is returned when a response has no readable body.
var ErrNoBody = errors.New("response has no readable body")

// New builds a Reader over a response body. A nil body is an error; the
// caller must not construct a reader for a bodyless response.
func New(body io.Reader, hooks Hooks) (*Reader, error) {
	if body == nil {
		return nil, ErrNoBody
	}
	if hooks.ParseTools == nil {
		hooks.ParseTools = DefaultParseTools
	}
	if hooks.ParseToolArgs == nil {
		hooks.ParseToolArgs = DefaultParseToolArgs
	}
	return &Reader{body: body, hooks: hooks}, nil
}

// toolState tracks tool-call accumulation inside one Read.
type toolState int

const (
	toolIdle toolState = iota
	toolAccumulating
	toolFinalized
)

// accumulator is the explicit per-read state value. It is owned by a single
// Read invocation and never shared.
type accumulator struct {
	state     toolState
	content   strings.Builder
	reasoning strings.Builder

	toolID   string
	toolName string
	// argBufs collects partial JSON text per tool-call index; argValues
	// collects already-complete argument objects.
	argBufs   map[int]*strings.Builder
	argValues []map[string]any

	inputTokens  int
	outputTokens int

	// pending holds recent unparsable fragments for reassembly.
	pending []string
}

// Read consumes the stream to completion or cancellation. It always returns
// the accumulated ReadResult; a non-nil error reports the first unrecoverable
// failure (also delivered through cb.OnError) or ctx cancellation.
func (r *Reader) Read(ctx context.Context, cb Callbacks) (chat.ReadResult, error) {
	acc := &accumulator{argBufs: make(map[int]*strings.Builder)}

	var split Splitter
	if r.hooks.NewSplitter != nil {
		split = r.hooks.NewSplitter()
	} else {
		split = &lineSplitter{}
	}

	var readErr error
	buf := make([]byte, readBufSize)

loop:
	for {
		if err := ctx.Err(); err != nil {
			readErr = err
			break
		}

		n, err := r.body.Read(buf)
		if n > 0 {
			for _, frag := range split.Split(string(buf[:n])) {
				if frag == doneSentinel {
					break loop
				}
				if ferr := r.consume(acc, frag, cb); ferr != nil {
					if readErr == nil {
						readErr = ferr
					}
					if cb.OnError != nil {
						cb.OnError(ferr)
					}
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				// A lenient body may report cancellation as a clean EOF.
				// Recheck the ctx so an abort never reads as success.
				if readErr == nil {
					readErr = ctx.Err()
				}
				break
			}
			if readErr == nil {
				// ctx cancellation surfaces as a body read error; prefer the
				// ctx error so callers can tell abort from transport failure.
				if cerr := ctx.Err(); cerr != nil {
					readErr = cerr
				} else {
					readErr = err
					if cb.OnError != nil {
						cb.OnError(err)
					}
				}
			}
			break
		}
	}

	res := acc.finalize(func(err error) {
		if readErr == nil {
			readErr = err
		}
		if cb.OnError != nil {
			cb.OnError(err)
		}
	})

	if acc.state == toolIdle && cb.OnToolCalls != nil {
		cb.OnToolCalls("")
	}

	return res, readErr
}

// consume routes one candidate fragment through parse/reassembly and then
// into the accumulator. The returned error is a vendor-reported stream error;
// parse failures are handled locally and never returned.
func (r *Reader) consume(acc *accumulator, frag string, cb Callbacks) error {
	c, err := r.hooks.ParseReply(frag)
	if err != nil {
		// The vendor may have split one logical message across network
		// chunks. Keep the last few unparsable fragments and retry their
		// concatenation; give up silently once the buffer cycles.
		acc.pending = append(acc.pending, frag)
		if len(acc.pending) > retryBufferCap {
			acc.pending = acc.pending[1:]
		}
		joined := strings.Join(acc.pending, "")
		c, err = r.hooks.ParseReply(joined)
		if err != nil {
			return nil
		}
	}
	acc.pending = acc.pending[:0]
	return r.route(acc, c, cb)
}

// route applies one parsed increment to the accumulator.
func (r *Reader) route(acc *accumulator, c chat.Chunk, cb Callbacks) error {
	// Usage first: input is a running total (last write wins), output
	// accumulates across chunks.
	if c.InputTokens > 0 {
		acc.inputTokens = c.InputTokens
	}
	acc.outputTokens += c.OutputTokens

	if c.Err != nil {
		return c.Err
	}

	switch acc.state {
	case toolIdle:
		if ts := r.hooks.ParseTools(c); ts != nil {
			acc.state = toolAccumulating
			acc.toolID = ts.ID
			acc.toolName = ts.Name
			if cb.OnToolCalls != nil {
				cb.OnToolCalls(ts.Name)
			}
			if ts.Args != nil {
				acc.argValues = append(acc.argValues, ts.Args)
			} else {
				// The opening increment may already carry an argument fragment.
				acc.applyArgs(r.hooks.ParseToolArgs(c))
			}
			return nil
		}
		if c.Content != "" || c.Reasoning != "" {
			acc.content.WriteString(c.Content)
			acc.reasoning.WriteString(c.Reasoning)
			if cb.OnProgress != nil {
				cb.OnProgress(c.Content, c.Reasoning)
			}
		}
	case toolAccumulating:
		acc.applyArgs(r.hooks.ParseToolArgs(c))
	}
	return nil
}

func (acc *accumulator) applyArgs(ad *ArgsDelta) {
	if ad == nil {
		return
	}
	if ad.Value != nil {
		acc.argValues = append(acc.argValues, ad.Value)
		return
	}
	b, ok := acc.argBufs[ad.Index]
	if !ok {
		b = &strings.Builder{}
		acc.argBufs[ad.Index] = b
	}
	b.WriteString(ad.Fragment)
}

// finalize assembles the ReadResult. Accumulated per-index argument strings
// are JSON-parsed only now, because intermediate fragments are not valid
// JSON on their own. onErr reports argument parse failures without
// preventing a partial result.
func (acc *accumulator) finalize(onErr func(error)) chat.ReadResult {
	res := chat.ReadResult{
		Content:      acc.content.String(),
		Reasoning:    acc.reasoning.String(),
		InputTokens:  acc.inputTokens,
		OutputTokens: acc.outputTokens,
	}

	if acc.state != toolAccumulating {
		return res
	}
	acc.state = toolFinalized

	args := map[string]any{}
	for _, v := range acc.argValues {
		mergeArgs(args, v)
	}
	for _, b := range acc.argBufs {
		text := strings.TrimSpace(b.String())
		if text == "" {
			continue
		}
		var parsed map[string]any
		if err := json.Unmarshal([]byte(text), &parsed); err != nil {
			onErr(err)
			continue
		}
		mergeArgs(args, parsed)
	}

	res.Tool = &chat.ToolUse{ID: acc.toolID, Name: acc.toolName, Args: args}
	return res
}

// mergeArgs deep-merges src into dst. Nested objects merge recursively;
// scalars and arrays in src overwrite dst.
func mergeArgs(dst, src map[string]any) {
	for k, v := range src {
		if sm, ok := v.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				mergeArgs(dm, sm)
				continue
			}
		}
		dst[k] = v
	}
}

// ---------------------------------------------------------------------------
// Default framing and tool hooks
// ---------------------------------------------------------------------------

// lineSplitter implements the default SSE-ish framing: split on lines,
// discard pure event-type marker lines, split the rest on the "data:" frame
// delimiter, trim each fragment.
type lineSplitter struct{}

func (lineSplitter) Split(text string) []string { return splitFrames(text) }

func splitFrames(text string) []string {
	var frags []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "event:") {
			continue
		}
		for _, part := range strings.Split(line, "data:") {
			part = strings.TrimSpace(part)
			if part != "" {
				frags = append(frags, part)
			}
		}
	}
	return frags
}

// passthroughSplitter yields each decoded chunk verbatim, for vendors that
// stream plain text rather than framed JSON.
type passthroughSplitter struct{}

func (passthroughSplitter) Split(text string) []string {
	if text == "" {
		return nil
	}
	return []string{text}
}

// DefaultParseTools spots a tool-call start on a normalized Chunk: the first
// tool-call delta carrying a name opens the call.
func DefaultParseTools(c chat.Chunk) *ToolStart {
	for _, tc := range c.ToolCalls {
		if tc.Name != "" {
			return &ToolStart{ID: tc.ID, Name: tc.Name, Args: tc.Args}
		}
	}
	return nil
}

// DefaultParseToolArgs extracts the argument fragment carried by a
// normalized Chunk, if any.
func DefaultParseToolArgs(c chat.Chunk) *ArgsDelta {
	for _, tc := range c.ToolCalls {
		if tc.Args != nil {
			return &ArgsDelta{Index: tc.Index, Value: tc.Args}
		}
		if tc.ArgsFragment != "" {
			return &ArgsDelta{Index: tc.Index, Fragment: tc.ArgsFragment}
		}
	}
	return nil
}

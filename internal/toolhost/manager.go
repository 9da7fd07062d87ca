package toolhost

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/halcyon-chat/halcyon/internal/chat"
)

// serverStatus describes the connection state of a tool server.
type serverStatus int

const (
	statusDisconnected serverStatus = iota
	statusConnecting
	statusConnected
	statusError
)

func (s serverStatus) String() string {
	switch s {
	case statusDisconnected:
		return "disconnected"
	case statusConnecting:
		return "connecting"
	case statusConnected:
		return "connected"
	case statusError:
		return "error"
	default:
		return "unknown"
	}
}

// serverConn holds the state for a single tool server connection.
type serverConn struct {
	key     string
	config  ServerConfig
	session *mcpsdk.ClientSession
	tools   []*mcpsdk.Tool
	kill    context.CancelFunc
	status  serverStatus
	lastErr error
}

// CallRequest identifies one tool invocation. RequestID is a caller-supplied
// idempotent identifier so a later Cancel can correlate the call.
type CallRequest struct {
	ServerKey string
	Tool      string
	Args      map[string]any
	RequestID string
}

// CallResult is a tool invocation outcome. Invocation failures come back as
// IsError with descriptive content, not as a Go error, so they flow through
// the same message-construction path and the model can react to them.
type CallResult struct {
	IsError bool
	Content []mcpsdk.Content
}

// Host manages tool server connections, discovery, and invocation with
// per-call cancellation.
type Host struct {
	mu      sync.RWMutex
	servers map[string]*serverConn

	inflightMu sync.Mutex
	inflight   map[string]context.CancelFunc
}

// NewHost creates an empty tool host.
func NewHost() *Host {
	return &Host{
		servers:  make(map[string]*serverConn),
		inflight: make(map[string]context.CancelFunc),
	}
}

// connectTimeout is the timeout for connecting to a single tool server.
var connectTimeout = 30 * time.Second

// callTimeout bounds a single tool invocation.
var callTimeout = 60 * time.Second

// StartAll connects to all configured tool servers. Failures for individual
// servers are recorded but do not prevent other servers from starting.
func (h *Host) StartAll(ctx context.Context, cfg Config) {
	for key, sc := range cfg.Servers {
		conn := &serverConn{
			key:    key,
			config: sc,
			status: statusConnecting,
		}
		h.mu.Lock()
		h.servers[key] = conn
		h.mu.Unlock()

		if err := h.connectServer(ctx, conn); err != nil {
			h.mu.Lock()
			conn.status = statusError
			conn.lastErr = err
			h.mu.Unlock()
			fmt.Fprintf(os.Stderr, "toolhost: server %q failed to connect: %v\n", key, err)
			continue
		}

		h.mu.Lock()
		conn.status = statusConnected
		h.mu.Unlock()
	}
}

// newTransport creates the appropriate MCP transport. Extracted for
// testability.
var newTransport = defaultNewTransport

func defaultNewTransport(sc ServerConfig) (mcpsdk.Transport, context.CancelFunc) {
	switch sc.Type {
	case "http":
		return &mcpsdk.StreamableClientTransport{Endpoint: sc.URL}, func() {}
	default: // stdio
		cmd := exec.Command(sc.Command, sc.Args...)
		if len(sc.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range sc.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}
		return &mcpsdk.CommandTransport{Command: cmd}, func() {
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
		}
	}
}

func (h *Host) connectServer(ctx context.Context, conn *serverConn) error {
	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "halcyon",
		Version: "1.0",
	}, nil)

	transport, killFunc := newTransport(conn.config)

	connCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	session, err := client.Connect(connCtx, transport, nil)
	if err != nil {
		killFunc()
		return fmt.Errorf("connecting: %w", err)
	}

	conn.kill = killFunc
	conn.session = session

	listCtx, listCancel := context.WithTimeout(ctx, connectTimeout)
	defer listCancel()

	result, err := session.ListTools(listCtx, nil)
	if err != nil {
		conn.kill()
		return fmt.Errorf("listing tools: %w", err)
	}
	conn.tools = result.Tools
	return nil
}

// StopAll closes all tool server connections.
func (h *Host) StopAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conn := range h.servers {
		if conn.session != nil {
			if err := conn.session.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "toolhost: close session: %v\n", err)
			}
		}
		if conn.kill != nil {
			conn.kill()
		}
		conn.status = statusDisconnected
	}
}

// ListTools returns the namespaced specs of every connected server's tools,
// plus per-server errors for servers that failed, so one broken server never
// hides the healthy ones. serverKey narrows the listing to one server;
// "" lists all.
func (h *Host) ListTools(serverKey string) ([]chat.ToolSpec, map[string]error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var specs []chat.ToolSpec
	failures := map[string]error{}
	for key, conn := range h.servers {
		if serverKey != "" && key != serverKey {
			continue
		}
		if conn.status != statusConnected {
			err := conn.lastErr
			if err == nil {
				err = fmt.Errorf("server %s", conn.status)
			}
			failures[key] = err
			continue
		}
		for _, tool := range conn.tools {
			specs = append(specs, ToToolSpec(key, tool))
		}
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs, failures
}

// ToolNames returns the sorted namespaced names of all available tools.
func (h *Host) ToolNames() []string {
	specs, _ := h.ListTools("")
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}
	return names
}

// Call invokes a tool. The call runs under its own cancellable context,
// registered by RequestID so Cancel can tear it down; the registration is
// removed on completion to avoid leaking entries.
func (h *Host) Call(ctx context.Context, req CallRequest) (*CallResult, error) {
	h.mu.RLock()
	conn, ok := h.servers[req.ServerKey]
	h.mu.RUnlock()

	if !ok {
		return textError(fmt.Sprintf("tool server %q not found", req.ServerKey)), nil
	}
	if conn.status != statusConnected || conn.session == nil {
		msg := fmt.Sprintf("tool server %q is unavailable", req.ServerKey)
		if conn.lastErr != nil {
			msg += ": " + conn.lastErr.Error()
		}
		return textError(msg), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	if req.RequestID != "" {
		h.inflightMu.Lock()
		h.inflight[req.RequestID] = cancel
		h.inflightMu.Unlock()
		defer func() {
			h.inflightMu.Lock()
			delete(h.inflight, req.RequestID)
			h.inflightMu.Unlock()
		}()
	}

	result, err := conn.session.CallTool(callCtx, &mcpsdk.CallToolParams{
		Name:      req.Tool,
		Arguments: req.Args,
	})
	if err != nil {
		if callCtx.Err() == context.Canceled {
			// Propagate aborts so the chat loop can tell them apart from
			// tool failures.
			return nil, callCtx.Err()
		}
		if callCtx.Err() == context.DeadlineExceeded {
			return textError(fmt.Sprintf("tool call timed out after %s", callTimeout)), nil
		}
		return textError(fmt.Sprintf("tool call failed: %v", err)), nil
	}

	if result == nil {
		return textError("tool server returned empty response"), nil
	}
	return &CallResult{IsError: result.IsError, Content: result.Content}, nil
}

// Cancel aborts the in-flight call registered under requestID. Cancelling a
// call that already completed is a harmless no-op.
func (h *Host) Cancel(requestID string) {
	h.inflightMu.Lock()
	cancel, ok := h.inflight[requestID]
	h.inflightMu.Unlock()
	if ok {
		cancel()
	}
}

// ServerStatuses returns the connection status for each server.
func (h *Host) ServerStatuses() map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	statuses := make(map[string]string, len(h.servers))
	for key, conn := range h.servers {
		s := conn.status.String()
		if conn.lastErr != nil && conn.status == statusError {
			s += ": " + conn.lastErr.Error()
		}
		statuses[key] = s
	}
	return statuses
}

func textError(msg string) *CallResult {
	return &CallResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: msg}},
	}
}

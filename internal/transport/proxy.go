package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
)

// Relay forwards requests through an out-of-process relay daemon instead of
// dialing the vendor directly. The daemon receives the target URL and method
// in headers, replays the call from its own network context, and streams the
// response body back unchanged, so readers and cancellation behave exactly
// as with Direct.
type Relay struct {
	// BaseURL is the relay daemon address, e.g. "http://127.0.0.1:4319".
	BaseURL string
	// Token authenticates against the relay.
	Token string
	// Client defaults to the shared streaming client.
	Client *http.Client
}

// relay header names understood by the daemon.
const (
	relayTargetHeader = "X-Relay-Target"
	relayMethodHeader = "X-Relay-Method"
)

// Send satisfies Transport.
func (r *Relay) Send(ctx context.Context, req Request) (*Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	url := strings.TrimRight(r.BaseURL, "/") + "/v1/proxy"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	httpReq.Header.Set(relayTargetHeader, req.URL)
	httpReq.Header.Set(relayMethodHeader, method)
	if r.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.Token)
	}
	// Vendor headers travel as-is; the daemon replays them on the outbound
	// call after stripping the relay-specific ones.
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.Streaming {
		httpReq.Header.Set("Accept-Encoding", "identity")
	}

	client := r.Client
	if client == nil {
		client = streamHTTPClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}

	out := &Response{Status: resp.StatusCode, Header: resp.Header, Body: resp.Body}
	if req.Streaming {
		out.Body = &lenientBody{r: resp.Body, close: resp.Body.Close}
	}
	return out, nil
}

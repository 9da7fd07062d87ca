package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"
)

// streamHTTPClient is shared across all streaming API calls. A single shared
// Transport reuses connections and avoids ephemeral port exhaustion on
// Windows. DisableCompression prevents gzip-over-chunked encoding failures.
// TLSNextProto is left nil so Go auto-negotiates HTTP/2, which uses its own
// binary framing instead of chunked transfer encoding.
var streamHTTPClient = &http.Client{
	Transport: &http.Transport{
		TLSHandshakeTimeout:   30 * time.Second,
		ResponseHeaderTimeout: 2 * time.Minute,
		IdleConnTimeout:       90 * time.Second,
		DisableCompression:    true,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   4,
	},
}

// CloseIdleConnections drops all idle connections from the shared HTTP
// transport. Call before retrying after a stream error so the next attempt
// gets a fresh TCP/TLS connection instead of reusing a stale pooled one.
func CloseIdleConnections() {
	streamHTTPClient.CloseIdleConnections()
}

// Direct performs requests with the process's own HTTP client.
type Direct struct {
	// Client overrides the shared streaming client; tests point it at
	// httptest servers.
	Client *http.Client
}

// Send satisfies Transport.
func (d *Direct) Send(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Content-Type") == "" && len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.Streaming {
		// Prevent proxies from injecting compression on the stream.
		httpReq.Header.Set("Accept-Encoding", "identity")
	}

	client := d.Client
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

// lenientBody wraps a response body and absorbs transport-level errors
// (chunked encoding issues from TLS-intercepting proxies, connection resets)
// by converting them to io.EOF, so the reader processes everything that was
// successfully received before the error.
type lenientBody struct {
	r     io.Reader
	close func() error
	err   error
}

func (lb *lenientBody) Read(p []byte) (int, error) {
	n, err := lb.r.Read(p)
	if err != nil && err != io.EOF {
		lb.err = err
		if n > 0 {
			return n, nil
		}
		return 0, io.EOF
	}
	return n, err
}

func (lb *lenientBody) Close() error { return lb.close() }

// Err returns the transport error absorbed during reading, if any.
func (lb *lenientBody) Err() error { return lb.err }

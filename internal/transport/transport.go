package transport

import (
	"context"
	"io"
	"net/http"
)

// Request describes one outbound vendor call. Body is the serialized JSON
// payload; Streaming marks requests whose response body will be consumed
// incrementally.
type Request struct {
	URL       string
	Method    string
	Header    http.Header
	Body      []byte
	Streaming bool
}

// Response is the minimal streamable response surface the readers need.
type Response struct {
	Status int
	Header http.Header
	Body   io.ReadCloser
}

// Transport sends a JSON payload and returns a streamable response. The
// context cancels the request mid-flight, including an in-progress body
// read. Implementations exist for direct HTTP and for relaying through an
// out-of-process daemon.
type Transport interface {
	Send(ctx context.Context, req Request) (*Response, error)
}

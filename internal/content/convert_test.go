package content

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/halcyon-chat/halcyon/internal/chat"
)

type stubLoader struct {
	bufferParts []string
	bufferErr   error
	uriParts    []string
	uriErr      error
	lastURI     string
}

func (s *stubLoader) FromBuffer(_ context.Context, _ []byte, _ string) ([]string, error) {
	return s.bufferParts, s.bufferErr
}

func (s *stubLoader) FromURI(_ context.Context, uri string) ([]string, error) {
	s.lastURI = uri
	return s.uriParts, s.uriErr
}

func TestConvertBlock_text(t *testing.T) {
	fb, err := ConvertBlock(context.Background(), &mcpsdk.TextContent{Text: "hi"}, nil)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if fb.Kind != chat.BlockText || fb.Text != "hi" {
		t.Fatalf("unexpected block: %+v", fb)
	}
}

func TestConvertBlock_embeddedTextResource(t *testing.T) {
	res := &mcpsdk.EmbeddedResource{
		Resource: &mcpsdk.ResourceContents{
			URI:      "file:///notes.txt",
			MIMEType: "text/plain",
			Text:     "hello",
		},
	}
	fb, err := ConvertBlock(context.Background(), res, nil)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if fb.Kind != chat.BlockText {
		t.Fatalf("kind = %q", fb.Kind)
	}
	if !strings.Contains(fb.Text, "[Document Start]") || !strings.Contains(fb.Text, "[Document End]") {
		t.Fatalf("missing document markers: %q", fb.Text)
	}
	if !strings.Contains(fb.Text, "hello") {
		t.Fatalf("missing payload text: %q", fb.Text)
	}
	if !strings.Contains(fb.Text, "file:///notes.txt") || !strings.Contains(fb.Text, "text/plain") {
		t.Fatalf("missing provenance annotation: %q", fb.Text)
	}
	if fb.SourceURI != "file:///notes.txt" || fb.SourceMime != "text/plain" {
		t.Fatalf("unexpected provenance fields: %+v", fb)
	}
}

func TestConvertBlock_embeddedTextBlob(t *testing.T) {
	res := &mcpsdk.EmbeddedResource{
		Resource: &mcpsdk.ResourceContents{
			URI:      "file:///notes.txt",
			MIMEType: "text/plain",
			Blob:     []byte("hello"),
		},
	}
	fb, err := ConvertBlock(context.Background(), res, nil)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !strings.Contains(fb.Text, "hello") {
		t.Fatalf("blob text not extracted: %q", fb.Text)
	}
}

func TestConvertBlock_svgDemotion(t *testing.T) {
	svg := `<svg xmlns="http://www.w3.org/2000/svg"><rect width="1" height="1"/></svg>`
	fb, err := ConvertBlock(context.Background(), &mcpsdk.ImageContent{
		Data:     []byte(svg),
		MIMEType: "image/svg+xml",
	}, nil)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if fb.Kind != chat.BlockText {
		t.Fatalf("svg should demote to text, got kind %q", fb.Kind)
	}
	if !strings.HasPrefix(fb.Text, "```html\n") || !strings.Contains(fb.Text, svg) {
		t.Fatalf("expected fenced markup, got %q", fb.Text)
	}
}

func TestConvertBlock_nativeImagePassthrough(t *testing.T) {
	data := []byte{0x89, 0x50, 0x4e, 0x47}
	fb, err := ConvertBlock(context.Background(), &mcpsdk.ImageContent{
		Data:     data,
		MIMEType: "image/png",
	}, nil)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if fb.Kind != chat.BlockImage || fb.MimeType != "image/png" {
		t.Fatalf("unexpected block: %+v", fb)
	}
	if fb.ImageData != base64.StdEncoding.EncodeToString(data) {
		t.Fatalf("image bytes altered")
	}
}

func TestConvertBlock_audioGate(t *testing.T) {
	_, err := ConvertBlock(context.Background(), &mcpsdk.AudioContent{
		Data:     []byte{1, 2, 3},
		MIMEType: "audio/ogg",
	}, nil)
	var ue *chat.UnsupportedError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnsupportedError, got %v", err)
	}
	if ue.Mime != "audio/ogg" {
		t.Fatalf("mime = %q", ue.Mime)
	}

	fb, err := ConvertBlock(context.Background(), &mcpsdk.AudioContent{
		Data:     []byte{1, 2, 3},
		MIMEType: "audio/mpeg",
	}, nil)
	if err != nil {
		t.Fatalf("audio/mpeg should pass: %v", err)
	}
	if fb.Kind != chat.BlockAudio {
		t.Fatalf("kind = %q", fb.Kind)
	}
}

func TestConvertBlock_resourceLinkLoads(t *testing.T) {
	loader := &stubLoader{uriParts: []string{"page one", "page two"}}
	link := &mcpsdk.ResourceLink{
		URI:      "https://example.com/report.pdf",
		MIMEType: "application/pdf",
	}
	fb, err := ConvertBlock(context.Background(), link, loader)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if loader.lastURI != link.URI {
		t.Fatalf("loader got %q", loader.lastURI)
	}
	if !strings.Contains(fb.Text, "page one") || !strings.Contains(fb.Text, "page two") {
		t.Fatalf("pages not joined: %q", fb.Text)
	}
}

func TestConvertBlock_resourceLinkDegrades(t *testing.T) {
	loader := &stubLoader{uriErr: errors.New("unreachable")}
	link := &mcpsdk.ResourceLink{
		URI:         "https://example.com/video.mp4",
		Name:        "demo",
		Description: "launch recording",
	}
	fb, err := ConvertBlock(context.Background(), link, loader)
	if err != nil {
		t.Fatalf("degraded link must not error: %v", err)
	}
	if fb.Kind != chat.BlockText {
		t.Fatalf("kind = %q", fb.Kind)
	}
	for _, want := range []string{"demo", "launch recording", link.URI} {
		if !strings.Contains(fb.Text, want) {
			t.Fatalf("summary missing %q: %q", want, fb.Text)
		}
	}
}

func TestConvertBlock_dataURILink(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("inline text"))
	link := &mcpsdk.ResourceLink{URI: "data:text/plain;base64," + payload}
	fb, err := ConvertBlock(context.Background(), link, nil)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !strings.Contains(fb.Text, "inline text") {
		t.Fatalf("payload not decoded: %q", fb.Text)
	}
}

func TestSniffMime(t *testing.T) {
	cases := []struct {
		data []byte
		want string
	}{
		{[]byte("%PDF-1.7 ..."), "application/pdf"},
		{[]byte("PK\x03\x04rest"), "application/zip"},
		{[]byte("plain old text"), "text/plain"},
	}
	for _, tc := range cases {
		got := SniffMime(tc.data)
		if !strings.HasPrefix(got, tc.want) {
			t.Errorf("SniffMime(%q) = %q, want prefix %q", tc.data[:4], got, tc.want)
		}
	}
}

func TestNormalizeMime(t *testing.T) {
	if got := normalizeMime("Text/Plain; charset=utf-8"); got != "text/plain" {
		t.Fatalf("got %q", got)
	}
}

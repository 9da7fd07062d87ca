// Package content reduces heterogeneous tool-result content to the small
// closed set of final blocks every chat service understands. The package is
// stateless; callers pass the document loader explicitly.
package content

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/halcyon-chat/halcyon/internal/chat"
)

// Loader hydrates documents referenced by tool results. Implemented by the
// docload package; kept as an interface so conversion stays testable without
// touching the filesystem or network.
type Loader interface {
	FromBuffer(ctx context.Context, data []byte, mimeType string) ([]string, error)
	FromURI(ctx context.Context, uri string) ([]string, error)
}

// Document delimiters wrapped around extracted text so the model can tell
// injected document content from conversation.
const (
	docStartMarker = "[Document Start]"
	docEndMarker   = "[Document End]"
)

// FromToolResult converts every content block of a tool result. A block the
// converter cannot represent fails that block's conversion with a typed
// error; callers decide whether to drop it or fail the result.
func FromToolResult(ctx context.Context, blocks []mcpsdk.Content, loader Loader) ([]chat.FinalContentBlock, error) {
	out := make([]chat.FinalContentBlock, 0, len(blocks))
	for _, b := range blocks {
		fb, err := ConvertBlock(ctx, b, loader)
		if err != nil {
			return nil, err
		}
		out = append(out, fb)
	}
	return out, nil
}

// ConvertBlock converts a single tool-result content block.
func ConvertBlock(ctx context.Context, block mcpsdk.Content, loader Loader) (chat.FinalContentBlock, error) {
	switch b := block.(type) {
	case *mcpsdk.TextContent:
		return chat.FinalContentBlock{Kind: chat.BlockText, Text: b.Text}, nil

	case *mcpsdk.AudioContent:
		return convertAudio(b.Data, b.MIMEType)

	case *mcpsdk.ImageContent:
		return convertImage(b.Data, b.MIMEType)

	case *mcpsdk.EmbeddedResource:
		return convertResource(ctx, b, loader)

	case *mcpsdk.ResourceLink:
		return convertResourceLink(ctx, b, loader)

	default:
		return chat.FinalContentBlock{}, &chat.UnsupportedError{What: "content block"}
	}
}

func convertAudio(data []byte, mimeType string) (chat.FinalContentBlock, error) {
	mt := normalizeMime(mimeType)
	if !chat.AllowedAudioMimes[mt] {
		// TODO: transcode unsupported audio formats instead of rejecting.
		return chat.FinalContentBlock{}, &chat.UnsupportedError{What: "audio", Mime: mimeType}
	}
	return chat.FinalContentBlock{
		Kind:      chat.BlockAudio,
		AudioData: base64.StdEncoding.EncodeToString(data),
		MimeType:  mt,
	}, nil
}

// convertResource handles embedded (by-value) resources: inline text is
// wrapped as a delimited document; blobs are sniffed and dispatched to the
// image, audio, text, or document-loader paths.
func convertResource(ctx context.Context, res *mcpsdk.EmbeddedResource, loader Loader) (chat.FinalContentBlock, error) {
	if res.Resource == nil {
		return chat.FinalContentBlock{}, &chat.UnsupportedError{What: "resource"}
	}
	rc := res.Resource

	if rc.Text != "" {
		return wrapDocument(rc.Text, rc.URI, rc.MIMEType), nil
	}
	if len(rc.Blob) > 0 {
		return convertBlob(ctx, rc.Blob, rc.MIMEType, rc.URI, loader)
	}
	return chat.FinalContentBlock{}, &chat.UnsupportedError{What: "resource", Mime: rc.MIMEType}
}

// convertBlob dispatches a decoded byte payload by declared or sniffed MIME.
func convertBlob(ctx context.Context, data []byte, mimeType, uri string, loader Loader) (chat.FinalContentBlock, error) {
	mt := normalizeMime(mimeType)
	if mt == "" || mt == "application/octet-stream" {
		mt = SniffMime(data)
	}

	switch {
	case strings.HasPrefix(mt, "image/"):
		return convertImage(data, mt)

	case strings.HasPrefix(mt, "audio/"):
		return convertAudio(data, mt)

	case isTextualMime(mt):
		return wrapDocument(string(data), uri, mt), nil

	case isDocumentMime(mt):
		if loader == nil {
			return chat.FinalContentBlock{}, &chat.UnsupportedError{What: "resource", Mime: mt}
		}
		parts, err := loader.FromBuffer(ctx, data, mt)
		if err != nil {
			return chat.FinalContentBlock{}, fmt.Errorf("loading document resource: %w", err)
		}
		return wrapDocument(strings.Join(parts, "\n\n"), uri, mt), nil

	default:
		return chat.FinalContentBlock{}, &chat.UnsupportedError{What: "resource", Mime: mt}
	}
}

// convertResourceLink handles by-reference resources. data: URIs decode
// inline; http(s) and file URIs go through the loader. Any failure degrades
// to a textual summary so the tool turn still progresses.
func convertResourceLink(ctx context.Context, link *mcpsdk.ResourceLink, loader Loader) (chat.FinalContentBlock, error) {
	uri := link.URI
	switch {
	case strings.HasPrefix(uri, "data:"):
		data, mt, err := decodeDataURI(uri)
		if err != nil {
			return linkSummary(link), nil
		}
		fb, err := convertBlob(ctx, data, mt, uri, loader)
		if err != nil {
			return linkSummary(link), nil
		}
		return fb, nil

	case strings.HasPrefix(uri, "http://"),
		strings.HasPrefix(uri, "https://"),
		strings.HasPrefix(uri, "file://"):
		if loader == nil {
			return linkSummary(link), nil
		}
		parts, err := loader.FromURI(ctx, uri)
		if err != nil {
			return linkSummary(link), nil
		}
		return wrapDocument(strings.Join(parts, "\n\n"), uri, link.MIMEType), nil

	default:
		return linkSummary(link), nil
	}
}

// linkSummary is the degraded representation of a resource link that could
// not be hydrated: a compact text block the model can still reason about.
func linkSummary(link *mcpsdk.ResourceLink) chat.FinalContentBlock {
	var b strings.Builder
	b.WriteString("[Resource]")
	if link.Name != "" {
		fmt.Fprintf(&b, "\nname: %s", link.Name)
	}
	if link.Title != "" {
		fmt.Fprintf(&b, "\ntitle: %s", link.Title)
	}
	if link.Description != "" {
		fmt.Fprintf(&b, "\ndescription: %s", link.Description)
	}
	fmt.Fprintf(&b, "\nuri: %s", link.URI)
	return chat.FinalContentBlock{Kind: chat.BlockText, Text: b.String(), SourceURI: link.URI}
}

// wrapDocument delimits extracted document text and annotates provenance.
func wrapDocument(text, uri, mimeType string) chat.FinalContentBlock {
	var b strings.Builder
	b.WriteString(docStartMarker)
	if uri != "" {
		fmt.Fprintf(&b, "\nuri: %s", uri)
	}
	if mimeType != "" {
		fmt.Fprintf(&b, "\nmime: %s", mimeType)
	}
	b.WriteString("\n\n")
	b.WriteString(text)
	b.WriteString("\n")
	b.WriteString(docEndMarker)
	return chat.FinalContentBlock{
		Kind:       chat.BlockText,
		Text:       b.String(),
		SourceURI:  uri,
		SourceMime: mimeType,
	}
}

// normalizeMime lowercases and strips parameters ("; charset=...").
func normalizeMime(mt string) string {
	mt = strings.ToLower(strings.TrimSpace(mt))
	if idx := strings.Index(mt, ";"); idx >= 0 {
		mt = strings.TrimSpace(mt[:idx])
	}
	return mt
}

func isTextualMime(mt string) bool {
	if strings.HasPrefix(mt, "text/") {
		return true
	}
	switch mt {
	case "application/json", "application/xml", "application/yaml",
		"application/javascript", "application/x-sh":
		return true
	}
	return strings.HasSuffix(mt, "+json") || strings.HasSuffix(mt, "+xml")
}

// isDocumentMime reports MIME types handed to the document loader.
func isDocumentMime(mt string) bool {
	switch mt {
	case "application/pdf",
		"application/zip",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return true
	}
	return false
}

// decodeDataURI splits a data: URI into payload bytes and MIME type.
func decodeDataURI(uri string) ([]byte, string, error) {
	rest := strings.TrimPrefix(uri, "data:")
	comma := strings.Index(rest, ",")
	if comma < 0 {
		return nil, "", fmt.Errorf("malformed data URI")
	}
	meta, payload := rest[:comma], rest[comma+1:]

	mt := meta
	isBase64 := false
	if strings.HasSuffix(meta, ";base64") {
		isBase64 = true
		mt = strings.TrimSuffix(meta, ";base64")
	}
	if mt == "" {
		mt = "text/plain"
	}

	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("decoding data URI: %w", err)
		}
		return data, mt, nil
	}
	return []byte(payload), mt, nil
}

// Package docload extracts plain text from document formats referenced by
// tool results: PDF, Word, Excel, HTML, and plain text. Extraction returns
// one string per logical unit (page, sheet, or whole document) so callers
// can keep page boundaries when they matter.
package docload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/halcyon-chat/halcyon/internal/content"
)

// maxFetchSize caps remote document downloads.
const maxFetchSize = 32 << 20

type Service struct {
	client *http.Client
}

func New() *Service {
	return &Service{
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

// FromBuffer extracts text from an in-memory document.
func (s *Service) FromBuffer(ctx context.Context, data []byte, mimeType string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mt := strings.ToLower(mimeType)
	if idx := strings.Index(mt, ";"); idx >= 0 {
		mt = strings.TrimSpace(mt[:idx])
	}
	if mt == "" || mt == "application/octet-stream" {
		mt = content.SniffMime(data)
	}

	switch {
	case mt == "application/pdf":
		return extractPDF(data)

	case mt == "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		mt == "application/msword":
		return extractDocx(data)

	case mt == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		mt == "application/vnd.ms-excel":
		return extractXlsx(data)

	case mt == "application/zip":
		return extractZipContainer(data)

	case mt == "text/html":
		return extractHTML(bytes.NewReader(data))

	case strings.HasPrefix(mt, "text/"),
		mt == "application/json", mt == "application/xml":
		return []string{string(data)}, nil

	default:
		return nil, fmt.Errorf("unsupported document type %q", mimeType)
	}
}

// FromURI fetches a document by URI and extracts its text. file:// paths are
// read locally; http(s) is fetched with the service client.
func (s *Service) FromURI(ctx context.Context, uri string) ([]string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parsing document uri: %w", err)
	}

	switch u.Scheme {
	case "file":
		path := u.Path
		if u.Host != "" && u.Host != "localhost" {
			return nil, fmt.Errorf("unsupported file host %q", u.Host)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		return s.FromBuffer(ctx, data, mimeFromPath(path))

	case "http", "https":
		return s.fetch(ctx, uri)

	default:
		return nil, fmt.Errorf("unsupported uri scheme %q", u.Scheme)
	}
}

func (s *Service) fetch(ctx context.Context, uri string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", uri, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", uri, err)
	}
	if len(data) > maxFetchSize {
		return nil, fmt.Errorf("document %s exceeds %d bytes", uri, maxFetchSize)
	}
	return s.FromBuffer(ctx, data, resp.Header.Get("Content-Type"))
}

func mimeFromPath(path string) string {
	switch {
	case strings.HasSuffix(path, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(path, ".docx"):
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case strings.HasSuffix(path, ".xlsx"):
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case strings.HasSuffix(path, ".html"), strings.HasSuffix(path, ".htm"):
		return "text/html"
	default:
		return ""
	}
}

package content

import (
	"bytes"
	"net/http"
)

// SniffMime guesses the MIME type of a raw payload. http.DetectContentType
// covers the common web formats; a few document signatures it does not know
// are checked first.
func SniffMime(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return "application/pdf"
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		// OOXML containers (docx, xlsx) are zip archives; the loader
		// disambiguates by inspecting the archive.
		return "application/zip"
	}
	return normalizeMime(http.DetectContentType(data))
}

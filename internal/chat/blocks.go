package chat

import "fmt"

// FinalContentBlock kinds. The converter reduces every tool result to this
// closed set; anything it cannot represent is an UnsupportedError, never a
// silent drop.
const (
	BlockText  = "text"
	BlockImage = "image"
	BlockAudio = "audio"
)

// AllowedAudioMimes is the small set of audio MIME types services accept.
var AllowedAudioMimes = map[string]bool{
	"audio/mpeg": true,
	"audio/wav":  true,
}

// FinalContentBlock is the canonical, vendor-agnostic content unit produced
// by the content converter.
type FinalContentBlock struct {
	Kind string

	// Text payload. SourceURI/SourceMime record provenance when the text was
	// extracted from a document or resource link.
	Text       string
	SourceURI  string
	SourceMime string

	// Image payload: base64 data + MIME, or a URL reference.
	ImageData string
	ImageURL  string
	MimeType  string

	// Audio payload, base64. MimeType must be in AllowedAudioMimes.
	AudioData string
}

// UnsupportedError reports content the converter cannot represent.
type UnsupportedError struct {
	What string
	Mime string
}

func (e *UnsupportedError) Error() string {
	if e.Mime != "" {
		return fmt.Sprintf("unsupported %s type: %s", e.What, e.Mime)
	}
	return fmt.Sprintf("unsupported %s", e.What)
}

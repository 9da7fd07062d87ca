package content

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"strings"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/halcyon-chat/halcyon/internal/chat"
)

// Raster formats every vendor accepts natively; passed through unchanged.
var nativeImageMimes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// convertImage produces an image block, with two special paths: SVG markup
// is demoted to a fenced code block (vendors reject vector payloads, but the
// markup itself is useful to the model), and exotic raster formats are
// re-encoded to PNG.
func convertImage(data []byte, mimeType string) (chat.FinalContentBlock, error) {
	mt := normalizeMime(mimeType)

	if mt == "image/svg+xml" || looksLikeSVG(data) {
		return chat.FinalContentBlock{
			Kind: chat.BlockText,
			Text: "```html\n" + string(data) + "\n```",
		}, nil
	}

	if nativeImageMimes[mt] {
		return chat.FinalContentBlock{
			Kind:      chat.BlockImage,
			ImageData: base64.StdEncoding.EncodeToString(data),
			MimeType:  mt,
		}, nil
	}

	encoded, err := reencodePNG(data)
	if err != nil {
		return chat.FinalContentBlock{}, &chat.UnsupportedError{What: "image", Mime: mimeType}
	}
	return chat.FinalContentBlock{
		Kind:      chat.BlockImage,
		ImageData: encoded,
		MimeType:  "image/png",
	}, nil
}

// reencodePNG decodes any registered raster format and re-encodes as PNG.
func reencodePNG(data []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decoding image: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encoding png: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// looksLikeSVG catches SVG payloads mislabeled with a generic image MIME.
func looksLikeSVG(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	s := strings.TrimSpace(string(head))
	return strings.HasPrefix(s, "<svg") ||
		(strings.HasPrefix(s, "<?xml") && strings.Contains(s, "<svg"))
}

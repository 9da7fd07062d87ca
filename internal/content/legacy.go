package content

import "github.com/halcyon-chat/halcyon/internal/chat"

// ToContentPart bridges a final block into the message part shape the
// payload builders consume. Kept separate from conversion proper so the
// mapping can be dropped once services take FinalContentBlock directly.
func ToContentPart(b chat.FinalContentBlock) chat.ContentPart {
	switch b.Kind {
	case chat.BlockImage:
		return chat.ContentPart{
			Type:      chat.BlockImage,
			ImageData: b.ImageData,
			ImageURL:  b.ImageURL,
			MimeType:  b.MimeType,
		}
	case chat.BlockAudio:
		return chat.ContentPart{
			Type:      chat.BlockAudio,
			AudioData: b.AudioData,
			MimeType:  b.MimeType,
		}
	default:
		return chat.ContentPart{Type: chat.BlockText, Text: b.Text}
	}
}

// ToContentParts maps a slice of final blocks.
func ToContentParts(blocks []chat.FinalContentBlock) []chat.ContentPart {
	parts := make([]chat.ContentPart, len(blocks))
	for i, b := range blocks {
		parts[i] = ToContentPart(b)
	}
	return parts
}

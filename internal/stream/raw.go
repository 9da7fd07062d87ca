package stream

import "github.com/halcyon-chat/halcyon/internal/chat"

// RawHooks is the pass-through reader: every decoded chunk is taken verbatim
// as a content delta. Used for endpoints that stream plain text instead of
// framed JSON.
func RawHooks() Hooks {
	return Hooks{
		NewSplitter: func() Splitter { return passthroughSplitter{} },
		ParseReply: func(fragment string) (chat.Chunk, error) {
			return chat.Chunk{Content: fragment}, nil
		},
	}
}

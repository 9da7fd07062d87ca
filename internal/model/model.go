// Package model describes what each model family can accept, so payload
// builders can gate content parts and clamp sampling parameters before a
// request is serialized.
package model

import "strings"

// Capabilities describes the request surface of a model family.
type Capabilities struct {
	Vision bool
	Audio  bool
	Tools  bool

	// Reasoning marks families that expose a reasoning channel and reject
	// sampling controls: temperature is pinned and the system prompt is
	// sent under the developer role.
	Reasoning bool

	MaxOutputTokens int
	MinTemperature  float64
	MaxTemperature  float64
}

// defaultCaps is used for models with no catalog entry: tools but no media,
// standard sampling range.
var defaultCaps = Capabilities{
	Tools:           true,
	MaxOutputTokens: 4096,
	MinTemperature:  0,
	MaxTemperature:  2,
}

// familyCaps maps model-ID prefixes to capabilities. Longest prefix wins.
var familyCaps = map[string]Capabilities{
	// OpenAI
	"gpt-4o":            {Vision: true, Tools: true, MaxOutputTokens: 16384, MaxTemperature: 2},
	"gpt-4o-audio":      {Vision: true, Audio: true, Tools: true, MaxOutputTokens: 16384, MaxTemperature: 2},
	"gpt-4.1":           {Vision: true, Tools: true, MaxOutputTokens: 32768, MaxTemperature: 2},
	"gpt-5":             {Vision: true, Tools: true, Reasoning: true, MaxOutputTokens: 65536, MinTemperature: 1, MaxTemperature: 1},
	"o1":                {Vision: true, Tools: true, Reasoning: true, MaxOutputTokens: 65536, MinTemperature: 1, MaxTemperature: 1},
	"o3":                {Vision: true, Tools: true, Reasoning: true, MaxOutputTokens: 65536, MinTemperature: 1, MaxTemperature: 1},
	"o4":                {Vision: true, Tools: true, Reasoning: true, MaxOutputTokens: 65536, MinTemperature: 1, MaxTemperature: 1},
	// Anthropic
	"claude-opus":   {Vision: true, Tools: true, MaxOutputTokens: 32000, MaxTemperature: 1},
	"claude-sonnet": {Vision: true, Tools: true, MaxOutputTokens: 64000, MaxTemperature: 1},
	"claude-haiku":  {Vision: true, Tools: true, MaxOutputTokens: 64000, MaxTemperature: 1},
	"claude-3":      {Vision: true, Tools: true, MaxOutputTokens: 8192, MaxTemperature: 1},
	// Google
	"gemini-2.5": {Vision: true, Audio: true, Tools: true, MaxOutputTokens: 65536, MaxTemperature: 2},
	"gemini-2.0": {Vision: true, Audio: true, Tools: true, MaxOutputTokens: 8192, MaxTemperature: 2},
	"gemini":     {Vision: true, Audio: true, Tools: true, MaxOutputTokens: 8192, MaxTemperature: 2},
	// Mistral
	"mistral-large": {Tools: true, MaxOutputTokens: 8192, MaxTemperature: 1},
	"mistral-small": {Tools: true, MaxOutputTokens: 8192, MaxTemperature: 1},
	"pixtral":       {Vision: true, Tools: true, MaxOutputTokens: 8192, MaxTemperature: 1},
	"codestral":     {Tools: true, MaxOutputTokens: 8192, MaxTemperature: 1},
	// Local
	"llama":    {Tools: true, MaxOutputTokens: 8192, MaxTemperature: 2},
	"qwen":     {Tools: true, MaxOutputTokens: 8192, MaxTemperature: 2},
	"deepseek": {Tools: true, Reasoning: true, MaxOutputTokens: 8192, MaxTemperature: 2},
}

// Lookup resolves capabilities for a model ID by longest matching family
// prefix, falling back to conservative defaults.
func Lookup(modelID string) Capabilities {
	id := strings.ToLower(strings.TrimSpace(modelID))

	best := ""
	for prefix := range familyCaps {
		if strings.HasPrefix(id, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return defaultCaps
	}
	return familyCaps[best]
}

// ClampTemperature bounds a requested temperature to the model's range.
// Reasoning families collapse the range to a single pinned value.
func ClampTemperature(modelID string, t float64) float64 {
	caps := Lookup(modelID)
	if t < caps.MinTemperature {
		return caps.MinTemperature
	}
	if t > caps.MaxTemperature {
		return caps.MaxTemperature
	}
	return t
}

package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/halcyon-chat/halcyon/internal/chat"
	"github.com/halcyon-chat/halcyon/internal/model"
	"github.com/halcyon-chat/halcyon/internal/stream"
	"github.com/halcyon-chat/halcyon/internal/transport"
)

// ---------------------------------------------------------------------------
// geminiVendor — the Google generateContent protocol
// ---------------------------------------------------------------------------

type geminiVendor struct{}

func (v *geminiVendor) name() string { return "gemini" }

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com"

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Tools             []geminiTools   `json:"tools,omitempty"`
	GenerationConfig  *geminiGenCfg   `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *geminiBlob     `json:"inlineData,omitempty"`
	FuncCall   *geminiFuncCall `json:"functionCall,omitempty"`
	FuncResp   *geminiFuncResp `json:"functionResponse,omitempty"`
}

type geminiBlob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiFuncCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type geminiFuncResp struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type geminiTools struct {
	FunctionDeclarations []geminiFuncDecl `json:"functionDeclarations"`
}

type geminiFuncDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type geminiGenCfg struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

func (v *geminiVendor) buildRequest(o Options, msgs []chat.Message, tools []chat.ToolSpec) (transport.Request, error) {
	prepared, err := prepareMessages(o, msgs)
	if err != nil {
		return transport.Request{}, err
	}

	temp := model.ClampTemperature(o.Model, o.Temperature)
	reqBody := geminiRequest{
		Contents: buildGeminiContents(prepared),
		Tools:    toGeminiTools(tools),
		GenerationConfig: &geminiGenCfg{
			Temperature:     &temp,
			MaxOutputTokens: clampMaxTokens(o),
		},
	}
	if o.System != "" {
		reqBody.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: o.System}},
		}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return transport.Request{}, fmt.Errorf("marshaling request: %w", err)
	}

	base := o.BaseURL
	if base == "" {
		base = geminiDefaultBaseURL
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?key=%s",
		strings.TrimSuffix(base, "/"), o.Model, o.APIKey)

	return transport.Request{
		URL:       url,
		Method:    http.MethodPost,
		Header:    http.Header{"Content-Type": {"application/json"}},
		Body:      body,
		Streaming: true,
	}, nil
}

func (v *geminiVendor) hooks(http.Header) stream.Hooks { return stream.GeminiHooks() }

func (v *geminiVendor) parseError(status int, header http.Header, body []byte) error {
	// Error bodies arrive as {"error":{...}} or a one-element array of the
	// same, depending on whether streaming had started.
	var envelope struct {
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	raw := body
	var arr []json.RawMessage
	if json.Unmarshal(body, &arr) == nil && len(arr) > 0 {
		raw = arr[0]
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error != nil {
		return transport.NewAPIError(status, envelope.Error.Status, envelope.Error.Message, header)
	}
	return parseErrorEnvelope(status, header, body)
}

func (v *geminiVendor) toolMessages(call *chat.ToolUse, parts []chat.ContentPart, isError bool) []chat.Message {
	return defaultToolMessages(call, parts, isError)
}

// buildGeminiContents converts neutral messages. The assistant role is
// "model"; tool results ride as functionResponse parts under the user role.
func buildGeminiContents(msgs []chat.Message) []geminiContent {
	out := make([]geminiContent, 0, len(msgs))

	for _, m := range msgs {
		switch m.Role {
		case chat.RoleSystem:
			continue

		case chat.RoleTool:
			resp := map[string]any{"output": m.Text()}
			out = append(out, geminiContent{
				Role: chat.RoleUser,
				Parts: []geminiPart{{
					FuncResp: &geminiFuncResp{
						Name:     m.Name,
						Response: resp,
					},
				}},
			})

		case chat.RoleAssistant:
			var parts []geminiPart
			if text := m.Text(); text != "" {
				parts = append(parts, geminiPart{Text: text})
			}
			for _, tc := range m.ToolCalls {
				args := map[string]any{}
				if tc.Arguments != "" {
					_ = json.Unmarshal([]byte(tc.Arguments), &args)
				}
				parts = append(parts, geminiPart{
					FuncCall: &geminiFuncCall{Name: tc.Name, Args: args},
				})
			}
			if len(parts) == 0 {
				parts = []geminiPart{{Text: ""}}
			}
			out = append(out, geminiContent{Role: chat.RoleModel, Parts: parts})

		default:
			out = append(out, geminiContent{
				Role:  chat.RoleUser,
				Parts: geminiParts(m),
			})
		}
	}
	return out
}

func geminiParts(m chat.Message) []geminiPart {
	if !m.HasParts() {
		return []geminiPart{{Text: m.Content}}
	}
	parts := make([]geminiPart, 0, len(m.Parts))
	for _, p := range m.Parts {
		switch p.Type {
		case chat.BlockImage:
			if p.ImageData == "" {
				// URL references are not accepted inline; keep the
				// reference visible as text.
				parts = append(parts, geminiPart{Text: p.ImageURL})
				continue
			}
			parts = append(parts, geminiPart{
				InlineData: &geminiBlob{MimeType: p.MimeType, Data: p.ImageData},
			})
		case chat.BlockAudio:
			parts = append(parts, geminiPart{
				InlineData: &geminiBlob{MimeType: p.MimeType, Data: p.AudioData},
			})
		default:
			parts = append(parts, geminiPart{Text: p.Text})
		}
	}
	if len(parts) == 0 {
		parts = []geminiPart{{Text: ""}}
	}
	return parts
}

// ---------------------------------------------------------------------------
// Function-declaration schema translation
// ---------------------------------------------------------------------------

// convertGeminiProp translates one property into the function-declaration
// schema dialect: types are uppercased, enum values must be strings, and
// additionalProperties is not accepted at all.
func convertGeminiProp(v chat.ToolProp) map[string]any {
	prop := map[string]any{"type": geminiType(v.Type)}
	if v.Description != "" {
		prop["description"] = v.Description
	}
	if len(v.Enum) > 0 {
		// Enums are only valid on string-typed properties.
		prop["enum"] = v.Enum
		prop["type"] = "STRING"
	}
	if v.Items != nil {
		prop["items"] = convertGeminiProp(*v.Items)
	}
	if len(v.Properties) > 0 {
		nested := make(map[string]any, len(v.Properties))
		for k, np := range v.Properties {
			nested[k] = convertGeminiProp(np)
		}
		prop["properties"] = nested
	}
	if len(v.Required) > 0 {
		prop["required"] = v.Required
	}
	return prop
}

func geminiType(t string) string {
	switch strings.ToLower(t) {
	case "string":
		return "STRING"
	case "number":
		return "NUMBER"
	case "integer":
		return "INTEGER"
	case "boolean":
		return "BOOLEAN"
	case "array":
		return "ARRAY"
	case "object":
		return "OBJECT"
	default:
		return "STRING"
	}
}

func toGeminiTools(specs []chat.ToolSpec) []geminiTools {
	if len(specs) == 0 {
		return nil
	}
	decls := make([]geminiFuncDecl, len(specs))
	for i, s := range specs {
		decl := geminiFuncDecl{
			Name:        s.Name,
			Description: s.Description,
		}
		if len(s.Properties) > 0 {
			props := make(map[string]any, len(s.Properties))
			for k, v := range s.Properties {
				props[k] = convertGeminiProp(v)
			}
			params := map[string]any{
				"type":       "OBJECT",
				"properties": props,
			}
			if len(s.Required) > 0 {
				params["required"] = s.Required
			}
			decl.Parameters = params
		}
		decls[i] = decl
	}
	return []geminiTools{{FunctionDeclarations: decls}}
}

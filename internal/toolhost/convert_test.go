package toolhost

import (
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestToToolSpec(t *testing.T) {
	tool := &mcpsdk.Tool{
		Name:        "query",
		Description: "runs a query",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"sql": map[string]any{
					"type":        "string",
					"description": "statement to run",
				},
				"mode": map[string]any{
					"type": "string",
					"enum": []any{"read", "write", 3},
				},
				"params": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "number"},
				},
				"options": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"timeout": map[string]any{"type": "integer"},
					},
					"required": []any{"timeout"},
				},
			},
			"required": []any{"sql"},
		},
	}

	spec := ToToolSpec("DB", tool)
	if spec.Name != "db--query" {
		t.Errorf("Name = %q, want %q", spec.Name, "db--query")
	}
	if spec.Description != "runs a query" {
		t.Errorf("Description = %q", spec.Description)
	}
	if len(spec.Required) != 1 || spec.Required[0] != "sql" {
		t.Errorf("Required = %v, want [sql]", spec.Required)
	}

	sql := spec.Properties["sql"]
	if sql.Type != "string" || sql.Description != "statement to run" {
		t.Errorf("sql prop = %+v", sql)
	}

	mode := spec.Properties["mode"]
	if len(mode.Enum) != 3 || mode.Enum[2] != "3" {
		t.Errorf("enum values not stringified: %v", mode.Enum)
	}

	params := spec.Properties["params"]
	if params.Type != "array" || params.Items == nil || params.Items.Type != "number" {
		t.Errorf("params prop = %+v", params)
	}

	opts := spec.Properties["options"]
	if opts.Type != "object" {
		t.Fatalf("options type = %q", opts.Type)
	}
	if opts.Properties["timeout"].Type != "integer" {
		t.Errorf("nested prop = %+v", opts.Properties["timeout"])
	}
	if len(opts.Required) != 1 || opts.Required[0] != "timeout" {
		t.Errorf("nested required = %v", opts.Required)
	}
}

func TestToToolSpec_missingType(t *testing.T) {
	tool := &mcpsdk.Tool{
		Name: "poke",
		InputSchema: map[string]any{
			"properties": map[string]any{
				"target": map[string]any{
					"oneOf": []any{
						map[string]any{"type": "string"},
						map[string]any{"type": "number"},
					},
				},
			},
		},
	}

	spec := ToToolSpec("svc", tool)
	if got := spec.Properties["target"].Type; got != "object" {
		t.Errorf("fallback type = %q, want object", got)
	}
}

func TestToToolSpec_nonMapSchema(t *testing.T) {
	tool := &mcpsdk.Tool{Name: "ping", InputSchema: "not a schema"}

	spec := ToToolSpec("svc", tool)
	if spec.Name != "svc--ping" {
		t.Errorf("Name = %q", spec.Name)
	}
	if len(spec.Properties) != 0 {
		t.Errorf("Properties = %v, want empty", spec.Properties)
	}
}

package chat

// ToolSpec is a vendor-agnostic tool definition. Each service converts these
// to its own wire format.
type ToolSpec struct {
	Name        string
	Description string
	Properties  map[string]ToolProp
	Required    []string
}

// ToolProp describes a single tool input property.
type ToolProp struct {
	Type        string
	Description string
	Enum        []string
	// Items describes the element schema when Type is "array".
	Items *ToolProp
	// Properties describes nested object properties (when Type is "object").
	Properties map[string]ToolProp
	// Required lists required fields when this prop describes an object.
	Required []string
}

package provider

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

/*
ToolDefinition is a vendor-agnostic function the model may call. Parameters
is a JSON schema object.
*/
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

/*
ToolFromMCP converts a tool advertised by an MCP server.
*/
func ToolFromMCP(tool mcp.Tool) ToolDefinition {
	schemaType := tool.InputSchema.Type

	if schemaType == "" {
		schemaType = "object"
	}

	params := map[string]any{
		"type":       schemaType,
		"properties": tool.InputSchema.Properties,
	}

	if len(tool.InputSchema.Required) > 0 {
		params["required"] = tool.InputSchema.Required
	}

	return ToolDefinition{
		Name:        tool.Name,
		Description: tool.Description,
		Parameters:  params,
	}
}

/*
Schema returns the parameters as a complete object schema.
*/
func (tool ToolDefinition) Schema() map[string]any {
	schema := make(map[string]any, len(tool.Parameters)+2)

	for key, value := range tool.Parameters {
		schema[key] = value
	}

	if _, ok := schema["type"]; !ok {
		schema["type"] = "object"
	}

	if _, ok := schema["properties"]; !ok {
		schema["properties"] = map[string]any{}
	}

	return schema
}

func (tool ToolDefinition) Properties() map[string]any {
	props, _ := tool.Schema()["properties"].(map[string]any)

	if props == nil {
		return map[string]any{}
	}

	return props
}

func (tool ToolDefinition) Required() []string {
	switch required := tool.Parameters["required"].(type) {
	case []string:
		return required
	case []any:
		out := make([]string, 0, len(required))

		for _, name := range required {
			if s, ok := name.(string); ok {
				out = append(out, s)
			}
		}

		return out
	}

	return nil
}

/*
encodeArguments normalizes tool arguments to a JSON string. Vendors return
either an already encoded string or a decoded object.
*/
func encodeArguments(args any) string {
	switch value := args.(type) {
	case nil:
		return "{}"
	case string:
		if value == "" {
			return "{}"
		}

		if json.Valid([]byte(value)) {
			return value
		}

		encoded, _ := json.Marshal(value)
		return string(encoded)
	case json.RawMessage:
		if len(value) == 0 || !json.Valid(value) {
			return "{}"
		}

		return string(value)
	case []byte:
		return encodeArguments(string(value))
	}

	encoded, err := json.Marshal(args)

	if err != nil {
		return "{}"
	}

	return string(encoded)
}

func compact(v any) string {
	encoded, err := json.Marshal(v)

	if err != nil {
		return "{}"
	}

	return string(encoded)
}

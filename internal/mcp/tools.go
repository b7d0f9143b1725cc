package mcp

import (
	"github.com/google/jsonschema-go/jsonschema"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Yahook/mcp-terminal/internal/shared/types"
)

func describe(name string, tool types.Tool) *sdk.Tool {
	return &sdk.Tool{
		Name:        name,
		Description: tool.Description,
		InputSchema: inputSchema(tool.Parameters),
	}
}

// inputSchema renders tool parameters as a JSON Schema object. Integers are
// counts or durations and never negative.
func inputSchema(params []types.Parameter) *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(params)),
	}
	for _, param := range params {
		prop := &jsonschema.Schema{Type: string(param.Type), Description: param.Description}
		if param.Type == types.ParamInteger {
			zero := 0.0
			prop.Minimum = &zero
		}
		schema.Properties[param.Name] = prop
		if param.Required {
			schema.Required = append(schema.Required, param.Name)
		}
	}
	return schema
}

func textResult(text string, isError bool) *sdk.CallToolResult {
	return &sdk.CallToolResult{
		Content: []sdk.Content{&sdk.TextContent{Text: text}},
		IsError: isError,
	}
}

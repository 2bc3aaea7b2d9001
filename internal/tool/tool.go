// Package tool provides the tools the agent can invoke during a turn, plus
// the display metadata clients render while a tool runs.
package tool

import (
	"context"
	"encoding/json"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/concierge-ai/concierge/pkg/types"
)

// Tool is one invokable capability. Execute receives the model's arguments
// as raw JSON and returns the result text fed back to the model.
type Tool interface {
	// Name is the identifier the model calls the tool by.
	Name() string

	// Description tells the model when to use the tool.
	Description() string

	// Parameters is the JSON Schema for Execute's input.
	Parameters() json.RawMessage

	// Display is the client-facing metadata shown while the tool runs.
	Display() types.ToolDisplay

	// Execute runs the tool. The context carries the caller's credential, so
	// outbound requests act as the requesting user.
	Execute(ctx context.Context, input json.RawMessage) (string, error)
}

// einoTool adapts a Tool to eino's InvokableTool so it can be bound to a
// chat model.
type einoTool struct {
	tool Tool
}

func (w *einoTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name:        w.tool.Name(),
		Desc:        w.tool.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(schemaParams(w.tool.Parameters())),
	}, nil
}

func (w *einoTool) InvokableRun(ctx context.Context, argsJSON string, opts ...einotool.Option) (string, error) {
	return w.tool.Execute(ctx, json.RawMessage(argsJSON))
}

// schemaParams converts a JSON Schema object into eino parameter infos.
// Unknown schemas degrade to no parameters rather than failing the bind.
func schemaParams(schemaJSON json.RawMessage) map[string]*schema.ParameterInfo {
	var js struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(schemaJSON, &js); err != nil {
		return nil
	}

	required := make(map[string]bool, len(js.Required))
	for _, r := range js.Required {
		required[r] = true
	}

	params := make(map[string]*schema.ParameterInfo, len(js.Properties))
	for name, prop := range js.Properties {
		pt := schema.String
		switch prop.Type {
		case "integer":
			pt = schema.Integer
		case "number":
			pt = schema.Number
		case "boolean":
			pt = schema.Boolean
		case "array":
			pt = schema.Array
		case "object":
			pt = schema.Object
		}
		params[name] = &schema.ParameterInfo{
			Type:     pt,
			Desc:     prop.Description,
			Required: required[name],
		}
	}
	return params
}

package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/concierge-ai/concierge/internal/httpclient"
	"github.com/concierge-ai/concierge/pkg/types"
)

// Registry holds the registered tools and answers display lookups.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Default creates a registry with the built-in tools. backend is the
// community API the user-scoped tools call.
func Default(backend *httpclient.Client) *Registry {
	r := NewRegistry()
	r.Register(NewWeatherTool(backend))
	r.Register(NewTimeTool())
	r.Register(NewBillsTool(backend))
	r.Register(NewUnpaidBillsTool(backend))
	r.Register(NewNotificationsTool(backend))
	r.Register(NewReadNotificationTool(backend))
	r.Register(NewWebFetchTool())
	return r
}

// Register adds a tool, replacing any previous tool of the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all tools, sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// Execute runs the named tool.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("tool: unknown tool %q", name)
	}
	return t.Execute(ctx, args)
}

// Display returns the client-facing metadata for a tool name. Names without
// a registered tool get a deterministic generic bundle, so repeated lookups
// always render the same way.
func (r *Registry) Display(name string) types.ToolDisplay {
	if t, ok := r.Get(name); ok {
		return t.Display()
	}
	return types.ToolDisplay{
		DisplayName: name,
		Description: "正在执行: " + name,
		Icon:        "tool",
		Category:    "other",
	}
}

// ToolInfos returns eino tool infos for binding to a chat model. Infos come
// from the eino wrappers so binding and invocation share one schema
// conversion.
func (r *Registry) ToolInfos() []*schema.ToolInfo {
	tools := r.EinoTools()
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(context.Background())
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}
	return infos
}

// EinoTools returns eino-compatible wrappers for every tool.
func (r *Registry) EinoTools() []einotool.BaseTool {
	tools := r.List()
	wrapped := make([]einotool.BaseTool, 0, len(tools))
	for _, t := range tools {
		wrapped = append(wrapped, &einoTool{tool: t})
	}
	return wrapped
}

package tool

import (
	"context"
	"encoding/json"
	"time"

	"github.com/concierge-ai/concierge/pkg/types"
)

// TimeTool returns the server's current local time.
type TimeTool struct {
	now func() time.Time
}

// NewTimeTool creates the time tool.
func NewTimeTool() *TimeTool {
	return &TimeTool{now: time.Now}
}

func (t *TimeTool) Name() string        { return "get_time" }
func (t *TimeTool) Description() string { return "获取当前时间" }

func (t *TimeTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *TimeTool) Display() types.ToolDisplay {
	return types.ToolDisplay{
		DisplayName: "获取当前时间",
		Description: "正在获取当前时间",
		Icon:        "time",
		Category:    "time",
	}
}

func (t *TimeTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	return t.now().Format("2006-01-02 15:04:05"), nil
}

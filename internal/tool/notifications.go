package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/concierge-ai/concierge/internal/httpclient"
	"github.com/concierge-ai/concierge/pkg/types"
)

// NotificationsTool lists the caller's notifications, paginated.
type NotificationsTool struct {
	backend *httpclient.Client
}

// NewNotificationsTool creates the notification list tool.
func NewNotificationsTool(backend *httpclient.Client) *NotificationsTool {
	return &NotificationsTool{backend: backend}
}

func (t *NotificationsTool) Name() string { return "get_user_notifications" }

func (t *NotificationsTool) Description() string {
	return "查询用户当前所有的通知记录。参数 pageNum: 页码，pageSize: 每页条数"
}

func (t *NotificationsTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pageNum": {
				"type": "integer",
				"description": "页码，从 0 开始"
			},
			"pageSize": {
				"type": "integer",
				"description": "每页条数，默认 10"
			}
		}
	}`)
}

func (t *NotificationsTool) Display() types.ToolDisplay {
	return types.ToolDisplay{
		DisplayName: "查询通知",
		Description: "正在查询您的通知记录",
		Icon:        "notification",
		Category:    "notification",
	}
}

func (t *NotificationsTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	args := struct {
		PageNum  int `json:"pageNum"`
		PageSize int `json:"pageSize"`
	}{PageSize: 10}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &args); err != nil {
			return "", fmt.Errorf("tool: get_user_notifications: bad arguments: %w", err)
		}
	}
	if args.PageSize < 1 {
		args.PageSize = 10
	}

	params := url.Values{
		"pageNum":  {fmt.Sprint(args.PageNum)},
		"pageSize": {fmt.Sprint(args.PageSize)},
	}

	var out json.RawMessage
	if err := t.backend.Get(ctx, "/api/notification/list", params, &out); err != nil {
		return "", fmt.Errorf("tool: get_user_notifications: %w", err)
	}
	return string(out), nil
}

// ReadNotificationTool marks one notification as read.
type ReadNotificationTool struct {
	backend *httpclient.Client
}

// NewReadNotificationTool creates the mark-read tool.
func NewReadNotificationTool(backend *httpclient.Client) *ReadNotificationTool {
	return &ReadNotificationTool{backend: backend}
}

func (t *ReadNotificationTool) Name() string { return "read_notification" }

func (t *ReadNotificationTool) Description() string {
	return "标记通知为已读。参数 notificationId: 通知ID"
}

func (t *ReadNotificationTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"notificationId": {
				"type": "string",
				"description": "要标记的通知ID"
			}
		},
		"required": ["notificationId"]
	}`)
}

func (t *ReadNotificationTool) Display() types.ToolDisplay {
	return types.ToolDisplay{
		DisplayName: "标记已读",
		Description: "正在标记通知为已读",
		Icon:        "check",
		Category:    "notification",
	}
}

func (t *ReadNotificationTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		NotificationID string `json:"notificationId"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("tool: read_notification: bad arguments: %w", err)
	}
	if args.NotificationID == "" {
		return "", fmt.Errorf("tool: read_notification: notificationId is required")
	}

	var out json.RawMessage
	endpoint := "/api/notification/" + url.PathEscape(args.NotificationID) + "/read"
	if err := t.backend.Post(ctx, endpoint, nil, &out); err != nil {
		return "", fmt.Errorf("tool: read_notification: %w", err)
	}
	return string(out), nil
}

package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/concierge-ai/concierge/internal/httpclient"
	"github.com/concierge-ai/concierge/pkg/types"
)

const billsEndpoint = "/api/property-fee/bills"

// fetchBills queries the backend bill list for one payment status. The
// caller's credential rides on the context, so the backend scopes results to
// the requesting user.
func fetchBills(ctx context.Context, backend *httpclient.Client, status int) (string, error) {
	params := url.Values{"status": {fmt.Sprint(status)}}

	var out json.RawMessage
	if err := backend.Get(ctx, billsEndpoint, params, &out); err != nil {
		// Surface a structured failure so the model can explain it instead
		// of the turn dying.
		msg, _ := json.Marshal(map[string]any{
			"success": false,
			"error":   "服务暂时不可用",
			"message": "抱歉，账单服务当前无法访问，请稍后再试。",
			"detail":  err.Error(),
		})
		return string(msg), nil
	}
	return string(out), nil
}

// BillsTool queries the caller's property-fee bills by payment status.
type BillsTool struct {
	backend *httpclient.Client
}

// NewBillsTool creates the bill query tool.
func NewBillsTool(backend *httpclient.Client) *BillsTool {
	return &BillsTool{backend: backend}
}

func (t *BillsTool) Name() string { return "query_bills" }

func (t *BillsTool) Description() string {
	return "查询用户的物业费账单记录。参数 status: 0 表示待缴，1 表示已缴"
}

func (t *BillsTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"status": {
				"type": "integer",
				"description": "账单状态，0 待缴 1 已缴"
			}
		}
	}`)
}

func (t *BillsTool) Display() types.ToolDisplay {
	return types.ToolDisplay{
		DisplayName: "查询账单",
		Description: "正在查询您的账单信息",
		Icon:        "bill",
		Category:    "bill",
	}
}

func (t *BillsTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		Status int `json:"status"`
	}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &args); err != nil {
			return "", fmt.Errorf("tool: query_bills: bad arguments: %w", err)
		}
	}
	return fetchBills(ctx, t.backend, args.Status)
}

// UnpaidBillsTool queries only the caller's unpaid bills.
type UnpaidBillsTool struct {
	backend *httpclient.Client
}

// NewUnpaidBillsTool creates the unpaid-bill query tool.
func NewUnpaidBillsTool(backend *httpclient.Client) *UnpaidBillsTool {
	return &UnpaidBillsTool{backend: backend}
}

func (t *UnpaidBillsTool) Name() string { return "query_unpaid_bills" }

func (t *UnpaidBillsTool) Description() string {
	return "查询用户当前所有的待缴账单记录"
}

func (t *UnpaidBillsTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *UnpaidBillsTool) Display() types.ToolDisplay {
	return types.ToolDisplay{
		DisplayName: "查询未支付账单",
		Description: "正在查询未支付的账单",
		Icon:        "bill",
		Category:    "bill",
	}
}

func (t *UnpaidBillsTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	return fetchBills(ctx, t.backend, 0)
}

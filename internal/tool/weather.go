package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/concierge-ai/concierge/internal/httpclient"
	"github.com/concierge-ai/concierge/pkg/types"
)

const weatherAPI = "https://api.52vmy.cn/api/query"

// WeatherTool reports the weather for a city. With no city it resolves the
// caller's city from their IP via the community backend first.
type WeatherTool struct {
	backend  *httpclient.Client
	external *http.Client
	queryURL string
}

// NewWeatherTool creates the weather tool.
func NewWeatherTool(backend *httpclient.Client) *WeatherTool {
	return &WeatherTool{
		backend:  backend,
		external: &http.Client{Timeout: 15 * time.Second},
		queryURL: weatherAPI,
	}
}

func (t *WeatherTool) Name() string { return "get_weather" }

func (t *WeatherTool) Description() string {
	return "获取城市天气。参数 city 为空时默认查询当前 IP 地址所在城市的天气"
}

func (t *WeatherTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"city": {
				"type": "string",
				"description": "城市名称，留空时按请求方 IP 定位"
			}
		}
	}`)
}

func (t *WeatherTool) Display() types.ToolDisplay {
	return types.ToolDisplay{
		DisplayName: "查询天气",
		Description: "正在查询天气",
		Icon:        "weather",
		Category:    "weather",
	}
}

func (t *WeatherTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		City string `json:"city"`
	}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &args); err != nil {
			return "", fmt.Errorf("tool: get_weather: bad arguments: %w", err)
		}
	}

	city := strings.TrimSpace(args.City)
	if city == "" {
		resolved, err := t.resolveCity(ctx)
		if err != nil {
			return "", err
		}
		city = resolved
	}

	return t.externalGet(ctx, t.queryURL+"/tian?city="+url.QueryEscape(city))
}

// resolveCity asks the backend for the caller's IP, then geolocates it.
func (t *WeatherTool) resolveCity(ctx context.Context) (string, error) {
	var ipResp struct {
		Data string `json:"data"`
	}
	if err := t.backend.Get(ctx, "/api/user/ip", nil, &ipResp); err != nil {
		return "", fmt.Errorf("tool: get_weather: resolve ip: %w", err)
	}

	raw, err := t.externalGet(ctx, t.queryURL+"/itad?ip="+url.QueryEscape(ipResp.Data))
	if err != nil {
		return "", err
	}

	var geo struct {
		Data struct {
			Address string `json:"address"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(raw), &geo); err != nil {
		return "", fmt.Errorf("tool: get_weather: decode geolocation: %w", err)
	}

	// Address is "province city district ..."; the first token is enough.
	city, _, _ := strings.Cut(strings.TrimSpace(geo.Data.Address), " ")
	if city == "" {
		return "", fmt.Errorf("tool: get_weather: could not resolve city from ip")
	}
	return city, nil
}

func (t *WeatherTool) externalGet(ctx context.Context, u string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("tool: get_weather: build request: %w", err)
	}

	resp, err := t.external.Do(req)
	if err != nil {
		return "", fmt.Errorf("tool: get_weather: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("tool: get_weather: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("tool: get_weather: read response: %w", err)
	}
	return string(body), nil
}

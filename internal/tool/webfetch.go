package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/concierge-ai/concierge/pkg/types"
)

const (
	webFetchMaxBody  = 5 * 1024 * 1024
	webFetchTimeout  = 30 * time.Second
	webFetchDescText = "抓取指定 URL 的网页内容并转换为 Markdown 或纯文本，用于联网查询公开信息。参数 url 必须以 http:// 或 https:// 开头"
)

// WebFetchTool fetches a public URL and returns its content in a
// model-friendly format. It never carries the caller's credential: the
// target is outside the community backend.
type WebFetchTool struct {
	client *http.Client
}

// NewWebFetchTool creates the web fetch tool.
func NewWebFetchTool() *WebFetchTool {
	return &WebFetchTool{client: &http.Client{Timeout: webFetchTimeout}}
}

func (t *WebFetchTool) Name() string        { return "web_fetch" }
func (t *WebFetchTool) Description() string { return webFetchDescText }

func (t *WebFetchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {
				"type": "string",
				"description": "要抓取的完整 URL"
			},
			"format": {
				"type": "string",
				"description": "返回格式: markdown 或 text，默认 markdown"
			}
		},
		"required": ["url"]
	}`)
}

func (t *WebFetchTool) Display() types.ToolDisplay {
	return types.ToolDisplay{
		DisplayName: "网络搜索",
		Description: "正在联网查询",
		Icon:        "search",
		Category:    "search",
	}
}

func (t *WebFetchTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var args struct {
		URL    string `json:"url"`
		Format string `json:"format"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return "", fmt.Errorf("tool: web_fetch: bad arguments: %w", err)
	}
	if !strings.HasPrefix(args.URL, "http://") && !strings.HasPrefix(args.URL, "https://") {
		return "", fmt.Errorf("tool: web_fetch: url must start with http:// or https://")
	}
	if args.Format == "" {
		args.Format = "markdown"
	}
	if args.Format != "markdown" && args.Format != "text" {
		return "", fmt.Errorf("tool: web_fetch: format must be markdown or text")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, args.URL, nil)
	if err != nil {
		return "", fmt.Errorf("tool: web_fetch: build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("tool: web_fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("tool: web_fetch: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, webFetchMaxBody+1))
	if err != nil {
		return "", fmt.Errorf("tool: web_fetch: read response: %w", err)
	}
	if len(body) > webFetchMaxBody {
		return "", fmt.Errorf("tool: web_fetch: response exceeds 5MB limit")
	}

	content := string(body)
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return content, nil
	}

	switch args.Format {
	case "text":
		return htmlToText(content)
	default:
		return htmlToMarkdown(content)
	}
}

// htmlToText strips markup and non-content elements, leaving readable text.
func htmlToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("tool: web_fetch: parse html: %w", err)
	}
	doc.Find("script, style, noscript, iframe, object, embed").Remove()
	return strings.TrimSpace(doc.Text()), nil
}

// htmlToMarkdown converts an HTML document to Markdown, dropping script and
// style blocks first.
func htmlToMarkdown(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("tool: web_fetch: parse html: %w", err)
	}
	doc.Find("script, style, noscript, iframe, object, embed").Remove()
	cleaned, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("tool: web_fetch: render html: %w", err)
	}

	converter := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		HorizontalRule:   "---",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
		EmDelimiter:      "*",
	})
	out, err := converter.ConvertString(cleaned)
	if err != nil {
		return "", fmt.Errorf("tool: web_fetch: convert html: %w", err)
	}
	return strings.TrimSpace(out), nil
}

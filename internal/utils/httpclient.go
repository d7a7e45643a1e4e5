package utils

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/user/papertiger/internal/apperr"
)

const userAgent = "PaperTigerCatalog/1.0 (+https://papertigercinema.com)"

// HTTPClient HTTP客户端
type HTTPClient struct {
	httpClient *http.Client
}

// NewHTTPClient 创建新的HTTP客户端，client 为空时使用带超时的默认客户端
func NewHTTPClient(client *http.Client) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPClient{httpClient: client}
}

// Get 发送GET请求
func (c *HTTPClient) Get(ctx context.Context, rawURL string, params url.Values) (*http.Response, error) {
	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	return c.httpClient.Do(req)
}

// GetJSON 发送GET请求并解析JSON响应，网络错误和非200状态都归为 ErrUpstream
func (c *HTTPClient) GetJSON(ctx context.Context, rawURL string, params url.Values, target interface{}) error {
	resp, err := c.Get(ctx, rawURL, params)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s 返回状态码 %d", apperr.ErrUpstream, rawURL, resp.StatusCode)
	}

	var reader io.ReadCloser
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		reader, err = gzip.NewReader(resp.Body)
		if err != nil {
			return fmt.Errorf("%w: 创建gzip读取器失败: %v", apperr.ErrUpstream, err)
		}
		defer reader.Close()
	case "deflate":
		reader = flate.NewReader(resp.Body)
		defer reader.Close()
	default:
		reader = resp.Body
	}

	if err := json.NewDecoder(reader).Decode(target); err != nil {
		return fmt.Errorf("%w: 解析JSON失败: %v", apperr.ErrUpstream, err)
	}
	return nil
}

// Package service 提供推荐 HTTP 服务的 Go 客户端，与 hybrid.Recommender 有相同的调用方式，
// 调用方可以在本地计算与远程服务之间切换。
package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/moviematch/core"
	"github.com/rushteam/moviematch/hybrid"
)

// ModuleService 是远程调用错误的模块名。
const ModuleService = "service"

// AuthConfig 认证信息（服务部署在网关之后时使用）。
type AuthConfig struct {
	Type     string // "basic", "bearer", "api_key"
	Username string
	Password string
	Token    string
	APIKey   string
}

// Client 是 /predict 接口的 HTTP 客户端。
type Client struct {
	// Endpoint 服务地址，例如 "http://localhost:4000"
	Endpoint string

	// Timeout 单次请求超时；每次请求都会重新训练模型，默认 60s
	Timeout time.Duration

	// Auth 认证信息（可选）
	Auth *AuthConfig

	httpClient *http.Client
}

// ClientOption 客户端配置选项
type ClientOption func(*Client)

// WithTimeout 设置超时时间
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.Timeout = timeout
	}
}

// WithAuth 设置认证信息
func WithAuth(auth *AuthConfig) ClientOption {
	return func(c *Client) {
		c.Auth = auth
	}
}

// WithHTTPClient 使用自定义 http.Client（其 Timeout 会被覆盖）。
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient 创建客户端。
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		Endpoint: strings.TrimRight(endpoint, "/"),
		Timeout:  60 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	c.httpClient.Timeout = c.Timeout
	return c
}

// Recommend 返回全部推荐结果。
func (c *Client) Recommend(ctx context.Context, liked []int64) ([]hybrid.Recommendation, error) {
	return c.Run(ctx, hybrid.Request{Liked: liked})
}

// Run 调用 POST /predict?explain=true。
//
// 服务端返回的 {"code", "message"} 错误会还原为 core.DomainError，
// 因此 core.IsInvalidInput / core.IsModelFit 对远程调用同样适用。
func (c *Client) Run(ctx context.Context, req hybrid.Request) ([]hybrid.Recommendation, error) {
	liked := req.Liked
	if liked == nil {
		liked = []int64{}
	}
	body, err := json.Marshal(map[string]any{"favorite_movies": liked})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	q := url.Values{}
	q.Set("explain", "true")
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+"/predict?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.RequestID != "" {
		httpReq.Header.Set("X-Request-ID", req.RequestID)
	}
	c.addAuth(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.WrapDomainError(ModuleService, core.ErrorCodeUnavailable, err, "http request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var recs []hybrid.Recommendation
	if err := json.NewDecoder(resp.Body).Decode(&recs); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return recs, nil
}

// Health 健康检查
func (c *Client) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.addAuth(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("health check failed: status=%d, body=%s", resp.StatusCode, string(bodyBytes))
	}
	return nil
}

func decodeError(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var e struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(bodyBytes, &e); err != nil || e.Code == "" {
		return core.NewDomainError(ModuleService, core.ErrorCodeInternalError,
			fmt.Sprintf("service error: status=%d, body=%s", resp.StatusCode, string(bodyBytes)))
	}
	return core.NewDomainError(ModuleService, e.Code, e.Message)
}

// addAuth 添加认证信息到 HTTP 请求
func (c *Client) addAuth(req *http.Request) {
	if c.Auth == nil {
		return
	}

	switch c.Auth.Type {
	case "basic":
		req.SetBasicAuth(c.Auth.Username, c.Auth.Password)
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+c.Auth.Token)
	case "api_key":
		req.Header.Set("X-API-Key", c.Auth.APIKey)
	}
}

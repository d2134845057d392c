// Package rag 提供了与 RAG 服务（文档摄取引擎）交互的 HTTP 客户端。
package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"rag-web-go/internal/config"
	"rag-web-go/pkg/log"
)

// Client 是 RAG 服务的客户端。
// 各操作自带超时上界：健康检查与进度查询是秒级，文档解析是小时级。
type Client struct {
	baseURL         string
	healthTimeout   time.Duration
	queryTimeout    time.Duration
	progressTimeout time.Duration
	parseTimeout    time.Duration
	httpClient      *http.Client
}

// NewClient 创建一个新的 RAG 客户端实例，未配置的超时采用部署默认值。
func NewClient(cfg config.RAGConfig) *Client {
	dialTimeout := time.Duration(cfg.ConnectTimeoutSeconds) * time.Second
	if dialTimeout <= 0 {
		dialTimeout = 60 * time.Second
	}
	c := &Client{
		baseURL:         cfg.BaseURL,
		healthTimeout:   time.Duration(cfg.HealthTimeoutSeconds) * time.Second,
		queryTimeout:    time.Duration(cfg.QueryTimeoutSeconds) * time.Second,
		progressTimeout: time.Duration(cfg.ProgressTimeoutSeconds) * time.Second,
		parseTimeout:    time.Duration(cfg.ParseTimeoutHours) * time.Hour,
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: dialTimeout}).DialContext,
			},
		},
	}
	if c.healthTimeout <= 0 {
		c.healthTimeout = 5 * time.Second
	}
	if c.queryTimeout <= 0 {
		c.queryTimeout = 60 * time.Second
	}
	if c.progressTimeout <= 0 {
		c.progressTimeout = 2 * time.Second
	}
	if c.parseTimeout <= 0 {
		c.parseTimeout = 4 * time.Hour
	}
	return c
}

// BaseURL 返回 RAG 服务地址，用于健康信息展示。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ParseTimeout 返回文档解析调用的超时上界。
func (c *Client) ParseTimeout() time.Duration {
	return c.parseTimeout
}

// ProgressInfo 是 RAG 服务进度登记表中某个文件键的最近进度。
type ProgressInfo struct {
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

// ParseDocumentRequest 是 /api/parse-document 的请求体。
type ParseDocumentRequest struct {
	FilePath      string `json:"file_path"`
	KnowledgeBase string `json:"knowledge_base"`
	ParseMethod   string `json:"parse_method"`
	DisplayStats  bool   `json:"display_stats"`
}

// Health 调用 RAG 服务的健康检查接口，返回原始响应体。
// 返回错误表示服务不可达或非 200。
func (c *Client) Health(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return "", fmt.Errorf("创建健康检查请求失败: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("RAG 服务连接失败: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("RAG 服务健康检查失败: HTTP %d", resp.StatusCode)
	}
	return string(body), nil
}

// ParseDocument 触发一次完整的文档处理，阻塞至引擎返回或超时。
// 进度不通过本调用返回，由 GetProgress 侧信道观测。
func (c *Client) ParseDocument(ctx context.Context, parseReq ParseDocumentRequest) error {
	ctx, cancel := context.WithTimeout(ctx, c.parseTimeout)
	defer cancel()

	reqBytes, err := json.Marshal(parseReq)
	if err != nil {
		return fmt.Errorf("序列化解析请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/parse-document", bytes.NewReader(reqBytes))
	if err != nil {
		return fmt.Errorf("创建解析请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("调用 RAG 解析接口失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		log.Errorf("[RAGClient] 解析接口返回非 200: %d, body: %s", resp.StatusCode, truncate(string(body), 300))
		return fmt.Errorf("RAG服务错误: HTTP %d", resp.StatusCode)
	}
	return nil
}

// GetProgress 查询 RAG 服务进度登记表中指定文件键的进度。
// 引擎对未知键同样返回 200（progress=0），由调用方判定是否命中。
func (c *Client) GetProgress(ctx context.Context, fileKey string) (ProgressInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.progressTimeout)
	defer cancel()

	var info ProgressInfo
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/progress/"+url.PathEscape(fileKey), nil)
	if err != nil {
		return info, fmt.Errorf("创建进度查询请求失败: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return info, fmt.Errorf("查询 RAG 进度失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return info, fmt.Errorf("进度查询返回非 200: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return info, fmt.Errorf("解析进度响应失败: %w", err)
	}
	return info, nil
}

type queryRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode"`
}

type queryResponse struct {
	Status string `json:"status"`
	Data   string `json:"data"`
	Mode   string `json:"mode"`
}

// Query 以指定模式查询知识库，返回引擎的文本结果。
func (c *Client) Query(ctx context.Context, query, mode string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	reqBytes, err := json.Marshal(queryRequest{Query: query, Mode: mode})
	if err != nil {
		return "", fmt.Errorf("序列化查询请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/query", bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("创建查询请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("调用 RAG 查询接口失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取查询响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("RAG查询失败: HTTP %d - %s", resp.StatusCode, truncate(string(body), 300))
	}

	// 响应不是预期 JSON 时直接返回原始文本
	var qr queryResponse
	if err := json.Unmarshal(body, &qr); err != nil || qr.Data == "" {
		return string(body), nil
	}
	return qr.Data, nil
}

type insertRequest struct {
	Text string `json:"text"`
}

// Insert 直接插入一段文本，保留用于诊断接口。
func (c *Client) Insert(ctx context.Context, text string) error {
	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	reqBytes, err := json.Marshal(insertRequest{Text: text})
	if err != nil {
		return fmt.Errorf("序列化插入请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/insert", bytes.NewReader(reqBytes))
	if err != nil {
		return fmt.Errorf("创建插入请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("调用 RAG 插入接口失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("RAG插入失败: HTTP %d - %s", resp.StatusCode, truncate(string(body), 300))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

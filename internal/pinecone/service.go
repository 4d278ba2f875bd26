package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/djrag/backend-go/internal/logger"
	"go.uber.org/zap"
)

const apiVersion = "2025-01"

// Service 统一的Pinecone服务，封装Inference向量化与索引数据面操作
type Service struct {
	apiKey    string
	baseURL   string // 控制面/Inference地址
	indexHost string // 索引数据面地址
	client    *http.Client
}

// EmbedInput 向量化输入
type EmbedInput struct {
	Text string `json:"text"`
}

// EmbedParameters 向量化参数。InputType区分passage/query，
// 服务端会对两类输入做不同偏置，检索质量依赖这一不对称性。
type EmbedParameters struct {
	InputType string `json:"input_type"`
	Truncate  string `json:"truncate,omitempty"`
}

// EmbedRequest 向量化请求
type EmbedRequest struct {
	Model      string          `json:"model"`
	Parameters EmbedParameters `json:"parameters"`
	Inputs     []EmbedInput    `json:"inputs"`
}

// EmbedResponse 向量化响应
type EmbedResponse struct {
	Model string      `json:"model"`
	Data  []EmbedData `json:"data"`
	Usage EmbedUsage  `json:"usage"`
}

type EmbedData struct {
	Values []float32 `json:"values"`
}

type EmbedUsage struct {
	TotalTokens int `json:"total_tokens"`
}

// Vector 索引中的一条向量记录
type Vector struct {
	ID       string                 `json:"id"`
	Values   []float32              `json:"values"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// UpsertRequest 写入请求
type UpsertRequest struct {
	Vectors []Vector `json:"vectors"`
}

// UpsertResponse 写入响应
type UpsertResponse struct {
	UpsertedCount int `json:"upsertedCount"`
}

// QueryRequest 检索请求，Filter为元数据等值过滤
type QueryRequest struct {
	Vector          []float32              `json:"vector"`
	TopK            int                    `json:"topK"`
	Filter          map[string]interface{} `json:"filter,omitempty"`
	IncludeMetadata bool                   `json:"includeMetadata"`
}

// QueryResponse 检索响应
type QueryResponse struct {
	Matches []QueryMatch `json:"matches"`
}

type QueryMatch struct {
	ID       string                 `json:"id"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// DeleteRequest 删除请求，按元数据过滤整批删除
type DeleteRequest struct {
	Filter    map[string]interface{} `json:"filter,omitempty"`
	DeleteAll bool                   `json:"deleteAll,omitempty"`
}

// Error Pinecone API错误
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Option 服务配置项
type Option func(*Service)

// WithBaseURL 覆盖Inference地址（测试用）
func WithBaseURL(url string) Option {
	return func(s *Service) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient 覆盖HTTP客户端
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		s.client = client
	}
}

// NewService 创建Pinecone服务
func NewService(apiKey, indexHost string, opts ...Option) *Service {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		logger.Warn("Pinecone API key is empty")
		return nil
	}

	s := &Service{
		apiKey:    apiKey,
		baseURL:   "https://api.pinecone.io",
		indexHost: normalizeHost(indexHost),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeHost(host string) string {
	host = strings.TrimSpace(strings.TrimRight(host, "/"))
	if host == "" {
		return ""
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return host
}

// Embed 调用Inference向量化接口
func (s *Service) Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("pinecone service not initialized")
	}
	if len(req.Inputs) == 0 {
		return nil, fmt.Errorf("embed inputs are empty")
	}

	var embedResp EmbedResponse
	if err := s.post(ctx, s.baseURL+"/embed", req, &embedResp); err != nil {
		return nil, err
	}

	logger.Debug("Pinecone embed success",
		zap.String("model", req.Model),
		zap.String("input_type", req.Parameters.InputType),
		zap.Int("input_count", len(req.Inputs)),
		zap.Int("total_tokens", embedResp.Usage.TotalTokens))

	return &embedResp, nil
}

// Upsert 写入向量到索引
func (s *Service) Upsert(ctx context.Context, req UpsertRequest) (*UpsertResponse, error) {
	if err := s.requireIndex(); err != nil {
		return nil, err
	}

	var upsertResp UpsertResponse
	if err := s.post(ctx, s.indexHost+"/vectors/upsert", req, &upsertResp); err != nil {
		return nil, err
	}
	return &upsertResp, nil
}

// Query 最近邻检索
func (s *Service) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	if err := s.requireIndex(); err != nil {
		return nil, err
	}

	var queryResp QueryResponse
	if err := s.post(ctx, s.indexHost+"/query", req, &queryResp); err != nil {
		return nil, err
	}
	return &queryResp, nil
}

// Delete 按过滤条件删除，空结果集也视为成功
func (s *Service) Delete(ctx context.Context, req DeleteRequest) error {
	if err := s.requireIndex(); err != nil {
		return err
	}

	var deleteResp struct{}
	return s.post(ctx, s.indexHost+"/vectors/delete", req, &deleteResp)
}

func (s *Service) requireIndex() error {
	if s == nil || s.client == nil {
		return fmt.Errorf("pinecone service not initialized")
	}
	if s.indexHost == "" {
		return fmt.Errorf("pinecone index host not configured")
	}
	return nil
}

func (s *Service) post(ctx context.Context, url string, payload interface{}, out interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Api-Key", s.apiKey)
	httpReq.Header.Set("X-Pinecone-API-Version", apiVersion)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("API调用失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errorResp Error
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Message != "" {
			return fmt.Errorf("Pinecone API错误: %s (code: %d)", errorResp.Message, errorResp.Code)
		}
		return fmt.Errorf("Pinecone API错误: HTTP %d - %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}

// Ready 检查服务是否就绪
func (s *Service) Ready() bool {
	return s != nil && s.client != nil && s.apiKey != ""
}

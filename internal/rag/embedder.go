package rag

import (
	"context"
	"errors"
	"fmt"

	"github.com/djrag/backend-go/internal/pinecone"
)

const (
	inputTypePassage = "passage"
	inputTypeQuery   = "query"
)

// Embedder 文本向量化接口。文档与查询走不同的输入类型，
// 两侧表示偏置不同，混用会损失检索质量。
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Ready() bool
}

// PineconeEmbedder 使用Pinecone Inference API生成向量
type PineconeEmbedder struct {
	service    *pinecone.Service
	model      string
	dimensions int
	batchSize  int
}

// NewPineconeEmbedder 创建Pinecone向量生成器
func NewPineconeEmbedder(service *pinecone.Service, model string, dimensions, batchSize int) (*PineconeEmbedder, error) {
	if service == nil || !service.Ready() {
		return nil, errors.New("pinecone service not available")
	}
	if model == "" {
		model = "llama-text-embed-v2"
	}
	if dimensions <= 0 {
		dimensions = 1024
	}
	if batchSize <= 0 {
		batchSize = 90
	}

	return &PineconeEmbedder{
		service:    service,
		model:      model,
		dimensions: dimensions,
		batchSize:  batchSize,
	}, nil
}

// EmbedDocuments 批量向量化文档。按batchSize分批提交，
// 任何一批失败整体报错，不做部分成功的静默降级。
func (e *PineconeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := e.embed(ctx, texts[start:end], inputTypePassage)
		if err != nil {
			return nil, fmt.Errorf("embed documents batch %d failed: %w", start/e.batchSize, err)
		}
		all = append(all, vectors...)
	}

	return all, nil
}

// EmbedQuery 向量化查询文本
func (e *PineconeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("query text is empty")
	}

	vectors, err := e.embed(ctx, []string{text}, inputTypeQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}
	return vectors[0], nil
}

func (e *PineconeEmbedder) embed(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	inputs := make([]pinecone.EmbedInput, len(texts))
	for i, text := range texts {
		inputs[i] = pinecone.EmbedInput{Text: text}
	}

	resp, err := e.service.Embed(ctx, pinecone.EmbedRequest{
		Model: e.model,
		Parameters: pinecone.EmbedParameters{
			InputType: inputType,
			Truncate:  "END",
		},
		Inputs: inputs,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response size mismatch: got %d, want %d", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vectors[i] = data.Values
	}
	return vectors, nil
}

func (e *PineconeEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *PineconeEmbedder) Ready() bool {
	return e.service.Ready()
}

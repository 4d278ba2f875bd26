package rag

import "context"

// VectorChunk 写入向量存储的一条记录
type VectorChunk struct {
	ID        string
	Text      string
	Embedding []float32
	Metadata  Metadata
}

// SearchRequest 向量检索请求。SessionID非空时检索严格限定在该会话内，
// 为空时跨全库检索（仅在调用方确实没有会话上下文时允许）。
type SearchRequest struct {
	QueryEmbedding []float32
	SessionID      string
	Limit          int
}

// SearchMatch 检索结果，按相似度降序
type SearchMatch struct {
	ID       string
	Text     string
	Score    float64
	Metadata Metadata
}

// VectorStore 向量存储抽象。三个实现：Pinecone（托管）、Milvus（自建）、memory（测试/开发）。
// 所有操作失败都返回错误，调用方能够区分"无匹配"与"索引不可用"。
type VectorStore interface {
	// UpsertChunks 幂等写入，不要求预先创建会话命名空间
	UpsertChunks(ctx context.Context, chunks []VectorChunk) error
	// Search 最近邻检索，按SessionID做元数据等值过滤
	Search(ctx context.Context, req SearchRequest) ([]SearchMatch, error)
	// DeleteSession 删除该会话的全部向量；目标集合为空时也视为成功
	DeleteSession(ctx context.Context, sessionID string) error
	Ready() bool
}

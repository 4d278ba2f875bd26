package rag

import (
	"context"
	"math"
	"sort"
	"sync"
)

// memoryVectorStore 进程内向量存储，余弦相似度线性扫描。
// 用于测试和未配置外部索引时的本地开发，不做持久化。
type memoryVectorStore struct {
	mu      sync.RWMutex
	records map[string]VectorChunk
}

// NewMemoryVectorStore 创建内存向量存储
func NewMemoryVectorStore() VectorStore {
	return &memoryVectorStore{
		records: make(map[string]VectorChunk),
	}
}

func (s *memoryVectorStore) UpsertChunks(ctx context.Context, chunks []VectorChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, chunk := range chunks {
		s.records[chunk.ID] = chunk
	}
	return nil
}

func (s *memoryVectorStore) Search(ctx context.Context, req SearchRequest) ([]SearchMatch, error) {
	if req.Limit <= 0 {
		req.Limit = 4
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]SearchMatch, 0)
	for _, record := range s.records {
		if req.SessionID != "" && record.Metadata.SessionID != req.SessionID {
			continue
		}
		matches = append(matches, SearchMatch{
			ID:       record.ID,
			Text:     record.Text,
			Score:    cosineSimilarity(req.QueryEmbedding, record.Embedding),
			Metadata: record.Metadata,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})

	if len(matches) > req.Limit {
		matches = matches[:req.Limit]
	}
	return matches, nil
}

func (s *memoryVectorStore) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, record := range s.records {
		if record.Metadata.SessionID == sessionID {
			delete(s.records, id)
		}
	}
	return nil
}

func (s *memoryVectorStore) Ready() bool {
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

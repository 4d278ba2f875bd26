package rag

import (
	"context"
	"fmt"

	"github.com/djrag/backend-go/internal/pinecone"
)

type pineconeVectorStore struct {
	service *pinecone.Service
}

// NewPineconeVectorStore 创建Pinecone向量存储
func NewPineconeVectorStore(service *pinecone.Service) (VectorStore, error) {
	if service == nil || !service.Ready() {
		return nil, fmt.Errorf("pinecone service not available")
	}
	return &pineconeVectorStore{service: service}, nil
}

func (s *pineconeVectorStore) UpsertChunks(ctx context.Context, chunks []VectorChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	vectors := make([]pinecone.Vector, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("chunk %s has empty embedding", chunk.ID)
		}
		metadata := chunk.Metadata.ToMap()
		metadata["text"] = chunk.Text
		vectors = append(vectors, pinecone.Vector{
			ID:       chunk.ID,
			Values:   chunk.Embedding,
			Metadata: metadata,
		})
	}

	if _, err := s.service.Upsert(ctx, pinecone.UpsertRequest{Vectors: vectors}); err != nil {
		return fmt.Errorf("pinecone upsert failed: %w", err)
	}
	return nil
}

func (s *pineconeVectorStore) Search(ctx context.Context, req SearchRequest) ([]SearchMatch, error) {
	if len(req.QueryEmbedding) == 0 {
		return nil, fmt.Errorf("query embedding is empty")
	}
	if req.Limit <= 0 {
		req.Limit = 4
	}

	query := pinecone.QueryRequest{
		Vector:          req.QueryEmbedding,
		TopK:            req.Limit,
		IncludeMetadata: true,
	}
	if req.SessionID != "" {
		query.Filter = map[string]interface{}{
			"session_id": map[string]interface{}{"$eq": req.SessionID},
		}
	}

	resp, err := s.service.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pinecone query failed: %w", err)
	}

	matches := make([]SearchMatch, 0, len(resp.Matches))
	for _, match := range resp.Matches {
		text, _ := match.Metadata["text"].(string)
		matches = append(matches, SearchMatch{
			ID:       match.ID,
			Text:     text,
			Score:    match.Score,
			Metadata: MetadataFromMap(match.Metadata),
		})
	}
	return matches, nil
}

func (s *pineconeVectorStore) DeleteSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session id is empty")
	}

	err := s.service.Delete(ctx, pinecone.DeleteRequest{
		Filter: map[string]interface{}{
			"session_id": map[string]interface{}{"$eq": sessionID},
		},
	})
	if err != nil {
		return fmt.Errorf("pinecone delete failed: %w", err)
	}
	return nil
}

func (s *pineconeVectorStore) Ready() bool {
	return s.service.Ready()
}

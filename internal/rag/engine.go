package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/djrag/backend-go/internal/config"
	"github.com/djrag/backend-go/internal/logger"
	"github.com/djrag/backend-go/internal/pinecone"
	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// systemPromptPrefix 生成阶段的固定系统指令，检索到的上下文拼接在其后
const systemPromptPrefix = "Use the following context to answer the question:\n\n"

// 单次写入索引的向量条数上限
const upsertBatchSize = 100

// HistoryMessage 一条历史对话
type HistoryMessage struct {
	Role    string
	Content string
}

// Engine 检索-生成引擎。两个阶段顺序执行、无分支：
// retrieve用查询向量在会话范围内找相关分块，generate把分块与历史拼成
// 提示词调用一次聊天模型。
type Engine struct {
	embedder Embedder
	store    VectorStore
	llm      *openai.Client
	loader   *LoaderManager
	chunker  *Chunker

	chatModel string
	topK      int
	timeout   time.Duration
}

// Options 引擎参数
type Options struct {
	ChatModel    string
	TopK         int
	Timeout      time.Duration
	ChunkSize    int
	ChunkOverlap int
}

// NewEngineWithComponents 从已构造好的组件组装引擎
func NewEngineWithComponents(embedder Embedder, store VectorStore, llm *openai.Client, opts Options) (*Engine, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("vector store is required")
	}

	if opts.ChatModel == "" {
		opts.ChatModel = "gemini-2.5-flash"
	}
	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}

	return &Engine{
		embedder:  embedder,
		store:     store,
		llm:       llm,
		loader:    NewLoaderManager(),
		chunker:   NewChunker(opts.ChunkSize, opts.ChunkOverlap),
		chatModel: opts.ChatModel,
		topK:      opts.TopK,
		timeout:   opts.Timeout,
	}, nil
}

// NewEngine 按配置组装引擎。缺少必要凭证时返回配置错误，
// 由调用方决定是否在下一个请求重试构造。
func NewEngine(cfg *config.Config) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}

	// 向量化始终走Pinecone Inference
	pc := pinecone.NewService(cfg.VectorStore.Pinecone.APIKey, cfg.VectorStore.Pinecone.IndexHost)
	embedder, err := NewPineconeEmbedder(pc, cfg.Embedding.Model, cfg.Embedding.Dimensions, cfg.Embedding.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("embedder init failed: %w", err)
	}

	store, err := buildVectorStore(cfg, pc)
	if err != nil {
		return nil, fmt.Errorf("vector store init failed: %w", err)
	}

	if cfg.Chat.APIKey == "" {
		return nil, fmt.Errorf("chat model api key not configured")
	}
	llmConfig := openai.DefaultConfig(cfg.Chat.APIKey)
	if cfg.Chat.BaseURL != "" {
		llmConfig.BaseURL = cfg.Chat.BaseURL
	}

	return NewEngineWithComponents(embedder, store, openai.NewClientWithConfig(llmConfig), Options{
		ChatModel:    cfg.Chat.Model,
		TopK:         cfg.RAG.TopK,
		Timeout:      time.Duration(cfg.RAG.RequestTimeout) * time.Second,
		ChunkSize:    cfg.RAG.ChunkSize,
		ChunkOverlap: cfg.RAG.ChunkOverlap,
	})
}

func buildVectorStore(cfg *config.Config, pc *pinecone.Service) (VectorStore, error) {
	switch cfg.VectorStore.Provider {
	case "milvus":
		return NewMilvusVectorStore(MilvusOptions{
			Address:    cfg.VectorStore.Milvus.Address,
			Username:   cfg.VectorStore.Milvus.Username,
			Password:   cfg.VectorStore.Milvus.Password,
			Collection: cfg.VectorStore.Milvus.Collection,
			Database:   cfg.VectorStore.Milvus.Database,
			VectorSize: cfg.Embedding.Dimensions,
			Distance:   cfg.VectorStore.Milvus.Distance,
			UseTLS:     cfg.VectorStore.Milvus.TLS,
		})
	case "memory":
		return NewMemoryVectorStore(), nil
	default:
		return NewPineconeVectorStore(pc)
	}
}

// Chat 执行一次检索-生成。sessionID为空时不加过滤跨全库检索；
// 检索结果为空照常进入生成阶段，此时模型只依赖对话历史。
func (e *Engine) Chat(ctx context.Context, question, sessionID string, history []HistoryMessage) (string, error) {
	// 阶段1：检索
	matches, err := e.retrieve(ctx, question, sessionID)
	if err != nil {
		return "", fmt.Errorf("retrieve failed: %w", err)
	}

	// 阶段2：生成
	answer, err := e.generate(ctx, question, matches, history)
	if err != nil {
		return "", fmt.Errorf("generate failed: %w", err)
	}

	logger.Debug("RAG chat completed",
		zap.String("session_id", sessionID),
		zap.Int("context_chunks", len(matches)))

	return answer, nil
}

func (e *Engine) retrieve(ctx context.Context, question, sessionID string) ([]SearchMatch, error) {
	embedCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	queryVector, err := e.embedder.EmbedQuery(embedCtx, question)
	if err != nil {
		return nil, err
	}

	searchCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	return e.store.Search(searchCtx, SearchRequest{
		QueryEmbedding: queryVector,
		SessionID:      sessionID,
		Limit:          e.topK,
	})
}

func (e *Engine) generate(ctx context.Context, question string, matches []SearchMatch, history []HistoryMessage) (string, error) {
	// 上下文块按检索排名拼接，空行分隔
	texts := make([]string, len(matches))
	for i, match := range matches {
		texts[i] = match.Text
	}
	contextBlock := strings.Join(texts, "\n\n")

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPromptPrefix + contextBlock,
	})
	// 历史按时间先旧后新
	for _, turn := range history {
		role := openai.ChatMessageRoleUser
		if turn.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: turn.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: question,
	})

	chatCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.llm.CreateChatCompletion(chatCtx, openai.ChatCompletionRequest{
		Model:    e.chatModel,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from chat model")
	}

	return resp.Choices[0].Message.Content, nil
}

// ProcessFile 摄取一个上传文件：解析、分块、打会话标签、向量化、写入索引。
// 返回分块数。加载器没有产出任何文本单元（如空表格）时返回0，不算失败。
func (e *Engine) ProcessFile(ctx context.Context, data []byte, filename, sessionID string) (int, error) {
	docs, err := e.loader.Load(data, filename)
	if err != nil {
		return 0, fmt.Errorf("load file failed: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	chunks := e.chunker.SplitDocuments(docs)
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		chunks[i].Metadata.SessionID = sessionID
		texts[i] = chunks[i].PageContent
	}

	embedCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	vectors, err := e.embedder.EmbedDocuments(embedCtx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks failed: %w", err)
	}

	records := make([]VectorChunk, len(chunks))
	for i, chunk := range chunks {
		records[i] = VectorChunk{
			ID:        uuid.NewString(),
			Text:      chunk.PageContent,
			Embedding: vectors[i],
			Metadata:  chunk.Metadata,
		}
	}

	for start := 0; start < len(records); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(records) {
			end = len(records)
		}

		upsertCtx, cancel := context.WithTimeout(ctx, e.timeout)
		err := e.store.UpsertChunks(upsertCtx, records[start:end])
		cancel()
		if err != nil {
			return 0, fmt.Errorf("upsert chunks failed: %w", err)
		}
	}

	logger.Info("Processed file into vector index",
		zap.String("file", filename),
		zap.String("session_id", sessionID),
		zap.Int("chunks", len(records)))

	return len(records), nil
}

// DeleteSessionVectors 清除会话的全部向量
func (e *Engine) DeleteSessionVectors(ctx context.Context, sessionID string) error {
	deleteCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.store.DeleteSession(deleteCtx, sessionID); err != nil {
		return fmt.Errorf("delete session vectors failed: %w", err)
	}
	return nil
}

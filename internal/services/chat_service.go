package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/djrag/backend-go/internal/config"
	"github.com/djrag/backend-go/internal/logger"
	"github.com/djrag/backend-go/internal/models"
	"github.com/djrag/backend-go/internal/rag"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ChatService 聊天与文档摄取的编排层
type ChatService struct {
	provider *EngineProvider
	sessions *SessionService
}

// UploadResult 上传处理结果
type UploadResult struct {
	Chunks   int
	Title    string
	FileName string
}

// NewChatService 创建聊天服务
func NewChatService(provider *EngineProvider, sessions *SessionService) *ChatService {
	return &ChatService{provider: provider, sessions: sessions}
}

// Chat 处理一次提问。历史窗口取会话最近的N条已持久化消息。
// 用户消息与助手消息在生成成功后于同一事务内落库：
// 生成失败时什么都不写，避免留下没有回复的孤立用户消息。
func (s *ChatService) Chat(ctx context.Context, sessionID, question string) (string, error) {
	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		return "", err
	}

	window := config.GetAppConfig().RAG.HistoryWindow
	recent, err := s.sessions.RecentMessages(session.ID, window)
	if err != nil {
		return "", err
	}

	history := make([]rag.HistoryMessage, len(recent))
	for i, msg := range recent {
		history[i] = rag.HistoryMessage{Role: msg.Role, Content: msg.Content}
	}

	engine, err := s.provider.Get()
	if err != nil {
		return "", fmt.Errorf("RAG engine unavailable: %w", err)
	}

	answer, err := engine.Chat(ctx, question, sessionID, history)
	if err != nil {
		logger.Error("Chat generation failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return "", err
	}

	db, err := s.sessions.db()
	if err != nil {
		return "", err
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		userMsg := &models.ChatMessage{
			SessionID: sessionID,
			Role:      models.RoleUser,
			Content:   question,
		}
		if err := tx.Create(userMsg).Error; err != nil {
			return fmt.Errorf("failed to save user message: %w", err)
		}

		assistantMsg := &models.ChatMessage{
			SessionID: sessionID,
			Role:      models.RoleAssistant,
			Content:   answer,
		}
		if err := tx.Create(assistantMsg).Error; err != nil {
			return fmt.Errorf("failed to save assistant message: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return answer, nil
}

// Upload 处理文档上传：校验扩展名、摄取入索引、更新会话标题与文件名
func (s *ChatService) Upload(ctx context.Context, sessionID, filename string, data []byte) (*UploadResult, error) {
	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	if !ExtensionAllowed(filename) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, filepath.Ext(filename))
	}

	engine, err := s.provider.Get()
	if err != nil {
		return nil, fmt.Errorf("RAG engine unavailable: %w", err)
	}

	chunks, err := engine.ProcessFile(ctx, data, filename, session.ID)
	if err != nil {
		logger.Error("File processing failed",
			zap.String("session_id", sessionID),
			zap.String("file", filename),
			zap.Error(err))
		return nil, err
	}

	updated, err := s.sessions.MarkUploaded(session.ID, filename)
	if err != nil {
		return nil, err
	}

	return &UploadResult{
		Chunks:   chunks,
		Title:    updated.Title,
		FileName: filename,
	}, nil
}

// ExtensionAllowed 扩展名是否在上传白名单内
func ExtensionAllowed(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range config.GetAppConfig().Upload.AllowedTypes {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

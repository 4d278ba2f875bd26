package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/djrag/backend-go/internal/database"
	"github.com/djrag/backend-go/internal/logger"
	"github.com/djrag/backend-go/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SessionService 会话与消息的关系型持久化
type SessionService struct {
	provider *EngineProvider
}

// NewSessionService 创建会话服务
func NewSessionService(provider *EngineProvider) *SessionService {
	return &SessionService{provider: provider}
}

func (s *SessionService) db() (*gorm.DB, error) {
	if !database.Enabled() {
		return nil, ErrDatabaseDisabled
	}
	return database.DB, nil
}

// CreateSession 创建新会话，标题缺省为"New Chat"
func (s *SessionService) CreateSession(title string) (*models.ChatSession, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}

	if title == "" {
		title = "New Chat"
	}

	session := &models.ChatSession{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	logger.Info("Created session", zap.String("session_id", session.ID))
	return session, nil
}

// ListSessions 列出全部会话，新建的在前
func (s *SessionService) ListSessions() ([]models.ChatSession, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}

	var sessions []models.ChatSession
	if err := db.Order("created_at DESC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// GetSession 按ID获取会话
func (s *SessionService) GetSession(id string) (*models.ChatSession, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}

	var session models.ChatSession
	if err := db.Where("id = ?", id).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// GetMessages 获取会话消息，按时间先旧后新
func (s *SessionService) GetMessages(sessionID string) ([]models.ChatMessage, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}

	var messages []models.ChatMessage
	if err := db.Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	return messages, nil
}

// RecentMessages 获取会话最近的limit条消息，返回顺序先旧后新，
// 作为生成阶段的对话历史窗口
func (s *SessionService) RecentMessages(sessionID string, limit int) ([]models.ChatMessage, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}

	var messages []models.ChatMessage
	if err := db.Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to get recent messages: %w", err)
	}

	// 翻转为时间升序
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MarkUploaded 上传成功后把会话标题与文件名更新为上传文件名
func (s *SessionService) MarkUploaded(sessionID, filename string) (*models.ChatSession, error) {
	db, err := s.db()
	if err != nil {
		return nil, err
	}

	session, err := s.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	session.Title = filename
	session.FileName = &filename
	if err := db.Model(&models.ChatSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{"title": filename, "file_name": filename}).Error; err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}
	return session, nil
}

// DeleteSession 删除会话：先清向量索引，再删会话行，消息行级联删除
func (s *SessionService) DeleteSession(ctx context.Context, id string) error {
	db, err := s.db()
	if err != nil {
		return err
	}

	if _, err := s.GetSession(id); err != nil {
		return err
	}

	engine, err := s.provider.Get()
	if err != nil {
		return fmt.Errorf("RAG engine unavailable: %w", err)
	}
	if err := engine.DeleteSessionVectors(ctx, id); err != nil {
		return err
	}

	// 外键OnDelete:CASCADE负责消息行；显式删除兜底无级联支持的库
	if err := db.Where("session_id = ?", id).Delete(&models.ChatMessage{}).Error; err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if err := db.Where("id = ?", id).Delete(&models.ChatSession{}).Error; err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	logger.Info("Deleted session", zap.String("session_id", id))
	return nil
}

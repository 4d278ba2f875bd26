package models

import (
	"time"
)

// ChatSession 会话表
type ChatSession struct {
	ID        string    `gorm:"primaryKey;column:id;size:64" json:"id"`
	Title     string    `gorm:"column:title;size:255;default:New Chat" json:"title"`
	FileName  *string   `gorm:"column:file_name;size:255" json:"file_name"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index" json:"created_at"`

	Messages []ChatMessage `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"-"`
}

func (ChatSession) TableName() string {
	return "sessions"
}

// ChatMessage 消息表，按创建时间排序，只增不改
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey;column:id" json:"id"`
	SessionID string    `gorm:"column:session_id;size:64;not null;index" json:"-"`
	Role      string    `gorm:"column:role;size:20;not null" json:"role"` // user | assistant
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (ChatMessage) TableName() string {
	return "messages"
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

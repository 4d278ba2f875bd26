package controllers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/djrag/backend-go/app/bootstrap"
	"github.com/djrag/backend-go/internal/config"
	"github.com/djrag/backend-go/internal/models"
	"github.com/djrag/backend-go/internal/services"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// CreateSessionRequest 创建会话请求
type CreateSessionRequest struct {
	Title string `json:"title" validate:"omitempty,max=255"`
}

// ChatRequest 聊天请求
type ChatRequest struct {
	Question string `json:"question" validate:"required"`
}

// SessionController 会话、消息、聊天与上传的HTTP入口
type SessionController struct {
	BaseController
	sessions *services.SessionService
	chat     *services.ChatService
}

func (c *SessionController) Prepare() {
	provider := bootstrap.GetApp().EngineProvider()
	c.sessions = services.NewSessionService(provider)
	c.chat = services.NewChatService(provider, c.sessions)
}

// Create POST /sessions
func (c *SessionController) Create() {
	var req CreateSessionRequest
	if body := c.Ctx.Input.RequestBody; len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			c.JSONError(http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}
	}
	if err := validate.Struct(&req); err != nil {
		c.JSONError(http.StatusBadRequest, err.Error())
		return
	}

	session, err := c.sessions.CreateSession(req.Title)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// List GET /sessions
func (c *SessionController) List() {
	sessions, err := c.sessions.ListSessions()
	if err != nil {
		c.handleServiceError(err)
		return
	}
	if sessions == nil {
		sessions = []models.ChatSession{}
	}
	c.JSON(http.StatusOK, sessions)
}

// Messages GET /sessions/:id/messages
func (c *SessionController) Messages() {
	sessionID := c.Ctx.Input.Param(":id")

	messages, err := c.sessions.GetMessages(sessionID)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	c.JSON(http.StatusOK, messages)
}

// Chat POST /sessions/:id/chat
func (c *SessionController) Chat() {
	sessionID := c.Ctx.Input.Param(":id")

	var req ChatRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := validate.Struct(&req); err != nil {
		c.JSONError(http.StatusBadRequest, "question is required")
		return
	}

	answer, err := c.chat.Chat(c.Ctx.Request.Context(), sessionID, req.Question)
	if err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSON(http.StatusOK, map[string]interface{}{
		"answer": answer,
	})
}

// Upload POST /sessions/:id/upload
func (c *SessionController) Upload() {
	sessionID := c.Ctx.Input.Param(":id")

	file, header, err := c.GetFile("file")
	if err != nil {
		c.JSONError(http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	// 扩展名在任何解析开始之前校验
	if !services.ExtensionAllowed(header.Filename) {
		c.JSONError(http.StatusBadRequest, "Only PDF, DOCX, Excel, and CSV files are supported")
		return
	}

	if maxSize := config.GetAppConfig().Upload.MaxSize; maxSize > 0 && header.Size > maxSize {
		c.JSONError(http.StatusBadRequest, fmt.Sprintf("file exceeds maximum size of %d bytes", maxSize))
		return
	}

	// 整个文件读入内存后再处理，不做流式
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSONError(http.StatusBadRequest, fmt.Sprintf("failed to read file: %v", err))
		return
	}

	result, err := c.chat.Upload(c.Ctx.Request.Context(), sessionID, header.Filename, data)
	if err != nil {
		c.handleServiceError(err)
		return
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"message":   fmt.Sprintf("Successfully processed %s", header.Filename),
		"chunks":    result.Chunks,
		"title":     result.Title,
		"file_name": result.FileName,
	})
}

// Delete DELETE /sessions/:id
func (c *SessionController) Delete() {
	sessionID := c.Ctx.Input.Param(":id")

	if err := c.sessions.DeleteSession(c.Ctx.Request.Context(), sessionID); err != nil {
		c.handleServiceError(err)
		return
	}
	c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Session deleted successfully",
	})
}

package controllers

import (
	"errors"
	"net/http"

	"github.com/beego/beego/v2/server/web"
	"github.com/djrag/backend-go/internal/logger"
	"github.com/djrag/backend-go/internal/services"
	"go.uber.org/zap"
)

// BaseController provides helpers for consistent JSON responses.
type BaseController struct {
	web.Controller
}

// JSON writes a JSON response with the supplied HTTP status code.
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	c.ServeJSON()
}

// JSONError writes an error body with message.
func (c *BaseController) JSONError(status int, message string) {
	c.JSON(status, map[string]interface{}{
		"error": message,
	})
}

// handleServiceError 把服务层错误映射为HTTP状态码。
// 上游调用失败记录完整诊断信息，对外只暴露错误消息本身。
func (c *BaseController) handleServiceError(err error) {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		c.JSONError(http.StatusNotFound, "Session not found")
	case errors.Is(err, services.ErrDatabaseDisabled):
		c.JSONError(http.StatusServiceUnavailable, "Database not configured. Please set DATABASE_URL.")
	case errors.Is(err, services.ErrUnsupportedFileType):
		c.JSONError(http.StatusBadRequest, "Only PDF, DOCX, Excel, and CSV files are supported")
	default:
		logger.Error("Request failed",
			zap.String("path", c.Ctx.Request.RequestURI),
			zap.String("method", c.Ctx.Request.Method),
			zap.Error(err))
		c.JSONError(http.StatusInternalServerError, err.Error())
	}
}

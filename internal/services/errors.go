package services

import "errors"

var (
	// ErrSessionNotFound 引用的会话不存在，API层映射为404
	ErrSessionNotFound = errors.New("session not found")
	// ErrDatabaseDisabled DATABASE_URL未配置，持久化降级，API层映射为503
	ErrDatabaseDisabled = errors.New("database not configured")
	// ErrUnsupportedFileType 上传扩展名不在白名单内，API层映射为400
	ErrUnsupportedFileType = errors.New("unsupported file type")
)

// Package service 实现了知识库与文件管理的业务逻辑。
package service

import "errors"

// 服务层错误类别，handler 据此翻译为 HTTP 状态码。
var (
	ErrKnowledgeBaseExists   = errors.New("knowledge base already exists")
	ErrKnowledgeBaseNotFound = errors.New("knowledge base not found")
	ErrFileNotFound          = errors.New("file not found")
	ErrEngineUnavailable     = errors.New("rag service unavailable")
	ErrParseInFlight         = errors.New("parse already in progress")
)

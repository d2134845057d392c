package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rag-web-go/internal/repository"
	"rag-web-go/pkg/rag"
)

// HealthHandler 负责聚合健康检查：自身、数据库统计与 RAG 服务可达性。
type HealthHandler struct {
	kbRepo    repository.KnowledgeBaseRepository
	fileRepo  repository.FileRepository
	ragClient *rag.Client
}

// NewHealthHandler 创建一个新的 HealthHandler 实例。
func NewHealthHandler(kbRepo repository.KnowledgeBaseRepository, fileRepo repository.FileRepository, ragClient *rag.Client) *HealthHandler {
	return &HealthHandler{kbRepo: kbRepo, fileRepo: fileRepo, ragClient: ragClient}
}

// Health 处理聚合健康检查请求。
func (h *HealthHandler) Health(c *gin.Context) {
	kbs, err := h.kbRepo.List()
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"status":  "error",
			"service": "rag-web-interface",
			"error":   err.Error(),
		})
		return
	}
	files, err := h.fileRepo.List("")
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"status":  "error",
			"service": "rag-web-interface",
			"error":   err.Error(),
		})
		return
	}

	ragInfo, ragErr := h.ragClient.Health(c.Request.Context())
	ragStatus := gin.H{
		"healthy": ragErr == nil,
		"url":     h.ragClient.BaseURL(),
	}
	if ragErr != nil {
		ragStatus["info"] = ragErr.Error()
	} else {
		ragStatus["info"] = ragInfo
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"service":         "rag-web-interface",
		"database":        "postgresql",
		"rag_service":     ragStatus,
		"knowledge_bases": len(kbs),
		"total_files":     len(files),
	})
}

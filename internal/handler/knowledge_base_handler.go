// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"rag-web-go/internal/service"
	"rag-web-go/pkg/log"
)

// KnowledgeBaseHandler 负责处理知识库管理相关的 API 请求。
type KnowledgeBaseHandler struct {
	kbService service.KnowledgeBaseService
}

// NewKnowledgeBaseHandler 创建一个新的 KnowledgeBaseHandler 实例。
func NewKnowledgeBaseHandler(kbService service.KnowledgeBaseService) *KnowledgeBaseHandler {
	return &KnowledgeBaseHandler{kbService: kbService}
}

// CreateKnowledgeBaseRequest 定义了创建知识库 API 的请求体结构。
type CreateKnowledgeBaseRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// Create 处理创建知识库的请求。
func (h *KnowledgeBaseHandler) Create(c *gin.Context) {
	var req CreateKnowledgeBaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}

	if _, err := h.kbService.Create(req.Name, req.Description); err != nil {
		if errors.Is(err, service.ErrKnowledgeBaseExists) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Knowledge base already exists"})
			return
		}
		log.Error("Create: failed to create knowledge base", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "创建知识库失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": fmt.Sprintf("Knowledge base '%s' created", req.Name),
	})
}

// List 处理获取知识库列表的请求。
func (h *KnowledgeBaseHandler) List(c *gin.Context) {
	infos, err := h.kbService.List()
	if err != nil {
		log.Error("List: failed to list knowledge bases", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取知识库列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"knowledge_bases": infos})
}

// Delete 处理删除知识库的请求（级联删除文件记录与物理文件）。
func (h *KnowledgeBaseHandler) Delete(c *gin.Context) {
	name := c.Param("name")
	if err := h.kbService.Delete(name); err != nil {
		if errors.Is(err, service.ErrKnowledgeBaseNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Knowledge base not found: %s", name)})
			return
		}
		log.Error("Delete: failed to delete knowledge base", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除知识库失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": fmt.Sprintf("Knowledge base '%s' deleted", name),
	})
}

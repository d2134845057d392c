package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"rag-web-go/internal/service"
	"rag-web-go/pkg/log"
)

// FileHandler 负责处理文件上传、解析触发与状态管理相关的 API 请求。
type FileHandler struct {
	fileService service.FileService
}

// NewFileHandler 创建一个新的 FileHandler 实例。
func NewFileHandler(fileService service.FileService) *FileHandler {
	return &FileHandler{fileService: fileService}
}

// decodeFileKey 兼容 URL 编码过的文件键。
func decodeFileKey(raw string) string {
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// Upload 处理文件上传请求（multipart：files[] + knowledge_base）。
func (h *FileHandler) Upload(c *gin.Context) {
	knowledgeBase := c.PostForm("knowledge_base")
	if knowledgeBase == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 knowledge_base 参数"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的 multipart 请求"})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "未收到任何文件"})
		return
	}
	log.Infof("[FileHandler] 收到上传请求: 知识库=%s, 文件数=%d", knowledgeBase, len(files))

	uploaded, err := h.fileService.Upload(c.Request.Context(), knowledgeBase, files)
	if err != nil {
		if errors.Is(err, service.ErrKnowledgeBaseNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("知识库 '%s' 不存在，请先创建知识库", knowledgeBase)})
			return
		}
		log.Error("Upload: failed to upload files", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "文件上传失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "success",
		"uploaded_files": len(uploaded),
		"files":          uploaded,
	})
}

// List 处理获取文件列表的请求，支持 knowledge_base 过滤。
func (h *FileHandler) List(c *gin.Context) {
	files, err := h.fileService.List(c.Query("knowledge_base"))
	if err != nil {
		log.Error("List: failed to list files", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取文件列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

// Parse 处理触发解析的请求（表单：filename + knowledge_base）。
// 成功时仅表示任务已调度，立即返回。
func (h *FileHandler) Parse(c *gin.Context) {
	filename := c.PostForm("filename")
	knowledgeBase := c.PostForm("knowledge_base")
	if filename == "" || knowledgeBase == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少必要的参数"})
		return
	}
	log.Infof("[FileHandler] 收到解析请求: filename=%s, kb=%s", filename, knowledgeBase)

	err := h.fileService.TriggerParse(c.Request.Context(), filename, knowledgeBase)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": fmt.Sprintf("Started parsing %s", filename),
		})
	case errors.Is(err, service.ErrFileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("File not found: %s", filename)})
	case errors.Is(err, service.ErrEngineUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "RAG服务不可用，请确保 RAG 服务正在运行。"})
	case errors.Is(err, service.ErrParseInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("文件 '%s' 已有解析任务在进行中", filename)})
	default:
		log.Error("Parse: failed to trigger parsing", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "启动解析失败: " + err.Error()})
	}
}

// Status 处理获取文件解析状态的请求，整合数据库快照与引擎实时进度。
func (h *FileHandler) Status(c *gin.Context) {
	fileKey := decodeFileKey(c.Param("fileKey"))

	status, err := h.fileService.Status(c.Request.Context(), fileKey)
	if err != nil {
		if errors.Is(err, service.ErrFileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("File not found: %s", fileKey)})
			return
		}
		log.Error("Status: failed to get file status", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询文件状态失败"})
		return
	}
	c.JSON(http.StatusOK, status)
}

// Reset 处理重置文件状态的请求（运维逃生通道）。
func (h *FileHandler) Reset(c *gin.Context) {
	fileKey := decodeFileKey(c.Param("fileKey"))

	record, err := h.fileService.Reset(fileKey)
	if err != nil {
		if errors.Is(err, service.ErrFileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("File not found: %s", fileKey)})
			return
		}
		log.Error("Reset: failed to reset file status", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "重置文件状态失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": fmt.Sprintf("File %s status reset", record.OriginalFilename),
	})
}

// Delete 处理删除文件的请求（数据库记录 + 物理文件）。
func (h *FileHandler) Delete(c *gin.Context) {
	fileKey := decodeFileKey(c.Param("fileKey"))
	log.Infof("[FileHandler] 收到删除请求: %s", fileKey)

	record, err := h.fileService.Delete(fileKey)
	if err != nil {
		if errors.Is(err, service.ErrFileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("File not found: %s", fileKey)})
			return
		}
		log.Error("Delete: failed to delete file", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除文件失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "success",
		"message":      fmt.Sprintf("文件 %s 删除成功", record.OriginalFilename),
		"deleted_file": record.OriginalFilename,
	})
}

package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"rag-web-go/internal/service"
	"rag-web-go/pkg/log"
	"rag-web-go/pkg/rag"
)

// QueryHandler 负责处理知识库查询与 RAG 服务诊断相关的 API 请求。
type QueryHandler struct {
	queryService service.QueryService
	ragClient    *rag.Client
	// 插入后等待引擎完成索引的时间，测试可压缩
	insertVerifyDelay time.Duration
}

// NewQueryHandler 创建一个新的 QueryHandler 实例。
func NewQueryHandler(queryService service.QueryService, ragClient *rag.Client) *QueryHandler {
	return &QueryHandler{
		queryService:      queryService,
		ragClient:         ragClient,
		insertVerifyDelay: 3 * time.Second,
	}
}

// QueryRequest 定义了知识库查询 API 的请求体结构。
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
	Mode  string `json:"mode"`
}

// Query 处理知识库查询请求，转发到 RAG 服务。
func (h *QueryHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求负载"})
		return
	}
	if req.Mode == "" {
		req.Mode = "hybrid"
	}
	log.Infof("[QueryHandler] 收到查询请求, mode=%s", req.Mode)

	result, err := h.queryService.Query(c.Request.Context(), req.Query, req.Mode)
	if err != nil {
		if errors.Is(err, service.ErrEngineUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "RAG服务不可用: " + err.Error()})
			return
		}
		log.Error("Query: failed to query knowledge base", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "查询失败: " + err.Error()})
		return
	}
	if result == "" {
		result = "未找到相关信息"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"result":    result,
		"mode":      req.Mode,
		"timestamp": time.Now(),
	})
}

// RAGServiceStatus 逐个端点探测 RAG 服务，返回详细的诊断结果。
func (h *QueryHandler) RAGServiceStatus(c *gin.Context) {
	ctx := c.Request.Context()
	results := gin.H{}

	healthInfo, healthErr := h.ragClient.Health(ctx)
	results["health_check"] = gin.H{
		"url":      h.ragClient.BaseURL() + "/health",
		"success":  healthErr == nil,
		"response": healthInfo,
		"error":    errString(healthErr),
	}

	queryResp, queryErr := h.ragClient.Query(ctx, "测试", "naive")
	results["query_test"] = gin.H{
		"url":      h.ragClient.BaseURL() + "/api/query",
		"success":  queryErr == nil,
		"response": truncateForDiag(queryResp),
		"error":    errString(queryErr),
	}

	passed := 0
	for _, r := range []error{healthErr, queryErr} {
		if r == nil {
			passed++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"rag_service_url": h.ragClient.BaseURL(),
		"test_results":    results,
		"summary": gin.H{
			"total_tests":      2,
			"successful_tests": passed,
			"all_tests_passed": passed == 2,
		},
	})
}

// ManualTestInsert 手动向 RAG 服务插入一段带标识的测试文本，再回查验证插入链路。
// 诊断接口，所有结果以 200 返回并在响应体里区分成败。
func (h *QueryHandler) ManualTestInsert(c *gin.Context) {
	ctx := c.Request.Context()
	log.Info("[QueryHandler] 开始手动测试RAG插入功能")

	if _, err := h.ragClient.Health(ctx); err != nil {
		c.JSON(http.StatusOK, gin.H{
			"status": "error",
			"error":  "RAG服务不可用: " + err.Error(),
		})
		return
	}

	now := time.Now()
	testContent := fmt.Sprintf(`手动测试文档 - %s

这是一个用于测试RAG系统插入功能的文档。

关键信息：
1. 测试时间: %s
2. 测试关键词: 蓝天白云晴朗天气
3. 特殊标识: MANUAL_TEST_DOC_12345

如果你能通过查询找到这些内容，说明RAG插入功能正常工作。`, now.Format(time.RFC3339), now.Format("2006-01-02 15:04:05"))

	if err := h.ragClient.Insert(ctx, testContent); err != nil {
		log.Error("ManualTestInsert: insert failed", err)
		c.JSON(http.StatusOK, gin.H{
			"status":        "error",
			"insert_result": gin.H{"success": false, "error": err.Error()},
		})
		return
	}

	// 给引擎留出完成索引的时间
	time.Sleep(h.insertVerifyDelay)

	queryResp, queryErr := h.ragClient.Query(ctx, "蓝天白云晴朗天气", "naive")
	c.JSON(http.StatusOK, gin.H{
		"status":              "success",
		"test_content_length": len(testContent),
		"insert_result":       gin.H{"success": true},
		"query_result": gin.H{
			"query":                  "蓝天白云晴朗天气",
			"success":                queryErr == nil,
			"response":               truncateForDiag(queryResp),
			"error":                  errString(queryErr),
			"found_expected_content": strings.Contains(queryResp, "蓝天白云") || strings.Contains(queryResp, "MANUAL_TEST"),
		},
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func truncateForDiag(s string) string {
	if len(s) > 300 {
		return s[:300]
	}
	return s
}

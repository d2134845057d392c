package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"rag-web-go/internal/config"
	"rag-web-go/internal/model"
	"rag-web-go/internal/pipeline"
	"rag-web-go/internal/progress"
	"rag-web-go/internal/repository"
	"rag-web-go/internal/service"
	"rag-web-go/pkg/rag"
)

// engineStub 模拟 RAG 服务的 HTTP 接口，行为可按用例调整。
type engineStub struct {
	mu           sync.Mutex
	healthy      bool
	parseStatus  int
	parseBlock   chan struct{}     // 非 nil 时解析请求挂起直到关闭
	queryBody    string            // /api/query 的原始响应体
	insertStatus int               // /api/insert 的响应状态码
	progress     map[string]string // 文件键 -> /api/progress 的原始响应体
}

func newEngineStub() *engineStub {
	return &engineStub{
		healthy:      true,
		parseStatus:  http.StatusOK,
		insertStatus: http.StatusOK,
		progress:     map[string]string{},
	}
}

func (s *engineStub) set(fn func(*engineStub)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *engineStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	healthy, parseStatus, parseBlock := s.healthy, s.parseStatus, s.parseBlock
	queryBody, insertStatus := s.queryBody, s.insertStatus
	progressBody := s.progress[strings.TrimPrefix(r.URL.Path, "/api/progress/")]
	s.mu.Unlock()

	switch {
	case r.URL.Path == "/health":
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"status":"healthy"}`)
	case r.URL.Path == "/api/parse-document":
		if parseBlock != nil {
			<-parseBlock
		}
		w.WriteHeader(parseStatus)
	case strings.HasPrefix(r.URL.Path, "/api/progress/"):
		if progressBody == "" {
			progressBody = `{"progress":0,"message":""}`
		}
		fmt.Fprint(w, progressBody)
	case r.URL.Path == "/api/query":
		fmt.Fprint(w, queryBody)
	case r.URL.Path == "/api/insert":
		w.WriteHeader(insertStatus)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type testApp struct {
	router     *gin.Engine
	stub       *engineStub
	fileRepo   repository.FileRepository
	kbRepo     repository.KnowledgeBaseRepository
	registry   *progress.Registry
	uploadsDir string
	kbDir      string
}

// newTestApp 组装一套与生产布线一致的完整 API 栈：
// SQLite 元数据库、httptest 模拟的 RAG 服务、毫秒级轮询间隔。
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.KnowledgeBase{}, &model.FileMetadata{}))

	kbRepo := repository.NewKnowledgeBaseRepository(db)
	fileRepo := repository.NewFileRepository(db)

	stub := newEngineStub()
	engineSrv := httptest.NewServer(stub)
	t.Cleanup(engineSrv.Close)

	registry := progress.NewRegistry()
	ragClient := rag.NewClient(config.RAGConfig{
		BaseURL:                engineSrv.URL,
		HealthTimeoutSeconds:   1,
		QueryTimeoutSeconds:    2,
		ProgressTimeoutSeconds: 1,
	})
	ingestor := pipeline.NewIngestor(fileRepo, kbRepo, ragClient, registry, config.IngestConfig{})
	ingestor.PollInterval = 5 * time.Millisecond
	ingestor.VerifyDelay = 0

	uploadsDir := t.TempDir()
	kbDir := t.TempDir()

	kbService := service.NewKnowledgeBaseService(kbRepo, fileRepo, kbDir)
	fileService := service.NewFileService(fileRepo, kbRepo, ragClient, ingestor, registry, uploadsDir)
	queryService := service.NewQueryService(ragClient)

	kbHandler := NewKnowledgeBaseHandler(kbService)
	fileHandler := NewFileHandler(fileService)
	queryHandler := NewQueryHandler(queryService, ragClient)
	queryHandler.insertVerifyDelay = 0
	healthHandler := NewHealthHandler(kbRepo, fileRepo, ragClient)

	r := gin.New()
	r.GET("/health", healthHandler.Health)
	api := r.Group("/api")
	{
		api.POST("/knowledge-bases", kbHandler.Create)
		api.GET("/knowledge-bases", kbHandler.List)
		api.DELETE("/knowledge-bases/:name", kbHandler.Delete)
		api.POST("/upload", fileHandler.Upload)
		api.GET("/files", fileHandler.List)
		api.POST("/parse", fileHandler.Parse)
		api.GET("/files/:fileKey/status", fileHandler.Status)
		api.POST("/files/:fileKey/reset", fileHandler.Reset)
		api.DELETE("/files/:fileKey", fileHandler.Delete)
		api.POST("/query", queryHandler.Query)
		api.GET("/rag-service-status", queryHandler.RAGServiceStatus)
		api.POST("/manual-test-insert", queryHandler.ManualTestInsert)
	}

	return &testApp{
		router:     r,
		stub:       stub,
		fileRepo:   fileRepo,
		kbRepo:     kbRepo,
		registry:   registry,
		uploadsDir: uploadsDir,
		kbDir:      kbDir,
	}
}

func (app *testApp) doJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	return w
}

func (app *testApp) doForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	return w
}

func (app *testApp) doUpload(t *testing.T, knowledgeBase, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("knowledge_base", knowledgeBase))
	part, err := mw.CreateFormFile("files", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// createKB 创建知识库并断言成功。
func (app *testApp) createKB(t *testing.T, name string) {
	t.Helper()
	w := app.doJSON(t, http.MethodPost, "/api/knowledge-bases", gin.H{"name": name})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

// uploadFile 上传单个文件并返回其存储标识。
func (app *testApp) uploadFile(t *testing.T, knowledgeBase, filename, content string) string {
	t.Helper()
	w := app.doUpload(t, knowledgeBase, filename, content)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	files := body["files"].([]any)
	require.Len(t, files, 1)
	return files[0].(map[string]any)["safe_filename"].(string)
}

func (app *testApp) fileStatus(t *testing.T, fileKey string) (int, map[string]any) {
	t.Helper()
	w := app.doJSON(t, http.MethodGet, "/api/files/"+url.PathEscape(fileKey)+"/status", nil)
	return w.Code, decodeBody(t, w)
}

func TestKnowledgeBaseLifecycle(t *testing.T) {
	app := newTestApp(t)

	t.Run("创建", func(t *testing.T) {
		app.createKB(t, "docs")
		assert.DirExists(t, filepath.Join(app.kbDir, "docs"))
	})

	t.Run("重名拒绝", func(t *testing.T) {
		w := app.doJSON(t, http.MethodPost, "/api/knowledge-bases", gin.H{"name": "docs"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Knowledge base already exists", decodeBody(t, w)["error"])
	})

	t.Run("缺少name返回400", func(t *testing.T) {
		w := app.doJSON(t, http.MethodPost, "/api/knowledge-bases", gin.H{"description": "无名"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("列表含文件数", func(t *testing.T) {
		w := app.doJSON(t, http.MethodGet, "/api/knowledge-bases", nil)
		require.Equal(t, http.StatusOK, w.Code)

		kbs := decodeBody(t, w)["knowledge_bases"].([]any)
		require.Len(t, kbs, 1)
		kb := kbs[0].(map[string]any)
		assert.Equal(t, "docs", kb["name"])
		assert.Equal(t, float64(0), kb["file_count"])
	})

	t.Run("删除", func(t *testing.T) {
		w := app.doJSON(t, http.MethodDelete, "/api/knowledge-bases/docs", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = app.doJSON(t, http.MethodDelete, "/api/knowledge-bases/docs", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestUploadFlow(t *testing.T) {
	app := newTestApp(t)
	app.createKB(t, "docs")

	safe := app.uploadFile(t, "docs", "项目说明文档.txt", "这是项目说明文档的内容")

	t.Run("存储标识与物理文件", func(t *testing.T) {
		assert.True(t, strings.HasPrefix(safe, "docs_"))
		assert.True(t, strings.HasSuffix(safe, ".txt"))
		assert.FileExists(t, filepath.Join(app.uploadsDir, safe))
	})

	t.Run("初始状态为uploaded", func(t *testing.T) {
		code, body := app.fileStatus(t, safe)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "uploaded", body["status"])
		assert.Equal(t, float64(0), body["progress"])
		assert.Nil(t, body["error"])
	})

	t.Run("文件列表", func(t *testing.T) {
		w := app.doJSON(t, http.MethodGet, "/api/files?knowledge_base=docs", nil)
		require.Equal(t, http.StatusOK, w.Code)

		files := decodeBody(t, w)["files"].([]any)
		require.Len(t, files, 1)
		info := files[0].(map[string]any)
		assert.Equal(t, "项目说明文档.txt", info["filename"])
		assert.Equal(t, safe, info["safe_filename"])
	})

	t.Run("同名文件重复上传互不覆盖", func(t *testing.T) {
		other := app.uploadFile(t, "docs", "项目说明文档.txt", "更新后的内容")
		assert.NotEqual(t, safe, other)
	})

	t.Run("未知知识库拒绝", func(t *testing.T) {
		w := app.doUpload(t, "ghost", "a.txt", "内容")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decodeBody(t, w)["error"], "知识库 'ghost' 不存在")
	})

	t.Run("缺少knowledge_base参数", func(t *testing.T) {
		w := app.doUpload(t, "", "a.txt", "内容")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestParseSuccess(t *testing.T) {
	app := newTestApp(t)
	app.createKB(t, "docs")
	// 验证查询返回包含探测词的结果
	app.stub.set(func(s *engineStub) {
		s.queryBody = `{"status":"success","data":"项目说明文档中描述了部署流程","mode":"naive"}`
	})

	safe := app.uploadFile(t, "docs", "项目说明文档.txt", "这是项目说明文档的内容")

	w := app.doForm(t, "/api/parse", url.Values{
		"filename":       {"项目说明文档.txt"},
		"knowledge_base": {"docs"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, decodeBody(t, w)["message"], "Started parsing")

	// 调度是异步的，等待任务收敛到终态
	require.Eventually(t, func() bool {
		code, body := app.fileStatus(t, safe)
		return code == http.StatusOK && body["status"] == "completed"
	}, 2*time.Second, 10*time.Millisecond)

	code, body := app.fileStatus(t, safe)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(100), body["progress"])
	assert.Nil(t, body["error"])
	assert.Equal(t, "文档处理成功完成！", body["message"])
}

func TestParseFailureAndReset(t *testing.T) {
	app := newTestApp(t)
	app.createKB(t, "docs")
	app.stub.set(func(s *engineStub) { s.parseStatus = http.StatusInternalServerError })

	safe := app.uploadFile(t, "docs", "报告.pdf", "内容")

	w := app.doForm(t, "/api/parse", url.Values{
		"filename":       {"报告.pdf"},
		"knowledge_base": {"docs"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		code, body := app.fileStatus(t, safe)
		return code == http.StatusOK && body["status"] == "error"
	}, 2*time.Second, 10*time.Millisecond)

	code, body := app.fileStatus(t, safe)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), body["progress"])
	require.NotNil(t, body["error"])
	assert.Contains(t, body["error"], "RAG服务处理失败")

	t.Run("重置回uploaded", func(t *testing.T) {
		w := app.doJSON(t, http.MethodPost, "/api/files/"+safe+"/reset", nil)
		require.Equal(t, http.StatusOK, w.Code)

		// 重复重置是幂等的
		w = app.doJSON(t, http.MethodPost, "/api/files/"+safe+"/reset", nil)
		require.Equal(t, http.StatusOK, w.Code)

		code, body := app.fileStatus(t, safe)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "uploaded", body["status"])
		assert.Equal(t, float64(0), body["progress"])
		assert.Nil(t, body["error"])
		// 上一次任务的进度消息不得在重置后的读取中残留
		assert.Empty(t, body["message"])
	})
}

func TestParseRejections(t *testing.T) {
	app := newTestApp(t)
	app.createKB(t, "docs")
	app.uploadFile(t, "docs", "报告.pdf", "内容")

	t.Run("文件不存在返回404", func(t *testing.T) {
		w := app.doForm(t, "/api/parse", url.Values{
			"filename":       {"missing.pdf"},
			"knowledge_base": {"docs"},
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("缺少参数返回400", func(t *testing.T) {
		w := app.doForm(t, "/api/parse", url.Values{"filename": {"报告.pdf"}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("引擎不可用返回503", func(t *testing.T) {
		app.stub.set(func(s *engineStub) { s.healthy = false })
		defer app.stub.set(func(s *engineStub) { s.healthy = true })

		w := app.doForm(t, "/api/parse", url.Values{
			"filename":       {"报告.pdf"},
			"knowledge_base": {"docs"},
		})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestParseConflict(t *testing.T) {
	app := newTestApp(t)
	app.createKB(t, "docs")

	block := make(chan struct{})
	app.stub.set(func(s *engineStub) {
		s.parseBlock = block
		s.queryBody = `{"status":"success","data":"报告中描述了部署流程与整体架构设计","mode":"naive"}`
	})

	safe := app.uploadFile(t, "docs", "报告.pdf", "内容")

	form := url.Values{
		"filename":       {"报告.pdf"},
		"knowledge_base": {"docs"},
	}
	w := app.doForm(t, "/api/parse", form)
	require.Equal(t, http.StatusOK, w.Code)

	// 首个任务仍挂在引擎调用上，重复触发被拒绝
	w = app.doForm(t, "/api/parse", form)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "已有解析任务在进行中")

	close(block)
	require.Eventually(t, func() bool {
		code, body := app.fileStatus(t, safe)
		return code == http.StatusOK && body["status"] == "completed"
	}, 2*time.Second, 10*time.Millisecond)

	// 任务收敛后可以再次触发
	w = app.doForm(t, "/api/parse", form)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFileStatusLiveEngineOverride(t *testing.T) {
	app := newTestApp(t)
	app.createKB(t, "docs")
	safe := app.uploadFile(t, "docs", "报告.pdf", "内容")

	// 行处于 processing 且持久进度落后于引擎侧
	ten := 10
	require.NoError(t, app.fileRepo.UpdateStatus(safe, repository.StatusPatch{
		Status:   model.StatusProcessing,
		Progress: &ten,
	}))
	app.stub.set(func(s *engineStub) {
		s.progress[safe] = `{"progress":77,"message":"正在构建向量索引"}`
	})

	code, body := app.fileStatus(t, safe)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "processing", body["status"])
	assert.Equal(t, float64(77), body["progress"])
	assert.Equal(t, "正在构建向量索引", body["message"])

	// 实时合并是只读路径，持久行保持原值
	record, err := app.fileRepo.GetBySafeFilename(safe)
	require.NoError(t, err)
	assert.Equal(t, 10, record.Progress)

	t.Run("非processing状态不合并", func(t *testing.T) {
		zero := 0
		require.NoError(t, app.fileRepo.UpdateStatus(safe, repository.StatusPatch{
			Status:   model.StatusUploaded,
			Progress: &zero,
		}))

		code, body := app.fileStatus(t, safe)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "uploaded", body["status"])
		assert.Equal(t, float64(0), body["progress"])
	})
}

func TestFileStatusNotFound(t *testing.T) {
	app := newTestApp(t)

	code, body := app.fileStatus(t, "ghost_12345678.pdf")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body["error"], "File not found")
}

func TestDeleteFile(t *testing.T) {
	app := newTestApp(t)
	app.createKB(t, "docs")
	safe := app.uploadFile(t, "docs", "报告.pdf", "内容")

	w := app.doJSON(t, http.MethodDelete, "/api/files/"+safe, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "报告.pdf", decodeBody(t, w)["deleted_file"])

	assert.NoFileExists(t, filepath.Join(app.uploadsDir, safe))

	code, _ := app.fileStatus(t, safe)
	assert.Equal(t, http.StatusNotFound, code)

	w = app.doJSON(t, http.MethodDelete, "/api/files/"+safe, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteKnowledgeBaseRemovesFiles(t *testing.T) {
	app := newTestApp(t)
	app.createKB(t, "docs")
	safe := app.uploadFile(t, "docs", "报告.pdf", "内容")

	w := app.doJSON(t, http.MethodDelete, "/api/knowledge-bases/docs", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.NoFileExists(t, filepath.Join(app.uploadsDir, safe))
	assert.NoDirExists(t, filepath.Join(app.kbDir, "docs"))

	wList := app.doJSON(t, http.MethodGet, "/api/files", nil)
	require.Equal(t, http.StatusOK, wList.Code)
	assert.Empty(t, decodeBody(t, wList)["files"])
}

func TestQueryEndpoint(t *testing.T) {
	app := newTestApp(t)

	t.Run("正常查询", func(t *testing.T) {
		app.stub.set(func(s *engineStub) {
			s.queryBody = `{"status":"success","data":"部署流程分为三步","mode":"hybrid"}`
		})

		w := app.doJSON(t, http.MethodPost, "/api/query", gin.H{"query": "部署流程"})
		require.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, "部署流程分为三步", body["result"])
		assert.Equal(t, "hybrid", body["mode"]) // 未指定 mode 时默认 hybrid
	})

	t.Run("空结果占位文案", func(t *testing.T) {
		app.stub.set(func(s *engineStub) { s.queryBody = "" })

		w := app.doJSON(t, http.MethodPost, "/api/query", gin.H{"query": "部署流程", "mode": "naive"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "未找到相关信息", decodeBody(t, w)["result"])
	})

	t.Run("缺少query返回400", func(t *testing.T) {
		w := app.doJSON(t, http.MethodPost, "/api/query", gin.H{"mode": "naive"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("引擎不可用返回503", func(t *testing.T) {
		app.stub.set(func(s *engineStub) { s.healthy = false })
		defer app.stub.set(func(s *engineStub) { s.healthy = true })

		w := app.doJSON(t, http.MethodPost, "/api/query", gin.H{"query": "部署流程"})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t)
	app.createKB(t, "docs")
	app.uploadFile(t, "docs", "报告.pdf", "内容")

	w := app.doJSON(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "rag-web-interface", body["service"])
	assert.Equal(t, float64(1), body["knowledge_bases"])
	assert.Equal(t, float64(1), body["total_files"])

	ragStatus := body["rag_service"].(map[string]any)
	assert.Equal(t, true, ragStatus["healthy"])
}

func TestManualTestInsert(t *testing.T) {
	app := newTestApp(t)

	t.Run("插入并回查成功", func(t *testing.T) {
		app.stub.set(func(s *engineStub) {
			s.queryBody = `{"status":"success","data":"找到了特殊标识 MANUAL_TEST_DOC_12345 对应的内容","mode":"naive"}`
		})

		w := app.doJSON(t, http.MethodPost, "/api/manual-test-insert", nil)
		require.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, "success", body["status"])
		assert.Greater(t, body["test_content_length"], float64(0))

		insertResult := body["insert_result"].(map[string]any)
		assert.Equal(t, true, insertResult["success"])

		queryResult := body["query_result"].(map[string]any)
		assert.Equal(t, true, queryResult["success"])
		assert.Equal(t, true, queryResult["found_expected_content"])
	})

	t.Run("插入失败", func(t *testing.T) {
		app.stub.set(func(s *engineStub) { s.insertStatus = http.StatusInternalServerError })
		defer app.stub.set(func(s *engineStub) { s.insertStatus = http.StatusOK })

		w := app.doJSON(t, http.MethodPost, "/api/manual-test-insert", nil)
		require.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, "error", body["status"])
		insertResult := body["insert_result"].(map[string]any)
		assert.Equal(t, false, insertResult["success"])
	})

	t.Run("引擎不可用", func(t *testing.T) {
		app.stub.set(func(s *engineStub) { s.healthy = false })
		defer app.stub.set(func(s *engineStub) { s.healthy = true })

		w := app.doJSON(t, http.MethodPost, "/api/manual-test-insert", nil)
		require.Equal(t, http.StatusOK, w.Code)

		body := decodeBody(t, w)
		assert.Equal(t, "error", body["status"])
		assert.Contains(t, body["error"], "RAG服务不可用")
	})
}

func TestRAGServiceStatusDiagnostics(t *testing.T) {
	app := newTestApp(t)
	app.stub.set(func(s *engineStub) {
		s.queryBody = `{"status":"success","data":"诊断查询结果","mode":"naive"}`
	})

	w := app.doJSON(t, http.MethodGet, "/api/rag-service-status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	summary := body["summary"].(map[string]any)
	assert.Equal(t, true, summary["all_tests_passed"])
	assert.Equal(t, float64(2), summary["successful_tests"])
}

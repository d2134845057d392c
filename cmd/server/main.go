// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rag-web-go/internal/config"
	"rag-web-go/internal/handler"
	"rag-web-go/internal/middleware"
	"rag-web-go/internal/model"
	"rag-web-go/internal/pipeline"
	"rag-web-go/internal/progress"
	"rag-web-go/internal/repository"
	"rag-web-go/internal/service"
	"rag-web-go/pkg/database"
	"rag-web-go/pkg/log"
	"rag-web-go/pkg/rag"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库并迁移表结构
	database.InitPostgres(cfg.Database.Postgres.DSN())
	if err := database.DB.AutoMigrate(&model.KnowledgeBase{}, &model.FileMetadata{}); err != nil {
		log.Fatal("数据库表结构迁移失败", err)
	}

	// 4. 初始化 Repository
	kbRepo := repository.NewKnowledgeBaseRepository(database.DB)
	fileRepo := repository.NewFileRepository(database.DB)

	// 5. 初始化进度登记表、RAG 客户端与摄取流水线
	registry := progress.NewRegistry()
	ragClient := rag.NewClient(cfg.RAG)
	ingestor := pipeline.NewIngestor(fileRepo, kbRepo, ragClient, registry, cfg.Ingest)

	// 6. 初始化 Service (依赖注入)
	kbService := service.NewKnowledgeBaseService(kbRepo, fileRepo, cfg.Server.KnowledgeBasesDir)
	fileService := service.NewFileService(fileRepo, kbRepo, ragClient, ingestor, registry, cfg.Server.UploadsDir)
	queryService := service.NewQueryService(ragClient)

	// 7. 启动同步：收编既有文件系统布局，并探测 RAG 服务就绪状态
	service.SyncFilesystemToDatabase(kbRepo, fileRepo, cfg.Server.KnowledgeBasesDir, cfg.Server.UploadsDir)
	go func() {
		time.Sleep(2 * time.Second)
		if info, err := ragClient.Health(context.Background()); err != nil {
			log.Warnf("RAG 服务未就绪: %v（请确认 RAG 服务正在运行）", err)
		} else {
			log.Infof("RAG 服务连接正常: %s (解析超时上界 %s)", info, ragClient.ParseTimeout())
		}
	}()

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	kbHandler := handler.NewKnowledgeBaseHandler(kbService)
	fileHandler := handler.NewFileHandler(fileService)
	queryHandler := handler.NewQueryHandler(queryService, ragClient)
	healthHandler := handler.NewHealthHandler(kbRepo, fileRepo, ragClient)

	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

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

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}

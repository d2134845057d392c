// Package pipeline 定义了文档摄取的核心流程。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"rag-web-go/internal/config"
	"rag-web-go/internal/model"
	"rag-web-go/internal/progress"
	"rag-web-go/internal/repository"
	"rag-web-go/pkg/log"
	"rag-web-go/pkg/metrics"
	"rag-web-go/pkg/rag"
)

// Engine 抽象了摄取任务依赖的 RAG 服务操作，便于测试替换。
type Engine interface {
	ParseDocument(ctx context.Context, req rag.ParseDocumentRequest) error
	GetProgress(ctx context.Context, fileKey string) (rag.ProgressInfo, error)
	Query(ctx context.Context, query, mode string) (string, error)
}

// Ingestor 封装了文档摄取任务的所有依赖和逻辑。
// 每次触发解析对应一次 Run 调用；同一文件同一时刻至多一个在途任务。
type Ingestor struct {
	fileRepo repository.FileRepository
	kbRepo   repository.KnowledgeBaseRepository
	engine   Engine
	registry *progress.Registry

	// 测试可压缩的时间参数
	PollInterval time.Duration
	VerifyDelay  time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewIngestor 创建一个新的 Ingestor 实例。
func NewIngestor(
	fileRepo repository.FileRepository,
	kbRepo repository.KnowledgeBaseRepository,
	engine Engine,
	registry *progress.Registry,
	cfg config.IngestConfig,
) *Ingestor {
	ing := &Ingestor{
		fileRepo:     fileRepo,
		kbRepo:       kbRepo,
		engine:       engine,
		registry:     registry,
		PollInterval: time.Duration(cfg.PollIntervalSeconds) * time.Second,
		VerifyDelay:  time.Duration(cfg.VerifyDelaySeconds) * time.Second,
		inflight:     make(map[string]struct{}),
	}
	if ing.PollInterval <= 0 {
		ing.PollInterval = 2 * time.Second
	}
	if ing.VerifyDelay < 0 {
		ing.VerifyDelay = 3 * time.Second
	}
	return ing
}

// TryAcquire 为该文件申请摄取租约；已有任务在途时返回 false。
func (ing *Ingestor) TryAcquire(safeFilename string) bool {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	if _, ok := ing.inflight[safeFilename]; ok {
		return false
	}
	ing.inflight[safeFilename] = struct{}{}
	return true
}

// Release 释放该文件的摄取租约。
func (ing *Ingestor) Release(safeFilename string) {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	delete(ing.inflight, safeFilename)
}

// jobState 是单次任务内持久化进度的单调保护：
// 乱序的轮询命中不会把已写入的较大进度覆盖回去。
type jobState struct {
	mu   sync.Mutex
	last int
}

func (s *jobState) advance(p int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p <= s.last {
		return false
	}
	s.last = p
	return true
}

// Run 端到端执行一次摄取任务。调用方需先通过 TryAcquire 持有租约，
// 并以独立 goroutine 调度（fire-and-forget）。
func (ing *Ingestor) Run(safeFilename string) {
	defer ing.Release(safeFilename)
	metrics.IngestJobsInflight.Inc()
	defer metrics.IngestJobsInflight.Dec()

	log.Infof("[Ingestor] 开始解析文件: %s", safeFilename)

	// 1. 解析文件元数据；行已消失则放弃任务
	record, err := ing.fileRepo.GetBySafeFilename(safeFilename)
	if err != nil {
		log.Errorf("[Ingestor] 文件记录未找到，任务放弃: %s, err: %v", safeFilename, err)
		metrics.IngestJobsTotal.WithLabelValues("error").Inc()
		return
	}

	// 知识库在触发后被删除时失败关闭，而不是留在 processing
	if _, err := ing.kbRepo.GetByName(record.KnowledgeBase); err != nil {
		ing.fail(safeFilename, fmt.Sprintf("知识库 '%s' 不存在或已被删除", record.KnowledgeBase))
		return
	}

	state := &jobState{}
	report := func(p int, msg string) {
		ing.registry.Update(safeFilename, p, msg)
		if !state.advance(p) {
			return
		}
		prog := p
		if err := ing.fileRepo.UpdateStatus(safeFilename, repository.StatusPatch{
			Status:   model.StatusProcessing,
			Progress: &prog,
		}); err != nil {
			log.Warnf("[Ingestor] 镜像进度到数据库失败 [%s]: %v", safeFilename, err)
		}
		log.Infof("[Ingestor] 进度更新 [%s]: %d%% - %s", safeFilename, p, msg)
	}

	// 2. 引擎调用前的本地里程碑
	report(5, "正在初始化解析任务...")
	report(10, "验证文件存在...")

	if _, err := os.Stat(record.FilePath); err != nil {
		ing.fail(safeFilename, fmt.Sprintf("文件不存在: %s", record.FilePath))
		return
	}

	report(20, "文件验证完成，准备发送给RAG服务...")
	report(30, "正在连接RAG服务...")

	// 3. 与引擎调用并发的进度轮询
	pollCtx, cancelPoll := context.WithCancel(context.Background())
	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		ing.pollEngineProgress(pollCtx, record, report)
	}()

	parseErr := ing.engine.ParseDocument(context.Background(), rag.ParseDocumentRequest{
		FilePath:      record.FilePath,
		KnowledgeBase: record.KnowledgeBase,
		ParseMethod:   "auto",
		DisplayStats:  true,
	})

	cancelPoll()
	<-pollDone

	// 4. 终态由引擎调用是否成功唯一决定
	if parseErr != nil {
		msg := fmt.Sprintf("RAG服务处理失败: %v", parseErr)
		if errors.Is(parseErr, context.DeadlineExceeded) {
			msg = "RAG服务请求超时"
		}
		ing.fail(safeFilename, msg)
		return
	}

	report(90, "RAG服务处理完成，正在验证...")

	// 5. 验证只是冒烟检查，结果不改变 completed 终态
	verified := ing.verifyIngestion(record)

	final := 100
	patch := repository.StatusPatch{Status: model.StatusCompleted, Progress: &final}
	if verified {
		patch.ClearError = true
	} else {
		warn := "文档处理成功但验证查询未通过"
		patch.ErrorMessage = &warn
		log.Warnf("[Ingestor] 验证未通过（记录为软警告）: %s", safeFilename)
	}
	ing.registry.Update(safeFilename, 100, "文档处理成功完成！")
	if err := ing.fileRepo.UpdateStatus(safeFilename, patch); err != nil {
		log.Errorf("[Ingestor] 写入终态失败 [%s]: %v", safeFilename, err)
	}
	metrics.IngestJobsTotal.WithLabelValues("completed").Inc()
	log.Infof("[Ingestor] 文件处理成功完成: %s", safeFilename)
}

// fail 写入终态 error 行。登记表沿用引擎的 -1 失败约定，持久行按规范写 0。
func (ing *Ingestor) fail(safeFilename, msg string) {
	zero := 0
	ing.registry.Update(safeFilename, -1, msg)
	if err := ing.fileRepo.UpdateStatus(safeFilename, repository.StatusPatch{
		Status:       model.StatusError,
		Progress:     &zero,
		ErrorMessage: &msg,
	}); err != nil {
		log.Warnf("[Ingestor] 写入错误状态失败 [%s]: %v", safeFilename, err)
	}
	metrics.IngestJobsTotal.WithLabelValues("error").Inc()
	log.Errorf("[Ingestor] 解析失败 [%s]: %s", safeFilename, msg)
}

// pollEngineProgress 以固定间隔探测引擎进度登记表，把命中镜像进数据库。
// 本身是尽力而为：所有错误吞掉并记录，不影响任务终态。
func (ing *Ingestor) pollEngineProgress(ctx context.Context, record *model.FileMetadata, report func(int, string)) {
	ticker := time.NewTicker(ing.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		info, ok := LookupEngineProgress(ctx, ing.engine, record)
		if ok {
			report(info.Progress, info.Message)
		}
	}
}

// CandidateKeys 返回查询引擎进度登记表时依次尝试的文件键。
// 引擎回调使用的键不受本服务控制（当前实现按文件路径 basename 记录），
// 因此按候选顺序探测：路径 basename、存储标识、原始文件名、去扩展名的原始文件名。
func CandidateKeys(record *model.FileMetadata) []string {
	stem := strings.TrimSuffix(record.OriginalFilename, filepath.Ext(record.OriginalFilename))
	candidates := []string{
		filepath.Base(record.FilePath),
		record.SafeFilename,
		record.OriginalFilename,
		stem,
	}

	seen := make(map[string]struct{}, len(candidates))
	keys := candidates[:0]
	for _, k := range candidates {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// LookupEngineProgress 依次探测候选键，返回第一个非零进度命中。
// 状态读取接口与轮询循环共用这一套启发式。
func LookupEngineProgress(ctx context.Context, engine Engine, record *model.FileMetadata) (rag.ProgressInfo, bool) {
	for _, key := range CandidateKeys(record) {
		info, err := engine.GetProgress(ctx, key)
		if err != nil {
			continue
		}
		if info.Progress > 0 {
			return info, true
		}
	}
	return rag.ProgressInfo{}, false
}

// verifyIngestion 用启发式探测查询做插入后的冒烟验证。
// 任一查询返回实质性内容（包含探测词或长度超过阈值）即视为通过。
func (ing *Ingestor) verifyIngestion(record *model.FileMetadata) bool {
	// 给引擎留出完成索引的时间
	time.Sleep(ing.VerifyDelay)

	stem := strings.TrimSuffix(record.OriginalFilename, filepath.Ext(record.OriginalFilename))
	queries := probeQueries(stem)
	log.Infof("[Ingestor] 验证插入: 知识库=%s, 文件=%s, 探测词=%v", record.KnowledgeBase, record.OriginalFilename, queries)

	for _, q := range queries {
		for _, mode := range []string{"naive", "hybrid"} {
			result, err := ing.engine.Query(context.Background(), q, mode)
			if err != nil {
				log.Warnf("[Ingestor] 验证查询异常 (%s/%s): %v", q, mode, err)
				continue
			}
			trimmed := strings.TrimSpace(result)
			if strings.Contains(strings.ToLower(trimmed), strings.ToLower(q)) || utf8.RuneCountInString(trimmed) > 50 {
				log.Infof("[Ingestor] 验证成功: 查询 '%s' (%s) 返回了相关内容", q, mode)
				return true
			}
		}
	}
	log.Warnf("[Ingestor] 所有验证查询都未通过: %s", record.OriginalFilename)
	return false
}

// probeQueries 从文件名派生最多两个探测查询词。
func probeQueries(stem string) []string {
	var queries []string
	runes := []rune(stem)
	if len(runes) > 3 {
		if len(runes) > 20 {
			runes = runes[:20]
		}
		queries = append(queries, string(runes))
	}
	if words := strings.Fields(stem); len(words) >= 3 {
		queries = append(queries, strings.Join(words[:3], " "))
	}
	if len(queries) == 0 {
		queries = []string{"测试查询"}
	}
	if len(queries) > 2 {
		queries = queries[:2]
	}
	return queries
}

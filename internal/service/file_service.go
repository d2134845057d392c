package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"rag-web-go/internal/model"
	"rag-web-go/internal/pipeline"
	"rag-web-go/internal/progress"
	"rag-web-go/internal/repository"
	"rag-web-go/pkg/log"
	"rag-web-go/pkg/metrics"
	"rag-web-go/pkg/rag"
)

// FileInfo 是文件记录的客户端形态，字段名沿用对外 API 约定。
type FileInfo struct {
	Filename      string    `json:"filename"`
	SafeFilename  string    `json:"safe_filename"`
	Size          int64     `json:"size"`
	UploadTime    time.Time `json:"upload_time"`
	Status        string    `json:"status"`
	Progress      int       `json:"progress"`
	KnowledgeBase string    `json:"knowledge_base"`
	FilePath      string    `json:"file_path"`
	Error         *string   `json:"error"`
}

// FileStatusInfo 在 FileInfo 基础上附带实时合并的进度消息。
type FileStatusInfo struct {
	FileInfo
	Message string `json:"message"`
}

// FileService 接口定义了文件上传、解析触发与状态管理的业务操作。
type FileService interface {
	Upload(ctx context.Context, knowledgeBase string, files []*multipart.FileHeader) ([]FileInfo, error)
	List(knowledgeBase string) ([]FileInfo, error)
	TriggerParse(ctx context.Context, filename, knowledgeBase string) error
	Status(ctx context.Context, fileKey string) (*FileStatusInfo, error)
	Reset(fileKey string) (*model.FileMetadata, error)
	Delete(fileKey string) (*model.FileMetadata, error)
}

type fileService struct {
	fileRepo   repository.FileRepository
	kbRepo     repository.KnowledgeBaseRepository
	ragClient  *rag.Client
	ingestor   *pipeline.Ingestor
	registry   *progress.Registry
	uploadsDir string
}

// NewFileService 创建一个新的 FileService 实例。
func NewFileService(
	fileRepo repository.FileRepository,
	kbRepo repository.KnowledgeBaseRepository,
	ragClient *rag.Client,
	ingestor *pipeline.Ingestor,
	registry *progress.Registry,
	uploadsDir string,
) FileService {
	return &fileService{
		fileRepo:   fileRepo,
		kbRepo:     kbRepo,
		ragClient:  ragClient,
		ingestor:   ingestor,
		registry:   registry,
		uploadsDir: uploadsDir,
	}
}

// safeFilename 生成防碰撞的存储标识：{知识库}_{8位随机hex}{扩展名}。
func safeFilename(knowledgeBase, originalFilename string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s%s", knowledgeBase, hex, filepath.Ext(originalFilename))
}

func toFileInfo(record *model.FileMetadata) FileInfo {
	return FileInfo{
		Filename:      record.OriginalFilename,
		SafeFilename:  record.SafeFilename,
		Size:          record.Size,
		UploadTime:    record.UploadTime,
		Status:        record.Status,
		Progress:      record.Progress,
		KnowledgeBase: record.KnowledgeBase,
		FilePath:      record.FilePath,
		Error:         record.ErrorMessage,
	}
}

// Upload 将一批文件保存到上传目录并逐个落库，初始状态 uploaded/0。
func (s *fileService) Upload(ctx context.Context, knowledgeBase string, files []*multipart.FileHeader) ([]FileInfo, error) {
	if _, err := s.kbRepo.GetByName(knowledgeBase); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrKnowledgeBaseNotFound
		}
		return nil, err
	}

	uploaded := make([]FileInfo, 0, len(files))
	for _, header := range files {
		safe := safeFilename(knowledgeBase, header.Filename)
		dstPath := filepath.Join(s.uploadsDir, safe)

		size, err := s.saveFile(header, dstPath)
		if err != nil {
			return nil, fmt.Errorf("保存文件 '%s' 失败: %w", header.Filename, err)
		}

		record := &model.FileMetadata{
			SafeFilename:     safe,
			OriginalFilename: header.Filename,
			KnowledgeBase:    knowledgeBase,
			FilePath:         dstPath,
			Size:             size,
			UploadTime:       time.Now(),
			Status:           model.StatusUploaded,
			Progress:         0,
		}
		if err := s.fileRepo.Create(record); err != nil {
			// 落库失败时回收已写入的物理文件
			_ = os.Remove(dstPath)
			return nil, fmt.Errorf("创建文件记录 '%s' 失败: %w", header.Filename, err)
		}

		metrics.UploadsTotal.Inc()
		uploaded = append(uploaded, toFileInfo(record))
		log.Infof("[FileService] 文件上传成功: %s -> %s (%d 字节)", header.Filename, safe, size)
	}
	return uploaded, nil
}

func (s *fileService) saveFile(header *multipart.FileHeader, dstPath string) (int64, error) {
	src, err := header.Open()
	if err != nil {
		return 0, err
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return 0, err
	}
	defer dst.Close()

	return io.Copy(dst, src)
}

// List 返回指定知识库（为空时全部）的文件列表。
func (s *fileService) List(knowledgeBase string) ([]FileInfo, error) {
	records, err := s.fileRepo.List(knowledgeBase)
	if err != nil {
		return nil, err
	}
	infos := make([]FileInfo, 0, len(records))
	for i := range records {
		infos = append(infos, toFileInfo(&records[i]))
	}
	return infos, nil
}

// TriggerParse 将文件标记为 processing 并以独立 goroutine 调度摄取任务。
// 调用立即返回；同一文件已有在途任务时拒绝（ErrParseInFlight）。
func (s *fileService) TriggerParse(ctx context.Context, filename, knowledgeBase string) error {
	record, err := s.fileRepo.GetByOriginalFilename(filename, knowledgeBase)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrFileNotFound
		}
		return err
	}

	// 调度前探测引擎可用性
	if _, err := s.ragClient.Health(ctx); err != nil {
		log.Warnf("[FileService] RAG 服务健康检查未通过: %v", err)
		return fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}

	if !s.ingestor.TryAcquire(record.SafeFilename) {
		metrics.IngestJobsTotal.WithLabelValues("rejected").Inc()
		return ErrParseInFlight
	}

	zero := 0
	if err := s.fileRepo.UpdateStatus(record.SafeFilename, repository.StatusPatch{
		Status:     model.StatusProcessing,
		Progress:   &zero,
		ClearError: true,
	}); err != nil {
		s.ingestor.Release(record.SafeFilename)
		return err
	}
	log.Infof("[FileService] 初始化解析状态: %s -> processing, progress=0", record.SafeFilename)

	go s.ingestor.Run(record.SafeFilename)
	return nil
}

// Status 返回持久化的文件行；处理中时尽力合并引擎侧的实时进度。
// 实时合并是只读路径，不回写数据库。
func (s *fileService) Status(ctx context.Context, fileKey string) (*FileStatusInfo, error) {
	record, err := s.fileRepo.GetBySafeFilename(fileKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}

	status := &FileStatusInfo{FileInfo: toFileInfo(record)}

	// 本地登记表里有这次任务的里程碑消息
	if entry, ok := s.registry.Get(record.SafeFilename); ok {
		status.Message = entry.Message
	}

	if record.Status == model.StatusProcessing {
		if info, ok := pipeline.LookupEngineProgress(ctx, s.ragClient, record); ok {
			log.Infof("[FileService] 命中引擎实时进度 [%s]: %d%% - %s", record.SafeFilename, info.Progress, info.Message)
			status.Progress = info.Progress
			status.Message = info.Message
		}
	}
	return status, nil
}

// Reset 无条件把文件强制回到 uploaded/0 并清空错误信息（运维逃生通道）。
func (s *fileService) Reset(fileKey string) (*model.FileMetadata, error) {
	record, err := s.fileRepo.GetBySafeFilename(fileKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}

	zero := 0
	if err := s.fileRepo.UpdateStatus(record.SafeFilename, repository.StatusPatch{
		Status:     model.StatusUploaded,
		Progress:   &zero,
		ClearError: true,
	}); err != nil {
		return nil, err
	}
	// 上一次任务的进度消息随重置一并作废
	s.registry.Delete(record.SafeFilename)
	log.Infof("[FileService] 文件状态已重置: %s", record.SafeFilename)
	return record, nil
}

// Delete 删除文件记录并清理物理文件；物理文件缺失只记日志，不算失败。
func (s *fileService) Delete(fileKey string) (*model.FileMetadata, error) {
	record, err := s.fileRepo.Delete(fileKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}

	if err := os.Remove(record.FilePath); err != nil {
		if os.IsNotExist(err) {
			log.Warnf("[FileService] 物理文件不存在: %s", record.FilePath)
		} else {
			log.Errorf("[FileService] 删除物理文件失败: %s, err: %v", record.FilePath, err)
		}
	} else {
		log.Infof("[FileService] 删除物理文件: %s", record.FilePath)
	}

	s.registry.Delete(record.SafeFilename)
	return record, nil
}

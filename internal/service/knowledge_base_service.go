package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"rag-web-go/internal/model"
	"rag-web-go/internal/repository"
	"rag-web-go/pkg/log"
)

// KnowledgeBaseInfo 是知识库列表的客户端形态。
type KnowledgeBaseInfo struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedTime time.Time `json:"created_time"`
	FileCount   int64     `json:"file_count"`
	Path        string    `json:"path"`
}

// KnowledgeBaseService 接口定义了知识库管理的业务操作。
type KnowledgeBaseService interface {
	Create(name, description string) (*model.KnowledgeBase, error)
	List() ([]KnowledgeBaseInfo, error)
	Delete(name string) error
}

type knowledgeBaseService struct {
	kbRepo   repository.KnowledgeBaseRepository
	fileRepo repository.FileRepository
	// 知识库目录的根路径，兼容旧部署的文件系统布局
	kbDir string
}

// NewKnowledgeBaseService 创建一个新的 KnowledgeBaseService 实例。
func NewKnowledgeBaseService(kbRepo repository.KnowledgeBaseRepository, fileRepo repository.FileRepository, kbDir string) KnowledgeBaseService {
	return &knowledgeBaseService{kbRepo: kbRepo, fileRepo: fileRepo, kbDir: kbDir}
}

// Create 创建知识库：先建文件系统目录，再落数据库记录。
func (s *knowledgeBaseService) Create(name, description string) (*model.KnowledgeBase, error) {
	dir := filepath.Join(s.kbDir, name)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("创建知识库目录失败: %w", err)
	}

	kb := &model.KnowledgeBase{
		Name:        name,
		Description: description,
		Path:        dir,
	}
	if err := s.kbRepo.Create(kb); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrKnowledgeBaseExists
		}
		return nil, err
	}
	log.Infof("[KnowledgeBase] 创建知识库成功: %s", name)
	return kb, nil
}

// List 返回全部知识库及各自的实时文件数。
func (s *knowledgeBaseService) List() ([]KnowledgeBaseInfo, error) {
	rows, err := s.kbRepo.List()
	if err != nil {
		return nil, err
	}
	infos := make([]KnowledgeBaseInfo, 0, len(rows))
	for _, row := range rows {
		infos = append(infos, KnowledgeBaseInfo{
			Name:        row.Name,
			Description: row.Description,
			CreatedTime: row.CreatedAt,
			FileCount:   row.FileCount,
			Path:        row.Path,
		})
	}
	return infos, nil
}

// Delete 删除知识库：级联删除文件记录，并尽力清理物理文件与目录。
func (s *knowledgeBaseService) Delete(name string) error {
	files, err := s.fileRepo.List(name)
	if err != nil {
		return err
	}
	if err := s.kbRepo.Delete(name); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrKnowledgeBaseNotFound
		}
		return err
	}
	for _, f := range files {
		if err := os.Remove(f.FilePath); err != nil && !os.IsNotExist(err) {
			log.Warnf("[KnowledgeBase] 删除物理文件失败: %s, err: %v", f.FilePath, err)
		}
	}
	if err := os.RemoveAll(filepath.Join(s.kbDir, name)); err != nil {
		log.Warnf("[KnowledgeBase] 删除知识库目录失败: %s, err: %v", name, err)
	}
	log.Infof("[KnowledgeBase] 删除知识库成功: %s (含 %d 个文件记录)", name, len(files))
	return nil
}

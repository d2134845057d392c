package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"rag-web-go/internal/model"
)

// StatusPatch 描述一次文件状态的部分更新：
// 只有显式给出的字段会被写入，updated_at 总是刷新。
type StatusPatch struct {
	Status       string
	Progress     *int
	ErrorMessage *string
	// ClearError 将 error_message 置空（与 ErrorMessage 互斥）
	ClearError bool
}

// FileRepository 接口定义了文件元数据相关的数据持久化操作。
type FileRepository interface {
	Create(record *model.FileMetadata) error
	GetBySafeFilename(safeFilename string) (*model.FileMetadata, error)
	GetByOriginalFilename(originalFilename, knowledgeBase string) (*model.FileMetadata, error)
	UpdateStatus(safeFilename string, patch StatusPatch) error
	List(knowledgeBase string) ([]model.FileMetadata, error)
	Delete(safeFilename string) (*model.FileMetadata, error)
}

// fileRepository 是 FileRepository 接口的 GORM 实现。
type fileRepository struct {
	db *gorm.DB
}

// NewFileRepository 创建一个新的 FileRepository 实例。
func NewFileRepository(db *gorm.DB) FileRepository {
	return &fileRepository{db: db}
}

// Create 创建一个文件记录。
// safe_filename 重复返回 ErrDuplicateKey；知识库不存在返回 ErrForeignKeyViolation。
// 知识库存在性在插入前显式校验，数据库外键作为兜底。
func (r *fileRepository) Create(record *model.FileMetadata) error {
	var count int64
	if err := r.db.Model(&model.KnowledgeBase{}).Where("name = ?", record.KnowledgeBase).Count(&count).Error; err != nil {
		return translate(err)
	}
	if count == 0 {
		return ErrForeignKeyViolation
	}
	return translate(r.db.Create(record).Error)
}

// GetBySafeFilename 根据存储标识检索文件记录。
func (r *fileRepository) GetBySafeFilename(safeFilename string) (*model.FileMetadata, error) {
	var record model.FileMetadata
	if err := r.db.Where("safe_filename = ?", safeFilename).First(&record).Error; err != nil {
		return nil, translate(err)
	}
	return &record, nil
}

// GetByOriginalFilename 根据原始文件名与知识库检索最近一次上传的记录。
func (r *fileRepository) GetByOriginalFilename(originalFilename, knowledgeBase string) (*model.FileMetadata, error) {
	var record model.FileMetadata
	q := r.db.Where("original_filename = ?", originalFilename)
	if knowledgeBase != "" {
		q = q.Where("knowledge_base = ?", knowledgeBase)
	}
	if err := q.Order("created_at DESC").First(&record).Error; err != nil {
		return nil, translate(err)
	}
	return &record, nil
}

// UpdateStatus 按补丁语义更新文件状态，目标行不存在返回 ErrNotFound。
func (r *fileRepository) UpdateStatus(safeFilename string, patch StatusPatch) error {
	updates := map[string]interface{}{
		"status":     patch.Status,
		"updated_at": time.Now(),
	}
	if patch.Progress != nil {
		updates["progress"] = *patch.Progress
	}
	if patch.ClearError {
		updates["error_message"] = nil
	} else if patch.ErrorMessage != nil {
		updates["error_message"] = *patch.ErrorMessage
	}

	result := r.db.Model(&model.FileMetadata{}).Where("safe_filename = ?", safeFilename).Updates(updates)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List 获取文件列表，knowledgeBase 为空时返回全部，按创建时间倒序。
func (r *fileRepository) List(knowledgeBase string) ([]model.FileMetadata, error) {
	var files []model.FileMetadata
	q := r.db.Order("created_at DESC")
	if knowledgeBase != "" {
		q = q.Where("knowledge_base = ?", knowledgeBase)
	}
	if err := q.Find(&files).Error; err != nil {
		return nil, translate(err)
	}
	return files, nil
}

// Delete 删除文件记录并返回删除前的内容，供调用方清理物理文件。
func (r *fileRepository) Delete(safeFilename string) (*model.FileMetadata, error) {
	record, err := r.GetBySafeFilename(safeFilename)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := r.db.Delete(record).Error; err != nil {
		return nil, translate(err)
	}
	return record, nil
}

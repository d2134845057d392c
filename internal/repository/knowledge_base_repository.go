package repository

import (
	"fmt"

	"gorm.io/gorm"

	"rag-web-go/internal/model"
)

// KnowledgeBaseWithCount 是知识库列表项，附带一个实时统计的文件数。
type KnowledgeBaseWithCount struct {
	model.KnowledgeBase
	FileCount int64 `json:"fileCount"`
}

// KnowledgeBaseRepository 接口定义了知识库相关的数据持久化操作。
type KnowledgeBaseRepository interface {
	Create(kb *model.KnowledgeBase) error
	GetByName(name string) (*model.KnowledgeBase, error)
	List() ([]KnowledgeBaseWithCount, error)
	Delete(name string) error
}

// knowledgeBaseRepository 是 KnowledgeBaseRepository 接口的 GORM 实现。
type knowledgeBaseRepository struct {
	db *gorm.DB
}

// NewKnowledgeBaseRepository 创建一个新的 KnowledgeBaseRepository 实例。
func NewKnowledgeBaseRepository(db *gorm.DB) KnowledgeBaseRepository {
	return &knowledgeBaseRepository{db: db}
}

// Create 在数据库中创建一个新的知识库记录；重名返回 ErrDuplicateKey。
func (r *knowledgeBaseRepository) Create(kb *model.KnowledgeBase) error {
	return translate(r.db.Create(kb).Error)
}

// GetByName 根据名称检索知识库记录。
func (r *knowledgeBaseRepository) GetByName(name string) (*model.KnowledgeBase, error) {
	var kb model.KnowledgeBase
	if err := r.db.Where("name = ?", name).First(&kb).Error; err != nil {
		return nil, translate(err)
	}
	return &kb, nil
}

// List 获取所有知识库，并通过 LEFT JOIN 聚合每个知识库当前的文件数。
func (r *knowledgeBaseRepository) List() ([]KnowledgeBaseWithCount, error) {
	var rows []KnowledgeBaseWithCount
	err := r.db.Model(&model.KnowledgeBase{}).
		Select("knowledge_bases.*, COUNT(file_metadata.id) AS file_count").
		Joins("LEFT JOIN file_metadata ON file_metadata.knowledge_base = knowledge_bases.name").
		Group("knowledge_bases.id").
		Order("knowledge_bases.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

// Delete 删除知识库及其全部文件记录。
// 数据库外键本身配置了级联删除，这里显式删除依赖行以兼容不强制外键的测试驱动。
func (r *knowledgeBaseRepository) Delete(name string) error {
	kb, err := r.GetByName(name)
	if err != nil {
		return err
	}
	if err := r.db.Where("knowledge_base = ?", name).Delete(&model.FileMetadata{}).Error; err != nil {
		return fmt.Errorf("删除知识库 '%s' 的文件记录失败: %w", name, err)
	}
	return translate(r.db.Delete(kb).Error)
}

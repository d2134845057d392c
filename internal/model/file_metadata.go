package model

import "time"

// 文件解析状态机：uploaded -> processing -> {completed | error}，
// reset 操作可从任意状态强制回到 uploaded。
const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// FileMetadata 定义了 file_metadata 表的 ORM 模型。
// safe_filename 是上传时生成的防碰撞存储标识，区别于用户的原始文件名。
type FileMetadata struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	SafeFilename     string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"safeFilename"`
	OriginalFilename string    `gorm:"type:varchar(255);not null;index" json:"originalFilename"`
	KnowledgeBase    string    `gorm:"type:varchar(255);not null;index" json:"knowledgeBase"`
	FilePath         string    `gorm:"type:varchar(500);not null" json:"filePath"`
	Size             int64     `gorm:"not null" json:"size"`
	UploadTime       time.Time `gorm:"not null" json:"uploadTime"`
	Status           string    `gorm:"type:varchar(50);not null;default:uploaded;index" json:"status"`
	Progress         int       `gorm:"not null;default:0" json:"progress"`
	ErrorMessage     *string   `gorm:"type:text" json:"errorMessage"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updatedAt"`

	// 外键关联，知识库删除时级联删除文件记录
	Owner *KnowledgeBase `gorm:"foreignKey:KnowledgeBase;references:Name;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (FileMetadata) TableName() string {
	return "file_metadata"
}

// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// KnowledgeBase 定义了 knowledge_bases 表的 ORM 模型。
// name 唯一且创建后不可变；path 为兼容旧部署保留的文件系统目录。
type KnowledgeBase struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Path        string    `gorm:"type:varchar(500);not null" json:"path"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (KnowledgeBase) TableName() string {
	return "knowledge_bases"
}

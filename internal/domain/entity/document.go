// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/google/uuid"
)

// Document 文档实体
//
// Version 是冗余字段，与版本历史中的 currentVersion 保持一致，
// 仅在版本记录成功写入后才会推进。
type Document struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProjectID string    `json:"project_id,omitempty" gorm:"type:uuid;index"`
	Title     string    `json:"title" gorm:"type:varchar(255);not null"`
	Content   string    `json:"content,omitempty" gorm:"type:text"`
	WordCount int       `json:"word_count" gorm:"default:0"`
	Version   int       `json:"version" gorm:"default:0"`
	CreatedBy string    `json:"created_by,omitempty" gorm:"type:varchar(64)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Document) TableName() string {
	return "documents"
}

// NewDocument 创建新文档
func NewDocument(projectID, title, createdBy string) *Document {
	now := time.Now()
	return &Document{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Title:     title,
		CreatedBy: createdBy,
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetContent 设置文档内容
func (d *Document) SetContent(content string) {
	d.Content = content
	d.WordCount = len([]rune(content))
	d.UpdatedAt = time.Now()
}

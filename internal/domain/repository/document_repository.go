// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-doc-history-api/internal/domain/entity"
)

// DocumentRepository 文档仓储接口
type DocumentRepository interface {
	// Create 创建文档
	Create(ctx context.Context, doc *entity.Document) error

	// GetByID 根据 ID 获取文档，不存在时返回 nil
	GetByID(ctx context.Context, id string) (*entity.Document, error)

	// Update 更新文档
	Update(ctx context.Context, doc *entity.Document) error

	// UpdateContentVersion 更新文档内容及冗余版本号
	UpdateContentVersion(ctx context.Context, id, content string, version int) error

	// Delete 删除文档
	Delete(ctx context.Context, id string) error

	// List 分页获取文档列表
	List(ctx context.Context, projectID string, pagination Pagination) (*PagedResult[*entity.Document], error)
}

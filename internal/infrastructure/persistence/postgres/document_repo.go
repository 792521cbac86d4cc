// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	stderrors "errors"
	"fmt"

	"gorm.io/gorm"

	"z-doc-history-api/internal/domain/entity"
	"z-doc-history-api/internal/domain/repository"
)

// DocumentRepository 文档仓储实现
type DocumentRepository struct {
	client *Client
}

// NewDocumentRepository 创建文档仓储
func NewDocumentRepository(client *Client) *DocumentRepository {
	return &DocumentRepository{client: client}
}

// Create 创建文档
func (r *DocumentRepository) Create(ctx context.Context, doc *entity.Document) error {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(doc).Error; err != nil {
		span.RecordError(err)
		return translateError(err, "create document")
	}
	return nil
}

// GetByID 根据 ID 获取文档，不存在时返回 nil
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*entity.Document, error) {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var doc entity.Document
	if err := db.First(&doc, "id = ?", id).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, translateError(err, "get document")
	}
	return &doc, nil
}

// Update 更新文档
func (r *DocumentRepository) Update(ctx context.Context, doc *entity.Document) error {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Save(doc).Error; err != nil {
		span.RecordError(err)
		return translateError(err, "update document")
	}
	return nil
}

// UpdateContentVersion 更新文档内容及冗余版本号
func (r *DocumentRepository) UpdateContentVersion(ctx context.Context, id, content string, version int) error {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.UpdateContentVersion")
	defer span.End()

	db := getDB(ctx, r.client.db)
	wordCount := len([]rune(content))
	if err := db.Model(&entity.Document{}).Where("id = ?", id).Updates(map[string]interface{}{
		"content":    content,
		"word_count": wordCount,
		"version":    version,
	}).Error; err != nil {
		span.RecordError(err)
		return translateError(err, fmt.Sprintf("update document content to version %d", version))
	}
	return nil
}

// Delete 删除文档
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.Delete")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Delete(&entity.Document{}, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		return translateError(err, "delete document")
	}
	return nil
}

// List 分页获取项目下的文档
func (r *DocumentRepository) List(ctx context.Context, projectID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Document], error) {
	ctx, span := tracer.Start(ctx, "postgres.DocumentRepository.List")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.Document{})
	if projectID != "" {
		query = query.Where("project_id = ?", projectID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, translateError(err, "count documents")
	}

	var docs []*entity.Document
	if err := query.Order("updated_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&docs).Error; err != nil {
		span.RecordError(err)
		return nil, translateError(err, "list documents")
	}

	return repository.NewPagedResult(docs, total, pagination), nil
}

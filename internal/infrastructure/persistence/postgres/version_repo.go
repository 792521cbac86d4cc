// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"z-doc-history-api/internal/domain/entity"
	"z-doc-history-api/internal/domain/repository"
	"z-doc-history-api/pkg/errors"
	"z-doc-history-api/pkg/metrics"
)

// VersionRepository 版本记录仓储实现。
//
// (document_id, version_number) 上的唯一索引是并发版本号分配的仲裁者：
// 竞争失败的写入在这里转换为版本冲突错误，由应用层重试。
type VersionRepository struct {
	client *Client
}

// NewVersionRepository 创建版本记录仓储
func NewVersionRepository(client *Client) *VersionRepository {
	return &VersionRepository{client: client}
}

// Create 插入版本记录，版本号已被占用时返回版本冲突错误
func (r *VersionRepository) Create(ctx context.Context, version *entity.DocumentVersion) error {
	ctx, span := tracer.Start(ctx, "postgres.VersionRepository.Create")
	defer span.End()

	start := time.Now()
	db := getDB(ctx, r.client.db)
	err := db.Create(version).Error
	metrics.DBQueryDuration.WithLabelValues("version_create").Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		if isUniqueViolation(err) {
			return errors.Wrap(err, errors.CodeVersionConflict,
				fmt.Sprintf("version %d already exists for document %s", version.VersionNumber, version.DocumentID))
		}
		return translateError(err, "create version")
	}
	return nil
}

// GetByNumber 获取指定版本记录，不存在时返回 nil
func (r *VersionRepository) GetByNumber(ctx context.Context, documentID string, versionNumber int) (*entity.DocumentVersion, error) {
	ctx, span := tracer.Start(ctx, "postgres.VersionRepository.GetByNumber")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var version entity.DocumentVersion
	if err := db.First(&version, "document_id = ? AND version_number = ?", documentID, versionNumber).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, translateError(err, "get version")
	}
	return &version, nil
}

// ListRange 按版本号升序获取 [fromVersion, toVersion] 范围内的版本记录
func (r *VersionRepository) ListRange(ctx context.Context, documentID string, fromVersion, toVersion int) ([]*entity.DocumentVersion, error) {
	ctx, span := tracer.Start(ctx, "postgres.VersionRepository.ListRange")
	defer span.End()

	start := time.Now()
	db := getDB(ctx, r.client.db)
	var versions []*entity.DocumentVersion
	err := db.Where("document_id = ? AND version_number BETWEEN ? AND ?", documentID, fromVersion, toVersion).
		Order("version_number ASC").
		Find(&versions).Error
	metrics.DBQueryDuration.WithLabelValues("version_list_range").Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		return nil, translateError(err, "list version range")
	}
	return versions, nil
}

// List 分页获取版本摘要，按版本号降序。
// 摘要不加载内容列，长文档的历史列表不用搬运全文。
func (r *VersionRepository) List(ctx context.Context, documentID string, pagination repository.Pagination) (*repository.PagedResult[*entity.DocumentVersion], error) {
	ctx, span := tracer.Start(ctx, "postgres.VersionRepository.List")
	defer span.End()

	db := getDB(ctx, r.client.db)
	query := db.Model(&entity.DocumentVersion{}).Where("document_id = ?", documentID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, translateError(err, "count versions")
	}

	var versions []*entity.DocumentVersion
	if err := query.
		Select("id", "document_id", "version_number", "is_snapshot", "snapshot_base_version",
			"author_id", "change_type", "change_description", "created_at").
		Order("version_number DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit()).
		Find(&versions).Error; err != nil {
		span.RecordError(err)
		return nil, translateError(err, "list versions")
	}

	return repository.NewPagedResult(versions, total, pagination), nil
}

// GetLatestNumber 获取文档当前最大版本号，无版本时返回 0
func (r *VersionRepository) GetLatestNumber(ctx context.Context, documentID string) (int, error) {
	ctx, span := tracer.Start(ctx, "postgres.VersionRepository.GetLatestNumber")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var latest *int
	err := db.Model(&entity.DocumentVersion{}).
		Where("document_id = ?", documentID).
		Select("MAX(version_number)").
		Scan(&latest).Error
	if err != nil {
		span.RecordError(err)
		return 0, translateError(err, "get latest version number")
	}
	if latest == nil {
		return 0, nil
	}
	return *latest, nil
}

// GetMetadata 获取文档版本聚合元数据，不存在时返回 nil
func (r *VersionRepository) GetMetadata(ctx context.Context, documentID string) (*entity.VersionMetadata, error) {
	ctx, span := tracer.Start(ctx, "postgres.VersionRepository.GetMetadata")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var meta entity.VersionMetadata
	if err := db.First(&meta, "document_id = ?", documentID).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, translateError(err, "get version metadata")
	}
	return &meta, nil
}

// UpsertMetadata 写入或更新文档版本聚合元数据
func (r *VersionRepository) UpsertMetadata(ctx context.Context, meta *entity.VersionMetadata) error {
	ctx, span := tracer.Start(ctx, "postgres.VersionRepository.UpsertMetadata")
	defer span.End()

	db := getDB(ctx, r.client.db)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "document_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"current_version", "last_snapshot_version", "total_versions",
			"last_modified_at", "last_modified_by",
		}),
	}).Create(meta).Error
	if err != nil {
		span.RecordError(err)
		return translateError(err, "upsert version metadata")
	}
	return nil
}

// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-doc-history-api/internal/domain/entity"
)

// VersionRepository 版本记录仓储接口。
//
// Create 依赖存储层对 (document_id, version_number) 的唯一约束：
// 并发写入竞争同一个版本号时，后到者收到版本冲突错误，
// 由调用方重新加载最新版本号后重试。
type VersionRepository interface {
	// Create 插入版本记录，版本号已存在时返回版本冲突错误
	Create(ctx context.Context, version *entity.DocumentVersion) error

	// GetByNumber 获取指定版本记录，不存在时返回 nil
	GetByNumber(ctx context.Context, documentID string, versionNumber int) (*entity.DocumentVersion, error)

	// ListRange 按版本号升序获取 [fromVersion, toVersion] 范围内的版本记录
	ListRange(ctx context.Context, documentID string, fromVersion, toVersion int) ([]*entity.DocumentVersion, error)

	// List 分页获取版本摘要（不含内容字段），按版本号降序
	List(ctx context.Context, documentID string, pagination Pagination) (*PagedResult[*entity.DocumentVersion], error)

	// GetLatestNumber 获取文档当前最大版本号，无版本时返回 0
	GetLatestNumber(ctx context.Context, documentID string) (int, error)

	// GetMetadata 获取文档版本聚合元数据，不存在时返回 nil
	GetMetadata(ctx context.Context, documentID string) (*entity.VersionMetadata, error)

	// UpsertMetadata 写入或更新文档版本聚合元数据
	UpsertMetadata(ctx context.Context, meta *entity.VersionMetadata) error
}

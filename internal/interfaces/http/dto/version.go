// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"z-doc-history-api/internal/domain/entity"
)

// VersionResponse 版本摘要响应（不含内容）
type VersionResponse struct {
	ID                  string    `json:"id"`
	DocumentID          string    `json:"document_id"`
	VersionNumber       int       `json:"version_number"`
	IsSnapshot          bool      `json:"is_snapshot"`
	SnapshotBaseVersion int       `json:"snapshot_base_version"`
	AuthorID            string    `json:"author_id,omitempty"`
	ChangeType          string    `json:"change_type"`
	ChangeDescription   string    `json:"change_description,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// ToVersionResponse 转换版本实体为摘要响应
func ToVersionResponse(v *entity.DocumentVersion) *VersionResponse {
	return &VersionResponse{
		ID:                  v.ID,
		DocumentID:          v.DocumentID,
		VersionNumber:       v.VersionNumber,
		IsSnapshot:          v.IsSnapshot,
		SnapshotBaseVersion: v.SnapshotBaseVersion,
		AuthorID:            v.AuthorID,
		ChangeType:          string(v.ChangeType),
		ChangeDescription:   v.ChangeDescription,
		CreatedAt:           v.CreatedAt,
	}
}

// VersionListResponse 版本列表响应
type VersionListResponse struct {
	Versions []*VersionResponse `json:"versions"`
}

// ToVersionListResponse 转换版本列表
func ToVersionListResponse(versions []*entity.DocumentVersion) VersionListResponse {
	out := make([]*VersionResponse, 0, len(versions))
	for _, v := range versions {
		out = append(out, ToVersionResponse(v))
	}
	return VersionListResponse{Versions: out}
}

// VersionContentResponse 重建的版本内容响应
type VersionContentResponse struct {
	DocumentID    string `json:"document_id"`
	VersionNumber int    `json:"version_number"`
	Content       string `json:"content"`
}

// VersionMetadataResponse 版本聚合元数据响应
type VersionMetadataResponse struct {
	DocumentID          string    `json:"document_id"`
	CurrentVersion      int       `json:"current_version"`
	LastSnapshotVersion int       `json:"last_snapshot_version"`
	TotalVersions       int       `json:"total_versions"`
	LastModifiedAt      time.Time `json:"last_modified_at"`
	LastModifiedBy      string    `json:"last_modified_by,omitempty"`
}

// ToVersionMetadataResponse 转换元数据实体为响应
func ToVersionMetadataResponse(meta *entity.VersionMetadata) *VersionMetadataResponse {
	return &VersionMetadataResponse{
		DocumentID:          meta.DocumentID,
		CurrentVersion:      meta.CurrentVersion,
		LastSnapshotVersion: meta.LastSnapshotVersion,
		TotalVersions:       meta.TotalVersions,
		LastModifiedAt:      meta.LastModifiedAt,
		LastModifiedBy:      meta.LastModifiedBy,
	}
}

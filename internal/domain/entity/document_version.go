// Package entity 定义领域实体
package entity

import (
	"fmt"
	"time"
)

// ChangeType 版本变更类型
type ChangeType string

const (
	ChangeTypeManualSave ChangeType = "manual-save"
	ChangeTypeAutoSave   ChangeType = "auto-save"
	ChangeTypeAIAction   ChangeType = "ai-action"
	ChangeTypeMilestone  ChangeType = "milestone"
	ChangeTypeRollback   ChangeType = "rollback"
)

// IsValid 检查变更类型是否合法
func (t ChangeType) IsValid() bool {
	switch t {
	case ChangeTypeManualSave, ChangeTypeAutoSave, ChangeTypeAIAction,
		ChangeTypeMilestone, ChangeTypeRollback:
		return true
	}
	return false
}

// OperationType 增量操作类型
type OperationType string

const (
	OpInsert  OperationType = "insert"
	OpDelete  OperationType = "delete"
	OpReplace OperationType = "replace"
)

// DeltaOperation 单个位置寻址的编辑操作。
// Position 与 Length 均以 rune 为单位，相对于该增量的基准内容
// （同一增量内的所有操作共享同一个应用前字符串的坐标系）。
type DeltaOperation struct {
	Type     OperationType `json:"type"`
	Position int           `json:"position"`
	Length   int           `json:"length,omitempty"`
	Text     string        `json:"text,omitempty"`
}

// VersionDelta 相对某个基准版本内容的有序操作列表
type VersionDelta struct {
	Operations  []DeltaOperation `json:"operations"`
	BaseVersion int              `json:"base_version"`
}

// DocumentVersion 文档版本记录，写入后不可变。
//
// 快照记录持有完整内容；增量记录持有相对前一版本内容的操作列表，
// 以及最近一个前置快照的版本号（SnapshotBaseVersion），用于约束重建回放长度。
type DocumentVersion struct {
	ID                  string         `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DocumentID          string         `json:"document_id" gorm:"type:uuid;not null;uniqueIndex:idx_doc_version_number"`
	VersionNumber       int            `json:"version_number" gorm:"not null;uniqueIndex:idx_doc_version_number"`
	IsSnapshot          bool           `json:"is_snapshot" gorm:"not null"`
	ContentSnapshot     *string        `json:"content_snapshot,omitempty" gorm:"type:text"`
	ContentDelta        *VersionDelta  `json:"content_delta,omitempty" gorm:"type:jsonb;serializer:json"`
	SnapshotBaseVersion int            `json:"snapshot_base_version" gorm:"not null"`
	AuthorID            string         `json:"author_id,omitempty" gorm:"type:varchar(64)"`
	ChangeType          ChangeType     `json:"change_type" gorm:"type:varchar(32);not null"`
	ChangeDescription   string         `json:"change_description,omitempty" gorm:"type:text"`
	Metadata            map[string]any `json:"metadata,omitempty" gorm:"type:jsonb;serializer:json"`
	CreatedAt           time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (DocumentVersion) TableName() string {
	return "document_versions"
}

// Validate 检查记录的结构不变量：
// 快照记录仅持有 ContentSnapshot，增量记录仅持有 ContentDelta，
// 二者必须恰好存在其一。
func (v *DocumentVersion) Validate() error {
	if v.VersionNumber < 1 {
		return fmt.Errorf("version number must be positive, got %d", v.VersionNumber)
	}
	if v.IsSnapshot {
		if v.ContentSnapshot == nil {
			return fmt.Errorf("snapshot version %d missing content snapshot", v.VersionNumber)
		}
		if v.ContentDelta != nil {
			return fmt.Errorf("snapshot version %d must not carry a delta", v.VersionNumber)
		}
		if v.SnapshotBaseVersion != v.VersionNumber {
			return fmt.Errorf("snapshot version %d must be its own base, got %d", v.VersionNumber, v.SnapshotBaseVersion)
		}
		return nil
	}
	if v.ContentDelta == nil {
		return fmt.Errorf("delta version %d missing content delta", v.VersionNumber)
	}
	if v.ContentSnapshot != nil {
		return fmt.Errorf("delta version %d must not carry a snapshot", v.VersionNumber)
	}
	if v.SnapshotBaseVersion < 1 || v.SnapshotBaseVersion >= v.VersionNumber {
		return fmt.Errorf("delta version %d has invalid snapshot base %d", v.VersionNumber, v.SnapshotBaseVersion)
	}
	return nil
}

// Content 返回快照内容，增量记录返回空串
func (v *DocumentVersion) Content() string {
	if v.ContentSnapshot != nil {
		return *v.ContentSnapshot
	}
	return ""
}

// VersionMetadata 文档版本聚合元数据（每文档一行，派生缓存）。
// 任何时刻都可以通过扫描该文档的版本记录重新计算。
type VersionMetadata struct {
	DocumentID          string    `json:"document_id" gorm:"type:uuid;primaryKey"`
	CurrentVersion      int       `json:"current_version" gorm:"not null"`
	LastSnapshotVersion int       `json:"last_snapshot_version" gorm:"not null"`
	TotalVersions       int       `json:"total_versions" gorm:"not null"`
	LastModifiedAt      time.Time `json:"last_modified_at"`
	LastModifiedBy      string    `json:"last_modified_by,omitempty" gorm:"type:varchar(64)"`
}

// TableName 指定表名
func (VersionMetadata) TableName() string {
	return "document_version_metadata"
}

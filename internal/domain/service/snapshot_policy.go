// Package service 提供版本历史引擎的领域服务
package service

import (
	"z-doc-history-api/internal/domain/entity"
)

// DefaultChunkThreshold 默认快照间隔：两个快照之间最多允许的连续增量数
const DefaultChunkThreshold = 10

// SnapshotPolicy 快照决策：给定文档历史状态，决定下一个版本
// 以完整快照还是增量的形式落库。
type SnapshotPolicy struct {
	chunkThreshold int
}

// NewSnapshotPolicy 创建快照决策器，threshold <= 0 时使用默认值
func NewSnapshotPolicy(chunkThreshold int) *SnapshotPolicy {
	if chunkThreshold <= 0 {
		chunkThreshold = DefaultChunkThreshold
	}
	return &SnapshotPolicy{chunkThreshold: chunkThreshold}
}

// ChunkThreshold 返回配置的快照间隔
func (p *SnapshotPolicy) ChunkThreshold() int {
	return p.chunkThreshold
}

// ShouldSnapshot 决定下一个版本是否存为完整快照：
//   - 文档的第一个版本必须是快照，保证任意增量链都有终点；
//   - 调用方显式要求快照（文档创建、管理性重建基准）；
//   - 回滚写入的是自包含的快照，恢复历史时无需穿过长链；
//   - 自上一个快照以来的增量数达到阈值，约束重建回放的最坏长度。
func (p *SnapshotPolicy) ShouldSnapshot(changeType entity.ChangeType, isFirstVersion bool, versionsSinceLastSnapshot int, forceSnapshot bool) bool {
	if isFirstVersion {
		return true
	}
	if forceSnapshot {
		return true
	}
	if changeType == entity.ChangeTypeRollback {
		return true
	}
	return versionsSinceLastSnapshot >= p.chunkThreshold
}

// SuppressNoOp 判断是否应该跳过本次保存：
// 手动保存与自动保存在内容与当前最新内容完全一致时不产生版本记录，
// 避免重复保存导致版本号膨胀。ai-action 与 milestone 表达的是
// “在历史上标记一个点”的显式意图，即使内容未变也会记录。
func (p *SnapshotPolicy) SuppressNoOp(changeType entity.ChangeType, previousContent, newContent string) bool {
	if changeType != entity.ChangeTypeManualSave && changeType != entity.ChangeTypeAutoSave {
		return false
	}
	return previousContent == newContent
}

package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"z-doc-history-api/internal/domain/entity"
)

func TestShouldSnapshot(t *testing.T) {
	policy := NewSnapshotPolicy(10)

	cases := []struct {
		name          string
		changeType    entity.ChangeType
		isFirst       bool
		sinceSnapshot int
		force         bool
		want          bool
	}{
		{"first version always snapshots", entity.ChangeTypeAutoSave, true, 0, false, true},
		{"forced snapshot", entity.ChangeTypeAutoSave, false, 1, true, true},
		{"rollback always snapshots", entity.ChangeTypeRollback, false, 1, false, true},
		{"below threshold stores delta", entity.ChangeTypeAutoSave, false, 9, false, false},
		{"at threshold snapshots", entity.ChangeTypeAutoSave, false, 10, false, true},
		{"above threshold snapshots", entity.ChangeTypeManualSave, false, 15, false, true},
		{"milestone below threshold stores delta", entity.ChangeTypeMilestone, false, 3, false, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := policy.ShouldSnapshot(tc.changeType, tc.isFirst, tc.sinceSnapshot, tc.force)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewSnapshotPolicyDefaultThreshold(t *testing.T) {
	assert.Equal(t, DefaultChunkThreshold, NewSnapshotPolicy(0).ChunkThreshold())
	assert.Equal(t, DefaultChunkThreshold, NewSnapshotPolicy(-5).ChunkThreshold())
	assert.Equal(t, 25, NewSnapshotPolicy(25).ChunkThreshold())
}

func TestSuppressNoOp(t *testing.T) {
	policy := NewSnapshotPolicy(10)

	// 手动/自动保存在内容一致时跳过
	assert.True(t, policy.SuppressNoOp(entity.ChangeTypeManualSave, "same", "same"))
	assert.True(t, policy.SuppressNoOp(entity.ChangeTypeAutoSave, "same", "same"))

	// 内容有变化时不跳过
	assert.False(t, policy.SuppressNoOp(entity.ChangeTypeAutoSave, "old", "new"))

	// ai-action 与 milestone 即使内容不变也记录
	assert.False(t, policy.SuppressNoOp(entity.ChangeTypeAIAction, "same", "same"))
	assert.False(t, policy.SuppressNoOp(entity.ChangeTypeMilestone, "same", "same"))
	assert.False(t, policy.SuppressNoOp(entity.ChangeTypeRollback, "same", "same"))
}

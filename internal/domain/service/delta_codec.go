// Package service 提供版本历史引擎的领域服务
package service

import (
	"fmt"
	"sort"

	"github.com/sergi/go-diff/diffmatchpatch"

	"z-doc-history-api/internal/domain/entity"
	"z-doc-history-api/pkg/errors"
)

// DeltaCodec 增量编解码器：把一次编辑编码为有序的位置寻址操作列表，
// 或把操作列表确定性地应用到基准字符串上。
//
// 所有位置与长度以 rune 计，且全部相对同一个应用前字符串；
// 应用时按位置稳定排序，并用累计偏移修正每个操作的实际落点。
type DeltaCodec struct {
	differ *diffmatchpatch.DiffMatchPatch
}

// NewDeltaCodec 创建增量编解码器
func NewDeltaCodec() *DeltaCodec {
	return &DeltaCodec{
		differ: diffmatchpatch.New(),
	}
}

// ComputeDelta 计算从 oldContent 到 newContent 的增量。
// 操作是跨度级的 insert/delete/replace，不是逐字符编辑，
// 因此增量大小与编辑规模成正比，而非与文档大小成正比。
func (c *DeltaCodec) ComputeDelta(oldContent, newContent string, baseVersion int) *entity.VersionDelta {
	diffs := c.differ.DiffMain(oldContent, newContent, false)
	diffs = c.differ.DiffCleanupEfficiency(diffs)

	ops := make([]entity.DeltaOperation, 0, len(diffs))
	pos := 0 // 在 oldContent 中的 rune 偏移

	for i := 0; i < len(diffs); i++ {
		d := diffs[i]
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			pos += runeLen(d.Text)

		case diffmatchpatch.DiffDelete:
			length := runeLen(d.Text)
			// 删除紧跟插入时合并为 replace，减少操作数
			if i+1 < len(diffs) && diffs[i+1].Type == diffmatchpatch.DiffInsert {
				ops = append(ops, entity.DeltaOperation{
					Type:     entity.OpReplace,
					Position: pos,
					Length:   length,
					Text:     diffs[i+1].Text,
				})
				i++
			} else {
				ops = append(ops, entity.DeltaOperation{
					Type:     entity.OpDelete,
					Position: pos,
					Length:   length,
				})
			}
			pos += length

		case diffmatchpatch.DiffInsert:
			ops = append(ops, entity.DeltaOperation{
				Type:     entity.OpInsert,
				Position: pos,
				Text:     d.Text,
			})
		}
	}

	return &entity.VersionDelta{
		Operations:  ops,
		BaseVersion: baseVersion,
	}
}

// ApplyDelta 把增量应用到基准内容上。
//
// 操作按原始位置升序稳定排序后依次应用；每应用一个操作，
// 用带符号的累计偏移修正后续操作的落点。任一操作越界时
// 返回 MalformedDelta 错误，内容保持不变。
func (c *DeltaCodec) ApplyDelta(content string, delta *entity.VersionDelta) (string, error) {
	if delta == nil {
		return "", errors.New(errors.CodeMalformedDelta, "delta is nil")
	}

	ops := make([]entity.DeltaOperation, len(delta.Operations))
	copy(ops, delta.Operations)
	sort.SliceStable(ops, func(i, j int) bool {
		return ops[i].Position < ops[j].Position
	})

	runes := []rune(content)
	offset := 0

	for _, op := range ops {
		if op.Position < 0 || op.Length < 0 {
			return "", malformed(op, "negative position or length")
		}
		at := op.Position + offset

		switch op.Type {
		case entity.OpInsert:
			if at < 0 || at > len(runes) {
				return "", malformed(op, fmt.Sprintf("insert point %d outside [0,%d]", at, len(runes)))
			}
			text := []rune(op.Text)
			runes = splice(runes, at, 0, text)
			offset += len(text)

		case entity.OpDelete:
			if at < 0 || at+op.Length > len(runes) {
				return "", malformed(op, fmt.Sprintf("delete range [%d,%d) outside [0,%d]", at, at+op.Length, len(runes)))
			}
			runes = splice(runes, at, op.Length, nil)
			offset -= op.Length

		case entity.OpReplace:
			if at < 0 || at+op.Length > len(runes) {
				return "", malformed(op, fmt.Sprintf("replace range [%d,%d) outside [0,%d]", at, at+op.Length, len(runes)))
			}
			text := []rune(op.Text)
			runes = splice(runes, at, op.Length, text)
			offset += len(text) - op.Length

		default:
			return "", malformed(op, "unknown operation type")
		}
	}

	return string(runes), nil
}

// splice 在 at 处移除 removeLen 个 rune 并插入 insert
func splice(runes []rune, at, removeLen int, insert []rune) []rune {
	out := make([]rune, 0, len(runes)-removeLen+len(insert))
	out = append(out, runes[:at]...)
	out = append(out, insert...)
	out = append(out, runes[at+removeLen:]...)
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}

func malformed(op entity.DeltaOperation, detail string) error {
	return errors.New(errors.CodeMalformedDelta,
		fmt.Sprintf("operation %s@%d does not apply cleanly", op.Type, op.Position)).
		WithDetail(detail)
}

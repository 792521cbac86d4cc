package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-doc-history-api/internal/domain/entity"
	"z-doc-history-api/pkg/errors"
)

func TestComputeDeltaRoundTrip(t *testing.T) {
	codec := NewDeltaCodec()

	cases := []struct {
		name string
		old  string
		new  string
	}{
		{"append", "Hello", "Hello world"},
		{"prepend", "world", "Hello world"},
		{"delete tail", "Hello world", "Hello"},
		{"delete head", "Hello world", "world"},
		{"replace middle", "The quick brown fox", "The slow brown fox"},
		{"empty to text", "", "first draft"},
		{"text to empty", "everything removed", ""},
		{"identical", "unchanged", "unchanged"},
		{"both empty", "", ""},
		{"unicode", "héllo 世界", "héllo, 世界！"},
		{"multiline", "line one\nline two\nline three", "line one\nline 2\nline three\nline four"},
		{"scattered edits", "aaaa bbbb cccc dddd", "aaaa xxxx cccc yyyy zzzz"},
		{"full rewrite", "completely different", "nothing in common here at all"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			delta := codec.ComputeDelta(tc.old, tc.new, 1)
			require.NotNil(t, delta)
			assert.Equal(t, 1, delta.BaseVersion)

			got, err := codec.ApplyDelta(tc.old, delta)
			require.NoError(t, err)
			assert.Equal(t, tc.new, got)
		})
	}
}

func TestComputeDeltaInsertSpan(t *testing.T) {
	codec := NewDeltaCodec()

	delta := codec.ComputeDelta("Hello", "Hello world", 1)
	require.Len(t, delta.Operations, 1)

	op := delta.Operations[0]
	assert.Equal(t, entity.OpInsert, op.Type)
	assert.Equal(t, 5, op.Position)
	assert.Equal(t, " world", op.Text)
}

func TestComputeDeltaUnchangedContent(t *testing.T) {
	codec := NewDeltaCodec()

	delta := codec.ComputeDelta("same", "same", 3)
	assert.Empty(t, delta.Operations)

	got, err := codec.ApplyDelta("same", delta)
	require.NoError(t, err)
	assert.Equal(t, "same", got)
}

func TestApplyDeltaOffsetAdjustment(t *testing.T) {
	codec := NewDeltaCodec()

	// 所有位置相对同一个应用前字符串 "abcdef"
	delta := &entity.VersionDelta{
		BaseVersion: 1,
		Operations: []entity.DeltaOperation{
			{Type: entity.OpInsert, Position: 0, Text: "X"},
			{Type: entity.OpDelete, Position: 2, Length: 2},
			{Type: entity.OpReplace, Position: 5, Length: 1, Text: "YZ"},
		},
	}

	got, err := codec.ApplyDelta("abcdef", delta)
	require.NoError(t, err)
	assert.Equal(t, "XabeYZ", got)
}

func TestApplyDeltaUnsortedOperations(t *testing.T) {
	codec := NewDeltaCodec()

	// 乱序给入，应用前按位置稳定排序
	delta := &entity.VersionDelta{
		BaseVersion: 1,
		Operations: []entity.DeltaOperation{
			{Type: entity.OpReplace, Position: 5, Length: 1, Text: "YZ"},
			{Type: entity.OpInsert, Position: 0, Text: "X"},
			{Type: entity.OpDelete, Position: 2, Length: 2},
		},
	}

	got, err := codec.ApplyDelta("abcdef", delta)
	require.NoError(t, err)
	assert.Equal(t, "XabeYZ", got)
}

func TestApplyDeltaRuneOffsets(t *testing.T) {
	codec := NewDeltaCodec()

	// 位置以 rune 计，多字节字符不会被劈开
	delta := &entity.VersionDelta{
		BaseVersion: 1,
		Operations: []entity.DeltaOperation{
			{Type: entity.OpInsert, Position: 2, Text: "好"},
		},
	}

	got, err := codec.ApplyDelta("你好世界", delta)
	require.NoError(t, err)
	assert.Equal(t, "你好好世界", got)
}

func TestApplyDeltaOutOfRange(t *testing.T) {
	codec := NewDeltaCodec()

	cases := []struct {
		name string
		op   entity.DeltaOperation
	}{
		{"delete beyond end", entity.DeltaOperation{Type: entity.OpDelete, Position: 3, Length: 10}},
		{"insert beyond end", entity.DeltaOperation{Type: entity.OpInsert, Position: 99, Text: "x"}},
		{"replace beyond end", entity.DeltaOperation{Type: entity.OpReplace, Position: 4, Length: 5, Text: "x"}},
		{"negative position", entity.DeltaOperation{Type: entity.OpDelete, Position: -1, Length: 1}},
		{"unknown type", entity.DeltaOperation{Type: "move", Position: 0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			delta := &entity.VersionDelta{BaseVersion: 1, Operations: []entity.DeltaOperation{tc.op}}
			got, err := codec.ApplyDelta("Hello", delta)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.CodeMalformedDelta))
			assert.Empty(t, got)
		})
	}
}

func TestApplyDeltaNil(t *testing.T) {
	codec := NewDeltaCodec()

	_, err := codec.ApplyDelta("content", nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeMalformedDelta))
}

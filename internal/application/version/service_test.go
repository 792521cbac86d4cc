package version

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-doc-history-api/internal/config"
	"z-doc-history-api/internal/domain/entity"
	"z-doc-history-api/internal/domain/repository"
	domainservice "z-doc-history-api/internal/domain/service"
	"z-doc-history-api/pkg/errors"
)

// fakeVersionRepo 内存版本仓储，模拟存储层的唯一约束语义
type fakeVersionRepo struct {
	mu       sync.Mutex
	versions map[string]map[int]*entity.DocumentVersion
	meta     map[string]*entity.VersionMetadata

	// conflictsToInject > 0 时，Create 先以竞争者身份占用该版本号再返回冲突
	conflictsToInject int
	alwaysConflict    bool
	getByNumberCalls  int
}

func newFakeVersionRepo() *fakeVersionRepo {
	return &fakeVersionRepo{
		versions: make(map[string]map[int]*entity.DocumentVersion),
		meta:     make(map[string]*entity.VersionMetadata),
	}
}

func (f *fakeVersionRepo) Create(_ context.Context, v *entity.DocumentVersion) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.versions[v.DocumentID] == nil {
		f.versions[v.DocumentID] = make(map[int]*entity.DocumentVersion)
	}

	if f.alwaysConflict {
		return errors.New(errors.CodeVersionConflict, "version number already exists")
	}
	if f.conflictsToInject > 0 {
		f.conflictsToInject--
		// 竞争写入者抢先用自己的内容占用了这个版本号
		rivalContent := "rival content"
		f.versions[v.DocumentID][v.VersionNumber] = &entity.DocumentVersion{
			DocumentID:          v.DocumentID,
			VersionNumber:       v.VersionNumber,
			IsSnapshot:          true,
			ContentSnapshot:     &rivalContent,
			SnapshotBaseVersion: v.VersionNumber,
			AuthorID:            "rival-writer",
			ChangeType:          entity.ChangeTypeAutoSave,
		}
		return errors.New(errors.CodeVersionConflict, "version number already exists")
	}

	if _, exists := f.versions[v.DocumentID][v.VersionNumber]; exists {
		return errors.New(errors.CodeVersionConflict, "version number already exists")
	}
	stored := *v
	f.versions[v.DocumentID][v.VersionNumber] = &stored
	return nil
}

func (f *fakeVersionRepo) GetByNumber(_ context.Context, documentID string, versionNumber int) (*entity.DocumentVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getByNumberCalls++
	v, ok := f.versions[documentID][versionNumber]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (f *fakeVersionRepo) ListRange(_ context.Context, documentID string, fromVersion, toVersion int) ([]*entity.DocumentVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.DocumentVersion
	for n, v := range f.versions[documentID] {
		if n >= fromVersion && n <= toVersion {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber < out[j].VersionNumber })
	return out, nil
}

func (f *fakeVersionRepo) List(_ context.Context, documentID string, pagination repository.Pagination) (*repository.PagedResult[*entity.DocumentVersion], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*entity.DocumentVersion
	for _, v := range f.versions[documentID] {
		cp := *v
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].VersionNumber > all[j].VersionNumber })

	start := pagination.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + pagination.Limit()
	if end > len(all) {
		end = len(all)
	}
	return repository.NewPagedResult(all[start:end], int64(len(all)), pagination), nil
}

func (f *fakeVersionRepo) GetLatestNumber(_ context.Context, documentID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	latest := 0
	for n := range f.versions[documentID] {
		if n > latest {
			latest = n
		}
	}
	return latest, nil
}

func (f *fakeVersionRepo) GetMetadata(_ context.Context, documentID string) (*entity.VersionMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meta[documentID]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (f *fakeVersionRepo) UpsertMetadata(_ context.Context, meta *entity.VersionMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *meta
	f.meta[meta.DocumentID] = &cp
	return nil
}

// corrupt 直接篡改已存储的版本记录，用于构造破损历史
func (f *fakeVersionRepo) corrupt(documentID string, versionNumber int, mutate func(*entity.DocumentVersion)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mutate(f.versions[documentID][versionNumber])
}

func (f *fakeVersionRepo) drop(documentID string, versionNumber int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.versions[documentID], versionNumber)
}

type fakeTransactor struct{}

func (fakeTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func (c *fakeCache) GetOrLoadSafe(_ context.Context, key string, _ time.Duration, loader func() (interface{}, error)) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string][]byte)
	}
	if raw, ok := c.entries[key]; ok {
		return raw, nil
	}
	val, err := loader()
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return nil, err
	}
	c.entries[key] = raw
	return raw, nil
}

type fakeEvents struct {
	mu        sync.Mutex
	published []*entity.DocumentVersion
}

func (e *fakeEvents) PublishVersionCreated(_ context.Context, v *entity.DocumentVersion) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.published = append(e.published, v)
}

func newTestService(repo *fakeVersionRepo, chunkThreshold int) *Service {
	cfg := &config.Config{}
	cfg.Versioning.ChunkThreshold = chunkThreshold
	cfg.Versioning.MaxCreateRetries = 3
	cfg.Versioning.ReconstructCacheTTL = time.Minute
	return NewService(
		repo,
		fakeTransactor{},
		domainservice.NewDeltaCodec(),
		domainservice.NewSnapshotPolicy(chunkThreshold),
		cfg,
		nil,
		nil,
	)
}

func mustCreate(t *testing.T, svc *Service, docID, content string, changeType entity.ChangeType) *entity.DocumentVersion {
	t.Helper()
	v, err := svc.CreateVersion(context.Background(), CreateParams{
		DocumentID: docID,
		Content:    content,
		AuthorID:   "author-1",
		ChangeType: changeType,
	})
	require.NoError(t, err)
	require.NotNil(t, v)
	return v
}

func TestCreateVersionFirstIsSnapshot(t *testing.T) {
	repo := newFakeVersionRepo()
	svc := newTestService(repo, 10)

	v := mustCreate(t, svc, "doc-1", "first draft", entity.ChangeTypeManualSave)

	assert.Equal(t, 1, v.VersionNumber)
	assert.True(t, v.IsSnapshot)
	require.NotNil(t, v.ContentSnapshot)
	assert.Equal(t, "first draft", *v.ContentSnapshot)
	assert.Nil(t, v.ContentDelta)
	assert.Equal(t, 1, v.SnapshotBaseVersion)

	meta, err := svc.GetMetadata(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, meta.CurrentVersion)
	assert.Equal(t, 1, meta.LastSnapshotVersion)
	assert.Equal(t, 1, meta.TotalVersions)
}

func TestCreateVersionSecondIsDelta(t *testing.T) {
	repo := newFakeVersionRepo()
	svc := newTestService(repo, 10)

	mustCreate(t, svc, "doc-1", "Hello", entity.ChangeTypeManualSave)
	v := mustCreate(t, svc, "doc-1", "Hello world", entity.ChangeTypeAutoSave)

	assert.Equal(t, 2, v.VersionNumber)
	assert.False(t, v.IsSnapshot)
	assert.Nil(t, v.ContentSnapshot)
	require.NotNil(t, v.ContentDelta)
	assert.Equal(t, 1, v.ContentDelta.BaseVersion)
	assert.Equal(t, 1, v.SnapshotBaseVersion)

	require.Len(t, v.ContentDelta.Operations, 1)
	op := v.ContentDelta.Operations[0]
	assert.Equal(t, entity.OpInsert, op.Type)
	assert.Equal(t, 5, op.Position)
	assert.Equal(t, " world", op.Text)
}

func TestSnapshotCadenceAtThreshold(t *testing.T) {
	const threshold = 3
	repo := newFakeVersionRepo()
	svc := newTestService(repo, threshold)

	// v1 快照；v2..v4 增量；v5 在阈值处再次快照
	var latest *entity.DocumentVersion
	for i := 1; i <= threshold+2; i++ {
		latest = mustCreate(t, svc, "doc-1", fmt.Sprintf("content revision %d", i), entity.ChangeTypeAutoSave)
	}
	require.Equal(t, threshold+2, latest.VersionNumber)

	snapshots := 0
	for n := 1; n <= threshold+2; n++ {
		v, err := repo.GetByNumber(context.Background(), "doc-1", n)
		require.NoError(t, err)
		require.NotNil(t, v)
		switch n {
		case 1, threshold + 2:
			assert.True(t, v.IsSnapshot, "version %d should be a snapshot", n)
			assert.Equal(t, n, v.SnapshotBaseVersion)
			snapshots++
		default:
			assert.False(t, v.IsSnapshot, "version %d should be a delta", n)
			assert.Equal(t, 1, v.SnapshotBaseVersion)
		}
	}
	assert.Equal(t, 2, snapshots)

	meta, err := svc.GetMetadata(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, threshold+2, meta.LastSnapshotVersion)
}

func TestReconstructEveryVersion(t *testing.T) {
	const total = 12
	repo := newFakeVersionRepo()
	svc := newTestService(repo, 4)

	contents := make([]string, total+1)
	text := "The quick brown fox"
	for i := 1; i <= total; i++ {
		text = fmt.Sprintf("%s; edit %d", text, i)
		contents[i] = text
		mustCreate(t, svc, "doc-1", text, entity.ChangeTypeAutoSave)
	}

	// 任意历史版本都能精确重建，与写入时的内容逐字节一致
	for i := 1; i <= total; i++ {
		got, err := svc.ReconstructVersion(context.Background(), "doc-1", i)
		require.NoError(t, err, "version %d", i)
		assert.Equal(t, contents[i], got, "version %d", i)
	}
}

func TestReconstructChainBoundedByThreshold(t *testing.T) {
	const threshold = 4
	repo := newFakeVersionRepo()
	svc := newTestService(repo, threshold)

	for i := 1; i <= 15; i++ {
		mustCreate(t, svc, "doc-1", fmt.Sprintf("revision %d", i), entity.ChangeTypeAutoSave)
	}

	// 每个增量版本到其基准快照的距离不超过阈值
	for n := 1; n <= 15; n++ {
		v, err := repo.GetByNumber(context.Background(), "doc-1", n)
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.LessOrEqual(t, n-v.SnapshotBaseVersion, threshold, "version %d", n)

		base, err := repo.GetByNumber(context.Background(), "doc-1", v.SnapshotBaseVersion)
		require.NoError(t, err)
		require.NotNil(t, base)
		assert.True(t, base.IsSnapshot)
	}
}

func TestCreateVersionSuppressesNoOpSave(t *testing.T) {
	repo := newFakeVersionRepo()
	svc := newTestService(repo, 10)

	mustCreate(t, svc, "doc-1", "same content", entity.ChangeTypeManualSave)

	for _, ct := range []entity.ChangeType{entity.ChangeTypeManualSave, entity.ChangeTypeAutoSave} {
		v, err := svc.CreateVersion(context.Background(), CreateParams{
			DocumentID: "doc-1",
			Content:    "same content",
			ChangeType: ct,
		})
		require.NoError(t, err)
		assert.Nil(t, v, "%s with unchanged content should not create a version", ct)
	}

	meta, err := svc.GetMetadata(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, meta.CurrentVersion)
	assert.Equal(t, 1, meta.TotalVersions)
}

func TestCreateVersionRecordsNoOpMilestone(t *testing.T) {
	repo := newFakeVersionRepo()
	svc := newTestService(repo, 10)

	mustCreate(t, svc, "doc-1", "same content", entity.ChangeTypeManualSave)

	// milestone 与 ai-action 表达显式标记意图，内容未变也要记录
	v := mustCreate(t, svc, "doc-1", "same content", entity.ChangeTypeMilestone)
	assert.Equal(t, 2, v.VersionNumber)

	v = mustCreate(t, svc, "doc-1", "same content", entity.ChangeTypeAIAction)
	assert.Equal(t, 3, v.VersionNumber)
}

func TestCreateVersionRollbackAlwaysSnapshots(t *testing.T) {
	repo := newFakeVersionRepo()
	svc := newTestService(repo, 10)

	mustCreate(t, svc, "doc-1", "original", entity.ChangeTypeManualSave)
	mustCreate(t, svc, "doc-1", "edited", entity.ChangeTypeAutoSave)

	v := mustCreate(t, svc, "doc-1", "original", entity.ChangeTypeRollback)
	assert.Equal(t, 3, v.VersionNumber)
	assert.True(t, v.IsSnapshot)
	require.NotNil(t, v.ContentSnapshot)
	assert.Equal(t, "original", *v.ContentSnapshot)
}

func TestCreateVersionForceSnapshot(t *testing.T) {
	repo := newFakeVersionRepo()
	svc := newTestService(repo, 10)

	mustCreate(t, svc, "doc-1", "v1", entity.ChangeTypeManualSave)

	v, err := svc.CreateVersion(context.Background(), CreateParams{
		DocumentID:    "doc-1",
		Content:       "v2",
		ChangeType:    entity.ChangeTypeManualSave,
		ForceSnapshot: true,
	})
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.True(t, v.IsSnapshot)
	assert.Equal(t, 2, v.SnapshotBaseVersion)
}

func TestCreateVersionRetriesOnConflict(t *testing.T) {
	repo := newFakeVersionRepo()
	svc := newTestService(repo, 10)

	mustCreate(t, svc, "doc-1", "base", entity.ChangeTypeManualSave)

	// 竞争者抢先占用 v2，本次写入重试后落在 v3
	repo.conflictsToInject = 1
	v := mustCreate(t, svc, "doc-1", "mine", entity.ChangeTypeManualSave)
	assert.Equal(t, 3, v.VersionNumber)

	rival, err := repo.GetByNumber(context.Background(), "doc-1", 2)
	require.NoError(t, err)
	require.NotNil(t, rival)
	assert.Equal(t, "rival-writer", rival.AuthorID)
}

func TestCreateVersionConflictRetriesExhausted(t *testing.T) {
	repo := newFakeVersionRepo()
	svc := newTestService(repo, 10)
	repo.alwaysConflict = true

	v, err := svc.CreateVersion(context.Background(), CreateParams{
		DocumentID: "doc-1",
		Content:    "content",
		ChangeType: entity.ChangeTypeManualSave,
	})
	require.Error(t, err)
	assert.Nil(t, v)
	assert.True(t, errors.IsCode(err, errors.CodeVersionCreateFailed))
	assert.True(t, errors.IsCode(err, errors.CodeVersionConflict))
}

func TestCreateVersionRejectsInvalidChangeType(t *testing.T) {
	svc := newTestService(newFakeVersionRepo(), 10)

	_, err := svc.CreateVersion(context.Background(), CreateParams{
		DocumentID: "doc-1",
		Content:    "content",
		ChangeType: "checkpoint",
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestReconstructVersionNotFound(t *testing.T) {
	repo := newFakeVersionRepo()
	svc := newTestService(repo, 10)

	mustCreate(t, svc, "doc-1", "content", entity.ChangeTypeManualSave)

	_, err := svc.ReconstructVersion(context.Background(), "doc-1", 99)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeVersionNotFound))

	_, err = svc.ReconstructVersion(context.Background(), "doc-1", 0)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeVersionNotFound))
}

func TestReconstructCorruptedDeltaFailsLoudly(t *testing.T) {
	repo := newFakeVersionRepo()
	svc := newTestService(repo, 10)

	mustCreate(t, svc, "doc-1", "Hello", entity.ChangeTypeManualSave)
	mustCreate(t, svc, "doc-1", "Hello world", entity.ChangeTypeAutoSave)
	mustCreate(t, svc, "doc-1", "Hello world!", entity.ChangeTypeAutoSave)

	// 把 v2 的增量改成对其基准内容越界的操作
	repo.corrupt("doc-1", 2, func(v *entity.DocumentVersion) {
		v.ContentDelta = &entity.VersionDelta{
			BaseVersion: 1,
			Operations: []entity.DeltaOperation{
				{Type: entity.OpDelete, Position: 500, Length: 10},
			},
		}
	})

	_, err := svc.ReconstructVersion(context.Background(), "doc-1", 3)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInconsistentHistory))
}

func TestReconstructMissingChainLinkFailsLoudly(t *testing.T) {
	repo := newFakeVersionRepo()
	svc := newTestService(repo, 10)

	mustCreate(t, svc, "doc-1", "one", entity.ChangeTypeManualSave)
	mustCreate(t, svc, "doc-1", "one two", entity.ChangeTypeAutoSave)
	mustCreate(t, svc, "doc-1", "one two three", entity.ChangeTypeAutoSave)

	repo.drop("doc-1", 2)

	_, err := svc.ReconstructVersion(context.Background(), "doc-1", 3)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInconsistentHistory))
}

func TestReconstructMissingBaseSnapshotFailsLoudly(t *testing.T) {
	repo := newFakeVersionRepo()
	svc := newTestService(repo, 10)

	mustCreate(t, svc, "doc-1", "one", entity.ChangeTypeManualSave)
	mustCreate(t, svc, "doc-1", "one two", entity.ChangeTypeAutoSave)

	repo.drop("doc-1", 1)

	_, err := svc.ReconstructVersion(context.Background(), "doc-1", 2)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInconsistentHistory))
}

func TestReconstructUsesCache(t *testing.T) {
	repo := newFakeVersionRepo()
	svc := newTestService(repo, 10)
	svc.cache = &fakeCache{}

	mustCreate(t, svc, "doc-1", "Hello", entity.ChangeTypeManualSave)
	mustCreate(t, svc, "doc-1", "Hello world", entity.ChangeTypeAutoSave)

	first, err := svc.ReconstructVersion(context.Background(), "doc-1", 2)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", first)

	callsAfterFirst := repo.getByNumberCalls
	second, err := svc.ReconstructVersion(context.Background(), "doc-1", 2)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, callsAfterFirst, repo.getByNumberCalls, "cached reconstruction should not hit the store")
}

func TestReconstructCachePropagatesBusinessErrors(t *testing.T) {
	repo := newFakeVersionRepo()
	svc := newTestService(repo, 10)
	svc.cache = &fakeCache{}

	_, err := svc.ReconstructVersion(context.Background(), "missing-doc", 1)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeVersionNotFound))
}

func TestCreateVersionPublishesEvent(t *testing.T) {
	repo := newFakeVersionRepo()
	svc := newTestService(repo, 10)
	events := &fakeEvents{}
	svc.events = events

	mustCreate(t, svc, "doc-1", "content", entity.ChangeTypeManualSave)
	require.Len(t, events.published, 1)
	assert.Equal(t, 1, events.published[0].VersionNumber)

	// 被跳过的保存不发布事件
	_, err := svc.CreateVersion(context.Background(), CreateParams{
		DocumentID: "doc-1",
		Content:    "content",
		ChangeType: entity.ChangeTypeManualSave,
	})
	require.NoError(t, err)
	assert.Len(t, events.published, 1)
}

func TestGetMetadataUnknownDocument(t *testing.T) {
	svc := newTestService(newFakeVersionRepo(), 10)

	_, err := svc.GetMetadata(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestListVersionsNewestFirst(t *testing.T) {
	repo := newFakeVersionRepo()
	svc := newTestService(repo, 10)

	for i := 1; i <= 5; i++ {
		mustCreate(t, svc, "doc-1", fmt.Sprintf("revision %d", i), entity.ChangeTypeAutoSave)
	}

	result, err := svc.ListVersions(context.Background(), "doc-1", repository.NewPagination(1, 3))
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Total)
	require.Len(t, result.Items, 3)
	assert.Equal(t, 5, result.Items[0].VersionNumber)
	assert.Equal(t, 4, result.Items[1].VersionNumber)
	assert.Equal(t, 3, result.Items[2].VersionNumber)
}

package document

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-doc-history-api/internal/application/version"
	"z-doc-history-api/internal/config"
	"z-doc-history-api/internal/domain/entity"
	"z-doc-history-api/internal/domain/repository"
	domainservice "z-doc-history-api/internal/domain/service"
	"z-doc-history-api/pkg/errors"
)

type fakeDocumentRepo struct {
	mu   sync.Mutex
	docs map[string]*entity.Document
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{docs: make(map[string]*entity.Document)}
}

func (f *fakeDocumentRepo) Create(_ context.Context, doc *entity.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *doc
	f.docs[doc.ID] = &cp
	return nil
}

func (f *fakeDocumentRepo) GetByID(_ context.Context, id string) (*entity.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, nil
	}
	cp := *doc
	return &cp, nil
}

func (f *fakeDocumentRepo) Update(_ context.Context, doc *entity.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *doc
	f.docs[doc.ID] = &cp
	return nil
}

func (f *fakeDocumentRepo) UpdateContentVersion(_ context.Context, id, content string, v int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return errors.New(errors.CodeDocumentNotFound, "document not found")
	}
	doc.Content = content
	doc.WordCount = len([]rune(content))
	doc.Version = v
	doc.UpdatedAt = time.Now()
	return nil
}

func (f *fakeDocumentRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, id)
	return nil
}

func (f *fakeDocumentRepo) List(_ context.Context, projectID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Document], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*entity.Document
	for _, doc := range f.docs {
		if projectID == "" || doc.ProjectID == projectID {
			cp := *doc
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return repository.NewPagedResult(all, int64(len(all)), pagination), nil
}

type memVersionRepo struct {
	mu       sync.Mutex
	versions map[string]map[int]*entity.DocumentVersion
	meta     map[string]*entity.VersionMetadata
}

func newMemVersionRepo() *memVersionRepo {
	return &memVersionRepo{
		versions: make(map[string]map[int]*entity.DocumentVersion),
		meta:     make(map[string]*entity.VersionMetadata),
	}
}

func (m *memVersionRepo) Create(_ context.Context, v *entity.DocumentVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.versions[v.DocumentID] == nil {
		m.versions[v.DocumentID] = make(map[int]*entity.DocumentVersion)
	}
	if _, exists := m.versions[v.DocumentID][v.VersionNumber]; exists {
		return errors.New(errors.CodeVersionConflict, "version number already exists")
	}
	cp := *v
	m.versions[v.DocumentID][v.VersionNumber] = &cp
	return nil
}

func (m *memVersionRepo) GetByNumber(_ context.Context, documentID string, versionNumber int) (*entity.DocumentVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.versions[documentID][versionNumber]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

func (m *memVersionRepo) ListRange(_ context.Context, documentID string, fromVersion, toVersion int) ([]*entity.DocumentVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.DocumentVersion
	for n, v := range m.versions[documentID] {
		if n >= fromVersion && n <= toVersion {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber < out[j].VersionNumber })
	return out, nil
}

func (m *memVersionRepo) List(_ context.Context, documentID string, pagination repository.Pagination) (*repository.PagedResult[*entity.DocumentVersion], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*entity.DocumentVersion
	for _, v := range m.versions[documentID] {
		cp := *v
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].VersionNumber > all[j].VersionNumber })
	return repository.NewPagedResult(all, int64(len(all)), pagination), nil
}

func (m *memVersionRepo) GetLatestNumber(_ context.Context, documentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := 0
	for n := range m.versions[documentID] {
		if n > latest {
			latest = n
		}
	}
	return latest, nil
}

func (m *memVersionRepo) GetMetadata(_ context.Context, documentID string) (*entity.VersionMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.meta[documentID]
	if !ok {
		return nil, nil
	}
	cp := *meta
	return &cp, nil
}

func (m *memVersionRepo) UpsertMetadata(_ context.Context, meta *entity.VersionMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *meta
	m.meta[meta.DocumentID] = &cp
	return nil
}

type passTransactor struct{}

func (passTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestServices(t *testing.T) (*Service, *version.Service) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Versioning.ChunkThreshold = 5
	cfg.Versioning.MaxCreateRetries = 3
	cfg.Versioning.ReconstructCacheTTL = time.Minute

	versionSvc := version.NewService(
		newMemVersionRepo(),
		passTransactor{},
		domainservice.NewDeltaCodec(),
		domainservice.NewSnapshotPolicy(cfg.Versioning.ChunkThreshold),
		cfg,
		nil,
		nil,
	)
	return NewService(newFakeDocumentRepo(), versionSvc), versionSvc
}

func TestCreateDocumentWritesInitialSnapshot(t *testing.T) {
	svc, versionSvc := newTestServices(t)

	doc, err := svc.Create(context.Background(), CreateParams{
		ProjectID: "project-1",
		Title:     "Chapter One",
		Content:   "It was a dark and stormy night.",
		CreatedBy: "writer-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, doc.ID)
	assert.Equal(t, 1, doc.Version)
	assert.Equal(t, "It was a dark and stormy night.", doc.Content)

	meta, err := versionSvc.GetMetadata(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, meta.CurrentVersion)
	assert.Equal(t, 1, meta.LastSnapshotVersion)

	content, err := versionSvc.ReconstructVersion(context.Background(), doc.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, doc.Content, content)
}

func TestCreateDocumentRequiresTitle(t *testing.T) {
	svc, _ := newTestServices(t)

	_, err := svc.Create(context.Background(), CreateParams{Content: "content"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestSaveContentAdvancesVersion(t *testing.T) {
	svc, versionSvc := newTestServices(t)

	doc, err := svc.Create(context.Background(), CreateParams{
		Title: "Draft", Content: "Hello", CreatedBy: "writer-1",
	})
	require.NoError(t, err)

	saved, err := svc.SaveContent(context.Background(), SaveParams{
		DocumentID: doc.ID,
		Content:    "Hello world",
		AuthorID:   "writer-1",
		ChangeType: entity.ChangeTypeManualSave,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Version)
	assert.Equal(t, "Hello world", saved.Content)

	content, err := versionSvc.ReconstructVersion(context.Background(), doc.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", content)
}

func TestSaveContentNoOpKeepsVersion(t *testing.T) {
	svc, _ := newTestServices(t)

	doc, err := svc.Create(context.Background(), CreateParams{
		Title: "Draft", Content: "Hello", CreatedBy: "writer-1",
	})
	require.NoError(t, err)

	saved, err := svc.SaveContent(context.Background(), SaveParams{
		DocumentID: doc.ID,
		Content:    "Hello",
		ChangeType: entity.ChangeTypeAutoSave,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Version, "unchanged auto-save must not advance the version")

	got, err := svc.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
}

func TestSaveContentUnknownDocument(t *testing.T) {
	svc, _ := newTestServices(t)

	_, err := svc.SaveContent(context.Background(), SaveParams{
		DocumentID: "missing",
		Content:    "content",
		ChangeType: entity.ChangeTypeManualSave,
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeDocumentNotFound))
}

func TestRollbackAppendsSnapshotVersion(t *testing.T) {
	svc, versionSvc := newTestServices(t)

	doc, err := svc.Create(context.Background(), CreateParams{
		Title: "Draft", Content: "version one", CreatedBy: "writer-1",
	})
	require.NoError(t, err)

	for _, content := range []string{"version two", "version three"} {
		_, err = svc.SaveContent(context.Background(), SaveParams{
			DocumentID: doc.ID,
			Content:    content,
			ChangeType: entity.ChangeTypeManualSave,
		})
		require.NoError(t, err)
	}

	rolled, err := svc.Rollback(context.Background(), doc.ID, 1, "writer-1")
	require.NoError(t, err)
	assert.Equal(t, 4, rolled.Version, "rollback appends, never truncates history")
	assert.Equal(t, "version one", rolled.Content)

	// 回滚版本是自包含快照
	content, err := versionSvc.ReconstructVersion(context.Background(), doc.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, "version one", content)

	// 原有历史原样保留
	content, err = versionSvc.ReconstructVersion(context.Background(), doc.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, "version three", content)
}

func TestRollbackToUnknownVersion(t *testing.T) {
	svc, _ := newTestServices(t)

	doc, err := svc.Create(context.Background(), CreateParams{
		Title: "Draft", Content: "content", CreatedBy: "writer-1",
	})
	require.NoError(t, err)

	_, err = svc.Rollback(context.Background(), doc.ID, 42, "writer-1")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeVersionNotFound))

	got, err := svc.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version, "failed rollback must not touch the document")
}

func TestUpdateTitleDoesNotCreateVersion(t *testing.T) {
	svc, versionSvc := newTestServices(t)

	doc, err := svc.Create(context.Background(), CreateParams{
		Title: "Old Title", Content: "content", CreatedBy: "writer-1",
	})
	require.NoError(t, err)

	updated, err := svc.UpdateTitle(context.Background(), doc.ID, "New Title")
	require.NoError(t, err)
	assert.Equal(t, "New Title", updated.Title)
	assert.Equal(t, 1, updated.Version)

	meta, err := versionSvc.GetMetadata(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, meta.TotalVersions)
}

func TestDeleteDocument(t *testing.T) {
	svc, _ := newTestServices(t)

	doc, err := svc.Create(context.Background(), CreateParams{
		Title: "Draft", Content: "content", CreatedBy: "writer-1",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), doc.ID))

	_, err = svc.Get(context.Background(), doc.ID)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeDocumentNotFound))

	err = svc.Delete(context.Background(), doc.ID)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeDocumentNotFound))
}

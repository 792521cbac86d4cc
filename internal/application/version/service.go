// Package version 实现文档版本历史引擎的编排层：
// 决定版本表示形式（快照/增量）、写入版本记录与聚合元数据、
// 以及从最近快照回放增量链重建任意历史版本。
package version

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"z-doc-history-api/internal/config"
	"z-doc-history-api/internal/domain/entity"
	"z-doc-history-api/internal/domain/repository"
	domainservice "z-doc-history-api/internal/domain/service"
	"z-doc-history-api/pkg/errors"
	"z-doc-history-api/pkg/logger"
	"z-doc-history-api/pkg/metrics"
)

var tracer = otel.Tracer("application.version")

// ReconstructCache 重建结果缓存。
// 版本记录写入后不可变，同一 (documentID, versionNumber) 的重建结果
// 永远是字节一致的，因此可以安全缓存。
type ReconstructCache interface {
	GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (interface{}, error)) ([]byte, error)
}

// EventPublisher 版本事件发布接口
type EventPublisher interface {
	PublishVersionCreated(ctx context.Context, v *entity.DocumentVersion)
}

// CreateParams 创建版本的输入参数
type CreateParams struct {
	DocumentID        string
	Content           string
	AuthorID          string
	ChangeType        entity.ChangeType
	ChangeDescription string
	Metadata          map[string]any
	ForceSnapshot     bool
}

// Service 版本历史服务
type Service struct {
	repo       repository.VersionRepository
	tx         repository.Transactor
	codec      *domainservice.DeltaCodec
	policy     *domainservice.SnapshotPolicy
	cache      ReconstructCache
	events     EventPublisher
	cacheTTL   time.Duration
	maxRetries int
	now        func() time.Time
}

// NewService 创建版本历史服务。cache 与 events 可为 nil。
func NewService(
	repo repository.VersionRepository,
	tx repository.Transactor,
	codec *domainservice.DeltaCodec,
	policy *domainservice.SnapshotPolicy,
	cfg *config.Config,
	cache ReconstructCache,
	events EventPublisher,
) *Service {
	maxRetries := cfg.Versioning.MaxCreateRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	cacheTTL := cfg.Versioning.ReconstructCacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &Service{
		repo:       repo,
		tx:         tx,
		codec:      codec,
		policy:     policy,
		cache:      cache,
		events:     events,
		cacheTTL:   cacheTTL,
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// CreateVersion 为文档记录一个新版本。
//
// 内容与当前最新内容一致且变更类型为 manual-save/auto-save 时，
// 不产生任何版本记录并返回 (nil, nil)，调用方不得推进文档的冗余版本号。
//
// 版本号由存储层唯一约束仲裁：并发创建竞争同一版本号时失败方
// 重新加载最新版本号并重试整个创建流程，重试耗尽后返回创建失败错误。
func (s *Service) CreateVersion(ctx context.Context, params CreateParams) (*entity.DocumentVersion, error) {
	ctx, span := tracer.Start(ctx, "version.Service.CreateVersion")
	defer span.End()
	span.SetAttributes(
		attribute.String("document_id", params.DocumentID),
		attribute.String("change_type", string(params.ChangeType)),
	)

	if params.DocumentID == "" {
		return nil, errors.New(errors.CodeInvalidParam, "document id is required")
	}
	if !params.ChangeType.IsValid() {
		return nil, errors.New(errors.CodeInvalidParam,
			fmt.Sprintf("unknown change type: %s", params.ChangeType))
	}

	var created *entity.DocumentVersion

	attempt := func() error {
		created = nil
		return s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
			return s.createOnce(txCtx, params, &created)
		})
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.maxRetries)),
		ctx,
	)
	if err := backoff.Retry(attempt, bo); err != nil {
		span.RecordError(err)
		if errors.IsCode(err, errors.CodeVersionConflict) {
			return nil, errors.Wrap(err, errors.CodeVersionCreateFailed,
				"version creation failed after retries")
		}
		return nil, err
	}

	if created == nil {
		// no-op 保存被跳过
		metrics.VersionCreateSuppressed.WithLabelValues(string(params.ChangeType)).Inc()
		return nil, nil
	}

	representation := "delta"
	if created.IsSnapshot {
		representation = "snapshot"
	}
	metrics.VersionCreateTotal.WithLabelValues(string(params.ChangeType), representation).Inc()
	if created.ContentDelta != nil {
		metrics.VersionDeltaOperations.Observe(float64(len(created.ContentDelta.Operations)))
	}

	if s.events != nil {
		s.events.PublishVersionCreated(ctx, created)
	}

	return created, nil
}

// createOnce 执行一次完整的创建序列；版本号冲突返回可重试错误，
// 其余失败均为永久错误。
func (s *Service) createOnce(ctx context.Context, params CreateParams, out **entity.DocumentVersion) error {
	latest, err := s.repo.GetLatestNumber(ctx, params.DocumentID)
	if err != nil {
		return backoff.Permanent(err)
	}

	previousContent := ""
	var prev *entity.DocumentVersion
	if latest > 0 {
		prev, err = s.repo.GetByNumber(ctx, params.DocumentID, latest)
		if err != nil {
			return backoff.Permanent(err)
		}
		if prev == nil {
			return backoff.Permanent(errors.New(errors.CodeInconsistentHistory,
				fmt.Sprintf("latest version %d not found for document %s", latest, params.DocumentID)))
		}
		previousContent, err = s.reconstruct(ctx, params.DocumentID, latest)
		if err != nil {
			return backoff.Permanent(err)
		}

		if s.policy.SuppressNoOp(params.ChangeType, previousContent, params.Content) {
			return nil
		}
	}

	next := latest + 1
	isFirst := latest == 0

	// 最近前置快照：前一版本是快照时取其版本号，否则沿用其基准指针
	lastSnapshot := 0
	if prev != nil {
		if prev.IsSnapshot {
			lastSnapshot = prev.VersionNumber
		} else {
			lastSnapshot = prev.SnapshotBaseVersion
		}
	}

	record := &entity.DocumentVersion{
		DocumentID:        params.DocumentID,
		VersionNumber:     next,
		AuthorID:          params.AuthorID,
		ChangeType:        params.ChangeType,
		ChangeDescription: params.ChangeDescription,
		Metadata:          params.Metadata,
		CreatedAt:         s.now(),
	}

	versionsSinceSnapshot := latest - lastSnapshot
	if s.policy.ShouldSnapshot(params.ChangeType, isFirst, versionsSinceSnapshot, params.ForceSnapshot) {
		content := params.Content
		record.IsSnapshot = true
		record.ContentSnapshot = &content
		record.SnapshotBaseVersion = next
	} else {
		record.ContentDelta = s.codec.ComputeDelta(previousContent, params.Content, latest)
		record.SnapshotBaseVersion = lastSnapshot
	}

	if err := record.Validate(); err != nil {
		return backoff.Permanent(errors.Wrap(err, errors.CodeInconsistentHistory,
			"built version record violates structural invariant"))
	}

	if err := s.repo.Create(ctx, record); err != nil {
		if errors.IsCode(err, errors.CodeVersionConflict) {
			metrics.VersionCreateConflicts.Inc()
			logger.Warn(ctx, "version number conflict, retrying",
				"document_id", params.DocumentID, "version", next)
			return err
		}
		return backoff.Permanent(err)
	}

	meta, err := s.repo.GetMetadata(ctx, params.DocumentID)
	if err != nil {
		return backoff.Permanent(err)
	}
	if meta == nil {
		meta = &entity.VersionMetadata{DocumentID: params.DocumentID}
	}
	meta.CurrentVersion = next
	if record.IsSnapshot {
		meta.LastSnapshotVersion = next
	}
	meta.TotalVersions++
	meta.LastModifiedAt = record.CreatedAt
	meta.LastModifiedBy = params.AuthorID
	if err := s.repo.UpsertMetadata(ctx, meta); err != nil {
		return backoff.Permanent(err)
	}

	*out = record
	return nil
}

// ReconstructVersion 重建指定历史版本的精确内容。
// 记录不可变，同一输入的重建结果始终字节一致。
func (s *Service) ReconstructVersion(ctx context.Context, documentID string, versionNumber int) (string, error) {
	ctx, span := tracer.Start(ctx, "version.Service.ReconstructVersion")
	defer span.End()
	span.SetAttributes(
		attribute.String("document_id", documentID),
		attribute.Int("version_number", versionNumber),
	)

	start := time.Now()
	content, err := s.reconstructCached(ctx, documentID, versionNumber)
	metrics.ReconstructDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		metrics.ReconstructTotal.WithLabelValues("error").Inc()
		return "", err
	}
	metrics.ReconstructTotal.WithLabelValues("ok").Inc()
	return content, nil
}

func (s *Service) reconstructCached(ctx context.Context, documentID string, versionNumber int) (string, error) {
	if s.cache == nil {
		return s.reconstruct(ctx, documentID, versionNumber)
	}

	key := fmt.Sprintf("reconstruct:%s:%d", documentID, versionNumber)
	raw, err := s.cache.GetOrLoadSafe(ctx, key, s.cacheTTL, func() (interface{}, error) {
		return s.reconstruct(ctx, documentID, versionNumber)
	})
	if err != nil {
		if errors.IsAppError(err) {
			// loader 产生的业务错误，原样上抛
			return "", err
		}
		// 缓存基础设施故障时退化为直接重建
		logger.Warn(ctx, "reconstruct cache unavailable, falling back",
			"document_id", documentID, "error", err.Error())
		return s.reconstruct(ctx, documentID, versionNumber)
	}

	var content string
	if err := json.Unmarshal(raw, &content); err != nil {
		return s.reconstruct(ctx, documentID, versionNumber)
	}
	return content, nil
}

// reconstruct 定位目标版本的基准快照，按版本号升序回放中间的增量链。
// 任何结构性破损（链条缺口、链中出现意外快照、增量无法干净应用）
// 都以不一致历史错误大声失败，绝不猜测内容。
func (s *Service) reconstruct(ctx context.Context, documentID string, versionNumber int) (string, error) {
	if versionNumber < 1 {
		return "", errors.New(errors.CodeVersionNotFound,
			fmt.Sprintf("version %d does not exist", versionNumber))
	}

	target, err := s.repo.GetByNumber(ctx, documentID, versionNumber)
	if err != nil {
		return "", err
	}
	if target == nil {
		return "", errors.New(errors.CodeVersionNotFound,
			fmt.Sprintf("version %d not found for document %s", versionNumber, documentID))
	}

	if target.IsSnapshot {
		if target.ContentSnapshot == nil {
			return "", errors.New(errors.CodeInconsistentHistory,
				fmt.Sprintf("snapshot version %d has no content", versionNumber))
		}
		metrics.ReconstructChainLength.Observe(0)
		return *target.ContentSnapshot, nil
	}

	base := target.SnapshotBaseVersion
	if base < 1 || base >= versionNumber {
		return "", errors.New(errors.CodeInconsistentHistory,
			fmt.Sprintf("version %d has invalid snapshot base %d", versionNumber, base))
	}

	records, err := s.repo.ListRange(ctx, documentID, base, versionNumber)
	if err != nil {
		return "", err
	}
	if len(records) == 0 || records[0].VersionNumber != base || !records[0].IsSnapshot || records[0].ContentSnapshot == nil {
		return "", errors.New(errors.CodeInconsistentHistory,
			fmt.Sprintf("delta chain of version %d does not terminate at snapshot %d", versionNumber, base))
	}

	content := *records[0].ContentSnapshot
	expected := base + 1
	for _, rec := range records[1:] {
		if rec.VersionNumber != expected {
			return "", errors.New(errors.CodeInconsistentHistory,
				fmt.Sprintf("version %d missing from delta chain [%d,%d]", expected, base, versionNumber))
		}
		if rec.IsSnapshot {
			// 基准指针若维护正确不应出现；出现即元数据不一致，必须大声失败
			return "", errors.New(errors.CodeInconsistentHistory,
				fmt.Sprintf("unexpected snapshot at version %d inside delta chain [%d,%d]", rec.VersionNumber, base, versionNumber))
		}
		if rec.ContentDelta == nil {
			return "", errors.New(errors.CodeInconsistentHistory,
				fmt.Sprintf("delta version %d has no operations", rec.VersionNumber))
		}
		applied, err := s.codec.ApplyDelta(content, rec.ContentDelta)
		if err != nil {
			// 重建期间的畸形增量意味着既有数据损坏，而非瞬时故障
			return "", errors.Wrap(err, errors.CodeInconsistentHistory,
				fmt.Sprintf("delta of version %d does not apply to its base content", rec.VersionNumber))
		}
		content = applied
		expected++
	}
	if expected != versionNumber+1 {
		return "", errors.New(errors.CodeInconsistentHistory,
			fmt.Sprintf("delta chain [%d,%d] is incomplete", base, versionNumber))
	}

	metrics.ReconstructChainLength.Observe(float64(len(records) - 1))
	return content, nil
}

// GetMetadata 获取文档版本聚合元数据
func (s *Service) GetMetadata(ctx context.Context, documentID string) (*entity.VersionMetadata, error) {
	ctx, span := tracer.Start(ctx, "version.Service.GetMetadata")
	defer span.End()
	span.SetAttributes(attribute.String("document_id", documentID))

	meta, err := s.repo.GetMetadata(ctx, documentID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if meta == nil {
		return nil, errors.New(errors.CodeNotFound,
			fmt.Sprintf("no version history for document %s", documentID))
	}
	return meta, nil
}

// ListVersions 分页获取版本摘要（不含内容）
func (s *Service) ListVersions(ctx context.Context, documentID string, pagination repository.Pagination) (*repository.PagedResult[*entity.DocumentVersion], error) {
	ctx, span := tracer.Start(ctx, "version.Service.ListVersions")
	defer span.End()
	span.SetAttributes(attribute.String("document_id", documentID))

	result, err := s.repo.List(ctx, documentID, pagination)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return result, nil
}

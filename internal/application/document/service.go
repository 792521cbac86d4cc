// Package document 实现文档应用服务：文档 CRUD 及与版本历史引擎的衔接。
// 文档行上的 Version 字段是冗余缓存，只有在版本记录成功落库后才推进，
// 保证版本历史是文档内容演进的权威来源。
package document

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"z-doc-history-api/internal/application/version"
	"z-doc-history-api/internal/domain/entity"
	"z-doc-history-api/internal/domain/repository"
	"z-doc-history-api/pkg/errors"
	"z-doc-history-api/pkg/logger"
)

var tracer = otel.Tracer("application.document")

// CreateParams 创建文档参数
type CreateParams struct {
	ProjectID string
	Title     string
	Content   string
	CreatedBy string
}

// SaveParams 保存文档内容参数
type SaveParams struct {
	DocumentID        string
	Content           string
	AuthorID          string
	ChangeType        entity.ChangeType
	ChangeDescription string
	Metadata          map[string]any
}

// Service 文档应用服务
type Service struct {
	repo     repository.DocumentRepository
	versions *version.Service
}

// NewService 创建文档应用服务
func NewService(repo repository.DocumentRepository, versions *version.Service) *Service {
	return &Service{
		repo:     repo,
		versions: versions,
	}
}

// Create 创建文档并写入初始版本（版本 1 始终是完整快照）
func (s *Service) Create(ctx context.Context, params CreateParams) (*entity.Document, error) {
	ctx, span := tracer.Start(ctx, "document.Service.Create")
	defer span.End()

	if params.Title == "" {
		return nil, errors.New(errors.CodeInvalidParam, "title is required")
	}

	doc := entity.NewDocument(params.ProjectID, params.Title, params.CreatedBy)
	doc.SetContent(params.Content)
	if err := s.repo.Create(ctx, doc); err != nil {
		span.RecordError(err)
		return nil, err
	}

	v, err := s.versions.CreateVersion(ctx, version.CreateParams{
		DocumentID:        doc.ID,
		Content:           params.Content,
		AuthorID:          params.CreatedBy,
		ChangeType:        entity.ChangeTypeManualSave,
		ChangeDescription: "initial version",
		ForceSnapshot:     true,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	doc.Version = v.VersionNumber
	if err := s.repo.UpdateContentVersion(ctx, doc.ID, params.Content, v.VersionNumber); err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Info(ctx, "document created",
		"document_id", doc.ID, "project_id", doc.ProjectID)
	return doc, nil
}

// Get 获取文档
func (s *Service) Get(ctx context.Context, id string) (*entity.Document, error) {
	ctx, span := tracer.Start(ctx, "document.Service.Get")
	defer span.End()
	span.SetAttributes(attribute.String("document_id", id))

	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if doc == nil {
		return nil, errors.New(errors.CodeDocumentNotFound,
			fmt.Sprintf("document %s not found", id))
	}
	return doc, nil
}

// SaveContent 保存文档内容并记录版本。
//
// 先写版本记录再推进文档行：版本创建失败时文档行保持原样，
// 不会出现文档内容与版本历史脱节的状态。保存被跳过
// （内容未变的手动/自动保存）时返回当前文档，不推进版本号。
func (s *Service) SaveContent(ctx context.Context, params SaveParams) (*entity.Document, error) {
	ctx, span := tracer.Start(ctx, "document.Service.SaveContent")
	defer span.End()
	span.SetAttributes(
		attribute.String("document_id", params.DocumentID),
		attribute.String("change_type", string(params.ChangeType)),
	)

	doc, err := s.Get(ctx, params.DocumentID)
	if err != nil {
		return nil, err
	}

	v, err := s.versions.CreateVersion(ctx, version.CreateParams{
		DocumentID:        params.DocumentID,
		Content:           params.Content,
		AuthorID:          params.AuthorID,
		ChangeType:        params.ChangeType,
		ChangeDescription: params.ChangeDescription,
		Metadata:          params.Metadata,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if v == nil {
		// no-op 保存，文档行不动
		return doc, nil
	}

	if err := s.repo.UpdateContentVersion(ctx, params.DocumentID, params.Content, v.VersionNumber); err != nil {
		span.RecordError(err)
		return nil, err
	}

	doc.SetContent(params.Content)
	doc.Version = v.VersionNumber
	return doc, nil
}

// Rollback 把文档回滚到指定历史版本。
// 回滚不截断历史：重建目标版本内容后以 rollback 类型追加新版本，
// 新版本始终是自包含快照。
func (s *Service) Rollback(ctx context.Context, documentID string, targetVersion int, authorID string) (*entity.Document, error) {
	ctx, span := tracer.Start(ctx, "document.Service.Rollback")
	defer span.End()
	span.SetAttributes(
		attribute.String("document_id", documentID),
		attribute.Int("target_version", targetVersion),
	)

	doc, err := s.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}

	content, err := s.versions.ReconstructVersion(ctx, documentID, targetVersion)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	v, err := s.versions.CreateVersion(ctx, version.CreateParams{
		DocumentID:        documentID,
		Content:           content,
		AuthorID:          authorID,
		ChangeType:        entity.ChangeTypeRollback,
		ChangeDescription: fmt.Sprintf("rollback to version %d", targetVersion),
		Metadata:          map[string]any{"rollback_target": targetVersion},
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := s.repo.UpdateContentVersion(ctx, documentID, content, v.VersionNumber); err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Info(ctx, "document rolled back",
		"document_id", documentID,
		"target_version", targetVersion,
		"new_version", v.VersionNumber)

	doc.SetContent(content)
	doc.Version = v.VersionNumber
	return doc, nil
}

// UpdateTitle 更新文档标题，不产生版本记录
func (s *Service) UpdateTitle(ctx context.Context, id, title string) (*entity.Document, error) {
	ctx, span := tracer.Start(ctx, "document.Service.UpdateTitle")
	defer span.End()

	if title == "" {
		return nil, errors.New(errors.CodeInvalidParam, "title is required")
	}

	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	doc.Title = title
	if err := s.repo.Update(ctx, doc); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return doc, nil
}

// Delete 删除文档
func (s *Service) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "document.Service.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("document_id", id))

	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// List 分页获取项目下的文档
func (s *Service) List(ctx context.Context, projectID string, pagination repository.Pagination) (*repository.PagedResult[*entity.Document], error) {
	ctx, span := tracer.Start(ctx, "document.Service.List")
	defer span.End()

	return s.repo.List(ctx, projectID, pagination)
}

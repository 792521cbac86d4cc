// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"z-doc-history-api/internal/application/document"
	"z-doc-history-api/internal/domain/entity"
	"z-doc-history-api/internal/domain/repository"
	"z-doc-history-api/internal/interfaces/http/dto"
)

// DocumentHandler 文档处理器
type DocumentHandler struct {
	documents *document.Service
}

// NewDocumentHandler 创建文档处理器
func NewDocumentHandler(documents *document.Service) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// CreateDocument 创建文档
// @Summary 创建文档
// @Description 创建新文档并写入初始版本
// @Tags Documents
// @Accept json
// @Produce json
// @Param body body dto.CreateDocumentRequest true "文档信息"
// @Success 201 {object} dto.Response[dto.DocumentResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/documents [post]
func (h *DocumentHandler) CreateDocument(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	doc, err := h.documents.Create(ctx, document.CreateParams{
		ProjectID: req.ProjectID,
		Title:     req.Title,
		Content:   req.Content,
		CreatedBy: currentUserID(c),
	})
	if err != nil {
		respondError(c, ctx, err, "failed to create document")
		return
	}

	dto.Created(c, dto.ToDocumentResponse(doc))
}

// GetDocument 获取文档详情
// @Summary 获取文档详情
// @Tags Documents
// @Produce json
// @Param did path string true "文档 ID"
// @Success 200 {object} dto.Response[dto.DocumentResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/documents/{did} [get]
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	ctx := c.Request.Context()
	documentID := dto.BindDocumentID(c)

	doc, err := h.documents.Get(ctx, documentID)
	if err != nil {
		respondError(c, ctx, err, "failed to get document")
		return
	}

	dto.Success(c, dto.ToDocumentResponse(doc))
}

// ListDocuments 获取文档列表
// @Summary 获取文档列表
// @Tags Documents
// @Produce json
// @Param project_id query string false "项目 ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页条数" default(20)
// @Success 200 {object} dto.Response[dto.DocumentListResponse]
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/documents [get]
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := c.Query("project_id")
	pageReq := dto.BindPage(c)

	result, err := h.documents.List(ctx, projectID, repository.NewPagination(pageReq.Page, pageReq.PageSize))
	if err != nil {
		respondError(c, ctx, err, "failed to list documents")
		return
	}

	resp := dto.ToDocumentListResponse(result.Items)
	meta := dto.NewPageMeta(pageReq.Page, pageReq.PageSize, int(result.Total))
	dto.SuccessWithPage(c, resp, meta)
}

// UpdateDocument 更新文档标题
// @Summary 更新文档标题
// @Tags Documents
// @Accept json
// @Produce json
// @Param did path string true "文档 ID"
// @Param body body dto.UpdateDocumentRequest true "更新内容"
// @Success 200 {object} dto.Response[dto.DocumentResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/documents/{did} [put]
func (h *DocumentHandler) UpdateDocument(c *gin.Context) {
	ctx := c.Request.Context()
	documentID := dto.BindDocumentID(c)

	var req dto.UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	doc, err := h.documents.UpdateTitle(ctx, documentID, req.Title)
	if err != nil {
		respondError(c, ctx, err, "failed to update document")
		return
	}

	dto.Success(c, dto.ToDocumentResponse(doc))
}

// SaveContent 保存文档内容
// @Summary 保存文档内容
// @Description 保存内容并记录版本；内容未变的手动/自动保存不产生新版本
// @Tags Documents
// @Accept json
// @Produce json
// @Param did path string true "文档 ID"
// @Param body body dto.SaveContentRequest true "内容与变更类型"
// @Success 200 {object} dto.Response[dto.DocumentResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/documents/{did}/content [put]
func (h *DocumentHandler) SaveContent(c *gin.Context) {
	ctx := c.Request.Context()
	documentID := dto.BindDocumentID(c)

	var req dto.SaveContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	changeType := entity.ChangeType(req.ChangeType)
	if !changeType.IsValid() || changeType == entity.ChangeTypeRollback {
		dto.BadRequest(c, "unsupported change type: "+req.ChangeType)
		return
	}

	doc, err := h.documents.SaveContent(ctx, document.SaveParams{
		DocumentID:        documentID,
		Content:           req.Content,
		AuthorID:          currentUserID(c),
		ChangeType:        changeType,
		ChangeDescription: req.ChangeDescription,
		Metadata:          req.Metadata,
	})
	if err != nil {
		respondError(c, ctx, err, "failed to save document content")
		return
	}

	dto.Success(c, dto.ToDocumentResponse(doc))
}

// DeleteDocument 删除文档
// @Summary 删除文档
// @Tags Documents
// @Produce json
// @Param did path string true "文档 ID"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/documents/{did} [delete]
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	ctx := c.Request.Context()
	documentID := dto.BindDocumentID(c)

	if err := h.documents.Delete(ctx, documentID); err != nil {
		respondError(c, ctx, err, "failed to delete document")
		return
	}

	dto.NoContent(c)
}

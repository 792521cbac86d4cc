// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"z-doc-history-api/internal/application/document"
	"z-doc-history-api/internal/application/version"
	"z-doc-history-api/internal/domain/repository"
	"z-doc-history-api/internal/interfaces/http/dto"
)

// VersionHandler 版本历史处理器
type VersionHandler struct {
	versions  *version.Service
	documents *document.Service
}

// NewVersionHandler 创建版本历史处理器
func NewVersionHandler(versions *version.Service, documents *document.Service) *VersionHandler {
	return &VersionHandler{
		versions:  versions,
		documents: documents,
	}
}

// ListVersions 获取版本历史列表
// @Summary 获取版本历史列表
// @Description 按版本号降序分页返回版本摘要，不含内容
// @Tags Versions
// @Produce json
// @Param did path string true "文档 ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页条数" default(20)
// @Success 200 {object} dto.Response[dto.VersionListResponse]
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/documents/{did}/versions [get]
func (h *VersionHandler) ListVersions(c *gin.Context) {
	ctx := c.Request.Context()
	documentID := dto.BindDocumentID(c)
	pageReq := dto.BindPage(c)

	result, err := h.versions.ListVersions(ctx, documentID, repository.NewPagination(pageReq.Page, pageReq.PageSize))
	if err != nil {
		respondError(c, ctx, err, "failed to list versions")
		return
	}

	resp := dto.ToVersionListResponse(result.Items)
	meta := dto.NewPageMeta(pageReq.Page, pageReq.PageSize, int(result.Total))
	dto.SuccessWithPage(c, resp, meta)
}

// GetVersionContent 重建并返回指定版本的内容
// @Summary 获取历史版本内容
// @Description 从最近快照回放增量链，重建指定版本的精确内容
// @Tags Versions
// @Produce json
// @Param did path string true "文档 ID"
// @Param vnum path int true "版本号"
// @Success 200 {object} dto.Response[dto.VersionContentResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/documents/{did}/versions/{vnum} [get]
func (h *VersionHandler) GetVersionContent(c *gin.Context) {
	ctx := c.Request.Context()
	documentID := dto.BindDocumentID(c)

	versionNumber := dto.BindVersionNumber(c)
	if versionNumber < 1 {
		dto.BadRequest(c, "version number must be a positive integer")
		return
	}

	content, err := h.versions.ReconstructVersion(ctx, documentID, versionNumber)
	if err != nil {
		respondError(c, ctx, err, "failed to reconstruct version")
		return
	}

	dto.Success(c, &dto.VersionContentResponse{
		DocumentID:    documentID,
		VersionNumber: versionNumber,
		Content:       content,
	})
}

// GetVersionMetadata 获取版本聚合元数据
// @Summary 获取版本聚合元数据
// @Tags Versions
// @Produce json
// @Param did path string true "文档 ID"
// @Success 200 {object} dto.Response[dto.VersionMetadataResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/documents/{did}/versions/metadata [get]
func (h *VersionHandler) GetVersionMetadata(c *gin.Context) {
	ctx := c.Request.Context()
	documentID := dto.BindDocumentID(c)

	meta, err := h.versions.GetMetadata(ctx, documentID)
	if err != nil {
		respondError(c, ctx, err, "failed to get version metadata")
		return
	}

	dto.Success(c, dto.ToVersionMetadataResponse(meta))
}

// Rollback 回滚文档到指定历史版本
// @Summary 回滚文档
// @Description 重建目标版本内容并以新版本追加，历史不被截断
// @Tags Versions
// @Accept json
// @Produce json
// @Param did path string true "文档 ID"
// @Param body body dto.RollbackRequest true "目标版本号"
// @Success 200 {object} dto.Response[dto.DocumentResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/documents/{did}/rollback [post]
func (h *VersionHandler) Rollback(c *gin.Context) {
	ctx := c.Request.Context()
	documentID := dto.BindDocumentID(c)

	var req dto.RollbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	doc, err := h.documents.Rollback(ctx, documentID, req.VersionNumber, currentUserID(c))
	if err != nil {
		respondError(c, ctx, err, "failed to rollback document")
		return
	}

	dto.Success(c, dto.ToDocumentResponse(doc))
}

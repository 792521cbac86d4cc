// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"z-doc-history-api/internal/domain/entity"
)

// CreateDocumentRequest 创建文档请求
type CreateDocumentRequest struct {
	ProjectID string `json:"project_id"`
	Title     string `json:"title" binding:"required,max=255"`
	Content   string `json:"content"`
}

// UpdateDocumentRequest 更新文档请求
type UpdateDocumentRequest struct {
	Title string `json:"title" binding:"required,max=255"`
}

// SaveContentRequest 保存文档内容请求
type SaveContentRequest struct {
	Content           string         `json:"content"`
	ChangeType        string         `json:"change_type" binding:"required"`
	ChangeDescription string         `json:"change_description,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// RollbackRequest 回滚请求
type RollbackRequest struct {
	VersionNumber int `json:"version_number" binding:"required,min=1"`
}

// DocumentResponse 文档响应
type DocumentResponse struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id,omitempty"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	WordCount int       `json:"word_count"`
	Version   int       `json:"version"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ToDocumentResponse 转换文档实体为响应
func ToDocumentResponse(doc *entity.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:        doc.ID,
		ProjectID: doc.ProjectID,
		Title:     doc.Title,
		Content:   doc.Content,
		WordCount: doc.WordCount,
		Version:   doc.Version,
		CreatedBy: doc.CreatedBy,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

// DocumentListResponse 文档列表响应
type DocumentListResponse struct {
	Documents []*DocumentResponse `json:"documents"`
}

// ToDocumentListResponse 转换文档列表，列表项不携带全文
func ToDocumentListResponse(docs []*entity.Document) DocumentListResponse {
	out := make([]*DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		resp := ToDocumentResponse(doc)
		resp.Content = ""
		out = append(out, resp)
	}
	return DocumentListResponse{Documents: out}
}

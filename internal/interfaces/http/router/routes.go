// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"

	"z-doc-history-api/internal/interfaces/http/handler"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(
	v1 *gin.RouterGroup,
	documentHandler *handler.DocumentHandler,
	versionHandler *handler.VersionHandler,
) {
	// 文档管理
	documents := v1.Group("/documents")
	{
		documents.GET("", documentHandler.ListDocuments)
		documents.POST("", documentHandler.CreateDocument)
		documents.GET("/:did", documentHandler.GetDocument)
		documents.PUT("/:did", documentHandler.UpdateDocument)
		documents.DELETE("/:did", documentHandler.DeleteDocument)

		// 内容保存（记录版本）
		documents.PUT("/:did/content", documentHandler.SaveContent)

		// 版本历史
		documents.GET("/:did/versions", versionHandler.ListVersions)
		documents.GET("/:did/versions/metadata", versionHandler.GetVersionMetadata)
		documents.GET("/:did/versions/:vnum", versionHandler.GetVersionContent)
		documents.POST("/:did/rollback", versionHandler.Rollback)
	}
}

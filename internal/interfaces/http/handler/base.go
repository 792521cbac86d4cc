package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"z-doc-history-api/internal/interfaces/http/dto"
	"z-doc-history-api/pkg/errors"
	"z-doc-history-api/pkg/logger"
)

// respondError 把应用错误映射为 HTTP 响应；未识别的错误记日志并返回 500
func respondError(c *gin.Context, ctx context.Context, err error, fallbackMsg string) {
	if errors.IsAppError(err) {
		appErr := errors.AsAppError(err)
		if appErr.HTTPStatus >= 500 {
			logger.Error(ctx, fallbackMsg, err)
		}
		dto.FromAppError(c, appErr)
		return
	}
	logger.Error(ctx, fallbackMsg, err)
	dto.InternalError(c, fallbackMsg)
}

// currentUserID 从认证中间件注入的上下文获取用户 ID
func currentUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

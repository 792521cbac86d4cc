// Package postgres 提供 PostgreSQL 数据库访问层实现
package postgres

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"z-doc-history-api/pkg/errors"
)

// translateError 把驱动层错误映射为应用错误码。
// 超时与取消映射为存储不可用，与"记录不存在"严格区分。
func translateError(err error, op string) error {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return errors.Wrap(err, errors.CodeStoreUnavailable,
			fmt.Sprintf("%s timed out", op))
	}
	return errors.Wrap(err, errors.CodeDatabaseError,
		fmt.Sprintf("%s failed", op))
}

// isUniqueViolation 判断是否为唯一约束冲突
func isUniqueViolation(err error) bool {
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

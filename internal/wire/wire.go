//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"z-doc-history-api/internal/application/document"
	"z-doc-history-api/internal/application/version"
	"z-doc-history-api/internal/config"
	"z-doc-history-api/internal/domain/repository"
	domainservice "z-doc-history-api/internal/domain/service"
	"z-doc-history-api/internal/infrastructure/messaging"
	"z-doc-history-api/internal/infrastructure/persistence/postgres"
	"z-doc-history-api/internal/infrastructure/persistence/redis"
	"z-doc-history-api/internal/interfaces/http/handler"
	"z-doc-history-api/internal/interfaces/http/router"
)

// InitializeApp 初始化整个应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		RepoSet,
		RedisSet,
		MessagingSet,
		ServiceSet,
		RouterSet,
	)
	return nil, nil, nil
}

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewDocumentRepository,
	postgres.NewVersionRepository,
)

// RepoSet 整合了具体实现与接口绑定的集合
var RepoSet = wire.NewSet(
	PostgresSet,
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
	wire.Bind(new(repository.DocumentRepository), new(*postgres.DocumentRepository)),
	wire.Bind(new(repository.VersionRepository), new(*postgres.VersionRepository)),
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	redis.NewCache,
	redis.NewRateLimiter,
	wire.Bind(new(version.ReconstructCache), new(*redis.Cache)),
)

// MessagingSet 消息队列提供者集合
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
	messaging.NewVersionEventPublisher,
	wire.Bind(new(version.EventPublisher), new(*messaging.VersionEventPublisher)),
)

// ServiceSet 应用服务提供者集合
var ServiceSet = wire.NewSet(
	domainservice.NewDeltaCodec,
	ProvideSnapshotPolicy,
	version.NewService,
	document.NewService,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	handler.NewHealthHandler,
	handler.NewDocumentHandler,
	handler.NewVersionHandler,
	router.New,
)

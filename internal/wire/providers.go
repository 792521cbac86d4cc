// Package wire 提供依赖注入配置
package wire

import (
	"z-doc-history-api/internal/config"
	domainservice "z-doc-history-api/internal/domain/service"
	"z-doc-history-api/internal/infrastructure/messaging"
	"z-doc-history-api/internal/infrastructure/persistence/postgres"
	"z-doc-history-api/internal/infrastructure/persistence/redis"
)

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return messaging.NewProducer(redisClient.Redis(), int64(maxLen))
}

// ProvideSnapshotPolicy 提供快照决策器
func ProvideSnapshotPolicy(cfg *config.Config) *domainservice.SnapshotPolicy {
	return domainservice.NewSnapshotPolicy(cfg.Versioning.ChunkThreshold)
}

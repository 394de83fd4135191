package connectors

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shiraai/pkg/commons"
	"github.com/shiraai/pkg/configs"
)

type RedisConnector interface {
	Connector
	GetConnection() *redis.Client
}

type redisConnector struct {
	cfg    *configs.RedisConfig
	logger commons.Logger
	client *redis.Client
}

func NewRedisConnector(cfg *configs.RedisConfig, logger commons.Logger) RedisConnector {
	return &redisConnector{cfg: cfg, logger: logger}
}

func (r *redisConnector) Connect(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:     r.cfg.Addr(),
		Password: r.cfg.Password,
		DB:       r.cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis at %s: %w", r.cfg.Addr(), err)
	}
	r.client = client
	r.logger.Infof("connected to %s", r.Name())
	return nil
}

func (r *redisConnector) GetConnection() *redis.Client {
	return r.client
}

func (r *redisConnector) Name() string {
	return fmt.Sprintf("redis://%s/%d", r.cfg.Addr(), r.cfg.DB)
}

func (r *redisConnector) IsConnected(ctx context.Context) bool {
	return r.client != nil && r.client.Ping(ctx).Err() == nil
}

func (r *redisConnector) Disconnect(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

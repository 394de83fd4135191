// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-gorm/caches/v4"
	"github.com/redis/go-redis/v9"
	"github.com/shiraai/pkg/commons"
)

const defaultTTL = 5 * time.Minute

// redisCacher backs the gorm query cache with redis. Entries expire after the
// ttl, and any write issued through the cached handle drops every entry.
type redisCacher struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger commons.Logger
}

func NewRedisCacher(rdb *redis.Client, ttl time.Duration, logger commons.Logger) caches.Cacher {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &redisCacher{rdb: rdb, ttl: ttl, logger: logger}
}

func (c *redisCacher) Get(ctx context.Context, key string, q *caches.Query[any]) (*caches.Query[any], error) {
	res, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		c.logger.Warnf("query cache read failed for %s: %v", key, err)
		return nil, err
	}
	if err := q.Unmarshal([]byte(res)); err != nil {
		return nil, fmt.Errorf("decode cached query: %w", err)
	}
	return q, nil
}

func (c *redisCacher) Store(ctx context.Context, key string, val *caches.Query[any]) error {
	res, err := val.Marshal()
	if err != nil {
		return fmt.Errorf("encode cached query: %w", err)
	}
	if err := c.rdb.Set(ctx, key, res, c.ttl).Err(); err != nil {
		c.logger.Warnf("query cache write failed for %s: %v", key, err)
		return err
	}
	return nil
}

func (c *redisCacher) Invalidate(ctx context.Context) error {
	var (
		cursor uint64
		keys   []string
	)
	for {
		var (
			k   []string
			err error
		)
		k, cursor, err = c.rdb.Scan(ctx, cursor, caches.IdentifierPrefix+"*", 0).Result()
		if err != nil {
			return err
		}
		keys = append(keys, k...)
		if cursor == 0 {
			break
		}
	}
	if len(keys) > 0 {
		if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
			return err
		}
	}
	c.logger.Debugf("invalidated %d cached queries", len(keys))
	return nil
}

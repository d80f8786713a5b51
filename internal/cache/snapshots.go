// 包 cache：聚合快照缓存。Redis 为共享层，进程内 LRU 为本地层；键中混入数据版本号，聚会变更后旧快照自然失效
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"party-map/internal/logger"
	"party-map/internal/metrics"

	"github.com/redis/go-redis/v9"
)

const versionKey = "party:version"

// Snapshots：版本化快照缓存
// 约束：rdb 为 nil 或 Redis 出错时只用本地层，版本号退化为进程内计数
type Snapshots struct {
	rdb    *redis.Client
	lru    *LRU[[]byte]
	ttl    time.Duration
	prefix string
	local  atomic.Int64
}

func New(rdb *redis.Client, lruSize int, ttl time.Duration) *Snapshots {
	return &Snapshots{
		rdb:    rdb,
		lru:    NewLRU[[]byte](lruSize, ttl),
		ttl:    ttl,
		prefix: "partymap:snap:",
	}
}

// Version：当前数据版本
func (s *Snapshots) Version(ctx context.Context) int64 {
	if s.rdb == nil {
		return s.local.Load()
	}
	v, err := s.rdb.Get(ctx, versionKey).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.L().Debug("cache_version_error", "err", err)
			return s.local.Load()
		}
		return 0
	}
	return v
}

// Bump：数据变更后递增版本并清空本地层
func (s *Snapshots) Bump(ctx context.Context) int64 {
	s.lru.Purge()
	v := s.local.Add(1)
	if s.rdb == nil {
		return v
	}
	rv, err := s.rdb.Incr(ctx, versionKey).Result()
	if err != nil {
		logger.L().Debug("cache_bump_error", "err", err)
		return v
	}
	return rv
}

func (s *Snapshots) key(ctx context.Context, k string) string {
	return s.prefix + strconv.FormatInt(s.Version(ctx), 10) + ":" + k
}

// Get：读取快照到 dst；未命中或解码失败返回 false
func (s *Snapshots) Get(ctx context.Context, k string, dst any) bool {
	full := s.key(ctx, k)
	if b, ok := s.lru.Get(full); ok {
		metrics.CacheHitsTotal.WithLabelValues("lru").Inc()
		return json.Unmarshal(b, dst) == nil
	}
	metrics.CacheMissesTotal.WithLabelValues("lru").Inc()
	if s.rdb == nil {
		return false
	}
	b, err := s.rdb.Get(ctx, full).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.L().Debug("cache_get_error", "key", full, "err", err)
		}
		metrics.CacheMissesTotal.WithLabelValues("redis").Inc()
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		metrics.CacheMissesTotal.WithLabelValues("redis").Inc()
		return false
	}
	metrics.CacheHitsTotal.WithLabelValues("redis").Inc()
	s.lru.Set(full, b)
	return true
}

// Set：写入两层；Redis 写失败只记录日志
func (s *Snapshots) Set(ctx context.Context, k string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	full := s.key(ctx, k)
	s.lru.Set(full, b)
	if s.rdb != nil {
		if err := s.rdb.Set(ctx, full, b, s.ttl).Err(); err != nil {
			logger.L().Debug("cache_set_error", "key", full, "err", err)
		}
	}
	return nil
}

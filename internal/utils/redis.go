// 包 utils：从环境变量装配数据库、Redis 与 TLS 证书
package utils

import (
	"os"
	"strconv"

	"party-map/internal/logger"

	"github.com/redis/go-redis/v9"
)

// OpenRedisFromEnv：REDIS_HOST/REDIS_PORT/REDIS_PASS/REDIS_DB
// 约束：REDIS_DISABLE=true 时返回 nil，快照缓存只使用进程内层；REDIS_DB 解析失败回退 0
func OpenRedisFromEnv() *redis.Client {
	if os.Getenv("REDIS_DISABLE") == "true" {
		return nil
	}
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	addr := host + ":" + port
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			db = n
		}
	}
	logger.L().Debug("redis_env", "addr", addr, "db", db)
	return redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASS"), DB: db})
}

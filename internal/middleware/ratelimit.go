// 包 middleware：HTTP 入口中间件（限流、源站白名单、EdgeOne 地理注入、请求 ID）
package middleware

import (
	"net/http"
	"os"
	"strconv"

	"party-map/internal/logger"
	"party-map/internal/metrics"

	"golang.org/x/time/rate"
)

// NewLimiter：每秒 qps 个令牌，突发上限同为 qps
func NewLimiter(qps int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(qps), qps)
}

// RateLimit：令牌桶限流
// 约束：不排队，超出直接 429
func RateLimit(lim *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.Allow() {
				metrics.HTTPRequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(http.StatusTooManyRequests)).Inc()
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Wrap：按环境变量组装全部入口中间件
// RATE_LIMIT_ENABLED=true 时启用限流（RATE_LIMIT_QPS，默认 200）；ORIGIN_DEFENSE_ENABLE=true 时启用源站白名单
func Wrap(next http.Handler) http.Handler {
	h := RequestID(EdgeOne(next))
	if os.Getenv("ORIGIN_DEFENSE_ENABLE") == "true" {
		h = AllowListFromEnv().Wrap(h)
	}
	if os.Getenv("RATE_LIMIT_ENABLED") == "true" {
		qps := 200
		if s := os.Getenv("RATE_LIMIT_QPS"); s != "" {
			if n, e := strconv.Atoi(s); e == nil && n > 0 {
				qps = n
			}
		}
		logger.L().Info("rate_limit_enabled", "qps", qps)
		h = RateLimit(NewLimiter(qps))(h)
	}
	return h
}

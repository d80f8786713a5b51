package logger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"party-map/internal/metrics"
)

// StatusWriter：包装 ResponseWriter 以捕获状态码与写出字节数
type StatusWriter struct {
	http.ResponseWriter
	Status int
	Bytes  int
}

func (w *StatusWriter) WriteHeader(code int) {
	w.Status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *StatusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.Bytes += n
	return n, err
}

// AccessMiddleware：访问日志中间件，记录方法、路径、状态、耗时、字节数与远端地址，并累计 HTTP 指标
// 约束：不读取请求体；远端地址取 RemoteAddr，反向代理场景的真实 IP 由 locate 层按头部解析
func AccessMiddleware(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &StatusWriter{ResponseWriter: w, Status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(sw, r)
			dur := time.Since(start)
			metrics.HTTPRequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(sw.Status)).Inc()
			metrics.HTTPDurationMs.WithLabelValues(r.URL.Path).Observe(float64(dur.Microseconds()) / 1000)
			l.Debug("http_access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.Status,
				"bytes", sw.Bytes,
				"duration_ms", dur.Milliseconds(),
				"ip", r.RemoteAddr,
			)
		})
	}
}

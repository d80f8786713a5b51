package locate

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP：访问者 IP
// 约束：按常见反向代理头顺序取第一个非空值，最后回退 RemoteAddr；部署在不可信代理后需由网关过滤这些头
func ClientIP(r *http.Request) string {
	h := r.Header
	if x := h.Get("X-Forwarded-For"); x != "" {
		return strings.TrimSpace(strings.Split(x, ",")[0])
	}
	for _, k := range []string{"CF-Connecting-IP", "X-Real-IP", "X-Client-IP", "X-EO-Client-IP", "X-Edge-Client-IP", "X-EdgeOne-IP"} {
		if x := strings.TrimSpace(h.Get(k)); x != "" {
			return x
		}
	}
	if x := h.Get("Forwarded"); x != "" {
		if i := strings.Index(strings.ToLower(x), "for="); i >= 0 {
			y := strings.Trim(x[i+4:], "\" ")
			if p := strings.IndexAny(y, ";,"); p >= 0 {
				y = y[:p]
			}
			return strings.Trim(y, "\"[]")
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

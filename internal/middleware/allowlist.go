package middleware

import (
	"net"
	"net/http"
	"os"
	"strings"
	"sync"

	"party-map/internal/logger"
)

// AllowList：源站白名单（单 IP + CIDR，支持 v4/v6）
// 约束：来源 IP 以 RemoteAddr 为准；配置了 RealIPHeader 时取该头的第一个有效 IP
type AllowList struct {
	mu           sync.RWMutex
	ips          map[string]struct{}
	cidrs        []*net.IPNet
	RealIPHeader string
}

func NewAllowList() *AllowList {
	return &AllowList{ips: map[string]struct{}{}}
}

// AllowListFromEnv：
// ORIGIN_ALLOW_IPS=1.2.3.4,5.6.7.8
// ORIGIN_ALLOW_CIDRS=10.0.0.0/8,...
// ORIGIN_ALLOW_LOCAL=true 允许 127.0.0.1/::1
// ORIGIN_REAL_IP_HEADER=X-Forwarded-For
func AllowListFromEnv() *AllowList {
	a := NewAllowList()
	a.RealIPHeader = strings.TrimSpace(os.Getenv("ORIGIN_REAL_IP_HEADER"))
	for _, p := range strings.Split(os.Getenv("ORIGIN_ALLOW_IPS"), ",") {
		a.AllowIP(p)
	}
	for _, c := range strings.Split(os.Getenv("ORIGIN_ALLOW_CIDRS"), ",") {
		a.AllowCIDR(c)
	}
	if os.Getenv("ORIGIN_ALLOW_LOCAL") == "true" {
		a.AllowIP("127.0.0.1")
		a.AllowIP("::1")
	}
	return a
}

func (a *AllowList) AllowIP(s string) bool {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return false
	}
	a.mu.Lock()
	a.ips[ip.String()] = struct{}{}
	a.mu.Unlock()
	return true
}

// AllowCIDR：重复网段只保留一份
func (a *AllowList) AllowCIDR(s string) bool {
	_, n, err := net.ParseCIDR(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, old := range a.cidrs {
		if old.String() == n.String() {
			return true
		}
	}
	a.cidrs = append(a.cidrs, n)
	return true
}

func (a *AllowList) Allowed(ip net.IP) bool {
	if ip == nil {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if _, ok := a.ips[ip.String()]; ok {
		return true
	}
	for _, n := range a.cidrs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func (a *AllowList) sourceIP(r *http.Request) net.IP {
	if a.RealIPHeader != "" {
		if raw := r.Header.Get(a.RealIPHeader); raw != "" {
			if ip := net.ParseIP(strings.TrimSpace(strings.Split(raw, ",")[0])); ip != nil {
				return ip
			}
		}
	}
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return net.ParseIP(host)
}

func (a *AllowList) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := a.sourceIP(r)
		if !a.Allowed(ip) {
			logger.L().Debug("origin_defense_block", "ip", ip.String(), "remote", r.RemoteAddr)
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"forbidden"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

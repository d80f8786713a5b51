// 包 locate：根据访问者 IP（及 CDN 地理头）确定地图初始中心
// 约束：按注册顺序依次询问健康来源，第一个给出位置的来源胜出；全部失败时返回默认视野。
package locate

import (
	"context"
	"sync"
	"time"

	"party-map/internal/coord"
	"party-map/internal/logger"
	"party-map/internal/metrics"

	"github.com/paulmach/orb"
)

// Result：初始视野；Center 为 WGS-84
type Result struct {
	Center orb.Point `json:"-"`
	Zoom   int       `json:"zoom"`
	Source string    `json:"source"`
	City   string    `json:"city,omitempty"`
}

// DefaultCenterBD09：默认中心（上海杨浦，BD-09）
var DefaultCenterBD09 = orb.Point{121.497635, 31.292725}

const DefaultZoom = 16

// Default：所有来源都失败时的视野
func Default() Result {
	return Result{Center: coord.ToWGS84(DefaultCenterBD09, coord.BD09), Zoom: DefaultZoom, Source: "default"}
}

// Source：定位来源
type Source interface {
	Name() string
	Locate(ctx context.Context, ip string) (Result, bool)
	Heartbeat(ctx context.Context) error
}

type status struct {
	healthy bool
	last    time.Time
}

// Manager：来源注册、心跳与按优先级查询
// 约束：心跳失败的来源从查询集合中剔除，直到下一次心跳成功；线程安全。
type Manager struct {
	mu         sync.RWMutex
	sources    []Source
	st         map[string]status
	hbInterval time.Duration
	fallback   Result
}

func NewManager(hb time.Duration) *Manager {
	if hb <= 0 {
		hb = 30 * time.Second
	}
	return &Manager{st: make(map[string]status), hbInterval: hb, fallback: Default()}
}

// SetFallback：替换默认视野
func (m *Manager) SetFallback(r Result) {
	m.mu.Lock()
	m.fallback = r
	m.mu.Unlock()
}

// Register：按优先级从高到低依次注册；同名来源会被替换
func (m *Manager) Register(s Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, old := range m.sources {
		if old.Name() == s.Name() {
			m.sources[i] = s
			m.st[s.Name()] = status{healthy: true, last: time.Now()}
			return
		}
	}
	m.sources = append(m.sources, s)
	m.st[s.Name()] = status{healthy: true, last: time.Now()}
	logger.L().Info("locate_source_registered", "name", s.Name())
}

// Healthy：当前健康的来源（按优先级）
func (m *Manager) Healthy() []Source {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Source
	for _, s := range m.sources {
		if m.st[s.Name()].healthy {
			out = append(out, s)
		}
	}
	return out
}

// Start：周期心跳，ctx 取消时退出
func (m *Manager) Start(ctx context.Context) {
	t := time.NewTicker(m.hbInterval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.Heartbeat(ctx)
			}
		}
	}()
}

// Heartbeat：立即对全部来源做一次心跳
func (m *Manager) Heartbeat(ctx context.Context) {
	m.mu.RLock()
	srcs := append([]Source(nil), m.sources...)
	m.mu.RUnlock()
	res := make(map[string]status, len(srcs))
	for _, s := range srcs {
		err := s.Heartbeat(ctx)
		res[s.Name()] = status{healthy: err == nil, last: time.Now()}
		if err != nil {
			logger.L().Debug("locate_heartbeat_fail", "name", s.Name(), "err", err)
			metrics.LocateHeartbeatTotal.WithLabelValues(s.Name(), "fail").Inc()
		} else {
			metrics.LocateHeartbeatTotal.WithLabelValues(s.Name(), "ok").Inc()
		}
	}
	m.mu.Lock()
	for k, v := range res {
		m.st[k] = v
	}
	m.mu.Unlock()
}

// Locate：依次询问健康来源；全部失败时返回默认视野
func (m *Manager) Locate(ctx context.Context, ip string) Result {
	for _, s := range m.Healthy() {
		t0 := time.Now()
		metrics.LocateRequestsTotal.WithLabelValues(s.Name()).Inc()
		r, ok := s.Locate(ctx, ip)
		metrics.LocateDurationMs.WithLabelValues(s.Name()).Observe(float64(time.Since(t0).Microseconds()) / 1000)
		if ok {
			metrics.LocateSuccessTotal.WithLabelValues(s.Name()).Inc()
			if r.Source == "" {
				r.Source = s.Name()
			}
			logger.L().Debug("locate_hit", "ip", ip, "source", r.Source, "lng", r.Center.Lon(), "lat", r.Center.Lat(), "city", r.City)
			return r
		}
		metrics.LocateFailTotal.WithLabelValues(s.Name()).Inc()
	}
	m.mu.RLock()
	fb := m.fallback
	m.mu.RUnlock()
	logger.L().Debug("locate_fallback", "ip", ip)
	return fb
}

package locate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"party-map/internal/coord"

	"github.com/paulmach/orb"
)

// HTTPSource：进程外定位服务
// 约定 GET {endpoint}/health 返回 200 表示可用；GET {endpoint}/query?ip= 返回
// {"lng":..,"lat":..,"zoom":..,"coord":"bd09","city":".."}，无坐标时按 city 查质心表
type HTTPSource struct {
	name      string
	endpoint  string
	client    *http.Client
	Centroids *Centroids
}

func NewHTTPSource(name, endpoint string, centroids *Centroids) *HTTPSource {
	return &HTTPSource{
		name:      name,
		endpoint:  strings.TrimRight(endpoint, "/"),
		client:    &http.Client{Timeout: 3 * time.Second},
		Centroids: centroids,
	}
}

func (h *HTTPSource) Name() string { return h.name }

func (h *HTTPSource) Heartbeat(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: health status %d", h.name, resp.StatusCode)
	}
	return nil
}

type httpAnswer struct {
	Lng   float64 `json:"lng"`
	Lat   float64 `json:"lat"`
	Zoom  int     `json:"zoom"`
	Coord string  `json:"coord"`
	City  string  `json:"city"`
}

func (h *HTTPSource) Locate(ctx context.Context, ip string) (Result, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint+"/query?ip="+url.QueryEscape(ip), nil)
	if err != nil {
		return Result{}, false
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return Result{}, false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{}, false
	}
	var a httpAnswer
	if err := json.NewDecoder(resp.Body).Decode(&a); err != nil {
		return Result{}, false
	}
	zoom := a.Zoom
	if zoom <= 0 {
		zoom = 12
	}
	if a.Lng != 0 || a.Lat != 0 {
		sys, err := coord.ParseSystem(a.Coord)
		if err != nil {
			return Result{}, false
		}
		return Result{Center: coord.ToWGS84(orb.Point{a.Lng, a.Lat}, sys), Zoom: zoom, City: a.City}, true
	}
	if c, ok := h.Centroids.Lookup(a.City); ok && a.City != "" {
		return Result{Center: c.Point, Zoom: zoom, City: c.Name}, true
	}
	return Result{}, false
}

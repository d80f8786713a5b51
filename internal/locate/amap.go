package locate

import (
	"context"
	"strings"

	"party-map/internal/amap"
	"party-map/internal/coord"
)

// AMapSource：高德 IP 定位，使用城市矩形（GCJ-02）的中心
type AMapSource struct {
	Client *amap.Client
}

func (s *AMapSource) Name() string { return "amap" }

func (s *AMapSource) Heartbeat(ctx context.Context) error {
	if s.Client == nil || s.Client.Key == "" {
		return amap.ErrMissingKey
	}
	return nil
}

func (s *AMapSource) Locate(ctx context.Context, ip string) (Result, bool) {
	if s.Client == nil || ip == "" {
		return Result{}, false
	}
	r, err := s.Client.QueryIP(ctx, ip)
	if err != nil || r == nil {
		return Result{}, false
	}
	center, ok := amap.RectangleCenter(string(r.Rectangle))
	if !ok {
		return Result{}, false
	}
	return Result{
		Center: coord.ToWGS84(center, coord.GCJ02),
		Zoom:   12,
		City:   strings.TrimSpace(string(r.City)),
	}, true
}

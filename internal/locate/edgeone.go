package locate

import (
	"context"
	"net/http"
	"strconv"

	"github.com/paulmach/orb"
)

// EdgeOneGeo：EdgeOne 回源时改写进请求头的地理信息
// 约束：字段名与控制台自定义头一致；经纬度为 WGS-84
type EdgeOneGeo struct {
	CountryName       string
	CountryCodeAlpha2 string
	RegionName        string
	CityName          string
	Latitude          float64
	Longitude         float64
	ASN               int
	ISP               string
	ClientIP          string
}

func (g EdgeOneGeo) hasPosition() bool { return g.Latitude != 0 || g.Longitude != 0 }

// ParseEdgeOneGeo：读取 X-EO-* 头；数值解析失败时忽略该字段
func ParseEdgeOneGeo(h http.Header) EdgeOneGeo {
	var g EdgeOneGeo
	g.CountryName = h.Get("X-EO-Geo-Country")
	g.CountryCodeAlpha2 = h.Get("X-EO-Geo-CountryCodeAlpha2")
	g.RegionName = h.Get("X-EO-Geo-Region")
	g.CityName = h.Get("X-EO-Geo-City")
	// 优先新版头部 X-EO-ISP，兼容旧名 X-EO-Geo-CISP
	if v := h.Get("X-EO-ISP"); v != "" {
		g.ISP = v
	} else {
		g.ISP = h.Get("X-EO-Geo-CISP")
	}
	g.ClientIP = h.Get("X-EO-Client-IP")
	if v, err := strconv.ParseFloat(h.Get("X-EO-Geo-Latitude"), 64); err == nil {
		g.Latitude = v
	}
	if v, err := strconv.ParseFloat(h.Get("X-EO-Geo-Longitude"), 64); err == nil {
		g.Longitude = v
	}
	if v, err := strconv.Atoi(h.Get("X-EO-Geo-ASN")); err == nil {
		g.ASN = v
	}
	return g
}

type edgeOneKey struct{}

// WithEdgeOne：把解析结果放入请求上下文
func WithEdgeOne(ctx context.Context, g EdgeOneGeo) context.Context {
	return context.WithValue(ctx, edgeOneKey{}, g)
}

func EdgeOneFrom(ctx context.Context) (EdgeOneGeo, bool) {
	g, ok := ctx.Value(edgeOneKey{}).(EdgeOneGeo)
	return g, ok
}

// EdgeOneSource：读取上下文中的 EdgeOne 地理信息
// 约束：头部 ClientIP 与查询 IP 不一致时不采用；有经纬度时直接使用（城市名按质心表归一，未命中时取附近城市），否则按城市名查质心表
type EdgeOneSource struct {
	Centroids *Centroids
}

func (s *EdgeOneSource) Name() string { return "edgeone" }

func (s *EdgeOneSource) Heartbeat(ctx context.Context) error { return nil }

func (s *EdgeOneSource) Locate(ctx context.Context, ip string) (Result, bool) {
	g, ok := EdgeOneFrom(ctx)
	if !ok {
		return Result{}, false
	}
	if g.ClientIP != "" && ip != "" && g.ClientIP != ip {
		return Result{}, false
	}
	if g.hasPosition() {
		p := orb.Point{g.Longitude, g.Latitude}
		return Result{Center: p, Zoom: 12, City: s.Centroids.CityName(g.CityName, p)}, true
	}
	if s.Centroids != nil && g.CityName != "" {
		if c, ok := s.Centroids.Lookup(g.CityName); ok {
			return Result{Center: c.Point, Zoom: 12, City: c.Name}, true
		}
	}
	return Result{}, false
}

package locate

import (
	"context"
	"errors"
	"strings"

	"github.com/lionsoul2014/ip2region/binding/golang/xdb"
)

// Region：ip2region 的“国家|区域|省份|城市|ISP”记录
type Region struct {
	Country  string
	Region   string
	Province string
	City     string
	ISP      string
}

// ParseRegion：拆分 ip2region 记录，"0" 与 unknown 视为空
func ParseRegion(s string) Region {
	parts := strings.Split(s, "|")
	get := func(i int) string {
		if i >= len(parts) {
			return ""
		}
		v := strings.TrimSpace(parts[i])
		if v == "0" || strings.EqualFold(v, "unknown") {
			return ""
		}
		return v
	}
	return Region{Country: get(0), Region: get(1), Province: get(2), City: get(3), ISP: get(4)}
}

type regionSearcher interface {
	SearchByStr(ip string) (string, error)
}

// IP2RegionSource：ip2region v4 xdb 查城市名，再由质心表给出坐标
type IP2RegionSource struct {
	searcher  regionSearcher
	Centroids *Centroids
}

func OpenIP2Region(v4Path string, centroids *Centroids) (*IP2RegionSource, error) {
	s, err := xdb.NewWithFileOnly(xdb.IPv4, v4Path)
	if err != nil {
		return nil, err
	}
	return &IP2RegionSource{searcher: s, Centroids: centroids}, nil
}

func (s *IP2RegionSource) Name() string { return "ip2region" }

func (s *IP2RegionSource) Heartbeat(ctx context.Context) error {
	if s.searcher == nil {
		return errors.New("ip2region: searcher not loaded")
	}
	if s.Centroids == nil || s.Centroids.Len() == 0 {
		return errors.New("ip2region: empty centroid table")
	}
	return nil
}

func (s *IP2RegionSource) Locate(ctx context.Context, ip string) (Result, bool) {
	if s.searcher == nil || s.Centroids == nil || ip == "" {
		return Result{}, false
	}
	raw, err := s.searcher.SearchByStr(ip)
	if err != nil || raw == "" {
		return Result{}, false
	}
	reg := ParseRegion(raw)
	for _, name := range []string{reg.City, reg.Province} {
		if name == "" {
			continue
		}
		if c, ok := s.Centroids.Lookup(name); ok {
			zoom := 12
			if name == reg.Province {
				zoom = 8
			}
			return Result{Center: c.Point, Zoom: zoom, City: c.Name}, true
		}
	}
	return Result{}, false
}

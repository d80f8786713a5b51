package locate

import (
	"context"
	"errors"
	"net"

	"github.com/oschwald/geoip2-golang"
	"github.com/paulmach/orb"
)

// GeoIPSource：MaxMind GeoLite2/GeoIP2 City 库；城市名缺失或为英文时按质心表就近归一
type GeoIPSource struct {
	db        *geoip2.Reader
	centroids *Centroids
}

func OpenGeoIP(path string, centroids *Centroids) (*GeoIPSource, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &GeoIPSource{db: db, centroids: centroids}, nil
}

func (s *GeoIPSource) Close() error { return s.db.Close() }

func (s *GeoIPSource) Name() string { return "geoip" }

func (s *GeoIPSource) Heartbeat(ctx context.Context) error {
	if s.db == nil {
		return errors.New("geoip: database not loaded")
	}
	return nil
}

func (s *GeoIPSource) Locate(ctx context.Context, ip string) (Result, bool) {
	addr := net.ParseIP(ip)
	if addr == nil || s.db == nil {
		return Result{}, false
	}
	rec, err := s.db.City(addr)
	if err != nil {
		return Result{}, false
	}
	loc := rec.Location
	if loc.Latitude == 0 && loc.Longitude == 0 {
		return Result{}, false
	}
	name := rec.City.Names["zh-CN"]
	if name == "" {
		name = rec.City.Names["en"]
	}
	p := orb.Point{loc.Longitude, loc.Latitude}
	return Result{
		Center: p,
		Zoom:   zoomForAccuracy(loc.AccuracyRadius),
		City:   s.centroids.CityName(name, p),
	}, true
}

// zoomForAccuracy：精度半径（km）越大视野越大
func zoomForAccuracy(km uint16) int {
	switch {
	case km == 0:
		return 11
	case km <= 5:
		return 14
	case km <= 20:
		return 12
	case km <= 100:
		return 10
	}
	return 8
}

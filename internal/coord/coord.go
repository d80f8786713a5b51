// 包 coord：国内互联网地图坐标系转换（WGS-84 / GCJ-02 / BD-09）与 geohash 编码
// 约束：聚会统一以 WGS-84 入库与聚合；接口输入输出可为 GCJ-02 或 BD-09。国外坐标不做偏移。
// 转换为近似算法，往返误差在米级。
package coord

import (
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
)

type System string

const (
	WGS84 System = "WGS-84"
	GCJ02 System = "GCJ-02"
	BD09  System = "BD-09"
)

// ParseSystem：解析坐标系名称，大小写与连字符不敏感；空串视为 WGS-84
func ParseSystem(s string) (System, error) {
	k := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
	switch k {
	case "", "wgs84", "gps":
		return WGS84, nil
	case "gcj02", "amap", "gaode":
		return GCJ02, nil
	case "bd09", "bd09ll", "baidu":
		return BD09, nil
	}
	return "", fmt.Errorf("unknown coordinate system %q", s)
}

// ToWGS84：把给定坐标系下的点转换为 WGS-84
func ToWGS84(p orb.Point, sys System) orb.Point {
	switch sys {
	case GCJ02:
		return gcj02ToWGS84(p)
	case BD09:
		return gcj02ToWGS84(bd09ToGCJ02(p))
	}
	return p
}

// FromWGS84：把 WGS-84 点转换到目标坐标系
func FromWGS84(p orb.Point, sys System) orb.Point {
	switch sys {
	case GCJ02:
		return wgs84ToGCJ02(p)
	case BD09:
		return gcj02ToBD09(wgs84ToGCJ02(p))
	}
	return p
}

// BoundToWGS84：范围两角分别转换
func BoundToWGS84(b orb.Bound, sys System) orb.Bound {
	return orb.Bound{Min: ToWGS84(b.Min, sys), Max: ToWGS84(b.Max, sys)}
}

func BoundFromWGS84(b orb.Bound, sys System) orb.Bound {
	return orb.Bound{Min: FromWGS84(b.Min, sys), Max: FromWGS84(b.Max, sys)}
}

const (
	krasovskyA  = 6378245.0
	krasovskyEE = 0.00669342162296594323
	bdXPi       = math.Pi * 3000.0 / 180.0
)

func OutOfChina(p orb.Point) bool {
	lon, lat := p.Lon(), p.Lat()
	return lon < 72.004 || lon > 137.8347 || lat < 0.8293 || lat > 55.8271
}

func wgs84ToGCJ02(p orb.Point) orb.Point {
	if OutOfChina(p) {
		return p
	}
	lon, lat := p.Lon(), p.Lat()
	dLat := transformLat(lon-105.0, lat-35.0)
	dLon := transformLon(lon-105.0, lat-35.0)
	radLat := lat / 180.0 * math.Pi
	magic := math.Sin(radLat)
	magic = 1 - krasovskyEE*magic*magic
	sqrtMagic := math.Sqrt(magic)
	dLat = (dLat * 180.0) / ((krasovskyA * (1 - krasovskyEE)) / (magic * sqrtMagic) * math.Pi)
	dLon = (dLon * 180.0) / (krasovskyA / sqrtMagic * math.Cos(radLat) * math.Pi)
	return orb.Point{lon + dLon, lat + dLat}
}

// gcj02ToWGS84：一次反推（原点减去偏移量）
func gcj02ToWGS84(p orb.Point) orb.Point {
	if OutOfChina(p) {
		return p
	}
	g := wgs84ToGCJ02(p)
	return orb.Point{p.Lon()*2 - g.Lon(), p.Lat()*2 - g.Lat()}
}

func bd09ToGCJ02(p orb.Point) orb.Point {
	x := p.Lon() - 0.0065
	y := p.Lat() - 0.006
	z := math.Sqrt(x*x+y*y) - 0.00002*math.Sin(y*bdXPi)
	theta := math.Atan2(y, x) - 0.000003*math.Cos(x*bdXPi)
	return orb.Point{z * math.Cos(theta), z * math.Sin(theta)}
}

func gcj02ToBD09(p orb.Point) orb.Point {
	x, y := p.Lon(), p.Lat()
	z := math.Sqrt(x*x+y*y) + 0.00002*math.Sin(y*bdXPi)
	theta := math.Atan2(y, x) + 0.000003*math.Cos(x*bdXPi)
	return orb.Point{z*math.Cos(theta) + 0.0065, z*math.Sin(theta) + 0.006}
}

func transformLat(x, y float64) float64 {
	ret := -100.0 + 2.0*x + 3.0*y + 0.2*y*y + 0.1*x*y + 0.2*math.Sqrt(math.Abs(x))
	ret += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(y*math.Pi) + 40.0*math.Sin(y/3.0*math.Pi)) * 2.0 / 3.0
	ret += (160.0*math.Sin(y/12.0*math.Pi) + 320*math.Sin(y*math.Pi/30.0)) * 2.0 / 3.0
	return ret
}

func transformLon(x, y float64) float64 {
	ret := 300.0 + x + 2.0*y + 0.1*x*x + 0.1*x*y + 0.1*math.Sqrt(math.Abs(x))
	ret += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(x*math.Pi) + 40.0*math.Sin(x/3.0*math.Pi)) * 2.0 / 3.0
	ret += (150.0*math.Sin(x/12.0*math.Pi) + 300.0*math.Sin(x/30.0*math.Pi)) * 2.0 / 3.0
	return ret
}

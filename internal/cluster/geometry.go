package cluster

import (
	"math"

	"github.com/paulmach/orb"
)

// 聚合支持的世界范围
const (
	MaxLat = 74.0
	MaxLng = 180.0
)

// closestSearchRadius：最近聚合搜索的初始距离（米），超过该距离的聚合不参与比较
const closestSearchRadius = 4000000.0

func clamp(v, min, max float64) float64 {
	return math.Min(math.Max(v, min), max)
}

// CutBoundsInRange：把范围裁剪到支持的经纬度区间内
func CutBoundsInRange(b orb.Bound) orb.Bound {
	return orb.Bound{
		Min: orb.Point{clamp(b.Min.Lon(), -MaxLng, MaxLng), clamp(b.Min.Lat(), -MaxLat, MaxLat)},
		Max: orb.Point{clamp(b.Max.Lon(), -MaxLng, MaxLng), clamp(b.Max.Lat(), -MaxLat, MaxLat)},
	}
}

// ExtendedBounds：先裁剪范围，再在像素空间内向四周各扩展 gridSize 像素后转换回经纬度
// 约束：扩展在屏幕像素下完成，因此同样的 gridSize 在不同缩放级别对应不同的地理跨度
func ExtendedBounds(h Host, b orb.Bound, gridSize int) orb.Bound {
	b = CutBoundsInRange(b)
	g := float64(gridSize)
	ne := h.PointToPixel(orb.Point{b.Max.Lon(), b.Max.Lat()})
	sw := h.PointToPixel(orb.Point{b.Min.Lon(), b.Min.Lat()})
	ne.X += g
	ne.Y -= g
	sw.X -= g
	sw.Y += g
	return orb.Bound{Min: h.PixelToPoint(sw), Max: h.PixelToPoint(ne)}
}

// pointBound：单点退化范围
func pointBound(p orb.Point) orb.Bound {
	return orb.Bound{Min: p, Max: p}
}

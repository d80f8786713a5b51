package cluster

import (
	"github.com/paulmach/orb"
)

// Cluster：一次聚合计算中产生的一个聚合
// 约束：
// 1) 最小聚合数量与是否平均中心在创建时从引擎复制，之后引擎配置变化不影响已有聚合（配置变化会整体重建）；
// 2) 落脚点要么固定为第一个点，要么为全部成员的增量平均，不会混用；
// 3) real 标记一旦为 true 不再回退。
type Cluster struct {
	engine        *Engine
	minSize       int
	averageCenter bool

	center    orb.Point
	hasCenter bool
	grid      orb.Bound

	members []Point
	keys    map[string]struct{}
	real    bool
	marker  *Marker
}

func newCluster(e *Engine) *Cluster {
	return &Cluster{
		engine:        e,
		minSize:       e.opts.MinClusterSize,
		averageCenter: e.opts.AverageCenter,
		keys:          make(map[string]struct{}),
		marker:        newMarker(e.opts.Styles, e.opts.Label),
	}
}

// AddPoint：向聚合加入一个点；已在聚合中返回 false
// 数量未达到最小聚合数量时该点单独挂载；恰好达到时撤下全部散点并挂载聚合标记；超过后只更新聚合标记
func (c *Cluster) AddPoint(p Point) bool {
	if c.ContainsPoint(p) {
		return false
	}
	pos := p.Position()
	if !c.hasCenter {
		c.center = pos
		c.hasCenter = true
		c.updateGridBounds()
	} else if c.averageCenter {
		n := float64(len(c.members) + 1)
		lat := (c.center.Lat()*(n-1) + pos.Lat()) / n
		lng := (c.center.Lon()*(n-1) + pos.Lon()) / n
		c.center = orb.Point{lng, lat}
		c.updateGridBounds()
	}
	c.engine.setInCluster(p.Key(), true)
	c.keys[p.Key()] = struct{}{}
	c.members = append(c.members, p)

	surface := c.engine.surface
	n := len(c.members)
	if n < c.minSize {
		surface.Attach(p)
		return true
	}
	if n == c.minSize {
		for _, m := range c.members {
			if surface.Attached(m) {
				surface.Detach(m)
			}
		}
	}
	surface.Attach(c.marker)
	c.real = true
	c.updateMarker()
	return true
}

// ContainsPoint：按 Key 判断点是否已在聚合中
func (c *Cluster) ContainsPoint(p Point) bool {
	_, ok := c.keys[p.Key()]
	return ok
}

// IsInBounds：点是否落在聚合的网格范围内；引擎据此决定并入最近聚合还是新建聚合
func (c *Cluster) IsInBounds(p Point) bool {
	if !c.hasCenter {
		return false
	}
	return c.grid.Contains(p.Position())
}

func (c *Cluster) IsReal() bool { return c.real }

func (c *Cluster) Size() int { return len(c.members) }

// Members：成员快照（按加入顺序）
func (c *Cluster) Members() []Point {
	out := make([]Point, len(c.members))
	copy(out, c.members)
	return out
}

// Center：落脚点；未加入任何点前返回 false
func (c *Cluster) Center() (orb.Point, bool) {
	return c.center, c.hasCenter
}

func (c *Cluster) GridBounds() orb.Bound { return c.grid }

func (c *Cluster) Marker() *Marker { return c.marker }

// Bounds：包含落脚点与全部成员的最小外接矩形，用于点击后把视野调整到聚合全貌
func (c *Cluster) Bounds() orb.Bound {
	b := pointBound(c.center)
	for _, m := range c.members {
		b = b.Extend(m.Position())
	}
	return b
}

// Remove：撤下仍单独挂载的成员与聚合标记，并清空成员
func (c *Cluster) Remove() {
	surface := c.engine.surface
	for _, m := range c.members {
		if surface.Attached(m) {
			surface.Detach(m)
		}
	}
	surface.Detach(c.marker)
	c.members = nil
	c.keys = make(map[string]struct{})
}

func (c *Cluster) updateGridBounds() {
	c.grid = ExtendedBounds(c.engine.host, pointBound(c.center), c.engine.opts.GridSize)
}

// updateMarker：每次更新都重新判断缩放级别
// 当前级别大于最大聚合级别时不聚合：撤下聚合标记，全部成员单独显示
func (c *Cluster) updateMarker() {
	surface := c.engine.surface
	if c.engine.host.Zoom() > c.engine.opts.MaxZoom {
		surface.Detach(c.marker)
		c.marker.hide()
		for _, m := range c.members {
			surface.Attach(m)
		}
		return
	}
	if len(c.members) < c.minSize {
		c.marker.hide()
		return
	}
	c.marker.update(c.center, len(c.members))
}

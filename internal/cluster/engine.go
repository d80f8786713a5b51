package cluster

import (
	"container/list"
	"time"

	"party-map/internal/logger"
	"party-map/internal/metrics"
)

// entry：引擎内的点记录，inCluster 即成员标记
type entry struct {
	p         Point
	inCluster bool
}

// Engine：覆盖物聚合器
// 约束：单线程使用，不加锁；每次视野变化、增删点或修改配置都会整体重建聚合，旧聚合不复用。
// 点按加入顺序遍历（list），按 Key 索引（map），删除为 O(1)。
type Engine struct {
	host    Host
	surface Surface
	opts    Options

	order    *list.List
	dict     map[string]*list.Element
	clusters []*Cluster

	cancel func()
}

// New：创建聚合器；host 实现 Notifier 时自动订阅视野变化
func New(host Host, surface Surface, opts Options) *Engine {
	e := &Engine{
		host:    host,
		surface: surface,
		opts:    opts.normalized(),
		order:   list.New(),
		dict:    make(map[string]*list.Element),
	}
	if n, ok := host.(Notifier); ok {
		e.cancel = n.Subscribe(e.Redraw)
	}
	if len(opts.Points) > 0 {
		e.AddPoints(opts.Points...)
	}
	return e
}

// Close：取消视野订阅
func (e *Engine) Close() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// Configure：整体替换配置并重建；缺失项回退默认值，Points 字段会被合并进点集
func (e *Engine) Configure(opts Options) {
	pts := opts.Points
	opts.Points = nil
	e.opts = opts.normalized()
	for _, p := range pts {
		e.push(p)
	}
	e.Redraw()
}

// AddPoints：合并一组点（按 Key 去重）后重建
func (e *Engine) AddPoints(points ...Point) {
	for _, p := range points {
		e.push(p)
	}
	e.Redraw()
}

// AddPoint：加入单个点后重建
func (e *Engine) AddPoint(p Point) {
	e.push(p)
	e.Redraw()
}

func (e *Engine) push(p Point) {
	if p == nil {
		return
	}
	if _, ok := e.dict[p.Key()]; ok {
		return
	}
	e.dict[p.Key()] = e.order.PushBack(&entry{p: p})
}

// RemovePoint：按 Key 删除；点不存在时返回 false 且不做任何修改
func (e *Engine) RemovePoint(p Point) bool {
	ok := e.remove(p)
	if ok {
		e.Redraw()
	}
	return ok
}

// RemovePoints：批量删除，任一删除成功即重建并返回 true
func (e *Engine) RemovePoints(points []Point) bool {
	removed := false
	for _, p := range points {
		if e.remove(p) {
			removed = true
		}
	}
	if removed {
		e.Redraw()
	}
	return removed
}

func (e *Engine) remove(p Point) bool {
	if p == nil {
		return false
	}
	el, ok := e.dict[p.Key()]
	if !ok {
		return false
	}
	ent := el.Value.(*entry)
	e.surface.Detach(ent.p)
	e.order.Remove(el)
	delete(e.dict, p.Key())
	return true
}

// Clear：丢弃全部聚合与点，并把所有点从表面撤下
func (e *Engine) Clear() {
	e.clearClusters()
	for el := e.order.Front(); el != nil; el = el.Next() {
		ent := el.Value.(*entry)
		ent.inCluster = false
		e.surface.Detach(ent.p)
	}
	e.order.Init()
	e.dict = make(map[string]*list.Element)
}

// Redraw：清除上一次结果并重新聚合；视野变化时由宿主回调
func (e *Engine) Redraw() {
	t0 := time.Now()
	e.clearClusters()
	e.createClusters()
	metrics.ClusterPassesTotal.Inc()
	metrics.ClusterPassDurationMs.Observe(float64(time.Since(t0).Microseconds()) / 1000)
	metrics.ClustersPerPass.Observe(float64(len(e.clusters)))
	logger.L().Debug("cluster_pass_done",
		"points", e.order.Len(),
		"clusters", len(e.clusters),
		"real", e.ClusterCount(),
		"zoom", e.host.Zoom(),
	)
}

func (e *Engine) clearClusters() {
	for _, c := range e.clusters {
		c.Remove()
	}
	e.clusters = nil
	for el := e.order.Front(); el != nil; el = el.Next() {
		el.Value.(*entry).inCluster = false
	}
}

// createClusters：只处理扩展视野内尚未归属的点，视野外的点保持未归属
func (e *Engine) createClusters() {
	ext := ExtendedBounds(e.host, e.host.Bounds(), e.opts.GridSize)
	for el := e.order.Front(); el != nil; el = el.Next() {
		ent := el.Value.(*entry)
		if !ent.inCluster && ext.Contains(ent.p.Position()) {
			e.addToClosestCluster(ent.p)
		}
	}
}

// addToClosestCluster：最近聚合只是候选，网格范围包含该点才真正并入，否则新建聚合
// 距离相等时保留先创建的聚合
func (e *Engine) addToClosestCluster(p Point) {
	distance := closestSearchRadius
	var target *Cluster
	pos := p.Position()
	for _, c := range e.clusters {
		center, ok := c.Center()
		if !ok {
			continue
		}
		if d := e.host.Distance(center, pos); d < distance {
			distance = d
			target = c
		}
	}
	if target != nil && target.IsInBounds(p) {
		target.AddPoint(p)
		return
	}
	c := newCluster(e)
	c.AddPoint(p)
	e.clusters = append(e.clusters, c)
}

func (e *Engine) setInCluster(key string, v bool) {
	if el, ok := e.dict[key]; ok {
		el.Value.(*entry).inCluster = v
	}
}

// InCluster：点当前是否属于某个聚合
func (e *Engine) InCluster(key string) bool {
	el, ok := e.dict[key]
	return ok && el.Value.(*entry).inCluster
}

// ClusterCount：真正聚合（数量达到最小聚合数量）的个数
func (e *Engine) ClusterCount() int {
	n := 0
	for _, c := range e.clusters {
		if c.IsReal() {
			n++
		}
	}
	return n
}

// Clusters：当前聚合（按创建顺序）
func (e *Engine) Clusters() []*Cluster {
	out := make([]*Cluster, len(e.clusters))
	copy(out, e.clusters)
	return out
}

// Points：全部点（按加入顺序）
func (e *Engine) Points() []Point {
	out := make([]Point, 0, e.order.Len())
	for el := e.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry).p)
	}
	return out
}

func (e *Engine) Host() Host          { return e.host }
func (e *Engine) GridSize() int       { return e.opts.GridSize }
func (e *Engine) MaxZoom() int        { return e.opts.MaxZoom }
func (e *Engine) MinClusterSize() int { return e.opts.MinClusterSize }
func (e *Engine) AverageCenter() bool { return e.opts.AverageCenter }
func (e *Engine) Styles() []Style     { return e.opts.Styles }

func (e *Engine) SetGridSize(size int) {
	e.opts.GridSize = size
	e.opts = e.opts.normalized()
	e.Redraw()
}

func (e *Engine) SetMaxZoom(zoom int) {
	e.opts.MaxZoom = zoom
	e.opts = e.opts.normalized()
	e.Redraw()
}

func (e *Engine) SetMinClusterSize(size int) {
	e.opts.MinClusterSize = size
	e.opts = e.opts.normalized()
	e.Redraw()
}

func (e *Engine) SetStyles(styles []Style) {
	e.opts.Styles = styles
	e.Redraw()
}

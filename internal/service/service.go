// 包 service：按视野参数在服务端完成一次聚会聚合，输出可直接绘制的快照，并处理聚合标记的点击
// 约束：每个请求独立创建视野与聚合器，不在请求间共享可变状态；快照按数据版本缓存，聚会变更后失效。
package service

import (
	"context"
	"errors"
	"fmt"

	"party-map/internal/cache"
	"party-map/internal/cluster"
	"party-map/internal/coord"
	"party-map/internal/interaction"
	"party-map/internal/logger"
	"party-map/internal/party"
	"party-map/internal/popup"
	"party-map/internal/viewport"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// ErrNoCluster：点击的聚合不存在或未形成
var ErrNoCluster = errors.New("cluster not found")

// PartySource：按范围读取聚会（WGS-84）
type PartySource interface {
	ListInBound(ctx context.Context, b orb.Bound, viewer string) ([]*party.Party, error)
}

// BBox：[west, south, east, north]
type BBox [4]float64

// ClusterView：一个已形成的聚合
type ClusterView struct {
	Index   int            `json:"index"`
	Lng     float64        `json:"lng"`
	Lat     float64        `json:"lat"`
	Count   int            `json:"count"`
	Label   string         `json:"label"`
	Style   *cluster.Style `json:"style,omitempty"`
	Bounds  BBox           `json:"bounds"`
	Members []int64        `json:"members"`
}

// PartyView：单独显示的聚会
type PartyView struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Lng         float64 `json:"lng"`
	Lat         float64 `json:"lat"`
	Photo       string  `json:"user_photo,omitempty"`
	Highlighted bool    `json:"highlighted"`
	Kind        string  `json:"kind"`
	Link        string  `json:"link"`
}

// Snapshot：一次聚合的结果；坐标均在请求的坐标系下
type Snapshot struct {
	Version  int64         `json:"version"`
	Coord    string        `json:"coord"`
	Zoom     int           `json:"zoom"`
	Bounds   BBox          `json:"bounds"`
	Total    int           `json:"total"`
	Clusters []ClusterView `json:"clusters"`
	Points   []PartyView   `json:"points"`
}

// ClickResult：点击结果；zoom 动作给出新的中心与级别，list 动作给出成员列表
type ClickResult struct {
	Action interaction.Action `json:"action"`
	Lng    float64            `json:"lng"`
	Lat    float64            `json:"lat"`
	Zoom   int                `json:"zoom"`
	Bounds BBox               `json:"bounds"`
	Items  []popup.Item       `json:"items,omitempty"`
}

// Clusterer：聚合服务
type Clusterer struct {
	src   PartySource
	snaps *cache.Snapshots
	cfg   Config
}

// New：snaps 为 nil 时不缓存
func New(src PartySource, snaps *cache.Snapshots, cfg Config) *Clusterer {
	return &Clusterer{src: src, snaps: snaps, cfg: cfg}
}

func (c *Clusterer) Config() Config { return c.cfg }

// Invalidate：聚会数据变更后调用，使全部快照失效
func (c *Clusterer) Invalidate(ctx context.Context) {
	if c.snaps != nil {
		v := c.snaps.Bump(ctx)
		logger.L().Debug("snapshot_invalidate", "version", v)
	}
}

// session：一次请求内的视野与聚合器
type session struct {
	view    View
	m       *viewport.Map
	engine  *cluster.Engine
	parties []*party.Party
	cancel  []func()
}

func (c *Clusterer) options(v View) cluster.Options {
	o := cluster.Options{
		GridSize:       c.cfg.GridSize,
		MaxZoom:        c.cfg.MaxZoom,
		MinClusterSize: c.cfg.MinClusterSize,
		AverageCenter:  c.cfg.AverageCenter,
		Styles:         party.DefaultStyles(c.cfg.LinkBase),
		Label:          party.Label(c.cfg.LabelSuffix),
	}
	if v.GridSize > 0 {
		o.GridSize = v.GridSize
	}
	if v.MaxZoom > 0 {
		o.MaxZoom = v.MaxZoom
	}
	if v.MinSize > 0 {
		o.MinClusterSize = v.MinSize
	}
	if v.Average != nil {
		o.AverageCenter = *v.Average
	}
	return o
}

// open：h 不为空时先订阅弹窗收起，再创建聚合器，保证视野变化时先收起弹窗再重建聚合
func (c *Clusterer) open(ctx context.Context, v View, h *interaction.Handler) (*session, error) {
	if v.Width <= 0 {
		v.Width = c.cfg.Width
	}
	if v.Height <= 0 {
		v.Height = c.cfg.Height
	}
	center := coord.ToWGS84(v.Center, v.Coord)
	m := viewport.New(center, v.Zoom, v.Width, v.Height)
	m.SetMinZoom(c.cfg.MinZoom)
	m.SetZoom(v.Zoom)

	opts := c.options(v)
	query := cluster.ExtendedBounds(m, m.Bounds(), opts.GridSize)
	ps, err := c.src.ListInBound(ctx, query, v.Viewer)
	if err != nil {
		return nil, fmt.Errorf("list parties: %w", err)
	}
	ps = party.FilterVisible(ps)
	if v.distanceLimited() {
		limit := v.DistanceKM * 1000
		kept := ps[:0]
		for _, p := range ps {
			if geo.Distance(center, p.Position()) <= limit {
				kept = append(kept, p)
			}
		}
		ps = kept
	}
	opts.Points = party.Points(ps)
	s := &session{view: v, m: m, parties: ps}
	if h != nil {
		s.cancel = append(s.cancel, h.CloseOnViewportChange(m))
	}
	s.engine = cluster.New(m, m, opts)
	return s, nil
}

func (s *session) close() {
	s.engine.Close()
	for _, fn := range s.cancel {
		fn()
	}
}

// Cluster：按视野聚合；命中缓存时不访问存储
func (c *Clusterer) Cluster(ctx context.Context, v View) (*Snapshot, error) {
	key := v.cacheKey()
	if c.snaps != nil {
		var snap Snapshot
		if c.snaps.Get(ctx, key, &snap) {
			return &snap, nil
		}
	}
	s, err := c.open(ctx, v, nil)
	if err != nil {
		return nil, err
	}
	defer s.close()
	snap := c.snapshot(s)
	if c.snaps != nil {
		snap.Version = c.snaps.Version(ctx)
		if err := c.snaps.Set(ctx, key, snap); err != nil {
			logger.L().Debug("snapshot_store_error", "err", err)
		}
	}
	return snap, nil
}

func (c *Clusterer) snapshot(s *session) *Snapshot {
	sys := s.view.Coord
	snap := &Snapshot{
		Coord:    string(sys),
		Zoom:     s.m.Zoom(),
		Bounds:   toBBox(coord.BoundFromWGS84(s.m.Bounds(), sys)),
		Total:    len(s.parties),
		Clusters: []ClusterView{},
		Points:   []PartyView{},
	}
	for i, cl := range s.engine.Clusters() {
		mk := cl.Marker()
		if !cl.IsReal() || mk.Hidden() || !s.m.Attached(mk) {
			continue
		}
		pos := coord.FromWGS84(mk.Position(), sys)
		cv := ClusterView{
			Index:  i,
			Lng:    pos.Lon(),
			Lat:    pos.Lat(),
			Count:  mk.Count(),
			Label:  mk.Text(),
			Bounds: toBBox(coord.BoundFromWGS84(cl.Bounds(), sys)),
		}
		if st, ok := mk.Style(); ok {
			cv.Style = &st
		}
		for _, m := range cl.Members() {
			cv.Members = append(cv.Members, m.(*party.Party).ID)
		}
		snap.Clusters = append(snap.Clusters, cv)
	}
	for _, o := range s.m.Overlays() {
		p, ok := o.(*party.Party)
		if !ok {
			continue
		}
		pos := coord.FromWGS84(p.Position(), sys)
		snap.Points = append(snap.Points, PartyView{
			ID:          p.ID,
			Title:       p.Title,
			Lng:         pos.Lon(),
			Lat:         pos.Lat(),
			Photo:       p.UserPhoto,
			Highlighted: p.Highlighted(),
			Kind:        string(p.Kind(s.view.Viewer)),
			Link:        p.Link(c.cfg.LinkBase, s.view.Viewer),
		})
	}
	logger.L().Debug("snapshot_built", "zoom", snap.Zoom, "total", snap.Total, "clusters", len(snap.Clusters), "points", len(snap.Points))
	return snap
}

// Click：重放同一视野的聚合并点击第 index 个聚合
// 列表级别下返回成员列表；否则视野调整到聚合全貌，返回新的中心与级别
// 约束：服务端不保存跨请求的弹窗状态，每次点击使用独立的单槽注册表，不触碰 popup.Default；单槽由客户端会话维持
func (c *Clusterer) Click(ctx context.Context, v View, index int) (*ClickResult, error) {
	viewer := v.Viewer
	h := &interaction.Handler{
		ListZoom: c.cfg.ListZoom,
		Popups:   &popup.Registry{},
		Describe: func(p cluster.Point) popup.Item {
			pt := p.(*party.Party)
			return popup.Item{ID: pt.Key(), Title: pt.Title, Link: pt.Link(c.cfg.LinkBase, viewer)}
		},
	}
	s, err := c.open(ctx, v, h)
	if err != nil {
		return nil, err
	}
	defer s.close()
	clusters := s.engine.Clusters()
	if index < 0 || index >= len(clusters) || !clusters[index].IsReal() || !s.m.Attached(clusters[index].Marker()) {
		return nil, ErrNoCluster
	}
	r := h.Click(s.m, clusters[index])

	sys := s.view.Coord
	center := coord.FromWGS84(s.m.Center(), sys)
	out := &ClickResult{
		Action: r.Action,
		Lng:    center.Lon(),
		Lat:    center.Lat(),
		Zoom:   s.m.Zoom(),
		Bounds: toBBox(coord.BoundFromWGS84(r.Bounds, sys)),
	}
	if r.Popup != nil {
		out.Items = r.Popup.Items
	}
	logger.L().Debug("cluster_click", "index", index, "action", r.Action, "zoom", out.Zoom)
	return out, nil
}

func toBBox(b orb.Bound) BBox {
	return BBox{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()}
}

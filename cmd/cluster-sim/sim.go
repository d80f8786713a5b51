package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"party-map/internal/cluster"
	"party-map/internal/interaction"
	"party-map/internal/party"
	"party-map/internal/popup"
	"party-map/internal/viewport"

	"github.com/paulmach/orb"
)

// sim：一张无界面地图 + 聚合器 + 点击处理，按脚本逐步操作并输出聚合状态
type sim struct {
	m       *viewport.Map
	engine  *cluster.Engine
	click   *interaction.Handler
	out     io.Writer
	parties map[int64]*party.Party
	cancel  func()
}

func newSim(m *viewport.Map, opts cluster.Options, ps []*party.Party, popups *popup.Registry, linkBase string, out io.Writer) *sim {
	s := &sim{m: m, out: out, parties: make(map[int64]*party.Party)}
	for _, p := range ps {
		s.parties[p.ID] = p
	}
	s.click = &interaction.Handler{
		Popups: popups,
		Describe: func(p cluster.Point) popup.Item {
			pt := p.(*party.Party)
			return popup.Item{ID: pt.Key(), Title: pt.Title, Link: pt.Link(linkBase, "")}
		},
	}
	// 先订阅弹窗收起，再创建聚合器
	s.cancel = s.click.CloseOnViewportChange(m)
	opts.Points = party.Points(party.FilterVisible(ps))
	s.engine = cluster.New(m, m, opts)
	return s
}

func (s *sim) close() {
	s.engine.Close()
	s.cancel()
}

// run：逐行执行脚本，空行与 # 开头的行跳过；任一命令出错即停止
//
//	pan <lng> <lat>
//	zoom <z>
//	center <lng> <lat> <z>
//	fit <west> <south> <east> <north>
//	click <index>
//	add <id> <lng> <lat> [title]
//	remove <id>
//	grid <px> | maxzoom <z> | minsize <n>
//	clear
//	show
func (s *sim) run(script io.Reader) error {
	sc := bufio.NewScanner(script)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fmt.Fprintf(s.out, "> %s\n", text)
		if err := s.step(strings.Fields(text)); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		s.print()
	}
	return sc.Err()
}

func floats(args []string, n int) ([]float64, error) {
	if len(args) < n {
		return nil, fmt.Errorf("want %d numbers, got %d", n, len(args))
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		f, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", args[i])
		}
		out[i] = f
	}
	return out, nil
}

func (s *sim) step(f []string) error {
	cmd, args := f[0], f[1:]
	switch cmd {
	case "pan":
		v, err := floats(args, 2)
		if err != nil {
			return err
		}
		s.m.PanTo(orb.Point{v[0], v[1]})
	case "zoom":
		v, err := floats(args, 1)
		if err != nil {
			return err
		}
		s.m.SetZoom(int(v[0]))
	case "center":
		v, err := floats(args, 3)
		if err != nil {
			return err
		}
		s.m.CenterAndZoom(orb.Point{v[0], v[1]}, int(v[2]))
	case "fit":
		v, err := floats(args, 4)
		if err != nil {
			return err
		}
		s.m.SetViewport(orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}})
	case "click":
		v, err := floats(args, 1)
		if err != nil {
			return err
		}
		cs := s.engine.Clusters()
		i := int(v[0])
		if i < 0 || i >= len(cs) || !cs[i].IsReal() || !s.m.Attached(cs[i].Marker()) {
			return fmt.Errorf("no clickable cluster %d", i)
		}
		r := s.click.Click(s.m, cs[i])
		fmt.Fprintf(s.out, "  click %s\n", r.Action)
		if r.Popup != nil {
			for _, it := range r.Popup.Items {
				fmt.Fprintf(s.out, "    %s %s %s\n", it.ID, it.Title, it.Link)
			}
		}
	case "add":
		v, err := floats(args, 3)
		if err != nil {
			return err
		}
		p := &party.Party{ID: int64(v[0]), Lng: v[1], Lat: v[2], JoinStatus: -1}
		if len(args) > 3 {
			p.Title = strings.Join(args[3:], " ")
		}
		if err := p.Validate(); err != nil {
			return err
		}
		s.parties[p.ID] = p
		s.engine.AddPoint(p)
	case "remove":
		v, err := floats(args, 1)
		if err != nil {
			return err
		}
		p, ok := s.parties[int64(v[0])]
		if !ok || !s.engine.RemovePoint(p) {
			return fmt.Errorf("unknown party %d", int64(v[0]))
		}
		delete(s.parties, p.ID)
	case "grid":
		v, err := floats(args, 1)
		if err != nil {
			return err
		}
		s.engine.SetGridSize(int(v[0]))
	case "maxzoom":
		v, err := floats(args, 1)
		if err != nil {
			return err
		}
		s.engine.SetMaxZoom(int(v[0]))
	case "minsize":
		v, err := floats(args, 1)
		if err != nil {
			return err
		}
		s.engine.SetMinClusterSize(int(v[0]))
	case "clear":
		s.engine.Clear()
		s.parties = make(map[int64]*party.Party)
	case "show":
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func (s *sim) print() {
	c := s.m.Center()
	fmt.Fprintf(s.out, "  view %.6f,%.6f z%d clusters=%d\n", c.Lon(), c.Lat(), s.m.Zoom(), s.engine.ClusterCount())
	for i, cl := range s.engine.Clusters() {
		mk := cl.Marker()
		if !cl.IsReal() || !s.m.Attached(mk) {
			continue
		}
		ids := make([]string, 0, cl.Size())
		for _, m := range cl.Members() {
			ids = append(ids, m.Key())
		}
		fmt.Fprintf(s.out, "  [%d] %s @ %.6f,%.6f {%s}\n", i, mk.Text(), mk.Position().Lon(), mk.Position().Lat(), strings.Join(ids, ","))
	}
	for _, o := range s.m.Overlays() {
		if p, ok := o.(*party.Party); ok {
			fmt.Fprintf(s.out, "  point %d @ %.6f,%.6f\n", p.ID, p.Lng, p.Lat)
		}
	}
}

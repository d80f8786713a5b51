// 聚合模拟工具：在内存中的地图上重放视野脚本（平移、缩放、点击、增删点），输出每一步后的聚合结果
package main

import (
	"flag"
	"io"
	"os"

	"party-map/internal/cluster"
	"party-map/internal/coord"
	"party-map/internal/ingest"
	"party-map/internal/locate"
	"party-map/internal/logger"
	"party-map/internal/party"
	"party-map/internal/popup"
	"party-map/internal/service"
	"party-map/internal/viewport"
)

func main() {
	partiesPath := flag.String("parties", "", "party list (JSON array or one JSON object per line)")
	scriptPath := flag.String("script", "", "script file, default stdin")
	sysName := flag.String("coord", "bd09", "coordinate system of the party list")
	width := flag.Int("w", 1024, "viewport width in px")
	height := flag.Int("h", 768, "viewport height in px")
	flag.Parse()
	l := logger.Setup()

	sys, err := coord.ParseSystem(*sysName)
	if err != nil {
		l.Error("sim_bad_coord", "err", err)
		os.Exit(2)
	}
	var ps []*party.Party
	if *partiesPath != "" {
		f, err := os.Open(*partiesPath)
		if err != nil {
			l.Error("sim_open_error", "err", err)
			os.Exit(1)
		}
		ps, err = ingest.Decode(f, sys)
		f.Close()
		if err != nil {
			l.Error("sim_decode_error", "err", err)
			os.Exit(1)
		}
	}
	var script io.Reader = os.Stdin
	if *scriptPath != "" {
		f, err := os.Open(*scriptPath)
		if err != nil {
			l.Error("sim_open_error", "err", err)
			os.Exit(1)
		}
		defer f.Close()
		script = f
	}

	cfg := service.ConfigFromEnv()
	start := locate.Default()
	m := viewport.New(start.Center, start.Zoom, *width, *height)
	m.SetMinZoom(cfg.MinZoom)
	opts := cluster.Options{
		GridSize:       cfg.GridSize,
		MaxZoom:        cfg.MaxZoom,
		MinClusterSize: cfg.MinClusterSize,
		AverageCenter:  cfg.AverageCenter,
		Styles:         party.DefaultStyles(cfg.LinkBase),
		Label:          party.Label(cfg.LabelSuffix),
	}
	s := newSim(m, opts, ps, popup.Default, cfg.LinkBase, os.Stdout)
	defer s.close()
	s.click.ListZoom = cfg.ListZoom
	s.print()
	if err := s.run(script); err != nil {
		l.Error("sim_error", "err", err)
		os.Exit(1)
	}
}

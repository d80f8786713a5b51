package service

import (
	"os"
	"strconv"
	"time"

	"party-map/internal/cluster"
	"party-map/internal/interaction"
)

// Config：聚合服务的默认参数；单次请求可覆盖 GridSize/MaxZoom/MinClusterSize/AverageCenter
type Config struct {
	GridSize       int
	MaxZoom        int
	MinClusterSize int
	AverageCenter  bool
	ListZoom       int
	MinZoom        int
	Width          int
	Height         int
	CacheTTL       time.Duration
	LRUSize        int
	LinkBase       string
	LabelSuffix    string
}

// DefaultConfig：网格 30px，最大聚合级别 19，平均中心，最小级别 2
func DefaultConfig() Config {
	return Config{
		GridSize:       30,
		MaxZoom:        19,
		MinClusterSize: cluster.DefaultMinClusterSize,
		AverageCenter:  true,
		ListZoom:       interaction.DefaultListZoom,
		MinZoom:        2,
		Width:          1024,
		Height:         768,
		CacheTTL:       60 * time.Second,
		LRUSize:        1024,
		LabelSuffix:    "场",
	}
}

// ConfigFromEnv：CLUSTER_* / PARTY_* 环境变量覆盖默认值，解析失败时保持默认
func ConfigFromEnv() Config {
	c := DefaultConfig()
	envInt("CLUSTER_GRID_SIZE", &c.GridSize)
	envInt("CLUSTER_MAX_ZOOM", &c.MaxZoom)
	envInt("CLUSTER_MIN_SIZE", &c.MinClusterSize)
	envInt("CLUSTER_LIST_ZOOM", &c.ListZoom)
	envInt("CLUSTER_MIN_ZOOM", &c.MinZoom)
	envInt("CLUSTER_LRU_SIZE", &c.LRUSize)
	if v := os.Getenv("CLUSTER_AVERAGE_CENTER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.AverageCenter = b
		}
	}
	ttl := int(c.CacheTTL / time.Second)
	envInt("CLUSTER_CACHE_TTL_S", &ttl)
	c.CacheTTL = time.Duration(ttl) * time.Second
	c.LinkBase = os.Getenv("PARTY_LINK_BASE")
	if v, ok := os.LookupEnv("PARTY_LABEL_SUFFIX"); ok {
		c.LabelSuffix = v
	}
	return c
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			*dst = n
		}
	}
}

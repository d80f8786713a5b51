// 包 metrics：进程级 Prometheus 指标，在 init 中注册，由 Handler 暴露到 /metrics
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var msBuckets = []float64{0.1, 0.5, 1, 5, 10, 20, 50, 100, 200, 500, 1000}

var (
	ClusterPassesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "partymap_cluster_passes_total",
		Help: "Total number of full clustering passes",
	})
	ClusterPassDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "partymap_cluster_pass_duration_ms",
		Help:    "Clustering pass duration in milliseconds",
		Buckets: msBuckets,
	})
	ClustersPerPass = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "partymap_clusters_per_pass",
		Help:    "Number of clusters produced by one pass",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 200, 500},
	})
	ClickActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "partymap_click_actions_total",
		Help: "Cluster click resolutions by action",
	}, []string{"action"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "partymap_http_requests_total",
		Help: "Total HTTP requests by path and status",
	}, []string{"path", "status"})
	HTTPDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "partymap_http_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: msBuckets,
	}, []string{"path"})

	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "partymap_cache_hits_total",
		Help: "Cache hits by layer (lru, redis)",
	}, []string{"layer"})
	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "partymap_cache_misses_total",
		Help: "Cache misses by layer (lru, redis)",
	}, []string{"layer"})

	StoreOpsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "partymap_store_ops_total",
		Help: "Party store operations by op and status",
	}, []string{"op", "status"})
	PartiesVisible = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "partymap_parties_visible",
		Help: "Number of parties currently loaded into the clustering engine",
	})

	LocateRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "partymap_locate_requests_total",
		Help: "Total locate source queries",
	}, []string{"source"})
	LocateSuccessTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "partymap_locate_success_total",
		Help: "Locate source queries returning a position",
	}, []string{"source"})
	LocateFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "partymap_locate_fail_total",
		Help: "Locate source queries failing or returning nothing",
	}, []string{"source"})
	LocateDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "partymap_locate_duration_ms",
		Help:    "Locate source query duration in milliseconds",
		Buckets: msBuckets,
	}, []string{"source"})
	LocateHeartbeatTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "partymap_locate_heartbeat_total",
		Help: "Locate source heartbeat count by status",
	}, []string{"source", "status"})

	AMapRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "partymap_amap_requests_total",
		Help: "Total amap REST requests",
	})
	AMapFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "partymap_amap_fail_total",
		Help: "Total amap REST failures",
	})
	AMapDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "partymap_amap_duration_ms",
		Help:    "AMap REST call duration in milliseconds",
		Buckets: msBuckets,
	})
)

func init() {
	prometheus.MustRegister(
		ClusterPassesTotal,
		ClusterPassDurationMs,
		ClustersPerPass,
		ClickActionsTotal,
		HTTPRequestsTotal,
		HTTPDurationMs,
		CacheHitsTotal,
		CacheMissesTotal,
		StoreOpsTotal,
		PartiesVisible,
		LocateRequestsTotal,
		LocateSuccessTotal,
		LocateFailTotal,
		LocateDurationMs,
		LocateHeartbeatTotal,
		AMapRequestsTotal,
		AMapFailTotal,
		AMapDurationMs,
	)
}

// Handler：Prometheus 抓取入口，挂载在 /metrics
func Handler() http.Handler { return promhttp.Handler() }

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "terrain_requests_total",
		Help: "Total API requests by route",
	}, []string{"route"})
	RequestDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "terrain_request_duration_ms",
		Help:    "Request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	BadRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "terrain_bad_requests_total",
		Help: "Total rejected requests by route",
	}, []string{"route"})
	HeightQueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "terrain_height_queries_total",
		Help: "Total height lookups by interpolant",
	}, []string{"method"})
	RedisHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "terrain_redis_hits_total",
		Help: "Total redis cache hits",
	})
	RedisMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "terrain_redis_misses_total",
		Help: "Total redis cache misses",
	})
	GameLoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "terrain_game_logins_total",
		Help: "Game logins by outcome",
	}, []string{"status"})
	GameQueriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "terrain_game_height_queries_total",
		Help: "Total ask_height messages answered",
	})
	GameFinalDistanceM = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "terrain_game_final_distance_m",
		Help:    "Distance from final answers to the nearest hill top in meters",
		Buckets: []float64{10, 50, 100, 500, 1000, 5000, 20000, 100000},
	})
	GeoIPLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "terrain_geoip_lookups_total",
		Help: "GeoIP lookups by outcome",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(BadRequestsTotal)
	prometheus.MustRegister(HeightQueriesTotal)
	prometheus.MustRegister(RedisHitsTotal)
	prometheus.MustRegister(RedisMissesTotal)
	prometheus.MustRegister(GameLoginsTotal)
	prometheus.MustRegister(GameQueriesTotal)
	prometheus.MustRegister(GameFinalDistanceM)
	prometheus.MustRegister(GeoIPLookupsTotal)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }

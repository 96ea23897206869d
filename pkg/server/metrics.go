package server

import (
	"net/http"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metric descriptors for the game server.
type Metrics struct {
	game *Game

	playersConnected *prometheus.GaugeVec
	objectsTotal     *prometheus.GaugeVec
	locateResults    *prometheus.GaugeVec
	lockCacheOps     *prometheus.GaugeVec
	lockCompiles     prometheus.Gauge
	lockEvalErrors   prometheus.Gauge
	uptimeSeconds    prometheus.Gauge
	memoryHeapBytes  prometheus.Gauge
	goroutines       prometheus.Gauge
}

// NewMetrics creates and registers Prometheus metrics for the game.
func NewMetrics(game *Game) *Metrics {
	m := &Metrics{
		game: game,
		playersConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gopennmush_players_connected",
			Help: "Number of currently connected players by transport.",
		}, []string{"transport"}),
		objectsTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gopennmush_objects_total",
			Help: "Number of objects in the database by type.",
		}, []string{"type"}),
		locateResults: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gopennmush_locate_results_total",
			Help: "Cumulative name resolutions by outcome.",
		}, []string{"outcome"}),
		lockCacheOps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gopennmush_lock_cache_ops_total",
			Help: "Cumulative compiled-lock cache lookups by result.",
		}, []string{"result"}),
		lockCompiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gopennmush_lock_compiles_total",
			Help: "Cumulative lock expression compilations.",
		}),
		lockEvalErrors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gopennmush_lock_eval_errors_total",
			Help: "Cumulative lock evaluation errors (failed closed).",
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gopennmush_uptime_seconds",
			Help: "Server uptime in seconds.",
		}),
		memoryHeapBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gopennmush_memory_heap_bytes",
			Help: "Go heap memory allocated in bytes.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gopennmush_goroutines",
			Help: "Number of active goroutines.",
		}),
	}

	prometheus.MustRegister(
		m.playersConnected,
		m.objectsTotal,
		m.locateResults,
		m.lockCacheOps,
		m.lockCompiles,
		m.lockEvalErrors,
		m.uptimeSeconds,
		m.memoryHeapBytes,
		m.goroutines,
	)

	return m
}

// Update refreshes all gauge metrics from current game state.
func (m *Metrics) Update() {
	tcp, ws := m.game.Conns.CountByTransport()
	m.playersConnected.WithLabelValues("tcp").Set(float64(tcp))
	m.playersConnected.WithLabelValues("websocket").Set(float64(ws))

	for t, n := range m.game.ObjectCounts() {
		m.objectsTotal.WithLabelValues(t.String()).Set(float64(n))
	}

	ls := m.game.Resolver.Stats()
	m.locateResults.WithLabelValues("match").Set(float64(ls.Matches))
	m.locateResults.WithLabelValues("not_found").Set(float64(ls.NotFound))
	m.locateResults.WithLabelValues("ambiguous").Set(float64(ls.Ambiguous))
	m.locateResults.WithLabelValues("permission_denied").Set(float64(ls.PermissionDenied))

	hits, misses, compiles, evalErrors := m.game.Locks.Stats()
	m.lockCacheOps.WithLabelValues("hit").Set(float64(hits))
	m.lockCacheOps.WithLabelValues("miss").Set(float64(misses))
	m.lockCompiles.Set(float64(compiles))
	m.lockEvalErrors.Set(float64(evalErrors))

	m.uptimeSeconds.Set(m.game.Uptime())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	m.memoryHeapBytes.Set(float64(mem.HeapAlloc))
	m.goroutines.Set(float64(runtime.NumGoroutine()))
}

// Handler returns an http.Handler that updates metrics before serving them.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Update()
		promhttp.Handler().ServeHTTP(w, r)
	})
}

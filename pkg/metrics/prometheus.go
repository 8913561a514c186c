package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics контейнер метрик планировщика
type Metrics struct {
	// Запуски движка
	RunsTotal    *prometheus.CounterVec
	RunDuration  *prometheus.HistogramVec
	RunsInFlight prometheus.Gauge

	// Ремонт связности
	RepairSweeps          prometheus.Histogram
	RelabelsTotal         *prometheus.CounterVec
	DisconnectedDistricts prometheus.Histogram
	BridgesAdded          prometheus.Counter

	// Посев новых округов
	SeedAttemptsTotal *prometheus.CounterVec

	// Размер графа
	GraphNodes *prometheus.HistogramVec
	GraphEdges *prometheus.HistogramVec

	// Кэш результатов
	CacheLookupsTotal *prometheus.CounterVec

	// Информация о сервисе
	ServiceInfo *prometheus.GaugeVec
}

var (
	defaultMetrics *Metrics
	defaultMu      sync.Mutex
)

// InitMetrics регистрирует метрики в prometheus.DefaultRegisterer
func InitMetrics(namespace, subsystem string) *Metrics {
	m := NewMetrics(prometheus.DefaultRegisterer, namespace, subsystem)

	defaultMu.Lock()
	defaultMetrics = m
	defaultMu.Unlock()

	return m
}

// NewMetrics создаёт метрики в указанном реестре
func NewMetrics(reg prometheus.Registerer, namespace, subsystem string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "runs_total",
				Help:      "Total number of repair and seed runs",
			},
			[]string{"status"},
		),

		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "run_duration_seconds",
				Help:      "Duration of repair and seed runs",
				Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"status"},
		),

		RunsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "runs_in_flight",
				Help:      "Current number of runs being processed",
			},
		),

		RepairSweeps: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "repair_sweeps",
				Help:      "Number of sweeps until the repair fixpoint",
				Buckets:   []float64{1, 2, 3, 5, 10, 25, 50, 100, 250, 1000},
			},
		),

		RelabelsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "relabels_total",
				Help:      "Total number of district label changes",
			},
			[]string{"cause"},
		),

		DisconnectedDistricts: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "disconnected_districts",
				Help:      "Number of fragmented districts found per run",
				Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
			},
		),

		BridgesAdded: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "bridges_added_total",
				Help:      "Total number of synthetic bridge edges added",
			},
		),

		SeedAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "seed_attempts_total",
				Help:      "Seed attempts by outcome",
			},
			[]string{"result"},
		),

		GraphNodes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "graph_nodes",
				Help:      "Number of geo units in processed graphs",
				Buckets:   []float64{10, 100, 1000, 10000, 50000, 100000, 500000, 1000000},
			},
			[]string{"operation"},
		),

		GraphEdges: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "graph_edges",
				Help:      "Number of adjacency edges in processed graphs",
				Buckets:   []float64{20, 200, 2000, 20000, 100000, 500000, 2500000},
			},
			[]string{"operation"},
		),

		CacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_lookups_total",
				Help:      "Result cache lookups by outcome",
			},
			[]string{"result"},
		),

		ServiceInfo: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Service information",
			},
			[]string{"version", "environment"},
		),
	}
}

// Get возвращает глобальные метрики, создавая их при первом обращении
func Get() *Metrics {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultMetrics == nil {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer, "redistrict", "")
	}
	return defaultMetrics
}

// RecordRun записывает итог запуска
func (m *Metrics) RecordRun(status string, duration time.Duration) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordRepair записывает итог ремонта связности
func (m *Metrics) RecordRepair(sweeps, disconnected int) {
	m.RepairSweeps.Observe(float64(sweeps))
	m.DisconnectedDistricts.Observe(float64(disconnected))
}

// RecordRelabel учитывает смену метки
func (m *Metrics) RecordRelabel(cause string) {
	m.RelabelsTotal.WithLabelValues(cause).Inc()
}

// RecordSeedAttempt учитывает попытку посева
func (m *Metrics) RecordSeedAttempt(result string) {
	m.SeedAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordBridges учитывает добавленные мосты
func (m *Metrics) RecordBridges(count int) {
	m.BridgesAdded.Add(float64(count))
}

// RecordGraphSize записывает размер графа
func (m *Metrics) RecordGraphSize(operation string, nodes, edges int) {
	m.GraphNodes.WithLabelValues(operation).Observe(float64(nodes))
	m.GraphEdges.WithLabelValues(operation).Observe(float64(edges))
}

// RecordCacheLookup учитывает обращение к кэшу
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// SetServiceInfo устанавливает информацию о сервисе
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// Handler возвращает HTTP handler для /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewServer создаёт HTTP сервер с /metrics и /health
func NewServer(port int, path string) *http.Server {
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK")) //nolint:errcheck // health endpoint
	})

	return &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

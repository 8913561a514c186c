package metrics

import (
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// RuntimeCollector собирает метрики runtime
type RuntimeCollector struct {
	goroutines *prometheus.Desc
	heapAlloc  *prometheus.Desc
	heapSys    *prometheus.Desc
	gcRuns     *prometheus.Desc
}

// NewRuntimeCollector создаёт коллектор runtime метрик
func NewRuntimeCollector(namespace, subsystem string) *RuntimeCollector {
	return &RuntimeCollector{
		goroutines: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "runtime_goroutines"),
			"Number of goroutines",
			nil, nil,
		),
		heapAlloc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "runtime_heap_alloc_bytes"),
			"Heap bytes allocated and still in use",
			nil, nil,
		),
		heapSys: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "runtime_heap_sys_bytes"),
			"Heap bytes obtained from system",
			nil, nil,
		),
		gcRuns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "runtime_gc_runs_total"),
			"Total number of completed GC cycles",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *RuntimeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.goroutines
	ch <- c.heapAlloc
	ch <- c.heapSys
	ch <- c.gcRuns
}

// Collect implements prometheus.Collector
func (c *RuntimeCollector) Collect(ch chan<- prometheus.Metric) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	ch <- prometheus.MustNewConstMetric(c.goroutines, prometheus.GaugeValue, float64(runtime.NumGoroutine()))
	ch <- prometheus.MustNewConstMetric(c.heapAlloc, prometheus.GaugeValue, float64(stats.HeapAlloc))
	ch <- prometheus.MustNewConstMetric(c.heapSys, prometheus.GaugeValue, float64(stats.HeapSys))
	ch <- prometheus.MustNewConstMetric(c.gcRuns, prometheus.CounterValue, float64(stats.NumGC))
}

// RunTracker отслеживает выполняющиеся запуски по имени плана
type RunTracker struct {
	mu       sync.Mutex
	active   map[string]int
	inFlight prometheus.Gauge
}

// NewRunTracker создаёт трекер запусков
func NewRunTracker(inFlight prometheus.Gauge) *RunTracker {
	return &RunTracker{
		active:   make(map[string]int),
		inFlight: inFlight,
	}
}

// Start отмечает начало запуска
func (t *RunTracker) Start(plan string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active[plan]++
	t.inFlight.Inc()
}

// End отмечает завершение запуска
func (t *RunTracker) End(plan string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active[plan] > 0 {
		t.active[plan]--
		t.inFlight.Dec()
		if t.active[plan] == 0 {
			delete(t.active, plan)
		}
	}
}

// Active возвращает число выполняющихся запусков плана
func (t *RunTracker) Active(plan string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.active[plan]
}

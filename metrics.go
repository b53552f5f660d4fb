package pollkit

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// LoadCollector is a prometheus.Collector exposing the per-poller load of a
// pool, plus its member count. Register it against whichever registry the
// application scrapes:
//
//	registry.MustRegister(pollkit.NewLoadCollector(`myapp`, pollkit.DefaultPool()))
type LoadCollector struct {
	pool     *PollerPool
	loadDesc *prometheus.Desc
	sizeDesc *prometheus.Desc
}

// NewLoadCollector builds a collector over pool, namespacing the metric
// names.
func NewLoadCollector(namespace string, pool *PollerPool) *LoadCollector {
	return &LoadCollector{
		pool: pool,
		loadDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, `poller`, `load_percent`),
			`Run time as a percentage of total time, per poller, over the load meter window.`,
			[]string{`poller`},
			nil,
		),
		sizeDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, `poller`, `pool_size`),
			`Number of pollers in the pool.`,
			nil,
			nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (x *LoadCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- x.loadDesc
	ch <- x.sizeDesc
}

// Collect implements prometheus.Collector.
func (x *LoadCollector) Collect(ch chan<- prometheus.Metric) {
	loads := x.pool.ExecutorLoads()
	ch <- prometheus.MustNewConstMetric(x.sizeDesc, prometheus.GaugeValue, float64(len(loads)))
	for i, load := range loads {
		ch <- prometheus.MustNewConstMetric(x.loadDesc, prometheus.GaugeValue, float64(load), strconv.Itoa(i))
	}
}

var _ prometheus.Collector = (*LoadCollector)(nil)

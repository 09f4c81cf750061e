package pool

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "leaporm"

// Collector exposes Stats of one or more pools to Prometheus. Values are read
// at scrape time.
type Collector struct {
	pools []*Pool

	maxConns  *prometheus.Desc
	open      *prometheus.Desc
	idle      *prometheus.Desc
	leased    *prometheus.Desc
	dialing   *prometheus.Desc
	waits     *prometheus.Desc
	exhausted *prometheus.Desc
	discarded *prometheus.Desc
}

// NewCollector returns a collector for the given pools, labelled by pool name.
func NewCollector(pools ...*Pool) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "pool", name), help, []string{"pool"}, nil)
	}
	return &Collector{
		pools:     pools,
		maxConns:  desc("max_connections", "Maximum number of open connections."),
		open:      desc("open_connections", "Open connections, idle and leased."),
		idle:      desc("idle_connections", "Connections idle in the pool."),
		leased:    desc("leased_connections", "Connections currently leased."),
		dialing:   desc("dialing_connections", "Connections being opened."),
		waits:     desc("wait_total", "Acquires that waited for capacity."),
		exhausted: desc("exhausted_total", "Acquires that timed out with the pool exhausted."),
		discarded: desc("discarded_total", "Connections discarded after a failure."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.maxConns
	ch <- c.open
	ch <- c.idle
	ch <- c.leased
	ch <- c.dialing
	ch <- c.waits
	ch <- c.exhausted
	ch <- c.discarded
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, p := range c.pools {
		s := p.Stats()
		ch <- prometheus.MustNewConstMetric(c.maxConns, prometheus.GaugeValue, float64(s.Max), p.name)
		ch <- prometheus.MustNewConstMetric(c.open, prometheus.GaugeValue, float64(s.Open), p.name)
		ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.Idle), p.name)
		ch <- prometheus.MustNewConstMetric(c.leased, prometheus.GaugeValue, float64(s.Leased), p.name)
		ch <- prometheus.MustNewConstMetric(c.dialing, prometheus.GaugeValue, float64(s.Dialing), p.name)
		ch <- prometheus.MustNewConstMetric(c.waits, prometheus.CounterValue, float64(s.WaitCount), p.name)
		ch <- prometheus.MustNewConstMetric(c.exhausted, prometheus.CounterValue, float64(s.Exhausted), p.name)
		ch <- prometheus.MustNewConstMetric(c.discarded, prometheus.CounterValue, float64(s.Discarded), p.name)
	}
}

// Package metrics exports kernel cache statistics to Prometheus.
package metrics

import (
	"github.com/djdv/go-kernelcache"
	"github.com/prometheus/client_golang/prometheus"
)

type (
	// StatsSource is satisfied by [kernelcache.Cache]
	// and by matrices built on one.
	StatsSource interface {
		Stats() kernelcache.Stats
	}

	collector struct {
		source StatsSource
		hits, misses, grows,
		evictions, overflows,
		rows, elements, capacity *prometheus.Desc
	}
)

const subsystem = "kernel_cache"

// NewCollector returns a [prometheus.Collector] that reads
// source on every scrape.
// Since caches are not safe for concurrent use, the caller
// must serialize scrapes with use of the cache.
func NewCollector(namespace string, source StatsSource, constLabels prometheus.Labels) prometheus.Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, name),
			help, nil, constLabels,
		)
	}
	return &collector{
		source:    source,
		hits:      desc("hits_total", "Fetches served entirely from a resident row."),
		misses:    desc("misses_total", "Fetches of a row that was not resident."),
		grows:     desc("grows_total", "Fetches that extended a resident row."),
		evictions: desc("evictions_total", "Rows evicted to free budget."),
		overflows: desc("overflows_total", "Fetches longer than the whole budget."),
		rows:      desc("resident_rows", "Rows currently resident."),
		elements:  desc("resident_elements", "Summed length of resident rows."),
		capacity:  desc("capacity_elements", "Element budget of the cache."),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range []*prometheus.Desc{
		c.hits, c.misses, c.grows, c.evictions, c.overflows,
		c.rows, c.elements, c.capacity,
	} {
		ch <- desc
	}
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()
	for _, counter := range []struct {
		desc  *prometheus.Desc
		value uint64
	}{
		{c.hits, stats.Hits},
		{c.misses, stats.Misses},
		{c.grows, stats.Grows},
		{c.evictions, stats.Evictions},
		{c.overflows, stats.Overflows},
	} {
		ch <- prometheus.MustNewConstMetric(
			counter.desc, prometheus.CounterValue, float64(counter.value),
		)
	}
	for _, gauge := range []struct {
		desc  *prometheus.Desc
		value int
	}{
		{c.rows, stats.Rows},
		{c.elements, stats.Elements},
		{c.capacity, stats.Capacity},
	} {
		ch <- prometheus.MustNewConstMetric(
			gauge.desc, prometheus.GaugeValue, float64(gauge.value),
		)
	}
}

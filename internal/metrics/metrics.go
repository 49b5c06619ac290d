// Package metrics exposes the coordinator's live load counters as
// Prometheus gauges, scraped by a /metrics endpoint the server
// subcommand mounts alongside the WebSocket gateway.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Coordinator is the narrow surface a collector reads from —
// internal/coordinator.Coordinator already satisfies it.
type Coordinator interface {
	PendingMessagesTotal() int
	ActiveProcessingCount() int
}

// collector samples the coordinator on every scrape rather than
// polling on a timer, so the exposed value is never stale between
// scrapes.
type collector struct {
	coord       Coordinator
	pendingDesc *prometheus.Desc
	activeDesc  *prometheus.Desc
}

func newCollector(coord Coordinator) prometheus.Collector {
	return &collector{
		coord:       coord,
		pendingDesc: prometheus.NewDesc("forgecode_pending_messages_total", "Messages queued across the router and every agent inbox.", nil, nil),
		activeDesc:  prometheus.NewDesc("forgecode_active_processing_count", "Agents currently executing a turn.", nil, nil),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.pendingDesc
	ch <- c.activeDesc
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.pendingDesc, prometheus.GaugeValue, float64(c.coord.PendingMessagesTotal()))
	ch <- prometheus.MustNewConstMetric(c.activeDesc, prometheus.GaugeValue, float64(c.coord.ActiveProcessingCount()))
}

// Handler returns an http.Handler serving coord's counters in the
// Prometheus exposition format, registered on a private registry so
// this build never pulls in the default global one's Go-runtime
// metrics noise.
func Handler(coord Coordinator) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(newCollector(coord))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

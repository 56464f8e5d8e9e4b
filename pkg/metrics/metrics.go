// Package metrics catalogues the Prometheus metrics of the Limitless client.
// All metrics are defined in their respective packages (client, cache, fanout)
// to maintain modularity and avoid circular dependencies.
//
// The CLI has no metrics endpoint; WriteText dumps the current values at the
// end of a run instead.
package metrics

import (
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Prefix is shared by every metric of this module.
const Prefix = "limitless_"

// Registry is the default Prometheus registry used by the Limitless client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads the metrics registered in Registry.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

// WriteText writes every limitless_* metric family from g in the Prometheus
// text exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), Prefix) {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - limitless_cache_hits_total{layer} (Counter): Cache hits by store (sqlite, redis, memory)
//   - limitless_cache_misses_total (Counter): Cache misses
//   - limitless_cache_size_bytes{layer} (Gauge): Bytes written since start or last clear
//   - limitless_304_responses_total (Counter): 304 Not Modified responses
//   - limitless_conditional_requests_total (Counter): Conditional requests sent
//   - limitless_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - limitless_requests_total{endpoint, status} (Counter): Requests by route template and status
//     (status "cache_hit" for responses served without the network)
//   - limitless_request_duration_seconds{endpoint} (Histogram): Request duration by route template
//   - limitless_errors_total{class} (Counter): Errors by class (client, server, network, decode)
//
// Fan-out Metrics (pkg/fanout):
//   - limitless_fanout_tasks_total{outcome} (Counter): Tasks by outcome (success or failure kind)
//   - limitless_fanout_inflight (Gauge): Tasks currently running
//
// Example Prometheus Queries (when pushed to a gateway or scraped from a wrapper):
//
//   # Cache Hit Rate
//   sum(rate(limitless_cache_hits_total[5m])) /
//   (sum(rate(limitless_cache_hits_total[5m])) + sum(rate(limitless_cache_misses_total[5m])))
//
//   # Standings failure ratio
//   sum(rate(limitless_fanout_tasks_total{outcome!="success"}[5m])) /
//   sum(rate(limitless_fanout_tasks_total[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(limitless_request_duration_seconds_bucket[5m]))
//
//   # 304 Response Rate
//   rate(limitless_304_responses_total[5m]) / rate(limitless_requests_total[5m])

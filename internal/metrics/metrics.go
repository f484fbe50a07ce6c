package metrics

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/digestwatch/digestwatch/internal/digest"
)

// Collector accumulates cache events. It implements store.Metrics and is
// safe for concurrent use.
type Collector struct {
	refreshes atomic.Int64
	failures  atomic.Int64
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// RefreshStarted records one refresh attempt.
func (c *Collector) RefreshStarted(string) { c.refreshes.Add(1) }

// RefreshFailed records one failed refresh attempt.
func (c *Collector) RefreshFailed(string) { c.failures.Add(1) }

// Refreshes returns the total number of refresh attempts.
func (c *Collector) Refreshes() int64 { return c.refreshes.Load() }

// Failures returns the total number of failed refresh attempts.
func (c *Collector) Failures() int64 { return c.failures.Load() }

// Handler serves GET /metrics in the Prometheus text format. storeCount
// reports the number of instantiated digest caches; rateLimit reports the
// last observed upstream quota and may be nil.
func Handler(c *Collector, storeCount func() int, rateLimit func() (digest.RateLimit, bool)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		families := []*dto.MetricFamily{
			counter("digestwatch_refresh_total",
				"Total upstream refresh attempts.", float64(c.Refreshes())),
			counter("digestwatch_refresh_failures_total",
				"Upstream refresh attempts that failed.", float64(c.Failures())),
			gauge("digestwatch_stores",
				"Instantiated digest caches.", float64(storeCount())),
		}
		if rateLimit != nil {
			if rl, ok := rateLimit(); ok {
				families = append(families,
					gauge("digestwatch_upstream_rate_limit_remaining",
						"Remaining upstream API quota, as last observed.", float64(rl.Remaining)),
					gauge("digestwatch_upstream_rate_limit",
						"Upstream API quota ceiling, as last observed.", float64(rl.Limit)),
				)
			}
		}

		format := expfmt.NewFormat(expfmt.TypeTextPlain)
		w.Header().Set("Content-Type", string(format))
		enc := expfmt.NewEncoder(w, format)
		for _, mf := range families {
			if err := enc.Encode(mf); err != nil {
				slog.Error("metrics: encode failed", "family", mf.GetName(), "err", err)
				return
			}
		}
	})
}

func counter(name, help string, value float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: &name,
		Help: &help,
		Type: dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{
			{Counter: &dto.Counter{Value: &value}},
		},
	}
}

func gauge(name, help string, value float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: &name,
		Help: &help,
		Type: dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{
			{Gauge: &dto.Gauge{Value: &value}},
		},
	}
}

package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API, dispatch, sweep and
// outbox flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	recipientsSentTotal   *prometheus.CounterVec
	recipientsFailedTotal *prometheus.CounterVec
	sendDuration          *prometheus.HistogramVec
	dispatchInflight      *prometheus.GaugeVec
	creditsDebitedTotal   *prometheus.CounterVec
	sweepResultsTotal     *prometheus.CounterVec
	outboxPublishedTotal  prometheus.Counter
	outboxFailedTotal     prometheus.Counter
	stuckCampaignsTotal   prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "campaign_engine",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "campaign_engine",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		recipientsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "campaign_engine",
				Name:      "recipients_sent_total",
				Help:      "Total number of recipient legs delivered successfully.",
			},
			[]string{"channel"},
		),
		recipientsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "campaign_engine",
				Name:      "recipients_failed_total",
				Help:      "Total number of recipient legs that failed.",
			},
			[]string{"channel"},
		),
		sendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "campaign_engine",
				Name:      "send_duration_seconds",
				Help:      "Provider send duration in seconds grouped by channel.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"channel"},
		),
		dispatchInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "campaign_engine",
				Name:      "dispatch_inflight",
				Help:      "Current number of in-flight recipient sends grouped by channel.",
			},
			[]string{"channel"},
		),
		creditsDebitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "campaign_engine",
				Name:      "credits_debited_total",
				Help:      "Total credits debited from tenant balances grouped by channel.",
			},
			[]string{"channel"},
		),
		sweepResultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "campaign_engine",
				Name:      "subscription_sweep_results_total",
				Help:      "Subscription sweep outcomes grouped by result.",
			},
			[]string{"result"},
		),
		outboxPublishedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "campaign_engine",
				Name:      "outbox_published_total",
				Help:      "Total outbox events published to the broker.",
			},
		),
		outboxFailedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "campaign_engine",
				Name:      "outbox_failed_total",
				Help:      "Total outbox publish attempts that failed.",
			},
		),
		stuckCampaignsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "campaign_engine",
				Name:      "stuck_campaigns_total",
				Help:      "Total campaigns detected stuck in SENDING by the watchdog.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.recipientsSentTotal,
		m.recipientsFailedTotal,
		m.sendDuration,
		m.dispatchInflight,
		m.creditsDebitedTotal,
		m.sweepResultsTotal,
		m.outboxPublishedTotal,
		m.outboxFailedTotal,
		m.stuckCampaignsTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncRecipientSent(channel string) {
	if m == nil {
		return
	}
	m.recipientsSentTotal.WithLabelValues(normalizeChannel(channel)).Inc()
}

func (m *Metrics) IncRecipientFailed(channel string) {
	if m == nil {
		return
	}
	m.recipientsFailedTotal.WithLabelValues(normalizeChannel(channel)).Inc()
}

func (m *Metrics) ObserveSendDuration(channel string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.sendDuration.WithLabelValues(normalizeChannel(channel)).Observe(seconds)
}

func (m *Metrics) IncDispatchInFlight(channel string) {
	if m == nil {
		return
	}
	m.dispatchInflight.WithLabelValues(normalizeChannel(channel)).Inc()
}

func (m *Metrics) DecDispatchInFlight(channel string) {
	if m == nil {
		return
	}
	m.dispatchInflight.WithLabelValues(normalizeChannel(channel)).Dec()
}

func (m *Metrics) AddCreditsDebited(channel string, amount int64) {
	if m == nil || amount <= 0 {
		return
	}
	m.creditsDebitedTotal.WithLabelValues(normalizeChannel(channel)).Add(float64(amount))
}

func (m *Metrics) IncSweepResult(result string) {
	if m == nil {
		return
	}
	label := strings.TrimSpace(strings.ToLower(result))
	if label == "" {
		label = "unknown"
	}
	m.sweepResultsTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) IncOutboxPublished() {
	if m == nil {
		return
	}
	m.outboxPublishedTotal.Inc()
}

func (m *Metrics) IncOutboxFailed() {
	if m == nil {
		return
	}
	m.outboxFailedTotal.Inc()
}

func (m *Metrics) IncStuckCampaign() {
	if m == nil {
		return
	}
	m.stuckCampaignsTotal.Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeChannel(channel string) string {
	normalized := strings.ToLower(strings.TrimSpace(channel))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

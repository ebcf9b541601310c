package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ledger holds the donor-ledger collectors on a private registry so tests
// and multiple runtimes in one process never collide on registration.
type Ledger struct {
	registry *prometheus.Registry

	contributionsTotal   *prometheus.CounterVec
	contributedAmount    prometheus.Counter
	refundsTotal         prometheus.Counter
	refundedAmount       prometheus.Counter
	reconciledTotal      *prometheus.CounterVec
	recommendationsTotal *prometheus.CounterVec
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
}

func NewLedger() *Ledger {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Ledger{
		registry: reg,
		contributionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_contributions_total",
				Help: "Contributions recorded, by resulting campaign status and donor novelty",
			},
			[]string{"status", "new_donor"},
		),
		contributedAmount: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_contributed_amount_total",
			Help: "Sum of contributed amounts",
		}),
		refundsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_refunds_total",
			Help: "Donor records refunded",
		}),
		refundedAmount: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledger_refunded_amount_total",
			Help: "Sum of refunded amounts",
		}),
		reconciledTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_campaigns_reconciled_total",
				Help: "Campaign reconciliations, by whether drift was repaired",
			},
			[]string{"drifted"},
		),
		recommendationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_recommendations_served_total",
				Help: "Recommendation lists served, by cache outcome",
			},
			[]string{"cache"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_http_requests_total",
				Help: "HTTP requests by route pattern, method and status",
			},
			[]string{"route", "method", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
	}
}

func (l *Ledger) ContributionRecorded(status string, amount float64, newDonor bool) {
	l.contributionsTotal.WithLabelValues(status, strconv.FormatBool(newDonor)).Inc()
	if amount > 0 {
		l.contributedAmount.Add(amount)
	}
}

func (l *Ledger) DonorRefunded(amount float64) {
	l.refundsTotal.Inc()
	if amount > 0 {
		l.refundedAmount.Add(amount)
	}
}

func (l *Ledger) CampaignReconciled(drifted bool) {
	l.reconciledTotal.WithLabelValues(strconv.FormatBool(drifted)).Inc()
}

func (l *Ledger) RecommendationServed(cacheHit bool) {
	outcome := "miss"
	if cacheHit {
		outcome = "hit"
	}
	l.recommendationsTotal.WithLabelValues(outcome).Inc()
}

func (l *Ledger) ObserveHTTPRequest(route, method string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	l.httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	l.httpRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (l *Ledger) Handler() http.Handler {
	return promhttp.HandlerFor(l.registry, promhttp.HandlerOpts{Registry: l.registry})
}

func (l *Ledger) Registry() *prometheus.Registry {
	return l.registry
}

package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var HistogramBuckets = []float64{
	// --- Fast responses (0 - 500ms) ---
	25, 50, 75, 100, 150, 200, 300, 400, 500,

	// --- Medium responses around 700ms (500ms - 2s) ---
	750, 1000, 1250, 1500, 1750, 2000,

	// --- Slow responses (2s - 15s) ---
	2500, 3000, 4000, 5000, 7500, 10000, 15000,

	// --- Extended range: covers 60000ms+ (15s - 75s) ---
	20000,  // 20s
	30000,  // 30s
	45000,  // 45s
	60000,  // 60s
	75000,  // 75s
	90000,  // 90s
	120000, // 120s
}

// Metric is a definition for the name, description, type, ID, and
// prometheus.Collector type (i.e. CounterVec, Summary, etc) of each metric
type Metric struct {
	MetricCollector prometheus.Collector
	ID              string
	Name            string
	Description     string
	Type            string
	Args            []string
}

// NewMetric associates prometheus.Collector based on Metric.Type
func NewMetric(m *Metric, subsystem string) prometheus.Collector {
	var metric prometheus.Collector
	switch m.Type {
	case "counter_vec":
		metric = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
			m.Args,
		)
	case "counter":
		metric = prometheus.NewCounter(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
		)
	case "gauge_vec":
		metric = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
			m.Args,
		)
	case "gauge":
		metric = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
		)
	case "histogram_vec":
		metric = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
				Buckets:   HistogramBuckets,
			},
			m.Args,
		)
	case "histogram":
		metric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
				Buckets:   HistogramBuckets,
			},
		)
	case "summary_vec":
		metric = prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
			m.Args,
		)
	case "summary":
		metric = prometheus.NewSummary(
			prometheus.SummaryOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
		)
	}
	return metric
}

// register adds c to reg. A collector already registered under the same
// descriptor is returned instead, so repeated construction (tests, two fx apps
// in one process) shares one series.
func register(reg prometheus.Registerer, c prometheus.Collector, log Logger, name string) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		if log != nil {
			log.Errorf("%s could not be registered in Prometheus, err=%v", name, err)
		}
	}
	return c
}

var payoutTotals = &Metric{
	ID:          "payoutTotals",
	Name:        "payout_totals",
	Description: "Aggregate amounts of the latest payout run, by month and kind.",
	Type:        "gauge_vec",
	Args:        []string{"month", "kind"},
}

var payoutWarnings = &Metric{
	ID:          "payoutWarnings",
	Name:        "payout_warnings_total",
	Description: "Pricing configuration gaps hit during payout runs.",
	Type:        "counter_vec",
	Args:        []string{"kind"},
}

var verificationOutcomes = &Metric{
	ID:          "verificationOutcomes",
	Name:        "verification_outcomes_total",
	Description: "Payment verification results, by outcome and reason.",
	Type:        "counter_vec",
	Args:        []string{"outcome", "reason"},
}

var assignmentDecisions = &Metric{
	ID:          "assignmentDecisions",
	Name:        "assignment_decisions_total",
	Description: "Coach assignment decisions, by path.",
	Type:        "counter_vec",
	Args:        []string{"path"},
}

var jobDuration = &Metric{
	ID:          "jobDur",
	Name:        "job_dur_ms",
	Description: "Scheduled job latency in milliseconds.",
	Type:        "histogram_vec",
	Args:        []string{"job", "result"},
}

// Business holds the domain counters and gauges.
type Business struct {
	PayoutTotals         *prometheus.GaugeVec
	PayoutWarnings       *prometheus.CounterVec
	VerificationOutcomes *prometheus.CounterVec
	AssignmentDecisions  *prometheus.CounterVec
	JobDuration          *prometheus.HistogramVec
}

// NewBusiness registers the domain metrics on reg (DefaultRegisterer when nil).
func NewBusiness(reg prometheus.Registerer, log Logger) *Business {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	const subsystem = "coachpay"
	return &Business{
		PayoutTotals:         register(reg, NewMetric(payoutTotals, subsystem), log, payoutTotals.Name).(*prometheus.GaugeVec),
		PayoutWarnings:       register(reg, NewMetric(payoutWarnings, subsystem), log, payoutWarnings.Name).(*prometheus.CounterVec),
		VerificationOutcomes: register(reg, NewMetric(verificationOutcomes, subsystem), log, verificationOutcomes.Name).(*prometheus.CounterVec),
		AssignmentDecisions:  register(reg, NewMetric(assignmentDecisions, subsystem), log, assignmentDecisions.Name).(*prometheus.CounterVec),
		JobDuration:          register(reg, NewMetric(jobDuration, subsystem), log, jobDuration.Name).(*prometheus.HistogramVec),
	}
}

// NewNopBusiness returns metrics bound to a throwaway registry.
func NewNopBusiness() *Business {
	return NewBusiness(prometheus.NewRegistry(), nil)
}

const (
	RefererKey = "X-Referer"
)

package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// scrapeCounters mirrors the domain counters into a Prometheus registry so /metrics
// reports them even when OTLP export is disabled.
type scrapeCounters struct {
	calculations      *prometheus.CounterVec
	recalculations    *prometheus.CounterVec
	matchesCreated    *prometheus.CounterVec
	reasoningRequests *prometheus.CounterVec
	schedulerJobs     *prometheus.CounterVec
}

var (
	defaultScrapeOnce sync.Once
	defaultScrape     *scrapeCounters
)

func defaultScrapeCounters() *scrapeCounters {
	defaultScrapeOnce.Do(func() {
		defaultScrape = newScrapeCounters(prometheus.DefaultRegisterer)
	})
	return defaultScrape
}

func newScrapeCounters(registerer prometheus.Registerer) *scrapeCounters {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	c := &scrapeCounters{
		calculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clearline_calculations_total",
			Help: "Duty calculations by outcome.",
		}, []string{"outcome"}),
		recalculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clearline_recalculations_total",
			Help: "Shipment recalculations by outcome.",
		}, []string{"outcome"}),
		matchesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clearline_matches_created_total",
			Help: "Persisted item matches by method.",
		}, []string{"method"}),
		reasoningRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clearline_reasoning_requests_total",
			Help: "Supplementary matcher calls by outcome.",
		}, []string{"outcome"}),
		schedulerJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clearline_scheduler_jobs_total",
			Help: "Scheduler job runs by job and outcome.",
		}, []string{"job", "outcome"}),
	}

	registerer.MustRegister(
		c.calculations,
		c.recalculations,
		c.matchesCreated,
		c.reasoningRequests,
		c.schedulerJobs,
	)
	return c
}

func label(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "unknown"
	}
	return v
}

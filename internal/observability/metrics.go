package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "classattend",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "classattend",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	checkins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "classattend",
			Subsystem: "ledger",
			Name:      "checkins_total",
			Help:      "Check-ins by outcome (O, L, A or an error kind).",
		},
		[]string{"outcome"},
	)
	sweepMarked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "classattend",
			Subsystem: "ledger",
			Name:      "sweep_absences_total",
			Help:      "Empty slots marked absent by the end-of-day sweep.",
		},
	)
	sweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "classattend",
			Subsystem: "ledger",
			Name:      "sweep_runs_total",
			Help:      "Sweep runs by result.",
		},
		[]string{"result"},
	)
	inviteRedemptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "classattend",
			Subsystem: "invite",
			Name:      "redemptions_total",
			Help:      "Invite redemptions by result.",
		},
		[]string{"result"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, checkins, sweepMarked, sweepRuns, inviteRedemptions)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordCheckin(outcome string) {
	RegisterMetrics()
	checkins.WithLabelValues(outcome).Inc()
}

func RecordSweep(marked int, err error) {
	RegisterMetrics()
	result := "ok"
	if err != nil {
		result = "error"
	}
	sweepRuns.WithLabelValues(result).Inc()
	sweepMarked.Add(float64(marked))
}

func RecordInviteRedemption(result string) {
	RegisterMetrics()
	inviteRedemptions.WithLabelValues(result).Inc()
}

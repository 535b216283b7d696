package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Queue metrics

	JobPickupLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "jobcore",
		Name:      "job_pickup_latency_seconds",
		Help:      "Time from a job's scheduled_for to a worker pulling it.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	JobExecutionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "jobcore",
		Name:      "job_execution_duration_seconds",
		Help:      "Duration of a job's Execute callback.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"kind", "outcome"})

	JobsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "jobcore",
		Name:      "worker_jobs_in_flight",
		Help:      "Number of jobs currently being executed across all workers.",
	})

	JobsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobcore",
		Name:      "jobs_completed_total",
		Help:      "Total jobs archived to completed_job, by outcome.",
	}, []string{"outcome"})

	// Reaper metrics

	ReaperRescuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobcore",
		Name:      "reaper_rescued_total",
		Help:      "Total zombie jobs handled by the reaper.",
	}, []string{"action"})

	ReaperCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "jobcore",
		Name:      "reaper_cycle_duration_seconds",
		Help:      "Time taken for one reaper cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	// Scheduler metrics

	ScheduleRearmsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobcore",
		Name:      "schedule_rearms_total",
		Help:      "Total schedule re-arms, by trigger (create, edit, enable, complete, backstop).",
	}, []string{"trigger"})

	// Worker lifecycle

	WorkerStartTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "jobcore",
		Name:      "worker_start_time_seconds",
		Help:      "Unix timestamp when the worker process started.",
	})

	WorkerShutdownsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "jobcore",
		Name:      "worker_shutdowns_total",
		Help:      "Number of times the worker process has shut down.",
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "jobcore",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jobcore",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		JobPickupLatency,
		JobExecutionDuration,
		JobsInFlight,
		JobsCompletedTotal,
		ReaperRescuedTotal,
		ReaperCycleDuration,
		ScheduleRearmsTotal,
		WorkerStartTime,
		WorkerShutdownsTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServerMux returns the mux NewServer wraps, exposed separately so
// callers (the worker process, in particular) can register their own
// routes — /healthz, /readyz — onto the same listener.
func NewServerMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func NewServer(addr string) *http.Server {
	return &http.Server{Addr: addr, Handler: NewServerMux()}
}

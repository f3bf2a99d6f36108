package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mrteam_jobs_submitted_total",
		Help: "Number of generation jobs accepted.",
	})

	JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mrteam_jobs_finished_total",
		Help: "Number of generation jobs that reached a terminal state.",
	}, []string{"status"})

	JobsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mrteam_jobs_active",
		Help: "Number of jobs currently being processed by a worker.",
	})

	SegmentsComposed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mrteam_segments_composed_total",
		Help: "Number of segments attempted by the composer, by result.",
	}, []string{"result"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mrteam_stage_duration_seconds",
		Help:    "Wall time of each pipeline stage.",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	RemoteCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mrteam_remote_calls_total",
		Help: "Calls to the dialogue and speech services, by service and result.",
	}, []string{"service", "result"})

	BytesServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mrteam_video_bytes_served_total",
		Help: "Video bytes written by the delivery endpoint.",
	})
)

// ObserveStage records how long a stage took.
func ObserveStage(stage string, seconds float64) {
	StageDuration.WithLabelValues(stage).Observe(seconds)
}

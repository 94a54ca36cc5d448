package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shotmark_jobs_processed_total",
		Help: "Total number of detection jobs processed, by status",
	}, []string{"status"})

	JobProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shotmark_job_processing_duration_seconds",
		Help:    "Duration of the detection pipeline",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesDecodedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shotmark_frames_decoded_total",
		Help: "Total number of frames decoded across all jobs",
	})

	WindowsScoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shotmark_windows_scored_total",
		Help: "Total number of model windows scored across all jobs",
	})

	ScenesDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shotmark_scenes_detected_total",
		Help: "Total number of scenes detected across all jobs",
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shotmark_active_workers",
		Help: "Number of currently active workers processing jobs",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shotmark_retry_total",
		Help: "Total number of retries",
	}, []string{"attempt"})
)

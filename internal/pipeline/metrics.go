package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pumplens_frames_received_total",
			Help: "Total number of raw frames read from the frame source.",
		},
		[]string{"source"},
	)
	framesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pumplens_frames_rejected_total",
			Help: "Total number of frames dropped before reaching the statistics engine.",
		},
		[]string{"reason"},
	)
	frameProcessingSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pumplens_frame_processing_seconds",
			Help:    "Time spent by the statistics engine on one timestep.",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
		},
	)
)

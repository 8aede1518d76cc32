package stat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	quantityValue = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pumplens_quantity_value",
			Help: "Last defined value of a tracked quantity.",
		},
		[]string{"stat", "quantity"},
	)
	samplesRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pumplens_samples_recorded_total",
			Help: "Total number of samples appended to the time series store.",
		},
		[]string{"stat"},
	)
	quantityUndefined = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pumplens_quantity_undefined_total",
			Help: "Total number of samples in which a quantity was withheld.",
		},
		[]string{"stat", "quantity", "reason"},
	)
	outputWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pumplens_output_write_failures_total",
			Help: "Total number of failed attempts to open or write an output file.",
		},
		[]string{"stat", "stream"},
	)
	spectralPasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pumplens_spectral_passes_total",
			Help: "Total number of completed spectral analysis passes.",
		},
		[]string{"stat"},
	)
)

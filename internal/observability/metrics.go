// Package observability holds the process-wide prometheus metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ubxmon_frames_decoded_total",
		Help: "Frames that passed framing and checksum validation, by identity.",
	}, []string{"identity"})

	FramingErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ubxmon_framing_errors_total",
		Help: "Frames dropped for bad sync, length or checksum.",
	})

	FieldErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ubxmon_field_errors_total",
		Help: "Handler field-extraction failures (prior state retained), by identity.",
	}, []string{"identity"})

	PollsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ubxmon_config_polls_total",
		Help: "Configuration poll frames written to the receiver.",
	})
)

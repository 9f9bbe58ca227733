// Package metrics provides Prometheus instrumentation for the USB transport,
// the APDU channel and the device binding operations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all imkey metrics
	Namespace = "imkey"

	LabelDirection = "direction"
	LabelKind      = "kind"
	LabelCode      = "code"
	LabelResult    = "result"
	LabelOperation = "operation"

	DirectionOut = "out"
	DirectionIn  = "in"

	ResultSuccess = "success"
	ResultError   = "error"

	OpBindCheck       = "bind_check"
	OpBindAcquire     = "bind_acquire"
	OpDisplayBindCode = "display_bind_code"
)

var (
	// TransportPackets counts raw 64-byte packets written to and read from the device.
	TransportPackets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "transport",
			Name:      "packets_total",
			Help:      "Total number of USB packets exchanged with the device",
		},
		[]string{LabelDirection},
	)

	// TransportStallFrames counts keepalive and "other" error frames skipped while waiting for data.
	TransportStallFrames = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "transport",
			Name:      "stall_frames_total",
			Help:      "Total number of keepalive or \"other\" error frames received",
		},
		[]string{LabelKind},
	)

	// TransportErrors counts failed exchanges by error code.
	TransportErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "transport",
			Name:      "errors_total",
			Help:      "Total number of failed transport exchanges",
		},
		[]string{LabelCode},
	)

	// APDUExchanges counts APDU round trips by result.
	APDUExchanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "apdu",
			Name:      "exchanges_total",
			Help:      "Total number of APDU exchanges",
		},
		[]string{LabelResult},
	)

	// BindingOperations counts binding operations by operation and result label.
	BindingOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "binding",
			Name:      "operations_total",
			Help:      "Total number of device binding operations",
		},
		[]string{LabelOperation, LabelResult},
	)
)

// RecordBinding records the outcome of a binding operation. A nil error
// records the status label, otherwise ResultError.
func RecordBinding(operation, label string, err error) {
	if err != nil {
		label = ResultError
	}
	BindingOperations.WithLabelValues(operation, label).Inc()
}

// RecordAPDU records the outcome of an APDU exchange.
func RecordAPDU(err error) {
	if err != nil {
		APDUExchanges.WithLabelValues(ResultError).Inc()
		return
	}
	APDUExchanges.WithLabelValues(ResultSuccess).Inc()
}

package frame

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

const reasonLabel = "reason"

// Failure reasons reported through the errors counter.
const (
	reasonEncode    = "encode"
	reasonDecode    = "decode"
	reasonTooLarge  = "too_large"
	reasonTruncated = "truncated"
	reasonChecksum  = "checksum"
	reasonTemplate  = "unknown_template"
	reasonVersion   = "version"
	reasonMismatch  = "schema_mismatch"
	reasonCompress  = "compression"
)

type metrics struct {
	framesEncoded prometheus.Counter
	framesDecoded prometheus.Counter
	bytesEncoded  prometheus.Counter
	bytesDecoded  prometheus.Counter
	errors        *prometheus.CounterVec
}

func newMetrics(namespace string, reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		framesEncoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_encoded",
			Help:      "Number of frames written",
		}),
		framesDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_decoded",
			Help:      "Number of frames read",
		}),
		bytesEncoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_bytes_encoded",
			Help:      "Bytes of frames written, headers included",
		}),
		bytesDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_bytes_decoded",
			Help:      "Bytes of frames read, headers included",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_errors",
			Help:      "Frames rejected, by reason",
		}, []string{reasonLabel}),
	}
	if reg == nil {
		return m, nil
	}
	err := multierr.Combine(
		reg.Register(m.framesEncoded),
		reg.Register(m.framesDecoded),
		reg.Register(m.bytesEncoded),
		reg.Register(m.bytesDecoded),
		reg.Register(m.errors),
	)
	return m, err
}

func (m *metrics) fail(reason string) {
	m.errors.WithLabelValues(reason).Inc()
}

package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/wspackets/internal/protocol"
	"github.com/danmuck/wspackets/internal/protocol/frame"
	"github.com/danmuck/wspackets/internal/protocol/session"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DirectionEncode = "encode"
	DirectionDecode = "decode"

	// UnregisteredBundle labels wrapped frames. Their identifier comes from
	// the peer and is never used as a label value.
	UnregisteredBundle = "unregistered"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wspackets",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wspackets",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	framesEncoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wspackets",
			Name:      "frames_encoded_total",
			Help:      "Frames encoded, by bundle.",
		},
		[]string{"bundle"},
	)
	framesDecoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wspackets",
			Name:      "frames_decoded_total",
			Help:      "Frames decoded, by bundle.",
		},
		[]string{"bundle"},
	)
	wrappedPackets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wspackets",
			Name:      "wrapped_packets_total",
			Help:      "Frames from unregistered bundles carried as wrapped packets.",
		},
		[]string{"bundle"},
	)
	frameBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wspackets",
			Name:      "frame_bytes",
			Help:      "Frame sizes in bytes.",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 10),
		},
		[]string{"direction"},
	)
	connectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "wspackets",
			Name:      "connections_active",
			Help:      "Connections currently tracked by the reassembler.",
		},
	)
	sessionErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wspackets",
			Name:      "session_errors_total",
			Help:      "Session errors, by kind.",
		},
		[]string{"kind"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			framesEncoded,
			framesDecoded,
			wrappedPackets,
			frameBytes,
			connectionsActive,
			sessionErrors,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// PacketMetrics feeds codec and session activity into the process registry.
// It is stateless; all values live in the package collectors.
type PacketMetrics struct{}

var (
	_ protocol.Observer = PacketMetrics{}
	_ session.Metrics   = PacketMetrics{}
)

func NewPacketMetrics() PacketMetrics {
	RegisterMetrics()
	return PacketMetrics{}
}

func (PacketMetrics) ObserveEncode(h frame.Header, size int) {
	framesEncoded.WithLabelValues(h.Bundle).Inc()
	frameBytes.WithLabelValues(DirectionEncode).Observe(float64(size))
}

func (PacketMetrics) ObserveDecode(h frame.Header, size int, wrapped bool) {
	if wrapped {
		wrappedPackets.WithLabelValues(UnregisteredBundle).Inc()
	} else {
		framesDecoded.WithLabelValues(h.Bundle).Inc()
	}
	frameBytes.WithLabelValues(DirectionDecode).Observe(float64(size))
}

func (PacketMetrics) ConnectionOpened()        { connectionsActive.Inc() }
func (PacketMetrics) ConnectionClosed()        { connectionsActive.Dec() }
func (PacketMetrics) SessionError(kind string) { sessionErrors.WithLabelValues(kind).Inc() }

package observability

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danmuck/wspackets/internal/protocol"
	"github.com/danmuck/wspackets/internal/protocol/frame"
	"github.com/danmuck/wspackets/internal/protocol/session"
	"github.com/danmuck/wspackets/internal/protocol/wire"
	"github.com/danmuck/wspackets/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("wspacketsd", "GET", "/healthz", 200, 12*time.Millisecond)
	require.Equal(t, 1.0, testutil.ToFloat64(httpRequests.WithLabelValues("wspacketsd", "GET", "/healthz", "200")))
}

func TestPacketMetricsCountsFrames(t *testing.T) {
	testlog.Start(t)
	m := NewPacketMetrics()
	h := frame.Header{Bundle: "metrics-test", ID: 1}

	wrappedBefore := testutil.ToFloat64(wrappedPackets.WithLabelValues(UnregisteredBundle))

	m.ObserveEncode(h, 12)
	m.ObserveDecode(h, 12, false)
	m.ObserveDecode(h, 30, true)
	m.ObserveDecode(h, 30, true)

	require.Equal(t, 1.0, testutil.ToFloat64(framesEncoded.WithLabelValues("metrics-test")))
	require.Equal(t, 1.0, testutil.ToFloat64(framesDecoded.WithLabelValues("metrics-test")))
	require.Equal(t, wrappedBefore+2, testutil.ToFloat64(wrappedPackets.WithLabelValues(UnregisteredBundle)))
}

func TestWrappedFramesShareOneSeries(t *testing.T) {
	testlog.Start(t)
	dec := protocol.NewDecoder(protocol.NewBundleRegistry(), frame.DefaultLimits(), NewPacketMetrics())
	before := testutil.ToFloat64(wrappedPackets.WithLabelValues(UnregisteredBundle))

	for i := 0; i < 200; i++ {
		buf := wire.NewBuffer(32)
		require.NoError(t, frame.WriteHeader(buf, frame.Header{Bundle: fmt.Sprintf("peer-chosen-%d", i), ID: 0}))
		p, err := dec.Decode(buf.Bytes())
		require.NoError(t, err)
		require.IsType(t, &protocol.WrappedPacket{}, p)
	}

	require.Equal(t, 1, testutil.CollectAndCount(wrappedPackets))
	require.Equal(t, before+200, testutil.ToFloat64(wrappedPackets.WithLabelValues(UnregisteredBundle)))
}

func TestPacketMetricsTracksConnections(t *testing.T) {
	testlog.Start(t)
	m := NewPacketMetrics()
	before := testutil.ToFloat64(connectionsActive)

	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	require.Equal(t, before+1, testutil.ToFloat64(connectionsActive))
	m.ConnectionClosed()

	errsBefore := testutil.ToFloat64(sessionErrors.WithLabelValues(session.ErrorKindDecode))
	m.SessionError(session.ErrorKindDecode)
	require.Equal(t, errsBefore+1, testutil.ToFloat64(sessionErrors.WithLabelValues(session.ErrorKindDecode)))
}

func TestMiddlewareLogsAndRecords(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	var out bytes.Buffer
	r := gin.New()
	r.Use(RequestLogger(zerolog.New(&out)))
	r.Use(RequestMetricsMiddleware("middleware-test"))
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/7", nil))
	require.Equal(t, http.StatusTeapot, w.Code)

	require.Contains(t, out.String(), `"path":"/items/:id"`)
	require.Contains(t, out.String(), `"level":"warn"`)
	require.Equal(t, 1.0, testutil.ToFloat64(httpRequests.WithLabelValues("middleware-test", "GET", "/items/:id", "418")))
}

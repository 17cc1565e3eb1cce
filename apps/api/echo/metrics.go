package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// httpMetrics holds the RED metrics of the HTTP API.
type httpMetrics struct {
	reg  *prometheus.Registry
	reqs *prometheus.CounterVec
	durs *prometheus.HistogramVec
}

func newHTTPMetrics() *httpMetrics {
	const namespace = "lms"
	const subsystem = "http"

	reqs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "requests_total",
		Help:      "Number of HTTP requests handled",
	}, []string{"method", "path", "code"})

	durs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	reg := prometheus.NewRegistry()
	reg.MustRegister(reqs, durs, collectors.NewGoCollector())

	return &httpMetrics{reg: reg, reqs: reqs, durs: durs}
}

// middleware records every request under its route pattern (not the raw URL).
func (m *httpMetrics) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		start := time.Now()
		err := next(ctx)
		if err != nil && !ctx.Response().Committed {
			// let the error handler write the final status
			ctx.Error(err)
		}

		req := ctx.Request()
		path := ctx.Path()
		m.reqs.WithLabelValues(req.Method, path, strconv.Itoa(ctx.Response().Status)).Inc()
		m.durs.WithLabelValues(req.Method, path).Observe(time.Since(start).Seconds())
		return nil
	}
}

func (m *httpMetrics) handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	}))
}

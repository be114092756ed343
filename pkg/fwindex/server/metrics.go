package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the collectors for one server. Each server registers into
// its own registry so several can coexist in one process.
type metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	archives      *prometheus.CounterVec
	omissions     prometheus.Counter
	archiveBytes  prometheus.Counter
	reloads       *prometheus.CounterVec
	catalogFiles  prometheus.Gauge
	catalogBytes  prometheus.Gauge
	searches      prometheus.Counter
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &metrics{
		registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fwindex_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fwindex_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		fetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fwindex_fetches_total",
			Help: "Total number of file fetches from the origin",
		}, []string{"source", "status"}),
		fetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fwindex_fetch_duration_seconds",
			Help:    "Time to open a file at the origin",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		archives: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fwindex_archives_total",
			Help: "Total number of archives assembled",
		}, []string{"kind", "status"}),
		omissions: f.NewCounter(prometheus.CounterOpts{
			Name: "fwindex_archive_omissions_total",
			Help: "Files left out of archives because their fetch failed",
		}),
		archiveBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "fwindex_archive_bytes_total",
			Help: "Uncompressed bytes written into archives",
		}),
		reloads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fwindex_catalog_loads_total",
			Help: "Catalog load attempts",
		}, []string{"status"}),
		catalogFiles: f.NewGauge(prometheus.GaugeOpts{
			Name: "fwindex_catalog_files",
			Help: "Number of files in the loaded catalog",
		}),
		catalogBytes: f.NewGauge(prometheus.GaugeOpts{
			Name: "fwindex_catalog_bytes",
			Help: "Total size of the files in the loaded catalog",
		}),
		searches: f.NewCounter(prometheus.CounterOpts{
			Name: "fwindex_searches_total",
			Help: "Total number of search queries",
		}),
	}
}

// observeFetch matches fetch.Observer.
func (m *metrics) observeFetch(source string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.fetches.WithLabelValues(source, status).Inc()
	m.fetchDuration.WithLabelValues(source).Observe(elapsed.Seconds())
}

func (m *metrics) observeLoad(files int, size int64, err error) {
	if err != nil {
		m.reloads.WithLabelValues("error").Inc()
		return
	}
	m.reloads.WithLabelValues("ok").Inc()
	m.catalogFiles.Set(float64(files))
	m.catalogBytes.Set(float64(size))
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// middleware records request counts and durations by route pattern and
// writes a debug log line per request.
func (s *Server) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		status := c.Response().Status
		elapsed := time.Since(start)

		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request().Method
		s.metrics.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		s.metrics.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())

		s.log.Debug("request",
			"method", method,
			"path", c.Request().URL.Path,
			"status", status,
			"duration", elapsed)
		return nil
	}
}

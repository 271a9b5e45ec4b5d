package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_http_requests_total",
		Help: "Total number of HTTP requests by route.",
	}, []string{"route", "method", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bot_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	LinksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_links_total",
		Help: "Link messages by final outcome.",
	}, []string{"outcome"})

	DownloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bot_download_duration_seconds",
		Help:    "Time spent in the download step.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 14),
	})

	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_uploads_total",
		Help: "Uploads by backend and result.",
	}, []string{"backend", "result"})

	JobsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bot_jobs_running",
		Help: "Link jobs currently holding a worker slot.",
	})
)

// Link outcomes.
const (
	OutcomeRejected       = "rejected"
	OutcomeDownloadFailed = "download_failed"
	OutcomeUploadFailed   = "upload_failed"
	OutcomeDone           = "done"
	OutcomeError          = "error"
)

// Middleware records request count and latency under a fixed route label.
// The label is passed in rather than taken from r.URL.Path so the token path never reaches a metric.
func Middleware(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		httpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rw.status)).Inc()
		httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

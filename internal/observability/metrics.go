package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ga4_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"code"},
	)
	Latency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ga4_http_request_duration_seconds",
		Help:    "Request latency seconds",
		Buckets: prometheus.DefBuckets,
	})
	InFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ga4_http_in_flight",
		Help: "In-flight HTTP requests",
	})
	ScriptsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ga4_scripts_emitted_total",
			Help: "Script assets emitted into rendered pages",
		}, []string{"handle"},
	)
	EmissionSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ga4_emission_skipped_total",
			Help: "Script emissions skipped, by reason",
		}, []string{"reason"},
	)
	SettingsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ga4_settings_rejected_total",
		Help: "Submitted setting values reset to empty by the sanitizer",
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal, Latency, InFlight, ScriptsEmitted, EmissionSkipped, SettingsRejected)
}

func MetricsHandler() http.Handler { return promhttp.Handler() }

// RecordEmission counts one path's outcome.
func RecordEmission(handle string, emitted bool, reason string) {
	if emitted {
		ScriptsEmitted.WithLabelValues(handle).Inc()
		return
	}
	if reason != "" {
		EmissionSkipped.WithLabelValues(reason).Inc()
	}
}

type rec struct {
	http.ResponseWriter
	code int
}

func (r *rec) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func Measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		InFlight.Inc()
		defer InFlight.Dec()

		rr := &rec{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rr, r)

		Latency.Observe(time.Since(start).Seconds())
		RequestsTotal.WithLabelValues(strconv.Itoa(rr.code)).Inc()
	})
}

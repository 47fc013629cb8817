package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run results used as the result label.
const (
	ResultOK          = "ok"
	ResultNoSession   = "no_session"
	ResultProbeFailed = "probe_failed"
)

var (
	syncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasksync_sync_runs_total",
		Help: "Total number of sync runs by result.",
	}, []string{"result"})

	syncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tasksync_sync_duration_seconds",
		Help:    "Histogram of sync run durations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	syncActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasksync_sync_actions_total",
		Help: "Total number of reconciliation actions applied.",
	}, []string{"action"})

	syncItemErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tasksync_sync_item_errors_total",
		Help: "Total number of lists and tasks that failed to reconcile.",
	})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tasksync_http_requests_total",
		Help: "Total number of HTTP requests processed.",
	}, []string{"method", "route", "status"})
)

// ObserveRun records one finished sync run.
func ObserveRun(result string, start time.Time) {
	syncRunsTotal.WithLabelValues(result).Inc()
	syncDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
}

// AddActions adds the per action counts of a run.
func AddActions(actions map[string]int) {
	for action, n := range actions {
		syncActionsTotal.WithLabelValues(action).Add(float64(n))
	}
}

func AddItemErrors(n int) {
	syncItemErrorsTotal.Add(float64(n))
}

// Middleware counts requests by route pattern.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			httpRequestsTotal.WithLabelValues(r.Method, routePattern(r), strconv.Itoa(ww.Status())).Inc()
		})
	}
}

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

package membership

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// метрики

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_http_requests_total",
			Help: "Кол-во HTTP запросов",
		},
		[]string{"path", "code"},
	)

	httpRequestsError = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_http_errors_total",
			Help: "Кол-во ошибочных HTTP запросов",
		},
		[]string{"path", "code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "membership_http_request_duration_seconds",
			Help:    "Продолжительность HTTP запросов",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "code"},
	)
)

// логируем вызовы
type logResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *logResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// шаблон маршрута вместо пути, чтобы id не раздували метки
func routePath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

func MiddlewareLog(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

			reqtime := time.Now()
			logrw := &logResponseWriter{w, http.StatusOK}
			next.ServeHTTP(logrw, r)

			labels := prometheus.Labels{
				"path": routePath(r),
				"code": strconv.Itoa(logrw.status),
			}
			httpRequestsTotal.With(labels).Inc()
			httpRequestDuration.With(labels).Observe(time.Since(reqtime).Seconds())

			if logrw.status >= http.StatusBadRequest {
				httpRequestsError.With(labels).Inc()
				logger.Debug("Request failed",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("code", logrw.status),
				)
			}
		})
	}
}

const staffHeader = "X-Staff-Pass"

// доступ оператора по общей фразе
func (h *Handler) staffOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.Admin.Authorize(r.Header.Get(staffHeader)); err != nil {
			h.fail(w, "staffOnly", err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

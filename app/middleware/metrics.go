package middleware

import (
	"strconv"
	"time"

	"github.com/beego/beego/v2/server/web/context"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "djrag_http_requests_total",
			Help: "Total HTTP requests by method, path and status.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "djrag_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration)
}

const requestStartKey = "metrics_request_start"

// MetricsBefore 记录请求开始时间
func MetricsBefore(ctx *context.Context) {
	ctx.Input.SetData(requestStartKey, time.Now())
}

// MetricsAfter 上报请求计数与耗时
func MetricsAfter(ctx *context.Context) {
	method := ctx.Input.Method()
	path := ctx.Input.URL()
	status := strconv.Itoa(ctx.ResponseWriter.Status)

	httpRequestsTotal.WithLabelValues(method, path, status).Inc()

	if start, ok := ctx.Input.GetData(requestStartKey).(time.Time); ok {
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 别名生命周期指标
	AliasesCreated     *prometheus.CounterVec // 按策略类型
	AliasesDeleted     prometheus.Counter
	AliasesDeactivated prometheus.Counter
	UsageRecorded      prometheus.Counter
	UsageDenied        prometheus.Counter
	CreateConflicts    prometheus.Counter

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter

	// 限流指标
	RateLimitBlocks *prometheus.CounterVec
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailalias_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailalias_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		AliasesCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailalias_aliases_created_total",
				Help: "Total number of aliases created",
			},
			[]string{"alias_type"},
		),

		AliasesDeleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailalias_aliases_deleted_total",
				Help: "Total number of aliases deleted",
			},
		),

		AliasesDeactivated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailalias_aliases_deactivated_total",
				Help: "Total number of aliases deactivated",
			},
		),

		UsageRecorded: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailalias_usage_recorded_total",
				Help: "Total number of successful usage increments",
			},
		),

		UsageDenied: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailalias_usage_denied_total",
				Help: "Total number of denied usage increments (inactive, expired or exhausted)",
			},
		),

		CreateConflicts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailalias_create_conflicts_total",
				Help: "Total number of source address collisions during creation",
			},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailalias_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailalias_panics_total",
				Help: "Total number of recovered panics",
			},
		),

		RateLimitBlocks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailalias_rate_limit_blocks_total",
				Help: "Total number of requests blocked by rate limiting",
			},
			[]string{"limit_type"},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordAliasCreated 记录别名创建
func (m *Metrics) RecordAliasCreated(aliasType string) {
	m.AliasesCreated.WithLabelValues(aliasType).Inc()
}

// RecordAliasDeleted 记录别名删除
func (m *Metrics) RecordAliasDeleted() {
	m.AliasesDeleted.Inc()
}

// RecordAliasDeactivated 记录别名停用
func (m *Metrics) RecordAliasDeactivated() {
	m.AliasesDeactivated.Inc()
}

// RecordUsage 记录使用计数结果
func (m *Metrics) RecordUsage(denied bool) {
	if denied {
		m.UsageDenied.Inc()
	} else {
		m.UsageRecorded.Inc()
	}
}

// RecordCreateConflict 记录创建时的地址冲突
func (m *Metrics) RecordCreateConflict() {
	m.CreateConflicts.Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// RecordRateLimitBlock 记录限流拦截
func (m *Metrics) RecordRateLimitBlock(limitType string) {
	m.RateLimitBlocks.WithLabelValues(limitType).Inc()
}

// HTTPHandler 返回 Prometheus 指标处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}

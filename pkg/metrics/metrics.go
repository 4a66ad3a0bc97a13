// Package metrics 提供 Prometheus helper，覆盖 HTTP、行情刷新与交易指标
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数（按方法、路径、状态码）
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTP 请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// 行情刷新计数（按结果：ok / skipped / failed）
	PriceRefreshTotal *prometheus.CounterVec
	// 行情刷新耗时
	PriceRefreshDuration prometheus.Histogram
	// 行情抓取失败计数（按品种）
	FeedErrorsTotal *prometheus.CounterVec
	// 当前快照订阅者数量
	SubscribersActive prometheus.Gauge
	// 快照广播丢弃计数（慢消费者）
	BroadcastDropsTotal prometheus.Counter

	// 交易计数（按方向、终态）
	TradesTotal *prometheus.CounterVec
	// 交易耗时
	TradeDuration prometheus.Histogram

	registry *prometheus.Registry
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goldtrading",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "goldtrading",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		PriceRefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goldtrading",
			Subsystem: serviceName,
			Name:      "price_refresh_total",
			Help:      "Price refresh cycles by result",
		}, []string{"result"}),
		PriceRefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "goldtrading",
			Subsystem: serviceName,
			Name:      "price_refresh_duration_seconds",
			Help:      "Price refresh cycle latency",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		FeedErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goldtrading",
			Subsystem: serviceName,
			Name:      "feed_errors_total",
			Help:      "Feed fetch failures by instrument",
		}, []string{"instrument"}),
		SubscribersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "goldtrading",
			Subsystem: serviceName,
			Name:      "subscribers_active",
			Help:      "Active snapshot subscribers",
		}),
		BroadcastDropsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "goldtrading",
			Subsystem: serviceName,
			Name:      "broadcast_drops_total",
			Help:      "Snapshot events dropped for slow subscribers",
		}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "goldtrading",
			Subsystem: serviceName,
			Name:      "trades_total",
			Help:      "Trade executions by action and terminal status",
		}, []string{"action", "status"}),
		TradeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "goldtrading",
			Subsystem: serviceName,
			Name:      "trade_duration_seconds",
			Help:      "Trade execution latency",
			Buckets:   prometheus.DefBuckets,
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PriceRefreshTotal,
		m.PriceRefreshDuration,
		m.FeedErrorsTotal,
		m.SubscribersActive,
		m.BroadcastDropsTotal,
		m.TradesTotal,
		m.TradeDuration,
	)

	return m
}

// ObserveHTTP 记录一次 HTTP 请求
func (m *Metrics) ObserveHTTP(method, path string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, fmt.Sprintf("%d", status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// ExposeHTTP 启动 Prometheus 指标暴露服务
func (m *Metrics) ExposeHTTP(port int, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}

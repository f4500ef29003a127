package prom

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	xhttp "github.com/nimasrn/poultry-ledger/pkg/http"
	"github.com/nimasrn/poultry-ledger/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	SystemHTTP     = "http"
	SystemLedger   = "ledger"
	SystemNotifier = "notifier"
)

const (
	MetricRequestsTotal           = "requests_total"
	MetricRequestDuration         = "request_duration_seconds"
	MetricEventsPublished         = "events_published_total"
	MetricWebhookDeliveries       = "webhook_deliveries_total"
	MetricWebhookDeliveryDuration = "webhook_delivery_duration_seconds"
	MetricStreamPending           = "stream_pending"
	MetricDeadLettered            = "events_dead_lettered_total"
)

const (
	TypeCounter      = "counter"
	TypeCounterVec   = "counterVec"
	TypeHistogram    = "histogram"
	TypeHistogramVec = "histogramVec"
	TypeGaugeVec     = "gaugeVec"
)

var (
	mu        sync.RWMutex
	namespace = "none"
	enabled   bool
	registry  = prometheus.NewRegistry()

	defaultLabels prometheus.Labels

	counters      = make(map[string]prometheus.Counter)
	counterVecs   = make(map[string]*prometheus.CounterVec)
	gaugeVecs     = make(map[string]*prometheus.GaugeVec)
	histograms    = make(map[string]prometheus.Histogram)
	histogramVecs = make(map[string]*prometheus.HistogramVec)
)

// Create resets the registry and registers the ledger metrics. Calling it
// again replaces every collector.
func Create(host string, env string, nameSpace string) error {
	mu.Lock()
	registry = prometheus.NewRegistry()
	defaultLabels = prometheus.Labels{"env": env, "instance": host}
	namespace = nameSpace
	counters = make(map[string]prometheus.Counter)
	counterVecs = make(map[string]*prometheus.CounterVec)
	gaugeVecs = make(map[string]*prometheus.GaugeVec)
	histograms = make(map[string]prometheus.Histogram)
	histogramVecs = make(map[string]*prometheus.HistogramVec)
	enabled = true
	mu.Unlock()

	var err error
	hasError := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}

	hasError(registry.Register(collectors.NewGoCollector()))
	hasError(CreateMetric(TypeCounterVec, SystemHTTP, MetricRequestsTotal, "method", "status"))
	hasError(CreateMetric(TypeHistogramVec, SystemHTTP, MetricRequestDuration, "method"))
	hasError(CreateMetric(TypeCounterVec, SystemLedger, MetricEventsPublished, "kind", "result"))
	hasError(CreateMetric(TypeCounterVec, SystemNotifier, MetricWebhookDeliveries, "kind", "result"))
	hasError(CreateMetric(TypeHistogram, SystemNotifier, MetricWebhookDeliveryDuration))
	hasError(CreateMetric(TypeGaugeVec, SystemNotifier, MetricStreamPending, "stream"))
	hasError(CreateMetric(TypeCounter, SystemNotifier, MetricDeadLettered))

	return err
}

func CreateMetric(metricType, subsystem, name string, labels ...string) error {
	mu.Lock()
	defer mu.Unlock()

	key := subsystem + name
	switch metricType {
	case TypeCounter:
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: name, ConstLabels: defaultLabels,
		})
		counters[key] = c
		return registry.Register(c)
	case TypeCounterVec:
		c := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: name, ConstLabels: defaultLabels,
		}, labels)
		counterVecs[key] = c
		return registry.Register(c)
	case TypeHistogram:
		h := prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: name, ConstLabels: defaultLabels,
			Buckets: prometheus.DefBuckets,
		})
		histograms[key] = h
		return registry.Register(h)
	case TypeHistogramVec:
		h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: name, ConstLabels: defaultLabels,
			Buckets: prometheus.DefBuckets,
		}, labels)
		histogramVecs[key] = h
		return registry.Register(h)
	case TypeGaugeVec:
		g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: name, ConstLabels: defaultLabels,
		}, labels)
		gaugeVecs[key] = g
		return registry.Register(g)
	}
	return fmt.Errorf("metric type %s is not defined", metricType)
}

// Gatherer exposes the active registry.
func Gatherer() prometheus.Gatherer {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// Handler serves the active registry in the exposition format.
func Handler() xhttp.RequestHandler {
	return func(ctx *xhttp.RequestCtx) {
		h := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(Gatherer(), promhttp.HandlerOpts{}))
		h(ctx)
	}
}

// ListenAndServer serves metrics on a dedicated listener. It blocks.
func ListenAndServer(addr string, uri string) {
	s := xhttp.CreateServer()
	s.GET(uri, Handler())
	logger.Info("[metrics-server] listening...", "addr", addr, "uri", uri)
	if err := s.ListenAndServe(addr); err != nil {
		logger.Error("[metrics-server] http listen error", "error", err)
	}
}

// Middleware counts requests and observes their latency.
func Middleware(next xhttp.RequestHandler) xhttp.RequestHandler {
	return func(ctx *xhttp.RequestCtx) {
		start := time.Now()
		next(ctx)
		method := string(ctx.Method())
		IncCounterVec(SystemHTTP, MetricRequestsTotal, method, strconv.Itoa(ctx.Response.StatusCode()))
		AddHistogramVec(SystemHTTP, MetricRequestDuration, time.Since(start).Seconds(), method)
	}
}

func IncCounter(subsystem, name string) {
	AddCounter(subsystem, name, 1)
}

func AddCounter(subsystem, name string, number float64) {
	if !isEnabled() {
		return
	}
	mu.RLock()
	v, ok := counters[subsystem+name]
	mu.RUnlock()
	if ok {
		v.Add(number)
		return
	}
	logger.Warn("[metrics-server] counter not found", "subsystem", subsystem, "name", name)
}

func IncCounterVec(subsystem, name string, labelValues ...string) {
	AddCounterVec(subsystem, name, 1, labelValues...)
}

func AddCounterVec(subsystem, name string, num float64, labelValues ...string) {
	if !isEnabled() {
		return
	}
	mu.RLock()
	v, ok := counterVecs[subsystem+name]
	mu.RUnlock()
	if ok {
		v.WithLabelValues(labelValues...).Add(num)
		return
	}
	logger.Warn("[metrics-server] counter vec not found", "subsystem", subsystem, "name", name)
}

func SetGaugeVec(subsystem, name string, value float64, labelValues ...string) {
	if !isEnabled() {
		return
	}
	mu.RLock()
	v, ok := gaugeVecs[subsystem+name]
	mu.RUnlock()
	if ok {
		v.WithLabelValues(labelValues...).Set(value)
		return
	}
	logger.Warn("[metrics-server] gauge not found", "subsystem", subsystem, "name", name)
}

func AddHistogram(subsystem, name string, number float64) {
	if !isEnabled() {
		return
	}
	mu.RLock()
	v, ok := histograms[subsystem+name]
	mu.RUnlock()
	if ok {
		v.Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram not found", "subsystem", subsystem, "name", name)
}

func AddHistogramVec(subsystem, name string, number float64, labelValues ...string) {
	if !isEnabled() {
		return
	}
	mu.RLock()
	v, ok := histogramVecs[subsystem+name]
	mu.RUnlock()
	if ok {
		v.WithLabelValues(labelValues...).Observe(number)
		return
	}
	logger.Warn("[metrics-server] histogram vec not found", "subsystem", subsystem, "name", name)
}

func isEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

func EventPublished(kind string, ok bool) {
	IncCounterVec(SystemLedger, MetricEventsPublished, kind, result(ok))
}

func WebhookDelivered(kind string, outcome string, d time.Duration) {
	IncCounterVec(SystemNotifier, MetricWebhookDeliveries, kind, outcome)
	AddHistogram(SystemNotifier, MetricWebhookDeliveryDuration, d.Seconds())
}

func DeadLettered() {
	IncCounter(SystemNotifier, MetricDeadLettered)
}

func StreamPending(stream string, pending int64) {
	SetGaugeVec(SystemNotifier, MetricStreamPending, float64(pending), stream)
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

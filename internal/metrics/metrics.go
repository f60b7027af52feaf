package metrics

import (
	"context"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/frahmantamala/procure-to-pay/internal/core/events"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "p2p"

// Recorder owns a private prometheus registry with the HTTP and workflow
// collectors. A nil Recorder records nothing.
type Recorder struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	requestsCreated  prometheus.Counter
	approvalDecision *prometheus.CounterVec
	requestsApproved prometheus.Counter
	ordersIssued     prometheus.Counter
	orderValue       prometheus.Counter
	receiptChecks    *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	cacheLatency     prometheus.Histogram
}

func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	m := &Recorder{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		requestsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchase_requests_created_total",
			Help:      "Purchase requests created",
		}),
		approvalDecision: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approval_decisions_total",
			Help:      "Approval decisions recorded, by level and decision",
		}, []string{"level", "decision"}),
		requestsApproved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchase_requests_approved_total",
			Help:      "Purchase requests that reached full approval",
		}),
		ordersIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchase_orders_issued_total",
			Help:      "Purchase orders issued",
		}),
		orderValue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchase_order_value_total",
			Help:      "Sum of issued purchase order totals",
		}),
		receiptChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipt_validations_total",
			Help:      "Receipt validations, by outcome",
		}, []string{"result"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchase_order_cache_lookups_total",
			Help:      "Purchase order document cache lookups, by result",
		}, []string{"result"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "purchase_order_cache_latency_seconds",
			Help:      "Latency of purchase order cache lookups",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "goroutines",
		Help:      "Number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.requestsCreated, m.approvalDecision, m.requestsApproved,
		m.ordersIssued, m.orderValue, m.receiptChecks,
		m.cacheLookups, m.cacheLatency, goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Handler exposes the registry in the prometheus text format.
func (m *Recorder) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

func (m *Recorder) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation matches the purchase order cache observer hook.
func (m *Recorder) RecordCacheOperation(hit bool, took time.Duration) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
	m.cacheLatency.Observe(took.Seconds())
}

// Middleware records every request under its chi route pattern so ids in
// the path do not explode label cardinality.
func (m *Recorder) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.ObserveHTTPRequest(r.Method, path, status, time.Since(start))
	})
}

// Subscribe feeds workflow events from the bus into the counters.
func (m *Recorder) Subscribe(bus *events.EventBus) {
	if m == nil || bus == nil {
		return
	}
	bus.Subscribe(events.AllEvents, m.handleEvent)
}

func (m *Recorder) handleEvent(_ context.Context, event events.Event) error {
	switch e := event.(type) {
	case *events.RequestCreatedEvent:
		m.requestsCreated.Inc()
	case *events.ApprovalRecordedEvent:
		m.approvalDecision.WithLabelValues(strconv.Itoa(e.Level), e.Decision).Inc()
	case *events.RequestApprovedEvent:
		m.requestsApproved.Inc()
	case *events.PurchaseOrderIssuedEvent:
		m.ordersIssued.Inc()
		m.orderValue.Add(e.Total.InexactFloat64())
	case *events.ReceiptValidatedEvent:
		result := "mismatch"
		if e.Matches {
			result = "match"
		}
		m.receiptChecks.WithLabelValues(result).Inc()
	}
	return nil
}

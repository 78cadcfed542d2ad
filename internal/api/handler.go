package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/paysync/internal/domain"
	"github.com/punchamoorthee/paysync/internal/service"
	"github.com/punchamoorthee/paysync/internal/store"
)

// Metrics
var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paysync_http_requests_total",
		Help: "Total dashboard HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "paysync_http_request_duration_seconds",
		Help:    "Latency distribution of dashboard HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5, 30},
	}, []string{"method", "endpoint"})
)

// PaymentService is what the dashboard handlers call.
type PaymentService interface {
	ListCombined(ctx context.Context) ([]domain.Payment, error)
	GetPaymentStatus(ctx context.Context, id string) *domain.PaymentDetail
	SendPayment(ctx context.Context, in service.SendPaymentInput) (*domain.Payment, error)
	QuickSend(ctx context.Context, in service.QuickSendInput) (*service.QuickSendResult, error)
	CreatePaymentRequest(ctx context.Context, amount decimal.Decimal, currency, reference string) (*domain.PaymentRequest, error)
	GetExchangeQuote(ctx context.Context, from, to string, amount decimal.Decimal) (domain.ExchangeQuote, error)
	Healthy(ctx context.Context) bool
}

type Handler struct {
	service PaymentService
	replays *Replays
	logger  *slog.Logger
	now     func() time.Time
}

// NewHandler builds the dashboard handlers. kv backs Idempotency-Key replay
// of submitted payments; nil disables replay.
func NewHandler(svc PaymentService, kv store.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{service: svc, logger: logger, now: time.Now}
	if kv != nil {
		h.replays = NewReplays(kv)
	}
	return h
}

// NewRouter registers every dashboard route plus /health and /metrics.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(instrument)
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthCheckHandler).Methods(http.MethodGet)

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/payments", h.ListPaymentsHandler).Methods(http.MethodGet)
	apiV1.HandleFunc("/payments", h.SendPaymentHandler).Methods(http.MethodPost)
	apiV1.HandleFunc("/payments/export.csv", h.ExportPaymentsHandler).Methods(http.MethodGet)
	apiV1.HandleFunc("/payments/stats", h.PaymentStatsHandler).Methods(http.MethodGet)
	apiV1.HandleFunc("/payments/quick-send", h.QuickSendHandler).Methods(http.MethodPost)
	apiV1.HandleFunc("/payments/{id}", h.GetPaymentHandler).Methods(http.MethodGet)
	apiV1.HandleFunc("/payment-requests", h.CreatePaymentRequestHandler).Methods(http.MethodPost)
	apiV1.HandleFunc("/quotes", h.QuoteHandler).Methods(http.MethodPost)
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument labels metrics with the route template so ids do not explode
// cardinality.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		if endpoint == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(r.Method, endpoint))
		defer timer.ObserveDuration()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	})
}

package api

import (
	"net/http"
	"time"

	"github.com/didip/tollbooth/v5"
	"github.com/didip/tollbooth/v5/limiter"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sebest/xff"
	"github.com/sirupsen/logrus"

	"github.com/merchantcapital/comcorp-idx-connector/internal/conf"
	"github.com/merchantcapital/comcorp-idx-connector/internal/consumer"
	"github.com/merchantcapital/comcorp-idx-connector/internal/observability"
	"github.com/merchantcapital/comcorp-idx-connector/internal/provider"
)

const serviceName = "securex-soap-connector"

// API is the HTTP front door of the connector.
type API struct {
	handler  http.Handler
	config   *conf.GlobalConfiguration
	router   *provider.Router
	builder  *provider.ResponseBuilder
	consumer *consumer.Service
	metrics  *observability.Metrics
	now      func() time.Time
}

// Option configures an API.
type Option func(*API)

// WithMetrics exposes m on the metrics path when metrics are enabled.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *API) { a.metrics = m }
}

// WithClock overrides the time source used in health reports.
func WithClock(now func() time.Time) Option {
	return func(a *API) { a.now = now }
}

// NewAPI wires the provider and consumer endpoints.
func NewAPI(config *conf.GlobalConfiguration, router *provider.Router, builder *provider.ResponseBuilder, svc *consumer.Service, logger *logrus.Logger, opts ...Option) *API {
	api := &API{
		config:   config,
		router:   router,
		builder:  builder,
		consumer: svc,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(api)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	xffmw, _ := xff.Default()

	r := chi.NewRouter()
	r.Use(xffmw.Handler)
	r.Use(chimiddleware.RequestID)
	r.Use(observability.NewStructuredLogger(logger, config.API.RequestIDHeader))
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", handler(api.HealthCheck))
	r.Post("/ProviderResponseService", api.ProviderResponse)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   config.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders:   append([]string{"Authorization", "Content-Type"}, config.CORS.AllowedHeaders...),
		AllowCredentials: true,
	})

	r.Route("/comcorp-download-request", func(r chi.Router) {
		r.Use(corsHandler.Handler)
		if config.RateLimit.Download > 0 {
			lmt := tollbooth.NewLimiter(config.RateLimit.Download, &limiter.ExpirableOptions{
				DefaultExpirationTTL: time.Hour,
			})
			r.Use(api.limitHandler(lmt))
		}
		r.Use(api.requireBasicAuth)
		r.Post("/", handler(api.DownloadRequest))
	})

	if config.Metrics.Enabled && api.metrics != nil {
		r.Method(http.MethodGet, config.Metrics.Path, promhttp.HandlerFor(api.metrics.Registry, promhttp.HandlerOpts{}))
	}

	api.handler = r
	return api
}

// ServeHTTP implements http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// HealthCheck reports whether the outbound client is loaded.
func (a *API) HealthCheck(w http.ResponseWriter, r *http.Request) error {
	ts := a.now().UTC().Format(time.RFC3339)
	if !a.consumer.Ready() {
		return sendJSON(w, http.StatusInternalServerError, map[string]string{
			"status":    "unhealthy",
			"service":   serviceName,
			"reason":    "SOAP client not loaded",
			"timestamp": ts,
		})
	}
	return sendJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": ts,
	})
}

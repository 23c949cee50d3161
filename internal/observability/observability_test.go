package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.ObserveInbound("IDX", true)
	m.ObserveInbound("IDX", true)
	m.ObserveInbound("Unknown", false)
	m.ObserveVerificationFailure("expired")
	m.ObserveSubmission(nil)
	m.ObserveSubmission(errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.InboundMessages.WithLabelValues("IDX", OutcomeAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InboundMessages.WithLabelValues("Unknown", OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VerificationFailures.WithLabelValues("expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboundSubmissions.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboundSubmissions.WithLabelValues(OutcomeError)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveInbound("IDX", true)
		m.ObserveVerificationFailure("expired")
		m.ObserveSubmission(nil)
	})
}

func TestStructuredLogger(t *testing.T) {
	logger, hook := test.NewNullLogger()

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(NewStructuredLogger(logger, ""))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		LogEntrySetField(r, "extra", "value")
		GetLogEntry(r).Info("inside handler")
		w.WriteHeader(http.StatusTeapot)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusTeapot, w.Code)

	entries := hook.AllEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, "request started", entries[0].Message)
	assert.Equal(t, "/health", entries[0].Data["path"])
	assert.NotEmpty(t, entries[0].Data["request_id"])
	assert.Equal(t, "inside handler", entries[1].Message)
	assert.Equal(t, "value", entries[1].Data["extra"])
	assert.Equal(t, "request completed", entries[2].Message)
	assert.Equal(t, http.StatusTeapot, entries[2].Data["status"])
}

func TestGetLogEntryWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.NotNil(t, GetLogEntry(req))
	assert.Nil(t, LogEntrySetField(req, "k", "v"))
}

func TestFieldsHook(t *testing.T) {
	logger := logrus.New()
	logger.Out = io.Discard
	logger.AddHook(&fieldsHook{fields: logrus.Fields{"service": "securex-soap-connector"}})
	hook := test.NewLocal(logger)
	logger.WithField("service", "override").Info("a")
	logger.Info("b")

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "override", entries[0].Data["service"])
	assert.Equal(t, "securex-soap-connector", entries[1].Data["service"])
}

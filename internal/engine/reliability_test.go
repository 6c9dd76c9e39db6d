package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/investorlens/internal/connectors"
	"github.com/xela07ax/investorlens/internal/dashboard"
	"github.com/xela07ax/investorlens/internal/domain"
)

func fastConfig() ReliabilityConfig {
	return ReliabilityConfig{
		RateLimit:        1000,
		Burst:            100,
		Attempts:         3,
		RetryDelay:       time.Millisecond,
		FailureThreshold: 2,
		OpenTimeout:      time.Minute,
	}
}

func newWrappedClient(t *testing.T, h http.Handler, cfg ReliabilityConfig, m *Metrics) (*connectors.Client, *ReliabilityWrapper) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	w := NewReliabilityWrapper(srv.Client(), cfg, m, zap.NewNop())
	c, err := connectors.NewClient(connectors.Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, w, nil, m, zap.NewNop())
	require.NoError(t, err)
	return c, w
}

func TestReliability_RetriesThrottledReads(t *testing.T) {
	var hits atomic.Int32
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total_unresolved": 4, "critical": 1}`))
	})
	c, _ := newWrappedClient(t, h, fastConfig(), nil)

	stats, err := c.Alerts.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalUnresolved)
	assert.Equal(t, int32(3), hits.Load())
}

func TestReliability_ExhaustedRetriesSurfaceServerError(t *testing.T) {
	var hits atomic.Int32
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})
	cfg := fastConfig()
	cfg.FailureThreshold = 100
	c, _ := newWrappedClient(t, h, cfg, nil)

	_, err := c.Companies.List(context.Background(), domain.CompanyQuery{})
	var tErr *connectors.TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, connectors.KindServer, tErr.Kind)
	assert.Equal(t, http.StatusBadGateway, tErr.StatusCode)
	assert.Equal(t, "upstream down", tErr.Body)
	assert.Equal(t, int32(3), hits.Load())
}

func TestReliability_WritesAreNotRetried(t *testing.T) {
	var hits atomic.Int32
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c, _ := newWrappedClient(t, h, fastConfig(), nil)

	_, err := c.Companies.Create(context.Background(), domain.CompanyCreate{Name: "Acme"})
	kind, _ := connectors.KindOf(err)
	assert.Equal(t, connectors.KindServer, kind)
	assert.Equal(t, int32(1), hits.Load())
}

func TestReliability_PlainServerErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	c, _ := newWrappedClient(t, h, fastConfig(), nil)

	_, err := c.Health(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestReliability_OpenBreakerIsClientError(t *testing.T) {
	var hits atomic.Int32
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	c, w := newWrappedClient(t, h, fastConfig(), m)
	ctx := context.Background()

	for range 2 {
		_, err := c.Health(ctx)
		kind, _ := connectors.KindOf(err)
		require.Equal(t, connectors.KindServer, kind)
	}
	assert.Equal(t, gobreaker.StateOpen, w.State())
	assert.Equal(t, float64(gobreaker.StateOpen), testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("portfolio-api")))

	_, err := c.Health(ctx)
	var tErr *connectors.TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, connectors.KindClient, tErr.Kind)
	assert.Equal(t, "/health", tErr.Path)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ErrorTotal.WithLabelValues("health", "client_error")))
}

func TestReliability_TooManyRequestsDoesNotTrip(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	cfg := fastConfig()
	cfg.Attempts = 1
	c, w := newWrappedClient(t, h, cfg, nil)

	for range 3 {
		_, err := c.Health(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed, w.State())
}

// Один отказ при обновлении отменяет соседние запросы. Отмененные запросы
// не должны открывать предохранитель, иначе ручное обновление не пройдет
// и после восстановления бэкенда.
func TestReliability_CancelledSiblingsDoNotTrip(t *testing.T) {
	var healthy atomic.Bool
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if healthy.Load() {
			w.Header().Set("Content-Type", "application/json")
			if r.URL.Path == "/api/alerts/stats/summary" {
				_, _ = w.Write([]byte(`{}`))
				return
			}
			_, _ = w.Write([]byte(`[]`))
			return
		}
		if r.URL.Path == "/api/companies" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		// Висим, пока клиент не отменит запрос
		<-r.Context().Done()
	})
	cfg := fastConfig()
	cfg.Attempts = 1
	cfg.FailureThreshold = 5
	c, w := newWrappedClient(t, h, cfg, nil)
	ctrl := dashboard.NewController(dashboard.BackendFrom(c), dashboard.Options{}, zap.NewNop())
	ctx := context.Background()

	for range 3 {
		require.Error(t, ctrl.Refresh(ctx))
	}
	assert.Equal(t, gobreaker.StateClosed, w.State())

	healthy.Store(true)
	require.NoError(t, ctrl.Refresh(ctx))
	assert.Equal(t, domain.PhaseReady, ctrl.State().Phase)
}

func TestReliability_NetworkErrorKeepsKind(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	w := NewReliabilityWrapper(http.DefaultClient, fastConfig(), nil, zap.NewNop())
	c, err := connectors.NewClient(connectors.Config{BaseURL: addr, Timeout: time.Second}, w, nil, nil, zap.NewNop())
	require.NoError(t, err)

	_, err = c.Health(context.Background())
	kind, _ := connectors.KindOf(err)
	assert.Equal(t, connectors.KindNetwork, kind)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 2*time.Second, parseRetryAfter("2"))
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("soon"))

	at := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	assert.Greater(t, parseRetryAfter(at), 50*time.Minute)
}

func TestMetrics_ObserveRequest(t *testing.T) {
	m := NewMetrics(nil)
	m.ObserveRequest("companies", http.MethodGet, 200, 30*time.Millisecond)
	m.ObserveRequest("companies", http.MethodGet, 0, time.Second)
	m.CountError("companies", connectors.KindNetwork)
	m.ObserveRefresh(false, time.Second)
	m.SetPortfolio(8, 43)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.TotalRequests.WithLabelValues("companies", http.MethodGet)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ErrorTotal.WithLabelValues("companies", "network_error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RefreshTotal.WithLabelValues("failed")))
	assert.Equal(t, float64(43), testutil.ToFloat64(m.PortfolioRisk))
}

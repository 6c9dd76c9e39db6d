package engine

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"

	"github.com/xela07ax/investorlens/internal/connectors"
)

type Metrics struct {
	// Latency: длительность запроса к бэкенду (включая ретраи)
	RequestDuration *prometheus.HistogramVec

	// Traffic: общее кол-во запросов
	TotalRequests *prometheus.CounterVec

	// Errors: классификация отказов транспорта
	ErrorTotal *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker (0 - closed, 1 - half-open, 2 - open)
	CircuitBreakerState *prometheus.GaugeVec

	// Refresh: исходы обновления дашборда
	RefreshTotal    *prometheus.CounterVec
	RefreshDuration prometheus.Histogram

	// Портфель по последнему успешному снимку
	PortfolioCompanies prometheus.Gauge
	PortfolioRisk      prometheus.Gauge

	// Журнал: заполненность буфера (backpressure)
	JournalBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "investorlens_api_request_duration_seconds",
			Help:    "Histogram of backend request latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"resource", "method", "status"}),

		TotalRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "investorlens_api_requests_total",
			Help: "Total number of backend requests.",
		}, []string{"resource", "method"}),

		ErrorTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "investorlens_api_errors_total",
			Help: "Total number of backend errors by kind.",
		}, []string{"resource", "kind"}), // server_error, network_error, client_error

		CircuitBreakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "investorlens_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open).",
		}, []string{"breaker"}),

		RefreshTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "investorlens_dashboard_refresh_total",
			Help: "Dashboard refresh attempts by outcome.",
		}, []string{"outcome"}), // ok, failed

		RefreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "investorlens_dashboard_refresh_duration_seconds",
			Help:    "Time taken by a full dashboard refresh.",
			Buckets: prometheus.DefBuckets,
		}),

		PortfolioCompanies: factory.NewGauge(prometheus.GaugeOpts{
			Name: "investorlens_portfolio_companies",
			Help: "Number of companies in the last loaded snapshot.",
		}),

		PortfolioRisk: factory.NewGauge(prometheus.GaugeOpts{
			Name: "investorlens_portfolio_average_risk",
			Help: "Average risk score of the last loaded snapshot.",
		}),

		JournalBufferFill: factory.NewGauge(prometheus.GaugeOpts{
			Name: "investorlens_journal_buffer_utilization",
			Help: "Current number of events in the activity journal buffer.",
		}),
	}
}

// ObserveRequest реализует connectors.Recorder. status = 0, если ответа не было.
func (m *Metrics) ObserveRequest(resource, method string, status int, d time.Duration) {
	m.TotalRequests.WithLabelValues(resource, method).Inc()
	m.RequestDuration.WithLabelValues(resource, method, strconv.Itoa(status)).Observe(d.Seconds())
}

func (m *Metrics) CountError(resource string, kind connectors.Kind) {
	m.ErrorTotal.WithLabelValues(resource, string(kind)).Inc()
}

func (m *Metrics) SetBreakerState(name string, state gobreaker.State) {
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// ObserveRefresh фиксирует исход обновления дашборда.
func (m *Metrics) ObserveRefresh(ok bool, d time.Duration) {
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.RefreshTotal.WithLabelValues(outcome).Inc()
	m.RefreshDuration.Observe(d.Seconds())
}

func (m *Metrics) SetPortfolio(companies, averageRisk int) {
	m.PortfolioCompanies.Set(float64(companies))
	m.PortfolioRisk.Set(float64(averageRisk))
}

func (m *Metrics) SetJournalFill(n int) {
	m.JournalBufferFill.Set(float64(n))
}

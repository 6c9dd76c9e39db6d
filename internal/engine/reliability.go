package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xela07ax/investorlens/internal/connectors"
)

// ReliabilityConfig: параметры защитного слоя перед бэкендом.
type ReliabilityConfig struct {
	RateLimit        float64       // Запросов в секунду
	Burst            int           // Размер пачки для лимитера
	Attempts         uint          // Попыток для идемпотентных запросов (GET/HEAD)
	RetryDelay       time.Duration // База экспоненциального бэкоффа
	FailureThreshold uint32        // Подряд идущих отказов до открытия CB
	OpenTimeout      time.Duration // Время, через которое CB попробует "закрыться"
	HalfOpenRequests uint32
	Interval         time.Duration // Период сброса счетчиков в closed
}

func (c *ReliabilityConfig) withDefaults() {
	if c.RateLimit <= 0 {
		c.RateLimit = 20
	}
	if c.Burst <= 0 {
		c.Burst = 10
	}
	if c.Attempts == 0 {
		c.Attempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 200 * time.Millisecond
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.HalfOpenRequests == 0 {
		c.HalfOpenRequests = 3
	}
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
}

var errServerStatus = errors.New("backend responded with 5xx")

// ReliabilityWrapper: connectors.Doer с лимитером, предохранителем и ретраями.
// Ответ сервера (даже 5xx) всегда возвращается вызывающему: классификацию делает Client.
type ReliabilityWrapper struct {
	next     connectors.Doer
	cb       *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	attempts uint
	delay    time.Duration
	logger   *zap.Logger
}

func NewReliabilityWrapper(next connectors.Doer, cfg ReliabilityConfig, metrics *Metrics, logger *zap.Logger) *ReliabilityWrapper {
	cfg.withDefaults()
	logger = logger.Named("reliability")

	// Настройка предохранителя
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "portfolio-api",
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// N ошибок подряд, открываемся (блокируем трафик)
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// 429 и отмена вызывающим ничего не говорят о здоровье бэкенда
		IsSuccessful: func(err error) bool {
			if errors.Is(err, context.Canceled) {
				return true
			}
			var tErr *connectors.ThrottleError
			if errors.As(err, &tErr) {
				return tErr.StatusCode == http.StatusTooManyRequests
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			if metrics != nil {
				metrics.SetBreakerState(name, to)
			}
		},
	})
	if metrics != nil {
		metrics.SetBreakerState(cb.Name(), cb.State())
	}

	return &ReliabilityWrapper{
		next:     next,
		cb:       cb,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		attempts: cfg.Attempts,
		delay:    cfg.RetryDelay,
		logger:   logger,
	}
}

// State: текущее состояние предохранителя.
func (w *ReliabilityWrapper) State() gobreaker.State {
	return w.cb.State()
}

func (w *ReliabilityWrapper) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	// 1. Rate Limiter
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, &connectors.TransportError{
			Kind:  connectors.KindClient,
			Cause: fmt.Errorf("rate limit: request not sent: %w", err),
		}
	}

	// Тело запроса нельзя отправить повторно, поэтому ретраим только чтение
	attempts := uint(1)
	if req.Method == http.MethodGet || req.Method == http.MethodHead {
		attempts = w.attempts
	}

	// 2. Circuit Breaker
	result, err := w.cb.Execute(func() (interface{}, error) {
		return w.withRetry(ctx, req, attempts)
	})

	resp, _ := result.(*http.Response)
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, &connectors.TransportError{
			Kind:  connectors.KindClient,
			Cause: fmt.Errorf("circuit breaker: request not sent: %w", err),
		}
	case resp != nil:
		// Статусные ошибки разбирает клиент
		return resp, nil
	default:
		return nil, err
	}
}

// withRetry возвращает последний полученный ответ; ошибка нужна только предохранителю.
func (w *ReliabilityWrapper) withRetry(ctx context.Context, req *http.Request, attempts uint) (*http.Response, error) {
	var resp *http.Response

	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(w.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		// Умный расчет задержки
		retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
			// Сервер вернул Retry-After, слушаемся его
			var tErr *connectors.ThrottleError
			if errors.As(err, &tErr) && tErr.RetryAfter > 0 {
				return tErr.RetryAfter
			}

			// В остальных случаях (сетевой лаг, 502-504): стандартный экспоненциальный бэкофф
			return retry.BackOffDelay(n, err, config)
		}),
	)

	err := r.Do(func() error {
		if resp != nil {
			drain(resp)
			resp = nil
		}

		var callErr error
		resp, callErr = w.next.Do(req.Clone(ctx))
		if callErr != nil {
			resp = nil
			return callErr
		}

		switch resp.StatusCode {
		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			w.logger.Debug("backend throttled",
				zap.String("path", req.URL.Path),
				zap.Int("status", resp.StatusCode))
			return &connectors.ThrottleError{
				StatusCode: resp.StatusCode,
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
				Cause:      errServerStatus,
			}
		}
		if resp.StatusCode >= 500 {
			return errServerStatus
		}
		return nil
	})

	return resp, err
}

// retryable: сетевые сбои и троттлинг. Отмененный контекст не ретраим.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var tErr *connectors.ThrottleError
	if errors.As(err, &tErr) {
		return true
	}
	return !errors.Is(err, errServerStatus)
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

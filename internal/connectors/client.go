package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultTimeout = 30 * time.Second

	// TraceHeader пробрасывается в бэкенд для сквозной трассировки запроса.
	TraceHeader = "X-Trace-ID"

	maxErrorBody = 4 << 10
)

// Doer выполняет HTTP-запрос. Реализуется *http.Client и engine.ReliabilityWrapper.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Recorder получает телеметрию по каждому исходящему запросу.
type Recorder interface {
	ObserveRequest(resource, method string, status int, d time.Duration)
	CountError(resource string, kind Kind)
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	Headers map[string]string // Дополнительные заголовки по умолчанию
}

// Client: REST-клиент бэкенда портфеля. Каждая ошибка логируется с классификацией
// и возвращается вызывающему как *TransportError, ничего не проглатывается.
type Client struct {
	baseURL *url.URL
	timeout time.Duration
	headers http.Header
	doer    Doer
	tokens  TokenStore
	rec     Recorder
	logger  *zap.Logger

	Companies *CompaniesAPI
	Alerts    *AlertsAPI
	Analysis  *AnalysisAPI
}

// NewClient собирает клиент. doer, tokens и rec могут быть nil:
// тогда используется http.Client с таймаутом, запросы уходят без токена, телеметрия не пишется.
func NewClient(cfg Config, doer Doer, tokens TokenStore, rec Recorder, logger *zap.Logger) (*Client, error) {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", base)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if doer == nil {
		doer = &http.Client{Timeout: timeout}
	}
	if tokens == nil {
		tokens = StaticToken("")
	}
	if rec == nil {
		rec = nopRecorder{}
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Accept", "application/json")
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}

	c := &Client{
		baseURL: u,
		timeout: timeout,
		headers: headers,
		doer:    doer,
		tokens:  tokens,
		rec:     rec,
		logger:  logger.Named("api-client"),
	}
	c.Companies = &CompaniesAPI{c: c}
	c.Alerts = &AlertsAPI{c: c}
	c.Analysis = &AnalysisAPI{c: c}
	return c, nil
}

// BaseURL возвращает адрес бэкенда, с которым работает клиент.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

type traceKey struct{}

// WithTraceID задает Trace-ID для всех запросов, сделанных с этим контекстом.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func traceIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(traceKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}

// call является единой точкой исходящих запросов (сборка, токен, таймаут, классификация, лог).
func (c *Client) call(ctx context.Context, resource, method, path string, query url.Values, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	status := 0
	err := c.roundTrip(ctx, method, path, query, body, out, &status)
	c.rec.ObserveRequest(resource, method, status, time.Since(start))

	if err != nil {
		tErr := err.(*TransportError)
		c.rec.CountError(resource, tErr.Kind)
		fields := []zap.Field{
			zap.String("kind", string(tErr.Kind)),
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("elapsed", time.Since(start)),
		}
		switch tErr.Kind {
		case KindServer:
			c.logger.Error("api error", append(fields,
				zap.Int("status", tErr.StatusCode),
				zap.String("body", tErr.Body))...)
		case KindNetwork:
			c.logger.Error("network error", append(fields, zap.Error(tErr.Cause))...)
		default:
			c.logger.Error("request error", append(fields, zap.Error(tErr.Cause))...)
		}
		return tErr
	}
	return nil
}

// roundTrip всегда возвращает либо nil, либо *TransportError.
func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body, out any, status *int) error {
	fail := func(kind Kind, cause error) error {
		return &TransportError{Kind: kind, Method: method, Path: path, Cause: cause}
	}

	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return fail(KindClient, err)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		var tErr *TransportError
		if errors.As(err, &tErr) {
			tErr.Method, tErr.Path = method, path
			return tErr
		}
		return fail(KindNetwork, err)
	}
	defer resp.Body.Close()
	*status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &TransportError{
			Kind:       KindServer,
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// Таймаут во время чтения тела: это все еще "нет ответа"
		if ctx.Err() != nil {
			return fail(KindNetwork, fmt.Errorf("read body: %w", ctx.Err()))
		}
		if errors.Is(err, io.EOF) {
			return fail(KindClient, errors.New("decode response: empty body"))
		}
		return fail(KindClient, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header[k] = append([]string(nil), v...)
	}
	req.Header.Set(TraceHeader, traceIDFrom(ctx))
	c.authorize(ctx, req)
	return req, nil
}

// authorize добавляет bearer-токен, если он есть. Сбой хранилища не блокирует запрос.
func (c *Client) authorize(ctx context.Context, req *http.Request) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		c.logger.Warn("token lookup failed, sending request unauthenticated", zap.Error(err))
		return
	}
	if token == "" {
		return
	}
	if exp, ok := tokenExpiry(token); ok && time.Now().After(exp) {
		c.logger.Warn("stored access token is expired", zap.Time("expired_at", exp))
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRequest(string, string, int, time.Duration) {}
func (nopRecorder) CountError(string, Kind)                           {}

package connectors

import (
	"errors"
	"fmt"
	"time"
)

// Kind классифицирует отказ транспорта.
type Kind string

const (
	// KindServer: сервер ответил статусом вне 2xx.
	KindServer Kind = "server_error"
	// KindNetwork: запрос ушел, ответа нет (таймаут, обрыв соединения).
	KindNetwork Kind = "network_error"
	// KindClient: запрос не удалось собрать или отправить, либо не разобрать ответ.
	KindClient Kind = "client_error"
)

// TransportError: единственный тип ошибки, который возвращает Client.
type TransportError struct {
	Kind       Kind
	Method     string
	Path       string
	StatusCode int    // Только для KindServer
	Body       string // Тело ответа сервера, обрезанное до maxErrorBody
	Cause      error
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case KindServer:
		return fmt.Sprintf("api: %s %s: server error %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
	case KindNetwork:
		return fmt.Sprintf("api: %s %s: network error: %v", e.Method, e.Path, e.Cause)
	default:
		return fmt.Sprintf("api: %s %s: client error: %v", e.Method, e.Path, e.Cause)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// KindOf достает классификацию из цепочки ошибок.
func KindOf(err error) (Kind, bool) {
	var tErr *TransportError
	if errors.As(err, &tErr) {
		return tErr.Kind, true
	}
	return "", false
}

// IsNotFound: сервер ответил 404.
func IsNotFound(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr) && tErr.Kind == KindServer && tErr.StatusCode == 404
}

// ThrottleError: сервер попросил подождать (429/503 с Retry-After или 502/504).
// Используется только внутри ретраев, наружу уходит ServerError.
type ThrottleError struct {
	StatusCode int
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: status %d, retry after %v (cause: %v)", e.StatusCode, e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error {
	return e.Cause
}

package connectors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

// TokenStore: источник bearer-токена. Читается на каждый запрос;
// пустая строка без ошибки означает "идем без авторизации".
type TokenStore interface {
	AccessToken(ctx context.Context) (string, error)
}

// StaticToken: токен из конфига/ENV.
type StaticToken string

func (t StaticToken) AccessToken(context.Context) (string, error) {
	return string(t), nil
}

// RedisTokenStore хранит токен в общем Redis, чтобы его видели все инстансы консоли
// и его можно было сменить без перезапуска.
type RedisTokenStore struct {
	rdb *redis.Client
	key string
}

func NewRedisTokenStore(rdb *redis.Client, key string) *RedisTokenStore {
	return &RedisTokenStore{rdb: rdb, key: key}
}

func (s *RedisTokenStore) AccessToken(ctx context.Context) (string, error) {
	token, err := s.rdb.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("token store: %w", err)
	}
	return strings.TrimSpace(token), nil
}

// SetAccessToken сохраняет токен; ttl = 0: без срока.
func (s *RedisTokenStore) SetAccessToken(ctx context.Context, token string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, s.key, token, ttl).Err(); err != nil {
		return fmt.Errorf("token store: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) Clear(ctx context.Context) error {
	return s.rdb.Del(ctx, s.key).Err()
}

// tokenExpiry читает exp из JWT без проверки подписи (подпись проверяет сервер).
// Для непрозрачных токенов возвращает false.
func tokenExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "investorlens"
)

const (
	// RedisKeyAccessToken: bearer-токен бэкенда, общий для всех инстансов консоли.
	RedisKeyAccessToken = RedisNamespace + ":auth:access_token"
	// RedisKeyJournal: список событий журнала активности (новые в конце).
	RedisKeyJournal = RedisNamespace + ":journal:events"
)

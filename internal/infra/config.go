package infra

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config: корневая структура конфигурации консоли.
type Config struct {
	API         APIConfig         `mapstructure:"api"`
	Reliability ReliabilityConfig `mapstructure:"reliability"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Console     ConsoleConfig     `mapstructure:"console"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logger      LoggerConfig      `mapstructure:"logger"`
	Journal     JournalConfig     `mapstructure:"journal"`
}

// APIConfig описывает подключение к бэкенду портфеля.
type APIConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Token       string        `mapstructure:"token"`
	TokenSource string        `mapstructure:"token_source"` // static, redis
	AlertsLimit int           `mapstructure:"alerts_limit"`
	Locale      string        `mapstructure:"locale"` // BCP 47, для сортировки по имени
}

// ReliabilityConfig: лимитер, ретраи и Circuit Breaker исходящих запросов.
type ReliabilityConfig struct {
	RateLimit     float64       `mapstructure:"rate_limit"`
	RateBurst     int           `mapstructure:"rate_burst"`
	RetryAttempts uint          `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`

	CBMaxRequests      uint32        `mapstructure:"cb_max_requests"`
	CBInterval         time.Duration `mapstructure:"cb_interval"`
	CBTimeout          time.Duration `mapstructure:"cb_timeout"`
	CBFailureThreshold uint32        `mapstructure:"cb_failure_threshold"`
}

// RedisConfig описывает подключение к Redis (токен и журнал). Пустой addr: Redis не используется.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ConsoleConfig описывает HTTP-сервер консоли.
type ConsoleConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RefreshSchedule string        `mapstructure:"refresh_schedule"` // cron; пусто: без автообновления
	HealthSchedule  string        `mapstructure:"health_schedule"`  // cron; проверка /health бэкенда
	JobTimeout      time.Duration `mapstructure:"job_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"` // CORS
	DemoMode        bool          `mapstructure:"demo_mode"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // Пусто: метрики не отдаются
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

type JournalConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	BufferSize    int           `mapstructure:"buffer_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	MaxLen        int64         `mapstructure:"max_len"`
}

// Addr: адрес, который слушает консоль.
func (c ConsoleConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
// paths: каталоги поиска config.yaml; по умолчанию "." и "./configs".
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config") // имя файла без расширения
	v.SetConfigType("yaml")   // формат
	if len(paths) == 0 {
		paths = []string{".", "./configs"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// 2. Настройка переменных окружения (ENV)
	// Позволяет перекрывать конфиг: CONSOLE_PORT=9000 перекроет console.port
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Установка дефолтных значений
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет: работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8000") // API_BASE_URL
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.token", "") // API_TOKEN
	v.SetDefault("api.token_source", "static")
	v.SetDefault("api.alerts_limit", 10)
	v.SetDefault("api.locale", "en")

	v.SetDefault("reliability.rate_limit", 20.0)
	v.SetDefault("reliability.rate_burst", 10)
	v.SetDefault("reliability.retry_attempts", 3)
	v.SetDefault("reliability.retry_delay", 200*time.Millisecond)
	v.SetDefault("reliability.cb_max_requests", 3)
	v.SetDefault("reliability.cb_interval", 5*time.Second)
	v.SetDefault("reliability.cb_timeout", 30*time.Second)
	v.SetDefault("reliability.cb_failure_threshold", 5)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("console.host", "")
	v.SetDefault("console.port", 8080)
	v.SetDefault("console.read_timeout", 5*time.Second)
	v.SetDefault("console.write_timeout", 35*time.Second)
	v.SetDefault("console.refresh_schedule", "@every 1m")
	v.SetDefault("console.health_schedule", "@every 30s")
	v.SetDefault("console.job_timeout", 45*time.Second)
	v.SetDefault("console.allowed_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	v.SetDefault("console.demo_mode", false)

	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.buffer_size", 1000)
	v.SetDefault("journal.flush_interval", 1*time.Second)
	v.SetDefault("journal.max_len", 10000)
}

func (c *Config) validate() error {
	switch c.API.TokenSource {
	case "static":
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("config: api.token_source=redis requires redis.addr")
		}
	default:
		return fmt.Errorf("config: unknown api.token_source %q", c.API.TokenSource)
	}
	if c.API.Timeout <= 0 {
		return errors.New("config: api.timeout must be positive")
	}
	return nil
}

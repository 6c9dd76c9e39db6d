package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/xela07ax/investorlens/internal/audit"
	"github.com/xela07ax/investorlens/internal/connectors"
	"github.com/xela07ax/investorlens/internal/console/handler"
	"github.com/xela07ax/investorlens/internal/console/server"
	"github.com/xela07ax/investorlens/internal/dashboard"
	"github.com/xela07ax/investorlens/internal/domain"
	"github.com/xela07ax/investorlens/internal/engine"
	"github.com/xela07ax/investorlens/internal/infra"
	"github.com/xela07ax/investorlens/internal/scheduler"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Контекст для управления жизненным циклом фоновых горутин
	appCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 1. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := engine.NewMetrics(reg)
	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, reg, logger)
	}

	// 2. Redis (опционально): токен и журнал
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()

		pingCtx, pingCancel := context.WithTimeout(appCtx, 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		pingCancel()
	}

	tokens := tokenStore(appCtx, cfg, rdb, logger)

	// 3. Demo-режим: бэкенд в памяти процесса
	baseURL := cfg.API.BaseURL
	if cfg.Console.DemoMode {
		demoURL, stopDemo, err := startDemoBackend(logger)
		if err != nil {
			logger.Fatal("failed to start demo backend", zap.Error(err))
		}
		defer stopDemo()
		baseURL = demoURL
	}

	// 4. Транспорт: Rate Limit -> Circuit Breaker -> Retry
	safeTransport := engine.NewReliabilityWrapper(&http.Client{}, engine.ReliabilityConfig{
		RateLimit:        cfg.Reliability.RateLimit,
		Burst:            cfg.Reliability.RateBurst,
		Attempts:         cfg.Reliability.RetryAttempts,
		RetryDelay:       cfg.Reliability.RetryDelay,
		FailureThreshold: cfg.Reliability.CBFailureThreshold,
		OpenTimeout:      cfg.Reliability.CBTimeout,
		HalfOpenRequests: cfg.Reliability.CBMaxRequests,
		Interval:         cfg.Reliability.CBInterval,
	}, metrics, logger)

	client, err := connectors.NewClient(connectors.Config{
		BaseURL: baseURL,
		Timeout: cfg.API.Timeout,
	}, safeTransport, tokens, metrics, logger)
	if err != nil {
		logger.Fatal("invalid api config", zap.Error(err))
	}

	// 5. Журнал действий
	var (
		recorder     audit.Recorder
		auditHandler *handler.AuditHandler
	)
	if cfg.Journal.Enabled {
		var store audit.Storage = audit.NewMemoryStorage(int(cfg.Journal.MaxLen))
		if rdb != nil {
			store = audit.NewRedisStorage(rdb, infra.RedisKeyJournal, cfg.Journal.MaxLen)
		}
		journal := audit.NewJournal(store, audit.Options{
			BufferSize:    cfg.Journal.BufferSize,
			FlushInterval: cfg.Journal.FlushInterval,
			OnFill:        metrics.SetJournalFill,
		}, logger)
		journal.Start()
		defer journal.Stop()

		recorder = journal
		auditHandler = handler.NewAuditHandler(journal)
	}

	// 6. Контроллер дашборда
	ctrl := dashboard.NewController(dashboard.BackendFrom(client), dashboard.Options{
		AlertsLimit: cfg.API.AlertsLimit,
		Locale:      language.Make(cfg.API.Locale),
		Journal:     recorder,
		Observer:    metrics,
	}, logger)

	go func() {
		if ctrl.CheckConnectivity(appCtx) == domain.ConnectivityConnected {
			_ = ctrl.Refresh(appCtx)
		}
	}()

	// 7. Фоновые задачи: автообновление и баннер подключения
	jobs := scheduler.New(appCtx, cfg.Console.JobTimeout, logger)
	if err := jobs.AddJob(cfg.Console.RefreshSchedule, scheduler.JobFunc{JobName: "dashboard-refresh", Fn: ctrl.Refresh}); err != nil {
		logger.Fatal("invalid refresh schedule", zap.Error(err))
	}
	if err := jobs.AddJob(cfg.Console.HealthSchedule, scheduler.JobFunc{JobName: "connectivity-check", Fn: func(ctx context.Context) error {
		if ctrl.CheckConnectivity(ctx) != domain.ConnectivityConnected {
			return errors.New("backend unreachable")
		}
		return nil
	}}); err != nil {
		logger.Fatal("invalid health schedule", zap.Error(err))
	}
	jobs.Start()
	defer jobs.Stop()

	// 8. HTTP Server
	console := server.NewConsoleServer(logger, ctrl, cfg.Console.AllowedOrigins, handler.NewDashboardHandler(ctrl, logger), auditHandler)
	srv := &http.Server{
		Addr:         cfg.Console.Addr(),
		Handler:      console,
		ReadTimeout:  cfg.Console.ReadTimeout,
		WriteTimeout: cfg.Console.WriteTimeout,
	}

	go func() {
		logger.Info("console started",
			zap.String("addr", srv.Addr),
			zap.String("backend", client.BaseURL()),
			zap.Bool("demo_mode", cfg.Console.DemoMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-appCtx.Done() // Ждем сигнал
	logger.Info("console stopping...")

	// Даем 5 секунд на завершение запросов
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	logger.Info("console exited properly")
}

func tokenStore(ctx context.Context, cfg *infra.Config, rdb *redis.Client, logger *zap.Logger) connectors.TokenStore {
	if cfg.API.TokenSource != "redis" {
		return connectors.StaticToken(cfg.API.Token)
	}

	store := connectors.NewRedisTokenStore(rdb, infra.RedisKeyAccessToken)
	// Токен из конфига становится начальным значением общего хранилища
	if cfg.API.Token != "" {
		if err := store.SetAccessToken(ctx, cfg.API.Token, 0); err != nil {
			logger.Warn("failed to seed access token", zap.Error(err))
		}
	}
	return store
}

func startDemoBackend(logger *zap.Logger) (string, func(), error) {
	backend := connectors.NewMockBackend(150*time.Millisecond, true)
	backend.Seed(time.Now().UTC())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	demo := &http.Server{Handler: backend, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := demo.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("demo backend stopped", zap.Error(err))
		}
	}()

	url := "http://" + ln.Addr().String()
	logger.Warn("demo mode: using in-process backend with sample data", zap.String("url", url))
	return url, func() { _ = demo.Close() }, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	logger.Info("metrics endpoint started", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics endpoint stopped", zap.Error(err))
	}
}

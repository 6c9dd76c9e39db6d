package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/xela07ax/investorlens/internal/console/handler"
	"github.com/xela07ax/investorlens/internal/domain"
)

// StatusSource: откуда /health берет состояние подключения к бэкенду.
type StatusSource interface {
	State() domain.ViewState
}

type ConsoleServer struct {
	router  *chi.Mux
	logger  *zap.Logger
	status  StatusSource
	origins []string

	// Обработчики бизнес-доменов
	dashHandler  *handler.DashboardHandler // /api/v1/dashboard, /api/v1/companies, /api/v1/alerts
	auditHandler *handler.AuditHandler     // /api/v1/journal
}

// NewConsoleServer инициализирует сервер консоли со всеми зависимостями
func NewConsoleServer(
	logger *zap.Logger,
	status StatusSource,
	allowedOrigins []string,
	dashH *handler.DashboardHandler,
	auditH *handler.AuditHandler,
) *ConsoleServer {
	s := &ConsoleServer{
		router:       chi.NewRouter(),
		logger:       logger.Named("console-api"),
		status:       status,
		origins:      allowedOrigins,
		dashHandler:  dashH,
		auditHandler: auditH,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	// CORS для браузерного фронтенда
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	// Healthcheck для мониторинга: консоль жива, бэкенд по последней проверке
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"backend": string(s.status.State().Connectivity),
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Dashboard
		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/", s.dashHandler.Get)
			r.Post("/refresh", s.dashHandler.Refresh)
			r.Put("/sort", s.dashHandler.SetSort)
			r.Put("/filter", s.dashHandler.SetFilter)
		})

		// Компании
		r.Route("/companies", func(r chi.Router) {
			r.Post("/", s.dashHandler.CreateCompany)
			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", s.dashHandler.DeleteCompany)
				r.Post("/risk", s.dashHandler.RecalculateRisk) // Пересчет риска на бэкенде
			})
		})

		// Алерты
		r.Route("/alerts/{id}", func(r chi.Router) {
			r.Post("/read", s.dashHandler.MarkAlertRead)
			r.Post("/resolve", s.dashHandler.ResolveAlert)
		})

		// Журнал действий
		if s.auditHandler != nil {
			r.Get("/journal", s.auditHandler.GetLogs)
		}
	})
}

// requestLogger: access-лог через zap.
func (s *ConsoleServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

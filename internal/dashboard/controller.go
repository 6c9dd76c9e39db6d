// Package dashboard держит состояние экрана портфеля: загрузку, сортировку,
// фильтр и действия оператора над компаниями и алертами.
package dashboard

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/xela07ax/investorlens/internal/audit"
	"github.com/xela07ax/investorlens/internal/connectors"
	"github.com/xela07ax/investorlens/internal/domain"
	"github.com/xela07ax/investorlens/internal/portfolio"
	"github.com/xela07ax/investorlens/internal/risk"
)

// LoadFailedMessage: единственное сообщение, которое видит пользователь при сбое загрузки.
const LoadFailedMessage = "Failed to load dashboard data. Please try again."

// DefaultAlertsLimit: сколько нерешенных алертов показывает лента.
const DefaultAlertsLimit = 10

type CompanyService interface {
	List(ctx context.Context, q domain.CompanyQuery) ([]domain.Company, error)
	Create(ctx context.Context, in domain.CompanyCreate) (*domain.Company, error)
	Delete(ctx context.Context, id int) error
}

type AlertService interface {
	List(ctx context.Context, q domain.AlertQuery) ([]domain.Alert, error)
	Stats(ctx context.Context) (*domain.AlertStats, error)
	MarkRead(ctx context.Context, id int) (*domain.AlertAck, error)
	Resolve(ctx context.Context, id int, resolvedBy string) (*domain.AlertAck, error)
}

type RiskService interface {
	RiskScore(ctx context.Context, companyID int) (*domain.RiskAssessment, error)
}

type HealthChecker interface {
	Health(ctx context.Context) (*domain.Health, error)
}

// Backend: ресурсы бэкенда, которые нужны контроллеру.
type Backend struct {
	Companies CompanyService
	Alerts    AlertService
	Analysis  RiskService
	Health    HealthChecker
}

// BackendFrom собирает Backend из REST-клиента.
func BackendFrom(c *connectors.Client) Backend {
	return Backend{
		Companies: c.Companies,
		Alerts:    c.Alerts,
		Analysis:  c.Analysis,
		Health:    c,
	}
}

// Observer получает исходы обновлений (метрики).
type Observer interface {
	ObserveRefresh(ok bool, d time.Duration)
	SetPortfolio(companies, averageRisk int)
}

type Options struct {
	AlertsLimit int
	Locale      language.Tag // Для сортировки по имени
	Journal     audit.Recorder
	Observer    Observer
	Now         func() time.Time
}

type Controller struct {
	api      Backend
	opts     Options
	analyzer *risk.Analyzer
	logger   *zap.Logger

	mu    sync.RWMutex
	state domain.ViewState
}

func NewController(api Backend, opts Options, logger *zap.Logger) *Controller {
	if opts.AlertsLimit <= 0 {
		opts.AlertsLimit = DefaultAlertsLimit
	}
	if opts.Locale == language.Und {
		opts.Locale = language.English
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger = logger.Named("dashboard")

	return &Controller{
		api:      api,
		opts:     opts,
		analyzer: risk.NewAnalyzer(logger),
		logger:   logger,
		state: domain.ViewState{
			Companies:      []domain.Company{},
			Alerts:         []domain.Alert{},
			Phase:          domain.PhaseIdle,
			SortKey:        domain.SortByRiskScore,
			FilterIndustry: domain.IndustryAll,
			Connectivity:   domain.ConnectivityChecking,
		},
	}
}

// State возвращает копию состояния; срезы можно читать, но не менять.
func (c *Controller) State() domain.ViewState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Snapshot пересчитывается на каждый вызов из текущего состояния.
func (c *Controller) Snapshot() domain.PortfolioSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() domain.PortfolioSnapshot {
	stats := c.state.AlertStats
	return portfolio.Aggregate(c.state.Companies, &stats)
}

// Refresh параллельно загружает компании, алерты и сводку алертов.
// Все три ответа применяются вместе, либо не применяется ни один.
// Перекрывающиеся вызовы не сериализуются: побеждает тот, кто завершился последним.
func (c *Controller) Refresh(ctx context.Context) error {
	start := c.opts.Now()
	traceID := uuid.New().String()
	ctx = connectors.WithTraceID(ctx, traceID)

	c.mu.Lock()
	c.state.Loading = true
	c.state.Error = ""
	c.state.Phase = domain.PhaseLoading
	c.mu.Unlock()

	var (
		companies []domain.Company
		alerts    []domain.Alert
		stats     *domain.AlertStats
	)

	// Первая ошибка отменяет остальные запросы, их результаты отбрасываются
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		companies, err = c.api.Companies.List(gctx, domain.CompanyQuery{})
		return err
	})
	g.Go(func() error {
		var err error
		alerts, err = c.api.Alerts.List(gctx, domain.AlertQuery{UnresolvedOnly: true, Limit: c.opts.AlertsLimit})
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = c.api.Alerts.Stats(gctx)
		return err
	})
	err := g.Wait()
	elapsed := c.opts.Now().Sub(start)

	c.mu.Lock()
	c.state.Loading = false
	if err != nil {
		c.state.Error = LoadFailedMessage
		c.state.Phase = domain.PhaseFailed
		c.mu.Unlock()

		c.logger.Error("dashboard refresh failed", zap.String("trace_id", traceID), zap.Error(err))
		c.observe(false, elapsed)
		c.record(audit.Event{TraceID: traceID, Action: audit.ActionRefresh, Status: audit.StatusFailed,
			Error: err.Error(), DurationMs: elapsed.Milliseconds()})
		return fmt.Errorf("refresh dashboard: %w", err)
	}

	c.state.Companies = companies
	c.state.Alerts = alerts
	c.state.AlertStats = *stats
	c.state.Phase = domain.PhaseReady
	c.state.LastRefreshedAt = c.opts.Now()
	// Данные пришли: бэкенд точно доступен
	c.state.Connectivity = domain.ConnectivityConnected
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.analyzer.Watchlist(companies)
	c.logger.Info("dashboard refreshed",
		zap.String("trace_id", traceID),
		zap.Int("companies", snap.TotalCompanies),
		zap.Int("alerts", len(alerts)),
		zap.Int("average_risk", snap.AverageRiskScore),
		zap.Duration("elapsed", elapsed))
	c.observe(true, elapsed)
	if c.opts.Observer != nil {
		c.opts.Observer.SetPortfolio(snap.TotalCompanies, snap.AverageRiskScore)
	}
	c.record(audit.Event{TraceID: traceID, Action: audit.ActionRefresh, Status: audit.StatusOK,
		DurationMs: elapsed.Milliseconds(),
		Details:    map[string]any{"companies": snap.TotalCompanies, "alerts": len(alerts)}})
	return nil
}

// SetSortKey меняет порядок отображения без запроса к бэкенду.
func (c *Controller) SetSortKey(value string) error {
	key, err := domain.ParseSortKey(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.SortKey = key
	return nil
}

// CycleSort переключает risk -> arr -> name -> risk.
func (c *Controller) CycleSort() domain.SortKey {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.SortKey = c.state.SortKey.Next()
	return c.state.SortKey
}

// SetFilterIndustry принимает отрасль или "all" без учета регистра.
func (c *Controller) SetFilterIndustry(value string) error {
	industry, err := domain.ParseIndustry(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.FilterIndustry = industry
	return nil
}

// DisplayList: отфильтрованный и отсортированный список для таблицы.
func (c *Controller) DisplayList() []domain.CompanyRow {
	c.mu.RLock()
	companies := c.state.Companies
	key := c.state.SortKey
	filter := c.state.FilterIndustry
	c.mu.RUnlock()

	return Display(companies, filter, key, c.opts.Locale)
}

// CreateCompany нормализует черновик, отправляет его и перезагружает дашборд.
// Новая запись в списке появляется только из ответа бэкенда.
func (c *Controller) CreateCompany(ctx context.Context, draft domain.CompanyDraft) (*domain.Company, error) {
	in, issues := draft.Normalize()
	for _, issue := range issues {
		c.logger.Warn("company draft field defaulted",
			zap.String("field", issue.Field),
			zap.String("value", issue.Value),
			zap.String("applied", issue.Applied))
	}

	start := c.opts.Now()
	created, err := c.api.Companies.Create(ctx, in)
	if err != nil {
		c.finish(audit.ActionCreateCompany, "company:"+in.Name, start, err)
		return nil, fmt.Errorf("create company %q: %w", in.Name, err)
	}
	c.finish(audit.ActionCreateCompany, "company:"+strconv.Itoa(created.ID), start, nil)

	c.refreshAfter(ctx, audit.ActionCreateCompany)
	return created, nil
}

// DeleteCompany делает мягкое удаление на бэкенде.
func (c *Controller) DeleteCompany(ctx context.Context, id int) error {
	start := c.opts.Now()
	err := c.api.Companies.Delete(ctx, id)
	c.finish(audit.ActionDeleteCompany, "company:"+strconv.Itoa(id), start, err)
	if err != nil {
		return fmt.Errorf("delete company %d: %w", id, err)
	}
	c.refreshAfter(ctx, audit.ActionDeleteCompany)
	return nil
}

// RecalculateRisk просит бэкенд пересчитать risk_score компании.
func (c *Controller) RecalculateRisk(ctx context.Context, companyID int) (*domain.RiskAssessment, error) {
	start := c.opts.Now()
	assessment, err := c.api.Analysis.RiskScore(ctx, companyID)
	c.finish(audit.ActionRecalculateRisk, "company:"+strconv.Itoa(companyID), start, err)
	if err != nil {
		return nil, fmt.Errorf("recalculate risk for company %d: %w", companyID, err)
	}
	if assessment.RiskScore >= risk.WatchThreshold {
		c.logger.Warn("recalculated risk above watch threshold",
			zap.Int("company_id", companyID),
			zap.Int("risk_score", assessment.RiskScore),
			zap.String("level", string(risk.LevelOf(assessment.RiskScore))))
	}
	c.refreshAfter(ctx, audit.ActionRecalculateRisk)
	return assessment, nil
}

func (c *Controller) MarkAlertRead(ctx context.Context, id int) error {
	start := c.opts.Now()
	_, err := c.api.Alerts.MarkRead(ctx, id)
	c.finish(audit.ActionMarkAlertRead, "alert:"+strconv.Itoa(id), start, err)
	if err != nil {
		return fmt.Errorf("mark alert %d read: %w", id, err)
	}
	c.refreshAfter(ctx, audit.ActionMarkAlertRead)
	return nil
}

func (c *Controller) ResolveAlert(ctx context.Context, id int, resolvedBy string) error {
	start := c.opts.Now()
	_, err := c.api.Alerts.Resolve(ctx, id, resolvedBy)
	c.finish(audit.ActionResolveAlert, "alert:"+strconv.Itoa(id), start, err)
	if err != nil {
		return fmt.Errorf("resolve alert %d: %w", id, err)
	}
	c.refreshAfter(ctx, audit.ActionResolveAlert)
	return nil
}

// CheckConnectivity опрашивает /health и обновляет баннер подключения.
func (c *Controller) CheckConnectivity(ctx context.Context) domain.Connectivity {
	status := domain.ConnectivityConnected
	if _, err := c.api.Health.Health(ctx); err != nil {
		status = domain.ConnectivityDisconnected
		c.logger.Warn("backend unreachable", zap.Error(err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Connectivity = status
	return status
}

// refreshAfter: изменение уже принято бэкендом, сбой перезагрузки виден в состоянии.
func (c *Controller) refreshAfter(ctx context.Context, action string) {
	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn("refresh after change failed", zap.String("action", action), zap.Error(err))
	}
}

func (c *Controller) finish(action, subject string, start time.Time, err error) {
	event := audit.Event{
		Action:     action,
		Subject:    subject,
		Status:     audit.StatusOK,
		DurationMs: c.opts.Now().Sub(start).Milliseconds(),
	}
	if err != nil {
		event.Status = audit.StatusFailed
		event.Error = err.Error()
		if kind, ok := connectors.KindOf(err); ok {
			event.Details = map[string]any{"kind": string(kind)}
		}
	}
	c.record(event)
}

func (c *Controller) record(event audit.Event) {
	if c.opts.Journal != nil {
		c.opts.Journal.Record(event)
	}
}

func (c *Controller) observe(ok bool, d time.Duration) {
	if c.opts.Observer != nil {
		c.opts.Observer.ObserveRefresh(ok, d)
	}
}

// Alerts: лента в порядке сервера (новые первыми), не длиннее лимита.
func (c *Controller) Alerts() []domain.Alert {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.state.Alerts)
}

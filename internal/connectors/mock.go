package connectors

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xela07ax/investorlens/internal/domain"
	"github.com/xela07ax/investorlens/internal/risk"
)

// MockBackend: in-memory имитация бэкенда портфеля.
// Используется в demo-режиме консоли (бэкенд недоступен) и в тестах.
type MockBackend struct {
	mu        sync.RWMutex
	companies []domain.Company
	alerts    []domain.Alert
	nextID    int
	nextAlert int

	// Ошибки по маршруту "METHOD /path" -> HTTP статус
	failures map[string]int
	// Задержка ответа: фиксированная или случайная в [latency, 2*latency)
	latency time.Duration
	jitter  bool

	router chi.Router
}

// NewMockBackend создает пустой бэкенд. Seed() наполняет его демо-данными.
func NewMockBackend(latency time.Duration, jitter bool) *MockBackend {
	m := &MockBackend{
		nextID:    1,
		nextAlert: 1,
		failures:  make(map[string]int),
		latency:   latency,
		jitter:    jitter,
	}
	m.routes()
	return m
}

func (m *MockBackend) routes() {
	r := chi.NewRouter()
	r.Use(m.simulate)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, domain.Health{Status: "healthy", AppName: "InvestorLens Demo", Version: "1.0.0"})
	})

	r.Route("/api/companies", func(r chi.Router) {
		r.Get("/", m.listCompanies)
		r.Post("/", m.createCompany)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", m.getCompany)
			r.Put("/", m.updateCompany)
			r.Delete("/", m.deleteCompany)
			r.Get("/news", m.companyNews)
			r.Get("/insights", m.companyInsights)
		})
	})

	r.Route("/api/alerts", func(r chi.Router) {
		r.Get("/", m.listAlerts)
		r.Get("/stats/summary", m.alertStats)
		r.Get("/{id}", m.getAlert)
		r.Patch("/{id}/read", m.markRead)
		r.Patch("/{id}/resolve", m.resolve)
	})

	r.Route("/api/analysis", func(r chi.Router) {
		r.Post("/risk-score", m.riskScore)
		r.Post("/summarize", m.summarize)
		r.Post("/competitive-analysis/{id}", m.competitive)
		r.Post("/batch-analyze", m.batchAnalyze)
	})

	m.router = r
}

func (m *MockBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.router.ServeHTTP(w, r)
}

// Fail заставляет маршрут отвечать статусом status, пока не вызван Recover.
func (m *MockBackend) Fail(method, path string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[method+" "+path] = status
}

func (m *MockBackend) Recover(method, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, method+" "+path)
}

// simulate добавляет задержку и внедренные ошибки.
func (m *MockBackend) simulate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d := m.delay(); d > 0 {
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				return
			}
		}

		m.mu.RLock()
		status, failing := m.failures[r.Method+" "+strings.TrimRight(r.URL.Path, "/")]
		m.mu.RUnlock()
		if failing {
			writeJSON(w, status, map[string]string{"detail": "injected failure"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *MockBackend) delay() time.Duration {
	if m.latency <= 0 {
		return 0
	}
	if !m.jitter {
		return m.latency
	}
	return m.latency + rand.N(m.latency)
}

// Seed загружает демо-портфель и алерты.
func (m *MockBackend) Seed(now time.Time) {
	type seed struct {
		name     string
		industry domain.Industry
		stage    string
		arr      float64
		burn     float64
		runway   int
		risk     int
		staff    int
	}
	seeds := []seed{
		{"Quantum Dynamics Ltd", domain.IndustryAI, "Series B", 5200000, 280000, 18, 35, 45},
		{"Velocity Cloud Inc", domain.IndustrySaaS, "Series A", 2800000, 180000, 14, 42, 32},
		{"PayFlow Secure", domain.IndustryFinTech, "Seed", 980000, 95000, 10, 68, 18},
		{"HealthBridge Pro", domain.IndustryHealthcare, "Series B", 6500000, 320000, 24, 22, 68},
		{"RetailVision360", domain.IndustryRetail, "Seed", 650000, 125000, 5, 85, 12},
		{"EcoSmart Energy", domain.IndustryCleanTech, "Series C", 14200000, 450000, 32, 18, 95},
		{"LearnHub Platform", domain.IndustryEdTech, "Series A", 3100000, 215000, 15, 48, 38},
		{"CyberGuard Elite", domain.IndustrySecurity, "Series B", 8900000, 380000, 26, 25, 72},
	}
	for _, s := range seeds {
		m.AddCompany(domain.CompanyCreate{
			Name: s.name, Industry: s.industry, Stage: s.stage,
			CurrentARR: s.arr, MonthlyBurnRate: s.burn, RunwayMonths: s.runway,
			RiskScore: s.risk, EmployeeCount: s.staff, IsActive: true,
		}, now)
	}

	m.AddAlert(5, domain.SeverityCritical, "Critical: Runway Below 6 Months",
		"RetailVision360 has only 5 months of runway remaining at current burn rate.", now.Add(-6*time.Hour))
	m.AddAlert(3, domain.SeverityHigh, "High Burn Rate Detected",
		"Burn rate of $95K/month is high relative to $980K ARR.", now.Add(-5*time.Hour))
	m.AddAlert(5, domain.SeverityCritical, "Negative Unit Economics Alert",
		"Customer acquisition cost exceeding lifetime value.", now.Add(-4*time.Hour))
	m.AddAlert(3, domain.SeverityHigh, "Market Competition Intensifying",
		"3 new competitors raised funding in FinTech space.", now.Add(-3*time.Hour))
	m.AddAlert(7, domain.SeverityMedium, "Churn Rate Increasing",
		"Customer churn up 12% QoQ.", now.Add(-2*time.Hour))
	m.AddAlert(6, domain.SeverityLow, "Strong Performance - Expansion Opportunity",
		"ARR growing 40% YoY with healthy margins.", now.Add(-1*time.Hour))
}

// AddCompany добавляет запись так же, как это сделал бы POST /api/companies.
func (m *MockBackend) AddCompany(in domain.CompanyCreate, now time.Time) domain.Company {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertCompany(in, now)
}

func (m *MockBackend) insertCompany(in domain.CompanyCreate, now time.Time) domain.Company {
	arr, burn := in.CurrentARR, in.MonthlyBurnRate
	runway, staff, risk := in.RunwayMonths, in.EmployeeCount, in.RiskScore
	c := domain.Company{
		ID:              m.nextID,
		Name:            in.Name,
		Industry:        in.Industry,
		Stage:           in.Stage,
		CurrentARR:      &arr,
		MonthlyBurnRate: &burn,
		RunwayMonths:    &runway,
		EmployeeCount:   &staff,
		RiskScore:       &risk,
		IsActive:        in.IsActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if in.Description != "" {
		c.Description = &in.Description
	}
	if in.Website != "" {
		c.Website = &in.Website
	}
	m.nextID++
	m.companies = append(m.companies, c)
	return c
}

// AddAlert регистрирует нерешенный алерт для компании.
func (m *MockBackend) AddAlert(companyID int, severity domain.Severity, title, description string, at time.Time) domain.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertAlert(companyID, domain.AlertTypeRisk, severity, title, description, at)
}

func (m *MockBackend) insertAlert(companyID int, typ domain.AlertType, severity domain.Severity, title, description string, at time.Time) domain.Alert {
	name := ""
	if c := m.findCompany(companyID); c != nil {
		name = c.Name
	}
	a := domain.Alert{
		ID:          m.nextAlert,
		CompanyID:   companyID,
		CompanyName: name,
		AlertType:   typ,
		Severity:    severity,
		Title:       title,
		Description: description,
		CreatedAt:   at,
	}
	m.nextAlert++
	m.alerts = append(m.alerts, a)
	return a
}

// Companies возвращает копию всех записей, включая неактивные.
func (m *MockBackend) Companies() []domain.Company {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.companies)
}

func (m *MockBackend) findCompany(id int) *domain.Company {
	for i := range m.companies {
		if m.companies[i].ID == id {
			return &m.companies[i]
		}
	}
	return nil
}

func (m *MockBackend) findAlert(id int) *domain.Alert {
	for i := range m.alerts {
		if m.alerts[i].ID == id {
			return &m.alerts[i]
		}
	}
	return nil
}

func (m *MockBackend) listCompanies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skip, _ := strconv.Atoi(q.Get("skip"))
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 100
	}

	m.mu.RLock()
	out := make([]domain.Company, 0, len(m.companies))
	for _, c := range m.companies {
		if !c.IsActive {
			continue
		}
		if ind := q.Get("industry"); ind != "" && string(c.Industry) != ind {
			continue
		}
		if stage := q.Get("stage"); stage != "" && c.Stage != stage {
			continue
		}
		out = append(out, c)
	}
	m.mu.RUnlock()

	if skip > len(out) {
		skip = len(out)
	}
	out = out[skip:]
	if len(out) > limit {
		out = out[:limit]
	}
	writeJSON(w, http.StatusOK, out)
}

func (m *MockBackend) createCompany(w http.ResponseWriter, r *http.Request) {
	var in domain.CompanyCreate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || strings.TrimSpace(in.Name) == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "name is required"})
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.companies {
		if c.Name == in.Name {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"detail": fmt.Sprintf("Company with name '%s' already exists", in.Name),
			})
			return
		}
	}
	writeJSON(w, http.StatusCreated, m.insertCompany(in, time.Now().UTC()))
}

func (m *MockBackend) withCompany(w http.ResponseWriter, r *http.Request, fn func(c *domain.Company)) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid company id"})
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.findCompany(id)
	if c == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"detail": fmt.Sprintf("Company with id %d not found", id),
		})
		return
	}
	fn(c)
}

func (m *MockBackend) getCompany(w http.ResponseWriter, r *http.Request) {
	m.withCompany(w, r, func(c *domain.Company) {
		writeJSON(w, http.StatusOK, c)
	})
}

func (m *MockBackend) updateCompany(w http.ResponseWriter, r *http.Request) {
	var patch domain.CompanyUpdate
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid body"})
		return
	}
	m.withCompany(w, r, func(c *domain.Company) {
		if patch.Name != nil {
			c.Name = *patch.Name
		}
		if patch.Description != nil {
			c.Description = patch.Description
		}
		if patch.Website != nil {
			c.Website = patch.Website
		}
		if patch.CurrentARR != nil {
			c.CurrentARR = patch.CurrentARR
		}
		if patch.MonthlyBurnRate != nil {
			c.MonthlyBurnRate = patch.MonthlyBurnRate
		}
		if patch.RunwayMonths != nil {
			c.RunwayMonths = patch.RunwayMonths
		}
		if patch.EmployeeCount != nil {
			c.EmployeeCount = patch.EmployeeCount
		}
		c.UpdatedAt = time.Now().UTC()
		writeJSON(w, http.StatusOK, c)
	})
}

func (m *MockBackend) deleteCompany(w http.ResponseWriter, r *http.Request) {
	m.withCompany(w, r, func(c *domain.Company) {
		c.IsActive = false
		c.UpdatedAt = time.Now().UTC()
		w.WriteHeader(http.StatusNoContent)
	})
}

func (m *MockBackend) companyNews(w http.ResponseWriter, r *http.Request) {
	m.withCompany(w, r, func(c *domain.Company) {
		writeJSON(w, http.StatusOK, domain.CompanyNews{
			CompanyID:   c.ID,
			CompanyName: c.Name,
			Articles:    []domain.NewsArticle{},
		})
	})
}

func (m *MockBackend) companyInsights(w http.ResponseWriter, r *http.Request) {
	m.withCompany(w, r, func(c *domain.Company) {
		writeJSON(w, http.StatusOK, domain.CompanyInsights{
			CompanyID:        c.ID,
			CompanyName:      c.Name,
			ExecutiveSummary: map[string]any{"summary": c.Name + " is tracking plan.", "model_used": "demo"},
		})
	})
}

func (m *MockBackend) listAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	unresolvedOnly := q.Get("unresolved_only") != "false"
	unreadOnly := q.Get("unread_only") == "true"
	companyID, _ := strconv.Atoi(q.Get("company_id"))
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	m.mu.RLock()
	out := make([]domain.Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		switch {
		case unresolvedOnly && a.IsResolved,
			unreadOnly && a.IsRead,
			companyID > 0 && a.CompanyID != companyID,
			q.Get("severity") != "" && string(a.Severity) != q.Get("severity"),
			q.Get("alert_type") != "" && string(a.AlertType) != q.Get("alert_type"):
			continue
		}
		out = append(out, a)
	}
	m.mu.RUnlock()

	// Новые первыми
	slices.SortStableFunc(out, func(a, b domain.Alert) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	writeJSON(w, http.StatusOK, out)
}

func (m *MockBackend) alertStats(w http.ResponseWriter, _ *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := domain.AlertStats{BySeverity: map[string]int{
		string(domain.SeverityCritical): 0,
		string(domain.SeverityHigh):     0,
		string(domain.SeverityMedium):   0,
		string(domain.SeverityLow):      0,
	}}
	for _, a := range m.alerts {
		if !a.IsRead {
			stats.Unread++
		}
		if a.IsResolved {
			continue
		}
		stats.TotalUnresolved++
		stats.BySeverity[string(a.Severity)]++
	}
	stats.Critical = stats.BySeverity[string(domain.SeverityCritical)]
	stats.High = stats.BySeverity[string(domain.SeverityHigh)]
	writeJSON(w, http.StatusOK, stats)
}

func (m *MockBackend) withAlert(w http.ResponseWriter, r *http.Request, fn func(a *domain.Alert)) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid alert id"})
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.findAlert(id)
	if a == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Alert not found"})
		return
	}
	fn(a)
}

func (m *MockBackend) getAlert(w http.ResponseWriter, r *http.Request) {
	m.withAlert(w, r, func(a *domain.Alert) {
		writeJSON(w, http.StatusOK, a)
	})
}

func (m *MockBackend) markRead(w http.ResponseWriter, r *http.Request) {
	m.withAlert(w, r, func(a *domain.Alert) {
		a.IsRead = true
		writeJSON(w, http.StatusOK, domain.AlertAck{Message: "Alert marked as read", AlertID: a.ID})
	})
}

func (m *MockBackend) resolve(w http.ResponseWriter, r *http.Request) {
	m.withAlert(w, r, func(a *domain.Alert) {
		a.IsResolved = true
		writeJSON(w, http.StatusOK, domain.AlertAck{Message: "Alert resolved", AlertID: a.ID})
	})
}

// riskScore считает упрощенную эвристику вместо LLM. Короткий runway и высокий burn повышают риск.
func (m *MockBackend) riskScore(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.URL.Query().Get("company_id"))
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "company_id is required"})
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.findCompany(id)
	if c == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Company not found"})
		return
	}

	score := 50
	runway := 0
	if c.RunwayMonths != nil {
		runway = *c.RunwayMonths
	}
	switch {
	case runway < 6:
		score += 30
	case runway < 12:
		score += 15
	case runway >= 24:
		score -= 20
	}
	if c.BurnRate()*12 > c.ARR() {
		score += 10
	}
	score = max(0, min(100, score))
	c.RiskScore = &score
	c.UpdatedAt = time.Now().UTC()

	if score >= risk.WatchThreshold {
		severity := domain.SeverityHigh
		if score >= 90 {
			severity = domain.SeverityCritical
		}
		m.insertAlert(c.ID, domain.AlertTypeRisk, severity,
			fmt.Sprintf("High Risk Score Detected: %d", score),
			"AI analysis indicates elevated risk for "+c.Name, time.Now().UTC())
	}

	writeJSON(w, http.StatusOK, domain.RiskAssessment{
		CompanyID:       c.ID,
		RiskScore:       score,
		RiskLevel:       string(risk.LevelOf(score)),
		Factors:         []string{"Financial runway", "Burn multiple"},
		Recommendations: []string{"Review burn rate"},
		ModelUsed:       "demo-heuristic",
	})
}

func (m *MockBackend) summarize(w http.ResponseWriter, r *http.Request) {
	var req domain.SummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid body"})
		return
	}
	m.mu.RLock()
	c := m.findCompany(req.CompanyID)
	m.mu.RUnlock()
	if c == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Company not found"})
		return
	}
	writeJSON(w, http.StatusOK, domain.Summary{
		CompanyID:   c.ID,
		CompanyName: c.Name,
		Summary:     c.Name + " is operating within plan.",
		ModelUsed:   "demo",
		Confidence:  0.5,
	})
}

func (m *MockBackend) competitive(w http.ResponseWriter, r *http.Request) {
	m.withCompany(w, r, func(c *domain.Company) {
		writeJSON(w, http.StatusOK, domain.CompetitiveAnalysis{
			CompanyID:   c.ID,
			CompanyName: c.Name,
			Analysis:    "No competitor activity in demo mode.",
			ModelUsed:   "demo",
		})
	})
}

func (m *MockBackend) batchAnalyze(w http.ResponseWriter, _ *http.Request) {
	m.mu.RLock()
	active := 0
	for _, c := range m.companies {
		if c.IsActive {
			active++
		}
	}
	m.mu.RUnlock()
	writeJSON(w, http.StatusOK, domain.BatchJob{
		Message:              "Batch analysis started",
		TaskID:               fmt.Sprintf("batch-%d-companies", active),
		CompaniesCount:       active,
		EstimatedTimeMinutes: active * 2,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

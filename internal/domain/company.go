package domain

import "time"

// Company: портфельная компания в том виде, в котором её отдает /api/companies.
// Числовые метрики nullable на сервере, поэтому приходят указателями.
type Company struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	Description *string  `json:"description,omitempty"`
	Website     *string  `json:"website,omitempty"`
	Industry    Industry `json:"industry"`
	Stage       string   `json:"stage"` // Seed, Series A, B, C...

	CurrentARR      *float64 `json:"current_arr"`       // Annual Recurring Revenue
	MonthlyBurnRate *float64 `json:"monthly_burn_rate"` // Сколько сжигаем в месяц
	RunwayMonths    *int     `json:"runway_months"`
	EmployeeCount   *int     `json:"employee_count"`

	// Риск и здоровье 0..100. Запись без risk_score не должна ронять агрегацию.
	RiskScore   *int `json:"risk_score"`
	HealthScore *int `json:"health_score,omitempty"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Risk возвращает risk_score, отсутствующее значение считается нулём.
func (c Company) Risk() int {
	if c.RiskScore == nil {
		return 0
	}
	return *c.RiskScore
}

// ARR возвращает current_arr, отсутствующее значение считается нулём.
func (c Company) ARR() float64 {
	if c.CurrentARR == nil {
		return 0
	}
	return *c.CurrentARR
}

func (c Company) BurnRate() float64 {
	if c.MonthlyBurnRate == nil {
		return 0
	}
	return *c.MonthlyBurnRate
}

// CompanyCreate: тело POST /api/companies после нормализации черновика.
type CompanyCreate struct {
	Name            string   `json:"name"`
	Industry        Industry `json:"industry,omitempty"`
	Stage           string   `json:"stage,omitempty"`
	Description     string   `json:"description,omitempty"`
	Website         string   `json:"website,omitempty"`
	CurrentARR      float64  `json:"current_arr"`
	MonthlyBurnRate float64  `json:"monthly_burn_rate"`
	RunwayMonths    int      `json:"runway_months"`
	EmployeeCount   int      `json:"employee_count"`
	RiskScore       int      `json:"risk_score"`
	IsActive        bool     `json:"is_active"`
}

// CompanyUpdate: частичное обновление, отправляются только заданные поля.
type CompanyUpdate struct {
	Name            *string  `json:"name,omitempty"`
	Description     *string  `json:"description,omitempty"`
	Website         *string  `json:"website,omitempty"`
	CurrentARR      *float64 `json:"current_arr,omitempty"`
	MonthlyBurnRate *float64 `json:"monthly_burn_rate,omitempty"`
	RunwayMonths    *int     `json:"runway_months,omitempty"`
	EmployeeCount   *int     `json:"employee_count,omitempty"`
}

// CompanyQuery: параметры фильтрации списка на стороне сервера.
type CompanyQuery struct {
	Skip     int
	Limit    int
	Industry Industry
	Stage    string
}

type NewsArticle struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}

type CompanyNews struct {
	CompanyID   int           `json:"company_id"`
	CompanyName string        `json:"company_name"`
	NewsCount   int           `json:"news_count"`
	Articles    []NewsArticle `json:"articles"`
}

type CompanyInsights struct {
	CompanyID        int            `json:"company_id"`
	CompanyName      string         `json:"company_name"`
	ExecutiveSummary map[string]any `json:"executive_summary"`
	RecentNewsCount  int            `json:"recent_news_count"`
}

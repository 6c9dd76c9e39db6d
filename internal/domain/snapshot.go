package domain

import "time"

// PortfolioSnapshot: производные метрики портфеля. Пересчитывается при каждом
// изменении состояния и никогда не кэшируется между загрузками.
type PortfolioSnapshot struct {
	TotalCompanies   int     `json:"total_companies"`
	ActiveCompanies  int     `json:"active_companies"`
	AverageRiskScore int     `json:"average_risk_score"`
	TotalAlerts      int     `json:"total_alerts"`    // Нерешенные алерты
	CriticalAlerts   int     `json:"critical_alerts"` // Из них critical
	TotalARR         float64 `json:"total_arr"`
	TotalMonthlyBurn float64 `json:"total_monthly_burn"`
	RiskOutlook      string  `json:"risk_outlook"` // "Low Risk" или "Monitor"
}

// Phase описывает цикл обновления: Idle -> Loading -> {Ready, Failed}.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseFailed  Phase = "failed"
)

type Connectivity string

const (
	ConnectivityChecking     Connectivity = "checking"
	ConnectivityConnected    Connectivity = "connected"
	ConnectivityDisconnected Connectivity = "disconnected"
)

// ViewState: единственная авторитетная копия данных дашборда.
type ViewState struct {
	Companies       []Company    `json:"companies"` // Порядок сервера
	Alerts          []Alert      `json:"alerts"`    // Новые первыми, как вернул сервер
	AlertStats      AlertStats   `json:"alert_stats"`
	Loading         bool         `json:"loading"`
	Error           string       `json:"error,omitempty"`
	Phase           Phase        `json:"phase"`
	SortKey         SortKey      `json:"sort_key"`
	FilterIndustry  Industry     `json:"filter_industry"`
	Connectivity    Connectivity `json:"connectivity"`
	LastRefreshedAt time.Time    `json:"last_refreshed_at,omitzero"`
}

// CompanyRow: строка отображаемого списка.
type CompanyRow struct {
	Company
	RiskLevel string `json:"risk_level"`
}

package domain

import "time"

// Severity упорядочена: low < medium < high < critical.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank возвращает порядковый вес уровня, неизвестные значения: 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

type AlertType string

const (
	AlertTypeRisk        AlertType = "risk"
	AlertTypeOpportunity AlertType = "opportunity"
	AlertTypeAnomaly     AlertType = "anomaly"
	AlertTypeNews        AlertType = "news"
	AlertTypeFinancial   AlertType = "financial"
	AlertTypeCompliance  AlertType = "compliance"
)

// Alert создается на сервере, клиент может только пометить прочитанным или закрыть.
type Alert struct {
	ID          int       `json:"id"`
	CompanyID   int       `json:"company_id"`
	CompanyName string    `json:"company_name"`
	AlertType   AlertType `json:"alert_type"`
	Severity    Severity  `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AISummary   *string   `json:"ai_summary,omitempty"`
	IsRead      bool      `json:"is_read"`
	IsResolved  bool      `json:"is_resolved"`
	CreatedAt   time.Time `json:"created_at"`
}

// AlertQuery: параметры GET /api/alerts. Нулевые значения не отправляются.
type AlertQuery struct {
	UnresolvedOnly bool
	UnreadOnly     bool
	Limit          int
	Severity       Severity
	AlertType      AlertType
	CompanyID      int
}

// AlertStats: сводка GET /api/alerts/stats/summary. Отсутствующие поля читаются как 0.
type AlertStats struct {
	TotalUnresolved int            `json:"total_unresolved"`
	Critical        int            `json:"critical"`
	High            int            `json:"high"`
	Unread          int            `json:"unread"`
	BySeverity      map[string]int `json:"by_severity,omitempty"`
}

// AlertAck: ответ на read/resolve.
type AlertAck struct {
	Message string `json:"message"`
	AlertID int    `json:"alert_id"`
}

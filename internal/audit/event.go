package audit

import "time"

// Действия, которые попадают в журнал.
const (
	ActionRefresh         = "dashboard.refresh"
	ActionCreateCompany   = "company.create"
	ActionDeleteCompany   = "company.delete"
	ActionRecalculateRisk = "company.recalculate_risk"
	ActionMarkAlertRead   = "alert.mark_read"
	ActionResolveAlert    = "alert.resolve"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

type Event struct {
	ID      string         `json:"id"`       // UUID события
	TraceID string         `json:"trace_id"` // Сквозной ID запроса к бэкенду
	Action  string         `json:"action"`   // Что делали
	Subject string         `json:"subject"`  // Над чем: "company:5", "alert:3"
	Details map[string]any `json:"details,omitempty"`

	// Результат
	Status     string    `json:"status"` // ok, failed
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms"`
}

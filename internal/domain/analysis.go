package domain

// RiskAssessment: ответ POST /api/analysis/risk-score.
type RiskAssessment struct {
	CompanyID       int      `json:"company_id"`
	RiskScore       int      `json:"risk_score"`
	RiskLevel       string   `json:"risk_level"`
	Factors         []string `json:"factors"`
	Recommendations []string `json:"recommendations"`
	ModelUsed       string   `json:"model_used"`
}

type SummaryRequest struct {
	CompanyID      int  `json:"company_id"`
	IncludeNews    bool `json:"include_news"`
	IncludeMetrics bool `json:"include_metrics"`
}

type Summary struct {
	CompanyID    int     `json:"company_id"`
	CompanyName  string  `json:"company_name"`
	Summary      string  `json:"summary"`
	ModelUsed    string  `json:"model_used"`
	Confidence   float64 `json:"confidence"`
	NewsAnalyzed int     `json:"news_analyzed"`
}

type CompetitiveAnalysis struct {
	CompanyID              int    `json:"company_id"`
	CompanyName            string `json:"company_name"`
	Analysis               string `json:"analysis"`
	ModelUsed              string `json:"model_used"`
	CompetitorNewsAnalyzed int    `json:"competitor_news_analyzed"`
}

type BatchJob struct {
	Message              string `json:"message"`
	TaskID               string `json:"task_id"`
	CompaniesCount       int    `json:"companies_count"`
	EstimatedTimeMinutes int    `json:"estimated_time_minutes"`
}

// Health: ответ GET /health, нужен только для баннера подключения.
type Health struct {
	Status  string `json:"status"`
	AppName string `json:"app_name,omitempty"`
	Version string `json:"version,omitempty"`
}

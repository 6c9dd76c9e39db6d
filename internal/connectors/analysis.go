package connectors

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/xela07ax/investorlens/internal/domain"
)

const (
	resourceAnalysis = "analysis"
	resourceHealth   = "health"
)

// AnalysisAPI: /api/analysis. Запросы к LLM на сервере, поэтому могут идти долго.
type AnalysisAPI struct {
	c *Client
}

func (a *AnalysisAPI) Summarize(ctx context.Context, companyID int) (*domain.Summary, error) {
	req := domain.SummaryRequest{CompanyID: companyID, IncludeNews: true, IncludeMetrics: true}

	var summary domain.Summary
	if err := a.c.call(ctx, resourceAnalysis, http.MethodPost, "/api/analysis/summarize", nil, req, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// RiskScore пересчитывает риск; сервер сохраняет новое значение в компании.
func (a *AnalysisAPI) RiskScore(ctx context.Context, companyID int) (*domain.RiskAssessment, error) {
	params := url.Values{"company_id": {strconv.Itoa(companyID)}}

	var assessment domain.RiskAssessment
	if err := a.c.call(ctx, resourceAnalysis, http.MethodPost, "/api/analysis/risk-score", params, nil, &assessment); err != nil {
		return nil, err
	}
	return &assessment, nil
}

func (a *AnalysisAPI) CompetitiveAnalysis(ctx context.Context, companyID int) (*domain.CompetitiveAnalysis, error) {
	var analysis domain.CompetitiveAnalysis
	path := "/api/analysis/competitive-analysis/" + strconv.Itoa(companyID)
	if err := a.c.call(ctx, resourceAnalysis, http.MethodPost, path, nil, nil, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

func (a *AnalysisAPI) BatchAnalyze(ctx context.Context) (*domain.BatchJob, error) {
	var job domain.BatchJob
	if err := a.c.call(ctx, resourceAnalysis, http.MethodPost, "/api/analysis/batch-analyze", nil, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Health проверяет доступность бэкенда (баннер подключения).
func (c *Client) Health(ctx context.Context) (*domain.Health, error) {
	var health domain.Health
	if err := c.call(ctx, resourceHealth, http.MethodGet, "/health", nil, nil, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

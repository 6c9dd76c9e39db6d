package connectors

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/xela07ax/investorlens/internal/domain"
)

const resourceAlerts = "alerts"

// AlertsAPI: /api/alerts.
type AlertsAPI struct {
	c *Client
}

// List возвращает алерты, новые первыми.
// unresolved_only всегда передается явно: на сервере он по умолчанию true.
func (a *AlertsAPI) List(ctx context.Context, q domain.AlertQuery) ([]domain.Alert, error) {
	params := url.Values{}
	params.Set("unresolved_only", strconv.FormatBool(q.UnresolvedOnly))
	if q.UnreadOnly {
		params.Set("unread_only", "true")
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Severity != "" {
		params.Set("severity", string(q.Severity))
	}
	if q.AlertType != "" {
		params.Set("alert_type", string(q.AlertType))
	}
	if q.CompanyID > 0 {
		params.Set("company_id", strconv.Itoa(q.CompanyID))
	}

	var alerts []domain.Alert
	if err := a.c.call(ctx, resourceAlerts, http.MethodGet, "/api/alerts", params, nil, &alerts); err != nil {
		return nil, err
	}
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	return alerts, nil
}

func (a *AlertsAPI) Get(ctx context.Context, id int) (*domain.Alert, error) {
	var alert domain.Alert
	if err := a.c.call(ctx, resourceAlerts, http.MethodGet, "/api/alerts/"+strconv.Itoa(id), nil, nil, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

func (a *AlertsAPI) MarkRead(ctx context.Context, id int) (*domain.AlertAck, error) {
	var ack domain.AlertAck
	if err := a.c.call(ctx, resourceAlerts, http.MethodPatch, "/api/alerts/"+strconv.Itoa(id)+"/read", nil, nil, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// Resolve закрывает алерт; resolvedBy может быть пустым.
func (a *AlertsAPI) Resolve(ctx context.Context, id int, resolvedBy string) (*domain.AlertAck, error) {
	body := struct {
		ResolvedBy *string `json:"resolved_by"`
	}{}
	if resolvedBy != "" {
		body.ResolvedBy = &resolvedBy
	}

	var ack domain.AlertAck
	if err := a.c.call(ctx, resourceAlerts, http.MethodPatch, "/api/alerts/"+strconv.Itoa(id)+"/resolve", nil, body, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

func (a *AlertsAPI) Stats(ctx context.Context) (*domain.AlertStats, error) {
	var stats domain.AlertStats
	if err := a.c.call(ctx, resourceAlerts, http.MethodGet, "/api/alerts/stats/summary", nil, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

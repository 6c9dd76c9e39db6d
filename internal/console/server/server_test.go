package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/investorlens/internal/audit"
	"github.com/xela07ax/investorlens/internal/connectors"
	"github.com/xela07ax/investorlens/internal/console/handler"
	"github.com/xela07ax/investorlens/internal/dashboard"
)

type env struct {
	backend *connectors.MockBackend
	console *ConsoleServer
	journal *audit.Journal
	store   *audit.MemoryStorage
}

func newEnv(t *testing.T) *env {
	t.Helper()
	backend := connectors.NewMockBackend(0, false)
	backend.Seed(time.Now().Add(-time.Hour))
	api := httptest.NewServer(backend)
	t.Cleanup(api.Close)

	client, err := connectors.NewClient(connectors.Config{BaseURL: api.URL, Timeout: 2 * time.Second}, nil, nil, nil, zap.NewNop())
	require.NoError(t, err)

	store := audit.NewMemoryStorage(100)
	journal := audit.NewJournal(store, audit.Options{FlushInterval: 10 * time.Millisecond}, zap.NewNop())
	journal.Start()
	t.Cleanup(journal.Stop)

	ctrl := dashboard.NewController(dashboard.BackendFrom(client), dashboard.Options{Journal: journal}, zap.NewNop())
	console := NewConsoleServer(zap.NewNop(), ctrl, []string{"http://localhost:5173"},
		handler.NewDashboardHandler(ctrl, zap.NewNop()),
		handler.NewAuditHandler(journal))

	return &env{backend: backend, console: console, journal: journal, store: store}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.console.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) handler.DashboardView {
	t.Helper()
	var v handler.DashboardView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","backend":"checking"}`, rec.Body.String())
}

func TestDashboard_RefreshSortFilter(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/dashboard/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v := decodeView(t, rec)
	assert.Len(t, v.Companies, 8)
	assert.Equal(t, "RetailVision360", v.Companies[0].Name)
	assert.Equal(t, "Critical", v.Companies[0].RiskLevel)
	assert.Equal(t, 43, v.Snapshot.AverageRiskScore)
	assert.Equal(t, "ready", string(v.State.Phase))

	rec = e.do(t, http.MethodPut, "/api/v1/dashboard/sort", map[string]string{"sort_key": "name"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CyberGuard Elite", decodeView(t, rec).Companies[0].Name)

	// Пустой ключ: следующий по кругу (name -> risk_score)
	rec = e.do(t, http.MethodPut, "/api/v1/dashboard/sort", map[string]string{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "risk_score", string(decodeView(t, rec).State.SortKey))

	rec = e.do(t, http.MethodPut, "/api/v1/dashboard/filter", map[string]string{"industry": "healthcare"})
	require.Equal(t, http.StatusOK, rec.Code)
	v = decodeView(t, rec)
	require.Len(t, v.Companies, 1)
	assert.Equal(t, "HealthBridge Pro", v.Companies[0].Name)
	// Снимок считается по всему портфелю, не по фильтру
	assert.Equal(t, 8, v.Snapshot.TotalCompanies)

	rec = e.do(t, http.MethodPut, "/api/v1/dashboard/filter", map[string]string{"industry": "Mining"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = e.do(t, http.MethodPut, "/api/v1/dashboard/sort", map[string]string{"sort_key": "employees"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboard_RefreshFailure(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/v1/dashboard/refresh", nil).Code)

	e.backend.Fail(http.MethodGet, "/api/companies", http.StatusInternalServerError)
	rec := e.do(t, http.MethodPost, "/api/v1/dashboard/refresh", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var body struct {
		Error string                `json:"error"`
		View  handler.DashboardView `json:"view"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, dashboard.LoadFailedMessage, body.Error)
	assert.Equal(t, dashboard.LoadFailedMessage, body.View.State.Error)
	assert.Len(t, body.View.Companies, 8)
}

func TestCompanies_CreateAndDelete(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/companies", map[string]string{
		"name": "Orbit Analytics", "industry": "AI", "current_arr": "1200000", "risk_score": "not a number",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID        int `json:"id"`
		RiskScore int `json:"risk_score"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, 50, created.RiskScore)

	v := decodeView(t, e.do(t, http.MethodGet, "/api/v1/dashboard", nil))
	assert.Equal(t, 9, v.Snapshot.TotalCompanies)

	rec = e.do(t, http.MethodPost, "/api/v1/companies", map[string]string{"name": "PayFlow Secure"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "already exists")

	rec = e.do(t, http.MethodDelete, "/api/v1/companies/"+jsonInt(created.ID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	v = decodeView(t, e.do(t, http.MethodGet, "/api/v1/dashboard", nil))
	assert.Equal(t, 8, v.Snapshot.TotalCompanies)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodDelete, "/api/v1/companies/abc", nil).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodDelete, "/api/v1/companies/999", nil).Code)
}

func TestCompanies_CreateAcceptsJSONNumbers(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/companies", map[string]any{
		"name": "Nimbus Freight", "industry": "SaaS",
		"current_arr": 1200000, "runway_months": 12, "risk_score": 40, "employee_count": "15",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		RiskScore     int     `json:"risk_score"`
		RunwayMonths  int     `json:"runway_months"`
		EmployeeCount int     `json:"employee_count"`
		CurrentARR    float64 `json:"current_arr"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, 40, created.RiskScore)
	assert.Equal(t, 12, created.RunwayMonths)
	assert.Equal(t, 15, created.EmployeeCount)
	assert.InDelta(t, 1200000.0, created.CurrentARR, 1e-9)
}

func TestAlertsAndRisk(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/alerts/1/resolve", map[string]string{"resolved_by": "analyst"})
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(t, http.MethodPost, "/api/v1/alerts/2/read", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	v := decodeView(t, e.do(t, http.MethodGet, "/api/v1/dashboard", nil))
	assert.Equal(t, 5, v.Snapshot.TotalAlerts)
	assert.Equal(t, 1, v.Snapshot.CriticalAlerts)

	rec = e.do(t, http.MethodPost, "/api/v1/companies/5/risk", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"risk_score":90`)

	// Бэкенд недоступен
	e.backend.Fail(http.MethodPatch, "/api/alerts/3/read", http.StatusServiceUnavailable)
	assert.Equal(t, http.StatusBadGateway, e.do(t, http.MethodPost, "/api/v1/alerts/3/read", nil).Code)
}

func TestJournal(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/v1/dashboard/refresh", nil).Code)
	require.Equal(t, http.StatusNoContent, e.do(t, http.MethodPost, "/api/v1/alerts/4/read", nil).Code)

	assert.Eventually(t, func() bool {
		events, _ := e.store.Recent(context.Background(), 10)
		return len(events) == 3
	}, time.Second, 10*time.Millisecond)

	rec := e.do(t, http.MethodGet, "/api/v1/journal?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events []audit.Event
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&events))
	require.Len(t, events, 2)
	assert.Equal(t, audit.ActionRefresh, events[0].Action)
	assert.Equal(t, audit.ActionMarkAlertRead, events[1].Action)
	assert.Equal(t, "alert:4", events[1].Subject)

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/v1/journal?limit=0", nil).Code)
}

func TestCORS(t *testing.T) {
	e := newEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/dashboard", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	e.console.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	e.console.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func jsonInt(n int) string {
	raw, _ := json.Marshal(n)
	return string(raw)
}

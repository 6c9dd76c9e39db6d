package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/xela07ax/investorlens/internal/connectors"
	"github.com/xela07ax/investorlens/internal/dashboard"
	"github.com/xela07ax/investorlens/internal/domain"
)

// DashboardService Описываем, что нам нужно от контроллера дашборда
type DashboardService interface {
	State() domain.ViewState
	Snapshot() domain.PortfolioSnapshot
	DisplayList() []domain.CompanyRow
	Refresh(ctx context.Context) error
	SetSortKey(value string) error
	CycleSort() domain.SortKey
	SetFilterIndustry(value string) error
	CreateCompany(ctx context.Context, draft domain.CompanyDraft) (*domain.Company, error)
	DeleteCompany(ctx context.Context, id int) error
	RecalculateRisk(ctx context.Context, companyID int) (*domain.RiskAssessment, error)
	MarkAlertRead(ctx context.Context, id int) error
	ResolveAlert(ctx context.Context, id int, resolvedBy string) error
}

type DashboardHandler struct {
	service DashboardService
	logger  *zap.Logger
}

func NewDashboardHandler(s DashboardService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{service: s, logger: logger.Named("dashboard-handler")}
}

// DashboardView: все, что нужно экрану за один запрос.
type DashboardView struct {
	State     domain.ViewState         `json:"state"`
	Snapshot  domain.PortfolioSnapshot `json:"snapshot"`
	Companies []domain.CompanyRow      `json:"companies"` // Отфильтровано и отсортировано
}

func (h *DashboardHandler) view() DashboardView {
	return DashboardView{
		State:     h.service.State(),
		Snapshot:  h.service.Snapshot(),
		Companies: h.service.DisplayList(),
	}
}

// Get GET /api/v1/dashboard
func (h *DashboardHandler) Get(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.view())
}

// Refresh POST /api/v1/dashboard/refresh
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Refresh(r.Context()); err != nil {
		// Подробности уже в логе контроллера, наружу только сообщение для пользователя
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error": dashboard.LoadFailedMessage,
			"view":  h.view(),
		})
		return
	}
	writeJSON(w, http.StatusOK, h.view())
}

// SetSort PUT /api/v1/dashboard/sort {"sort_key": "..."}; пустой ключ: следующий по кругу.
func (h *DashboardHandler) SetSort(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SortKey string `json:"sort_key"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.SortKey == "" {
		h.service.CycleSort()
	} else if err := h.service.SetSortKey(req.SortKey); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.view())
}

// SetFilter PUT /api/v1/dashboard/filter {"industry": "FinTech"}
func (h *DashboardHandler) SetFilter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Industry string `json:"industry"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.service.SetFilterIndustry(req.Industry); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.view())
}

// CreateCompany POST /api/v1/companies: тело формы "Add Company", числа строками.
func (h *DashboardHandler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var draft domain.CompanyDraft
	if !decode(w, r, &draft) {
		return
	}
	created, err := h.service.CreateCompany(r.Context(), draft)
	if err != nil {
		h.transportError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// DeleteCompany DELETE /api/v1/companies/{id}
func (h *DashboardHandler) DeleteCompany(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteCompany(r.Context(), id); err != nil {
		h.transportError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecalculateRisk POST /api/v1/companies/{id}/risk
func (h *DashboardHandler) RecalculateRisk(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	assessment, err := h.service.RecalculateRisk(r.Context(), id)
	if err != nil {
		h.transportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assessment)
}

// MarkAlertRead POST /api/v1/alerts/{id}/read
func (h *DashboardHandler) MarkAlertRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.MarkAlertRead(r.Context(), id); err != nil {
		h.transportError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResolveAlert POST /api/v1/alerts/{id}/resolve {"resolved_by": "..."}
func (h *DashboardHandler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		ResolvedBy string `json:"resolved_by"`
	}
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	if err := h.service.ResolveAlert(r.Context(), id, req.ResolvedBy); err != nil {
		h.transportError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// transportError переводит отказ бэкенда в ответ консоли.
// 4xx бэкенда отдаются как есть, остальное: шлюзовые ошибки.
func (h *DashboardHandler) transportError(w http.ResponseWriter, err error) {
	var tErr *connectors.TransportError
	if !errors.As(err, &tErr) {
		h.logger.Error("unexpected dashboard error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	switch tErr.Kind {
	case connectors.KindServer:
		if tErr.StatusCode >= 400 && tErr.StatusCode < 500 {
			writeJSON(w, tErr.StatusCode, map[string]string{"error": "backend rejected request", "detail": tErr.Body})
			return
		}
		writeError(w, http.StatusBadGateway, "backend error")
	case connectors.KindNetwork:
		writeError(w, http.StatusGatewayTimeout, "backend unreachable")
	default:
		writeError(w, http.StatusServiceUnavailable, "request not sent to backend")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

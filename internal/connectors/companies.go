package connectors

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/xela07ax/investorlens/internal/domain"
)

const resourceCompanies = "companies"

// CompaniesAPI: /api/companies.
type CompaniesAPI struct {
	c *Client
}

func companyPath(id int, suffix ...string) string {
	p := "/api/companies/" + strconv.Itoa(id)
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}

// List возвращает компании в порядке сервера. Нулевой query: без фильтров.
func (a *CompaniesAPI) List(ctx context.Context, q domain.CompanyQuery) ([]domain.Company, error) {
	params := url.Values{}
	if q.Skip > 0 {
		params.Set("skip", strconv.Itoa(q.Skip))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Industry != "" && q.Industry != domain.IndustryAll {
		params.Set("industry", string(q.Industry))
	}
	if q.Stage != "" {
		params.Set("stage", q.Stage)
	}

	var companies []domain.Company
	if err := a.c.call(ctx, resourceCompanies, http.MethodGet, "/api/companies", params, nil, &companies); err != nil {
		return nil, err
	}
	if companies == nil {
		companies = []domain.Company{}
	}
	return companies, nil
}

func (a *CompaniesAPI) Get(ctx context.Context, id int) (*domain.Company, error) {
	var company domain.Company
	if err := a.c.call(ctx, resourceCompanies, http.MethodGet, companyPath(id), nil, nil, &company); err != nil {
		return nil, err
	}
	return &company, nil
}

func (a *CompaniesAPI) Create(ctx context.Context, in domain.CompanyCreate) (*domain.Company, error) {
	var company domain.Company
	if err := a.c.call(ctx, resourceCompanies, http.MethodPost, "/api/companies", nil, in, &company); err != nil {
		return nil, err
	}
	return &company, nil
}

func (a *CompaniesAPI) Update(ctx context.Context, id int, patch domain.CompanyUpdate) (*domain.Company, error) {
	var company domain.Company
	if err := a.c.call(ctx, resourceCompanies, http.MethodPut, companyPath(id), nil, patch, &company); err != nil {
		return nil, err
	}
	return &company, nil
}

// Delete делает мягкое удаление, сервер помечает компанию неактивной.
func (a *CompaniesAPI) Delete(ctx context.Context, id int) error {
	return a.c.call(ctx, resourceCompanies, http.MethodDelete, companyPath(id), nil, nil, nil)
}

// News возвращает новости за daysBack дней (0: серверное значение по умолчанию 7).
func (a *CompaniesAPI) News(ctx context.Context, id, daysBack int) (*domain.CompanyNews, error) {
	if daysBack <= 0 {
		daysBack = 7
	}
	params := url.Values{"days_back": {strconv.Itoa(daysBack)}}

	var news domain.CompanyNews
	if err := a.c.call(ctx, resourceCompanies, http.MethodGet, companyPath(id, "news"), params, nil, &news); err != nil {
		return nil, err
	}
	return &news, nil
}

func (a *CompaniesAPI) Insights(ctx context.Context, id int) (*domain.CompanyInsights, error) {
	var insights domain.CompanyInsights
	if err := a.c.call(ctx, resourceCompanies, http.MethodGet, companyPath(id, "insights"), nil, nil, &insights); err != nil {
		return nil, err
	}
	return &insights, nil
}

package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompanyDraftNormalize(t *testing.T) {
	draft := CompanyDraft{
		Name:            "  Quantum Dynamics Ltd ",
		Industry:        "ai",
		Stage:           "Series B",
		CurrentARR:      "5200000.50",
		MonthlyBurnRate: "280000",
		RunwayMonths:    "18",
		EmployeeCount:   "45",
		RiskScore:       "35",
	}

	got, issues := draft.Normalize()

	assert.Empty(t, issues)
	assert.Equal(t, "Quantum Dynamics Ltd", got.Name)
	assert.Equal(t, IndustryAI, got.Industry)
	assert.InDelta(t, 5200000.50, got.CurrentARR, 1e-9)
	assert.InDelta(t, 280000.0, got.MonthlyBurnRate, 1e-9)
	assert.Equal(t, 18, got.RunwayMonths)
	assert.Equal(t, 45, got.EmployeeCount)
	assert.Equal(t, 35, got.RiskScore)
	assert.True(t, got.IsActive)
}

func TestCompanyDraftNormalizeDefaults(t *testing.T) {
	draft := CompanyDraft{
		Name:         "PayFlow Secure",
		CurrentARR:   "abc",
		RiskScore:    "",
		RunwayMonths: "12",
	}

	got, issues := draft.Normalize()

	assert.Equal(t, 0.0, got.CurrentARR)
	assert.Equal(t, 50, got.RiskScore)
	assert.Equal(t, 12, got.RunwayMonths)
	assert.Equal(t, 0, got.EmployeeCount)

	fields := make(map[string]string)
	for _, issue := range issues {
		fields[issue.Field] = issue.Applied
	}
	assert.Equal(t, "0", fields["current_arr"])
	assert.Equal(t, "50", fields["risk_score"])
	assert.NotContains(t, fields, "runway_months")
}

func TestCompanyDraftNormalizeClamps(t *testing.T) {
	draft := CompanyDraft{
		Name:            "Clamp",
		CurrentARR:      "-10",
		MonthlyBurnRate: "1e3",
		RunwayMonths:    "7.9",
		EmployeeCount:   "-3",
		RiskScore:       "140",
	}

	got, issues := draft.Normalize()

	assert.Equal(t, 0.0, got.CurrentARR)
	assert.InDelta(t, 1000.0, got.MonthlyBurnRate, 1e-9)
	assert.Equal(t, 7, got.RunwayMonths)
	assert.Equal(t, 0, got.EmployeeCount)
	assert.Equal(t, 100, got.RiskScore)
	assert.Len(t, issues, 3)
}

func TestCompanyDraftKeepsUnknownIndustry(t *testing.T) {
	got, _ := CompanyDraft{Name: "Bio", Industry: "Biotech", RiskScore: "10"}.Normalize()
	assert.Equal(t, Industry("Biotech"), got.Industry)
}

func TestCompanyDraftNormalizeOutOfRange(t *testing.T) {
	tests := []struct {
		name      string
		draft     CompanyDraft
		runway    int
		employees int
		risk      int
		fields    []string
	}{
		{
			name:   "экспонента больше int64",
			draft:  CompanyDraft{RunwayMonths: "1e20", RiskScore: "1e19"},
			runway: maxCount,
			risk:   100,
			fields: []string{"runway_months", "risk_score"},
		},
		{
			name:      "сотрудников больше int32",
			draft:     CompanyDraft{EmployeeCount: "3000000000", RiskScore: "100.4"},
			employees: maxCount,
			risk:      100,
			fields:    []string{"employee_count", "risk_score"},
		},
		{
			name:   "граница допустима",
			draft:  CompanyDraft{RunwayMonths: "2147483647", RiskScore: "100"},
			runway: maxCount,
			risk:   100,
		},
		{
			name:   "отрицательная дробь",
			draft:  CompanyDraft{RunwayMonths: "-0.5", RiskScore: "-1e30"},
			fields: []string{"runway_months", "risk_score"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, issues := tt.draft.Normalize()
			assert.Equal(t, tt.runway, got.RunwayMonths)
			assert.Equal(t, tt.employees, got.EmployeeCount)
			assert.Equal(t, tt.risk, got.RiskScore)

			// Пустые поля получают значения по умолчанию, здесь интересны только границы
			var fields []string
			for _, issue := range issues {
				if issue.Value != "" {
					fields = append(fields, issue.Field)
				}
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestCompanyDraftFilterSentinelIsNotAnIndustry(t *testing.T) {
	for _, raw := range []string{"all", "ALL", " All "} {
		got, issues := CompanyDraft{Name: "Acme", Industry: raw, RiskScore: "10"}.Normalize()
		assert.Empty(t, got.Industry, raw)

		var fields []string
		for _, issue := range issues {
			fields = append(fields, issue.Field)
		}
		assert.Contains(t, fields, "industry", raw)
	}

	got, _ := CompanyDraft{Name: "Acme", Industry: "fintech"}.Normalize()
	assert.Equal(t, IndustryFinTech, got.Industry)
}

func TestCompanyDraftDecodesNumbersAndStrings(t *testing.T) {
	var draft CompanyDraft
	err := json.Unmarshal([]byte(`{
		"name": "Orbit",
		"current_arr": 1200000,
		"monthly_burn_rate": "85000.5",
		"runway_months": 12,
		"employee_count": null,
		"risk_score": 40
	}`), &draft)
	require.NoError(t, err)
	assert.Equal(t, FormValue("1200000"), draft.CurrentARR)
	assert.Equal(t, FormValue(""), draft.EmployeeCount)

	got, issues := draft.Normalize()
	assert.InDelta(t, 1200000.0, got.CurrentARR, 1e-9)
	assert.InDelta(t, 85000.5, got.MonthlyBurnRate, 1e-9)
	assert.Equal(t, 12, got.RunwayMonths)
	assert.Equal(t, 40, got.RiskScore)
	require.Len(t, issues, 1)
	assert.Equal(t, "employee_count", issues[0].Field)

	// Нечисловой токен не отклоняет форму, поле получает значение по умолчанию
	require.NoError(t, json.Unmarshal([]byte(`{"name": "Orbit", "risk_score": true}`), &draft))
	got, _ = draft.Normalize()
	assert.Equal(t, DefaultRiskScore, got.RiskScore)
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Field: "current_arr", Value: "abc", Applied: "0"}
	assert.Equal(t, `validation: field current_arr: cannot use "abc", defaulted to 0`, err.Error())
}

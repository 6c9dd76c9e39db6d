package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultRiskScore подставляется, когда risk_score в форме не парсится.
const DefaultRiskScore = 50

// maxCount ограничивает целые поля формы (runway, employees).
const maxCount = math.MaxInt32

// FormValue: сырое значение поля формы. В JSON принимается и строкой, и числом;
// любой другой токен сохраняется как текст и при нормализации получает значение по умолчанию.
type FormValue string

func (v *FormValue) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		*v = ""
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = FormValue(s)
	default:
		*v = FormValue(raw)
	}
	return nil
}

// CompanyDraft: сырые значения формы "Add Company".
type CompanyDraft struct {
	Name            string    `json:"name"`
	Industry        string    `json:"industry"`
	Stage           string    `json:"stage"`
	Description     string    `json:"description"`
	Website         string    `json:"website"`
	CurrentARR      FormValue `json:"current_arr"`
	MonthlyBurnRate FormValue `json:"monthly_burn_rate"`
	RunwayMonths    FormValue `json:"runway_months"`
	EmployeeCount   FormValue `json:"employee_count"`
	RiskScore       FormValue `json:"risk_score"`
}

// ValidationError фиксирует поле, которое не удалось привести к числу.
// Черновик при этом не отклоняется: поле получает значение по умолчанию.
type ValidationError struct {
	Field   string
	Value   string
	Applied string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: field %s: cannot use %q, defaulted to %s", e.Field, e.Value, e.Applied)
}

// Normalize приводит черновик к телу запроса.
// ARR и burn rate: float (по умолчанию 0), runway/employees: int (по умолчанию 0),
// risk_score: int 0..100 (по умолчанию 50).
func (d CompanyDraft) Normalize() (CompanyCreate, []*ValidationError) {
	var issues []*ValidationError
	note := func(err *ValidationError) {
		if err != nil {
			issues = append(issues, err)
		}
	}

	arr, err := parseAmount("current_arr", d.CurrentARR)
	note(err)
	burn, err := parseAmount("monthly_burn_rate", d.MonthlyBurnRate)
	note(err)
	runway, err := parseCount("runway_months", d.RunwayMonths, 0, maxCount)
	note(err)
	employees, err := parseCount("employee_count", d.EmployeeCount, 0, maxCount)
	note(err)
	risk, err := parseCount("risk_score", d.RiskScore, DefaultRiskScore, 100)
	note(err)

	// "all" только фильтр, отраслью компании он быть не может
	industry := Industry(strings.TrimSpace(d.Industry))
	if parsed, perr := ParseIndustry(d.Industry); perr == nil {
		industry = parsed
		if parsed == IndustryAll {
			industry = ""
			if strings.TrimSpace(d.Industry) != "" {
				note(&ValidationError{Field: "industry", Value: d.Industry, Applied: "none"})
			}
		}
	}

	return CompanyCreate{
		Name:            strings.TrimSpace(d.Name),
		Industry:        industry,
		Stage:           strings.TrimSpace(d.Stage),
		Description:     strings.TrimSpace(d.Description),
		Website:         strings.TrimSpace(d.Website),
		CurrentARR:      arr,
		MonthlyBurnRate: burn,
		RunwayMonths:    runway,
		EmployeeCount:   employees,
		RiskScore:       risk,
		IsActive:        true,
	}, issues
}

// parseAmount читает денежное значение. Отрицательные суммы обнуляются.
func parseAmount(field string, raw FormValue) (float64, *ValidationError) {
	v, err := decimal.NewFromString(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, &ValidationError{Field: field, Value: string(raw), Applied: "0"}
	}
	if v.IsNegative() {
		return 0, &ValidationError{Field: field, Value: string(raw), Applied: "0"}
	}
	return v.InexactFloat64(), nil
}

// parseCount читает целое в [0, upper]. Дробная часть отбрасывается ("12.7" -> 12),
// значения вне диапазона прижимаются к границе.
func parseCount(field string, raw FormValue, def, upper int) (int, *ValidationError) {
	v, err := decimal.NewFromString(strings.TrimSpace(string(raw)))
	if err != nil {
		return def, &ValidationError{Field: field, Value: string(raw), Applied: fmt.Sprint(def)}
	}
	// Сравнение до IntPart: int64 молча переполняется на больших экспонентах
	if v.GreaterThan(decimal.NewFromInt(int64(upper))) {
		return upper, &ValidationError{Field: field, Value: string(raw), Applied: fmt.Sprint(upper)}
	}
	if v.IsNegative() {
		return 0, &ValidationError{Field: field, Value: string(raw), Applied: "0"}
	}
	return int(v.IntPart()), nil
}

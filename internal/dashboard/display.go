package dashboard

import (
	"slices"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/xela07ax/investorlens/internal/domain"
	"github.com/xela07ax/investorlens/internal/risk"
)

// Display фильтрует по отрасли ("all": без фильтра) и стабильно сортирует.
// risk_score и current_arr: по убыванию (пустое значение = 0), name: по алфавиту локали.
// Входной срез не изменяется.
func Display(companies []domain.Company, filter domain.Industry, key domain.SortKey, locale language.Tag) []domain.CompanyRow {
	rows := make([]domain.CompanyRow, 0, len(companies))
	for _, c := range companies {
		if filter != domain.IndustryAll && filter != "" && c.Industry != filter {
			continue
		}
		rows = append(rows, domain.CompanyRow{Company: c, RiskLevel: string(risk.LevelOf(c.Risk()))})
	}

	switch key {
	case domain.SortByARR:
		slices.SortStableFunc(rows, func(a, b domain.CompanyRow) int {
			switch {
			case a.ARR() > b.ARR():
				return -1
			case a.ARR() < b.ARR():
				return 1
			}
			return 0
		})
	case domain.SortByName:
		// Collator не потокобезопасен, поэтому свой на каждый вызов
		col := collate.New(locale)
		slices.SortStableFunc(rows, func(a, b domain.CompanyRow) int {
			return col.CompareString(a.Name, b.Name)
		})
	default:
		slices.SortStableFunc(rows, func(a, b domain.CompanyRow) int {
			return b.Risk() - a.Risk()
		})
	}
	return rows
}

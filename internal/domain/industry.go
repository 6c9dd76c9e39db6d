package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownIndustry = errors.New("unknown industry")
	ErrUnknownSortKey  = errors.New("unknown sort key")
)

// Industry: закрытый набор отраслей портфеля.
type Industry string

const (
	IndustryAll        Industry = "all" // Фильтр выключен
	IndustryAI         Industry = "AI"
	IndustrySaaS       Industry = "SaaS"
	IndustryFinTech    Industry = "FinTech"
	IndustryHealthcare Industry = "Healthcare"
	IndustryRetail     Industry = "Retail"
	IndustryCleanTech  Industry = "CleanTech"
	IndustryEdTech     Industry = "EdTech"
	IndustrySecurity   Industry = "Security"
)

// Industries перечисляет отрасли в порядке отображения (без "all").
var Industries = []Industry{
	IndustryAI,
	IndustrySaaS,
	IndustryFinTech,
	IndustryHealthcare,
	IndustryRetail,
	IndustryCleanTech,
	IndustryEdTech,
	IndustrySecurity,
}

// ParseIndustry приводит пользовательский ввод к значению перечисления.
// Регистр не важен: "fintech" -> FinTech. Пустая строка означает "all".
func ParseIndustry(s string) (Industry, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, string(IndustryAll)) {
		return IndustryAll, nil
	}
	for _, ind := range Industries {
		if strings.EqualFold(s, string(ind)) {
			return ind, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownIndustry, s)
}

// Known сообщает, входит ли значение в перечисление.
// С сервера может прийти что угодно, такие записи видны только под "all".
func (i Industry) Known() bool {
	if i == IndustryAll {
		return true
	}
	for _, ind := range Industries {
		if i == ind {
			return true
		}
	}
	return false
}

// SortKey: ключ сортировки списка компаний.
type SortKey string

const (
	SortByRiskScore SortKey = "risk_score"
	SortByARR       SortKey = "current_arr"
	SortByName      SortKey = "name"
)

var sortCycle = []SortKey{SortByRiskScore, SortByARR, SortByName}

func ParseSortKey(s string) (SortKey, error) {
	for _, k := range sortCycle {
		if strings.EqualFold(strings.TrimSpace(s), string(k)) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSortKey, s)
}

// Next возвращает следующий ключ для кнопки "Sort" (risk -> arr -> name -> risk).
func (k SortKey) Next() SortKey {
	for i, cur := range sortCycle {
		if cur == k {
			return sortCycle[(i+1)%len(sortCycle)]
		}
	}
	return SortByRiskScore
}

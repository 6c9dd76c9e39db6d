// Package portfolio считает производные метрики портфеля для дашборда.
package portfolio

import (
	"github.com/shopspring/decimal"
	"github.com/xela07ax/investorlens/internal/domain"
	"github.com/xela07ax/investorlens/internal/risk"
)

// Aggregate чистая функция. Входные срезы не изменяются, результат детерминирован.
// stats может быть nil (сводка еще не загружена), тогда счетчики алертов равны 0.
func Aggregate(companies []domain.Company, stats *domain.AlertStats) domain.PortfolioSnapshot {
	snap := domain.PortfolioSnapshot{
		TotalCompanies: len(companies),
	}

	var riskSum int64
	arr := decimal.Zero
	burn := decimal.Zero
	for _, c := range companies {
		if c.IsActive {
			snap.ActiveCompanies++
		}
		riskSum += int64(c.Risk())
		arr = arr.Add(decimal.NewFromFloat(c.ARR()))
		burn = burn.Add(decimal.NewFromFloat(c.BurnRate()))
	}

	if snap.TotalCompanies > 0 {
		snap.AverageRiskScore = roundMean(riskSum, int64(snap.TotalCompanies))
	}
	snap.TotalARR = arr.InexactFloat64()
	snap.TotalMonthlyBurn = burn.InexactFloat64()
	snap.RiskOutlook = risk.Outlook(snap.AverageRiskScore)

	if stats != nil {
		snap.TotalAlerts = stats.TotalUnresolved
		snap.CriticalAlerts = stats.Critical
	}
	return snap
}

// roundMean: целочисленное среднее с округлением half away from zero.
func roundMean(sum, n int64) int {
	q, r := sum/n, sum%n
	if r < 0 {
		r = -r
	}
	if 2*r >= n {
		if sum < 0 {
			q--
		} else {
			q++
		}
	}
	return int(q)
}

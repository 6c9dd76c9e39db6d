package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/xela07ax/investorlens/internal/domain"
)

func score(v int) *int { return &v }

func money(v float64) *float64 { return &v }

func TestAggregate_Empty(t *testing.T) {
	snap := Aggregate(nil, nil)

	assert.Equal(t, 0, snap.TotalCompanies)
	assert.Equal(t, 0, snap.ActiveCompanies)
	assert.Equal(t, 0, snap.AverageRiskScore)
	assert.Equal(t, 0, snap.TotalAlerts)
	assert.Equal(t, 0, snap.CriticalAlerts)
	assert.Equal(t, "Low Risk", snap.RiskOutlook)
}

func TestAggregate_AverageRisk(t *testing.T) {
	companies := []domain.Company{
		{ID: 1, RiskScore: score(80), IsActive: true},
		{ID: 2, RiskScore: score(20), IsActive: true},
		{ID: 3, RiskScore: score(50), IsActive: false},
	}

	snap := Aggregate(companies, nil)

	assert.Equal(t, 3, snap.TotalCompanies)
	assert.Equal(t, 2, snap.ActiveCompanies)
	assert.Equal(t, 50, snap.AverageRiskScore)
	assert.Equal(t, "Monitor", snap.RiskOutlook)
}

func TestAggregate_MissingRiskCountsAsZero(t *testing.T) {
	companies := []domain.Company{
		{ID: 1, RiskScore: score(60)},
		{ID: 2},
	}

	assert.Equal(t, 30, Aggregate(companies, nil).AverageRiskScore)
}

func TestAggregate_RoundsHalfAwayFromZero(t *testing.T) {
	// (1 + 2) / 2 = 1.5 -> 2
	assert.Equal(t, 2, Aggregate([]domain.Company{{RiskScore: score(1)}, {RiskScore: score(2)}}, nil).AverageRiskScore)
	// (10 + 10 + 11) / 3 = 10.33 -> 10
	assert.Equal(t, 10, Aggregate([]domain.Company{{RiskScore: score(10)}, {RiskScore: score(10)}, {RiskScore: score(11)}}, nil).AverageRiskScore)
	// (49 + 50 + 50 + 50) / 4 = 49.75 -> 50
	assert.Equal(t, 50, Aggregate([]domain.Company{{RiskScore: score(49)}, {RiskScore: score(50)}, {RiskScore: score(50)}, {RiskScore: score(50)}}, nil).AverageRiskScore)
}

func TestAggregate_AlertStats(t *testing.T) {
	snap := Aggregate(nil, &domain.AlertStats{Critical: 2, TotalUnresolved: 5})
	assert.Equal(t, 2, snap.CriticalAlerts)
	assert.Equal(t, 5, snap.TotalAlerts)

	snap = Aggregate(nil, &domain.AlertStats{})
	assert.Equal(t, 0, snap.CriticalAlerts)
	assert.Equal(t, 0, snap.TotalAlerts)
}

func TestAggregate_MoneyTotals(t *testing.T) {
	companies := []domain.Company{
		{CurrentARR: money(0.1), MonthlyBurnRate: money(95000)},
		{CurrentARR: money(0.2)},
		{MonthlyBurnRate: money(125000)},
	}

	snap := Aggregate(companies, nil)

	assert.Equal(t, 0.3, snap.TotalARR)
	assert.Equal(t, 220000.0, snap.TotalMonthlyBurn)
}

func TestAggregate_DoesNotMutateInput(t *testing.T) {
	companies := []domain.Company{{ID: 2, RiskScore: score(20)}, {ID: 1, RiskScore: score(80)}}

	_ = Aggregate(companies, &domain.AlertStats{Critical: 1})

	assert.Equal(t, 2, companies[0].ID)
	assert.Equal(t, 20, *companies[0].RiskScore)
}

func TestRoundMean(t *testing.T) {
	assert.Equal(t, 50, roundMean(150, 3))
	assert.Equal(t, 3, roundMean(5, 2))
	assert.Equal(t, -3, roundMean(-5, 2))
	assert.Equal(t, 0, roundMean(1, 3))
}

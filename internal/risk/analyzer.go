package risk

import (
	"github.com/xela07ax/investorlens/internal/domain"
	"go.uber.org/zap"
)

// Границы уровней риска совпадают с серверными (0-25 Low ... 76-100 Critical).
const (
	lowUpper    = 26
	mediumUpper = 51
	highUpper   = 76

	// ElevatedThreshold: с этого значения карточка показывает тренд вверх.
	ElevatedThreshold = 50
	// WatchThreshold: с этого значения сервер заводит алерт по риску.
	WatchThreshold = 75
)

type Level string

const (
	LevelLow      Level = "Low"
	LevelMedium   Level = "Medium"
	LevelHigh     Level = "High"
	LevelCritical Level = "Critical"
)

// LevelOf переводит risk_score в уровень.
func LevelOf(score int) Level {
	switch {
	case score < lowUpper:
		return LevelLow
	case score < mediumUpper:
		return LevelMedium
	case score < highUpper:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// Outlook: подпись под средним риском портфеля.
func Outlook(avg int) string {
	if avg < ElevatedThreshold {
		return "Low Risk"
	}
	return "Monitor"
}

type Analyzer struct {
	logger *zap.Logger
}

func NewAnalyzer(logger *zap.Logger) *Analyzer {
	return &Analyzer{logger: logger.Named("risk")}
}

// Watchlist отбирает активные компании с риском не ниже WatchThreshold
// в исходном порядке. Записи без risk_score в список не попадают.
func (a *Analyzer) Watchlist(companies []domain.Company) []domain.Company {
	var out []domain.Company
	for _, c := range companies {
		if !c.IsActive || c.RiskScore == nil {
			continue
		}
		if *c.RiskScore >= WatchThreshold {
			a.logger.Warn("elevated risk detected",
				zap.Int("company_id", c.ID),
				zap.String("company", c.Name),
				zap.Int("risk_score", *c.RiskScore),
				zap.String("level", string(LevelOf(*c.RiskScore))),
			)
			out = append(out, c)
		}
	}
	return out
}

package scoring

import (
	"math"

	"suptia-engine/internal/catalog"
	"suptia-engine/internal/pricing"
)

// CostCalculation exposes the intermediate values behind the cost score.
type CostCalculation struct {
	CostPerMg           float64        `json:"cost_per_mg"`
	DaysPerContainer    float64        `json:"days_per_container"`
	TotalMgPerContainer float64        `json:"total_mg_per_container"`
	EffectivePriceJPY   float64        `json:"effective_price_jpy"`
	PriceSource         pricing.Source `json:"price_source"`
}

// CostDetails is the cost part of a ScoreBreakdown.
type CostDetails struct {
	CostPerDayJPY   float64         `json:"cost_per_day_jpy"`
	CostCalculation CostCalculation `json:"cost_calculation"`
	// Known is false when price or serving data is missing.
	Known       bool    `json:"known"`
	OverBudget  bool    `json:"over_budget"`
	BudgetDelta float64 `json:"budget_delta_jpy,omitempty"`
}

// ComputeCost derives cost per day and cost per mg:
//
//	costPerDay = price / (servingsPerContainer / servingsPerDay)
//	costPerMg  = price / (totalMgPerServing * servingsPerContainer)
//
// Missing values leave the corresponding figure at zero.
func ComputeCost(p catalog.Product) CostDetails {
	quote := pricing.EffectivePrice(p)
	calc := CostCalculation{
		EffectivePriceJPY: quote.PriceJPY,
		PriceSource:       quote.Source,
	}
	details := CostDetails{CostCalculation: calc}
	if !quote.Known() || p.ServingsPerContainer <= 0 {
		return details
	}

	perDay := p.ServingsPerDay
	if perDay <= 0 {
		perDay = 1
	}
	days := p.ServingsPerContainer / perDay
	details.CostCalculation.DaysPerContainer = days
	details.CostPerDayJPY = quote.PriceJPY / days
	details.Known = true

	mgPerServing := p.TotalMgPerServing()
	if mgPerServing > 0 {
		totalMg := mgPerServing * p.ServingsPerContainer
		details.CostCalculation.TotalMgPerContainer = totalMg
		details.CostCalculation.CostPerMg = quote.PriceJPY / totalMg
	}
	return details
}

// CostScore maps daily cost to 0-100 against the budget when one is given,
// otherwise against fixed reference bands.
func CostScore(details *CostDetails, budgetPerDay float64) float64 {
	if details == nil || !details.Known {
		return neutralScore
	}
	cost := details.CostPerDayJPY
	if budgetPerDay > 0 {
		if cost <= budgetPerDay {
			return 100
		}
		details.OverBudget = true
		details.BudgetDelta = round2(cost - budgetPerDay)
		ratio := cost / budgetPerDay
		return clamp(100 - (ratio-1)*80)
	}
	switch {
	case cost <= 50:
		return 100
	case cost <= 100:
		return 90
	case cost <= 200:
		return 75
	case cost <= 300:
		return 60
	case cost <= 500:
		return 45
	case cost <= 1000:
		return 30
	default:
		return 15
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

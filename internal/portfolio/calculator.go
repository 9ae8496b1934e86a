// Package portfolio computes derived valuation metrics for portfolios.
// All functions are pure: given identical price inputs the output is
// bit-for-bit reproducible, and inputs are never mutated.
package portfolio

import (
	"github.com/stockleague/stockleague/pkg/models"
)

// Calculate derives the full metric set for a portfolio from a current
// price snapshot. historical, when non-nil, supplies per-symbol closing
// prices from a chosen past date; the resulting SinceDatePercent measures
// performance from that date instead of original cost basis and takes
// precedence for leaderboard comparison.
func Calculate(p models.Portfolio, prices map[string]models.PricePoint, historical map[string]float64) models.PortfolioMetrics {
	m := models.PortfolioMetrics{
		TotalInvested: p.TotalInvested,
		Positions:     make([]models.PositionMetrics, 0, len(p.Positions)),
	}

	var priorBasis float64 // Σ priorClose * shares, day-change denominator
	var sinceBasis float64 // cost basis as of the historical date

	for _, pos := range p.Positions {
		pp, havePrice := prices[pos.Symbol]

		// Missing price falls back to cost basis, never an error.
		price := pos.AvgPrice
		if havePrice {
			price = pp.Price
		}

		currentValue := pos.Shares * price
		investedValue := pos.Shares * pos.AvgPrice

		var dayChangeValue float64
		if havePrice {
			dayChangeValue = pp.Change * pos.Shares
			priorBasis += pp.PriorClose() * pos.Shares
		} else {
			priorBasis += price * pos.Shares
		}

		if historical != nil {
			basis := pos.AvgPrice
			if h, ok := historical[pos.Symbol]; ok && h > 0 {
				basis = h
			}
			sinceBasis += pos.Shares * basis
		}

		m.TotalValue += currentValue
		m.DayChange += dayChangeValue
		m.Positions = append(m.Positions, models.PositionMetrics{
			Symbol:         pos.Symbol,
			Sector:         pos.SectorOrDefault(),
			Shares:         pos.Shares,
			CurrentPrice:   price,
			CurrentValue:   currentValue,
			InvestedValue:  investedValue,
			DayChangeValue: dayChangeValue,
		})
	}

	m.TotalReturn = m.TotalValue - m.TotalInvested
	m.TotalReturnPercent = safePct(m.TotalReturn, m.TotalInvested)
	m.DayChangePercent = safePct(m.DayChange, priorBasis)

	if historical != nil {
		pct := safePct(m.TotalValue-sinceBasis, sinceBasis)
		m.SinceDatePercent = &pct
	}

	return m
}

// ReturnPercent returns the metric used for cross-trader comparison:
// the since-date figure when present, lifetime return otherwise.
func ReturnPercent(m models.PortfolioMetrics) float64 {
	if m.SinceDatePercent != nil {
		return *m.SinceDatePercent
	}
	return m.TotalReturnPercent
}

// safePct computes part/whole*100 with the divide-by-zero edge case
// defined as 0, never NaN or Inf.
func safePct(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}

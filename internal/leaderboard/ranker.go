// Package leaderboard ranks computed portfolios for display. Ranking is a
// pure function of its inputs: re-invocation with unchanged portfolios and
// prices yields an identical board.
package leaderboard

import (
	"sort"

	"github.com/stockleague/stockleague/internal/config"
	"github.com/stockleague/stockleague/internal/portfolio"
	"github.com/stockleague/stockleague/pkg/models"
)

// TierThresholds are inclusive lower bounds on return percentage for the
// S, A, and B tiers; anything below B is tier C. The concrete values live
// in configuration, not here.
type TierThresholds struct {
	S float64
	A float64
	B float64
}

// ThresholdsFromConfig builds tier thresholds from configuration.
func ThresholdsFromConfig(cfg config.LeaderboardConfig) TierThresholds {
	return TierThresholds{S: cfg.TierS, A: cfg.TierA, B: cfg.TierB}
}

// Tier classifies a return percentage. Boundary values land in the higher
// tier (inclusive lower bound).
func Tier(returnPct float64, t TierThresholds) string {
	switch {
	case returnPct >= t.S:
		return "S"
	case returnPct >= t.A:
		return "A"
	case returnPct >= t.B:
		return "B"
	default:
		return "C"
	}
}

// Build computes a ranked leaderboard. historical, when non-nil, switches
// the ranking field to the since-date return so all traders are compared
// from the same starting date. Entries sort descending by return; ranks
// are dense positional 1..N with equal returns keeping input order.
func Build(portfolios []models.Portfolio, prices map[string]models.PricePoint, historical map[string]float64, tiers TierThresholds) []models.LeaderboardEntry {
	entries := make([]models.LeaderboardEntry, 0, len(portfolios))

	for _, p := range portfolios {
		m := portfolio.Calculate(p, prices, historical)
		ret := portfolio.ReturnPercent(m)

		entries = append(entries, models.LeaderboardEntry{
			Username:      p.Username,
			ReturnPercent: ret,
			Tier:          Tier(ret, tiers),
			PrimarySector: primarySector(m.Positions),
			PrimaryStock:  primaryStock(m.Positions),
			Portfolio:     p.Symbols(),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ReturnPercent > entries[j].ReturnPercent
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}

	return entries
}

// primarySector returns the sector with the largest aggregate current
// value. Ties keep the sector first encountered in position order.
func primarySector(positions []models.PositionMetrics) string {
	if len(positions) == 0 {
		return ""
	}

	totals := make(map[string]float64, len(positions))
	order := make([]string, 0, len(positions))
	for _, pm := range positions {
		if _, seen := totals[pm.Sector]; !seen {
			order = append(order, pm.Sector)
		}
		totals[pm.Sector] += pm.CurrentValue
	}

	best := order[0]
	for _, sector := range order[1:] {
		if totals[sector] > totals[best] {
			best = sector
		}
	}
	return best
}

// primaryStock returns the symbol with the single largest position value.
// Ties keep the position first encountered.
func primaryStock(positions []models.PositionMetrics) string {
	if len(positions) == 0 {
		return ""
	}

	best := 0
	for i := 1; i < len(positions); i++ {
		if positions[i].CurrentValue > positions[best].CurrentValue {
			best = i
		}
	}
	return positions[best].Symbol
}

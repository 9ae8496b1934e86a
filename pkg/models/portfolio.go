// Package models defines the core data structures used throughout StockLeague.
package models

import "time"

// DefaultSector is the sector label used when a position carries none.
const DefaultSector = "Other"

// Position represents a single holding within a portfolio.
type Position struct {
	Symbol   string  `json:"symbol"              bson:"symbol"`    // uppercase ticker, e.g. "AAPL"
	Shares   float64 `json:"shares"              bson:"shares"`    // quantity held, >= 0
	AvgPrice float64 `json:"avg_price"           bson:"avg_price"` // average cost basis per share
	Sector   string  `json:"sector,omitempty"    bson:"sector,omitempty"`
}

// SectorOrDefault returns the position's sector, or DefaultSector when unset.
func (p Position) SectorOrDefault() string {
	if p.Sector == "" {
		return DefaultSector
	}
	return p.Sector
}

// Portfolio is a trader's full holding set as persisted in the document store.
// TotalInvested is fixed at save time; all value/return figures are derived
// on read from the latest price snapshot and never stored.
type Portfolio struct {
	UserID        string     `json:"user_id"        bson:"user_id"`
	Username      string     `json:"username"       bson:"username"`
	Positions     []Position `json:"positions"      bson:"positions"`
	TotalInvested float64    `json:"total_invested" bson:"total_invested"`
	UpdatedAt     time.Time  `json:"updated_at"     bson:"updated_at"`
}

// Symbols returns the distinct position symbols in first-encountered order.
func (p Portfolio) Symbols() []string {
	seen := make(map[string]bool, len(p.Positions))
	out := make([]string, 0, len(p.Positions))
	for _, pos := range p.Positions {
		if !seen[pos.Symbol] {
			seen[pos.Symbol] = true
			out = append(out, pos.Symbol)
		}
	}
	return out
}

// PositionMetrics holds the derived valuation of one position.
type PositionMetrics struct {
	Symbol         string  `json:"symbol"`
	Sector         string  `json:"sector"`
	Shares         float64 `json:"shares"`
	CurrentPrice   float64 `json:"current_price"`
	CurrentValue   float64 `json:"current_value"`
	InvestedValue  float64 `json:"invested_value"`
	DayChangeValue float64 `json:"day_change_value"`
}

// PortfolioMetrics holds the derived valuation of a whole portfolio.
// SinceDatePercent is set only when a historical price snapshot was supplied;
// it measures performance from that snapshot instead of original cost basis.
type PortfolioMetrics struct {
	TotalValue         float64           `json:"total_value"`
	TotalInvested      float64           `json:"total_invested"`
	TotalReturn        float64           `json:"total_return"`
	TotalReturnPercent float64           `json:"total_return_percent"`
	DayChange          float64           `json:"day_change"`
	DayChangePercent   float64           `json:"day_change_percent"`
	SinceDatePercent   *float64          `json:"since_date_percent,omitempty"`
	Positions          []PositionMetrics `json:"positions"`
}

// LeaderboardEntry is a read-only projection of a portfolio for ranking
// display. Recomputed in full on every leaderboard request.
type LeaderboardEntry struct {
	Rank          int      `json:"rank"` // 1-based, assigned after sort
	Username      string   `json:"username"`
	ReturnPercent float64  `json:"return_percent"`
	Tier          string   `json:"tier"` // "S", "A", "B", or "C"
	PrimarySector string   `json:"primary_sector"`
	PrimaryStock  string   `json:"primary_stock"`
	Portfolio     []string `json:"portfolio"` // position symbols
}

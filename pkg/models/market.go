package models

import "time"

// DateCurrent is the date marker for a live (non-historical) price point.
const DateCurrent = "current"

// SourceFallback marks a price point generated locally instead of fetched.
const SourceFallback = "fallback"

// PricePoint is a single cached price observation. Date is either a
// YYYY-MM-DD close date or DateCurrent for a live quote.
type PricePoint struct {
	Symbol    string    `json:"symbol"`
	Date      string    `json:"date"`
	Price     float64   `json:"price"`
	Change    float64   `json:"change"`     // absolute day change, 0 for historical points
	ChangePct float64   `json:"change_pct"` // day change relative to prior close
	Timestamp time.Time `json:"timestamp"`  // cache insertion time
	Source    string    `json:"source"`     // provider name or SourceFallback
}

// PriorClose returns the previous session's closing price implied by the
// quote. Falls back to the price itself when no change is recorded.
func (p PricePoint) PriorClose() float64 {
	prior := p.Price - p.Change
	if prior <= 0 {
		return p.Price
	}
	return prior
}

// OHLCV represents a single daily candlestick bar.
type OHLCV struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// Fundamentals holds normalized balance-sheet and income-statement line
// items for one ticker and fiscal period. Monetary values are in millions
// of USD, shares in millions.
type Fundamentals struct {
	Symbol            string  `json:"symbol"`
	FiscalPeriod      string  `json:"fiscal_period"` // e.g. "2025-Q2" or "2024-FY"
	Revenue           float64 `json:"revenue"`
	OperatingIncome   float64 `json:"operating_income"`
	CapEx             float64 `json:"capex"`
	TotalDebt         float64 `json:"total_debt"`
	Cash              float64 `json:"cash"`
	SharesOutstanding float64 `json:"shares_outstanding"`
}

// NetDebt returns total debt less cash and equivalents.
func (f Fundamentals) NetDebt() float64 {
	return f.TotalDebt - f.Cash
}

// NewsArticle is a single news item assembled from an RSS feed.
type NewsArticle struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Summary     string    `json:"summary"`
	PublishedAt time.Time `json:"published_at"`
}

// Package market provides market data fetching and caching. It defines a
// Provider interface over the upstream data vendor's REST endpoints and a
// Service that layers an in-memory TTL cache, batch chunking, rate limiting,
// and deterministic fallback pricing on top of it.
package market

import (
	"context"
	"fmt"

	"github.com/stockleague/stockleague/pkg/models"
)

// Provider is the contract with the upstream market-data vendor. Each method
// maps to one REST endpoint; responses are normalized into the strict
// internal models at this boundary.
type Provider interface {
	// Name returns the provider name used as the PricePoint source label.
	Name() string

	// LastTrade returns the latest trade price and day change for a symbol.
	LastTrade(ctx context.Context, symbol string) (*models.PricePoint, error)

	// DailyBar returns the OHLCV bar for a symbol on a YYYY-MM-DD date.
	DailyBar(ctx context.Context, symbol, date string) (*models.OHLCV, error)

	// DailyRange returns daily bars for a symbol between two dates inclusive.
	DailyRange(ctx context.Context, symbol, from, to string) ([]models.OHLCV, error)

	// SnapshotBatch returns current quotes for up to the provider's maximum
	// number of symbols in a single request.
	SnapshotBatch(ctx context.Context, symbols []string) (map[string]*models.PricePoint, error)

	// Fundamentals returns the most recent reported financials for a symbol.
	Fundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error)
}

// --- Sentinel errors ---

// ErrNoData is returned when the provider has no data for a symbol or date,
// e.g. a market holiday or an unlisted ticker.
var ErrNoData = fmt.Errorf("no data for symbol/date")

// ErrRateLimited is returned when the provider rejects a request for quota.
var ErrRateLimited = fmt.Errorf("rate limited by market data provider")

// ErrHTTP wraps a non-2xx provider response.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

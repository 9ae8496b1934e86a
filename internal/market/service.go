package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stockleague/stockleague/internal/config"
	"github.com/stockleague/stockleague/internal/infra"
	"github.com/stockleague/stockleague/pkg/models"
)

// Service layers caching, rate limiting, batch chunking, and fallback
// pricing over a Provider. Callers always get a usable price: provider
// outages degrade to deterministic fallback values instead of errors,
// unless they explicitly opt out via the Strict variants.
type Service struct {
	provider      Provider
	cache         *infra.Cache
	limiter       *infra.RateLimiter
	currentTTL    time.Duration
	historicalTTL time.Duration
	batchSize     int
	batchDelay    time.Duration
}

// NewService creates a price service from configuration.
func NewService(provider Provider, cfg config.MarketConfig) *Service {
	return &Service{
		provider:      provider,
		cache:         infra.NewCache(time.Duration(cfg.CurrentTTLSec) * time.Second),
		limiter:       infra.NewRateLimiter(cfg.RateLimit, time.Duration(cfg.RateWindowSec)*time.Second),
		currentTTL:    time.Duration(cfg.CurrentTTLSec) * time.Second,
		historicalTTL: time.Duration(cfg.HistoricalTTLSec) * time.Second,
		batchSize:     cfg.BatchSize,
		batchDelay:    time.Duration(cfg.BatchDelayMs) * time.Millisecond,
	}
}

// cacheKey builds the (kind, symbol, date) cache key.
func cacheKey(kind, symbol, date string) string {
	return kind + ":" + strings.ToUpper(symbol) + ":" + date
}

// CurrentPrice returns the live price and day change for a symbol. Provider
// failures are recovered with a deterministic fallback price; the result is
// always usable.
func (s *Service) CurrentPrice(ctx context.Context, symbol string) models.PricePoint {
	pp, err := s.CurrentPriceStrict(ctx, symbol)
	if err != nil {
		slog.Warn("price fetch failed, using fallback",
			slog.String("symbol", symbol), slog.String("err", err.Error()))
		fb := FallbackPrice(symbol, models.DateCurrent)
		s.cache.SetWithTTL(cacheKey("current", symbol, models.DateCurrent), fb, s.currentTTL)
		return fb
	}
	return pp
}

// CurrentPriceStrict returns the live price without fallback recovery.
// Callers that need to distinguish real from generated prices use this.
func (s *Service) CurrentPriceStrict(ctx context.Context, symbol string) (models.PricePoint, error) {
	key := cacheKey("current", symbol, models.DateCurrent)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(models.PricePoint), nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return models.PricePoint{}, fmt.Errorf("rate limiter: %w", err)
	}

	pp, err := s.provider.LastTrade(ctx, symbol)
	if err != nil {
		return models.PricePoint{}, fmt.Errorf("last trade %s: %w", symbol, err)
	}

	s.cache.SetWithTTL(key, *pp, s.currentTTL)
	return *pp, nil
}

// HistoricalPrice returns the closing price for a symbol on a YYYY-MM-DD
// date. The second return is false when the provider definitively reports
// no data for that date (holiday, unlisted symbol); transport failures
// degrade to a deterministic fallback price instead, so outages never
// change which portfolios carry a since-date figure.
func (s *Service) HistoricalPrice(ctx context.Context, symbol, date string) (float64, bool) {
	key := cacheKey("historical", symbol, date)
	if cached, ok := s.cache.Get(key); ok {
		price := cached.(float64)
		return price, price > 0
	}

	if err := s.limiter.Wait(ctx); err != nil {
		fb := FallbackPrice(symbol, date)
		return fb.Price, true
	}

	bar, err := s.provider.DailyBar(ctx, symbol, date)
	switch {
	case err == nil:
		// Past closes are immutable, so the long TTL applies.
		s.cache.SetWithTTL(key, bar.Close, s.historicalTTL)
		return bar.Close, true
	case errors.Is(err, ErrNoData):
		// Cache the absence too; refetching a holiday date is pointless.
		s.cache.SetWithTTL(key, 0.0, s.historicalTTL)
		return 0, false
	default:
		slog.Warn("historical fetch failed, using fallback",
			slog.String("symbol", symbol), slog.String("date", date), slog.String("err", err.Error()))
		fb := FallbackPrice(symbol, date)
		return fb.Price, true
	}
}

// BatchCurrentPrices returns live prices for a symbol list. Large lists are
// chunked to the provider's maximum request size with a small delay between
// chunks. Partial failures never abort the batch; failed symbols fall back
// individually and the returned map is always complete.
func (s *Service) BatchCurrentPrices(ctx context.Context, symbols []string) map[string]models.PricePoint {
	result := make(map[string]models.PricePoint, len(symbols))

	// Serve what we can from cache first.
	var missing []string
	for _, sym := range symbols {
		sym = strings.ToUpper(sym)
		if _, done := result[sym]; done {
			continue
		}
		if cached, ok := s.cache.Get(cacheKey("current", sym, models.DateCurrent)); ok {
			result[sym] = cached.(models.PricePoint)
		} else {
			missing = append(missing, sym)
		}
	}

	for i := 0; i < len(missing); i += s.batchSize {
		end := i + s.batchSize
		if end > len(missing) {
			end = len(missing)
		}
		chunk := missing[i:end]

		if i > 0 && s.batchDelay > 0 {
			select {
			case <-ctx.Done():
				s.fillFallbacks(result, missing[i:])
				return result
			case <-time.After(s.batchDelay):
			}
		}

		snaps, err := s.fetchSnapshot(ctx, chunk)
		if err != nil {
			slog.Warn("snapshot chunk failed, using fallbacks",
				slog.Int("size", len(chunk)), slog.String("err", err.Error()))
			s.fillFallbacks(result, chunk)
			continue
		}

		for _, sym := range chunk {
			pp, ok := snaps[sym]
			if !ok {
				// Provider returned the chunk but skipped this symbol.
				fb := FallbackPrice(sym, models.DateCurrent)
				s.cache.SetWithTTL(cacheKey("current", sym, models.DateCurrent), fb, s.currentTTL)
				result[sym] = fb
				continue
			}
			s.cache.SetWithTTL(cacheKey("current", sym, models.DateCurrent), *pp, s.currentTTL)
			result[sym] = *pp
		}
	}

	return result
}

// fetchSnapshot runs one rate-limited snapshot request.
func (s *Service) fetchSnapshot(ctx context.Context, chunk []string) (map[string]*models.PricePoint, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return s.provider.SnapshotBatch(ctx, chunk)
}

// fillFallbacks generates and caches fallback prices for each symbol.
func (s *Service) fillFallbacks(result map[string]models.PricePoint, symbols []string) {
	for _, sym := range symbols {
		fb := FallbackPrice(sym, models.DateCurrent)
		s.cache.SetWithTTL(cacheKey("current", sym, models.DateCurrent), fb, s.currentTTL)
		result[sym] = fb
	}
}

// History returns up to days trailing daily bars for charting.
func (s *Service) History(ctx context.Context, symbol string, days int) ([]models.OHLCV, error) {
	if days <= 0 {
		days = 30
	}
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)
	fromStr, toStr := from.Format("2006-01-02"), to.Format("2006-01-02")

	key := cacheKey("history", symbol, fromStr+"/"+toStr)
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]models.OHLCV), nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	bars, err := s.provider.DailyRange(ctx, symbol, fromStr, toStr)
	if err != nil {
		return nil, fmt.Errorf("daily range %s: %w", symbol, err)
	}

	s.cache.SetWithTTL(key, bars, s.historicalTTL)
	return bars, nil
}

// Fundamentals returns the latest reported financials for a symbol.
func (s *Service) Fundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	key := cacheKey("fundamentals", symbol, "latest")
	if cached, ok := s.cache.Get(key); ok {
		f := cached.(models.Fundamentals)
		return &f, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	f, err := s.provider.Fundamentals(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("fundamentals %s: %w", symbol, err)
	}

	s.cache.SetWithTTL(key, *f, s.historicalTTL)
	return f, nil
}

// CacheSize returns the number of cached entries, for the status endpoint.
func (s *Service) CacheSize() int { return s.cache.Len() }

// FlushCache drops every cached price.
func (s *Service) FlushCache() { s.cache.Flush() }

// StartCacheSweeper sweeps expired entries every interval until ctx ends.
func (s *Service) StartCacheSweeper(ctx context.Context, interval time.Duration) {
	s.cache.StartSweeper(ctx, interval)
}

// ProviderName reports the underlying provider's name.
func (s *Service) ProviderName() string { return s.provider.Name() }

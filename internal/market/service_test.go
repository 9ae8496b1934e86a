package market

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stockleague/stockleague/internal/config"
	"github.com/stockleague/stockleague/pkg/models"
)

// ════════════════════════════════════════════════════════════
// Test fixtures
// ════════════════════════════════════════════════════════════

// fakeProvider is a scriptable Provider for service tests.
type fakeProvider struct {
	mu            sync.Mutex
	lastTradeFn   func(symbol string) (*models.PricePoint, error)
	dailyBarFn    func(symbol, date string) (*models.OHLCV, error)
	snapshotFn    func(symbols []string) (map[string]*models.PricePoint, error)
	lastTradeCalls int
	snapshotCalls  int
	snapshotSizes  []int
}

var _ Provider = (*fakeProvider)(nil)

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) LastTrade(_ context.Context, symbol string) (*models.PricePoint, error) {
	f.mu.Lock()
	f.lastTradeCalls++
	f.mu.Unlock()
	if f.lastTradeFn != nil {
		return f.lastTradeFn(symbol)
	}
	return quote(symbol, 100, 1), nil
}

func (f *fakeProvider) DailyBar(_ context.Context, symbol, date string) (*models.OHLCV, error) {
	if f.dailyBarFn != nil {
		return f.dailyBarFn(symbol, date)
	}
	return &models.OHLCV{Symbol: symbol, Close: 90}, nil
}

func (f *fakeProvider) DailyRange(_ context.Context, symbol, from, to string) ([]models.OHLCV, error) {
	return []models.OHLCV{{Symbol: symbol, Close: 90}, {Symbol: symbol, Close: 95}}, nil
}

func (f *fakeProvider) SnapshotBatch(_ context.Context, symbols []string) (map[string]*models.PricePoint, error) {
	f.mu.Lock()
	f.snapshotCalls++
	f.snapshotSizes = append(f.snapshotSizes, len(symbols))
	f.mu.Unlock()
	if f.snapshotFn != nil {
		return f.snapshotFn(symbols)
	}
	out := make(map[string]*models.PricePoint, len(symbols))
	for _, s := range symbols {
		out[s] = quote(s, 100, 1)
	}
	return out, nil
}

func (f *fakeProvider) Fundamentals(_ context.Context, symbol string) (*models.Fundamentals, error) {
	return &models.Fundamentals{Symbol: symbol, Revenue: 1000}, nil
}

func quote(symbol string, price, change float64) *models.PricePoint {
	return &models.PricePoint{
		Symbol:    symbol,
		Date:      models.DateCurrent,
		Price:     price,
		Change:    change,
		Timestamp: time.Now(),
		Source:    "fake",
	}
}

func testMarketConfig() config.MarketConfig {
	return config.MarketConfig{
		CurrentTTLSec:    60,
		HistoricalTTLSec: 86400,
		BatchSize:        3,
		BatchDelayMs:     0, // no inter-chunk sleeps in tests
		RateLimit:        1000,
		RateWindowSec:    1,
	}
}

func newTestService(p Provider) *Service {
	return NewService(p, testMarketConfig())
}

// ════════════════════════════════════════════════════════════
// CurrentPrice
// ════════════════════════════════════════════════════════════

func TestCurrentPriceFetchesAndCaches(t *testing.T) {
	fp := &fakeProvider{}
	svc := newTestService(fp)
	ctx := context.Background()

	pp := svc.CurrentPrice(ctx, "AAPL")
	if pp.Price != 100 || pp.Change != 1 {
		t.Errorf("got price=%f change=%f, want 100/1", pp.Price, pp.Change)
	}

	// Second call is served from cache.
	svc.CurrentPrice(ctx, "AAPL")
	if fp.lastTradeCalls != 1 {
		t.Errorf("provider called %d times, want 1 (cache hit expected)", fp.lastTradeCalls)
	}
}

func TestCurrentPriceFallsBackOnProviderError(t *testing.T) {
	fp := &fakeProvider{
		lastTradeFn: func(string) (*models.PricePoint, error) {
			return nil, fmt.Errorf("connection refused")
		},
	}
	svc := newTestService(fp)

	pp := svc.CurrentPrice(context.Background(), "AAPL")
	if pp.Source != models.SourceFallback {
		t.Errorf("source: got %q, want %q", pp.Source, models.SourceFallback)
	}
	if pp.Price <= 0 {
		t.Errorf("fallback price must be usable, got %f", pp.Price)
	}

	// Deterministic: the fallback for the same symbol is stable.
	want := FallbackPrice("AAPL", models.DateCurrent)
	if pp.Price != want.Price {
		t.Errorf("fallback price %f not deterministic (want %f)", pp.Price, want.Price)
	}
}

func TestCurrentPriceStrictPropagatesError(t *testing.T) {
	fp := &fakeProvider{
		lastTradeFn: func(string) (*models.PricePoint, error) {
			return nil, &ErrHTTP{StatusCode: 502, Status: "502 Bad Gateway"}
		},
	}
	svc := newTestService(fp)

	_, err := svc.CurrentPriceStrict(context.Background(), "AAPL")
	if err == nil {
		t.Fatal("strict variant must surface provider errors")
	}
}

// ════════════════════════════════════════════════════════════
// HistoricalPrice
// ════════════════════════════════════════════════════════════

func TestHistoricalPriceReturnsClose(t *testing.T) {
	fp := &fakeProvider{
		dailyBarFn: func(symbol, date string) (*models.OHLCV, error) {
			return &models.OHLCV{Symbol: symbol, Close: 123.45}, nil
		},
	}
	svc := newTestService(fp)

	price, ok := svc.HistoricalPrice(context.Background(), "AAPL", "2026-01-02")
	if !ok {
		t.Fatal("expected ok for available bar")
	}
	if price != 123.45 {
		t.Errorf("price: got %f, want 123.45", price)
	}
}

func TestHistoricalPriceNoData(t *testing.T) {
	fp := &fakeProvider{
		dailyBarFn: func(string, string) (*models.OHLCV, error) {
			return nil, ErrNoData
		},
	}
	svc := newTestService(fp)

	// No data (holiday, unlisted) is the one absence the caller sees.
	if _, ok := svc.HistoricalPrice(context.Background(), "AAPL", "2026-01-01"); ok {
		t.Error("expected ok=false for a date with no data")
	}

	// The absence itself is cached.
	if _, ok := svc.HistoricalPrice(context.Background(), "AAPL", "2026-01-01"); ok {
		t.Error("expected cached absence to stay absent")
	}
}

func TestHistoricalPriceFallsBackOnTransportError(t *testing.T) {
	fp := &fakeProvider{
		dailyBarFn: func(string, string) (*models.OHLCV, error) {
			return nil, fmt.Errorf("timeout")
		},
	}
	svc := newTestService(fp)

	price, ok := svc.HistoricalPrice(context.Background(), "MSFT", "2026-01-02")
	if !ok {
		t.Fatal("transport errors must degrade to fallback, not absence")
	}
	want := FallbackPrice("MSFT", "2026-01-02")
	if price != want.Price {
		t.Errorf("fallback price %f not deterministic (want %f)", price, want.Price)
	}
}

// ════════════════════════════════════════════════════════════
// BatchCurrentPrices
// ════════════════════════════════════════════════════════════

func TestBatchChunksRequests(t *testing.T) {
	fp := &fakeProvider{}
	svc := newTestService(fp) // batch size 3

	symbols := []string{"A", "B", "C", "D", "E", "F", "G"}
	result := svc.BatchCurrentPrices(context.Background(), symbols)

	if len(result) != len(symbols) {
		t.Fatalf("got %d entries, want %d", len(result), len(symbols))
	}
	if fp.snapshotCalls != 3 {
		t.Errorf("snapshot calls: got %d, want 3 (chunks of 3,3,1)", fp.snapshotCalls)
	}
	wantSizes := []int{3, 3, 1}
	for i, size := range fp.snapshotSizes {
		if size != wantSizes[i] {
			t.Errorf("chunk %d size: got %d, want %d", i, size, wantSizes[i])
		}
	}
}

func TestBatchPartialFailureFallsBackPerChunk(t *testing.T) {
	fp := &fakeProvider{}
	fp.snapshotFn = func(symbols []string) (map[string]*models.PricePoint, error) {
		// First chunk fails outright, later chunks succeed.
		if fp.snapshotCalls == 1 {
			return nil, fmt.Errorf("503 service unavailable")
		}
		out := make(map[string]*models.PricePoint, len(symbols))
		for _, s := range symbols {
			out[s] = quote(s, 100, 1)
		}
		return out, nil
	}
	svc := newTestService(fp)

	symbols := []string{"A", "B", "C", "D", "E"}
	result := svc.BatchCurrentPrices(context.Background(), symbols)

	if len(result) != 5 {
		t.Fatalf("batch must return a complete map, got %d entries", len(result))
	}
	for _, s := range []string{"A", "B", "C"} {
		if result[s].Source != models.SourceFallback {
			t.Errorf("%s: got source %q, want fallback", s, result[s].Source)
		}
	}
	for _, s := range []string{"D", "E"} {
		if result[s].Source != "fake" {
			t.Errorf("%s: got source %q, want fake", s, result[s].Source)
		}
	}
}

func TestBatchMissingSymbolFallsBackIndividually(t *testing.T) {
	fp := &fakeProvider{}
	fp.snapshotFn = func(symbols []string) (map[string]*models.PricePoint, error) {
		out := make(map[string]*models.PricePoint)
		for _, s := range symbols {
			if s == "BAD" {
				continue // provider silently drops this one
			}
			out[s] = quote(s, 100, 1)
		}
		return out, nil
	}
	svc := newTestService(fp)

	result := svc.BatchCurrentPrices(context.Background(), []string{"A", "BAD"})
	if result["BAD"].Source != models.SourceFallback {
		t.Errorf("dropped symbol: got source %q, want fallback", result["BAD"].Source)
	}
	if result["A"].Source != "fake" {
		t.Errorf("served symbol: got source %q, want fake", result["A"].Source)
	}
}

func TestBatchServesCachedSymbolsWithoutRefetch(t *testing.T) {
	fp := &fakeProvider{}
	svc := newTestService(fp)
	ctx := context.Background()

	svc.BatchCurrentPrices(ctx, []string{"A", "B", "C"})
	calls := fp.snapshotCalls

	svc.BatchCurrentPrices(ctx, []string{"A", "B", "C"})
	if fp.snapshotCalls != calls {
		t.Errorf("cached batch refetched: %d calls, want %d", fp.snapshotCalls, calls)
	}
}

func TestBatchEmptyInput(t *testing.T) {
	svc := newTestService(&fakeProvider{})
	result := svc.BatchCurrentPrices(context.Background(), nil)
	if len(result) != 0 {
		t.Errorf("got %d entries for empty input", len(result))
	}
}

// ════════════════════════════════════════════════════════════
// History / Fundamentals / cache plumbing
// ════════════════════════════════════════════════════════════

func TestHistoryReturnsBars(t *testing.T) {
	svc := newTestService(&fakeProvider{})
	bars, err := svc.History(context.Background(), "AAPL", 30)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(bars) != 2 {
		t.Errorf("got %d bars, want 2", len(bars))
	}
}

func TestFundamentalsCached(t *testing.T) {
	svc := newTestService(&fakeProvider{})
	ctx := context.Background()

	f1, err := svc.Fundamentals(ctx, "AAPL")
	if err != nil {
		t.Fatalf("Fundamentals: %v", err)
	}
	f2, err := svc.Fundamentals(ctx, "AAPL")
	if err != nil {
		t.Fatalf("Fundamentals (cached): %v", err)
	}
	if f1.Revenue != f2.Revenue {
		t.Error("cached fundamentals differ from fetched")
	}
}

func TestFlushCache(t *testing.T) {
	fp := &fakeProvider{}
	svc := newTestService(fp)
	ctx := context.Background()

	svc.CurrentPrice(ctx, "AAPL")
	if svc.CacheSize() == 0 {
		t.Fatal("expected cache entry after fetch")
	}

	svc.FlushCache()
	if svc.CacheSize() != 0 {
		t.Errorf("CacheSize after flush: got %d, want 0", svc.CacheSize())
	}

	svc.CurrentPrice(ctx, "AAPL")
	if fp.lastTradeCalls != 2 {
		t.Errorf("provider calls after flush: got %d, want 2", fp.lastTradeCalls)
	}
}

package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/stockleague/stockleague/internal/config"
	"github.com/stockleague/stockleague/pkg/models"
)

// Polygon is a market-data provider backed by the Polygon.io REST API.
type Polygon struct {
	client *resty.Client
	apiKey string
}

var _ Provider = (*Polygon)(nil)

// NewPolygon creates a Polygon provider from configuration.
func NewPolygon(cfg config.MarketConfig) *Polygon {
	client := resty.New().
		SetTimeout(time.Duration(cfg.TimeoutSec) * time.Second).
		SetBaseURL(cfg.BaseURL)
	return &Polygon{client: client, apiKey: cfg.APIKey}
}

// Name returns the provider name used as the PricePoint source label.
func (p *Polygon) Name() string { return "polygon" }

// LastTrade returns the latest trade price and day change for a symbol.
func (p *Polygon) LastTrade(ctx context.Context, symbol string) (*models.PricePoint, error) {
	symbol = strings.ToUpper(symbol)

	var out polygonSnapshotResponse
	if err := p.get(ctx, "/v2/snapshot/locale/us/markets/stocks/tickers/"+symbol, nil, &out); err != nil {
		return nil, err
	}
	if out.Ticker == nil || out.Ticker.LastTrade.Price <= 0 {
		return nil, ErrNoData
	}

	return snapshotToPricePoint(*out.Ticker, p.Name()), nil
}

// DailyBar returns the OHLCV bar for a symbol on a YYYY-MM-DD date.
func (p *Polygon) DailyBar(ctx context.Context, symbol, date string) (*models.OHLCV, error) {
	symbol = strings.ToUpper(symbol)

	var out polygonDailyOpenClose
	err := p.get(ctx, fmt.Sprintf("/v1/open-close/%s/%s", symbol, date), map[string]string{
		"adjusted": "true",
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Status == "NOT_FOUND" || out.Close <= 0 {
		return nil, ErrNoData
	}

	ts, _ := time.Parse("2006-01-02", date)
	return &models.OHLCV{
		Symbol:    symbol,
		Timestamp: ts,
		Open:      out.Open,
		High:      out.High,
		Low:       out.Low,
		Close:     out.Close,
		Volume:    int64(out.Volume),
	}, nil
}

// DailyRange returns daily bars for a symbol between two dates inclusive.
func (p *Polygon) DailyRange(ctx context.Context, symbol, from, to string) ([]models.OHLCV, error) {
	symbol = strings.ToUpper(symbol)

	var out polygonAggsResponse
	err := p.get(ctx, fmt.Sprintf("/v2/aggs/ticker/%s/range/1/day/%s/%s", symbol, from, to), map[string]string{
		"adjusted": "true",
		"sort":     "asc",
		"limit":    "5000",
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Results) == 0 {
		return nil, ErrNoData
	}

	bars := make([]models.OHLCV, 0, len(out.Results))
	for _, r := range out.Results {
		bars = append(bars, models.OHLCV{
			Symbol:    symbol,
			Timestamp: time.UnixMilli(r.Timestamp).UTC(),
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    int64(r.Volume),
		})
	}
	return bars, nil
}

// SnapshotBatch returns current quotes for a list of symbols in one request.
func (p *Polygon) SnapshotBatch(ctx context.Context, symbols []string) (map[string]*models.PricePoint, error) {
	if len(symbols) == 0 {
		return map[string]*models.PricePoint{}, nil
	}

	upper := make([]string, len(symbols))
	for i, s := range symbols {
		upper[i] = strings.ToUpper(s)
	}

	var out polygonSnapshotResponse
	err := p.get(ctx, "/v2/snapshot/locale/us/markets/stocks/tickers", map[string]string{
		"tickers": strings.Join(upper, ","),
	}, &out)
	if err != nil {
		return nil, err
	}

	result := make(map[string]*models.PricePoint, len(out.Tickers))
	for _, snap := range out.Tickers {
		if snap.LastTrade.Price <= 0 {
			continue
		}
		result[snap.Ticker] = snapshotToPricePoint(snap, p.Name())
	}
	return result, nil
}

// Fundamentals returns the most recent reported financials for a symbol,
// normalized to millions of USD.
func (p *Polygon) Fundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	symbol = strings.ToUpper(symbol)

	var out polygonFinancialsResponse
	err := p.get(ctx, "/vX/reference/financials", map[string]string{
		"ticker":    symbol,
		"limit":     "1",
		"timeframe": "annual",
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Results) == 0 {
		return nil, ErrNoData
	}

	r := out.Results[0]
	fin := r.Financials
	const m = 1e6

	f := &models.Fundamentals{
		Symbol:            symbol,
		FiscalPeriod:      r.FiscalYear + "-" + r.FiscalPeriod,
		Revenue:           fin.IncomeStatement.Revenues.Value / m,
		OperatingIncome:   fin.IncomeStatement.OperatingIncome.Value / m,
		TotalDebt:         fin.BalanceSheet.LongTermDebt.Value / m,
		Cash:              fin.BalanceSheet.Cash.Value / m,
		SharesOutstanding: fin.IncomeStatement.DilutedAvgShares.Value / m,
	}
	// Investing cash flow is negative when the company spends; report capex
	// as a positive outflow.
	if icf := fin.CashFlowStatement.InvestingCashFlow.Value; icf < 0 {
		f.CapEx = -icf / m
	}
	return f, nil
}

// get performs a GET request against the provider and decodes the JSON body.
func (p *Polygon) get(ctx context.Context, path string, params map[string]string, out any) error {
	slog.Debug("polygon request", slog.String("path", path))

	req := p.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParam("apiKey", p.apiKey)
	if params != nil {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(path)
	if err != nil {
		slog.Error("polygon request failed", slog.String("path", path), slog.String("err", err.Error()))
		return fmt.Errorf("GET %s: %w", path, err)
	}

	if resp.StatusCode() == 429 {
		return ErrRateLimited
	}
	if resp.StatusCode() >= 400 {
		body := string(resp.Body())
		if len(body) > 1024 {
			body = body[:1024]
		}
		return &ErrHTTP{
			StatusCode: resp.StatusCode(),
			Status:     resp.Status(),
			Body:       body,
		}
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		slog.Error("polygon malformed response", slog.String("path", path), slog.String("err", err.Error()))
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// snapshotToPricePoint normalizes a snapshot into the internal price model.
func snapshotToPricePoint(snap polygonSnapshot, source string) *models.PricePoint {
	return &models.PricePoint{
		Symbol:    snap.Ticker,
		Date:      models.DateCurrent,
		Price:     snap.LastTrade.Price,
		Change:    snap.TodaysChange,
		ChangePct: snap.TodaysChangePerc,
		Timestamp: time.Now(),
		Source:    source,
	}
}

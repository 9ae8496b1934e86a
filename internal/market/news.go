package market

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/stockleague/stockleague/internal/config"
	"github.com/stockleague/stockleague/internal/infra"
	"github.com/stockleague/stockleague/pkg/models"
)

// NewsSource represents one financial news RSS feed.
type NewsSource struct {
	Name   string
	RSSURL string
}

// DefaultNewsSources lists the feeds used when none are configured.
var DefaultNewsSources = []NewsSource{
	{Name: "Yahoo Finance", RSSURL: "https://finance.yahoo.com/news/rssindex"},
	{Name: "CNBC Markets", RSSURL: "https://www.cnbc.com/id/20910258/device/rss/rss.html"},
	{Name: "MarketWatch", RSSURL: "https://feeds.content.dowjones.io/public/rss/mw_topstories"},
	{Name: "Seeking Alpha", RSSURL: "https://seekingalpha.com/market_currents.xml"},
}

// News fetches and filters financial news from RSS feeds.
type News struct {
	sources []NewsSource
	cache   *infra.Cache
	limiter *infra.RateLimiter
	parser  *gofeed.Parser
}

// NewNews creates a news source from configuration, falling back to the
// default feed list when none are configured.
func NewNews(cfg config.NewsConfig) *News {
	sources := make([]NewsSource, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		sources = append(sources, NewsSource{Name: s.Name, RSSURL: s.RSSURL})
	}
	if len(sources) == 0 {
		sources = DefaultNewsSources
	}

	ttl := time.Duration(cfg.CacheTTLSec) * time.Second
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &News{
		sources: sources,
		cache:   infra.NewCache(ttl),
		limiter: infra.NewRateLimiter(2, time.Second), // conservative: 2 req/s
		parser:  gofeed.NewParser(),
	}
}

// MarketNews returns recent market news merged from all configured sources.
func (n *News) MarketNews(ctx context.Context, limit int) ([]models.NewsArticle, error) {
	cacheKey := fmt.Sprintf("news:market:%d", limit)
	if cached, ok := n.cache.Get(cacheKey); ok {
		return cached.([]models.NewsArticle), nil
	}

	var mu sync.Mutex
	var all []models.NewsArticle

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range n.sources {
		src := src
		g.Go(func() error {
			articles, err := n.fetchRSS(gctx, src)
			if err != nil {
				// Non-critical: skip failed sources.
				return nil
			}
			mu.Lock()
			all = append(all, articles...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortArticlesByDate(all)

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	n.cache.Set(cacheKey, all)
	return all, nil
}

// StockNews returns articles mentioning a specific symbol.
func (n *News) StockNews(ctx context.Context, symbol string, limit int) ([]models.NewsArticle, error) {
	symbol = strings.ToUpper(symbol)

	cacheKey := fmt.Sprintf("news:stock:%s:%d", symbol, limit)
	if cached, ok := n.cache.Get(cacheKey); ok {
		return cached.([]models.NewsArticle), nil
	}

	// Get all market news first, then filter by symbol mention.
	all, err := n.MarketNews(ctx, 0)
	if err != nil {
		return nil, err
	}

	var filtered []models.NewsArticle
	keywords := symbolKeywords(symbol)
	for _, a := range all {
		if matchesAny(a.Title+" "+a.Summary, keywords) {
			filtered = append(filtered, a)
		}
	}

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}

	n.cache.Set(cacheKey, filtered)
	return filtered, nil
}

// --- Internal helpers ---

// fetchRSS parses an RSS feed and returns articles.
func (n *News) fetchRSS(ctx context.Context, src NewsSource) ([]models.NewsArticle, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	feed, err := n.parser.ParseURLWithContext(src.RSSURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse RSS %s: %w", src.Name, err)
	}

	articles := make([]models.NewsArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		a := models.NewsArticle{
			Title:   item.Title,
			URL:     item.Link,
			Source:  src.Name,
			Summary: cleanHTML(item.Description),
		}
		if item.PublishedParsed != nil {
			a.PublishedAt = *item.PublishedParsed
		}
		articles = append(articles, a)
	}

	return articles, nil
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

// symbolKeywords returns search keywords for a symbol.
// For example, "AAPL" → ["aapl", "apple"].
func symbolKeywords(symbol string) []string {
	s := strings.ToLower(symbol)
	keywords := []string{s}

	// Add common name mappings.
	nameMap := map[string][]string{
		"aapl":  {"apple"},
		"msft":  {"microsoft"},
		"googl": {"google", "alphabet"},
		"goog":  {"google", "alphabet"},
		"amzn":  {"amazon"},
		"nvda":  {"nvidia"},
		"meta":  {"meta platforms", "facebook"},
		"tsla":  {"tesla", "elon musk"},
		"jpm":   {"jpmorgan", "jp morgan"},
		"v":     {"visa"},
		"unh":   {"unitedhealth"},
		"xom":   {"exxon", "exxonmobil"},
		"jnj":   {"johnson & johnson"},
		"wmt":   {"walmart"},
		"pg":    {"procter & gamble", "procter and gamble"},
		"ko":    {"coca-cola", "coca cola"},
		"dis":   {"disney"},
		"nflx":  {"netflix"},
		"amd":   {"advanced micro devices"},
		"intc":  {"intel"},
		"ba":    {"boeing"},
		"f":     {"ford"},
		"gm":    {"general motors"},
		"t":     {"at&t"},
		"pfe":   {"pfizer"},
		"cvx":   {"chevron"},
		"orcl":  {"oracle"},
		"crm":   {"salesforce"},
		"uber":  {"uber"},
	}

	if extra, ok := nameMap[s]; ok {
		keywords = append(keywords, extra...)
	}

	return keywords
}

// matchesAny checks if text contains any of the keywords (case-insensitive).
func matchesAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// sortArticlesByDate sorts articles by published date, newest first.
// Stable so same-timestamp articles keep their feed order.
func sortArticlesByDate(articles []models.NewsArticle) {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PublishedAt.After(articles[j].PublishedAt)
	})
}

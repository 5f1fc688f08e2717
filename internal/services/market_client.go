package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/net/publicsuffix"

	"marketbot/bot-go/internal/config"
	"marketbot/bot-go/internal/metrics"
	"marketbot/bot-go/internal/models"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// MarketClient talks to the Yahoo Finance search and chart endpoints.
type MarketClient struct {
	hc            *http.Client
	searchBaseURL string
	chartBaseURL  string
	searchTimeout time.Duration
	chartTimeout  time.Duration
	searchCB      *circuitBreaker
	chartCB       *circuitBreaker
	metrics       *metrics.Metrics
}

func NewMarketClient(cfg config.Config, m *metrics.Metrics) *MarketClient {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		slog.Error("failed to create cookie jar", "error", err)
	}
	return &MarketClient{
		hc:            &http.Client{Jar: jar},
		searchBaseURL: strings.TrimRight(cfg.YahooSearchBaseURL, "/"),
		chartBaseURL:  strings.TrimRight(cfg.YahooChartBaseURL, "/"),
		searchTimeout: cfg.SearchTimeout,
		chartTimeout:  cfg.ChartDataTimeout,
		searchCB:      newCircuitBreaker(providerSearch, cfg.CircuitFailLimit, cfg.CircuitCooldown),
		chartCB:       newCircuitBreaker(providerChart, cfg.CircuitFailLimit, cfg.CircuitCooldown),
		metrics:       m,
	}
}

type yahooSearchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		Shortname string `json:"shortname"`
		Longname  string `json:"longname"`
		QuoteType string `json:"quoteType"`
	} `json:"quotes"`
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice decimal.NullDecimal `json:"regularMarketPrice"`
				Currency           string              `json:"currency"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []decimal.NullDecimal `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

// DailySeries is one fetch of daily closes plus the quote metadata.
type DailySeries struct {
	Symbol      string
	Currency    string
	MarketPrice decimal.NullDecimal
	Series      models.PriceSeries
}

// SearchQuotes returns provider results in provider order. Entries keep their
// raw quote type; entries without a symbol are dropped.
func (c *MarketClient) SearchQuotes(ctx context.Context, query string) ([]models.SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.searchTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/v1/finance/search?q=%s&quotesCount=50&newsCount=0", c.searchBaseURL, url.QueryEscape(query))
	var payload yahooSearchResponse
	err := guarded(c.metrics, providerSearch, c.searchCB, func() error {
		return c.getJSON(ctx, providerSearch, u, &payload)
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.SearchResult, 0, len(payload.Quotes))
	for _, q := range payload.Quotes {
		if q.Symbol == "" {
			continue
		}
		name := q.Shortname
		if name == "" {
			name = q.Longname
		}
		if name == "" {
			name = q.Symbol
		}
		qt := models.QuoteType(q.QuoteType)
		if qt == "" {
			qt = models.QuoteOther
		}
		out = append(out, models.SearchResult{Symbol: q.Symbol, Name: name, Type: qt})
	}
	return out, nil
}

// FetchDaily loads daily closes for ticker over rng (e.g. "1y"). Null closes
// are dropped here so callers never see them.
func (c *MarketClient) FetchDaily(ctx context.Context, ticker, rng string) (DailySeries, error) {
	ctx, cancel := context.WithTimeout(ctx, c.chartTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=%s", c.chartBaseURL, url.PathEscape(ticker), url.QueryEscape(rng))
	var payload yahooChartResponse
	err := guarded(c.metrics, providerChart, c.chartCB, func() error {
		if err := c.getJSON(ctx, providerChart, u, &payload); err != nil {
			return err
		}
		if len(payload.Chart.Result) == 0 {
			return fmt.Errorf("%s: %w", ticker, ErrTickerNotFound)
		}
		return nil
	})
	if err != nil {
		return DailySeries{}, err
	}

	res := payload.Chart.Result[0]
	var closes []decimal.NullDecimal
	if len(res.Indicators.Quote) > 0 {
		closes = res.Indicators.Quote[0].Close
	}
	n := len(res.Timestamp)
	if len(closes) < n {
		n = len(closes)
	}
	series := make(models.PriceSeries, 0, n)
	for i := 0; i < n; i++ {
		if !closes[i].Valid {
			continue
		}
		series = append(series, models.PricePoint{Timestamp: res.Timestamp[i], Close: closes[i].Decimal})
	}
	currency := res.Meta.Currency
	if currency == "" {
		currency = "???"
	}
	return DailySeries{
		Symbol:      ticker,
		Currency:    currency,
		MarketPrice: res.Meta.RegularMarketPrice,
		Series:      series,
	}, nil
}

// BreakerStates reports each provider breaker for health output.
func (c *MarketClient) BreakerStates() map[string]string {
	return map[string]string{
		providerSearch: c.searchCB.state(),
		providerChart:  c.chartCB.state(),
	}
}

func (c *MarketClient) getJSON(ctx context.Context, provider, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	res, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", provider, err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return newUpstreamError(provider, res)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return &decodeError{err: err}
	}
	return nil
}

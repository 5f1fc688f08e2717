package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"marketbot/bot-go/internal/models"
)

const (
	dmaWindow = 200
	// historyRange is always fetched so the 200-day average is available for
	// every requested period.
	historyRange = "1y"
)

var hundred = decimal.NewFromInt(100)

type dailyFetcher interface {
	FetchDaily(ctx context.Context, ticker, rng string) (DailySeries, error)
}

type Analyzer struct {
	client dailyFetcher
}

func NewAnalyzer(client dailyFetcher) *Analyzer {
	return &Analyzer{client: client}
}

// Analyze fetches a year of daily closes for ticker and derives the figures
// for period. Any error means there is no result to show.
func (a *Analyzer) Analyze(ctx context.Context, ticker string, period models.Period) (models.Analysis, error) {
	if !period.Valid() {
		return models.Analysis{}, fmt.Errorf("analyze %s: unknown period %q", ticker, period)
	}
	daily, err := a.client.FetchDaily(ctx, ticker, historyRange)
	if err != nil {
		return models.Analysis{}, fmt.Errorf("analyze %s: %w", ticker, err)
	}
	latest := decimal.Decimal{}
	if daily.MarketPrice.Valid {
		latest = daily.MarketPrice.Decimal
	} else if n := len(daily.Series); n > 0 {
		latest = daily.Series[n-1].Close
	}
	return ComputeAnalysis(ticker, daily.Currency, latest, daily.Series, period)
}

// ComputeAnalysis derives the moving average, trend and period return from a
// null-free series. latest is the quoted current price.
func ComputeAnalysis(symbol, currency string, latest decimal.Decimal, series models.PriceSeries, period models.Period) (models.Analysis, error) {
	if len(series) == 0 {
		return models.Analysis{}, fmt.Errorf("analyze %s: %w", symbol, ErrNoPriceData)
	}

	out := models.Analysis{
		Symbol:      symbol,
		LatestPrice: latest,
		Currency:    currency,
		Period:      period,
		Trend:       models.TrendInsufficient,
	}
	if dma, ok := MovingAverage(series, dmaWindow); ok {
		out.DMA200 = &dma
		out.Trend = ClassifyTrend(latest, dma)
	}

	window := series.Tail(period.TradingDays())
	change, err := PercentChange(window)
	if err != nil {
		return models.Analysis{}, fmt.Errorf("analyze %s: %w", symbol, err)
	}
	out.Prices = window.Closes()
	out.Timestamps = window.Timestamps()
	out.PercentChange = change
	return out, nil
}

// MovingAverage is the mean of the trailing n closes; ok is false when the
// series is shorter than n.
func MovingAverage(series models.PriceSeries, n int) (decimal.Decimal, bool) {
	if n <= 0 || len(series) < n {
		return decimal.Decimal{}, false
	}
	sum := decimal.Zero
	for _, p := range series[len(series)-n:] {
		sum = sum.Add(p.Close)
	}
	return sum.Div(decimal.NewFromInt(int64(n))), true
}

func ClassifyTrend(price, dma decimal.Decimal) models.Trend {
	switch price.Cmp(dma) {
	case 1:
		return models.TrendBullish
	case -1:
		return models.TrendBearish
	default:
		return models.TrendNeutral
	}
}

// PercentChange is (last-first)/first*100 over window.
func PercentChange(window models.PriceSeries) (decimal.Decimal, error) {
	if len(window) == 0 {
		return decimal.Decimal{}, ErrNoPriceData
	}
	first := window[0].Close
	if first.IsZero() {
		return decimal.Decimal{}, ErrZeroBasePrice
	}
	last := window[len(window)-1].Close
	return last.Sub(first).Div(first).Mul(hundred), nil
}

package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type PricePoint struct {
	Timestamp int64
	Close     decimal.Decimal
}

// PriceSeries is ordered by time and never holds null closes.
type PriceSeries []PricePoint

func (s PriceSeries) Closes() []decimal.Decimal {
	out := make([]decimal.Decimal, len(s))
	for i, p := range s {
		out[i] = p.Close
	}
	return out
}

func (s PriceSeries) Timestamps() []int64 {
	out := make([]int64, len(s))
	for i, p := range s {
		out[i] = p.Timestamp
	}
	return out
}

// Tail returns the most recent n points, or the whole series when shorter.
func (s PriceSeries) Tail(n int) PriceSeries {
	if n <= 0 || n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

type Period string

const (
	Period1M Period = "1mo"
	Period3M Period = "3mo"
	Period6M Period = "6mo"
	Period1Y Period = "1y"
)

// Periods is the order period buttons are rendered in.
var Periods = []Period{Period1M, Period3M, Period6M, Period1Y}

var periodDays = map[Period]int{
	Period1M: 22,
	Period3M: 66,
	Period6M: 132,
	Period1Y: 252,
}

var periodButtons = map[Period]string{
	Period1M: "1M",
	Period3M: "3M",
	Period6M: "6M",
	Period1Y: "1Y",
}

// TradingDays is the fixed trailing window for the period.
func (p Period) TradingDays() int {
	return periodDays[p]
}

func (p Period) Valid() bool {
	_, ok := periodDays[p]
	return ok
}

func (p Period) Button() string {
	if b, ok := periodButtons[p]; ok {
		return b
	}
	return string(p)
}

func ParsePeriod(s string) (Period, error) {
	p := Period(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown period %q", s)
	}
	return p, nil
}

type Trend string

const (
	TrendBullish      Trend = "BULLISH"
	TrendBearish      Trend = "BEARISH"
	TrendNeutral      Trend = "NEUTRAL"
	TrendInsufficient Trend = "INSUFFICIENT_HISTORY"
)

type Analysis struct {
	Symbol        string
	LatestPrice   decimal.Decimal
	DMA200        *decimal.Decimal
	Trend         Trend
	Currency      string
	Period        Period
	Prices        []decimal.Decimal
	Timestamps    []int64
	PercentChange decimal.Decimal
}

package handlers

import (
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"marketbot/bot-go/internal/models"
)

const (
	maxListed   = 10
	maxNameRune = 20

	textUsage     = "⚠️ Type a name.\nExample: <code>/analyze btc</code>"
	textNoResults = "❌ No results found."
	textExpired   = "⌛ This search has expired. Start again with /analyze &lt;name&gt;."
	textFailure   = "⚠️ Something went wrong. Please try again."
	textNoChart   = "⚠️ Chart unavailable right now."
)

var printer = message.NewPrinter(language.English)

var currencySigns = map[string]string{
	"USD": "$",
	"INR": "₹",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
}

var trendTexts = map[models.Trend]string{
	models.TrendBullish:      "🟢 BULLISH (Price > 200 DMA)",
	models.TrendBearish:      "🔴 BEARISH (Price < 200 DMA)",
	models.TrendNeutral:      "⚪ NEUTRAL (Price = 200 DMA)",
	models.TrendInsufficient: "⚠️ New Listing (No 200 DMA)",
}

func currencySign(code string) string {
	if s, ok := currencySigns[strings.ToUpper(code)]; ok {
		return s
	}
	return code + " "
}

// formatPrice groups thousands and keeps six decimals for sub-unit prices.
func formatPrice(currency string, d decimal.Decimal) string {
	f := d.InexactFloat64()
	if d.Abs().LessThan(decimal.NewFromInt(1)) && !d.IsZero() {
		return currencySign(currency) + printer.Sprintf("%.6f", f)
	}
	return currencySign(currency) + printer.Sprintf("%.2f", f)
}

func formatChange(pct decimal.Decimal) string {
	emoji := "🔴"
	if pct.IsPositive() {
		emoji = "🟢"
	}
	return fmt.Sprintf("%s %+.2f%%", emoji, pct.InexactFloat64())
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Summary is the HTML trend summary for one analysis.
func Summary(name string, a models.Analysis, botName string) string {
	dma := "N/A"
	if a.DMA200 != nil {
		dma = formatPrice(a.Currency, *a.DMA200)
	}
	trend, ok := trendTexts[a.Trend]
	if !ok {
		trend = string(a.Trend)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>%s (%s)</b>\n", html.EscapeString(name), html.EscapeString(a.Symbol))
	fmt.Fprintf(&b, "💰 Price: %s\n", formatPrice(a.Currency, a.LatestPrice))
	fmt.Fprintf(&b, "📏 200 DMA: %s\n", dma)
	fmt.Fprintf(&b, "📉 Trend: %s\n\n", trend)
	fmt.Fprintf(&b, "⏳ <b>%s Return:</b> %s", a.Period.Button(), formatChange(a.PercentChange))
	if botName != "" {
		fmt.Fprintf(&b, "\nvia @%s", botName)
	}
	return b.String()
}

// actionButton returns false when the payload cannot be encoded; the button
// is then left out.
func actionButton(text string, a Action) (Button, bool) {
	data, err := EncodeAction(a)
	if err != nil {
		slog.Warn("button omitted", "text", text, "kind", a.Kind, "symbol", a.Symbol, "error", err)
		return Button{}, false
	}
	return Button{Text: text, Data: data}, true
}

func appendRow(rows [][]Button, row ...Button) [][]Button {
	if len(row) == 0 {
		return rows
	}
	return append(rows, row)
}

func menuScreen(title, session string, buckets models.Buckets) Screen {
	var rows [][]Button
	for _, cat := range buckets.NonEmpty() {
		label := fmt.Sprintf("%s (%d)", cat.Label(), len(buckets[cat]))
		if btn, ok := actionButton(label, Action{Kind: KindCategory, Session: session, Category: cat}); ok {
			rows = appendRow(rows, btn)
		}
	}
	return Screen{Text: title, Buttons: rows}
}

func listScreen(session string, cat models.Bucket, items []models.SearchResult) Screen {
	var rows [][]Button
	if len(items) > maxListed {
		items = items[:maxListed]
	}
	for _, it := range items {
		label := fmt.Sprintf("%s - %s", it.Symbol, truncateRunes(it.Name, maxNameRune))
		if btn, ok := actionButton(label, Action{Kind: KindSymbol, Session: session, Category: cat, Symbol: it.Symbol}); ok {
			rows = appendRow(rows, btn)
		}
	}
	if back, ok := actionButton("⬅️ Back", Action{Kind: KindMenu, Session: session}); ok {
		rows = appendRow(rows, back)
	}
	return Screen{
		Text:    fmt.Sprintf("📂 <b>%s Results:</b>", html.EscapeString(cat.Label())),
		Buttons: rows,
	}
}

func periodRow(session string, cat models.Bucket, symbol string) []Button {
	row := make([]Button, 0, len(models.Periods))
	for _, p := range models.Periods {
		if btn, ok := actionButton(p.Button(), Action{Kind: KindPeriod, Session: session, Category: cat, Symbol: symbol, Period: p}); ok {
			row = append(row, btn)
		}
	}
	return row
}

func detailButtons(session string, cat models.Bucket, symbol string) [][]Button {
	rows := appendRow(nil, periodRow(session, cat, symbol)...)
	if back, ok := actionButton("⬅️ Back", Action{Kind: KindCategory, Session: session, Category: cat}); ok {
		rows = appendRow(rows, back)
	}
	return rows
}

func chartButtons(session string, cat models.Bucket, symbol, groupLink string) [][]Button {
	rows := appendRow(nil, periodRow(session, cat, symbol)...)
	if back, ok := actionButton("⬅️ Back Menu", Action{Kind: KindSymbol, Session: session, Category: cat, Symbol: symbol}); ok {
		rows = appendRow(rows, back)
	}
	if groupLink != "" {
		rows = appendRow(rows, Button{Text: "⚡ Join Group", URL: groupLink})
	}
	return rows
}

func failureScreen(symbol, session string, cat models.Bucket) Screen {
	s := Screen{Text: fmt.Sprintf("❌ Failed to fetch data for %s.", html.EscapeString(symbol))}
	if back, ok := actionButton("⬅️ Back", Action{Kind: KindCategory, Session: session, Category: cat}); ok {
		s.Buttons = appendRow(s.Buttons, back)
	}
	return s
}

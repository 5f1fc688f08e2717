package handlers

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"marketbot/bot-go/internal/models"
)

func TestSummaryFormatting(t *testing.T) {
	dma := decimal.RequireFromString("1100")
	got := Summary("Apple <Inc>", models.Analysis{
		Symbol:        "AAPL",
		LatestPrice:   decimal.RequireFromString("1234.56"),
		DMA200:        &dma,
		Trend:         models.TrendBullish,
		Currency:      "USD",
		Period:        models.Period1Y,
		PercentChange: decimal.RequireFromString("12.346"),
	}, "marketbot")

	want := "📊 <b>Apple &lt;Inc&gt; (AAPL)</b>\n" +
		"💰 Price: $1,234.56\n" +
		"📏 200 DMA: $1,100.00\n" +
		"📉 Trend: 🟢 BULLISH (Price > 200 DMA)\n\n" +
		"⏳ <b>1Y Return:</b> 🟢 +12.35%\n" +
		"via @marketbot"
	if got != want {
		t.Fatalf("expected\n%s\ngot\n%s", want, got)
	}
}

func TestSummaryWithoutAverage(t *testing.T) {
	got := Summary("Newco", models.Analysis{
		Symbol:        "NEW.NS",
		LatestPrice:   decimal.RequireFromString("50"),
		Trend:         models.TrendInsufficient,
		Currency:      "INR",
		Period:        models.Period3M,
		PercentChange: decimal.RequireFromString("-4.5"),
	}, "")
	for _, part := range []string{"₹50.00", "200 DMA: N/A", "New Listing (No 200 DMA)", "3M Return:</b> 🔴 -4.50%"} {
		if !strings.Contains(got, part) {
			t.Fatalf("expected %q in\n%s", part, got)
		}
	}
	if strings.Contains(got, "via @") {
		t.Fatal("expected no footer without a bot name")
	}
}

func TestCurrencySign(t *testing.T) {
	cases := map[string]string{"USD": "$", "INR": "₹", "EUR": "€", "GBP": "£", "JPY": "¥", "CHF": "CHF "}
	for code, want := range cases {
		if got := currencySign(code); got != want {
			t.Fatalf("%s: expected %q, got %q", code, want, got)
		}
	}
}

func TestListScreenTruncates(t *testing.T) {
	var items []models.SearchResult
	for i := 0; i < 15; i++ {
		items = append(items, models.SearchResult{Symbol: "S" + string(rune('A'+i)), Name: "A very long instrument name indeed"})
	}
	s := listScreen("sess", models.BucketUSGlobal, items)
	if len(s.Buttons) != maxListed+1 {
		t.Fatalf("expected %d rows, got %d", maxListed+1, len(s.Buttons))
	}
	if s.Buttons[0][0].Text != "SA - A very long instrume" {
		t.Fatalf("unexpected label %q", s.Buttons[0][0].Text)
	}
	back, err := DecodeAction(s.Buttons[maxListed][0].Data)
	if err != nil || back.Kind != KindMenu {
		t.Fatalf("expected back to menu, got %+v (%v)", back, err)
	}
}

func TestMenuScreenSkipsEmptyBuckets(t *testing.T) {
	s := menuScreen("title", "sess", models.Buckets{
		models.BucketCrypto:   {{Symbol: "BTC-USD"}},
		models.BucketIndia:    {},
		models.BucketUSGlobal: {{Symbol: "A"}, {Symbol: "B"}},
	})
	if len(s.Buttons) != 2 {
		t.Fatalf("expected 2 buttons, got %d", len(s.Buttons))
	}
	if s.Buttons[0][0].Text != "🌎 Global (2)" || s.Buttons[1][0].Text != "₿ Crypto (1)" {
		t.Fatalf("unexpected menu %+v", s.Buttons)
	}
}

func TestButtonsOmittedWhenPayloadTooLong(t *testing.T) {
	long := strings.Repeat("Z", 70)
	rows := detailButtons("sess", models.BucketOther, long)
	if len(rows) != 1 {
		t.Fatalf("expected only the back row, got %d rows", len(rows))
	}
}

func TestChartButtonsJoinGroup(t *testing.T) {
	rows := chartButtons("sess", models.BucketCrypto, "BTC-USD", "https://t.me/group")
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if len(rows[0]) != 4 {
		t.Fatalf("expected 4 period buttons, got %d", len(rows[0]))
	}
	if rows[2][0].URL != "https://t.me/group" || rows[2][0].Data != "" {
		t.Fatalf("expected join group url button, got %+v", rows[2][0])
	}
	if got := chartButtons("sess", models.BucketCrypto, "BTC-USD", ""); len(got) != 2 {
		t.Fatalf("expected no join row without a link, got %d rows", len(got))
	}
}

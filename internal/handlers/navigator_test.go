package handlers

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"marketbot/bot-go/internal/models"
)

type call struct {
	op        string
	chatID    int64
	messageID int
	replyTo   int
	screen    Screen
	text      string
}

type fakeMessenger struct {
	mu      sync.Mutex
	calls   []call
	nextID  int
	editErr error
}

func (f *fakeMessenger) Send(_ context.Context, chatID int64, replyTo int, s Screen) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.calls = append(f.calls, call{op: "send", chatID: chatID, replyTo: replyTo, messageID: f.nextID, screen: s})
	return f.nextID, nil
}

func (f *fakeMessenger) Edit(_ context.Context, chatID int64, messageID int, s Screen) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: "edit", chatID: chatID, messageID: messageID, screen: s})
	return f.editErr
}

func (f *fakeMessenger) Delete(_ context.Context, chatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: "delete", chatID: chatID, messageID: messageID})
	return nil
}

func (f *fakeMessenger) Answer(_ context.Context, callbackID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op: "answer", text: text})
	return nil
}

func (f *fakeMessenger) ops() string {
	var out []string
	for _, c := range f.calls {
		out = append(out, c.op)
	}
	return strings.Join(out, ",")
}

func (f *fakeMessenger) last() call {
	return f.calls[len(f.calls)-1]
}

func (f *fakeMessenger) reset() {
	f.calls = nil
}

type fakeSearcher struct {
	buckets models.Buckets
}

func (f fakeSearcher) Search(context.Context, string) (models.Buckets, int) {
	return f.buckets, f.buckets.FlatCount()
}

type fakeAnalyzer struct {
	err     error
	panics  bool
	periods []models.Period
}

func (f *fakeAnalyzer) Analyze(_ context.Context, ticker string, period models.Period) (models.Analysis, error) {
	if f.panics {
		panic("boom")
	}
	f.periods = append(f.periods, period)
	if f.err != nil {
		return models.Analysis{}, f.err
	}
	dma := decimal.NewFromInt(90)
	return models.Analysis{
		Symbol:        ticker,
		LatestPrice:   decimal.NewFromInt(100),
		DMA200:        &dma,
		Trend:         models.TrendBullish,
		Currency:      "USD",
		Period:        period,
		Prices:        []decimal.Decimal{decimal.NewFromInt(95), decimal.NewFromInt(100)},
		Timestamps:    []int64{1, 2},
		PercentChange: decimal.RequireFromString("5.26"),
	}, nil
}

type fakeCharts struct {
	art models.ChartArtifact
	ok  bool
}

func (f fakeCharts) Render(context.Context, models.ChartRequest) (models.ChartArtifact, bool) {
	return f.art, f.ok
}

type fakeSessions struct {
	mu    sync.Mutex
	data  map[string]models.Buckets
	puts  int
	err   error
	count int
}

func (f *fakeSessions) Put(_ context.Context, b models.Buckets) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.puts++
	f.count++
	id := "sess" + string(rune('0'+f.count))
	f.data[id] = b
	return id, nil
}

func (f *fakeSessions) Get(_ context.Context, id string) (models.Buckets, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.data[id]
	return b, ok
}

var testBuckets = models.Buckets{
	models.BucketCrypto: {{Symbol: "BTC-USD", Name: "Bitcoin USD", Type: models.QuoteCrypto}},
	models.BucketFunds:  {{Symbol: "GBTC", Name: "Grayscale Bitcoin Trust", Type: models.QuoteETF}},
}

type harness struct {
	nav      *Navigator
	msg      *fakeMessenger
	analyzer *fakeAnalyzer
	sessions *fakeSessions
}

func newHarness(charts fakeCharts) *harness {
	h := &harness{
		msg:      &fakeMessenger{nextID: 100},
		analyzer: &fakeAnalyzer{},
		sessions: &fakeSessions{data: map[string]models.Buckets{}},
	}
	h.nav = NewNavigator(h.msg, fakeSearcher{buckets: testBuckets}, h.analyzer, charts, h.sessions, nil, Options{BotName: "testbot", GroupLink: "https://t.me/g"})
	return h
}

func payload(t *testing.T, a Action) string {
	t.Helper()
	s, err := EncodeAction(a)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return s
}

func TestAnalyzeCommandShowsMenu(t *testing.T) {
	h := newHarness(fakeCharts{})
	h.nav.Handle(context.Background(), Event{ChatID: 7, MessageID: 3, Command: "analyze", Args: "btc"})

	if h.msg.ops() != "send,edit" {
		t.Fatalf("expected placeholder then edit, got %s", h.msg.ops())
	}
	first := h.msg.calls[0]
	if first.replyTo != 3 || !strings.Contains(first.screen.Text, "Searching markets for 'btc'") {
		t.Fatalf("unexpected placeholder %+v", first)
	}
	menu := h.msg.last()
	if menu.messageID != first.messageID {
		t.Fatalf("expected placeholder %d to be edited, got %d", first.messageID, menu.messageID)
	}
	if len(menu.screen.Buttons) != 2 || menu.screen.Buttons[0][0].Text != "₿ Crypto (1)" {
		t.Fatalf("unexpected menu %+v", menu.screen.Buttons)
	}
	if h.sessions.puts != 1 {
		t.Fatalf("expected one stored session, got %d", h.sessions.puts)
	}
}

func TestAnalyseAliasAndUsage(t *testing.T) {
	h := newHarness(fakeCharts{})
	h.nav.Handle(context.Background(), Event{ChatID: 7, MessageID: 3, Command: "analyse", Args: "  "})
	if h.msg.ops() != "send" || h.msg.last().screen.Text != textUsage {
		t.Fatalf("expected usage reply, got %s", h.msg.ops())
	}
	if h.sessions.puts != 0 {
		t.Fatal("expected no session for usage reply")
	}
}

func TestAnalyzeNoResults(t *testing.T) {
	h := newHarness(fakeCharts{})
	h.nav.search = fakeSearcher{buckets: models.Buckets{}}
	h.nav.Handle(context.Background(), Event{ChatID: 7, MessageID: 3, Command: "analyze", Args: "zzzz"})
	if h.msg.last().screen.Text != textNoResults {
		t.Fatalf("expected no results, got %q", h.msg.last().screen.Text)
	}
	if h.sessions.puts != 0 {
		t.Fatal("expected no session without results")
	}
}

func TestAnalyzeStoreFailure(t *testing.T) {
	h := newHarness(fakeCharts{})
	h.sessions.err = errors.New("redis down")
	h.nav.Handle(context.Background(), Event{ChatID: 7, MessageID: 3, Command: "analyze", Args: "btc"})
	if h.msg.last().screen.Text != textFailure {
		t.Fatalf("expected failure notice, got %q", h.msg.last().screen.Text)
	}
}

func TestUnknownSessionIsExpired(t *testing.T) {
	h := newHarness(fakeCharts{})
	for _, kind := range []ActionKind{KindMenu, KindCategory, KindSymbol, KindPeriod} {
		h.msg.reset()
		data := payload(t, Action{Kind: kind, Session: "gone", Category: models.BucketCrypto, Symbol: "BTC-USD", Period: models.Period1M})
		h.nav.Handle(context.Background(), Event{ChatID: 7, MessageID: 50, CallbackID: "cb", Data: data})
		if h.msg.ops() != "answer,edit" {
			t.Fatalf("%s: expected answer then edit, got %s", kind, h.msg.ops())
		}
		if !strings.Contains(h.msg.last().screen.Text, "This search has expired") {
			t.Fatalf("%s: expected expired notice, got %q", kind, h.msg.last().screen.Text)
		}
		if len(h.msg.last().screen.Buttons) != 0 {
			t.Fatalf("%s: expected no buttons on expired notice", kind)
		}
	}
	if h.sessions.puts != 0 || len(h.analyzer.periods) != 0 {
		t.Fatal("expected no store mutation and no analysis")
	}
}

func TestMalformedCallbackIsAcknowledged(t *testing.T) {
	h := newHarness(fakeCharts{})
	h.nav.Handle(context.Background(), Event{ChatID: 7, MessageID: 50, CallbackID: "cb", Data: "CAT_INDIA_1234"})
	if h.msg.ops() != "answer" {
		t.Fatalf("expected only an answer, got %s", h.msg.ops())
	}
}

func TestCategoryAndBack(t *testing.T) {
	h := newHarness(fakeCharts{})
	h.sessions.data["s1"] = testBuckets

	h.nav.Handle(context.Background(), Event{ChatID: 7, MessageID: 50, CallbackID: "cb", Data: payload(t, Action{Kind: KindCategory, Session: "s1", Category: models.BucketFunds})})
	list := h.msg.last()
	if list.op != "edit" || !strings.Contains(list.screen.Text, "Funds") {
		t.Fatalf("expected funds list edit, got %+v", list)
	}
	if list.screen.Buttons[0][0].Text != "GBTC - Grayscale Bitcoin Tr" {
		t.Fatalf("unexpected row %q", list.screen.Buttons[0][0].Text)
	}

	h.nav.Handle(context.Background(), Event{ChatID: 7, MessageID: 50, CallbackID: "cb", Data: list.screen.Buttons[1][0].Data})
	menu := h.msg.last()
	if menu.op != "edit" || len(menu.screen.Buttons) != 2 {
		t.Fatalf("expected menu edit, got %+v", menu)
	}
}

func TestSymbolShowsDetail(t *testing.T) {
	h := newHarness(fakeCharts{})
	h.sessions.data["s1"] = testBuckets
	h.nav.Handle(context.Background(), Event{ChatID: 7, MessageID: 50, CallbackID: "cb", Data: payload(t, Action{Kind: KindSymbol, Session: "s1", Category: models.BucketCrypto, Symbol: "BTC-USD"})})

	if h.msg.ops() != "answer,edit" {
		t.Fatalf("expected answer then edit, got %s", h.msg.ops())
	}
	if h.msg.calls[0].text != "Analyzing BTC-USD..." {
		t.Fatalf("unexpected toast %q", h.msg.calls[0].text)
	}
	if len(h.analyzer.periods) != 1 || h.analyzer.periods[0] != models.Period1Y {
		t.Fatalf("expected a 1y analysis, got %v", h.analyzer.periods)
	}
	detail := h.msg.last().screen
	if !strings.Contains(detail.Text, "Bitcoin USD (BTC-USD)") || !strings.Contains(detail.Text, "via @testbot") {
		t.Fatalf("unexpected detail %q", detail.Text)
	}
	back, err := DecodeAction(detail.Buttons[1][0].Data)
	if err != nil || back.Kind != KindCategory || back.Category != models.BucketCrypto {
		t.Fatalf("expected back to the crypto list, got %+v (%v)", back, err)
	}
}

func TestSymbolAnalysisFailure(t *testing.T) {
	h := newHarness(fakeCharts{})
	h.sessions.data["s1"] = testBuckets
	h.analyzer.err = errors.New("ticker not found")
	h.nav.Handle(context.Background(), Event{ChatID: 7, MessageID: 50, CallbackID: "cb", Data: payload(t, Action{Kind: KindSymbol, Session: "s1", Category: models.BucketCrypto, Symbol: "BTC-USD"})})
	if h.msg.last().screen.Text != "❌ Failed to fetch data for BTC-USD." {
		t.Fatalf("unexpected failure text %q", h.msg.last().screen.Text)
	}
	if len(h.msg.last().screen.Buttons) != 1 {
		t.Fatal("expected a back button on failure")
	}
}

func TestPeriodFromTextRecreatesAsPhoto(t *testing.T) {
	h := newHarness(fakeCharts{art: models.ChartArtifact{Image: []byte("png")}, ok: true})
	h.sessions.data["s1"] = testBuckets
	h.nav.Handle(context.Background(), Event{ChatID: 7, MessageID: 50, CallbackID: "cb", Data: payload(t, Action{Kind: KindPeriod, Session: "s1", Category: models.BucketCrypto, Symbol: "BTC-USD", Period: models.Period3M})})

	if h.msg.ops() != "answer,delete,send" {
		t.Fatalf("expected delete and send for a kind change, got %s", h.msg.ops())
	}
	if h.msg.calls[0].text != "Generating 3mo Chart..." {
		t.Fatalf("unexpected toast %q", h.msg.calls[0].text)
	}
	if h.msg.calls[1].messageID != 50 {
		t.Fatalf("expected message 50 deleted, got %d", h.msg.calls[1].messageID)
	}
	photo := h.msg.last().screen
	if string(photo.Photo) != "png" || !strings.Contains(photo.Text, "3M Return") {
		t.Fatalf("unexpected chart screen %+v", photo)
	}
	if len(photo.Buttons) != 3 || photo.Buttons[2][0].URL != "https://t.me/g" {
		t.Fatalf("unexpected chart buttons %+v", photo.Buttons)
	}
	if h.analyzer.periods[0] != models.Period3M {
		t.Fatalf("expected 3mo analysis, got %v", h.analyzer.periods)
	}
}

func TestPeriodFromPhotoEditsInPlace(t *testing.T) {
	h := newHarness(fakeCharts{art: models.ChartArtifact{Image: []byte("png")}, ok: true})
	h.sessions.data["s1"] = testBuckets
	h.nav.Handle(context.Background(), Event{ChatID: 7, MessageID: 50, HasMedia: true, CallbackID: "cb", Data: payload(t, Action{Kind: KindPeriod, Session: "s1", Category: models.BucketCrypto, Symbol: "BTC-USD", Period: models.Period1M})})
	if h.msg.ops() != "answer,edit" {
		t.Fatalf("expected in-place media edit, got %s", h.msg.ops())
	}
}

func TestFailedEditFallsBackToSend(t *testing.T) {
	h := newHarness(fakeCharts{art: models.ChartArtifact{Image: []byte("png")}, ok: true})
	h.sessions.data["s1"] = testBuckets
	h.msg.editErr = errors.New("Bad Request: message can't be edited")
	h.nav.Handle(context.Background(), Event{ChatID: 7, MessageID: 50, HasMedia: true, CallbackID: "cb", Data: payload(t, Action{Kind: KindPeriod, Session: "s1", Category: models.BucketCrypto, Symbol: "BTC-USD", Period: models.Period1M})})
	if h.msg.ops() != "answer,edit,delete,send" {
		t.Fatalf("expected edit fallback, got %s", h.msg.ops())
	}
}

func TestBackFromChartRecreatesText(t *testing.T) {
	h := newHarness(fakeCharts{art: models.ChartArtifact{Image: []byte("png")}, ok: true})
	h.sessions.data["s1"] = testBuckets
	backData := chartButtons("s1", models.BucketCrypto, "BTC-USD", "")[1][0].Data
	h.nav.Handle(context.Background(), Event{ChatID: 7, MessageID: 60, HasMedia: true, CallbackID: "cb", Data: backData})
	if h.msg.ops() != "answer,delete,send" {
		t.Fatalf("expected delete and send back to text, got %s", h.msg.ops())
	}
	if h.msg.last().screen.IsPhoto() {
		t.Fatal("expected a text detail screen")
	}
}

func TestChartUnavailable(t *testing.T) {
	h := newHarness(fakeCharts{ok: false})
	h.sessions.data["s1"] = testBuckets
	h.nav.Handle(context.Background(), Event{ChatID: 7, MessageID: 50, CallbackID: "cb", Data: payload(t, Action{Kind: KindPeriod, Session: "s1", Category: models.BucketCrypto, Symbol: "BTC-USD", Period: models.Period6M})})
	if h.msg.ops() != "answer,edit" {
		t.Fatalf("expected text edit in place, got %s", h.msg.ops())
	}
	last := h.msg.last().screen
	if !strings.Contains(last.Text, textNoChart) || len(last.Buttons) != 3 {
		t.Fatalf("unexpected fallback screen %+v", last)
	}
}

func TestChartURLModeIsText(t *testing.T) {
	h := newHarness(fakeCharts{art: models.ChartArtifact{URL: "https://quickchart.io/chart?c=x&w=800"}, ok: true})
	h.sessions.data["s1"] = testBuckets
	h.nav.Handle(context.Background(), Event{ChatID: 7, MessageID: 50, CallbackID: "cb", Data: payload(t, Action{Kind: KindPeriod, Session: "s1", Category: models.BucketCrypto, Symbol: "BTC-USD", Period: models.Period1Y})})
	if h.msg.ops() != "answer,edit" {
		t.Fatalf("expected text edit in place, got %s", h.msg.ops())
	}
	last := h.msg.last().screen
	if !last.LinkPreview || !strings.Contains(last.Text, `href="https://quickchart.io/chart?c=x&amp;w=800"`) {
		t.Fatalf("unexpected url screen %+v", last)
	}
}

func TestPanicIsRecovered(t *testing.T) {
	h := newHarness(fakeCharts{})
	h.sessions.data["s1"] = testBuckets
	h.analyzer.panics = true
	h.nav.Handle(context.Background(), Event{ChatID: 7, MessageID: 50, CallbackID: "cb", Data: payload(t, Action{Kind: KindSymbol, Session: "s1", Category: models.BucketCrypto, Symbol: "BTC-USD"})})
	last := h.msg.last()
	if last.op != "send" || last.screen.Text != textFailure {
		t.Fatalf("expected failure notice, got %+v", last)
	}
}

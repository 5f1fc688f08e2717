package handlers

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"runtime/debug"
	"strings"

	"marketbot/bot-go/internal/metrics"
	"marketbot/bot-go/internal/models"
)

type Searcher interface {
	Search(ctx context.Context, query string) (models.Buckets, int)
}

type Analyzer interface {
	Analyze(ctx context.Context, ticker string, period models.Period) (models.Analysis, error)
}

type ChartRenderer interface {
	Render(ctx context.Context, req models.ChartRequest) (models.ChartArtifact, bool)
}

type SessionStore interface {
	Put(ctx context.Context, buckets models.Buckets) (string, error)
	Get(ctx context.Context, id string) (models.Buckets, bool)
}

type Options struct {
	BotName   string
	GroupLink string
}

// Navigator drives the search -> category -> instrument -> detail flow. All
// state lives in the session store and in button payloads.
type Navigator struct {
	msg      Messenger
	search   Searcher
	analyzer Analyzer
	charts   ChartRenderer
	sessions SessionStore
	metrics  *metrics.Metrics
	opts     Options
}

func NewNavigator(msg Messenger, search Searcher, analyzer Analyzer, charts ChartRenderer, sessions SessionStore, m *metrics.Metrics, opts Options) *Navigator {
	return &Navigator{
		msg:      msg,
		search:   search,
		analyzer: analyzer,
		charts:   charts,
		sessions: sessions,
		metrics:  m,
		opts:     opts,
	}
}

// Handle processes one event. It never panics; failures surface as chat
// notices.
func (n *Navigator) Handle(ctx context.Context, ev Event) {
	action := "command"
	if ev.IsCallback() {
		action = "callback"
	}
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("action panicked", "chat", ev.ChatID, "data", ev.Data, "command", ev.Command, "panic", rec, "stack", string(debug.Stack()))
			n.metrics.Action(action, "panic")
			if _, err := n.msg.Send(ctx, ev.ChatID, 0, Screen{Text: textFailure}); err != nil {
				slog.Warn("failed to send failure notice", "chat", ev.ChatID, "error", err)
			}
		}
	}()

	if ev.IsCallback() {
		n.handleCallback(ctx, ev)
		return
	}
	switch strings.ToLower(ev.Command) {
	case "analyze", "analyse":
		n.handleAnalyze(ctx, ev)
	}
}

func (n *Navigator) handleAnalyze(ctx context.Context, ev Event) {
	query := strings.TrimSpace(ev.Args)
	if query == "" {
		n.metrics.Action("analyze", "usage")
		if _, err := n.msg.Send(ctx, ev.ChatID, ev.MessageID, Screen{Text: textUsage}); err != nil {
			slog.Warn("failed to send usage", "chat", ev.ChatID, "error", err)
		}
		return
	}

	quoted := html.EscapeString(query)
	placeholder, err := n.msg.Send(ctx, ev.ChatID, ev.MessageID, Screen{Text: fmt.Sprintf("🔍 Searching markets for '%s'...", quoted)})
	if err != nil {
		slog.Warn("failed to send placeholder", "chat", ev.ChatID, "error", err)
		n.metrics.Action("analyze", "error")
		return
	}

	buckets, count := n.search.Search(ctx, query)
	if count == 0 {
		n.metrics.Action("analyze", "no_results")
		n.replace(ctx, ev.ChatID, placeholder, false, Screen{Text: textNoResults})
		return
	}

	session, err := n.sessions.Put(ctx, buckets)
	if err != nil {
		slog.Error("failed to store search session", "chat", ev.ChatID, "query", query, "error", err)
		n.metrics.Session("put", "error")
		n.metrics.Action("analyze", "error")
		n.replace(ctx, ev.ChatID, placeholder, false, Screen{Text: textFailure})
		return
	}
	n.metrics.Session("put", "ok")
	slog.Info("search stored", "chat", ev.ChatID, "query", query, "session", session, "results", count)

	n.metrics.Action("analyze", "ok")
	n.replace(ctx, ev.ChatID, placeholder, false, menuScreen(fmt.Sprintf("👇 <b>Select Market for '%s':</b>", quoted), session, buckets))
}

func (n *Navigator) handleCallback(ctx context.Context, ev Event) {
	act, err := DecodeAction(ev.Data)
	if err != nil {
		slog.Warn("undecodable callback", "chat", ev.ChatID, "data", ev.Data, "error", err)
		n.metrics.Action("callback", "malformed")
		n.answer(ctx, ev, "")
		return
	}
	kind := string(act.Kind)

	buckets, ok := n.sessions.Get(ctx, act.Session)
	if !ok {
		n.metrics.Session("get", "miss")
		n.metrics.Action(kind, "expired")
		n.answer(ctx, ev, "This search has expired.")
		n.replace(ctx, ev.ChatID, ev.MessageID, ev.HasMedia, Screen{Text: textExpired})
		return
	}
	n.metrics.Session("get", "hit")

	switch act.Kind {
	case KindMenu:
		n.answer(ctx, ev, "")
		n.replace(ctx, ev.ChatID, ev.MessageID, ev.HasMedia, menuScreen("👇 <b>Select Market:</b>", act.Session, buckets))
		n.metrics.Action(kind, "ok")
	case KindCategory:
		n.answer(ctx, ev, "")
		n.replace(ctx, ev.ChatID, ev.MessageID, ev.HasMedia, listScreen(act.Session, act.Category, buckets[act.Category]))
		n.metrics.Action(kind, "ok")
	case KindSymbol:
		n.answer(ctx, ev, fmt.Sprintf("Analyzing %s...", act.Symbol))
		n.metrics.Action(kind, n.showDetail(ctx, ev, act, buckets))
	case KindPeriod:
		n.answer(ctx, ev, fmt.Sprintf("Generating %s Chart...", act.Period))
		n.metrics.Action(kind, n.showChart(ctx, ev, act, buckets))
	}
}

func displayName(buckets models.Buckets, act Action) string {
	if r, ok := buckets.Find(act.Category, act.Symbol); ok && r.Name != "" {
		return r.Name
	}
	return act.Symbol
}

func (n *Navigator) showDetail(ctx context.Context, ev Event, act Action, buckets models.Buckets) string {
	a, err := n.analyzer.Analyze(ctx, act.Symbol, models.Period1Y)
	if err != nil {
		slog.Warn("analysis failed", "symbol", act.Symbol, "session", act.Session, "error", err)
		n.replace(ctx, ev.ChatID, ev.MessageID, ev.HasMedia, failureScreen(act.Symbol, act.Session, act.Category))
		return "failed"
	}
	n.replace(ctx, ev.ChatID, ev.MessageID, ev.HasMedia, Screen{
		Text:    Summary(displayName(buckets, act), a, n.opts.BotName),
		Buttons: detailButtons(act.Session, act.Category, act.Symbol),
	})
	return "ok"
}

func (n *Navigator) showChart(ctx context.Context, ev Event, act Action, buckets models.Buckets) string {
	if !act.Period.Valid() {
		slog.Warn("unknown period in callback", "period", act.Period, "session", act.Session)
		n.replace(ctx, ev.ChatID, ev.MessageID, ev.HasMedia, failureScreen(act.Symbol, act.Session, act.Category))
		return "failed"
	}
	a, err := n.analyzer.Analyze(ctx, act.Symbol, act.Period)
	if err != nil {
		slog.Warn("analysis failed", "symbol", act.Symbol, "period", act.Period, "session", act.Session, "error", err)
		n.replace(ctx, ev.ChatID, ev.MessageID, ev.HasMedia, failureScreen(act.Symbol, act.Session, act.Category))
		return "failed"
	}

	screen := Screen{
		Text:    Summary(displayName(buckets, act), a, n.opts.BotName),
		Buttons: chartButtons(act.Session, act.Category, act.Symbol, n.opts.GroupLink),
	}
	art, ok := n.charts.Render(ctx, models.ChartRequest{
		Symbol:        a.Symbol,
		Prices:        a.Prices,
		Timestamps:    a.Timestamps,
		Period:        a.Period,
		PercentChange: a.PercentChange,
	})
	outcome := "ok"
	switch {
	case !ok:
		screen.Text += "\n\n" + textNoChart
		outcome = "no_chart"
	case art.IsImage():
		screen.Photo = art.Image
	default:
		screen.Text = fmt.Sprintf("<a href=\"%s\">📈</a> %s", html.EscapeString(art.URL), screen.Text)
		screen.LinkPreview = true
	}
	n.replace(ctx, ev.ChatID, ev.MessageID, ev.HasMedia, screen)
	return outcome
}

func (n *Navigator) answer(ctx context.Context, ev Event, text string) {
	if err := n.msg.Answer(ctx, ev.CallbackID, text); err != nil {
		slog.Warn("failed to answer callback", "chat", ev.ChatID, "error", err)
	}
}

// replace swaps the message at messageID for s. Messages of the same kind are
// edited in place; a change between text and photo, or a failed edit, deletes
// the old message and sends a new one.
func (n *Navigator) replace(ctx context.Context, chatID int64, messageID int, hasMedia bool, s Screen) {
	if s.IsPhoto() == hasMedia {
		err := n.msg.Edit(ctx, chatID, messageID, s)
		if err == nil {
			return
		}
		slog.Warn("edit failed, sending anew", "chat", chatID, "message", messageID, "error", err)
	}
	if err := n.msg.Delete(ctx, chatID, messageID); err != nil {
		slog.Warn("failed to delete message", "chat", chatID, "message", messageID, "error", err)
	}
	if _, err := n.msg.Send(ctx, chatID, 0, s); err != nil {
		slog.Error("failed to send screen", "chat", chatID, "error", err)
	}
}

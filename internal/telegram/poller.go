package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"marketbot/bot-go/internal/config"
	"marketbot/bot-go/internal/handlers"
	"marketbot/bot-go/internal/metrics"
)

const workerQueue = 64

type UpdateSource interface {
	GetUpdates(u tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

type EventHandler interface {
	Handle(ctx context.Context, ev handlers.Event)
}

// Poller long-polls for updates and fans them out to workers. Updates of one
// chat always land on the same worker, so a chat is handled in order.
type Poller struct {
	src         UpdateSource
	handler     EventHandler
	timeout     time.Duration
	retryDelay  time.Duration
	maxFailures int
	workers     int
	metrics     *metrics.Metrics
}

func NewPoller(src UpdateSource, h EventHandler, cfg config.Config, m *metrics.Metrics) *Poller {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Poller{
		src:         src,
		handler:     h,
		timeout:     cfg.PollTimeout,
		retryDelay:  cfg.PollRetryDelay,
		maxFailures: cfg.PollMaxFailures,
		workers:     workers,
		metrics:     m,
	}
}

// Run polls until ctx is done, returning nil, or until maxFailures
// consecutive polls fail, returning the last error. Events already queued
// are drained before Run returns.
func (p *Poller) Run(ctx context.Context) error {
	// in-flight and queued events finish even after shutdown starts
	hctx := context.WithoutCancel(ctx)
	queues := make([]chan handlers.Event, p.workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan handlers.Event, workerQueue)
		wg.Add(1)
		go func(q <-chan handlers.Event) {
			defer wg.Done()
			for ev := range q {
				p.handler.Handle(hctx, ev)
			}
		}(queues[i])
	}
	defer func() {
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
	}()

	slog.Info("polling started", "workers", p.workers, "timeout", p.timeout)
	offset, failures := 0, 0
	for {
		if ctx.Err() != nil {
			slog.Info("polling stopped")
			return nil
		}
		u := tgbotapi.NewUpdate(offset)
		u.Timeout = int(p.timeout / time.Second)
		updates, err := p.src.GetUpdates(u)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			p.metrics.PollFailure()
			slog.Warn("getUpdates failed", "failures", failures, "retry_in", p.retryDelay, "error", err)
			if p.maxFailures > 0 && failures >= p.maxFailures {
				return fmt.Errorf("polling failed %d times in a row: %w", failures, err)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.retryDelay):
			}
			continue
		}
		failures = 0
		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			ev, ok := EventFromUpdate(upd)
			if !ok {
				continue
			}
			select {
			case queues[shard(ev.ChatID, p.workers)] <- ev:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func shard(chatID int64, n int) int {
	if chatID < 0 {
		chatID = -chatID
	}
	return int(chatID % int64(n))
}

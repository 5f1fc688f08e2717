package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"marketbot/bot-go/internal/config"
	"marketbot/bot-go/internal/handlers"
	internalhttp "marketbot/bot-go/internal/http"
	"marketbot/bot-go/internal/logger"
	"marketbot/bot-go/internal/metrics"
	"marketbot/bot-go/internal/services"
	"marketbot/bot-go/internal/telegram"
)

func serveCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot: long-poll Telegram and serve /healthz and /metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger.Init(cfg.LogLevel, cfg.LogFormat)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	tg, err := telegram.New(cfg)
	if err != nil {
		return err
	}
	market := services.NewMarketClient(cfg, m)
	charts := services.NewChartRenderer(cfg, m)
	sessions := services.NewSessionStore(cfg)
	defer func() { _ = sessions.Close() }()

	nav := handlers.NewNavigator(
		tg,
		services.NewSearchService(market),
		services.NewAnalyzer(market),
		charts,
		sessions,
		m,
		handlers.Options{BotName: tg.UserName(), GroupLink: cfg.GroupLink},
	)
	poller := telegram.NewPoller(tg, nav, cfg, m)

	slog.Info("marketbot starting",
		"bot", tg.UserName(),
		"sessions", sessions.Backend(),
		"chart_mode", cfg.ChartMode,
		"workers", cfg.Workers,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return poller.Run(ctx) })

	if cfg.OpsAddr != "" {
		srv := internalhttp.NewServer(cfg.OpsAddr, internalhttp.NewRouter(cfg, internalhttp.Deps{
			Sessions: sessions,
			Breakers: []internalhttp.BreakerReporter{market, charts},
		}, m))
		g.Go(func() error {
			slog.Info("ops server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	slog.Info("marketbot stopped", "error", err)
	return err
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"marketbot/bot-go/internal/config"
	"marketbot/bot-go/internal/logger"
	"marketbot/bot-go/internal/models"
	"marketbot/bot-go/internal/services"
)

// toolConfig is the environment config with logs sent to stderr so stdout
// stays clean for output.
func toolConfig() config.Config {
	cfg := config.Load()
	slog.SetDefault(logger.New(os.Stderr, cfg.LogLevel, "text"))
	return cfg
}

func searchCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search instruments and print them by category",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := toolConfig()
			svc := services.NewSearchService(services.NewMarketClient(cfg, nil))
			buckets, n := svc.Search(cmd.Context(), strings.Join(args, " "))
			printBuckets(cmd.OutOrStdout(), buckets, n)
			return nil
		},
	}
}

func printBuckets(w io.Writer, buckets models.Buckets, n int) {
	if n == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}
	for _, cat := range buckets.NonEmpty() {
		fmt.Fprintf(w, "%s (%d)\n", cat.Label(), len(buckets[cat]))
		for _, r := range buckets[cat] {
			fmt.Fprintf(w, "  %-14s %s [%s]\n", r.Symbol, r.Name, r.Type)
		}
	}
}

func analyzeCMD() *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "analyze <ticker>",
		Short: "Print price, 200 DMA, trend and period return for a ticker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := models.ParsePeriod(period)
			if err != nil {
				return err
			}
			cfg := toolConfig()
			a, err := services.NewAnalyzer(services.NewMarketClient(cfg, nil)).Analyze(cmd.Context(), args[0], p)
			if err != nil {
				return err
			}
			printAnalysis(cmd.OutOrStdout(), a)
			return nil
		},
	}
	cmd.Flags().StringVar(&period, "period", string(models.Period1Y), "1mo, 3mo, 6mo or 1y")
	return cmd
}

func printAnalysis(w io.Writer, a models.Analysis) {
	dma := "N/A"
	if a.DMA200 != nil {
		dma = a.DMA200.StringFixed(2)
	}
	fmt.Fprintf(w, "symbol:   %s\n", a.Symbol)
	fmt.Fprintf(w, "price:    %s %s\n", a.LatestPrice.StringFixed(2), a.Currency)
	fmt.Fprintf(w, "200 dma:  %s\n", dma)
	fmt.Fprintf(w, "trend:    %s\n", a.Trend)
	fmt.Fprintf(w, "%-9s %s%%  (%d points)\n", a.Period.Button()+":", a.PercentChange.StringFixed(2), len(a.Prices))
}

func chartCMD() *cobra.Command {
	var period, mode, out string
	cmd := &cobra.Command{
		Use:   "chart <ticker>",
		Short: "Render a price chart to a PNG file or print its URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := models.ParsePeriod(period)
			if err != nil {
				return err
			}
			cfg := toolConfig()
			if mode != "" {
				cfg.ChartMode = strings.ToLower(mode)
			}
			if cfg.ChartMode != config.ChartModeImage && cfg.ChartMode != config.ChartModeURL {
				return fmt.Errorf("unknown chart mode %q", cfg.ChartMode)
			}
			return renderChart(cmd.Context(), cmd.OutOrStdout(), cfg, args[0], p, out)
		},
	}
	cmd.Flags().StringVar(&period, "period", string(models.Period3M), "1mo, 3mo, 6mo or 1y")
	cmd.Flags().StringVar(&mode, "mode", "", "image or url (default CHART_MODE)")
	cmd.Flags().StringVar(&out, "out", "chart.png", "output file in image mode")
	return cmd
}

func renderChart(ctx context.Context, w io.Writer, cfg config.Config, ticker string, p models.Period, out string) error {
	a, err := services.NewAnalyzer(services.NewMarketClient(cfg, nil)).Analyze(ctx, ticker, p)
	if err != nil {
		return err
	}
	art, ok := services.NewChartRenderer(cfg, nil).Render(ctx, models.ChartRequest{
		Symbol:        a.Symbol,
		Prices:        a.Prices,
		Timestamps:    a.Timestamps,
		Period:        a.Period,
		PercentChange: a.PercentChange,
	})
	if !ok {
		return fmt.Errorf("chart for %s could not be rendered", ticker)
	}
	if !art.IsImage() {
		fmt.Fprintln(w, art.URL)
		return nil
	}
	if err := os.WriteFile(out, art.Image, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(w, "wrote %s (%d bytes)\n", out, len(art.Image))
	return nil
}

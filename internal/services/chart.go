package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"marketbot/bot-go/internal/config"
	"marketbot/bot-go/internal/metrics"
	"marketbot/bot-go/internal/models"
)

const (
	chartWidth      = 800
	chartHeight     = 400
	chartBackground = "#151515"
	maxImageBytes   = 10 << 20
)

// ChartRenderer builds QuickChart requests from a price window.
type ChartRenderer struct {
	hc           *http.Client
	baseURL      string
	mode         string
	maxPoints    int
	maxURLLength int
	timeout      time.Duration
	cb           *circuitBreaker
	metrics      *metrics.Metrics
}

func NewChartRenderer(cfg config.Config, m *metrics.Metrics) *ChartRenderer {
	return &ChartRenderer{
		hc:           &http.Client{},
		baseURL:      strings.TrimRight(cfg.QuickChartBaseURL, "/"),
		mode:         cfg.ChartMode,
		maxPoints:    cfg.ChartMaxPoints(),
		maxURLLength: cfg.ChartURLMaxLength,
		timeout:      cfg.RenderTimeout,
		cb:           newCircuitBreaker(providerRender, cfg.CircuitFailLimit, cfg.CircuitCooldown),
		metrics:      m,
	}
}

// Mode is config.ChartModeImage or config.ChartModeURL.
func (r *ChartRenderer) Mode() string {
	return r.mode
}

func (r *ChartRenderer) BreakerStates() map[string]string {
	return map[string]string{providerRender: r.cb.state()}
}

// Render never fails outward: ok is false whenever no usable artifact exists.
func (r *ChartRenderer) Render(ctx context.Context, req models.ChartRequest) (models.ChartArtifact, bool) {
	var (
		art models.ChartArtifact
		err error
	)
	if r.mode == config.ChartModeURL {
		art.URL, err = r.chartURL(req)
	} else {
		art.Image, err = r.fetchImage(ctx, req)
	}
	if err != nil {
		slog.Warn("chart render failed", "symbol", req.Symbol, "period", req.Period, "mode", r.mode, "error", err)
		return models.ChartArtifact{}, false
	}
	return art, true
}

type chartConfig struct {
	Type    string       `json:"type"`
	Data    chartData    `json:"data"`
	Options chartOptions `json:"options"`
}

type chartData struct {
	Labels   []string       `json:"labels"`
	Datasets []chartDataset `json:"datasets"`
}

type chartDataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BorderColor     string    `json:"borderColor"`
	BackgroundColor string    `json:"backgroundColor"`
	BorderWidth     int       `json:"borderWidth"`
	Fill            bool      `json:"fill"`
	PointRadius     int       `json:"pointRadius"`
}

type chartOptions struct {
	Title  chartTitle  `json:"title"`
	Legend chartLegend `json:"legend"`
	Scales chartScales `json:"scales"`
}

type chartTitle struct {
	Display   bool   `json:"display"`
	Text      string `json:"text"`
	FontColor string `json:"fontColor"`
}

type chartLegend struct {
	Display bool `json:"display"`
}

type chartScales struct {
	XAxes []chartAxis `json:"xAxes"`
	YAxes []chartAxis `json:"yAxes"`
}

type chartAxis struct {
	GridLines map[string]any `json:"gridLines"`
	Ticks     map[string]any `json:"ticks"`
}

type renderRequest struct {
	BackgroundColor string      `json:"backgroundColor"`
	Width           int         `json:"width"`
	Height          int         `json:"height"`
	Format          string      `json:"format"`
	Chart           chartConfig `json:"chart"`
}

// stride is the subsampling step that keeps at most limit points out of n.
func stride(n, limit int) int {
	if limit <= 0 || n <= limit {
		return 1
	}
	return (n + limit - 1) / limit
}

// downsample keeps every stride-th index starting at 0.
func downsample(n, limit int) []int {
	step := stride(n, limit)
	idx := make([]int, 0, (n+step-1)/step)
	for i := 0; i < n; i += step {
		idx = append(idx, i)
	}
	return idx
}

// chartValue trims a close to the precision a chart can show, keeping sub-unit
// prices readable.
func chartValue(d decimal.Decimal) float64 {
	if d.Abs().LessThan(decimal.NewFromInt(1)) {
		return d.Round(6).InexactFloat64()
	}
	return d.Round(2).InexactFloat64()
}

// lineColors picks the line and fill colors for the direction of change.
func lineColors(positive bool) (line, fill string) {
	if positive {
		return "rgb(0, 255, 0)", "rgba(0, 255, 0, 0.2)"
	}
	return "rgb(255, 0, 0)", "rgba(255, 0, 0, 0.2)"
}

// buildChartConfig produces the Chart.js configuration for req with at most
// limit points.
func buildChartConfig(req models.ChartRequest, limit int) chartConfig {
	n := len(req.Prices)
	if len(req.Timestamps) < n {
		n = len(req.Timestamps)
	}
	idx := downsample(n, limit)
	labels := make([]string, len(idx))
	values := make([]float64, len(idx))
	for i, j := range idx {
		labels[i] = time.Unix(req.Timestamps[j], 0).UTC().Format("02 Jan")
		values[i] = chartValue(req.Prices[j])
	}
	line, fill := lineColors(!req.PercentChange.IsNegative())
	return chartConfig{
		Type: "line",
		Data: chartData{
			Labels: labels,
			Datasets: []chartDataset{{
				Label:           req.Symbol,
				Data:            values,
				BorderColor:     line,
				BackgroundColor: fill,
				BorderWidth:     2,
				Fill:            true,
				PointRadius:     0,
			}},
		},
		Options: chartOptions{
			Title: chartTitle{
				Display:   true,
				Text:      fmt.Sprintf("%s (%s)", req.Symbol, req.Period.Button()),
				FontColor: "#fff",
			},
			Legend: chartLegend{Display: false},
			Scales: chartScales{
				XAxes: []chartAxis{{
					GridLines: map[string]any{"display": false},
					Ticks:     map[string]any{"fontColor": "#ccc", "maxTicksLimit": 6},
				}},
				YAxes: []chartAxis{{
					GridLines: map[string]any{"color": "rgba(255,255,255,0.1)"},
					Ticks:     map[string]any{"fontColor": "#ccc"},
				}},
			},
		},
	}
}

func (r *ChartRenderer) chartURL(req models.ChartRequest) (string, error) {
	cfgJSON, err := json.Marshal(buildChartConfig(req, r.maxPoints))
	if err != nil {
		return "", fmt.Errorf("marshal chart: %w", err)
	}
	q := url.Values{}
	q.Set("bkg", chartBackground)
	q.Set("w", strconv.Itoa(chartWidth))
	q.Set("h", strconv.Itoa(chartHeight))
	q.Set("c", string(cfgJSON))
	u := r.baseURL + "/chart?" + q.Encode()
	if r.maxURLLength > 0 && len(u) > r.maxURLLength {
		return "", fmt.Errorf("chart url is %d bytes, limit %d", len(u), r.maxURLLength)
	}
	return u, nil
}

func (r *ChartRenderer) fetchImage(ctx context.Context, req models.ChartRequest) ([]byte, error) {
	payload, err := json.Marshal(renderRequest{
		BackgroundColor: chartBackground,
		Width:           chartWidth,
		Height:          chartHeight,
		Format:          "png",
		Chart:           buildChartConfig(req, r.maxPoints),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chart: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var img []byte
	err = guarded(r.metrics, providerRender, r.cb, func() error {
		hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/chart", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		hreq.Header.Set("Content-Type", "application/json")
		res, err := r.hc.Do(hreq)
		if err != nil {
			return fmt.Errorf("%s: %w", providerRender, err)
		}
		defer res.Body.Close()
		if res.StatusCode < 200 || res.StatusCode >= 300 {
			return newUpstreamError(providerRender, res)
		}
		img, err = io.ReadAll(io.LimitReader(res.Body, maxImageBytes))
		if err != nil {
			return fmt.Errorf("%s: read image: %w", providerRender, err)
		}
		if len(img) == 0 {
			return &decodeError{err: fmt.Errorf("%s returned an empty image", providerRender)}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

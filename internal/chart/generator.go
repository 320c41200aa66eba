package chart

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Proton-105/stockbot/internal/artifacts"
	"github.com/Proton-105/stockbot/pkg/metrics"
)

// ErrNoData means the market-data source returned an empty series.
var ErrNoData = stdErrors.New("no price data")

// Generator produces chart artifacts.
type Generator struct {
	data      MarketData
	renderer  Renderer
	workspace *artifacts.Workspace
	log       *slog.Logger
	now       func() time.Time
}

// NewGenerator wires a Generator.
func NewGenerator(data MarketData, renderer Renderer, workspace *artifacts.Workspace, log *slog.Logger) *Generator {
	if log == nil {
		log = slog.Default()
	}

	return &Generator{
		data:      data,
		renderer:  renderer,
		workspace: workspace,
		log:       log,
		now:       time.Now,
	}
}

// Generate fetches the series for the horizon window ending now and renders it into a new file.
// ErrNoData is returned instead of an artifact when the series is empty.
func (g *Generator) Generate(ctx context.Context, horizon Horizon, symbol string) (artifacts.Artifact, error) {
	symbol, err := NormalizeSymbol(symbol)
	if err != nil {
		return artifacts.Artifact{}, err
	}

	window := horizon.Window()
	end := g.now().UTC()
	start := end.Add(-window.Lookback)

	bars, err := g.data.Series(ctx, symbol, start, end, window.Interval)
	if err != nil {
		metrics.RecordChartRender(horizon.Slug(), "error")
		return artifacts.Artifact{}, fmt.Errorf("fetch %s series: %w", symbol, err)
	}
	if len(bars) == 0 {
		metrics.RecordChartRender(horizon.Slug(), "no_data")
		g.log.Info("chart has no data", slog.String("symbol", symbol), slog.String("horizon", horizon.Slug()))
		return artifacts.Artifact{}, ErrNoData
	}

	file, err := g.workspace.Create("chart_"+horizon.Slug()+"_"+symbol, ".png")
	if err != nil {
		metrics.RecordChartRender(horizon.Slug(), "error")
		return artifacts.Artifact{}, err
	}

	title := fmt.Sprintf("%s - %s Trade Chart", symbol, horizon.Title())
	art := artifacts.Artifact{
		Kind:     artifacts.KindPhoto,
		Path:     file.Name(),
		FileName: fmt.Sprintf("%s_%s.png", symbol, horizon.Slug()),
		Caption:  title,
	}

	renderErr := g.renderer.Render(file, title, bars)
	closeErr := file.Close()
	if renderErr == nil {
		renderErr = closeErr
	}
	if renderErr != nil {
		_ = art.Remove()
		metrics.RecordChartRender(horizon.Slug(), "error")
		return artifacts.Artifact{}, fmt.Errorf("render %s chart: %w", symbol, renderErr)
	}

	metrics.RecordChartRender(horizon.Slug(), "ok")
	g.log.Info("chart rendered",
		slog.String("symbol", symbol),
		slog.String("horizon", horizon.Slug()),
		slog.Int("bars", len(bars)),
	)

	return art, nil
}

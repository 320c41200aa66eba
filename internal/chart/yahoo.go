package chart

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	errors "github.com/Proton-105/stockbot/internal/errors"
	"github.com/Proton-105/stockbot/pkg/config"
)

// Bar is one closing price sample.
type Bar struct {
	Time  time.Time
	Close float64
}

// MarketData provides closing-price series.
type MarketData interface {
	Series(ctx context.Context, symbol string, start, end time.Time, interval string) ([]Bar, error)
}

const yahooNotFound = "Not Found"

type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// YahooClient reads the Yahoo Finance v8 chart endpoint behind a circuit breaker.
type YahooClient struct {
	http      *http.Client
	baseURL   string
	userAgent string
	breaker   *errors.CircuitBreaker
	log       *slog.Logger
}

// NewYahooClient builds a client from configuration. httpClient may be nil.
func NewYahooClient(cfg config.MarketDataConfig, httpClient *http.Client, log *slog.Logger) *YahooClient {
	if log == nil {
		log = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := *httpClient
	client.Timeout = timeout

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "Mozilla/5.0"
	}

	return &YahooClient{
		http:      &client,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: userAgent,
		breaker: errors.NewCircuitBreaker(errors.BreakerSettings{
			Name: "market_data",
			OnStateChange: func(name string, from, to errors.State) {
				log.Warn("circuit breaker state changed",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			},
		}),
		log: log,
	}
}

// Series returns bars between start and end in time order. Null closes are dropped and an unknown
// symbol yields an empty series.
func (c *YahooClient) Series(ctx context.Context, symbol string, start, end time.Time, interval string) ([]Bar, error) {
	var bars []Bar
	err := c.breaker.Call(func() error {
		var fetchErr error
		bars, fetchErr = c.fetch(ctx, symbol, start, end, interval)
		return fetchErr
	})
	if err != nil {
		return nil, errors.NewExternalAPIError("market data", err)
	}

	return bars, nil
}

func (c *YahooClient) fetch(ctx context.Context, symbol string, start, end time.Time, interval string) ([]Bar, error) {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	q.Set("period2", strconv.FormatInt(end.Unix(), 10))
	q.Set("interval", interval)
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("yahoo request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return nil, fmt.Errorf("yahoo: status %d", resp.StatusCode)
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}

	if chart.Chart.Error != nil {
		if chart.Chart.Error.Code == yahooNotFound {
			c.log.Info("symbol not found at market data source", slog.String("symbol", symbol))
			return nil, nil
		}
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("yahoo: status %d", resp.StatusCode)
	}

	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := chart.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close
	bars := make([]Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		bars = append(bars, Bar{Time: time.Unix(ts, 0).UTC(), Close: *closes[i]})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

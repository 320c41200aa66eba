package chart

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Proton-105/stockbot/internal/errors"
	"github.com/Proton-105/stockbot/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newYahoo(url string) *YahooClient {
	return NewYahooClient(config.MarketDataConfig{
		BaseURL:   url,
		Timeout:   2 * time.Second,
		UserAgent: "stockbot-test",
	}, nil, testLogger())
}

const chartPayload = `{"chart":{"result":[{"timestamp":[1714564800,1714478400,1714651200],
"indicators":{"quote":[{"close":[102.5,101.25,null]}]}}],"error":null}}`

func TestYahooClient_Series(t *testing.T) {
	requests := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests <- r.Clone(context.Background())
		_, _ = io.WriteString(w, chartPayload)
	}))
	defer srv.Close()

	start := time.Unix(1714000000, 0)
	end := time.Unix(1715000000, 0)

	bars, err := newYahoo(srv.URL).Series(context.Background(), "RELIANCE.NS", start, end, "1h")
	require.NoError(t, err)

	req := <-requests
	assert.Equal(t, "/v8/finance/chart/RELIANCE.NS", req.URL.Path)
	assert.Equal(t, "interval=1h&period1=1714000000&period2=1715000000", req.URL.RawQuery)
	assert.Equal(t, "stockbot-test", req.Header.Get("User-Agent"))

	require.Len(t, bars, 2)
	assert.Equal(t, 101.25, bars[0].Close)
	assert.Equal(t, 102.5, bars[1].Close)
	assert.True(t, bars[0].Time.Before(bars[1].Time))
}

func TestYahooClient_NotFoundIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`)
	}))
	defer srv.Close()

	bars, err := newYahoo(srv.URL).Series(context.Background(), "NOPE.NS", time.Now().Add(-time.Hour), time.Now(), "1d")
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestYahooClient_Failures(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "oops"},
		{name: "malformed json", status: http.StatusOK, body: `{"chart":`},
		{name: "api error", status: http.StatusOK, body: `{"chart":{"result":null,"error":{"code":"Bad Request","description":"Invalid interval"}}}`},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			_, err := newYahoo(srv.URL).Series(context.Background(), "TCS.NS", time.Now().Add(-time.Hour), time.Now(), "1d")
			require.Error(t, err)

			var appErr *apperrors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, apperrors.CodeExternalAPI, appErr.Code)
		})
	}
}

func TestYahooClient_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newYahoo(srv.URL)
	for i := 0; i < apperrors.MinRequests; i++ {
		_, err := client.Series(context.Background(), "TCS.NS", time.Now().Add(-time.Hour), time.Now(), "1d")
		require.Error(t, err)
	}

	_, err := client.Series(context.Background(), "TCS.NS", time.Now().Add(-time.Hour), time.Now(), "1d")
	require.ErrorIs(t, err, apperrors.ErrCircuitOpen)
	assert.Equal(t, int32(apperrors.MinRequests), hits.Load())
}

// Package chart renders closing-price charts for a symbol over a trade horizon.
package chart

import (
	stdErrors "errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Horizon is the requested chart lookback style.
type Horizon string

const (
	Swing    Horizon = "swing"
	LongTerm Horizon = "long term"
)

var (
	// ErrUnknownHorizon is returned by ParseHorizon for unsupported input.
	ErrUnknownHorizon = stdErrors.New("unknown chart horizon")
	// ErrInvalidSymbol is returned for symbols that cannot be a ticker.
	ErrInvalidSymbol = stdErrors.New("invalid symbol")
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9^][A-Z0-9.\-=&^]{0,19}$`)

// Window is the history requested for a horizon.
type Window struct {
	Lookback time.Duration
	Interval string
}

// ParseHorizon accepts "swing" and the spellings of "long term".
func ParseHorizon(s string) (Horizon, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "swing":
		return Swing, nil
	case "long term", "longterm", "long_term", "long-term":
		return LongTerm, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownHorizon, s)
	}
}

// Window maps swing to 14 days of hourly bars and long term to 180 days of daily bars.
func (h Horizon) Window() Window {
	if h == Swing {
		return Window{Lookback: 14 * 24 * time.Hour, Interval: "1h"}
	}
	return Window{Lookback: 180 * 24 * time.Hour, Interval: "1d"}
}

// Slug is the form used in file names, metrics and callback data.
func (h Horizon) Slug() string {
	if h == Swing {
		return "swing"
	}
	return "longterm"
}

// Title is the form used in chart titles.
func (h Horizon) Title() string {
	if h == Swing {
		return "Swing"
	}
	return "Long Term"
}

// NormalizeSymbol upper-cases s and checks that it looks like a ticker.
func NormalizeSymbol(s string) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(s))
	if !symbolPattern.MatchString(symbol) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, s)
	}
	return symbol, nil
}

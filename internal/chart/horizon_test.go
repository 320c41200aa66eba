package chart

import (
	"errors"
	"testing"
	"time"
)

func TestParseHorizon(t *testing.T) {
	testCases := []struct {
		input   string
		want    Horizon
		wantErr bool
	}{
		{input: "swing", want: Swing},
		{input: " SWING ", want: Swing},
		{input: "long term", want: LongTerm},
		{input: "longterm", want: LongTerm},
		{input: "Long_Term", want: LongTerm},
		{input: "long-term", want: LongTerm},
		{input: "intraday", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseHorizon(tc.input)
			if tc.wantErr {
				if !errors.Is(err, ErrUnknownHorizon) {
					t.Fatalf("expected ErrUnknownHorizon, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("ParseHorizon(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestHorizonWindow(t *testing.T) {
	if w := Swing.Window(); w.Lookback != 14*24*time.Hour || w.Interval != "1h" {
		t.Errorf("swing window = %+v", w)
	}
	if w := LongTerm.Window(); w.Lookback != 180*24*time.Hour || w.Interval != "1d" {
		t.Errorf("long term window = %+v", w)
	}
	if Swing.Title() != "Swing" || LongTerm.Title() != "Long Term" {
		t.Errorf("unexpected titles %q %q", Swing.Title(), LongTerm.Title())
	}
	if Swing.Slug() != "swing" || LongTerm.Slug() != "longterm" {
		t.Errorf("unexpected slugs %q %q", Swing.Slug(), LongTerm.Slug())
	}
}

func TestNormalizeSymbol(t *testing.T) {
	testCases := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "reliance.ns", want: "RELIANCE.NS"},
		{input: " tcs.bo ", want: "TCS.BO"},
		{input: "^NSEI", want: "^NSEI"},
		{input: "M&M.NS", want: "M&M.NS"},
		{input: "BAJAJ-AUTO.NS", want: "BAJAJ-AUTO.NS"},
		{input: "", wantErr: true},
		{input: ".NS", wantErr: true},
		{input: "RELIANCE NS", wantErr: true},
		{input: "../etc/passwd", wantErr: true},
		{input: "ABCDEFGHIJKLMNOPQRSTU", wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.input, func(t *testing.T) {
			got, err := NormalizeSymbol(tc.input)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidSymbol) {
					t.Fatalf("expected ErrInvalidSymbol, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("NormalizeSymbol(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

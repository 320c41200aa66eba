package keyboard_test

import (
	"strings"
	"testing"

	"github.com/Proton-105/stockbot/internal/bot/keyboard"
)

func TestEncodeCallback(t *testing.T) {
	tests := []struct {
		name      string
		unique    string
		data      string
		want      string
		wantError bool
	}{
		{
			name:   "with data",
			unique: keyboard.UniqueChart,
			data:   keyboard.DataSwing,
			want:   "chart:swing",
		},
		{
			name:   "without data",
			unique: keyboard.UniqueMenu,
			data:   "",
			want:   "menu",
		},
		{
			name:      "empty unique",
			unique:    "",
			data:      "swing",
			wantError: true,
		},
		{
			name:      "exceeds limit",
			unique:    "chart",
			data:      strings.Repeat("x", keyboard.CallbackDataLimitBytes),
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := keyboard.EncodeCallback(tt.unique, tt.data)
			if tt.wantError {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got != tt.want {
				t.Errorf("EncodeCallback() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeCallback(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantUnique string
		wantData   string
		wantErr    bool
	}{
		{
			name:       "unique and data",
			input:      "chart:longterm",
			wantUnique: "chart",
			wantData:   "longterm",
		},
		{
			name:       "only unique",
			input:      "menu",
			wantUnique: "menu",
		},
		{
			name:       "telebot endpoint format",
			input:      "\fmtf|download",
			wantUnique: "mtf",
			wantData:   "download",
		},
		{
			name:       "multiple separators",
			input:      "chart:swing:extra",
			wantUnique: "chart",
			wantData:   "swing:extra",
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "only prefix",
			input:   "\f",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unique, data, err := keyboard.DecodeCallback(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if unique != tt.wantUnique || data != tt.wantData {
				t.Errorf("DecodeCallback() = (%q, %q), want (%q, %q)", unique, data, tt.wantUnique, tt.wantData)
			}
		})
	}
}

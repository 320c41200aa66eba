package jobs

import (
	"encoding/json"
	"fmt"
)

const (
	TaskTypeChartRender = "chart:render"
	TaskTypeMTFExport   = "mtf:export"
)

const QueueDefault = "default"

// Request identifies the user and chat a task reports back to.
type Request struct {
	UserID    int64  `json:"user_id"`
	ChatID    int64  `json:"chat_id"`
	MessageID int    `json:"message_id"`
	Lang      string `json:"lang"`
	RequestID string `json:"request_id,omitempty"`
}

type ChartRenderPayload struct {
	Request
	Horizon string `json:"horizon"`
	Symbol  string `json:"symbol"`
}

type MTFExportPayload struct {
	Request
}

// Encode marshals a task payload.
func Encode(payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode task payload: %w", err)
	}
	return data, nil
}

// Decode unmarshals a task payload.
func Decode[T any](data []byte) (T, error) {
	var payload T
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, fmt.Errorf("decode task payload: %w", err)
	}
	return payload, nil
}

package keyboard

import (
	"errors"
	"fmt"
	"strings"
)

const (
	CallbackDataSeparator  = ":"
	CallbackDataLimitBytes = 64
)

// Callback identifiers used by the menu keyboards.
const (
	UniqueMenu     = "menu"
	UniqueChart    = "chart"
	UniqueDownload = "mtf"

	DataSwing    = "swing"
	DataLongTerm = "longterm"
	DataDownload = "download"
)

// telebot prefixes callbacks of buttons that carry a Unique with "\f" and joins data with "|".
const (
	telebotCallbackPrefix    = "\f"
	telebotCallbackSeparator = "|"
)

// EncodeCallback joins unique and data into a callback payload that fits Telegram's limit.
func EncodeCallback(unique, data string) (string, error) {
	if unique == "" {
		return "", errors.New("callback unique is empty")
	}

	payload := unique
	if data != "" {
		payload = unique + CallbackDataSeparator + data
	}

	if len(payload) > CallbackDataLimitBytes {
		return "", fmt.Errorf("callback data exceeds %d byte limit: got %d", CallbackDataLimitBytes, len(payload))
	}

	return payload, nil
}

// DecodeCallback splits a callback payload into unique and data.
// Payloads produced by telebot endpoint buttons are accepted too.
func DecodeCallback(callbackData string) (unique, data string, err error) {
	callbackData = strings.TrimSpace(strings.TrimPrefix(callbackData, telebotCallbackPrefix))
	if callbackData == "" {
		return "", "", errors.New("callback data is empty")
	}

	for _, sep := range []string{CallbackDataSeparator, telebotCallbackSeparator} {
		if idx := strings.Index(callbackData, sep); idx != -1 {
			return callbackData[:idx], callbackData[idx+len(sep):], nil
		}
	}

	return callbackData, "", nil
}

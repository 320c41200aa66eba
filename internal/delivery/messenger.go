// Package delivery sends messages and generated artifacts to Telegram chats.
package delivery

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	errors "github.com/Proton-105/stockbot/internal/errors"
)

// MessageRef identifies a sent message so it can be edited later.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Messenger is the outbound side of the chat transport.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, markup *telebot.ReplyMarkup) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, markup *telebot.ReplyMarkup) error
	SendPhoto(ctx context.Context, chatID int64, path, caption string, markup *telebot.ReplyMarkup) error
	SendDocument(ctx context.Context, chatID int64, path, fileName, caption string, markup *telebot.ReplyMarkup) error
}

// Sender is the subset of *telebot.Bot used by TelebotMessenger.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
	Edit(msg telebot.Editable, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelebotMessenger implements Messenger on top of telebot.
type TelebotMessenger struct {
	bot Sender
}

var _ Messenger = (*TelebotMessenger)(nil)

// NewTelebotMessenger wraps a telebot sender such as *telebot.Bot.
func NewTelebotMessenger(bot Sender) *TelebotMessenger {
	return &TelebotMessenger{bot: bot}
}

func (m *TelebotMessenger) SendText(ctx context.Context, chatID int64, text string, markup *telebot.ReplyMarkup) (MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return MessageRef{}, err
	}

	msg, err := m.bot.Send(telebot.ChatID(chatID), text, options(markup)...)
	if err != nil {
		return MessageRef{}, fmt.Errorf("send text: %w", err)
	}

	ref := MessageRef{ChatID: chatID}
	if msg != nil {
		ref.MessageID = msg.ID
	}
	return ref, nil
}

func (m *TelebotMessenger) EditText(ctx context.Context, ref MessageRef, text string, markup *telebot.ReplyMarkup) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := telebot.StoredMessage{MessageID: strconv.Itoa(ref.MessageID), ChatID: ref.ChatID}
	if _, err := m.bot.Edit(stored, text, options(markup)...); err != nil {
		if stdErrors.Is(err, telebot.ErrSameMessageContent) || stdErrors.Is(err, telebot.ErrMessageNotModified) {
			return nil
		}
		return fmt.Errorf("edit text: %w", err)
	}
	return nil
}

func (m *TelebotMessenger) SendPhoto(ctx context.Context, chatID int64, path, caption string, markup *telebot.ReplyMarkup) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	photo := &telebot.Photo{File: telebot.FromDisk(path), Caption: caption}
	if _, err := m.bot.Send(telebot.ChatID(chatID), photo, options(markup)...); err != nil {
		return uploadError(caption, err)
	}
	return nil
}

func (m *TelebotMessenger) SendDocument(ctx context.Context, chatID int64, path, fileName, caption string, markup *telebot.ReplyMarkup) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc := &telebot.Document{File: telebot.FromDisk(path), FileName: fileName, Caption: caption}
	if _, err := m.bot.Send(telebot.ChatID(chatID), doc, options(markup)...); err != nil {
		return uploadError(fileName, err)
	}
	return nil
}

func options(markup *telebot.ReplyMarkup) []interface{} {
	if markup == nil {
		return nil
	}
	return []interface{}{markup}
}

// uploadError marks Telegram flood-control and server-side failures as retryable.
func uploadError(name string, err error) error {
	var (
		flood  telebot.FloodError
		apiErr *telebot.Error
	)
	retryable := stdErrors.As(err, &flood) ||
		(stdErrors.As(err, &apiErr) && (apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError))

	return errors.NewUploadError(name, err, retryable)
}

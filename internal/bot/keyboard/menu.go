package keyboard

import (
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/stockbot/internal/i18n"
)

// MainMenu builds the localized main menu: swing chart, long term chart and MTF download.
func MainMenu(t i18n.Translator) *telebot.ReplyMarkup {
	return mustBuild(NewInlineKeyboard().
		AddRow(InlineButton{Text: t.T("menu.button_swing"), Unique: UniqueChart, Data: DataSwing}).
		AddRow(InlineButton{Text: t.T("menu.button_longterm"), Unique: UniqueChart, Data: DataLongTerm}).
		AddRow(InlineButton{Text: t.T("menu.button_download"), Unique: UniqueDownload, Data: DataDownload}))
}

// BackToMenu builds the single button attached to every terminal message.
func BackToMenu(t i18n.Translator) *telebot.ReplyMarkup {
	return mustBuild(NewInlineKeyboard().
		AddRow(InlineButton{Text: t.T("menu.button_back"), Unique: UniqueMenu}))
}

// mustBuild panics when a fixed keyboard carries invalid callback data.
func mustBuild(b *InlineKeyboardBuilder) *telebot.ReplyMarkup {
	markup, err := b.Build()
	if err != nil {
		panic(err)
	}
	return markup
}

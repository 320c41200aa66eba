package bot

import telebot "gopkg.in/telebot.v3"

// Command constants for Telegram bot commands.
const (
	CommandStart    = "/start"
	CommandMenu     = "/menu"
	CommandHelp     = "/help"
	CommandCancel   = "/cancel"
	CommandSwing    = "/swing"
	CommandLongTerm = "/longterm"
	CommandDownload = "/download"
)

// Callback prefixes of inline buttons, including those of earlier keyboard layouts.
var callbackPrefixes = []string{"menu", "chart", "mtf", "swing", "longterm", "download", "back"}

// commandList is published to Telegram so clients can suggest commands.
var commandList = []telebot.Command{
	{Text: "menu", Description: "Show the main menu"},
	{Text: "swing", Description: "Swing chart: 14 days, hourly"},
	{Text: "longterm", Description: "Long term chart: 180 days, daily"},
	{Text: "download", Description: "Groww MTF stocks by leverage (CSV)"},
	{Text: "cancel", Description: "Return to the main menu"},
	{Text: "help", Description: "How to use the bot"},
}

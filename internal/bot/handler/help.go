package handler

import (
	"context"

	"github.com/bazarhub/bazar-marketplace/internal/bot"
)

// HelpHandler handles the /help command.
type HelpHandler struct{}

// NewHelpHandler creates a new HelpHandler.
func NewHelpHandler() *HelpHandler {
	return &HelpHandler{}
}

// Handle processes the /help command.
func (h *HelpHandler) Handle(ctx context.Context, cmdCtx bot.CommandContext) (bot.Response, error) {
	text := "ℹ️ <b>Как пользоваться Bazar</b>\n\n" +
		"<b>Продажа</b>\n" +
		"• /sell — разместить объявление (бот проведёт по шагам)\n" +
		"• /mylistings — управлять своими объявлениями\n\n" +
		"<b>Покупка</b>\n" +
		"• /search слово — поиск по заголовкам\n\n" +
		"<b>Правила</b>\n" +
		"Запрещены оружие, краденое и подделки. Нарушителей блокируем.\n\n" +
		"<b>Помощь</b>\n" +
		"• /support — связаться с поддержкой\n" +
		"• /appeal — обжаловать блокировку"

	return bot.Response{Text: text, ParseMode: "HTML"}, nil
}

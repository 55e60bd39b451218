// Package handler contains the marketplace bot's command handlers. Each
// handler receives a parsed command context and returns the response the
// router should deliver; handlers never talk to Telegram directly.
package handler

import (
	"context"
	"fmt"

	"github.com/bazarhub/bazar-marketplace/internal/bot"
	"github.com/bazarhub/bazar-marketplace/internal/infrastructure/telegram"
)

// ══════════════════════════════════════════════════════════════════════════════
// START HANDLER
// First contact with the bot. The auth stage has already created the user
// record, so this is pure presentation.
// ══════════════════════════════════════════════════════════════════════════════

// StartHandler handles the /start command.
type StartHandler struct{}

// NewStartHandler creates a new StartHandler.
func NewStartHandler() *StartHandler {
	return &StartHandler{}
}

// Handle processes the /start command.
func (h *StartHandler) Handle(ctx context.Context, cmdCtx bot.CommandContext) (bot.Response, error) {
	name := "друг"
	if cmdCtx.Sender != nil && cmdCtx.Sender.FirstName != "" {
		name = cmdCtx.Sender.FirstName
	}

	text := fmt.Sprintf(
		"👋 <b>Привет, %s!</b>\n\n"+
			"Это <b>Bazar</b> — барахолка прямо в Telegram.\n"+
			"Продавай ненужное, находи нужное.\n\n"+
			"• /sell — разместить объявление\n"+
			"• /search — найти товар\n"+
			"• /mylistings — твои объявления\n"+
			"• /help — справка",
		name,
	)

	keyboard := telegram.NewKeyboard().
		Row(telegram.Button("🔍 Искать", "cmd:search"), telegram.Button("📦 Продать", "cmd:sell")).
		Row(telegram.Button("📋 Мои объявления", "cmd:mylistings")).
		Markup()

	return bot.Response{Text: text, ParseMode: "HTML", Keyboard: keyboard}, nil
}

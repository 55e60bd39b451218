package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/bazarhub/bazar-marketplace/internal/bot"
	"github.com/bazarhub/bazar-marketplace/internal/domain/listing"
	"github.com/bazarhub/bazar-marketplace/internal/domain/user"
	"github.com/bazarhub/bazar-marketplace/internal/infrastructure/telegram"
)

// pageSize bounds every listing selection shown in the chat.
const pageSize = 10

// ══════════════════════════════════════════════════════════════════════════════
// MY LISTINGS HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// MyListingsHandler handles the /mylistings command.
type MyListingsHandler struct {
	listings listing.Repository
}

// NewMyListingsHandler creates a new MyListingsHandler.
func NewMyListingsHandler(listings listing.Repository) *MyListingsHandler {
	return &MyListingsHandler{listings: listings}
}

// Handle processes the /mylistings command.
func (h *MyListingsHandler) Handle(ctx context.Context, cmdCtx bot.CommandContext) (bot.Response, error) {
	if cmdCtx.Sender == nil {
		return bot.Response{}, nil
	}

	items, err := h.listings.GetBySeller(ctx, user.TelegramID(cmdCtx.Sender.ID), listing.ListOptions{Limit: pageSize})
	if err != nil {
		return bot.Response{}, err
	}

	if len(items) == 0 {
		return bot.Response{
			Text:      "У тебя пока нет объявлений.\nНачни с /sell — это займёт минуту.",
			ParseMode: "HTML",
		}, nil
	}

	var sb strings.Builder
	sb.WriteString("📋 <b>Твои объявления</b>\n\n")
	kb := telegram.NewKeyboard()
	for i, l := range items {
		fmt.Fprintf(&sb, "%d. %s %s — %d ₸\n", i+1, statusEmoji(l.Status), l.Title, l.Price)
		kb.Row(telegram.Button(fmt.Sprintf("%d. %s", i+1, l.Title), "listing:view:"+l.ID))
	}

	return bot.Response{Text: sb.String(), ParseMode: "HTML", Keyboard: kb.Markup()}, nil
}

func statusEmoji(s listing.Status) string {
	switch s {
	case listing.StatusActive:
		return "🟢"
	case listing.StatusSold:
		return "💰"
	case listing.StatusRemoved:
		return "⚪️"
	default:
		return "❔"
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SEARCH HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SearchHandler handles the /search command.
type SearchHandler struct {
	listings listing.Repository
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(listings listing.Repository) *SearchHandler {
	return &SearchHandler{listings: listings}
}

// Handle processes the /search command.
func (h *SearchHandler) Handle(ctx context.Context, cmdCtx bot.CommandContext) (bot.Response, error) {
	query := strings.TrimSpace(cmdCtx.Args)
	if query == "" {
		return bot.Response{
			Text:      "🔍 Что ищем? Напиши, например: <code>/search велосипед</code>",
			ParseMode: "HTML",
		}, nil
	}

	items, err := h.listings.Search(ctx, query, listing.ListOptions{Limit: pageSize})
	if err != nil {
		return bot.Response{}, err
	}

	if len(items) == 0 {
		return bot.Response{
			Text: fmt.Sprintf("По запросу «%s» ничего не нашлось. Попробуй другое слово.", query),
		}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🔍 <b>Найдено по «%s»</b>\n\n", query)
	kb := telegram.NewKeyboard()
	for i, l := range items {
		fmt.Fprintf(&sb, "%d. %s — %d ₸\n", i+1, l.Title, l.Price)
		kb.Row(telegram.Button(fmt.Sprintf("%d. %s", i+1, l.Title), "listing:view:"+l.ID))
	}

	return bot.Response{Text: sb.String(), ParseMode: "HTML", Keyboard: kb.Markup()}, nil
}

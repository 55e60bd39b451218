// Package callback contains handlers for inline keyboard callbacks.
// Callback data uses colon-delimited prefixes: "listing:view:<id>",
// "listing:del:<id>", "listing:sold:<id>", "cat:<slug>", "cmd:<command>".
package callback

import (
	"context"
	"fmt"
	"strings"

	"github.com/bazarhub/bazar-marketplace/internal/bot"
	"github.com/bazarhub/bazar-marketplace/internal/domain/listing"
	"github.com/bazarhub/bazar-marketplace/internal/domain/shared"
	"github.com/bazarhub/bazar-marketplace/internal/domain/user"
	"github.com/bazarhub/bazar-marketplace/internal/infrastructure/telegram"
	"github.com/bazarhub/bazar-marketplace/pkg/clock"
	"github.com/bazarhub/bazar-marketplace/pkg/timeutil"
)

// Prefixes registered with the router.
const (
	PrefixView = "listing:view:"
	PrefixDel  = "listing:del:"
	PrefixSold = "listing:sold:"
	PrefixCat  = "cat:"
	PrefixCmd  = "cmd:"
)

// ══════════════════════════════════════════════════════════════════════════════
// LISTING CALLBACKS
// ══════════════════════════════════════════════════════════════════════════════

// ListingHandler serves the listing:* callback family.
type ListingHandler struct {
	listings listing.Repository
	clock    clock.Clock
}

// NewListingHandler creates a new ListingHandler.
func NewListingHandler(listings listing.Repository, clk clock.Clock) *ListingHandler {
	if clk == nil {
		clk = clock.NewReal()
	}
	return &ListingHandler{listings: listings, clock: clk}
}

// View shows one listing, with owner controls when the viewer owns it.
func (h *ListingHandler) View(ctx context.Context, cbCtx bot.CallbackContext) (bot.Response, error) {
	id := strings.TrimPrefix(cbCtx.Data, PrefixView)

	l, err := h.listings.GetByID(ctx, id)
	if err != nil {
		if shared.IsNotFound(err) {
			return bot.Response{CallbackText: "Объявление уже удалено"}, nil
		}
		return bot.Response{}, err
	}

	text := fmt.Sprintf("📦 <b>%s</b>\n💰 %d ₸\n🕒 %s",
		l.Title, l.Price, timeutil.FormatRelative(h.clock.Now(), l.CreatedAt))
	if l.Description != "" {
		text += "\n\n" + l.Description
	}
	if l.Status != listing.StatusActive {
		text += "\n\n<i>Объявление больше не активно.</i>"
	}

	kb := telegram.NewKeyboard()
	if cbCtx.Sender != nil && l.IsOwnedBy(user.TelegramID(cbCtx.Sender.ID)) && l.Status == listing.StatusActive {
		kb.Row(
			telegram.Button("💰 Продано", PrefixSold+l.ID),
			telegram.Button("🗑 Снять", PrefixDel+l.ID),
		)
	}

	return bot.Response{Text: text, ParseMode: "HTML", Keyboard: kb.Markup(), Edit: true}, nil
}

// Delete removes the listing. Only the owner may do this.
func (h *ListingHandler) Delete(ctx context.Context, cbCtx bot.CallbackContext) (bot.Response, error) {
	id := strings.TrimPrefix(cbCtx.Data, PrefixDel)

	l, err := h.listings.GetByID(ctx, id)
	if err != nil {
		if shared.IsNotFound(err) {
			return bot.Response{CallbackText: "Объявление уже удалено"}, nil
		}
		return bot.Response{}, err
	}

	if cbCtx.Sender == nil || !l.IsOwnedBy(user.TelegramID(cbCtx.Sender.ID)) {
		return bot.Response{CallbackText: "Это не твоё объявление"}, nil
	}

	l.Remove(h.clock.Now())
	if err := h.listings.Update(ctx, l); err != nil {
		return bot.Response{}, err
	}

	return bot.Response{
		Text:         fmt.Sprintf("⚪️ «%s» снято с публикации.", l.Title),
		Edit:         true,
		CallbackText: "Снято",
	}, nil
}

// Sold marks the listing as sold. Only the owner may do this.
func (h *ListingHandler) Sold(ctx context.Context, cbCtx bot.CallbackContext) (bot.Response, error) {
	id := strings.TrimPrefix(cbCtx.Data, PrefixSold)

	l, err := h.listings.GetByID(ctx, id)
	if err != nil {
		if shared.IsNotFound(err) {
			return bot.Response{CallbackText: "Объявление уже удалено"}, nil
		}
		return bot.Response{}, err
	}

	if cbCtx.Sender == nil || !l.IsOwnedBy(user.TelegramID(cbCtx.Sender.ID)) {
		return bot.Response{CallbackText: "Это не твоё объявление"}, nil
	}

	if err := l.MarkSold(h.clock.Now()); err != nil {
		return bot.Response{CallbackText: "Объявление уже не активно"}, nil
	}
	if err := h.listings.Update(ctx, l); err != nil {
		return bot.Response{}, err
	}

	return bot.Response{
		Text:         fmt.Sprintf("💰 «%s» — продано! Поздравляем.", l.Title),
		Edit:         true,
		CallbackText: "Продано",
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CATEGORY BROWSING
// ══════════════════════════════════════════════════════════════════════════════

// CategoryHandler serves "cat:<slug>" callbacks.
type CategoryHandler struct {
	listings listing.Repository
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(listings listing.Repository) *CategoryHandler {
	return &CategoryHandler{listings: listings}
}

// Handle shows the active listings of a category.
func (h *CategoryHandler) Handle(ctx context.Context, cbCtx bot.CallbackContext) (bot.Response, error) {
	slug := strings.TrimPrefix(cbCtx.Data, PrefixCat)

	items, err := h.listings.GetByCategory(ctx, slug, listing.ListOptions{Limit: 10})
	if err != nil {
		return bot.Response{}, err
	}

	if len(items) == 0 {
		return bot.Response{Text: "В этой категории пока пусто.", Edit: true}, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🗂 <b>Категория: %s</b>\n\n", slug)
	kb := telegram.NewKeyboard()
	for i, l := range items {
		fmt.Fprintf(&sb, "%d. %s — %d ₸\n", i+1, l.Title, l.Price)
		kb.Row(telegram.Button(fmt.Sprintf("%d. %s", i+1, l.Title), PrefixView+l.ID))
	}

	return bot.Response{Text: sb.String(), ParseMode: "HTML", Keyboard: kb.Markup(), Edit: true}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COMMAND SHORTCUTS
// "cmd:<name>" buttons re-run a command from an inline keyboard.
// ══════════════════════════════════════════════════════════════════════════════

// CommandProxy routes "cmd:" callbacks to registered command handlers.
type CommandProxy struct {
	commands map[bot.Command]bot.CommandHandler
}

// NewCommandProxy creates an empty proxy.
func NewCommandProxy() *CommandProxy {
	return &CommandProxy{commands: make(map[bot.Command]bot.CommandHandler)}
}

// Register exposes a command through "cmd:" buttons.
func (p *CommandProxy) Register(cmd bot.Command, h bot.CommandHandler) {
	p.commands[cmd] = h
}

// Handle processes a "cmd:<name>" callback.
func (p *CommandProxy) Handle(ctx context.Context, cbCtx bot.CallbackContext) (bot.Response, error) {
	name := bot.Command(strings.TrimPrefix(cbCtx.Data, PrefixCmd))
	h, ok := p.commands[name]
	if !ok {
		return bot.Response{}, nil
	}

	cmdCtx := bot.CommandContext{
		Sender:    cbCtx.Sender,
		Chat:      cbCtx.Chat,
		MessageID: cbCtx.MessageID,
		Command:   name,
		User:      cbCtx.User,
	}
	return h.Handle(ctx, cmdCtx)
}

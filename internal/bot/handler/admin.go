package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bazarhub/bazar-marketplace/internal/bot"
	"github.com/bazarhub/bazar-marketplace/internal/domain/listing"
	"github.com/bazarhub/bazar-marketplace/internal/domain/shared"
	"github.com/bazarhub/bazar-marketplace/internal/domain/user"
	"github.com/bazarhub/bazar-marketplace/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// The admin gate upstream guarantees only the configured administrator
// reaches these.
// ══════════════════════════════════════════════════════════════════════════════

// AdminStatsHandler handles the /admin_stats command.
type AdminStatsHandler struct {
	users    user.Repository
	listings listing.Repository
}

// NewAdminStatsHandler creates a new AdminStatsHandler.
func NewAdminStatsHandler(users user.Repository, listings listing.Repository) *AdminStatsHandler {
	return &AdminStatsHandler{users: users, listings: listings}
}

// Handle processes the /admin_stats command.
func (h *AdminStatsHandler) Handle(ctx context.Context, cmdCtx bot.CommandContext) (bot.Response, error) {
	userCount, err := h.users.Count(ctx)
	if err != nil {
		return bot.Response{}, err
	}
	listingCount, err := h.listings.Count(ctx)
	if err != nil {
		return bot.Response{}, err
	}

	text := fmt.Sprintf(
		"📊 <b>Статистика Bazar</b>\n\n"+
			"👥 Пользователей: %d\n"+
			"📦 Активных объявлений: %d",
		userCount, listingCount,
	)

	return bot.Response{Text: text, ParseMode: "HTML"}, nil
}

// AdminBanHandler handles the /admin_ban command.
type AdminBanHandler struct {
	users  user.Repository
	logger *logger.Logger
}

// NewAdminBanHandler creates a new AdminBanHandler.
func NewAdminBanHandler(users user.Repository, log *logger.Logger) *AdminBanHandler {
	if log == nil {
		log = logger.Default()
	}
	return &AdminBanHandler{users: users, logger: log}
}

// Handle processes "/admin_ban <telegram_id> [reason]".
func (h *AdminBanHandler) Handle(ctx context.Context, cmdCtx bot.CommandContext) (bot.Response, error) {
	targetID, reason, ok := parseBanArgs(cmdCtx.Args)
	if !ok {
		return bot.Response{
			Text:      "Формат: <code>/admin_ban 123456789 причина</code>",
			ParseMode: "HTML",
		}, nil
	}

	target, err := h.users.GetByTelegramID(ctx, user.TelegramID(targetID))
	if err != nil {
		if shared.IsNotFound(err) {
			return bot.Response{Text: fmt.Sprintf("Пользователь %d не найден.", targetID)}, nil
		}
		return bot.Response{}, err
	}

	target.Ban(reason)
	if err := h.users.Update(ctx, target); err != nil {
		return bot.Response{}, err
	}

	h.logger.Info("user banned",
		logger.UserID(targetID),
		logger.String("reason", reason))

	return bot.Response{
		Text: fmt.Sprintf("🚫 Пользователь %d заблокирован.\nПричина: %s", targetID, reason),
	}, nil
}

// AdminUnbanHandler handles the /admin_unban command.
type AdminUnbanHandler struct {
	users  user.Repository
	logger *logger.Logger
}

// NewAdminUnbanHandler creates a new AdminUnbanHandler.
func NewAdminUnbanHandler(users user.Repository, log *logger.Logger) *AdminUnbanHandler {
	if log == nil {
		log = logger.Default()
	}
	return &AdminUnbanHandler{users: users, logger: log}
}

// Handle processes "/admin_unban <telegram_id>".
func (h *AdminUnbanHandler) Handle(ctx context.Context, cmdCtx bot.CommandContext) (bot.Response, error) {
	targetID, _, ok := parseBanArgs(cmdCtx.Args)
	if !ok {
		return bot.Response{
			Text:      "Формат: <code>/admin_unban 123456789</code>",
			ParseMode: "HTML",
		}, nil
	}

	target, err := h.users.GetByTelegramID(ctx, user.TelegramID(targetID))
	if err != nil {
		if shared.IsNotFound(err) {
			return bot.Response{Text: fmt.Sprintf("Пользователь %d не найден.", targetID)}, nil
		}
		return bot.Response{}, err
	}

	target.Unban()
	if err := h.users.Update(ctx, target); err != nil {
		return bot.Response{}, err
	}

	h.logger.Info("user unbanned", logger.UserID(targetID))

	return bot.Response{Text: fmt.Sprintf("✅ Пользователь %d разблокирован.", targetID)}, nil
}

// parseBanArgs splits "<telegram_id> [reason]".
func parseBanArgs(args string) (int64, string, bool) {
	args = strings.TrimSpace(args)
	if args == "" {
		return 0, "", false
	}

	idPart := args
	reason := "нарушение правил площадки"
	if i := strings.IndexByte(args, ' '); i >= 0 {
		idPart = args[:i]
		if r := strings.TrimSpace(args[i+1:]); r != "" {
			reason = r
		}
	}

	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, reason, true
}

package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/bazarhub/bazar-marketplace/internal/bot"
	"github.com/bazarhub/bazar-marketplace/pkg/logger"
)

// OperatorNotifier forwards a user's message to the operator chat.
// Satisfied by the messenger's Alert method.
type OperatorNotifier interface {
	Alert(ctx context.Context, text string) error
}

// ══════════════════════════════════════════════════════════════════════════════
// SUPPORT HANDLER
// Available to everyone, including banned users.
// ══════════════════════════════════════════════════════════════════════════════

// SupportHandler handles the /support command.
type SupportHandler struct {
	operator OperatorNotifier
	logger   *logger.Logger
}

// NewSupportHandler creates a new SupportHandler.
func NewSupportHandler(operator OperatorNotifier, log *logger.Logger) *SupportHandler {
	if log == nil {
		log = logger.Default()
	}
	return &SupportHandler{operator: operator, logger: log}
}

// Handle processes the /support command. A message after the command is
// forwarded to the operator; without one the user gets instructions.
func (h *SupportHandler) Handle(ctx context.Context, cmdCtx bot.CommandContext) (bot.Response, error) {
	msg := strings.TrimSpace(cmdCtx.Args)
	if msg == "" {
		return bot.Response{
			Text: "🛟 Опиши проблему одним сообщением:\n<code>/support не открывается объявление</code>",
			ParseMode: "HTML",
		}, nil
	}

	h.forward(ctx, "support", cmdCtx, msg)
	return bot.Response{Text: "Передал в поддержку. Ответим в этом чате."}, nil
}

// forward delivers the message to the operator best-effort.
func (h *SupportHandler) forward(ctx context.Context, kind string, cmdCtx bot.CommandContext, msg string) {
	var senderID int64
	username := ""
	if cmdCtx.Sender != nil {
		senderID = cmdCtx.Sender.ID
		username = cmdCtx.Sender.Username
	}

	text := fmt.Sprintf("📨 %s от %d (@%s):\n%s", kind, senderID, username, msg)
	if err := h.operator.Alert(ctx, text); err != nil {
		h.logger.Error("operator forward failed",
			logger.UserID(senderID),
			logger.Err(err))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// APPEAL HANDLER
// The only other command a banned user may reach.
// ══════════════════════════════════════════════════════════════════════════════

// AppealHandler handles the /appeal command.
type AppealHandler struct {
	support *SupportHandler
}

// NewAppealHandler creates a new AppealHandler.
func NewAppealHandler(support *SupportHandler) *AppealHandler {
	return &AppealHandler{support: support}
}

// Handle processes the /appeal command.
func (h *AppealHandler) Handle(ctx context.Context, cmdCtx bot.CommandContext) (bot.Response, error) {
	msg := strings.TrimSpace(cmdCtx.Args)
	if msg == "" {
		return bot.Response{
			Text: "📝 Напиши, почему блокировку стоит снять:\n<code>/appeal я не спамил, это ошибка</code>",
			ParseMode: "HTML",
		}, nil
	}

	h.support.forward(ctx, "appeal", cmdCtx, msg)
	return bot.Response{Text: "Апелляция отправлена. Модератор рассмотрит её и ответит здесь."}, nil
}

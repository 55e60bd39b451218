package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/bazarhub/bazar-marketplace/internal/bot"
	"github.com/bazarhub/bazar-marketplace/internal/bot/session"
	"github.com/bazarhub/bazar-marketplace/internal/domain/listing"
	"github.com/bazarhub/bazar-marketplace/internal/domain/user"
	"github.com/bazarhub/bazar-marketplace/internal/infrastructure/telegram"
	"github.com/bazarhub/bazar-marketplace/pkg/clock"
	"github.com/bazarhub/bazar-marketplace/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SELL HANDLER
// Multi-step listing creation. /sell starts the flow; subsequent plain-text
// messages feed it until the listing is created. Flow position lives in the
// sender's session (CurrentFlow + FlowData), so a restart simply drops the
// draft.
// ══════════════════════════════════════════════════════════════════════════════

// FlowSell is the session flow marker for listing creation.
const FlowSell = "sell"

// Flow steps.
const (
	sellStepTitle = "title"
	sellStepPrice = "price"
)

// cancelWord aborts the flow at any step.
const cancelWord = "отмена"

// SellHandler handles the /sell command and its follow-up text input.
type SellHandler struct {
	sessions *session.Store
	listings listing.Repository
	clock    clock.Clock
	newID    func() string
	logger   *logger.Logger
}

// NewSellHandler creates a new SellHandler.
func NewSellHandler(sessions *session.Store, listings listing.Repository, clk clock.Clock, log *logger.Logger) *SellHandler {
	if clk == nil {
		clk = clock.NewReal()
	}
	if log == nil {
		log = logger.Default()
	}
	return &SellHandler{
		sessions: sessions,
		listings: listings,
		clock:    clk,
		newID:    uuid.NewString,
		logger:   log,
	}
}

// Handle starts the listing creation flow.
func (h *SellHandler) Handle(ctx context.Context, cmdCtx bot.CommandContext) (bot.Response, error) {
	if cmdCtx.Sender == nil {
		return bot.Response{}, nil
	}

	h.sessions.WithSession(cmdCtx.Sender.ID, func(sess *session.Session) {
		sess.CurrentFlow = FlowSell
		sess.FlowData = map[string]string{"step": sellStepTitle}
	})

	text := "📦 <b>Новое объявление</b>\n\n" +
		"Шаг 1 из 2. Напиши заголовок — что продаёшь?\n" +
		"<i>Например: «Велосипед Stels, почти новый»</i>\n\n" +
		"Напиши «отмена», чтобы прервать."

	return bot.Response{Text: text, ParseMode: "HTML"}, nil
}

// HandleText consumes one flow input. Called by the webhook handler for
// plain-text messages while CurrentFlow is FlowSell.
func (h *SellHandler) HandleText(ctx context.Context, cmdCtx bot.CommandContext) (bot.Response, error) {
	if cmdCtx.Sender == nil {
		return bot.Response{}, nil
	}

	input := strings.TrimSpace(cmdCtx.Args)
	if strings.EqualFold(input, cancelWord) {
		h.clearFlow(cmdCtx.Sender.ID)
		return bot.Response{Text: "Ок, объявление отменено."}, nil
	}

	var step, title string
	h.sessions.WithSession(cmdCtx.Sender.ID, func(sess *session.Session) {
		step = sess.FlowData["step"]
		title = sess.FlowData["title"]
	})

	switch step {
	case sellStepTitle:
		return h.acceptTitle(cmdCtx.Sender.ID, input)
	case sellStepPrice:
		return h.acceptPrice(ctx, cmdCtx, title, input)
	default:
		// Stale flow marker, reset.
		h.clearFlow(cmdCtx.Sender.ID)
		return bot.Response{}, nil
	}
}

func (h *SellHandler) acceptTitle(senderID int64, input string) (bot.Response, error) {
	if input == "" {
		return bot.Response{Text: "Заголовок не может быть пустым. Что продаёшь?"}, nil
	}

	h.sessions.WithSession(senderID, func(sess *session.Session) {
		sess.FlowData["title"] = input
		sess.FlowData["step"] = sellStepPrice
	})

	return bot.Response{
		Text:      "Шаг 2 из 2. Укажи цену в тенге (число):",
		ParseMode: "HTML",
	}, nil
}

func (h *SellHandler) acceptPrice(ctx context.Context, cmdCtx bot.CommandContext, title, input string) (bot.Response, error) {
	price, err := strconv.ParseInt(strings.ReplaceAll(input, " ", ""), 10, 64)
	if err != nil || price < 0 {
		return bot.Response{Text: "Нужно число, например 15000. Укажи цену в тенге:"}, nil
	}

	now := h.clock.Now()
	l, err := listing.New(h.newID(), user.TelegramID(cmdCtx.Sender.ID), title, "", "", listing.Price(price), now)
	if err != nil {
		return bot.Response{}, err
	}
	if err := h.listings.Create(ctx, l); err != nil {
		return bot.Response{}, err
	}

	h.clearFlow(cmdCtx.Sender.ID)
	h.logger.Info("listing created",
		logger.UserID(cmdCtx.Sender.ID),
		logger.ListingID(l.ID))

	text := fmt.Sprintf(
		"✅ <b>Объявление опубликовано!</b>\n\n"+
			"📦 %s\n💰 %d ₸\n\n"+
			"Покупатели найдут его через /search.",
		l.Title, l.Price,
	)

	keyboard := telegram.NewKeyboard().
		Row(telegram.Button("👁 Посмотреть", "listing:view:"+l.ID)).
		Row(telegram.Button("🗑 Снять с публикации", "listing:del:"+l.ID)).
		Markup()

	return bot.Response{Text: text, ParseMode: "HTML", Keyboard: keyboard}, nil
}

func (h *SellHandler) clearFlow(senderID int64) {
	h.sessions.WithSession(senderID, func(sess *session.Session) {
		sess.CurrentFlow = ""
		sess.FlowData = nil
	})
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/bazarhub/bazar-marketplace/internal/bot"
	"github.com/bazarhub/bazar-marketplace/internal/bot/handler"
	"github.com/bazarhub/bazar-marketplace/internal/bot/middleware"
	"github.com/bazarhub/bazar-marketplace/internal/bot/session"
	"github.com/bazarhub/bazar-marketplace/internal/infrastructure/telegram"
	"github.com/bazarhub/bazar-marketplace/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// WEBHOOK HANDLER
// POST /webhook is the bot's single inbound entry point: validate headers,
// parse the update, push it through the middleware pipeline, dispatch to
// the router. Telegram re-delivers on any non-2xx, so most failures are
// answered with 200 after local recovery; only upstream exhaustion gets a
// 503 to request a re-delivery.
// ══════════════════════════════════════════════════════════════════════════════

// Alerter delivers operator alerts (implemented by the messenger).
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// apologyText is the best-effort reply after an unexpected failure.
const apologyText = "😔 Что-то пошло не так. Попробуй ещё раз чуть позже."

// severityKeywords in an error text escalate it to an operator alert.
var severityKeywords = []string{"database", "postgres", "timeout", "auth"}

// WebhookHandler handles Telegram webhook deliveries.
type WebhookHandler struct {
	validator *WebhookValidator
	pipeline  *middleware.Pipeline
	router    *bot.Router
	sessions  *session.Store
	sell      *handler.SellHandler
	messenger bot.Messenger
	alerter   Alerter
	logger    *logger.Logger

	newRequestID func() string
}

// NewWebhookHandler creates the webhook handler.
func NewWebhookHandler(
	validator *WebhookValidator,
	pipeline *middleware.Pipeline,
	router *bot.Router,
	sessions *session.Store,
	sell *handler.SellHandler,
	messenger bot.Messenger,
	alerter Alerter,
	log *logger.Logger,
) *WebhookHandler {
	if log == nil {
		log = logger.Default()
	}
	return &WebhookHandler{
		validator:    validator,
		pipeline:     pipeline,
		router:       router,
		sessions:     sessions,
		sell:         sell,
		messenger:    messenger,
		alerter:      alerter,
		logger:       log.With(logger.Component("webhook")),
		newRequestID: uuid.NewString,
	}
}

// ServeHTTP implements http.Handler for POST /webhook.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Headers are judged before any of the body is read.
	if result := h.validator.Validate(r); !result.IsValid {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", strings.Join(result.Errors, "; "))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxWebhookBodySize))
	if err != nil {
		h.logger.Error("webhook body read failed", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to read request body")
		return
	}

	var upd telegram.Update
	if err := json.Unmarshal(body, &upd); err != nil {
		h.logger.Error("webhook payload parse failed", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "failed to parse update")
		return
	}

	req := middleware.NewRequest(&upd)

	proceed, err := h.pipeline.Process(ctx, req)
	if err != nil {
		h.recoverError(ctx, req, err)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}
	if !proceed {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}

	if err := h.dispatch(ctx, req); err != nil {
		if isUpstreamExhaustion(err) {
			// Telegram will re-deliver the update once the API recovers.
			h.logger.Warn("dispatch exhausted upstream retries",
				logger.UpdateID(upd.UpdateID),
				logger.Err(err))
			writeJSONError(w, http.StatusServiceUnavailable, "upstream_unavailable", "telegram api unavailable")
			return
		}
		h.recoverError(ctx, req, err)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// dispatch routes a pipeline-approved update to its handler.
func (h *WebhookHandler) dispatch(ctx context.Context, req *middleware.Request) error {
	upd := req.Update

	if upd.CallbackQuery != nil {
		return h.router.DispatchCallback(ctx, bot.CallbackContext{
			Sender:    req.Sender,
			Chat:      req.Chat,
			MessageID: callbackMessageID(upd.CallbackQuery),
			QueryID:   upd.CallbackQuery.ID,
			Data:      upd.CallbackQuery.Data,
			User:      req.User,
		})
	}

	cmdCtx := bot.CommandContext{
		Sender:  req.Sender,
		Chat:    req.Chat,
		Command: req.Command,
		Args:    req.Args,
		User:    req.User,
	}
	if upd.Message != nil {
		cmdCtx.MessageID = upd.Message.MessageID
	}

	if req.Command != bot.CmdNone {
		return h.router.DispatchCommand(ctx, cmdCtx)
	}

	// Plain text feeds an in-flight flow; outside a flow it is ignored.
	if req.Sender != nil && req.Text != "" {
		if h.sessions.Get(req.Sender.ID).CurrentFlow == handler.FlowSell {
			cmdCtx.Args = req.Text
			resp, err := h.sell.HandleText(ctx, cmdCtx)
			if err != nil {
				return err
			}
			if !resp.Empty() && req.Chat != nil {
				return h.messenger.Send(ctx, req.Chat.ID, resp)
			}
		}
	}

	return nil
}

// recoverError is the terminal error path: full-context log, best-effort
// apology to the chat, operator alert when the error looks severe. The
// update is then acknowledged so Telegram stops re-delivering it.
func (h *WebhookHandler) recoverError(ctx context.Context, req *middleware.Request, err error) {
	requestID := h.newRequestID()

	fields := []logger.Field{
		logger.RequestID(requestID),
		logger.UpdateID(req.Update.UpdateID),
		logger.Err(err),
	}
	if req.Sender != nil {
		fields = append(fields, logger.UserID(req.Sender.ID))
	}
	if req.Chat != nil {
		fields = append(fields, logger.ChatID(req.Chat.ID))
	}
	h.logger.Error("update processing failed", fields...)

	if req.Chat != nil {
		if serr := h.messenger.Send(ctx, req.Chat.ID, bot.Response{Text: apologyText}); serr != nil {
			h.logger.Warn("apology delivery failed", logger.RequestID(requestID), logger.Err(serr))
		}
	}

	if isSevere(err) && h.alerter != nil {
		text := "🚨 Ошибка обработки апдейта " + requestID + ":\n" + err.Error()
		if aerr := h.alerter.Alert(ctx, text); aerr != nil {
			h.logger.Warn("operator alert delivery failed", logger.RequestID(requestID), logger.Err(aerr))
		}
	}
}

func callbackMessageID(cb *telegram.CallbackQuery) int64 {
	if cb.Message == nil {
		return 0
	}
	return cb.Message.MessageID
}

// isUpstreamExhaustion reports whether the error means the Telegram API
// stayed unavailable through the whole retry schedule.
func isUpstreamExhaustion(err error) bool {
	var apiErr *telegram.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500 || apiErr.Code == http.StatusTooManyRequests
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}

// isSevere reports whether the error text matches a severity keyword.
func isSevere(err error) bool {
	text := strings.ToLower(err.Error())
	for _, kw := range severityKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

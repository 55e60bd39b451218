package bot

import (
	"context"

	"github.com/bazarhub/bazar-marketplace/internal/infrastructure/telegram"
	"github.com/bazarhub/bazar-marketplace/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// MESSENGER
// Single choke point for outbound Telegram traffic: every call goes
// through the retry executor, so backoff behavior and connection health
// accounting are uniform across handlers, the pipeline and the monitor.
// ══════════════════════════════════════════════════════════════════════════════

// TelegramMessenger implements Messenger, the pipeline's Notifier and the
// monitor's Prober/Alerter over one Telegram client.
type TelegramMessenger struct {
	client *telegram.Client
	exec   *retry.Executor

	// adminChatID receives operator alerts. Zero disables alerting.
	adminChatID int64
}

// NewMessenger creates a messenger.
func NewMessenger(client *telegram.Client, exec *retry.Executor, adminChatID int64) *TelegramMessenger {
	return &TelegramMessenger{
		client:      client,
		exec:        exec,
		adminChatID: adminChatID,
	}
}

// Send delivers a new message.
func (m *TelegramMessenger) Send(ctx context.Context, chatID int64, resp Response) error {
	return m.exec.Do(ctx, func(ctx context.Context) error {
		_, err := m.client.SendMessage(ctx, telegram.SendMessageParams{
			ChatID:      chatID,
			Text:        resp.Text,
			ParseMode:   resp.ParseMode,
			ReplyMarkup: resp.Keyboard,
		})
		return err
	}, telegram.Classify)
}

// Edit replaces a previously sent message.
func (m *TelegramMessenger) Edit(ctx context.Context, chatID, messageID int64, resp Response) error {
	return m.exec.Do(ctx, func(ctx context.Context) error {
		_, err := m.client.EditMessageText(ctx, chatID, messageID, resp.Text, resp.ParseMode, resp.Keyboard)
		return err
	}, telegram.Classify)
}

// AnswerCallback acknowledges a callback query.
func (m *TelegramMessenger) AnswerCallback(ctx context.Context, queryID, text string) error {
	return m.exec.Do(ctx, func(ctx context.Context) error {
		return m.client.AnswerCallbackQuery(ctx, queryID, text, false)
	}, telegram.Classify)
}

// Notify sends a pipeline short-circuit notice.
func (m *TelegramMessenger) Notify(ctx context.Context, chatID int64, text string) error {
	return m.Send(ctx, chatID, Response{Text: text, ParseMode: "HTML"})
}

// Ping performs a single getMe call. The monitor wraps it in its own
// executor, so no retries here.
func (m *TelegramMessenger) Ping(ctx context.Context) error {
	_, err := m.client.GetMe(ctx)
	return err
}

// Alert delivers an operator alert to the admin chat.
func (m *TelegramMessenger) Alert(ctx context.Context, text string) error {
	if m.adminChatID == 0 {
		return nil
	}
	return m.Send(ctx, m.adminChatID, Response{Text: text})
}

package middleware

import (
	"context"

	"github.com/bazarhub/bazar-marketplace/internal/bot"
	"github.com/bazarhub/bazar-marketplace/internal/moderation"
	"github.com/bazarhub/bazar-marketplace/pkg/logger"
)

// Moderation enforces two policies: banned users may only reach /appeal
// and /support, and message text classified as blocking is rejected.
// Callback data is bot-authored and never filtered.
type Moderation struct {
	classifier moderation.Classifier
	logger     *logger.Logger
}

// NewModeration creates the moderation stage.
func NewModeration(classifier moderation.Classifier, log *logger.Logger) *Moderation {
	if log == nil {
		log = logger.Default()
	}
	return &Moderation{
		classifier: classifier,
		logger:     log,
	}
}

func (s *Moderation) Name() string { return "moderation" }

func (s *Moderation) Process(ctx context.Context, req *Request) (Result, error) {
	if req.User != nil && req.User.IsBanned && !banExempt(req.Command) {
		s.logger.Info("banned user stopped",
			logger.UserID(int64(req.User.TelegramID)),
			logger.Command(string(req.Command)))
		return Stop(suspensionNotice), nil
	}

	if req.Text == "" || s.classifier == nil {
		return Continue(), nil
	}

	verdict, err := s.classifier.Classify(ctx, req.Text)
	if err != nil {
		return Result{}, err
	}

	switch verdict.Severity {
	case moderation.SeverityBlocking:
		s.logger.Warn("blocking content rejected",
			logger.UpdateID(req.Update.UpdateID),
			logger.Any("matches", verdict.Matches))
		return Stop(blockedContentNotice), nil
	case moderation.SeverityFlagged:
		s.logger.Info("content flagged for review",
			logger.UpdateID(req.Update.UpdateID),
			logger.Any("matches", verdict.Matches))
	}

	return Continue(), nil
}

// banExempt lists the commands a suspended user may still use.
func banExempt(cmd bot.Command) bool {
	return cmd == bot.CmdAppeal || cmd == bot.CmdSupport
}

const suspensionNotice = "🚫 <b>Твой аккаунт заблокирован</b>\n\n" +
	"Доступны только /appeal (обжаловать блокировку) и /support (связаться с поддержкой)."

const blockedContentNotice = "⛔️ Сообщение отклонено: оно содержит запрещённый контент.\n" +
	"Ознакомься с правилами площадки: /help"

package middleware

import (
	"context"

	"github.com/bazarhub/bazar-marketplace/pkg/logger"
)

// Preprocess logs update metadata and silently drops updates that carry
// neither a sender nor a chat context: there is nothing to rate-limit,
// nobody to reply to.
type Preprocess struct {
	logger *logger.Logger
}

// NewPreprocess creates the preprocessing stage.
func NewPreprocess(log *logger.Logger) *Preprocess {
	if log == nil {
		log = logger.Default()
	}
	return &Preprocess{logger: log}
}

func (s *Preprocess) Name() string { return "preprocess" }

func (s *Preprocess) Process(ctx context.Context, req *Request) (Result, error) {
	fields := []logger.Field{
		logger.UpdateID(req.Update.UpdateID),
		logger.String("update_type", updateType(req)),
	}
	if req.Sender != nil {
		fields = append(fields, logger.UserID(req.Sender.ID))
	}
	if req.Chat != nil {
		fields = append(fields, logger.ChatID(req.Chat.ID))
	}
	if req.Command != "" {
		fields = append(fields, logger.Command(string(req.Command)))
	}
	s.logger.Info("update received", fields...)

	if req.Sender == nil && req.Chat == nil {
		s.logger.Debug("malformed update dropped", logger.UpdateID(req.Update.UpdateID))
		return Stop(""), nil
	}

	return Continue(), nil
}

func updateType(req *Request) string {
	switch {
	case req.Update.Message != nil:
		return "message"
	case req.Update.EditedMessage != nil:
		return "edited_message"
	case req.Update.CallbackQuery != nil:
		return "callback_query"
	case req.Update.InlineQuery != nil:
		return "inline_query"
	default:
		return "other"
	}
}

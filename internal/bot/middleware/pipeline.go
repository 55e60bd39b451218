// Package middleware implements the ordered stage pipeline every inbound
// update passes through before reaching a handler: preprocessing, rate
// limiting, authentication, moderation and admin gating. Each stage returns
// an explicit Continue or Stop result; a Stop consumes the update and no
// further stage or handler runs.
package middleware

import (
	"context"
	"time"

	"github.com/bazarhub/bazar-marketplace/internal/bot"
	"github.com/bazarhub/bazar-marketplace/internal/domain/user"
	"github.com/bazarhub/bazar-marketplace/internal/infrastructure/telegram"
	"github.com/bazarhub/bazar-marketplace/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// STAGE CONTRACT
// ══════════════════════════════════════════════════════════════════════════════

// Result is a stage's verdict on an update.
type Result struct {
	proceed bool
	notice  string
}

// Continue passes the update to the next stage.
func Continue() Result {
	return Result{proceed: true}
}

// Stop consumes the update. A non-empty notice is sent back to the chat;
// an empty notice drops the update silently.
func Stop(notice string) Result {
	return Result{notice: notice}
}

// Proceed reports whether the next stage should run.
func (r Result) Proceed() bool { return r.proceed }

// Notice returns the text to send when the update was stopped.
func (r Result) Notice() string { return r.notice }

// Stage is one step of the pipeline. An error return aborts the whole
// pipeline for this update and propagates to the webhook handler.
type Stage interface {
	Name() string
	Process(ctx context.Context, req *Request) (Result, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST
// ══════════════════════════════════════════════════════════════════════════════

// Request is the mutable per-update state the stages share. Sender, Chat
// and Command are extracted once from the raw update; the auth stage
// attaches the resolved User for downstream stages and handlers.
type Request struct {
	Update *telegram.Update

	Sender *telegram.User
	Chat   *telegram.Chat

	// Command and Args are parsed from message text; CmdNone for plain
	// text and callbacks.
	Command bot.Command
	Args    string

	// Text is the raw message text (empty for callbacks).
	Text string

	// User is the marketplace user record, attached by the auth stage.
	// May stay nil when user bookkeeping fails.
	User *user.User
}

// NewRequest extracts sender, chat and command from a parsed update.
func NewRequest(upd *telegram.Update) *Request {
	req := &Request{Update: upd}

	switch {
	case upd.Message != nil:
		req.Sender = upd.Message.From
		req.Chat = upd.Message.Chat
		req.Text = upd.Message.Text
		req.Command, req.Args = bot.ParseCommand(upd.Message.Text)
	case upd.EditedMessage != nil:
		req.Sender = upd.EditedMessage.From
		req.Chat = upd.EditedMessage.Chat
		req.Text = upd.EditedMessage.Text
		req.Command, req.Args = bot.ParseCommand(upd.EditedMessage.Text)
	case upd.CallbackQuery != nil:
		req.Sender = upd.CallbackQuery.From
		if upd.CallbackQuery.Message != nil {
			req.Chat = upd.CallbackQuery.Message.Chat
		}
	case upd.InlineQuery != nil:
		req.Sender = upd.InlineQuery.From
	}

	return req
}

// ══════════════════════════════════════════════════════════════════════════════
// PIPELINE
// ══════════════════════════════════════════════════════════════════════════════

// Notifier delivers a short-circuit notice back to the chat. Implemented
// over the Telegram client behind the retry executor.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// Pipeline runs the stages strictly in registration order.
type Pipeline struct {
	stages   []Stage
	notifier Notifier
	logger   *logger.Logger
}

// NewPipeline creates a pipeline. Stages run in the given order.
func NewPipeline(notifier Notifier, log *logger.Logger, stages ...Stage) *Pipeline {
	if log == nil {
		log = logger.Default()
	}
	return &Pipeline{
		stages:   stages,
		notifier: notifier,
		logger:   log.With(logger.Component("pipeline")),
	}
}

// Process pushes the update through the stages and reports whether handler
// dispatch should proceed. A Stop notice is sent best-effort before
// returning false. A stage error aborts immediately; the fixed completion
// log line records elapsed time in every case.
func (p *Pipeline) Process(ctx context.Context, req *Request) (proceed bool, err error) {
	start := time.Now()
	defer func() {
		p.logger.Info("update processed",
			logger.UpdateID(req.Update.UpdateID),
			logger.Bool("dispatched", proceed),
			logger.Latency(time.Since(start)))
	}()

	for _, stage := range p.stages {
		res, err := stage.Process(ctx, req)
		if err != nil {
			return false, err
		}
		if res.Proceed() {
			continue
		}

		if notice := res.Notice(); notice != "" && req.Chat != nil {
			if nerr := p.notifier.Notify(ctx, req.Chat.ID, notice); nerr != nil {
				p.logger.Warn("stop notice delivery failed",
					logger.String("stage", stage.Name()),
					logger.Err(nerr))
			}
		}

		p.logger.Debug("update stopped",
			logger.String("stage", stage.Name()),
			logger.UpdateID(req.Update.UpdateID))
		return false, nil
	}

	return true, nil
}

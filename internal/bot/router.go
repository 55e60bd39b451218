package bot

import (
	"context"
	"strings"
	"sync"

	"github.com/bazarhub/bazar-marketplace/internal/domain/user"
	"github.com/bazarhub/bazar-marketplace/internal/infrastructure/telegram"
	"github.com/bazarhub/bazar-marketplace/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT TYPES
// These types carry context information through the routing process.
// ══════════════════════════════════════════════════════════════════════════════

// CommandContext contains context for command handling.
type CommandContext struct {
	// Sender is the Telegram user who issued the command.
	Sender *telegram.User

	// Chat is where the command was sent.
	Chat *telegram.Chat

	// MessageID is the ID of the message containing the command.
	MessageID int64

	// Command is the parsed command.
	Command Command

	// Args is the text after the command.
	Args string

	// User is the resolved marketplace user (may be nil when user
	// bookkeeping failed upstream).
	User *user.User
}

// CallbackContext contains context for callback query handling.
type CallbackContext struct {
	// Sender is the Telegram user who pressed the button.
	Sender *telegram.User

	// Chat is where the inline keyboard lives (nil for inline-mode messages).
	Chat *telegram.Chat

	// MessageID is the ID of the message with the inline keyboard.
	MessageID int64

	// QueryID is the callback query ID (for answering).
	QueryID string

	// Data is the callback data string.
	Data string

	// User is the resolved marketplace user.
	User *user.User
}

// Response is what a handler wants sent back to the chat. The zero value
// means the handler has nothing to send.
type Response struct {
	// Text is the message body. Empty means no message.
	Text string

	// ParseMode is "HTML", "Markdown" or empty for plain text.
	ParseMode string

	// Keyboard is an optional inline keyboard.
	Keyboard *telegram.InlineKeyboardMarkup

	// Edit replaces the originating message instead of sending a new one.
	Edit bool

	// CallbackText is the short toast shown when answering a callback.
	CallbackText string
}

// Empty reports whether there is nothing to deliver.
func (r Response) Empty() bool {
	return r.Text == ""
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// CommandHandler handles one bot command.
type CommandHandler interface {
	Handle(ctx context.Context, cmdCtx CommandContext) (Response, error)
}

// CommandHandlerFunc adapts a function to CommandHandler.
type CommandHandlerFunc func(ctx context.Context, cmdCtx CommandContext) (Response, error)

// Handle implements CommandHandler.
func (f CommandHandlerFunc) Handle(ctx context.Context, cmdCtx CommandContext) (Response, error) {
	return f(ctx, cmdCtx)
}

// CallbackHandler handles callback queries matching a registered prefix.
type CallbackHandler interface {
	Handle(ctx context.Context, cbCtx CallbackContext) (Response, error)
}

// CallbackHandlerFunc adapts a function to CallbackHandler.
type CallbackHandlerFunc func(ctx context.Context, cbCtx CallbackContext) (Response, error)

// Handle implements CallbackHandler.
func (f CallbackHandlerFunc) Handle(ctx context.Context, cbCtx CallbackContext) (Response, error) {
	return f(ctx, cbCtx)
}

// Messenger delivers handler responses. Implemented over the Telegram
// client behind the retry executor so every outbound call shares one
// backoff policy.
type Messenger interface {
	Send(ctx context.Context, chatID int64, resp Response) error
	Edit(ctx context.Context, chatID, messageID int64, resp Response) error
	AnswerCallback(ctx context.Context, queryID, text string) error
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTER
// Routes parsed updates to registered handlers. Unknown commands and
// callback actions fall back to built-in handlers.
// ══════════════════════════════════════════════════════════════════════════════

// Router dispatches commands and callbacks to their handlers.
type Router struct {
	messenger Messenger
	logger    *logger.Logger

	mu        sync.RWMutex
	commands  map[Command]CommandHandler
	callbacks map[string]CallbackHandler

	unknownCommand  CommandHandler
	unknownCallback CallbackHandler
}

// NewRouter creates a router delivering responses through the messenger.
func NewRouter(messenger Messenger, log *logger.Logger) *Router {
	if log == nil {
		log = logger.Default()
	}

	r := &Router{
		messenger: messenger,
		logger:    log.With(logger.Component("router")),
		commands:  make(map[Command]CommandHandler),
		callbacks: make(map[string]CallbackHandler),
	}

	r.unknownCommand = CommandHandlerFunc(r.handleUnknownCommand)
	r.unknownCallback = CallbackHandlerFunc(r.handleUnknownCallback)

	return r
}

// RegisterCommand registers a handler for a command.
func (r *Router) RegisterCommand(cmd Command, h CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[cmd] = h
}

// RegisterCallbackPrefix registers a handler for callbacks matching a
// prefix. The prefix should include the trailing delimiter (e.g.
// "listing:view:").
func (r *Router) RegisterCallbackPrefix(prefix string, h CallbackHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[prefix] = h
}

// SetUnknownCommandHandler overrides the fallback for unregistered commands.
func (r *Router) SetUnknownCommandHandler(h CommandHandler) {
	r.unknownCommand = h
}

// DispatchCommand routes a command to its handler and delivers the
// response.
func (r *Router) DispatchCommand(ctx context.Context, cmdCtx CommandContext) error {
	r.mu.RLock()
	h, ok := r.commands[cmdCtx.Command]
	r.mu.RUnlock()

	if !ok {
		r.logger.Debug("no handler for command", logger.Command(string(cmdCtx.Command)))
		h = r.unknownCommand
	}

	resp, err := h.Handle(ctx, cmdCtx)
	if err != nil {
		return err
	}

	return r.deliver(ctx, cmdCtx.Chat, cmdCtx.MessageID, resp)
}

// DispatchCallback routes a callback query by longest matching prefix,
// answers the query and delivers the response.
func (r *Router) DispatchCallback(ctx context.Context, cbCtx CallbackContext) error {
	r.mu.RLock()
	var matched CallbackHandler
	longest := -1
	for prefix, h := range r.callbacks {
		if strings.HasPrefix(cbCtx.Data, prefix) && len(prefix) > longest {
			longest = len(prefix)
			matched = h
		}
	}
	r.mu.RUnlock()

	if matched == nil {
		matched = r.unknownCallback
	}

	resp, err := matched.Handle(ctx, cbCtx)
	if err != nil {
		return err
	}

	// Answer first so the button stops spinning even when delivery fails.
	if cbCtx.QueryID != "" {
		if aerr := r.messenger.AnswerCallback(ctx, cbCtx.QueryID, resp.CallbackText); aerr != nil {
			r.logger.Warn("answer callback failed", logger.Err(aerr))
		}
	}

	return r.deliver(ctx, cbCtx.Chat, cbCtx.MessageID, resp)
}

// deliver sends or edits depending on the response.
func (r *Router) deliver(ctx context.Context, chat *telegram.Chat, messageID int64, resp Response) error {
	if resp.Empty() || chat == nil {
		return nil
	}
	if resp.Edit {
		return r.messenger.Edit(ctx, chat.ID, messageID, resp)
	}
	return r.messenger.Send(ctx, chat.ID, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEFAULT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (r *Router) handleUnknownCommand(ctx context.Context, cmdCtx CommandContext) (Response, error) {
	text := "❓ <b>Неизвестная команда</b>\n\n" +
		"Доступные команды:\n" +
		"• /sell — разместить объявление\n" +
		"• /mylistings — мои объявления\n" +
		"• /search — поиск по объявлениям\n" +
		"• /support — связаться с поддержкой\n" +
		"• /help — справка"

	return Response{Text: text, ParseMode: "HTML"}, nil
}

func (r *Router) handleUnknownCallback(ctx context.Context, cbCtx CallbackContext) (Response, error) {
	// Just log it, don't send a message to avoid spam.
	r.logger.Warn("unknown callback", logger.String("data", cbCtx.Data))
	return Response{}, nil
}

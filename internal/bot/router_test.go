package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazarhub/bazar-marketplace/internal/infrastructure/telegram"
)

type messengerSpy struct {
	sent      []Response
	edited    []Response
	answered  []string
	sendErr   error
	answerErr error
}

func (m *messengerSpy) Send(ctx context.Context, chatID int64, resp Response) error {
	m.sent = append(m.sent, resp)
	return m.sendErr
}

func (m *messengerSpy) Edit(ctx context.Context, chatID, messageID int64, resp Response) error {
	m.edited = append(m.edited, resp)
	return nil
}

func (m *messengerSpy) AnswerCallback(ctx context.Context, queryID, text string) error {
	m.answered = append(m.answered, queryID)
	return m.answerErr
}

func privateChat(id int64) *telegram.Chat {
	return &telegram.Chat{ID: id, Type: "private"}
}

func TestRouter_DispatchCommandToRegisteredHandler(t *testing.T) {
	spy := &messengerSpy{}
	r := NewRouter(spy, nil)

	calls := 0
	r.RegisterCommand(CmdHelp, CommandHandlerFunc(func(ctx context.Context, cmdCtx CommandContext) (Response, error) {
		calls++
		return Response{Text: "справка", ParseMode: "HTML"}, nil
	}))

	err := r.DispatchCommand(context.Background(), CommandContext{
		Command: CmdHelp,
		Chat:    privateChat(1),
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	require.Len(t, spy.sent, 1)
	assert.Equal(t, "справка", spy.sent[0].Text)
}

func TestRouter_UnknownCommandFallsBack(t *testing.T) {
	spy := &messengerSpy{}
	r := NewRouter(spy, nil)

	err := r.DispatchCommand(context.Background(), CommandContext{
		Command: Command("frobnicate"),
		Chat:    privateChat(1),
	})

	require.NoError(t, err)
	require.Len(t, spy.sent, 1)
	assert.Contains(t, spy.sent[0].Text, "Неизвестная команда")
}

func TestRouter_HandlerErrorPropagates(t *testing.T) {
	spy := &messengerSpy{}
	r := NewRouter(spy, nil)

	boom := errors.New("database timeout")
	r.RegisterCommand(CmdSell, CommandHandlerFunc(func(ctx context.Context, cmdCtx CommandContext) (Response, error) {
		return Response{}, boom
	}))

	err := r.DispatchCommand(context.Background(), CommandContext{Command: CmdSell, Chat: privateChat(1)})

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, spy.sent)
}

func TestRouter_EmptyResponseSendsNothing(t *testing.T) {
	spy := &messengerSpy{}
	r := NewRouter(spy, nil)

	r.RegisterCommand(CmdStart, CommandHandlerFunc(func(ctx context.Context, cmdCtx CommandContext) (Response, error) {
		return Response{}, nil
	}))

	err := r.DispatchCommand(context.Background(), CommandContext{Command: CmdStart, Chat: privateChat(1)})

	require.NoError(t, err)
	assert.Empty(t, spy.sent)
}

func TestRouter_CallbackLongestPrefixWins(t *testing.T) {
	spy := &messengerSpy{}
	r := NewRouter(spy, nil)

	var hit string
	r.RegisterCallbackPrefix("listing:", CallbackHandlerFunc(func(ctx context.Context, cbCtx CallbackContext) (Response, error) {
		hit = "listing:"
		return Response{}, nil
	}))
	r.RegisterCallbackPrefix("listing:del:", CallbackHandlerFunc(func(ctx context.Context, cbCtx CallbackContext) (Response, error) {
		hit = "listing:del:"
		return Response{CallbackText: "удалено"}, nil
	}))

	err := r.DispatchCallback(context.Background(), CallbackContext{
		QueryID: "q1",
		Data:    "listing:del:abc-123",
		Chat:    privateChat(1),
	})

	require.NoError(t, err)
	assert.Equal(t, "listing:del:", hit)
	assert.Equal(t, []string{"q1"}, spy.answered)
}

func TestRouter_CallbackEditResponse(t *testing.T) {
	spy := &messengerSpy{}
	r := NewRouter(spy, nil)

	r.RegisterCallbackPrefix("cat:", CallbackHandlerFunc(func(ctx context.Context, cbCtx CallbackContext) (Response, error) {
		return Response{Text: "категория", Edit: true}, nil
	}))

	err := r.DispatchCallback(context.Background(), CallbackContext{
		QueryID:   "q2",
		Data:      "cat:electronics",
		Chat:      privateChat(1),
		MessageID: 55,
	})

	require.NoError(t, err)
	assert.Empty(t, spy.sent)
	require.Len(t, spy.edited, 1)
	assert.Equal(t, "категория", spy.edited[0].Text)
}

func TestRouter_UnknownCallbackIsSilent(t *testing.T) {
	spy := &messengerSpy{}
	r := NewRouter(spy, nil)

	err := r.DispatchCallback(context.Background(), CallbackContext{
		QueryID: "q3",
		Data:    "nonsense:data",
		Chat:    privateChat(1),
	})

	require.NoError(t, err)
	assert.Empty(t, spy.sent)
	assert.Equal(t, []string{"q3"}, spy.answered, "query still answered")
}

func TestRouter_AnswerCallbackFailureDoesNotError(t *testing.T) {
	spy := &messengerSpy{answerErr: errors.New("query expired")}
	r := NewRouter(spy, nil)

	r.RegisterCallbackPrefix("listing:view:", CallbackHandlerFunc(func(ctx context.Context, cbCtx CallbackContext) (Response, error) {
		return Response{Text: "объявление"}, nil
	}))

	err := r.DispatchCallback(context.Background(), CallbackContext{
		QueryID: "q4",
		Data:    "listing:view:abc",
		Chat:    privateChat(1),
	})

	require.NoError(t, err)
	assert.Len(t, spy.sent, 1)
}

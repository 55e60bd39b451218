package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazarhub/bazar-marketplace/internal/bot"
	"github.com/bazarhub/bazar-marketplace/internal/bot/handler"
	"github.com/bazarhub/bazar-marketplace/internal/bot/middleware"
	"github.com/bazarhub/bazar-marketplace/internal/bot/session"
	"github.com/bazarhub/bazar-marketplace/internal/domain/listing"
	"github.com/bazarhub/bazar-marketplace/internal/domain/shared"
	"github.com/bazarhub/bazar-marketplace/internal/domain/user"
	"github.com/bazarhub/bazar-marketplace/internal/infrastructure/telegram"
	"github.com/bazarhub/bazar-marketplace/pkg/clock"
	"github.com/bazarhub/bazar-marketplace/pkg/logger"
)

const (
	testSecret  = "wh-secret"
	testAdminID = int64(777)
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type messengerSpy struct {
	mu       sync.Mutex
	sent     []string
	alerts   []string
	answered []string
	sendErr  error
}

func (m *messengerSpy) Send(ctx context.Context, chatID int64, resp bot.Response) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, resp.Text)
	return nil
}

func (m *messengerSpy) Edit(ctx context.Context, chatID, messageID int64, resp bot.Response) error {
	return m.Send(ctx, chatID, resp)
}

func (m *messengerSpy) AnswerCallback(ctx context.Context, queryID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answered = append(m.answered, queryID)
	return nil
}

func (m *messengerSpy) Notify(ctx context.Context, chatID int64, text string) error {
	return m.Send(ctx, chatID, bot.Response{Text: text})
}

func (m *messengerSpy) Alert(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, text)
	return nil
}

func (m *messengerSpy) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *messengerSpy) lastSent() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1]
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[user.TelegramID]*user.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[user.TelegramID]*user.User)}
}

func (r *fakeUserRepo) Create(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.TelegramID]; ok {
		return shared.ErrUserAlreadyExists
	}
	r.users[u.TelegramID] = u
	return nil
}

func (r *fakeUserRepo) GetByTelegramID(ctx context.Context, telegramID user.TelegramID) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[telegramID]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) Update(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.TelegramID]; !ok {
		return shared.ErrUserNotFound
	}
	r.users[u.TelegramID] = u
	return nil
}

func (r *fakeUserRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

type fakeListingRepo struct {
	mu        sync.Mutex
	listings  map[string]*listing.Listing
	createErr error
}

func newFakeListingRepo() *fakeListingRepo {
	return &fakeListingRepo{listings: make(map[string]*listing.Listing)}
}

func (r *fakeListingRepo) Create(ctx context.Context, l *listing.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.listings[l.ID] = l
	return nil
}

func (r *fakeListingRepo) GetByID(ctx context.Context, id string) (*listing.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok {
		return nil, shared.ErrListingNotFound
	}
	return l, nil
}

func (r *fakeListingRepo) GetBySeller(ctx context.Context, seller user.TelegramID, opts listing.ListOptions) ([]*listing.Listing, error) {
	return nil, nil
}

func (r *fakeListingRepo) Search(ctx context.Context, query string, opts listing.ListOptions) ([]*listing.Listing, error) {
	return nil, nil
}

func (r *fakeListingRepo) GetByCategory(ctx context.Context, category string, opts listing.ListOptions) ([]*listing.Listing, error) {
	return nil, nil
}

func (r *fakeListingRepo) Update(ctx context.Context, l *listing.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listings[l.ID] = l
	return nil
}

func (r *fakeListingRepo) Count(ctx context.Context) (int, error) {
	return len(r.listings), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Fixture
// ─────────────────────────────────────────────────────────────────────────────

type fixture struct {
	handler   *WebhookHandler
	spy       *messengerSpy
	sessions  *session.Store
	users     *fakeUserRepo
	listings  *fakeListingRepo
	clk       *clock.Fake
	dispatchN *int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logger.New(logger.Options{Output: io.Discard, Level: logger.LevelError})
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	spy := &messengerSpy{}
	users := newFakeUserRepo()
	listings := newFakeListingRepo()
	sessions := session.NewStore(session.DefaultConfig(), clk)

	isAdmin := func(id int64) bool { return id == testAdminID }
	pipeline := middleware.NewPipeline(spy, log,
		middleware.NewPreprocess(log),
		middleware.NewRateLimit(middleware.DefaultRateLimitConfig(), sessions, clk, isAdmin, log),
		middleware.NewAuth(users, clk, log),
		middleware.NewModeration(nil, log),
		middleware.NewAdminGate(isAdmin, log),
	)

	router := bot.NewRouter(spy, log)
	dispatched := 0
	router.RegisterCommand(bot.CmdHelp, bot.CommandHandlerFunc(func(ctx context.Context, cmdCtx bot.CommandContext) (bot.Response, error) {
		dispatched++
		return bot.Response{Text: "помощь"}, nil
	}))

	sell := handler.NewSellHandler(sessions, listings, clk, log)
	router.RegisterCommand(bot.CmdSell, sell)

	wh := NewWebhookHandler(
		NewWebhookValidator(testSecret, log),
		pipeline,
		router,
		sessions,
		sell,
		spy,
		spy,
		log,
	)
	wh.newRequestID = func() string { return "req-1" }

	return &fixture{
		handler:   wh,
		spy:       spy,
		sessions:  sessions,
		users:     users,
		listings:  listings,
		clk:       clk,
		dispatchN: &dispatched,
	}
}

func messagePayload(t *testing.T, updateID, senderID int64, text string) []byte {
	t.Helper()
	upd := telegram.Update{
		UpdateID: updateID,
		Message: &telegram.Message{
			MessageID: updateID,
			From:      &telegram.User{ID: senderID, FirstName: "Айгерим", Username: "aigerim"},
			Chat:      &telegram.Chat{ID: senderID, Type: "private"},
			Text:      text,
		},
	}
	raw, err := json.Marshal(upd)
	require.NoError(t, err)
	return raw
}

func webhookRequest(body []byte, secret string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	if secret != "" {
		r.Header.Set(secretTokenHeader, secret)
	}
	return r
}

func (f *fixture) post(t *testing.T, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, webhookRequest(body, testSecret))
	return w
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestWebhook_HelpCommandDispatchedOnce(t *testing.T) {
	f := newFixture(t)

	w := f.post(t, messagePayload(t, 1, 42, "/help"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, *f.dispatchN)
	assert.Equal(t, 1, f.sessions.Get(42).MessageCount)
	assert.Equal(t, "помощь", f.spy.lastSent())
}

func TestWebhook_EleventhMessageThrottled(t *testing.T) {
	f := newFixture(t)

	for i := 1; i <= 11; i++ {
		w := f.post(t, messagePayload(t, int64(i), 42, "/help"))
		assert.Equal(t, http.StatusOK, w.Code, "update %d", i)
	}

	assert.Equal(t, 10, *f.dispatchN, "the 11th message must not reach the handler")
	assert.Equal(t, 10, f.sessions.Get(42).MessageCount)
	assert.Contains(t, f.spy.lastSent(), "Слишком много", "throttle notice sent")
}

func TestWebhook_MismatchedSecretRejectedBeforeProcessing(t *testing.T) {
	f := newFixture(t)

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, webhookRequest(messagePayload(t, 1, 42, "/help"), "wrong"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, *f.dispatchN)
	assert.Equal(t, 0, f.sessions.Get(42).MessageCount, "no session mutation on rejected request")
}

func TestWebhook_MissingContentTypeRejected(t *testing.T) {
	f := newFixture(t)

	r := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(messagePayload(t, 1, 42, "/help")))
	r.Header.Set(secretTokenHeader, testSecret)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhook_OversizedBodyRejected(t *testing.T) {
	f := newFixture(t)

	r := webhookRequest(messagePayload(t, 1, 42, "/help"), testSecret)
	r.ContentLength = MaxWebhookBodySize + 1
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhook_MalformedPayloadReturns500(t *testing.T) {
	f := newFixture(t)

	w := f.post(t, []byte("{not json"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhook_PlainTextFeedsSellFlow(t *testing.T) {
	f := newFixture(t)

	w := f.post(t, messagePayload(t, 1, 42, "/sell"))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, handler.FlowSell, f.sessions.Get(42).CurrentFlow)

	w = f.post(t, messagePayload(t, 2, 42, "Велосипед Stels"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, f.spy.lastSent(), "цену", "flow asks for the price next")

	w = f.post(t, messagePayload(t, 3, 42, "45000"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, f.spy.lastSent(), "опубликовано")
	assert.Empty(t, f.sessions.Get(42).CurrentFlow, "flow cleared after publication")

	f.listings.mu.Lock()
	defer f.listings.mu.Unlock()
	require.Len(t, f.listings.listings, 1)
	for _, l := range f.listings.listings {
		assert.Equal(t, "Велосипед Stels", l.Title)
		assert.Equal(t, listing.Price(45000), l.Price)
	}
}

func TestWebhook_PlainTextOutsideFlowIgnored(t *testing.T) {
	f := newFixture(t)

	w := f.post(t, messagePayload(t, 1, 42, "привет"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, f.spy.sentCount())
}

func TestWebhook_UpstreamExhaustionReturns503(t *testing.T) {
	f := newFixture(t)

	apiErr := &telegram.APIError{Method: "sendMessage", Code: 502, Description: "bad gateway"}
	f.spy.sendErr = apiErr

	w := f.post(t, messagePayload(t, 1, 42, "/help"))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestWebhook_HandlerErrorRecoveredWithApology(t *testing.T) {
	f := newFixture(t)
	f.listings.createErr = fmt.Errorf("database connection lost")

	f.post(t, messagePayload(t, 1, 42, "/sell"))
	f.post(t, messagePayload(t, 2, 42, "Велосипед"))
	w := f.post(t, messagePayload(t, 3, 42, "45000"))

	assert.Equal(t, http.StatusOK, w.Code, "recovered errors are acknowledged")
	assert.Equal(t, apologyText, f.spy.lastSent())
	require.Len(t, f.spy.alerts, 1, "database errors alert the operator")
	assert.Contains(t, f.spy.alerts[0], "req-1")
}

func TestWebhook_NonSevereErrorDoesNotAlert(t *testing.T) {
	f := newFixture(t)
	f.listings.createErr = fmt.Errorf("weird glitch")

	f.post(t, messagePayload(t, 1, 42, "/sell"))
	f.post(t, messagePayload(t, 2, 42, "Велосипед"))
	w := f.post(t, messagePayload(t, 3, 42, "45000"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.spy.alerts)
}

func TestWebhook_CallbackRoutedToRouter(t *testing.T) {
	f := newFixture(t)

	upd := telegram.Update{
		UpdateID: 1,
		CallbackQuery: &telegram.CallbackQuery{
			ID:   "cb-" + uuid.NewString(),
			From: &telegram.User{ID: 42, FirstName: "Айгерим"},
			Message: &telegram.Message{
				MessageID: 5,
				Chat:      &telegram.Chat{ID: 42, Type: "private"},
			},
			Data: "unknown:action",
		},
	}
	raw, err := json.Marshal(upd)
	require.NoError(t, err)

	w := f.post(t, raw)

	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.spy.answered, 1, "callback query is always answered")
}

func TestValidator_AllChecksEvaluated(t *testing.T) {
	log := logger.New(logger.Options{Output: io.Discard, Level: logger.LevelError})
	v := NewWebhookValidator("s3cret", log)

	r := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	r.Header.Set("Content-Type", "text/plain")
	r.Header.Set(secretTokenHeader, "wrong")
	r.Header.Set("User-Agent", "curl/8.0")
	r.ContentLength = MaxWebhookBodySize + 1

	result := v.Validate(r)

	assert.False(t, result.IsValid)
	assert.Len(t, result.Errors, 3, "every failing check is reported")
	assert.Contains(t, result.SecurityFlags, "secret_token_mismatch")
	assert.Contains(t, result.SecurityFlags, "unexpected_user_agent")
}

func TestValidator_TelegramUserAgentNotFlagged(t *testing.T) {
	log := logger.New(logger.Options{Output: io.Discard, Level: logger.LevelError})
	v := NewWebhookValidator("", log)

	r := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("User-Agent", "TelegramBot (like TwitterBot)")

	result := v.Validate(r)

	assert.True(t, result.IsValid)
	assert.Empty(t, result.SecurityFlags)
}

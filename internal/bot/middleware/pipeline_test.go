package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazarhub/bazar-marketplace/internal/bot"
	"github.com/bazarhub/bazar-marketplace/internal/bot/session"
	"github.com/bazarhub/bazar-marketplace/internal/domain/shared"
	"github.com/bazarhub/bazar-marketplace/internal/domain/user"
	"github.com/bazarhub/bazar-marketplace/internal/infrastructure/telegram"
	"github.com/bazarhub/bazar-marketplace/internal/moderation"
	"github.com/bazarhub/bazar-marketplace/pkg/clock"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIXTURES
// ══════════════════════════════════════════════════════════════════════════════

type notifierSpy struct {
	mu      sync.Mutex
	notices []string
	err     error
}

func (n *notifierSpy) Notify(ctx context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, text)
	return n.err
}

func (n *notifierSpy) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notices)
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[user.TelegramID]*user.User

	getErr    error
	createErr error
	updates   int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[user.TelegramID]*user.User)}
}

func (r *fakeUserRepo) Create(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.users[u.TelegramID]; ok {
		return shared.ErrUserAlreadyExists
	}
	r.users[u.TelegramID] = u
	return nil
}

func (r *fakeUserRepo) GetByTelegramID(ctx context.Context, id user.TelegramID) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	u, ok := r.users[id]
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
	r.updates++
	return nil
}

func (r *fakeUserRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

func messageUpdate(updateID, senderID int64, text string) *telegram.Update {
	return &telegram.Update{
		UpdateID: updateID,
		Message: &telegram.Message{
			MessageID: updateID,
			From:      &telegram.User{ID: senderID, FirstName: "Айгерим", Username: "aigerim"},
			Chat:      &telegram.Chat{ID: senderID, Type: "private"},
			Text:      text,
		},
	}
}

const adminID int64 = 777

func isAdmin(id int64) bool { return id == adminID }

// ══════════════════════════════════════════════════════════════════════════════
// PIPELINE
// ══════════════════════════════════════════════════════════════════════════════

type stubStage struct {
	name   string
	result Result
	err    error
	calls  int
}

func (s *stubStage) Name() string { return s.name }

func (s *stubStage) Process(ctx context.Context, req *Request) (Result, error) {
	s.calls++
	return s.result, s.err
}

func TestPipeline_RunsStagesInOrder(t *testing.T) {
	a := &stubStage{name: "a", result: Continue()}
	b := &stubStage{name: "b", result: Continue()}
	p := NewPipeline(&notifierSpy{}, nil, a, b)

	proceed, err := p.Process(context.Background(), NewRequest(messageUpdate(1, 10, "hi")))

	require.NoError(t, err)
	assert.True(t, proceed)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
}

func TestPipeline_StopSendsNoticeAndHaltsChain(t *testing.T) {
	a := &stubStage{name: "a", result: Stop("стоп")}
	b := &stubStage{name: "b", result: Continue()}
	notifier := &notifierSpy{}
	p := NewPipeline(notifier, nil, a, b)

	proceed, err := p.Process(context.Background(), NewRequest(messageUpdate(1, 10, "hi")))

	require.NoError(t, err)
	assert.False(t, proceed)
	assert.Equal(t, 0, b.calls, "stage after Stop must not run")
	require.Equal(t, 1, notifier.count())
	assert.Equal(t, "стоп", notifier.notices[0])
}

func TestPipeline_SilentStopSendsNothing(t *testing.T) {
	a := &stubStage{name: "a", result: Stop("")}
	notifier := &notifierSpy{}
	p := NewPipeline(notifier, nil, a)

	proceed, err := p.Process(context.Background(), NewRequest(messageUpdate(1, 10, "hi")))

	require.NoError(t, err)
	assert.False(t, proceed)
	assert.Zero(t, notifier.count())
}

func TestPipeline_StageErrorAborts(t *testing.T) {
	boom := errors.New("boom")
	a := &stubStage{name: "a", err: boom}
	b := &stubStage{name: "b", result: Continue()}
	p := NewPipeline(&notifierSpy{}, nil, a, b)

	proceed, err := p.Process(context.Background(), NewRequest(messageUpdate(1, 10, "hi")))

	assert.ErrorIs(t, err, boom)
	assert.False(t, proceed)
	assert.Equal(t, 0, b.calls)
}

func TestPipeline_NotifierFailureDoesNotError(t *testing.T) {
	a := &stubStage{name: "a", result: Stop("стоп")}
	notifier := &notifierSpy{err: errors.New("telegram down")}
	p := NewPipeline(notifier, nil, a)

	proceed, err := p.Process(context.Background(), NewRequest(messageUpdate(1, 10, "hi")))

	require.NoError(t, err)
	assert.False(t, proceed)
}

// ══════════════════════════════════════════════════════════════════════════════
// PREPROCESS
// ══════════════════════════════════════════════════════════════════════════════

func TestPreprocess_DropsSenderlessChatlessUpdateSilently(t *testing.T) {
	s := NewPreprocess(nil)
	req := NewRequest(&telegram.Update{UpdateID: 5})

	res, err := s.Process(context.Background(), req)

	require.NoError(t, err)
	assert.False(t, res.Proceed())
	assert.Empty(t, res.Notice())
}

func TestPreprocess_PassesNormalMessage(t *testing.T) {
	s := NewPreprocess(nil)
	req := NewRequest(messageUpdate(1, 10, "/help"))

	res, err := s.Process(context.Background(), req)

	require.NoError(t, err)
	assert.True(t, res.Proceed())
	assert.Equal(t, bot.CmdHelp, req.Command)
}

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMIT
// ══════════════════════════════════════════════════════════════════════════════

func newRateLimitFixture(t *testing.T) (*RateLimit, *session.Store, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := session.NewStore(session.DefaultConfig(), clk)
	stage := NewRateLimit(DefaultRateLimitConfig(), store, clk, isAdmin, nil)
	return stage, store, clk
}

func TestRateLimit_DefaultLimitTenPerWindow(t *testing.T) {
	stage, store, _ := newRateLimitFixture(t)
	req := NewRequest(messageUpdate(1, 10, "привет"))

	for i := 0; i < 10; i++ {
		res, err := stage.Process(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, res.Proceed(), "message %d within the limit", i+1)
	}

	res, err := stage.Process(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Proceed(), "11th message must be throttled")
	assert.NotEmpty(t, res.Notice())
	assert.Equal(t, 10, store.Get(10).MessageCount)
}

func TestRateLimit_AdminLimitHundredPerWindow(t *testing.T) {
	stage, _, _ := newRateLimitFixture(t)
	req := NewRequest(messageUpdate(1, adminID, "работаю"))

	for i := 0; i < 100; i++ {
		res, err := stage.Process(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, res.Proceed())
	}

	res, err := stage.Process(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Proceed())
}

func TestRateLimit_WindowElapseResetsCounter(t *testing.T) {
	stage, store, clk := newRateLimitFixture(t)
	req := NewRequest(messageUpdate(1, 10, "привет"))

	for i := 0; i < 10; i++ {
		res, err := stage.Process(context.Background(), req)
		require.NoError(t, err)
		require.True(t, res.Proceed())
	}

	clk.Advance(61 * time.Second)

	res, err := stage.Process(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Proceed(), "new window admits the sender again")
	assert.Equal(t, 1, store.Get(10).MessageCount)
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTH
// ══════════════════════════════════════════════════════════════════════════════

func TestAuth_CreatesUserOnFirstContact(t *testing.T) {
	repo := newFakeUserRepo()
	stage := NewAuth(repo, clock.NewFake(time.Now()), nil)
	req := NewRequest(messageUpdate(1, 42, "/start"))

	res, err := stage.Process(context.Background(), req)

	require.NoError(t, err)
	assert.True(t, res.Proceed())
	require.NotNil(t, req.User)
	assert.Equal(t, user.TelegramID(42), req.User.TelegramID)
	assert.Equal(t, "aigerim", req.User.Username)
	assert.NotEmpty(t, req.User.ID)
}

func TestAuth_RefreshesLastActiveOnReturn(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	repo := newFakeUserRepo()
	stage := NewAuth(repo, clk, nil)

	_, err := stage.Process(context.Background(), NewRequest(messageUpdate(1, 42, "/start")))
	require.NoError(t, err)

	clk.Advance(time.Hour)
	req := NewRequest(messageUpdate(2, 42, "/help"))
	_, err = stage.Process(context.Background(), req)
	require.NoError(t, err)

	require.NotNil(t, req.User)
	assert.Equal(t, clk.Now(), req.User.LastActiveAt)
	assert.Equal(t, 1, repo.updates)
}

func TestAuth_RepoFailureIsSwallowed(t *testing.T) {
	repo := newFakeUserRepo()
	repo.getErr = errors.New("database connection lost")
	stage := NewAuth(repo, nil, nil)
	req := NewRequest(messageUpdate(1, 42, "/help"))

	res, err := stage.Process(context.Background(), req)

	require.NoError(t, err, "bookkeeping failures must not block handling")
	assert.True(t, res.Proceed())
	assert.Nil(t, req.User)
}

// ══════════════════════════════════════════════════════════════════════════════
// MODERATION
// ══════════════════════════════════════════════════════════════════════════════

func bannedUser(t *testing.T, telegramID int64) *user.User {
	t.Helper()
	u, err := user.New("u-1", user.TelegramID(telegramID), "spammer", "Спам", "", time.Now())
	require.NoError(t, err)
	u.Ban("мошенничество")
	return u
}

func TestModeration_BannedUserStoppedOutsideAppealAndSupport(t *testing.T) {
	stage := NewModeration(moderation.NewWordListFilter(nil, nil), nil)

	for _, text := range []string{"/sell велосипед", "/help", "привет"} {
		req := NewRequest(messageUpdate(1, 99, text))
		req.User = bannedUser(t, 99)

		res, err := stage.Process(context.Background(), req)

		require.NoError(t, err)
		assert.False(t, res.Proceed(), "text %q", text)
		assert.Contains(t, res.Notice(), "заблокирован")
	}
}

func TestModeration_BannedUserMayAppealAndContactSupport(t *testing.T) {
	stage := NewModeration(moderation.NewWordListFilter(nil, nil), nil)

	for _, text := range []string{"/appeal меня забанили", "/support"} {
		req := NewRequest(messageUpdate(1, 99, text))
		req.User = bannedUser(t, 99)

		res, err := stage.Process(context.Background(), req)

		require.NoError(t, err)
		assert.True(t, res.Proceed(), "text %q", text)
	}
}

func TestModeration_BlockingContentRejected(t *testing.T) {
	stage := NewModeration(moderation.NewWordListFilter(nil, nil), nil)
	req := NewRequest(messageUpdate(1, 10, "продам оружие недорого"))

	res, err := stage.Process(context.Background(), req)

	require.NoError(t, err)
	assert.False(t, res.Proceed())
	assert.NotEmpty(t, res.Notice())
}

func TestModeration_FlaggedContentPassesThrough(t *testing.T) {
	stage := NewModeration(moderation.NewWordListFilter(nil, nil), nil)
	req := NewRequest(messageUpdate(1, 10, "только предоплата на карту"))

	res, err := stage.Process(context.Background(), req)

	require.NoError(t, err)
	assert.True(t, res.Proceed())
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN GATE
// ══════════════════════════════════════════════════════════════════════════════

func TestAdminGate_DeniesNonAdmin(t *testing.T) {
	stage := NewAdminGate(isAdmin, nil)
	req := NewRequest(messageUpdate(1, 10, "/admin_ban 42 спам"))

	res, err := stage.Process(context.Background(), req)

	require.NoError(t, err)
	assert.False(t, res.Proceed())
	assert.NotEmpty(t, res.Notice())
}

func TestAdminGate_AllowsConfiguredAdmin(t *testing.T) {
	stage := NewAdminGate(isAdmin, nil)
	req := NewRequest(messageUpdate(1, adminID, "/admin_stats"))

	res, err := stage.Process(context.Background(), req)

	require.NoError(t, err)
	assert.True(t, res.Proceed())
}

func TestAdminGate_IgnoresRegularCommands(t *testing.T) {
	stage := NewAdminGate(isAdmin, nil)
	req := NewRequest(messageUpdate(1, 10, "/help"))

	res, err := stage.Process(context.Background(), req)

	require.NoError(t, err)
	assert.True(t, res.Proceed())
}

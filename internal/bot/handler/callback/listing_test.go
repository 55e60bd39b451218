package callback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazarhub/bazar-marketplace/internal/bot"
	"github.com/bazarhub/bazar-marketplace/internal/domain/listing"
	"github.com/bazarhub/bazar-marketplace/internal/domain/shared"
	"github.com/bazarhub/bazar-marketplace/internal/domain/user"
	"github.com/bazarhub/bazar-marketplace/internal/infrastructure/telegram"
	"github.com/bazarhub/bazar-marketplace/pkg/clock"
)

type fakeListingRepo struct {
	mu       sync.Mutex
	listings map[string]*listing.Listing
}

func newFakeListingRepo() *fakeListingRepo {
	return &fakeListingRepo{listings: make(map[string]*listing.Listing)}
}

func (r *fakeListingRepo) Create(ctx context.Context, l *listing.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
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
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*listing.Listing
	for _, l := range r.listings {
		if l.Status == listing.StatusActive && l.Category == category {
			out = append(out, l)
		}
	}
	return out, nil
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

func seed(t *testing.T, repo *fakeListingRepo, id string, seller int64, title, category string) *listing.Listing {
	t.Helper()
	l, err := listing.New(id, user.TelegramID(seller), title, "", category, 5000, time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), l))
	return l
}

func cbCtx(senderID int64, data string) bot.CallbackContext {
	return bot.CallbackContext{
		Sender:    &telegram.User{ID: senderID, FirstName: "Данияр"},
		Chat:      &telegram.Chat{ID: senderID, Type: "private"},
		MessageID: 7,
		QueryID:   "q1",
		Data:      data,
	}
}

func TestListingHandler_ViewShowsOwnerControls(t *testing.T) {
	repo := newFakeListingRepo()
	seed(t, repo, "l1", 42, "Ноутбук", "electronics")
	h := NewListingHandler(repo, clock.NewFake(time.Now()))

	resp, err := h.View(context.Background(), cbCtx(42, PrefixView+"l1"))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Ноутбук")
	assert.True(t, resp.Edit)
	require.NotNil(t, resp.Keyboard)
	assert.Len(t, resp.Keyboard.InlineKeyboard, 1, "owner sees sold/remove row")

	resp, err = h.View(context.Background(), cbCtx(99, PrefixView+"l1"))
	require.NoError(t, err)
	assert.Empty(t, resp.Keyboard.InlineKeyboard, "stranger sees no controls")
}

func TestListingHandler_ViewMissingListing(t *testing.T) {
	h := NewListingHandler(newFakeListingRepo(), clock.NewFake(time.Now()))

	resp, err := h.View(context.Background(), cbCtx(42, PrefixView+"ghost"))
	require.NoError(t, err)
	assert.Empty(t, resp.Text)
	assert.NotEmpty(t, resp.CallbackText)
}

func TestListingHandler_DeleteRequiresOwnership(t *testing.T) {
	repo := newFakeListingRepo()
	seed(t, repo, "l1", 42, "Ноутбук", "electronics")
	h := NewListingHandler(repo, clock.NewFake(time.Now()))

	resp, err := h.Delete(context.Background(), cbCtx(99, PrefixDel+"l1"))
	require.NoError(t, err)
	assert.Contains(t, resp.CallbackText, "не твоё")

	got, err := repo.GetByID(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, listing.StatusActive, got.Status)
}

func TestListingHandler_DeleteByOwnerRemoves(t *testing.T) {
	repo := newFakeListingRepo()
	seed(t, repo, "l1", 42, "Ноутбук", "electronics")
	h := NewListingHandler(repo, clock.NewFake(time.Now()))

	resp, err := h.Delete(context.Background(), cbCtx(42, PrefixDel+"l1"))
	require.NoError(t, err)
	assert.True(t, resp.Edit)

	got, err := repo.GetByID(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, listing.StatusRemoved, got.Status)
}

func TestListingHandler_SoldByOwner(t *testing.T) {
	repo := newFakeListingRepo()
	seed(t, repo, "l1", 42, "Ноутбук", "electronics")
	h := NewListingHandler(repo, clock.NewFake(time.Now()))

	_, err := h.Sold(context.Background(), cbCtx(42, PrefixSold+"l1"))
	require.NoError(t, err)

	got, err := repo.GetByID(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, listing.StatusSold, got.Status)

	// A second sold press finds the listing inactive.
	resp, err := h.Sold(context.Background(), cbCtx(42, PrefixSold+"l1"))
	require.NoError(t, err)
	assert.Contains(t, resp.CallbackText, "не активно")
}

func TestCategoryHandler_ListsCategory(t *testing.T) {
	repo := newFakeListingRepo()
	seed(t, repo, "l1", 42, "Ноутбук", "electronics")
	seed(t, repo, "l2", 42, "Диван", "furniture")
	h := NewCategoryHandler(repo)

	resp, err := h.Handle(context.Background(), cbCtx(10, PrefixCat+"electronics"))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "Ноутбук")
	assert.NotContains(t, resp.Text, "Диван")

	resp, err = h.Handle(context.Background(), cbCtx(10, PrefixCat+"toys"))
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "пусто")
}

func TestCommandProxy_RoutesToRegisteredCommand(t *testing.T) {
	proxy := NewCommandProxy()
	calls := 0
	proxy.Register(bot.CmdSearch, bot.CommandHandlerFunc(func(ctx context.Context, cmdCtx bot.CommandContext) (bot.Response, error) {
		calls++
		assert.Equal(t, bot.CmdSearch, cmdCtx.Command)
		return bot.Response{Text: "поиск"}, nil
	}))

	resp, err := proxy.Handle(context.Background(), cbCtx(42, PrefixCmd+"search"))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "поиск", resp.Text)

	resp, err = proxy.Handle(context.Background(), cbCtx(42, PrefixCmd+"unknown"))
	require.NoError(t, err)
	assert.Empty(t, resp.Text)
}

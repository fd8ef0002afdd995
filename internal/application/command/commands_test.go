package command

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surimil/mediabot/internal/application/dialog"
	"github.com/surimil/mediabot/internal/domain/content"
	"github.com/surimil/mediabot/internal/domain/economy"
	"github.com/surimil/mediabot/internal/domain/user"
)

type fakeUsers struct {
	mu       sync.Mutex
	profiles map[int64]*user.Profile
	seen     map[int64][]int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{profiles: make(map[int64]*user.Profile), seen: make(map[int64][]int)}
}

func (f *fakeUsers) GetOrCreate(_ context.Context, id int64, name string) (*user.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.profiles[id]; ok {
		copied := *p
		return &copied, nil
	}
	p := &user.Profile{TelegramID: id, DisplayName: name, Language: user.DefaultLanguage}
	f.profiles[id] = p
	copied := *p
	return &copied, nil
}

func (f *fakeUsers) SetLanguage(_ context.Context, id int64, lang user.Language) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.profiles[id]; ok {
		p.Language = lang
		return nil
	}
	return user.ErrNotFound
}

func (f *fakeUsers) ChangeXP(_ context.Context, id int64, delta int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	if !ok {
		return 0, user.ErrNotFound
	}
	p.XP += delta
	return p.XP, nil
}

func (f *fakeUsers) MarkModuleSeen(_ context.Context, id int64, moduleID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen[id] = append(f.seen[id], moduleID)
	return nil
}

func (f *fakeUsers) ModulesSeenSince(_ context.Context, id int64, _ int) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[id], nil
}

func (f *fakeUsers) MarkCaseSolved(context.Context, int64, string) error    { return nil }
func (f *fakeUsers) SolvedCaseIDs(context.Context, int64) ([]string, error) { return nil, nil }
func (f *fakeUsers) ListAll(context.Context) ([]*user.Profile, error)       { return nil, nil }

type fakeCatalog struct {
	module   *content.Module
	stickers []content.StickerItem
}

func (f *fakeCatalog) TodayModule(context.Context, user.Language) (*content.Module, error) {
	if f.module == nil {
		return nil, content.ErrModuleNotFound
	}
	return f.module, nil
}

func (f *fakeCatalog) QuestionsForModules(context.Context, user.Language, []int) ([]content.QuizQuestion, error) {
	return nil, nil
}

func (f *fakeCatalog) RandomUnsolvedCase(context.Context, user.Language, []string) (*content.DebunkCase, error) {
	return nil, nil
}

func (f *fakeCatalog) StoreItems(context.Context) ([]content.StickerItem, error) {
	return f.stickers, nil
}

func (f *fakeCatalog) StickerByID(_ context.Context, id string) (*content.StickerItem, error) {
	for _, s := range f.stickers {
		if s.ID == id {
			item := s
			return &item, nil
		}
	}
	return nil, content.ErrStickerNotFound
}

type fakeTexts struct{}

func (fakeTexts) Render(key string, _ user.Language, _ map[string]string) string { return key }

type stubDeliverer struct {
	err   error
	calls int
}

func (d *stubDeliverer) DeliverSticker(context.Context, int64, *content.StickerItem) error {
	d.calls++
	return d.err
}

func testCommands(users *fakeUsers, cat *fakeCatalog) *Commands {
	return New(users, cat, economy.NewService(users, nil, nil), fakeTexts{}, nil)
}

func TestStartCreatesProfileAndOffersLanguages(t *testing.T) {
	users := newFakeUsers()
	c := testCommands(users, &fakeCatalog{})

	out, err := c.Start(context.Background(), 1, "Alice")
	require.NoError(t, err)
	require.Len(t, out, 1)

	msg := out[0].(dialog.TextMessage)
	assert.Equal(t, "welcome", msg.Text)
	require.Len(t, msg.Keyboard, 2)
	assert.Equal(t, "lang:set:ru", msg.Keyboard[0][0].Data)
	assert.Equal(t, "lang:set:en", msg.Keyboard[1][0].Data)

	profile, _ := users.GetOrCreate(context.Background(), 1, "")
	assert.Equal(t, "Alice", profile.DisplayName)
	assert.Equal(t, user.LangRU, profile.Language)
}

func TestSetLanguageShowsMenuInNewLanguage(t *testing.T) {
	users := newFakeUsers()
	c := testCommands(users, &fakeCatalog{})
	ctx := context.Background()

	_, err := c.Start(ctx, 1, "Alice")
	require.NoError(t, err)

	out, err := c.SetLanguage(ctx, 1, "en", 42)
	require.NoError(t, err)
	require.Len(t, out, 2)

	edit := out[0].(dialog.EditMessage)
	assert.Equal(t, 42, edit.MessageID)

	_, ok := out[1].(dialog.MenuMessage)
	assert.True(t, ok)

	profile, _ := users.GetOrCreate(ctx, 1, "")
	assert.Equal(t, user.LangEN, profile.Language)
}

func TestSetLanguageUnknownCodeFallsBackToDefault(t *testing.T) {
	users := newFakeUsers()
	c := testCommands(users, &fakeCatalog{})
	ctx := context.Background()

	_, err := c.Start(ctx, 1, "Alice")
	require.NoError(t, err)

	_, err = c.SetLanguage(ctx, 1, "zz", 42)
	require.NoError(t, err)

	profile, _ := users.GetOrCreate(ctx, 1, "")
	assert.Equal(t, user.DefaultLanguage, profile.Language)
}

func TestSendTodayModuleMarksSeen(t *testing.T) {
	users := newFakeUsers()
	cat := &fakeCatalog{module: &content.Module{ID: 3, Title: "Sources", Text: "body"}}
	c := testCommands(users, cat)

	out, err := c.SendTodayModule(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, out, 1)

	msg := out[0].(dialog.TextMessage)
	assert.Contains(t, msg.Text, "Sources")
	assert.Equal(t, "HTML", msg.ParseMode)
	assert.Equal(t, []int{3}, users.seen[1])
}

func TestShowStoreListsItemsWithBuyTokens(t *testing.T) {
	users := newFakeUsers()
	cat := &fakeCatalog{stickers: []content.StickerItem{
		{ID: "a", Names: map[user.Language]string{user.LangEN: "A"}, Price: 50},
		{ID: "b", Names: map[user.Language]string{user.LangEN: "B"}, Price: 80},
	}}
	c := testCommands(users, cat)

	out, err := c.ShowStore(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, out, 1)

	msg := out[0].(dialog.TextMessage)
	assert.Equal(t, "store_intro", msg.Text)
	require.Len(t, msg.Keyboard, 2)
	assert.Equal(t, "store:buy:a", msg.Keyboard[0][0].Data)
	assert.Equal(t, "store:buy:b", msg.Keyboard[1][0].Data)
}

func TestPurchaseSuccessEditsStoreMessage(t *testing.T) {
	users := newFakeUsers()
	cat := &fakeCatalog{stickers: []content.StickerItem{
		{ID: "a", Names: map[user.Language]string{user.LangEN: "A"}, Price: 50},
	}}
	c := testCommands(users, cat)
	ctx := context.Background()

	_, err := c.Start(ctx, 1, "Alice")
	require.NoError(t, err)
	_, err = users.ChangeXP(ctx, 1, 100)
	require.NoError(t, err)

	deliver := &stubDeliverer{}
	out, err := c.Purchase(ctx, 1, "a", 42, deliver)
	require.NoError(t, err)
	require.Len(t, out, 1)

	edit := out[0].(dialog.EditMessage)
	assert.Equal(t, 42, edit.MessageID)
	assert.Equal(t, "store_buy_success", edit.Text)
	assert.Equal(t, 1, deliver.calls)

	profile, _ := users.GetOrCreate(ctx, 1, "")
	assert.Equal(t, 50, profile.XP)
}

func TestPurchaseShortfallShowsAlert(t *testing.T) {
	users := newFakeUsers()
	cat := &fakeCatalog{stickers: []content.StickerItem{
		{ID: "a", Names: map[user.Language]string{user.LangEN: "A"}, Price: 80},
	}}
	c := testCommands(users, cat)
	ctx := context.Background()

	_, err := c.Start(ctx, 1, "Alice")
	require.NoError(t, err)
	_, err = users.ChangeXP(ctx, 1, 50)
	require.NoError(t, err)

	out, err := c.Purchase(ctx, 1, "a", 42, &stubDeliverer{})
	require.NoError(t, err)
	require.Len(t, out, 1)

	alert := out[0].(dialog.Alert)
	assert.Equal(t, "store_buy_fail", alert.Text)

	// Balance untouched.
	profile, _ := users.GetOrCreate(ctx, 1, "")
	assert.Equal(t, 50, profile.XP)
}

func TestPurchaseUnknownStickerIsRecoverable(t *testing.T) {
	c := testCommands(newFakeUsers(), &fakeCatalog{})

	out, err := c.Purchase(context.Background(), 1, "ghost", 42, &stubDeliverer{})
	require.NoError(t, err)
	require.Len(t, out, 1)

	msg := out[0].(dialog.TextMessage)
	assert.Equal(t, "store_unavailable", msg.Text)
}

func TestPurchaseDeliveryFailureReportsUnavailable(t *testing.T) {
	users := newFakeUsers()
	cat := &fakeCatalog{stickers: []content.StickerItem{
		{ID: "a", Names: map[user.Language]string{user.LangEN: "A"}, Price: 50},
	}}
	c := testCommands(users, cat)
	ctx := context.Background()

	_, err := c.Start(ctx, 1, "Alice")
	require.NoError(t, err)
	_, err = users.ChangeXP(ctx, 1, 100)
	require.NoError(t, err)

	out, err := c.Purchase(ctx, 1, "a", 42, &stubDeliverer{err: errors.New("file missing")})
	require.NoError(t, err)
	require.Len(t, out, 1)

	msg := out[0].(dialog.TextMessage)
	assert.Equal(t, "store_unavailable", msg.Text)

	// The refund restored the balance.
	profile, _ := users.GetOrCreate(ctx, 1, "")
	assert.Equal(t, 100, profile.XP)
}

func TestPurchaseFailureIsLogged(t *testing.T) {
	users := newFakeUsers()
	cat := &fakeCatalog{stickers: []content.StickerItem{
		{ID: "a", Names: map[user.Language]string{user.LangEN: "A"}, Price: 50},
	}}

	var logs bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logs, nil))
	c := New(users, cat, economy.NewService(users, nil, nil), fakeTexts{}, log)
	ctx := context.Background()

	_, err := c.Start(ctx, 1, "Alice")
	require.NoError(t, err)
	_, err = users.ChangeXP(ctx, 1, 100)
	require.NoError(t, err)

	_, err = c.Purchase(ctx, 1, "a", 42, &stubDeliverer{err: errors.New("file missing")})
	require.NoError(t, err)

	assert.Contains(t, logs.String(), "purchase failed")
	assert.Contains(t, logs.String(), "file missing")
}

func TestMainMenuHasAllEntries(t *testing.T) {
	c := testCommands(newFakeUsers(), &fakeCatalog{})

	menu := c.MainMenu(user.LangEN)
	assert.Equal(t, "main_menu", menu.Text)
	require.Len(t, menu.MenuRows, 3)

	var labels []string
	for _, row := range menu.MenuRows {
		labels = append(labels, row...)
	}
	assert.ElementsMatch(t, []string{
		"main_menu_module", "main_menu_quiz", "main_menu_store",
		"main_menu_debunk", "main_menu_ask",
	}, labels)
}

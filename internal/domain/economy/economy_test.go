package economy

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surimil/mediabot/internal/domain/content"
	"github.com/surimil/mediabot/internal/domain/user"
)

var errDelivery = errors.New("sticker file missing")

// memUsers is a minimal repository with an atomic XP counter.
type memUsers struct {
	mu     sync.Mutex
	xp     map[int64]int
	xpErr  error
	refErr bool // fail only the refund (second positive delta)
	grants int
}

func newMemUsers() *memUsers { return &memUsers{xp: make(map[int64]int)} }

func (m *memUsers) ChangeXP(_ context.Context, id int64, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.xpErr != nil {
		return 0, m.xpErr
	}
	if m.refErr && delta > 0 && m.grants > 0 {
		return 0, errors.New("refund write failed")
	}
	if delta > 0 {
		m.grants++
	}
	m.xp[id] += delta
	return m.xp[id], nil
}

func (m *memUsers) GetOrCreate(_ context.Context, id int64, _ string) (*user.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &user.Profile{TelegramID: id, Language: user.DefaultLanguage, XP: m.xp[id]}, nil
}

func (m *memUsers) SetLanguage(context.Context, int64, user.Language) error       { return nil }
func (m *memUsers) MarkModuleSeen(context.Context, int64, int) error              { return nil }
func (m *memUsers) ModulesSeenSince(context.Context, int64, int) ([]int, error)   { return nil, nil }
func (m *memUsers) MarkCaseSolved(context.Context, int64, string) error           { return nil }
func (m *memUsers) SolvedCaseIDs(context.Context, int64) ([]string, error)        { return nil, nil }
func (m *memUsers) ListAll(context.Context) ([]*user.Profile, error)              { return nil, nil }

type stubDeliverer struct {
	err   error
	calls int
}

func (d *stubDeliverer) DeliverSticker(_ context.Context, _ int64, _ *content.StickerItem) error {
	d.calls++
	return d.err
}

func item(price int) *content.StickerItem {
	return &content.StickerItem{
		ID:    "fact_checker",
		Names: map[user.Language]string{user.LangEN: "Fact Checker"},
		Price: price,
	}
}

func TestGrantXP(t *testing.T) {
	users := newMemUsers()
	svc := NewService(users, nil, nil)

	balance, err := svc.GrantXP(context.Background(), 1, 10, "quiz")
	require.NoError(t, err)
	assert.Equal(t, 10, balance)

	balance, err = svc.GrantXP(context.Background(), 1, 25, "debunk")
	require.NoError(t, err)
	assert.Equal(t, 35, balance)
}

func TestGrantXPRejectsNonPositive(t *testing.T) {
	svc := NewService(newMemUsers(), nil, nil)

	_, err := svc.GrantXP(context.Background(), 1, 0, "quiz")
	assert.ErrorIs(t, err, ErrNonPositiveGrant)

	_, err = svc.GrantXP(context.Background(), 1, -5, "quiz")
	assert.ErrorIs(t, err, ErrNonPositiveGrant)
}

func TestConcurrentGrantsDoNotLoseUpdates(t *testing.T) {
	users := newMemUsers()
	svc := NewService(users, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.GrantXP(context.Background(), 1, 10, "quiz")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, users.xp[1])
}

func TestPurchaseShortfall(t *testing.T) {
	users := newMemUsers()
	users.xp[1] = 50
	svc := NewService(users, nil, nil)
	deliver := &stubDeliverer{}

	profile, _ := users.GetOrCreate(context.Background(), 1, "")
	result, err := svc.AttemptPurchase(context.Background(), profile, item(80), deliver)
	require.NoError(t, err)

	assert.False(t, result.OK)
	assert.Equal(t, 30, result.Shortfall)
	assert.Equal(t, 50, result.NewBalance)
	// No debit, no delivery attempt.
	assert.Equal(t, 50, users.xp[1])
	assert.Equal(t, 0, deliver.calls)
}

func TestPurchaseDebitsThenDelivers(t *testing.T) {
	users := newMemUsers()
	users.xp[1] = 100
	svc := NewService(users, nil, nil)
	deliver := &stubDeliverer{}

	profile, _ := users.GetOrCreate(context.Background(), 1, "")
	result, err := svc.AttemptPurchase(context.Background(), profile, item(80), deliver)
	require.NoError(t, err)

	assert.True(t, result.OK)
	assert.Equal(t, 20, result.NewBalance)
	assert.NotEmpty(t, result.ReceiptID)
	assert.Equal(t, 1, deliver.calls)
	assert.Equal(t, 20, users.xp[1])
}

func TestPurchaseExactBalance(t *testing.T) {
	users := newMemUsers()
	users.xp[1] = 80
	svc := NewService(users, nil, nil)

	profile, _ := users.GetOrCreate(context.Background(), 1, "")
	result, err := svc.AttemptPurchase(context.Background(), profile, item(80), &stubDeliverer{})
	require.NoError(t, err)

	assert.True(t, result.OK)
	assert.Equal(t, 0, result.NewBalance)
}

func TestPurchaseDeliveryFailureRefunds(t *testing.T) {
	users := newMemUsers()
	users.xp[1] = 100
	svc := NewService(users, nil, nil)
	deliver := &stubDeliverer{err: errDelivery}

	profile, _ := users.GetOrCreate(context.Background(), 1, "")
	_, err := svc.AttemptPurchase(context.Background(), profile, item(80), deliver)
	require.Error(t, err)

	// The debit was reversed.
	assert.Equal(t, 100, users.xp[1])
}

func TestPurchaseRefundFailureSurfacesBothErrors(t *testing.T) {
	users := newMemUsers()
	users.xp[1] = 100
	users.refErr = true
	users.grants = 1 // arm the refund failure
	svc := NewService(users, nil, nil)
	deliver := &stubDeliverer{err: errDelivery}

	profile, _ := users.GetOrCreate(context.Background(), 1, "")
	_, err := svc.AttemptPurchase(context.Background(), profile, item(80), deliver)
	require.Error(t, err)
	assert.ErrorIs(t, err, errDelivery)
	assert.Contains(t, err.Error(), "refund failed")
}

// Package economy is the single authority for XP balance mutations and
// store purchase validation.
package economy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/surimil/mediabot/internal/domain/content"
	"github.com/surimil/mediabot/internal/domain/shared"
	"github.com/surimil/mediabot/internal/domain/user"
)

var (
	// ErrNonPositiveGrant is returned for award amounts <= 0.
	ErrNonPositiveGrant = errors.New("economy: grant amount must be positive")
)

// Deliverer attempts to hand a purchased sticker to the user. The purchase
// is only final once delivery succeeds.
type Deliverer interface {
	DeliverSticker(ctx context.Context, telegramID int64, item *content.StickerItem) error
}

// PurchaseResult reports the outcome of an AttemptPurchase call.
type PurchaseResult struct {
	// OK is true when the item was paid for and delivered.
	OK bool

	// NewBalance is the balance after the transaction settled. On a failed
	// or rejected purchase it equals the balance before the call.
	NewBalance int

	// Shortfall is price - balance when the user cannot afford the item.
	Shortfall int

	// ReceiptID identifies a completed transaction.
	ReceiptID string
}

// Service implements the economy invariants.
type Service struct {
	users  user.Repository
	events shared.EventPublisher
	logger *slog.Logger
}

// NewService creates the economy service.
func NewService(users user.Repository, events shared.EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, events: events, logger: logger}
}

// GrantXP credits amount XP to the user. Amount must be positive; balances
// are only ever changed additively.
func (s *Service) GrantXP(ctx context.Context, telegramID int64, amount int, reason string) (int, error) {
	if amount <= 0 {
		return 0, ErrNonPositiveGrant
	}

	balance, err := s.users.ChangeXP(ctx, telegramID, amount)
	if err != nil {
		return 0, fmt.Errorf("grant xp: %w", err)
	}

	s.publish(ctx, &shared.XPGrantedEvent{
		BaseEvent:  shared.NewBaseEvent(shared.EventXPGranted, fmt.Sprintf("user:%d", telegramID)),
		TelegramID: telegramID,
		Delta:      amount,
		NewBalance: balance,
		Reason:     reason,
	})
	return balance, nil
}

// AttemptPurchase validates the user's balance against the item price,
// debits the price, and attempts delivery. A failed delivery reverses the
// debit so the user is never charged for undelivered goods. An
// insufficient balance is not an error: the result carries the shortfall
// for display.
func (s *Service) AttemptPurchase(ctx context.Context, profile *user.Profile, item *content.StickerItem, deliver Deliverer) (*PurchaseResult, error) {
	if profile.XP < item.Price {
		return &PurchaseResult{
			NewBalance: profile.XP,
			Shortfall:  item.Price - profile.XP,
		}, nil
	}

	balance, err := s.users.ChangeXP(ctx, profile.TelegramID, -item.Price)
	if err != nil {
		return nil, fmt.Errorf("debit purchase: %w", err)
	}

	if err := deliver.DeliverSticker(ctx, profile.TelegramID, item); err != nil {
		s.logger.Error("sticker delivery failed, refunding",
			"telegram_id", profile.TelegramID,
			"item_id", item.ID,
			"error", err,
		)

		refunded, refundErr := s.users.ChangeXP(ctx, profile.TelegramID, item.Price)
		if refundErr != nil {
			// The debit stuck without delivery. Surface both errors: this
			// needs operator attention.
			return nil, errors.Join(
				fmt.Errorf("delivery failed: %w", err),
				fmt.Errorf("refund failed: %w", refundErr),
			)
		}

		s.publish(ctx, &shared.PurchaseRefundedEvent{
			BaseEvent:  shared.NewBaseEvent(shared.EventPurchaseRefunded, fmt.Sprintf("user:%d", profile.TelegramID)),
			TelegramID: profile.TelegramID,
			ItemID:     item.ID,
			Price:      item.Price,
			Reason:     err.Error(),
		})
		return nil, fmt.Errorf("delivery failed: %w, balance restored to %d", err, refunded)
	}

	receipt := uuid.NewString()
	s.publish(ctx, &shared.PurchaseCompletedEvent{
		BaseEvent:  shared.NewBaseEvent(shared.EventPurchaseCompleted, fmt.Sprintf("user:%d", profile.TelegramID)),
		TelegramID: profile.TelegramID,
		ItemID:     item.ID,
		Price:      item.Price,
		ReceiptID:  receipt,
	})

	return &PurchaseResult{
		OK:         true,
		NewBalance: balance,
		ReceiptID:  receipt,
	}, nil
}

func (s *Service) publish(ctx context.Context, event shared.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event", "type", event.EventType(), "error", err)
	}
}

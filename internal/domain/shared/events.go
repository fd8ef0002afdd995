// Package shared contains domain events and contracts used across domain
// packages.
package shared

import (
	"context"
	"time"
)

// EventType represents the type of domain event.
type EventType string

const (
	// Economy events
	EventXPGranted         EventType = "economy.xp_granted"
	EventPurchaseCompleted EventType = "economy.purchase_completed"
	EventPurchaseRefunded  EventType = "economy.purchase_refunded"

	// Learning events
	EventCaseSolved      EventType = "learning.case_solved"
	EventQuizCompleted   EventType = "learning.quiz_completed"
	EventModuleDelivered EventType = "learning.module_delivered"

	// System events
	EventBroadcastCompleted EventType = "system.broadcast_completed"
)

// Event is the base interface for all domain events.
type Event interface {
	EventType() EventType
	OccurredAt() time.Time
	AggregateID() string
}

// EventHandler processes a published event.
type EventHandler func(ctx context.Context, event Event) error

// EventPublisher publishes domain events. Implementations must never block
// the publishing caller on slow subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// BaseEvent provides common event fields.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

func (e BaseEvent) EventType() EventType  { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }
func (e BaseEvent) AggregateID() string   { return e.AggregateId }

// NewBaseEvent creates a new base event stamped with the current time.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
	}
}

// XPGrantedEvent is emitted when XP is credited or debited.
type XPGrantedEvent struct {
	BaseEvent
	TelegramID int64  `json:"telegram_id"`
	Delta      int    `json:"delta"`
	NewBalance int    `json:"new_balance"`
	Reason     string `json:"reason"`
}

// CaseSolvedEvent is emitted the first time a user solves a debunk case.
type CaseSolvedEvent struct {
	BaseEvent
	TelegramID int64  `json:"telegram_id"`
	CaseID     string `json:"case_id"`
	Reward     int    `json:"reward"`
}

// QuizCompletedEvent is emitted when a quiz run finishes.
type QuizCompletedEvent struct {
	BaseEvent
	TelegramID int64 `json:"telegram_id"`
	Score      int   `json:"score"`
	Total      int   `json:"total"`
	XPEarned   int   `json:"xp_earned"`
}

// PurchaseCompletedEvent is emitted after a successful store purchase.
type PurchaseCompletedEvent struct {
	BaseEvent
	TelegramID int64  `json:"telegram_id"`
	ItemID     string `json:"item_id"`
	Price      int    `json:"price"`
	ReceiptID  string `json:"receipt_id"`
}

// PurchaseRefundedEvent is emitted when a debit is reversed because
// delivery failed.
type PurchaseRefundedEvent struct {
	BaseEvent
	TelegramID int64  `json:"telegram_id"`
	ItemID     string `json:"item_id"`
	Price      int    `json:"price"`
	Reason     string `json:"reason"`
}

// BroadcastCompletedEvent summarizes one daily broadcast run.
type BroadcastCompletedEvent struct {
	BaseEvent
	RunID     string `json:"run_id"`
	Delivered int    `json:"delivered"`
	Failed    int    `json:"failed"`
}

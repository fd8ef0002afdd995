// Package telegram is the transport layer: it polls the Bot API, routes
// updates to the application layer and converts outbound instructions
// back into API calls.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/surimil/mediabot/internal/application/dialog"
	"github.com/surimil/mediabot/internal/domain/content"
)

const (
	pollTimeout    = 60
	userQueueSize  = 16
	updateChanSize = 100
)

// Bot wraps the Telegram Bot API client and the polling loop. Updates
// are processed per user in arrival order, so a slow AI reply for one
// user never blocks another.
type Bot struct {
	api    *tgbotapi.BotAPI
	router *Router
	logger *slog.Logger

	mu     sync.Mutex
	queues map[int64]chan tgbotapi.Update
	wg     sync.WaitGroup
}

// NewBot creates the transport around an authorized API client.
func NewBot(token string, router *Router, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: authorize bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &Bot{
		api:    api,
		router: router,
		logger: logger,
		queues: make(map[int64]chan tgbotapi.Update),
	}
	router.bind(b)

	logger.Info("bot authorized", "username", api.Self.UserName)
	return b, nil
}

// Run polls for updates until the context is cancelled, then drains the
// per-user workers.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout

	updates := b.api.GetUpdatesChan(cfg)
	b.logger.Info("polling started")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.closeQueues()
			b.wg.Wait()
			b.logger.Info("polling stopped")
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				b.closeQueues()
				b.wg.Wait()
				return nil
			}
			userID, known := updateUserID(update)
			if !known {
				continue
			}
			b.enqueue(ctx, userID, update)
		}
	}
}

func updateUserID(update tgbotapi.Update) (int64, bool) {
	switch {
	case update.CallbackQuery != nil:
		return update.CallbackQuery.From.ID, true
	case update.Message != nil:
		return update.Message.From.ID, true
	default:
		return 0, false
	}
}

// enqueue hands the update to the user's worker, spawning one if needed.
// A full queue drops the update rather than stalling the poll loop.
func (b *Bot) enqueue(ctx context.Context, userID int64, update tgbotapi.Update) {
	b.mu.Lock()
	queue, ok := b.queues[userID]
	if !ok {
		queue = make(chan tgbotapi.Update, userQueueSize)
		b.queues[userID] = queue
		b.wg.Add(1)
		go b.worker(ctx, userID, queue)
	}
	b.mu.Unlock()

	select {
	case queue <- update:
	default:
		b.logger.Warn("user queue full, dropping update", "telegram_id", userID)
	}
}

func (b *Bot) worker(ctx context.Context, userID int64, queue chan tgbotapi.Update) {
	defer b.wg.Done()

	for update := range queue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("update handler panicked", "telegram_id", userID, "panic", r)
				}
			}()
			b.router.dispatch(ctx, update)
		}()
	}
}

func (b *Bot) closeQueues() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, q := range b.queues {
		close(q)
		delete(b.queues, id)
	}
}

// deliver converts outbound instructions into API calls. callbackID is
// non-empty when the batch answers an inline button press; a returned
// message ID is the ID of the last text message sent, which chat flows
// use for later edits.
func (b *Bot) deliver(chatID int64, callbackID string, batch []dialog.Outbound) int {
	var lastMessageID int

	for _, out := range batch {
		switch m := out.(type) {
		case dialog.TextMessage:
			msg := tgbotapi.NewMessage(chatID, m.Text)
			msg.ParseMode = m.ParseMode
			if len(m.Keyboard) > 0 {
				msg.ReplyMarkup = inlineKeyboard(m.Keyboard)
			}
			sent, err := b.api.Send(msg)
			if err != nil {
				b.logger.Error("send message failed", "chat_id", chatID, "error", err)
				continue
			}
			lastMessageID = sent.MessageID

		case dialog.PhotoMessage:
			photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(m.Path))
			photo.Caption = m.Caption
			photo.ParseMode = m.ParseMode
			if _, err := b.api.Send(photo); err != nil {
				b.logger.Error("send photo failed", "chat_id", chatID, "path", m.Path, "error", err)
				// The lesson must reach the user even without the picture.
				fallback := tgbotapi.NewMessage(chatID, m.Caption)
				fallback.ParseMode = m.ParseMode
				if _, err := b.api.Send(fallback); err != nil {
					b.logger.Error("photo fallback failed", "chat_id", chatID, "error", err)
				}
			}

		case dialog.EditMessage:
			edit := tgbotapi.NewEditMessageText(chatID, m.MessageID, m.Text)
			edit.ParseMode = m.ParseMode
			if _, err := b.api.Send(edit); err != nil {
				b.logger.Error("edit message failed", "chat_id", chatID, "message_id", m.MessageID, "error", err)
			}

		case dialog.DeleteMessage:
			del := tgbotapi.NewDeleteMessage(chatID, m.MessageID)
			if _, err := b.api.Request(del); err != nil {
				b.logger.Warn("delete message failed", "chat_id", chatID, "message_id", m.MessageID, "error", err)
			}

		case dialog.Alert:
			if callbackID == "" {
				b.sendPlain(chatID, m.Text)
				continue
			}
			alert := tgbotapi.NewCallbackWithAlert(callbackID, m.Text)
			if _, err := b.api.Request(alert); err != nil {
				b.logger.Error("callback alert failed", "chat_id", chatID, "error", err)
			}

		case dialog.MenuMessage:
			msg := tgbotapi.NewMessage(chatID, m.Text)
			msg.ReplyMarkup = replyKeyboard(m.MenuRows)
			if _, err := b.api.Send(msg); err != nil {
				b.logger.Error("send menu failed", "chat_id", chatID, "error", err)
			}
		}
	}

	return lastMessageID
}

func (b *Bot) sendPlain(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error("send message failed", "chat_id", chatID, "error", err)
	}
}

// ackCallback answers a callback query so the client stops showing the
// loading spinner. Telegram invalidates unanswered queries quickly.
func (b *Bot) ackCallback(callbackID string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		b.logger.Debug("callback ack failed", "error", err)
	}
}

// SendText implements the broadcast sender used by scheduled jobs.
func (b *Bot) SendText(_ context.Context, chatID int64, text, parseMode string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("telegram: send to %d: %w", chatID, err)
	}
	return nil
}

// DeliverSticker sends a purchased sticker. The economy layer refunds
// the debit when this returns an error.
func (b *Bot) DeliverSticker(_ context.Context, telegramID int64, item *content.StickerItem) error {
	sticker := tgbotapi.NewSticker(telegramID, tgbotapi.FilePath(item.FilePath))
	if _, err := b.api.Send(sticker); err != nil {
		return fmt.Errorf("telegram: deliver sticker %s: %w", item.ID, err)
	}
	return nil
}

func inlineKeyboard(rows [][]dialog.Button) tgbotapi.InlineKeyboardMarkup {
	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
		}
		keyboard = append(keyboard, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

func replyKeyboard(rows [][]string) tgbotapi.ReplyKeyboardMarkup {
	keyboard := make([][]tgbotapi.KeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
		}
		keyboard = append(keyboard, buttons)
	}
	markup := tgbotapi.NewReplyKeyboard(keyboard...)
	markup.ResizeKeyboard = true
	return markup
}

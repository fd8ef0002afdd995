// Package jobs contains the scheduled background jobs.
package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/surimil/mediabot/internal/application/dialog"
	"github.com/surimil/mediabot/internal/domain/content"
	"github.com/surimil/mediabot/internal/domain/shared"
	"github.com/surimil/mediabot/internal/domain/user"
)

// Sender delivers a rendered lesson to one chat.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text, parseMode string) error
}

// DailyModuleJob pushes the current day's lesson to every known user.
type DailyModuleJob struct {
	users   user.Repository
	catalog content.Store
	sender  Sender
	texts   dialog.Localizer
	events  shared.EventPublisher
	logger  *slog.Logger
}

// NewDailyModuleJob creates the daily broadcast job.
func NewDailyModuleJob(
	users user.Repository,
	catalog content.Store,
	sender Sender,
	texts dialog.Localizer,
	events shared.EventPublisher,
	logger *slog.Logger,
) *DailyModuleJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &DailyModuleJob{
		users:   users,
		catalog: catalog,
		sender:  sender,
		texts:   texts,
		events:  events,
		logger:  logger,
	}
}

func (j *DailyModuleJob) Name() string { return "daily_module_broadcast" }

func (j *DailyModuleJob) Description() string {
	return "sends today's media literacy lesson to all users"
}

// Run delivers the lesson to each user in their language. A failed
// delivery is logged and skipped so one blocked user never stalls the
// whole broadcast.
func (j *DailyModuleJob) Run(ctx context.Context) error {
	runID := uuid.NewString()

	profiles, err := j.users.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	// One lookup per language, not per user.
	modules := make(map[user.Language]*content.Module)
	for _, lang := range []user.Language{user.LangRU, user.LangEN} {
		m, err := j.catalog.TodayModule(ctx, lang)
		if err != nil {
			return fmt.Errorf("load today's module (%s): %w", lang, err)
		}
		modules[lang] = m
	}

	var delivered, failed int
	for _, p := range profiles {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		module := modules[p.Language]
		intro := j.texts.Render("module_intro", p.Language, nil)
		text := fmt.Sprintf("%s<b>%s</b>\n\n%s", intro, module.Title, module.Text)

		if err := j.sender.SendText(ctx, p.TelegramID, text, "HTML"); err != nil {
			failed++
			j.logger.Warn("broadcast delivery failed",
				"run_id", runID,
				"telegram_id", p.TelegramID,
				"error", err,
			)
			continue
		}

		if err := j.users.MarkModuleSeen(ctx, p.TelegramID, module.ID); err != nil {
			j.logger.Warn("mark module seen failed",
				"run_id", runID,
				"telegram_id", p.TelegramID,
				"error", err,
			)
		}
		delivered++
	}

	j.logger.Info("daily broadcast finished",
		"run_id", runID,
		"delivered", delivered,
		"failed", failed,
	)

	if j.events != nil {
		evt := shared.BroadcastCompletedEvent{
			BaseEvent: shared.NewBaseEvent(shared.EventBroadcastCompleted, runID),
			RunID:     runID,
			Delivered: delivered,
			Failed:    failed,
		}
		if err := j.events.Publish(ctx, evt); err != nil {
			j.logger.Warn("publish broadcast event failed", "run_id", runID, "error", err)
		}
	}

	return nil
}

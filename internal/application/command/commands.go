// Package command implements the one-shot bot operations that do not open
// a dialog session: onboarding, language switching, the daily module and
// the reward store.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/surimil/mediabot/internal/application/dialog"
	"github.com/surimil/mediabot/internal/domain/content"
	"github.com/surimil/mediabot/internal/domain/economy"
	"github.com/surimil/mediabot/internal/domain/user"
)

// Commands bundles the non-dialog operations.
type Commands struct {
	users   user.Repository
	catalog content.Store
	economy *economy.Service
	texts   dialog.Localizer
	logger  *slog.Logger
}

// New creates the command handlers.
func New(users user.Repository, catalog content.Store, econ *economy.Service, texts dialog.Localizer, logger *slog.Logger) *Commands {
	if logger == nil {
		logger = slog.Default()
	}
	return &Commands{users: users, catalog: catalog, economy: econ, texts: texts, logger: logger}
}

// Start handles /start: ensures the profile exists and offers the language
// choice.
func (c *Commands) Start(ctx context.Context, telegramID int64, displayName string) ([]dialog.Outbound, error) {
	_, err := c.users.GetOrCreate(ctx, telegramID, displayName)
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}

	welcome := c.texts.Render("welcome", user.DefaultLanguage, map[string]string{
		"user_name": displayName,
	})

	return []dialog.Outbound{dialog.TextMessage{
		Text:      welcome,
		ParseMode: "HTML",
		Keyboard: [][]dialog.Button{
			{{Text: "Русский 🇷🇺", Data: dialog.Token(dialog.DomainLang, dialog.ActionSet, "ru")}},
			{{Text: "English 🇬🇧", Data: dialog.Token(dialog.DomainLang, dialog.ActionSet, "en")}},
		},
	}}, nil
}

// SetLanguage stores the chosen language and shows the main menu in it.
func (c *Commands) SetLanguage(ctx context.Context, telegramID int64, code string, messageID int) ([]dialog.Outbound, error) {
	lang := user.ParseLanguage(code)
	if err := c.users.SetLanguage(ctx, telegramID, lang); err != nil {
		return nil, fmt.Errorf("set language: %w", err)
	}

	return []dialog.Outbound{
		dialog.EditMessage{
			MessageID: messageID,
			Text:      c.texts.Render("lang_chosen_prefix", lang, nil),
		},
		c.MainMenu(lang),
	}, nil
}

// MainMenu builds the persistent reply-keyboard menu for a language.
func (c *Commands) MainMenu(lang user.Language) dialog.MenuMessage {
	return dialog.MenuMessage{
		Text: c.texts.Render("main_menu", lang, nil),
		MenuRows: [][]string{
			{c.texts.Render("main_menu_module", lang, nil)},
			{c.texts.Render("main_menu_quiz", lang, nil), c.texts.Render("main_menu_store", lang, nil)},
			{c.texts.Render("main_menu_debunk", lang, nil), c.texts.Render("main_menu_ask", lang, nil)},
		},
	}
}

// SendTodayModule sends the current day's lesson and marks it seen, which
// makes its quiz questions eligible for the next 7 days.
func (c *Commands) SendTodayModule(ctx context.Context, telegramID int64) ([]dialog.Outbound, error) {
	profile, err := c.users.GetOrCreate(ctx, telegramID, "")
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	module, err := c.catalog.TodayModule(ctx, profile.Language)
	if err != nil {
		return nil, fmt.Errorf("load today's module: %w", err)
	}

	if err := c.users.MarkModuleSeen(ctx, telegramID, module.ID); err != nil {
		return nil, fmt.Errorf("mark module seen: %w", err)
	}

	intro := c.texts.Render("module_intro", profile.Language, nil)
	return []dialog.Outbound{dialog.TextMessage{
		Text:      fmt.Sprintf("%s<b>%s</b>\n\n%s", intro, module.Title, module.Text),
		ParseMode: "HTML",
	}}, nil
}

// ShowStore lists the sticker catalog with the user's balance.
func (c *Commands) ShowStore(ctx context.Context, telegramID int64) ([]dialog.Outbound, error) {
	profile, err := c.users.GetOrCreate(ctx, telegramID, "")
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	items, err := c.catalog.StoreItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("load store items: %w", err)
	}

	buttons := make([][]dialog.Button, 0, len(items))
	for _, item := range items {
		label := c.texts.Render("store_item", profile.Language, map[string]string{
			"name":  item.Name(profile.Language),
			"price": strconv.Itoa(item.Price),
		})
		buttons = append(buttons, []dialog.Button{{
			Text: label,
			Data: dialog.Token(dialog.DomainStore, dialog.ActionBuy, item.ID),
		}})
	}

	intro := c.texts.Render("store_intro", profile.Language, map[string]string{
		"xp": strconv.Itoa(profile.XP),
	})
	return []dialog.Outbound{dialog.TextMessage{Text: intro, Keyboard: buttons}}, nil
}

// Purchase validates and executes a sticker purchase. An unaffordable item
// produces a transient alert with the shortfall; a failed delivery refunds
// the debit and reports the item as unavailable.
func (c *Commands) Purchase(ctx context.Context, telegramID int64, stickerID string, messageID int, deliver economy.Deliverer) ([]dialog.Outbound, error) {
	profile, err := c.users.GetOrCreate(ctx, telegramID, "")
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	item, err := c.catalog.StickerByID(ctx, stickerID)
	if err != nil {
		if errors.Is(err, content.ErrStickerNotFound) {
			// Token refers to an item no longer in the catalog. Recoverable:
			// tell the user, never crash.
			c.logger.Warn("purchase for unknown sticker", "telegram_id", telegramID, "sticker_id", stickerID)
			return []dialog.Outbound{dialog.TextMessage{
				Text: c.texts.Render("store_unavailable", profile.Language, nil),
			}}, nil
		}
		return nil, fmt.Errorf("look up sticker: %w", err)
	}

	result, err := c.economy.AttemptPurchase(ctx, profile, item, deliver)
	if err != nil {
		// A failed refund is buried in err; the log line is the only
		// place an operator sees it.
		c.logger.Error("purchase failed",
			"telegram_id", telegramID,
			"sticker_id", stickerID,
			"error", err,
		)
		return []dialog.Outbound{dialog.TextMessage{
			Text: c.texts.Render("store_unavailable", profile.Language, nil),
		}}, nil
	}

	if !result.OK {
		return []dialog.Outbound{dialog.Alert{
			Text: c.texts.Render("store_buy_fail", profile.Language, map[string]string{
				"needed": strconv.Itoa(result.Shortfall),
			}),
		}}, nil
	}

	return []dialog.Outbound{dialog.EditMessage{
		MessageID: messageID,
		Text: c.texts.Render("store_buy_success", profile.Language, map[string]string{
			"new_xp": strconv.Itoa(result.NewBalance),
		}),
	}}, nil
}

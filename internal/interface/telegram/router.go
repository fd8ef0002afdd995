package telegram

import (
	"context"
	"errors"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/surimil/mediabot/internal/application/command"
	"github.com/surimil/mediabot/internal/application/dialog"
	"github.com/surimil/mediabot/internal/domain/economy"
	"github.com/surimil/mediabot/internal/domain/user"
)

// menuAction is what a main-menu button press maps to.
type menuAction int

const (
	actionModule menuAction = iota
	actionQuiz
	actionDebunk
	actionAsk
	actionStore
)

// transport is the outbound side of the bot the router talks to.
type transport interface {
	economy.Deliverer
	deliver(chatID int64, callbackID string, batch []dialog.Outbound) int
	ackCallback(callbackID string)
}

// Router decides which application operation an update triggers.
type Router struct {
	commands *command.Commands
	engine   *dialog.Engine
	users    user.Repository
	texts    dialog.Localizer
	logger   *slog.Logger

	bot transport

	// Rendered menu labels in every language, resolved to actions.
	menuLabels map[string]menuAction
}

// NewRouter builds the routing table. Menu button labels are resolved
// through the localization catalog so a press matches in any language.
func NewRouter(commands *command.Commands, engine *dialog.Engine, users user.Repository, texts dialog.Localizer, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	labels := make(map[string]menuAction)
	for _, lang := range []user.Language{user.LangRU, user.LangEN} {
		labels[texts.Render("main_menu_module", lang, nil)] = actionModule
		labels[texts.Render("main_menu_quiz", lang, nil)] = actionQuiz
		labels[texts.Render("main_menu_debunk", lang, nil)] = actionDebunk
		labels[texts.Render("main_menu_ask", lang, nil)] = actionAsk
		labels[texts.Render("main_menu_store", lang, nil)] = actionStore
	}

	return &Router{
		commands:   commands,
		engine:     engine,
		users:      users,
		texts:      texts,
		logger:     logger,
		menuLabels: labels,
	}
}

func (r *Router) bind(t transport) { r.bot = t }

// dispatch routes one update. Handler errors are logged, never
// propagated: a single bad update must not take the bot down.
func (r *Router) dispatch(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		r.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		r.handleMessage(ctx, update.Message)
	}
}

func (r *Router) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	// Telegram omits Message when the originating prompt is older than
	// 48 hours or was deleted. There is nothing to edit or reply to, so
	// just stop the client's spinner.
	if query.Message == nil {
		r.bot.ackCallback(query.ID)
		return
	}

	userID := query.From.ID
	messageID := query.Message.MessageID
	chatID := query.Message.Chat.ID

	cb, err := dialog.ParseCallback(query.Data)
	if err != nil {
		r.logger.Warn("malformed callback", "telegram_id", userID, "data", query.Data)
		r.bot.ackCallback(query.ID)
		return
	}

	var out []dialog.Outbound
	switch {
	case cb.Domain == dialog.DomainQuiz && cb.Action == dialog.ActionAnswer:
		out, err = r.engine.HandleQuizAnswer(ctx, userID, messageID, cb.Payload)
	case cb.Domain == dialog.DomainDebunk && cb.Action == dialog.ActionAnswer:
		out, err = r.engine.HandleDebunkAnswer(ctx, userID, messageID, cb.Payload)
	case cb.Domain == dialog.DomainDebunk && cb.Action == dialog.ActionCancel:
		out, err = r.engine.HandleDebunkCancel(ctx, userID, messageID)
	case cb.Domain == dialog.DomainStore && cb.Action == dialog.ActionBuy:
		out, err = r.commands.Purchase(ctx, userID, cb.Payload, messageID, r.bot)
	case cb.Domain == dialog.DomainLang && cb.Action == dialog.ActionSet:
		out, err = r.commands.SetLanguage(ctx, userID, cb.Payload, messageID)
	default:
		r.logger.Warn("unroutable callback", "telegram_id", userID, "domain", cb.Domain, "action", cb.Action)
	}

	if err != nil {
		r.logger.Error("callback handler failed",
			"telegram_id", userID,
			"domain", cb.Domain,
			"action", cb.Action,
			"error", err,
		)
	}

	r.bot.deliver(chatID, query.ID, out)
	if !containsAlert(out) {
		r.bot.ackCallback(query.ID)
	}
}

func containsAlert(batch []dialog.Outbound) bool {
	for _, out := range batch {
		if _, ok := out.(dialog.Alert); ok {
			return true
		}
	}
	return false
}

func (r *Router) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		r.handleCommand(ctx, msg)
		return
	}

	// Menu buttons and commands always win over the AI dialog, so the
	// user can navigate away without /cancel.
	if action, ok := r.menuLabels[msg.Text]; ok {
		r.runMenuAction(ctx, chatID, userID, action)
		return
	}

	if r.engine.HasActiveChat(userID) {
		r.handleChatTurn(ctx, chatID, userID, msg.Text)
		return
	}

	// Free text without an open dialog: reshow the menu.
	lang := r.userLanguage(ctx, userID, displayName(msg.From))
	r.bot.deliver(chatID, "", []dialog.Outbound{r.commands.MainMenu(lang)})
}

func (r *Router) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	var (
		out []dialog.Outbound
		err error
	)
	switch msg.Command() {
	case "start":
		out, err = r.commands.Start(ctx, userID, displayName(msg.From))
	case "module":
		out, err = r.commands.SendTodayModule(ctx, userID)
	case "quiz":
		out, err = r.engine.StartQuiz(ctx, userID)
	case "debunk":
		out, err = r.engine.StartDebunk(ctx, userID)
	case "ask":
		out, err = r.engine.StartChat(ctx, userID)
	case "store":
		out, err = r.commands.ShowStore(ctx, userID)
	case "cancel":
		out, err = r.engine.CancelAll(ctx, userID)
	default:
		lang := r.userLanguage(ctx, userID, displayName(msg.From))
		out = []dialog.Outbound{r.commands.MainMenu(lang)}
	}

	if err != nil {
		r.logger.Error("command failed", "telegram_id", userID, "command", msg.Command(), "error", err)
		return
	}
	r.bot.deliver(chatID, "", out)
}

func (r *Router) runMenuAction(ctx context.Context, chatID, userID int64, action menuAction) {
	var (
		out []dialog.Outbound
		err error
	)
	switch action {
	case actionModule:
		out, err = r.commands.SendTodayModule(ctx, userID)
	case actionQuiz:
		out, err = r.engine.StartQuiz(ctx, userID)
	case actionDebunk:
		out, err = r.engine.StartDebunk(ctx, userID)
	case actionAsk:
		out, err = r.engine.StartChat(ctx, userID)
	case actionStore:
		out, err = r.commands.ShowStore(ctx, userID)
	}

	if err != nil {
		r.logger.Error("menu action failed", "telegram_id", userID, "action", int(action), "error", err)
		return
	}
	r.bot.deliver(chatID, "", out)
}

// handleChatTurn sends the thinking placeholder, asks the model and
// replaces the placeholder with the answer. Runs inside the user's
// worker, so follow-up messages from the same user wait their turn.
func (r *Router) handleChatTurn(ctx context.Context, chatID, userID int64, question string) {
	lang := r.userLanguage(ctx, userID, "")

	thinkingID := r.bot.deliver(chatID, "", []dialog.Outbound{
		dialog.TextMessage{Text: r.texts.Render("ask_ai_thinking", lang, nil)},
	})

	reply, err := r.engine.ChatReply(ctx, userID, question)
	if err != nil {
		key := "ai_error"
		if errors.Is(err, dialog.ErrChatQuotaExceeded) {
			key = "ai_quota_exceeded"
		} else {
			r.logger.Error("chat reply failed", "telegram_id", userID, "error", err)
		}
		r.bot.deliver(chatID, "", []dialog.Outbound{
			dialog.EditMessage{MessageID: thinkingID, Text: r.texts.Render(key, lang, nil)},
		})
		return
	}

	r.bot.deliver(chatID, "", []dialog.Outbound{
		dialog.EditMessage{MessageID: thinkingID, Text: reply},
	})
}

func (r *Router) userLanguage(ctx context.Context, userID int64, name string) user.Language {
	profile, err := r.users.GetOrCreate(ctx, userID, name)
	if err != nil {
		r.logger.Warn("load profile failed", "telegram_id", userID, "error", err)
		return user.DefaultLanguage
	}
	return profile.Language
}

func displayName(from *tgbotapi.User) string {
	if from == nil {
		return ""
	}
	if from.FirstName != "" {
		return from.FirstName
	}
	return from.UserName
}

// Package main is the entry point for the media literacy Telegram bot.
//
// The layout follows Clean Architecture:
//   - domain: users, content, economy rules
//   - application: dialog state machines and one-shot commands
//   - infrastructure: postgres, redis, the Gemini client, scheduler
//   - interface: the Telegram transport
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/surimil/mediabot/config"
	"github.com/surimil/mediabot/internal/application/command"
	"github.com/surimil/mediabot/internal/application/dialog"
	"github.com/surimil/mediabot/internal/domain/economy"
	"github.com/surimil/mediabot/internal/i18n"
	"github.com/surimil/mediabot/internal/infrastructure/catalog"
	"github.com/surimil/mediabot/internal/infrastructure/external/gemini"
	"github.com/surimil/mediabot/internal/infrastructure/messaging"
	"github.com/surimil/mediabot/internal/infrastructure/persistence/postgres"
	redisinfra "github.com/surimil/mediabot/internal/infrastructure/persistence/redis"
	"github.com/surimil/mediabot/internal/infrastructure/scheduler"
	"github.com/surimil/mediabot/internal/infrastructure/scheduler/jobs"
	"github.com/surimil/mediabot/internal/interface/telegram"
	"github.com/surimil/mediabot/pkg/logger"
)

const replyCacheTTL = 24 * time.Hour

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	format := cfg.App.LogFormat
	if cfg.IsDevelopment() {
		format = "text"
	}
	log := logger.New(logger.Options{Level: cfg.App.LogLevel, Format: format})
	log.Info("starting bot",
		"app", cfg.App.Name,
		"env", cfg.App.Environment,
	)

	// Storage.
	conn, err := postgres.NewConnection(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer conn.Close()

	if err := postgres.Migrate(ctx, conn); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info("database ready")

	users := postgres.NewUserRepository(conn)

	// Redis is optional: without it the bot runs with no AI quota and
	// no reply cache.
	var (
		quota dialog.ChatQuota
		cache dialog.ReplyCache
	)
	if cfg.Redis.URL != "" {
		client, err := redisinfra.NewClient(ctx, redisinfra.Config{
			URL:          cfg.Redis.URL,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			log.Warn("redis unavailable, quota and cache disabled", "error", err)
		} else {
			defer client.Close()
			quota = redisinfra.NewChatQuota(client, cfg.Gemini.DailyQuota)
			cache = redisinfra.NewReplyCache(client, replyCacheTTL)
			log.Info("redis ready")
		}
	}

	// Content and localization catalogs.
	texts, err := i18n.Load(cfg.Content.LocalesDir)
	if err != nil {
		return fmt.Errorf("load locales: %w", err)
	}
	content, err := catalog.Load(cfg.Content.Dir, cfg.Content.AssetsDir)
	if err != nil {
		return fmt.Errorf("load content: %w", err)
	}

	// Event bus with an audit trail of all domain activity.
	bus := messaging.NewInMemoryEventBus(10, log)
	defer bus.Close()
	if err := bus.SubscribeAll(messaging.AuditLogger(log)); err != nil {
		return fmt.Errorf("subscribe audit logger: %w", err)
	}

	// Application layer.
	econ := economy.NewService(users, bus, log)
	ai := gemini.NewClient(gemini.Config{
		APIKey:         cfg.Gemini.APIKey,
		Model:          cfg.Gemini.Model,
		RequestTimeout: cfg.Gemini.RequestTimeout,
	}, log)

	engine := dialog.NewEngine(dialog.NewSessionStore(), users, content, econ, ai, texts, dialog.Options{
		Quota:  quota,
		Cache:  cache,
		Events: bus,
		Logger: log,
	})
	commands := command.New(users, content, econ, texts, log)

	// Transport.
	router := telegram.NewRouter(commands, engine, users, texts, log)
	bot, err := telegram.NewBot(cfg.Telegram.Token, router, log)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	// Daily lesson broadcast.
	if cfg.Scheduler.Enabled {
		sched := scheduler.NewScheduler(log)
		broadcast := jobs.NewDailyModuleJob(users, content, bot, texts, bus, log)
		if err := sched.Register(broadcast, scheduler.NewDailySchedule(cfg.Scheduler.BroadcastHour, cfg.Scheduler.BroadcastMinute)); err != nil {
			return fmt.Errorf("register broadcast job: %w", err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	log.Info("bot is running")
	return bot.Run(ctx)
}

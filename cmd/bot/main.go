// Package main - точка входа Telegram-бота маркетплейса Bazar.
//
// Бот принимает апдейты через webhook, прогоняет их через конвейер
// middleware (preprocess → rate limit → auth → moderation → admin) и
// диспатчит в обработчики команд и callback-кнопок. Все исходящие
// вызовы Telegram API идут через retry executor с общим учётом
// состояния соединения.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bazarhub/bazar-marketplace/config"
	"github.com/bazarhub/bazar-marketplace/internal/bot"
	"github.com/bazarhub/bazar-marketplace/internal/bot/handler"
	"github.com/bazarhub/bazar-marketplace/internal/bot/handler/callback"
	"github.com/bazarhub/bazar-marketplace/internal/bot/middleware"
	"github.com/bazarhub/bazar-marketplace/internal/bot/monitor"
	"github.com/bazarhub/bazar-marketplace/internal/bot/session"
	"github.com/bazarhub/bazar-marketplace/internal/domain/listing"
	"github.com/bazarhub/bazar-marketplace/internal/infrastructure/persistence/postgres"
	"github.com/bazarhub/bazar-marketplace/internal/infrastructure/persistence/redis"
	"github.com/bazarhub/bazar-marketplace/internal/infrastructure/scheduler"
	"github.com/bazarhub/bazar-marketplace/internal/infrastructure/telegram"
	httpserver "github.com/bazarhub/bazar-marketplace/internal/interface/http"
	"github.com/bazarhub/bazar-marketplace/internal/moderation"
	"github.com/bazarhub/bazar-marketplace/pkg/circuitbreaker"
	"github.com/bazarhub/bazar-marketplace/pkg/clock"
	"github.com/bazarhub/bazar-marketplace/pkg/logger"
	"github.com/bazarhub/bazar-marketplace/pkg/retry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГГЕР
	// ─────────────────────────────────────────────────────────────────────────
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{
		Level: logger.ParseLevel(cfg.Observability.LogLevel),
	})
	log.Info("starting bazar bot",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.NewReal()

	// ─────────────────────────────────────────────────────────────────────────
	// 2. POSTGRESQL И МИГРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is not configured")
	}

	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer dbConn.Close()

	if err := postgres.NewMigrator(dbConn).Migrate(ctx); err != nil {
		return err
	}
	log.Info("postgres connection established, migrations applied")

	userRepo := postgres.NewUserRepository(dbConn)
	pgListings := postgres.NewListingRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS КЕШ (ОПЦИОНАЛЬНО, ЗА CIRCUIT BREAKER)
	// ─────────────────────────────────────────────────────────────────────────
	var listings listing.Repository = pgListings
	var redisCache *redis.Cache
	if !cfg.Redis.Disabled {
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisCache, err = redis.NewCache(redisCfg)
		if err != nil {
			log.Warn("redis unavailable, listing cache disabled", logger.Err(err))
			redisCache = nil
		} else {
			defer redisCache.Close()

			breakerCfg := circuitbreaker.DefaultConfig("listing-cache")
			breakerCfg.FailureThreshold = cfg.Redis.BreakerThreshold
			breakerCfg.Timeout = cfg.Redis.BreakerTimeout
			breakerCfg.OnStateChange = func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed",
					logger.String("breaker", name),
					logger.String("from", from.String()),
					logger.String("to", to.String()))
			}

			listings = redis.NewCachedListingRepository(pgListings, redisCache, circuitbreaker.New(breakerCfg), log)
			log.Info("redis connection established, listing cache enabled")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. TELEGRAM КЛИЕНТ, RETRY И МОНИТОРИНГ СОЕДИНЕНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	clientCfg := telegram.DefaultClientConfig(cfg.Telegram.Token)
	clientCfg.Timeout = cfg.Telegram.RequestTimeout
	clientCfg.Logger = log
	client := telegram.NewClient(clientCfg)

	status := monitor.NewStatus(monitor.DefaultConfig().AlertThreshold, clk)
	exec := retry.New(clk, status,
		retry.WithMaxAttempts(cfg.Telegram.MaxRetries),
		retry.WithBaseDelay(cfg.Telegram.RetryBaseDelay),
		retry.WithMaxDelay(cfg.Telegram.RetryMaxDelay),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("telegram call retried",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err))
		}),
	)

	messenger := bot.NewMessenger(client, exec, cfg.Telegram.AdminChatID)

	monitorCfg := monitor.DefaultConfig()
	monitorCfg.Interval = cfg.Scheduler.HealthProbeInterval
	monitorCfg.ProbeTimeout = cfg.Scheduler.HealthProbeTimeout
	mon := monitor.New(monitorCfg, messenger, exec, status, messenger, telegram.Classify, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. СЕССИИ И КОНВЕЙЕР MIDDLEWARE
	// ─────────────────────────────────────────────────────────────────────────
	sessions := session.NewStore(session.DefaultConfig(), clk)
	filter := moderation.NewWordListFilter(nil, nil)
	isAdmin := cfg.Telegram.IsAdmin

	pipeline := middleware.NewPipeline(messenger, log,
		middleware.NewPreprocess(log),
		middleware.NewRateLimit(middleware.DefaultRateLimitConfig(), sessions, clk, isAdmin, log),
		middleware.NewAuth(userRepo, clk, log),
		middleware.NewModeration(filter, log),
		middleware.NewAdminGate(isAdmin, log),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. РОУТЕР И ОБРАБОТЧИКИ
	// ─────────────────────────────────────────────────────────────────────────
	router := bot.NewRouter(messenger, log)

	sellHandler := handler.NewSellHandler(sessions, listings, clk, log)
	searchHandler := handler.NewSearchHandler(listings)
	myListingsHandler := handler.NewMyListingsHandler(listings)
	supportHandler := handler.NewSupportHandler(messenger, log)

	router.RegisterCommand(bot.CmdStart, handler.NewStartHandler())
	router.RegisterCommand(bot.CmdHelp, handler.NewHelpHandler())
	router.RegisterCommand(bot.CmdSell, sellHandler)
	router.RegisterCommand(bot.CmdMyListings, myListingsHandler)
	router.RegisterCommand(bot.CmdSearch, searchHandler)
	router.RegisterCommand(bot.CmdSupport, supportHandler)
	router.RegisterCommand(bot.CmdAppeal, handler.NewAppealHandler(supportHandler))
	router.RegisterCommand(bot.CmdAdminStats, handler.NewAdminStatsHandler(userRepo, listings))
	router.RegisterCommand(bot.CmdAdminBan, handler.NewAdminBanHandler(userRepo, log))
	router.RegisterCommand(bot.CmdAdminUnban, handler.NewAdminUnbanHandler(userRepo, log))

	listingCb := callback.NewListingHandler(listings, clk)
	router.RegisterCallbackPrefix(callback.PrefixView, bot.CallbackHandlerFunc(listingCb.View))
	router.RegisterCallbackPrefix(callback.PrefixDel, bot.CallbackHandlerFunc(listingCb.Delete))
	router.RegisterCallbackPrefix(callback.PrefixSold, bot.CallbackHandlerFunc(listingCb.Sold))
	router.RegisterCallbackPrefix(callback.PrefixCat, callback.NewCategoryHandler(listings))

	proxy := callback.NewCommandProxy()
	proxy.Register(bot.CmdSell, sellHandler)
	proxy.Register(bot.CmdSearch, searchHandler)
	proxy.Register(bot.CmdMyListings, myListingsHandler)
	router.RegisterCallbackPrefix(callback.PrefixCmd, proxy)

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ФОНОВЫЕ ЗАДАЧИ
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewIntervalScheduler(log)
	defer sched.Stop()

	if cfg.Scheduler.Enabled {
		mon.Start(sched)
		sched.Schedule("session_cleanup", cfg.Scheduler.SessionCleanupInterval, func(ctx context.Context) {
			removed := sessions.Cleanup(clk.Now())
			if removed > 0 {
				log.Info("idle sessions removed", logger.Int("count", removed))
			}
		})
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP СЕРВЕР И WEBHOOK
	// ─────────────────────────────────────────────────────────────────────────
	var cachePinger httpserver.Pinger
	if redisCache != nil {
		cachePinger = redisCache
	}

	adminAPI := httpserver.NewAdminAPI(userRepo, listings, status, dbConn, cachePinger,
		clk, cfg.HTTP.APIKeyHashes, log)

	webhook := httpserver.NewWebhookHandler(
		httpserver.NewWebhookValidator(cfg.Telegram.WebhookSecret, log),
		pipeline,
		router,
		sessions,
		sellHandler,
		messenger,
		messenger,
		log,
	)

	serverCfg := httpserver.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.APIKeyHashes = cfg.HTTP.APIKeyHashes

	server := httpserver.NewServer(serverCfg, webhook, adminAPI, log)

	if cfg.Telegram.WebhookURL != "" {
		if err := client.SetWebhook(ctx, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret, nil); err != nil {
			return fmt.Errorf("set webhook: %w", err)
		}
		log.Info("webhook registered", logger.String("url", cfg.Telegram.WebhookURL))
	}

	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 9. ОЖИДАНИЕ СИГНАЛА И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", logger.Err(err))
	}

	log.Info("bazar bot stopped")
	return nil
}

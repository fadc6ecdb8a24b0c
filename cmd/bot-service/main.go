package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"remna-bot/internal/config"
	"remna-bot/internal/db"
	"remna-bot/internal/gates/remnawave"
	"remna-bot/internal/health"
	"remna-bot/internal/remnatest"
	"remna-bot/internal/scheduler"
	"remna-bot/internal/service"
	"remna-bot/internal/telegram"
)

func main() {
	// Настраиваем структурированное логирование
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: true,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting bot-service", "version", "1.0.0", "pid", os.Getpid())

	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("Configuration loaded",
		"db_dsn", cfg.DBDsn,
		"panel_api_url", cfg.PanelAPIURL,
		"panel_api_variant", cfg.PanelAPIVariant,
		"health_addr", cfg.HealthAddr,
		"has_super_admin", cfg.SuperAdminID != "",
		"has_bot_token", cfg.BotToken != "",
	)

	if cfg.BotToken == "" {
		slog.Error("Bot token is not configured")
		os.Exit(1)
	}

	// Инициализируем репозиторий
	repo, err := db.NewRepository(cfg.DBDsn)
	if err != nil {
		slog.Error("Failed to initialize database repository", "error", err, "dsn", cfg.DBDsn)
		os.Exit(1)
	}
	slog.Info("Database repository initialized successfully")

	// Выполняем миграции
	if err := repo.AutoMigrate(); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migrations completed successfully")

	// Создаем клиент панели нужного варианта API
	panel := newPanelClient(cfg)

	// Создаем сервис подписок
	userService := service.NewUserService(repo, panel, cfg)

	// Создаем Telegram сервис
	telegramService, err := telegram.New(cfg, repo, userService)
	if err != nil {
		slog.Error("Failed to create Telegram service", "error", err)
		os.Exit(1)
	}
	slog.Info("Telegram service created successfully")

	// Настраиваем graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Проверяем подключение к панели, при проблемах уведомляем админа
	panelCheck := remnatest.NewIntegrationTest(panel, cfg.PanelAPIURL, notifyAdmin(telegramService.Bot(), cfg))
	if err := panelCheck.RunStartupTest(ctx); err != nil {
		slog.Warn("Panel is not reachable at startup - continuing, provisioning will fail until it recovers", "error", err)
	}

	// Создаем планировщик напоминаний
	sched := scheduler.NewScheduler(repo, telegramService.Bot(), cfg)
	if err := sched.Start(); err != nil {
		slog.Error("Failed to start scheduler", "error", err)
		slog.Warn("Continuing without scheduler - expiration reminders will not work")
	} else {
		slog.Info("Scheduler started successfully")
		defer func() {
			slog.Info("Stopping scheduler")
			sched.Stop()
		}()
	}

	// Создаем health сервер
	healthServer := health.NewServer(cfg.HealthAddr, repo)
	slog.Info("Health server created", "addr", cfg.HealthAddr)

	// Запускаем health сервер в горутине
	go func() {
		slog.Info("Starting health server")
		if err := healthServer.Start(); err != nil {
			if !errors.Is(err, context.Canceled) {
				slog.Error("Health server failed", "error", err)
			} else {
				slog.Info("Health server stopped")
			}
		}
	}()
	defer func() {
		slog.Info("Stopping health server")
		if err := healthServer.Stop(); err != nil {
			slog.Error("Failed to stop health server", "error", err)
		}
	}()

	// Запускаем Telegram бота
	slog.Info("Starting Telegram bot...")
	if err := telegramService.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("Telegram bot stopped by signal")
		} else {
			slog.Error("Telegram bot failed", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Bot service shutdown completed")
}

// newPanelClient выбирает вариант API панели по конфигурации
func newPanelClient(cfg *config.Config) service.Panel {
	panelCfg := remnawave.Config{
		BaseURL:         cfg.PanelAPIURL,
		Token:           cfg.PanelAPIToken,
		SubscriptionURL: cfg.SubscriptionURL,
		Timeout:         cfg.APITimeout,
	}

	if cfg.PanelAPIVariant == "split" {
		slog.Info("Using split panel API variant")
		return remnawave.NewSplitClient(panelCfg)
	}
	return remnawave.NewClient(panelCfg)
}

// notifyAdmin возвращает функцию отправки сообщения супер-админу
func notifyAdmin(bot *tgbotapi.BotAPI, cfg *config.Config) func(string) {
	return func(message string) {
		if cfg.SuperAdminID == "" {
			return
		}
		adminID, err := strconv.ParseInt(cfg.SuperAdminID, 10, 64)
		if err != nil {
			return
		}
		bot.Send(tgbotapi.NewMessage(adminID, message))
	}
}

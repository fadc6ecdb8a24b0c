package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron/v3"

	"remna-bot/internal/config"
	"remna-bot/internal/db"
)

// Окно напоминаний: за сколько дней до окончания подписки писать
const reminderDays = 3

// Scheduler рассылает напоминания об истечении подписок. Состояние он не
// мутирует - сроками владеет панель, бот только читает базу
type Scheduler struct {
	cron *cron.Cron
	repo *db.Repository
	bot  *tgbotapi.BotAPI
	cfg  *config.Config
}

func NewScheduler(repo *db.Repository, bot *tgbotapi.BotAPI, cfg *config.Config) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		repo: repo,
		bot:  bot,
		cfg:  cfg,
	}
}

func (s *Scheduler) Start() error {
	// Cron-задача: напоминания об истечении (ежедневно в 12:00)
	_, err := s.cron.AddFunc("0 12 * * *", s.sendExpirationReminders)
	if err != nil {
		return fmt.Errorf("failed to add expiration reminders job: %w", err)
	}

	s.cron.Start()
	slog.Info("Cron scheduler started")

	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
	slog.Info("Cron scheduler stopped")
}

// sendExpirationReminders отправляет напоминания о скором истечении подписок
func (s *Scheduler) sendExpirationReminders() {
	slog.Info("Checking for expiration reminders...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	now := time.Now().UTC()
	subs, err := s.repo.ExpiringSubscriptions(ctx, now, now.AddDate(0, 0, reminderDays))
	if err != nil {
		slog.Error("Error fetching soon expiring subscriptions", "error", err)
		return
	}

	if len(subs) == 0 {
		return
	}

	slog.Info("Found subscriptions expiring soon", "count", len(subs), "window_days", reminderDays)

	for _, sub := range subs {
		text := fmt.Sprintf(`⚠️ Напоминание о подписке

Ваша VPN подписка истекает %s.

Не забудьте продлить подписку, чтобы не потерять доступ!

Для продления нажмите кнопку 'Продлить ключ' в главном меню (/start)`,
			sub.SubscriptionDate.Format("02.01.2006 15:04"),
		)

		msg := tgbotapi.NewMessage(sub.User.TgUserID, text)
		if _, err := s.bot.Send(msg); err != nil {
			slog.Error("Failed to send expiration reminder", "tg_user_id", sub.User.TgUserID, "error", err)
		}
	}

	s.sendAdminReport(fmt.Sprintf("🕒 Разослано напоминаний об истечении: %d", len(subs)))
}

// sendAdminReport отправляет отчет супер-админу
func (s *Scheduler) sendAdminReport(message string) {
	if s.cfg.SuperAdminID == "" {
		return
	}

	adminID, err := strconv.ParseInt(s.cfg.SuperAdminID, 10, 64)
	if err != nil {
		return
	}

	msg := tgbotapi.NewMessage(adminID, message)
	s.bot.Send(msg)
}

package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"remna-bot/internal/config"
	"remna-bot/internal/db"
)

type Service struct {
	bot  *tgbotapi.BotAPI
	svc  Orchestrator
	repo *db.Repository
	cfg  *config.Config
}

func New(cfg *config.Config, repo *db.Repository, svc Orchestrator) (*Service, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	// Удаляем webhook чтобы использовать long-polling
	_, err = bot.Request(tgbotapi.DeleteWebhookConfig{})
	if err != nil {
		slog.Warn("Не удалось удалить webhook", "error", err)
	} else {
		slog.Info("Webhook удален, переключились на long-polling")
	}

	slog.Info("Авторизован как телеграм бот", "username", bot.Self.UserName)

	service := &Service{bot: bot, svc: svc, repo: repo, cfg: cfg}

	// Устанавливаем меню команд
	if err := service.setCommands(); err != nil {
		slog.Warn("Не удалось установить меню команд", "error", err)
	}

	return service, nil
}

func (s *Service) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := s.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd := <-updates:
			s.handleUpdate(ctx, upd)
		}
	}
}

func (s *Service) handleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil && upd.Message.IsCommand() {
		s.handleCommand(ctx, upd.Message)
		return
	}

	if upd.CallbackQuery != nil {
		s.handleCallbackQuery(ctx, upd.CallbackQuery)
		return
	}
}

func (s *Service) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := Command(msg.Command())

	if !cmd.IsValid() {
		s.reply(msg.Chat.ID, "Неизвестная команда. Используйте /help")
		return
	}

	if cmd.IsAdminOnly() && !s.isSuperAdmin(msg.From.ID) {
		s.reply(msg.Chat.ID, "У вас нет прав для этой команды")
		return
	}

	switch cmd {
	case CmdStart:
		s.handleStart(ctx, msg)
	case CmdHelp:
		s.handleHelp(msg)
	case CmdKey:
		s.handleGetKey(ctx, msg.Chat.ID, msg.From.ID)
	case CmdStats:
		s.handleStats(ctx, msg)
	}
}

func (s *Service) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	slog.Info("Пользователь запустил бота", "tg_user_id", msg.From.ID)

	// Реферальная метка из deep-link /start ref_<code> пишется один раз
	// при создании пользователя
	referral := ""
	if args := msg.CommandArguments(); strings.HasPrefix(args, "ref_") {
		referral = strings.TrimPrefix(args, "ref_")
	}

	_, err := s.svc.EnsureUserWithReferral(ctx, msg.From.ID,
		msg.From.UserName, msg.From.FirstName, msg.From.LastName, referral)
	if err != nil {
		s.handleError(msg.Chat.ID, err, msgKeyError)
		return
	}

	s.sendMainMenu(msg.Chat.ID)
}

func (s *Service) handleHelp(msg *tgbotapi.Message) {
	text := `🔐 VPN бот

Кнопки главного меню:
• Создать пользователя - завести подписку
• Получить ключ - текущая ссылка и срок действия
• Продлить ключ - продление подписки

Команды:
/start - главное меню
/key - получить ключ
/help - справка`

	if s.isSuperAdmin(msg.From.ID) {
		text += `

👑 Команды суперадмина:
/stats - статистика по базе`
	}

	s.reply(msg.Chat.ID, text)
}

func (s *Service) handleStats(ctx context.Context, msg *tgbotapi.Message) {
	users, err := s.repo.CountUsers(ctx)
	if err != nil {
		s.reply(msg.Chat.ID, "Ошибка получения статистики")
		return
	}
	subs, err := s.repo.CountSubscriptions(ctx)
	if err != nil {
		s.reply(msg.Chat.ID, "Ошибка получения статистики")
		return
	}

	s.reply(msg.Chat.ID, fmt.Sprintf("📊 Статистика:\n👤 Пользователей: %d\n🔑 Подписок: %d", users, subs))
}

func (s *Service) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	s.answerCallback(callback.ID, "")

	data := CallbackData(callback.Data)
	if !data.IsValid() {
		return
	}

	chatID := callback.Message.Chat.ID
	from := callback.From

	switch data {
	case CallbackCreateUser:
		s.handleCreateUser(ctx, chatID, from)
	case CallbackGetKey:
		s.handleGetKey(ctx, chatID, from.ID)
	case CallbackRenewKey:
		s.handleRenewKey(ctx, chatID, from.ID)
	}
}

func (s *Service) handleCreateUser(ctx context.Context, chatID int64, from *tgbotapi.User) {
	slog.Info("Пользователь выбрал 'Создать пользователя'", "tg_user_id", from.ID)

	_, sub, link, err := s.svc.Provision(ctx, from.ID, from.UserName, from.FirstName, from.LastName)
	if err != nil {
		s.handleError(chatID, err, msgCreateError)
		return
	}

	text := fmt.Sprintf(`✅ <b>Пользователь успешно создан!</b> ✅

🔗 <b>Ссылка на подписку:</b>
<code>%s</code>

📅 <b>Дата окончания:</b> %s

Для продления подписки нажмите кнопку 'Продлить ключ'`,
		link, sub.SubscriptionDate.Format(displayDateFormat))

	s.replyHTML(chatID, text)
	slog.Info("Ключ создан и отправлен пользователю", "tg_user_id", from.ID)
}

func (s *Service) handleGetKey(ctx context.Context, chatID, tgUserID int64) {
	slog.Info("Пользователь выбрал 'Получить ключ'", "tg_user_id", tgUserID)

	sub, link, err := s.svc.Fetch(ctx, tgUserID)
	if err != nil {
		s.handleError(chatID, err, msgKeyError)
		return
	}

	text := fmt.Sprintf(`💫 <b>Ваша VPN подписка</b> 💫

🔗 <b>Ссылка на подписку:</b>
<code>%s</code>

📅 <b>Дата окончания:</b> %s

Для продления подписки нажмите кнопку 'Продлить ключ'`,
		link, sub.SubscriptionDate.Format(displayDateFormat))

	s.replyHTML(chatID, text)
}

func (s *Service) handleRenewKey(ctx context.Context, chatID, tgUserID int64) {
	slog.Info("Пользователь выбрал 'Продлить ключ'", "tg_user_id", tgUserID)

	sub, link, err := s.svc.Renew(ctx, tgUserID)
	if err != nil {
		s.handleError(chatID, err, msgRenewError)
		return
	}

	text := fmt.Sprintf(`✅ <b>Подписка успешно продлена!</b> ✅

🔗 <b>Ссылка на подписку:</b>
<code>%s</code>

📅 <b>Новая дата окончания:</b> %s`,
		link, sub.SubscriptionDate.Format(displayDateFormat))

	s.replyHTML(chatID, text)
	slog.Info("Ключ продлен", "tg_user_id", tgUserID)
}

func (s *Service) sendMainMenu(chatID int64) {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(buttonCreateUser, CallbackCreateUser.String()),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(buttonGetKey, CallbackGetKey.String()),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(buttonRenewKey, CallbackRenewKey.String()),
		),
	)

	msg := tgbotapi.NewMessage(chatID, msgWelcome)
	msg.ReplyMarkup = keyboard
	s.bot.Send(msg)
}

func (s *Service) reply(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := s.bot.Send(msg)
	return err
}

func (s *Service) replyHTML(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := s.bot.Send(msg)
	return err
}

func (s *Service) isSuperAdmin(userID int64) bool {
	superAdminID, err := strconv.ParseInt(s.cfg.SuperAdminID, 10, 64)
	return err == nil && superAdminID == userID
}

func (s *Service) answerCallback(callbackID, text string) {
	callback := tgbotapi.NewCallback(callbackID, text)
	s.bot.Request(callback)
}

func (s *Service) Bot() *tgbotapi.BotAPI {
	return s.bot
}

func (s *Service) setCommands() error {
	commands := []tgbotapi.BotCommand{
		{Command: "start", Description: "🚀 Главное меню"},
		{Command: "key", Description: "🔑 Получить ключ"},
		{Command: "help", Description: "❓ Справка"},
	}

	config := tgbotapi.NewSetMyCommands(commands...)
	_, err := s.bot.Request(config)
	return err
}

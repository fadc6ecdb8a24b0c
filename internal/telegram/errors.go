package telegram

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"remna-bot/internal/gates/remnawave"
	"remna-bot/internal/service"
)

// Error коды для различных типов ошибок
const (
	ErrPanelUnavailable = "PANEL_UNAVAILABLE"
	ErrPanelRequest     = "PANEL_REQUEST_FAILED"
	ErrPanelMalformed   = "PANEL_MALFORMED_RESPONSE"
	ErrProvisioning     = "PROVISIONING_FAILED"
	ErrRenewal          = "RENEWAL_FAILED"
	ErrNoSubscription   = "NO_SUBSCRIPTION"
	ErrDatabaseError    = "DATABASE_ERROR"
	ErrUnknown          = "UNKNOWN_ERROR"
)

// Сообщения пользователю
const (
	msgCreateError = "Произошла ошибка при создании пользователя. Пожалуйста, попробуйте позже."
	msgKeyError    = "Произошла ошибка при получении ключа. Пожалуйста, попробуйте позже."
	msgRenewError  = "Произошла ошибка при продлении ключа. Пожалуйста, попробуйте позже."
	msgUnavailable = "Сервис временно недоступен. Пожалуйста, попробуйте позже."
	msgNoSub       = "❌ <b>У вас нет активной подписки</b> ❌\n\n" +
		"Нажмите кнопку 'Создать пользователя' для создания новой подписки."
)

// BotError представляет ошибку бота с кодом и сообщением для пользователя
type BotError struct {
	Code        string
	Message     string
	UserMessage string
	Details     string
}

func (e *BotError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
}

// classifyError переводит типизированную ошибку оркестратора или панели в
// BotError с сообщением для пользователя. fallback - сообщение для
// ошибок, не попавших в таксономию
func classifyError(err error, fallback string) *BotError {
	switch {
	case errors.Is(err, service.ErrNoSubscription):
		return &BotError{Code: ErrNoSubscription, Message: "No active subscription", UserMessage: msgNoSub, Details: err.Error()}
	case errors.Is(err, service.ErrRenewalFailed):
		return &BotError{Code: ErrRenewal, Message: "Renewal failed", UserMessage: msgRenewError, Details: err.Error()}
	case errors.Is(err, service.ErrProvisioningFailed):
		return &BotError{Code: ErrProvisioning, Message: "Provisioning failed", UserMessage: msgCreateError, Details: err.Error()}
	case errors.Is(err, service.ErrStore):
		return &BotError{Code: ErrDatabaseError, Message: "Database operation failed", UserMessage: fallback, Details: err.Error()}
	case errors.Is(err, remnawave.ErrUnavailable):
		return &BotError{Code: ErrPanelUnavailable, Message: "Panel unavailable", UserMessage: msgUnavailable, Details: err.Error()}
	case errors.Is(err, remnawave.ErrMalformed):
		return &BotError{Code: ErrPanelMalformed, Message: "Panel response malformed", UserMessage: fallback, Details: err.Error()}
	case errors.Is(err, remnawave.ErrRequestFailed):
		return &BotError{Code: ErrPanelRequest, Message: "Panel request failed", UserMessage: fallback, Details: err.Error()}
	default:
		return &BotError{Code: ErrUnknown, Message: "Unknown error occurred", UserMessage: fallback, Details: err.Error()}
	}
}

// handleError логирует ошибку, шлет отчет супер-админу и отвечает
// пользователю понятным сообщением
func (s *Service) handleError(chatID int64, err error, fallback string) {
	slog.Error("Bot error occurred", "error", err)

	botErr := classifyError(err, fallback)
	s.sendErrorReport(botErr)
	s.replyHTML(chatID, botErr.UserMessage)
}

// sendErrorReport отправляет отчет об ошибке супер-админу
func (s *Service) sendErrorReport(botErr *BotError) {
	if s.cfg.SuperAdminID == "" {
		return
	}

	adminID, err := strconv.ParseInt(s.cfg.SuperAdminID, 10, 64)
	if err != nil {
		return
	}

	report := fmt.Sprintf(`🚨 Ошибка в боте:

Код: %s
Сообщение: %s
Детали: %s

Пользователю показано: %s`,
		botErr.Code,
		botErr.Message,
		botErr.Details,
		botErr.UserMessage,
	)

	msg := tgbotapi.NewMessage(adminID, report)
	s.bot.Send(msg)
}

package remnatest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"remna-bot/internal/gates/remnawave"
	"remna-bot/internal/service"
)

// Зарезервированный Telegram ID для проверки: такого пользователя в
// панели нет, поэтому проверка не оставляет следов
const probeTelegramID = -1

// IntegrationTest представляет проверку подключения к панели при старте
type IntegrationTest struct {
	panel    service.Panel
	addr     string
	notifyFn func(message string)
}

// NewIntegrationTest создает новую проверку подключения
func NewIntegrationTest(panel service.Panel, addr string, notifyFn func(string)) *IntegrationTest {
	return &IntegrationTest{
		panel:    panel,
		addr:     addr,
		notifyFn: notifyFn,
	}
}

// RunStartupTest проверяет доступность и авторизацию панели при старте
// приложения. Ожидаемый ответ на пробный поиск - "не найден"
func (it *IntegrationTest) RunStartupTest(ctx context.Context) error {
	slog.Info("Starting panel integration test", "panel_addr", it.addr)

	testCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := it.panel.FindUserByTelegramID(testCtx, probeTelegramID)
	if err != nil && !errors.Is(err, remnawave.ErrNotFound) {
		slog.Error("Panel integration test failed", "error", err)
		errorMsg := fmt.Sprintf("🚨 Панель недоступна при старте!\n\n❌ Ошибка: %v\n🌐 Адрес: %s\n\n⚠️ Подписки не смогут создаваться!", err, it.addr)
		it.notifyFn(errorMsg)
		return err
	}

	slog.Info("Panel integration test passed successfully")
	return nil
}

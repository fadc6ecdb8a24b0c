package remnawave

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Панель непоследовательна: один и тот же эндпоинт может вернуть объект,
// список или объект, завёрнутый в ключ "response". Вся распаковка собрана
// здесь, бизнес-логика видит только PanelUser.

// unwrap снимает конверт "response" (один уровень) и раскрывает список:
// пустой список означает "не найдено"
func unwrap(body []byte) (json.RawMessage, error) {
	raw := json.RawMessage(bytes.TrimSpace(body))

	if len(raw) > 0 && raw[0] == '{' {
		var envelope struct {
			Response json.RawMessage `json:"response"`
		}
		if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Response) > 0 {
			raw = json.RawMessage(bytes.TrimSpace(envelope.Response))
		}
	}

	if len(raw) > 0 && raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if len(items) == 0 {
			return nil, ErrNotFound
		}
		if len(items) > 1 {
			slog.Warn("Панель вернула несколько записей, используем первую", "count", len(items))
		}
		raw = items[0]
	}

	return raw, nil
}

// decodeUser нормализует ответ панели в PanelUser
func decodeUser(body []byte) (*PanelUser, error) {
	raw, err := unwrap(body)
	if err != nil {
		return nil, err
	}

	var dto panelUserDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return &PanelUser{
		UUID:         dto.UUID,
		ShortUUID:    dto.ShortUUID,
		Username:     dto.Username,
		TelegramID:   dto.TelegramID,
		Status:       dto.Status,
		ExpireAt:     parseExpireAt(dto.ExpireAt),
		TrafficLimit: dto.TrafficLimitBytes,
		Raw:          raw,
	}, nil
}

// decodeSubscription нормализует ответ панели в PanelSubscription
func decodeSubscription(body []byte) (*PanelSubscription, error) {
	raw, err := unwrap(body)
	if err != nil {
		return nil, err
	}

	var dto panelSubscriptionDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return &PanelSubscription{
		UUID:     dto.UUID,
		UserUUID: dto.UserUUID,
		ExpireAt: parseExpireAt(dto.ExpireAt),
	}, nil
}

// parseExpireAt возвращает нулевое время, если дата отсутствует или не
// разбирается - дату окончания оркестратор умеет подставлять сам
func parseExpireAt(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		slog.Warn("Некорректный формат даты от панели", "expire_at", value)
		return time.Time{}
	}
	return t
}

package remnawave

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// SplitClient - клиент варианта API, где подписка является отдельным
// ресурсом /subscriptions. Поиск и создание пользователей наследуются от
// merged-клиента без изменений
type SplitClient struct {
	*Client
}

func NewSplitClient(cfg Config) *SplitClient {
	return &SplitClient{Client: NewClient(cfg)}
}

// CreateSubscription создает подписку для существующего пользователя панели
func (c *SplitClient) CreateSubscription(ctx context.Context, user *PanelUser, expireAt time.Time) (*PanelSubscription, error) {
	payload := map[string]interface{}{
		"userUuid": user.UUID,
		"expireAt": expireAt.UTC().Format(time.RFC3339),
	}

	status, body, err := c.do(ctx, http.MethodPost, "/subscriptions", payload)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK && status != http.StatusCreated {
		slog.Error("Ошибка создания подписки в панели", "status", status, "body", string(body))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRequestFailed, status, body)
	}

	sub, err := decodeSubscription(body)
	if err != nil {
		return nil, err
	}
	if sub.UserUUID == "" {
		sub.UserUUID = user.UUID
	}
	if sub.ExpireAt.IsZero() {
		sub.ExpireAt = expireAt
	}
	return sub, nil
}

// RenewSubscription у split-варианта обновляет ресурс подписки напрямую
func (c *SplitClient) RenewSubscription(ctx context.Context, remoteID string, expireAt time.Time) (*PanelSubscription, error) {
	payload := map[string]interface{}{
		"expireAt": expireAt.UTC().Format(time.RFC3339),
	}

	status, body, err := c.do(ctx, http.MethodPatch, "/subscriptions/"+url.PathEscape(remoteID), payload)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
		sub, err := decodeSubscription(body)
		if err != nil {
			return nil, err
		}
		if sub.UUID == "" {
			sub.UUID = remoteID
		}
		if sub.ExpireAt.IsZero() {
			sub.ExpireAt = expireAt
		}
		return sub, nil
	case http.StatusNoContent:
		return &PanelSubscription{UUID: remoteID, ExpireAt: expireAt}, nil
	default:
		slog.Error("Ошибка продления подписки в панели", "status", status, "body", string(body))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRequestFailed, status, body)
	}
}

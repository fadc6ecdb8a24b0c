package remnawave

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Config struct {
	BaseURL         string
	Token           string
	SubscriptionURL string
	Timeout         time.Duration
}

// Client - клиент merged-варианта API панели: пользователь и подписка
// являются одним ресурсом /users
type Client struct {
	baseURL string
	subURL  string
	token   string
	http    *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		subURL:  strings.TrimRight(cfg.SubscriptionURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
	}
}

// do выполняет один запрос к панели. Транспортные ошибки и таймауты
// превращаются в ErrUnavailable
func (c *Client) do(ctx context.Context, method, path string, payload interface{}) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return resp.StatusCode, data, nil
}

// FindUserByTelegramID ищет пользователя панели по Telegram ID.
// 404 означает "не найден", любой другой неуспех - ошибка
func (c *Client) FindUserByTelegramID(ctx context.Context, telegramID int64) (*PanelUser, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/users/by-telegram-id/"+strconv.FormatInt(telegramID, 10), nil)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusOK:
		return decodeUser(body)
	case status == http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("%w: status %d: %s", ErrRequestFailed, status, body)
	}
}

// FindUserByUsername ищет пользователя панели по имени
func (c *Client) FindUserByUsername(ctx context.Context, username string) (*PanelUser, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/users/by-username/"+url.PathEscape(username), nil)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusOK:
		return decodeUser(body)
	case status == http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("%w: status %d: %s", ErrRequestFailed, status, body)
	}
}

// CreateUser создает пользователя панели с датой окончания expireAt.
// Протокольные секреты генерируются здесь же - панели нужны непустые
// значения, для нас они непрозрачны
func (c *Client) CreateUser(ctx context.Context, telegramID int64, username string, expireAt time.Time) (*PanelUser, error) {
	payload := map[string]interface{}{
		"uuid":                 uuid.NewString(),
		"username":             username,
		"telegramId":           telegramID,
		"expireAt":             expireAt.UTC().Format(time.RFC3339),
		"status":               UserStatusActive,
		"trafficLimitBytes":    defaultTrafficLimit,
		"trafficLimitStrategy": TrafficStrategyNoReset,
		"trojanPassword":       generateSecret(16),
		"ssPassword":           generateSecret(16),
		"vlessUuid":            uuid.NewString(),
	}

	status, body, err := c.do(ctx, http.MethodPost, "/users", payload)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK && status != http.StatusCreated {
		slog.Error("Ошибка создания пользователя в панели", "status", status, "body", string(body))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRequestFailed, status, body)
	}

	user, err := decodeUser(body)
	if err != nil {
		return nil, err
	}

	slog.Info("Пользователь создан в панели", "telegram_id", telegramID, "uuid", user.UUID)
	return user, nil
}

// CreateSubscription у merged-варианта - no-op: подписка уже входит в
// ресурс пользователя, отдельного вызова у панели нет
func (c *Client) CreateSubscription(ctx context.Context, user *PanelUser, expireAt time.Time) (*PanelSubscription, error) {
	sub := &PanelSubscription{
		UUID:     user.UUID,
		UserUUID: user.UUID,
		ExpireAt: user.ExpireAt,
	}
	if sub.ExpireAt.IsZero() {
		sub.ExpireAt = expireAt
	}
	return sub, nil
}

// RenewSubscription сдвигает дату окончания. Панель может ответить 200 с
// телом или 204 без тела - во втором случае результат собирается из
// параметров запроса
func (c *Client) RenewSubscription(ctx context.Context, remoteID string, expireAt time.Time) (*PanelSubscription, error) {
	payload := map[string]interface{}{
		"uuid":     remoteID,
		"expireAt": expireAt.UTC().Format(time.RFC3339),
	}

	status, body, err := c.do(ctx, http.MethodPatch, "/users", payload)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
		user, err := decodeUser(body)
		if err != nil {
			return nil, err
		}
		sub := &PanelSubscription{UUID: user.UUID, UserUUID: user.UUID, ExpireAt: user.ExpireAt}
		if sub.UUID == "" {
			sub.UUID = remoteID
		}
		if sub.ExpireAt.IsZero() {
			sub.ExpireAt = expireAt
		}
		return sub, nil
	case http.StatusNoContent:
		return &PanelSubscription{UUID: remoteID, UserUUID: remoteID, ExpireAt: expireAt}, nil
	default:
		slog.Error("Ошибка продления подписки в панели", "status", status, "body", string(body))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRequestFailed, status, body)
	}
}

// SubscriptionLink строит ссылку на подписку. Пустая строка означает
// "не удалось определить" - это мягкий отказ, не ошибка
func (c *Client) SubscriptionLink(ctx context.Context, user *PanelUser) string {
	if user == nil {
		return ""
	}

	if user.ShortUUID != "" {
		return c.subURL + "/" + user.ShortUUID
	}

	// shortUuid панель присылает не во всех ответах - добираем его
	// повторным поиском по имени
	if user.Username != "" {
		details, err := c.FindUserByUsername(ctx, user.Username)
		if err == nil && details.ShortUUID != "" {
			return c.subURL + "/" + details.ShortUUID
		}
	}

	slog.Warn("Не удалось сформировать ссылку на подписку - shortUuid отсутствует", "uuid", user.UUID)
	return ""
}

// NormalizeLink приводит строку к виду ссылки: голый идентификатор
// получает базовый URL, готовая ссылка возвращается как есть
func (c *Client) NormalizeLink(raw string) string {
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, c.linkHost()) {
		return raw
	}
	if !strings.Contains(raw, "/") {
		return c.subURL + "/" + raw
	}
	return raw
}

// linkHost возвращает схему и хост базового URL подписок
func (c *Client) linkHost() string {
	u, err := url.Parse(c.subURL)
	if err != nil || u.Host == "" {
		return c.subURL
	}
	return u.Scheme + "://" + u.Host
}

// generateSecret возвращает случайную hex-строку длиной 2*n символов
func generateSecret(n int) string {
	buf := make([]byte, n)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}

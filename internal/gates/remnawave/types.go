package remnawave

import (
	"encoding/json"
	"strconv"
	"time"
)

// Статусы и стратегии панели
const (
	UserStatusActive       = "ACTIVE"
	TrafficStrategyNoReset = "NO_RESET"

	telegramUsernamePrefix = "tg_"
	defaultTrafficLimit    = 0
)

// PanelUser - нормализованный пользователь панели. У merged-варианта API
// это же является и подпиской
type PanelUser struct {
	UUID         string
	ShortUUID    string
	Username     string
	TelegramID   int64
	Status       string
	ExpireAt     time.Time // нулевое время, если панель не прислала дату
	TrafficLimit int64
	Raw          json.RawMessage
}

// PanelSubscription - нормализованная подписка панели
type PanelSubscription struct {
	UUID     string
	UserUUID string
	ExpireAt time.Time
}

// DTO ответа панели, имена полей фиксированы её API
type panelUserDTO struct {
	UUID              string `json:"uuid"`
	ShortUUID         string `json:"shortUuid"`
	Username          string `json:"username"`
	TelegramID        int64  `json:"telegramId"`
	Status            string `json:"status"`
	ExpireAt          string `json:"expireAt"`
	TrafficLimitBytes int64  `json:"trafficLimitBytes"`
}

type panelSubscriptionDTO struct {
	UUID     string `json:"uuid"`
	UserUUID string `json:"userUuid"`
	ExpireAt string `json:"expireAt"`
}

// FallbackUsername возвращает имя для панели, когда у пользователя
// Telegram нет username
func FallbackUsername(telegramID int64) string {
	return telegramUsernamePrefix + strconv.FormatInt(telegramID, 10)
}

package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config хранит все настройки сервиса, загружается один раз при старте
type Config struct {
	BotToken     string `env:"BOT_TOKEN"`
	SuperAdminID string `env:"SUPER_ADMIN_ID"`

	DBDsn string `env:"DB_DSN" env-default:"/data/remnabot.db"`

	PanelAPIURL     string `env:"REMNAWAVE_API_URL" env-default:"https://remnawave.tgvpnbot.com/api"`
	PanelAPIToken   string `env:"REMNAWAVE_API_TOKEN"`
	PanelAPIVariant string `env:"REMNAWAVE_API_VARIANT" env-default:"merged"`
	SubscriptionURL string `env:"SUBSCRIPTION_BASE_URL" env-default:"https://sub.officialbot.org/officialvpn/sub"`

	SubscriptionDays int           `env:"SUBSCRIPTION_DAYS" env-default:"7"`
	RenewalDays      int           `env:"RENEWAL_DAYS" env-default:"365"`
	APITimeout       time.Duration `env:"API_TIMEOUT" env-default:"30s"`

	HealthAddr string `env:"HEALTH_ADDR" env-default:"0.0.0.0:8080"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SubscriptionPeriod возвращает срок новой подписки по умолчанию
func (c *Config) SubscriptionPeriod() time.Duration {
	return time.Duration(c.SubscriptionDays) * 24 * time.Hour
}

// RenewalPeriod возвращает срок, на который продлевается подписка
func (c *Config) RenewalPeriod() time.Duration {
	return time.Duration(c.RenewalDays) * 24 * time.Hour
}

package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ErrNotFound возвращается методами поиска, когда записи нет
var ErrNotFound = errors.New("record not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(dsn string) (*Repository, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	return &Repository{db: db}, nil
}

func (r *Repository) DB() *gorm.DB {
	return r.db
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&User{},
		&Subscription{},
	)
}

// Ping проверяет доступность базы
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *Repository) UserByTgID(ctx context.Context, tgUserID int64) (*User, error) {
	var user User
	result := r.db.WithContext(ctx).Where("tg_user_id = ?", tgUserID).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

func (r *Repository) CreateUser(ctx context.Context, user *User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// LatestSubscription возвращает самую свежую подписку пользователя
// (по дате окончания) и общее число его подписок
func (r *Repository) LatestSubscription(ctx context.Context, userID uint) (*Subscription, int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&Subscription{}).
		Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return nil, 0, err
	}
	if count == 0 {
		return nil, 0, ErrNotFound
	}

	var sub Subscription
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("subscription_date DESC").First(&sub)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, count, ErrNotFound
		}
		return nil, count, result.Error
	}
	return &sub, count, nil
}

func (r *Repository) CreateSubscription(ctx context.Context, sub *Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

// UpdateSubscriptionLink обновляет ключ и идентификатор панели у подписки
func (r *Repository) UpdateSubscriptionLink(ctx context.Context, subID uint, vpnKey, vpnID string) error {
	return r.db.WithContext(ctx).Model(&Subscription{}).Where("id = ?", subID).
		Updates(map[string]interface{}{"vpn_key": vpnKey, "vpn_id": vpnID}).Error
}

// UpdateSubscriptionDate обновляет дату окончания подписки
func (r *Repository) UpdateSubscriptionDate(ctx context.Context, subID uint, date time.Time) error {
	return r.db.WithContext(ctx).Model(&Subscription{}).Where("id = ?", subID).
		Update("subscription_date", date).Error
}

// ExpiringSubscriptions возвращает подписки, истекающие в окне [from, to),
// вместе с пользователями - для напоминаний
func (r *Repository) ExpiringSubscriptions(ctx context.Context, from, to time.Time) ([]Subscription, error) {
	var subs []Subscription
	result := r.db.WithContext(ctx).
		Where("subscription_date >= ? AND subscription_date < ?", from, to).
		Preload("User").Find(&subs)
	if result.Error != nil {
		return nil, result.Error
	}
	return subs, nil
}

func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&User{}).Count(&count).Error
	return count, err
}

func (r *Repository) CountSubscriptions(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Subscription{}).Count(&count).Error
	return count, err
}

package db

import "time"

// User - пользователи бота
type User struct {
	ID           uint  `gorm:"primaryKey"`
	TgUserID     int64 `gorm:"uniqueIndex;not null"`
	Username     string
	FirstName    string
	LastName     string
	ReferralCode string
	CreatedAt    time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// Subscription - подписки (ключи)
type Subscription struct {
	ID               uint      `gorm:"primaryKey"`
	UserID           uint      `gorm:"index;not null"`
	VPNKey           string    `gorm:"column:vpn_key;not null"`
	VPNID            string    `gorm:"column:vpn_id;uniqueIndex;not null"`
	SubscriptionDate time.Time `gorm:"not null"`
	TrafficLimit     int64     `gorm:"default:0"`
	TrafficUsed      int64     `gorm:"default:0"`
	CreatedAt        time.Time `gorm:"default:CURRENT_TIMESTAMP"`

	// Relations
	User User `gorm:"foreignKey:UserID"`
}

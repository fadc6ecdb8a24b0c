package telegram

import (
	"context"

	"remna-bot/internal/db"
)

// Orchestrator - операции сервиса подписок, нужные фронтенду
type Orchestrator interface {
	EnsureUserWithReferral(ctx context.Context, tgUserID int64, username, firstName, lastName, referralCode string) (*db.User, error)

	Provision(ctx context.Context, tgUserID int64, username, firstName, lastName string) (*db.User, *db.Subscription, string, error)

	Fetch(ctx context.Context, tgUserID int64) (*db.Subscription, string, error)

	Renew(ctx context.Context, tgUserID int64) (*db.Subscription, string, error)
}

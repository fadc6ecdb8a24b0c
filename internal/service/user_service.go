package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"remna-bot/internal/config"
	"remna-bot/internal/db"
	"remna-bot/internal/gates/remnawave"
)

// Panel - операции панели, нужные оркестратору. Merged- и split-варианты
// API реализуют его одинаково, выбор делается один раз при старте
type Panel interface {
	FindUserByTelegramID(ctx context.Context, telegramID int64) (*remnawave.PanelUser, error)
	CreateUser(ctx context.Context, telegramID int64, username string, expireAt time.Time) (*remnawave.PanelUser, error)
	CreateSubscription(ctx context.Context, user *remnawave.PanelUser, expireAt time.Time) (*remnawave.PanelSubscription, error)
	RenewSubscription(ctx context.Context, remoteID string, expireAt time.Time) (*remnawave.PanelSubscription, error)
	SubscriptionLink(ctx context.Context, user *remnawave.PanelUser) string
	NormalizeLink(raw string) string
}

// UserService сводит три источника состояния - локальную базу, ресурс
// пользователя и ресурс подписки панели - к одному согласованному
// результату (пользователь, подписка, ссылка)
type UserService struct {
	repo  *db.Repository
	panel Panel
	cfg   *config.Config

	now func() time.Time
}

func NewUserService(repo *db.Repository, panel Panel, cfg *config.Config) *UserService {
	return &UserService{
		repo:  repo,
		panel: panel,
		cfg:   cfg,
		now:   time.Now,
	}
}

// EnsureUser возвращает пользователя, создавая запись при первом
// обращении. Повторный вызов ничего не вставляет
func (s *UserService) EnsureUser(ctx context.Context, tgUserID int64, username, firstName, lastName string) (*db.User, error) {
	return s.ensureUser(ctx, tgUserID, username, firstName, lastName, "")
}

// EnsureUserWithReferral - то же, но с реферальной меткой из deep-link.
// Метка записывается только при создании, ядро её не использует
func (s *UserService) EnsureUserWithReferral(ctx context.Context, tgUserID int64, username, firstName, lastName, referralCode string) (*db.User, error) {
	return s.ensureUser(ctx, tgUserID, username, firstName, lastName, referralCode)
}

func (s *UserService) ensureUser(ctx context.Context, tgUserID int64, username, firstName, lastName, referralCode string) (*db.User, error) {
	user, err := s.repo.UserByTgID(ctx, tgUserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	user = &db.User{
		TgUserID:     tgUserID,
		Username:     username,
		FirstName:    firstName,
		LastName:     lastName,
		ReferralCode: referralCode,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	slog.Info("Создан новый пользователь", "tg_user_id", tgUserID)
	return user, nil
}

// Provision приводит мир к состоянию "у пользователя есть подписка" и
// возвращает её вместе со ссылкой. Три случая:
//  1. локальная подписка есть - верим базе;
//  2. локальной нет, в панели пользователь есть - заводим локальную
//     запись по данным панели;
//  3. нет нигде - создаем пользователя панели и дальше как в случае 2.
func (s *UserService) Provision(ctx context.Context, tgUserID int64, username, firstName, lastName string) (*db.User, *db.Subscription, string, error) {
	user, err := s.EnsureUser(ctx, tgUserID, username, firstName, lastName)
	if err != nil {
		return nil, nil, "", err
	}

	sub, _, err := s.repo.LatestSubscription(ctx, user.ID)
	hasLocal := err == nil
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return nil, nil, "", fmt.Errorf("%w: %v", ErrStore, err)
	}

	panelUser, perr := s.panel.FindUserByTelegramID(ctx, tgUserID)
	if perr != nil && !errors.Is(perr, remnawave.ErrNotFound) {
		if hasLocal {
			// Панель недоступна, но локальная подписка есть -
			// деградируем до сохраненных значений, как в Fetch
			slog.Warn("Панель недоступна, возвращаем сохраненную подписку", "tg_user_id", tgUserID, "error", perr)
			return user, sub, s.panel.NormalizeLink(sub.VPNKey), nil
		}
		return nil, nil, "", perr
	}

	if perr == nil {
		slog.Info("Найден существующий пользователь в панели", "tg_user_id", tgUserID)

		if hasLocal {
			link, err := s.refreshStoredLink(ctx, sub, panelUser)
			if err != nil {
				return nil, nil, "", err
			}
			return user, sub, link, nil
		}

		sub, link, err := s.persistFromPanel(ctx, user, panelUser)
		if err != nil {
			return nil, nil, "", err
		}
		return user, sub, link, nil
	}

	// Случай 3: пользователя нет и в панели
	panelUsername := username
	if panelUsername == "" {
		panelUsername = remnawave.FallbackUsername(tgUserID)
	}

	expireAt := s.now().UTC().Add(s.cfg.SubscriptionPeriod())
	panelUser, err = s.panel.CreateUser(ctx, tgUserID, panelUsername, expireAt)
	if err != nil {
		return nil, nil, "", err
	}

	sub, link, err := s.persistFromPanel(ctx, user, panelUser)
	if err != nil {
		return nil, nil, "", err
	}
	return user, sub, link, nil
}

// persistFromPanel заводит локальную запись подписки по данным панели.
// Дату окончания можно подставить по умолчанию, идентификаторы - нельзя
func (s *UserService) persistFromPanel(ctx context.Context, user *db.User, panelUser *remnawave.PanelUser) (*db.Subscription, string, error) {
	expireAt := panelUser.ExpireAt
	if expireAt.IsZero() {
		slog.Warn("Дата окончания подписки отсутствует в ответе панели, берем срок по умолчанию",
			"tg_user_id", user.TgUserID, "days", s.cfg.SubscriptionDays)
		expireAt = s.now().UTC().Add(s.cfg.SubscriptionPeriod())
	}

	remoteSub, err := s.panel.CreateSubscription(ctx, panelUser, expireAt)
	if err != nil {
		return nil, "", err
	}

	link := s.panel.SubscriptionLink(ctx, panelUser)
	if link == "" {
		slog.Error("shortUuid отсутствует в ответе панели", "tg_user_id", user.TgUserID)
		return nil, "", fmt.Errorf("%w: subscription link cannot be built", ErrProvisioningFailed)
	}
	if remoteSub.UUID == "" {
		slog.Error("uuid отсутствует в ответе панели", "tg_user_id", user.TgUserID)
		return nil, "", fmt.Errorf("%w: remote id missing", ErrProvisioningFailed)
	}

	if !remoteSub.ExpireAt.IsZero() {
		expireAt = remoteSub.ExpireAt
	}

	sub := &db.Subscription{
		UserID:           user.ID,
		VPNKey:           link,
		VPNID:            remoteSub.UUID,
		SubscriptionDate: expireAt,
		TrafficLimit:     panelUser.TrafficLimit,
		TrafficUsed:      0,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		// Ресурс панели уже создан и не откатывается - окно
		// несогласованности закроет следующий Fetch
		return nil, "", fmt.Errorf("%w: %v", ErrStore, err)
	}

	slog.Info("Создана локальная запись подписки", "tg_user_id", user.TgUserID, "vpn_id", sub.VPNID)
	return sub, link, nil
}

// Fetch возвращает текущую подписку. Если панель доступна и её данные
// расходятся с базой - база чинится по панели; если панель недоступна,
// успешное локальное чтение от этого не ломается
func (s *UserService) Fetch(ctx context.Context, tgUserID int64) (*db.Subscription, string, error) {
	sub, err := s.storedSubscription(ctx, tgUserID)
	if err != nil {
		return nil, "", err
	}

	panelUser, perr := s.panel.FindUserByTelegramID(ctx, tgUserID)
	if perr != nil {
		if !errors.Is(perr, remnawave.ErrNotFound) {
			slog.Warn("Панель недоступна, возвращаем сохраненную подписку", "tg_user_id", tgUserID, "error", perr)
		}
		return sub, s.panel.NormalizeLink(sub.VPNKey), nil
	}

	link, err := s.refreshStoredLink(ctx, sub, panelUser)
	if err != nil {
		return nil, "", err
	}
	return sub, link, nil
}

// refreshStoredLink сверяет сохраненные vpn_key/vpn_id с панелью и при
// расхождении обновляет запись
func (s *UserService) refreshStoredLink(ctx context.Context, sub *db.Subscription, panelUser *remnawave.PanelUser) (string, error) {
	link := s.panel.SubscriptionLink(ctx, panelUser)
	if link == "" {
		return s.panel.NormalizeLink(sub.VPNKey), nil
	}

	vpnID := sub.VPNID
	if panelUser.UUID != "" {
		vpnID = panelUser.UUID
	}

	if sub.VPNKey != link || sub.VPNID != vpnID {
		slog.Info("Данные панели расходятся с базой, обновляем подписку",
			"subscription_id", sub.ID, "vpn_id", vpnID)
		if err := s.repo.UpdateSubscriptionLink(ctx, sub.ID, link, vpnID); err != nil {
			return "", fmt.Errorf("%w: %v", ErrStore, err)
		}
		sub.VPNKey = link
		sub.VPNID = vpnID
	}

	return link, nil
}

// Renew продлевает подписку: новая дата = max(теперь, текущая) + срок
// продления, так что продление никогда не укорачивает остаток. Сначала
// панель, потом база - при отказе панели локальная запись не трогается
func (s *UserService) Renew(ctx context.Context, tgUserID int64) (*db.Subscription, string, error) {
	sub, err := s.storedSubscription(ctx, tgUserID)
	if err != nil {
		return nil, "", err
	}

	now := s.now().UTC()
	base := sub.SubscriptionDate
	if base.Before(now) {
		base = now
	}
	newExpiry := base.Add(s.cfg.RenewalPeriod())

	if _, err := s.panel.RenewSubscription(ctx, sub.VPNID, newExpiry); err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrRenewalFailed, err)
	}

	if err := s.repo.UpdateSubscriptionDate(ctx, sub.ID, newExpiry); err != nil {
		// Панель уже продлила - несогласованность не прячем
		return nil, "", fmt.Errorf("%w: %v", ErrStore, err)
	}
	sub.SubscriptionDate = newExpiry

	slog.Info("Подписка продлена", "tg_user_id", tgUserID, "new_expiry", newExpiry)
	return sub, s.panel.NormalizeLink(sub.VPNKey), nil
}

// storedSubscription находит самую свежую локальную подписку пользователя
func (s *UserService) storedSubscription(ctx context.Context, tgUserID int64) (*db.Subscription, error) {
	user, err := s.repo.UserByTgID(ctx, tgUserID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrNoSubscription
		}
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	sub, count, err := s.repo.LatestSubscription(ctx, user.ID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, ErrNoSubscription
		}
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	if count > 1 {
		slog.Warn("Найдено несколько подписок, используем самую свежую",
			"tg_user_id", tgUserID, "count", count)
	}

	return sub, nil
}

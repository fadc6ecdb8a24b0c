package service

import "errors"

// Типизированные отказы оркестратора. Ошибки панели (remnawave.Err*)
// пробрасываются наверх как есть - фронтенд различает все виды через
// errors.Is и сам подбирает сообщение пользователю
var (
	// ErrNoSubscription - у пользователя нет локальной подписки
	ErrNoSubscription = errors.New("no active subscription")

	// ErrProvisioningFailed - панель не вернула идентификаторы, без
	// которых подписка неработоспособна
	ErrProvisioningFailed = errors.New("provisioning failed")

	// ErrRenewalFailed - продление на стороне панели не прошло,
	// локальная запись не изменена
	ErrRenewalFailed = errors.New("renewal failed")

	// ErrStore - отказ хранилища, всегда фатален для текущего запроса
	ErrStore = errors.New("store failure")
)

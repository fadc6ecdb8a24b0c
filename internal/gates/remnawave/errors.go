package remnawave

import "errors"

// Классификация отказов панели. Оркестратор различает их через errors.Is
var (
	// ErrNotFound - панель ответила 404 или пустым списком на поиск
	ErrNotFound = errors.New("remnawave: user not found")

	// ErrUnavailable - транспортная ошибка или таймаут, 404 сюда не входит
	ErrUnavailable = errors.New("remnawave: panel unavailable")

	// ErrRequestFailed - панель ответила неуспешным статусом
	ErrRequestFailed = errors.New("remnawave: request failed")

	// ErrMalformed - успешный статус, но тело не удалось нормализовать
	ErrMalformed = errors.New("remnawave: malformed response")
)

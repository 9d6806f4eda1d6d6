package domain

import "errors"

// Ошибки рабочего процесса. Слои выше оборачивают их через %w,
// HTTP-граница переводит в статусы по errors.Is.
var (
	// ErrAuthentication — неверные учётные данные.
	ErrAuthentication = errors.New("неверные учётные данные")
	// ErrRoleNotRegistered — роль не зарегистрирована за пользователем.
	ErrRoleNotRegistered = errors.New("роль не зарегистрирована")
	// ErrPermission — операция запрещена для действующего пользователя.
	ErrPermission = errors.New("операция не разрешена")
	// ErrNotFound — сущность не найдена.
	ErrNotFound = errors.New("не найдено")
	// ErrInvalidTarget — некорректная цель подписки.
	ErrInvalidTarget = errors.New("некорректная цель подписки")
	// ErrDuplicateName — имя издательства уже занято.
	ErrDuplicateName = errors.New("имя уже занято")
	// ErrValidation — некорректные данные запроса.
	ErrValidation = errors.New("некорректные данные")
)

package authflow

// Клиентская валидация username. Правила зеркалят серверные: невалидное имя
// отклоняется до сетевого вызова с тем же текстом, который вернул бы сервер.

import (
	"regexp"
	"strings"

	"github.com/go-faster/errors"
)

// Ошибки валидации username. Текст — пользовательское сообщение, оно
// показывается в форме аутентификации как есть.
var (
	ErrUsernameEmpty   = errors.New("Please enter a username")
	ErrUsernameShort   = errors.New("Username must be at least 3 characters")
	ErrUsernameCharset = errors.New("Username can only contain letters, numbers, and underscores")
)

// minUsernameLen — минимальная длина username.
const minUsernameLen = 3

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ValidateUsername триммирует и проверяет имя пользователя. Порядок проверок
// фиксирован: пустое значение → длина → алфавит. Возвращает нормализованное имя.
func ValidateUsername(raw string) (string, error) {
	username := strings.TrimSpace(raw)
	if username == "" {
		return "", ErrUsernameEmpty
	}
	if len(username) < minUsernameLen {
		return "", ErrUsernameShort
	}
	if !usernameRe.MatchString(username) {
		return "", ErrUsernameCharset
	}
	return username, nil
}

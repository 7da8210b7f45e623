// Пакет session отвечает за локальную идентичность клиента DeepTraceX:
//   - Session — пара username+token плюс последний известный баланс кредитов;
//   - Store — контракт персистентного хранилища сессии;
//   - реализации Store: файловая (JSON, атомарная запись), bbolt и in-memory.
//
// Инвариант сессии: username и token живут строго парой. Состояние, где заполнено
// только одно из двух полей, невалидно; хранилища нормализуют такое состояние в
// пустую сессию при загрузке, а Save отклоняет его ошибкой.
package session

import (
	"strings"

	"github.com/go-faster/errors"
)

// Ключи полей в персистентном представлении. Совпадают с историческими именами
// клиентского хранилища, чтобы формат был узнаваем при миграции.
const (
	KeyUsername = "dtx_username"
	KeyToken    = "dtx_token"
	KeyCredits  = "dtx_credits"
)

// ErrIncomplete возвращается при попытке сохранить сессию, нарушающую инвариант
// парности username+token.
var ErrIncomplete = errors.New("session: username and token must be set together")

// Session — локально сохранённая идентичность пользователя.
// Пустая Session (IsZero) означает «не аутентифицирован».
type Session struct {
	Username string `json:"dtx_username"`
	Token    string `json:"dtx_token"`
	// Credits — последний известный баланс. Носит справочный характер:
	// источником истины остаётся сервер.
	Credits int `json:"dtx_credits"`
}

// IsZero сообщает, что сессия пуста (нет ни username, ни token).
func (s Session) IsZero() bool {
	return s.Username == "" && s.Token == ""
}

// Valid проверяет инвариант парности: обе части заполнены либо обе пусты.
func (s Session) Valid() bool {
	return (s.Username == "") == (s.Token == "")
}

// Normalize триммирует поля и приводит невалидную полусессию к пустой.
// Кредиты не могут быть отрицательными.
func (s Session) Normalize() Session {
	s.Username = strings.TrimSpace(s.Username)
	s.Token = strings.TrimSpace(s.Token)
	if !s.Valid() {
		return Session{}
	}
	if s.Credits < 0 {
		s.Credits = 0
	}
	return s
}

// Store — контракт персистентного хранилища сессии.
//
// Семантика:
//   - Load возвращает пустую Session (не ошибку), если сессия отсутствует или
//     нарушает инвариант парности;
//   - Save атомарно заменяет сохранённое состояние целиком;
//   - Clear удаляет сессию; повторный Clear — no-op.
//
// Реализации обязаны быть потокобезопасными.
type Store interface {
	Load() (Session, error)
	Save(s Session) error
	Clear() error
}

// validateForSave — общая проверка перед записью в любое хранилище.
// В отличие от Normalize, полусессия здесь — ошибка, а не тихое обнуление:
// Save с нарушенным инвариантом означает баг вызывающего кода.
func validateForSave(s Session) (Session, error) {
	s.Username = strings.TrimSpace(s.Username)
	s.Token = strings.TrimSpace(s.Token)
	if !s.Valid() {
		return Session{}, ErrIncomplete
	}
	if s.Credits < 0 {
		s.Credits = 0
	}
	return s, nil
}

package gateway

// Типы результатов вызовов API аутентификации.
// Сырые wire-структуры (register/check/credits) — деталь клиента; наружу
// отдаются классифицированные результаты, чтобы ядру не приходилось
// интерпретировать комбинации флагов success/telegram_required/banned.

import "fmt"

// RegisterOutcome классифицирует ответ /api/auth/register.
type RegisterOutcome int

const (
	// RegisterAuthenticated — пользователь аутентифицирован, сессия выдана.
	RegisterAuthenticated RegisterOutcome = iota
	// RegisterVerificationRequired — нужна привязка Telegram по bind-коду.
	// Для нового пользователя сервер при этом уже выдал токен и кредиты.
	RegisterVerificationRequired
	// RegisterRejected — отказ с человекочитаемым сообщением (занято, бан и т.д.).
	RegisterRejected
)

// RegisterResult — классифицированный ответ регистрации/логина.
type RegisterResult struct {
	Outcome  RegisterOutcome
	Username string
	Token    string
	Credits  int
	IsNew    bool
	BindCode string
	// Message — серверное сообщение об отказе (для RegisterRejected).
	Message string
}

// CheckOutcome классифицирует ответ /api/auth/check.
type CheckOutcome int

const (
	// CheckVerified — сессия валидна и верифицирована.
	CheckVerified CheckOutcome = iota
	// CheckPending — сессия валидна, но ждёт привязки Telegram.
	CheckPending
	// CheckBanned — аккаунт забанен.
	CheckBanned
	// CheckInvalid — сессия не признана сервером (нет такого пользователя,
	// токен не совпал, пустые поля).
	CheckInvalid
)

// CheckResult — классифицированный ответ проверки сессии.
type CheckResult struct {
	Outcome  CheckOutcome
	Username string
	Credits  int
	BindCode string
}

// TransportError сигнализирует о сбое доставки: сетевая ошибка, неожиданный
// HTTP-статус или нечитаемое тело ответа. Ответ сервера при этом неизвестен,
// поэтому такие ошибки никогда не меняют состояние сессии на клиенте.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// transportErr — внутренний конструктор TransportError.
func transportErr(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}

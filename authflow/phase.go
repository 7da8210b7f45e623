package authflow

// Phase — фаза аутентификации клиента. Выводится из состояния сессии и
// последнего ответа сервера; вью-слой использует её для выбора экрана.
type Phase int

const (
	// PhaseUnauthenticated — локальной сессии нет либо сервер её не признал.
	PhaseUnauthenticated Phase = iota
	// PhaseRegistering — транзиентная фаза: запрос регистрации/логина в полёте.
	PhaseRegistering
	// PhasePendingVerification — сервер ждёт привязки Telegram по bind-коду.
	PhasePendingVerification
	// PhaseAuthenticated — сессия валидна и верифицирована.
	PhaseAuthenticated
	// PhaseBanned — аккаунт забанен. Фаза отображается вью-слою один раз;
	// машина после бана очищает сессию и возвращается в PhaseUnauthenticated.
	PhaseBanned
)

func (p Phase) String() string {
	switch p {
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseRegistering:
		return "registering"
	case PhasePendingVerification:
		return "pending_verification"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseBanned:
		return "banned"
	default:
		return "unknown"
	}
}

package authflow

// Контракт вью-слоя. SDK не рисует интерфейс: встраивающее приложение
// реализует View, а машина состояний дёргает его методы при переходах.
// Все методы вызываются последовательно (машина сериализует переходы),
// но потенциально из фоновой горутины опроса — реализация обязана быть
// готова к вызову не из «основного потока» приложения.
//
// Реентерабельность запрещена: методы View вызываются внутри перехода,
// когда машина держит внутреннюю блокировку. Синхронный обратный вызов
// Machine (Phase, Session, SubmitUsername и т.д.) из реализации View —
// deadlock. Нужно состояние — снимите его до перехода или уйдите в
// отдельную горутину.

// NoticeKind — тип всплывающего уведомления.
type NoticeKind int

const (
	NoticeInfo NoticeKind = iota
	NoticeSuccess
	NoticeError
)

// View — экраны и сигналы, которыми управляет машина состояний.
type View interface {
	// ShowAuthForm показывает форму ввода username. login=true — режим
	// повторного входа (после logout), false — первичное приветствие.
	ShowAuthForm(login bool)
	// ShowPending показывает экран ожидания привязки Telegram с bind-кодом.
	ShowPending(bindCode string)
	// ShowPanel показывает основную панель с именем и балансом кредитов.
	ShowPanel(username string, credits int)
	// ShowBanned показывает экран перманентного бана.
	ShowBanned()
	// ShowAuthError выводит ошибку в форме аутентификации.
	ShowAuthError(msg string)
	// Notify показывает всплывающее уведомление.
	Notify(msg string, kind NoticeKind)
	// ConfirmLogout запрашивает подтверждение выхода. false — отмена.
	ConfirmLogout() bool
	// SetBusy включает/выключает индикатор выполнения запроса. Машина
	// гарантирует выключение на любом пути завершения операции.
	SetBusy(busy bool)
}

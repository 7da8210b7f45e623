// Пакет authflow — машина состояний аутентификации клиента DeepTraceX.
// Связывает персистентную сессию, шлюз API и вью-слой:
//   - холодный старт: восстановление сессии и её проверка на сервере;
//   - регистрация/логин по username с клиентской валидацией;
//   - ожидание привязки Telegram с фоновым опросом статуса;
//   - выход с подтверждением и обновление баланса кредитов.
//
// Правила переходов:
//   - сбой доставки (*gateway.TransportError) никогда не меняет фазу: ответ
//     сервера неизвестен, текущее состояние остаётся в силе;
//   - устаревшие ответы (пришедшие после logout или нового сабмита)
//     игнорируются — каждый переход увеличивает счётчик поколения, и ответ
//     со старым поколением не применяется;
//   - бан очищает локальную сессию; машина показывает экран бана и
//     возвращается в PhaseUnauthenticated.
package authflow

import (
	"context"
	"sync"
	"time"

	"github.com/puzzlefixyt-crypto/deeptracex/gateway"
	"github.com/puzzlefixyt-crypto/deeptracex/internal/infra/clock"
	"github.com/puzzlefixyt-crypto/deeptracex/internal/infra/config"
	"github.com/puzzlefixyt-crypto/deeptracex/internal/infra/logger"
	"github.com/puzzlefixyt-crypto/deeptracex/session"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// DefaultPollInterval — период фонового опроса статуса верификации.
const DefaultPollInterval = 3 * time.Second

// Тексты уведомлений. Совпадают с историческими сообщениями панели.
const (
	noticeWelcomeNew   = "Welcome! You have 10 free credits to start."
	noticeWelcomeBack  = "Welcome back!"
	noticeVerified     = "Telegram verified successfully!"
	noticeVerifyFailed = "Verification failed. Please sign in again."
	msgConnectionErr   = "Connection error. Please try again."
)

// ErrBusy возвращается, когда запрос регистрации уже в полёте.
var ErrBusy = errors.New("authflow: request already in progress")

// Gateway — контракт шлюза API, нужный машине. Реализуется *gateway.Client.
type Gateway interface {
	Register(ctx context.Context, username string) (gateway.RegisterResult, error)
	Check(ctx context.Context, username, token string) (gateway.CheckResult, error)
	CheckCredits(ctx context.Context, username, token string) (int, bool, error)
	Logout(ctx context.Context, username, token string) error
}

// Option настраивает машину при создании.
type Option func(*Machine)

// WithClock подменяет источник таймеров (детерминированные тесты).
func WithClock(clk clock.Clock) Option {
	return func(m *Machine) {
		if clk != nil {
			m.clk = clk
		}
	}
}

// WithPollInterval переопределяет период опроса статуса верификации.
func WithPollInterval(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// Machine — машина состояний аутентификации. Потокобезопасна: все переходы
// сериализуются мьютексом, сетевые вызовы выполняются вне блокировки.
type Machine struct {
	store session.Store
	gw    Gateway
	view  View

	clk          clock.Clock
	pollInterval time.Duration
	poller       *poller

	// runCtx — контекст жизни машины; передаётся фоновому опросу.
	runCtx context.Context

	mu       sync.Mutex
	phase    Phase
	sess     session.Session
	bindCode string
	busy     bool
	// gen — поколение состояния. Увеличивается на каждом переходе,
	// инициированном пользователем; ответ сети со старым поколением — no-op.
	gen uint64
}

// New создаёт машину состояний. Вью-слой обязателен: машина сообщает о всех
// переходах только через него.
func New(store session.Store, gw Gateway, view View, opts ...Option) *Machine {
	m := &Machine{
		store:        store,
		gw:           gw,
		view:         view,
		clk:          clock.System,
		pollInterval: DefaultPollInterval,
		phase:        PhaseUnauthenticated,
		runCtx:       context.Background(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.poller = newPoller(m.pollInterval, m.clk, m.pollTick)
	return m
}

// NewFromConfig создаёт машину с периодом опроса из конфигурации окружения.
func NewFromConfig(store session.Store, gw Gateway, view View, opts ...Option) *Machine {
	interval := time.Duration(config.Env().PollIntervalSec) * time.Second
	return New(store, gw, view, append([]Option{WithPollInterval(interval)}, opts...)...)
}

// Phase возвращает текущую фазу.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Session возвращает копию текущей сессии.
func (m *Machine) Session() session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess
}

// BindCode возвращает текущий bind-код (пустая строка вне фазы ожидания).
func (m *Machine) BindCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bindCode
}

// Identity возвращает учётные данные для lookup-запросов.
func (m *Machine) Identity() (username, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess.Username, m.sess.Token
}

// Start — холодный старт: восстанавливает сессию из хранилища и сверяет её
// с сервером. ctx живёт столько же, сколько машина: он же управляет фоновым
// опросом. При сбое доставки сохранённая сессия не трогается — пользователю
// показывается форма входа, а сессия на диске ждёт следующего запуска.
func (m *Machine) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	m.mu.Lock()
	m.runCtx = ctx
	m.mu.Unlock()

	saved, err := m.store.Load()
	if err != nil {
		return errors.Wrap(err, "load session")
	}
	if saved.IsZero() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.phase = PhaseUnauthenticated
		m.view.ShowAuthForm(false)
		return nil
	}

	m.mu.Lock()
	m.sess = saved
	g := m.gen
	m.mu.Unlock()

	result, err := m.gw.Check(ctx, saved.Username, saved.Token)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != g {
		return nil
	}
	if err != nil {
		// Сервер недоступен: фазу не меняем, сессию не трогаем.
		logger.Warn("authflow: cold-start check failed", zap.Error(err))
		m.phase = PhaseUnauthenticated
		m.view.ShowAuthForm(false)
		return nil
	}

	switch result.Outcome {
	case gateway.CheckVerified:
		m.sess.Credits = result.Credits
		m.saveLocked()
		m.phase = PhaseAuthenticated
		m.view.ShowPanel(m.sess.Username, m.sess.Credits)
	case gateway.CheckPending:
		m.bindCode = result.BindCode
		m.phase = PhasePendingVerification
		m.view.ShowPending(m.bindCode)
		m.poller.Start(m.runCtx)
	case gateway.CheckBanned:
		m.clearLocked()
		m.view.ShowBanned()
	default: // CheckInvalid
		m.clearLocked()
		m.view.ShowAuthForm(false)
	}
	return nil
}

// SubmitUsername — регистрация или логин по имени пользователя.
// Невалидное имя отклоняется до сетевого вызова с текстом правила.
// Индикатор выполнения гарантированно снимается на любом пути.
func (m *Machine) SubmitUsername(ctx context.Context, raw string) error {
	username, err := ValidateUsername(raw)
	if err != nil {
		m.view.ShowAuthError(err.Error())
		return err
	}

	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return ErrBusy
	}
	m.busy = true
	m.gen++
	g := m.gen
	prevPhase := m.phase
	m.phase = PhaseRegistering
	m.mu.Unlock()

	m.view.SetBusy(true)
	defer m.view.SetBusy(false)

	result, err := m.gw.Register(ctx, username)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy = false
	if m.gen != g {
		return nil
	}
	if err != nil {
		// Сбой доставки: остаёмся в прежней фазе, сессия не меняется.
		logger.Warn("authflow: register failed", zap.Error(err))
		m.phase = prevPhase
		m.view.ShowAuthError(msgConnectionErr)
		return nil
	}

	switch result.Outcome {
	case gateway.RegisterAuthenticated:
		m.sess = session.Session{
			Username: result.Username,
			Token:    result.Token,
			Credits:  result.Credits,
		}
		m.bindCode = ""
		m.saveLocked()
		m.phase = PhaseAuthenticated
		m.view.ShowPanel(m.sess.Username, m.sess.Credits)
		if result.IsNew {
			m.view.Notify(noticeWelcomeNew, NoticeSuccess)
		} else {
			m.view.Notify(noticeWelcomeBack, NoticeSuccess)
		}

	case gateway.RegisterVerificationRequired:
		// Новому пользователю сервер уже выдал токен — сохраняем сессию,
		// чтобы опрос мог подтвердить привязку. Существующему неверифицированному
		// токен не возвращается: сессии нет, опрос защитно остановится сам.
		if result.Token != "" {
			m.sess = session.Session{
				Username: result.Username,
				Token:    result.Token,
				Credits:  result.Credits,
			}
			m.saveLocked()
		}
		// Сервер — источник истины для bind-кода: всегда принимаем присланный.
		m.bindCode = result.BindCode
		m.phase = PhasePendingVerification
		m.view.ShowPending(m.bindCode)
		m.poller.Start(m.runCtx)

	default: // RegisterRejected
		m.phase = prevPhase
		m.view.ShowAuthError(result.Message)
	}
	return nil
}

// Logout — выход с подтверждением. Отказ в подтверждении — no-op.
// Серверный вызов носит уведомительный характер: локальная сессия очищается
// даже если он не удался.
func (m *Machine) Logout(ctx context.Context) error {
	if !m.view.ConfirmLogout() {
		return nil
	}

	m.mu.Lock()
	snapshot := m.sess
	m.gen++
	m.mu.Unlock()

	// Останавливаем опрос вне мьютекса: тик в полёте завершится и его
	// результат отбросится по поколению.
	m.poller.Stop()

	if !snapshot.IsZero() {
		if err := m.gw.Logout(ctx, snapshot.Username, snapshot.Token); err != nil {
			logger.Warn("authflow: logout call failed", zap.Error(err))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked()
	m.view.ShowAuthForm(true)
	return nil
}

// RefreshCredits обновляет баланс кредитов. Вызывается после каждого
// lookup-запроса. Ошибки не всплывают и не понижают фазу: баланс носит
// справочный характер, источником истины остаётся сервер.
func (m *Machine) RefreshCredits(ctx context.Context) {
	m.mu.Lock()
	if m.phase != PhaseAuthenticated {
		m.mu.Unlock()
		return
	}
	snapshot := m.sess
	g := m.gen
	m.mu.Unlock()

	credits, ok, err := m.gw.CheckCredits(ctx, snapshot.Username, snapshot.Token)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != g || m.phase != PhaseAuthenticated {
		return
	}
	if err != nil {
		logger.Warn("authflow: credits refresh failed", zap.Error(err))
		return
	}
	if !ok {
		logger.Warn("authflow: credits refresh rejected",
			zap.String("username", snapshot.Username))
		return
	}
	m.sess.Credits = credits
	m.saveLocked()
	m.view.ShowPanel(m.sess.Username, m.sess.Credits)
}

// Close останавливает фоновый опрос. Идемпотентен.
func (m *Machine) Close() {
	m.poller.Stop()
}

// PollerRunning сообщает, идёт ли фоновый опрос (диагностика и тесты).
func (m *Machine) PollerRunning() bool {
	return m.poller.Running()
}

// pollTick — одна итерация фонового опроса статуса верификации.
// Возвращает false, когда опрос больше не нужен.
func (m *Machine) pollTick(ctx context.Context) bool {
	m.mu.Lock()
	if m.phase != PhasePendingVerification {
		m.mu.Unlock()
		return false
	}
	if m.sess.IsZero() {
		// Защитная самоостановка: опрашивать нечем (нет токена).
		m.mu.Unlock()
		return false
	}
	snapshot := m.sess
	g := m.gen
	m.mu.Unlock()

	result, err := m.gw.Check(ctx, snapshot.Username, snapshot.Token)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != g || m.phase != PhasePendingVerification {
		// Пока ждали ответ, состояние сменилось — ответ устарел.
		return false
	}
	if err != nil {
		// Сбой доставки не меняет состояние; попробуем на следующем тике.
		logger.Debug("authflow: poll tick failed", zap.Error(err))
		return true
	}

	switch result.Outcome {
	case gateway.CheckVerified:
		m.sess.Credits = result.Credits
		m.saveLocked()
		m.bindCode = ""
		m.phase = PhaseAuthenticated
		m.view.Notify(noticeVerified, NoticeSuccess)
		m.view.ShowPanel(m.sess.Username, m.sess.Credits)
		return false
	case gateway.CheckPending:
		// Привязка ещё не завершена. Если сервер перевыпустил bind-код,
		// показываем актуальный.
		if result.BindCode != "" && result.BindCode != m.bindCode {
			m.bindCode = result.BindCode
			m.view.ShowPending(m.bindCode)
		}
		return true
	case gateway.CheckBanned:
		m.clearLocked()
		m.view.ShowBanned()
		return false
	default: // CheckInvalid
		m.clearLocked()
		m.view.Notify(noticeVerifyFailed, NoticeError)
		m.view.ShowAuthForm(false)
		return false
	}
}

// saveLocked сохраняет текущую сессию в хранилище. Ошибка записи логируется:
// работа продолжается на состоянии в памяти, пострадает только следующий запуск.
func (m *Machine) saveLocked() {
	if err := m.store.Save(m.sess); err != nil {
		logger.Error("authflow: save session failed", zap.Error(err))
	}
}

// clearLocked очищает сессию в памяти и хранилище и возвращает машину
// в PhaseUnauthenticated.
func (m *Machine) clearLocked() {
	if err := m.store.Clear(); err != nil {
		logger.Error("authflow: clear session failed", zap.Error(err))
	}
	m.sess = session.Session{}
	m.bindCode = ""
	m.phase = PhaseUnauthenticated
}

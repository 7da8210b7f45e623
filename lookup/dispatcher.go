package lookup

// Диспетчер поисковых запросов. Тонкая прослойка между UI и шлюзом:
//   - валидирует запрос до сети (невалидный формат не тратит кредиты);
//   - ограничивает частоту запросов токен-бакетом;
//   - после каждого полученного ответа дёргает хук обновления кредитов —
//     любой ответ сервера (результат или карточка ошибки) мог изменить баланс.

import (
	"context"
	"strings"

	"github.com/puzzlefixyt-crypto/deeptracex/internal/infra/logger"
	"github.com/puzzlefixyt-crypto/deeptracex/internal/infra/throttle"

	"go.uber.org/zap"
)

// defaultMaxRetries — по умолчанию сбои доставки не ретраятся: lookup-запрос
// тарифицируется, и повтор после потерянного ответа может списать кредиты
// дважды. Повторы включаются явно через WithMaxRetries.
const defaultMaxRetries = 0

// Gateway — минимальный контракт шлюза, нужный диспетчеру.
type Gateway interface {
	Lookup(ctx context.Context, kind, query, username, token string) (string, error)
}

// Identity — учётные данные, предъявляемые на lookup-запросе.
type Identity struct {
	Username string
	Token    string
}

// Option настраивает диспетчер при создании.
type Option func(*Dispatcher)

// WithResultHook задаёт функцию, вызываемую после каждого полученного ответа.
// Обычно сюда подключают обновление кредитов у машины состояний.
func WithResultHook(hook func(ctx context.Context)) Option {
	return func(d *Dispatcher) {
		d.onResult = hook
	}
}

// WithMaxRetries включает повторные попытки при сбоях доставки. По умолчанию
// их нет: сервер мог обработать запрос, чей ответ потерялся, и повтор
// обернулся бы двойным списанием.
func WithMaxRetries(n int) Option {
	return func(d *Dispatcher) {
		d.maxRetries = n
	}
}

// Dispatcher выполняет поисковые запросы с ограничением скорости.
// Потокобезопасен; Start/Stop идемпотентны.
type Dispatcher struct {
	gw         Gateway
	thr        *throttle.Throttler
	onResult   func(ctx context.Context)
	maxRetries int
}

// NewDispatcher создаёт диспетчер с частотой rps (запросов/сек).
func NewDispatcher(gw Gateway, rps int, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		gw:         gw,
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.thr = throttle.New(rps, throttle.WithMaxRetries(d.maxRetries))
	return d
}

// Start активирует ограничитель скорости.
func (d *Dispatcher) Start(ctx context.Context) {
	d.thr.Start(ctx)
}

// Stop останавливает ограничитель; запросы в полёте прерываются.
func (d *Dispatcher) Stop() {
	d.thr.Stop()
}

// Do валидирует запрос, выполняет его через шлюз с учётом лимитов и возвращает
// HTML-фрагмент ответа. Ошибки валидации возвращаются без сетевого вызова;
// сбои доставки отдаются вызывающему (ретраи — только если включены опцией).
func (d *Dispatcher) Do(ctx context.Context, kind Kind, query string, id Identity) (string, error) {
	query = strings.TrimSpace(query)
	if err := Validate(kind, query); err != nil {
		return "", err
	}

	var html string
	err := d.thr.Do(ctx, func() error {
		result, callErr := d.gw.Lookup(ctx, string(kind), query, id.Username, id.Token)
		if callErr != nil {
			return callErr
		}
		html = result
		return nil
	})
	if err != nil {
		logger.Warn("lookup: request failed",
			zap.String("kind", string(kind)),
			zap.Error(err))
		return "", err
	}

	// Ответ получен (пусть даже карточка ошибки) — баланс мог измениться.
	if d.onResult != nil {
		d.onResult(ctx)
	}
	return html, nil
}

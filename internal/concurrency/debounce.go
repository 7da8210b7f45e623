// Package concurrency — утилиты для безопасного конкурентного исполнения.
// В этом файле реализован Debouncer — механизм «сглаживания» бурстов событий:
// выполнение откладывается, пока события продолжают приходить, и срабатывает
// один раз — по «последнему слову».
//
// Применение: обновление баланса кредитов после серии быстрых lookup-запросов —
// вместо запроса баланса на каждый ответ сервера выполняется один, когда серия
// утихла. Гарантии: потокобезопасность, выполнение отложенной функции вне
// критической секции, принудительный дренаж при остановке.

package concurrency

import (
	"context"
	"sync"
	"time"
)

// Debouncer откладывает выполнение последнего зарегистрированного колбэка до
// паузы в потоке событий. Потокобезопасен; Start/Stop идемпотентны.
type Debouncer struct {
	mu      sync.Mutex    // защищает timer/fn
	timeout time.Duration // задержка между последним событием и выполнением fn
	timer   *time.Timer   // активное окно дебаунса; nil, если отложенных вызовов нет
	fn      func()        // отложенный колбэк («последнее слово»)

	runMu  sync.Mutex         // сериализует Start/Stop
	ctx    context.Context    // активный контекст; nil до Start и после Stop
	cancel context.CancelFunc // инициирует остановку и дренаж
	wg     sync.WaitGroup     // ожидание горутины waitCancel
}

// NewDebouncer создаёт дебаунсер с заданной задержкой в миллисекундах.
// Привязка к жизненному циклу выполняется через Start.
func NewDebouncer(timeoutMS int) *Debouncer {
	return &Debouncer{
		timeout: time.Duration(timeoutMS) * time.Millisecond,
	}
}

// Start привязывает Debouncer к контексту и запускает наблюдателя, который при
// отмене контекста дренирует отложенный вызов. Повторный Start — no-op;
// nil-контекст означает «не запускать».
func (d *Debouncer) Start(ctx context.Context) {
	if ctx == nil {
		return
	}
	d.runMu.Lock()
	defer d.runMu.Unlock()

	d.mu.Lock()
	if d.cancel != nil {
		d.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.ctx = runCtx
	d.cancel = cancel
	d.mu.Unlock()

	d.wg.Go(func() { d.waitCancel(runCtx) })
}

// Stop останавливает дебаунсер и синхронно выполняет отложенный вызов, если он
// есть. После возврата активных таймеров не остаётся.
func (d *Debouncer) Stop() {
	d.runMu.Lock()
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.ctx = nil
	d.mu.Unlock()
	d.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	d.wg.Wait()
	d.flush()
}

// Do регистрирует функцию и откладывает её запуск на timeout. Повторный вызов
// перезапускает окно и заменяет колбэк. Если дебаунсер остановлен или контекст
// отменён, функция выполняется немедленно.
func (d *Debouncer) Do(fn func()) {
	d.mu.Lock()
	if d.ctx == nil || d.ctx.Err() != nil {
		d.mu.Unlock()
		fn()
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.fn = fn
	d.timer = time.AfterFunc(d.timeout, d.fire)
	d.mu.Unlock()
}

// fire извлекает отложенный вызов под локом и выполняет его вне критической секции.
func (d *Debouncer) fire() {
	d.mu.Lock()
	fn := d.fn
	d.fn = nil
	d.timer = nil
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// waitCancel ожидает отмены контекста и дренирует отложенный вызов.
func (d *Debouncer) waitCancel(ctx context.Context) {
	<-ctx.Done()
	d.flush()
}

// flush гасит таймер и синхронно выполняет отложенную функцию, если она есть.
func (d *Debouncer) flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	fn := d.fn
	d.fn = nil
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

package authflow

// Фоновый опрос статуса верификации. Пока клиент в фазе ожидания привязки
// Telegram, поллер с фиксированным интервалом дёргает tick-функцию машины.
//
// Гарантии:
//   - одновременно живёт не более одной горутины опроса;
//   - Start/Stop идемпотентны, после Stop поллер можно запустить заново;
//   - tick может остановить опрос изнутри (вернув false) — это не deadlock,
//     в отличие от вызова Stop из собственной горутины;
//   - Stop дожидается фактического завершения горутины.
//
// Таймеры берутся из clock.Clock, поэтому в тестах опрос управляется
// детерминированно фейковыми часами.

import (
	"context"
	"sync"
	"time"

	"github.com/puzzlefixyt-crypto/deeptracex/internal/infra/clock"
	"github.com/puzzlefixyt-crypto/deeptracex/internal/infra/logger"
)

// poller вызывает tick каждые interval. Потокобезопасен.
type poller struct {
	interval time.Duration
	clk      clock.Clock
	// tick выполняет одну итерацию опроса; false означает «опрос больше не нужен».
	tick func(ctx context.Context) bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newPoller(interval time.Duration, clk clock.Clock, tick func(ctx context.Context) bool) *poller {
	if clk == nil {
		clk = clock.System
	}
	return &poller{
		interval: interval,
		clk:      clk,
		tick:     tick,
	}
}

// Start запускает горутину опроса. Если опрос уже идёт — no-op.
func (p *poller) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	logger.Debug("poller: start")
	go p.run(runCtx, done)
}

// Stop прерывает опрос и дожидается завершения горутины. Повторный вызов
// и вызов без предшествующего Start безопасны.
func (p *poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	logger.Debug("poller: stopped")
}

// Running сообщает, идёт ли опрос в данный момент.
func (p *poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer p.markStopped(done)

	ticker := p.clk.Ticker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if !p.tick(ctx) {
				logger.Debug("poller: self-stop")
				return
			}
		}
	}
}

// markStopped сбрасывает состояние запуска, если оно всё ещё принадлежит этой
// горутине (идентичность проверяется по каналу done). Это делает самоостановку
// эквивалентной Stop с точки зрения последующего Start.
func (p *poller) markStopped(done chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == done {
		if p.cancel != nil {
			p.cancel()
		}
		p.cancel = nil
		p.done = nil
	}
}

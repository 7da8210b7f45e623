package authflow_test

// Фейки шлюза и вью-слоя для тестов машины состояний.

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/puzzlefixyt-crypto/deeptracex/authflow"
	"github.com/puzzlefixyt-crypto/deeptracex/gateway"

	"github.com/gotd/neo"
)

// fakeGateway реализует authflow.Gateway через подменяемые функции.
// Незаданная функция означает «вызов не ожидается» и валит тест.
type fakeGateway struct {
	t *testing.T

	mu            sync.Mutex
	registerCalls int
	checkCalls    int
	creditsCalls  int
	logoutCalls   int

	registerFn func(ctx context.Context, username string) (gateway.RegisterResult, error)
	checkFn    func(ctx context.Context, username, token string) (gateway.CheckResult, error)
	creditsFn  func(ctx context.Context, username, token string) (int, bool, error)
	logoutFn   func(ctx context.Context, username, token string) error
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	return &fakeGateway{t: t}
}

func (f *fakeGateway) Register(ctx context.Context, username string) (gateway.RegisterResult, error) {
	f.mu.Lock()
	f.registerCalls++
	fn := f.registerFn
	f.mu.Unlock()
	if fn == nil {
		f.t.Error("unexpected Register call")
		return gateway.RegisterResult{}, nil
	}
	return fn(ctx, username)
}

func (f *fakeGateway) Check(ctx context.Context, username, token string) (gateway.CheckResult, error) {
	f.mu.Lock()
	f.checkCalls++
	fn := f.checkFn
	f.mu.Unlock()
	if fn == nil {
		f.t.Error("unexpected Check call")
		return gateway.CheckResult{}, nil
	}
	return fn(ctx, username, token)
}

func (f *fakeGateway) CheckCredits(ctx context.Context, username, token string) (int, bool, error) {
	f.mu.Lock()
	f.creditsCalls++
	fn := f.creditsFn
	f.mu.Unlock()
	if fn == nil {
		f.t.Error("unexpected CheckCredits call")
		return 0, false, nil
	}
	return fn(ctx, username, token)
}

func (f *fakeGateway) Logout(ctx context.Context, username, token string) error {
	f.mu.Lock()
	f.logoutCalls++
	fn := f.logoutFn
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, username, token)
}

func (f *fakeGateway) RegisterCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registerCalls
}

func (f *fakeGateway) CheckCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checkCalls
}

func (f *fakeGateway) LogoutCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logoutCalls
}

// panelEvent — вызов ShowPanel.
type panelEvent struct {
	Username string
	Credits  int
}

// fakeView записывает вызовы и дублирует ключевые события в каналы,
// чтобы тесты могли дождаться переходов из фоновой горутины опроса.
type fakeView struct {
	mu         sync.Mutex
	authErrors []string
	notices    []string
	busyStates []bool

	confirmLogout bool

	authFormCh chan bool
	pendingCh  chan string
	panelCh    chan panelEvent
	bannedCh   chan struct{}
	busyCh     chan bool
}

func newFakeView() *fakeView {
	return &fakeView{
		confirmLogout: true,
		authFormCh:    make(chan bool, 16),
		pendingCh:     make(chan string, 16),
		panelCh:       make(chan panelEvent, 16),
		bannedCh:      make(chan struct{}, 16),
		busyCh:        make(chan bool, 16),
	}
}

func (v *fakeView) ShowAuthForm(login bool) { v.authFormCh <- login }

func (v *fakeView) ShowPending(bindCode string) { v.pendingCh <- bindCode }

func (v *fakeView) ShowPanel(username string, credits int) {
	v.panelCh <- panelEvent{Username: username, Credits: credits}
}

func (v *fakeView) ShowBanned() { v.bannedCh <- struct{}{} }

func (v *fakeView) ShowAuthError(msg string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.authErrors = append(v.authErrors, msg)
}

func (v *fakeView) Notify(msg string, _ authflow.NoticeKind) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notices = append(v.notices, msg)
}

func (v *fakeView) ConfirmLogout() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.confirmLogout
}

func (v *fakeView) SetBusy(busy bool) {
	v.mu.Lock()
	v.busyStates = append(v.busyStates, busy)
	v.mu.Unlock()
	v.busyCh <- busy
}

func (v *fakeView) AuthErrors() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, len(v.authErrors))
	copy(out, v.authErrors)
	return out
}

func (v *fakeView) Notices() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]string, len(v.notices))
	copy(out, v.notices)
	return out
}

func (v *fakeView) BusyStates() []bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]bool, len(v.busyStates))
	copy(out, v.busyStates)
	return out
}

// drain вычитывает накопленные события, чтобы следующие ожидания видели
// только новые переходы.
func drain[T any](ch chan T) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

const pollStep = time.Second

// advanceUntil продвигает фейковые часы шагами pollStep, пока из ch не придёт
// событие. Повторные Travel нужны из-за гонки старта: горутина опроса могла
// ещё не установить тикер к моменту первого сдвига времени.
func advanceUntil[T any](t *testing.T, fc *neo.Time, ch chan T) T {
	t.Helper()
	var zero T
	for range 100 {
		fc.Travel(pollStep)
		select {
		case v := <-ch:
			return v
		case <-time.After(20 * time.Millisecond):
		}
	}
	t.Fatal("timed out waiting for event")
	return zero
}

// recv дожидается события без продвижения часов (для синхронных переходов).
func recv[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		var zero T
		return zero
	}
}

// Package deeptracex — верхний уровень сборки клиентского SDK панели DeepTraceX.
// Здесь связываются конфигурация, логирование, хранилище сессии, HTTP-шлюз,
// машина состояний аутентификации и диспетчер lookup-запросов. Встраивающее
// приложение реализует authflow.View и получает готовый клиент.
package deeptracex

import (
	"context"
	"fmt"
	"time"

	"github.com/puzzlefixyt-crypto/deeptracex/authflow"
	"github.com/puzzlefixyt-crypto/deeptracex/gateway"
	"github.com/puzzlefixyt-crypto/deeptracex/internal/concurrency"
	"github.com/puzzlefixyt-crypto/deeptracex/internal/infra/config"
	"github.com/puzzlefixyt-crypto/deeptracex/internal/infra/logger"
	"github.com/puzzlefixyt-crypto/deeptracex/lookup"
	"github.com/puzzlefixyt-crypto/deeptracex/session"

	"go.uber.org/zap"
)

// creditsDebounceMS — окно сглаживания обновлений баланса: серия быстрых
// lookup-запросов приводит к одному обращению за балансом, а не к N.
const creditsDebounceMS = 500

// Client агрегирует подсистемы SDK и управляет их жизненным циклом.
// Отвечает за:
//   - конфигурацию и логирование (консоль + опциональный файл с ротацией),
//   - персистентную сессию (file или bolt бэкенд),
//   - машину состояний аутентификации с фоновым опросом верификации,
//   - lookup-запросы с клиентской валидацией и ограничением скорости.
type Client struct {
	store      session.Store
	gw         *gateway.Client
	machine    *authflow.Machine
	dispatcher *lookup.Dispatcher
	debouncer  *concurrency.Debouncer

	runCtx context.Context
}

// New загружает конфигурацию из .env (envPath может быть пустым — тогда
// читается только окружение процесса), инициализирует логирование и собирает
// все подсистемы. Повторный вызов в одном процессе вернёт ошибку: конфигурация
// загружается однократно.
func New(envPath string, view authflow.View, opts ...authflow.Option) (*Client, error) {
	if view == nil {
		return nil, fmt.Errorf("deeptracex: view is required")
	}

	if err := config.Load(envPath); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	env := config.Env()

	logger.Init(env.LogLevel)
	logger.InitFile(logger.FileConfig{
		Path:       env.LogFile,
		Level:      env.LogFileLevel,
		MaxSizeMB:  env.LogFileMaxSize,
		MaxBackups: env.LogFileMaxBackups,
		MaxAgeDays: env.LogFileMaxAge,
		Compress:   env.LogFileCompress,
	})
	for _, warning := range config.Warnings() {
		logger.Warn("config: " + warning)
	}

	store, err := session.OpenFromConfig(env)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	gw := gateway.NewFromConfig()

	c := &Client{
		store:     store,
		gw:        gw,
		debouncer: concurrency.NewDebouncer(creditsDebounceMS),
		runCtx:    context.Background(),
	}
	c.machine = authflow.NewFromConfig(store, gw, view, opts...)
	c.dispatcher = lookup.NewDispatcher(gw, env.LookupRPS,
		lookup.WithResultHook(c.scheduleCreditsRefresh))

	logger.Info("deeptracex client assembled",
		zap.String("api", env.APIBaseURL),
		zap.String("session_backend", env.SessionBackend),
		zap.Int("poll_interval_sec", env.PollIntervalSec))
	return c, nil
}

// Start запускает подсистемы и выполняет холодный старт аутентификации:
// восстановление сессии, её проверку на сервере и показ нужного экрана.
// ctx задаёт жизненный цикл клиента: его отмена гасит фоновый опрос и лимитер.
func (c *Client) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.runCtx = ctx

	c.debouncer.Start(ctx)
	c.dispatcher.Start(ctx)
	return c.machine.Start(ctx)
}

// Close останавливает фоновые подсистемы и закрывает хранилище сессии.
// Идемпотентен.
func (c *Client) Close() error {
	c.machine.Close()
	c.dispatcher.Stop()
	c.debouncer.Stop()

	if closer, ok := c.store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("close session store: %w", err)
		}
	}
	return nil
}

// SubmitUsername — регистрация или вход по имени пользователя (см. authflow).
func (c *Client) SubmitUsername(ctx context.Context, username string) error {
	return c.machine.SubmitUsername(ctx, username)
}

// Logout — выход с подтверждением через вью-слой.
func (c *Client) Logout(ctx context.Context) error {
	return c.machine.Logout(ctx)
}

// Lookup выполняет поисковый запрос от имени текущей сессии и возвращает
// HTML-фрагмент результата. Баланс кредитов обновится фоном после ответа.
func (c *Client) Lookup(ctx context.Context, kind lookup.Kind, query string) (string, error) {
	username, token := c.machine.Identity()
	return c.dispatcher.Do(ctx, kind, query, lookup.Identity{Username: username, Token: token})
}

// LookupKinds возвращает поддерживаемые виды поиска (для построения UI).
func (c *Client) LookupKinds() []lookup.Kind {
	return lookup.Kinds()
}

// Phase возвращает текущую фазу аутентификации.
func (c *Client) Phase() authflow.Phase {
	return c.machine.Phase()
}

// Credits возвращает последний известный баланс кредитов.
func (c *Client) Credits() int {
	return c.machine.Session().Credits
}

// scheduleCreditsRefresh планирует обновление баланса после lookup-ответа.
// Дебаунс складывает серию быстрых запросов в одно обращение к серверу.
func (c *Client) scheduleCreditsRefresh(context.Context) {
	c.debouncer.Do(func() {
		refreshCtx, cancel := context.WithTimeout(c.runCtx, refreshTimeout())
		defer cancel()
		c.machine.RefreshCredits(refreshCtx)
	})
}

// refreshTimeout ограничивает фоновое обновление баланса таймаутом HTTP из конфигурации.
func refreshTimeout() time.Duration {
	return time.Duration(config.Env().HTTPTimeoutSec) * time.Second
}

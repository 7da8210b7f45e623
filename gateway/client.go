// Пакет gateway — HTTP-клиент API DeepTraceX: регистрация/логин, проверка
// сессии, баланс кредитов и lookup-запросы.
//
// Протокол:
//   - все вызовы несут общий прикладной ключ в заголовке X-KEY (из конфигурации);
//   - auth-вызовы — POST с JSON-телом, всегда отвечают 200 с флагами в теле;
//   - lookup — GET /api/{kind}?q=..., идентичность в заголовках X-Username/X-Token,
//     тело ответа — готовый HTML-фрагмент, передаётся выше без интерпретации.
//
// Каждый запрос получает X-Request-Id (uuid) для корреляции в логах.
// Сбои доставки (сеть, неожиданный статус, нечитаемое тело) возвращаются как
// *TransportError: ответ сервера неизвестен, трогать состояние сессии нельзя.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/puzzlefixyt-crypto/deeptracex/internal/infra/config"
	"github.com/puzzlefixyt-crypto/deeptracex/internal/infra/logger"
	"github.com/puzzlefixyt-crypto/deeptracex/internal/infra/pr"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	headerAppKey    = "X-KEY"
	headerUsername  = "X-Username"
	headerToken     = "X-Token"
	headerRequestID = "X-Request-Id"
)

// Client — HTTP-клиент API. Потокобезопасен: состояние неизменяемо после создания.
type Client struct {
	baseURL string
	appKey  string
	httpc   *http.Client
}

// New создаёт клиент с явными параметрами. baseURL — без завершающего слэша.
// httpc=nil означает http.DefaultClient (удобно в тестах с httptest).
func New(baseURL, appKey string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		appKey:  appKey,
		httpc:   httpc,
	}
}

// NewFromConfig создаёт клиент по глобальной конфигурации окружения.
func NewFromConfig() *Client {
	env := config.Env()
	return New(env.APIBaseURL, env.AppKey, &http.Client{
		Timeout: time.Duration(env.HTTPTimeoutSec) * time.Second,
	})
}

// Wire-структуры. Имена полей фиксированы протоколом сервера.

type registerRequest struct {
	Username string `json:"username"`
}

type registerResponse struct {
	Success          bool   `json:"success"`
	Username         string `json:"username"`
	Token            string `json:"token"`
	Credits          int    `json:"credits"`
	IsNew            bool   `json:"is_new"`
	TelegramRequired bool   `json:"telegram_required"`
	BindCode         string `json:"bind_code"`
	Error            string `json:"error"`
}

type checkRequest struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

type checkResponse struct {
	Success          bool   `json:"success"`
	Username         string `json:"username"`
	Credits          int    `json:"credits"`
	TelegramRequired bool   `json:"telegram_required"`
	BindCode         string `json:"bind_code"`
	Banned           bool   `json:"banned"`
}

type creditsResponse struct {
	Success bool `json:"success"`
	Credits int  `json:"credits"`
}

// Register выполняет POST /api/auth/register и классифицирует ответ.
//
// Порядок классификации важен: сервер может ответить success=false с
// telegram_required=true и текстом ошибки одновременно — требование верификации
// приоритетно, текст отказа в этом случае игнорируется. Новому пользователю
// сервер возвращает success=true вместе с telegram_required=true: токен и
// кредиты уже выданы, но работать можно только после привязки.
func (c *Client) Register(ctx context.Context, username string) (RegisterResult, error) {
	var resp registerResponse
	if err := c.postJSON(ctx, "/api/auth/register", registerRequest{Username: username}, &resp); err != nil {
		return RegisterResult{}, err
	}

	result := RegisterResult{
		Username: resp.Username,
		Token:    resp.Token,
		Credits:  resp.Credits,
		IsNew:    resp.IsNew,
		BindCode: resp.BindCode,
		Message:  resp.Error,
	}
	switch {
	case resp.TelegramRequired:
		result.Outcome = RegisterVerificationRequired
	case resp.Success:
		result.Outcome = RegisterAuthenticated
	default:
		result.Outcome = RegisterRejected
		if result.Message == "" {
			result.Message = "Registration failed"
		}
	}
	return result, nil
}

// Check выполняет POST /api/auth/check и классифицирует ответ.
// Приоритет: бан > ожидание верификации > валидная сессия > невалидная.
func (c *Client) Check(ctx context.Context, username, token string) (CheckResult, error) {
	var resp checkResponse
	if err := c.postJSON(ctx, "/api/auth/check", checkRequest{Username: username, Token: token}, &resp); err != nil {
		return CheckResult{}, err
	}

	result := CheckResult{
		Username: resp.Username,
		Credits:  resp.Credits,
		BindCode: resp.BindCode,
	}
	switch {
	case resp.Banned:
		result.Outcome = CheckBanned
	case resp.TelegramRequired:
		result.Outcome = CheckPending
	case resp.Success:
		result.Outcome = CheckVerified
	default:
		result.Outcome = CheckInvalid
	}
	return result, nil
}

// CheckCredits выполняет POST /api/credits/check. Возвращает баланс и флаг
// ok=false, если сервер не признал пользователя (success=false).
func (c *Client) CheckCredits(ctx context.Context, username, token string) (int, bool, error) {
	var resp creditsResponse
	if err := c.postJSON(ctx, "/api/credits/check", checkRequest{Username: username, Token: token}, &resp); err != nil {
		return 0, false, err
	}
	return resp.Credits, resp.Success, nil
}

// Logout выполняет POST /api/auth/logout. Вызов носит уведомительный характер:
// локальная сессия очищается независимо от результата.
func (c *Client) Logout(ctx context.Context, username, token string) error {
	var resp struct {
		Success bool `json:"success"`
	}
	return c.postJSON(ctx, "/api/auth/logout", checkRequest{Username: username, Token: token}, &resp)
}

// Lookup выполняет GET /api/{kind}?q={query} и возвращает тело ответа как есть.
// Сервер отвечает готовым HTML-фрагментом (карточка результата или ошибки);
// клиент его не интерпретирует. Ошибкой считается только сбой доставки.
func (c *Client) Lookup(ctx context.Context, kind, query, username, token string) (string, error) {
	endpoint := c.baseURL + "/api/" + url.PathEscape(kind) + "?q=" + url.QueryEscape(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", transportErr("lookup "+kind, err)
	}
	requestID := uuid.NewString()
	req.Header.Set(headerAppKey, c.appKey)
	req.Header.Set(headerUsername, username)
	req.Header.Set(headerToken, token)
	req.Header.Set(headerRequestID, requestID)

	logger.Debug("gateway: lookup",
		zap.String("kind", kind),
		zap.String("request_id", requestID))

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", transportErr("lookup "+kind, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportErr("lookup "+kind, errors.Wrap(err, "read body"))
	}
	// Не-2xx с телом — это серверная карточка ошибки, отдаём её как результат.
	return string(body), nil
}

// postJSON — общий путь auth-вызовов: JSON-тело, общие заголовки, декодирование
// ответа. Любая проблема доставки оборачивается в *TransportError.
func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return transportErr(path, errors.Wrap(err, "marshal request"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return transportErr(path, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerAppKey, c.appKey)
	req.Header.Set(headerRequestID, requestID)

	logger.Debug("gateway: request",
		zap.String("path", path),
		zap.String("request_id", requestID))

	resp, err := c.httpc.Do(req)
	if err != nil {
		return transportErr(path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return transportErr(path, errors.Errorf("unexpected status %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return transportErr(path, errors.Wrap(err, "decode response"))
	}
	if logger.IsDebugEnabled() {
		logger.Debug("gateway: response",
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.String("body", pr.Pf(out)))
	}
	return nil
}

// Пакет config отвечает за сбор и предоставление конфигурации клиентского SDK
// DeepTraceX. Он:
//  1. читает переменные окружения из .env (через godotenv),
//  2. нормализует и валидирует входные значения,
//  3. фиксирует производные структуры (например, таймзону приложения),
//  4. предоставляет доступ к результатам через singleton.
//
// Бизнес-контекст: клиент ходит в удалённый API поиска (register/check/credits и
// собственно lookup-запросы) и на каждом вызове предъявляет общий прикладной ключ
// X-KEY. Ключ — секрет уровня приложения, поэтому он обязан приходить из окружения
// и никогда не зашивается в исходники.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/puzzlefixyt-crypto/deeptracex/internal/infra/timeutil"

	"github.com/joho/godotenv"
)

// EnvConfig описывает параметры, приходящие из окружения (.env). Это «операционные»
// настройки клиента: адрес и ключ API, файл локальной сессии, период опроса
// Telegram-верификации, лимиты lookup-запросов, логирование.
//
// NB: значения уже проходят минимальную валидацию и нормализацию в loadConfig.
// В рантайме по месту использования предполагается, что EnvConfig последователен.
type EnvConfig struct {
	APIBaseURL      string
	AppKey          string
	SessionBackend  string
	SessionFile     string
	PollIntervalSec int
	HTTPTimeoutSec  int
	LookupRPS       int
	LogLevel        string
	AppTimezone     string
	// Файловое логирование
	LogFile           string
	LogFileLevel      string
	LogFileMaxSize    int
	LogFileMaxBackups int
	LogFileMaxAge     int
	LogFileCompress   bool
}

// Config хранит конфигурацию среды и накопленные при загрузке предупреждения.
type Config struct {
	Env      EnvConfig
	warnings []string
	mu       sync.RWMutex
}

// Бэкенды хранения сессии. Строки стабильны: они приходят из окружения.
const (
	// SessionBackendFile — JSON-файл с атомарной записью (легковесный дефолт).
	SessionBackendFile = "file"
	// SessionBackendBolt — bbolt-база; переживает параллельные процессы и сбои записи.
	SessionBackendBolt = "bolt"
)

// Значения по умолчанию для параметров окружения.
const (
	defaultSessionBackend  = SessionBackendFile
	defaultSessionFile     = "data/session.json"
	defaultPollIntervalSec = 3
	defaultHTTPTimeoutSec  = 10
	defaultLookupRPS       = 1
	defaultLogLevel        = "info"
	defaultAppTimezone     = "UTC"
	// Файловое логирование (LOG_FILE не имеет дефолта — должен быть явно указан для активации)
	defaultLogFileLevel      = "debug"
	defaultLogFileMaxSize    = 50
	defaultLogFileMaxBackups = 3
	defaultLogFileMaxAge     = 7
	defaultLogFileCompress   = true
)

var (
	// cfgMu защищает singleton от гонок: параллельные Load и чтения
	// через Env/Warnings сериализуются.
	cfgMu       sync.Mutex
	cfgInstance *Config
)

// AppLocation — глобальная таймзона приложения; выставляется при загрузке конфига.
var AppLocation = time.UTC

// Load — точка входа для инициализации глобальной конфигурации SDK.
// При первом вызове читает .env, формирует EnvConfig и фиксирует результат
// в singleton cfgInstance. Повторный вызов запрещён (возвращается ошибка),
// чтобы избежать гонок конфигурации на старте.
func Load(envPath string) error {
	cfgMu.Lock()
	defer cfgMu.Unlock()
	if cfgInstance != nil {
		return errors.New("config already loaded")
	}
	newCfg, err := loadConfig(envPath)
	if err != nil {
		return err
	}
	cfgInstance = newCfg
	return nil
}

// loadConfig выполняет фактическую загрузку/валидацию без установки глобального
// состояния. Удобно для тестов: можно собрать временный Config и проверить его.
func loadConfig(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	baseURL := strings.TrimSpace(os.Getenv("DTX_API_BASE_URL"))
	if baseURL == "" {
		return nil, errors.New("env DTX_API_BASE_URL must be set")
	}
	baseURL = strings.TrimRight(baseURL, "/")

	// Прикладной ключ — обязательный секрет; без него ни один запрос не пройдёт.
	appKey := strings.TrimSpace(os.Getenv("DTX_APP_KEY"))
	if appKey == "" {
		return nil, errors.New("env DTX_APP_KEY must be set")
	}

	var warnings []string

	sessionBackend := sanitizeSessionBackend(os.Getenv("DTX_SESSION_BACKEND"), &warnings)
	sessionFile := sanitizeFile("DTX_SESSION_FILE", os.Getenv("DTX_SESSION_FILE"),
		defaultSessionFileFor(sessionBackend), &warnings)
	pollInterval := parseIntDefault("DTX_POLL_INTERVAL_SEC", defaultPollIntervalSec, greaterThanZero, &warnings)
	httpTimeout := parseIntDefault("DTX_HTTP_TIMEOUT_SEC", defaultHTTPTimeoutSec, greaterThanZero, &warnings)
	lookupRPS := parseIntDefault("DTX_LOOKUP_RPS", defaultLookupRPS, greaterThanZero, &warnings)
	logLevel := sanitizeLogLevel(os.Getenv("LOG_LEVEL"), defaultLogLevel, &warnings)
	appTimezone := sanitizeTimezoneFlexible(os.Getenv("APP_TIMEZONE"), defaultAppTimezone, &warnings)
	logFile := strings.TrimSpace(os.Getenv("LOG_FILE"))
	logFileLevel := sanitizeLogLevel(os.Getenv("LOG_FILE_LEVEL"), defaultLogFileLevel, &warnings)
	logFileMaxSize := parseIntDefault("LOG_FILE_MAX_SIZE_MB", defaultLogFileMaxSize, greaterThanZero, &warnings)
	logFileMaxBackups := parseIntDefault("LOG_FILE_MAX_BACKUPS", defaultLogFileMaxBackups, nonNegative, &warnings)
	logFileMaxAge := parseIntDefault("LOG_FILE_MAX_AGE_DAYS", defaultLogFileMaxAge, nonNegative, &warnings)
	logFileCompress := parseBoolDefault("LOG_FILE_COMPRESS", defaultLogFileCompress, &warnings)

	loc, err := timeutil.ParseLocation(appTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", appTimezone, err)
	}
	AppLocation = loc

	env := EnvConfig{
		APIBaseURL:      baseURL,
		AppKey:          appKey,
		SessionBackend:  sessionBackend,
		SessionFile:     sessionFile,
		PollIntervalSec: pollInterval,
		HTTPTimeoutSec:  httpTimeout,
		LookupRPS:       lookupRPS,
		LogLevel:        logLevel,
		AppTimezone:     appTimezone,
		// Файловое логирование
		LogFile:           logFile,
		LogFileLevel:      logFileLevel,
		LogFileMaxSize:    logFileMaxSize,
		LogFileMaxBackups: logFileMaxBackups,
		LogFileMaxAge:     logFileMaxAge,
		LogFileCompress:   logFileCompress,
	}

	return &Config{
		Env:      env,
		warnings: warnings,
	}, nil
}

// Warnings возвращает накопленные предупреждения, возникшие при загрузке .env
// (например, когда подставлено значение по умолчанию). Возвращается копия.
// До Load предупреждений нет — возвращается nil.
func Warnings() []string {
	cfg := current()
	if cfg == nil {
		return nil
	}
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()
	result := make([]string, len(cfg.warnings))
	copy(result, cfg.warnings)
	return result
}

// Env возвращает EnvConfig из глобального singleton. Это неизменяемый снимок
// на момент последней загрузки; для обновления надо перечитать конфиг целиком.
// До Load возвращается нулевой EnvConfig.
func Env() EnvConfig {
	cfg := current()
	if cfg == nil {
		return EnvConfig{}
	}
	return cfg.Env
}

// current возвращает снимок singleton под мьютексом.
func current() *Config {
	cfgMu.Lock()
	defer cfgMu.Unlock()
	return cfgInstance
}

// defaultSessionFileFor подбирает дефолтный путь файла сессии под выбранный бэкенд.
func defaultSessionFileFor(backend string) string {
	if backend == SessionBackendBolt {
		return "data/session.bbolt"
	}
	return defaultSessionFile
}

// parseIntDefault читает name как int. Если пусто/некорректно/не проходит
// дополнительную проверку validator — возвращает defaultVal и пишет предупреждение.
// Это позволяет не падать на несущественных настройках и иметь дефолты.
func parseIntDefault(name string, defaultVal int, validator func(int) bool, warnings *[]string) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		appendWarningf(warnings, "env %s is not set; using default %d", name, defaultVal)
		return defaultVal
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		appendWarningf(warnings, "env %s value %q is not a valid integer; using default %d", name, value, defaultVal)
		return defaultVal
	}
	if validator != nil && !validator(v) {
		appendWarningf(warnings, "env %s value %d does not satisfy constraints; using default %d", name, v, defaultVal)
		return defaultVal
	}
	return v
}

// parseBoolDefault читает name как bool. Если пусто/некорректно — возвращает defaultVal и пишет предупреждение.
func parseBoolDefault(name string, defaultVal bool, warnings *[]string) bool {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		appendWarningf(warnings, "env %s is not set; using default %v", name, defaultVal)
		return defaultVal
	}
	v, err := strconv.ParseBool(value)
	if err != nil {
		appendWarningf(warnings, "env %s value %q is not a valid boolean; using default %v", name, value, defaultVal)
		return defaultVal
	}
	return v
}

// appendWarningf — служебная функция для накопления предупреждений о некорректных
// переменных окружения. Список затем доступен через Warnings().
func appendWarningf(warnings *[]string, format string, args ...any) {
	if warnings == nil {
		return
	}
	*warnings = append(*warnings, fmt.Sprintf(format, args...))
}

// greaterThanZero / nonNegative — простые валидаторы чисел. Используются в
// parseIntDefault, чтобы навязать смысловые ограничения без падения приложения.
func greaterThanZero(v int) bool { return v > 0 }
func nonNegative(v int) bool     { return v >= 0 }

// sanitizeLogLevel нормализует уровень и ограничивает значения набором
// {debug, info, warn, error}. Всё остальное превращается в defaultVal.
func sanitizeLogLevel(level string, defaultVal string, warnings *[]string) string {
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "" {
		appendWarningf(warnings, "env LOG_LEVEL is not set; using default %q", defaultVal)
		return defaultVal
	}
	switch lvl {
	case "debug", "info", "warn", "error":
		return lvl
	default:
		appendWarningf(warnings, "env LOG_LEVEL value %q is invalid; using default %q", level, defaultVal)
		return defaultVal
	}
}

// sanitizeSessionBackend выбирает бэкенд локальной сессии (file|bolt). Некорректные
// значения приводятся к defaultSessionBackend с записью предупреждения.
func sanitizeSessionBackend(value string, warnings *[]string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		appendWarningf(warnings, "env DTX_SESSION_BACKEND is not set; using default %q", defaultSessionBackend)
		return defaultSessionBackend
	}
	if v == SessionBackendFile || v == SessionBackendBolt {
		return v
	}
	appendWarningf(warnings, "env DTX_SESSION_BACKEND value %q is invalid; using default %q", value, defaultSessionBackend)
	return defaultSessionBackend
}

// sanitizeFile возвращает валидное имя файла конфигурации. Если переменная не
// задана, подставляет fallback и пишет предупреждение.
func sanitizeFile(name, value, fallback string, warnings *[]string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		appendWarningf(warnings, "env %s is not set; using default %q", name, fallback)
		return fallback
	}
	return v
}

// sanitizeTimezoneFlexible проверяет, что значение — корректная IANA-зона или UTC-смещение.
// При неудаче возвращает значение по умолчанию и добавляет предупреждение.
func sanitizeTimezoneFlexible(value string, fallback string, warnings *[]string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		appendWarningf(warnings, "env APP_TIMEZONE is not set; using default %q", fallback)
		return fallback
	}
	if _, err := timeutil.ParseLocation(v); err != nil {
		appendWarningf(warnings, "timezone %q is invalid; using default %q", v, fallback)
		return fallback
	}
	return v
}

package config

// Тесты собирают конфигурацию через loadConfig, не трогая глобальный singleton:
// Load одноразовый на процесс, и его здесь не вызывает ни один тест.

import (
	"reflect"
	"testing"
)

// setRequired задаёт обязательные переменные и очищает опциональные,
// чтобы окружение процесса не влияло на результат.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DTX_API_BASE_URL", "https://api.example.com/")
	t.Setenv("DTX_APP_KEY", "secret-key")
	for _, name := range []string{
		"DTX_SESSION_BACKEND", "DTX_SESSION_FILE", "DTX_POLL_INTERVAL_SEC",
		"DTX_HTTP_TIMEOUT_SEC", "DTX_LOOKUP_RPS", "LOG_LEVEL", "APP_TIMEZONE",
		"LOG_FILE", "LOG_FILE_LEVEL", "LOG_FILE_MAX_SIZE_MB",
		"LOG_FILE_MAX_BACKUPS", "LOG_FILE_MAX_AGE_DAYS", "LOG_FILE_COMPRESS",
	} {
		t.Setenv(name, "")
	}
}

// Обращения до Load не должны паниковать: возвращаются нулевые значения.
func TestAccessorsBeforeLoad(t *testing.T) {
	if cfgInstance != nil {
		t.Skip("config already loaded in this process")
	}
	if got := Env(); !reflect.DeepEqual(got, EnvConfig{}) {
		t.Fatalf("Env() before Load = %+v, want zero value", got)
	}
	if got := Warnings(); got != nil {
		t.Fatalf("Warnings() before Load = %v, want nil", got)
	}
}

func TestLoadConfigRequiresBaseURL(t *testing.T) {
	setRequired(t)
	t.Setenv("DTX_API_BASE_URL", "")

	if _, err := loadConfig(""); err == nil {
		t.Fatal("loadConfig succeeded without DTX_API_BASE_URL")
	}
}

func TestLoadConfigRequiresAppKey(t *testing.T) {
	setRequired(t)
	t.Setenv("DTX_APP_KEY", "")

	if _, err := loadConfig(""); err == nil {
		t.Fatal("loadConfig succeeded without DTX_APP_KEY")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	env := cfg.Env
	if env.APIBaseURL != "https://api.example.com" {
		t.Errorf("APIBaseURL = %q, want trailing slash trimmed", env.APIBaseURL)
	}
	if env.SessionBackend != SessionBackendFile {
		t.Errorf("SessionBackend = %q, want %q", env.SessionBackend, SessionBackendFile)
	}
	if env.PollIntervalSec != defaultPollIntervalSec {
		t.Errorf("PollIntervalSec = %d, want %d", env.PollIntervalSec, defaultPollIntervalSec)
	}
	if env.HTTPTimeoutSec != defaultHTTPTimeoutSec {
		t.Errorf("HTTPTimeoutSec = %d, want %d", env.HTTPTimeoutSec, defaultHTTPTimeoutSec)
	}
	if env.LookupRPS != defaultLookupRPS {
		t.Errorf("LookupRPS = %d, want %d", env.LookupRPS, defaultLookupRPS)
	}
	if env.LogLevel != defaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", env.LogLevel, defaultLogLevel)
	}
	// Каждый подставленный дефолт оставляет предупреждение.
	if len(cfg.warnings) == 0 {
		t.Error("expected warnings for defaulted variables")
	}
}

func TestLoadConfigSanitizesInvalidValues(t *testing.T) {
	setRequired(t)
	t.Setenv("DTX_SESSION_BACKEND", "redis")
	t.Setenv("DTX_POLL_INTERVAL_SEC", "-5")
	t.Setenv("LOG_LEVEL", "loud")

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Env.SessionBackend != SessionBackendFile {
		t.Errorf("SessionBackend = %q, want default on invalid value", cfg.Env.SessionBackend)
	}
	if cfg.Env.PollIntervalSec != defaultPollIntervalSec {
		t.Errorf("PollIntervalSec = %d, want default on non-positive value", cfg.Env.PollIntervalSec)
	}
	if cfg.Env.LogLevel != defaultLogLevel {
		t.Errorf("LogLevel = %q, want default on invalid value", cfg.Env.LogLevel)
	}
}

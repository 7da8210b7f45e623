package session

// Фабрика хранилища по настройкам окружения.

import (
	"fmt"

	"github.com/puzzlefixyt-crypto/deeptracex/internal/infra/config"
)

// OpenFromConfig создаёт Store по конфигурации окружения (DTX_SESSION_BACKEND /
// DTX_SESSION_FILE). Для bolt-бэкенда возвращаемый Store нужно закрывать
// (type assertion на *BoltStore) при завершении работы.
func OpenFromConfig(env config.EnvConfig) (Store, error) {
	switch env.SessionBackend {
	case config.SessionBackendBolt:
		return NewBoltStore(env.SessionFile)
	case config.SessionBackendFile:
		return NewFileStore(env.SessionFile)
	default:
		return nil, fmt.Errorf("session: unknown backend %q", env.SessionBackend)
	}
}

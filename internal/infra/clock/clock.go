// Package clock предоставляет централизованные функции для работы со временем в SDK.
// Все внутренние операции со временем должны использовать функции этого пакета для
// единообразия работы с часовыми поясами: текущее время всегда нормализуется в
// config.AppLocation.
//
// Дополнительно пакет фиксирует абстракцию часов (clock.Clock из gotd), через которую
// работают фоновые таймеры опроса. В рантайме используется системная реализация,
// в тестах — детерминированная подмена (gotd/neo).
package clock

import (
	"time"

	"github.com/puzzlefixyt-crypto/deeptracex/internal/infra/config"

	tdclock "github.com/gotd/td/clock"
)

// Clock — интерфейс источника времени и таймеров. Реэкспортируется, чтобы
// прикладные пакеты не импортировали gotd напрямую.
type Clock = tdclock.Clock

// System — системная реализация Clock (обычные time.Timer/time.Ticker).
var System Clock = tdclock.System

// Now возвращает текущее время, сконвертированное в глобальную таймзону приложения
// (config.AppLocation). Эта функция должна использоваться для всех внутренних
// операций со временем: логирования, временных меток сессии и т.д.
func Now() time.Time {
	return time.Now().In(config.AppLocation)
}

// ToAppTime конвертирует любое время в глобальную таймзону приложения.
// Используется для нормализации входящих временных данных.
func ToAppTime(t time.Time) time.Time {
	return t.In(config.AppLocation)
}

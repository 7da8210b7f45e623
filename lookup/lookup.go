// Пакет lookup отвечает за поисковые запросы DeepTraceX:
//   - справочник видов поиска (телефон, Aadhaar, GST, IFSC, UPI, FamPay, транспорт);
//   - клиентская валидация формата запроса до любого сетевого вызова;
//   - диспетчер, выполняющий запрос через шлюз с ограничением скорости.
package lookup

import (
	"regexp"

	"github.com/go-faster/errors"
)

// Kind — вид поиска. Строковое значение совпадает с сегментом пути API
// (GET /api/{kind}?q=...).
type Kind string

const (
	KindPhone   Kind = "num"
	KindAadhaar Kind = "aadhaar"
	KindGST     Kind = "gst"
	KindIFSC    Kind = "ifsc"
	KindUPI     Kind = "upi"
	KindFam     Kind = "fam"
	KindVehicle Kind = "vehicle"
)

// Ошибки клиентской валидации. Запрос с такой ошибкой не уходит в сеть
// и не тратит кредиты.
var (
	ErrUnknownKind   = errors.New("lookup: unknown lookup type")
	ErrEmptyQuery    = errors.New("lookup: empty query")
	ErrInvalidFormat = errors.New("lookup: invalid format for selected lookup type")
)

// spec описывает вид поиска: формат значения и пример для подсказки в UI.
type spec struct {
	pattern     *regexp.Regexp
	placeholder string
}

// specs — справочник форматов. Паттерны зеркалят серверную валидацию:
// телефон — индийский мобильный (10 цифр, первая 6-9), Aadhaar — 12 цифр,
// GST/IFSC — официальные форматы идентификаторов, UPI — адрес vpa,
// FamPay — vpa в домене @fam, транспортный номер — любое непустое значение.
var specs = map[Kind]spec{
	KindPhone:   {pattern: regexp.MustCompile(`^[6-9]\d{9}$`), placeholder: "e.g., 9876543210"},
	KindAadhaar: {pattern: regexp.MustCompile(`^\d{12}$`), placeholder: "e.g., 123456789012"},
	KindGST:     {pattern: regexp.MustCompile(`^\d{2}[A-Z]{5}\d{4}[A-Z][A-Z0-9]Z[A-Z0-9]$`), placeholder: "e.g., 22AAAAA0000A1Z5"},
	KindIFSC:    {pattern: regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`), placeholder: "e.g., SBIN0001234"},
	KindUPI:     {pattern: regexp.MustCompile(`.+@.+`), placeholder: "e.g., username@upi"},
	KindFam:     {pattern: regexp.MustCompile(`.+@fam$`), placeholder: "e.g., username@fam"},
	KindVehicle: {pattern: regexp.MustCompile(`.+`), placeholder: "e.g., DL01AB1234"},
}

// Kinds возвращает список поддерживаемых видов поиска (порядок стабилен).
func Kinds() []Kind {
	return []Kind{KindPhone, KindAadhaar, KindGST, KindIFSC, KindUPI, KindFam, KindVehicle}
}

// Placeholder возвращает пример значения для вида поиска (пустая строка для неизвестного).
func Placeholder(kind Kind) string {
	return specs[kind].placeholder
}

// Validate проверяет запрос до сетевого вызова. Порядок проверок фиксирован:
// вид поиска → непустое значение → формат.
func Validate(kind Kind, query string) error {
	sp, ok := specs[kind]
	if !ok {
		return ErrUnknownKind
	}
	if query == "" {
		return ErrEmptyQuery
	}
	if !sp.pattern.MatchString(query) {
		return ErrInvalidFormat
	}
	return nil
}

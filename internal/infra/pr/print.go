// Package pr — вспомогательные функции диагностической печати.
// Обёртка над kr/pretty для дампов структур в логи и тестовые сообщения.
// SDK не владеет терминалом, поэтому печать идёт в явные writer-ы либо в строку.

package pr

import (
	"fmt"
	"io"

	"github.com/kr/pretty"
)

// PP pretty-печатает значение в заданный writer. Удобно для отладки;
// не используйте в горячих участках из-за аллокаций.
func PP(w io.Writer, v any) {
	fmt.Fprintf(w, "%# v\n", pretty.Formatter(v))
}

// Pf возвращает pretty-строку значения. Полезно для логов и тестов; помните про аллокации.
func Pf(v any) string {
	return fmt.Sprintf("%# v", pretty.Formatter(v))
}

// Diff возвращает список различий между двумя значениями в человекочитаемом виде.
// Используется в тестах для наглядных сообщений об ожиданиях.
func Diff(a, b any) []string {
	return pretty.Diff(a, b)
}

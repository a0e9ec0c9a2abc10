// Package format runs an external formatter over edited documents.
//
// Назначение: косметическое форматирование после wrap/unwrap.
// Не делает: собственного pretty-print; ошибки вызывающий только логирует.
package format

// Package fuzztests houses Go fuzz harnesses for the text-level engines:
// delimiter matching, the outline builder, widget location and the
// wrap/unwrap transforms. The goal is to catch panics, hangs and broken
// invariants on arbitrary input.
//
// Назначение: прогонять произвольные байты через scan, outline, locate и
// transform и проверять инварианты результата.
//
// Не делает: запись файлов, запуск LSP, генерацию корпусов.
//
// Зависимости: internal/scan, internal/outline, internal/locate,
// internal/transform, internal/testkit.
package fuzztests

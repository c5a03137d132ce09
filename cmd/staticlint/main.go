// Package main реализует multichecker для статического анализа кода проекта.
//
// # Запуск
//
//	go run ./cmd/staticlint ./...
//
// # Состав анализаторов
//
// Стандартные анализаторы golang.org/x/tools/go/analysis/passes:
//
//   - printf: проверяет корректность форматирования в fmt.Printf и подобных
//   - shadow: обнаруживает затенение переменных
//   - structtag: проверяет корректность тегов структур
//   - unusedresult: находит неиспользуемые результаты функций
//
// Все анализаторы класса SA из staticcheck.io.
//
// Собственные анализаторы:
//
//   - noosexit: запрещает прямой вызов os.Exit в функции main пакета main
//   - nostdlog: запрещает стандартный log вне пакета main, логирование идёт через zap
//
// Вместо os.Exit в main ошибка возвращается из run и печатается через log.Fatal:
//
//	func main() {
//	    if err := run(); err != nil {
//	        log.Fatal(err)
//	    }
//	}
package main

import (
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/shadow"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/unusedresult"
	"honnef.co/go/tools/staticcheck"
)

func main() {
	checks := []*analysis.Analyzer{
		printf.Analyzer,
		shadow.Analyzer,
		structtag.Analyzer,
		unusedresult.Analyzer,

		NoOsExitAnalyzer,
		NoStdLogAnalyzer,
	}

	for _, v := range staticcheck.Analyzers {
		checks = append(checks, v.Analyzer)
	}

	multichecker.Main(checks...)
}
